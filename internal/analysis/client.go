package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hasaa-we/redub/internal/segment"
)

// Client provides HTTP client functionality for the analysis API
type Client struct {
	config     Config
	httpClient *http.Client
}

// Config contains analysis client configuration
type Config struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// Request describes one analysis call
type Request struct {
	VideoData      []byte
	MIMEType       string
	SourceLanguage string
	TargetLanguage string
	Dialect        string
	Style          string
}

// responseSegment is one segment as the analysis service reports it
type responseSegment struct {
	StartTime      float64 `json:"start_time"`
	EndTime        float64 `json:"end_time"`
	OriginalText   string  `json:"original_text"`
	TranslatedText string  `json:"translated_text"`
	SpeakerLabel   string  `json:"speaker_label"`
}

// NewClient creates a new analysis HTTP client
func NewClient(config Config) (*Client, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}

	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Minute // whole-video upload and processing
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}, nil
}

// Analyze uploads the video and returns the dub segments in timeline
// order. Each segment gets a fresh stable id.
func (c *Client) Analyze(ctx context.Context, request *Request) ([]*segment.Segment, error) {
	if len(request.VideoData) == 0 {
		return nil, fmt.Errorf("video data cannot be empty")
	}

	body, contentType, err := c.createMultipartRequest(request)
	if err != nil {
		return nil, fmt.Errorf("failed to create multipart request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.config.Endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed struct {
		Segments []responseSegment `json:"segments"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response JSON: %w", err)
	}

	segments := make([]*segment.Segment, 0, len(parsed.Segments))
	for i, rs := range parsed.Segments {
		seg := &segment.Segment{
			ID:             uuid.New().String(),
			StartTime:      rs.StartTime,
			EndTime:        rs.EndTime,
			OriginalText:   rs.OriginalText,
			TranslatedText: rs.TranslatedText,
			SpeakerLabel:   rs.SpeakerLabel,
		}
		if err := seg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid segment %d from analysis: %w", i, err)
		}
		segments = append(segments, seg)
	}

	return segments, nil
}

// createMultipartRequest creates a multipart/form-data request body
func (c *Client) createMultipartRequest(request *Request) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fileWriter, err := writer.CreateFormFile("video", "video")
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := fileWriter.Write(request.VideoData); err != nil {
		return nil, "", fmt.Errorf("failed to write video data: %w", err)
	}

	fields := map[string]string{
		"mime_type":       request.MIMEType,
		"source_language": request.SourceLanguage,
		"target_language": request.TargetLanguage,
	}
	if request.Dialect != "" {
		fields["dialect"] = request.Dialect
	}
	if request.Style != "" {
		fields["style"] = request.Style
	}

	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", key, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}
