package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hasaa-we/redub/internal/analysis"
	"github.com/hasaa-we/redub/internal/config"
	"github.com/hasaa-we/redub/internal/metrics"
)

// maxUploadBytes bounds analysis video uploads.
const maxUploadBytes = 512 << 20

// HTTPServer provides the HTTP API for driving a dubbing session
type HTTPServer struct {
	server  *http.Server
	logger  *slog.Logger
	config  *config.Config
	session *Session
	metrics *metrics.Metrics

	upgrader websocket.Upgrader

	// Server state
	startTime time.Time
	mu        sync.RWMutex
}

// NewHTTPServer creates a new HTTP API server
func NewHTTPServer(cfg config.HTTPConfig, logger *slog.Logger,
	appConfig *config.Config, session *Session, m *metrics.Metrics) *HTTPServer {

	h := &HTTPServer{
		logger:    logger,
		config:    appConfig,
		session:   session,
		metrics:   m,
		startTime: time.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	// Create HTTP server with routes
	mux := http.NewServeMux()
	h.setupRoutes(mux)

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Minute, // video uploads and export runs are slow
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))

	mux.HandleFunc("/project/video", h.withMetrics("/project/video", h.handleLoadVideo))
	mux.HandleFunc("/project/analyze", h.withMetrics("/project/analyze", h.handleAnalyze))
	mux.HandleFunc("/project/reset", h.withMetrics("/project/reset", h.handleReset))

	mux.HandleFunc("/segments", h.withMetrics("/segments", h.handleSegments))
	mux.HandleFunc("/segments/", h.withMetrics("/segments/{id}", h.handleSegmentAction))

	mux.HandleFunc("/playback/toggle", h.withMetrics("/playback/toggle", h.handlePlaybackToggle))
	mux.HandleFunc("/playback/stop", h.withMetrics("/playback/stop", h.handlePlaybackStop))
	mux.HandleFunc("/suppression/volume", h.withMetrics("/suppression/volume", h.handleVolume))

	mux.HandleFunc("/export", h.withMetrics("/export", h.handleExport))

	// Live monitor stream (no metrics wrapper, long-lived connection)
	mux.HandleFunc("/ws/monitor", h.handleMonitor)

	// Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: 200}
		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		statusCode := fmt.Sprintf("%d", ww.statusCode)

		h.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP API server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")

	h.session.Monitor().CloseAll()
	return h.server.Shutdown(ctx)
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
		"service": map[string]interface{}{
			"name":    "redub",
			"version": "1.0.0",
		},
		"session": map[string]interface{}{
			"video_duration":    h.session.VideoDuration(),
			"segments":          len(h.session.Project().Segments()),
			"playback_state":    h.session.PlaybackState().String(),
			"monitor_listeners": h.session.Monitor().ListenerCount(),
		},
	}

	writeJSON(w, http.StatusOK, health)
}

// handleLoadVideo implements POST /project/video
func (h *HTTPServer) handleLoadVideo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		http.Error(w, "Request must carry a video path", http.StatusBadRequest)
		return
	}

	if err := h.session.LoadVideo(r.Context(), req.Path); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"path":     req.Path,
		"duration": h.session.VideoDuration(),
	})
}

// handleAnalyze implements POST /project/analyze: a multipart upload
// of the video plus language fields
func (h *HTTPServer) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "Invalid multipart upload", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("video")
	if err != nil {
		http.Error(w, "Missing video file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	videoData, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Failed to read upload", http.StatusBadRequest)
		return
	}

	count, err := h.session.Analyze(r.Context(), &analysis.Request{
		VideoData:      videoData,
		MIMEType:       header.Header.Get("Content-Type"),
		SourceLanguage: r.FormValue("source_language"),
		TargetLanguage: r.FormValue("target_language"),
		Dialect:        r.FormValue("dialect"),
		Style:          r.FormValue("style"),
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"segments": count})
}

// handleReset implements POST /project/reset
func (h *HTTPServer) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.session.Reset()
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "reset"})
}

// handleSegments implements GET /segments
func (h *HTTPServer) handleSegments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	store := h.session.Project().Store()
	segments := h.session.Project().Segments()

	type segmentInfo struct {
		ID             string  `json:"id"`
		StartTime      float64 `json:"start_time"`
		EndTime        float64 `json:"end_time"`
		OriginalText   string  `json:"original_text"`
		TranslatedText string  `json:"translated_text"`
		SpeakerLabel   string  `json:"speaker_label"`
		Synthesized    bool    `json:"synthesized"`
		Synthesizing   bool    `json:"synthesizing"`
	}

	infos := make([]segmentInfo, 0, len(segments))
	for _, seg := range segments {
		infos = append(infos, segmentInfo{
			ID:             seg.ID,
			StartTime:      seg.StartTime,
			EndTime:        seg.EndTime,
			OriginalText:   seg.OriginalText,
			TranslatedText: seg.Translation(),
			SpeakerLabel:   seg.SpeakerLabel,
			Synthesized:    store.Has(seg.ID),
			Synthesizing:   seg.IsSynthesizing(),
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total":    len(infos),
		"segments": infos,
	})
}

// handleSegmentAction dispatches /segments/{id}/translation,
// /segments/{id}/synthesize and /segments/{id}/preview
func (h *HTTPServer) handleSegmentAction(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/segments/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" {
		http.Error(w, "Segment id and action required", http.StatusBadRequest)
		return
	}
	id, action := parts[0], parts[1]

	switch action {
	case "translation":
		if r.Method != http.MethodPut {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		if err := h.session.Project().SetTranslation(id, req.Text); err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"id": id})

	case "synthesize":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		if err := h.session.SynthesizeSegment(r.Context(), id); err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "synthesized": true})

	case "preview":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		if err := h.session.PreviewSegment(id); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "state": h.session.PlaybackState().String()})

	default:
		http.Error(w, "Unknown segment action", http.StatusNotFound)
	}
}

// handlePlaybackToggle implements POST /playback/toggle
func (h *HTTPServer) handlePlaybackToggle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	state, err := h.session.TogglePlayAll()
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"state": state.String()})
}

// handlePlaybackStop implements POST /playback/stop
func (h *HTTPServer) handlePlaybackStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.session.StopPlayback()
	writeJSON(w, http.StatusOK, map[string]interface{}{"state": h.session.PlaybackState().String()})
}

// handleVolume implements POST /suppression/volume
func (h *HTTPServer) handleVolume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Volume *float64 `json:"volume"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Volume == nil {
		http.Error(w, "Request must carry a volume", http.StatusBadRequest)
		return
	}

	if err := h.session.SetBackgroundVolume(*req.Volume); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"volume": *req.Volume})
}

// handleExport implements POST /export
func (h *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	result, err := h.session.Export(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"path":         result.Path,
		"timeline_end": result.TimelineEnd,
		"synthesized":  result.Synthesized,
		"failed":       result.Failed,
		"elapsed":      result.Elapsed.String(),
	})
}

// handleMonitor upgrades to a WebSocket carrying the live monitor mix
// as 16-bit little-endian PCM blocks
func (h *HTTPServer) handleMonitor(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Monitor upgrade failed", slog.String("error", err.Error()))
		return
	}
	h.session.Monitor().Add(conn)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
