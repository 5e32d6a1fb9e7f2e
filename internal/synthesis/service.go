package synthesis

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hasaa-we/redub/internal/audio"
	"github.com/hasaa-we/redub/internal/metrics"
	"github.com/hasaa-we/redub/internal/segment"
)

// DefaultVoice is used for segments whose speaker has no assigned
// voice.
const DefaultVoice = "neutral-1"

// Voice is the synthesis backend the service calls.
type Voice interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// Service produces the playable buffer for a segment: call the voice
// backend, decode the WAV payload, trim silence, store under the
// segment id. Buffers land in completion order, so concurrent calls
// for different segments are fine; a second call for a segment still
// in flight is rejected.
type Service struct {
	client  Voice
	store   *segment.Store
	metrics *metrics.Metrics
	logger  *slog.Logger

	voices map[string]string // speaker label -> voice id
	mu     sync.RWMutex
}

// NewService creates a synthesis service over the given backend and
// buffer store. Metrics may be nil.
func NewService(client Voice, store *segment.Store, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		client:  client,
		store:   store,
		metrics: m,
		logger:  logger,
		voices:  make(map[string]string),
	}
}

// AssignVoice maps a speaker label to a voice id for later synthesis.
func (s *Service) AssignVoice(speakerLabel, voice string) {
	s.mu.Lock()
	s.voices[speakerLabel] = voice
	s.mu.Unlock()
}

// VoiceFor returns the voice assigned to a speaker, or the default.
func (s *Service) VoiceFor(speakerLabel string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if voice, ok := s.voices[speakerLabel]; ok {
		return voice
	}
	return DefaultVoice
}

// Synthesize produces and stores audio for one segment. The segment's
// in-progress flag guards against interleaved synthesis of the same
// id.
func (s *Service) Synthesize(ctx context.Context, seg *segment.Segment) error {
	text := seg.Translation()
	if text == "" {
		return fmt.Errorf("segment %s has no translated text", seg.ID)
	}
	if seg.IsSynthesizing() {
		return fmt.Errorf("segment %s synthesis already in progress", seg.ID)
	}

	seg.SetSynthesizing(true)
	defer seg.SetSynthesizing(false)

	if s.metrics != nil {
		s.metrics.RecordSynthesisRequest()
	}
	start := time.Now()

	voice := s.VoiceFor(seg.SpeakerLabel)
	data, err := s.client.Synthesize(ctx, text, voice)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordSynthesisFailure(time.Since(start).Seconds())
		}
		return fmt.Errorf("failed to synthesize segment %s: %w", seg.ID, err)
	}

	buf, err := audio.DecodeWAVBuffer(data)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordSynthesisFailure(time.Since(start).Seconds())
		}
		return fmt.Errorf("failed to decode audio for segment %s: %w", seg.ID, err)
	}

	// An edit that landed while the request was in flight already
	// invalidated its buffer; storing audio for the old text would
	// resurrect it.
	if seg.Translation() != text {
		return fmt.Errorf("segment %s translation changed during synthesis", seg.ID)
	}

	trimmed := audio.TrimSilence(buf)
	s.store.Put(seg.ID, trimmed)

	if s.metrics != nil {
		s.metrics.RecordSynthesisSuccess(time.Since(start).Seconds(), trimmed.Duration())
	}

	s.logger.Info("Segment synthesized",
		slog.String("segment_id", seg.ID),
		slog.String("voice", voice),
		slog.Float64("duration", trimmed.Duration()),
		slog.Float64("raw_duration", buf.Duration()),
	)
	return nil
}
