package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/hasaa-we/redub/internal/analysis"
	"github.com/hasaa-we/redub/internal/config"
	"github.com/hasaa-we/redub/internal/engine"
	"github.com/hasaa-we/redub/internal/export"
	"github.com/hasaa-we/redub/internal/media"
	"github.com/hasaa-we/redub/internal/metrics"
	"github.com/hasaa-we/redub/internal/playback"
	"github.com/hasaa-we/redub/internal/sched"
	"github.com/hasaa-we/redub/internal/segment"
	"github.com/hasaa-we/redub/internal/synthesis"
	"github.com/hasaa-we/redub/internal/transport"
)

// ErrNoVideo is returned for operations that need a loaded video.
var ErrNoVideo = errors.New("no video loaded")

// Session is the one dubbing project the service works on. It owns the
// audio engine lifecycle: the engine and its suppression network are
// built when a video is loaded, replaced only when a new video
// replaces the old one, and torn down on reset.
type Session struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	project  *segment.Project
	synth    *synthesis.Service
	analyzer *analysis.Client
	monitor  *MonitorHub

	videoPath     string
	videoDuration float64

	engine    *engine.Engine
	transport *transport.SimTransport
	scheduler *sched.Scheduler
	playback  *playback.Controller

	exporting bool
	mu        sync.Mutex
}

// NewSession builds an empty session. No engine exists until a video
// is loaded.
func NewSession(cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) (*Session, error) {
	project := segment.NewProject()

	synthClient, err := synthesis.NewClient(synthesis.Config{
		Endpoint:      cfg.Synthesis.Endpoint,
		APIKey:        cfg.Synthesis.APIKey,
		Timeout:       cfg.Synthesis.GetTimeoutDuration(),
		MaxRetries:    cfg.Synthesis.MaxRetries,
		MaxConcurrent: cfg.Synthesis.MaxConcurrent,
		Metrics:       m,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create synthesis client: %w", err)
	}

	analyzer, err := analysis.NewClient(analysis.Config{
		Endpoint: cfg.Analysis.Endpoint,
		APIKey:   cfg.Analysis.APIKey,
		Timeout:  cfg.Analysis.GetTimeoutDuration(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create analysis client: %w", err)
	}

	return &Session{
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		project:  project,
		synth:    synthesis.NewService(synthClient, project.Store(), m, logger),
		analyzer: analyzer,
		monitor:  NewMonitorHub(logger),
	}, nil
}

// Monitor returns the WebSocket monitor hub.
func (s *Session) Monitor() *MonitorHub {
	return s.monitor
}

// Project returns the segment project.
func (s *Session) Project() *segment.Project {
	return s.project
}

// Synthesis returns the synthesis service.
func (s *Session) Synthesis() *synthesis.Service {
	return s.synth
}

// LoadVideo opens a video file as the dubbing source: probes its
// duration, rebuilds the engine and suppression network, and attaches
// the program audio. A video without an audio track loads with a
// silent program and a warning; dub clips still play.
func (s *Session) LoadVideo(ctx context.Context, path string) error {
	duration, err := media.ProbeDuration(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to load video: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.exporting {
		return export.ErrExportInProgress
	}

	// Replace any previous engine instance wholesale.
	if s.engine != nil {
		s.playback.Stop()
		s.engine.Teardown()
	}

	eng, err := engine.New(engine.Config{
		SampleRate: s.cfg.Engine.SampleRate,
		Quantum:    s.cfg.Engine.Quantum,
		Metrics:    s.metrics,
	}, s.logger)
	if err != nil {
		return fmt.Errorf("failed to build engine: %w", err)
	}

	source, err := media.OpenSource(ctx, path, s.cfg.Engine.SampleRate, s.logger)
	if err != nil {
		if !errors.Is(err, media.ErrNoAudioTrack) {
			return fmt.Errorf("failed to open program audio: %w", err)
		}
		s.logger.Warn("Video has no audio track, dubbing over silence",
			slog.String("path", path))
	} else {
		eng.AttachProgram(source)
	}

	eng.SetSinks(s.monitor, nil)
	eng.StartPump(ctx)

	s.engine = eng
	s.videoPath = path
	s.videoDuration = duration
	s.transport = transport.NewSim(duration)
	s.scheduler = sched.New(eng, s.project.Store(), s.logger)
	s.playback = playback.New(eng, s.scheduler, s.transport, s.logger)

	s.logger.Info("Video loaded",
		slog.String("path", path),
		slog.Float64("duration", duration))
	return nil
}

// VideoDuration returns the loaded video's duration, or zero.
func (s *Session) VideoDuration() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.videoDuration
}

// Analyze uploads the video bytes to the analysis service and replaces
// the project's segments with the result.
func (s *Session) Analyze(ctx context.Context, req *analysis.Request) (int, error) {
	segments, err := s.analyzer.Analyze(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("analysis failed: %w", err)
	}

	if err := s.project.SetSegments(segments); err != nil {
		return 0, fmt.Errorf("analysis returned invalid segments: %w", err)
	}

	s.logger.Info("Project segments replaced", slog.Int("count", len(segments)))
	return len(segments), nil
}

// SynthesizeSegment produces audio for one segment by id.
func (s *Session) SynthesizeSegment(ctx context.Context, id string) error {
	seg, err := s.project.Get(id)
	if err != nil {
		return err
	}
	return s.synth.Synthesize(ctx, seg)
}

// SetBackgroundVolume adjusts the suppression network's input gain.
func (s *Session) SetBackgroundVolume(v float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.engine == nil {
		return ErrNoVideo
	}
	s.engine.Suppression().SetBackgroundVolume(v)
	return nil
}

// PreviewSegment plays one segment in place.
func (s *Session) PreviewSegment(id string) error {
	s.mu.Lock()
	pb := s.playback
	s.mu.Unlock()

	if pb == nil {
		return ErrNoVideo
	}

	seg, err := s.project.Get(id)
	if err != nil {
		return err
	}

	if err := pb.PlaySegment(seg); err != nil {
		return err
	}
	s.metrics.RecordPreviewStarted()
	return nil
}

// TogglePlayAll starts or stops full-timeline playback and returns the
// resulting state.
func (s *Session) TogglePlayAll() (playback.State, error) {
	s.mu.Lock()
	pb := s.playback
	s.mu.Unlock()

	if pb == nil {
		return playback.StateStopped, ErrNoVideo
	}

	state, pass, err := pb.TogglePlayAll(s.project.Segments())
	if err == nil && state == playback.StatePlayingFull {
		s.metrics.RecordFullPass(pass.Skipped)
	}
	return state, err
}

// StopPlayback cancels any preview.
func (s *Session) StopPlayback() {
	s.mu.Lock()
	pb := s.playback
	s.mu.Unlock()

	if pb != nil {
		pb.Stop()
	}
}

// PlaybackState returns the live-preview state.
func (s *Session) PlaybackState() playback.State {
	s.mu.Lock()
	pb := s.playback
	s.mu.Unlock()

	if pb == nil {
		return playback.StateStopped
	}
	return pb.State()
}

// Export renders the dubbed video into the configured output
// directory and returns the result.
func (s *Session) Export(ctx context.Context) (*export.Result, error) {
	s.mu.Lock()
	if s.engine == nil {
		s.mu.Unlock()
		return nil, ErrNoVideo
	}
	if s.exporting {
		s.mu.Unlock()
		return nil, export.ErrExportInProgress
	}
	s.exporting = true

	eng := s.engine
	tr := s.transport
	scheduler := s.scheduler
	pb := s.playback
	videoPath := s.videoPath
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.exporting = false
		s.mu.Unlock()
	}()

	pb.Stop()

	outputPath := filepath.Join(s.cfg.Export.OutputDir, uuid.New().String()+".webm")
	recorder := media.NewRecorder(videoPath, outputPath, eng.SampleRate(), s.logger)

	// Route the mix into the recorder for the duration of the pass.
	eng.SetSinks(s.monitor, recorder.Sink())
	defer eng.SetSinks(s.monitor, nil)

	controller := export.New(eng, scheduler, s.synth, recorder, tr, s.project.Store(), s.logger)

	s.metrics.RecordExportStarted()
	result, err := controller.Export(ctx, s.project.Segments())
	if err != nil {
		s.metrics.RecordExportFailed()
		return nil, err
	}

	s.metrics.RecordExportCompleted(result.Elapsed.Seconds())
	return result, nil
}

// Reset tears down the engine and destroys all segments and buffers.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.playback != nil {
		s.playback.Stop()
	}
	if s.engine != nil {
		s.engine.Teardown()
	}

	s.engine = nil
	s.transport = nil
	s.scheduler = nil
	s.playback = nil
	s.videoPath = ""
	s.videoDuration = 0
	s.project.Reset()

	s.logger.Info("Session reset")
}
