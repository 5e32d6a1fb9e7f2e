package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hasaa-we/redub/internal/audio"
	"github.com/hasaa-we/redub/internal/metrics"
)

// PreviewHandle is the reserved playback handle used for single-segment
// preview. At most one voice with this handle exists at a time; scheduling a
// new preview replaces the old one.
const PreviewHandle = "preview"

// DefaultQuantum is the number of frames processed per engine block.
const DefaultQuantum = 256

// Sink consumes blocks of mono mix output. Implementations must not retain
// the slice past the call.
type Sink interface {
	Write(samples []float64)
}

// ProgramSource supplies the original program audio in per-channel blocks.
// A short or nil result means the program has run out; the engine keeps
// running on silence so scheduled voices still play.
type ProgramSource interface {
	ReadStereo(frames int) ([][]float64, error)
	Close() error
}

// voice is one in-flight playback instance on the mix bus.
type voice struct {
	handle     string
	buf        *audio.Buffer
	startFrame int64
	stopped    bool
}

// Engine owns the suppression network, the mix bus, the engine clock, and
// the active playback set. Create/attach/teardown form its lifecycle; there
// are no ambient globals. Only the control side calls the mutating methods;
// the pump goroutine only reads under the engine lock.
type Engine struct {
	sampleRate int
	quantum    int
	logger     *slog.Logger
	metrics    *metrics.Metrics

	suppressor *SuppressionNetwork
	source     ProgramSource

	monitor      Sink
	capture      Sink
	monitorMuted bool

	voices map[string]*voice
	frames atomic.Int64

	pumpCancel context.CancelFunc
	pumpDone   chan struct{}

	mu sync.Mutex
}

// Config contains engine construction parameters. Metrics may be nil,
// which disables instrumentation.
type Config struct {
	SampleRate int
	Quantum    int
	Metrics    *metrics.Metrics
}

// New builds an engine with its full suppression topology. The monitor and
// capture sinks may be nil until attached.
func New(cfg Config, logger *slog.Logger) (*Engine, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", cfg.SampleRate)
	}
	if cfg.Quantum <= 0 {
		cfg.Quantum = DefaultQuantum
	}

	suppressor, err := NewSuppressionNetwork(cfg.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("failed to build suppression network: %w", err)
	}

	return &Engine{
		sampleRate: cfg.SampleRate,
		quantum:    cfg.Quantum,
		logger:     logger,
		metrics:    cfg.Metrics,
		suppressor: suppressor,
		voices:     make(map[string]*voice),
	}, nil
}

// SampleRate returns the engine sample rate in Hz.
func (e *Engine) SampleRate() int {
	return e.sampleRate
}

// Suppression returns the suppression network for parameter changes.
func (e *Engine) Suppression() *SuppressionNetwork {
	return e.suppressor
}

// Now returns the engine clock in seconds. The clock advances with processed
// frames, independent of the control side's scheduling.
func (e *Engine) Now() float64 {
	return float64(e.frames.Load()) / float64(e.sampleRate)
}

// AttachProgram connects the original program audio. Passing nil detaches;
// the engine then mixes scheduled voices over silence, which is the degraded
// fallback when the video's audio track cannot be opened.
func (e *Engine) AttachProgram(src ProgramSource) {
	e.mu.Lock()
	old := e.source
	e.source = src
	e.suppressor.Reset()
	e.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			e.logger.Warn("Failed to close previous program source",
				slog.String("error", err.Error()),
			)
		}
	}
}

// SetSinks attaches the monitor and capture sinks. Either may be nil.
func (e *Engine) SetSinks(monitor, capture Sink) {
	e.mu.Lock()
	e.monitor = monitor
	e.capture = capture
	e.mu.Unlock()
}

// SetMonitorMuted mutes or unmutes the monitor sink. The capture sink is
// unaffected, so export keeps recording while the speakers stay quiet.
func (e *Engine) SetMonitorMuted(muted bool) {
	e.mu.Lock()
	e.monitorMuted = muted
	e.mu.Unlock()
}

// PlayBuffer enqueues a buffer on the mix bus starting at the given absolute
// engine-clock time in seconds. A start time already in the past begins
// playback immediately. Scheduling onto an existing handle replaces that
// voice.
func (e *Engine) PlayBuffer(handle string, buf *audio.Buffer, when float64) error {
	if buf == nil {
		return fmt.Errorf("cannot play nil buffer")
	}
	if handle == "" {
		return fmt.Errorf("playback handle cannot be empty")
	}

	startFrame := int64(math.Round(when * float64(e.sampleRate)))
	if now := e.frames.Load(); startFrame < now {
		startFrame = now
	}

	e.mu.Lock()
	e.voices[handle] = &voice{
		handle:     handle,
		buf:        buf,
		startFrame: startFrame,
	}
	count := len(e.voices)
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.RecordVoiceScheduled()
	}

	e.logger.Debug("Voice scheduled",
		slog.String("handle", handle),
		slog.Float64("start", when),
		slog.Float64("duration", buf.Duration()),
		slog.Int("active_voices", count),
	)

	return nil
}

// StopAll requests immediate stop on every active voice and clears the
// playback set. Voices that already ended are treated as a no-op.
func (e *Engine) StopAll() {
	e.mu.Lock()
	stopped := len(e.voices)
	for _, v := range e.voices {
		v.stopped = true
	}
	e.voices = make(map[string]*voice)
	e.mu.Unlock()

	if stopped > 0 {
		if e.metrics != nil {
			e.metrics.RecordVoicesStopped(stopped)
		}
		e.logger.Debug("Stopped all voices", slog.Int("count", stopped))
	}
}

// ActiveVoices returns the number of in-flight playback instances.
func (e *Engine) ActiveVoices() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.voices)
}

// ProcessBlock advances the engine by up to quantum frames: pull program
// audio, run suppression, mix due voices, fan out to sinks. It is exported
// for deterministic, clock-driven tests; live playback drives it from the
// pump goroutine.
func (e *Engine) ProcessBlock() {
	e.mu.Lock()
	source := e.source
	e.mu.Unlock()

	var input [][]float64
	if source != nil {
		block, err := source.ReadStereo(e.quantum)
		if err == nil {
			input = block
		}
	}

	var mix []float64
	if len(input) > 0 && len(input[0]) > 0 {
		mix = e.suppressor.Process(input)
	} else {
		mix = make([]float64, e.quantum)
	}

	blockStart := e.frames.Load()
	e.mixVoices(mix, blockStart)
	e.frames.Add(int64(len(mix)))

	e.mu.Lock()
	monitor := e.monitor
	capture := e.capture
	muted := e.monitorMuted
	active := len(e.voices)
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.RecordBlockProcessed()
		e.metrics.SetActiveVoices(active)
	}

	if monitor != nil && !muted {
		monitor.Write(mix)
	}
	if capture != nil {
		capture.Write(mix)
	}
}

// mixVoices adds every due voice into the block, resampling each clip from
// its native rate with linear interpolation. Finished voices are removed.
func (e *Engine) mixVoices(mix []float64, blockStart int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for handle, v := range e.voices {
		if v.stopped {
			delete(e.voices, handle)
			continue
		}

		src := v.buf.Channel(0)
		ratio := float64(v.buf.SampleRate()) / float64(e.sampleRate)
		done := false

		for i := range mix {
			frame := blockStart + int64(i)
			if frame < v.startFrame {
				continue
			}

			pos := float64(frame-v.startFrame) * ratio
			idx := int(pos)
			if idx >= len(src) {
				done = true
				break
			}

			// The last source sample has no interpolation partner; hold
			// it for the final fraction so one-sample clips still play.
			next := src[idx]
			if idx+1 < len(src) {
				next = src[idx+1]
			}

			frac := pos - float64(idx)
			mix[i] += src[idx]*(1-frac) + next*frac
		}

		if done {
			delete(e.voices, handle)
		}
	}
}

// StartPump launches the real-time processing goroutine. It is idempotent
// per engine lifecycle; call StopPump before restarting.
func (e *Engine) StartPump(ctx context.Context) {
	pumpCtx, cancel := context.WithCancel(ctx)
	e.pumpCancel = cancel
	e.pumpDone = make(chan struct{})

	interval := time.Duration(float64(e.quantum) / float64(e.sampleRate) * float64(time.Second))

	go func() {
		defer close(e.pumpDone)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		e.logger.Info("Engine pump started",
			slog.Int("sample_rate", e.sampleRate),
			slog.Int("quantum", e.quantum),
		)

		for {
			select {
			case <-pumpCtx.Done():
				e.logger.Info("Engine pump stopping")
				return
			case <-ticker.C:
				e.ProcessBlock()
			}
		}
	}()
}

// StopPump stops the processing goroutine and waits for it to exit.
func (e *Engine) StopPump() {
	if e.pumpCancel == nil {
		return
	}
	e.pumpCancel()
	<-e.pumpDone
	e.pumpCancel = nil
}

// Teardown stops the pump, cancels all voices, and releases the program
// source. The engine must not be reused afterwards; a project rebuild
// creates a fresh instance.
func (e *Engine) Teardown() {
	e.StopPump()
	e.StopAll()
	e.AttachProgram(nil)
}
