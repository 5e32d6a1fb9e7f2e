package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hasaa-we/redub/internal/sched"
	"github.com/hasaa-we/redub/internal/segment"
	"github.com/hasaa-we/redub/internal/transport"
)

// TailMargin is added to the dub tail wait so the recorder captures the
// final clip's last samples before shutdown.
const TailMargin = 0.2

// ErrCaptureUnsupported means the runtime cannot capture a combined
// video and audio stream; export is impossible until the environment
// changes, but the session itself stays intact.
var ErrCaptureUnsupported = errors.New("combined stream capture is not supported in this runtime")

// ErrExportInProgress rejects a second export while one is running.
var ErrExportInProgress = errors.New("an export is already in progress")

// State is the export pipeline phase.
type State int

const (
	StateIdle State = iota
	StateEnsuringSynthesis
	StateScheduling
	StateRecording
	StateFinalizing
	StateComplete
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateEnsuringSynthesis:
		return "ensuring-synthesis"
	case StateScheduling:
		return "scheduling"
	case StateRecording:
		return "recording"
	case StateFinalizing:
		return "finalizing"
	case StateComplete:
		return "complete"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Engine is the mix-bus control surface the export pass needs.
type Engine interface {
	StopAll()
	SetMonitorMuted(muted bool)
}

// Timeline schedules the full dub pass and reports where it ends.
type Timeline interface {
	Run(segments []*segment.Segment, anchor float64) sched.Result
}

// Synthesizer produces and stores audio for one segment.
type Synthesizer interface {
	Synthesize(ctx context.Context, seg *segment.Segment) error
}

// Recorder captures the combined video and mixed-audio stream.
// Supported must be checked before Start; an unsupported recorder is a
// fatal export condition.
type Recorder interface {
	Supported() bool
	Start(ctx context.Context) error
	Stop() (path string, err error)
	Abort()
}

// Result describes a finished export.
type Result struct {
	Path        string
	TimelineEnd float64
	Synthesized int
	Failed      int
	Elapsed     time.Duration
}

// Controller runs export passes. It is safe for concurrent state
// inspection; only one export may run at a time.
type Controller struct {
	engine    Engine
	scheduler Timeline
	synth     Synthesizer
	recorder  Recorder
	transport transport.Transport
	store     *segment.Store
	logger    *slog.Logger

	state State
	mu    sync.Mutex
}

// New creates an idle export controller.
func New(eng Engine, scheduler Timeline, synth Synthesizer, rec Recorder,
	tr transport.Transport, store *segment.Store, logger *slog.Logger) *Controller {
	return &Controller{
		engine:    eng,
		scheduler: scheduler,
		synth:     synth,
		recorder:  rec,
		transport: tr,
		store:     store,
		logger:    logger,
		state:     StateIdle,
	}
}

// State returns the current pipeline phase.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Export renders the dubbed video and returns the output path. On any
// failure the controller lands in the error state with the session
// untouched; a later call starts a fresh pass.
func (c *Controller) Export(ctx context.Context, segments []*segment.Segment) (*Result, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}
	start := time.Now()

	result, err := c.run(ctx, segments)
	if err != nil {
		c.fail(err)
		return nil, err
	}

	result.Elapsed = time.Since(start)
	c.setState(StateComplete)
	c.logger.Info("Export complete",
		slog.String("path", result.Path),
		slog.Float64("timeline_end", result.TimelineEnd),
		slog.Duration("elapsed", result.Elapsed))
	return result, nil
}

func (c *Controller) run(ctx context.Context, segments []*segment.Segment) (*Result, error) {
	result := &Result{}

	// Synthesize missing segments one at a time. A failed segment is
	// logged and exported as a gap rather than aborting the pass.
	c.setState(StateEnsuringSynthesis)
	for _, seg := range segments {
		if c.store.Has(seg.ID) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("export cancelled: %w", err)
		}
		if err := c.synth.Synthesize(ctx, seg); err != nil {
			result.Failed++
			c.logger.Warn("Segment synthesis failed, exporting with a gap",
				slog.String("segment_id", seg.ID),
				slog.String("error", err.Error()))
			continue
		}
		result.Synthesized++
	}

	c.setState(StateScheduling)
	c.engine.StopAll()
	c.engine.SetMonitorMuted(true)
	defer c.engine.SetMonitorMuted(false)

	c.transport.Seek(0)
	pass := c.scheduler.Run(segments, 0)
	result.TimelineEnd = pass.TimelineEnd

	// Probe capture before anything is written.
	if !c.recorder.Supported() {
		c.engine.StopAll()
		return nil, ErrCaptureUnsupported
	}

	c.setState(StateRecording)
	if err := c.recorder.Start(ctx); err != nil {
		c.engine.StopAll()
		return nil, fmt.Errorf("failed to start recorder: %w", err)
	}
	if err := c.transport.Play(); err != nil {
		c.recorder.Abort()
		c.engine.StopAll()
		return nil, fmt.Errorf("failed to start transport: %w", err)
	}

	select {
	case <-c.transport.Ended():
	case <-ctx.Done():
		c.recorder.Abort()
		c.engine.StopAll()
		c.transport.Pause()
		return nil, fmt.Errorf("export cancelled: %w", ctx.Err())
	}

	// The dub tail may run past the end of the video; keep capturing
	// until it has fully played out.
	c.setState(StateFinalizing)
	if wait := tailWait(result.TimelineEnd, c.transport.Duration()); wait > 0 {
		c.logger.Debug("Waiting for dub tail", slog.Float64("seconds", wait))
		select {
		case <-time.After(time.Duration(wait * float64(time.Second))):
		case <-ctx.Done():
			c.recorder.Abort()
			c.engine.StopAll()
			c.transport.Pause()
			return nil, fmt.Errorf("export cancelled: %w", ctx.Err())
		}
	}

	c.engine.StopAll()
	path, err := c.recorder.Stop()
	if err != nil {
		return nil, fmt.Errorf("failed to finalize recording: %w", err)
	}
	result.Path = path
	return result, nil
}

// tailWait is how long the recorder must stay open after the video
// ends: the dub tail past the video's duration, plus a safety margin.
// Zero when the dub fits inside the video.
func tailWait(timelineEnd, videoDuration float64) float64 {
	if timelineEnd <= videoDuration {
		return 0
	}
	return (timelineEnd - videoDuration) + TailMargin
}

func (c *Controller) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateIdle, StateComplete, StateError:
		c.state = StateEnsuringSynthesis
		return nil
	default:
		return ErrExportInProgress
	}
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Controller) fail(err error) {
	c.setState(StateError)
	c.logger.Error("Export failed", slog.String("error", err.Error()))
}
