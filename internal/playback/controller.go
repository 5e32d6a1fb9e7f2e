package playback

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hasaa-we/redub/internal/engine"
	"github.com/hasaa-we/redub/internal/sched"
	"github.com/hasaa-we/redub/internal/segment"
	"github.com/hasaa-we/redub/internal/transport"
)

// AutoStopPadding is how long a single-segment preview keeps running
// past the clip's own duration before the controller stops itself. The
// slack absorbs scheduling latency and the clip's reverb tail.
const AutoStopPadding = 1500 * time.Millisecond

// State is the controller's playback mode.
type State int

const (
	StateStopped State = iota
	StatePlayingSingle
	StatePlayingFull
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePlayingSingle:
		return "playing-single"
	case StatePlayingFull:
		return "playing-full"
	default:
		return "unknown"
	}
}

// Stopper cancels every in-flight dub clip on the engine.
type Stopper interface {
	StopAll()
}

// Timeline issues the actual playback commands for preview passes.
type Timeline interface {
	Run(segments []*segment.Segment, anchor float64) sched.Result
	ScheduleSingle(handle string, seg *segment.Segment) (float64, bool)
}

// Controller drives live preview: it owns the transition rules between
// stopped, single-segment, and full-timeline playback.
type Controller struct {
	engine    Stopper
	scheduler Timeline
	transport transport.Transport
	logger    *slog.Logger

	state      State
	generation uint64 // invalidates auto-stop timers from superseded previews
	autoStop   *time.Timer

	autoStopPadding time.Duration
	mu              sync.Mutex
}

// New creates a stopped controller.
func New(eng Stopper, scheduler Timeline, tr transport.Transport, logger *slog.Logger) *Controller {
	return &Controller{
		engine:          eng,
		scheduler:       scheduler,
		transport:       tr,
		logger:          logger,
		state:           StateStopped,
		autoStopPadding: AutoStopPadding,
	}
}

// State returns the current playback mode.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// TogglePlayAll starts a full-timeline pass from the beginning, or
// stops the one in progress. Starting rewinds the transport, schedules
// every synthesized segment, and resumes the video. The returned pass
// result is zero when toggling off.
func (c *Controller) TogglePlayAll(segments []*segment.Segment) (State, sched.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StatePlayingFull {
		c.stopLocked()
		return c.state, sched.Result{}, nil
	}

	c.stopLocked()

	c.transport.Seek(0)
	result := c.scheduler.Run(segments, 0)

	if err := c.transport.Play(); err != nil {
		c.engine.StopAll()
		return c.state, sched.Result{}, fmt.Errorf("failed to start transport: %w", err)
	}

	c.state = StatePlayingFull
	c.logger.Info("Full timeline playback started",
		slog.Int("scheduled", result.Scheduled),
		slog.Int("skipped", result.Skipped),
		slog.Float64("timeline_end", result.TimelineEnd))
	return c.state, result, nil
}

// PlaySegment previews one segment in place: the transport seeks to the
// segment's start, the clip plays immediately, and the controller
// returns to stopped on its own once the clip has run its course.
func (c *Controller) PlaySegment(seg *segment.Segment) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()

	duration, ok := c.scheduler.ScheduleSingle(engine.PreviewHandle, seg)
	if !ok {
		return fmt.Errorf("segment %s has no synthesized audio", seg.ID)
	}

	c.transport.Seek(seg.StartTime)
	if err := c.transport.Play(); err != nil {
		c.engine.StopAll()
		return fmt.Errorf("failed to start transport: %w", err)
	}

	c.state = StatePlayingSingle

	gen := c.generation
	wait := time.Duration(duration*float64(time.Second)) + c.autoStopPadding
	c.autoStop = time.AfterFunc(wait, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.generation != gen {
			return
		}
		c.stopLocked()
		c.logger.Debug("Single segment preview finished", slog.String("segment_id", seg.ID))
	})

	c.logger.Info("Single segment preview started",
		slog.String("segment_id", seg.ID),
		slog.Float64("start_time", seg.StartTime),
		slog.Float64("duration", duration))
	return nil
}

// Stop cancels any playback and pauses the transport. Safe to call in
// any state.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

// stopLocked cancels clips, pauses the transport, and invalidates any
// pending auto-stop timer. Callers hold c.mu.
func (c *Controller) stopLocked() {
	c.generation++
	if c.autoStop != nil {
		c.autoStop.Stop()
		c.autoStop = nil
	}

	c.engine.StopAll()
	c.transport.Pause()
	c.state = StateStopped
}
