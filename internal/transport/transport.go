package transport

import (
	"sync"
	"time"
)

// Transport is the video playhead the session follows. Position and
// Duration are in seconds. Ended delivers one value when the run
// started by the most recent Play reaches the end of the media;
// unconsumed events from earlier runs are never delivered.
type Transport interface {
	Play() error
	Pause()
	Seek(position float64)
	Position() float64
	Duration() float64
	Playing() bool
	Ended() <-chan struct{}
}

// SimTransport simulates a media element against the wall clock. While
// playing, Position advances in real time from the last play or seek
// point and clamps at Duration.
type SimTransport struct {
	duration float64

	base      float64   // position at the last play/pause/seek
	startedAt time.Time // wall time Play was called, valid while playing
	playing   bool
	endTimer  *time.Timer
	ended     chan struct{}
	now       func() time.Time
	mu        sync.Mutex
}

// NewSim creates a paused transport at position zero for a media file
// of the given duration in seconds.
func NewSim(duration float64) *SimTransport {
	if duration < 0 {
		duration = 0
	}
	return &SimTransport{
		duration: duration,
		ended:    make(chan struct{}, 1),
		now:      time.Now,
	}
}

// Play starts or resumes playback. Playing past the end restarts from
// the beginning, matching media element semantics.
func (t *SimTransport) Play() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.playing {
		return nil
	}
	if t.base >= t.duration {
		t.base = 0
	}

	// Each run gets a fresh end channel. A token from a previous run
	// that nobody consumed must not satisfy a waiter on this run.
	t.ended = make(chan struct{}, 1)
	t.playing = true
	t.startedAt = t.now()

	remaining := time.Duration((t.duration - t.base) * float64(time.Second))
	t.endTimer = time.AfterFunc(remaining, t.finish)
	return nil
}

// Pause freezes the playhead at its current position.
func (t *SimTransport) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.playing {
		return
	}

	t.base = t.positionLocked()
	t.playing = false
	t.stopTimerLocked()
}

// Seek moves the playhead, clamped to [0, Duration]. Playback state is
// preserved across the seek.
func (t *SimTransport) Seek(position float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if position < 0 {
		position = 0
	}
	if position > t.duration {
		position = t.duration
	}

	t.base = position
	if t.playing {
		t.startedAt = t.now()
		t.stopTimerLocked()
		remaining := time.Duration((t.duration - t.base) * float64(time.Second))
		t.endTimer = time.AfterFunc(remaining, t.finish)
	}
}

// Position returns the current playhead in seconds.
func (t *SimTransport) Position() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.positionLocked()
}

// Duration returns the media length in seconds.
func (t *SimTransport) Duration() float64 {
	return t.duration
}

// Playing reports whether the playhead is advancing.
func (t *SimTransport) Playing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.playing
}

// Ended delivers one value when the current run reaches the end. Call
// it after Play; the channel belongs to the run Play started.
func (t *SimTransport) Ended() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ended
}

func (t *SimTransport) positionLocked() float64 {
	if !t.playing {
		return t.base
	}
	pos := t.base + t.now().Sub(t.startedAt).Seconds()
	if pos > t.duration {
		pos = t.duration
	}
	return pos
}

func (t *SimTransport) stopTimerLocked() {
	if t.endTimer != nil {
		t.endTimer.Stop()
		t.endTimer = nil
	}
}

func (t *SimTransport) finish() {
	t.mu.Lock()
	t.base = t.duration
	t.playing = false
	t.endTimer = nil
	ended := t.ended
	t.mu.Unlock()

	select {
	case ended <- struct{}{}:
	default:
	}
}
