package transport

import (
	"testing"
	"time"
)

func TestSimStartsPaused(t *testing.T) {
	tr := NewSim(10.0)

	if tr.Playing() {
		t.Error("New transport should be paused")
	}
	if tr.Position() != 0 {
		t.Errorf("Expected position 0, got %f", tr.Position())
	}
	if tr.Duration() != 10.0 {
		t.Errorf("Expected duration 10.0, got %f", tr.Duration())
	}
}

func TestSimPlayAdvances(t *testing.T) {
	tr := NewSim(10.0)

	if err := tr.Play(); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if !tr.Playing() {
		t.Error("Transport should report playing")
	}

	time.Sleep(60 * time.Millisecond)

	pos := tr.Position()
	if pos < 0.03 || pos > 0.5 {
		t.Errorf("Expected playhead near 0.06, got %f", pos)
	}
}

func TestSimPauseFreezes(t *testing.T) {
	tr := NewSim(10.0)
	tr.Play()
	time.Sleep(30 * time.Millisecond)
	tr.Pause()

	frozen := tr.Position()
	time.Sleep(30 * time.Millisecond)

	if tr.Position() != frozen {
		t.Errorf("Paused playhead moved: %f -> %f", frozen, tr.Position())
	}
	if tr.Playing() {
		t.Error("Transport should report paused")
	}
}

func TestSimSeekClamps(t *testing.T) {
	tr := NewSim(10.0)

	tr.Seek(-5.0)
	if tr.Position() != 0 {
		t.Errorf("Seek below zero should clamp to 0, got %f", tr.Position())
	}

	tr.Seek(99.0)
	if tr.Position() != 10.0 {
		t.Errorf("Seek past end should clamp to duration, got %f", tr.Position())
	}

	tr.Seek(4.5)
	if tr.Position() != 4.5 {
		t.Errorf("Expected position 4.5, got %f", tr.Position())
	}
}

func TestSimEndedSignal(t *testing.T) {
	tr := NewSim(0.05)
	tr.Play()

	select {
	case <-tr.Ended():
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for end of media")
	}

	if tr.Playing() {
		t.Error("Transport should be paused after the end")
	}
	if tr.Position() != tr.Duration() {
		t.Errorf("Playhead should rest at the end, got %f", tr.Position())
	}
}

func TestSimSeekWhilePlayingReschedules(t *testing.T) {
	tr := NewSim(60.0)
	tr.Play()
	tr.Seek(59.95)

	select {
	case <-tr.Ended():
	case <-time.After(2 * time.Second):
		t.Fatal("Seek near the end should finish promptly")
	}
}

func TestSimEndedNotCarriedAcrossRuns(t *testing.T) {
	tr := NewSim(0.05)
	tr.Play()

	// Let the first run finish with nobody consuming the end event.
	deadline := time.Now().Add(2 * time.Second)
	for tr.Playing() {
		if time.Now().After(deadline) {
			t.Fatal("First run never finished")
		}
		time.Sleep(5 * time.Millisecond)
	}

	tr.Seek(0)
	tr.Play()

	select {
	case <-tr.Ended():
		t.Fatal("End event from the previous run must not satisfy the new run")
	default:
	}

	select {
	case <-tr.Ended():
	case <-time.After(2 * time.Second):
		t.Fatal("New run never delivered its own end event")
	}
}

func TestSimReplayAfterEnd(t *testing.T) {
	tr := NewSim(0.03)
	tr.Play()
	<-tr.Ended()

	tr.Play()
	if !tr.Playing() {
		t.Error("Play after end should restart")
	}
	if tr.Position() >= tr.Duration() {
		t.Errorf("Restart should rewind, got %f", tr.Position())
	}
	tr.Pause()
}
