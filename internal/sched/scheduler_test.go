package sched

import (
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/hasaa-we/redub/internal/audio"
	"github.com/hasaa-we/redub/internal/segment"
)

// fakePlayer records playback commands without a running engine.
type fakePlayer struct {
	now     float64
	started map[string]float64 // handle -> absolute start time
	order   []string
}

func newFakePlayer(now float64) *fakePlayer {
	return &fakePlayer{now: now, started: make(map[string]float64)}
}

func (p *fakePlayer) Now() float64 { return p.now }

func (p *fakePlayer) PlayBuffer(handle string, buf *audio.Buffer, when float64) error {
	p.started[handle] = when
	p.order = append(p.order, handle)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// durationBuffer builds a mono buffer of exactly the given duration.
func durationBuffer(t *testing.T, seconds float64) *audio.Buffer {
	t.Helper()

	frames := int(math.Round(seconds * audio.SynthSampleRate))
	data := make([]float64, frames)
	for i := range data {
		data[i] = 0.5
	}

	buf, err := audio.NewBuffer([][]float64{data}, audio.SynthSampleRate)
	if err != nil {
		t.Fatalf("NewBuffer failed: %v", err)
	}
	return buf
}

func seg(id string, start, end float64) *segment.Segment {
	return &segment.Segment{ID: id, StartTime: start, EndTime: end}
}

const eps = 1e-9

func TestRunKnownScenario(t *testing.T) {
	// startTimes [0.0, 1.0, 1.05], durations [1.2, 0.3, 0.5]:
	// segment 2's ideal 1.0 is pushed to 1.3 by segment 1's tail plus gap,
	// segment 3's ideal 1.05 is pushed to 1.7 by segment 2's tail plus gap
	store := segment.NewStore()
	store.Put("s1", durationBuffer(t, 1.2))
	store.Put("s2", durationBuffer(t, 0.3))
	store.Put("s3", durationBuffer(t, 0.5))

	player := newFakePlayer(0)
	s := New(player, store, testLogger())

	segments := []*segment.Segment{
		seg("s1", 0.0, 0.9),
		seg("s2", 1.0, 1.4),
		seg("s3", 1.05, 1.5),
	}

	result := s.Run(segments, 0)

	expected := map[string]float64{"s1": 0.0, "s2": 1.3, "s3": 1.7}
	for id, want := range expected {
		got, ok := result.SafeTimes[id]
		if !ok {
			t.Fatalf("Segment %s not scheduled", id)
		}
		if math.Abs(got-want) > eps {
			t.Errorf("Segment %s: expected safe time %f, got %f", id, want, got)
		}
	}

	if math.Abs(result.TimelineEnd-2.2) > eps {
		t.Errorf("Expected timeline end 2.2, got %f", result.TimelineEnd)
	}
}

func TestRunNoOverlapInvariant(t *testing.T) {
	store := segment.NewStore()
	segments := []*segment.Segment{
		seg("a", 0.0, 0.5),
		seg("b", 0.1, 0.6),
		seg("c", 0.2, 0.7),
		seg("d", 5.0, 5.5),
	}
	durations := map[string]float64{"a": 0.8, "b": 0.4, "c": 1.1, "d": 0.2}
	for id, d := range durations {
		store.Put(id, durationBuffer(t, d))
	}

	player := newFakePlayer(0)
	result := New(player, store, testLogger()).Run(segments, 0)

	// For every adjacent scheduled pair: safe(i+1) >= safe(i) + dur(i) + gap
	ids := []string{"a", "b", "c", "d"}
	for i := 0; i < len(ids)-1; i++ {
		cur, next := ids[i], ids[i+1]
		minNext := result.SafeTimes[cur] + durations[cur] + MinGap
		if result.SafeTimes[next] < minNext-eps {
			t.Errorf("Overlap: safe(%s)=%f < safe(%s)+dur+gap=%f",
				next, result.SafeTimes[next], cur, minNext)
		}
	}
}

func TestRunAnchorOffset(t *testing.T) {
	store := segment.NewStore()
	store.Put("s1", durationBuffer(t, 0.5))
	store.Put("s2", durationBuffer(t, 0.5))

	player := newFakePlayer(100.0) // engine clock well past zero
	s := New(player, store, testLogger())

	segments := []*segment.Segment{
		seg("s1", 2.0, 2.4),
		seg("s2", 8.0, 8.4),
	}

	// Anchor 5.0: s1's safe time already passed, starts immediately;
	// s2 starts after its remaining 3 s offset
	s.Run(segments, 5.0)

	if math.Abs(player.started["s1"]-100.0) > eps {
		t.Errorf("Passed segment should start immediately at engine now, got %f", player.started["s1"])
	}
	if math.Abs(player.started["s2"]-103.0) > eps {
		t.Errorf("Expected s2 start at engine 103.0, got %f", player.started["s2"])
	}
}

func TestRunSkipsUnsynthesized(t *testing.T) {
	store := segment.NewStore()
	store.Put("s1", durationBuffer(t, 1.0))
	store.Put("s3", durationBuffer(t, 1.0))
	// s2 has no buffer

	player := newFakePlayer(0)
	result := New(player, store, testLogger()).Run([]*segment.Segment{
		seg("s1", 0.0, 0.9),
		seg("s2", 2.0, 2.9),
		seg("s3", 4.0, 4.9),
	}, 0)

	if result.Scheduled != 2 || result.Skipped != 1 {
		t.Errorf("Expected 2 scheduled and 1 skipped, got %d/%d", result.Scheduled, result.Skipped)
	}

	if _, ok := player.started["s2"]; ok {
		t.Error("Unsynthesized segment must not be scheduled")
	}

	// The skipped segment must not advance the cursor: s3 keeps its own
	// start time because s1 ends at 1.0, well before 4.0
	if math.Abs(result.SafeTimes["s3"]-4.0) > eps {
		t.Errorf("Expected s3 safe time 4.0, got %f", result.SafeTimes["s3"])
	}
}

func TestRunDeterministicAcrossPasses(t *testing.T) {
	store := segment.NewStore()
	store.Put("s1", durationBuffer(t, 2.0))
	store.Put("s2", durationBuffer(t, 1.0))

	player := newFakePlayer(0)
	s := New(player, store, testLogger())

	segments := []*segment.Segment{
		seg("s1", 0.0, 1.5),
		seg("s2", 0.5, 1.2),
	}

	first := s.Run(segments, 0)
	second := s.Run(segments, 0)

	if first.TimelineEnd != second.TimelineEnd {
		t.Errorf("Passes must be independent: %f vs %f", first.TimelineEnd, second.TimelineEnd)
	}
	for id, want := range first.SafeTimes {
		if second.SafeTimes[id] != want {
			t.Errorf("Segment %s: pass results differ (%f vs %f)", id, want, second.SafeTimes[id])
		}
	}
}

func TestRunOrdersByStartTime(t *testing.T) {
	store := segment.NewStore()
	store.Put("late", durationBuffer(t, 0.2))
	store.Put("early", durationBuffer(t, 0.2))

	player := newFakePlayer(0)
	New(player, store, testLogger()).Run([]*segment.Segment{
		seg("late", 5.0, 5.5),
		seg("early", 1.0, 1.5),
	}, 0)

	if len(player.order) != 2 || player.order[0] != "early" || player.order[1] != "late" {
		t.Errorf("Segments must be processed in ascending start time, got %v", player.order)
	}
}

func TestRunEmptySegments(t *testing.T) {
	player := newFakePlayer(0)
	result := New(player, segment.NewStore(), testLogger()).Run(nil, 0)

	if result.TimelineEnd != 0 {
		t.Errorf("Empty pass should end at 0, got %f", result.TimelineEnd)
	}
}

func TestScheduleSingle(t *testing.T) {
	store := segment.NewStore()
	store.Put("s1", durationBuffer(t, 0.75))

	player := newFakePlayer(10.0)
	s := New(player, store, testLogger())

	dur, ok := s.ScheduleSingle("preview", seg("s1", 3.0, 3.6))
	if !ok {
		t.Fatal("ScheduleSingle should succeed with a stored buffer")
	}
	if math.Abs(dur-0.75) > eps {
		t.Errorf("Expected duration 0.75, got %f", dur)
	}
	if math.Abs(player.started["preview"]-10.0) > eps {
		t.Errorf("Preview should start at engine now, got %f", player.started["preview"])
	}

	if _, ok := s.ScheduleSingle("preview", seg("missing", 0, 1)); ok {
		t.Error("ScheduleSingle must fail without a buffer")
	}
}
