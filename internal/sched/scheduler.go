package sched

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/hasaa-we/redub/internal/audio"
	"github.com/hasaa-we/redub/internal/segment"
)

// MinGap is the minimum audible gap in seconds enforced between consecutive
// dub clips on the assembled timeline.
const MinGap = 0.1

// Player is the engine surface the scheduler drives: the engine clock and
// the command to start a buffer at an absolute engine time.
type Player interface {
	Now() float64
	PlayBuffer(handle string, buf *audio.Buffer, when float64) error
}

// Result summarizes one scheduling pass.
type Result struct {
	// TimelineEnd is the assembled-timeline end in seconds: the point where
	// the last scheduled clip finishes. Export compares it against the
	// video duration to size the recording tail.
	TimelineEnd float64

	// Scheduled and Skipped count segments placed on the bus and segments
	// passed over for lack of a synthesized buffer.
	Scheduled int
	Skipped   int

	// SafeTimes maps segment id to its overlap-adjusted start time on the
	// assembled timeline.
	SafeTimes map[string]float64
}

// Scheduler places segment buffers on the engine's mix bus. Its only state
// is the pass cursor, which is reset at the start of every pass;
// results never depend on a prior pass.
type Scheduler struct {
	player Player
	store  *segment.Store
	logger *slog.Logger

	cursor float64
	mu     sync.Mutex
}

// New creates a scheduler bound to a player and a buffer store.
func New(player Player, store *segment.Store, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		player: player,
		store:  store,
		logger: logger,
	}
}

// Run schedules every segment with a resolved buffer, processed in
// ascending start-time order. A segment's safe play time is the later of
// its own start time and the previous scheduled clip's end plus MinGap, so
// clips never overlap even when source timestamps are tight or synthesized
// speech runs long. The engine start time is the current engine clock plus
// the safe time's remaining offset from the anchor. Already-passed safe
// times start immediately, never with negative delay.
//
// Segments without a buffer are skipped and do not advance the cursor;
// callers wanting gapless output must ensure synthesis completed first.
func (s *Scheduler) Run(segments []*segment.Segment, anchor float64) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Every pass starts from a clean cursor
	s.cursor = 0

	ordered := make([]*segment.Segment, len(segments))
	copy(ordered, segments)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].StartTime < ordered[j].StartTime
	})

	result := Result{SafeTimes: make(map[string]float64, len(ordered))}
	scheduledAny := false

	for _, seg := range ordered {
		buf, ok := s.store.Get(seg.ID)
		if !ok {
			s.logger.Warn("Segment has no synthesized buffer, skipping",
				slog.String("segment_id", seg.ID),
			)
			result.Skipped++
			continue
		}

		safe := seg.StartTime
		if scheduledAny && s.cursor+MinGap > safe {
			safe = s.cursor + MinGap
		}

		delay := safe - anchor
		if delay < 0 {
			delay = 0
		}
		when := s.player.Now() + delay

		if err := s.player.PlayBuffer(seg.ID, buf, when); err != nil {
			s.logger.Error("Failed to start segment playback",
				slog.String("segment_id", seg.ID),
				slog.String("error", err.Error()),
			)
			result.Skipped++
			continue
		}

		s.cursor = safe + buf.Duration()
		scheduledAny = true

		result.SafeTimes[seg.ID] = safe
		result.Scheduled++
	}

	result.TimelineEnd = s.cursor

	s.logger.Info("Scheduling pass complete",
		slog.Float64("anchor", anchor),
		slog.Int("scheduled", result.Scheduled),
		slog.Int("skipped", result.Skipped),
		slog.Float64("timeline_end", result.TimelineEnd),
	)

	return result
}

// ScheduleSingle places one segment's buffer at the anchor for preview,
// using the reserved preview handle. Returns the buffer duration.
func (s *Scheduler) ScheduleSingle(handle string, seg *segment.Segment) (float64, bool) {
	buf, ok := s.store.Get(seg.ID)
	if !ok {
		return 0, false
	}

	if err := s.player.PlayBuffer(handle, buf, s.player.Now()); err != nil {
		s.logger.Error("Failed to start preview playback",
			slog.String("segment_id", seg.ID),
			slog.String("error", err.Error()),
		)
		return 0, false
	}

	return buf.Duration(), true
}
