package segment

import (
	"fmt"
	"sync"
)

// Segment is one line of dialogue to be re-dubbed. Timing fields come from
// the analysis collaborator and stay fixed; TranslatedText may be edited by
// the user until synthesis locks it into a buffer. Editing the translation
// invalidates any synthesized audio (see Project.SetTranslation).
type Segment struct {
	ID             string  `json:"id"`
	StartTime      float64 `json:"start_time"`
	EndTime        float64 `json:"end_time"`
	OriginalText   string  `json:"original_text"`
	TranslatedText string  `json:"translated_text"`
	SpeakerLabel   string  `json:"speaker_label"`

	// Synthesizing reports an in-flight synthesis call for this segment.
	Synthesizing bool `json:"synthesizing"`

	mu sync.Mutex
}

// Validate checks the timing invariants set by the analysis step.
func (s *Segment) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("segment id cannot be empty")
	}
	if s.StartTime < 0 {
		return fmt.Errorf("segment %s: start time cannot be negative, got %f", s.ID, s.StartTime)
	}
	if s.EndTime <= s.StartTime {
		return fmt.Errorf("segment %s: end time (%f) must be after start time (%f)",
			s.ID, s.EndTime, s.StartTime)
	}
	return nil
}

// Translation returns the translated text under the segment lock.
func (s *Segment) Translation() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.TranslatedText
}

// SetTranslation replaces the translated text. Synthesis paths read the
// text through Translation, so an edit landing mid-synthesis is visible
// to the re-check that discards the stale result.
func (s *Segment) SetTranslation(text string) {
	s.mu.Lock()
	s.TranslatedText = text
	s.mu.Unlock()
}

// SetSynthesizing updates the in-progress flag.
func (s *Segment) SetSynthesizing(v bool) {
	s.mu.Lock()
	s.Synthesizing = v
	s.mu.Unlock()
}

// IsSynthesizing reports whether a synthesis call is in flight.
func (s *Segment) IsSynthesizing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Synthesizing
}
