package segment

import (
	"fmt"
	"sort"
	"sync"
)

// ErrNotFound is returned when a segment id is unknown to the project.
var ErrNotFound = fmt.Errorf("segment not found")

// Project is the aggregate for one open dubbing session: the ordered
// segment list produced by the analysis step plus the buffer store holding
// their synthesized audio. Reset destroys both.
type Project struct {
	segments []*Segment
	store    *Store
	mu       sync.RWMutex
}

// NewProject creates an empty project with its own buffer store.
func NewProject() *Project {
	return &Project{
		store: NewStore(),
	}
}

// Store returns the project's buffer store.
func (p *Project) Store() *Store {
	return p.store
}

// SetSegments installs the analysis result, replacing any previous list and
// releasing all synthesized buffers. Segments are kept sorted by start time.
func (p *Project) SetSegments(segments []*Segment) error {
	for _, s := range segments {
		if err := s.Validate(); err != nil {
			return err
		}
	}

	sorted := make([]*Segment, len(segments))
	copy(sorted, segments)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartTime < sorted[j].StartTime
	})

	p.mu.Lock()
	p.segments = sorted
	p.mu.Unlock()

	p.store.Clear()
	return nil
}

// Segments returns a snapshot of the segment list in start-time order.
func (p *Project) Segments() []*Segment {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]*Segment, len(p.segments))
	copy(out, p.segments)
	return out
}

// Get returns the segment with the given id.
func (p *Project) Get(id string) (*Segment, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, s := range p.segments {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// SetTranslation updates a segment's translated text and invalidates any
// synthesized buffer so the next pass re-synthesizes the new line.
func (p *Project) SetTranslation(id, text string) error {
	seg, err := p.Get(id)
	if err != nil {
		return err
	}

	seg.SetTranslation(text)
	p.store.Delete(id)
	return nil
}

// Reset destroys all segments and releases every buffer.
func (p *Project) Reset() {
	p.mu.Lock()
	p.segments = nil
	p.mu.Unlock()

	p.store.Clear()
}
