package segment

import (
	"sync"

	"github.com/hasaa-we/redub/internal/audio"
)

// Store owns exactly one decoded, trimmed audio buffer per segment id.
// Replacing a segment's buffer drops the previous one; buffers are
// immutable, so readers holding the old buffer keep a valid snapshot.
// Writes for the same id land in completion order; last write wins.
type Store struct {
	buffers map[string]*audio.Buffer
	mu      sync.RWMutex
}

// NewStore creates an empty buffer store.
func NewStore() *Store {
	return &Store{
		buffers: make(map[string]*audio.Buffer),
	}
}

// Put stores a buffer for the segment id, replacing any prior one.
func (s *Store) Put(id string, buf *audio.Buffer) {
	s.mu.Lock()
	s.buffers[id] = buf
	s.mu.Unlock()
}

// Get returns the stored buffer, or nil and false when absent.
func (s *Store) Get(id string) (*audio.Buffer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	buf, ok := s.buffers[id]
	return buf, ok
}

// Has reports whether a buffer exists for the segment id.
func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.buffers[id]
	return ok
}

// Delete removes the buffer for one segment id, used when a translation
// edit invalidates the synthesized audio.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.buffers, id)
	s.mu.Unlock()
}

// Clear releases all buffers.
func (s *Store) Clear() {
	s.mu.Lock()
	s.buffers = make(map[string]*audio.Buffer)
	s.mu.Unlock()
}

// Len returns the number of stored buffers.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.buffers)
}
