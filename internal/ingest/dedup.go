package ingest

import "sync"

// SeenSet is a bounded set of recently seen asset ids. When full, the oldest
// half in insertion order is evicted. Lookups do not refresh entries.
type SeenSet struct {
	mu       sync.Mutex
	capacity int
	order    []string
	index    map[string]struct{}
}

// NewSeenSet creates a set holding at most capacity ids.
func NewSeenSet(capacity int) *SeenSet {
	if capacity < 2 {
		capacity = 2
	}
	return &SeenSet{
		capacity: capacity,
		order:    make([]string, 0, capacity),
		index:    make(map[string]struct{}, capacity),
	}
}

// MarkIfNew records id and reports true if it was not already present.
func (s *SeenSet) MarkIfNew(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[id]; ok {
		return false
	}
	if len(s.order) >= s.capacity {
		s.evictOldestHalf()
	}
	s.order = append(s.order, id)
	s.index[id] = struct{}{}
	return true
}

// Contains reports whether id is currently held.
func (s *SeenSet) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.index[id]
	return ok
}

// Len returns the number of ids held.
func (s *SeenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

func (s *SeenSet) evictOldestHalf() {
	n := len(s.order) / 2
	for _, id := range s.order[:n] {
		delete(s.index, id)
	}
	// Copy so the backing array does not keep growing.
	kept := make([]string, len(s.order)-n, s.capacity)
	copy(kept, s.order[n:])
	s.order = kept
}
