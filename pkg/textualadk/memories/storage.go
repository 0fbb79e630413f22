package memories

import (
	"sort"
	"sync"
	"time"
)

// Storage holds one Memory per conversation id.
//
// Memories created through Memory share the storage defaults.
type Storage[T any] struct {
	limit      int
	timeout    time.Duration
	purgeEvery time.Duration

	mu    sync.RWMutex
	items map[string]*Memory[T]
}

// NewStorage returns an empty Storage whose memories keep at most limit
// items for at most timeout, purged every purgeEvery.
func NewStorage[T any](limit int, timeout, purgeEvery time.Duration) *Storage[T] {
	return &Storage[T]{
		limit:      limit,
		timeout:    timeout,
		purgeEvery: purgeEvery,
		items:      make(map[string]*Memory[T]),
	}
}

// Get returns the memory for id, if any.
func (s *Storage[T]) Get(id string) (*Memory[T], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.items[id]
	return m, ok
}

// Memory returns the memory for id, creating it on first use.
func (s *Storage[T]) Memory(id string) *Memory[T] {
	if m, ok := s.Get(id); ok {
		return m
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.items[id]; ok {
		return m
	}
	m := NewMemory[T](id, s.limit, s.timeout, s.purgeEvery)
	s.items[id] = m
	return m
}

// Delete stops and removes the memory for id. Unknown ids are ignored.
func (s *Storage[T]) Delete(id string) {
	s.mu.Lock()
	m, ok := s.items[id]
	delete(s.items, id)
	s.mu.Unlock()
	if ok {
		m.HaltAutoPurge()
	}
}

// IDs returns the stored ids, sorted.
func (s *Storage[T]) IDs() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.items))
	for id := range s.items {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Close stops every purge goroutine and empties the storage.
func (s *Storage[T]) Close() {
	s.mu.Lock()
	items := s.items
	s.items = make(map[string]*Memory[T])
	s.mu.Unlock()
	for _, m := range items {
		m.HaltAutoPurge()
	}
}
