package memories

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is a bounded, time-ordered log of items, typically the exchanges of
// one conversation.
//
// Items older than the timeout are purged, and when the limit is exceeded
// the oldest items go first. Keys come from a KeyFactory so two items added
// within the same clock tick keep their insertion order.
//
// Memory is safe for concurrent use.
type Memory[I any] struct {
	// ID identifies this memory, usually the conversation session id.
	ID string `json:"id"`

	// limit is the maximum number of items kept. <= 0 means no limit.
	limit int

	// timeOut is how long an item may stay. <= 0 disables expiration.
	timeOut time.Duration

	items TimedMap[I]
	keys  KeyFactory
	mu    sync.RWMutex

	autoPurgeMu   sync.Mutex
	autoPurgeStop chan struct{}
}

// NewMemory creates a Memory. An empty id is replaced by a random UUID.
// autoPurgeFrequency > 0 starts a background purge loop.
func NewMemory[I any](id string, limit int, timeout time.Duration, autoPurgeFrequency time.Duration) *Memory[I] {
	if id == "" {
		id = uuid.NewString()
	}
	m := &Memory[I]{
		ID:      id,
		limit:   limit,
		timeOut: timeout,
		items:   make(TimedMap[I]),
	}
	m.AutoPurge(autoPurgeFrequency)
	return m
}

// Add appends item and enforces limit and timeout.
func (m *Memory[I]) Add(item I) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.items == nil {
		m.items = make(TimedMap[I])
	}
	m.items[m.keys.NowKey()] = item
	m.unsafePurgeIfNeeded()
}

// Items returns the stored items, oldest first.
func (m *Memory[I]) Items() []I {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.items.Sorted()
}

// Last returns the most recent item.
func (m *Memory[I]) Last() (I, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var (
		last  I
		lastK TimedKey
		found bool
	)
	for k, v := range m.items {
		if !found || lastK.Before(k) {
			last, lastK, found = v, k, true
		}
	}
	return last, found
}

// Size returns the number of stored items.
func (m *Memory[I]) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Clear drops every item.
func (m *Memory[I]) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make(TimedMap[I])
}

// Limit returns the configured item limit.
func (m *Memory[I]) Limit() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.limit
}

// Timeout returns the configured item lifetime.
func (m *Memory[I]) Timeout() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.timeOut
}

// SetLimit updates the item limit and purges immediately.
func (m *Memory[I]) SetLimit(limit int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limit = limit
	m.unsafePurgeIfNeeded()
}

// SetTimeout updates the item lifetime and purges immediately.
func (m *Memory[I]) SetTimeout(timeout time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if timeout < 0 {
		timeout = 0
	}
	m.timeOut = timeout
	m.unsafePurgeIfNeeded()
}

// Purge enforces limit and timeout now.
func (m *Memory[I]) Purge() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unsafePurgeIfNeeded()
}

// AutoPurge starts, or restarts with a new frequency, a goroutine that
// purges every `every`. every <= 0 does nothing.
func (m *Memory[I]) AutoPurge(every time.Duration) {
	if every <= 0 {
		return
	}
	m.autoPurgeMu.Lock()
	defer m.autoPurgeMu.Unlock()

	m.haltAutoPurgeLocked()
	stop := make(chan struct{})
	m.autoPurgeStop = stop
	ticker := time.NewTicker(every)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Purge()
			case <-stop:
				return
			}
		}
	}()
}

// HaltAutoPurge stops the purge goroutine. It is safe to call repeatedly.
func (m *Memory[I]) HaltAutoPurge() {
	m.autoPurgeMu.Lock()
	defer m.autoPurgeMu.Unlock()
	m.haltAutoPurgeLocked()
}

func (m *Memory[I]) haltAutoPurgeLocked() {
	if m.autoPurgeStop != nil {
		close(m.autoPurgeStop)
		m.autoPurgeStop = nil
	}
}

// unsafePurgeIfNeeded assumes m.mu is held.
func (m *Memory[I]) unsafePurgeIfNeeded() {
	if m.timeOut > 0 {
		for k := range m.items {
			if time.Since(k.Time()) > m.timeOut {
				delete(m.items, k)
			}
		}
	}
	if m.limit > 0 && len(m.items) > m.limit {
		keys := m.items.sortedKeys()
		for _, k := range keys[:len(keys)-m.limit] {
			delete(m.items, k)
		}
	}
}
