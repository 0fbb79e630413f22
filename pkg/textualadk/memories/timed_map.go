// Package memories keeps bounded, time-ordered conversation histories.
package memories

import (
	"sort"
	"sync"
	"time"
)

// TimedKey orders history entries by insertion time, then by sequence for
// entries sharing a nanosecond.
type TimedKey struct {
	t int64
	n uint64
}

// Before reports whether k occurs before other in total order.
func (k TimedKey) Before(other TimedKey) bool {
	if k.t != other.t {
		return k.t < other.t
	}
	return k.n < other.n
}

// Time returns the insertion wall-clock time.
func (k TimedKey) Time() time.Time {
	return time.Unix(0, k.t)
}

// TimedMap stores history entries by TimedKey.
type TimedMap[I any] map[TimedKey]I

// Sorted returns the values in ascending key order. An empty map yields an
// empty, non-nil slice.
func (t TimedMap[I]) Sorted() []I {
	keys := t.sortedKeys()
	result := make([]I, 0, len(keys))
	for _, k := range keys {
		result = append(result, t[k])
	}
	return result
}

func (t TimedMap[I]) sortedKeys() []TimedKey {
	keys := make([]TimedKey, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].Before(keys[j])
	})
	return keys
}

// KeyFactory hands out strictly increasing TimedKeys.
type KeyFactory struct {
	mu    sync.Mutex
	lastT int64
	seq   uint64
}

// NowKey returns a key for the current time, never earlier than the
// previous one even if the wall clock steps back.
func (kf *KeyFactory) NowKey() TimedKey {
	now := time.Now().UnixNano()

	kf.mu.Lock()
	defer kf.mu.Unlock()

	switch {
	case now > kf.lastT:
		kf.lastT, kf.seq = now, 0
	default:
		kf.seq++
	}
	return TimedKey{t: kf.lastT, n: kf.seq}
}
