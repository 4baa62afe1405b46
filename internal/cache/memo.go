package cache

import (
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultSize is used when a Memo is created with a non-positive size.
const DefaultSize = 10000

// Memo is a bounded, least-recently-used memoization cache in front of an expensive
// lookup. Results are only valid for as long as the data they were computed from; a
// refreshed market snapshot needs a fresh Memo.
//
// A singleflight.Group coalesces concurrent misses for the same key.
type Memo[K comparable, V any] struct {
	name   string
	lru    *lru.Cache[K, V]
	group  singleflight.Group
	hits   atomic.Int64
	misses atomic.Int64
}

// Stats is a snapshot of hit/miss counters.
type Stats struct {
	Name    string
	Entries int
	Hits    int64
	Misses  int64
}

// New creates a Memo holding at most size entries.
func New[K comparable, V any](name string, size int) *Memo[K, V] {
	if size <= 0 {
		size = DefaultSize
	}
	c, err := lru.New[K, V](size)
	if err != nil {
		// lru.New only fails for non-positive sizes, which are ruled out above.
		panic(fmt.Sprintf("cache %s: %v", name, err))
	}
	return &Memo[K, V]{name: name, lru: c}
}

// Get returns the cached value for key, or runs compute, caches its result and returns
// it. Errors are returned to the caller and never cached.
func (m *Memo[K, V]) Get(key K, compute func() (V, error)) (V, error) {
	if v, ok := m.lru.Get(key); ok {
		m.hits.Add(1)
		return v, nil
	}

	sfKey := fmt.Sprint(key)
	result, err, _ := m.group.Do(sfKey, func() (interface{}, error) {
		// A concurrent caller may have filled the entry while we waited.
		if v, ok := m.lru.Get(key); ok {
			return v, nil
		}
		m.misses.Add(1)
		v, err := compute()
		if err != nil {
			return v, err
		}
		m.lru.Add(key, v)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	v, _ := result.(V)
	return v, nil
}

// Peek returns a cached value without computing or touching recency.
func (m *Memo[K, V]) Peek(key K) (V, bool) {
	return m.lru.Peek(key)
}

// Len returns the number of cached entries.
func (m *Memo[K, V]) Len() int {
	return m.lru.Len()
}

// Purge drops every entry.
func (m *Memo[K, V]) Purge() {
	m.lru.Purge()
}

// Stats returns the current counters.
func (m *Memo[K, V]) Stats() Stats {
	return Stats{
		Name:    m.name,
		Entries: m.lru.Len(),
		Hits:    m.hits.Load(),
		Misses:  m.misses.Load(),
	}
}
