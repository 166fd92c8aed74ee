// Package session holds the capacity-bounded mapping from session
// identifier to the search options that produced a gallery. The cache
// exists so a later subset selection can recover the resize and display
// parameters of its originating search; it is owned by the search
// subsystem, never process-global.
package session

import "sync"

// DefaultCapacity bounds how many sessions are retained before the
// earliest-inserted one is evicted.
const DefaultCapacity = 10

// Cache is a bounded insertion-ordered map. All methods are safe for
// concurrent use.
type Cache[V any] struct {
	mu       sync.Mutex
	capacity int
	values   map[string]V
	order    []string
}

// NewCache returns a cache bounded to capacity entries; a non-positive
// capacity falls back to DefaultCapacity.
func NewCache[V any](capacity int) *Cache[V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache[V]{
		capacity: capacity,
		values:   make(map[string]V, capacity),
	}
}

// Put stores value under id. Re-storing an existing id updates the value
// without refreshing its insertion age. When the cache is full the
// earliest-inserted id is evicted.
func (c *Cache[V]) Put(id string, value V) {
	if id == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.values[id]; exists {
		c.values[id] = value
		return
	}

	if len(c.order) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.values, oldest)
	}

	c.values[id] = value
	c.order = append(c.order, id)
}

// Get returns the value stored under id.
func (c *Cache[V]) Get(id string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	value, ok := c.values[id]
	return value, ok
}

// Len reports how many sessions are currently retained.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.order)
}
