// Package cache provides a bounded, time-expiring key/value store for memoized data.
package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/spec-kit/agency-hub/internal/clock"
)

// TTLCache holds at most maxSize entries. When full, the entry inserted
// earliest is evicted. Entries older than maxAge are dropped lazily on Get.
type TTLCache[K comparable, V any] struct {
	mu      sync.Mutex
	maxSize int
	maxAge  time.Duration
	clock   clock.Clock

	order   *list.List
	entries map[K]*list.Element
}

type entry[K comparable, V any] struct {
	key        K
	value      V
	insertedAt time.Time
}

// New returns an empty cache. maxSize below 1 is treated as 1.
func New[K comparable, V any](maxSize int, maxAge time.Duration, c clock.Clock) *TTLCache[K, V] {
	if maxSize < 1 {
		maxSize = 1
	}
	if c == nil {
		c = clock.System()
	}
	return &TTLCache[K, V]{
		maxSize: maxSize,
		maxAge:  maxAge,
		clock:   c,
		order:   list.New(),
		entries: make(map[K]*list.Element, maxSize),
	}
}

// Set inserts or overwrites key. When the cache is full, the oldest insertion
// is evicted first, even if key itself is already present. An overwritten key
// keeps its insertion position but gets a fresh timestamp.
func (c *TTLCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxSize {
		if oldest := c.order.Front(); oldest != nil {
			c.removeElement(oldest)
		}
	}

	if elem, ok := c.entries[key]; ok {
		ent := elem.Value.(*entry[K, V])
		ent.value = value
		ent.insertedAt = c.clock.Now()
		return
	}

	c.entries[key] = c.order.PushBack(&entry[K, V]{
		key:        key,
		value:      value,
		insertedAt: c.clock.Now(),
	})
}

// Get returns the value for key if present and not older than maxAge.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	ent := elem.Value.(*entry[K, V])
	if c.clock.Now().Sub(ent.insertedAt) > c.maxAge {
		c.removeElement(elem)
		return zero, false
	}
	return ent.value, true
}

// Delete drops key if present.
func (c *TTLCache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.removeElement(elem)
	}
}

// Clear drops every entry.
func (c *TTLCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.entries = make(map[K]*list.Element, c.maxSize)
}

// Len reports the number of stored entries, including expired ones not yet read.
func (c *TTLCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *TTLCache[K, V]) removeElement(elem *list.Element) {
	ent := c.order.Remove(elem).(*entry[K, V])
	delete(c.entries, ent.key)
}
