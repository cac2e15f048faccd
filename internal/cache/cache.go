// ABOUTME: Thread-safe TTL cache with least-recently-used eviction.
// ABOUTME: Used by the tool client to reuse GET responses from the SysML v2 API.

package cache

import (
	"container/list"
	"sync"
	"time"
)

// entry stores a cached value with its insertion time and list element.
type entry[V any] struct {
	key      string
	value    V
	storedAt time.Time
	element  *list.Element
}

// Cache is a size-limited cache whose entries expire after a fixed TTL.
// Uses a doubly-linked list ordered by recency for O(1) eviction.
type Cache[V any] struct {
	mu      sync.Mutex
	entries map[string]*entry[V]
	order   *list.List // keys, least recently used at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time
	done    chan struct{}
	closed  bool
}

// New creates a cache with the given TTL and maximum size.
// A background goroutine periodically drops expired entries until Close is called.
func New[V any](ttl time.Duration, maxSize int) *Cache[V] {
	if maxSize < 1 {
		maxSize = 1
	}
	c := &Cache[V]{
		entries: make(map[string]*entry[V]),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// Get returns the value stored under key if present and not expired.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if c.now().Sub(e.storedAt) >= c.ttl {
		c.removeLocked(e)
		return zero, false
	}
	c.order.MoveToBack(e.element)
	return e.value, true
}

// Put stores value under key, evicting the least recently used entry at capacity.
func (c *Cache[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if e, exists := c.entries[key]; exists {
		e.value = value
		e.storedAt = now
		c.order.MoveToBack(e.element)
		return
	}

	if len(c.entries) >= c.maxSize {
		if front := c.order.Front(); front != nil {
			key, _ := front.Value.(string)
			c.removeLocked(c.entries[key])
		}
	}

	e := &entry[V]{key: key, value: value, storedAt: now}
	e.element = c.order.PushBack(key)
	c.entries[key] = e
}

// Delete removes key if present.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		c.removeLocked(e)
	}
}

// Len returns the number of stored entries, including expired ones not yet cleaned.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// removeLocked must be called with mu held.
func (c *Cache[V]) removeLocked(e *entry[V]) {
	if e == nil {
		return
	}
	c.order.Remove(e.element)
	delete(c.entries, e.key)
}

func (c *Cache[V]) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.runCleanup()
		case <-c.done:
			return
		}
	}
}

// runCleanup removes all expired entries.
func (c *Cache[V]) runCleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for _, e := range c.entries {
		if now.Sub(e.storedAt) >= c.ttl {
			c.removeLocked(e)
		}
	}
}

// Close stops the background cleanup goroutine. It is safe to call multiple times.
func (c *Cache[V]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
