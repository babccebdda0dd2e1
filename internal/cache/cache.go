// ABOUTME: Thread-safe TTL query cache keyed by hierarchical keys.
// ABOUTME: Mutations invalidate by key prefix; concurrent loads of one key are collapsed.

package cache

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Key identifies a cached query. The first element names the query family
// (e.g. "admin-services"); later elements narrow it down.
type Key []string

// sep cannot appear in query parameters that came through a URL.
const sep = "\x1f"

func (k Key) String() string {
	return strings.Join(k, sep)
}

// HasPrefix reports whether k starts with every element of prefix.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

// cacheEntry stores a value with its insertion time and list element.
type cacheEntry struct {
	key       Key
	value     any
	timestamp time.Time
	element   *list.Element
}

// flight is one running load. A key can have a newer flight registered
// after an invalidation forgot this one, so entries are compared by pointer.
type flight struct {
	key Key
	gen uint64
}

// Cache is a TTL-based, size-limited query cache. A doubly-linked list keeps
// insertion order for O(1) eviction of the oldest entry.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	order   *list.List // keys in insertion order, oldest at front
	ttl     time.Duration
	maxSize int

	// gen is bumped by every invalidation so loads that started before it
	// do not repopulate the cache with stale data.
	gen      uint64
	inflight map[string]*flight
	group    singleflight.Group

	done   chan struct{}
	closed bool
}

// New creates a cache with the given TTL and maximum size. A background
// goroutine periodically removes expired entries until Close is called.
func New(ttl time.Duration, maxSize int) *Cache {
	if maxSize <= 0 {
		maxSize = 1
	}
	c := &Cache{
		entries:  make(map[string]*cacheEntry),
		order:    list.New(),
		ttl:      ttl,
		maxSize:  maxSize,
		inflight: make(map[string]*flight),
		done:     make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// Get returns the value stored under key if it has not expired.
func (c *Cache) Get(key Key) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key.String()]
	if !ok {
		return nil, false
	}
	if time.Since(entry.timestamp) >= c.ttl {
		c.removeLocked(entry)
		return nil, false
	}
	return entry.value, true
}

// Set stores value under key, evicting the oldest entry when full.
func (c *Cache) Set(key Key, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(key, value)
}

func (c *Cache) setLocked(key Key, value any) {
	id := key.String()
	now := time.Now()

	if entry, exists := c.entries[id]; exists {
		entry.value = value
		entry.timestamp = now
		c.order.MoveToBack(entry.element)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	elem := c.order.PushBack(id)
	c.entries[id] = &cacheEntry{
		key:       append(Key(nil), key...),
		value:     value,
		timestamp: now,
		element:   elem,
	}
}

// Invalidate removes every entry whose key starts with one of the prefixes
// and returns how many were removed.
func (c *Cache) Invalidate(prefixes ...Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	removed := 0
	for _, entry := range c.entries {
		for _, p := range prefixes {
			if entry.key.HasPrefix(p) {
				c.removeLocked(entry)
				removed++
				break
			}
		}
	}
	for id, f := range c.inflight {
		for _, p := range prefixes {
			if f.key.HasPrefix(p) {
				c.group.Forget(id)
				delete(c.inflight, id)
				break
			}
		}
	}
	return removed
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Fetch returns the cached value for key, or calls load and caches its
// result. Concurrent callers for the same key share one load. Errors are
// returned to every waiting caller and never cached.
func Fetch[T any](ctx context.Context, c *Cache, key Key, load func(context.Context) (T, error)) (T, error) {
	if v, ok := c.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}

	id := key.String()
	ch := c.group.DoChan(id, func() (any, error) {
		// Registered inside the load so an invalidation that lands before
		// this point needs no Forget: the load has not read anything yet.
		c.mu.Lock()
		f := &flight{key: key, gen: c.gen}
		c.inflight[id] = f
		c.mu.Unlock()
		defer func() {
			c.mu.Lock()
			if c.inflight[id] == f {
				delete(c.inflight, id)
			}
			c.mu.Unlock()
		}()
		// The load is shared, so one caller's cancellation must not fail the rest.
		v, err := load(context.WithoutCancel(ctx))
		if err != nil {
			return v, err
		}
		c.mu.Lock()
		if c.gen == f.gen {
			c.setLocked(key, v)
		}
		c.mu.Unlock()
		return v, nil
	})

	var zero T
	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		typed, _ := res.Val.(T)
		return typed, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// removeLocked deletes an entry. Must be called with mu held.
func (c *Cache) removeLocked(entry *cacheEntry) {
	c.order.Remove(entry.element)
	delete(c.entries, entry.key.String())
}

// evictOldest removes the oldest entry. Must be called with mu held.
func (c *Cache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}
	id, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.entries, id)
}

// cleanup runs in a background goroutine, periodically removing expired entries.
func (c *Cache) cleanup() {
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

// runCleanup removes all expired entries from the cache.
func (c *Cache) runCleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for _, entry := range c.entries {
		if now.Sub(entry.timestamp) >= c.ttl {
			c.removeLocked(entry)
		}
	}
}

// Close stops the background cleanup goroutine. It is safe to call multiple times.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
