// Package cache implements the local view of a synchronized collection.
//
// In remote mode the cache is written only by the change-feed consumer via
// Replace; request paths just read it. In local-only mode the application
// writes directly through Put and Remove, and the cache persists itself to
// durable storage on a debounced schedule. The two write paths are never
// active for the same cache.
package cache

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// DefaultPersistDelay bounds how long a local-only write may sit in memory
// before it is flushed. Writes inside this window coalesce into one flush;
// a process exit inside the window loses at most this much history, which
// is an accepted trade-off for a single-process store.
const DefaultPersistDelay = 100 * time.Millisecond

// Option configures a Cache.
type Option[T any] func(*Cache[T])

// WithSort keeps All() ordered by less after every mutation.
func WithSort[T any](less func(a, b T) bool) Option[T] {
	return func(c *Cache[T]) { c.less = less }
}

// WithPersist enables debounced persistence of the full item set. Persist
// failures are logged and swallowed: the in-memory state stays authoritative
// for the running session.
func WithPersist[T any](persist func([]T) error, delay time.Duration, logger *slog.Logger) Option[T] {
	return func(c *Cache[T]) {
		if delay <= 0 {
			delay = DefaultPersistDelay
		}
		c.persist = persist
		c.delay = delay
		c.logger = logger
	}
}

// Cache holds the latest snapshot of one collection keyed by id.
type Cache[T any] struct {
	idOf func(T) string
	less func(a, b T) bool

	persist func([]T) error
	delay   time.Duration
	logger  *slog.Logger

	mu      sync.RWMutex
	byID    map[string]T
	order   []string
	version uint64
	timer   *time.Timer
	dirty   bool
	closed  bool
}

// New creates an empty cache. idOf must return a stable unique id per item.
func New[T any](idOf func(T) string, opts ...Option[T]) *Cache[T] {
	c := &Cache[T]{
		idOf: idOf,
		byID: make(map[string]T),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Replace swaps in a complete snapshot atomically. Readers never observe a
// partially updated collection. Replace does not schedule persistence: in
// remote mode the store is the durable copy, and local-mode loads come from
// storage in the first place.
func (c *Cache[T]) Replace(items []T) {
	byID := make(map[string]T, len(items))
	order := make([]string, 0, len(items))
	for _, item := range items {
		id := c.idOf(item)
		byID[id] = item
		order = append(order, id)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.byID = byID
	c.order = order
	c.sortLocked()
	c.version++
}

// Get returns the item with the given id.
func (c *Cache[T]) Get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.byID[id]
	return item, ok
}

// All returns a copy of the current snapshot in cache order.
func (c *Cache[T]) All() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// Len returns the number of cached items.
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byID)
}

// Version increments on every mutation; it keys derived structures such as
// a memoized search index.
func (c *Cache[T]) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Put inserts or updates one item (local-only mode) and schedules a
// debounced persist.
func (c *Cache[T]) Put(item T) {
	id := c.idOf(item)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if _, exists := c.byID[id]; !exists {
		c.order = append(c.order, id)
	}
	c.byID[id] = item
	c.sortLocked()
	c.version++
	c.schedulePersistLocked()
}

// Remove deletes one item (local-only mode) and schedules a debounced
// persist. Removing an absent id is a no-op.
func (c *Cache[T]) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if _, exists := c.byID[id]; !exists {
		return
	}
	delete(c.byID, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.version++
	c.schedulePersistLocked()
}

// Close stops the pending persist timer and flushes any outstanding writes.
// After Close the cache rejects further mutation, so nothing is written to
// storage after teardown.
func (c *Cache[T]) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
	}
	items, dirty := c.snapshotDirtyLocked()
	c.mu.Unlock()

	if dirty {
		c.doPersist(items)
	}
}

func (c *Cache[T]) sortLocked() {
	if c.less == nil {
		return
	}
	sort.Slice(c.order, func(i, j int) bool {
		return c.less(c.byID[c.order[i]], c.byID[c.order[j]])
	})
}

func (c *Cache[T]) schedulePersistLocked() {
	if c.persist == nil {
		return
	}
	c.dirty = true
	if c.timer == nil {
		c.timer = time.AfterFunc(c.delay, c.flushExpired)
		return
	}
	c.timer.Reset(c.delay)
}

// flushExpired runs on the timer goroutine once the debounce window closes.
func (c *Cache[T]) flushExpired() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	items, dirty := c.snapshotDirtyLocked()
	c.mu.Unlock()

	if dirty {
		c.doPersist(items)
	}
}

// snapshotDirtyLocked copies the current items and clears the dirty flag.
func (c *Cache[T]) snapshotDirtyLocked() ([]T, bool) {
	if !c.dirty {
		return nil, false
	}
	c.dirty = false
	items := make([]T, 0, len(c.order))
	for _, id := range c.order {
		items = append(items, c.byID[id])
	}
	return items, true
}

func (c *Cache[T]) doPersist(items []T) {
	if err := c.persist(items); err != nil {
		c.logger.Warn("cache: persist failed, in-memory state remains authoritative",
			slog.String("error", err.Error()))
	}
}
