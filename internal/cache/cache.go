// Package cache implements a bounded LRU query result cache, keyed by a
// fingerprint over (project_id, query, top_k), with the same LRU + TTL
// shape and hit/miss/eviction accounting as a classic connection-scoped
// query cache.
//
// Keys are truncated SHA-256, not MD5: MD5 is not collision-resistant, and
// a 128-bit truncation of SHA-256 is.
package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/kayis-rahman/synapse/internal/debug"
)

// Key is the 128-bit fingerprint H(project_id ‖ query ‖ top_k).
type Key [16]byte

// NewKey computes the cache key for a retrieval request.
func NewKey(projectID, query string, topK int) Key {
	h := sha256.New()
	h.Write([]byte(projectID))
	h.Write([]byte{0})
	h.Write([]byte(query))
	h.Write([]byte{0})
	var tk [8]byte
	binary.BigEndian.PutUint64(tk[:], uint64(topK))
	h.Write(tk[:])
	sum := h.Sum(nil)
	var k Key
	copy(k[:], sum[:16])
	return k
}

type entry struct {
	key       Key
	projectID string
	result    any
	insertedAt time.Time
}

// Stats is a point-in-time snapshot of cache performance counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int
	MaxSize   int
}

// HitRate returns Hits/(Hits+Misses), or 0 if there have been no lookups.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Cache is a bounded LRU cache with TTL expiry. All mutating operations
// are serialized by a single mutex; Get is one critical section that both
// reads and may evict on expiry.
type Cache struct {
	maxSize int
	ttl     time.Duration

	mu        sync.Mutex
	items     map[Key]*list.Element // list.Element.Value is *entry
	order     *list.List            // front = most recently used
	hits      int64
	misses    int64
	evictions int64
}

// New creates a Cache bounded to maxSize entries with the given TTL.
func New(maxSize int, ttl time.Duration) *Cache {
	return &Cache{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[Key]*list.Element, maxSize),
		order:   list.New(),
	}
}

// Get returns the cached result for key if present and unexpired. Expired
// entries are evicted lazily on access.
func (c *Cache) Get(key Key) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}
	e := el.Value.(*entry)
	if time.Since(e.insertedAt) >= c.ttl {
		c.removeElement(el)
		c.misses++
		return nil, false
	}
	c.order.MoveToFront(el)
	c.hits++
	return e.result, true
}

// Set stores result under key, evicting the least recently used entry if
// the cache is at capacity.
func (c *Cache) Set(key Key, projectID string, result any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry)
		e.result = result
		e.insertedAt = time.Now()
		c.order.MoveToFront(el)
		return
	}

	if len(c.items) >= c.maxSize {
		back := c.order.Back()
		if back != nil {
			c.removeElement(back)
			c.evictions++
			debug.Logf("cache: evicted least recently used entry (max_size %d)", c.maxSize)
		}
	}

	e := &entry{key: key, projectID: projectID, result: result, insertedAt: time.Now()}
	el := c.order.PushFront(e)
	c.items[key] = el
}

// removeElement must be called with mu held.
func (c *Cache) removeElement(el *list.Element) {
	e := el.Value.(*entry)
	delete(c.items, e.key)
	c.order.Remove(el)
}

// Invalidate drops a single key, if present.
func (c *Cache) Invalidate(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}
}

// InvalidateProject drops every entry belonging to projectID. Called after
// a successful write commits.
func (c *Cache) InvalidateProject(projectID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		if el.Value.(*entry).projectID == projectID {
			c.removeElement(el)
		}
		el = next
	}
}

// InvalidateAll clears the entire cache.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[Key]*list.Element, c.maxSize)
	c.order.Init()
}

// Stats returns a snapshot of hit/miss/eviction counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Size:      len(c.items),
		MaxSize:   c.maxSize,
	}
}

func (k Key) String() string { return fmt.Sprintf("%x", [16]byte(k)) }
