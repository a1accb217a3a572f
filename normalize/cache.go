// ABOUTME: In-memory cache memoizing normalized documents keyed by the sha256 of the raw response.
// ABOUTME: Supports TTL-based expiry, a size bound, concurrent access, and manual clearing.
package normalize

import (
	"crypto/sha256"
	"sync"
	"time"
)

// DefaultCacheSize bounds the number of cached documents.
const DefaultCacheSize = 256

type cacheEntry struct {
	doc       Document
	createdAt time.Time
}

// Cache wraps a normalizing function with an in-memory cache. Keys are the
// sha256 of the raw response.
type Cache struct {
	fn      func(string) Document
	ttl     time.Duration
	max     int
	entries map[[sha256.Size]byte]cacheEntry
	mu      sync.RWMutex
	now     func() time.Time
}

// NewCache creates a cache around Normalize whose entries expire after ttl.
func NewCache(ttl time.Duration) *Cache {
	return NewCacheFunc(Normalize, ttl, DefaultCacheSize)
}

// NewCacheFunc creates a cache around fn holding at most max entries.
func NewCacheFunc(fn func(string) Document, ttl time.Duration, max int) *Cache {
	if max <= 0 {
		max = DefaultCacheSize
	}
	return &Cache{
		fn:      fn,
		ttl:     ttl,
		max:     max,
		entries: make(map[[sha256.Size]byte]cacheEntry),
		now:     time.Now,
	}
}

// Normalize returns the cached document for raw, computing it on a miss or
// after expiry.
func (c *Cache) Normalize(raw string) Document {
	key := sha256.Sum256([]byte(raw))

	c.mu.RLock()
	if entry, ok := c.entries[key]; ok && c.now().Sub(entry.createdAt) < c.ttl {
		c.mu.RUnlock()
		return entry.doc
	}
	c.mu.RUnlock()

	doc := c.fn(raw)

	c.mu.Lock()
	if len(c.entries) >= c.max {
		c.pruneLocked()
	}
	c.entries[key] = cacheEntry{doc: doc, createdAt: c.now()}
	c.mu.Unlock()

	return doc
}

// pruneLocked drops expired entries, and everything when that is not enough.
func (c *Cache) pruneLocked() {
	now := c.now()
	for k, e := range c.entries {
		if now.Sub(e.createdAt) >= c.ttl {
			delete(c.entries, k)
		}
	}
	if len(c.entries) >= c.max {
		c.entries = make(map[[sha256.Size]byte]cacheEntry)
	}
}

// Len returns the number of entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[[sha256.Size]byte]cacheEntry)
}
