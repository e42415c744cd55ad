package chat

import (
	"fmt"
	"sync"
	"time"
)

const (
	dedupeTTL     = 30 * time.Second
	dedupeMaxSize = 200
)

type dedupeEntry struct {
	key  string
	seen time.Time
}

// DedupeCache is a bounded LRU with TTL for dropping duplicate updates.
// Keys are (chat-id, origin-message-id). Single mutex, monotonic time.
type DedupeCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	maxSize int
	entries map[string]*dedupeEntry
	order   []string
	now     func() time.Time
}

// NewDedupeCache builds a cache with the default TTL and size.
func NewDedupeCache() *DedupeCache {
	return &DedupeCache{
		ttl:     dedupeTTL,
		maxSize: dedupeMaxSize,
		entries: map[string]*dedupeEntry{},
		now:     time.Now,
	}
}

// Check returns true when key was already seen within the TTL
// (duplicate) and refreshes its timestamp. First sight inserts and
// returns false.
func (c *DedupeCache) Check(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if e, ok := c.entries[key]; ok && now.Sub(e.seen) < c.ttl {
		e.seen = now
		c.touch(key)
		return true
	}

	c.entries[key] = &dedupeEntry{key: key, seen: now}
	c.touch(key)
	c.prune(now)
	return false
}

// Size returns the current entry count.
func (c *DedupeCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *DedupeCache) touch(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.order = append(c.order, key)
}

func (c *DedupeCache) prune(now time.Time) {
	kept := c.order[:0]
	for _, k := range c.order {
		e := c.entries[k]
		if e == nil {
			continue
		}
		if now.Sub(e.seen) >= c.ttl {
			delete(c.entries, k)
			continue
		}
		kept = append(kept, k)
	}
	c.order = kept

	for len(c.entries) > c.maxSize {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

// DedupeKey builds the cache key from the platform's native ids.
func DedupeKey(chatID, messageID int64) string {
	return fmt.Sprintf("%d:%d", chatID, messageID)
}
