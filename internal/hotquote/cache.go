// Package hotquote provides the process-local quote cache that collapses
// duplicate fetches inside one request fan-out without touching disk.
package hotquote

import (
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/vantage/internal/models"
)

type entry struct {
	quote    *models.Quote
	storedAt time.Time
}

// Cache is a TTL map under a mutex. Stale entries are evicted on read.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]entry
	now     func() time.Time
}

// New creates a cache with the given entry lifetime.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 45 * time.Second
	}
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Key builds the fetch-semantics key for a symbol and calendar day.
func Key(symbol, day string) string {
	return fmt.Sprintf("fh_quote_%s_%s", symbol, day)
}

// Get returns the quote stored under key when it is still inside the TTL.
func (c *Cache) Get(key string) (*models.Quote, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.storedAt) > c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return e.quote, true
}

// Put stores a quote under key, replacing any previous entry.
func (c *Cache) Put(key string, quote *models.Quote) {
	if quote == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{quote: quote, storedAt: c.now()}
}

// Flush drops every entry.
func (c *Cache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

// Len reports the number of stored entries, stale ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
