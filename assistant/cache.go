package assistant

import (
	"sync"
	"time"
)

// SuggestionCache stores suggestion lists by the partial text they were generated for
type SuggestionCache interface {
	// Get returns cached suggestions, ok is false on a miss or expiry
	Get(key string) ([]Suggestion, bool)
	Set(key string, suggestions []Suggestion)
	Invalidate()
}

// InMemorySuggestionCache is a TTL cache safe for concurrent use
type InMemorySuggestionCache struct {
	entries    map[string]cacheEntry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	mu         sync.RWMutex
}

type cacheEntry struct {
	suggestions []Suggestion
	cachedAt    time.Time
}

// NewInMemorySuggestionCache creates a cache. A zero ttl never expires entries;
// maxEntries bounds memory by clearing the cache when full.
func NewInMemorySuggestionCache(ttl time.Duration, maxEntries int) *InMemorySuggestionCache {
	return &InMemorySuggestionCache{
		entries:    make(map[string]cacheEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (c *InMemorySuggestionCache) Get(key string) ([]Suggestion, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && c.now().Sub(entry.cachedAt) > c.ttl {
		return nil, false
	}

	out := make([]Suggestion, len(entry.suggestions))
	copy(out, entry.suggestions)
	return out, true
}

func (c *InMemorySuggestionCache) Set(key string, suggestions []Suggestion) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		if _, exists := c.entries[key]; !exists {
			c.entries = make(map[string]cacheEntry)
		}
	}

	stored := make([]Suggestion, len(suggestions))
	copy(stored, suggestions)
	c.entries[key] = cacheEntry{suggestions: stored, cachedAt: c.now()}
}

func (c *InMemorySuggestionCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]cacheEntry)
}

// Len returns the number of entries, expired ones included
func (c *InMemorySuggestionCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
