package embedding

import (
	"fmt"
	"hash/fnv"
	"sync"
)

// Cache maps (model, text fingerprint) to vectors for the duration of a run.
// There is no eviction; the working set of one run is bounded.
type Cache struct {
	mu        sync.RWMutex
	entries   map[string][]float32
	prefixLen int
}

// NewCache creates an empty cache keeping prefixLen characters of text in each key
func NewCache(prefixLen int) *Cache {
	return &Cache{
		entries:   make(map[string][]float32),
		prefixLen: prefixLen,
	}
}

// Key builds the cache key. The text prefix is combined with a hash of the
// full text so items sharing a long prefix do not collide.
func (c *Cache) Key(model, text string) string {
	prefix := text
	if r := []rune(text); len(r) > c.prefixLen {
		prefix = string(r[:c.prefixLen])
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	return fmt.Sprintf("%s:%016x:%s", model, h.Sum64(), prefix)
}

// Get returns a cached vector
func (c *Cache) Get(key string) ([]float32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

// Put stores a vector
func (c *Cache) Put(key string, v []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = v
}

// Len returns the number of cached vectors
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
