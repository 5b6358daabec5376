// Package cache keeps recently used automata in memory.
package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/usestring/alergia-mcp/internal/store"
	"github.com/usestring/alergia-mcp/pkg/automaton"
)

// Entry is a cached model with its metadata.
type Entry struct {
	Model    *automaton.Automaton
	Metadata store.Metadata
}

// ModelCache provides thread-safe LRU caching of models by ID.
type ModelCache struct {
	cache *lru.Cache[string, Entry]
}

// NewModelCache creates a cache holding at most maxItems models.
func NewModelCache(maxItems int) (*ModelCache, error) {
	c, err := lru.New[string, Entry](maxItems)
	if err != nil {
		return nil, err
	}
	return &ModelCache{cache: c}, nil
}

// Get returns the cached entry for id.
func (c *ModelCache) Get(id string) (Entry, bool) {
	return c.cache.Get(id)
}

// Put adds or replaces the entry for its metadata ID.
func (c *ModelCache) Put(e Entry) {
	c.cache.Add(e.Metadata.ID, e)
}

// Remove evicts id, reporting whether it was present.
func (c *ModelCache) Remove(id string) bool {
	return c.cache.Remove(id)
}

// Len returns the number of cached models.
func (c *ModelCache) Len() int {
	return c.cache.Len()
}
