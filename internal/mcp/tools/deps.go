package tools

import (
	"github.com/google/uuid"

	"github.com/usestring/alergia-mcp/internal/cache"
	"github.com/usestring/alergia-mcp/internal/config"
	"github.com/usestring/alergia-mcp/internal/query"
	"github.com/usestring/alergia-mcp/internal/store"
	"github.com/usestring/alergia-mcp/pkg/automaton"
)

// Deps contains all dependencies needed by tool handlers.
type Deps struct {
	Config *config.Config
	Store  *store.Store
	Cache  *cache.ModelCache
	Query  *query.Engine
}

// LoadModel returns the model stored under id, checking the cache first.
func (d *Deps) LoadModel(id string) (*automaton.Automaton, store.Metadata, error) {
	id = canonicalID(id)
	if e, ok := d.Cache.Get(id); ok {
		return e.Model, e.Metadata, nil
	}
	a, meta, err := d.Store.Get(id)
	if err != nil {
		return nil, store.Metadata{}, WrapDomainError(err)
	}
	d.Cache.Put(cache.Entry{Model: a, Metadata: meta})
	return a, meta, nil
}

// SaveModel persists a and caches it under its new ID.
func (d *Deps) SaveModel(meta store.Metadata, a *automaton.Automaton) (store.Metadata, error) {
	saved, err := d.Store.Save(meta, a)
	if err != nil {
		return store.Metadata{}, WrapDomainError(err)
	}
	d.Cache.Put(cache.Entry{Model: a, Metadata: saved})
	return saved, nil
}

// DeleteModel removes id from the store and the cache.
func (d *Deps) DeleteModel(id string) error {
	id = canonicalID(id)
	if err := d.Store.Delete(id); err != nil {
		return WrapDomainError(err)
	}
	d.Cache.Remove(id)
	return nil
}

// canonicalID returns the cache key for id. Invalid IDs are left for the
// store to reject.
func canonicalID(id string) string {
	if u, err := uuid.Parse(id); err == nil {
		return u.String()
	}
	return id
}
