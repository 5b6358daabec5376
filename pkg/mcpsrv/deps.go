package mcpsrv

import (
	"github.com/usestring/alergia-mcp/internal/cache"
	"github.com/usestring/alergia-mcp/internal/config"
	"github.com/usestring/alergia-mcp/internal/query"
	"github.com/usestring/alergia-mcp/internal/store"
)

// Deps contains all dependencies available to custom tools.
// This gives custom tools access to the same model store and query engine as
// builtin tools.
type Deps struct {
	Config *config.Config
	Store  *store.Store
	Cache  *cache.ModelCache
	Query  *query.Engine
}
