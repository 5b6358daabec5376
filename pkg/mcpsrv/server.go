package mcpsrv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/usestring/alergia-mcp/internal/cache"
	"github.com/usestring/alergia-mcp/internal/config"
	"github.com/usestring/alergia-mcp/internal/logging"
	"github.com/usestring/alergia-mcp/internal/mcp"
	"github.com/usestring/alergia-mcp/internal/mcp/tools"
	"github.com/usestring/alergia-mcp/internal/query"
	"github.com/usestring/alergia-mcp/internal/store"
)

// Server is the alergia MCP server.
// It wraps the internal implementation and provides extension points.
type Server struct {
	internal   *mcp.Server
	store      *store.Store
	deps       *Deps
	logCleanup func() error
}

// NewServer creates a new MCP server with builtin alergia tools.
//
// Configuration is loaded from the environment; use functional options to
// override logging and storage or to add custom tools. The model store is
// opened here and held until Close.
func NewServer(opts ...Option) (*Server, error) {
	cfg := &serverConfig{
		config: config.Load(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logLevel != "" {
		cfg.config.LogLevel = cfg.logLevel
	}
	if cfg.logFile != "" {
		cfg.config.LogFile = cfg.logFile
	}
	if cfg.logFormat != "" {
		cfg.config.LogFormat = cfg.logFormat
	}
	if cfg.storePath != "" {
		cfg.config.ModelStorePath = cfg.storePath
	}

	_, logCleanup, err := logging.Setup(logging.Config{
		Level:      cfg.config.LogLevel,
		Format:     cfg.config.LogFormat,
		FilePath:   cfg.config.LogFile,
		MaxSizeMB:  cfg.config.LogMaxSizeMB,
		MaxBackups: cfg.config.LogMaxBackups,
		MaxAgeDays: cfg.config.LogMaxAgeDays,
		Compress:   cfg.config.LogCompress,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to setup logging: %w", err)
	}

	st, err := store.Open(cfg.config.ModelStorePath)
	if err != nil {
		_ = logCleanup()
		return nil, fmt.Errorf("failed to open model store: %w", err)
	}
	modelCache, err := cache.NewModelCache(cfg.config.ModelCacheMaxItems)
	if err != nil {
		_ = st.Close()
		_ = logCleanup()
		return nil, fmt.Errorf("failed to create model cache: %w", err)
	}
	queryEngine := query.NewEngine()

	toolDeps := &tools.Deps{
		Config: cfg.config,
		Store:  st,
		Cache:  modelCache,
		Query:  queryEngine,
	}

	// Public deps share the same values under the public type
	deps := &Deps{
		Config: cfg.config,
		Store:  st,
		Cache:  modelCache,
		Query:  queryEngine,
	}

	var internalOpts []mcp.ServerOption
	if !cfg.disableBuiltinTools {
		internalOpts = append(internalOpts, mcp.WithBuiltinTools())
	}
	if !cfg.disableBuiltinPrompts {
		internalOpts = append(internalOpts, mcp.WithBuiltinPrompts())
	}

	for _, fn := range cfg.toolRegistrations {
		internalOpts = append(internalOpts, mcp.WithCustomRegistration(fn))
	}
	for _, fn := range cfg.promptRegistrations {
		internalOpts = append(internalOpts, mcp.WithCustomRegistration(fn))
	}
	for _, fn := range cfg.resourceRegistrations {
		internalOpts = append(internalOpts, mcp.WithCustomRegistration(fn))
	}
	for _, fn := range cfg.deferredToolRegistrations {
		internalOpts = append(internalOpts, mcp.WithCustomRegistration(func(srv *sdkmcp.Server) {
			fn(srv, deps)
		}))
	}

	internal, err := mcp.NewServer(toolDeps, internalOpts...)
	if err != nil {
		_ = st.Close()
		_ = logCleanup()
		return nil, fmt.Errorf("failed to create server: %w", err)
	}

	slog.Debug("model store opened", slog.String("path", st.Path()))

	return &Server{
		internal:   internal,
		store:      st,
		deps:       deps,
		logCleanup: logCleanup,
	}, nil
}

// Run starts the MCP server with stdio transport.
// The server runs until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.internal.Run(ctx)
}

// Close releases the model store and flushes the log file.
func (s *Server) Close() error {
	var errs []error
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	if s.logCleanup != nil {
		errs = append(errs, s.logCleanup())
	}
	return errors.Join(errs...)
}

// Deps returns the dependencies for building custom tools.
func (s *Server) Deps() *Deps {
	return s.deps
}

// MCPServer returns the underlying MCP server for testing.
func (s *Server) MCPServer() *sdkmcp.Server {
	return s.internal.MCPServer()
}
