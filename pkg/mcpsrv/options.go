package mcpsrv

import (
	"context"

	mcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/usestring/alergia-mcp/internal/config"
)

// serverConfig holds configuration built from options.
type serverConfig struct {
	config *config.Config

	// Logging and storage overrides
	logLevel  string
	logFile   string
	logFormat string
	storePath string

	// Extension toggles
	disableBuiltinTools   bool
	disableBuiltinPrompts bool

	// Custom extensions - registration callbacks that preserve generic type info
	toolRegistrations     []func(*mcp.Server)
	promptRegistrations   []func(*mcp.Server)
	resourceRegistrations []func(*mcp.Server)

	// Deferred tool registrations that need access to Deps
	deferredToolRegistrations []func(*mcp.Server, *Deps)
}

// Option configures the server.
type Option func(*serverConfig)

// WithLogLevel sets the log level (debug, info, warn, error).
func WithLogLevel(level string) Option {
	return func(cfg *serverConfig) {
		cfg.logLevel = level
	}
}

// WithLogFile sets the log file path.
// If empty, logs are written to stderr only.
func WithLogFile(path string) Option {
	return func(cfg *serverConfig) {
		cfg.logFile = path
	}
}

// WithLogFormat selects the log handler format (text or json).
func WithLogFormat(format string) Option {
	return func(cfg *serverConfig) {
		cfg.logFormat = format
	}
}

// WithStorePath sets the bbolt file that holds stored models.
func WithStorePath(path string) Option {
	return func(cfg *serverConfig) {
		cfg.storePath = path
	}
}

// WithConfig replaces the environment configuration. Later options still
// override individual fields.
func WithConfig(c *config.Config) Option {
	return func(cfg *serverConfig) {
		if c != nil {
			copied := *c
			cfg.config = &copied
		}
	}
}

// WithoutBuiltinTools disables all builtin alergia tools and model resources.
// Use this if you want to register only your own tools.
func WithoutBuiltinTools() Option {
	return func(cfg *serverConfig) {
		cfg.disableBuiltinTools = true
	}
}

// WithoutBuiltinPrompts disables all builtin workflow prompts.
// Use this if you want to register only your own prompts.
func WithoutBuiltinPrompts() Option {
	return func(cfg *serverConfig) {
		cfg.disableBuiltinPrompts = true
	}
}

// WithTool registers a custom tool with the server. In is decoded from the
// call arguments and Out becomes the structured result; Out is checked with
// the same output schema rules as the builtin tools.
//
//	type ordersOutput struct {
//	    Orders []string `json:"orders"`
//	}
//
//	mcpsrv.WithTool(&mcp.Tool{Name: "learner_orders", Description: "List blue state orders"},
//	    func(ctx context.Context, req *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, ordersOutput, error) {
//	        return nil, ordersOutput{Orders: []string{"fifo", "lifo", "canonical", "lex"}}, nil
//	    })
func WithTool[In, Out any](tool *mcp.Tool, handler func(context.Context, *mcp.CallToolRequest, In) (*mcp.CallToolResult, Out, error)) Option {
	return func(cfg *serverConfig) {
		cfg.toolRegistrations = append(cfg.toolRegistrations, func(srv *mcp.Server) {
			AddTool(srv, tool, handler)
		})
	}
}

// WithDepsTool registers a custom tool built from Deps, for tools that read
// the model store, the model cache or the query engine. The builder runs once,
// after the store is open.
//
//	mcpsrv.WithDepsTool(
//	    &mcp.Tool{Name: "model_states", Description: "Count states of a stored model"},
//	    func(d *mcpsrv.Deps) func(context.Context, *mcp.CallToolRequest, statesInput) (*mcp.CallToolResult, statesOutput, error) {
//	        return func(ctx context.Context, req *mcp.CallToolRequest, in statesInput) (*mcp.CallToolResult, statesOutput, error) {
//	            meta, err := d.Store.Metadata(in.ModelID)
//	            if err != nil {
//	                return nil, statesOutput{}, err
//	            }
//	            return nil, statesOutput{States: meta.States}, nil
//	        }
//	    },
//	)
func WithDepsTool[In, Out any](tool *mcp.Tool, builder func(*Deps) func(context.Context, *mcp.CallToolRequest, In) (*mcp.CallToolResult, Out, error)) Option {
	return func(cfg *serverConfig) {
		cfg.deferredToolRegistrations = append(cfg.deferredToolRegistrations, func(srv *mcp.Server, deps *Deps) {
			AddTool(srv, tool, builder(deps))
		})
	}
}

// WithPrompt registers a custom prompt with the server.
func WithPrompt(prompt *mcp.Prompt, handler func(context.Context, *mcp.GetPromptRequest) (*mcp.GetPromptResult, error)) Option {
	return func(cfg *serverConfig) {
		cfg.promptRegistrations = append(cfg.promptRegistrations, func(srv *mcp.Server) {
			srv.AddPrompt(prompt, handler)
		})
	}
}

// WithResourceTemplate registers a custom resource template, for example a
// rendering of stored models under a scheme other than alergia://.
func WithResourceTemplate(template *mcp.ResourceTemplate, handler func(context.Context, *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error)) Option {
	return func(cfg *serverConfig) {
		cfg.resourceRegistrations = append(cfg.resourceRegistrations, func(srv *mcp.Server) {
			srv.AddResourceTemplate(template, handler)
		})
	}
}
