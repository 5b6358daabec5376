// Package mcpsrv provides an extensible MCP server for learning timed
// automata from traces.
//
// This package exposes a high-level API for creating and running an MCP server
// with all builtin alergia tools, prompts, and resources. Users can extend the
// server with custom tools, prompts, and resources using functional options.
//
// # Basic Usage
//
// Create a server with default configuration:
//
//	server, err := mcpsrv.NewServer()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer server.Close()
//	server.Run(ctx)
//
// # Extension
//
// Add custom tools that read stored models:
//
//	import mcp "github.com/modelcontextprotocol/go-sdk/mcp"
//
//	type CountInput struct{}
//
//	type CountOutput struct {
//	    Models int `json:"models"`
//	}
//
//	server, err := mcpsrv.NewServer(
//	    mcpsrv.WithDepsTool(&mcp.Tool{Name: "count_models", Description: "Count stored models"},
//	        func(d *mcpsrv.Deps) func(ctx context.Context, req *mcp.CallToolRequest, in CountInput) (*mcp.CallToolResult, CountOutput, error) {
//	            return func(ctx context.Context, req *mcp.CallToolRequest, in CountInput) (*mcp.CallToolResult, CountOutput, error) {
//	                all, err := d.Store.List()
//	                return nil, CountOutput{Models: len(all)}, err
//	            }
//	        }),
//	)
//
// # Configuration
//
// Configure logging and storage:
//
//	server, err := mcpsrv.NewServer(
//	    mcpsrv.WithLogLevel("debug"),
//	    mcpsrv.WithLogFile("/var/log/alergia-mcp.log"),
//	    mcpsrv.WithStorePath("/var/lib/alergia/models.db"),
//	)
package mcpsrv
