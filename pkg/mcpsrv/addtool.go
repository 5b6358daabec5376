package mcpsrv

import (
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/usestring/alergia-mcp/internal/mcp/tools"
)

// AddTool registers a custom tool under the output rules of the builtin
// alergia tools. It panics at registration when Out has a slice that would
// marshal as null, a json.RawMessage field, or a time.Duration whose JSON
// name lacks the _ns suffix. WithTool and WithDepsTool go through here.
func AddTool[In, Out any](srv *sdkmcp.Server, t *sdkmcp.Tool, h sdkmcp.ToolHandlerFor[In, Out]) {
	tools.AddTool(srv, t, h)
}
