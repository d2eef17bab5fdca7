package tool

import (
	"context"

	"github.com/ailoy-go/ailoy/internal/mcp"
	"github.com/ailoy-go/ailoy/internal/value"
)

// MCPTool forwards Run to a call against a connected MCP server, whose
// client exposes ListTools and CallTool. The exposed descriptor name is
// addressed as mcp:<server>.<tool> so a Policy can match it with a
// server-scoped or wildcard rule.
type MCPTool struct {
	client   *mcp.Client
	serverID string
	tool     *mcp.MCPTool
}

// NewMCPTool wraps one tool advertised by an already-connected client.
func NewMCPTool(client *mcp.Client, serverID string, t *mcp.MCPTool) *MCPTool {
	return &MCPTool{client: client, serverID: serverID, tool: t}
}

// AddrName returns the mcp:<server>.<tool> address used for policy
// matching and registry lookups.
func (t *MCPTool) AddrName() string { return "mcp:" + t.serverID + "." + t.tool.Name }

func (t *MCPTool) Describe() value.ToolDesc {
	return value.ToolDesc{
		Name:        t.AddrName(),
		Description: t.tool.Description,
		Parameters:  t.tool.InputSchema,
	}
}

// Run forwards args straight to the server: mcp.Client.CallTool already
// takes and returns value.Value, so there is no JSON round trip left to do
// in this package.
func (t *MCPTool) Run(ctx context.Context, args value.Value) (value.Value, error) {
	result, err := t.client.CallTool(ctx, t.tool.Name, args)
	if err != nil {
		return value.Value{}, &CallError{Tool: t.AddrName(), Cause: err}
	}
	return result, nil
}

// CallError wraps a failed MCP tool invocation.
type CallError struct {
	Tool  string
	Cause error
}

func (e *CallError) Error() string { return "tool: mcp call " + e.Tool + ": " + e.Cause.Error() }
func (e *CallError) Unwrap() error { return e.Cause }
