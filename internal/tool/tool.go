// Package tool implements the capability set an Agent dispatches calls
// through: a Tool describes itself to a model backend and runs given
// validated arguments. Two concrete variants are provided — a
// closure-backed Function tool and an MCP-backed tool that forwards to a
// remote server — plus a Registry that the orchestrator consults for
// descriptor snapshots and call dispatch.
package tool

import (
	"context"

	"github.com/ailoy-go/ailoy/internal/value"
)

// Tool is the capability set an Agent dispatches through: a descriptor
// for the model plus a Run that accepts the value package's
// tagged-union Value directly, so a tool's arguments and result compose
// with the rest of the message algebra without a JSON round trip at the
// boundary.
type Tool interface {
	Describe() value.ToolDesc
	Run(ctx context.Context, args value.Value) (value.Value, error)
}
