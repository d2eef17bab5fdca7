package tool

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ailoy-go/ailoy/internal/value"
)

// Registry holds the tools an Agent exclusively owns. Grounded on the
// teacher's ToolRegistry (internal/agent/tool_registry.go), but ordered
// rather than map-only: insertion order is preserved across
// AddTool/RemoveTool since descriptor snapshots must be stable for a
// given run.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	byName  map[string]Tool
	logger  *slog.Logger
}

// NewRegistry returns an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		byName: make(map[string]Tool),
		logger: logger.With("component", "tool_registry"),
	}
}

// AddTool registers t under its descriptor name. A duplicate name is a
// silent no-op with a logged warning.
func (r *Registry) AddTool(t Tool) {
	name := t.Describe().Name
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[name]; exists {
		r.logger.Warn("duplicate tool registration ignored", "tool", name)
		return
	}
	r.byName[name] = t
	r.order = append(r.order, name)
}

// RemoveTool removes a tool by name, O(n) over the tool list, preserving
// the relative order of the remaining tools.
func (r *Registry) RemoveTool(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[name]; !exists {
		return
	}
	delete(r.byName, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byName[name]
	return t, ok
}

// List returns every registered tool in insertion order.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.byName[n])
	}
	return out
}

// Descriptors snapshots every tool's descriptor in registration order.
func (r *Registry) Descriptors() []value.ToolDesc {
	tools := r.List()
	out := make([]value.ToolDesc, 0, len(tools))
	for _, t := range tools {
		out = append(out, t.Describe())
	}
	return out
}

// Run looks up name and invokes it; an unknown tool is a fatal error for
// the orchestrator.
func (r *Registry) Run(ctx context.Context, name string, args value.Value) (value.Value, error) {
	t, ok := r.Get(name)
	if !ok {
		return value.Value{}, &NotFoundError{Name: name}
	}
	return t.Run(ctx, args)
}

// NotFoundError is returned when Run is asked to dispatch an unregistered
// tool name.
type NotFoundError struct{ Name string }

func (e *NotFoundError) Error() string { return "tool: not found: " + e.Name }
