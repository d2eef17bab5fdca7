package tool

import (
	"context"

	"github.com/ailoy-go/ailoy/internal/value"
)

// Func is the closure signature a FunctionTool runs. Implementations
// receive already-validated arguments.
type Func func(ctx context.Context, args value.Value) (value.Value, error)

// FunctionTool is a Tool backed by a local closure, validating its
// arguments against the schema in Desc.Parameters (value.Validator)
// before invoking Run.
type FunctionTool struct {
	Desc value.ToolDesc
	Fn   Func

	validator *value.Validator
}

// NewFunctionTool builds a FunctionTool with its own schema validator.
func NewFunctionTool(desc value.ToolDesc, fn Func) *FunctionTool {
	return &FunctionTool{Desc: desc, Fn: fn, validator: value.NewValidator()}
}

func (t *FunctionTool) Describe() value.ToolDesc { return t.Desc }

func (t *FunctionTool) Run(ctx context.Context, args value.Value) (value.Value, error) {
	if err := t.validator.ValidateArguments(t.Desc, args); err != nil {
		return value.Value{}, &ValidationError{Tool: t.Desc.Name, Cause: err}
	}
	return t.Fn(ctx, args)
}

// ValidationError wraps an argument-schema validation failure.
type ValidationError struct {
	Tool  string
	Cause error
}

func (e *ValidationError) Error() string { return "tool: " + e.Tool + ": " + e.Cause.Error() }
func (e *ValidationError) Unwrap() error  { return e.Cause }
