// In file: internal/tools/executor.go
package tools

import "context"

// ToolExecutor defines the standard interface for any tool that can be
// executed by the agent loop.
//
// Implementations receive arguments that have already been validated against
// the schema returned by Definition, so they never see missing or mistyped
// parameters. Any external resource acquired during Execute should be
// registered with the Scope found in ctx so it is released on every exit path.
type ToolExecutor interface {
	// Definition returns the tool's schema, which is provided to the LLM
	// so it understands the tool's capabilities, name, and arguments.
	Definition() Tool

	// Execute runs the tool. The returned payload must be JSON-serializable;
	// a returned error is reported back to the model as a tool failure.
	Execute(ctx context.Context, args map[string]any) (any, error)
}

// ExecuteFunc is the signature of a plain function tool.
type ExecuteFunc func(ctx context.Context, args map[string]any) (any, error)

// FuncTool adapts a plain function into a ToolExecutor.
type FuncTool struct {
	def Tool
	fn  ExecuteFunc
}

var _ ToolExecutor = (*FuncTool)(nil)

// NewFuncTool wraps fn with the given name, description and parameter schema.
func NewFuncTool(name, description string, params JSONSchema, fn ExecuteFunc) *FuncTool {
	return &FuncTool{def: NewFunctionTool(name, description, params), fn: fn}
}

func (f *FuncTool) Definition() Tool { return f.def }

func (f *FuncTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	return f.fn(ctx, args)
}
