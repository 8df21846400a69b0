// In file: internal/tools/registry.go
package tools

import (
	"strings"
	"sync"

	"github.com/dileep-u-k/llm-agent/internal/errorsx"
)

// Registry holds the tools available to one agent run, keyed by name.
//
// A registry may be shared by concurrent runs as long as nothing registers
// into it after the first run starts.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]ToolExecutor
	order []string
}

func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]ToolExecutor),
	}
}

// Register adds a tool. It fails with KindDuplicateTool if a tool with the
// same name is already registered.
func (r *Registry) Register(tool ToolExecutor) error {
	if tool == nil {
		return errorsx.New(errorsx.KindInvalidArguments, "tool is nil")
	}
	name := strings.TrimSpace(tool.Definition().Function.Name)
	if name == "" {
		return errorsx.New(errorsx.KindInvalidArguments, "tool name is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return errorsx.New(errorsx.KindDuplicateTool, "tool %q is already registered", name)
	}
	r.tools[name] = tool
	r.order = append(r.order, name)
	return nil
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (ToolExecutor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Definitions returns the tool definitions in registration order.
func (r *Registry) Definitions() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// RegistryOf builds a fresh registry from an ordered list of tools.
func RegistryOf(toolset ...ToolExecutor) (*Registry, error) {
	reg := NewRegistry()
	for _, t := range toolset {
		if err := reg.Register(t); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
