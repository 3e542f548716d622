package tools

import (
	"context"
	"sync"

	"github.com/BaSui01/leadflow/agent"
	"github.com/BaSui01/leadflow/types"
)

// Registry holds named tools for lookup by capability implementations.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]agent.Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]agent.Tool)}
}

// Register adds a tool. Re-registering a name replaces the previous tool.
func (r *Registry) Register(tool agent.Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (agent.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Resolve maps tool names to tools, failing on any unknown name.
func (r *Registry) Resolve(names []string) ([]agent.Tool, error) {
	resolved := make([]agent.Tool, 0, len(names))
	for _, name := range names {
		tool, ok := r.Get(name)
		if !ok {
			return nil, types.NewError(types.ErrConfiguration, "unknown tool "+name)
		}
		resolved = append(resolved, tool)
	}
	return resolved, nil
}

// Execute looks up and runs a tool in one call.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]any) (any, error) {
	tool, ok := r.Get(name)
	if !ok {
		return nil, types.NewError(types.ErrConfiguration, "unknown tool "+name)
	}
	return tool.Execute(ctx, params)
}
