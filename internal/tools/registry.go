package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Registry is the dispatch table from tool name to executor.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool to the registry.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
}

// Get returns a tool by name, or nil if not found.
func (r *Registry) Get(name string) Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Schemas returns OpenAI function-call schemas for the named tools, in the
// given order. Names without a registered executor are skipped.
func (r *Registry) Schemas(names []string) []map[string]any {
	schemas := make([]map[string]any, 0, len(names))
	for _, name := range names {
		if t := r.Get(name); t != nil {
			schemas = append(schemas, ToSchema(t))
		}
	}
	return schemas
}

// Execute dispatches to the named tool.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	t := r.Get(name)
	if t == nil {
		return fmt.Sprintf("Error: unknown tool %q", name), nil
	}
	return t.Execute(ctx, args)
}
