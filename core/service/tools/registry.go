package tools

import (
	"context"
	"fmt"
	"sync"
)

// Registry holds every Tool the running process knows about, keyed by
// Name, and dispatches calls to them after validating required parameters.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds tool, replacing any existing tool of the same Name.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
}

// RegisterAll registers every tool in tools.
func (r *Registry) RegisterAll(tools ...Tool) {
	for _, t := range tools {
		r.Register(t)
	}
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("tools: unknown tool %q", name)
	}
	return t, nil
}

// List returns every registered tool.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	return out
}

// Definitions returns the wire-level schema for every registered tool.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]Definition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, ConvertToDefinition(t))
	}
	return defs
}

// Execute validates args against name's required parameters, then calls
// the tool.
func (r *Registry) Execute(ctx context.Context, sessionID, name string, args map[string]any) (*Result, error) {
	tool, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	for _, p := range tool.Parameters() {
		if !p.Required {
			continue
		}
		if _, ok := args[p.Name]; !ok {
			return &Result{Success: false, Error: fmt.Sprintf("missing required parameter: %s", p.Name)}, nil
		}
	}
	return tool.Execute(ctx, sessionID, args)
}
