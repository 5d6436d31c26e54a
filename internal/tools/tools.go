// Package tools defines the dispatcher's tool surface: named collaborators a
// persona can invoke mid-conversation through the completion protocol. Each
// tool exposes named methods taking a single string argument and returning a
// single-line string result.
package tools

import (
	"context"
	"fmt"
	"sort"
)

// Tool is one invocable collaborator. Implementations must be safe for
// concurrent use.
type Tool interface {
	// Name is the identifier a completion references, e.g. "Inventory".
	Name() string

	// Description is a one-line summary included in prompt tool listings.
	Description() string

	// Invoke runs the named method against its argument and returns a
	// plain-text result suitable for injection back into the conversation.
	Invoke(ctx context.Context, method, args string) (string, error)
}

// Registry holds the tools available to a dispatcher.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Registering a duplicate name is a programming error.
func (r *Registry) Register(t Tool) error {
	if _, exists := r.tools[t.Name()]; exists {
		return fmt.Errorf("tools: %s already registered", t.Name())
	}
	r.tools[t.Name()] = t
	return nil
}

// Lookup returns the named tool.
func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
