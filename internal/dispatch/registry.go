package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Handler implements one automation capability.
type Handler interface {
	Name() string
	Category() string
	Execute(ctx context.Context, params Params) Result
}

// Registry maps command names to handlers. It is immutable once built.
type Registry struct {
	byName     map[string]Handler
	names      []string
	categories []string
	byCategory map[string][]string
}

func NewRegistry(handlers ...Handler) (*Registry, error) {
	r := &Registry{
		byName:     make(map[string]Handler, len(handlers)),
		byCategory: map[string][]string{},
	}
	for _, h := range handlers {
		if h == nil {
			return nil, errors.New("handler is nil")
		}
		name := strings.TrimSpace(h.Name())
		if name == "" {
			return nil, errors.New("handler name is required")
		}
		if _, exists := r.byName[name]; exists {
			return nil, fmt.Errorf("command %q already registered", name)
		}
		category := strings.TrimSpace(h.Category())
		if category == "" {
			category = "general"
		}
		r.byName[name] = h
		r.names = append(r.names, name)
		if _, seen := r.byCategory[category]; !seen {
			r.categories = append(r.categories, category)
		}
		r.byCategory[category] = append(r.byCategory[category], name)
	}
	return r, nil
}

func (r *Registry) Lookup(name string) (Handler, bool) {
	if r == nil {
		return nil, false
	}
	h, ok := r.byName[name]
	return h, ok
}

// Names returns every registered command in registration order.
func (r *Registry) Names() []string {
	if r == nil {
		return []string{}
	}
	return append([]string{}, r.names...)
}

// ListCommands groups command names by category. Categories only aid
// discoverability; they do not affect dispatch.
func (r *Registry) ListCommands() map[string][]string {
	out := map[string][]string{}
	if r == nil {
		return out
	}
	for _, category := range r.categories {
		out[category] = append([]string{}, r.byCategory[category]...)
	}
	return out
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.names)
}
