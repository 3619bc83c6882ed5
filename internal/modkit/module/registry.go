package module

import (
	"slices"
	"sync"
)

// Registry records the modules the host mounted
type Registry struct {
	mu   sync.RWMutex
	mods map[string]Module
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{mods: map[string]Module{}}
}

// Register records m under its name; a later module with the same name replaces it
func (g *Registry) Register(m Module) {
	g.mu.Lock()
	g.mods[m.Name()] = m
	g.mu.Unlock()
}

// Names lists registered module names in sorted order
func (g *Registry) Names() []string {
	g.mu.RLock()
	out := make([]string, 0, len(g.mods))
	for name := range g.mods {
		out = append(out, name)
	}
	g.mu.RUnlock()
	slices.Sort(out)
	return out
}
