package senator

import (
	"context"
	"fmt"
	"sync"

	"go-senate-sim/internal/core"
)

// Registry tracks the senate's participants by id. Components resolve
// cross-references through it instead of holding each other directly.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]core.Agent
	order  []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]core.Agent)}
}

// Add registers a. Re-adding an id replaces the previous agent but
// keeps its registration position.
func (r *Registry) Add(a core.Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.agents[a.ID()]; !exists {
		r.order = append(r.order, a.ID())
	}
	r.agents[a.ID()] = a
}

// Get returns the agent registered under id.
func (r *Registry) Get(id string) (core.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	return a, ok
}

// IDs returns all registered ids in registration order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// RankOf resolves a senator id to its rank. Unknown ids rank zero.
func (r *Registry) RankOf(id string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if a, ok := r.agents[id]; ok {
		return a.Rank()
	}
	return 0
}

// FactionOf resolves a senator id to its faction, or "" if unknown.
func (r *Registry) FactionOf(id string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if a, ok := r.agents[id]; ok {
		return a.Faction()
	}
	return ""
}

// StartAll starts every registered agent, stopping at the first error.
func (r *Registry) StartAll(ctx context.Context) error {
	for _, id := range r.IDs() {
		a, _ := r.Get(id)
		if err := a.Start(ctx); err != nil {
			return fmt.Errorf("start agent %s: %w", id, err)
		}
	}
	return nil
}

// StopAll stops every registered agent.
func (r *Registry) StopAll(ctx context.Context) {
	for _, id := range r.IDs() {
		if a, ok := r.Get(id); ok {
			_ = a.Stop(ctx)
		}
	}
}
