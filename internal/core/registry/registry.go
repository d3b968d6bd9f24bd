// Package registry is the in-memory, single-source-of-truth table of
// endpoints grouped by credential, and the EndpointState each one carries.
package registry

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/beaconsage/claude-zephyr/internal/core/domain"
)

// Registry owns the endpoint/group table and the per-endpoint state cells.
// EndpointState is published copy-on-write: the orchestrator is the only
// caller of UpdateState; everyone else calls State/Snapshot and gets an
// independent copy.
type Registry struct {
	mu           sync.RWMutex
	groups       map[string]*domain.Group
	activeGroup  string
	defaultGroup string
	states       map[string]*atomic.Pointer[domain.EndpointState]
}

// New builds a Registry from the resolved group list. The group flagged
// default becomes both the active and default group.
func New(groups []*domain.Group) (*Registry, error) {
	if len(groups) == 0 {
		return nil, fmt.Errorf("registry: at least one group is required")
	}

	r := &Registry{
		groups: make(map[string]*domain.Group, len(groups)),
		states: make(map[string]*atomic.Pointer[domain.EndpointState]),
	}

	defaultName := ""
	for _, g := range groups {
		r.groups[g.Name] = g
		if g.Default {
			defaultName = g.Name
		}
		for _, ep := range g.Endpoints {
			cell := &atomic.Pointer[domain.EndpointState]{}
			cell.Store(domain.NewEndpointState(ep.ID()))
			r.states[ep.ID()] = cell
		}
	}

	if defaultName == "" {
		defaultName = groups[0].Name
	}
	r.defaultGroup = defaultName
	r.activeGroup = defaultName

	return r, nil
}

// ActiveGroupName returns the group selection is currently scoped to.
func (r *Registry) ActiveGroupName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeGroup
}

// SetActiveGroup switches the scope of selection to a different group, e.g.
// on operator command. Existing ActiveConnections are unaffected - only
// future selections are scoped to the new group.
func (r *Registry) SetActiveGroup(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.groups[name]; !ok {
		return fmt.Errorf("registry: unknown group %q", name)
	}
	r.activeGroup = name
	return nil
}

// Group returns the named group, or nil.
func (r *Registry) Group(name string) *domain.Group {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.groups[name]
}

// ActiveGroup returns the group currently in scope for selection.
func (r *Registry) ActiveGroup() *domain.Group {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.groups[r.activeGroup]
}

// AllGroups returns every configured group.
func (r *Registry) AllGroups() []*domain.Group {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Group, 0, len(r.groups))
	for _, g := range r.groups {
		out = append(out, g)
	}
	return out
}

// Endpoints returns the endpoints belonging to the active group.
func (r *Registry) Endpoints() []*domain.Endpoint {
	group := r.ActiveGroup()
	if group == nil {
		return nil
	}
	return group.Endpoints
}

// State returns a private copy of the endpoint's current state. Returns nil
// if the endpoint is unknown to the registry.
func (r *Registry) State(endpointID string) *domain.EndpointState {
	r.mu.RLock()
	cell, ok := r.states[endpointID]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	return cell.Load().Clone()
}

// Snapshot returns a copy of every EndpointState belonging to the active
// group, in definition order.
func (r *Registry) Snapshot() []*domain.EndpointState {
	group := r.ActiveGroup()
	if group == nil {
		return nil
	}
	out := make([]*domain.EndpointState, 0, len(group.Endpoints))
	for _, ep := range group.Endpoints {
		if s := r.State(ep.ID()); s != nil {
			out = append(out, s)
		}
	}
	return out
}

// UpdateState atomically replaces an endpoint's state with the result of
// applying mutate to a copy of the current state. Only the orchestrator
// should call this - it is the single writer of endpoint state.
func (r *Registry) UpdateState(endpointID string, mutate func(*domain.EndpointState)) {
	r.mu.RLock()
	cell, ok := r.states[endpointID]
	r.mu.RUnlock()
	if !ok {
		return
	}

	next := cell.Load().Clone()
	mutate(next)
	cell.Store(next)
}

// FindEndpoint looks up an endpoint by ID across all groups.
func (r *Registry) FindEndpoint(endpointID string) (*domain.Endpoint, *domain.Group) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, g := range r.groups {
		if ep := g.EndpointByID(endpointID); ep != nil {
			return ep, g
		}
	}
	return nil, nil
}
