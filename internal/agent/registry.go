package agent

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/ashureev/jobassist/internal/domain"
)

// handOffs is the agent graph. Every agent may additionally reset to
// Discovery.
var handOffs = map[domain.AgentID][]domain.AgentID{
	domain.AgentDiscovery:   {domain.AgentJobInfo},
	domain.AgentJobInfo:     {domain.AgentApplication},
	domain.AgentApplication: {domain.AgentApplication},
}

// CanHandOff reports whether the graph has an edge from one agent to
// another.
func CanHandOff(from, to domain.AgentID) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if to == domain.AgentDiscovery {
		return true
	}
	return slices.Contains(handOffs[from], to)
}

// Registry maps agent ids to handlers.
type Registry struct {
	handlers map[domain.AgentID]Handler
}

// NewRegistry registers handlers and validates the graph against them:
// every agent must have exactly one handler and every edge must point to a
// known agent.
func NewRegistry(handlers ...Handler) (*Registry, error) {
	r := &Registry{handlers: make(map[domain.AgentID]Handler, len(handlers))}
	for _, h := range handlers {
		id := h.ID()
		if !id.Valid() {
			return nil, fmt.Errorf("register %q: %w", id, ErrUnknownAgent)
		}
		if _, dup := r.handlers[id]; dup {
			return nil, fmt.Errorf("register %q: duplicate handler", id)
		}
		r.handlers[id] = h
	}

	for _, id := range domain.Agents {
		if _, ok := r.handlers[id]; !ok {
			return nil, fmt.Errorf("agent %q has no handler", id)
		}
	}
	for from, targets := range handOffs {
		for _, to := range targets {
			if _, ok := r.handlers[to]; !ok {
				return nil, fmt.Errorf("edge %s -> %s: %w", from, to, ErrUnknownAgent)
			}
		}
	}
	return r, nil
}

// Handler returns the handler registered for id.
func (r *Registry) Handler(id domain.AgentID) (Handler, error) {
	h, ok := r.handlers[id]
	if !ok {
		return nil, fmt.Errorf("dispatch to %q: %w", id, ErrUnknownAgent)
	}
	return h, nil
}

// JobSource is the lookup adapter as seen by the conversation handlers.
type JobSource interface {
	VacancyLister
	JobFinder
}

// NewStandardRegistry registers the Discovery, JobInfo and Application
// handlers over one job source.
func NewStandardRegistry(jobs JobSource, calendar Calendar, logger *slog.Logger) (*Registry, error) {
	return NewRegistry(
		NewDiscovery(jobs, logger),
		NewJobInfo(jobs, logger),
		NewApplication(jobs, calendar, logger),
	)
}
