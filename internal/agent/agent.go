package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/fyrsmithlabs/remedyd/internal/issue"
)

// Selection thresholds. An agent below DelegationThreshold is never invoked;
// only results at or above CacheConfidenceThreshold are trusted enough to
// cache.
const (
	DelegationThreshold      = 0.3
	CacheConfidenceThreshold = 0.7
)

// Errors for agent registry operations.
var (
	ErrAgentNotFound  = errors.New("agent not found")
	ErrDuplicateAgent = errors.New("agent already registered")
	ErrInvalidAgent   = errors.New("agent must have a non-empty name")
)

// Fixer is a strategy that can attempt to resolve issues of certain kinds.
type Fixer interface {
	// Name identifies the agent in logs, caches, and strategy memory.
	Name() string

	// CanHandle returns the agent's self-reported applicability for the
	// issue, in [0,1]. It is a routing score, not a probability guarantee.
	CanHandle(iss issue.Issue) float64

	// Fix attempts to resolve the issue. Returned errors and panics are
	// absorbed by the coordinator's error boundary.
	Fix(ctx context.Context, iss issue.Issue) (issue.FixResult, error)

	// SupportedKinds lists the issue kinds the agent knows how to fix.
	SupportedKinds() []issue.Kind
}

// Registry holds the fixed set of fixer agents, built at startup and passed
// by reference. There is no import-time registration.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]Fixer
}

// NewRegistry creates an empty agent registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]Fixer)}
}

// Register adds an agent under its own name.
func (r *Registry) Register(f Fixer) error {
	if f == nil || f.Name() == "" {
		return ErrInvalidAgent
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.agents[f.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateAgent, f.Name())
	}
	r.agents[f.Name()] = f
	return nil
}

// Get returns the agent registered under name.
func (r *Registry) Get(name string) (Fixer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.agents[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, name)
	}
	return f, nil
}

// All returns the registered agents in name order for deterministic
// selection among equal scores.
func (r *Registry) All() []Fixer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.agents))
	for name := range r.agents {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Fixer, 0, len(names))
	for _, name := range names {
		out = append(out, r.agents[name])
	}
	return out
}
