package checks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Errors for registry operations.
var (
	ErrAdapterNotFound   = errors.New("adapter not found")
	ErrDuplicateAdapter  = errors.New("adapter already registered")
	ErrInvalidAdapterKey = errors.New("adapter name cannot be empty")
)

// Adapter wraps one external tool. The scheduler never depends on any
// particular adapter's command syntax or output grammar; adapters are
// discovered by name and registered before orchestration begins.
type Adapter interface {
	// Name identifies the adapter; CheckConfig.ID selects it.
	Name() string

	// BuildCommand returns the argv the adapter would execute for the given
	// files and settings. Exposed for logging and dry runs.
	BuildCommand(files []string, cfg CheckConfig) []string

	// ParseOutput converts the tool's raw output into findings.
	ParseOutput(raw string) []Finding

	// Check executes the tool against the files and returns its result.
	// Implementations own subprocess lifecycle and timeout enforcement
	// below the ctx deadline the scheduler applies.
	Check(ctx context.Context, files []string, cfg CheckConfig) (CheckResult, error)
}

// Registry maps adapter names to implementations. It is constructed once at
// process start and passed by reference; there is no package-level state.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds an adapter under its own name.
func (r *Registry) Register(a Adapter) error {
	if a == nil || a.Name() == "" {
		return ErrInvalidAdapterKey
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.adapters[a.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateAdapter, a.Name())
	}
	r.adapters[a.Name()] = a
	return nil
}

// Lookup returns the adapter registered under name.
func (r *Registry) Lookup(name string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAdapterNotFound, name)
	}
	return a, nil
}

// Names returns the registered adapter names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
