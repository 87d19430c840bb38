package strategy

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Constructor builds a decision engine from its configuration.
type Constructor func(cfg Config, logger *slog.Logger) (Strategy, error)

// Registry maps configuration names to decision-engine constructors so the
// active engine is resolved once at startup. It is safe for concurrent use.
type Registry struct {
	ctors map[string]Constructor
	mu    sync.RWMutex
}

// NewRegistry returns an empty, ready-to-use Registry.
func NewRegistry() *Registry {
	return &Registry{
		ctors: make(map[string]Constructor),
	}
}

// Register adds a constructor under the given name. If the name is already
// registered it will be replaced.
func (r *Registry) Register(name string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctors[name] = ctor
}

// New builds the named decision engine. It returns an error when the name is
// not registered or the constructor rejects the configuration.
func (r *Registry) New(name string, cfg Config, logger *slog.Logger) (Strategy, error) {
	r.mu.RLock()
	ctor, ok := r.ctors[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("strategy %q: not registered", name)
	}
	return ctor(cfg, logger)
}

// List returns the names of all registered engines in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.ctors))
	for n := range r.ctors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry returns a registry with the built-in engines registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NameSupertrend, func(cfg Config, logger *slog.Logger) (Strategy, error) {
		return NewSupertrend(cfg, logger)
	})
	r.Register(NameMarketMaker, func(cfg Config, logger *slog.Logger) (Strategy, error) {
		return NewMarketMaker(cfg, logger)
	})
	return r
}
