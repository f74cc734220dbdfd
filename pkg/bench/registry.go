package bench

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Registry holds the strategies a run can select by name.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy // map of strategy name to strategy
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		strategies: make(map[string]Strategy),
	}
}

// Register adds s under its name
func (r *Registry) Register(s Strategy) error {
	if s == nil {
		return errors.New("strategy must not be nil")
	}
	name := s.Name()
	if name == "" {
		return errors.New("strategy name must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.strategies[name]; exists {
		return fmt.Errorf("%s: %w", name, ErrDuplicateStrategy)
	}
	r.strategies[name] = s
	return nil
}

// MustRegister is Register for package initialisation; it panics on error.
func (r *Registry) MustRegister(s Strategy) {
	if err := r.Register(s); err != nil {
		panic(err)
	}
}

// Get retrieves a strategy by name
func (r *Registry) Get(name string) (Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, exists := r.strategies[name]
	return s, exists
}

// List returns all registered strategies sorted by name
func (r *Registry) List() []Strategy {
	r.mu.RLock()
	list := make([]Strategy, 0, len(r.strategies))
	for _, s := range r.strategies {
		list = append(list, s)
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].Name() < list[j].Name() })
	return list
}

// Names returns the sorted names of all registered strategies
func (r *Registry) Names() []string {
	list := r.List()
	names := make([]string, len(list))
	for i, s := range list {
		names[i] = s.Name()
	}
	return names
}

// Len returns the number of registered strategies
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.strategies)
}

// Select resolves names in the given order. No names selects everything.
// Every unknown name is reported in the returned error.
func (r *Registry) Select(names ...string) ([]Strategy, error) {
	if len(names) == 0 {
		return r.List(), nil
	}

	selected := make([]Strategy, 0, len(names))
	seen := make(map[string]bool, len(names))
	var unknown []string
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		s, ok := r.Get(name)
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		selected = append(selected, s)
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("%v: %w", unknown, ErrUnknownStrategy)
	}
	return selected, nil
}

// Copy creates a new Registry with the same strategies
func (r *Registry) Copy() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c := NewRegistry()
	for name, s := range r.strategies {
		c.strategies[name] = s
	}
	return c
}
