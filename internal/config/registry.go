package config

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/MrWong99/leadscout/internal/leadstore"
	"github.com/MrWong99/leadscout/internal/observe"
	"github.com/MrWong99/leadscout/internal/resilience"
)

// ErrBackendNotRegistered is returned by [Registry.Create] when no factory
// has been registered under the requested backend name.
var ErrBackendNotRegistered = errors.New("config: store backend not registered")

// StoreFactory opens a record store for one backend entry. The returned
// close function releases the store's resources and may be nil.
type StoreFactory func(ctx context.Context, entry BackendEntry) (leadstore.Store, func() error, error)

// Registry maps store backend names to their factories. It is safe for
// concurrent use.
type Registry struct {
	mu     sync.RWMutex
	stores map[string]StoreFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{stores: make(map[string]StoreFactory)}
}

// Register registers a store factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) Register(name string, factory StoreFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores[name] = factory
}

// Names returns the registered backend names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.stores))
	for n := range r.stores {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Create opens the store registered under entry.Backend.
// Returns [ErrBackendNotRegistered] if no factory has been registered for
// that name.
func (r *Registry) Create(ctx context.Context, entry BackendEntry) (leadstore.Store, func() error, error) {
	r.mu.RLock()
	factory, ok := r.stores[entry.Backend]
	r.mu.RUnlock()
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrBackendNotRegistered, entry.Backend)
	}
	s, closeFn, err := factory(ctx, entry)
	if err != nil {
		return nil, nil, fmt.Errorf("config: open %s store: %w", entry.Backend, err)
	}
	if closeFn == nil {
		closeFn = func() error { return nil }
	}
	return s, closeFn, nil
}

// OpenStore opens the primary backend of cfg. Without fallbacks the store
// is returned as is; otherwise every backend is opened and put behind a
// [leadstore.Resilient] reporting to metrics. The close function closes
// every opened backend.
func (r *Registry) OpenStore(ctx context.Context, cfg StoreConfig, metrics *observe.Metrics) (leadstore.Store, func() error, error) {
	primary, closePrimary, err := r.Create(ctx, cfg.BackendEntry)
	if err != nil {
		return nil, nil, err
	}
	if len(cfg.Fallbacks) == 0 {
		return primary, closePrimary, nil
	}

	closers := []func() error{closePrimary}
	closeAll := func() error {
		var errs []error
		for _, c := range slices.Backward(closers) {
			errs = append(errs, c())
		}
		return errors.Join(errs...)
	}

	group := resilience.NewFallbackGroup[leadstore.Store](primary, cfg.Backend, resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			MaxFailures:  cfg.Breaker.MaxFailures,
			ResetTimeout: cfg.Breaker.ResetTimeout,
		},
	})
	for i, fb := range cfg.Fallbacks {
		s, c, err := r.Create(ctx, fb)
		if err != nil {
			_ = closeAll()
			return nil, nil, fmt.Errorf("config: store.fallbacks[%d]: %w", i, err)
		}
		closers = append(closers, c)
		group.AddFallback(fmt.Sprintf("%s#%d", fb.Backend, i+1), s)
	}
	return leadstore.NewResilient(group, metrics), closeAll, nil
}
