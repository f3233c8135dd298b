package providerfactory

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"mercator-hq/parley/pkg/providers"
)

// ErrNotFound is matched by errors.Is for lookups of unregistered names.
var ErrNotFound = errors.New("provider not registered")

// NotFoundError is returned when a provider name has no registration.
type NotFoundError struct {
	Name      providers.Name
	Available []providers.Name
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	names := make([]string, len(e.Available))
	for i, n := range e.Available {
		names[i] = string(n)
	}
	return fmt.Sprintf("provider %q is not registered (available: %s)", e.Name, strings.Join(names, ", "))
}

// Is reports whether target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// Constructor builds a provider instance. It runs at most once per
// successful Get.
type Constructor func() (providers.ChatProvider, error)

// Registry maps provider names to constructors and memoizes the instances
// they build, so each name yields a single client per process.
//
// Registry is thread-safe. Concurrent first use of a name runs its
// constructor once; all callers receive the same instance.
type Registry struct {
	mu           sync.RWMutex
	constructors map[providers.Name]Constructor
	instances    map[providers.Name]providers.ChatProvider
	group        singleflight.Group
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		constructors: make(map[providers.Name]Constructor),
		instances:    make(map[providers.Name]providers.ChatProvider),
	}
}

// Register associates name with ctor. A later registration replaces the
// constructor, but an instance already built for name stays cached.
func (r *Registry) Register(name providers.Name, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.constructors[name]; ok {
		slog.Debug("replacing provider constructor", "provider", name)
	}
	r.constructors[name] = ctor
}

// Get returns the cached instance for name, constructing it on first use.
// Construction errors are returned to every waiting caller and are not
// cached; the next Get tries again.
func (r *Registry) Get(name providers.Name) (providers.ChatProvider, error) {
	r.mu.RLock()
	if p, ok := r.instances[name]; ok {
		r.mu.RUnlock()
		return p, nil
	}
	_, registered := r.constructors[name]
	r.mu.RUnlock()

	if !registered {
		return nil, &NotFoundError{Name: name, Available: r.Names()}
	}

	v, err, shared := r.group.Do(string(name), func() (any, error) {
		r.mu.RLock()
		if p, ok := r.instances[name]; ok {
			r.mu.RUnlock()
			return p, nil
		}
		ctor := r.constructors[name]
		r.mu.RUnlock()

		p, err := ctor()
		if err != nil {
			slog.Warn("provider construction failed",
				"provider", name,
				"error", err,
			)
			return nil, fmt.Errorf("failed to create provider %q: %w", name, err)
		}

		r.mu.Lock()
		r.instances[name] = p
		r.mu.Unlock()

		slog.Info("provider created", "provider", name)
		return p, nil
	})
	if err != nil {
		return nil, err
	}

	if shared {
		slog.Debug("provider construction shared", "provider", name)
	}
	return v.(providers.ChatProvider), nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name providers.Name) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.constructors[name]
	return ok
}

// Cached reports whether an instance has been built for name.
func (r *Registry) Cached(name providers.Name) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.instances[name]
	return ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []providers.Name {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]providers.Name, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// HealthSummary reports the health of every instance built so far.
// Providers that were never used are not included.
func (r *Registry) HealthSummary() HealthSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	summary := HealthSummary{
		Details: make(map[providers.Name]providers.ProviderHealth),
	}

	for name, p := range r.instances {
		reporter, ok := p.(providers.HealthReporter)
		if !ok {
			continue
		}
		health := reporter.GetHealth()
		summary.Details[name] = health
		summary.Total++
		if health.IsHealthy {
			summary.Healthy++
		}
	}

	summary.Unhealthy = summary.Total - summary.Healthy
	return summary
}

// Close closes every cached instance that holds resources and empties the
// cache. Registrations are kept.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for name, p := range r.instances {
		if c, ok := p.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close provider %q: %w", name, err))
			}
		}
	}
	r.instances = make(map[providers.Name]providers.ChatProvider)

	return errors.Join(errs...)
}

// HealthSummary provides an overview of provider health across the registry.
type HealthSummary struct {
	// Total is the number of instances that report health
	Total int

	// Healthy is the number of healthy instances
	Healthy int

	// Unhealthy is the number of unhealthy instances
	Unhealthy int

	// Details contains per-provider health information
	Details map[providers.Name]providers.ProviderHealth
}
