// Package routing selects the provider that serves each chat call and fails
// over to a fallback provider when the active one is rate limited.
package routing

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mercator-hq/parley/pkg/providerfactory"
	"mercator-hq/parley/pkg/providers"
)

// Registry resolves provider names to live clients.
// *providerfactory.Registry satisfies it.
type Registry interface {
	Get(name providers.Name) (providers.ChatProvider, error)
	Has(name providers.Name) bool
	Names() []providers.Name
}

// Orchestrator routes chat calls to the active provider and fails over to
// the fallback provider after rate-limit and quota errors.
//
// A single call makes at most one failover hop. Calls are not serialized:
// a failover in one call changes the provider used by calls that start
// afterwards, and the last switch wins.
//
// Example usage:
//
//	orch, err := routing.New(registry, routing.Options{
//	    Default:         providers.GoogleAI,
//	    Fallback:        providers.DeepSeek,
//	    FailoverEnabled: true,
//	})
//	if err != nil {
//	    return err
//	}
//	reply, err := orch.Chat(ctx, "Hello!", history, providers.ChatOptions{})
type Orchestrator struct {
	registry Registry
	fallback providers.Name
	failover bool
	logger   *slog.Logger
	stats    *atomicStats

	mu     sync.RWMutex
	active providers.Name

	listenersMu sync.RWMutex
	listeners   []func(SwitchEvent)
}

// New creates an orchestrator. Both the default and, when failover is
// enabled, the fallback provider must be registered.
func New(registry Registry, opts Options) (*Orchestrator, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if !registry.Has(opts.Default) {
		return nil, notFound(registry, opts.Default)
	}
	if opts.FailoverEnabled {
		if opts.Fallback == "" {
			return nil, ErrNoFallback
		}
		if !registry.Has(opts.Fallback) {
			return nil, notFound(registry, opts.Fallback)
		}
	}

	o := &Orchestrator{
		registry: registry,
		fallback: opts.Fallback,
		failover: opts.FailoverEnabled,
		logger:   opts.Logger,
		stats:    newAtomicStats(),
		active:   opts.Default,
	}

	o.logger.Debug("orchestrator created",
		"active_provider", opts.Default,
		"fallback_provider", opts.Fallback,
		"failover_enabled", opts.FailoverEnabled,
	)

	return o, nil
}

// Chat sends content to the active provider. A failover-eligible error
// switches to the fallback provider and retries there once; any other
// error, or an error from the fallback itself, is returned unchanged.
func (o *Orchestrator) Chat(ctx context.Context, content string, history []providers.Message, opts providers.ChatOptions) (string, error) {
	o.stats.incrementTotal()

	name := o.ActiveProvider()
	reply, err := o.chatWith(ctx, name, content, history, opts)
	if err != nil {
		if next, ok := o.failoverFrom(name, err); ok {
			reply, err = o.chatWith(ctx, next, content, history, opts)
		}
	}

	o.stats.recordResult(err)
	if err != nil {
		o.logFailure(err)
		return "", err
	}
	return reply, nil
}

func (o *Orchestrator) chatWith(ctx context.Context, name providers.Name, content string, history []providers.Message, opts providers.ChatOptions) (string, error) {
	provider, err := o.registry.Get(name)
	if err != nil {
		return "", err
	}
	o.stats.incrementProvider(name)
	return provider.Chat(ctx, content, history, opts)
}

// ChatStream streams a reply from the active provider. The returned stream
// is lazy. A failover-eligible error before the first chunk switches to the
// fallback and restarts the stream there; once a chunk has been delivered,
// errors surface after the delivered chunks without failover.
func (o *Orchestrator) ChatStream(ctx context.Context, content string, history []providers.Message, opts providers.ChatOptions) providers.Stream {
	o.stats.incrementTotal()
	return &failoverStream{
		o:       o,
		ctx:     ctx,
		content: content,
		history: history,
		opts:    opts,
	}
}

// SetProvider makes name the active provider. It fails with a
// *providerfactory.NotFoundError when name is not registered.
func (o *Orchestrator) SetProvider(name providers.Name) error {
	if !o.registry.Has(name) {
		return notFound(o.registry, name)
	}

	o.mu.Lock()
	from := o.active
	o.active = name
	o.mu.Unlock()

	if from == name {
		return nil
	}

	o.stats.incrementExplicitSwitches()
	o.emit(SwitchEvent{From: from, To: name, Reason: ReasonExplicit, At: time.Now()})
	return nil
}

// ActiveProvider returns the provider the next call will use.
func (o *Orchestrator) ActiveProvider() providers.Name {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.active
}

// FallbackProvider returns the configured fallback provider.
func (o *Orchestrator) FallbackProvider() providers.Name {
	return o.fallback
}

// FailoverEnabled reports whether automatic failover is on.
func (o *Orchestrator) FailoverEnabled() bool {
	return o.failover
}

// AvailableProviders returns the registered provider names, sorted.
func (o *Orchestrator) AvailableProviders() []providers.Name {
	return o.registry.Names()
}

// OnSwitch registers fn to be called after every provider switch. fn runs
// on the goroutine that caused the switch and must not block.
func (o *Orchestrator) OnSwitch(fn func(SwitchEvent)) {
	o.listenersMu.Lock()
	defer o.listenersMu.Unlock()
	o.listeners = append(o.listeners, fn)
}

// Stats returns a snapshot of the orchestrator counters.
func (o *Orchestrator) Stats() Stats {
	return o.stats.snapshot()
}

// ResetStats zeroes the orchestrator counters.
func (o *Orchestrator) ResetStats() {
	o.stats.reset()
}

// failoverFrom decides whether the failure of failed moves traffic to the
// fallback. On success the fallback becomes active and its name is
// returned.
func (o *Orchestrator) failoverFrom(failed providers.Name, err error) (providers.Name, bool) {
	if !o.failover || failed == o.fallback || !ShouldFailover(err) {
		return "", false
	}

	o.mu.Lock()
	o.active = o.fallback
	o.mu.Unlock()

	o.stats.incrementFailovers()
	o.logger.Warn("provider failed, switching to fallback",
		"provider", failed,
		"fallback_provider", o.fallback,
		"error", err,
	)
	o.emit(SwitchEvent{From: failed, To: o.fallback, Reason: ReasonFailover, Cause: err, At: time.Now()})

	return o.fallback, true
}

func (o *Orchestrator) emit(event SwitchEvent) {
	o.listenersMu.RLock()
	listeners := make([]func(SwitchEvent), len(o.listeners))
	copy(listeners, o.listeners)
	o.listenersMu.RUnlock()

	for _, fn := range listeners {
		fn(event)
	}
}

func (o *Orchestrator) logFailure(err error) {
	if providers.KindOf(err) == providers.KindCancelled {
		o.logger.Debug("chat cancelled", "active_provider", o.ActiveProvider())
		return
	}
	o.logger.Error("chat failed",
		"active_provider", o.ActiveProvider(),
		"error_kind", providers.KindOf(err),
		"error", err,
	)
}

func notFound(registry Registry, name providers.Name) error {
	return &providerfactory.NotFoundError{Name: name, Available: registry.Names()}
}
