package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"
	"mercator-hq/parley/pkg/config"
	"mercator-hq/parley/pkg/providerfactory"
	"mercator-hq/parley/pkg/providers"
	"mercator-hq/parley/pkg/routing"
	"mercator-hq/parley/pkg/telemetry/health"
	"mercator-hq/parley/pkg/telemetry/metrics"
	"mercator-hq/parley/pkg/telemetry/tracing"
)

const shutdownTimeout = 5 * time.Second

// app holds the components shared by the chat-facing commands.
type app struct {
	cfg       *config.Config
	registry  *providerfactory.Registry
	orch      *routing.Orchestrator
	collector *metrics.Collector
	tracer    *tracing.Tracer
	checker   *health.Checker
	logger    *slog.Logger

	group  *errgroup.Group
	cancel context.CancelFunc
}

// appOptions overrides the configured routing for one invocation.
type appOptions struct {
	provider   string
	noFailover bool
}

// newApp builds the provider registry and orchestrator from cfg and starts
// the optional metrics server and configuration watcher. Background work
// stops when ctx is cancelled; close waits for it.
func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	logger := slog.Default()

	if opts.provider != "" {
		if _, err := providers.ParseName(opts.provider); err != nil {
			return nil, err
		}
	}

	tracer, err := tracing.New(&cfg.Telemetry.Tracing, Version)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	a := &app{
		cfg:       cfg,
		registry:  providerfactory.NewRegistry(),
		collector: metrics.NewCollector(&cfg.Telemetry.Metrics, nil),
		tracer:    tracer,
		checker:   health.New(0),
		logger:    logger,
	}
	ctx, a.cancel = context.WithCancel(ctx)
	a.group, ctx = errgroup.WithContext(ctx)

	providerfactory.RegisterFromConfig(a.registry, cfg, a.collector, tracer.Wrap)
	a.checker.RegisterProviders(a.registry)

	routingOpts := routing.Options{
		Default:         providers.Name(cfg.Routing.Default),
		Fallback:        providers.Name(cfg.Routing.Fallback),
		FailoverEnabled: cfg.Routing.Failover() && !opts.noFailover,
		Logger:          logger,
	}
	if opts.provider != "" {
		routingOpts.Default = providers.Name(opts.provider)
	}

	a.orch, err = routing.New(a.registry, routingOpts)
	if err != nil {
		a.cancel()
		_ = tracer.Shutdown(context.Background())
		return nil, err
	}
	a.orch.OnSwitch(a.collector.ObserveSwitch)
	a.collector.SetActiveProvider(a.orch.ActiveProvider())

	if cfg.Telemetry.Metrics.Enabled && cfg.Telemetry.Metrics.Address != "" {
		addr := cfg.Telemetry.Metrics.Address
		a.group.Go(func() error {
			return a.collector.Serve(ctx, addr, func(mux *http.ServeMux) {
				health.Mount(mux, a.checker, Version, GitCommit, BuildDate)
			})
		})
	}

	a.watchConfig(ctx)

	return a, nil
}

// watchConfig re-registers provider constructors whenever the config file
// changes. Providers already in use keep their settings; the new values
// apply to providers built afterwards.
func (a *app) watchConfig(ctx context.Context) {
	if cfgFile == "" {
		return
	}
	if _, err := os.Stat(cfgFile); errors.Is(err, fs.ErrNotExist) {
		return
	}

	watcher, err := config.NewWatcher(cfgFile, a.logger)
	if err != nil {
		a.logger.Warn("configuration watcher disabled", "error", err)
		return
	}

	a.group.Go(func() error {
		return watcher.Watch(ctx, func(cfg *config.Config) {
			providerfactory.RegisterFromConfig(a.registry, cfg, a.collector, a.tracer.Wrap)
			a.logger.Info("provider configuration reloaded", "providers", a.registry.Names())
		})
	})
}

// close stops background work started by newApp, releases providers and
// flushes traces.
func (a *app) close() error {
	a.cancel()

	var errs []error
	if err := a.registry.Close(); err != nil {
		errs = append(errs, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.tracer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to flush traces: %w", err))
	}

	if err := a.group.Wait(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
