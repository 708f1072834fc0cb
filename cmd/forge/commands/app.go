package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/opsforge/opsforge/pkg/catalog"
	"github.com/opsforge/opsforge/pkg/config"
	"github.com/opsforge/opsforge/pkg/discovery"
	"github.com/opsforge/opsforge/pkg/engine"
	"github.com/opsforge/opsforge/pkg/inventory"
	"github.com/opsforge/opsforge/pkg/policy"
	"github.com/opsforge/opsforge/pkg/stores"
	"github.com/opsforge/opsforge/pkg/telemetry"
)

// app is the wired runtime: configuration, telemetry, store, catalog,
// monitor, policy gate and the plan runner. run and serve build the full
// app; lighter commands wire only the pieces they need.
type app struct {
	cfg      *config.Config
	tel      *telemetry.Telemetry
	store    *stores.SQLiteStore
	registry *catalog.Registry
	monitor  *discovery.Monitor
	gate     *policy.Engine
	runner   *engine.Runner
}

// newApp wires the full execution stack from the environment
// configuration. The caller owns the returned app and must Close it.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	tel, err := telemetry.NewTelemetry(cfg.TelemetryConfig(version))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	a := &app{cfg: cfg, tel: tel}

	a.store, err = openStore(ctx, cfg)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	a.registry = catalog.NewRegistry(cfg.Catalog.Dirs, tel.Metrics, tel.Events, tel.Logger.Zerolog())
	report, err := a.registry.Reload(ctx)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("failed to load tool catalog: %w", err)
	}
	log.Debug().
		Int("builtins", report.Builtins).
		Int("catalog", report.CatalogTools).
		Int("skipped", report.SkippedFiles).
		Msg("Tool catalog loaded")

	a.monitor, err = newMonitor(cfg, tel)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	a.gate, err = newGate(ctx, cfg, tel.Logger.Zerolog())
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	resolver := inventory.NewResolver(a.store, tel.Logger.Zerolog())
	dispatcher := engine.NewDispatcher(
		engine.NewServiceInvoker(a.monitor, tel.Logger),
		inventory.NewInvoker(resolver, tel.Logger.Zerolog()),
		tel.Logger,
	)

	var admission engine.AdmissionPolicy
	if a.gate != nil {
		admission = a.gate
	}
	a.runner = engine.NewRunner(a.registry, dispatcher, admission, stores.NewExecutionHistory(a.store), tel)

	return a, nil
}

// Close releases the app's resources in reverse wiring order.
func (a *app) Close(ctx context.Context) {
	if a.monitor != nil {
		_ = a.monitor.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.tel != nil {
		if err := a.tel.Shutdown(ctx); err != nil {
			log.Debug().Err(err).Msg("Telemetry shutdown failed")
		}
	}
}

// openStore opens the SQLite store and applies migrations.
func openStore(ctx context.Context, cfg *config.Config) (*stores.SQLiteStore, error) {
	store, err := stores.NewSQLiteStore(cfg.StoreConfig())
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// newMonitor builds the health monitor over the configured record store
// and registers the static services.
func newMonitor(cfg *config.Config, tel *telemetry.Telemetry) (*discovery.Monitor, error) {
	var records discovery.RecordStore
	if cfg.Discovery.Enabled {
		store, err := discovery.NewEtcdStore(cfg.Discovery.Endpoints, cfg.Discovery.Namespace, tel.Logger)
		if err != nil {
			return nil, err
		}
		records = store
	} else {
		records = discovery.NewMemoryStore()
	}

	monitor := discovery.NewMonitor(cfg.MonitorConfig(), records, tel)
	for name, url := range cfg.Services {
		monitor.Register(name, url)
	}
	return monitor, nil
}

// newGate builds the admission engine when policy enforcement is enabled
// and loads custom policies from the configured directory. Returns nil
// when policy is disabled; the runner then admits every plan.
func newGate(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*policy.Engine, error) {
	if !cfg.Policy.Enabled {
		return nil, nil
	}

	gate, err := policy.NewEngine(cfg.PolicyEngineConfig(), logger)
	if err != nil {
		return nil, err
	}
	if cfg.Policy.Dir != "" {
		loaded, err := gate.LoadPolicies(ctx, []string{cfg.Policy.Dir})
		if err != nil {
			return nil, err
		}
		log.Debug().Int("loaded", loaded).Str("dir", cfg.Policy.Dir).Msg("Custom policies loaded")
	}
	return gate, nil
}
