package kernel

import (
	"context"
	"time"

	"github.com/qorzen/kernel/internal/account"
	"github.com/qorzen/kernel/internal/config"
	"github.com/qorzen/kernel/internal/eventbus"
	"github.com/qorzen/kernel/internal/kernelerr"
	"github.com/qorzen/kernel/internal/manager"
	"github.com/qorzen/kernel/internal/metrics"
	"github.com/qorzen/kernel/internal/plugin"
	"github.com/qorzen/kernel/internal/router"
	"github.com/qorzen/kernel/internal/sandbox"
	"github.com/qorzen/kernel/pkg/logging"
)

// Kernel is the constructed, wired instance of every core component
// (spec.md §2). Exactly one is built per process (or per embedded host
// instance); nothing below it reaches for a package-level global.
type Kernel struct {
	opts Options

	Metrics    *metrics.Registry
	Config     *config.Store
	FileLoader *config.FileLoader
	Bus        *eventbus.Bus
	Supervisor *manager.Supervisor
	Gate       *account.Gate
	Router     *router.Dispatcher
	RouteTable *router.Table
	Plugins    *plugin.Registry
	Sandbox    *sandbox.Builder
	Sampler    *sandbox.UsageSampler
}

// New constructs a Kernel by wiring every core component in the order
// spec.md §2's data-flow diagram specifies: platform provider (supplied by
// the caller) → config store → logging/event/account → plugin registry.
// New does not start anything; call Start.
func New(opts Options) (*Kernel, error) {
	opts.setDefaults()

	m := metrics.New(opts.MetricsRegisterer)

	cfgStore := config.New(m)
	loader := config.NewFileLoader(cfgStore)
	for _, path := range opts.Config.LocalFiles {
		if err := loader.LoadFile(config.TierLocal, path); err != nil {
			return nil, kernelerr.Wrap(kernelerr.KindConfig, kernelerr.SeverityHigh, "kernel.new", "loading local config file "+path, err)
		}
	}
	if opts.Config.WatchLocal && len(opts.Config.LocalFiles) > 0 {
		if err := loader.WatchLocal(opts.Config.LocalFiles[0]); err != nil {
			return nil, kernelerr.Wrap(kernelerr.KindConfig, kernelerr.SeverityMedium, "kernel.new", "starting config watch", err)
		}
	}
	if err := config.LoadEnvOverlay(cfgStore); err != nil {
		return nil, kernelerr.Wrap(kernelerr.KindConfig, kernelerr.SeverityMedium, "kernel.new", "loading environment overlay", err)
	}

	bus := eventbus.New(opts.EventBus.NumWorkers, opts.EventBus.QueueSize, opts.EventBus.Policy, m)
	sup := manager.New(m, bus)

	gate := account.NewGate(account.GateConfig{
		SigningKey:      opts.Account.SigningKey,
		SessionTTL:      opts.Account.SessionTTL,
		RefreshTTL:      opts.Account.RefreshTTL,
		PermissionCache: opts.Account.PermissionCacheSize,
	}, opts.Account.Users, opts.Account.Roles, m)

	table := router.NewTable()
	dispatcher := router.NewDispatcher(table, gate)

	sandboxBuilder := &sandbox.Builder{Bus: bus, Platform: opts.Platform, Gate: gate, Router: dispatcher}

	var migrator plugin.Migrator
	if opts.Platform.DB != nil {
		migrator = plugin.PlatformMigrator(opts.Platform.DB)
	}

	registry := plugin.New(plugin.Config{
		ConfigStore:  cfgStore,
		BuildContext: sandboxBuilder.Build,
		Migrator:     migrator,
		Permissions:  sandbox.AccountPermissionPolicy(gate, opts.Account.OperatorUserID),
		RegisterRoute: func(pluginID string, r plugin.RouteSpec) error {
			return registerPluginRoute(table, pluginID, r)
		},
		RegisterMenu:  func(pluginID string, item plugin.MenuItem) error { return nil },
		DeregisterAll: table.Deregister,
		Metrics:       m,
		ReloadPause:   opts.Plugin.ReloadPause,
	})

	sampler := sandbox.NewUsageSampler(registry, bus, opts.Plugin.Sample)

	return &Kernel{
		opts:       opts,
		Metrics:    m,
		Config:     cfgStore,
		FileLoader: loader,
		Bus:        bus,
		Supervisor: sup,
		Gate:       gate,
		Router:     dispatcher,
		RouteTable: table,
		Plugins:    registry,
		Sandbox:    sandboxBuilder,
		Sampler:    sampler,
	}, nil
}

// registerPluginRoute adapts a plugin.RouteSpec into a router.Route,
// converting its string required_permissions into account.Permissions. The
// registered handler answers every request with 501; it does not call the
// owning Instance's plugin.RouteHandler, even when the Instance implements
// one.
func registerPluginRoute(table *router.Table, pluginID string, spec plugin.RouteSpec) error {
	perms := make([]router.RequiredPermission, 0, len(spec.RequiredPermissions))
	for _, raw := range spec.RequiredPermissions {
		p, ok := account.ParsePermission(raw)
		if !ok {
			return kernelerr.Validation("kernel.register_plugin_route", "malformed required_permissions entry: "+raw)
		}
		perms = append(perms, router.RequiredPermission{Resource: p.Resource, Action: p.Action, Scope: p.Scope})
	}

	return table.Register(router.Route{
		Method:              spec.Method,
		Path:                spec.Path,
		OwnerPluginID:       pluginID,
		RequiredPermissions: perms,
		Handler: func(req router.Request) (router.Response, error) {
			return router.Response{Status: 501, ContentType: "text/plain", Body: []byte("plugin " + pluginID + " does not implement this route")}, nil
		},
	})
}

// Start brings the kernel up: starts the event bus workers, initializes
// every registered manager in dependency order, discovers and loads
// plugins from the configured roots, and starts the resource sampler
// (spec.md §2/§4.5).
func (k *Kernel) Start(ctx context.Context) error {
	k.Bus.Start()

	if err := k.Supervisor.InitializeAll(ctx); err != nil {
		return err
	}

	candidates := plugin.Discover(k.opts.Plugin.Roots, k.opts.Plugin.SignatureVerifier)
	for _, m := range candidates {
		k.Plugins.AddCandidate(m, nil)
	}
	order, err := k.Plugins.ResolveDependencies()
	if err != nil {
		logging.Error("kernel.start", err, "plugin dependency resolution failed, continuing without plugins")
	} else {
		for _, id := range order {
			if loadErr := k.Plugins.Load(ctx, id); loadErr != nil {
				logging.Error("kernel.start", loadErr, "plugin %s failed to load", id)
			}
		}
	}

	if err := k.Sampler.Start(k.opts.Plugin.ResourceSchedule); err != nil {
		return err
	}

	logging.Info("kernel.start", "kernel started")
	return nil
}

// Shutdown tears the kernel down in reverse order: stop sampling, unload
// plugins, shut down managers within deadline, stop the bus, close file
// watches (spec.md §5's "shutdown imposes a global deadline").
func (k *Kernel) Shutdown(ctx context.Context, deadline time.Duration) error {
	k.Sampler.Stop()

	for _, id := range k.Plugins.List() {
		if err := k.Plugins.Unload(ctx, id); err != nil {
			logging.Error("kernel.shutdown", err, "plugin %s failed to unload cleanly", id)
		}
	}

	err := k.Supervisor.ShutdownAll(ctx, deadline)

	k.Bus.Stop()
	if k.FileLoader != nil {
		k.FileLoader.Close()
	}

	logging.Info("kernel.shutdown", "kernel stopped")
	return err
}
