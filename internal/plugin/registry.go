package plugin

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/qorzen/kernel/internal/config"
	"github.com/qorzen/kernel/internal/dependency"
	"github.com/qorzen/kernel/internal/kernelerr"
	"github.com/qorzen/kernel/internal/metrics"
	"github.com/qorzen/kernel/pkg/logging"
)

// PermissionPolicy decides whether a plugin's declared required
// permissions are permissible under the current account policy (spec.md
// §4.5 stage 1). Kept abstract so plugin has no direct internal/account
// dependency; the kernel orchestrator wires a real account.Gate-backed
// closure.
type PermissionPolicy func(required []string) error

// RouteRegistrar/MenuRegistrar/HandlerRegistrar are the hooks the loading
// pipeline's UI/API registration stage (spec.md §4.5 stage 6) calls into.
// Route/menu ids must be unique across loaded plugins; a collision returns
// an error that aborts this plugin's load.
type RouteRegistrar func(pluginID string, route RouteSpec) error
type MenuRegistrar func(pluginID string, item MenuItem) error
type RouteDeregistrar func(pluginID string)

// Registry is the kernel's plugin registry & loader (spec.md §4.5).
type Registry struct {
	mu sync.RWMutex

	graph     *dependency.Graph
	manifests map[string]*Manifest
	factories map[string]Factory
	loaded    map[string]*Loaded

	configStore    *config.Store
	buildContext   ContextBuilder
	migrator       Migrator
	permissions    PermissionPolicy
	registerRoute  RouteRegistrar
	registerMenu   MenuRegistrar
	deregisterAll  RouteDeregistrar

	metrics *metrics.Registry

	reloadPause time.Duration
}

// ContextBuilder constructs the sandboxed PluginContext for a plugin
// instance (implemented concretely by internal/sandbox; kept as a func
// value here so plugin never imports sandbox).
type ContextBuilder func(id string, manifest *Manifest, cfg map[string]any) Context

// Migrator applies a plugin's declared migrations against its isolated
// namespace (implemented by a thin adapter over platform.Database).
type Migrator func(ctx context.Context, pluginID string, migrations []MigrationSpec) error

// Config bundles a Registry's collaborators.
type Config struct {
	ConfigStore    *config.Store
	BuildContext   ContextBuilder
	Migrator       Migrator
	Permissions    PermissionPolicy
	RegisterRoute  RouteRegistrar
	RegisterMenu   MenuRegistrar
	DeregisterAll  RouteDeregistrar
	Metrics        *metrics.Registry
	ReloadPause    time.Duration
}

// New constructs an empty Registry.
func New(cfg Config) *Registry {
	if cfg.ReloadPause <= 0 {
		cfg.ReloadPause = 100 * time.Millisecond
	}
	return &Registry{
		graph:         dependency.New(),
		manifests:     make(map[string]*Manifest),
		factories:     make(map[string]Factory),
		loaded:        make(map[string]*Loaded),
		configStore:   cfg.ConfigStore,
		buildContext:  cfg.BuildContext,
		migrator:      cfg.Migrator,
		permissions:   cfg.Permissions,
		registerRoute: cfg.RegisterRoute,
		registerMenu:  cfg.RegisterMenu,
		deregisterAll: cfg.DeregisterAll,
		metrics:       cfg.Metrics,
		reloadPause:   cfg.ReloadPause,
	}
}

// AddCandidate registers a discovered manifest and its construction
// factory. Call ResolveDependencies once every candidate for this
// discovery round has been added.
func (r *Registry) AddCandidate(m *Manifest, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.manifests[m.ID] = m
	r.factories[m.ID] = factory
}

// ResolveDependencies builds the dependency graph over every added
// candidate (spec.md §4.5): mandatory dependencies whose version
// requirement matches an available manifest's version become edges;
// optional dependencies are spliced into load order but never contribute
// to cycle detection. Returns the load order, or a dependency.cycle error
// naming the cycle.
func (r *Registry) ResolveDependencies() ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g := dependency.New()
	for id, m := range r.manifests {
		var mandatory, optional []dependency.NodeID
		for _, dep := range m.Dependencies {
			target, ok := r.manifests[dep.ID]
			if !ok {
				continue // unresolved dependency: caller's Load will fail this plugin individually
			}
			constraint, err := semver.NewConstraint(dep.VersionReq)
			if err != nil || !constraint.Check(target.Version) {
				continue
			}
			if dep.Optional {
				optional = append(optional, dependency.NodeID(dep.ID))
			} else {
				mandatory = append(mandatory, dependency.NodeID(dep.ID))
			}
		}
		g.AddNode(dependency.Node{ID: dependency.NodeID(id), DependsOn: mandatory, OptionalDependsOn: optional})
	}

	if cycles := g.Cycles(); len(cycles) > 0 {
		members := make([]string, 0, len(cycles[0].Members))
		for _, m := range cycles[0].Members {
			members = append(members, string(m))
		}
		sort.Strings(members)
		return nil, kernelerr.Dependency("plugin.resolve_dependencies", fmt.Sprintf("cycle: %v", members))
	}

	order, err := g.TopoSort()
	if err != nil {
		return nil, kernelerr.Wrap(kernelerr.KindDependency, kernelerr.SeverityMedium, "plugin.resolve_dependencies", "computing load order", err)
	}

	r.graph = g
	out := make([]string, len(order))
	for i, id := range order {
		out[i] = string(id)
	}
	return out, nil
}

// Load runs the six-stage loading pipeline for id (spec.md §4.5). Any
// stage failure aborts this plugin's load without affecting already-loaded
// plugins.
func (r *Registry) Load(ctx context.Context, id string) error {
	r.mu.Lock()
	manifest, ok := r.manifests[id]
	if !ok {
		r.mu.Unlock()
		return kernelerr.Plugin("plugin.load", id, "no manifest for id")
	}
	if existing, ok := r.loaded[id]; ok && existing.State.Active() {
		r.mu.Unlock()
		return kernelerr.Conflict("plugin.load", fmt.Sprintf("plugin %q already in a non-Unloaded state", id))
	}
	factory := r.factories[id]
	r.loaded[id] = &Loaded{Manifest: manifest, State: StateLoading, LoadedAt: time.Now()}
	r.mu.Unlock()

	if err := r.loadStages(ctx, id, manifest, factory); err != nil {
		r.mu.Lock()
		r.loaded[id].State = StateError
		r.mu.Unlock()
		if r.metrics != nil {
			r.metrics.PluginState.WithLabelValues(id, string(StateError)).Set(1)
		}
		return err
	}

	r.mu.Lock()
	r.loaded[id].State = StateActive
	r.loaded[id].LastActivity = time.Now()
	r.mu.Unlock()
	if r.metrics != nil {
		r.metrics.PluginState.WithLabelValues(id, string(StateActive)).Set(1)
	}
	return nil
}

func (r *Registry) loadStages(ctx context.Context, id string, m *Manifest, factory Factory) error {
	// Stage 1: security validation.
	if r.permissions != nil {
		if err := r.permissions(m.RequiredPermissions); err != nil {
			return kernelerr.Wrap(kernelerr.KindPermission, kernelerr.SeverityMedium, "plugin.load.security", "declared permissions rejected", err)
		}
	}

	// Stage 2: dependency resolution — every mandatory dependency must
	// already be Active.
	for _, dep := range m.Dependencies {
		if dep.Optional {
			continue
		}
		r.mu.RLock()
		loadedDep, ok := r.loaded[dep.ID]
		r.mu.RUnlock()
		if !ok || loadedDep.State != StateActive {
			return kernelerr.Dependency("plugin.load.dependencies", fmt.Sprintf("mandatory dependency %q is not Active", dep.ID))
		}
	}

	// Stage 3: configuration loading under plugins.<id>.*.
	var cfg map[string]any
	if r.configStore != nil {
		cfg = r.configStore.Namespace("plugins." + id + ".")
	}

	// Stage 4: migration, strictly increasing version, one failed
	// migration halts the load but leaves applied ones intact (the
	// migrator implementation owns that property via platform.Database).
	if len(m.Migrations) > 0 && r.migrator != nil {
		if err := r.migrator(ctx, id, m.Migrations); err != nil {
			return kernelerr.Wrap(kernelerr.KindPlatform, kernelerr.SeverityHigh, "plugin.load.migration", "applying migrations", err)
		}
	}

	// Stage 5: instantiation.
	if factory == nil {
		return kernelerr.Plugin("plugin.load.instantiate", id, "no factory registered for this manifest id")
	}
	var pctx Context
	if r.buildContext != nil {
		pctx = r.buildContext(id, m, cfg)
	}
	instance, err := factory(pctx)
	if err != nil {
		return kernelerr.Wrap(kernelerr.KindPlugin, kernelerr.SeverityMedium, "plugin.load.instantiate", "factory failed", err).WithMetadata("plugin_id", id)
	}

	// Stage 6: UI/API registration. Route/menu id collisions fail the load.
	var registered []string
	for _, route := range m.APIRoutes {
		if r.registerRoute != nil {
			if err := r.registerRoute(id, route); err != nil {
				return kernelerr.Wrap(kernelerr.KindConflict, kernelerr.SeverityMedium, "plugin.load.registration", "route registration failed", err)
			}
			registered = append(registered, route.Method+" "+route.Path)
		}
	}
	for _, item := range m.MenuItems {
		if r.registerMenu != nil {
			if err := r.registerMenu(id, item); err != nil {
				return kernelerr.Wrap(kernelerr.KindConflict, kernelerr.SeverityMedium, "plugin.load.registration", "menu registration failed", err)
			}
		}
	}

	r.mu.Lock()
	r.loaded[id].Instance = instance
	r.loaded[id].registeredRoutes = registered
	r.mu.Unlock()
	return nil
}

// Unload tears down plugin id (spec.md §4.5): refuses if any other Active
// plugin mandatorily depends on it, deregisters routes/UI/handlers, calls
// the plugin's own Shutdown, then marks it Unloaded. Idempotent: unloading
// an already-unloaded (or never-loaded) plugin is a no-op success.
func (r *Registry) Unload(ctx context.Context, id string) error {
	r.mu.Lock()
	lp, ok := r.loaded[id]
	if !ok || !lp.State.Active() {
		r.mu.Unlock()
		return nil
	}
	for depID, dep := range r.loaded {
		if depID == id || dep.State != StateActive {
			continue
		}
		for _, ref := range dep.Manifest.Dependencies {
			if ref.ID == id && !ref.Optional {
				r.mu.Unlock()
				return kernelerr.Conflict("plugin.unload", fmt.Sprintf("plugin %q is a mandatory dependency of active plugin %q", id, depID))
			}
		}
	}
	lp.State = StateUnloading
	r.mu.Unlock()

	if r.deregisterAll != nil {
		r.deregisterAll(id)
	}

	var shutdownErr error
	if lp.Instance != nil {
		shutdownErr = lp.Instance.Shutdown(ctx)
	}

	r.mu.Lock()
	lp.State = StateUnloaded
	lp.Instance = nil
	r.mu.Unlock()
	if r.metrics != nil {
		r.metrics.PluginState.WithLabelValues(id, string(StateUnloaded)).Set(1)
	}

	if shutdownErr != nil {
		logging.Error("plugin.unload", shutdownErr, "plugin %s shutdown returned an error", id)
		return kernelerr.Wrap(kernelerr.KindPlugin, kernelerr.SeverityMedium, "plugin.unload", "plugin shutdown failed", shutdownErr)
	}
	return nil
}

// Reload performs a hot reload: unload then load with the same id (spec.md
// §4.5). Mandatory dependents are paused for the duration and resumed
// after; optional dependents are left untouched. A brief pause (r.reloadPause,
// default 100ms) lets event queues draining requests to this plugin settle
// before the new instance takes over.
func (r *Registry) Reload(ctx context.Context, id string) error {
	mandatoryDependents := r.dependentsOf(id, false)

	for _, depID := range mandatoryDependents {
		r.mu.Lock()
		if dep, ok := r.loaded[depID]; ok && dep.State == StateActive {
			dep.State = StatePaused
		}
		r.mu.Unlock()
	}

	if err := r.Unload(ctx, id); err != nil {
		return err
	}

	timer := time.NewTimer(r.reloadPause)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return kernelerr.Cancelled("plugin.reload", "reload cancelled during drain pause")
	}

	loadErr := r.Load(ctx, id)

	for _, depID := range mandatoryDependents {
		r.mu.Lock()
		if dep, ok := r.loaded[depID]; ok && dep.State == StatePaused {
			dep.State = StateActive
		}
		r.mu.Unlock()
	}

	return loadErr
}

// dependentsOf returns every loaded plugin id that depends on id,
// optionally including optional dependents.
func (r *Registry) dependentsOf(id string, includeOptional bool) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for depID, dep := range r.loaded {
		if depID == id {
			continue
		}
		for _, ref := range dep.Manifest.Dependencies {
			if ref.ID != id {
				continue
			}
			if ref.Optional && !includeOptional {
				continue
			}
			out = append(out, depID)
		}
	}
	return out
}

// Status returns a defensive copy of a loaded plugin's record, or false if
// it is not currently tracked.
func (r *Registry) Status(id string) (Loaded, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lp, ok := r.loaded[id]
	if !ok {
		return Loaded{}, false
	}
	return *lp, true
}

// List returns every tracked plugin id.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.loaded))
	for id := range r.loaded {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ActivePlugins returns every currently Active plugin's id, manifest, and
// last-sampled usage — the view internal/sandbox's periodic resource
// sampler walks (spec.md §4.6).
func (r *Registry) ActivePlugins() []ActivePlugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ActivePlugin
	for id, lp := range r.loaded {
		if lp.State != StateActive {
			continue
		}
		out = append(out, ActivePlugin{ID: id, Manifest: lp.Manifest, Usage: lp.Usage})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ActivePlugin is one entry of Registry.ActivePlugins.
type ActivePlugin struct {
	ID       string
	Manifest *Manifest
	Usage    ResourceUsage
}

// RecordUsage stores the latest ResourceUsage sample for id.
func (r *Registry) RecordUsage(id string, usage ResourceUsage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if lp, ok := r.loaded[id]; ok {
		lp.Usage = usage
		lp.LastActivity = time.Now()
	}
}

// Throttle transitions an Active plugin to Paused because it exceeded its
// declared ResourceLimits (spec.md §4.6). A no-op if the plugin is not
// currently Active.
func (r *Registry) Throttle(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	lp, ok := r.loaded[id]
	if !ok || lp.State != StateActive {
		return false
	}
	lp.State = StatePaused
	if r.metrics != nil {
		r.metrics.PluginState.WithLabelValues(id, string(StatePaused)).Set(1)
	}
	return true
}

// Resume transitions a Paused plugin back to Active, e.g. once its usage
// falls back under its limits.
func (r *Registry) Resume(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	lp, ok := r.loaded[id]
	if !ok || lp.State != StatePaused {
		return false
	}
	lp.State = StateActive
	if r.metrics != nil {
		r.metrics.PluginState.WithLabelValues(id, string(StateActive)).Set(1)
	}
	return true
}
