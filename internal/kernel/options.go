package kernel

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/qorzen/kernel/internal/account"
	"github.com/qorzen/kernel/internal/eventbus"
	"github.com/qorzen/kernel/internal/plugin"
	"github.com/qorzen/kernel/internal/platform"
)

// AccountOptions configures the account gate (spec.md §4.4).
type AccountOptions struct {
	Users               account.UserStore
	Roles               account.RoleStore
	SigningKey          []byte
	SessionTTL          time.Duration
	RefreshTTL          time.Duration
	PermissionCacheSize int
	// OperatorUserID identifies the account whose grants bound what
	// permissions a plugin may declare at load time (spec.md §4.5 stage
	// 1) — typically a service account the embedding host controls, not
	// an interactively logged-in user.
	OperatorUserID string
}

// EventBusOptions configures the shared event bus (spec.md §4.2).
type EventBusOptions struct {
	NumWorkers int
	QueueSize  int
	Policy     eventbus.BackpressurePolicy
}

// PluginOptions configures plugin discovery and the resource sampler
// (spec.md §4.5/§4.6).
type PluginOptions struct {
	Roots             []string
	SignatureVerifier plugin.SignatureVerifier
	ReloadPause       time.Duration
	ResourceSchedule  string // cron expression, default "@every 5s"
	Sample            func(pluginID string) plugin.ResourceUsage
}

// ConfigOptions configures the tiered config store's bootstrap sources
// (spec.md §4.3/§6).
type ConfigOptions struct {
	// LocalFiles are YAML documents loaded into the Local tier at startup
	// (spec.md §3's tier ordering: Local sits just below Runtime).
	LocalFiles []string
	// WatchLocal enables fsnotify-driven hot reload of LocalFiles[0].
	WatchLocal bool
}

// Options bundles everything New needs to construct a Kernel. Platform is
// the one collaborator this package never constructs itself — per spec.md
// §6 the PlatformProvider is "consumed, not implemented by the core"; the
// embedding host assembles it (in-memory for tests, Postgres+Redis+OS
// filesystem for a server deployment, or a constrained subset for a
// browser profile) and hands it in.
type Options struct {
	Platform          platform.Provider
	MetricsRegisterer prometheus.Registerer
	Config            ConfigOptions
	EventBus          EventBusOptions
	Account           AccountOptions
	Plugin            PluginOptions
}

func (o *Options) setDefaults() {
	if o.EventBus.NumWorkers <= 0 {
		o.EventBus.NumWorkers = 8
	}
	if o.EventBus.QueueSize <= 0 {
		o.EventBus.QueueSize = 1024
	}
	if o.EventBus.Policy.Kind == "" {
		o.EventBus.Policy = eventbus.BackpressurePolicy{Kind: eventbus.BackpressureDropOldest}
	}
	if o.Plugin.ResourceSchedule == "" {
		o.Plugin.ResourceSchedule = "@every 5s"
	}
	if o.Plugin.Sample == nil {
		o.Plugin.Sample = func(string) plugin.ResourceUsage { return plugin.ResourceUsage{} }
	}
	if o.MetricsRegisterer == nil {
		o.MetricsRegisterer = prometheus.NewRegistry()
	}
}
