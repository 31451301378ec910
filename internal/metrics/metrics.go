package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry holds every metric the kernel exposes. It is owned by the
// orchestrator and handed to components that need it — never reached
// through a package-level global.
type Registry struct {
	ManagerState       *prometheus.GaugeVec
	ManagerTransitions *prometheus.CounterVec
	ManagerInitSeconds *prometheus.HistogramVec

	EventsPublished *prometheus.CounterVec
	EventsDropped   *prometheus.CounterVec
	QueueDepth      prometheus.Gauge
	HandlerSeconds  *prometheus.HistogramVec

	ConfigKeys    *prometheus.GaugeVec
	ConfigReloads *prometheus.CounterVec

	PluginState *prometheus.GaugeVec

	PermissionCacheHits   prometheus.Counter
	PermissionCacheMisses prometheus.Counter

	RouterRequests *prometheus.CounterVec
}

// New constructs and registers every metric against reg. Passing
// prometheus.NewRegistry() keeps metrics test-isolated; passing
// prometheus.DefaultRegisterer wires into the process-wide exporter.
func New(reg prometheus.Registerer) *Registry {
	r := &Registry{
		ManagerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "qorzen",
			Subsystem: "manager",
			Name:      "state",
			Help:      "Current FSM state of a manager, one gauge set to 1 per (name,state) pair.",
		}, []string{"name", "state"}),
		ManagerTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qorzen",
			Subsystem: "manager",
			Name:      "transitions_total",
			Help:      "Count of manager state transitions.",
		}, []string{"name", "from", "to"}),
		ManagerInitSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "qorzen",
			Subsystem: "manager",
			Name:      "init_seconds",
			Help:      "Time spent in a manager's Initialize call.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"name"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qorzen",
			Subsystem: "eventbus",
			Name:      "published_total",
			Help:      "Count of events accepted by publish/publish_sync.",
		}, []string{"type", "source"}),
		EventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qorzen",
			Subsystem: "eventbus",
			Name:      "dropped_total",
			Help:      "Count of events dropped under backpressure.",
		}, []string{"reason"}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "qorzen",
			Subsystem: "eventbus",
			Name:      "queue_depth",
			Help:      "Current depth of the bounded event queue.",
		}),
		HandlerSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "qorzen",
			Subsystem: "eventbus",
			Name:      "handler_seconds",
			Help:      "Time spent inside a subscription handler.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"subscriber"}),
		ConfigKeys: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "qorzen",
			Subsystem: "config",
			Name:      "keys",
			Help:      "Number of keys currently set in a tier.",
		}, []string{"tier"}),
		ConfigReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qorzen",
			Subsystem: "config",
			Name:      "reloads_total",
			Help:      "Count of tier reloads.",
		}, []string{"tier"}),
		PluginState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "qorzen",
			Subsystem: "plugin",
			Name:      "state",
			Help:      "Current state of a loaded plugin, one gauge set to 1 per (id,state) pair.",
		}, []string{"id", "state"}),
		PermissionCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "qorzen",
			Subsystem: "account",
			Name:      "permission_cache_hits_total",
			Help:      "Permission check cache hits.",
		}),
		PermissionCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "qorzen",
			Subsystem: "account",
			Name:      "permission_cache_misses_total",
			Help:      "Permission check cache misses.",
		}),
		RouterRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qorzen",
			Subsystem: "router",
			Name:      "requests_total",
			Help:      "Count of dispatched requests by resolved status code.",
		}, []string{"status"}),
	}

	for _, c := range []prometheus.Collector{
		r.ManagerState, r.ManagerTransitions, r.ManagerInitSeconds,
		r.EventsPublished, r.EventsDropped, r.QueueDepth, r.HandlerSeconds,
		r.ConfigKeys, r.ConfigReloads, r.PluginState,
		r.PermissionCacheHits, r.PermissionCacheMisses, r.RouterRequests,
	} {
		// MustRegister panics on duplicate registration — acceptable here
		// since New is only ever called once per Registry by the
		// orchestrator, against a registry it owns.
		reg.MustRegister(c)
	}

	return r
}
