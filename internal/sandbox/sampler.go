package sandbox

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/qorzen/kernel/internal/eventbus"
	"github.com/qorzen/kernel/internal/kernelerr"
	"github.com/qorzen/kernel/internal/plugin"
	"github.com/qorzen/kernel/pkg/logging"
)

// UsageSampler probes a SampleFunc for each Active plugin on a cron
// schedule and flips any plugin exceeding its declared ResourceLimits to
// Paused (spec.md §4.6), publishing a plugin.throttled event. Driven by
// robfig/cron/v3, the same scheduling library the teacher's workflow
// engine uses for its own periodic jobs, rather than an ad hoc
// time.Ticker — see DESIGN.md.
type UsageSampler struct {
	registry *plugin.Registry
	bus      *eventbus.Bus
	sample   SampleFunc
	cron     *cron.Cron
}

// SampleFunc measures a single plugin's current resource consumption.
// Implementations differ per deployment (cgroup reads, runtime.MemStats
// for an in-process plugin, ...); the sampler itself is policy-free.
type SampleFunc func(pluginID string) plugin.ResourceUsage

// NewUsageSampler constructs a sampler; call Start with a cron schedule
// (e.g. "@every 5s") to begin polling.
func NewUsageSampler(registry *plugin.Registry, bus *eventbus.Bus, sample SampleFunc) *UsageSampler {
	return &UsageSampler{registry: registry, bus: bus, sample: sample, cron: cron.New()}
}

// Start schedules the periodic sample pass and begins running it.
func (s *UsageSampler) Start(schedule string) error {
	_, err := s.cron.AddFunc(schedule, s.tick)
	if err != nil {
		return kernelerr.Wrap(kernelerr.KindInternal, kernelerr.SeverityMedium, "sandbox.sampler", "invalid cron schedule", err)
	}
	s.cron.Start()
	return nil
}

// Stop halts the scheduler, waiting for any in-flight tick to finish.
func (s *UsageSampler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *UsageSampler) tick() {
	for _, ap := range s.registry.ActivePlugins() {
		usage := s.sample(ap.ID)
		s.registry.RecordUsage(ap.ID, usage)

		if !exceedsLimits(usage, ap.Manifest.ResourceLimits) {
			continue
		}
		if !s.registry.Throttle(ap.ID) {
			continue
		}
		logging.Warn("sandbox.sampler", "plugin %s throttled: usage %+v exceeds limits %+v", ap.ID, usage, ap.Manifest.ResourceLimits)
		if s.bus != nil {
			_ = s.bus.Publish(eventbus.Event{
				Type:      "plugin.throttled",
				Source:    "sandbox.sampler",
				Timestamp: time.Now(),
				Severity:  kernelerr.SeverityMedium,
				Body:      map[string]any{"plugin_id": ap.ID, "usage": usage},
			})
		}
	}
}

func exceedsLimits(usage plugin.ResourceUsage, limits *plugin.ResourceLimits) bool {
	if limits == nil {
		return false
	}
	if limits.MemoryBytes > 0 && usage.MemoryBytes > limits.MemoryBytes {
		return true
	}
	if limits.CPUTimeMS > 0 && usage.CPUTimeMS > limits.CPUTimeMS {
		return true
	}
	if limits.OpenFileHandles > 0 && usage.OpenFileHandles > limits.OpenFileHandles {
		return true
	}
	if limits.NetworkRequestsPerMinute > 0 && usage.NetworkRequestsPerMinute > limits.NetworkRequestsPerMinute {
		return true
	}
	if limits.DBQueriesPerMinute > 0 && usage.DBQueriesPerMinute > limits.DBQueriesPerMinute {
		return true
	}
	return false
}
