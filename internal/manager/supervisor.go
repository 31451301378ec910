package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/qorzen/kernel/internal/dependency"
	"github.com/qorzen/kernel/internal/kernelerr"
	"github.com/qorzen/kernel/internal/metrics"
)

// entry is what the supervisor stores per registered manager: the
// descriptor, the factory that builds it, and — once InitializeAll has run
// — the live instance.
type entry struct {
	descriptor Descriptor
	factory    Factory
	instance   Manager
}

// Supervisor is the kernel's manager supervisor: it owns the dependency
// graph, the registry of manager factories/instances, and drives every
// manager through the shared lifecycle FSM.
//
// Grounded on giantswarm-muster's internal/orchestrator.Orchestrator (per-
// manager goroutine plus callback wiring) and internal/services.registry
// (RWMutex-guarded name -> instance map), unified around
// internal/dependency.Graph instead of the teacher's uncheckable static
// graph.
type Supervisor struct {
	mu       sync.RWMutex
	graph    *dependency.Graph
	entries  map[string]*entry
	metrics  *metrics.Registry
	bus      EventPublisher
	watchers []chan HealthEvent
}

// New constructs an empty Supervisor. metricsReg and bus may be nil (tests,
// or bring-up before the bus exists); a nil bus simply means health events
// are only ever delivered via WatchHealth.
func New(metricsReg *metrics.Registry, bus EventPublisher) *Supervisor {
	return &Supervisor{
		graph:   dependency.New(),
		entries: make(map[string]*entry),
		metrics: metricsReg,
		bus:     bus,
	}
}

// Register adds a manager definition. Fails with kernelerr kind=conflict
// ("duplicate_name") if name is taken, kind=dependency ("cycle") if adding
// it would create a dependency cycle.
func (s *Supervisor) Register(descriptor Descriptor, factory Factory) error {
	if descriptor.Name == "" {
		return kernelerr.Validation("manager.register", "descriptor.name must not be empty")
	}
	if descriptor.ID == uuid.Nil {
		descriptor.ID = uuid.New()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[descriptor.Name]; exists {
		return kernelerr.Conflict("manager.register", fmt.Sprintf("duplicate_name: manager %q already registered", descriptor.Name))
	}

	deps := make([]dependency.NodeID, 0, len(descriptor.DependsOn))
	for _, d := range descriptor.DependsOn {
		deps = append(deps, dependency.NodeID(d))
	}

	// Probe on a scratch copy first so a bad registration never corrupts
	// the live graph.
	probe := dependency.New()
	for name, e := range s.entries {
		probeDeps := make([]dependency.NodeID, 0, len(e.descriptor.DependsOn))
		for _, d := range e.descriptor.DependsOn {
			probeDeps = append(probeDeps, dependency.NodeID(d))
		}
		probe.AddNode(dependency.Node{ID: dependency.NodeID(name), DependsOn: probeDeps})
	}
	probe.AddNode(dependency.Node{ID: dependency.NodeID(descriptor.Name), DependsOn: deps})

	if cycles := probe.Cycles(); len(cycles) > 0 {
		members := make([]string, 0, len(cycles[0].Members))
		for _, m := range cycles[0].Members {
			members = append(members, string(m))
		}
		return kernelerr.Dependency("manager.register", fmt.Sprintf("cycle: %v", members))
	}
	if err := probe.Validate(); err != nil {
		return kernelerr.Dependency("manager.register", err.Error())
	}

	s.graph.AddNode(dependency.Node{ID: dependency.NodeID(descriptor.Name), DependsOn: deps})
	s.entries[descriptor.Name] = &entry{descriptor: descriptor, factory: factory}
	return nil
}

// InitializeAll brings every registered manager through
// Uninitialized -> Initializing -> Running in topological order, one
// errgroup per dependency layer so independent managers initialize
// concurrently.
//
// On any manager's init failure: that manager is set to Failed
// (ReasonInitError), every not-yet-initialized dependent is set to
// Failed(ReasonPropagated), already-running managers are shut down in
// reverse topological order, and an aggregated error listing the root cause
// and every propagated manager is returned.
func (s *Supervisor) InitializeAll(ctx context.Context) error {
	s.mu.Lock()
	layers, err := s.graph.Layers()
	if err != nil {
		s.mu.Unlock()
		return kernelerr.Wrap(kernelerr.KindDependency, kernelerr.SeverityCritical, "manager.initialize_all", "cannot compute init order", err)
	}

	// Materialize instances and wire callbacks before any Initialize runs.
	for _, layer := range layers {
		for _, id := range layer {
			e := s.entries[string(id)]
			if e.instance == nil {
				e.instance = e.factory()
				e.instance.SetStateChangeCallback(s.onTransition)
			}
		}
	}
	s.mu.Unlock()

	agg := &kernelerr.Aggregate{}
	failed := make(map[string]*kernelerr.Error)
	started := make([]string, 0, len(layers))

	for _, layer := range layers {
		// Plain errgroup.Group (no WithContext): a sibling's init failure
		// must never cancel an independent sibling already in flight, so
		// every goroutine gets the caller's ctx untouched, not one
		// cancelled by the group on first error.
		var g errgroup.Group
		for _, id := range layer {
			name := string(id)
			e := s.entryOf(name)

			if depFailed := s.dependencyFailed(e, failed); depFailed != "" {
				s.mu.Lock()
				rootErr := failed[depFailed]
				s.mu.Unlock()
				kerr := s.propagateFailure(e, depFailed, rootErr, agg)
				s.mu.Lock()
				failed[name] = kerr
				s.mu.Unlock()
				continue
			}

			g.Go(func() error {
				return s.initializeOne(ctx, e, agg, failed)
			})
		}
		_ = g.Wait() // per-manager failures are already recorded on entries/agg

		for _, id := range layer {
			if failed[string(id)] == nil {
				started = append(started, string(id))
			}
		}
	}

	if agg.HasErrors() {
		// Already-running managers are shut down in reverse start order.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		for i := len(started) - 1; i >= 0; i-- {
			e := s.entryOf(started[i])
			if e.instance.State() == StateRunning || e.instance.State() == StateDegraded {
				_ = s.shutdownOne(shutdownCtx, e, 30*time.Second)
			}
		}
		return agg
	}

	return nil
}

func (s *Supervisor) initializeOne(ctx context.Context, e *entry, agg *kernelerr.Aggregate, failed map[string]*kernelerr.Error) error {
	if err := e.instance.TransitionTo(StateInitializing, "", nil); err != nil {
		return err
	}

	start := time.Now()
	initErr := e.instance.Initialize(ctx)
	if s.metrics != nil {
		s.metrics.ManagerInitSeconds.WithLabelValues(e.descriptor.Name).Observe(time.Since(start).Seconds())
	}

	if initErr != nil {
		kerr := kernelerr.Wrap(kernelerr.KindInternal, kernelerr.SeverityHigh, e.descriptor.Name, "initialization failed", initErr)
		_ = e.instance.TransitionTo(StateFailed, ReasonInitError, kerr)
		s.mu.Lock()
		failed[e.descriptor.Name] = kerr
		agg.Add(kerr)
		s.mu.Unlock()
		return kerr
	}

	if err := e.instance.TransitionTo(StateRunning, "", nil); err != nil {
		return err
	}
	return nil
}

// dependencyFailed returns the name of the first dependency of e that is
// already marked failed, or "" if none are.
func (s *Supervisor) dependencyFailed(e *entry, failed map[string]*kernelerr.Error) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, dep := range e.descriptor.DependsOn {
		if failed[dep] != nil {
			return dep
		}
	}
	return ""
}

// propagateFailure marks e Failed(ReasonPropagated) and returns the
// kernelerr.Error recorded for it, chaining rootCause — the actual error
// that failed rootDep — so the propagated error's cause chain leads back
// to the real root failure rather than a bare restatement of its name.
func (s *Supervisor) propagateFailure(e *entry, rootDep string, rootCause *kernelerr.Error, agg *kernelerr.Aggregate) *kernelerr.Error {
	var kerr *kernelerr.Error
	if rootCause != nil {
		kerr = kernelerr.Wrap(kernelerr.KindInternal, kernelerr.SeverityHigh, e.descriptor.Name,
			fmt.Sprintf("dependency %q failed", rootDep), rootCause)
	} else {
		kerr = kernelerr.New(kernelerr.KindInternal, kernelerr.SeverityHigh, e.descriptor.Name,
			fmt.Sprintf("dependency %q failed", rootDep))
	}
	// A propagated dependent never actually starts initializing, but the
	// FSM only has a Failed edge out of Initializing — so it passes through
	// that state on its way to Failed, never doing any real work there.
	_ = e.instance.TransitionTo(StateInitializing, "", nil)
	_ = e.instance.TransitionTo(StateFailed, ReasonPropagated, kerr)

	s.mu.Lock()
	agg.Add(kerr)
	s.mu.Unlock()
	return kerr
}

// ShutdownAll tears down every manager in reverse topological order. Each
// manager is given at most deadline-now budget; a manager exceeding its
// slice is forcibly abandoned and recorded Failed(ReasonShutdownTimeout),
// but subsequent managers still run.
func (s *Supervisor) ShutdownAll(ctx context.Context, deadline time.Duration) error {
	s.mu.RLock()
	layers, err := s.graph.Layers()
	s.mu.RUnlock()
	if err != nil {
		return kernelerr.Wrap(kernelerr.KindDependency, kernelerr.SeverityHigh, "manager.shutdown_all", "cannot compute shutdown order", err)
	}

	overallDeadline := time.Now().Add(deadline)
	agg := &kernelerr.Aggregate{}

	for i := len(layers) - 1; i >= 0; i-- {
		for _, id := range layers[i] {
			e := s.entryOf(string(id))
			if e.instance == nil {
				continue
			}
			st := e.instance.State()
			if st.Terminal() || st == StateUninitialized {
				continue
			}
			remaining := time.Until(overallDeadline)
			if remaining < 0 {
				remaining = 0
			}
			if err := s.shutdownOne(ctx, e, remaining); err != nil {
				kind := kernelerr.KindInternal
				var kerr *kernelerr.Error
				if errors.As(err, &kerr) && kerr.Kind() == kernelerr.KindTimeout {
					kind = kernelerr.KindTimeout
				}
				agg.Add(kernelerr.Wrap(kind, kernelerr.SeverityMedium, e.descriptor.Name, "shutdown failed", err))
			}
		}
	}
	return agg.ErrOrNil()
}

func (s *Supervisor) shutdownOne(ctx context.Context, e *entry, budget time.Duration) error {
	if err := e.instance.TransitionTo(StateShuttingDown, "", nil); err != nil {
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- e.instance.Shutdown(shutdownCtx) }()

	select {
	case err := <-done:
		if err != nil {
			_ = e.instance.TransitionTo(StateFailed, ReasonShutdownError, err)
			return err
		}
		return e.instance.TransitionTo(StateShutdown, "", nil)
	case <-shutdownCtx.Done():
		kerr := kernelerr.Timeout(e.descriptor.Name, "shutdown exceeded its budget")
		_ = e.instance.TransitionTo(StateFailed, ReasonShutdownTimeout, kerr)
		return kerr
	}
}

// Status aggregates a manager's self-reported health into a HealthReport.
func (s *Supervisor) Status(name string) (HealthReport, error) {
	e := s.entryOf(name)
	if e == nil || e.instance == nil {
		return HealthReport{}, kernelerr.New(kernelerr.KindInternal, kernelerr.SeverityLow, "manager.status", fmt.Sprintf("manager %q not found", name))
	}
	return HealthReport{
		Name:          name,
		State:         e.instance.State(),
		LastError:     e.instance.LastError(),
		FailureReason: reasonOf(e.instance),
	}, nil
}

func reasonOf(m Manager) FailureReason {
	if bm, ok := m.(interface{ Reason() FailureReason }); ok {
		return bm.Reason()
	}
	return ""
}

// WatchHealth returns a channel receiving one HealthEvent per transition
// from now on — it is not restartable from history.
func (s *Supervisor) WatchHealth() <-chan HealthEvent {
	ch := make(chan HealthEvent, 64)
	s.mu.Lock()
	s.watchers = append(s.watchers, ch)
	s.mu.Unlock()
	return ch
}

func (s *Supervisor) onTransition(name string, previous, current State, reason FailureReason, err error) {
	evt := HealthEvent{Name: name, Previous: previous, Current: current, Reason: reason, Err: err, Timestamp: time.Now()}

	if s.metrics != nil {
		s.metrics.ManagerTransitions.WithLabelValues(name, string(previous), string(current)).Inc()
		s.metrics.ManagerState.WithLabelValues(name, string(previous)).Set(0)
		s.metrics.ManagerState.WithLabelValues(name, string(current)).Set(1)
	}
	if s.bus != nil {
		s.bus.PublishHealthEvent(evt)
	}

	s.mu.RLock()
	watchers := append([]chan HealthEvent(nil), s.watchers...)
	s.mu.RUnlock()
	for _, ch := range watchers {
		select {
		case ch <- evt:
		default:
			// a slow watcher never blocks a transition; it simply misses one.
		}
	}
}

func (s *Supervisor) entryOf(name string) *entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[name]
}

// Names returns every registered manager name, for diagnostics/CLI listing.
func (s *Supervisor) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.entries))
	for n := range s.entries {
		names = append(names, n)
	}
	return names
}
