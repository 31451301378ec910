// Package manager implements the kernel's manager supervisor: it brings a
// set of named, dependency-ordered long-lived subsystems ("managers")
// through a shared lifecycle FSM, aggregates their health, and tears them
// down deterministically.
//
// Grounded on giantswarm-muster's internal/services (Service interface,
// BaseService embeddable state machine, registry) and
// internal/orchestrator/orchestrator.go (per-manager goroutine plus
// state-change callback wiring, dependency-ordered startup). The teacher's
// ServiceState enum is MCP-server shaped (Waiting/Starting/Retrying); this
// package generalizes it to a closed FSM
// (Uninitialized/Initializing/Running/Degraded/ShuttingDown/Shutdown/Failed)
// and replaces the teacher's ad hoc `stateChangeSubscribers []chan<-` fan-out
// with publishing HealthEvents onto an injected EventPublisher
// (internal/eventbus, once a manager and the bus are both owned by the same
// orchestrator: the bus is an opaque client to a manager, never an owning
// reference back, so it never participates in the dependency graph itself).
//
// Dependency ordering and cycle detection are delegated to
// internal/dependency.Graph rather than reimplemented here.
package manager
