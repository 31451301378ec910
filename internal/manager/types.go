package manager

import (
	"time"

	"github.com/google/uuid"
)

// State is a manager's lifecycle FSM state.
type State string

const (
	StateUninitialized State = "Uninitialized"
	StateInitializing  State = "Initializing"
	StateRunning        State = "Running"
	StateDegraded       State = "Degraded"
	StateShuttingDown   State = "ShuttingDown"
	StateShutdown       State = "Shutdown"
	StateFailed         State = "Failed"
)

// Terminal reports whether a state has no outgoing transitions.
func (s State) Terminal() bool {
	return s == StateShutdown || s == StateFailed
}

// validTransitions encodes the FSM's legal edges. Running and Degraded are
// the only pair allowed to cycle between each other.
var validTransitions = map[State]map[State]bool{
	StateUninitialized: {StateInitializing: true},
	StateInitializing:  {StateRunning: true, StateFailed: true},
	StateRunning:       {StateDegraded: true, StateShuttingDown: true},
	StateDegraded:      {StateRunning: true, StateShuttingDown: true, StateFailed: true},
	StateShuttingDown:  {StateShutdown: true, StateFailed: true},
	StateShutdown:      {},
	StateFailed:        {},
}

// CanTransition reports whether from -> to is a legal FSM edge.
func CanTransition(from, to State) bool {
	edges, ok := validTransitions[from]
	if !ok {
		return false
	}
	return edges[to]
}

// FailureReason names why a manager landed in Failed, stored beside the
// manager's last error (BaseManager.Reason) rather than encoded into State
// itself: the FSM has a single Failed state, not per-cause variants.
type FailureReason string

const (
	ReasonInitError       FailureReason = "init_error"
	ReasonPropagated      FailureReason = "propagated"
	ReasonShutdownTimeout FailureReason = "shutdown_timeout"
	ReasonShutdownError   FailureReason = "shutdown_error"
)

// Descriptor is the registration-time description of a manager, trimmed to
// what the supervisor itself needs — platform requirements and required
// permissions are carried by the caller's own manager implementation, not
// the supervisor.
type Descriptor struct {
	ID        uuid.UUID
	Name      string
	DependsOn []string
}

// HealthReport is the result of Supervisor.Status(name).
type HealthReport struct {
	Name             string
	State            State
	FailureReason    FailureReason
	LastTransitionAt time.Time
	LastError        error
	Metadata         map[string]any
}

// HealthEvent is emitted once per manager state transition, consumed by
// Supervisor.WatchHealth() and, once wired to the bus, republished as a
// "health.<name>" kernel event.
type HealthEvent struct {
	Name      string
	Previous  State
	Current   State
	Reason    FailureReason
	Err       error
	Timestamp time.Time
}

// EventPublisher is the minimal surface the supervisor needs from an event
// bus. internal/eventbus.Bus implements it; nil is a legal value meaning
// "no bus wired yet" (e.g. during standalone tests).
type EventPublisher interface {
	PublishHealthEvent(HealthEvent)
}
