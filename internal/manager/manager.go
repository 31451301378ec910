package manager

import (
	"context"
	"sync"
)

// Manager is the interface every long-lived subsystem hosted by the
// supervisor implements: a closed lifecycle FSM trimmed to the two
// suspendable operations the supervisor drives directly. A manager's health
// is read from State and LastError, which its BaseManager updates through
// TransitionTo.
type Manager interface {
	Name() string
	DependsOn() []string

	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error

	State() State
	LastError() error
	SetStateChangeCallback(cb StateChangeCallback)
}

// StateChangeCallback is invoked whenever a manager's state changes,
// outside of any lock the manager holds.
type StateChangeCallback func(name string, previous, current State, reason FailureReason, err error)

// Factory constructs a fresh Manager instance at registration time —
// registration stores the factory, not the instance, so Register can be
// called before the manager's dependencies (config, platform providers)
// are ready.
type Factory func() Manager

// BaseManager is an embeddable implementation of the bookkeeping every
// Manager needs, grounded on giantswarm-muster's BaseService
// (internal/services/base.go): a mutex-protected state/reason/lastError
// triple plus a callback invoked outside the lock.
type BaseManager struct {
	mu            sync.RWMutex
	name          string
	dependsOn     []string
	state         State
	reason        FailureReason
	lastError     error
	stateChangeCb StateChangeCallback
}

// NewBaseManager constructs a BaseManager in StateUninitialized.
func NewBaseManager(name string, dependsOn []string) *BaseManager {
	return &BaseManager{
		name:      name,
		dependsOn: append([]string(nil), dependsOn...),
		state:     StateUninitialized,
	}
}

func (b *BaseManager) Name() string          { return b.name }
func (b *BaseManager) DependsOn() []string    { return append([]string(nil), b.dependsOn...) }

func (b *BaseManager) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

func (b *BaseManager) LastError() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastError
}

func (b *BaseManager) SetStateChangeCallback(cb StateChangeCallback) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stateChangeCb = cb
}

// TransitionTo moves the manager to a new state, rejecting illegal FSM
// edges. The callback fires outside the lock so it may safely call back
// into the supervisor (e.g. to re-read Status).
func (b *BaseManager) TransitionTo(newState State, reason FailureReason, err error) error {
	b.mu.Lock()
	old := b.state
	if !CanTransition(old, newState) {
		b.mu.Unlock()
		return &IllegalTransitionError{From: old, To: newState}
	}
	b.state = newState
	b.reason = reason
	b.lastError = err
	cb := b.stateChangeCb
	b.mu.Unlock()

	if cb != nil {
		cb(b.name, old, newState, reason, err)
	}
	return nil
}

// Reason returns the FailureReason last recorded alongside the state.
func (b *BaseManager) Reason() FailureReason {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.reason
}

// IllegalTransitionError reports an attempted FSM edge that does not exist.
type IllegalTransitionError struct {
	From State
	To   State
}

func (e *IllegalTransitionError) Error() string {
	return "illegal manager state transition: " + string(e.From) + " -> " + string(e.To)
}
