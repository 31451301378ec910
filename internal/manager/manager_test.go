package manager

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestNewBaseManager(t *testing.T) {
	base := NewBaseManager("db", []string{"config", "logging"})

	if base.Name() != "db" {
		t.Errorf("Name() = %s, want db", base.Name())
	}
	if len(base.DependsOn()) != 2 {
		t.Errorf("DependsOn() = %v, want 2 entries", base.DependsOn())
	}
	if base.State() != StateUninitialized {
		t.Errorf("State() = %s, want %s", base.State(), StateUninitialized)
	}
	if base.LastError() != nil {
		t.Error("expected no initial error")
	}
}

func TestBaseManager_DependsOnIsCopy(t *testing.T) {
	base := NewBaseManager("db", []string{"config"})
	deps := base.DependsOn()
	deps[0] = "mutated"
	if base.DependsOn()[0] != "config" {
		t.Error("DependsOn() must return an independent copy")
	}
}

func TestBaseManager_ValidTransition(t *testing.T) {
	base := NewBaseManager("db", nil)
	if err := base.TransitionTo(StateInitializing, "", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if base.State() != StateInitializing {
		t.Errorf("State() = %s, want %s", base.State(), StateInitializing)
	}
	if err := base.TransitionTo(StateRunning, "", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBaseManager_IllegalTransition(t *testing.T) {
	base := NewBaseManager("db", nil)
	err := base.TransitionTo(StateRunning, "", nil)
	if err == nil {
		t.Fatal("expected illegal transition error")
	}
	var ite *IllegalTransitionError
	if !errors.As(err, &ite) {
		t.Fatalf("expected *IllegalTransitionError, got %T", err)
	}
	if base.State() != StateUninitialized {
		t.Error("state must not change on a rejected transition")
	}
}

func TestBaseManager_RunningDegradedCycle(t *testing.T) {
	base := NewBaseManager("db", nil)
	_ = base.TransitionTo(StateInitializing, "", nil)
	_ = base.TransitionTo(StateRunning, "", nil)

	if err := base.TransitionTo(StateDegraded, "", nil); err != nil {
		t.Fatalf("Running -> Degraded should be legal: %v", err)
	}
	if err := base.TransitionTo(StateRunning, "", nil); err != nil {
		t.Fatalf("Degraded -> Running should be legal: %v", err)
	}
}

func TestBaseManager_TerminalStatesHaveNoExit(t *testing.T) {
	base := NewBaseManager("db", nil)
	_ = base.TransitionTo(StateInitializing, "", nil)
	_ = base.TransitionTo(StateFailed, ReasonInitError, errors.New("boom"))

	if !base.State().Terminal() {
		t.Fatal("Failed must be terminal")
	}
	if err := base.TransitionTo(StateRunning, "", nil); err == nil {
		t.Fatal("expected no transitions out of a terminal state")
	}
}

func TestBaseManager_CallbackFiresOutsideLock(t *testing.T) {
	base := NewBaseManager("db", nil)

	var mu sync.Mutex
	var calls []string
	base.SetStateChangeCallback(func(name string, previous, current State, reason FailureReason, err error) {
		mu.Lock()
		calls = append(calls, string(previous)+"->"+string(current))
		mu.Unlock()
		// Calling back into the manager from inside the callback must not
		// deadlock — proves the callback runs outside the state lock.
		_ = base.State()
	})

	_ = base.TransitionTo(StateInitializing, "", nil)
	_ = base.TransitionTo(StateRunning, "", nil)

	mu.Lock()
	defer mu.Unlock()
	if len(calls) != 2 {
		t.Fatalf("expected 2 callback invocations, got %v", calls)
	}
}

// fakeManager is a minimal Manager used by supervisor tests.
type fakeManager struct {
	*BaseManager
	initErr     error
	shutdownErr error
	initDelay   func(ctx context.Context) error
}

func newFakeManager(name string, deps []string) *fakeManager {
	return &fakeManager{BaseManager: NewBaseManager(name, deps)}
}

func (f *fakeManager) Initialize(ctx context.Context) error {
	if f.initDelay != nil {
		return f.initDelay(ctx)
	}
	return f.initErr
}

func (f *fakeManager) Shutdown(ctx context.Context) error {
	return f.shutdownErr
}

var _ Manager = (*fakeManager)(nil)
