package manager

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func desc(name string, deps ...string) Descriptor {
	return Descriptor{ID: uuid.New(), Name: name, DependsOn: deps}
}

func TestSupervisor_RegisterDuplicateName(t *testing.T) {
	s := New(nil, nil)
	if err := s.Register(desc("a"), func() Manager { return newFakeManager("a", nil) }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := s.Register(desc("a"), func() Manager { return newFakeManager("a", nil) })
	if err == nil {
		t.Fatal("expected duplicate_name error")
	}
}

func TestSupervisor_RegisterCycle(t *testing.T) {
	s := New(nil, nil)
	if err := s.Register(desc("a", "b"), func() Manager { return newFakeManager("a", []string{"b"}) }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := s.Register(desc("b", "a"), func() Manager { return newFakeManager("b", []string{"a"}) })
	if err == nil {
		t.Fatal("expected a dependency cycle error")
	}
}

func TestSupervisor_InitializeAll_TopologicalOrder(t *testing.T) {
	s := New(nil, nil)
	var mu sync.Mutex
	var order []string
	record := func(name string) func(ctx context.Context) error {
		return func(ctx context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}

	a := newFakeManager("a", nil)
	a.initDelay = record("a")
	b := newFakeManager("b", []string{"a"})
	b.initDelay = record("b")
	c := newFakeManager("c", []string{"b"})
	c.initDelay = record("c")

	_ = s.Register(desc("a"), func() Manager { return a })
	_ = s.Register(desc("b", "a"), func() Manager { return b })
	_ = s.Register(desc("c", "b"), func() Manager { return c })

	if err := s.InitializeAll(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pos := map[string]int{}
	for i, n := range order {
		pos[n] = i
	}
	if pos["a"] > pos["b"] || pos["b"] > pos["c"] {
		t.Fatalf("expected topological init order, got %v", order)
	}

	for _, name := range []string{"a", "b", "c"} {
		report, err := s.Status(name)
		if err != nil {
			t.Fatalf("Status(%s): %v", name, err)
		}
		if report.State != StateRunning {
			t.Errorf("%s state = %s, want Running", name, report.State)
		}
	}
}

// A,B,C with B->A, C->B; B's init fails and the failure must propagate to
// C with a cause chain reaching back to B's actual error.
func TestSupervisor_InitializeAll_FailurePropagation(t *testing.T) {
	s := New(nil, nil)

	a := newFakeManager("A", nil)
	b := newFakeManager("B", []string{"A"})
	b.initErr = errors.New("boom")
	c := newFakeManager("C", []string{"B"})

	_ = s.Register(desc("A"), func() Manager { return a })
	_ = s.Register(desc("B", "A"), func() Manager { return b })
	_ = s.Register(desc("C", "B"), func() Manager { return c })

	err := s.InitializeAll(context.Background())
	if err == nil {
		t.Fatal("expected aggregated error")
	}

	aReport, _ := s.Status("A")
	if aReport.State != StateShutdown {
		t.Errorf("A state = %s, want Shutdown (already-running managers are rolled back)", aReport.State)
	}

	bReport, _ := s.Status("B")
	if bReport.State != StateFailed {
		t.Errorf("B state = %s, want Failed", bReport.State)
	}
	if bReport.FailureReason != ReasonInitError {
		t.Errorf("B failure reason = %s, want %s", bReport.FailureReason, ReasonInitError)
	}

	cReport, _ := s.Status("C")
	if cReport.State != StateFailed {
		t.Errorf("C state = %s, want Failed", cReport.State)
	}
	if cReport.FailureReason != ReasonPropagated {
		t.Errorf("C failure reason = %s, want %s", cReport.FailureReason, ReasonPropagated)
	}
	if cReport.LastError == nil {
		t.Fatal("C's recorded error is nil, want a chain rooted at B's init error")
	}
	if !errors.Is(cReport.LastError, bReport.LastError) {
		t.Errorf("C's error does not chain to B's error: %v", cReport.LastError)
	}
	if !strings.Contains(cReport.LastError.Error(), "boom") {
		t.Errorf("C's error message %q does not surface B's root cause", cReport.LastError.Error())
	}
}

func TestSupervisor_ShutdownAll_ReverseOrder(t *testing.T) {
	s := New(nil, nil)
	var mu sync.Mutex
	var order []string
	recordingShutdown := func(name string) *recordingManager {
		return &recordingManager{fakeManager: newFakeManager(name, nil), order: &order, mu: &mu}
	}

	a := recordingShutdown("a")
	b := &recordingManager{fakeManager: newFakeManager("b", []string{"a"}), order: &order, mu: &mu}

	_ = s.Register(desc("a"), func() Manager { return a })
	_ = s.Register(desc("b", "a"), func() Manager { return b })

	if err := s.InitializeAll(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.ShutdownAll(context.Background(), 5*time.Second); err != nil {
		t.Fatalf("unexpected shutdown error: %v", err)
	}

	for _, name := range []string{"a", "b"} {
		report, _ := s.Status(name)
		if report.State != StateShutdown {
			t.Errorf("%s state = %s, want Shutdown", name, report.State)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "b" || order[1] != "a" {
		t.Fatalf("expected shutdown order [b a], got %v", order)
	}
}

type recordingManager struct {
	*fakeManager
	order *[]string
	mu    *sync.Mutex
}

func (r *recordingManager) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	*r.order = append(*r.order, r.Name())
	r.mu.Unlock()
	return nil
}

func TestSupervisor_ShutdownAll_WithinDeadline(t *testing.T) {
	s := New(nil, nil)
	slow := newFakeManager("slow", nil)
	slow.initDelay = func(ctx context.Context) error { return nil }

	blocker := make(chan struct{})
	slowShutdown := &blockingShutdownManager{fakeManager: slow, block: blocker}

	_ = s.Register(desc("slow"), func() Manager { return slowShutdown })
	if err := s.InitializeAll(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	close(blocker) // allow shutdown to proceed immediately this time
	if err := s.ShutdownAll(context.Background(), 2*time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

type blockingShutdownManager struct {
	*fakeManager
	block chan struct{}
}

func (b *blockingShutdownManager) Shutdown(ctx context.Context) error {
	select {
	case <-b.block:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestSupervisor_WatchHealth(t *testing.T) {
	s := New(nil, nil)
	a := newFakeManager("a", nil)
	_ = s.Register(desc("a"), func() Manager { return a })

	ch := s.WatchHealth()

	if err := s.InitializeAll(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case evt := <-ch:
			seen[string(evt.Current)] = true
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for health event")
		}
	}
	if !seen[string(StateInitializing)] || !seen[string(StateRunning)] {
		t.Errorf("expected to observe Initializing and Running transitions, got %v", seen)
	}
}
