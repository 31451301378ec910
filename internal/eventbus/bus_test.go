package eventbus

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/qorzen/kernel/internal/kernelerr"
	"github.com/qorzen/kernel/internal/manager"
)

func TestFilter_EmptyMatchesAll(t *testing.T) {
	f := Filter{}
	if !f.Matches(Event{Type: "anything", Source: "anywhere"}) {
		t.Fatal("empty filter should match every event")
	}
}

func TestFilter_TypesAndSources(t *testing.T) {
	f := Filter{Types: []string{"a"}, Sources: []string{"s1"}}
	if !f.Matches(Event{Type: "a", Source: "s1"}) {
		t.Error("expected match on type and source")
	}
	if f.Matches(Event{Type: "b", Source: "s1"}) {
		t.Error("type mismatch must not match")
	}
	if f.Matches(Event{Type: "a", Source: "s2"}) {
		t.Error("source mismatch must not match")
	}
}

func TestFilter_MinSeverity(t *testing.T) {
	f := Filter{MinSeverity: kernelerr.SeverityHigh}
	if f.Matches(Event{Severity: kernelerr.SeverityMedium}) {
		t.Error("medium must not satisfy min_severity=high")
	}
	if !f.Matches(Event{Severity: kernelerr.SeverityCritical}) {
		t.Error("critical must satisfy min_severity=high")
	}
}

func TestFilter_MetadataPredicates(t *testing.T) {
	f := Filter{MetadataPredicates: map[string]func(any) bool{
		"count": func(v any) bool { n, ok := v.(int); return ok && n > 5 },
	}}
	if f.Matches(Event{Metadata: map[string]any{"count": 3}}) {
		t.Error("predicate should reject count<=5")
	}
	if !f.Matches(Event{Metadata: map[string]any{"count": 9}}) {
		t.Error("predicate should accept count>5")
	}
	if f.Matches(Event{Metadata: map[string]any{}}) {
		t.Error("missing predicate key must not match")
	}
}

func TestBus_PublishSync_DeliversImmediately(t *testing.T) {
	b := New(1, 4, BackpressurePolicy{Kind: BackpressureReject}, nil)
	var got Event
	b.Subscribe("s", Filter{}, func(e Event) { got = e })

	b.PublishSync(Event{Type: "t", Source: "src", CorrelationID: "x"})
	if got.CorrelationID != "x" {
		t.Fatalf("handler did not observe the published event synchronously")
	}
}

func TestBus_Unsubscribe_StopsFutureDelivery(t *testing.T) {
	b := New(1, 4, BackpressurePolicy{Kind: BackpressureReject}, nil)
	var calls int32
	id := b.Subscribe("s", Filter{}, func(e Event) { atomic.AddInt32(&calls, 1) })

	b.PublishSync(Event{Type: "t", Source: "s"})
	b.Unsubscribe(id)
	b.Unsubscribe(id) // idempotent
	b.PublishSync(Event{Type: "t", Source: "s"})

	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestBus_Publish_PerSourceFIFO(t *testing.T) {
	b := New(4, 32, BackpressurePolicy{Kind: BackpressureReject}, nil)
	b.Start()
	defer b.Stop()

	const n = 20
	var mu sync.Mutex
	var order []int
	done := make(chan struct{})
	b.Subscribe("rec", Filter{Sources: []string{"svc-a"}}, func(e Event) {
		mu.Lock()
		order = append(order, e.Metadata["seq"].(int))
		if len(order) == n {
			close(done)
		}
		mu.Unlock()
	})

	for i := 0; i < n; i++ {
		if err := b.Publish(Event{Type: "x", Source: "svc-a", Metadata: map[string]any{"seq": i}}); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("not all same-source events were delivered")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, v := range order {
		if v != i {
			t.Fatalf("expected strictly increasing per-source order, got %v", order)
		}
	}
}

// Models spec.md §8 scenario 2: two producers interleave 1,000 events each
// on distinct sources; a subscription matching both must see each source's
// own subsequence strictly in publish order, with no claim about
// interleaving between the two.
func TestBus_Scenario2_PerSourceOrderingUnderLoad(t *testing.T) {
	b := New(4, 256, BackpressurePolicy{Kind: BackpressureWait, WaitFor: time.Second}, nil)
	b.Start()
	defer b.Stop()

	const perSource = 1000
	var mu sync.Mutex
	seqBySource := map[string][]int{}
	total := 0
	done := make(chan struct{})
	b.Subscribe("rec", Filter{Sources: []string{"s1", "s2"}}, func(e Event) {
		mu.Lock()
		src := e.Source
		seqBySource[src] = append(seqBySource[src], e.Metadata["seq"].(int))
		total++
		if total == 2*perSource {
			close(done)
		}
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for _, src := range []string{"s1", "s2"} {
		wg.Add(1)
		go func(source string) {
			defer wg.Done()
			for i := 0; i < perSource; i++ {
				if err := b.Publish(Event{Type: "load", Source: source, Metadata: map[string]any{"seq": i}}); err != nil {
					t.Errorf("publish %s/%d: %v", source, i, err)
				}
			}
		}(src)
	}
	wg.Wait()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("not all 2,000 events were delivered")
	}

	mu.Lock()
	defer mu.Unlock()
	for _, src := range []string{"s1", "s2"} {
		seq := seqBySource[src]
		if len(seq) != perSource {
			t.Fatalf("source %s: got %d events, want %d", src, len(seq), perSource)
		}
		for i, v := range seq {
			if v != i {
				t.Fatalf("source %s: publish order violated at position %d, got %v", src, i, seq)
			}
		}
	}
}

func TestBus_Handler_NeverConcurrentWithItself(t *testing.T) {
	b := New(4, 16, BackpressurePolicy{Kind: BackpressureReject}, nil)
	b.Start()
	defer b.Stop()

	var active int32
	var mu sync.Mutex
	var sawConcurrent bool
	var wg sync.WaitGroup

	b.Subscribe("rec", Filter{}, func(e Event) {
		if atomic.AddInt32(&active, 1) > 1 {
			mu.Lock()
			sawConcurrent = true
			mu.Unlock()
		}
		time.Sleep(time.Millisecond)
		atomic.AddInt32(&active, -1)
		wg.Done()
	})

	wg.Add(8)
	for i := 0; i < 8; i++ {
		src := fmt.Sprintf("svc-%d", i) // distinct sources spread across the workers
		if err := b.Publish(Event{Type: "x", Source: src}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if sawConcurrent {
		t.Fatal("a single subscription's handler was invoked concurrently with itself")
	}
}

func TestBus_Backpressure_Reject(t *testing.T) {
	b := New(1, 1, BackpressurePolicy{Kind: BackpressureReject}, nil)
	b.Start()
	defer b.Stop()

	started := make(chan struct{})
	release := make(chan struct{})
	var startedOnce sync.Once
	b.Subscribe("blocker", Filter{}, func(e Event) {
		startedOnce.Do(func() { close(started) })
		<-release
	})

	if err := b.Publish(Event{Type: "t", Source: "s"}); err != nil {
		t.Fatalf("first publish (starts the blocking handler): %v", err)
	}
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("handler never started")
	}

	if err := b.Publish(Event{Type: "t", Source: "s"}); err != nil {
		t.Fatalf("second publish should fit the one free queue slot: %v", err)
	}

	if err := b.Publish(Event{Type: "t", Source: "s"}); err == nil {
		t.Fatal("expected the third publish to be rejected (queue full)")
	}

	close(release)
}

func TestBus_Backpressure_DropOldest(t *testing.T) {
	b := New(1, 1, BackpressurePolicy{Kind: BackpressureDropOldest}, nil)
	b.Start()
	defer b.Stop()

	started := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	var order []string
	b.Subscribe("rec", Filter{Types: []string{"t"}}, func(e Event) {
		if e.CorrelationID == "first" {
			close(started)
			<-release
		}
		mu.Lock()
		order = append(order, e.CorrelationID)
		mu.Unlock()
	})

	if err := b.Publish(Event{Type: "t", Source: "s", CorrelationID: "first"}); err != nil {
		t.Fatalf("publish first: %v", err)
	}
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("handler never started")
	}

	if err := b.Publish(Event{Type: "t", Source: "s", CorrelationID: "second"}); err != nil {
		t.Fatalf("publish second: %v", err)
	}
	if err := b.Publish(Event{Type: "t", Source: "s", CorrelationID: "third"}); err != nil {
		t.Fatalf("publish third (should evict second, not error): %v", err)
	}

	close(release)
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "first" || order[1] != "third" {
		t.Fatalf("expected [first third] with second dropped, got %v", order)
	}
}

func TestBus_Backpressure_EmitsDroppedMetaEvent(t *testing.T) {
	b := New(1, 1, BackpressurePolicy{Kind: BackpressureReject}, nil)
	b.Start()
	defer b.Stop()

	started := make(chan struct{})
	release := make(chan struct{})
	var startedOnce sync.Once
	b.Subscribe("blocker", Filter{Types: []string{"t"}}, func(e Event) {
		startedOnce.Do(func() { close(started) })
		<-release
	})

	metaCh := make(chan Event, 4)
	b.Subscribe("meta-watcher", Filter{Types: []string{metaEventDropped}}, func(e Event) {
		metaCh <- e
	})

	if err := b.Publish(Event{Type: "t", Source: "s"}); err != nil {
		t.Fatalf("first publish: %v", err)
	}
	<-started
	if err := b.Publish(Event{Type: "t", Source: "s"}); err != nil {
		t.Fatalf("second publish should fill the queue: %v", err)
	}
	if err := b.Publish(Event{Type: "t", Source: "s"}); err == nil {
		t.Fatal("expected rejection")
	}

	select {
	case evt := <-metaCh:
		if evt.Metadata["reason"] != "reject" {
			t.Errorf("meta-event reason = %v, want reject", evt.Metadata["reason"])
		}
		if evt.Metadata["dropped_type"] != "t" {
			t.Errorf("meta-event dropped_type = %v, want t", evt.Metadata["dropped_type"])
		}
	case <-time.After(time.Second):
		t.Fatal("expected a bus.dropped meta-event")
	}

	close(release)
}

func TestBus_PublishHealthEvent(t *testing.T) {
	b := New(1, 4, BackpressurePolicy{Kind: BackpressureReject}, nil)
	b.Start()
	defer b.Stop()

	received := make(chan Event, 1)
	b.Subscribe("watch", Filter{Types: []string{healthEventType}}, func(e Event) {
		received <- e
	})

	var publisher manager.EventPublisher = b
	publisher.PublishHealthEvent(manager.HealthEvent{
		Name:      "db",
		Previous:  manager.StateInitializing,
		Current:   manager.StateFailed,
		Reason:    manager.ReasonInitError,
		Timestamp: time.Now(),
	})

	select {
	case e := <-received:
		if e.Severity != kernelerr.SeverityHigh {
			t.Errorf("severity = %v, want high for a Failed transition", e.Severity)
		}
		if e.Metadata["manager"] != "db" {
			t.Errorf("metadata[manager] = %v, want db", e.Metadata["manager"])
		}
	case <-time.After(time.Second):
		t.Fatal("expected the health event to be delivered")
	}
}
