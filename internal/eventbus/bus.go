package eventbus

import (
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/qorzen/kernel/internal/kernelerr"
	"github.com/qorzen/kernel/internal/manager"
	"github.com/qorzen/kernel/internal/metrics"
)

// metaEventDropped is the meta-event type re-published when a publish is
// dropped under backpressure (spec.md §4.2). It is excluded from its own
// drop accounting so a saturated bus cannot recurse into an unbounded
// stream of meta-events about meta-events.
const metaEventDropped = "bus.dropped"

// healthEventType is the event type manager.Supervisor health transitions
// are republished as once wired to a Bus (spec.md §9's arena-style
// ownership: the manager package only knows about the small EventPublisher
// interface it declares; Bus is the concrete implementer, never the other
// way around).
const healthEventType = "kernel.manager.health"

// Bus is the kernel's event broker (spec.md §4.2). Zero value is not
// usable; construct with New.
type Bus struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]*subscription

	workers    []chan Event
	numWorkers int
	policy     BackpressurePolicy

	metrics *metrics.Registry

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

var _ manager.EventPublisher = (*Bus)(nil)

// New constructs a Bus with numWorkers fixed workers, each draining a
// queue of queueSize events, applying policy when a worker's queue is
// full. m may be nil (e.g. in tests) to skip metrics entirely.
func New(numWorkers, queueSize int, policy BackpressurePolicy, m *metrics.Registry) *Bus {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	b := &Bus{
		subs:       make(map[uuid.UUID]*subscription),
		numWorkers: numWorkers,
		policy:     policy,
		metrics:    m,
		stopCh:     make(chan struct{}),
	}
	b.workers = make([]chan Event, numWorkers)
	for i := range b.workers {
		b.workers[i] = make(chan Event, queueSize)
	}
	return b
}

// Start spawns the worker pool. Publish may be called before Start (events
// simply queue up), but nothing is delivered until workers are running.
func (b *Bus) Start() {
	for _, ch := range b.workers {
		b.wg.Add(1)
		go b.runWorker(ch)
	}
}

// Stop signals every worker to drain its remaining queue and exit, then
// waits for them to finish. Pending events are delivered; Stop does not
// discard them (mirrors the teacher broker's graceful-stop semantics).
func (b *Bus) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
	b.wg.Wait()
}

func (b *Bus) runWorker(ch chan Event) {
	defer b.wg.Done()
	for {
		select {
		case e := <-ch:
			b.dispatch(e)
		case <-b.stopCh:
			b.drain(ch)
			return
		}
	}
}

func (b *Bus) drain(ch chan Event) {
	for {
		select {
		case e := <-ch:
			b.dispatch(e)
		default:
			return
		}
	}
}

// Subscribe atomically installs a subscription and returns its id
// immediately (spec.md §4.2).
func (b *Bus) Subscribe(subscriberName string, filter Filter, handler Handler) uuid.UUID {
	s := &subscription{
		id:             uuid.New(),
		subscriberName: subscriberName,
		filter:         filter,
		handler:        handler,
		createdAt:      time.Now(),
		dispatchMu:     make(chan struct{}, 1),
	}
	b.mu.Lock()
	b.subs[s.id] = s
	b.mu.Unlock()
	return s.id
}

// Unsubscribe is idempotent. In-flight handler invocations for id are left
// to complete; removing the map entry only stops future dispatch from
// considering it a match (spec.md §4.2).
func (b *Bus) Unsubscribe(id uuid.UUID) {
	b.mu.Lock()
	delete(b.subs, id)
	b.mu.Unlock()
}

// Stats returns delivered/dropped counters for a live subscription.
func (b *Bus) Stats(id uuid.UUID) (SubscriptionStats, bool) {
	b.mu.RLock()
	s, ok := b.subs[id]
	b.mu.RUnlock()
	if !ok {
		return SubscriptionStats{}, false
	}
	return SubscriptionStats{
		ID:             s.id,
		SubscriberName: s.subscriberName,
		CreatedAt:      s.createdAt,
		DeliveredCount: atomic.LoadUint64(&s.deliveredCount),
		DroppedCount:   atomic.LoadUint64(&s.droppedCount),
	}, true
}

// Publish enqueues e onto the worker assigned to e.Source by a consistent
// hash, so every event from the same source lands on the same worker and
// that worker's serial drain gives per-source FIFO without a shared lock.
// Its error, if any, depends on the configured BackpressurePolicy.
func (b *Bus) Publish(e Event) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	idx := b.workerIndex(e.Source)
	ch := b.workers[idx]

	if b.metrics != nil {
		b.metrics.EventsPublished.WithLabelValues(e.Type, e.Source).Inc()
		defer func() { b.metrics.QueueDepth.Set(float64(b.queueDepth())) }()
	}

	switch b.policy.Kind {
	case BackpressureWait:
		timer := time.NewTimer(b.policy.WaitFor)
		defer timer.Stop()
		select {
		case ch <- e:
			return nil
		case <-timer.C:
			b.recordDrop(e, "wait_timeout")
			return kernelerr.Timeout("eventbus", "publish wait exceeded backpressure timeout")
		}
	case BackpressureDropOldest:
		select {
		case ch <- e:
			return nil
		default:
		}
		select {
		case old := <-ch:
			b.recordDrop(old, "drop_oldest")
		default:
		}
		select {
		case ch <- e:
		default:
			b.recordDrop(e, "drop_oldest")
		}
		return nil
	case BackpressureDropNewest:
		select {
		case ch <- e:
			return nil
		default:
			b.recordDrop(e, "drop_newest")
			return nil
		}
	default: // BackpressureReject
		select {
		case ch <- e:
			return nil
		default:
			b.recordDrop(e, "reject")
			return kernelerr.RateLimited("eventbus", "publish rejected: queue full")
		}
	}
}

// PublishSync runs matching handlers on the caller's goroutine, bypassing
// the worker pool entirely. Used during init/shutdown where the pool may
// not be running yet (or any longer) — spec.md §4.2.
func (b *Bus) PublishSync(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if b.metrics != nil {
		b.metrics.EventsPublished.WithLabelValues(e.Type, e.Source).Inc()
	}
	b.dispatch(e)
}

// PublishHealthEvent implements manager.EventPublisher, letting a
// Supervisor publish onto this Bus without either package importing the
// other's concrete type.
func (b *Bus) PublishHealthEvent(evt manager.HealthEvent) {
	_ = b.Publish(Event{
		Type:      healthEventType,
		Source:    "manager." + evt.Name,
		Timestamp: evt.Timestamp,
		Severity:  severityForHealthEvent(evt),
		Metadata: map[string]any{
			"manager":  evt.Name,
			"previous": string(evt.Previous),
			"current":  string(evt.Current),
			"reason":   string(evt.Reason),
		},
		Body: evt,
	})
}

func severityForHealthEvent(evt manager.HealthEvent) kernelerr.Severity {
	switch evt.Current {
	case manager.StateFailed:
		return kernelerr.SeverityHigh
	case manager.StateDegraded:
		return kernelerr.SeverityMedium
	default:
		return kernelerr.SeverityLow
	}
}

func (b *Bus) workerIndex(source string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(source))
	return int(h.Sum32() % uint32(b.numWorkers))
}

func (b *Bus) queueDepth() int {
	total := 0
	for _, ch := range b.workers {
		total += len(ch)
	}
	return total
}

// dispatch evaluates every live subscription's filter against e and
// invokes the matching ones. Subscriptions are snapshotted under RLock so
// Subscribe/Unsubscribe never block delivery in progress.
func (b *Bus) dispatch(e Event) {
	b.mu.RLock()
	matched := make([]*subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s.filter.Matches(e) {
			matched = append(matched, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range matched {
		b.invoke(s, e)
	}
}

// invoke calls s.handler(e), serialized against any other concurrent
// delivery to the same subscription via its one-buffered dispatchMu
// channel used as a lock.
func (b *Bus) invoke(s *subscription, e Event) {
	s.dispatchMu <- struct{}{}
	defer func() { <-s.dispatchMu }()

	start := time.Now()
	s.handler(e)
	if b.metrics != nil {
		b.metrics.HandlerSeconds.WithLabelValues(s.subscriberName).Observe(time.Since(start).Seconds())
	}
	atomic.AddUint64(&s.deliveredCount, 1)
}

// recordDrop increments per-subscription dropped_count for every live
// subscription that would have matched e, then republishes a bus.dropped
// meta-event carrying e's type/source and the drop reason. Meta-events are
// dispatched on their own goroutine (not re-enqueued) so neither a full
// queue nor a busy handler can block the publish that overflowed, and
// e.Type == metaEventDropped is never
// itself recorded as a drop — the recursion guard spec.md §4.2 requires.
func (b *Bus) recordDrop(e Event, reason string) {
	if b.metrics != nil {
		b.metrics.EventsDropped.WithLabelValues(reason).Inc()
	}
	if e.Type == metaEventDropped {
		return
	}

	b.mu.RLock()
	for _, s := range b.subs {
		if s.filter.Matches(e) {
			atomic.AddUint64(&s.droppedCount, 1)
		}
	}
	b.mu.RUnlock()

	go b.dispatch(Event{
		Type:      metaEventDropped,
		Source:    "eventbus",
		Timestamp: time.Now(),
		Severity:  kernelerr.SeverityLow,
		Metadata: map[string]any{
			"dropped_type":   e.Type,
			"dropped_source": e.Source,
			"reason":         reason,
		},
	})
}
