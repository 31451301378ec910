package eventbus

import (
	"time"

	"github.com/google/uuid"

	"github.com/qorzen/kernel/internal/kernelerr"
)

// Event is the kernel's pub/sub payload (spec.md §3's Event: type, source,
// timestamp, correlation_id, metadata, plus a typed body). Events are
// value-like; handlers must never mutate the Metadata map or Body they
// receive.
type Event struct {
	Type          string
	Source        string
	Timestamp     time.Time
	CorrelationID string
	Severity      kernelerr.Severity
	Metadata      map[string]any
	Body          any
}

// severityRank orders kernelerr.Severity for min_severity filter
// evaluation. A zero-value Severity (event never assigned one) ranks below
// every named severity, so a filter with MinSeverity set excludes
// unclassified events rather than silently matching them.
var severityRank = map[kernelerr.Severity]int{
	kernelerr.SeverityLow:      1,
	kernelerr.SeverityMedium:   2,
	kernelerr.SeverityHigh:     3,
	kernelerr.SeverityCritical: 4,
}

// Handler processes a single matched event. Handlers run serially per
// subscription (spec.md §4.2: "a single subscription's handler is never
// invoked concurrently with itself").
type Handler func(Event)

// Filter is a conjunction of optional clauses; an empty Filter matches
// every event (spec.md §3).
type Filter struct {
	Types              []string
	Sources            []string
	MetadataPredicates map[string]func(any) bool
	MinSeverity        kernelerr.Severity
}

// Matches reports whether e satisfies every clause present in f.
func (f Filter) Matches(e Event) bool {
	if len(f.Types) > 0 && !contains(f.Types, e.Type) {
		return false
	}
	if len(f.Sources) > 0 && !contains(f.Sources, e.Source) {
		return false
	}
	for key, pred := range f.MetadataPredicates {
		val, ok := e.Metadata[key]
		if !ok || !pred(val) {
			return false
		}
	}
	if f.MinSeverity != "" {
		want := severityRank[f.MinSeverity]
		if severityRank[e.Severity] < want {
			return false
		}
	}
	return true
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// BackpressureKind is the bus-level policy applied when the bounded queue
// is full (spec.md §4.2).
type BackpressureKind string

const (
	BackpressureReject     BackpressureKind = "reject"
	BackpressureWait       BackpressureKind = "wait"
	BackpressureDropOldest BackpressureKind = "drop_oldest"
	BackpressureDropNewest BackpressureKind = "drop_newest"
)

// BackpressurePolicy configures how Publish behaves when a worker's queue
// is saturated. Wait is only meaningful with a positive WaitFor.
type BackpressurePolicy struct {
	Kind    BackpressureKind
	WaitFor time.Duration
}

// subscription is the internal bookkeeping behind a subscription id.
// deliveredCount/droppedCount are mutated via atomic ops from dispatch
// goroutines; id/subscriberName/filter/handler/createdAt are set once at
// Subscribe time and never mutated afterward.
type subscription struct {
	id             uuid.UUID
	subscriberName string
	filter         Filter
	handler        Handler
	createdAt      time.Time

	dispatchMu     chan struct{} // 1-buffered, acts as a per-subscription lock usable with select
	deliveredCount uint64
	droppedCount   uint64
}

// SubscriptionStats is the read-only view returned by Bus.Stats.
type SubscriptionStats struct {
	ID             uuid.UUID
	SubscriberName string
	CreatedAt      time.Time
	DeliveredCount uint64
	DroppedCount   uint64
}
