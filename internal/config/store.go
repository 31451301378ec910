package config

import (
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/qorzen/kernel/internal/kernelerr"
	"github.com/qorzen/kernel/internal/metrics"
)

// tierData holds one tier's key/value entries plus its own monotonic
// version counter (spec.md §3: "version, monotonic per tier").
type tierData struct {
	entries map[string]ConfigEntry
	version uint64
}

func newTierData() *tierData {
	return &tierData{entries: make(map[string]ConfigEntry)}
}

// snapshot is the merged view handed to readers. Every write rebuilds it
// into a fresh map and swaps the pointer under the write lock, so a reader
// always sees a consistent, complete view. Get and Snapshot take the read
// lock, so a read waits for an in-progress Set/Delete/Reload and a write
// waits for in-progress reads. The snapshot carries no version of its own;
// only the per-tier counters in tierData are versioned.
type snapshot struct {
	merged map[string]any
	owner  map[string]Tier // key -> tier that currently wins it
}

// Store is the kernel's tiered configuration store (spec.md §4.3). Grounded
// on the teacher's internal/config package for the validation-error shape
// and logging call sites; the merge engine itself is new (the teacher never
// retains more than two tiers at once).
type Store struct {
	mu   sync.RWMutex
	tier [int(tierCount)]*tierData
	snap *snapshot

	validators map[string][]Validator // key or key-prefix -> validators

	subMu sync.Mutex
	subs  map[uint64]*changeSub
	nextSubID uint64

	metrics *metrics.Registry
}

type changeSub struct {
	prefix string
	ch     chan ChangeEvent
}

// New constructs an empty Store. m may be nil to skip metrics.
func New(m *metrics.Registry) *Store {
	s := &Store{
		validators: make(map[string][]Validator),
		subs:       make(map[uint64]*changeSub),
		metrics:    m,
	}
	for i := range s.tier {
		s.tier[i] = newTierData()
	}
	s.snap = &snapshot{merged: map[string]any{}, owner: map[string]Tier{}}
	return s
}

// BindValidator registers a Validator against a key or key prefix (trailing
// "." marks a prefix, e.g. "plugins.acme."). Validators run before a write
// is committed to its target tier (spec.md §4.3) and may inspect the whole
// merged view.
func (s *Store) BindValidator(keyOrPrefix string, v Validator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.validators[keyOrPrefix] = append(s.validators[keyOrPrefix], v)
}

// Get returns the value held by the highest tier holding key, and whether
// any tier holds it at all.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.snap.merged[key]
	return v, ok
}

// GetTyped decodes the merged value at key into dst via the supplied
// decode function, surfacing a config.validation kind error on mismatch
// (spec.md §4.3's get_typed<T>). The core has no schema language of its
// own; decode is typically a thin json.Unmarshal-via-round-trip or a
// direct type assertion supplied by the caller.
func (s *Store) GetTyped(key string, decode func(any) error) error {
	v, ok := s.Get(key)
	if !ok {
		return kernelerr.New(kernelerr.KindConfig, kernelerr.SeverityLow, "config.get_typed", "key not set: "+key)
	}
	if err := decode(v); err != nil {
		return kernelerr.Wrap(kernelerr.KindValidation, kernelerr.SeverityMedium, "config.get_typed", "value at "+key+" failed schema validation", err)
	}
	return nil
}

// Set writes value to key within tier. Bound validators run first against
// a hypothetical merged view with this write applied; on validator failure
// the write is rejected atomically (nothing is mutated). On success, the
// tier's version counter increments, the merged snapshot is rebuilt, and a
// ChangeEvent is emitted — effective_change is true only if the merged
// value at key actually moved.
func (s *Store) Set(key string, value any, tier Tier) error {
	if tier < 0 || tier >= tierCount {
		return kernelerr.Validation("config.set", "invalid tier")
	}

	s.mu.Lock()

	if err := s.runValidators(key, value); err != nil {
		s.mu.Unlock()
		return err
	}

	oldMerged, oldOK := s.snap.merged[key]

	td := s.tier[tier]
	td.version++
	td.entries[key] = ConfigEntry{Key: key, Value: value, Tier: tier, Version: td.version}

	s.rebuildSnapshot()
	newMerged, newOK := s.snap.merged[key]

	if s.metrics != nil {
		s.metrics.ConfigKeys.WithLabelValues(tier.String()).Set(float64(len(td.entries)))
	}
	s.mu.Unlock()

	effective := valuesDiffer(oldMerged, newMerged) || (oldOK != newOK)
	s.emitChange(ChangeEvent{
		Key: key, OldValue: oldMerged, NewValue: value, Tier: tier,
		EffectiveChange: effective, Timestamp: time.Now(),
	})
	return nil
}

// Delete removes key from tier only; the merged result reflects whatever
// remains in lower tiers.
func (s *Store) Delete(key string, tier Tier) error {
	if tier < 0 || tier >= tierCount {
		return kernelerr.Validation("config.delete", "invalid tier")
	}

	s.mu.Lock()
	td := s.tier[tier]
	if _, ok := td.entries[key]; !ok {
		s.mu.Unlock()
		return nil
	}
	oldMerged, oldOK := s.snap.merged[key]

	delete(td.entries, key)
	td.version++
	s.rebuildSnapshot()
	newMerged, newOK := s.snap.merged[key]

	if s.metrics != nil {
		s.metrics.ConfigKeys.WithLabelValues(tier.String()).Set(float64(len(td.entries)))
	}
	s.mu.Unlock()

	effective := valuesDiffer(oldMerged, newMerged) || (oldOK != newOK)
	s.emitChange(ChangeEvent{
		Key: key, OldValue: oldMerged, NewValue: newMerged, Tier: tier,
		EffectiveChange: effective, Timestamp: time.Now(),
	})
	return nil
}

// Reload asks the caller to hand it a fresh key/value snapshot for tier
// (e.g. after the backing file changed); differing keys get synthesized
// ChangeEvents exactly as Set/Delete would produce (spec.md §4.3).
func (s *Store) Reload(tier Tier, fresh map[string]any) error {
	if tier < 0 || tier >= tierCount {
		return kernelerr.Validation("config.reload", "invalid tier")
	}

	s.mu.Lock()
	td := s.tier[tier]
	before := make(map[string]any, len(td.entries))
	for k, e := range td.entries {
		before[k] = e.Value
	}
	beforeMerged := make(map[string]any, len(s.snap.merged))
	for k, v := range s.snap.merged {
		beforeMerged[k] = v
	}

	td.entries = make(map[string]ConfigEntry, len(fresh))
	td.version++
	for k, v := range fresh {
		td.entries[k] = ConfigEntry{Key: k, Value: v, Tier: tier, Version: td.version}
	}
	s.rebuildSnapshot()

	if s.metrics != nil {
		s.metrics.ConfigKeys.WithLabelValues(tier.String()).Set(float64(len(td.entries)))
		s.metrics.ConfigReloads.WithLabelValues(tier.String()).Inc()
	}

	changedKeys := make(map[string]bool)
	for k := range before {
		changedKeys[k] = true
	}
	for k := range fresh {
		changedKeys[k] = true
	}
	events := make([]ChangeEvent, 0, len(changedKeys))
	for k := range changedKeys {
		oldV, oldOK := beforeMerged[k]
		newV, newOK := s.snap.merged[k]
		if !valuesDiffer(oldV, newV) && oldOK == newOK {
			continue
		}
		events = append(events, ChangeEvent{
			Key: k, OldValue: oldV, NewValue: newV, Tier: tier,
			EffectiveChange: true, Timestamp: time.Now(),
		})
	}
	s.mu.Unlock()

	sort.Slice(events, func(i, j int) bool { return events[i].Key < events[j].Key })
	for _, e := range events {
		s.emitChange(e)
	}
	return nil
}

// SubscribeChanges returns a channel of ChangeEvents whose Key has the
// given prefix (empty prefix matches every key). The channel is closed
// when unsubscribe is called.
func (s *Store) SubscribeChanges(prefix string) (ch <-chan ChangeEvent, unsubscribe func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSubID
	s.nextSubID++
	c := &changeSub{prefix: prefix, ch: make(chan ChangeEvent, 256)}
	s.subs[id] = c
	return c.ch, func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub.ch)
		}
	}
}

func (s *Store) emitChange(e ChangeEvent) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, sub := range s.subs {
		if sub.prefix != "" && !strings.HasPrefix(e.Key, sub.prefix) {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			// a slow subscriber misses a notification rather than blocking a write.
		}
	}
}

// runValidators runs every validator bound to key or to a prefix of key
// against a merged view with the prospective write applied. Must be called
// with s.mu held.
func (s *Store) runValidators(key string, value any) error {
	if len(s.validators) == 0 {
		return nil
	}
	trial := make(map[string]any, len(s.snap.merged)+1)
	for k, v := range s.snap.merged {
		trial[k] = v
	}
	trial[key] = value

	var matched []Validator
	matched = append(matched, s.validators[key]...)
	for prefix, vs := range s.validators {
		if strings.HasSuffix(prefix, ".") && strings.HasPrefix(key, prefix) {
			matched = append(matched, vs...)
		}
	}
	for _, v := range matched {
		if err := v(key, value, trial); err != nil {
			return kernelerr.Wrap(kernelerr.KindValidation, kernelerr.SeverityMedium, "config.set", "validator rejected write to "+key, err)
		}
	}
	return nil
}

// rebuildSnapshot recomputes the merged view from lowest to highest tier
// (last writer wins by tier order, per spec.md §4.3's merge rule). Must be
// called with s.mu held.
func (s *Store) rebuildSnapshot() {
	merged := make(map[string]any)
	owner := make(map[string]Tier)
	for t := TierSystem; t < tierCount; t++ {
		for k, e := range s.tier[t].entries {
			merged[k] = e.Value
			owner[k] = t
		}
	}
	s.snap = &snapshot{merged: merged, owner: owner}
}

// Snapshot returns a defensive copy of the full merged view, for callers
// (e.g. the plugin registry materializing a namespace) that need more than
// a single key.
func (s *Store) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.snap.merged))
	for k, v := range s.snap.merged {
		out[k] = v
	}
	return out
}

// Namespace returns every key under prefix (with the prefix stripped),
// used by the plugin loader to materialize "plugins.<id>.*" (spec.md §4.5
// stage 3).
func (s *Store) Namespace(prefix string) map[string]any {
	full := s.Snapshot()
	out := make(map[string]any)
	for k, v := range full {
		if strings.HasPrefix(k, prefix) {
			out[strings.TrimPrefix(k, prefix)] = v
		}
	}
	return out
}

func valuesDiffer(a, b any) bool {
	return !reflect.DeepEqual(a, b)
}
