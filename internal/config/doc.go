// Package config implements the kernel's tiered configuration store
// (spec.md §4.3): a single key-value view merged from layered stores,
// with validators and change notification.
//
// Grounded on the teacher's internal/config package, but the teacher's
// shape — a single configuration directory holding one YAML file per
// dynamic entity (workflows, serviceclasses, mcpservers, capabilities),
// merged at most two levels deep (user then project) — doesn't have
// tiers in the spec's sense at all: muster always takes the project
// value when one exists, it never retains both and re-derives a merged
// view on write/delete. What's kept from the teacher:
//
//   - ValidationError/ValidationErrors from validation.go, used verbatim
//     for validator failures (Set rejects atomically on the first one).
//   - The file-per-key-space persistence idea from storage.go, adapted
//     in fileloader.go into one YAML document per tier instead of one
//     YAML file per entity.
//   - logging.Info/Warn calls at the same call sites loader.go used them
//     (load, reload).
//
// What's new: five strictly ordered tiers (System < Global < User <
// Local < Runtime) with a per-tier version counter, a merged view rebuilt
// and swapped under the store's write lock (reads take the read lock, so
// readers and writers wait for each other), key-prefix validators, and a change stream
// that distinguishes a shadowed lower-tier write (effective_change=false)
// from one that actually moves the merged value.
package config
