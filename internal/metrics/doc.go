// Package metrics wires prometheus/client_golang gauges and counters shared
// by internal/manager and internal/eventbus. Grounded on the pack's general
// use of client_golang (indirect in giantswarm-muster's go.mod, direct in
// wisbric-nightowl's internal/telemetry) rather than a muster source file —
// muster itself never registers metrics, so this package follows the
// standard client_golang registration idiom: a small owned Registry struct,
// never a package-level global registerer, so the kernel orchestrator
// controls its lifetime like every other component (spec.md §9).
package metrics
