// Package kernel is the top-level orchestrator (spec.md §2): it wires a
// platform.Provider, a config.Store, logging, the event bus, the account
// gate, the plugin registry/sandbox, and the API router into one
// constructed Kernel value and drives its startup/shutdown sequence.
//
// Grounded in giantswarm-muster's cmd/{root,serve,start,stop}.go wiring
// order and internal/orchestrator's supervisor-driven startup/shutdown,
// generalized from "service registry + MCP aggregator" to the five core
// components spec.md §2 names, in the exact construction order its data
// flow diagram specifies: platform provider, then config store, then
// logging/event/account, then plugin registry.
package kernel
