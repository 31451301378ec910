// Package plugin implements the kernel's plugin registry and loader
// (spec.md §4.5): manifest discovery, semver dependency resolution, the
// six-stage loading pipeline, unload, and hot reload.
//
// Grounded in the pack's GoCodeAlone-workflow plugin manager (register/
// enable/disable with topological dependency resolution) and OPA's
// plugins.Manager (manager/trigger/state-transition lifecycle), neither of
// which the teacher (muster) has an equivalent for — muster's
// internal/capability package is "capability YAML + tool availability
// tracking" for an MCP aggregator, not a loadable-extension system. What's
// kept from muster's capability.Manager: the definitions map plus
// availability-tracking shape, and subscribing to bus events to trigger a
// refresh. Dependency resolution reuses internal/dependency.Graph (shared
// with internal/manager) instead of a second bespoke graph implementation.
package plugin
