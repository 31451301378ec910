// Package sandbox implements the concrete, capability-enforcing
// plugin.Context handed to every loaded plugin's Factory (spec.md §4.6).
//
// Grounded in internal/plugin's Context contract (declared there, not here,
// to avoid an import cycle) and internal/platform's provider interfaces.
// No standalone "capability-scoped proxy" library appears anywhere in the
// retrieval pack, so every proxy here is a hand-written Go interface
// implementation — exactly the shape spec.md §9 itself allows ("capability
// sets may be realized as tagged variants, function tables, or interface
// objects; this spec does not mandate one").
//
// Each proxy type mediates exactly one capability named in spec.md §4.6:
// api_client, event_bus, database, file_system, logger. A plugin never
// holds a platform.Database, platform.FileSystem, or eventbus.Bus
// directly — only one of these proxies, scoped to its own manifest.
package sandbox
