// Package dependency implements a small directed-graph helper shared by the
// manager supervisor (internal/manager) and the plugin registry
// (internal/plugin): both need "does this DAG have a cycle" and "what's a
// valid topological order" over a set of named nodes with depends_on edges.
//
// Grounded on giantswarm-muster's internal/dependency/graph.go, which has
// AddNode/Dependencies/Dependents but no cycle detection or topological
// sort ("Cycle detection is not implemented because the static graph we
// build is small and carefully curated" — muster's graph is hand-built from
// a handful of static service kinds; spec.md §4.1/§4.5 both require closed,
// reported cycle detection since managers and plugins are dynamically
// registered). TopoSort (Kahn's algorithm) and Cycles (Tarjan's SCC) are new
// here.
package dependency
