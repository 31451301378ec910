// internal/dependency/graph.go
package dependency

import (
	"fmt"
	"sort"
	"sync"
)

// NodeID is the unique identifier for a node inside a dependency graph. Kept
// as a string alias so callers can encode whatever scheme fits (manager
// name, plugin reverse-DNS id, ...).
type NodeID string

// Node is a named unit with zero or more dependencies. OptionalDependsOn
// never contributes edges for cycle detection, but influences the final
// load order when the dependency is present in the graph (spec.md §4.5).
type Node struct {
	ID                NodeID
	DependsOn         []NodeID
	OptionalDependsOn []NodeID
}

// Graph is a thread-safe directed graph of Nodes, shared by the manager
// supervisor (internal/manager) and the plugin registry (internal/plugin).
type Graph struct {
	mu    sync.RWMutex
	nodes map[NodeID]*Node
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[NodeID]*Node)}
}

// AddNode adds or replaces a node in the graph.
func (g *Graph) AddNode(n Node) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.nodes == nil {
		g.nodes = make(map[NodeID]*Node)
	}
	cp := n
	cp.DependsOn = append([]NodeID(nil), n.DependsOn...)
	cp.OptionalDependsOn = append([]NodeID(nil), n.OptionalDependsOn...)
	g.nodes[n.ID] = &cp
}

// RemoveNode drops a node and its edges from the graph.
func (g *Graph) RemoveNode(id NodeID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.nodes, id)
}

// Get returns a copy of the stored node, or false if it does not exist.
func (g *Graph) Get(id NodeID) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// Dependencies returns the mandatory dependency ids of id.
func (g *Graph) Dependencies(id NodeID) []NodeID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	return append([]NodeID(nil), n.DependsOn...)
}

// Dependents returns all node ids that directly, mandatorily depend on id.
// O(n) walk — graphs here are small (managers, plugins), never large enough
// to need an index.
func (g *Graph) Dependents(id NodeID) []NodeID {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var res []NodeID
	for _, n := range g.nodes {
		for _, dep := range n.DependsOn {
			if dep == id {
				res = append(res, n.ID)
				break
			}
		}
	}
	return res
}

// CycleError names the members of a detected dependency cycle, in a stable
// sorted order (spec.md §4.5 scenario 4: "resolution fails with
// dependency.cycle listing [p1, p2, p3]").
type CycleError struct {
	Members []NodeID
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle: %v", e.Members)
}

// MissingDependencyError names a node whose mandatory dependency is absent
// from the graph, violating spec.md §3's invariant that every depends_on
// reference an already-registered node.
type MissingDependencyError struct {
	Node       NodeID
	Dependency NodeID
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("%s depends on unregistered node %s", e.Node, e.Dependency)
}

// Validate checks that every mandatory dependency edge resolves to a node
// present in the graph.
func (g *Graph) Validate() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := make([]NodeID, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		n := g.nodes[id]
		for _, dep := range n.DependsOn {
			if _, ok := g.nodes[dep]; !ok {
				return &MissingDependencyError{Node: id, Dependency: dep}
			}
		}
	}
	return nil
}

// Cycles runs Tarjan's strongly-connected-components algorithm over the
// mandatory-dependency edges and returns every true cycle found — an SCC of
// size greater than one, or a single node with a self-edge. Each is named
// deterministically. A nil/empty result means the mandatory-edge graph is
// acyclic.
func (g *Graph) Cycles() []*CycleError {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := make([]NodeID, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	t := &tarjan{
		graph:   g,
		index:   make(map[NodeID]int),
		lowlink: make(map[NodeID]int),
		onStack: make(map[NodeID]bool),
	}
	for _, id := range ids {
		if _, seen := t.index[id]; !seen {
			t.strongconnect(id)
		}
	}

	var cycles []*CycleError
	for _, scc := range t.sccs {
		if len(scc) > 1 {
			sort.Slice(scc, func(i, j int) bool { return scc[i] < scc[j] })
			cycles = append(cycles, &CycleError{Members: scc})
			continue
		}
		n := g.nodes[scc[0]]
		for _, dep := range n.DependsOn {
			if dep == scc[0] {
				cycles = append(cycles, &CycleError{Members: scc})
				break
			}
		}
	}
	return cycles
}

// tarjan holds the working state for one Tarjan SCC pass. Traversal order
// at every step is sorted by NodeID first so repeated runs over the same
// graph always report cycles in the same member order.
type tarjan struct {
	graph   *Graph
	index   map[NodeID]int
	lowlink map[NodeID]int
	onStack map[NodeID]bool
	stack   []NodeID
	counter int
	sccs    [][]NodeID
}

func (t *tarjan) strongconnect(v NodeID) {
	t.index[v] = t.counter
	t.lowlink[v] = t.counter
	t.counter++
	t.stack = append(t.stack, v)
	t.onStack[v] = true

	node := t.graph.nodes[v]
	deps := append([]NodeID(nil), node.DependsOn...)
	sort.Slice(deps, func(i, j int) bool { return deps[i] < deps[j] })

	for _, w := range deps {
		if _, ok := t.graph.nodes[w]; !ok {
			continue // missing dependency is Validate's concern, not Cycles'
		}
		if _, seen := t.index[w]; !seen {
			t.strongconnect(w)
			if t.lowlink[w] < t.lowlink[v] {
				t.lowlink[v] = t.lowlink[w]
			}
		} else if t.onStack[w] {
			if t.index[w] < t.lowlink[v] {
				t.lowlink[v] = t.index[w]
			}
		}
	}

	if t.lowlink[v] == t.index[v] {
		var scc []NodeID
		for {
			n := len(t.stack) - 1
			w := t.stack[n]
			t.stack = t.stack[:n]
			t.onStack[w] = false
			scc = append(scc, w)
			if w == v {
				break
			}
		}
		t.sccs = append(t.sccs, scc)
	}
}

// TopoSort returns a topological order of the graph's mandatory-dependency
// edges using Kahn's algorithm, with ties broken by NodeID so the order is
// stable across calls. Optional dependencies (present in the graph) are
// then spliced in: a node is bubbled to just after each optional
// dependency it names, so Layers/TopoSort still honor them without letting
// them participate in cycle detection. Returns the first detected
// *CycleError if the mandatory-edge graph is not acyclic.
func (g *Graph) TopoSort() ([]NodeID, error) {
	if cycles := g.Cycles(); len(cycles) > 0 {
		return nil, cycles[0]
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	indegree := make(map[NodeID]int, len(g.nodes))
	ids := make([]NodeID, 0, len(g.nodes))
	for id := range g.nodes {
		indegree[id] = 0
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, n := range g.nodes {
		for _, dep := range n.DependsOn {
			if _, ok := g.nodes[dep]; ok {
				indegree[n.ID]++
			}
		}
	}

	var queue []NodeID
	for _, id := range ids {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	order := make([]NodeID, 0, len(g.nodes))
	for len(queue) > 0 {
		sort.Slice(queue, func(i, j int) bool { return queue[i] < queue[j] })
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)

		var dependents []NodeID
		for _, n := range g.nodes {
			for _, dep := range n.DependsOn {
				if dep == id {
					dependents = append(dependents, n.ID)
				}
			}
		}
		sort.Slice(dependents, func(i, j int) bool { return dependents[i] < dependents[j] })
		for _, d := range dependents {
			indegree[d]--
			if indegree[d] == 0 {
				queue = append(queue, d)
			}
		}
	}

	if len(order) != len(g.nodes) {
		// Cycles() above should have already caught this; defensive only.
		return nil, &CycleError{Members: ids}
	}

	return spliceOptional(g.nodes, order), nil
}

// Layers groups a topological order into layers: every node in a layer has
// all mandatory dependencies in strictly earlier layers, so a layer's
// members can initialize (or shut down, in reverse) concurrently.
// internal/manager's InitializeAll fans each layer out with an errgroup per
// spec.md §5.
func (g *Graph) Layers() ([][]NodeID, error) {
	order, err := g.TopoSort()
	if err != nil {
		return nil, err
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	depth := make(map[NodeID]int, len(order))
	for _, id := range order {
		n := g.nodes[id]
		maxDep := -1
		for _, dep := range n.DependsOn {
			if d, ok := depth[dep]; ok && d > maxDep {
				maxDep = d
			}
		}
		for _, dep := range n.OptionalDependsOn {
			if d, ok := depth[dep]; ok && d > maxDep {
				maxDep = d
			}
		}
		depth[id] = maxDep + 1
	}

	maxDepth := 0
	for _, d := range depth {
		if d > maxDepth {
			maxDepth = d
		}
	}

	layers := make([][]NodeID, maxDepth+1)
	for _, id := range order {
		layers[depth[id]] = append(layers[depth[id]], id)
	}
	return layers, nil
}

// spliceOptional re-orders a Kahn topological order so that no node
// precedes an optional dependency it names (when that dependency is
// present in the graph). Convergent in at most len(result) passes since
// each pass that changes anything strictly reduces the number of
// violations.
func spliceOptional(nodes map[NodeID]*Node, order []NodeID) []NodeID {
	hasOptional := false
	for _, n := range nodes {
		if len(n.OptionalDependsOn) > 0 {
			hasOptional = true
			break
		}
	}
	if !hasOptional {
		return order
	}

	result := append([]NodeID(nil), order...)
	for pass := 0; pass < len(result); pass++ {
		changed := false
		pos := make(map[NodeID]int, len(result))
		for i, id := range result {
			pos[id] = i
		}
		for i, id := range result {
			n := nodes[id]
			for _, dep := range n.OptionalDependsOn {
				depPos, ok := pos[dep]
				if ok && depPos > i {
					result = append(result[:i], result[i+1:]...)
					insertAt := depPos
					result = append(result[:insertAt], append([]NodeID{id}, result[insertAt:]...)...)
					changed = true
					break
				}
			}
			if changed {
				break
			}
		}
		if !changed {
			break
		}
	}
	return result
}
