package dependency

import "testing"

func TestNew(t *testing.T) {
	g := New()
	if g == nil {
		t.Fatal("New() returned nil")
	}
	if len(g.nodes) != 0 {
		t.Fatalf("expected empty nodes map, got %d nodes", len(g.nodes))
	}
}

func TestAddNode(t *testing.T) {
	g := New()
	g.AddNode(Node{ID: "a"})
	g.AddNode(Node{ID: "b", DependsOn: []NodeID{"a"}})
	g.AddNode(Node{ID: "b", DependsOn: []NodeID{"a"}, OptionalDependsOn: []NodeID{"a"}})

	if len(g.nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(g.nodes))
	}
	n, ok := g.Get("b")
	if !ok {
		t.Fatal("expected node b to exist")
	}
	if len(n.OptionalDependsOn) != 1 {
		t.Errorf("expected replaced node to carry optional deps, got %+v", n)
	}
}

func TestGet_Missing(t *testing.T) {
	g := New()
	if _, ok := g.Get("missing"); ok {
		t.Error("expected ok=false for missing node")
	}
}

func TestDependenciesAndDependents(t *testing.T) {
	g := New()
	g.AddNode(Node{ID: "k8s1"})
	g.AddNode(Node{ID: "pf1", DependsOn: []NodeID{"k8s1"}})
	g.AddNode(Node{ID: "pf2", DependsOn: []NodeID{"k8s1"}})
	g.AddNode(Node{ID: "mcp1", DependsOn: []NodeID{"pf1"}})
	g.AddNode(Node{ID: "mcp2", DependsOn: []NodeID{"pf1", "k8s1"}})

	if deps := g.Dependencies("mcp2"); len(deps) != 2 {
		t.Errorf("expected 2 deps for mcp2, got %v", deps)
	}
	if deps := g.Dependencies("nonexistent"); len(deps) != 0 {
		t.Errorf("expected no deps for missing node, got %v", deps)
	}

	dependents := g.Dependents("k8s1")
	want := map[NodeID]bool{"pf1": true, "pf2": true, "mcp2": true}
	if len(dependents) != len(want) {
		t.Fatalf("expected %d dependents, got %v", len(want), dependents)
	}
	for _, d := range dependents {
		if !want[d] {
			t.Errorf("unexpected dependent %s", d)
		}
	}
}

func TestValidate_MissingDependency(t *testing.T) {
	g := New()
	g.AddNode(Node{ID: "a", DependsOn: []NodeID{"ghost"}})

	err := g.Validate()
	if err == nil {
		t.Fatal("expected missing dependency error")
	}
	var mde *MissingDependencyError
	if !asMissingDependencyError(err, &mde) {
		t.Fatalf("expected *MissingDependencyError, got %T", err)
	}
	if mde.Node != "a" || mde.Dependency != "ghost" {
		t.Errorf("unexpected error contents: %+v", mde)
	}
}

func asMissingDependencyError(err error, target **MissingDependencyError) bool {
	mde, ok := err.(*MissingDependencyError)
	if ok {
		*target = mde
	}
	return ok
}

func TestValidate_Clean(t *testing.T) {
	g := New()
	g.AddNode(Node{ID: "a"})
	g.AddNode(Node{ID: "b", DependsOn: []NodeID{"a"}})
	if err := g.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestCycles_NoneOnDAG(t *testing.T) {
	g := New()
	g.AddNode(Node{ID: "a"})
	g.AddNode(Node{ID: "b", DependsOn: []NodeID{"a"}})
	g.AddNode(Node{ID: "c", DependsOn: []NodeID{"b"}})

	if cycles := g.Cycles(); len(cycles) != 0 {
		t.Fatalf("expected no cycles, got %v", cycles)
	}
}

func TestCycles_SelfLoop(t *testing.T) {
	g := New()
	g.AddNode(Node{ID: "a", DependsOn: []NodeID{"a"}})

	cycles := g.Cycles()
	if len(cycles) != 1 || len(cycles[0].Members) != 1 || cycles[0].Members[0] != "a" {
		t.Fatalf("expected one self-loop cycle [a], got %v", cycles)
	}
}

// Models spec.md §8 scenario 4: p1 -> p2 -> p3 -> p1.
func TestCycles_ThreeNodeCycle(t *testing.T) {
	g := New()
	g.AddNode(Node{ID: "p1", DependsOn: []NodeID{"p2"}})
	g.AddNode(Node{ID: "p2", DependsOn: []NodeID{"p3"}})
	g.AddNode(Node{ID: "p3", DependsOn: []NodeID{"p1"}})

	cycles := g.Cycles()
	if len(cycles) != 1 {
		t.Fatalf("expected exactly one cycle, got %v", cycles)
	}
	members := cycles[0].Members
	if len(members) != 3 || members[0] != "p1" || members[1] != "p2" || members[2] != "p3" {
		t.Fatalf("expected sorted [p1 p2 p3], got %v", members)
	}
}

func TestCycles_OptionalEdgesIgnored(t *testing.T) {
	g := New()
	g.AddNode(Node{ID: "a", OptionalDependsOn: []NodeID{"b"}})
	g.AddNode(Node{ID: "b", OptionalDependsOn: []NodeID{"a"}})

	if cycles := g.Cycles(); len(cycles) != 0 {
		t.Fatalf("optional-only cycle must not be reported, got %v", cycles)
	}
}

func TestTopoSort_StableOrder(t *testing.T) {
	g := New()
	g.AddNode(Node{ID: "k8s1"})
	g.AddNode(Node{ID: "pf1", DependsOn: []NodeID{"k8s1"}})
	g.AddNode(Node{ID: "pf2", DependsOn: []NodeID{"k8s1"}})
	g.AddNode(Node{ID: "mcp1", DependsOn: []NodeID{"pf1"}})

	order, err := g.TopoSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pos := make(map[NodeID]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	if pos["k8s1"] > pos["pf1"] || pos["k8s1"] > pos["pf2"] {
		t.Fatalf("k8s1 must precede its dependents, order=%v", order)
	}
	if pos["pf1"] > pos["mcp1"] {
		t.Fatalf("pf1 must precede mcp1, order=%v", order)
	}
}

func TestTopoSort_CycleError(t *testing.T) {
	g := New()
	g.AddNode(Node{ID: "p1", DependsOn: []NodeID{"p2"}})
	g.AddNode(Node{ID: "p2", DependsOn: []NodeID{"p1"}})

	if _, err := g.TopoSort(); err == nil {
		t.Fatal("expected cycle error")
	}
}

func TestTopoSort_OptionalDependencySpliced(t *testing.T) {
	g := New()
	g.AddNode(Node{ID: "a"})
	g.AddNode(Node{ID: "b"})
	g.AddNode(Node{ID: "c", OptionalDependsOn: []NodeID{"b"}})

	order, err := g.TopoSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pos := make(map[NodeID]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	if pos["c"] < pos["b"] {
		t.Fatalf("c must follow its optional dependency b when present, order=%v", order)
	}
}

func TestLayers_GroupsIndependentNodes(t *testing.T) {
	g := New()
	g.AddNode(Node{ID: "k8s1"})
	g.AddNode(Node{ID: "pf1", DependsOn: []NodeID{"k8s1"}})
	g.AddNode(Node{ID: "pf2", DependsOn: []NodeID{"k8s1"}})
	g.AddNode(Node{ID: "mcp1", DependsOn: []NodeID{"pf1", "pf2"}})

	layers, err := g.Layers()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(layers) != 3 {
		t.Fatalf("expected 3 layers, got %d: %v", len(layers), layers)
	}
	if len(layers[0]) != 1 || layers[0][0] != "k8s1" {
		t.Errorf("expected layer 0 = [k8s1], got %v", layers[0])
	}
	if len(layers[1]) != 2 {
		t.Errorf("expected layer 1 to hold both port-forwards, got %v", layers[1])
	}
	if len(layers[2]) != 1 || layers[2][0] != "mcp1" {
		t.Errorf("expected layer 2 = [mcp1], got %v", layers[2])
	}
}

func TestLayers_CycleError(t *testing.T) {
	g := New()
	g.AddNode(Node{ID: "a", DependsOn: []NodeID{"b"}})
	g.AddNode(Node{ID: "b", DependsOn: []NodeID{"a"}})

	if _, err := g.Layers(); err == nil {
		t.Fatal("expected cycle error")
	}
}
