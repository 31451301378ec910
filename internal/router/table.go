package router

import (
	"strings"
	"sync"

	"github.com/qorzen/kernel/internal/kernelerr"
)

// node is one segment of the registered-route trie. Matching always
// prefers a literal child over the param child at each level, so a more
// specific registration (e.g. "/users/me") wins over a param sibling
// (e.g. "/users/{id}") when both could match — the "longest prefix" of
// literal segments determines specificity (spec.md §4.7).
type node struct {
	literal   map[string]*node
	param     *node
	paramName string
	route     *Route
}

func newNode() *node { return &node{literal: make(map[string]*node)} }

// Table is the registered-route trie, one per HTTP method.
type Table struct {
	mu   sync.RWMutex
	root map[string]*node // method -> trie root
}

// NewTable constructs an empty route table.
func NewTable() *Table {
	return &Table{root: make(map[string]*node)}
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// Register adds route to the table. Registering an identical
// method+path-shape a second time is a conflict (spec.md §4.5's route
// uniqueness requirement, reused here for kernel-native routes too).
func (t *Table) Register(route Route) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	method := strings.ToUpper(route.Method)
	root, ok := t.root[method]
	if !ok {
		root = newNode()
		t.root[method] = root
	}

	cur := root
	for _, seg := range splitPath(route.Path) {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			name := strings.TrimSuffix(strings.TrimPrefix(seg, "{"), "}")
			if cur.param == nil {
				cur.param = newNode()
				cur.param.paramName = name
			} else if cur.param.paramName != name {
				return kernelerr.Conflict("router.register", "path parameter name conflict at "+route.Path)
			}
			cur = cur.param
			continue
		}
		next, ok := cur.literal[seg]
		if !ok {
			next = newNode()
			cur.literal[seg] = next
		}
		cur = next
	}

	if cur.route != nil {
		return kernelerr.Conflict("router.register", method+" "+route.Path+" is already registered")
	}
	rcopy := route
	cur.route = &rcopy
	return nil
}

// Deregister removes every route owned by pluginID from the table. Used by
// plugin unload/reload to guarantee no stale registration survives (spec.md
// §8 scenario covering post-unload route cleanup).
func (t *Table) Deregister(pluginID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, root := range t.root {
		pruneOwned(root, pluginID)
	}
}

func pruneOwned(n *node, pluginID string) {
	if n.route != nil && n.route.OwnerPluginID == pluginID {
		n.route = nil
	}
	for _, child := range n.literal {
		pruneOwned(child, pluginID)
	}
	if n.param != nil {
		pruneOwned(n.param, pluginID)
	}
}

// Match resolves method+path to a registered Route and its extracted path
// parameters. Returns false if no route matches (the caller returns 404).
func (t *Table) Match(method, path string) (Route, map[string]string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	root, ok := t.root[strings.ToUpper(method)]
	if !ok {
		return Route{}, nil, false
	}

	params := make(map[string]string)
	cur := root
	for _, seg := range splitPath(path) {
		if next, ok := cur.literal[seg]; ok {
			cur = next
			continue
		}
		if cur.param != nil {
			params[cur.param.paramName] = seg
			cur = cur.param
			continue
		}
		return Route{}, nil, false
	}

	if cur.route == nil {
		return Route{}, nil, false
	}
	return *cur.route, params, true
}
