package hsmx

import "strings"

// The compiled state tree is an arena: the tree owns every node in a flat
// slice and nodes refer to each other by index. Children are owned by index
// list, the parent link is a non-owning back index (-1 for roots), so there
// are no reference cycles and ancestor walks stay O(depth).

const noNode = -1

type stateNode struct {
	id   string
	path string // dotted path from root, e.g. "parent.child"

	parent   int
	children []int          // declaration order
	childIdx map[string]int // child id -> node index

	entry   []Action
	exit    []Action
	initial string // initial child id, "" for leaf states
	on      map[string][]Transition
}

type stateTree struct {
	nodes  []stateNode
	byPath map[string]int
	roots  []int // declaration order
}

func newStateTree() *stateTree {
	return &stateTree{byPath: make(map[string]int)}
}

// addNode appends a node under parent (noNode for a root) and registers its
// dotted path. Returns the new node's index.
func (t *stateTree) addNode(id string, parent int) int {
	path := id
	if parent != noNode {
		path = t.nodes[parent].path + "." + id
	}
	idx := len(t.nodes)
	t.nodes = append(t.nodes, stateNode{
		id:       id,
		path:     path,
		parent:   parent,
		childIdx: make(map[string]int),
		on:       make(map[string][]Transition),
	})
	t.byPath[path] = idx
	if parent == noNode {
		t.roots = append(t.roots, idx)
	} else {
		p := &t.nodes[parent]
		p.children = append(p.children, idx)
		p.childIdx[id] = idx
	}
	return idx
}

// resolve looks up a node by dotted path. Malformed paths (dangling
// separators, missing segments) simply miss: absence of a target is a
// normal, recoverable outcome.
func (t *stateTree) resolve(path string) (int, bool) {
	idx, ok := t.byPath[path]
	return idx, ok
}

// resolveByID searches the whole tree for the first node with the given
// leaf identifier, in document order. Used for "#id" references.
func (t *stateTree) resolveByID(id string) (int, bool) {
	var walk func(idx int) (int, bool)
	walk = func(idx int) (int, bool) {
		if t.nodes[idx].id == id {
			return idx, true
		}
		for _, c := range t.nodes[idx].children {
			if found, ok := walk(c); ok {
				return found, true
			}
		}
		return noNode, false
	}
	for _, r := range t.roots {
		if found, ok := walk(r); ok {
			return found, true
		}
	}
	return noNode, false
}

// relativeResolve resolves an ancestor reference like "^", "^^", or
// "^^.sibling.child": each caret climbs one level from the given node, a
// trailing dotted path then descends through child ids.
func (t *stateTree) relativeResolve(from int, ref string) (int, bool) {
	if from == noNode || !strings.HasPrefix(ref, "^") {
		return noNode, false
	}
	idx := from
	i := 0
	for i < len(ref) && ref[i] == '^' {
		idx = t.nodes[idx].parent
		if idx == noNode {
			return noNode, false
		}
		i++
	}
	rest := ref[i:]
	if rest == "" {
		return idx, true
	}
	if rest[0] != '.' {
		return noNode, false
	}
	for _, seg := range strings.Split(rest[1:], ".") {
		if seg == "" {
			return noNode, false
		}
		child, ok := t.nodes[idx].childIdx[seg]
		if !ok {
			return noNode, false
		}
		idx = child
	}
	return idx, true
}

// ancestry returns the node and its ancestors, innermost first.
func (t *stateTree) ancestry(idx int) []int {
	var chain []int
	for idx != noNode {
		chain = append(chain, idx)
		idx = t.nodes[idx].parent
	}
	return chain
}

// initialDescent follows initial-child pointers from idx to the deepest
// reachable level, returning every visited level outer-to-inner, starting
// with idx itself.
func (t *stateTree) initialDescent(idx int) []int {
	levels := []int{idx}
	for {
		n := &t.nodes[idx]
		if n.initial == "" {
			return levels
		}
		child, ok := n.childIdx[n.initial]
		if !ok {
			// Dangling initial is rejected at compile time; treat a miss
			// here as the descent floor.
			return levels
		}
		levels = append(levels, child)
		idx = child
	}
}
