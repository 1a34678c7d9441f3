package hsmx

import "strings"

// TargetFunc computes a transition target at dispatch time. The returned
// string uses any of the static target forms; an empty return makes the
// transition internal.
type TargetFunc func(ctx Context, evt Event) string

// Transition declares a guarded, action-bearing reaction to an event.
// Target forms: a dotted path, a sibling id, an identifier reference
// prefixed "#", an ancestor reference prefixed "^", or a TargetFunc. An
// empty target (and nil TargetFunc) declares an internal transition.
type Transition struct {
	Event      string
	Target     string
	TargetFunc TargetFunc
	Guard      *Guard
	Actions    []Action

	// Reenter forces exit and re-entry on a self-loop. Without it a
	// transition whose resolved target equals the current node is
	// normalized to internal.
	Reenter bool
}

// match is the outcome of a successful transition search.
type match struct {
	trans    Transition
	source   int // node the transition was declared on, noNode for global
	target   int // resolved target node, noNode for internal
	internal bool
}

// resolveTarget maps a transition's declared target to a node index.
// Relative and sibling forms resolve against scope, the node the
// transition was declared on (the current node for global transitions).
// The bool result is false when the target cannot be resolved, which the
// caller treats as a non-fatal miss.
func (m *Machine) resolveTarget(tr Transition, scope int, ctx Context, evt Event) (int, bool, bool) {
	target := tr.Target
	if tr.TargetFunc != nil {
		target = safeTarget(tr.TargetFunc, ctx, evt)
	}
	if target == "" {
		return noNode, true, true // explicit internal
	}
	switch {
	case strings.HasPrefix(target, "#"):
		idx, ok := m.tree.resolveByID(target[1:])
		return idx, false, ok
	case strings.HasPrefix(target, "^"):
		idx, ok := m.tree.relativeResolve(scope, target)
		return idx, false, ok
	default:
		if idx, ok := m.tree.resolve(target); ok {
			return idx, false, ok
		}
		// Fall back to sibling resolution: a bare id names a child of the
		// declaring node's parent.
		if scope != noNode {
			if parent := m.tree.nodes[scope].parent; parent != noNode {
				if idx, ok := m.tree.resolve(m.tree.nodes[parent].path + "." + target); ok {
					return idx, false, ok
				}
			}
		}
		return noNode, false, false
	}
}

func safeTarget(fn TargetFunc, ctx Context, evt Event) (target string) {
	defer func() {
		if recover() != nil {
			target = ""
		}
	}()
	return fn(ctx, evt)
}

// findTransition searches for the first transition matching evt from the
// state at current. Candidates are evaluated in declaration order,
// first-match-wins: at the current node, then each ancestor in turn (event
// bubbling), then machine-wide transitions for the event, then the
// machine-wide wildcard handler.
func (m *Machine) findTransition(evt Event, current int, ctx Context) (match, bool) {
	for _, idx := range m.tree.ancestry(current) {
		mt, ok, selected := m.firstMatch(m.tree.nodes[idx].on[evt.Name], idx, current, ctx, evt)
		if selected {
			return mt, ok
		}
	}
	if mt, ok, selected := m.firstMatch(m.global[evt.Name], noNode, current, ctx, evt); selected {
		return mt, ok
	}
	mt, ok, _ := m.firstMatch(m.global[Wildcard], noNode, current, ctx, evt)
	return mt, ok
}

// firstMatch returns the first guard-satisfying candidate whose target
// resolves. selected reports that some candidate's guard passed; once that
// happens there is no backtracking, so an unresolvable target on the
// selected candidate ends the whole search as a miss.
func (m *Machine) firstMatch(candidates []Transition, source, current int, ctx Context, evt Event) (mt match, ok, selected bool) {
	scope := source
	if scope == noNode {
		scope = current
	}
	for _, tr := range candidates {
		if !evalGuard(tr.Guard, m.registry, ctx, evt) {
			continue
		}
		target, internal, resolved := m.resolveTarget(tr, scope, ctx, evt)
		if !resolved {
			return match{}, false, true
		}
		if target == current && !tr.Reenter {
			// Self-loop normalization: no redundant exit/entry cycling.
			internal = true
		}
		if internal {
			target = noNode
		}
		return match{trans: tr, source: source, target: target, internal: internal}, true, true
	}
	return match{}, false, false
}
