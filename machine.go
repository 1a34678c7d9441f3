package hsmx

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Wildcard is the event name matched by machine-wide catch-all transitions,
// consulted only after every named handler has missed.
const Wildcard = "*"

// Machine is the compiled, immutable definition of a state machine. One
// Machine can start any number of independent Instances.
type Machine struct {
	id       string
	initial  int // root-level initial node
	tree     *stateTree
	global   map[string][]Transition
	registry *Registry
	defCtx   Context // default initial context from the definition
}

// ID returns the machine identifier.
func (m *Machine) ID() string { return m.id }

// options configures Start via functional options.
type options struct {
	historySize int
	queueSize   int
	logger      *slog.Logger
}

// Option configures an Instance at Start.
type Option func(*options)

// DefaultHistorySize bounds the transition history when WithHistorySize is
// not given.
const DefaultHistorySize = 50

// WithHistorySize sets the history ring capacity.
func WithHistorySize(n int) Option {
	return func(o *options) { o.historySize = n }
}

// WithQueueSize sets the pending event queue capacity.
func WithQueueSize(n int) Option {
	return func(o *options) { o.queueSize = n }
}

// WithLogger subscribes a structured-logging listener to the instance.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// ValidationResult reports static definition checks. Errors make the
// definition unusable in practice; warnings flag suspicious but legal
// shapes.
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// Validate statically checks the compiled definition: static transition
// targets resolve, referenced guards and actions are registered, declared
// initial children exist, every state is reachable from the initial state,
// and empty leaf states are flagged as warnings. Function-valued targets
// cannot be checked statically and are skipped.
func (m *Machine) Validate() ValidationResult {
	var res ValidationResult

	for i := range m.tree.nodes {
		n := &m.tree.nodes[i]

		if n.initial != "" {
			if _, ok := n.childIdx[n.initial]; !ok {
				res.Errors = append(res.Errors, fmt.Sprintf("state %q: initial child %q does not exist", n.path, n.initial))
			}
		}
		if len(n.children) == 0 && len(n.on) == 0 && len(n.entry) == 0 && len(n.exit) == 0 {
			res.Warnings = append(res.Warnings, fmt.Sprintf("state %q is an empty leaf: no transitions, actions, or children", n.path))
		}
		for event, list := range n.on {
			for j, tr := range list {
				where := fmt.Sprintf("state %q, event %q, transition %d", n.path, event, j)
				m.checkTransition(tr, i, where, &res)
			}
		}
	}
	for event, list := range m.global {
		for j, tr := range list {
			where := fmt.Sprintf("global, event %q, transition %d", event, j)
			m.checkTransition(tr, noNode, where, &res)
		}
	}

	m.checkReachability(&res)

	sort.Strings(res.Errors)
	sort.Strings(res.Warnings)
	res.Valid = len(res.Errors) == 0
	return res
}

func (m *Machine) checkTransition(tr Transition, source int, where string, res *ValidationResult) {
	if tr.TargetFunc == nil && tr.Target != "" {
		if _, _, ok := m.resolveTarget(tr, sourceOr(source, m.initial), nil, Event{}); !ok {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: target %q does not resolve", where, tr.Target))
		}
	}
	m.checkGuard(tr.Guard, where, res)
	for _, a := range tr.Actions {
		m.checkActionRef(a, where, res)
	}
}

func sourceOr(source, fallback int) int {
	if source == noNode {
		return fallback
	}
	return source
}

func (m *Machine) checkGuard(g *Guard, where string, res *ValidationResult) {
	if g == nil {
		return
	}
	if g.Name != "" {
		name := strings.TrimPrefix(g.Name, "!")
		if _, ok := m.registry.Guards[name]; !ok {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: guard %q is not registered", where, name))
		}
	}
	for i := range g.All {
		m.checkGuard(&g.All[i], where, res)
	}
	for i := range g.Any {
		m.checkGuard(&g.Any[i], where, res)
	}
	if g.Not != nil {
		m.checkGuard(g.Not, where, res)
	}
}

func (m *Machine) checkActionRef(a Action, where string, res *ValidationResult) {
	if !a.empty() || a.Name == "" {
		return
	}
	if _, ok := m.registry.Actions[a.Name]; !ok {
		res.Errors = append(res.Errors, fmt.Sprintf("%s: action %q is not registered", where, a.Name))
	}
}

// checkReachability walks from the initial state: being in a state implies
// its ancestors are active, entering a compound state enters its initial
// descent, and every static transition target reachable from an active
// state chain is reachable.
func (m *Machine) checkReachability(res *ValidationResult) {
	reached := make(map[int]bool)
	var visit func(idx int)
	visit = func(idx int) {
		if idx == noNode || reached[idx] {
			return
		}
		for _, a := range m.tree.ancestry(idx) {
			if reached[a] {
				break
			}
			reached[a] = true
		}
		reached[idx] = true
		for _, lvl := range m.tree.initialDescent(idx) {
			if !reached[lvl] {
				visit(lvl)
			}
		}
		// Targets declared on this node and inherited from ancestors are
		// live while this state chain is active.
		for _, owner := range m.tree.ancestry(idx) {
			for _, list := range m.tree.nodes[owner].on {
				for _, tr := range list {
					if tr.TargetFunc != nil || tr.Target == "" {
						continue
					}
					if target, _, ok := m.resolveTarget(tr, owner, nil, Event{}); ok {
						visit(target)
					}
				}
			}
		}
		for _, list := range m.global {
			for _, tr := range list {
				if tr.TargetFunc != nil || tr.Target == "" {
					continue
				}
				if target, _, ok := m.resolveTarget(tr, idx, nil, Event{}); ok {
					visit(target)
				}
			}
		}
	}
	visit(m.initial)

	for i := range m.tree.nodes {
		if !reached[i] {
			res.Errors = append(res.Errors, fmt.Sprintf("state %q is not reachable from the initial state", m.tree.nodes[i].path))
		}
	}
}
