package hsmx

import (
	"fmt"
	"strings"
)

// Builder is the fluent front end for constructing machines in code, with
// guards and actions attached as functions instead of registry names. It
// compiles to the same internal tree as the config front end.
//
// States are addressed by dotted path; missing ancestors are auto-created:
//
//	b := NewBuilder("door")
//	b.State("closed").On("OPEN", "open")
//	b.State("open").On("CLOSE", "closed")
//	m, err := b.Initial("closed").Build()
type Builder struct {
	id       string
	initial  string
	registry *Registry
	defCtx   Context
	order    []string // paths in first-mention order
	states   map[string]*builderState
	global   map[string][]Transition
	err      error
}

type builderState struct {
	initial string
	entry   []Action
	exit    []Action
	on      map[string][]Transition
	onOrder []string // event declaration order
}

// StateBuilder configures a single state.
type StateBuilder struct {
	b    *Builder
	path string
	st   *builderState
}

// NewBuilder creates a Builder for the machine with the given id.
func NewBuilder(id string) *Builder {
	return &Builder{
		id:       id,
		registry: &Registry{},
		states:   make(map[string]*builderState),
		global:   make(map[string][]Transition),
	}
}

// Initial declares the machine's initial state by path.
func (b *Builder) Initial(path string) *Builder {
	b.initial = path
	return b
}

// Context sets the default initial context for instances started without
// one.
func (b *Builder) Context(ctx Context) *Builder {
	b.defCtx = cloneCtx(ctx)
	return b
}

// Registry attaches named guards and actions for reference-style
// definitions and Validate.
func (b *Builder) Registry(reg *Registry) *Builder {
	if reg != nil {
		b.registry = reg
	}
	return b
}

// State creates or retrieves the state at the dotted path, auto-creating
// ancestors.
func (b *Builder) State(path string) *StateBuilder {
	st := b.state(path)
	return &StateBuilder{b: b, path: path, st: st}
}

func (b *Builder) state(path string) *builderState {
	if st, ok := b.states[path]; ok {
		return st
	}
	if parent, _ := splitPath(path); parent != "" {
		b.state(parent)
	}
	st := &builderState{on: make(map[string][]Transition)}
	b.states[path] = st
	b.order = append(b.order, path)
	return st
}

// GlobalOn declares a machine-wide transition consulted after bubbling.
// Use Wildcard as the event for the catch-all handler.
func (b *Builder) GlobalOn(event, target string, opts ...TransitionOption) *Builder {
	tr := Transition{Event: event, Target: target}
	for _, opt := range opts {
		opt(&tr)
	}
	b.global[event] = append(b.global[event], tr)
	return b
}

// Initial declares this state's initial child by id.
func (sb *StateBuilder) Initial(childID string) *StateBuilder {
	sb.st.initial = childID
	return sb
}

// Entry appends entry actions.
func (sb *StateBuilder) Entry(actions ...Action) *StateBuilder {
	sb.st.entry = append(sb.st.entry, actions...)
	return sb
}

// Exit appends exit actions.
func (sb *StateBuilder) Exit(actions ...Action) *StateBuilder {
	sb.st.exit = append(sb.st.exit, actions...)
	return sb
}

// On declares a transition from this state. An empty target declares an
// internal transition.
func (sb *StateBuilder) On(event, target string, opts ...TransitionOption) *StateBuilder {
	tr := Transition{Event: event, Target: target}
	for _, opt := range opts {
		opt(&tr)
	}
	if _, seen := sb.st.on[event]; !seen {
		sb.st.onOrder = append(sb.st.onOrder, event)
	}
	sb.st.on[event] = append(sb.st.on[event], tr)
	return sb
}

// TransitionOption configures a transition declared through the builder.
type TransitionOption func(*Transition)

// WithGuard attaches a guard.
func WithGuard(g Guard) TransitionOption {
	return func(tr *Transition) { tr.Guard = &g }
}

// WithActions appends transition actions.
func WithActions(actions ...Action) TransitionOption {
	return func(tr *Transition) { tr.Actions = append(tr.Actions, actions...) }
}

// WithTargetFunc computes the target at dispatch time; it overrides any
// static target.
func WithTargetFunc(fn TargetFunc) TransitionOption {
	return func(tr *Transition) { tr.TargetFunc = fn }
}

// WithReenter forces exit and re-entry on a self-loop.
func WithReenter() TransitionOption {
	return func(tr *Transition) { tr.Reenter = true }
}

// Build compiles the definition. Definition errors are fatal, matching the
// config front end.
func (b *Builder) Build() (*Machine, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.id == "" {
		return nil, fmt.Errorf("machine id is required")
	}
	if b.initial == "" {
		return nil, fmt.Errorf("machine %q: initial state is required", b.id)
	}
	if len(b.states) == 0 {
		return nil, fmt.Errorf("machine %q: at least one state is required", b.id)
	}

	m := &Machine{
		id:       b.id,
		tree:     newStateTree(),
		global:   make(map[string][]Transition),
		registry: b.registry,
		defCtx:   cloneCtx(b.defCtx),
	}

	// First-mention order is declaration order; ancestors are always
	// mentioned before descendants by construction.
	for _, path := range b.order {
		st := b.states[path]
		parentPath, id := splitPath(path)
		parent := noNode
		if parentPath != "" {
			parent, _ = m.tree.resolve(parentPath)
		}
		idx := m.tree.addNode(id, parent)
		n := &m.tree.nodes[idx]
		n.initial = st.initial
		n.entry = st.entry
		n.exit = st.exit
		for _, event := range st.onOrder {
			n.on[event] = st.on[event]
		}
	}

	for path, st := range b.states {
		if st.initial == "" {
			continue
		}
		idx, _ := m.tree.resolve(path)
		if _, ok := m.tree.nodes[idx].childIdx[st.initial]; !ok {
			return nil, fmt.Errorf("machine %q: state %q declares missing initial child %q", b.id, path, st.initial)
		}
	}

	for event, list := range b.global {
		m.global[event] = append(m.global[event], list...)
	}

	initial, ok := m.tree.resolve(b.initial)
	if !ok {
		return nil, fmt.Errorf("machine %q: initial state %q does not exist", b.id, b.initial)
	}
	m.initial = initial
	return m, nil
}

// splitPath splits "parent.child" into ("parent", "child"); a bare id has
// an empty parent.
func splitPath(path string) (parent, id string) {
	i := strings.LastIndex(path, ".")
	if i == -1 {
		return "", path
	}
	return path[:i], path[i+1:]
}
