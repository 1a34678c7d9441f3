package hsmx

import (
	"encoding/json"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// The config front end: declarative structs loadable from YAML or JSON.
// Guards and actions are referenced by registry name, so a definition file
// stays pure data. Compile lowers a config to the same internal tree the
// builder produces.

// MachineConfig is the declarative definition of a machine.
type MachineConfig struct {
	ID      string                        `json:"id" yaml:"id"`
	Initial string                        `json:"initial" yaml:"initial"`
	Context map[string]any                `json:"context,omitempty" yaml:"context,omitempty"`
	States  map[string]*StateConfig       `json:"states" yaml:"states"`
	On      map[string][]TransitionConfig `json:"on,omitempty" yaml:"on,omitempty"` // machine-wide handlers
}

// StateConfig defines one state, nesting children under States.
type StateConfig struct {
	Initial string                        `json:"initial,omitempty" yaml:"initial,omitempty"`
	Entry   []string                      `json:"entry,omitempty" yaml:"entry,omitempty"`
	Exit    []string                      `json:"exit,omitempty" yaml:"exit,omitempty"`
	On      map[string][]TransitionConfig `json:"on,omitempty" yaml:"on,omitempty"`
	States  map[string]*StateConfig       `json:"states,omitempty" yaml:"states,omitempty"`

	// Order fixes child declaration order for document-order semantics;
	// when empty, children sort lexically for determinism.
	Order []string `json:"order,omitempty" yaml:"order,omitempty"`
}

// TransitionConfig defines one transition. Actions reference the registry
// by name.
type TransitionConfig struct {
	Target  string       `json:"target,omitempty" yaml:"target,omitempty"`
	Guard   *GuardConfig `json:"guard,omitempty" yaml:"guard,omitempty"`
	Actions []string     `json:"actions,omitempty" yaml:"actions,omitempty"`
	Reenter bool         `json:"reenter,omitempty" yaml:"reenter,omitempty"`
}

// GuardConfig is either a bare name ("isAdmin", "!locked") or a composite
// node with exactly one of all/any/not.
type GuardConfig struct {
	Name string
	All  []GuardConfig
	Any  []GuardConfig
	Not  *GuardConfig
}

type guardConfigComposite struct {
	All []GuardConfig `json:"all,omitempty" yaml:"all,omitempty"`
	Any []GuardConfig `json:"any,omitempty" yaml:"any,omitempty"`
	Not *GuardConfig  `json:"not,omitempty" yaml:"not,omitempty"`
}

// UnmarshalYAML accepts either a scalar guard name or a composite mapping.
func (g *GuardConfig) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		return value.Decode(&g.Name)
	}
	var comp guardConfigComposite
	if err := value.Decode(&comp); err != nil {
		return err
	}
	g.All, g.Any, g.Not = comp.All, comp.Any, comp.Not
	return nil
}

// UnmarshalJSON accepts either a string or a composite object.
func (g *GuardConfig) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &g.Name)
	}
	var comp guardConfigComposite
	if err := json.Unmarshal(data, &comp); err != nil {
		return err
	}
	g.All, g.Any, g.Not = comp.All, comp.Any, comp.Not
	return nil
}

// MarshalYAML emits the scalar form for plain names.
func (g GuardConfig) MarshalYAML() (any, error) {
	if g.Name != "" {
		return g.Name, nil
	}
	return guardConfigComposite{All: g.All, Any: g.Any, Not: g.Not}, nil
}

// MarshalJSON emits the string form for plain names.
func (g GuardConfig) MarshalJSON() ([]byte, error) {
	if g.Name != "" {
		return json.Marshal(g.Name)
	}
	return json.Marshal(guardConfigComposite{All: g.All, Any: g.Any, Not: g.Not})
}

func (g *GuardConfig) guard() *Guard {
	if g == nil {
		return nil
	}
	out := &Guard{Name: g.Name}
	for _, sub := range g.All {
		out.All = append(out.All, *sub.guard())
	}
	for _, sub := range g.Any {
		out.Any = append(out.Any, *sub.guard())
	}
	if g.Not != nil {
		out.Not = g.Not.guard()
	}
	return out
}

// LoadYAML parses a MachineConfig from YAML.
func LoadYAML(data []byte) (MachineConfig, error) {
	var cfg MachineConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return MachineConfig{}, fmt.Errorf("yaml unmarshal: %w", err)
	}
	return cfg, nil
}

// LoadJSON parses a MachineConfig from JSON.
func LoadJSON(data []byte) (MachineConfig, error) {
	var cfg MachineConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return MachineConfig{}, fmt.Errorf("json unmarshal: %w", err)
	}
	return cfg, nil
}

// Compile lowers a config into an executable Machine. Definition errors —
// missing id, initial, or states, dangling initial children — are fatal
// here: they indicate a broken definition and are never silently tolerated.
func Compile(cfg MachineConfig, reg *Registry) (*Machine, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("machine id is required")
	}
	if cfg.Initial == "" {
		return nil, fmt.Errorf("machine %q: initial state is required", cfg.ID)
	}
	if len(cfg.States) == 0 {
		return nil, fmt.Errorf("machine %q: at least one state is required", cfg.ID)
	}
	if reg == nil {
		reg = &Registry{}
	}

	m := &Machine{
		id:       cfg.ID,
		tree:     newStateTree(),
		global:   make(map[string][]Transition),
		registry: reg,
		defCtx:   cloneCtx(cfg.Context),
	}

	var build func(id string, sc *StateConfig, parent int) error
	build = func(id string, sc *StateConfig, parent int) error {
		idx := m.tree.addNode(id, parent)
		n := &m.tree.nodes[idx]
		n.initial = sc.Initial
		for _, name := range sc.Entry {
			n.entry = append(n.entry, Named(name))
		}
		for _, name := range sc.Exit {
			n.exit = append(n.exit, Named(name))
		}
		for event, list := range sc.On {
			for _, tc := range list {
				n.on[event] = append(n.on[event], configTransition(event, tc))
			}
		}
		for _, childID := range childOrder(sc) {
			child, ok := sc.States[childID]
			if !ok {
				return fmt.Errorf("machine %q: state %q order lists unknown child %q", cfg.ID, m.tree.nodes[idx].path, childID)
			}
			if err := build(childID, child, idx); err != nil {
				return err
			}
		}
		n = &m.tree.nodes[idx] // re-take: the arena may have grown
		if n.initial != "" {
			if _, ok := n.childIdx[n.initial]; !ok {
				return fmt.Errorf("machine %q: state %q declares missing initial child %q", cfg.ID, n.path, n.initial)
			}
		}
		return nil
	}

	root := &StateConfig{States: cfg.States}
	for _, id := range childOrder(root) {
		if err := build(id, cfg.States[id], noNode); err != nil {
			return nil, err
		}
	}

	for event, list := range cfg.On {
		for _, tc := range list {
			m.global[event] = append(m.global[event], configTransition(event, tc))
		}
	}

	initial, ok := m.tree.resolve(cfg.Initial)
	if !ok {
		return nil, fmt.Errorf("machine %q: initial state %q does not exist", cfg.ID, cfg.Initial)
	}
	m.initial = initial
	return m, nil
}

func configTransition(event string, tc TransitionConfig) Transition {
	tr := Transition{
		Event:   event,
		Target:  tc.Target,
		Guard:   tc.Guard.guard(),
		Reenter: tc.Reenter,
	}
	for _, name := range tc.Actions {
		tr.Actions = append(tr.Actions, Named(name))
	}
	return tr
}

func childOrder(sc *StateConfig) []string {
	if len(sc.Order) > 0 {
		return sc.Order
	}
	ids := make([]string, 0, len(sc.States))
	for id := range sc.States {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
