package hsmx

import (
	"context"
	"fmt"
)

// Context is the extended state of a running Instance. It is mutated only
// through action merges and deep-cloned whenever it crosses the engine
// boundary, so callers can never corrupt internal state through a snapshot.
type Context = map[string]any

// UpdateFunc computes a partial context that is deep-merged into the
// instance context.
type UpdateFunc func(ctx Context, evt Event) (Context, error)

// DeferredUpdateFunc is an UpdateFunc that may block; it receives a
// context.Context and is awaited before the next action runs.
type DeferredUpdateFunc func(ctx context.Context, mc Context, evt Event) (Context, error)

// ComputeFunc produces a value that is recorded in the transition results
// but never merged into context.
type ComputeFunc func(ctx Context, evt Event) (any, error)

// DeferredComputeFunc is a ComputeFunc that may block.
type DeferredComputeFunc func(ctx context.Context, mc Context, evt Event) (any, error)

// Action is a single step in an entry, exit, or transition action list.
// Whether an action is immediate or deferred is declared by the machine
// author at definition time through the constructor used; the executor
// never inspects function internals to guess.
type Action struct {
	// Name labels the action in results. When no function is set, Name
	// references the action registry; a missing reference is a no-op that
	// still records a {Name, nil} result.
	Name string

	update          UpdateFunc
	updateDeferred  DeferredUpdateFunc
	compute         ComputeFunc
	computeDeferred DeferredComputeFunc
}

// Assign declares an immediate context update.
func Assign(fn UpdateFunc) Action { return Action{update: fn} }

// AssignDeferred declares a deferred context update.
func AssignDeferred(fn DeferredUpdateFunc) Action { return Action{updateDeferred: fn} }

// Do declares an immediate computation whose value is recorded but not
// merged.
func Do(fn ComputeFunc) Action { return Action{compute: fn} }

// DoDeferred declares a deferred computation.
func DoDeferred(fn DeferredComputeFunc) Action { return Action{computeDeferred: fn} }

// Named references an action registered under name.
func Named(name string) Action { return Action{Name: name} }

// WithName labels the action for result records.
func (a Action) WithName(name string) Action {
	a.Name = name
	return a
}

func (a Action) deferred() bool {
	return a.updateDeferred != nil || a.computeDeferred != nil
}

func (a Action) empty() bool {
	return a.update == nil && a.updateDeferred == nil &&
		a.compute == nil && a.computeDeferred == nil
}

// ActionResult records one executed action: its name (empty for anonymous
// actions) and the computed value, nil for pure updates and missing
// references.
type ActionResult struct {
	Name  string
	Value any
}

// Registry supplies named guards and actions to a machine definition.
// Both front ends resolve references against it at run time; Validate
// checks references against it statically.
type Registry struct {
	Guards  map[string]GuardFunc
	Actions map[string]Action
}

// resolveAction follows a registry reference. The returned action carries
// the reference name for result records. ok is false when the reference is
// missing.
func resolveAction(a Action, reg *Registry) (Action, bool) {
	if !a.empty() {
		return a, true
	}
	if a.Name == "" {
		return a, false
	}
	if reg != nil {
		if ra, found := reg.Actions[a.Name]; found {
			ra.Name = a.Name
			return ra, true
		}
	}
	return a, false
}

// hasDeferred reports whether any action in the lists resolves to a
// deferred action. This is the pre-flight check that selects the fast
// synchronous path when possible.
func hasDeferred(reg *Registry, lists ...[]Action) bool {
	for _, list := range lists {
		for _, a := range list {
			if r, ok := resolveAction(a, reg); ok && r.deferred() {
				return true
			}
		}
	}
	return false
}

// runImmediate executes actions in declaration order on the fast path, with
// no suspension machinery. Calling it with a deferred action is a pipeline
// bug and yields an error.
func runImmediate(reg *Registry, actions []Action, mc Context, evt Event) (Context, []ActionResult, error) {
	results := make([]ActionResult, 0, len(actions))
	for _, a := range actions {
		r, ok := resolveAction(a, reg)
		if !ok {
			// Missing reference: skipped, recorded, never an error.
			results = append(results, ActionResult{Name: a.Name})
			continue
		}
		switch {
		case r.update != nil:
			patch, err := r.update(mc, evt)
			if err != nil {
				return mc, results, err
			}
			mc = mergePatch(mc, patch)
			results = append(results, ActionResult{Name: r.Name})
		case r.compute != nil:
			v, err := r.compute(mc, evt)
			if err != nil {
				return mc, results, err
			}
			results = append(results, ActionResult{Name: r.Name, Value: v})
		default:
			return mc, results, fmt.Errorf("deferred action %q on immediate path", r.Name)
		}
	}
	return mc, results, nil
}

// runDeferred executes actions in declaration order, awaiting each deferred
// action's completion before starting the next.
func runDeferred(ctx context.Context, reg *Registry, actions []Action, mc Context, evt Event) (Context, []ActionResult, error) {
	results := make([]ActionResult, 0, len(actions))
	for _, a := range actions {
		r, ok := resolveAction(a, reg)
		if !ok {
			results = append(results, ActionResult{Name: a.Name})
			continue
		}
		switch {
		case r.update != nil:
			patch, err := r.update(mc, evt)
			if err != nil {
				return mc, results, err
			}
			mc = mergePatch(mc, patch)
			results = append(results, ActionResult{Name: r.Name})
		case r.updateDeferred != nil:
			patch, err := r.updateDeferred(ctx, mc, evt)
			if err != nil {
				return mc, results, err
			}
			mc = mergePatch(mc, patch)
			results = append(results, ActionResult{Name: r.Name})
		case r.compute != nil:
			v, err := r.compute(mc, evt)
			if err != nil {
				return mc, results, err
			}
			results = append(results, ActionResult{Name: r.Name, Value: v})
		case r.computeDeferred != nil:
			v, err := r.computeDeferred(ctx, mc, evt)
			if err != nil {
				return mc, results, err
			}
			results = append(results, ActionResult{Name: r.Name, Value: v})
		}
	}
	return mc, results, nil
}
