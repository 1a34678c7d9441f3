package hsmx

import "strings"

// GuardFunc is a pure predicate over context and event.
type GuardFunc func(ctx Context, evt Event) bool

// Guard is a transition condition: a named registry reference (a leading
// "!" inverts the result), an inline predicate, or a composite of
// subguards. Exactly one of the fields should be set; a zero Guard always
// passes.
type Guard struct {
	Name string
	Fn   GuardFunc
	All  []Guard // every subguard must pass (short-circuit AND)
	Any  []Guard // at least one subguard must pass (short-circuit OR)
	Not  *Guard
}

// When references a registered guard by name. Prefix the name with "!" to
// negate it.
func When(name string) Guard { return Guard{Name: name} }

// GuardFn wraps an inline predicate.
func GuardFn(fn GuardFunc) Guard { return Guard{Fn: fn} }

// AllOf composes guards with AND semantics.
func AllOf(guards ...Guard) Guard { return Guard{All: guards} }

// AnyOf composes guards with OR semantics.
func AnyOf(guards ...Guard) Guard { return Guard{Any: guards} }

// NotOf negates a guard.
func NotOf(g Guard) Guard { return Guard{Not: &g} }

func (g Guard) isZero() bool {
	return g.Name == "" && g.Fn == nil && g.All == nil && g.Any == nil && g.Not == nil
}

// evalGuard evaluates g against ctx and evt. The policy is fail-closed: an
// unregistered name or a panicking predicate evaluates to false rather than
// aborting the transition search, so a broken guard cannot block unrelated
// transitions or crash the interpreter.
func evalGuard(g *Guard, reg *Registry, ctx Context, evt Event) bool {
	if g == nil || g.isZero() {
		return true
	}
	switch {
	case g.Not != nil:
		return !evalGuard(g.Not, reg, ctx, evt)
	case g.All != nil:
		for i := range g.All {
			if !evalGuard(&g.All[i], reg, ctx, evt) {
				return false
			}
		}
		return true
	case g.Any != nil:
		for i := range g.Any {
			if evalGuard(&g.Any[i], reg, ctx, evt) {
				return true
			}
		}
		return false
	case g.Fn != nil:
		return safeEval(g.Fn, ctx, evt)
	case g.Name != "":
		name, negate := strings.CutPrefix(g.Name, "!")
		var fn GuardFunc
		if reg != nil {
			fn = reg.Guards[name]
		}
		if fn == nil {
			// Unresolvable reference fails closed, negated or not.
			return false
		}
		ok := safeEval(fn, ctx, evt)
		if negate {
			return !ok
		}
		return ok
	}
	return true
}

func safeEval(fn GuardFunc, ctx Context, evt Event) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return fn(ctx, evt)
}
