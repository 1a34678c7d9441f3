package hsmx

import "testing"

func TestEvalGuard(t *testing.T) {
	reg := &Registry{Guards: map[string]GuardFunc{
		"yes":    func(ctx Context, evt Event) bool { return true },
		"no":     func(ctx Context, evt Event) bool { return false },
		"isHigh": func(ctx Context, evt Event) bool { n, _ := ctx["n"].(int); return n > 10 },
		"boom":   func(ctx Context, evt Event) bool { panic("broken guard") },
	}}
	ctx := Context{"n": 42}

	tests := []struct {
		name  string
		guard Guard
		want  bool
	}{
		{"zero guard passes", Guard{}, true},
		{"named true", When("yes"), true},
		{"named false", When("no"), false},
		{"negated", When("!no"), true},
		{"context predicate", When("isHigh"), true},
		{"inline", GuardFn(func(ctx Context, evt Event) bool { return true }), true},
		{"all pass", AllOf(When("yes"), When("isHigh")), true},
		{"all short-circuit", AllOf(When("no"), When("boom")), false},
		{"any pass", AnyOf(When("no"), When("yes")), true},
		{"any short-circuit", AnyOf(When("yes"), When("boom")), true},
		{"any all fail", AnyOf(When("no"), When("no")), false},
		{"not", NotOf(When("no")), true},
		{"nested composite", AllOf(AnyOf(When("no"), When("yes")), NotOf(When("no"))), true},

		// Fail-closed policy.
		{"unregistered fails closed", When("missing"), false},
		{"negated unregistered still fails closed", When("!missing"), false},
		{"panicking guard fails closed", When("boom"), false},
		{"panicking inline fails closed", GuardFn(func(ctx Context, evt Event) bool { panic("x") }), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := evalGuard(&tt.guard, reg, ctx, Event{Name: "EV"}); got != tt.want {
				t.Errorf("evalGuard = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvalGuardNil(t *testing.T) {
	if !evalGuard(nil, &Registry{}, nil, Event{}) {
		t.Error("nil guard must pass")
	}
}

func TestEvalGuardNilRegistry(t *testing.T) {
	if evalGuard(&Guard{Name: "anything"}, nil, nil, Event{}) {
		t.Error("named guard with nil registry must fail closed")
	}
}
