package hsmx

import (
	"context"
	"strings"
	"testing"
)

func TestBuilderErrors(t *testing.T) {
	tests := []struct {
		name  string
		build func() *Builder
		want  string
	}{
		{
			name:  "missing id",
			build: func() *Builder { b := NewBuilder(""); b.State("a"); return b.Initial("a") },
			want:  "id is required",
		},
		{
			name:  "missing initial",
			build: func() *Builder { b := NewBuilder("m"); b.State("a"); return b },
			want:  "initial state is required",
		},
		{
			name:  "no states",
			build: func() *Builder { return NewBuilder("m").Initial("a") },
			want:  "at least one state",
		},
		{
			name: "initial does not exist",
			build: func() *Builder {
				b := NewBuilder("m")
				b.State("a")
				return b.Initial("ghost")
			},
			want: `initial state "ghost" does not exist`,
		},
		{
			name: "missing initial child",
			build: func() *Builder {
				b := NewBuilder("m")
				b.State("a").Initial("ghost")
				b.State("a.b")
				return b.Initial("a")
			},
			want: `declares missing initial child "ghost"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build().Build()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want substring %q", err, tt.want)
			}
		})
	}
}

func TestBuilderAutoCreatesAncestors(t *testing.T) {
	b := NewBuilder("m")
	b.State("a.b.c") // a and a.b never mentioned directly
	b.State("a").Initial("b")
	b.State("a.b").Initial("c")
	b.Initial("a")
	m, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := m.tree.resolve("a.b"); !ok {
		t.Error("intermediate state a.b not created")
	}
	in, err := m.Start(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer in.Stop()
	if got := in.State(); got != "a.b.c" {
		t.Errorf("state = %q, want a.b.c", got)
	}
}

func TestBuilderGlobalOn(t *testing.T) {
	var caught []string
	b := NewBuilder("m")
	b.State("a").On("GO", "b")
	b.State("b")
	b.State("err")
	b.GlobalOn("FATAL", "err")
	b.GlobalOn(Wildcard, "", WithActions(Do(func(_ Context, evt Event) (any, error) {
		caught = append(caught, evt.Name)
		return nil, nil
	})))
	b.Initial("a")
	m, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	in, err := m.Start(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer in.Stop()

	// A state handler wins over the wildcard.
	if _, err := in.Send(context.Background(), "GO", nil); err != nil {
		t.Fatal(err)
	}
	// A global handler fires from any state.
	res, err := in.Send(context.Background(), "FATAL", nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.State != "err" {
		t.Errorf("state = %q, want err", res.State)
	}
	// Everything else lands in the wildcard.
	if _, err := in.Send(context.Background(), "UNKNOWN", nil); err != nil {
		t.Fatal(err)
	}
	if len(caught) != 1 || caught[0] != "UNKNOWN" {
		t.Errorf("wildcard caught %v, want [UNKNOWN]", caught)
	}
}

func TestMachineID(t *testing.T) {
	m := toggleMachine(t)
	if got := m.ID(); got != "toggle" {
		t.Errorf("ID = %q, want toggle", got)
	}
}

// TestFrontEndEquivalence drives the same definition through the config and
// builder front ends and checks they behave identically.
func TestFrontEndEquivalence(t *testing.T) {
	const yamlDef = `
id: door
initial: closed
states:
  closed:
    on:
      OPEN:
        - target: open
          guard: "!locked"
  open:
    on:
      CLOSE:
        - target: closed
`
	reg := &Registry{Guards: map[string]GuardFunc{
		"locked": func(ctx Context, _ Event) bool { b, _ := ctx["locked"].(bool); return b },
	}}

	cfg, err := LoadYAML([]byte(yamlDef))
	if err != nil {
		t.Fatal(err)
	}
	fromConfig, err := Compile(cfg, reg)
	if err != nil {
		t.Fatal(err)
	}

	b := NewBuilder("door").Registry(reg)
	b.State("closed").On("OPEN", "open", WithGuard(When("!locked")))
	b.State("open").On("CLOSE", "closed")
	b.Initial("closed")
	fromBuilder, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}

	script := []string{"OPEN", "CLOSE", "OPEN", "NOPE"}
	for _, m := range []*Machine{fromConfig, fromBuilder} {
		in, err := m.Start(nil)
		if err != nil {
			t.Fatal(err)
		}
		var states []string
		for _, ev := range script {
			res, err := in.Send(context.Background(), ev, nil)
			if err != nil {
				t.Fatal(err)
			}
			states = append(states, res.State)
		}
		in.Stop()
		want := []string{"open", "closed", "open", "open"}
		for i := range want {
			if states[i] != want[i] {
				t.Errorf("machine %q step %d: state = %q, want %q", m.ID(), i, states[i], want[i])
			}
		}
	}
}
