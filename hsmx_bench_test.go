package hsmx

import (
	"context"
	"testing"
)

// BenchmarkExternalTransition measures a full exit/entry cycle through Send,
// including queue round-trip and history recording.
func BenchmarkExternalTransition(b *testing.B) {
	bd := NewBuilder("bench")
	bd.State("a").On("GO", "b")
	bd.State("b").On("GO", "a")
	bd.Initial("a")
	m, err := bd.Build()
	if err != nil {
		b.Fatal(err)
	}
	in, err := m.Start(nil)
	if err != nil {
		b.Fatal(err)
	}
	defer in.Stop()

	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := in.Send(ctx, "GO", nil); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkInternalTransition measures the context-update-only fast path.
func BenchmarkInternalTransition(b *testing.B) {
	bd := NewBuilder("bench")
	bd.State("s").On("TICK", "", WithActions(
		Assign(func(ctx Context, _ Event) (Context, error) {
			n, _ := ctx["n"].(int)
			return Context{"n": n + 1}, nil
		}),
	))
	bd.Initial("s")
	m, err := bd.Build()
	if err != nil {
		b.Fatal(err)
	}
	in, err := m.Start(nil)
	if err != nil {
		b.Fatal(err)
	}
	defer in.Stop()

	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := in.Send(ctx, "TICK", nil); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkBubbledEvent measures dispatch from a leaf whose handler lives
// three levels up.
func BenchmarkBubbledEvent(b *testing.B) {
	bd := NewBuilder("bench")
	bd.State("l1").Initial("l2").On("PING", "")
	bd.State("l1.l2").Initial("l3")
	bd.State("l1.l2.l3").Initial("l4")
	bd.State("l1.l2.l3.l4")
	bd.Initial("l1")
	m, err := bd.Build()
	if err != nil {
		b.Fatal(err)
	}
	in, err := m.Start(nil)
	if err != nil {
		b.Fatal(err)
	}
	defer in.Stop()

	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := in.Send(ctx, "PING", nil); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkUnmatchedEvent measures the no-op path: full bubble, no handler.
func BenchmarkUnmatchedEvent(b *testing.B) {
	m := mustBenchMachine(b)
	in, err := m.Start(nil)
	if err != nil {
		b.Fatal(err)
	}
	defer in.Stop()

	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := in.Send(ctx, "NOPE", nil); err != nil {
			b.Fatal(err)
		}
	}
}

func mustBenchMachine(b *testing.B) *Machine {
	b.Helper()
	bd := NewBuilder("bench")
	bd.State("a").On("GO", "b")
	bd.State("b")
	bd.Initial("a")
	m, err := bd.Build()
	if err != nil {
		b.Fatal(err)
	}
	return m
}
