package hsmx

import (
	"context"
	"errors"
	"testing"

	"github.com/comalice/hsmx/internal/merge"
)

// counterMachine bounces a↔b on STEP, incrementing context.n on every hop.
func counterMachine(t *testing.T) *Machine {
	t.Helper()
	inc := Assign(func(ctx Context, _ Event) (Context, error) {
		n, _ := ctx["n"].(int)
		return Context{"n": n + 1}, nil
	})
	b := NewBuilder("counter")
	b.State("a").On("STEP", "b", WithActions(inc))
	b.State("b").On("STEP", "a", WithActions(inc))
	b.Initial("a")
	m, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func step(t *testing.T, in *Instance, times int) {
	t.Helper()
	for i := 0; i < times; i++ {
		if _, err := in.Send(context.Background(), "STEP", nil); err != nil {
			t.Fatal(err)
		}
	}
}

func TestHistoryBound(t *testing.T) {
	m := counterMachine(t)
	in, err := m.Start(nil, WithHistorySize(3))
	if err != nil {
		t.Fatal(err)
	}
	defer in.Stop()

	h := in.History()
	if h.MaxSize() != 3 {
		t.Fatalf("MaxSize = %d, want 3", h.MaxSize())
	}

	initial := h.Current()
	step(t, in, 5) // 6 entries total, capacity 3

	if h.Size() != 3 {
		t.Fatalf("Size = %d, want 3", h.Size())
	}
	entries := h.Entries()
	// The retained window is the most recent three: n=3, n=4, n=5.
	for i, want := range []int{3, 4, 5} {
		if got := entries[i].Context["n"]; got != want {
			t.Errorf("entry %d: n = %v, want %d", i, got, want)
		}
	}

	// The evicted initial entry is gone from every lookup path.
	if _, ok := h.GetByID(initial.ID); ok {
		t.Error("evicted entry still found by id")
	}
	if h.CanRollback(initial) {
		t.Error("CanRollback reports true for evicted entry")
	}
	if _, err := in.Rollback(initial); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("rollback to evicted entry err = %v, want ErrEntryNotFound", err)
	}
}

func TestHistoryQueries(t *testing.T) {
	m := counterMachine(t)
	in, err := m.Start(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer in.Stop()
	step(t, in, 3) // entries: start, n=1, n=2, n=3

	h := in.History()
	if h.Size() != 4 {
		t.Fatalf("Size = %d, want 4", h.Size())
	}

	cur := h.Current()
	if cur.Context["n"] != 3 {
		t.Errorf("Current n = %v, want 3", cur.Context["n"])
	}

	e1, ok := h.GetByIndex(1)
	if !ok || e1.Context["n"] != 1 {
		t.Errorf("GetByIndex(1) = %+v, %v", e1, ok)
	}
	if _, ok := h.GetByIndex(4); ok {
		t.Error("GetByIndex out of range returned ok")
	}

	byID, ok := h.GetByID(e1.ID)
	if !ok || byID != e1 {
		t.Error("GetByID did not return the same entry")
	}

	r := h.Range(1, 3)
	if len(r) != 2 || r[0].Context["n"] != 1 || r[1].Context["n"] != 2 {
		t.Errorf("Range(1,3) = %v entries", len(r))
	}
	if got := h.Range(-5, 100); len(got) != 4 {
		t.Errorf("clamped Range = %d entries, want 4", len(got))
	}
	if got := h.Range(3, 1); got != nil {
		t.Errorf("inverted Range = %v, want nil", got)
	}

	found, ok := h.Find(func(e *HistoryEntry) bool { return e.ToState == "b" })
	if !ok || found.Context["n"] != 1 {
		t.Errorf("Find first ToState=b: %+v, %v", found, ok)
	}
	toA := h.Filter(func(e *HistoryEntry) bool { return e.ToState == "a" })
	if len(toA) != 2 { // start entry and n=2
		t.Errorf("Filter ToState=a = %d entries, want 2", len(toA))
	}

	steps, ok := h.StepsBack(e1)
	if !ok || steps != 2 {
		t.Errorf("StepsBack = %d, %v, want 2", steps, ok)
	}
	if _, ok := h.StepsBack(nil); ok {
		t.Error("StepsBack(nil) returned ok")
	}
}

func TestRollback(t *testing.T) {
	m := counterMachine(t)
	in, err := m.Start(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer in.Stop()
	step(t, in, 3) // a → b(1) → a(2) → b(3)

	var changes []Change
	in.Subscribe(func(c Change) { changes = append(changes, c) })

	target, ok := in.History().GetByIndex(1) // state b, n=1
	if !ok {
		t.Fatal("missing entry")
	}
	steps, err := in.Rollback(target)
	if err != nil {
		t.Fatal(err)
	}
	if steps != 2 {
		t.Errorf("steps = %d, want 2", steps)
	}

	// Restoration, not replay: state and context match the snapshot exactly.
	if got := in.State(); got != target.ToState {
		t.Errorf("state = %q, want %q", got, target.ToState)
	}
	if got := in.Context(); !merge.Equal(got, target.Context) {
		t.Errorf("context = %v, want %v", got, target.Context)
	}

	// Rollback appends a tagged entry rather than rewinding the log.
	cur := in.History().Current()
	if !cur.Rollback || cur.TargetEntryID != target.ID || cur.Trigger != TriggerRollback {
		t.Errorf("rollback entry = %+v", cur)
	}
	if cur.FromState != "b" || cur.ToState != "b" {
		t.Errorf("rollback entry hop = %q→%q", cur.FromState, cur.ToState)
	}
	if in.History().Size() != 5 {
		t.Errorf("history size = %d, want 5", in.History().Size())
	}

	if len(changes) != 1 || !changes[0].Rollback {
		t.Fatalf("changes = %+v, want one rollback change", changes)
	}
	if changes[0].Next.State != "b" || changes[0].Next.Context["n"] != 1 {
		t.Errorf("rollback change next = %+v", changes[0].Next)
	}

	// The machine keeps running from the restored snapshot.
	res, err := in.Send(context.Background(), "STEP", nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.State != "a" || res.Context["n"] != 2 {
		t.Errorf("post-rollback step = %+v", res)
	}
}

func TestRollbackUnknownEntry(t *testing.T) {
	m := counterMachine(t)
	in, err := m.Start(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer in.Stop()

	if _, err := in.Rollback(nil); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("Rollback(nil) err = %v, want ErrEntryNotFound", err)
	}

	other, err := m.Start(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer other.Stop()
	foreign := other.History().Current()
	if _, err := in.Rollback(foreign); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("rollback to foreign entry err = %v, want ErrEntryNotFound", err)
	}
}

func TestHistoryEntrySnapshotIsolation(t *testing.T) {
	m := counterMachine(t)
	in, err := m.Start(Context{"nested": map[string]any{"k": "v"}})
	if err != nil {
		t.Fatal(err)
	}
	defer in.Stop()

	e := in.History().Current()
	e.Context["nested"].(map[string]any)["k"] = "mutated"
	if got := in.Context()["nested"].(map[string]any)["k"]; got != "v" {
		t.Errorf("history snapshot shares memory with live context: %v", got)
	}
}
