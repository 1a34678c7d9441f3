// Command demo runs a small traffic-light machine, cycles it through a few
// transitions, and demonstrates history rollback.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/comalice/hsmx"
)

func main() {
	b := hsmx.NewBuilder("traffic-light")
	b.Context(hsmx.Context{"cycles": 0})

	count := hsmx.Assign(func(ctx hsmx.Context, evt hsmx.Event) (hsmx.Context, error) {
		n, _ := ctx["cycles"].(int)
		return hsmx.Context{"cycles": n + 1}, nil
	})

	b.State("traffic").Initial("red")
	b.State("traffic.red").On("TIMER", "green", hsmx.WithActions(count))
	b.State("traffic.green").On("TIMER", "yellow", hsmx.WithActions(count))
	b.State("traffic.yellow").On("TIMER", "red", hsmx.WithActions(count))
	b.GlobalOn("FAULT", "traffic.red")
	b.Initial("traffic")

	m, err := b.Build()
	if err != nil {
		fmt.Fprintln(os.Stderr, "build:", err)
		os.Exit(1)
	}
	if v := m.Validate(); !v.Valid {
		fmt.Fprintln(os.Stderr, "invalid definition:", v.Errors)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	in, err := m.Start(nil, hsmx.WithLogger(logger))
	if err != nil {
		fmt.Fprintln(os.Stderr, "start:", err)
		os.Exit(1)
	}
	defer in.Stop()

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		res, err := in.Send(ctx, "TIMER", nil)
		if err != nil {
			fmt.Fprintln(os.Stderr, "send:", err)
			os.Exit(1)
		}
		fmt.Printf("cycle %d: state=%s context=%v\n", i+1, res.State, res.Context)
	}

	// Roll back to where the machine stood after the first TIMER.
	h := in.History()
	target, ok := h.GetByIndex(1)
	if !ok {
		fmt.Fprintln(os.Stderr, "no history entry to roll back to")
		os.Exit(1)
	}
	steps, err := in.Rollback(target)
	if err != nil {
		fmt.Fprintln(os.Stderr, "rollback:", err)
		os.Exit(1)
	}
	fmt.Printf("rolled back %d steps: state=%s context=%v\n", steps, in.State(), in.Context())
}
