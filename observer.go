package hsmx

import (
	"context"
	"log/slog"
)

// LogChanges returns a Listener that emits every applied change to logger
// as a structured record. Subscribe it directly or pass WithLogger at
// Start.
func LogChanges(logger *slog.Logger) Listener {
	return func(c Change) {
		logger.LogAttrs(context.Background(), slog.LevelInfo, "transition",
			slog.String("event", c.Event.Name),
			slog.String("from", c.Previous.State),
			slog.String("to", c.Next.State),
			slog.Bool("rollback", c.Rollback),
		)
	}
}
