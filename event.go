package hsmx

import (
	"time"

	"github.com/google/uuid"
)

// Event is an occurrence submitted to an Instance. Events are value types;
// once created they are not mutated by the engine.
type Event struct {
	Name      string
	Payload   any
	ID        string
	Timestamp time.Time
}

// NewEvent creates an Event with a fresh ID and timestamp.
func NewEvent(name string, payload any) Event {
	return Event{
		Name:      name,
		Payload:   payload,
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
	}
}
