package history

import (
	"context"
	"time"
)

// EventType defines the kind of tunnel transition.
type EventType string

const (
	EventUp   EventType = "up"
	EventDown EventType = "down"
)

// Status values recorded with every event.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Event is one attempted activation or deactivation.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	Mock       bool      `json:"mock"`
	Error      string    `json:"error,omitempty"`
}

// Sink is a destination for history events.
type Sink interface {
	Send(ctx context.Context, e Event) error
}

// Nullable maps an empty error text to SQL NULL.
func Nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
