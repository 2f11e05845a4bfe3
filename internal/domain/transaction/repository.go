package transaction

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventRepository defines the interface for the transition journal
type EventRepository interface {
	// AddEvent appends a transition event
	AddEvent(ctx context.Context, event *Event) error

	// GetEvents retrieves the events of a transaction, oldest first
	GetEvents(ctx context.Context, transactionID string) ([]*Event, error)
}

// Event is a journal record of one status transition
type Event struct {
	ID            uuid.UUID
	TransactionID string
	FromStatus    Status
	ToStatus      Status
	Source        string
	Payload       map[string]any
	CreatedAt     time.Time
}

// NewEvent creates a journal event from a transition
func NewEvent(t Transition) *Event {
	return &Event{
		ID:            uuid.New(),
		TransactionID: t.TransactionID,
		FromStatus:    t.From,
		ToStatus:      t.To,
		Source:        t.Source,
		Payload:       t.Payload,
		CreatedAt:     t.At,
	}
}
