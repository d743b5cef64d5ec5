package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType names a change to the ledger.
type EventType string

const (
	EventOrderCreated   EventType = "order.created"
	EventOrderCleared   EventType = "order.cleared"
	EventOrderDeleted   EventType = "order.deleted"
	EventFoodUpdated    EventType = "food.updated"
	EventFoodDeleted    EventType = "food.deleted"
	EventExpenseCreated EventType = "expense.created"
	EventExpenseUpdated EventType = "expense.updated"
	EventExpenseDeleted EventType = "expense.deleted"
)

// AffectsReport reports whether the event can change report figures.
func (t EventType) AffectsReport() bool {
	switch t {
	case EventOrderCleared, EventOrderDeleted, EventFoodUpdated, EventFoodDeleted,
		EventExpenseCreated, EventExpenseUpdated, EventExpenseDeleted:
		return true
	default:
		return false
	}
}

// LedgerEvent is a lightweight notification. Consumers re-read the store for
// anything beyond the identifiers carried here.
type LedgerEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	EntityID   int64     `json:"entity_id"`
	StudentID  int64     `json:"student_id,omitempty"`
	Amount     string    `json:"amount,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewLedgerEvent creates an event with a random ID stamped now.
func NewLedgerEvent(typ EventType, entityID int64) *LedgerEvent {
	return &LedgerEvent{
		ID:         uuid.NewString(),
		Type:       typ,
		EntityID:   entityID,
		OccurredAt: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventFromJSON decodes an event and rejects ones without a type.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var msg LedgerEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("ledger event %q has no type", msg.ID)
	}
	return &msg, nil
}
