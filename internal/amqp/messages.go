package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Action names what happened to a transaction.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionPaid    Action = "paid"
	ActionDeleted Action = "deleted"
)

// TransactionEvent announces a change to one transaction. It carries the
// period of the transaction's due date so consumers can refresh only the
// affected reports without fetching the row.
type TransactionEvent struct {
	MessageID string    `json:"message_id"`
	ID        int64     `json:"id"`
	Action    Action    `json:"action"`
	Year      int       `json:"year"`
	Month     int       `json:"month"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTransactionEvent stamps a fresh message ID and the current time.
func NewTransactionEvent(id int64, action Action, due time.Time) *TransactionEvent {
	return &TransactionEvent{
		MessageID: uuid.NewString(),
		ID:        id,
		Action:    action,
		Year:      due.Year(),
		Month:     int(due.Month()),
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes
func (m *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionEventFromJSON decodes and sanity checks an event.
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var msg TransactionEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Year < 1 || msg.Month < 1 || msg.Month > 12 {
		return nil, fmt.Errorf("event %d has invalid period %d/%d", msg.ID, msg.Month, msg.Year)
	}
	return &msg, nil
}
