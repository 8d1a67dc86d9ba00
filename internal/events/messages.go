package events

import (
	"encoding/json"
	"time"

	"expensed/internal/core"

	"github.com/google/uuid"
)

const (
	TypeExpenseCreated = "expense.created"
	TypeExpenseUpdated = "expense.updated"
	TypeExpenseDeleted = "expense.deleted"
)

// ExpenseEvent describes one expense mutation. It carries just enough for
// the audit worker to record the change without re-reading the store.
type ExpenseEvent struct {
	Type        string    `json:"type"`
	OwnerID     uuid.UUID `json:"ownerId"`
	ExpenseID   uuid.UUID `json:"expenseId"`
	AmountCents int64     `json:"amountCents"`
	OccurredAt  time.Time `json:"occurredAt"`
}

func NewExpenseEvent(eventType string, e *core.Expense) *ExpenseEvent {
	return &ExpenseEvent{
		Type:        eventType,
		OwnerID:     e.OwnerID,
		ExpenseID:   e.ID,
		AmountCents: e.Amount.Cents,
		OccurredAt:  time.Now().UTC(),
	}
}

func (m *ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ExpenseEventFromJSON(data []byte) (*ExpenseEvent, error) {
	var msg ExpenseEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
