package amqp

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"budgetbuddy/internal/core"
)

// TransactionEvent announces a change confirmed by the remote store. Delete
// events carry the removed record.
type TransactionEvent struct {
	Op        string          `json:"op"`
	ID        string          `json:"id"`
	Version   uint64          `json:"version"`
	Type      string          `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	Category  string          `json:"category"`
	Note      string          `json:"note,omitempty"`
	Date      string          `json:"date"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewTransactionEvent creates an event for tx stamped with the current time.
func NewTransactionEvent(op string, version uint64, tx core.Transaction) *TransactionEvent {
	return &TransactionEvent{
		Op:        op,
		ID:        tx.ID.String(),
		Version:   version,
		Type:      string(tx.Type),
		Amount:    tx.Amount.Decimal(),
		Category:  tx.Category,
		Note:      tx.Note,
		Date:      tx.Date.String(),
		Timestamp: time.Now(),
	}
}

// Transaction rebuilds the record carried by the event.
func (e *TransactionEvent) Transaction() (core.Transaction, error) {
	date, err := core.ParseDate(e.Date)
	if err != nil {
		return core.Transaction{}, err
	}
	amount, err := core.MoneyFromDecimal(e.Amount)
	if err != nil {
		return core.Transaction{}, err
	}
	return core.Transaction{
		ID:       core.ID(e.ID),
		Amount:   amount,
		Type:     core.TransactionType(e.Type),
		Category: e.Category,
		Note:     e.Note,
		Date:     date,
	}, nil
}

// ToJSON converts the event to JSON bytes
func (e *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// TransactionEventFromJSON creates an event from JSON bytes
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var evt TransactionEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, err
	}
	return &evt, nil
}
