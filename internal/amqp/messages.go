package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"bilancio/internal/core"
)

// RecurringFiredMessage announces that a recurring transaction fired on
// RunDate. It carries the whole transaction so consumers never read the
// scheduler store.
type RecurringFiredMessage struct {
	MessageID   string    `json:"messageId"`
	RecurringID string    `json:"recurringId"`
	RunDate     core.Date `json:"runDate"`
	Description string    `json:"description"`
	AmountCents int64     `json:"amountCents"`
	Currency    string    `json:"currency"`
	Type        string    `json:"type"`
	AccountID   string    `json:"accountId"`
	CategoryID  string    `json:"categoryId"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewRecurringFiredMessage(tx core.Transaction) *RecurringFiredMessage {
	return &RecurringFiredMessage{
		MessageID:   uuid.NewString(),
		RecurringID: tx.RecurringID,
		RunDate:     tx.Date,
		Description: tx.Description,
		AmountCents: tx.Amount.Cents,
		Currency:    string(tx.Currency),
		Type:        string(tx.Type),
		AccountID:   tx.AccountID,
		CategoryID:  tx.CategoryID,
		Timestamp:   time.Now().UTC(),
	}
}

// Transaction rebuilds the booking carried by the message.
func (m *RecurringFiredMessage) Transaction() core.Transaction {
	return core.Transaction{
		RecurringID: m.RecurringID,
		Description: m.Description,
		Amount:      core.Money{Cents: m.AmountCents},
		Currency:    core.Currency(m.Currency),
		Type:        core.TransactionType(m.Type),
		Date:        m.RunDate,
		AccountID:   m.AccountID,
		CategoryID:  m.CategoryID,
	}
}

func (m *RecurringFiredMessage) Validate() error {
	if m.MessageID == "" {
		return errors.New("missing message id")
	}
	if m.RecurringID == "" {
		return errors.New("missing recurring id")
	}
	if m.RunDate.IsZero() {
		return errors.New("missing run date")
	}
	return m.Transaction().Validate()
}

func (m *RecurringFiredMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecurringFiredMessageFromJSON decodes and validates a message body.
func RecurringFiredMessageFromJSON(data []byte) (*RecurringFiredMessage, error) {
	var msg RecurringFiredMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}
	return &msg, nil
}
