// Package events publishes ledger changes for downstream consumers such as the
// statement and notification services. Publishing happens after the store
// commit and never affects the ledger outcome.
package events

import (
	"context"
	"encoding/json"
	"time"

	"scan2pay-service/internal/domain"
)

type EventType string

const (
	PaymentInitiated    EventType = "payment.initiated"
	PaymentCompleted    EventType = "payment.completed"
	PaymentFailed       EventType = "payment.failed"
	WithdrawalCompleted EventType = "withdrawal.completed"
)

type LedgerEvent struct {
	EventType     EventType     `json:"event_type"`
	VendorID      int64         `json:"vendor_id"`
	Reference     string        `json:"reference"`
	CorrelationID string        `json:"correlation_id,omitempty"`
	Direction     string        `json:"direction"`
	Status        string        `json:"status"`
	Amount        domain.Money  `json:"amount"`
	Currency      string        `json:"currency"`
	Counterparty  string        `json:"counterparty,omitempty"`
	BalanceAfter  *domain.Money `json:"balance_after,omitempty"`
	ResultCode    *int          `json:"result_code,omitempty"`
	ResultDesc    string        `json:"result_desc,omitempty"`
	Receipt       string        `json:"receipt,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
}

// NewLedgerEvent builds the event for a transaction row.
func NewLedgerEvent(eventType EventType, t *domain.Transaction, balanceAfter *domain.Money) *LedgerEvent {
	e := &LedgerEvent{
		EventType:     eventType,
		VendorID:      t.VendorID,
		Reference:     t.Reference,
		CorrelationID: t.Correlation(),
		Direction:     string(t.Direction),
		Status:        string(t.Status),
		Amount:        t.Amount,
		Currency:      domain.Currency,
		Counterparty:  t.Counterparty,
		BalanceAfter:  balanceAfter,
		ResultCode:    t.ResultCode,
	}
	if t.ResultDesc != nil {
		e.ResultDesc = *t.ResultDesc
	}
	if t.Receipt != nil {
		e.Receipt = *t.Receipt
	}
	return e
}

// ResolutionEventType picks the event for a resolved intent.
func ResolutionEventType(t *domain.Transaction) EventType {
	if t.Status == domain.TxStatusCompleted {
		return PaymentCompleted
	}
	return PaymentFailed
}

func (e *LedgerEvent) encode() ([]byte, error) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	return json.Marshal(e)
}

type Publisher interface {
	Publish(ctx context.Context, event *LedgerEvent) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, *LedgerEvent) error { return nil }
func (NopPublisher) Close() error                                { return nil }
