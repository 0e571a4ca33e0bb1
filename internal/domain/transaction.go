// internal/domain/transaction.go
package domain

import "time"

type Direction string
type TxStatus string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

const (
	TxStatusPending   TxStatus = "pending"
	TxStatusCompleted TxStatus = "completed"
	TxStatusFailed    TxStatus = "failed"
)

// IsTerminal reports whether no further transition is legal from s.
func (s TxStatus) IsTerminal() bool {
	return s == TxStatusCompleted || s == TxStatusFailed
}

// WithdrawalCounterparty labels outbound rows created by a vendor withdrawal.
const WithdrawalCounterparty = "Withdrawal"

// Transaction is a ledger row. An inbound row in TxStatusPending is the payment
// intent itself, keyed by the gateway correlation id.
type Transaction struct {
	ID            int64      `json:"id" db:"id"`
	Reference     string     `json:"reference" db:"reference"`
	VendorID      int64      `json:"vendor_id" db:"vendor_id"`
	Direction     Direction  `json:"type" db:"direction"`
	Amount        Money      `json:"amount" db:"amount"`
	Counterparty  string     `json:"customer" db:"counterparty"`
	Status        TxStatus   `json:"status" db:"status"`
	CorrelationID *string    `json:"checkout_request_id,omitempty" db:"correlation_id"`
	ResultCode    *int       `json:"result_code,omitempty" db:"result_code"`
	ResultDesc    *string    `json:"result_desc,omitempty" db:"result_desc"`
	Receipt       *string    `json:"receipt,omitempty" db:"receipt"`
	CreatedAt     time.Time  `json:"date" db:"created_at"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty" db:"expires_at"`
}

// Signed returns the amount's contribution to the balance once completed.
func (t *Transaction) Signed() Money {
	if t.Direction == DirectionOut {
		return -t.Amount
	}
	return t.Amount
}

func (t *Transaction) Correlation() string {
	if t.CorrelationID == nil {
		return ""
	}
	return *t.CorrelationID
}
