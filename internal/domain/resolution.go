// internal/domain/resolution.go
package domain

import (
	"encoding/json"
	"time"
)

// ResultCodeSuccess is the only gateway result code treated as a confirmed payment.
const ResultCodeSuccess = 0

// ResultCodeExpired is recorded when an intent outlives its TTL without a
// definitive gateway answer. It matches the gateway's "no response from user" code.
const ResultCodeExpired = 1037

// ExpiredOutcome is the terminal outcome given to intents nobody answered.
func ExpiredOutcome() Outcome {
	return Outcome{ResultCode: ResultCodeExpired, ResultDesc: "intent expired"}
}

// Outcome is the gateway's verdict on a payment intent.
type Outcome struct {
	ResultCode int
	ResultDesc string
	Receipt    string
}

func (o Outcome) Succeeded() bool { return o.ResultCode == ResultCodeSuccess }

// TerminalStatus maps the outcome onto the intent state machine.
func (o Outcome) TerminalStatus() TxStatus {
	if o.Succeeded() {
		return TxStatusCompleted
	}
	return TxStatusFailed
}

type ResolutionKind string

const (
	ResolutionApplied   ResolutionKind = "applied"
	ResolutionDuplicate ResolutionKind = "duplicate"
	ResolutionUnknown   ResolutionKind = "unknown"
	ResolutionInvalid   ResolutionKind = "invalid"
)

// Resolution reports what a callback did to the ledger. Duplicate and unknown
// callbacks are not errors for the gateway; Err exposes them for callers that care.
type Resolution struct {
	Kind          ResolutionKind
	CorrelationID string
	Transaction   *Transaction
	BalanceAfter  *Money
}

func (r *Resolution) Err() error {
	switch r.Kind {
	case ResolutionDuplicate:
		return ErrDuplicateCallback
	case ResolutionUnknown:
		return ErrUnknownCallback
	case ResolutionInvalid:
		return ErrInvalidCallback
	}
	return nil
}

// CallbackRecord is the audit row kept for every callback received.
type CallbackRecord struct {
	ID            int64           `json:"id" db:"id"`
	CorrelationID string          `json:"correlation_id" db:"correlation_id"`
	ResultCode    *int            `json:"result_code,omitempty" db:"result_code"`
	Resolution    ResolutionKind  `json:"resolution" db:"resolution"`
	Payload       json.RawMessage `json:"payload,omitempty" db:"payload"`
	ReceivedAt    time.Time       `json:"received_at" db:"received_at"`
}
