// internal/domain/ledger.go
package domain

import (
	"fmt"
	"strings"
	"time"
)

// LedgerSnapshot is a balance and the vendor's transactions read at the same instant.
type LedgerSnapshot struct {
	VendorID     int64         `json:"vendor_id"`
	Balance      Money         `json:"balance"`
	Transactions []Transaction `json:"transactions"`
}

// Statement is the read-only range view consumed by the statement service.
type Statement struct {
	VendorID     int64         `json:"vendor_id"`
	From         time.Time     `json:"from"`
	To           time.Time     `json:"to"`
	TotalIn      Money         `json:"total_in"`
	TotalOut     Money         `json:"total_out"`
	Transactions []Transaction `json:"transactions"`
}

// Summarize fills the completed in/out totals from the statement rows.
func (s *Statement) Summarize() {
	s.TotalIn, s.TotalOut = 0, 0
	for i := range s.Transactions {
		t := &s.Transactions[i]
		if t.Status != TxStatusCompleted {
			continue
		}
		if t.Direction == DirectionIn {
			s.TotalIn += t.Amount
		} else {
			s.TotalOut += t.Amount
		}
	}
}

// StatementWindow maps the export durations offered to vendors onto a lookback.
func StatementWindow(duration string) (time.Duration, error) {
	const day = 24 * time.Hour
	switch strings.ToLower(strings.TrimSpace(duration)) {
	case "3 months", "3m":
		return 90 * day, nil
	case "6 months", "6m":
		return 180 * day, nil
	case "1 year", "12 months", "1y":
		return 365 * day, nil
	}
	return 0, fmt.Errorf("invalid duration %q", duration)
}
