// internal/handler/payment_handler.go
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"scan2pay-service/internal/domain"
	"scan2pay-service/internal/usecase"
)

type PaymentHandler struct {
	engine usecase.Engine
	logger *zap.Logger
	now    func() time.Time
}

func NewPaymentHandler(engine usecase.Engine, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		engine: engine,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type createPaymentRequest struct {
	AccountNumber string          `json:"account_number"`
	Amount        json.RawMessage `json:"amount"`
	PhoneNumber   string          `json:"phone_number"`
}

type amountRequest struct {
	Amount json.RawMessage `json:"amount"`
}

func parseAmount(raw json.RawMessage) (domain.Money, error) {
	if len(raw) == 0 {
		return 0, domain.WithMessage(domain.ErrInvalidAmount, "amount is required")
	}
	var m domain.Money
	if err := m.UnmarshalJSON(raw); err != nil {
		return 0, domain.WithMessage(domain.ErrInvalidAmount, err.Error())
	}
	return m, nil
}

// HandleCreatePayment prompts the customer to pay the vendor behind account_number.
func (h *PaymentHandler) HandleCreatePayment(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.AccountNumber == "" || req.PhoneNumber == "" {
		writeError(w, h.logger, domain.WithMessage(domain.ErrInvalidRequest, "account_number, amount and phone_number are required"))
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	intent, err := h.engine.CreateIntent(r.Context(), usecase.CreateIntentInput{
		BusinessNumber: req.AccountNumber,
		Amount:         amount,
		PhoneNumber:    req.PhoneNumber,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusAccepted, "payment prompt sent, awaiting confirmation", map[string]any{
		"reference":           intent.Reference,
		"checkout_request_id": intent.Correlation(),
		"amount":              intent.Amount,
		"status":              intent.Status,
		"expires_at":          intent.ExpiresAt,
	})
}

// HandleWithdraw debits the authenticated vendor.
func (h *PaymentHandler) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	vendorID, ok := VendorIDFromContext(r.Context())
	if !ok {
		writeErrorMessage(w, http.StatusUnauthorized, domain.KindInvalidCredentials, "unauthorized")
		return
	}

	var req amountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	txn, err := h.engine.Withdraw(r.Context(), vendorID, amount)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, "withdrawal successful", txn)
}

// HandleLedger returns the vendor's balance and full transaction history.
func (h *PaymentHandler) HandleLedger(w http.ResponseWriter, r *http.Request) {
	vendorID, ok := VendorIDFromContext(r.Context())
	if !ok {
		writeErrorMessage(w, http.StatusUnauthorized, domain.KindInvalidCredentials, "unauthorized")
		return
	}

	snap, err := h.engine.Ledger(r.Context(), vendorID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, "", snap)
}

// HandleStatement accepts either ?duration=3 months|6 months|1 year or an
// explicit ?from=&to= range in RFC3339.
func (h *PaymentHandler) HandleStatement(w http.ResponseWriter, r *http.Request) {
	vendorID, ok := VendorIDFromContext(r.Context())
	if !ok {
		writeErrorMessage(w, http.StatusUnauthorized, domain.KindInvalidCredentials, "unauthorized")
		return
	}

	from, to, err := h.statementRange(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	st, err := h.engine.Statement(r.Context(), vendorID, from, to)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, "", st)
}

func (h *PaymentHandler) statementRange(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()

	if d := q.Get("duration"); d != "" {
		window, err := domain.StatementWindow(d)
		if err != nil {
			return time.Time{}, time.Time{}, domain.WithMessage(domain.ErrInvalidRequest, err.Error())
		}
		to := h.now()
		return to.Add(-window), to, nil
	}

	from, err := time.Parse(time.RFC3339, q.Get("from"))
	if err != nil {
		return time.Time{}, time.Time{}, domain.WithMessage(domain.ErrInvalidRequest, "from must be an RFC3339 timestamp")
	}
	to, err := time.Parse(time.RFC3339, q.Get("to"))
	if err != nil {
		return time.Time{}, time.Time{}, domain.WithMessage(domain.ErrInvalidRequest, "to must be an RFC3339 timestamp")
	}
	return from, to, nil
}
