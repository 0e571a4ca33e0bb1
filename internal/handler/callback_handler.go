// internal/handler/callback_handler.go
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"scan2pay-service/internal/domain"
	"scan2pay-service/internal/provider/mpesa"
	"scan2pay-service/internal/usecase"
)

const maxCallbackBody = 1 << 20

type CallbackHandler struct {
	callbackUC *usecase.CallbackUsecase
	logger     *zap.Logger
}

func NewCallbackHandler(callbackUC *usecase.CallbackUsecase, logger *zap.Logger) *CallbackHandler {
	return &CallbackHandler{
		callbackUC: callbackUC,
		logger:     logger,
	}
}

// HandleMpesaSTKCallback applies the callback before acknowledging it. A 503
// asks the gateway to redeliver later.
func (h *CallbackHandler) HandleMpesaSTKCallback(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("received M-Pesa STK callback",
		zap.String("remote_addr", r.RemoteAddr))

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
	if err != nil {
		h.logger.Error("failed to read callback payload", zap.Error(err))
		h.sendCallbackResponse(w, http.StatusBadRequest, 1, "Failed to read payload")
		return
	}

	res, err := h.callbackUC.ProcessSTKCallback(r.Context(), payload)
	switch {
	case err == nil:
	case errors.Is(err, mpesa.ErrUndecodable):
		h.sendCallbackResponse(w, http.StatusBadRequest, 1, "Callback body is not valid JSON")
		return
	case errors.Is(err, domain.ErrInvalidCallback):
		h.sendCallbackResponse(w, http.StatusOK, 1, domain.MessageOf(err))
		return
	case errors.Is(err, domain.ErrStorageUnavailable):
		h.logger.Error("callback not applied, asking gateway to retry", zap.Error(err))
		h.sendCallbackResponse(w, http.StatusServiceUnavailable, 1, "Temporarily unavailable")
		return
	default:
		h.logger.Error("failed to process M-Pesa STK callback", zap.Error(err))
		h.sendCallbackResponse(w, http.StatusInternalServerError, 1, "Internal error")
		return
	}

	switch res.Kind {
	case domain.ResolutionApplied:
		h.sendCallbackResponse(w, http.StatusOK, 0, "Success")
	case domain.ResolutionDuplicate:
		h.sendCallbackResponse(w, http.StatusOK, 0, "Already processed")
	default:
		h.sendCallbackResponse(w, http.StatusOK, 1, domain.MessageOf(res.Err()))
	}
}

// sendCallbackResponse writes the acknowledgement shape the gateway expects.
func (h *CallbackHandler) sendCallbackResponse(w http.ResponseWriter, status, resultCode int, resultDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"ResultCode": resultCode,
		"ResultDesc": resultDesc,
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode callback response", zap.Error(err))
	}
}
