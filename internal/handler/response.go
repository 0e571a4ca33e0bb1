// internal/handler/response.go
package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"scan2pay-service/internal/domain"
)

// APIResponse is the envelope every vendor-facing endpoint answers with.
type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIResponse{
		Status:  "success",
		Message: message,
		Data:    data,
	})
}

func writeErrorMessage(w http.ResponseWriter, status int, kind domain.ErrorKind, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIResponse{
		Status:  "error",
		Message: msg,
		Kind:    string(kind),
	})
}

// writeError maps err onto an HTTP status. Only the kind and its public
// message reach the client; causes are logged.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	kind := domain.KindOf(err)
	status := statusFor(kind)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.String("kind", string(kind)), zap.Error(err))
	}
	writeErrorMessage(w, status, kind, domain.MessageOf(err))
}

func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindInvalidAmount, domain.KindInvalidRequest, domain.KindInvalidCallback:
		return http.StatusBadRequest
	case domain.KindInvalidCredentials:
		return http.StatusUnauthorized
	case domain.KindVendorNotFound, domain.KindUnknownCallback:
		return http.StatusNotFound
	case domain.KindVendorExists, domain.KindDuplicateCallback:
		return http.StatusConflict
	case domain.KindInsufficientBalance:
		return http.StatusUnprocessableEntity
	case domain.KindGatewayUnavailable:
		return http.StatusBadGateway
	case domain.KindConcurrentConflict, domain.KindStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

const maxRequestBody = 64 << 10

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := dec.Decode(dst); err != nil {
		return domain.WithMessage(domain.ErrInvalidRequest, "invalid request body")
	}
	return nil
}
