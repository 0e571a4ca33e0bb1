package handler

import (
	"net/http"

	"go.uber.org/zap"

	"scan2pay-service/internal/domain"
	"scan2pay-service/internal/usecase"
)

type VendorHandler struct {
	vendorUC *usecase.VendorUsecase
	logger   *zap.Logger
}

func NewVendorHandler(vendorUC *usecase.VendorUsecase, logger *zap.Logger) *VendorHandler {
	return &VendorHandler{vendorUC: vendorUC, logger: logger}
}

func (h *VendorHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	vendor, err := h.vendorUC.Register(r.Context(), &req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, "registration successful", vendor)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *VendorHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.vendorUC.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, "login successful", res)
}

func (h *VendorHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	vendorID, ok := VendorIDFromContext(r.Context())
	if !ok {
		writeErrorMessage(w, http.StatusUnauthorized, domain.KindInvalidCredentials, "unauthorized")
		return
	}

	vendor, err := h.vendorUC.Profile(r.Context(), vendorID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, "", vendor)
}
