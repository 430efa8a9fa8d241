package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aryan0dhankhar/rentledger/internal/domain"
	"github.com/aryan0dhankhar/rentledger/internal/service"
)

// TenantHandler serves /api/tenants
type TenantHandler struct {
	tenants *service.TenantService
	logger  *slog.Logger
}

func NewTenantHandler(tenants *service.TenantService, logger *slog.Logger) *TenantHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TenantHandler{tenants: tenants, logger: logger}
}

// TenantUpdateRequest is the body of PUT /api/tenants/{id}
type TenantUpdateRequest struct {
	FullName    *string `json:"fullName,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	DocumentRef *string `json:"documentRef,omitempty"`
}

func (h *TenantHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	t, err := h.tenants.Get(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *TenantHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req TenantUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	t, err := h.tenants.Update(r.Context(), p, chi.URLParam(r, "id"), domain.TenantUpdate{
		FullName:    req.FullName,
		Phone:       req.Phone,
		DocumentRef: req.DocumentRef,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}
