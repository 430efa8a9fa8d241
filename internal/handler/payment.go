package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aryan0dhankhar/rentledger/internal/domain"
	"github.com/aryan0dhankhar/rentledger/internal/service"
)

// PaymentHandler serves /api/payments
type PaymentHandler struct {
	payments *service.PaymentService
	logger   *slog.Logger
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(payments *service.PaymentService, logger *slog.Logger) *PaymentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PaymentHandler{payments: payments, logger: logger}
}

// PaymentRequest is the body of POST /api/payments
type PaymentRequest struct {
	ContractID string  `json:"contractId"`
	Period     string  `json:"period"`
	Amount     float64 `json:"amount"`
	Status     string  `json:"status,omitempty"`
	Notes      string  `json:"notes,omitempty"`
}

// PaymentUpdateRequest is the body of PUT /api/payments/{id}
type PaymentUpdateRequest struct {
	Amount *float64 `json:"amount,omitempty"`
	Notes  *string  `json:"notes,omitempty"`
	Status *string  `json:"status,omitempty"`
}

// ProofRequest is the body of POST /api/payments/{id}/proof
type ProofRequest struct {
	ProofRef string `json:"proofRef"`
}

func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req PaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	payment, err := withRetry(r.Context(), h.logger, "payment.create", func(ctx context.Context) (*domain.Payment, error) {
		return h.payments.Create(ctx, p, req.ContractID, service.PaymentInput{
			Period: req.Period,
			Amount: req.Amount,
			Status: domain.PaymentStatus(req.Status),
			Notes:  req.Notes,
		})
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, payment)
}

// List handles GET /api/payments?contract_id=
func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	payments, err := h.payments.List(r.Context(), p, r.URL.Query().Get("contract_id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, payments)
}

func (h *PaymentHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	payment, err := h.payments.Get(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, payment)
}

// UploadProof handles POST /api/payments/{id}/proof
func (h *PaymentHandler) UploadProof(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req ProofRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	id := chi.URLParam(r, "id")
	payment, err := withRetry(r.Context(), h.logger, "payment.proof", func(ctx context.Context) (*domain.Payment, error) {
		return h.payments.UploadProof(ctx, p, id, req.ProofRef)
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, payment)
}

// Update handles PUT /api/payments/{id}
func (h *PaymentHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req PaymentUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	u := domain.PaymentUpdate{Amount: req.Amount, Notes: req.Notes}
	if req.Status != nil {
		status := domain.PaymentStatus(*req.Status)
		u.Status = &status
	}

	id := chi.URLParam(r, "id")
	payment, err := withRetry(r.Context(), h.logger, "payment.update", func(ctx context.Context) (*domain.Payment, error) {
		return h.payments.Update(ctx, p, id, u)
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, payment)
}
