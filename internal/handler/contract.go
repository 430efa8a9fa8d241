package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aryan0dhankhar/rentledger/internal/domain"
	"github.com/aryan0dhankhar/rentledger/internal/service"
)

// ContractHandler serves /api/contracts
type ContractHandler struct {
	contracts *service.ContractService
	logger    *slog.Logger
}

// NewContractHandler creates a new contract handler
func NewContractHandler(contracts *service.ContractService, logger *slog.Logger) *ContractHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContractHandler{contracts: contracts, logger: logger}
}

// ContractRequest is the body of POST /api/contracts. Dates are YYYY-MM-DD.
type ContractRequest struct {
	PropertyID    string  `json:"propertyId"`
	TenantID      string  `json:"tenantId"`
	StartDate     string  `json:"startDate"`
	EndDate       string  `json:"endDate"`
	MonthlyAmount float64 `json:"monthlyAmount"`
	Currency      string  `json:"currency"`
	PayDay        int     `json:"payDay"`
}

func (req ContractRequest) terms() (domain.Terms, error) {
	start, err := parseDate("startDate", req.StartDate)
	if err != nil {
		return domain.Terms{}, err
	}
	end, err := parseDate("endDate", req.EndDate)
	if err != nil {
		return domain.Terms{}, err
	}
	return domain.Terms{
		StartDate:     start,
		EndDate:       end,
		MonthlyAmount: req.MonthlyAmount,
		Currency:      req.Currency,
		PayDay:        req.PayDay,
	}, nil
}

func parseDate(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: %s is required", domain.ErrValidation, field)
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be formatted as YYYY-MM-DD", domain.ErrValidation, field)
	}
	return t, nil
}

// DocumentRequest is the body of POST /api/contracts/{id}/documents
type DocumentRequest struct {
	Name string `json:"name"`
	Ref  string `json:"ref"`
}

func (h *ContractHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req ContractRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	terms, err := req.terms()
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	c, err := withRetry(r.Context(), h.logger, "contract.create", func(ctx context.Context) (*domain.Contract, error) {
		return h.contracts.Create(ctx, p, req.PropertyID, req.TenantID, terms)
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// List handles GET /api/contracts?property_id=&tenant_id=
func (h *ContractHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	contracts, err := h.contracts.List(r.Context(), p, service.ContractFilter{
		PropertyID: q.Get("property_id"),
		TenantID:   q.Get("tenant_id"),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, contracts)
}

func (h *ContractHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	c, err := h.contracts.Get(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Terminate handles POST /api/contracts/{id}/terminate
func (h *ContractHandler) Terminate(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	c, err := withRetry(r.Context(), h.logger, "contract.terminate", func(ctx context.Context) (*domain.Contract, error) {
		return h.contracts.Terminate(ctx, p, id)
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// AddDocument handles POST /api/contracts/{id}/documents
func (h *ContractHandler) AddDocument(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req DocumentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	c, err := h.contracts.AddDocument(r.Context(), p, chi.URLParam(r, "id"), domain.Document{Name: req.Name, Ref: req.Ref})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}
