package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aryan0dhankhar/rentledger/internal/domain"
	"github.com/aryan0dhankhar/rentledger/internal/service"
)

// TicketHandler serves /api/tickets
type TicketHandler struct {
	tickets *service.TicketService
	logger  *slog.Logger
}

// NewTicketHandler creates a new ticket handler
func NewTicketHandler(tickets *service.TicketService, logger *slog.Logger) *TicketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TicketHandler{tickets: tickets, logger: logger}
}

// TicketRequest is the body of POST /api/tickets
type TicketRequest struct {
	PropertyID  string `json:"propertyId"`
	TenantID    string `json:"tenantId,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Urgency     string `json:"urgency"`
}

// AssignmentRequest is the body of PUT /api/tickets/{id}/assignment
type AssignmentRequest struct {
	Contractor   string   `json:"contractor"`
	CostEstimate *float64 `json:"costEstimate,omitempty"`
}

func (h *TicketHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req TicketRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	ticket, err := h.tickets.Create(r.Context(), p, req.PropertyID, req.TenantID, domain.TicketDetails{
		Title:       req.Title,
		Description: req.Description,
		Urgency:     domain.Urgency(req.Urgency),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, ticket)
}

// List handles GET /api/tickets?property_id=
func (h *TicketHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	tickets, err := h.tickets.List(r.Context(), p, r.URL.Query().Get("property_id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tickets)
}

func (h *TicketHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	ticket, err := h.tickets.Get(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

// UpdateStatus handles PUT /api/tickets/{id}
func (h *TicketHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req StatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	id := chi.URLParam(r, "id")
	ticket, err := withRetry(r.Context(), h.logger, "ticket.status", func(ctx context.Context) (*domain.Ticket, error) {
		return h.tickets.UpdateStatus(ctx, p, id, domain.TicketStatus(req.Status))
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

// Assign handles PUT /api/tickets/{id}/assignment
func (h *TicketHandler) Assign(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req AssignmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	ticket, err := h.tickets.Assign(r.Context(), p, chi.URLParam(r, "id"), domain.TicketAssignment{
		Contractor:   req.Contractor,
		CostEstimate: req.CostEstimate,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}
