package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aryan0dhankhar/rentledger/internal/domain"
	"github.com/aryan0dhankhar/rentledger/internal/service"
)

// PropertyHandler serves /api/properties
type PropertyHandler struct {
	properties *service.PropertyService
	logger     *slog.Logger
}

// NewPropertyHandler creates a new property handler
func NewPropertyHandler(properties *service.PropertyService, logger *slog.Logger) *PropertyHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PropertyHandler{properties: properties, logger: logger}
}

// PropertyRequest is the body of POST /api/properties.
// OwnerID is only honored for superadmins.
type PropertyRequest struct {
	OwnerID     string         `json:"ownerId,omitempty"`
	Address     domain.Address `json:"address"`
	RentalPrice float64        `json:"rentalPrice"`
	Currency    string         `json:"currency"`
}

// PropertyUpdateRequest is the body of PUT /api/properties/{id}
type PropertyUpdateRequest struct {
	Address     *domain.Address `json:"address,omitempty"`
	RentalPrice *float64        `json:"rentalPrice,omitempty"`
	Currency    *string         `json:"currency,omitempty"`
}

// StatusRequest carries a requested state
type StatusRequest struct {
	Status string `json:"status"`
}

func (h *PropertyHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req PropertyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	prop, err := h.properties.Create(r.Context(), p, service.PropertyInput{
		OwnerID:     req.OwnerID,
		Address:     req.Address,
		RentalPrice: req.RentalPrice,
		Currency:    req.Currency,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, prop)
}

func (h *PropertyHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	props, err := h.properties.List(r.Context(), p)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, props)
}

func (h *PropertyHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	prop, err := h.properties.Get(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, prop)
}

func (h *PropertyHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req PropertyUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	id := chi.URLParam(r, "id")
	prop, err := withRetry(r.Context(), h.logger, "property.update", func(ctx context.Context) (*domain.Property, error) {
		return h.properties.Update(ctx, p, id, domain.PropertyUpdate{
			Address:     req.Address,
			RentalPrice: req.RentalPrice,
			Currency:    req.Currency,
		})
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, prop)
}

func (h *PropertyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	_, err := withRetry(r.Context(), h.logger, "property.delete", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, h.properties.Delete(ctx, p, id)
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

// SetStatus handles PUT /api/properties/{id}/status
func (h *PropertyHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
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
	prop, err := withRetry(r.Context(), h.logger, "property.status", func(ctx context.Context) (*domain.Property, error) {
		return h.properties.SetStatus(ctx, p, id, domain.OccupancyStatus(req.Status))
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, prop)
}
