package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/aryan0dhankhar/rentledger/internal/domain"
	"github.com/aryan0dhankhar/rentledger/internal/observability/metrics"
	"github.com/aryan0dhankhar/rentledger/internal/observability/requestid"
	"github.com/aryan0dhankhar/rentledger/internal/reliability/retry"
	"github.com/aryan0dhankhar/rentledger/internal/security/middleware"
)

// Envelope is the shape of every API response
type Envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

// ErrorBody describes a failed request
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var errMalformed = errors.New("malformed request body")

func writeJSON(w http.ResponseWriter, status int, data any) {
	writeJSONStatus(w, status, true, data)
}

func writeJSONStatus(w http.ResponseWriter, status int, success bool, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{Success: success, Data: data})
}

func writeFailure(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{Error: &ErrorBody{Code: code, Message: message}})
}

// writeError maps an error kind to its HTTP status. Denial reasons and
// storage details stay in the logs.
func writeError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	status, code := classify(err)
	message := err.Error()
	switch status {
	case http.StatusForbidden:
		message = "you do not have access to this resource"
	case http.StatusInternalServerError:
		message = "internal error"
		log.Error("request failed",
			slog.String("request_id", requestid.From(r.Context())),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	writeFailure(w, status, code, message)
}

func classify(err error) (int, string) {
	var (
		transition *domain.InvalidTransitionError
		tooLarge   *http.MaxBytesError
	)
	switch {
	case errors.Is(err, errMalformed), errors.As(err, &tooLarge):
		return http.StatusBadRequest, "bad_request"
	case domain.IsDenied(err):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrValidation):
		return http.StatusUnprocessableEntity, "validation_failed"
	case errors.As(err, &transition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, domain.ErrDuplicatePeriod):
		return http.StatusConflict, "duplicate_period"
	case errors.Is(err, domain.ErrPropertyNoLongerAvailable):
		return http.StatusConflict, "property_no_longer_available"
	case errors.Is(err, domain.ErrPropertyOccupied):
		return http.StatusConflict, "property_occupied"
	case errors.Is(err, domain.ErrPropertyHasHistory):
		return http.StatusConflict, "property_has_history"
	case errors.Is(err, domain.ErrAlreadyTerminated):
		return http.StatusConflict, "already_terminated"
	case errors.Is(err, domain.ErrInvalidPaymentTransition):
		return http.StatusConflict, "invalid_payment_transition"
	case errors.Is(err, domain.ErrContractNotBillable):
		return http.StatusConflict, "contract_not_billable"
	case errors.Is(err, domain.ErrTenantNotOnLease):
		return http.StatusConflict, "tenant_not_on_lease"
	case errors.Is(err, domain.ErrEmailTaken):
		return http.StatusConflict, "email_taken"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "conflict"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// decodeJSON reads a single JSON object, rejecting unknown fields
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errMalformed)
		}
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data", errMalformed)
	}
	return nil
}

// principal returns the authenticated principal or writes a 401
func principal(w http.ResponseWriter, r *http.Request) (domain.Principal, bool) {
	p, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		writeFailure(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return nil, false
	}
	return p, true
}

// withRetry runs a mutation and repeats it once when storage reports a
// transient failure such as a serialization conflict.
func withRetry[T any](ctx context.Context, log *slog.Logger, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	attempts := 0
	out, err := retry.Do(ctx, retry.Once(domain.IsTransient), log, op, func(ctx context.Context) (T, error) {
		attempts++
		return fn(ctx)
	})
	if attempts > 1 {
		result := "recovered"
		if err != nil {
			result = "failed"
		}
		metrics.ObserveStorageRetry(result)
	}
	return out, err
}
