package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aryan0dhankhar/rentledger/internal/domain"
	"github.com/aryan0dhankhar/rentledger/internal/observability/metrics"
	"github.com/aryan0dhankhar/rentledger/internal/observability/requestid"
	"github.com/aryan0dhankhar/rentledger/internal/security"
	"github.com/aryan0dhankhar/rentledger/internal/security/audit"
)

// Authorizer decides whether a principal may act on a target
type Authorizer interface {
	Authorize(ctx context.Context, p domain.Principal, action security.Action, target security.Target) error
}

// Deps are the collaborators shared by every manager
type Deps struct {
	Store  domain.Store
	Authz  Authorizer
	Audit  audit.Emitter
	Logger *slog.Logger
	// Clock and NewID default to time.Now and uuid.NewString
	Clock func() time.Time
	NewID func() string
}

type base struct {
	store  domain.Store
	authz  Authorizer
	audit  audit.Emitter
	logger *slog.Logger
	clock  func() time.Time
	newID  func() string
}

func newBase(d Deps, component string) base {
	b := base{
		store:  d.Store,
		authz:  d.Authz,
		audit:  d.Audit,
		logger: d.Logger,
		clock:  d.Clock,
		newID:  d.NewID,
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	b.logger = b.logger.With(slog.String("component", component))
	if b.audit == nil {
		b.audit = audit.Discard{}
	}
	if b.clock == nil {
		b.clock = time.Now
	}
	if b.newID == nil {
		b.newID = uuid.NewString
	}
	return b
}

func (b base) now() time.Time {
	return b.clock().UTC()
}

// record emits an audit entry for a committed change
func (b base) record(ctx context.Context, p domain.Principal, action, description string, details map[string]string) {
	e := audit.Entry{
		Action:      action,
		Description: description,
		Details:     details,
		RequestID:   requestid.From(ctx),
		Timestamp:   b.now(),
	}
	if p != nil {
		e.ActorID = p.ID()
		e.ActorRole = string(p.Role())
	} else {
		e.ActorID = audit.SystemActor
		e.ActorRole = audit.SystemActor
	}
	b.audit.Emit(ctx, e)
}

// rejected counts a domain-rule rejection; authorization denials are counted
// by the authorizer itself.
func (b base) rejected(op string, err error) {
	if err == nil || domain.IsDenied(err) {
		return
	}
	metrics.ObserveRejection(op, errorKind(err))
}

func errorKind(err error) string {
	var it *domain.InvalidTransitionError
	switch {
	case errors.As(err, &it):
		return "invalid_transition"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrPropertyNoLongerAvailable),
		errors.Is(err, domain.ErrPropertyOccupied),
		errors.Is(err, domain.ErrPropertyHasHistory),
		errors.Is(err, domain.ErrAlreadyTerminated),
		errors.Is(err, domain.ErrDuplicatePeriod),
		errors.Is(err, domain.ErrInvalidPaymentTransition),
		errors.Is(err, domain.ErrContractNotBillable),
		errors.Is(err, domain.ErrTenantNotOnLease):
		return "invariant"
	default:
		return "storage"
	}
}
