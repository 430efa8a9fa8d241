package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/aryan0dhankhar/rentledger/internal/domain"
	"github.com/aryan0dhankhar/rentledger/internal/observability/metrics"
	"github.com/aryan0dhankhar/rentledger/internal/observability/tracing"
	"github.com/aryan0dhankhar/rentledger/internal/security"
	"github.com/aryan0dhankhar/rentledger/internal/security/audit"
)

// PropertyInput is the caller-supplied data for a new property.
// OwnerID is only honoured for superadmins; owners always create for themselves.
type PropertyInput struct {
	OwnerID     string
	Address     domain.Address
	RentalPrice float64
	Currency    string
}

// ownershipCache is implemented by authorizers that cache property owners
type ownershipCache interface {
	Forget(propertyID string)
}

// PropertyService manages properties and the direct owner-controlled part of
// the occupancy state machine.
type PropertyService struct {
	base
}

// NewPropertyService creates a new property service
func NewPropertyService(d Deps) *PropertyService {
	return &PropertyService{base: newBase(d, "property_service")}
}

// Create registers a new, available property
func (s *PropertyService) Create(ctx context.Context, p domain.Principal, in PropertyInput) (_ *domain.Property, err error) {
	ctx, span := tracing.Start(ctx, "PropertyService.Create")
	defer func() { tracing.End(span, err) }()

	ownerID := p.ID()
	if _, ok := p.(domain.SuperAdmin); ok {
		if in.OwnerID == "" {
			return nil, fmt.Errorf("%w: owner id is required", domain.ErrValidation)
		}
		ownerID = in.OwnerID
		user, err := s.store.Repos().Users.GetByID(ctx, ownerID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		if user == nil || user.Role != domain.RoleOwner {
			s.rejected("property.create", domain.ErrValidation)
			return nil, fmt.Errorf("%w: %s is not an owner account", domain.ErrValidation, ownerID)
		}
	}
	if err := s.authz.Authorize(ctx, p, security.ActionCreate, security.Draft(security.KindProperty, security.Chain{OwnerID: ownerID})); err != nil {
		return nil, err
	}

	now := s.now()
	prop := &domain.Property{
		ID:              s.newID(),
		OwnerID:         ownerID,
		Address:         in.Address,
		RentalPrice:     in.RentalPrice,
		Currency:        strings.ToUpper(strings.TrimSpace(in.Currency)),
		OccupancyStatus: domain.OccupancyAvailable,
		AvailableSince:  &now,
	}
	if err := prop.Validate(); err != nil {
		s.rejected("property.create", err)
		return nil, err
	}
	if err := s.store.Repos().Properties.Create(ctx, prop); err != nil {
		return nil, fmt.Errorf("create property: %w", err)
	}

	s.logger.Info("property created",
		slog.String("property_id", prop.ID),
		slog.String("owner_id", prop.OwnerID),
	)
	s.record(ctx, p, audit.ActionPropertyCreate, "property registered", map[string]string{
		"property_id": prop.ID,
		"owner_id":    prop.OwnerID,
	})
	return prop, nil
}

// Get returns a property the principal may read
func (s *PropertyService) Get(ctx context.Context, p domain.Principal, id string) (*domain.Property, error) {
	if err := s.authz.Authorize(ctx, p, security.ActionRead, security.Existing(security.KindProperty, id)); err != nil {
		return nil, err
	}
	return s.store.Repos().Properties.GetByID(ctx, id)
}

// List returns every property for superadmins and the caller's own for owners.
// Tenants are refused by the permission table.
func (s *PropertyService) List(ctx context.Context, p domain.Principal) ([]*domain.Property, error) {
	if err := s.authz.Authorize(ctx, p, security.ActionRead, security.Draft(security.KindProperty, security.Chain{OwnerID: p.ID()})); err != nil {
		return nil, err
	}
	if _, ok := p.(domain.SuperAdmin); ok {
		return s.store.Repos().Properties.List(ctx)
	}
	return s.store.Repos().Properties.ListByOwner(ctx, p.ID())
}

// Update edits address, price and currency. Occupancy is untouched.
func (s *PropertyService) Update(ctx context.Context, p domain.Principal, id string, u domain.PropertyUpdate) (_ *domain.Property, err error) {
	ctx, span := tracing.Start(ctx, "PropertyService.Update", attribute.String("property.id", id))
	defer func() { tracing.End(span, err) }()

	if err := s.authz.Authorize(ctx, p, security.ActionUpdate, security.Existing(security.KindProperty, id)); err != nil {
		return nil, err
	}

	var out *domain.Property
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Repositories) error {
		prop, err := tx.Properties.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := prop.Apply(u); err != nil {
			return err
		}
		if err := tx.Properties.Update(ctx, prop); err != nil {
			return err
		}
		out = prop
		return nil
	})
	if err != nil {
		s.rejected("property.update", err)
		return nil, err
	}

	s.record(ctx, p, audit.ActionPropertyUpdate, "property details updated", map[string]string{"property_id": id})
	return out, nil
}

// Delete removes a property that is not occupied
func (s *PropertyService) Delete(ctx context.Context, p domain.Principal, id string) (err error) {
	ctx, span := tracing.Start(ctx, "PropertyService.Delete", attribute.String("property.id", id))
	defer func() { tracing.End(span, err) }()

	if err := s.authz.Authorize(ctx, p, security.ActionDelete, security.Existing(security.KindProperty, id)); err != nil {
		return err
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Repositories) error {
		prop, err := tx.Properties.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if prop.OccupancyStatus == domain.OccupancyOccupied {
			return domain.ErrPropertyOccupied
		}
		// Contracts, their payments and tickets outlive the property's listing.
		contracts, err := tx.Contracts.ListByProperty(ctx, id)
		if err != nil {
			return err
		}
		tickets, err := tx.Tickets.ListByProperty(ctx, id)
		if err != nil {
			return err
		}
		if len(contracts) > 0 || len(tickets) > 0 {
			return domain.ErrPropertyHasHistory
		}
		return tx.Properties.Delete(ctx, id)
	})
	if err != nil {
		s.rejected("property.delete", err)
		return err
	}

	if c, ok := s.authz.(ownershipCache); ok {
		c.Forget(id)
	}
	s.logger.Info("property deleted", slog.String("property_id", id))
	s.record(ctx, p, audit.ActionPropertyDelete, "property removed", map[string]string{"property_id": id})
	return nil
}

// SetStatus toggles a property between available and maintenance
func (s *PropertyService) SetStatus(ctx context.Context, p domain.Principal, id string, to domain.OccupancyStatus) (_ *domain.Property, err error) {
	ctx, span := tracing.Start(ctx, "PropertyService.SetStatus",
		attribute.String("property.id", id),
		attribute.String("property.status", string(to)),
	)
	defer func() { tracing.End(span, err) }()

	if err := s.authz.Authorize(ctx, p, security.ActionUpdate, security.Existing(security.KindProperty, id)); err != nil {
		return nil, err
	}
	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown occupancy status %q", domain.ErrValidation, to)
	}

	var (
		out  *domain.Property
		from domain.OccupancyStatus
	)
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Repositories) error {
		prop, err := tx.Properties.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		from = prop.OccupancyStatus
		if err := prop.SetStatus(to, s.now()); err != nil {
			return err
		}
		if err := tx.Properties.UpdateOccupancy(ctx, id, from, to, prop.AvailableSince); err != nil {
			return err
		}
		out = prop
		return nil
	})
	if err != nil {
		var it *domain.InvalidTransitionError
		if errors.As(err, &it) {
			s.logger.Info("property status change rejected",
				slog.String("property_id", id),
				slog.String("from", it.From),
				slog.String("to", it.To),
			)
		}
		s.rejected("property.status", err)
		return nil, err
	}

	metrics.ObserveTransition("property", string(from), string(to))
	s.record(ctx, p, audit.ActionPropertyStatus, "property status changed", map[string]string{
		"property_id": id,
		"from":        string(from),
		"to":          string(to),
	})
	return out, nil
}
