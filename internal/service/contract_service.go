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

// ContractFilter narrows ListContracts. At most one field is used, in the
// order PropertyID, TenantID.
type ContractFilter struct {
	PropertyID string
	TenantID   string
}

// ContractService is the contract lifecycle manager. Contract creation and
// termination drive the property's occupied/available transitions inside the
// same transaction.
type ContractService struct {
	base
}

// NewContractService creates a new contract service
func NewContractService(d Deps) *ContractService {
	return &ContractService{base: newBase(d, "contract_service")}
}

// Create opens an active contract and marks the property occupied
func (s *ContractService) Create(ctx context.Context, p domain.Principal, propertyID, tenantID string, terms domain.Terms) (_ *domain.Contract, err error) {
	ctx, span := tracing.Start(ctx, "ContractService.Create",
		attribute.String("property.id", propertyID),
		attribute.String("tenant.id", tenantID),
	)
	defer func() { tracing.End(span, err) }()

	if err := s.authz.Authorize(ctx, p, security.ActionUpdate, security.Existing(security.KindProperty, propertyID)); err != nil {
		return nil, err
	}
	if strings.TrimSpace(tenantID) == "" {
		return nil, fmt.Errorf("%w: tenant id is required", domain.ErrValidation)
	}
	terms.Currency = strings.ToUpper(strings.TrimSpace(terms.Currency))
	if err := terms.Validate(); err != nil {
		s.rejected("contract.create", err)
		return nil, err
	}

	now := s.now()
	contract := &domain.Contract{
		ID:         s.newID(),
		PropertyID: propertyID,
		TenantID:   tenantID,
		Terms:      terms,
		Status:     domain.ContractActive,
		Documents:  []domain.Document{},
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Repositories) error {
		prop, err := tx.Properties.GetByIDForUpdate(ctx, propertyID)
		if err != nil {
			return err
		}
		if err := prop.Occupy(now); err != nil {
			return err
		}
		if _, err := tx.Tenants.GetByID(ctx, tenantID); err != nil {
			return err
		}
		if err := tx.Contracts.Create(ctx, contract); err != nil {
			return err
		}
		err = tx.Properties.UpdateOccupancy(ctx, propertyID, domain.OccupancyAvailable, domain.OccupancyOccupied, nil)
		if errors.Is(err, domain.ErrConflict) {
			return domain.ErrPropertyNoLongerAvailable
		}
		return err
	})
	if err != nil {
		s.rejected("contract.create", err)
		return nil, err
	}

	metrics.ObserveTransition("property", string(domain.OccupancyAvailable), string(domain.OccupancyOccupied))
	s.logger.Info("contract created",
		slog.String("contract_id", contract.ID),
		slog.String("property_id", propertyID),
		slog.String("tenant_id", tenantID),
	)
	s.record(ctx, p, audit.ActionContractCreate, "contract created and property occupied", map[string]string{
		"contract_id": contract.ID,
		"property_id": propertyID,
		"tenant_id":   tenantID,
	})
	return contract, nil
}

// Terminate ends an active contract and makes the property available again.
// Terminating twice reports ErrAlreadyTerminated and changes nothing.
func (s *ContractService) Terminate(ctx context.Context, p domain.Principal, contractID string) (_ *domain.Contract, err error) {
	ctx, span := tracing.Start(ctx, "ContractService.Terminate", attribute.String("contract.id", contractID))
	defer func() { tracing.End(span, err) }()

	if err := s.authz.Authorize(ctx, p, security.ActionUpdate, security.Existing(security.KindContract, contractID)); err != nil {
		return nil, err
	}

	now := s.now()
	var out *domain.Contract
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Repositories) error {
		c, err := tx.Contracts.GetByIDForUpdate(ctx, contractID)
		if err != nil {
			return err
		}
		if err := c.Terminate(now); err != nil {
			return err
		}
		err = tx.Contracts.UpdateStatus(ctx, contractID, domain.ContractActive, domain.ContractTerminated, c.TerminatedAt)
		if errors.Is(err, domain.ErrConflict) {
			return domain.ErrAlreadyTerminated
		}
		if err != nil {
			return err
		}

		prop, err := tx.Properties.GetByIDForUpdate(ctx, c.PropertyID)
		if err != nil {
			return err
		}
		if err := prop.Vacate(now); err != nil {
			return err
		}
		if err := tx.Properties.UpdateOccupancy(ctx, prop.ID, domain.OccupancyOccupied, domain.OccupancyAvailable, prop.AvailableSince); err != nil {
			return err
		}
		c.UpdatedAt = now
		out = c
		return nil
	})
	if err != nil {
		s.rejected("contract.terminate", err)
		return nil, err
	}

	metrics.ObserveTransition("contract", string(domain.ContractActive), string(domain.ContractTerminated))
	metrics.ObserveTransition("property", string(domain.OccupancyOccupied), string(domain.OccupancyAvailable))
	s.logger.Info("contract terminated",
		slog.String("contract_id", contractID),
		slog.String("property_id", out.PropertyID),
	)
	s.record(ctx, p, audit.ActionContractEnd, "contract terminated and property vacated", map[string]string{
		"contract_id": contractID,
		"property_id": out.PropertyID,
	})
	return out, nil
}

// AddDocument attaches a document reference to a contract
func (s *ContractService) AddDocument(ctx context.Context, p domain.Principal, contractID string, doc domain.Document) (*domain.Contract, error) {
	if err := s.authz.Authorize(ctx, p, security.ActionUpdate, security.Existing(security.KindContract, contractID)); err != nil {
		return nil, err
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	doc.AddedAt = s.now()

	repos := s.store.Repos()
	if err := repos.Contracts.AddDocument(ctx, contractID, doc); err != nil {
		return nil, err
	}
	s.record(ctx, p, audit.ActionContractDocument, "document attached to contract", map[string]string{
		"contract_id": contractID,
		"ref":         doc.Ref,
	})
	return repos.Contracts.GetByID(ctx, contractID)
}

// Get returns a contract visible to the principal
func (s *ContractService) Get(ctx context.Context, p domain.Principal, contractID string) (*domain.Contract, error) {
	if err := s.authz.Authorize(ctx, p, security.ActionRead, security.Existing(security.KindContract, contractID)); err != nil {
		return nil, err
	}
	return s.store.Repos().Contracts.GetByID(ctx, contractID)
}

// List returns contracts by property or by tenant. Tenants always see only
// their own; an owner listing a tenant sees only contracts on their properties.
func (s *ContractService) List(ctx context.Context, p domain.Principal, f ContractFilter) ([]*domain.Contract, error) {
	repos := s.store.Repos()

	if tenant, ok := p.(domain.Tenant); ok {
		if f.TenantID != "" && f.TenantID != tenant.UserID {
			if err := s.authz.Authorize(ctx, p, security.ActionRead, security.Existing(security.KindTenant, f.TenantID)); err != nil {
				return nil, err
			}
		}
		contracts, err := repos.Contracts.ListByTenant(ctx, tenant.UserID)
		if err != nil {
			return nil, err
		}
		if f.PropertyID == "" {
			return contracts, nil
		}
		return keep(contracts, func(c *domain.Contract) bool { return c.PropertyID == f.PropertyID }), nil
	}

	switch {
	case f.PropertyID != "":
		if err := s.authz.Authorize(ctx, p, security.ActionRead, security.Existing(security.KindProperty, f.PropertyID)); err != nil {
			return nil, err
		}
		return repos.Contracts.ListByProperty(ctx, f.PropertyID)

	case f.TenantID != "":
		if err := s.authz.Authorize(ctx, p, security.ActionRead, security.Existing(security.KindTenant, f.TenantID)); err != nil {
			return nil, err
		}
		contracts, err := repos.Contracts.ListByTenant(ctx, f.TenantID)
		if err != nil {
			return nil, err
		}
		if _, ok := p.(domain.SuperAdmin); ok {
			return contracts, nil
		}
		return s.visible(ctx, p, contracts)

	default:
		if _, ok := p.(domain.SuperAdmin); ok {
			return nil, fmt.Errorf("%w: property_id or tenant_id is required", domain.ErrValidation)
		}
		props, err := repos.Properties.ListByOwner(ctx, p.ID())
		if err != nil {
			return nil, err
		}
		var out []*domain.Contract
		for _, prop := range props {
			contracts, err := repos.Contracts.ListByProperty(ctx, prop.ID)
			if err != nil {
				return nil, err
			}
			out = append(out, contracts...)
		}
		return out, nil
	}
}

// visible drops contracts the principal may not read
func (s *ContractService) visible(ctx context.Context, p domain.Principal, contracts []*domain.Contract) ([]*domain.Contract, error) {
	out := make([]*domain.Contract, 0, len(contracts))
	for _, c := range contracts {
		err := s.authz.Authorize(ctx, p, security.ActionRead, security.Existing(security.KindContract, c.ID))
		switch {
		case err == nil:
			out = append(out, c)
		case domain.IsDenied(err):
		default:
			return nil, err
		}
	}
	return out, nil
}

func keep[T any](items []T, fn func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if fn(it) {
			out = append(out, it)
		}
	}
	return out
}
