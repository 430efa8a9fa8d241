package service

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/aryan0dhankhar/rentledger/internal/domain"
	"github.com/aryan0dhankhar/rentledger/internal/observability/metrics"
	"github.com/aryan0dhankhar/rentledger/internal/observability/tracing"
	"github.com/aryan0dhankhar/rentledger/internal/security"
	"github.com/aryan0dhankhar/rentledger/internal/security/audit"
)

// TicketService runs the maintenance ticket workflow
type TicketService struct {
	base
}

// NewTicketService creates a new ticket service
func NewTicketService(d Deps) *TicketService {
	return &TicketService{base: newBase(d, "ticket_service")}
}

// Create files a ticket against a property. Tenants file for themselves and
// are denied unless they hold the active contract; an owner may file with or
// without a tenant, and a named tenant must hold the active contract.
func (s *TicketService) Create(ctx context.Context, p domain.Principal, propertyID, tenantID string, details domain.TicketDetails) (_ *domain.Ticket, err error) {
	ctx, span := tracing.Start(ctx, "TicketService.Create", attribute.String("property.id", propertyID))
	defer func() { tracing.End(span, err) }()

	repos := s.store.Repos()
	_, isTenant := p.(domain.Tenant)
	if isTenant {
		if tenantID == "" {
			tenantID = p.ID()
		}
		// An unknown property and one the tenant does not lease both deny.
		draft := security.Draft(security.KindTicket, security.Chain{PropertyID: propertyID, TenantID: tenantID})
		if err := s.authz.Authorize(ctx, p, security.ActionCreate, draft); err != nil {
			return nil, err
		}
		onLease, err := repos.Contracts.HasActiveForTenant(ctx, propertyID, tenantID)
		if err != nil {
			return nil, err
		}
		if !onLease {
			s.logger.Warn("ticket refused: tenant holds no active contract",
				slog.String("tenant_id", tenantID),
				slog.String("property_id", propertyID),
			)
			return nil, domain.Denied(domain.DenyNotSelf)
		}
	}

	prop, err := repos.Properties.GetByID(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	chain := security.Chain{PropertyID: propertyID, OwnerID: prop.OwnerID, TenantID: tenantID}
	if err := s.authz.Authorize(ctx, p, security.ActionCreate, security.Draft(security.KindTicket, chain)); err != nil {
		return nil, err
	}
	if err := details.Validate(); err != nil {
		return nil, err
	}

	if tenantID != "" && !isTenant {
		onLease, err := repos.Contracts.HasActiveForTenant(ctx, propertyID, tenantID)
		if err != nil {
			return nil, err
		}
		if !onLease {
			s.rejected("ticket.create", domain.ErrTenantNotOnLease)
			return nil, domain.ErrTenantNotOnLease
		}
	}

	ticket := &domain.Ticket{
		ID:         s.newID(),
		PropertyID: propertyID,
		TenantID:   tenantID,
		Details:    details,
		Status:     domain.TicketOpen,
	}
	if err := repos.Tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}

	s.logger.Info("ticket filed",
		slog.String("ticket_id", ticket.ID),
		slog.String("property_id", propertyID),
		slog.String("urgency", string(details.Urgency)),
	)
	s.record(ctx, p, audit.ActionTicketCreate, "maintenance ticket filed", map[string]string{
		"ticket_id":   ticket.ID,
		"property_id": propertyID,
		"urgency":     string(details.Urgency),
	})
	return ticket, nil
}

// UpdateStatus moves a ticket along open → in_progress → closed
func (s *TicketService) UpdateStatus(ctx context.Context, p domain.Principal, ticketID string, to domain.TicketStatus) (*domain.Ticket, error) {
	if err := s.authz.Authorize(ctx, p, security.ActionUpdate, security.Existing(security.KindTicket, ticketID)); err != nil {
		return nil, err
	}

	repos := s.store.Repos()
	ticket, err := repos.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	from := ticket.Status
	if err := ticket.Transition(to, s.now()); err != nil {
		s.rejected("ticket.status", err)
		return nil, err
	}
	if err := repos.Tickets.Update(ctx, ticket, from); err != nil {
		return nil, err
	}

	metrics.ObserveTransition("ticket", string(from), string(to))
	s.record(ctx, p, audit.ActionTicketStatus, "ticket status changed", map[string]string{
		"ticket_id": ticketID,
		"from":      string(from),
		"to":        string(to),
	})
	return ticket, nil
}

// Assign dispatches a contractor to an open or in-progress ticket
func (s *TicketService) Assign(ctx context.Context, p domain.Principal, ticketID string, a domain.TicketAssignment) (*domain.Ticket, error) {
	if err := s.authz.Authorize(ctx, p, security.ActionUpdate, security.Existing(security.KindTicket, ticketID)); err != nil {
		return nil, err
	}

	repos := s.store.Repos()
	ticket, err := repos.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := ticket.Assign(a, s.now()); err != nil {
		s.rejected("ticket.assign", err)
		return nil, err
	}
	if err := repos.Tickets.Update(ctx, ticket, ticket.Status); err != nil {
		return nil, err
	}

	s.record(ctx, p, audit.ActionTicketAssign, "contractor assigned", map[string]string{
		"ticket_id":  ticketID,
		"contractor": a.Contractor,
	})
	return ticket, nil
}

// Get returns a ticket visible to the principal
func (s *TicketService) Get(ctx context.Context, p domain.Principal, ticketID string) (*domain.Ticket, error) {
	if err := s.authz.Authorize(ctx, p, security.ActionRead, security.Existing(security.KindTicket, ticketID)); err != nil {
		return nil, err
	}
	return s.store.Repos().Tickets.GetByID(ctx, ticketID)
}

// List returns the tickets of a property. Tenants get the tickets they filed,
// optionally narrowed to one property.
func (s *TicketService) List(ctx context.Context, p domain.Principal, propertyID string) ([]*domain.Ticket, error) {
	repos := s.store.Repos()

	if tenant, ok := p.(domain.Tenant); ok {
		tickets, err := repos.Tickets.ListByTenant(ctx, tenant.UserID)
		if err != nil || propertyID == "" {
			return tickets, err
		}
		return keep(tickets, func(t *domain.Ticket) bool { return t.PropertyID == propertyID }), nil
	}

	if propertyID == "" {
		return nil, fmt.Errorf("%w: property_id is required", domain.ErrValidation)
	}
	if err := s.authz.Authorize(ctx, p, security.ActionRead, security.Existing(security.KindProperty, propertyID)); err != nil {
		return nil, err
	}
	return repos.Tickets.ListByProperty(ctx, propertyID)
}
