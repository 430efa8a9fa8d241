package domain

import (
	"context"
	"time"
)

// PropertyRepository defines data access for properties
type PropertyRepository interface {
	Create(ctx context.Context, p *Property) error
	GetByID(ctx context.Context, id string) (*Property, error)
	// GetByIDForUpdate locks the row for the rest of the transaction
	GetByIDForUpdate(ctx context.Context, id string) (*Property, error)
	List(ctx context.Context) ([]*Property, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*Property, error)
	Update(ctx context.Context, p *Property) error
	// UpdateOccupancy writes status and available_since only if the stored
	// status still equals from; otherwise it returns ErrConflict.
	UpdateOccupancy(ctx context.Context, id string, from, to OccupancyStatus, availableSince *time.Time) error
	Delete(ctx context.Context, id string) error
}

// ContractRepository defines data access for contracts
type ContractRepository interface {
	// Create fails with ErrPropertyNoLongerAvailable when another active
	// contract exists for the same property.
	Create(ctx context.Context, c *Contract) error
	GetByID(ctx context.Context, id string) (*Contract, error)
	GetByIDForUpdate(ctx context.Context, id string) (*Contract, error)
	ListByProperty(ctx context.Context, propertyID string) ([]*Contract, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*Contract, error)
	// UpdateStatus is conditional on the stored status equal to from; ErrConflict otherwise.
	UpdateStatus(ctx context.Context, id string, from, to ContractStatus, terminatedAt *time.Time) error
	AddDocument(ctx context.Context, id string, doc Document) error
	HasActiveForTenant(ctx context.Context, propertyID, tenantID string) (bool, error)
	// TenantLinkedToOwner reports whether the tenant holds or held a contract
	// on any property of the owner.
	TenantLinkedToOwner(ctx context.Context, tenantID, ownerID string) (bool, error)
}

// PaymentRepository defines data access for payments
type PaymentRepository interface {
	// Create fails with ErrDuplicatePeriod when the contract already has a
	// payment for the period.
	Create(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, id string) (*Payment, error)
	ListByContract(ctx context.Context, contractID string) ([]*Payment, error)
	ExistsForPeriod(ctx context.Context, contractID, period string) (bool, error)
	// Update writes the payment only if the stored status equals expected.
	Update(ctx context.Context, p *Payment, expected PaymentStatus) error
	ListOverdueCandidates(ctx context.Context) ([]OverdueCandidate, error)
}

// TicketRepository defines data access for tickets
type TicketRepository interface {
	Create(ctx context.Context, t *Ticket) error
	GetByID(ctx context.Context, id string) (*Ticket, error)
	ListByProperty(ctx context.Context, propertyID string) ([]*Ticket, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*Ticket, error)
	// Update writes the ticket only if the stored status equals expected.
	Update(ctx context.Context, t *Ticket, expected TicketStatus) error
}

// TenantRepository defines data access for tenant profiles
type TenantRepository interface {
	Create(ctx context.Context, t *TenantProfile) error
	GetByID(ctx context.Context, id string) (*TenantProfile, error)
	Update(ctx context.Context, t *TenantProfile) error
}

// UserRepository defines data access for users
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, u *User) error
}

// Repositories groups the repositories bound to one connection or transaction
type Repositories struct {
	Properties PropertyRepository
	Contracts  ContractRepository
	Payments   PaymentRepository
	Tickets    TicketRepository
	Tenants    TenantRepository
	Users      UserRepository
}

// Store is the storage collaborator. WithinTx runs fn against repositories
// bound to a single transaction, committing only when fn returns nil.
type Store interface {
	Repos() Repositories
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Repositories) error) error
	Ping(ctx context.Context) error
}
