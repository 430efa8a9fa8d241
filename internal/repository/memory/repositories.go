package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/aryan0dhankhar/rentledger/internal/domain"
)

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, domain.ErrNotFound)
}

type propertyRepo struct{ v *view }

func (r *propertyRepo) Create(ctx context.Context, p *domain.Property) error {
	return r.v.do(ctx, func(st *state, now time.Time) error {
		if _, ok := st.properties[p.ID]; ok {
			return fmt.Errorf("property %s exists: %w", p.ID, domain.ErrConflict)
		}
		p.CreatedAt, p.UpdatedAt = now, now
		st.properties[p.ID] = row[domain.Property]{seq: st.next(), val: cloneProperty(*p)}
		return nil
	})
}

func (r *propertyRepo) GetByID(ctx context.Context, id string) (*domain.Property, error) {
	var out *domain.Property
	err := r.v.do(ctx, func(st *state, _ time.Time) error {
		rw, ok := st.properties[id]
		if !ok {
			return notFound("property", id)
		}
		p := cloneProperty(rw.val)
		out = &p
		return nil
	})
	return out, err
}

// GetByIDForUpdate is GetByID; transactions already hold the store lock
func (r *propertyRepo) GetByIDForUpdate(ctx context.Context, id string) (*domain.Property, error) {
	return r.GetByID(ctx, id)
}

func (r *propertyRepo) List(ctx context.Context) ([]*domain.Property, error) {
	var out []*domain.Property
	err := r.v.do(ctx, func(st *state, _ time.Time) error {
		out = newestFirst(st.properties, func(domain.Property) bool { return true }, cloneProperty)
		return nil
	})
	return out, err
}

func (r *propertyRepo) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Property, error) {
	var out []*domain.Property
	err := r.v.do(ctx, func(st *state, _ time.Time) error {
		out = newestFirst(st.properties, func(p domain.Property) bool { return p.OwnerID == ownerID }, cloneProperty)
		return nil
	})
	return out, err
}

func (r *propertyRepo) Update(ctx context.Context, p *domain.Property) error {
	return r.v.do(ctx, func(st *state, now time.Time) error {
		rw, ok := st.properties[p.ID]
		if !ok {
			return notFound("property", p.ID)
		}
		rw.val.Address = p.Address
		rw.val.RentalPrice = p.RentalPrice
		rw.val.Currency = p.Currency
		rw.val.UpdatedAt = now
		st.properties[p.ID] = rw
		p.UpdatedAt = now
		return nil
	})
}

func (r *propertyRepo) UpdateOccupancy(ctx context.Context, id string, from, to domain.OccupancyStatus, availableSince *time.Time) error {
	return r.v.do(ctx, func(st *state, now time.Time) error {
		rw, ok := st.properties[id]
		if !ok || rw.val.OccupancyStatus != from {
			return fmt.Errorf("update property occupancy: %w", domain.ErrConflict)
		}
		rw.val.OccupancyStatus = to
		rw.val.AvailableSince = cloneTime(availableSince)
		rw.val.UpdatedAt = now
		st.properties[id] = rw
		return nil
	})
}

// Delete removes the property with its contracts, payments and tickets
func (r *propertyRepo) Delete(ctx context.Context, id string) error {
	return r.v.do(ctx, func(st *state, _ time.Time) error {
		if _, ok := st.properties[id]; !ok {
			return notFound("property", id)
		}
		for _, c := range st.contracts {
			if c.val.PropertyID == id {
				return fmt.Errorf("property %s: %w", id, domain.ErrPropertyHasHistory)
			}
		}
		for _, t := range st.tickets {
			if t.val.PropertyID == id {
				return fmt.Errorf("property %s: %w", id, domain.ErrPropertyHasHistory)
			}
		}
		delete(st.properties, id)
		return nil
	})
}

type contractRepo struct{ v *view }

func (r *contractRepo) Create(ctx context.Context, c *domain.Contract) error {
	return r.v.do(ctx, func(st *state, now time.Time) error {
		if _, ok := st.properties[c.PropertyID]; !ok {
			return notFound("property", c.PropertyID)
		}
		if _, ok := st.tenants[c.TenantID]; !ok {
			return notFound("tenant", c.TenantID)
		}
		if c.Status == domain.ContractActive {
			for _, other := range st.contracts {
				if other.val.PropertyID == c.PropertyID && other.val.Status == domain.ContractActive {
					return fmt.Errorf("create contract: %w", domain.ErrPropertyNoLongerAvailable)
				}
			}
		}
		if c.Documents == nil {
			c.Documents = []domain.Document{}
		}
		c.CreatedAt, c.UpdatedAt = now, now
		st.contracts[c.ID] = row[domain.Contract]{seq: st.next(), val: cloneContract(*c)}
		return nil
	})
}

func (r *contractRepo) GetByID(ctx context.Context, id string) (*domain.Contract, error) {
	var out *domain.Contract
	err := r.v.do(ctx, func(st *state, _ time.Time) error {
		rw, ok := st.contracts[id]
		if !ok {
			return notFound("contract", id)
		}
		c := cloneContract(rw.val)
		out = &c
		return nil
	})
	return out, err
}

func (r *contractRepo) GetByIDForUpdate(ctx context.Context, id string) (*domain.Contract, error) {
	return r.GetByID(ctx, id)
}

func (r *contractRepo) ListByProperty(ctx context.Context, propertyID string) ([]*domain.Contract, error) {
	var out []*domain.Contract
	err := r.v.do(ctx, func(st *state, _ time.Time) error {
		out = newestFirst(st.contracts, func(c domain.Contract) bool { return c.PropertyID == propertyID }, cloneContract)
		return nil
	})
	return out, err
}

func (r *contractRepo) ListByTenant(ctx context.Context, tenantID string) ([]*domain.Contract, error) {
	var out []*domain.Contract
	err := r.v.do(ctx, func(st *state, _ time.Time) error {
		out = newestFirst(st.contracts, func(c domain.Contract) bool { return c.TenantID == tenantID }, cloneContract)
		return nil
	})
	return out, err
}

func (r *contractRepo) UpdateStatus(ctx context.Context, id string, from, to domain.ContractStatus, terminatedAt *time.Time) error {
	return r.v.do(ctx, func(st *state, now time.Time) error {
		rw, ok := st.contracts[id]
		if !ok || rw.val.Status != from {
			return fmt.Errorf("update contract status: %w", domain.ErrConflict)
		}
		rw.val.Status = to
		rw.val.TerminatedAt = cloneTime(terminatedAt)
		rw.val.UpdatedAt = now
		st.contracts[id] = rw
		return nil
	})
}

func (r *contractRepo) AddDocument(ctx context.Context, id string, doc domain.Document) error {
	return r.v.do(ctx, func(st *state, now time.Time) error {
		rw, ok := st.contracts[id]
		if !ok {
			return notFound("contract", id)
		}
		rw.val.Documents = append(rw.val.Documents, doc)
		rw.val.UpdatedAt = now
		st.contracts[id] = rw
		return nil
	})
}

func (r *contractRepo) HasActiveForTenant(ctx context.Context, propertyID, tenantID string) (bool, error) {
	var found bool
	err := r.v.do(ctx, func(st *state, _ time.Time) error {
		for _, c := range st.contracts {
			if c.val.PropertyID == propertyID && c.val.TenantID == tenantID && c.val.Status == domain.ContractActive {
				found = true
				return nil
			}
		}
		return nil
	})
	return found, err
}

func (r *contractRepo) TenantLinkedToOwner(ctx context.Context, tenantID, ownerID string) (bool, error) {
	var found bool
	err := r.v.do(ctx, func(st *state, _ time.Time) error {
		for _, c := range st.contracts {
			if c.val.TenantID != tenantID {
				continue
			}
			if p, ok := st.properties[c.val.PropertyID]; ok && p.val.OwnerID == ownerID {
				found = true
				return nil
			}
		}
		return nil
	})
	return found, err
}

type paymentRepo struct{ v *view }

func (r *paymentRepo) Create(ctx context.Context, p *domain.Payment) error {
	return r.v.do(ctx, func(st *state, now time.Time) error {
		if _, ok := st.contracts[p.ContractID]; !ok {
			return notFound("contract", p.ContractID)
		}
		for _, other := range st.payments {
			if other.val.ContractID == p.ContractID && other.val.Period == p.Period {
				return fmt.Errorf("create payment: %w", domain.ErrDuplicatePeriod)
			}
		}
		p.CreatedAt, p.UpdatedAt = now, now
		st.payments[p.ID] = row[domain.Payment]{seq: st.next(), val: clonePayment(*p)}
		return nil
	})
}

func (r *paymentRepo) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	var out *domain.Payment
	err := r.v.do(ctx, func(st *state, _ time.Time) error {
		rw, ok := st.payments[id]
		if !ok {
			return notFound("payment", id)
		}
		p := clonePayment(rw.val)
		out = &p
		return nil
	})
	return out, err
}

// ListByContract orders by period like the SQL implementation
func (r *paymentRepo) ListByContract(ctx context.Context, contractID string) ([]*domain.Payment, error) {
	var out []*domain.Payment
	err := r.v.do(ctx, func(st *state, _ time.Time) error {
		out = byPeriod(newestFirst(st.payments, func(p domain.Payment) bool { return p.ContractID == contractID }, clonePayment))
		return nil
	})
	return out, err
}

func (r *paymentRepo) ExistsForPeriod(ctx context.Context, contractID, period string) (bool, error) {
	var found bool
	err := r.v.do(ctx, func(st *state, _ time.Time) error {
		for _, p := range st.payments {
			if p.val.ContractID == contractID && p.val.Period == period {
				found = true
				return nil
			}
		}
		return nil
	})
	return found, err
}

func (r *paymentRepo) Update(ctx context.Context, p *domain.Payment, expected domain.PaymentStatus) error {
	return r.v.do(ctx, func(st *state, now time.Time) error {
		rw, ok := st.payments[p.ID]
		if !ok || rw.val.Status != expected {
			return fmt.Errorf("update payment: %w", domain.ErrConflict)
		}
		next := clonePayment(*p)
		next.ContractID, next.Period, next.CreatedAt = rw.val.ContractID, rw.val.Period, rw.val.CreatedAt
		next.UpdatedAt = now
		st.payments[p.ID] = row[domain.Payment]{seq: rw.seq, val: next}
		p.UpdatedAt = now
		return nil
	})
}

func (r *paymentRepo) ListOverdueCandidates(ctx context.Context) ([]domain.OverdueCandidate, error) {
	var out []domain.OverdueCandidate
	err := r.v.do(ctx, func(st *state, _ time.Time) error {
		pending := byPeriod(newestFirst(st.payments, func(p domain.Payment) bool { return p.Status == domain.PaymentPending }, clonePayment))
		for _, p := range pending {
			c, ok := st.contracts[p.ContractID]
			if !ok || !c.val.Billable() {
				continue
			}
			out = append(out, domain.OverdueCandidate{Payment: p, PayDay: c.val.Terms.PayDay})
		}
		return nil
	})
	return out, err
}

func byPeriod(ps []*domain.Payment) []*domain.Payment {
	// insertion sort keeps the newest-first order stable within a period
	for i := 1; i < len(ps); i++ {
		for j := i; j > 0 && ps[j].Period < ps[j-1].Period; j-- {
			ps[j], ps[j-1] = ps[j-1], ps[j]
		}
	}
	return ps
}

type ticketRepo struct{ v *view }

func (r *ticketRepo) Create(ctx context.Context, t *domain.Ticket) error {
	return r.v.do(ctx, func(st *state, now time.Time) error {
		if _, ok := st.properties[t.PropertyID]; !ok {
			return notFound("property", t.PropertyID)
		}
		if t.TenantID != "" {
			if _, ok := st.tenants[t.TenantID]; !ok {
				return notFound("tenant", t.TenantID)
			}
		}
		t.CreatedAt, t.UpdatedAt = now, now
		st.tickets[t.ID] = row[domain.Ticket]{seq: st.next(), val: cloneTicket(*t)}
		return nil
	})
}

func (r *ticketRepo) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	var out *domain.Ticket
	err := r.v.do(ctx, func(st *state, _ time.Time) error {
		rw, ok := st.tickets[id]
		if !ok {
			return notFound("ticket", id)
		}
		t := cloneTicket(rw.val)
		out = &t
		return nil
	})
	return out, err
}

func (r *ticketRepo) ListByProperty(ctx context.Context, propertyID string) ([]*domain.Ticket, error) {
	var out []*domain.Ticket
	err := r.v.do(ctx, func(st *state, _ time.Time) error {
		out = newestFirst(st.tickets, func(t domain.Ticket) bool { return t.PropertyID == propertyID }, cloneTicket)
		return nil
	})
	return out, err
}

func (r *ticketRepo) ListByTenant(ctx context.Context, tenantID string) ([]*domain.Ticket, error) {
	var out []*domain.Ticket
	err := r.v.do(ctx, func(st *state, _ time.Time) error {
		out = newestFirst(st.tickets, func(t domain.Ticket) bool { return t.TenantID == tenantID }, cloneTicket)
		return nil
	})
	return out, err
}

func (r *ticketRepo) Update(ctx context.Context, t *domain.Ticket, expected domain.TicketStatus) error {
	return r.v.do(ctx, func(st *state, now time.Time) error {
		rw, ok := st.tickets[t.ID]
		if !ok || rw.val.Status != expected {
			return fmt.Errorf("update ticket: %w", domain.ErrConflict)
		}
		rw.val.Status = t.Status
		rw.val.Contractor = t.Contractor
		rw.val.CostEstimate = cloneTicket(*t).CostEstimate
		rw.val.UpdatedAt = now
		st.tickets[t.ID] = rw
		t.UpdatedAt = now
		return nil
	})
}

type tenantRepo struct{ v *view }

func (r *tenantRepo) Create(ctx context.Context, t *domain.TenantProfile) error {
	return r.v.do(ctx, func(st *state, now time.Time) error {
		if _, ok := st.tenants[t.ID]; ok {
			return fmt.Errorf("tenant %s exists: %w", t.ID, domain.ErrConflict)
		}
		t.CreatedAt, t.UpdatedAt = now, now
		st.tenants[t.ID] = row[domain.TenantProfile]{seq: st.next(), val: *t}
		return nil
	})
}

func (r *tenantRepo) GetByID(ctx context.Context, id string) (*domain.TenantProfile, error) {
	var out *domain.TenantProfile
	err := r.v.do(ctx, func(st *state, _ time.Time) error {
		rw, ok := st.tenants[id]
		if !ok {
			return notFound("tenant", id)
		}
		t := rw.val
		out = &t
		return nil
	})
	return out, err
}

func (r *tenantRepo) Update(ctx context.Context, t *domain.TenantProfile) error {
	return r.v.do(ctx, func(st *state, now time.Time) error {
		rw, ok := st.tenants[t.ID]
		if !ok {
			return notFound("tenant", t.ID)
		}
		rw.val.FullName, rw.val.Phone, rw.val.DocumentRef = t.FullName, t.Phone, t.DocumentRef
		rw.val.UpdatedAt = now
		st.tenants[t.ID] = rw
		t.UpdatedAt = now
		return nil
	})
}

type userRepo struct{ v *view }

func (r *userRepo) Create(ctx context.Context, u *domain.User) error {
	return r.v.do(ctx, func(st *state, now time.Time) error {
		for _, other := range st.users {
			if other.val.Email == u.Email {
				return fmt.Errorf("create user: %w", domain.ErrEmailTaken)
			}
		}
		u.CreatedAt, u.UpdatedAt = now, now
		st.users[u.ID] = row[domain.User]{seq: st.next(), val: *u}
		return nil
	})
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var out *domain.User
	err := r.v.do(ctx, func(st *state, _ time.Time) error {
		rw, ok := st.users[id]
		if !ok {
			return notFound("user", id)
		}
		u := rw.val
		out = &u
		return nil
	})
	return out, err
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var out *domain.User
	err := r.v.do(ctx, func(st *state, _ time.Time) error {
		for _, rw := range st.users {
			if rw.val.Email == email && rw.val.IsActive {
				u := rw.val
				out = &u
				return nil
			}
		}
		return notFound("user", email)
	})
	return out, err
}

func (r *userRepo) Update(ctx context.Context, u *domain.User) error {
	return r.v.do(ctx, func(st *state, now time.Time) error {
		rw, ok := st.users[u.ID]
		if !ok {
			return notFound("user", u.ID)
		}
		for id, other := range st.users {
			if id != u.ID && other.val.Email == u.Email {
				return fmt.Errorf("update user: %w", domain.ErrEmailTaken)
			}
		}
		rw.val.Email, rw.val.PasswordHash, rw.val.IsActive = u.Email, u.PasswordHash, u.IsActive
		rw.val.UpdatedAt = now
		st.users[u.ID] = rw
		u.UpdatedAt = now
		return nil
	})
}
