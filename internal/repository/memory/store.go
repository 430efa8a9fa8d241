// Package memory is an in-process implementation of domain.Store. It enforces
// the same uniqueness and conditional-update rules as the Postgres schema and
// is used by tests and by STORAGE_DRIVER=memory local runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aryan0dhankhar/rentledger/internal/domain"
)

type row[T any] struct {
	seq uint64
	val T
}

type state struct {
	seq        uint64
	properties map[string]row[domain.Property]
	contracts  map[string]row[domain.Contract]
	payments   map[string]row[domain.Payment]
	tickets    map[string]row[domain.Ticket]
	tenants    map[string]row[domain.TenantProfile]
	users      map[string]row[domain.User]
}

func newState() *state {
	return &state{
		properties: map[string]row[domain.Property]{},
		contracts:  map[string]row[domain.Contract]{},
		payments:   map[string]row[domain.Payment]{},
		tickets:    map[string]row[domain.Ticket]{},
		tenants:    map[string]row[domain.TenantProfile]{},
		users:      map[string]row[domain.User]{},
	}
}

func (s *state) next() uint64 {
	s.seq++
	return s.seq
}

func (s *state) clone() *state {
	return &state{
		seq:        s.seq,
		properties: cloneMap(s.properties, cloneProperty),
		contracts:  cloneMap(s.contracts, cloneContract),
		payments:   cloneMap(s.payments, clonePayment),
		tickets:    cloneMap(s.tickets, cloneTicket),
		tenants:    cloneMap(s.tenants, func(t domain.TenantProfile) domain.TenantProfile { return t }),
		users:      cloneMap(s.users, func(u domain.User) domain.User { return u }),
	}
}

// Store is a mutex-guarded domain.Store. Transactions are serialized and
// roll back by restoring a snapshot taken at begin.
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

// NewStore returns an empty store
func NewStore() *Store {
	return &Store{st: newState(), now: time.Now}
}

// WithClock overrides the timestamp source
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Repos returns repositories that lock per call
func (s *Store) Repos() domain.Repositories {
	return s.bind(false)
}

// WithinTx runs fn with exclusive access, discarding its writes on error or panic
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.Repositories) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	defer func() {
		if p := recover(); p != nil {
			s.st = snapshot
			panic(p)
		}
		if err != nil {
			s.st = snapshot
		}
	}()

	if err = fn(ctx, s.bind(true)); err != nil {
		return err
	}
	return ctx.Err()
}

// Ping always succeeds
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) bind(inTx bool) domain.Repositories {
	v := &view{store: s, inTx: inTx}
	return domain.Repositories{
		Properties: &propertyRepo{v},
		Contracts:  &contractRepo{v},
		Payments:   &paymentRepo{v},
		Tickets:    &ticketRepo{v},
		Tenants:    &tenantRepo{v},
		Users:      &userRepo{v},
	}
}

// view runs repository calls against the store state, taking the lock
// unless it is already held by an enclosing transaction.
type view struct {
	store *Store
	inTx  bool
}

func (v *view) do(ctx context.Context, fn func(st *state, now time.Time) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !v.inTx {
		v.store.mu.Lock()
		defer v.store.mu.Unlock()
	}
	return fn(v.store.st, v.store.now().UTC())
}

func cloneMap[T any](m map[string]row[T], cp func(T) T) map[string]row[T] {
	out := make(map[string]row[T], len(m))
	for k, r := range m {
		out[k] = row[T]{seq: r.seq, val: cp(r.val)}
	}
	return out
}

// newestFirst collects matching rows ordered by insertion, newest first
func newestFirst[T any](m map[string]row[T], keep func(T) bool, cp func(T) T) []*T {
	rows := make([]row[T], 0, len(m))
	for _, r := range m {
		if keep(r.val) {
			rows = append(rows, r)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq > rows[j].seq })
	out := make([]*T, 0, len(rows))
	for _, r := range rows {
		v := cp(r.val)
		out = append(out, &v)
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneProperty(p domain.Property) domain.Property {
	p.AvailableSince = cloneTime(p.AvailableSince)
	return p
}

func cloneContract(c domain.Contract) domain.Contract {
	c.TerminatedAt = cloneTime(c.TerminatedAt)
	c.Documents = append([]domain.Document{}, c.Documents...)
	return c
}

func clonePayment(p domain.Payment) domain.Payment {
	p.PaymentDate = cloneTime(p.PaymentDate)
	return p
}

func cloneTicket(t domain.Ticket) domain.Ticket {
	if t.CostEstimate != nil {
		v := *t.CostEstimate
		t.CostEstimate = &v
	}
	return t
}
