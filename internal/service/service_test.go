package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/aryan0dhankhar/rentledger/internal/domain"
	"github.com/aryan0dhankhar/rentledger/internal/repository/memory"
	"github.com/aryan0dhankhar/rentledger/internal/security"
	"github.com/aryan0dhankhar/rentledger/internal/security/audit"
)

var testNow = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

type recordingAudit struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (r *recordingAudit) Emit(_ context.Context, e audit.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

func (r *recordingAudit) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

type fakeTokens struct{}

func (fakeTokens) GenerateToken(userID string, role domain.Role) (string, time.Time, error) {
	return "token-" + userID + "-" + string(role), testNow.Add(time.Hour), nil
}

type fixture struct {
	t         *testing.T
	store     *memory.Store
	audit     *recordingAudit
	props     *PropertyService
	contracts *ContractService
	payments  *PaymentService
	tickets   *TicketService
	tenants   *TenantService
	auth      *AuthService

	owner    domain.Owner
	stranger domain.Owner
	admin    domain.SuperAdmin
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := func() time.Time { return testNow }
	store := memory.NewStore().WithClock(clock)
	rec := &recordingAudit{}
	d := Deps{
		Store: store,
		Authz: security.NewAuthorizer(security.NewChainResolver(store.Repos()), nil),
		Audit: rec,
		Clock: clock,
	}
	for _, id := range []string{"owner-1", "owner-2"} {
		owner := &domain.User{ID: id, Email: id + "@example.com", Role: domain.RoleOwner, IsActive: true}
		if err := store.Repos().Users.Create(context.Background(), owner); err != nil {
			t.Fatalf("create owner: %v", err)
		}
	}
	return &fixture{
		t:         t,
		store:     store,
		audit:     rec,
		props:     NewPropertyService(d),
		contracts: NewContractService(d),
		payments:  NewPaymentService(d),
		tickets:   NewTicketService(d),
		tenants:   NewTenantService(d),
		auth:      NewAuthService(d, fakeTokens{}).WithHashCost(bcrypt.MinCost),
		owner:     domain.Owner{UserID: "owner-1"},
		stranger:  domain.Owner{UserID: "owner-2"},
		admin:     domain.SuperAdmin{UserID: "admin-1"},
	}
}

func (f *fixture) property() *domain.Property {
	f.t.Helper()
	prop, err := f.props.Create(context.Background(), f.owner, PropertyInput{
		Address:     domain.Address{Line1: "12 Elm Street", City: "Springfield"},
		RentalPrice: 1200,
		Currency:    "usd",
	})
	if err != nil {
		f.t.Fatalf("create property: %v", err)
	}
	return prop
}

func (f *fixture) tenant(id string) domain.Tenant {
	f.t.Helper()
	ctx := context.Background()
	repos := f.store.Repos()
	if err := repos.Users.Create(ctx, &domain.User{ID: id, Email: id + "@example.com", Role: domain.RoleTenant, IsActive: true}); err != nil {
		f.t.Fatalf("create user: %v", err)
	}
	if err := repos.Tenants.Create(ctx, &domain.TenantProfile{ID: id, FullName: "Tenant " + id, Email: id + "@example.com"}); err != nil {
		f.t.Fatalf("create tenant: %v", err)
	}
	return domain.Tenant{UserID: id}
}

func (f *fixture) contract(propertyID, tenantID string) *domain.Contract {
	f.t.Helper()
	c, err := f.contracts.Create(context.Background(), f.owner, propertyID, tenantID, testTerms())
	if err != nil {
		f.t.Fatalf("create contract: %v", err)
	}
	return c
}

func (f *fixture) occupancy(propertyID string) domain.OccupancyStatus {
	f.t.Helper()
	prop, err := f.store.Repos().Properties.GetByID(context.Background(), propertyID)
	if err != nil {
		f.t.Fatalf("get property: %v", err)
	}
	return prop.OccupancyStatus
}

func testTerms() domain.Terms {
	return domain.Terms{
		StartDate:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:       time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
		MonthlyAmount: 1200,
		Currency:      "usd",
		PayDay:        5,
	}
}

func denyReason(err error) domain.DenyReason {
	var denied *domain.AuthorizationDeniedError
	if errors.As(err, &denied) {
		return denied.Reason
	}
	return ""
}

func TestErrorKind(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{&domain.InvalidTransitionError{Entity: "ticket"}, "invalid_transition"},
		{domain.ErrNotFound, "not_found"},
		{domain.ErrDuplicatePeriod, "invariant"},
		{domain.ErrConflict, "conflict"},
		{errors.New("boom"), "storage"},
	}
	for _, tc := range cases {
		if got := errorKind(tc.err); got != tc.want {
			t.Errorf("errorKind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
