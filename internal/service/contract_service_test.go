package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aryan0dhankhar/rentledger/internal/domain"
)

func TestContractCreateOccupiesProperty(t *testing.T) {
	f := newFixture(t)
	prop := f.property()
	tenant := f.tenant("t-1")

	c := f.contract(prop.ID, tenant.UserID)

	if c.Status != domain.ContractActive {
		t.Fatalf("expected active, got %s", c.Status)
	}
	if c.Terms.Currency != "USD" {
		t.Fatalf("expected normalized currency, got %q", c.Terms.Currency)
	}
	stored, _ := f.store.Repos().Properties.GetByID(context.Background(), prop.ID)
	if stored.OccupancyStatus != domain.OccupancyOccupied || stored.AvailableSince != nil {
		t.Fatalf("expected occupied without available_since, got %+v", stored)
	}
}

func TestContractCreateRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	prop := f.property()
	first := f.tenant("t-1")
	second := f.tenant("t-2")
	f.contract(prop.ID, first.UserID)

	if _, err := f.contracts.Create(ctx, f.owner, prop.ID, second.UserID, testTerms()); !errors.Is(err, domain.ErrPropertyNoLongerAvailable) {
		t.Fatalf("expected property no longer available, got %v", err)
	}
	list, _ := f.store.Repos().Contracts.ListByProperty(ctx, prop.ID)
	if len(list) != 1 {
		t.Fatalf("expected exactly one contract, got %d", len(list))
	}

	other := f.property()
	if _, err := f.props.SetStatus(ctx, f.owner, other.ID, domain.OccupancyMaintenance); err != nil {
		t.Fatalf("maintenance: %v", err)
	}
	if _, err := f.contracts.Create(ctx, f.owner, other.ID, second.UserID, testTerms()); !errors.Is(err, domain.ErrPropertyNoLongerAvailable) {
		t.Fatalf("expected property no longer available under maintenance, got %v", err)
	}

	if _, err := f.contracts.Create(ctx, second, other.ID, second.UserID, testTerms()); denyReason(err) != domain.DenyRoleNotPermitted {
		t.Fatalf("expected RoleNotPermitted for tenant, got %v", err)
	}
	if _, err := f.contracts.Create(ctx, f.stranger, other.ID, second.UserID, testTerms()); denyReason(err) != domain.DenyNotOwner {
		t.Fatalf("expected NotOwner, got %v", err)
	}

	bad := testTerms()
	bad.EndDate = bad.StartDate
	if _, err := f.contracts.Create(ctx, f.owner, other.ID, second.UserID, bad); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestContractCreateRollsBackOnUnknownTenant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	prop := f.property()

	if _, err := f.contracts.Create(ctx, f.owner, prop.ID, "ghost", testTerms()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if f.occupancy(prop.ID) != domain.OccupancyAvailable {
		t.Fatal("failed create must leave the property available")
	}
	list, _ := f.store.Repos().Contracts.ListByProperty(ctx, prop.ID)
	if len(list) != 0 {
		t.Fatalf("expected no contracts, got %d", len(list))
	}
}

func TestContractCreateConcurrent(t *testing.T) {
	f := newFixture(t)
	prop := f.property()
	const n = 8
	tenants := make([]string, n)
	for i := range tenants {
		tenants[i] = f.tenant("t-" + string(rune('a'+i))).UserID
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		won      int
		rejected int
	)
	for _, id := range tenants {
		wg.Add(1)
		go func(tenantID string) {
			defer wg.Done()
			_, err := f.contracts.Create(context.Background(), f.owner, prop.ID, tenantID, testTerms())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				won++
			case errors.Is(err, domain.ErrPropertyNoLongerAvailable):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(id)
	}
	wg.Wait()

	if won != 1 || rejected != n-1 {
		t.Fatalf("expected 1 winner and %d rejections, got %d and %d", n-1, won, rejected)
	}
	if f.occupancy(prop.ID) != domain.OccupancyOccupied {
		t.Fatal("expected property occupied")
	}
}

func TestContractTerminate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	prop := f.property()
	tenant := f.tenant("t-1")
	c := f.contract(prop.ID, tenant.UserID)

	if _, err := f.contracts.Terminate(ctx, tenant, c.ID); denyReason(err) != domain.DenyRoleNotPermitted {
		t.Fatalf("expected RoleNotPermitted, got %v", err)
	}
	if _, err := f.contracts.Terminate(ctx, f.stranger, c.ID); denyReason(err) != domain.DenyNotOwner {
		t.Fatalf("expected NotOwner, got %v", err)
	}

	got, err := f.contracts.Terminate(ctx, f.owner, c.ID)
	if err != nil {
		t.Fatalf("terminate: %v", err)
	}
	if got.Status != domain.ContractTerminated || got.TerminatedAt == nil {
		t.Fatalf("unexpected contract %+v", got)
	}
	stored, _ := f.store.Repos().Properties.GetByID(ctx, prop.ID)
	if stored.OccupancyStatus != domain.OccupancyAvailable || stored.AvailableSince == nil {
		t.Fatalf("expected available with available_since, got %+v", stored)
	}

	if _, err := f.contracts.Terminate(ctx, f.owner, c.ID); !errors.Is(err, domain.ErrAlreadyTerminated) {
		t.Fatalf("expected already terminated, got %v", err)
	}
	if f.occupancy(prop.ID) != domain.OccupancyAvailable {
		t.Fatal("second terminate must not touch the property")
	}

	// A new lease may start once the old one ended.
	f.contract(prop.ID, tenant.UserID)
}

func TestContractVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	prop := f.property()
	alice := f.tenant("alice")
	bob := f.tenant("bob")
	c := f.contract(prop.ID, alice.UserID)

	if _, err := f.contracts.Get(ctx, alice, c.ID); err != nil {
		t.Fatalf("tenant get own: %v", err)
	}
	if _, err := f.contracts.Get(ctx, bob, c.ID); denyReason(err) != domain.DenyNotSelf {
		t.Fatalf("expected NotSelf, got %v", err)
	}

	mine, err := f.contracts.List(ctx, alice, ContractFilter{})
	if err != nil || len(mine) != 1 {
		t.Fatalf("tenant list: %v, %d", err, len(mine))
	}
	if _, err := f.contracts.List(ctx, bob, ContractFilter{TenantID: alice.UserID}); denyReason(err) != domain.DenyNotSelf {
		t.Fatalf("expected NotSelf listing another tenant, got %v", err)
	}

	all, err := f.contracts.List(ctx, f.owner, ContractFilter{})
	if err != nil || len(all) != 1 {
		t.Fatalf("owner list: %v, %d", err, len(all))
	}
	byTenant, err := f.contracts.List(ctx, f.owner, ContractFilter{TenantID: alice.UserID})
	if err != nil || len(byTenant) != 1 {
		t.Fatalf("owner list by tenant: %v, %d", err, len(byTenant))
	}
	if _, err := f.contracts.List(ctx, f.stranger, ContractFilter{TenantID: alice.UserID}); denyReason(err) != domain.DenyNotOwner {
		t.Fatalf("expected NotOwner for unlinked owner, got %v", err)
	}
	if _, err := f.contracts.List(ctx, f.admin, ContractFilter{}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for unfiltered admin list, got %v", err)
	}
}

func TestContractAddDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	prop := f.property()
	tenant := f.tenant("t-1")
	c := f.contract(prop.ID, tenant.UserID)

	got, err := f.contracts.AddDocument(ctx, f.owner, c.ID, domain.Document{Name: "lease.pdf", Ref: "s3://docs/lease.pdf"})
	if err != nil {
		t.Fatalf("add document: %v", err)
	}
	if len(got.Documents) != 1 || got.Documents[0].Ref != "s3://docs/lease.pdf" {
		t.Fatalf("unexpected documents %+v", got.Documents)
	}
	if _, err := f.contracts.AddDocument(ctx, f.owner, c.ID, domain.Document{Name: "empty"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
