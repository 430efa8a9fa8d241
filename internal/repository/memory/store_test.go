package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aryan0dhankhar/rentledger/internal/domain"
)

func seed(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	repos := s.Repos()
	if err := repos.Properties.Create(ctx, &domain.Property{
		ID: "p1", OwnerID: "o1", RentalPrice: 1000, Currency: "USD",
		OccupancyStatus: domain.OccupancyAvailable,
	}); err != nil {
		t.Fatalf("create property: %v", err)
	}
	if err := repos.Tenants.Create(ctx, &domain.TenantProfile{ID: "t1", FullName: "Ana"}); err != nil {
		t.Fatalf("create tenant: %v", err)
	}
}

func activeContract(id string) *domain.Contract {
	return &domain.Contract{
		ID: id, PropertyID: "p1", TenantID: "t1", Status: domain.ContractActive,
		Terms: domain.Terms{PayDay: 5, MonthlyAmount: 1000, Currency: "USD"},
	}
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	s := NewStore()
	seed(t, s)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(ctx context.Context, tx domain.Repositories) error {
		if err := tx.Contracts.Create(ctx, activeContract("c1")); err != nil {
			return err
		}
		if err := tx.Properties.UpdateOccupancy(ctx, "p1", domain.OccupancyAvailable, domain.OccupancyOccupied, nil); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	if _, err := s.Repos().Contracts.GetByID(ctx, "c1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("contract should be rolled back, got %v", err)
	}
	p, _ := s.Repos().Properties.GetByID(ctx, "p1")
	if p.OccupancyStatus != domain.OccupancyAvailable {
		t.Fatalf("property should still be available, got %s", p.OccupancyStatus)
	}
}

func TestWithinTxRollsBackOnPanic(t *testing.T) {
	s := NewStore()
	seed(t, s)
	ctx := context.Background()

	func() {
		defer func() { _ = recover() }()
		_ = s.WithinTx(ctx, func(ctx context.Context, tx domain.Repositories) error {
			_ = tx.Contracts.Create(ctx, activeContract("c1"))
			panic("fail")
		})
	}()

	if _, err := s.Repos().Contracts.GetByID(ctx, "c1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("contract should be rolled back, got %v", err)
	}
}

func TestWithinTxCancelledContextAborts(t *testing.T) {
	s := NewStore()
	seed(t, s)
	ctx, cancel := context.WithCancel(context.Background())

	err := s.WithinTx(ctx, func(ctx context.Context, tx domain.Repositories) error {
		if err := tx.Contracts.Create(ctx, activeContract("c1")); err != nil {
			return err
		}
		cancel()
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, err := s.Repos().Contracts.GetByID(context.Background(), "c1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("contract should not be committed, got %v", err)
	}
}

func TestOneActiveContractPerProperty(t *testing.T) {
	s := NewStore()
	seed(t, s)
	ctx := context.Background()
	repos := s.Repos()

	if err := repos.Contracts.Create(ctx, activeContract("c1")); err != nil {
		t.Fatalf("first contract: %v", err)
	}
	err := repos.Contracts.Create(ctx, activeContract("c2"))
	if !errors.Is(err, domain.ErrPropertyNoLongerAvailable) {
		t.Fatalf("expected ErrPropertyNoLongerAvailable, got %v", err)
	}

	now := time.Now()
	if err := repos.Contracts.UpdateStatus(ctx, "c1", domain.ContractActive, domain.ContractTerminated, &now); err != nil {
		t.Fatalf("terminate: %v", err)
	}
	if err := repos.Contracts.Create(ctx, activeContract("c2")); err != nil {
		t.Fatalf("contract after termination: %v", err)
	}
}

func TestUniquePaymentPeriod(t *testing.T) {
	s := NewStore()
	seed(t, s)
	ctx := context.Background()
	repos := s.Repos()
	if err := repos.Contracts.Create(ctx, activeContract("c1")); err != nil {
		t.Fatal(err)
	}

	pay := func(id string) error {
		return repos.Payments.Create(ctx, &domain.Payment{
			ID: id, ContractID: "c1", Period: "2024-03", Amount: 1000, Status: domain.PaymentPending,
		})
	}
	if err := pay("pay1"); err != nil {
		t.Fatal(err)
	}
	if err := pay("pay2"); !errors.Is(err, domain.ErrDuplicatePeriod) {
		t.Fatalf("expected ErrDuplicatePeriod, got %v", err)
	}
	list, _ := repos.Payments.ListByContract(ctx, "c1")
	if len(list) != 1 {
		t.Fatalf("expected one payment, got %d", len(list))
	}
}

func TestConditionalUpdatesDetectConflict(t *testing.T) {
	s := NewStore()
	seed(t, s)
	ctx := context.Background()
	repos := s.Repos()

	err := repos.Properties.UpdateOccupancy(ctx, "p1", domain.OccupancyOccupied, domain.OccupancyAvailable, nil)
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	ticket := &domain.Ticket{ID: "k1", PropertyID: "p1", Status: domain.TicketOpen,
		Details: domain.TicketDetails{Title: "leak", Urgency: domain.UrgencyHigh}}
	if err := repos.Tickets.Create(ctx, ticket); err != nil {
		t.Fatal(err)
	}
	ticket.Status = domain.TicketClosed
	if err := repos.Tickets.Update(ctx, ticket, domain.TicketInProgress); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	s := NewStore()
	seed(t, s)
	ctx := context.Background()
	repos := s.Repos()
	if err := repos.Contracts.Create(ctx, activeContract("c1")); err != nil {
		t.Fatal(err)
	}

	c, _ := repos.Contracts.GetByID(ctx, "c1")
	c.Status = domain.ContractExpired
	c.Documents = append(c.Documents, domain.Document{Ref: "x"})

	again, _ := repos.Contracts.GetByID(ctx, "c1")
	if again.Status != domain.ContractActive || len(again.Documents) != 0 {
		t.Fatalf("stored contract mutated through returned pointer: %+v", again)
	}
}

func TestTenantLinkedToOwner(t *testing.T) {
	s := NewStore()
	seed(t, s)
	ctx := context.Background()
	repos := s.Repos()
	if err := repos.Contracts.Create(ctx, activeContract("c1")); err != nil {
		t.Fatal(err)
	}

	linked, err := repos.Contracts.TenantLinkedToOwner(ctx, "t1", "o1")
	if err != nil || !linked {
		t.Fatalf("expected link, got %v %v", linked, err)
	}
	linked, _ = repos.Contracts.TenantLinkedToOwner(ctx, "t1", "o2")
	if linked {
		t.Fatal("unexpected link to another owner")
	}
}

func TestPropertyDeleteRestrictedByContracts(t *testing.T) {
	s := NewStore()
	seed(t, s)
	ctx := context.Background()
	repos := s.Repos()
	if err := repos.Contracts.Create(ctx, activeContract("c1")); err != nil {
		t.Fatalf("create contract: %v", err)
	}

	if err := repos.Properties.Delete(ctx, "p1"); !errors.Is(err, domain.ErrPropertyHasHistory) {
		t.Fatalf("expected history error, got %v", err)
	}
	if _, err := repos.Contracts.GetByID(ctx, "c1"); err != nil {
		t.Fatalf("contract should remain: %v", err)
	}
	if _, err := repos.Properties.GetByID(ctx, "p1"); err != nil {
		t.Fatalf("property should remain: %v", err)
	}
}
