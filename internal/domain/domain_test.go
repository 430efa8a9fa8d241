package domain

import (
	"errors"
	"testing"
	"time"
)

func TestDirectStatusChange(t *testing.T) {
	cases := []struct {
		from, to OccupancyStatus
		ok       bool
	}{
		{OccupancyAvailable, OccupancyMaintenance, true},
		{OccupancyMaintenance, OccupancyAvailable, true},
		{OccupancyOccupied, OccupancyMaintenance, false},
		{OccupancyOccupied, OccupancyOccupied, false},
		{OccupancyAvailable, OccupancyOccupied, false},
		{OccupancyMaintenance, OccupancyOccupied, false},
		{OccupancyOccupied, OccupancyAvailable, false},
		{OccupancyAvailable, OccupancyAvailable, false},
	}
	for _, tc := range cases {
		err := ValidateDirectStatusChange(tc.from, tc.to)
		if tc.ok && err != nil {
			t.Errorf("%s -> %s: unexpected error %v", tc.from, tc.to, err)
		}
		if !tc.ok {
			var ite *InvalidTransitionError
			if !errors.As(err, &ite) {
				t.Errorf("%s -> %s: expected InvalidTransitionError, got %v", tc.from, tc.to, err)
			}
		}
	}
}

func TestOccupyAndVacate(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := &Property{OccupancyStatus: OccupancyAvailable, AvailableSince: &now}

	if err := p.Occupy(now); err != nil {
		t.Fatalf("occupy failed: %v", err)
	}
	if p.OccupancyStatus != OccupancyOccupied || p.AvailableSince != nil {
		t.Fatalf("expected occupied with no available_since, got %s %v", p.OccupancyStatus, p.AvailableSince)
	}
	if err := p.Occupy(now); !errors.Is(err, ErrPropertyNoLongerAvailable) {
		t.Fatalf("expected ErrPropertyNoLongerAvailable, got %v", err)
	}

	later := now.Add(48 * time.Hour)
	if err := p.Vacate(later); err != nil {
		t.Fatalf("vacate failed: %v", err)
	}
	if p.OccupancyStatus != OccupancyAvailable || p.AvailableSince == nil || !p.AvailableSince.Equal(later) {
		t.Fatalf("expected available since %v, got %s %v", later, p.OccupancyStatus, p.AvailableSince)
	}
}

func TestContractTerminate(t *testing.T) {
	now := time.Now()
	c := &Contract{Status: ContractActive}
	if err := c.Terminate(now); err != nil {
		t.Fatalf("terminate failed: %v", err)
	}
	if c.Status != ContractTerminated || c.TerminatedAt == nil {
		t.Fatalf("expected terminated contract")
	}
	if err := c.Terminate(now); !errors.Is(err, ErrAlreadyTerminated) {
		t.Fatalf("expected ErrAlreadyTerminated, got %v", err)
	}

	expired := &Contract{Status: ContractExpired}
	var ite *InvalidTransitionError
	if err := expired.Terminate(now); !errors.As(err, &ite) {
		t.Fatalf("expected InvalidTransitionError for expired contract, got %v", err)
	}
}

func TestTermsValidate(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	good := Terms{StartDate: start, EndDate: start.AddDate(1, 0, 0), MonthlyAmount: 1000, Currency: "EUR", PayDay: 5}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected valid terms, got %v", err)
	}

	bad := []Terms{
		{StartDate: start, EndDate: start, MonthlyAmount: 1000, Currency: "EUR", PayDay: 5},
		{StartDate: start, EndDate: start.AddDate(1, 0, 0), MonthlyAmount: 1000, Currency: "EUR", PayDay: 0},
		{StartDate: start, EndDate: start.AddDate(1, 0, 0), MonthlyAmount: 1000, Currency: "EUR", PayDay: 32},
		{StartDate: start, EndDate: start.AddDate(1, 0, 0), MonthlyAmount: 0, Currency: "EUR", PayDay: 5},
	}
	for i, terms := range bad {
		if err := terms.Validate(); !errors.Is(err, ErrValidation) {
			t.Errorf("case %d: expected ErrValidation, got %v", i, err)
		}
	}
}

func TestPaymentTransitions(t *testing.T) {
	allowed := map[[2]PaymentStatus]bool{
		{PaymentPending, PaymentPaid}:     true,
		{PaymentPending, PaymentLate}:     true,
		{PaymentLate, PaymentPaid}:        true,
		{PaymentPartial, PaymentPaid}:     true,
		{PaymentInReview, PaymentPaid}:    true,
		{PaymentInReview, PaymentPending}: true,
	}
	all := []PaymentStatus{PaymentPending, PaymentPaid, PaymentLate, PaymentPartial, PaymentInReview}
	for _, from := range all {
		for _, to := range all {
			err := ValidatePaymentTransition(from, to)
			if allowed[[2]PaymentStatus{from, to}] {
				if err != nil {
					t.Errorf("%s -> %s should be allowed: %v", from, to, err)
				}
				continue
			}
			if !errors.Is(err, ErrInvalidPaymentTransition) {
				t.Errorf("%s -> %s should be rejected, got %v", from, to, err)
			}
		}
	}
}

func TestSubmitProof(t *testing.T) {
	now := time.Now()
	p := &Payment{Status: PaymentPending}
	if err := p.SubmitProof("s3://proofs/1.pdf", now); err != nil {
		t.Fatalf("submit proof failed: %v", err)
	}
	if p.Status != PaymentInReview || p.ProofRef == "" || p.PaymentDate == nil {
		t.Fatalf("expected in_review with proof and date, got %+v", p)
	}
	if err := p.SubmitProof("again", now); !errors.Is(err, ErrInvalidPaymentTransition) {
		t.Fatalf("expected second proof to be rejected, got %v", err)
	}
}

func TestDueDateClampsToMonthEnd(t *testing.T) {
	due, err := DueDate("2024-02", 31)
	if err != nil {
		t.Fatalf("due date failed: %v", err)
	}
	if due.Day() != 29 || due.Month() != time.February {
		t.Fatalf("expected 2024-02-29, got %s", due.Format("2006-01-02"))
	}
	if _, err := DueDate("2024/02", 5); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for malformed period, got %v", err)
	}
}

func TestTicketTransitions(t *testing.T) {
	ok := [][2]TicketStatus{
		{TicketOpen, TicketInProgress},
		{TicketInProgress, TicketClosed},
		{TicketOpen, TicketClosed},
	}
	for _, tr := range ok {
		if err := ValidateTicketTransition(tr[0], tr[1]); err != nil {
			t.Errorf("%s -> %s should be allowed: %v", tr[0], tr[1], err)
		}
	}
	rejected := [][2]TicketStatus{
		{TicketClosed, TicketOpen},
		{TicketClosed, TicketInProgress},
		{TicketInProgress, TicketOpen},
		{TicketOpen, TicketOpen},
	}
	for _, tr := range rejected {
		var ite *InvalidTransitionError
		if err := ValidateTicketTransition(tr[0], tr[1]); !errors.As(err, &ite) {
			t.Errorf("%s -> %s should be rejected, got %v", tr[0], tr[1], err)
		}
	}
}

func TestNewPrincipal(t *testing.T) {
	p, err := NewPrincipal("u-1", RoleTenant)
	if err != nil {
		t.Fatalf("new principal failed: %v", err)
	}
	if _, ok := p.(Tenant); !ok || p.ID() != "u-1" {
		t.Fatalf("expected Tenant principal, got %#v", p)
	}
	if _, err := NewPrincipal("u-1", Role("landlord")); err == nil {
		t.Fatalf("expected unknown role error")
	}
	if _, err := NewPrincipal("", RoleOwner); err == nil {
		t.Fatalf("expected empty id error")
	}
}
