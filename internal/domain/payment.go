package domain

import (
	"fmt"
	"strings"
	"time"
)

// PaymentStatus tracks the reconciliation state of a rent payment
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentLate     PaymentStatus = "late"
	PaymentPartial  PaymentStatus = "partial"
	PaymentInReview PaymentStatus = "in_review"
)

// Valid reports whether s is a known payment status
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentLate, PaymentPartial, PaymentInReview:
		return true
	}
	return false
}

// paymentTransitions is the adjacency set for owner reconciliation
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:  {PaymentPaid, PaymentLate},
	PaymentLate:     {PaymentPaid},
	PaymentPartial:  {PaymentPaid},
	PaymentInReview: {PaymentPaid, PaymentPending},
}

// ValidatePaymentTransition checks a status change requested through reconciliation
func ValidatePaymentTransition(from, to PaymentStatus) error {
	for _, next := range paymentTransitions[from] {
		if next == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidPaymentTransition, from, to)
}

// PeriodLayout is the wire and storage format of a billing month
const PeriodLayout = "2006-01"

// ParsePeriod parses a billing month such as "2024-03"
func ParsePeriod(s string) (time.Time, error) {
	t, err := time.Parse(PeriodLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, invalid("period must be formatted as YYYY-MM")
	}
	return t, nil
}

// DueDate returns the day rent for period falls due, clamping payDay to the
// last day of shorter months.
func DueDate(period string, payDay int) (time.Time, error) {
	start, err := ParsePeriod(period)
	if err != nil {
		return time.Time{}, err
	}
	lastDay := start.AddDate(0, 1, -1).Day()
	if payDay > lastDay {
		payDay = lastDay
	}
	if payDay < 1 {
		payDay = 1
	}
	return time.Date(start.Year(), start.Month(), payDay, 0, 0, 0, 0, time.UTC), nil
}

// Payment is one billing month of rent under a contract
type Payment struct {
	ID          string        `json:"id"`
	ContractID  string        `json:"contractId"`
	Period      string        `json:"period"`
	Amount      float64       `json:"amount"`
	Status      PaymentStatus `json:"status"`
	PaymentDate *time.Time    `json:"paymentDate,omitempty"`
	ProofRef    string        `json:"proofRef,omitempty"`
	Notes       string        `json:"notes,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// PaymentUpdate enumerates the fields an owner may change during reconciliation
type PaymentUpdate struct {
	Amount *float64
	Notes  *string
	Status *PaymentStatus
}

// Validate checks a payment before it is recorded
func (p *Payment) Validate() error {
	if _, err := ParsePeriod(p.Period); err != nil {
		return err
	}
	if p.Amount <= 0 {
		return invalid("amount must be positive")
	}
	if !p.Status.Valid() {
		return invalid("unknown payment status %q", p.Status)
	}
	return nil
}

// SubmitProof records a proof-of-payment and moves the payment into review
func (p *Payment) SubmitProof(ref string, now time.Time) error {
	if strings.TrimSpace(ref) == "" {
		return invalid("proof reference is required")
	}
	if p.Status != PaymentPending && p.Status != PaymentLate {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidPaymentTransition, p.Status, PaymentInReview)
	}
	p.ProofRef = ref
	p.PaymentDate = &now
	p.Status = PaymentInReview
	p.UpdatedAt = now
	return nil
}

// Reconcile applies an owner update, validating any status move
func (p *Payment) Reconcile(u PaymentUpdate, now time.Time) error {
	if u.Status != nil && *u.Status != p.Status {
		if err := ValidatePaymentTransition(p.Status, *u.Status); err != nil {
			return err
		}
		if *u.Status == PaymentPaid && p.PaymentDate == nil {
			p.PaymentDate = &now
		}
		p.Status = *u.Status
	}
	if u.Amount != nil {
		if *u.Amount <= 0 {
			return invalid("amount must be positive")
		}
		p.Amount = *u.Amount
	}
	if u.Notes != nil {
		p.Notes = *u.Notes
	}
	p.UpdatedAt = now
	return nil
}

// OverdueCandidate pairs a pending payment with its contract's pay day
type OverdueCandidate struct {
	Payment *Payment
	PayDay  int
}
