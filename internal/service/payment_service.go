package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/aryan0dhankhar/rentledger/internal/domain"
	"github.com/aryan0dhankhar/rentledger/internal/observability/metrics"
	"github.com/aryan0dhankhar/rentledger/internal/observability/tracing"
	"github.com/aryan0dhankhar/rentledger/internal/security"
	"github.com/aryan0dhankhar/rentledger/internal/security/audit"
)

// PaymentInput is the owner-supplied data for a new payment record.
// An empty Status means pending.
type PaymentInput struct {
	Period string
	Amount float64
	Status domain.PaymentStatus
	Notes  string
}

// PaymentService tracks rent payments through their reconciliation states
type PaymentService struct {
	base
}

// NewPaymentService creates a new payment service
func NewPaymentService(d Deps) *PaymentService {
	return &PaymentService{base: newBase(d, "payment_service")}
}

// Create records a payment for one billing period of a billable contract
func (s *PaymentService) Create(ctx context.Context, p domain.Principal, contractID string, in PaymentInput) (_ *domain.Payment, err error) {
	ctx, span := tracing.Start(ctx, "PaymentService.Create",
		attribute.String("contract.id", contractID),
		attribute.String("payment.period", in.Period),
	)
	defer func() { tracing.End(span, err) }()

	if err := s.authz.Authorize(ctx, p, security.ActionUpdate, security.Existing(security.KindContract, contractID)); err != nil {
		return nil, err
	}

	now := s.now()
	payment := &domain.Payment{
		ID:         s.newID(),
		ContractID: contractID,
		Period:     in.Period,
		Amount:     in.Amount,
		Status:     in.Status,
		Notes:      in.Notes,
	}
	if payment.Status == "" {
		payment.Status = domain.PaymentPending
	}
	if payment.Status == domain.PaymentPaid {
		payment.PaymentDate = &now
	}
	if err := payment.Validate(); err != nil {
		return nil, err
	}

	repos := s.store.Repos()
	contract, err := repos.Contracts.GetByID(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if !contract.Billable() {
		s.rejected("payment.create", domain.ErrContractNotBillable)
		return nil, fmt.Errorf("contract is %s: %w", contract.Status, domain.ErrContractNotBillable)
	}
	exists, err := repos.Payments.ExistsForPeriod(ctx, contractID, payment.Period)
	if err != nil {
		return nil, err
	}
	if exists {
		s.rejected("payment.create", domain.ErrDuplicatePeriod)
		return nil, fmt.Errorf("period %s: %w", payment.Period, domain.ErrDuplicatePeriod)
	}
	if err := repos.Payments.Create(ctx, payment); err != nil {
		s.rejected("payment.create", err)
		return nil, err
	}

	s.record(ctx, p, audit.ActionPaymentCreate, "payment recorded", map[string]string{
		"payment_id":  payment.ID,
		"contract_id": contractID,
		"period":      payment.Period,
		"status":      string(payment.Status),
	})
	return payment, nil
}

// UploadProof attaches proof of payment and moves the payment into review
func (s *PaymentService) UploadProof(ctx context.Context, p domain.Principal, paymentID, proofRef string) (_ *domain.Payment, err error) {
	ctx, span := tracing.Start(ctx, "PaymentService.UploadProof", attribute.String("payment.id", paymentID))
	defer func() { tracing.End(span, err) }()

	if err := s.authz.Authorize(ctx, p, security.ActionUploadProof, security.Existing(security.KindPayment, paymentID)); err != nil {
		return nil, err
	}

	repos := s.store.Repos()
	payment, err := repos.Payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	from := payment.Status
	if err := payment.SubmitProof(proofRef, s.now()); err != nil {
		s.rejected("payment.proof", err)
		return nil, err
	}
	if err := repos.Payments.Update(ctx, payment, from); err != nil {
		return nil, err
	}

	metrics.ObserveTransition("payment", string(from), string(payment.Status))
	s.record(ctx, p, audit.ActionPaymentProof, "proof of payment submitted", map[string]string{
		"payment_id": paymentID,
		"proof_ref":  proofRef,
	})
	return payment, nil
}

// Update reconciles a payment: amount, notes and a validated status move
func (s *PaymentService) Update(ctx context.Context, p domain.Principal, paymentID string, u domain.PaymentUpdate) (_ *domain.Payment, err error) {
	ctx, span := tracing.Start(ctx, "PaymentService.Update", attribute.String("payment.id", paymentID))
	defer func() { tracing.End(span, err) }()

	if err := s.authz.Authorize(ctx, p, security.ActionUpdate, security.Existing(security.KindPayment, paymentID)); err != nil {
		return nil, err
	}

	repos := s.store.Repos()
	payment, err := repos.Payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	from := payment.Status
	if err := payment.Reconcile(u, s.now()); err != nil {
		s.rejected("payment.update", err)
		return nil, err
	}
	if err := repos.Payments.Update(ctx, payment, from); err != nil {
		return nil, err
	}

	if payment.Status != from {
		metrics.ObserveTransition("payment", string(from), string(payment.Status))
	}
	s.record(ctx, p, audit.ActionPaymentUpdate, "payment reconciled", map[string]string{
		"payment_id": paymentID,
		"from":       string(from),
		"to":         string(payment.Status),
	})
	return payment, nil
}

// Get returns a payment visible to the principal
func (s *PaymentService) Get(ctx context.Context, p domain.Principal, paymentID string) (*domain.Payment, error) {
	if err := s.authz.Authorize(ctx, p, security.ActionRead, security.Existing(security.KindPayment, paymentID)); err != nil {
		return nil, err
	}
	return s.store.Repos().Payments.GetByID(ctx, paymentID)
}

// List returns the payments of a contract ordered by period
func (s *PaymentService) List(ctx context.Context, p domain.Principal, contractID string) ([]*domain.Payment, error) {
	if contractID == "" {
		return nil, fmt.Errorf("%w: contract_id is required", domain.ErrValidation)
	}
	if err := s.authz.Authorize(ctx, p, security.ActionRead, security.Existing(security.KindContract, contractID)); err != nil {
		return nil, err
	}
	return s.store.Repos().Payments.ListByContract(ctx, contractID)
}

// MarkOverdue moves pending payments whose due date plus grace has passed to
// late. It runs without a principal and records itself as the system actor.
func (s *PaymentService) MarkOverdue(ctx context.Context, grace time.Duration) (_ int, err error) {
	ctx, span := tracing.Start(ctx, "PaymentService.MarkOverdue")
	defer func() { tracing.End(span, err) }()

	repos := s.store.Repos()
	candidates, err := repos.Payments.ListOverdueCandidates(ctx)
	if err != nil {
		return 0, err
	}

	now := s.now()
	marked := 0
	for _, c := range candidates {
		due, err := domain.DueDate(c.Payment.Period, c.PayDay)
		if err != nil {
			s.logger.Warn("skipping payment with unparseable period",
				slog.String("payment_id", c.Payment.ID),
				slog.String("period", c.Payment.Period),
			)
			continue
		}
		if !now.After(due.Add(grace)) {
			continue
		}

		payment := c.Payment
		if err := payment.Reconcile(domain.PaymentUpdate{Status: ptr(domain.PaymentLate)}, now); err != nil {
			continue
		}
		err = repos.Payments.Update(ctx, payment, domain.PaymentPending)
		if errors.Is(err, domain.ErrConflict) {
			// Proof arrived or the owner reconciled since the listing.
			continue
		}
		if err != nil {
			return marked, err
		}

		marked++
		metrics.ObserveTransition("payment", string(domain.PaymentPending), string(domain.PaymentLate))
		s.record(ctx, nil, audit.ActionPaymentLate, "payment marked late", map[string]string{
			"payment_id":  payment.ID,
			"contract_id": payment.ContractID,
			"period":      payment.Period,
			"due_date":    due.Format(time.DateOnly),
		})
	}
	return marked, nil
}

func ptr[T any](v T) *T {
	return &v
}
