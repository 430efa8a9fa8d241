package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/aryan0dhankhar/rentledger/internal/domain"
)

const paymentColumns = `id, contract_id, period, amount, status, payment_date, proof_ref, notes, created_at, updated_at`

// PostgresPaymentRepository implements domain.PaymentRepository using PostgreSQL
type PostgresPaymentRepository struct {
	db     dbtx
	logger *slog.Logger
}

// Create records a payment. UNIQUE (contract_id, period) backs ErrDuplicatePeriod.
func (r *PostgresPaymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	query := `
		INSERT INTO payments (id, contract_id, period, amount, status, payment_date, proof_ref, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		p.ID, p.ContractID, p.Period, p.Amount, string(p.Status),
		nullTime(p.PaymentDate), nullString(p.ProofRef), nullString(p.Notes),
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		r.logger.Warn("failed to create payment",
			slog.String("contract_id", p.ContractID),
			slog.String("period", p.Period),
			slog.String("error", err.Error()),
		)
		return classify("create payment", err)
	}
	return nil
}

// GetByID retrieves a payment by ID
func (r *PostgresPaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	p, err := scanPayment(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, classify("get payment", err)
	}
	return p, nil
}

// ListByContract returns a contract's payments ordered by period
func (r *PostgresPaymentRepository) ListByContract(ctx context.Context, contractID string) ([]*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE contract_id = $1 ORDER BY period`
	rows, err := r.db.QueryContext(ctx, query, contractID)
	if err != nil {
		return nil, classify("list payments", err)
	}
	defer rows.Close()

	var out []*domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, classify("list payments", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list payments", err)
	}
	return out, nil
}

// ExistsForPeriod reports whether the contract already has a payment for period
func (r *PostgresPaymentRepository) ExistsForPeriod(ctx context.Context, contractID, period string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM payments WHERE contract_id = $1 AND period = $2)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, contractID, period).Scan(&exists); err != nil {
		return false, classify("check payment period", err)
	}
	return exists, nil
}

// Update writes the mutable payment fields if the stored status equals expected
func (r *PostgresPaymentRepository) Update(ctx context.Context, p *domain.Payment, expected domain.PaymentStatus) error {
	query := `
		UPDATE payments
		SET amount = $1, status = $2, payment_date = $3, proof_ref = $4, notes = $5, updated_at = now()
		WHERE id = $6 AND status = $7
		RETURNING updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		p.Amount, string(p.Status), nullTime(p.PaymentDate), nullString(p.ProofRef), nullString(p.Notes),
		p.ID, string(expected),
	).Scan(&p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return conflictf("update payment")
		}
		return classify("update payment", err)
	}
	return nil
}

// ListOverdueCandidates returns pending payments of billable contracts with their pay day
func (r *PostgresPaymentRepository) ListOverdueCandidates(ctx context.Context) ([]domain.OverdueCandidate, error) {
	query := `
		SELECT p.id, p.contract_id, p.period, p.amount, p.status, p.payment_date, p.proof_ref,
			p.notes, p.created_at, p.updated_at, c.pay_day
		FROM payments p
		JOIN contracts c ON c.id = p.contract_id
		WHERE p.status = 'pending' AND c.status IN ('active', 'expired')
		ORDER BY p.period
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, classify("list overdue candidates", err)
	}
	defer rows.Close()

	var out []domain.OverdueCandidate
	for rows.Next() {
		var payDay int
		p, err := scanPayment(rows, &payDay)
		if err != nil {
			return nil, classify("list overdue candidates", err)
		}
		out = append(out, domain.OverdueCandidate{Payment: p, PayDay: payDay})
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list overdue candidates", err)
	}
	return out, nil
}

// scanPayment scans the payment columns followed by any extra destinations
func scanPayment(row scannable, extra ...any) (*domain.Payment, error) {
	var (
		p           domain.Payment
		status      string
		paymentDate sql.NullTime
		proofRef    sql.NullString
		notes       sql.NullString
	)
	dest := []any{
		&p.ID, &p.ContractID, &p.Period, &p.Amount, &status,
		&paymentDate, &proofRef, &notes, &p.CreatedAt, &p.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	p.Status = domain.PaymentStatus(status)
	p.PaymentDate = timePtr(paymentDate)
	p.ProofRef = proofRef.String
	p.Notes = notes.String
	return &p, nil
}
