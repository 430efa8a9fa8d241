package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aryan0dhankhar/rentledger/internal/domain"
)

const contractColumns = `id, property_id, tenant_id, start_date, end_date, monthly_amount, currency,
	pay_day, status, documents, terminated_at, created_at, updated_at`

// PostgresContractRepository implements domain.ContractRepository using PostgreSQL
type PostgresContractRepository struct {
	db     dbtx
	logger *slog.Logger
}

// Create inserts a contract. The partial unique index on active contracts
// turns a lost creation race into ErrPropertyNoLongerAvailable.
func (r *PostgresContractRepository) Create(ctx context.Context, c *domain.Contract) error {
	docs, err := json.Marshal(orEmpty(c.Documents))
	if err != nil {
		return fmt.Errorf("failed to marshal documents: %w", err)
	}

	query := `
		INSERT INTO contracts (id, property_id, tenant_id, start_date, end_date, monthly_amount,
			currency, pay_day, status, documents)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`
	err = r.db.QueryRowContext(ctx, query,
		c.ID, c.PropertyID, c.TenantID,
		c.Terms.StartDate, c.Terms.EndDate, c.Terms.MonthlyAmount, c.Terms.Currency, c.Terms.PayDay,
		string(c.Status), docs,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		r.logger.Warn("failed to create contract",
			slog.String("property_id", c.PropertyID),
			slog.String("tenant_id", c.TenantID),
			slog.String("error", err.Error()),
		)
		return classify("create contract", err)
	}
	return nil
}

// GetByID retrieves a contract by ID
func (r *PostgresContractRepository) GetByID(ctx context.Context, id string) (*domain.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE id = $1`
	c, err := scanContract(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, classify("get contract", err)
	}
	return c, nil
}

// GetByIDForUpdate retrieves a contract and locks its row
func (r *PostgresContractRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE id = $1 FOR UPDATE`
	c, err := scanContract(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, classify("lock contract", err)
	}
	return c, nil
}

// ListByProperty returns the contracts of a property, newest first
func (r *PostgresContractRepository) ListByProperty(ctx context.Context, propertyID string) ([]*domain.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE property_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, "list contracts by property", query, propertyID)
}

// ListByTenant returns the contracts of a tenant, newest first
func (r *PostgresContractRepository) ListByTenant(ctx context.Context, tenantID string) ([]*domain.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE tenant_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, "list contracts by tenant", query, tenantID)
}

// UpdateStatus moves the contract status if it still equals from
func (r *PostgresContractRepository) UpdateStatus(ctx context.Context, id string, from, to domain.ContractStatus, terminatedAt *time.Time) error {
	query := `
		UPDATE contracts
		SET status = $1, terminated_at = $2, updated_at = now()
		WHERE id = $3 AND status = $4
	`
	res, err := r.db.ExecContext(ctx, query, string(to), nullTime(terminatedAt), id, string(from))
	return expectOne(res, err, "update contract status", domain.ErrConflict)
}

// AddDocument appends a document reference to the contract
func (r *PostgresContractRepository) AddDocument(ctx context.Context, id string, doc domain.Document) error {
	payload, err := json.Marshal([]domain.Document{doc})
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	query := `
		UPDATE contracts
		SET documents = documents || $1::jsonb, updated_at = now()
		WHERE id = $2
	`
	res, err := r.db.ExecContext(ctx, query, payload, id)
	return expectOne(res, err, "add contract document", domain.ErrNotFound)
}

// HasActiveForTenant reports whether the tenant holds the active contract on the property
func (r *PostgresContractRepository) HasActiveForTenant(ctx context.Context, propertyID, tenantID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM contracts
			WHERE property_id = $1 AND tenant_id = $2 AND status = 'active'
		)
	`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, propertyID, tenantID).Scan(&exists); err != nil {
		return false, classify("check active contract", err)
	}
	return exists, nil
}

// TenantLinkedToOwner reports whether any contract links the tenant to the owner's properties
func (r *PostgresContractRepository) TenantLinkedToOwner(ctx context.Context, tenantID, ownerID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM contracts c
			JOIN properties p ON p.id = c.property_id
			WHERE c.tenant_id = $1 AND p.owner_id = $2
		)
	`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, tenantID, ownerID).Scan(&exists); err != nil {
		return false, classify("check tenant owner link", err)
	}
	return exists, nil
}

func (r *PostgresContractRepository) list(ctx context.Context, op, query string, args ...any) ([]*domain.Contract, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	var out []*domain.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, classify(op, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return out, nil
}

func scanContract(row scannable) (*domain.Contract, error) {
	var (
		c            domain.Contract
		status       string
		docs         []byte
		terminatedAt sql.NullTime
	)
	err := row.Scan(
		&c.ID, &c.PropertyID, &c.TenantID,
		&c.Terms.StartDate, &c.Terms.EndDate, &c.Terms.MonthlyAmount, &c.Terms.Currency, &c.Terms.PayDay,
		&status, &docs, &terminatedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Status = domain.ContractStatus(status)
	c.TerminatedAt = timePtr(terminatedAt)
	c.Documents = []domain.Document{}
	if len(docs) > 0 {
		if err := json.Unmarshal(docs, &c.Documents); err != nil {
			return nil, fmt.Errorf("failed to unmarshal documents: %w", err)
		}
	}
	return &c, nil
}

// orEmpty returns items unchanged if non-nil, or an empty slice if nil
func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
