package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/aryan0dhankhar/rentledger/internal/domain"
)

const ticketColumns = `id, property_id, tenant_id, title, description, urgency, status,
	contractor, cost_estimate, created_at, updated_at`

// PostgresTicketRepository implements domain.TicketRepository using PostgreSQL
type PostgresTicketRepository struct {
	db     dbtx
	logger *slog.Logger
}

// Create inserts a ticket
func (r *PostgresTicketRepository) Create(ctx context.Context, t *domain.Ticket) error {
	query := `
		INSERT INTO tickets (id, property_id, tenant_id, title, description, urgency, status, contractor, cost_estimate)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		t.ID, t.PropertyID, nullString(t.TenantID),
		t.Details.Title, t.Details.Description, string(t.Details.Urgency), string(t.Status),
		nullString(t.Contractor), nullFloat(t.CostEstimate),
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		r.logger.Warn("failed to create ticket",
			slog.String("property_id", t.PropertyID),
			slog.String("error", err.Error()),
		)
		return classify("create ticket", err)
	}
	return nil
}

// GetByID retrieves a ticket by ID
func (r *PostgresTicketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1`
	t, err := scanTicket(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, classify("get ticket", err)
	}
	return t, nil
}

// ListByProperty returns the tickets of a property, newest first
func (r *PostgresTicketRepository) ListByProperty(ctx context.Context, propertyID string) ([]*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE property_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, "list tickets by property", query, propertyID)
}

// ListByTenant returns the tickets filed by a tenant, newest first
func (r *PostgresTicketRepository) ListByTenant(ctx context.Context, tenantID string) ([]*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE tenant_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, "list tickets by tenant", query, tenantID)
}

// Update writes status and assignment if the stored status equals expected
func (r *PostgresTicketRepository) Update(ctx context.Context, t *domain.Ticket, expected domain.TicketStatus) error {
	query := `
		UPDATE tickets
		SET status = $1, contractor = $2, cost_estimate = $3, updated_at = now()
		WHERE id = $4 AND status = $5
		RETURNING updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		string(t.Status), nullString(t.Contractor), nullFloat(t.CostEstimate), t.ID, string(expected),
	).Scan(&t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return conflictf("update ticket")
		}
		return classify("update ticket", err)
	}
	return nil
}

func (r *PostgresTicketRepository) list(ctx context.Context, op, query string, args ...any) ([]*domain.Ticket, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	var out []*domain.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, classify(op, err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return out, nil
}

func scanTicket(row scannable) (*domain.Ticket, error) {
	var (
		t          domain.Ticket
		tenantID   sql.NullString
		urgency    string
		status     string
		contractor sql.NullString
		cost       sql.NullFloat64
	)
	err := row.Scan(
		&t.ID, &t.PropertyID, &tenantID, &t.Details.Title, &t.Details.Description,
		&urgency, &status, &contractor, &cost, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.TenantID = tenantID.String
	t.Details.Urgency = domain.Urgency(urgency)
	t.Status = domain.TicketStatus(status)
	t.Contractor = contractor.String
	if cost.Valid {
		v := cost.Float64
		t.CostEstimate = &v
	}
	return &t, nil
}
