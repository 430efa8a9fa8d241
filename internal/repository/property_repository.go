package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/aryan0dhankhar/rentledger/internal/domain"
)

const propertyColumns = `id, owner_id, address_line1, address_city, address_state, address_postal_code,
	address_country, rental_price, currency, occupancy_status, available_since, created_at, updated_at`

// PostgresPropertyRepository implements domain.PropertyRepository using PostgreSQL
type PostgresPropertyRepository struct {
	db     dbtx
	logger *slog.Logger
}

// Create inserts a new property
func (r *PostgresPropertyRepository) Create(ctx context.Context, p *domain.Property) error {
	query := `
		INSERT INTO properties (id, owner_id, address_line1, address_city, address_state,
			address_postal_code, address_country, rental_price, currency, occupancy_status, available_since)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		p.ID, p.OwnerID,
		p.Address.Line1, p.Address.City, p.Address.State, p.Address.PostalCode, p.Address.Country,
		p.RentalPrice, p.Currency, string(p.OccupancyStatus), nullTime(p.AvailableSince),
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		r.logger.Error("failed to create property",
			slog.String("owner_id", p.OwnerID),
			slog.String("error", err.Error()),
		)
		return classify("create property", err)
	}
	return nil
}

// GetByID retrieves a property by ID
func (r *PostgresPropertyRepository) GetByID(ctx context.Context, id string) (*domain.Property, error) {
	query := `SELECT ` + propertyColumns + ` FROM properties WHERE id = $1`
	p, err := scanProperty(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, classify("get property", err)
	}
	return p, nil
}

// GetByIDForUpdate retrieves a property and locks its row
func (r *PostgresPropertyRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Property, error) {
	query := `SELECT ` + propertyColumns + ` FROM properties WHERE id = $1 FOR UPDATE`
	p, err := scanProperty(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, classify("lock property", err)
	}
	return p, nil
}

// List returns every property
func (r *PostgresPropertyRepository) List(ctx context.Context) ([]*domain.Property, error) {
	query := `SELECT ` + propertyColumns + ` FROM properties ORDER BY created_at DESC`
	return r.list(ctx, "list properties", query)
}

// ListByOwner returns the properties of one owner
func (r *PostgresPropertyRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Property, error) {
	query := `SELECT ` + propertyColumns + ` FROM properties WHERE owner_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, "list properties by owner", query, ownerID)
}

// Update writes the owner-editable fields of a property
func (r *PostgresPropertyRepository) Update(ctx context.Context, p *domain.Property) error {
	query := `
		UPDATE properties
		SET address_line1 = $1, address_city = $2, address_state = $3, address_postal_code = $4,
			address_country = $5, rental_price = $6, currency = $7, updated_at = now()
		WHERE id = $8
		RETURNING updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		p.Address.Line1, p.Address.City, p.Address.State, p.Address.PostalCode, p.Address.Country,
		p.RentalPrice, p.Currency, p.ID,
	).Scan(&p.UpdatedAt)
	if err != nil {
		return classify("update property", err)
	}
	return nil
}

// UpdateOccupancy moves the occupancy status if it still equals from
func (r *PostgresPropertyRepository) UpdateOccupancy(ctx context.Context, id string, from, to domain.OccupancyStatus, availableSince *time.Time) error {
	query := `
		UPDATE properties
		SET occupancy_status = $1, available_since = $2, updated_at = now()
		WHERE id = $3 AND occupancy_status = $4
	`
	res, err := r.db.ExecContext(ctx, query, string(to), nullTime(availableSince), id, string(from))
	return expectOne(res, err, "update property occupancy", domain.ErrConflict)
}

// Delete removes a property
func (r *PostgresPropertyRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM properties WHERE id = $1`, id)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == codeForeignKeyViolation {
		return fmt.Errorf("delete property: %w", domain.ErrPropertyHasHistory)
	}
	return expectOne(res, err, "delete property", domain.ErrNotFound)
}

func (r *PostgresPropertyRepository) list(ctx context.Context, op, query string, args ...any) ([]*domain.Property, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to query properties",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
		return nil, classify(op, err)
	}
	defer rows.Close()

	var out []*domain.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, classify(op, err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return out, nil
}

func scanProperty(row scannable) (*domain.Property, error) {
	var (
		p              domain.Property
		status         string
		availableSince sql.NullTime
	)
	err := row.Scan(
		&p.ID, &p.OwnerID,
		&p.Address.Line1, &p.Address.City, &p.Address.State, &p.Address.PostalCode, &p.Address.Country,
		&p.RentalPrice, &p.Currency, &status, &availableSince, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.OccupancyStatus = domain.OccupancyStatus(status)
	p.AvailableSince = timePtr(availableSince)
	return &p, nil
}
