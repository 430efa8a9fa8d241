package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/aryan0dhankhar/rentledger/internal/domain"
)

// PostgresTenantRepository implements domain.TenantRepository using PostgreSQL
type PostgresTenantRepository struct {
	db     dbtx
	logger *slog.Logger
}

// Create creates a tenant profile. The ID is the owning user's ID.
func (r *PostgresTenantRepository) Create(ctx context.Context, tenant *domain.TenantProfile) error {
	query := `
		INSERT INTO tenants (id, full_name, email, phone, document_ref)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		tenant.ID, tenant.FullName, tenant.Email, nullString(tenant.Phone), nullString(tenant.DocumentRef),
	).Scan(&tenant.CreatedAt, &tenant.UpdatedAt)
	if err != nil {
		r.logger.Error("failed to create tenant",
			slog.String("id", tenant.ID),
			slog.String("error", err.Error()),
		)
		return classify("create tenant", err)
	}
	return nil
}

// GetByID retrieves a tenant by ID
func (r *PostgresTenantRepository) GetByID(ctx context.Context, id string) (*domain.TenantProfile, error) {
	var (
		t           domain.TenantProfile
		phone       sql.NullString
		documentRef sql.NullString
	)
	query := `
		SELECT id, full_name, email, phone, document_ref, created_at, updated_at
		FROM tenants
		WHERE id = $1
	`
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&t.ID, &t.FullName, &t.Email, &phone, &documentRef, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, classify("get tenant", err)
	}
	t.Phone = phone.String
	t.DocumentRef = documentRef.String
	return &t, nil
}

// Update updates an existing tenant
func (r *PostgresTenantRepository) Update(ctx context.Context, tenant *domain.TenantProfile) error {
	query := `
		UPDATE tenants
		SET full_name = $1, phone = $2, document_ref = $3, updated_at = now()
		WHERE id = $4
		RETURNING updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		tenant.FullName, nullString(tenant.Phone), nullString(tenant.DocumentRef), tenant.ID,
	).Scan(&tenant.UpdatedAt)
	if err != nil {
		return classify("update tenant", err)
	}
	return nil
}
