package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/rentledger/internal/domain"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(db, nil), mock
}

func TestContractCreateMapsActiveIndexViolation(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("INSERT INTO contracts").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "contracts_one_active_per_property"})

	err := store.Repos().Contracts.Create(context.Background(), &domain.Contract{
		ID: "c1", PropertyID: "p1", TenantID: "t1", Status: domain.ContractActive,
	})
	assert.ErrorIs(t, err, domain.ErrPropertyNoLongerAvailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentCreateMapsPeriodViolation(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("INSERT INTO payments").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "payments_contract_period_key"})

	err := store.Repos().Payments.Create(context.Background(), &domain.Payment{
		ID: "pay1", ContractID: "c1", Period: "2024-03", Amount: 900, Status: domain.PaymentPending,
	})
	assert.ErrorIs(t, err, domain.ErrDuplicatePeriod)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserCreateMapsEmailViolation(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("INSERT INTO users").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "users_email_key"})

	err := store.Repos().Users.Create(context.Background(), &domain.User{ID: "u1", Email: "a@b.c"})
	assert.ErrorIs(t, err, domain.ErrEmailTaken)
}

func TestSerializationFailureIsTransient(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM properties WHERE id").
		WillReturnError(&pq.Error{Code: "40001"})

	_, err := store.Repos().Properties.GetByID(context.Background(), "p1")
	require.Error(t, err)
	assert.True(t, domain.IsTransient(err))
}

func TestGetByIDNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM tickets WHERE id").WillReturnError(sql.ErrNoRows)

	_, err := store.Repos().Tickets.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetByIDMalformedUUIDIsNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM properties WHERE id").
		WillReturnError(&pq.Error{Code: "22P02", Message: `invalid input syntax for type uuid: "abc"`})

	_, err := store.Repos().Properties.GetByID(context.Background(), "abc")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.False(t, domain.IsTransient(err))
}

func TestPropertyDeleteRestrictedByReferences(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("DELETE FROM properties").
		WillReturnError(&pq.Error{Code: "23503", Constraint: "contracts_property_id_fkey"})

	err := store.Repos().Properties.Delete(context.Background(), "p1")
	assert.ErrorIs(t, err, domain.ErrPropertyHasHistory)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateOccupancyConflictOnStaleStatus(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE properties").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Repos().Properties.UpdateOccupancy(context.Background(), "p1",
		domain.OccupancyAvailable, domain.OccupancyOccupied, nil)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestPaymentUpdateConflictWhenStatusMoved(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("UPDATE payments").WillReturnError(sql.ErrNoRows)

	err := store.Repos().Payments.Update(context.Background(),
		&domain.Payment{ID: "pay1", Amount: 100, Status: domain.PaymentPaid}, domain.PaymentPending)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestGetContractDecodesDocuments(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"id", "property_id", "tenant_id", "start_date", "end_date", "monthly_amount", "currency",
		"pay_day", "status", "documents", "terminated_at", "created_at", "updated_at",
	}).AddRow("c1", "p1", "t1", now, now.AddDate(1, 0, 0), 1200.0, "EUR",
		5, "active", []byte(`[{"name":"lease.pdf","ref":"s3://docs/lease.pdf","addedAt":"2024-03-01T00:00:00Z"}]`),
		nil, now, now)
	mock.ExpectQuery("SELECT (.+) FROM contracts WHERE id").WithArgs("c1").WillReturnRows(rows)

	c, err := store.Repos().Contracts.GetByID(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.ContractActive, c.Status)
	assert.Nil(t, c.TerminatedAt)
	require.Len(t, c.Documents, 1)
	assert.Equal(t, "s3://docs/lease.pdf", c.Documents[0].Ref)
}

func TestWithinTxCommits(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE contracts").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE properties").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	now := time.Now()
	err := store.WithinTx(context.Background(), func(ctx context.Context, tx domain.Repositories) error {
		if err := tx.Contracts.UpdateStatus(ctx, "c1", domain.ContractActive, domain.ContractTerminated, &now); err != nil {
			return err
		}
		return tx.Properties.UpdateOccupancy(ctx, "p1", domain.OccupancyOccupied, domain.OccupancyAvailable, &now)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE contracts").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE properties").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	now := time.Now()
	err := store.WithinTx(context.Background(), func(ctx context.Context, tx domain.Repositories) error {
		if err := tx.Contracts.UpdateStatus(ctx, "c1", domain.ContractActive, domain.ContractTerminated, &now); err != nil {
			return err
		}
		return tx.Properties.UpdateOccupancy(ctx, "p1", domain.OccupancyOccupied, domain.OccupancyAvailable, &now)
	})
	assert.True(t, errors.Is(err, domain.ErrConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTxRollsBackOnPanic(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = store.WithinTx(context.Background(), func(context.Context, domain.Repositories) error {
			panic("boom")
		})
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}
