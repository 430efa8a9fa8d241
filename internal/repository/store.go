package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/aryan0dhankhar/rentledger/internal/domain"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scannable abstracts *sql.Row and *sql.Rows for shared scan helpers
type scannable interface {
	Scan(dest ...any) error
}

// PostgresStore implements domain.Store on top of database/sql and lib/pq
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore creates a store over an open connection pool
func NewPostgresStore(db *sql.DB, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{db: db, logger: logger}
}

// Repos returns repositories bound to the pool (no transaction)
func (s *PostgresStore) Repos() domain.Repositories {
	return s.bind(s.db)
}

// WithinTx runs fn inside one transaction. Any error or panic from fn rolls
// the transaction back; the commit result is classified like any other write.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.Repositories) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("begin tx", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				s.logger.Error("failed to rollback transaction",
					slog.String("error", rbErr.Error()),
				)
			}
		}
	}()

	if err = fn(ctx, s.bind(tx)); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return classify("commit", err)
	}
	return nil
}

// Ping checks database connectivity
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) bind(q dbtx) domain.Repositories {
	return domain.Repositories{
		Properties: &PostgresPropertyRepository{db: q, logger: s.logger},
		Contracts:  &PostgresContractRepository{db: q, logger: s.logger},
		Payments:   &PostgresPaymentRepository{db: q, logger: s.logger},
		Tickets:    &PostgresTicketRepository{db: q, logger: s.logger},
		Tenants:    &PostgresTenantRepository{db: q, logger: s.logger},
		Users:      &PostgresUserRepository{db: q, logger: s.logger},
	}
}
