package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/aryan0dhankhar/rentledger/internal/domain"
)

// Constraint names declared in the migrations
const (
	constraintOneActiveContract = "contracts_one_active_per_property"
	constraintPaymentPeriod     = "payments_contract_period_key"
	constraintUserEmail         = "users_email_key"
)

// SQLSTATE codes handled explicitly
const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeInvalidTextRepr      = "22P02"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// classify translates driver errors into domain error kinds
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeUniqueViolation:
			switch pqErr.Constraint {
			case constraintOneActiveContract:
				return fmt.Errorf("%s: %w", op, domain.ErrPropertyNoLongerAvailable)
			case constraintPaymentPeriod:
				return fmt.Errorf("%s: %w", op, domain.ErrDuplicatePeriod)
			case constraintUserEmail:
				return fmt.Errorf("%s: %w", op, domain.ErrEmailTaken)
			}
		case codeForeignKeyViolation:
			return fmt.Errorf("%s: referenced record missing: %w", op, domain.ErrNotFound)
		case codeInvalidTextRepr:
			// A malformed uuid names no row.
			return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
		case codeSerializationFailure, codeDeadlockDetected:
			return &domain.StorageError{Op: op, Err: err, Transient: true}
		}
	}
	return &domain.StorageError{Op: op, Err: err}
}

// expectOne verifies that an Exec affected exactly one row
func expectOne(res sql.Result, err error, op string, missing error) error {
	if err != nil {
		return classify(op, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return classify(op, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, missing)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// conflictf reports a conditional write that matched no row
func conflictf(op string) error {
	return fmt.Errorf("%s: %w", op, domain.ErrConflict)
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
