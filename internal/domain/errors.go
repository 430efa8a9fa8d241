package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a conditional write lost against a concurrent change.
	ErrConflict = errors.New("conflict: record was modified concurrently")

	ErrValidation                = errors.New("validation failed")
	ErrDuplicatePeriod           = errors.New("a payment already exists for this period")
	ErrPropertyNoLongerAvailable = errors.New("property is no longer available")
	ErrPropertyOccupied          = errors.New("property is occupied")
	ErrPropertyHasHistory        = errors.New("property has contract or ticket history")
	ErrAlreadyTerminated         = errors.New("contract already terminated")
	ErrInvalidPaymentTransition  = errors.New("invalid payment status transition")
	ErrContractNotBillable       = errors.New("contract does not accept payments")
	ErrTenantNotOnLease          = errors.New("tenant has no active contract on this property")
	ErrEmailTaken                = errors.New("email already registered")
	ErrInvalidCredentials        = errors.New("invalid credentials")
)

// DenyReason explains an authorization denial. It is logged, never returned to clients.
type DenyReason string

const (
	DenyNotOwner         DenyReason = "NotOwner"
	DenyNotSelf          DenyReason = "NotSelf"
	DenyRoleNotPermitted DenyReason = "RoleNotPermitted"
)

// AuthorizationDeniedError is returned when a principal may not perform an action
type AuthorizationDeniedError struct {
	Reason DenyReason
}

func (e *AuthorizationDeniedError) Error() string {
	return fmt.Sprintf("authorization denied: %s", e.Reason)
}

// Denied builds an AuthorizationDeniedError
func Denied(reason DenyReason) error {
	return &AuthorizationDeniedError{Reason: reason}
}

// InvalidTransitionError reports a state change the entity's state machine forbids
type InvalidTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s transition: %s -> %s", e.Entity, e.From, e.To)
}

// StorageError wraps a failure of the storage collaborator.
// Transient failures (serialization conflicts, deadlocks) may be retried once.
type StorageError struct {
	Op        string
	Err       error
	Transient bool
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a storage failure worth retrying
func IsTransient(err error) bool {
	var se *StorageError
	return errors.As(err, &se) && se.Transient
}

// IsDenied reports whether err is an authorization denial
func IsDenied(err error) bool {
	var de *AuthorizationDeniedError
	return errors.As(err, &de)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
