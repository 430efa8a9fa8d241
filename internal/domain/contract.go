package domain

import (
	"strings"
	"time"
)

// ContractStatus is the lifecycle state of a lease
type ContractStatus string

const (
	ContractActive     ContractStatus = "active"
	ContractExpired    ContractStatus = "expired"
	ContractTerminated ContractStatus = "terminated"
	ContractRenewed    ContractStatus = "renewed"
)

// Terms are the commercial conditions of a lease
type Terms struct {
	StartDate     time.Time `json:"startDate"`
	EndDate       time.Time `json:"endDate"`
	MonthlyAmount float64   `json:"monthlyAmount"`
	Currency      string    `json:"currency"`
	PayDay        int       `json:"payDay"`
}

// Validate checks the terms before a contract is created
func (t Terms) Validate() error {
	if t.StartDate.IsZero() || t.EndDate.IsZero() {
		return invalid("start and end dates are required")
	}
	if !t.EndDate.After(t.StartDate) {
		return invalid("end date must be after start date")
	}
	if t.PayDay < 1 || t.PayDay > 31 {
		return invalid("pay day must be between 1 and 31")
	}
	if t.MonthlyAmount <= 0 {
		return invalid("monthly amount must be positive")
	}
	if len(strings.TrimSpace(t.Currency)) != 3 {
		return invalid("currency must be a 3-letter code")
	}
	return nil
}

// Document is a file reference attached to a contract
type Document struct {
	Name    string    `json:"name"`
	Ref     string    `json:"ref"`
	AddedAt time.Time `json:"addedAt"`
}

// Contract is a lease binding a tenant to a property
type Contract struct {
	ID           string         `json:"id"`
	PropertyID   string         `json:"propertyId"`
	TenantID     string         `json:"tenantId"`
	Terms        Terms          `json:"terms"`
	Status       ContractStatus `json:"status"`
	Documents    []Document     `json:"documents"`
	TerminatedAt *time.Time     `json:"terminatedAt,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// Terminate ends an active lease. A second call reports ErrAlreadyTerminated
// so callers never re-apply the property side effect.
func (c *Contract) Terminate(now time.Time) error {
	switch c.Status {
	case ContractActive:
		c.Status = ContractTerminated
		c.TerminatedAt = &now
		c.UpdatedAt = now
		return nil
	case ContractTerminated:
		return ErrAlreadyTerminated
	default:
		return &InvalidTransitionError{Entity: "contract", From: string(c.Status), To: string(ContractTerminated)}
	}
}

// Billable reports whether payments may be recorded against the contract.
// Expired contracts still accept payments for historical periods.
func (c *Contract) Billable() bool {
	return c.Status == ContractActive || c.Status == ContractExpired
}

// Validate checks a document before it is attached
func (d Document) Validate() error {
	if strings.TrimSpace(d.Ref) == "" {
		return invalid("document ref is required")
	}
	return nil
}
