package domain

import (
	"strings"
	"time"
)

// TicketStatus is the workflow state of a maintenance ticket
type TicketStatus string

const (
	TicketOpen       TicketStatus = "open"
	TicketInProgress TicketStatus = "in_progress"
	TicketClosed     TicketStatus = "closed"
)

// Urgency ranks how quickly a ticket needs attention
type Urgency string

const (
	UrgencyLow       Urgency = "low"
	UrgencyMedium    Urgency = "medium"
	UrgencyHigh      Urgency = "high"
	UrgencyEmergency Urgency = "emergency"
)

// Valid reports whether u is a known urgency
func (u Urgency) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyEmergency:
		return true
	}
	return false
}

// ValidateTicketTransition checks a status change. Tickets never reopen.
func ValidateTicketTransition(from, to TicketStatus) error {
	switch {
	case from == TicketOpen && to == TicketInProgress,
		from == TicketInProgress && to == TicketClosed,
		from == TicketOpen && to == TicketClosed:
		return nil
	default:
		return &InvalidTransitionError{Entity: "ticket", From: string(from), To: string(to)}
	}
}

// TicketDetails is the caller-supplied description of a maintenance issue
type TicketDetails struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Urgency     Urgency `json:"urgency"`
}

// Validate checks ticket details on creation
func (d TicketDetails) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return invalid("title is required")
	}
	if !d.Urgency.Valid() {
		return invalid("unknown urgency %q", d.Urgency)
	}
	return nil
}

// Ticket is a maintenance request against a property.
// TenantID is empty when the owner filed the ticket directly.
type Ticket struct {
	ID           string        `json:"id"`
	PropertyID   string        `json:"propertyId"`
	TenantID     string        `json:"tenantId,omitempty"`
	Details      TicketDetails `json:"details"`
	Status       TicketStatus  `json:"status"`
	Contractor   string        `json:"contractor,omitempty"`
	CostEstimate *float64      `json:"costEstimate,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// TicketAssignment is the owner's dispatch of a contractor
type TicketAssignment struct {
	Contractor   string
	CostEstimate *float64
}

// Transition moves the ticket to a new status
func (t *Ticket) Transition(to TicketStatus, now time.Time) error {
	if err := ValidateTicketTransition(t.Status, to); err != nil {
		return err
	}
	t.Status = to
	t.UpdatedAt = now
	return nil
}

// Assign records a contractor on a ticket that is not closed
func (t *Ticket) Assign(a TicketAssignment, now time.Time) error {
	if t.Status == TicketClosed {
		return &InvalidTransitionError{Entity: "ticket", From: string(t.Status), To: "assigned"}
	}
	if strings.TrimSpace(a.Contractor) == "" {
		return invalid("contractor is required")
	}
	if a.CostEstimate != nil && *a.CostEstimate < 0 {
		return invalid("cost estimate cannot be negative")
	}
	t.Contractor = a.Contractor
	t.CostEstimate = a.CostEstimate
	t.UpdatedAt = now
	return nil
}
