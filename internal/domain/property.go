package domain

import (
	"strings"
	"time"
)

// OccupancyStatus is the availability state of a property
type OccupancyStatus string

const (
	OccupancyAvailable   OccupancyStatus = "available"
	OccupancyOccupied    OccupancyStatus = "occupied"
	OccupancyMaintenance OccupancyStatus = "maintenance"
)

// Valid reports whether s is a known occupancy status
func (s OccupancyStatus) Valid() bool {
	switch s {
	case OccupancyAvailable, OccupancyOccupied, OccupancyMaintenance:
		return true
	}
	return false
}

// Address holds the postal address of a property
type Address struct {
	Line1      string `json:"line1"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// Property is a rentable unit owned by an Owner.
// OccupancyStatus is occupied iff exactly one active contract references it.
type Property struct {
	ID              string          `json:"id"`
	OwnerID         string          `json:"ownerId"`
	Address         Address         `json:"address"`
	RentalPrice     float64         `json:"rentalPrice"`
	Currency        string          `json:"currency"`
	OccupancyStatus OccupancyStatus `json:"occupancyStatus"`
	AvailableSince  *time.Time      `json:"availableSince,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// PropertyUpdate enumerates the fields an owner may edit directly.
// Occupancy only moves through the state machine.
type PropertyUpdate struct {
	Address     *Address
	RentalPrice *float64
	Currency    *string
}

// Validate checks the fields required on creation
func (p *Property) Validate() error {
	if strings.TrimSpace(p.Address.Line1) == "" || strings.TrimSpace(p.Address.City) == "" {
		return invalid("address line1 and city are required")
	}
	if p.RentalPrice <= 0 {
		return invalid("rental price must be positive")
	}
	if len(p.Currency) != 3 {
		return invalid("currency must be a 3-letter code")
	}
	return nil
}

// Apply merges an update into the property
func (p *Property) Apply(u PropertyUpdate) error {
	if u.Address != nil {
		p.Address = *u.Address
	}
	if u.RentalPrice != nil {
		p.RentalPrice = *u.RentalPrice
	}
	if u.Currency != nil {
		p.Currency = strings.ToUpper(*u.Currency)
	}
	return p.Validate()
}

// ValidateDirectStatusChange checks an owner-requested occupancy change.
// Only available <-> maintenance may be requested directly; occupancy changes
// belong to the contract lifecycle.
func ValidateDirectStatusChange(from, to OccupancyStatus) error {
	switch {
	case from == OccupancyAvailable && to == OccupancyMaintenance,
		from == OccupancyMaintenance && to == OccupancyAvailable:
		return nil
	default:
		return &InvalidTransitionError{Entity: "property", From: string(from), To: string(to)}
	}
}

// Occupy moves an available property to occupied and clears available_since
func (p *Property) Occupy(now time.Time) error {
	if p.OccupancyStatus != OccupancyAvailable {
		return ErrPropertyNoLongerAvailable
	}
	p.OccupancyStatus = OccupancyOccupied
	p.AvailableSince = nil
	p.UpdatedAt = now
	return nil
}

// Vacate moves an occupied property back to available, stamping available_since
func (p *Property) Vacate(now time.Time) error {
	if p.OccupancyStatus != OccupancyOccupied {
		return &InvalidTransitionError{Entity: "property", From: string(p.OccupancyStatus), To: string(OccupancyAvailable)}
	}
	p.OccupancyStatus = OccupancyAvailable
	p.AvailableSince = &now
	p.UpdatedAt = now
	return nil
}

// SetStatus applies a direct owner toggle between available and maintenance
func (p *Property) SetStatus(to OccupancyStatus, now time.Time) error {
	if err := ValidateDirectStatusChange(p.OccupancyStatus, to); err != nil {
		return err
	}
	p.OccupancyStatus = to
	if to == OccupancyAvailable {
		p.AvailableSince = &now
	} else {
		p.AvailableSince = nil
	}
	p.UpdatedAt = now
	return nil
}
