package domain

import (
	"strings"
	"time"
)

// User holds the credentials behind a principal
type User struct {
	ID           string // UUID; for tenants this is also the tenant profile ID
	Email        string // Unique email address
	PasswordHash string // Bcrypt hashed password (not returned in API)
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
	IsActive     bool
}

// TenantProfile is a renter's contact and identity record
type TenantProfile struct {
	ID          string    `json:"id"`
	FullName    string    `json:"fullName"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone,omitempty"`
	DocumentRef string    `json:"documentRef,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TenantUpdate enumerates the profile fields that may be edited
type TenantUpdate struct {
	FullName    *string
	Phone       *string
	DocumentRef *string
}

// Apply merges an update into the profile
func (t *TenantProfile) Apply(u TenantUpdate, now time.Time) error {
	if u.FullName != nil {
		if strings.TrimSpace(*u.FullName) == "" {
			return invalid("full name cannot be empty")
		}
		t.FullName = *u.FullName
	}
	if u.Phone != nil {
		t.Phone = *u.Phone
	}
	if u.DocumentRef != nil {
		t.DocumentRef = *u.DocumentRef
	}
	t.UpdatedAt = now
	return nil
}
