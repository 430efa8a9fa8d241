package domain

import "fmt"

// Role identifies the kind of actor behind a request
type Role string

const (
	RoleOwner      Role = "owner"
	RoleTenant     Role = "tenant"
	RoleSuperAdmin Role = "superadmin"
)

// ParseRole converts a wire value into a Role
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleOwner, RoleTenant, RoleSuperAdmin:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Principal is the authenticated actor issuing a request.
// The set of implementations is closed: Owner, Tenant and SuperAdmin.
type Principal interface {
	ID() string
	Role() Role
	sealed()
}

// Owner is a landlord; it owns properties and everything chained below them.
type Owner struct{ UserID string }

func (o Owner) ID() string { return o.UserID }
func (Owner) Role() Role { return RoleOwner }
func (Owner) sealed() {}

// Tenant is a renter; its ID is also the ID of its tenant profile.
type Tenant struct{ UserID string }

func (t Tenant) ID() string { return t.UserID }
func (Tenant) Role() Role { return RoleTenant }
func (Tenant) sealed() {}

// SuperAdmin is the platform administrator.
type SuperAdmin struct{ UserID string }

func (s SuperAdmin) ID() string { return s.UserID }
func (SuperAdmin) Role() Role { return RoleSuperAdmin }
func (SuperAdmin) sealed() {}

// NewPrincipal builds the principal variant for a user id and role
func NewPrincipal(id string, role Role) (Principal, error) {
	if id == "" {
		return nil, fmt.Errorf("principal id required")
	}
	switch role {
	case RoleOwner:
		return Owner{UserID: id}, nil
	case RoleTenant:
		return Tenant{UserID: id}, nil
	case RoleSuperAdmin:
		return SuperAdmin{UserID: id}, nil
	default:
		return nil, fmt.Errorf("unknown role %q", role)
	}
}
