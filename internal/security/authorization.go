package security

import (
	"github.com/aryan0dhankhar/rentledger/internal/domain"
)

// ResourceKind identifies the kind of record being accessed
type ResourceKind string

const (
	KindProperty ResourceKind = "property"
	KindContract ResourceKind = "contract"
	KindPayment  ResourceKind = "payment"
	KindTicket   ResourceKind = "ticket"
	KindTenant   ResourceKind = "tenant"
)

// Action identifies what operation is being performed
type Action string

const (
	ActionRead        Action = "read"
	ActionCreate      Action = "create"
	ActionUpdate      Action = "update"
	ActionDelete      Action = "delete"
	ActionUploadProof Action = "upload_proof"
)

// tenantPermissions is the complete set of actions a tenant may attempt.
// Anything absent is RoleNotPermitted before ownership is even considered.
var tenantPermissions = map[ResourceKind][]Action{
	KindTenant:   {ActionRead, ActionUpdate},
	KindContract: {ActionRead},
	KindPayment:  {ActionRead, ActionUploadProof},
	KindTicket:   {ActionCreate, ActionRead},
}

// TenantMay reports whether the tenant permission table lists action on kind
func TenantMay(kind ResourceKind, action Action) bool {
	for _, a := range tenantPermissions[kind] {
		if a == action {
			return true
		}
	}
	return false
}

// Chain is the resolved ownership of a record: the property it hangs off,
// that property's owner, and the tenant it concerns (if any).
type Chain struct {
	PropertyID string
	OwnerID    string
	TenantID   string
}

// Decide is the pure authorization rule. A nil result is Allow; otherwise
// the error is a *domain.AuthorizationDeniedError carrying the reason.
func Decide(p domain.Principal, action Action, kind ResourceKind, chain Chain) error {
	switch pr := p.(type) {
	case domain.SuperAdmin:
		return nil
	case domain.Owner:
		if chain.OwnerID == "" || chain.OwnerID != pr.UserID {
			return domain.Denied(domain.DenyNotOwner)
		}
		return nil
	case domain.Tenant:
		if !TenantMay(kind, action) {
			return domain.Denied(domain.DenyRoleNotPermitted)
		}
		if chain.TenantID == "" || chain.TenantID != pr.UserID {
			return domain.Denied(domain.DenyNotSelf)
		}
		return nil
	default:
		return domain.Denied(domain.DenyRoleNotPermitted)
	}
}
