package security

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aryan0dhankhar/rentledger/internal/domain"
	"github.com/aryan0dhankhar/rentledger/internal/observability/metrics"
	"github.com/aryan0dhankhar/rentledger/pkg/cache"
)

// Target names the record an action applies to. Existing records are
// resolved from storage; drafts carry a chain the caller already resolved.
type Target struct {
	Kind  ResourceKind
	ID    string
	Draft *Chain
}

// Existing targets a stored record
func Existing(kind ResourceKind, id string) Target {
	return Target{Kind: kind, ID: id}
}

// Draft targets a record that is about to be created
func Draft(kind ResourceKind, chain Chain) Target {
	return Target{Kind: kind, Draft: &chain}
}

// ownerCacheTTL bounds how long a property→owner mapping is reused.
// A property's owner is never reassigned, so the TTL only limits memory.
const ownerCacheTTL = 10 * time.Minute

// ChainResolver walks the ownership chain of a stored record
type ChainResolver struct {
	repos  domain.Repositories
	owners *cache.Cache[string]
}

// NewChainResolver creates a resolver reading through repos
func NewChainResolver(repos domain.Repositories) *ChainResolver {
	return &ChainResolver{repos: repos, owners: cache.New[string]()}
}

// Resolve returns the chain of target. For tenant profiles the owner is the
// asking owner when any contract links the two, and empty otherwise.
func (r *ChainResolver) Resolve(ctx context.Context, asker domain.Principal, target Target) (Chain, error) {
	if target.Draft != nil {
		return *target.Draft, nil
	}

	switch target.Kind {
	case KindProperty:
		owner, err := r.propertyOwner(ctx, target.ID)
		if err != nil {
			return Chain{}, err
		}
		return Chain{PropertyID: target.ID, OwnerID: owner}, nil

	case KindContract:
		c, err := r.repos.Contracts.GetByID(ctx, target.ID)
		if err != nil {
			return Chain{}, err
		}
		return r.fromProperty(ctx, c.PropertyID, c.TenantID)

	case KindPayment:
		p, err := r.repos.Payments.GetByID(ctx, target.ID)
		if err != nil {
			return Chain{}, err
		}
		c, err := r.repos.Contracts.GetByID(ctx, p.ContractID)
		if err != nil {
			return Chain{}, err
		}
		return r.fromProperty(ctx, c.PropertyID, c.TenantID)

	case KindTicket:
		t, err := r.repos.Tickets.GetByID(ctx, target.ID)
		if err != nil {
			return Chain{}, err
		}
		return r.fromProperty(ctx, t.PropertyID, t.TenantID)

	case KindTenant:
		if _, err := r.repos.Tenants.GetByID(ctx, target.ID); err != nil {
			return Chain{}, err
		}
		chain := Chain{TenantID: target.ID}
		if owner, ok := asker.(domain.Owner); ok {
			linked, err := r.repos.Contracts.TenantLinkedToOwner(ctx, target.ID, owner.UserID)
			if err != nil {
				return Chain{}, err
			}
			if linked {
				chain.OwnerID = owner.UserID
			}
		}
		return chain, nil
	}
	return Chain{}, fmt.Errorf("unknown resource kind %q", target.Kind)
}

func (r *ChainResolver) fromProperty(ctx context.Context, propertyID, tenantID string) (Chain, error) {
	owner, err := r.propertyOwner(ctx, propertyID)
	if err != nil {
		return Chain{}, err
	}
	return Chain{PropertyID: propertyID, OwnerID: owner, TenantID: tenantID}, nil
}

func (r *ChainResolver) propertyOwner(ctx context.Context, propertyID string) (string, error) {
	key := "property:" + propertyID
	if owner, ok := r.owners.Get(key); ok {
		return owner, nil
	}
	p, err := r.repos.Properties.GetByID(ctx, propertyID)
	if err != nil {
		return "", err
	}
	r.owners.Set(key, p.OwnerID, ownerCacheTTL)
	return p.OwnerID, nil
}

// RunJanitor drops expired owner entries every interval until ctx is done
func (r *ChainResolver) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.owners.Purge()
		}
	}
}

// Forget drops a cached property owner, e.g. after the property is deleted
func (r *ChainResolver) Forget(propertyID string) {
	r.owners.Delete("property:" + propertyID)
}

// Authorizer answers whether a principal may perform an action on a target.
// It never writes.
type Authorizer struct {
	resolver *ChainResolver
	logger   *slog.Logger
}

// NewAuthorizer creates an authorizer over a chain resolver
func NewAuthorizer(resolver *ChainResolver, logger *slog.Logger) *Authorizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authorizer{resolver: resolver, logger: logger}
}

// Authorize returns nil on allow, a *domain.AuthorizationDeniedError on
// deny, or the storage error met while resolving the chain.
func (a *Authorizer) Authorize(ctx context.Context, p domain.Principal, action Action, target Target) error {
	if p == nil {
		return domain.Denied(domain.DenyRoleNotPermitted)
	}

	var chain Chain
	if _, admin := p.(domain.SuperAdmin); !admin {
		// Tenants are rejected by the permission table without a storage read.
		if _, tenant := p.(domain.Tenant); tenant && !TenantMay(target.Kind, action) {
			return a.record(p, action, target, domain.Denied(domain.DenyRoleNotPermitted))
		}
		var err error
		chain, err = a.resolver.Resolve(ctx, p, target)
		if err != nil {
			return err
		}
	}

	return a.record(p, action, target, Decide(p, action, target.Kind, chain))
}

// Forget invalidates cached ownership for a property
func (a *Authorizer) Forget(propertyID string) {
	a.resolver.Forget(propertyID)
}

func (a *Authorizer) record(p domain.Principal, action Action, target Target, decision error) error {
	var denied *domain.AuthorizationDeniedError
	if errors.As(decision, &denied) {
		metrics.ObserveAuthz(string(p.Role()), string(target.Kind), string(action), false, string(denied.Reason))
		a.logger.Warn("authorization denied",
			slog.String("principal_id", p.ID()),
			slog.String("role", string(p.Role())),
			slog.String("action", string(action)),
			slog.String("kind", string(target.Kind)),
			slog.String("target_id", target.ID),
			slog.String("reason", string(denied.Reason)),
		)
		return decision
	}
	metrics.ObserveAuthz(string(p.Role()), string(target.Kind), string(action), true, "")
	return decision
}
