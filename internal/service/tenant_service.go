package service

import (
	"context"

	"github.com/aryan0dhankhar/rentledger/internal/domain"
	"github.com/aryan0dhankhar/rentledger/internal/security"
	"github.com/aryan0dhankhar/rentledger/internal/security/audit"
)

// TenantService exposes tenant profiles to the tenant, linked owners and superadmins
type TenantService struct {
	base
}

func NewTenantService(d Deps) *TenantService {
	return &TenantService{base: newBase(d, "tenant_service")}
}

func (s *TenantService) Get(ctx context.Context, p domain.Principal, tenantID string) (*domain.TenantProfile, error) {
	if err := s.authz.Authorize(ctx, p, security.ActionRead, security.Existing(security.KindTenant, tenantID)); err != nil {
		return nil, err
	}
	return s.store.Repos().Tenants.GetByID(ctx, tenantID)
}

func (s *TenantService) Update(ctx context.Context, p domain.Principal, tenantID string, u domain.TenantUpdate) (*domain.TenantProfile, error) {
	if err := s.authz.Authorize(ctx, p, security.ActionUpdate, security.Existing(security.KindTenant, tenantID)); err != nil {
		return nil, err
	}

	repos := s.store.Repos()
	tenant, err := repos.Tenants.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if err := tenant.Apply(u, s.now()); err != nil {
		return nil, err
	}
	if err := repos.Tenants.Update(ctx, tenant); err != nil {
		return nil, err
	}

	s.record(ctx, p, audit.ActionTenantUpdate, "tenant profile updated", map[string]string{"tenant_id": tenantID})
	return tenant, nil
}
