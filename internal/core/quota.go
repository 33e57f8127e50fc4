package core

import (
	"context"

	"github.com/opennode/waldur-core-sub000/internal/model"
	"github.com/opennode/waldur-core-sub000/internal/quota"
)

// QuotaAdmin reads and edits quota limits. *quota.Gate satisfies it.
type QuotaAdmin interface {
	Get(ctx context.Context, scope model.Scope) ([]model.Quota, error)
	SetLimit(ctx context.Context, scope model.Scope, name string, limit float64, origin quota.Origin) error
}

type QuotaService struct {
	quotas QuotaAdmin
}

func NewQuotaService(quotas QuotaAdmin) *QuotaService {
	return &QuotaService{quotas: quotas}
}

var quotaScopes = map[model.ScopeType]bool{
	model.ScopeCustomer: true,
	model.ScopeProject:  true,
	model.ScopeLink:     true,
	model.ScopeSettings: true,
}

func checkScope(scope model.Scope) error {
	if !quotaScopes[scope.Type] {
		return invalid("unknown quota scope %q", scope.Type)
	}
	if scope.ID == "" {
		return invalid("quota scope needs an id")
	}
	return nil
}

func (s *QuotaService) Get(ctx context.Context, scope model.Scope) ([]model.Quota, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	return s.quotas.Get(ctx, scope)
}

// SetLimit changes a limit on behalf of a user. A limit below current
// usage is accepted and blocks further growth only. Negative limits mean
// unlimited.
func (s *QuotaService) SetLimit(ctx context.Context, scope model.Scope, name string, limit float64) error {
	if err := checkScope(scope); err != nil {
		return err
	}
	return s.quotas.SetLimit(ctx, scope, name, limit, quota.OriginUser)
}
