package core

import (
	"context"

	"github.com/opennode/waldur-core-sub000/internal/model"
)

// TemplateRunner provisions template groups. *template.Runner satisfies it.
type TemplateRunner interface {
	Run(ctx context.Context, groupID string, additional map[string]any) (*model.TemplateGroupResult, error)
}

type TemplateService struct {
	store  Store
	runner TemplateRunner
}

func NewTemplateService(st Store, runner TemplateRunner) *TemplateService {
	return &TemplateService{store: st, runner: runner}
}

// Provision runs a template group with the caller's additional options.
func (s *TemplateService) Provision(ctx context.Context, groupID string, additional map[string]any) (*model.TemplateGroupResult, error) {
	return s.runner.Run(ctx, groupID, additional)
}

func (s *TemplateService) GetResult(ctx context.Context, id string) (*model.TemplateGroupResult, error) {
	return s.store.GetTemplateResult(ctx, id)
}
