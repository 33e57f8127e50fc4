package template

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/opennode/waldur-core-sub000/internal/model"
	"github.com/opennode/waldur-core-sub000/internal/platform"
)

// WorkflowName is the workflow that provisions the tail of a group.
const WorkflowName = "TemplateGroupWorkflow"

// ErrInactiveGroup is returned when a disabled group is provisioned.
var ErrInactiveGroup = errors.New("template group is not active")

// Step is a provisioned template and the API's answer to it.
type Step struct {
	ResourceType string   `json:"resource_type"`
	Response     Response `json:"response"`
}

// Execution is the input of the tail workflow.
type Execution struct {
	ResultID   string           `json:"result_id"`
	GroupID    string           `json:"group_id"`
	Head       Step             `json:"head"`
	Remaining  []model.Template `json:"remaining"`
	Additional map[string]any   `json:"additional,omitempty"`
}

// Store is the persistence a Runner needs.
type Store interface {
	GetTemplateGroup(ctx context.Context, id string) (*model.TemplateGroup, error)
	InsertTemplateResult(ctx context.Context, r *model.TemplateGroupResult) error
}

// Starter launches workflows.
type Starter interface {
	Start(ctx context.Context, task model.WorkflowTask) error
}

type Runner struct {
	store       Store
	provisioner Provisioner
	starter     Starter
	logger      zerolog.Logger
}

func NewRunner(st Store, p Provisioner, starter Starter, logger zerolog.Logger) *Runner {
	return &Runner{store: st, provisioner: p, starter: starter, logger: logger.With().Str("component", "template-runner").Logger()}
}

// Run provisions the head template synchronously and hands the rest to the
// tail workflow. An API rejection of the head is returned as a
// *ValidationError and no result is recorded.
func (r *Runner) Run(ctx context.Context, groupID string, additional map[string]any) (*model.TemplateGroupResult, error) {
	group, err := r.store.GetTemplateGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !group.IsActive {
		return nil, fmt.Errorf("group %s: %w", groupID, ErrInactiveGroup)
	}
	if len(group.Templates) == 0 {
		return nil, fmt.Errorf("group %s has no templates", groupID)
	}

	head := group.Templates[0]
	options, err := Prepare(head.Options, additional, nil, false)
	if err != nil {
		return nil, err
	}
	resp, err := r.provisioner.Provision(ctx, head.ResourceType, options)
	if err != nil {
		return nil, err
	}

	result := &model.TemplateGroupResult{
		ID:           platform.NewID(),
		GroupID:      group.ID,
		StateMessage: fmt.Sprintf("%s provision has been scheduled successfully.", head.ResourceType),
	}
	if err := r.store.InsertTemplateResult(ctx, result); err != nil {
		return nil, err
	}

	exec := Execution{
		ResultID:   result.ID,
		GroupID:    group.ID,
		Head:       Step{ResourceType: head.ResourceType, Response: resp},
		Remaining:  group.Templates[1:],
		Additional: additional,
	}
	err = r.starter.Start(ctx, model.WorkflowTask{
		WorkflowName: WorkflowName,
		WorkflowID:   model.TaskID(WorkflowName, result.ID),
		Queue:        model.QueueTasks,
		Arg:          exec,
	})
	if err != nil {
		return nil, fmt.Errorf("start template workflow for result %s: %w", result.ID, err)
	}
	r.logger.Info().Str("group_id", group.ID).Str("result_id", result.ID).Int("templates", len(group.Templates)).
		Msg("template group started")
	return result, nil
}

// Ready classifies a resource state reported by the API.
func Ready(state string) (ready, failed bool) {
	switch model.State(state) {
	case model.StateOnline, model.StateOffline, model.StateInSync:
		return true, false
	case model.StateErred:
		return false, true
	}
	return false, false
}

// Options renders the request body of a tail template.
func (e Execution) Options(t model.Template, previous Response) (map[string]any, error) {
	return Prepare(t.Options, e.Additional, previous.Body, t.UsePreviousResourceProject)
}
