package activity

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"go.temporal.io/sdk/temporal"

	"github.com/opennode/waldur-core-sub000/internal/model"
	"github.com/opennode/waldur-core-sub000/internal/store"
	"github.com/opennode/waldur-core-sub000/internal/template"
)

// Templates contains the activities of the template group tail workflow.
type Templates struct {
	store       Store
	provisioner template.Provisioner
	logger      zerolog.Logger
}

// NewTemplates creates a new Templates activity struct.
func NewTemplates(st Store, p template.Provisioner, logger zerolog.Logger) *Templates {
	return &Templates{
		store:       st,
		provisioner: p,
		logger:      logger.With().Str("component", "template-activities").Logger(),
	}
}

// ProvisionTemplateParams holds the parameters for ProvisionTemplate.
type ProvisionTemplateParams struct {
	Execution template.Execution `json:"execution"`
	Template  model.Template     `json:"template"`
	Previous  template.Response  `json:"previous"`
}

// ProvisionTemplate renders a tail template against the previous
// resource and submits it. A rejection by the API is not retried.
func (a *Templates) ProvisionTemplate(ctx context.Context, params ProvisionTemplateParams) (template.Response, error) {
	options, err := params.Execution.Options(params.Template, params.Previous)
	if err != nil {
		return template.Response{}, temporal.NewNonRetryableApplicationError(err.Error(), "TemplateRender", err)
	}
	resp, err := a.provisioner.Provision(ctx, params.Template.ResourceType, options)
	if err != nil {
		var verr *template.ValidationError
		if errors.As(err, &verr) {
			return template.Response{}, temporal.NewNonRetryableApplicationError(verr.Error(), "TemplateValidation", verr, verr.Details)
		}
		return template.Response{}, err
	}
	return resp, nil
}

// GetProvisionedState fetches the current representation of a resource
// created by a template.
func (a *Templates) GetProvisionedState(ctx context.Context, url string) (template.Response, error) {
	return a.provisioner.Get(ctx, url)
}

// RecordProvisionedParams holds the parameters for RecordProvisioned.
type RecordProvisionedParams struct {
	ResultID     string `json:"result_id"`
	ResourceType string `json:"resource_type"`
	URL          string `json:"url"`
	StateMessage string `json:"state_message"`
}

// RecordProvisioned adds a provisioned resource to the result.
func (a *Templates) RecordProvisioned(ctx context.Context, params RecordProvisionedParams) error {
	return a.store.AddProvisionedResource(ctx, params.ResultID, params.ResourceType, params.URL, params.StateMessage)
}

// FinishTemplateResultParams holds the parameters for FinishTemplateResult.
type FinishTemplateResultParams struct {
	ResultID string                `json:"result_id"`
	Outcome  store.TemplateOutcome `json:"outcome"`
}

// FinishTemplateResult writes the terminal status of a result.
func (a *Templates) FinishTemplateResult(ctx context.Context, params FinishTemplateResultParams) error {
	err := a.store.FinishTemplateResult(ctx, params.ResultID, params.Outcome)
	if err != nil {
		return err
	}
	a.logger.Info().Str("result_id", params.ResultID).Bool("erred", params.Outcome.Erred).Msg("template result finished")
	return nil
}
