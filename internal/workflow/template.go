package workflow

import (
	"errors"
	"fmt"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/opennode/waldur-core-sub000/internal/activity"
	"github.com/opennode/waldur-core-sub000/internal/store"
	"github.com/opennode/waldur-core-sub000/internal/template"
)

// templateFailure is a step failure with the message and details written to
// the result.
type templateFailure struct {
	message string
	details string
}

func (e *templateFailure) Error() string {
	if e.details == "" {
		return e.message
	}
	return e.message + ": " + e.details
}

// TemplateGroupWorkflow provisions the tail of a template group. The head
// was submitted by the runner; each following template waits for the
// resource before it and may reference its fields.
func TemplateGroupWorkflow(ctx workflow.Context, exec template.Execution) error {
	ctx = tasksCtx(ctx)
	logger := workflow.GetLogger(ctx)

	current := exec.Head
	for i := 0; ; i++ {
		resp, err := waitProvisioned(ctx, exec.ResultID, current)
		if err != nil {
			return finishTemplateFailed(ctx, exec.ResultID, err)
		}
		if i == len(exec.Remaining) {
			break
		}

		next := exec.Remaining[i]
		var created template.Response
		err = workflow.ExecuteActivity(ctx, "ProvisionTemplate", activity.ProvisionTemplateParams{
			Execution: exec,
			Template:  next,
			Previous:  resp,
		}).Get(ctx, &created)
		if err != nil {
			return finishTemplateFailed(ctx, exec.ResultID, provisionFailure(next.ResourceType, err))
		}
		logger.Info("template provisioned", "resultID", exec.ResultID, "resourceType", next.ResourceType, "url", created.URL)
		current = template.Step{ResourceType: next.ResourceType, Response: created}
	}

	return workflow.ExecuteActivity(ctx, "FinishTemplateResult", activity.FinishTemplateResultParams{
		ResultID: exec.ResultID,
		Outcome:  store.TemplateOutcome{StateMessage: "Provisioning finished"},
	}).Get(ctx, nil)
}

// waitProvisioned polls the resource created by step until the API reports
// it ready and records it on the result.
func waitProvisioned(ctx workflow.Context, resultID string, step template.Step) (template.Response, error) {
	url := step.Response.URL
	if url == "" {
		return template.Response{}, &templateFailure{
			message: fmt.Sprintf("Failed to provision %s.", step.ResourceType),
			details: "The API response has no resource URL.",
		}
	}

	for i := 0; i < templatePoll.attempts; i++ {
		var resp template.Response
		if err := workflow.ExecuteActivity(ctx, "GetProvisionedState", url).Get(ctx, &resp); err != nil {
			return resp, err
		}
		ready, failed := template.Ready(resp.State)
		if failed {
			return resp, &templateFailure{
				message: fmt.Sprintf("Failed to provision %s.", step.ResourceType),
				details: fmt.Sprintf("Resource with URL %s came to state %q.", url, resp.State),
			}
		}
		if ready {
			err := workflow.ExecuteActivity(ctx, "RecordProvisioned", activity.RecordProvisionedParams{
				ResultID:     resultID,
				ResourceType: step.ResourceType,
				URL:          url,
				StateMessage: fmt.Sprintf("%s has been successfully provisioned.", step.ResourceType),
			}).Get(ctx, nil)
			return resp, err
		}
		if err := workflow.Sleep(ctx, templatePoll.interval); err != nil {
			return resp, err
		}
	}
	return template.Response{}, &PollTimeoutError{
		What:     fmt.Sprintf("%s at %s ready", step.ResourceType, url),
		Attempts: templatePoll.attempts,
		Interval: templatePoll.interval,
	}
}

// provisionFailure unwraps the details a rejected template carries.
func provisionFailure(resourceType string, err error) error {
	f := &templateFailure{message: fmt.Sprintf("Failed to provision %s.", resourceType), details: errorMessage(err)}
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) && appErr.HasDetails() {
		var details string
		if derr := appErr.Details(&details); derr == nil && details != "" {
			f.details = details
		}
	}
	return f
}

func finishTemplateFailed(ctx workflow.Context, resultID string, cause error) error {
	outcome := store.TemplateOutcome{
		Erred:        true,
		StateMessage: "Execution of a template group has failed.",
		ErrorMessage: errorMessage(cause),
	}
	var f *templateFailure
	if errors.As(cause, &f) {
		outcome.ErrorMessage = f.message
		outcome.ErrorDetails = f.details
	}
	err := workflow.ExecuteActivity(ctx, "FinishTemplateResult", activity.FinishTemplateResultParams{
		ResultID: resultID,
		Outcome:  outcome,
	}).Get(ctx, nil)
	if err != nil {
		workflow.GetLogger(ctx).Error("failed to record template failure", "resultID", resultID, "error", err)
	}
	return cause
}
