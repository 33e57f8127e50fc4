package activity

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"

	"github.com/opennode/waldur-core-sub000/internal/model"
	"github.com/opennode/waldur-core-sub000/internal/store"
	"github.com/opennode/waldur-core-sub000/internal/template"
)

type mockProvisioner struct {
	mock.Mock
}

func (m *mockProvisioner) Provision(ctx context.Context, resourceType string, options map[string]any) (template.Response, error) {
	args := m.Called(ctx, resourceType, options)
	return args.Get(0).(template.Response), args.Error(1)
}

func (m *mockProvisioner) Get(ctx context.Context, url string) (template.Response, error) {
	args := m.Called(ctx, url)
	return args.Get(0).(template.Response), args.Error(1)
}

func TestProvisionTemplateRendersPreviousResource(t *testing.T) {
	p := &mockProvisioner{}
	a := NewTemplates(&mockStore{}, p, zerolog.Nop())

	tpl := model.Template{
		ResourceType: "OpenStack.Instance",
		Options:      json.RawMessage(`{"name":"web","tenant":"{{ response.url }}"}`),
	}
	prev := template.Response{URL: "https://api/tenants/1/", State: "OK", Body: json.RawMessage(`{"url":"https://api/tenants/1/"}`)}
	p.On("Provision", mock.Anything, "OpenStack.Instance", mock.MatchedBy(func(o map[string]any) bool {
		return o["name"] == "web" && o["tenant"] == "https://api/tenants/1/"
	})).Return(template.Response{URL: "https://api/instances/2/", State: "Provisioning Scheduled"}, nil)

	resp, err := a.ProvisionTemplate(context.Background(), ProvisionTemplateParams{
		Execution: template.Execution{ResultID: "res-1"},
		Template:  tpl,
		Previous:  prev,
	})
	require.NoError(t, err)
	assert.Equal(t, "https://api/instances/2/", resp.URL)
}

func TestProvisionTemplateRejectionIsNotRetried(t *testing.T) {
	p := &mockProvisioner{}
	a := NewTemplates(&mockStore{}, p, zerolog.Nop())

	p.On("Provision", mock.Anything, "OpenStack.Instance", mock.Anything).
		Return(template.Response{}, &template.ValidationError{ResourceType: "OpenStack.Instance", StatusCode: 400, Details: `{"name":["required"]}`})

	_, err := a.ProvisionTemplate(context.Background(), ProvisionTemplateParams{
		Template: model.Template{ResourceType: "OpenStack.Instance", Options: json.RawMessage(`{}`)},
	})
	require.Error(t, err)
	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	assert.True(t, appErr.NonRetryable())
	assert.Equal(t, "TemplateValidation", appErr.Type())
}

func TestFinishTemplateResult(t *testing.T) {
	st := &mockStore{}
	a := NewTemplates(st, &mockProvisioner{}, zerolog.Nop())

	out := store.TemplateOutcome{Erred: true, StateMessage: "failed", ErrorMessage: "boom"}
	st.On("FinishTemplateResult", mock.Anything, "res-1", out).Return(nil)

	require.NoError(t, a.FinishTemplateResult(context.Background(), FinishTemplateResultParams{ResultID: "res-1", Outcome: out}))
	st.AssertExpectations(t)
}
