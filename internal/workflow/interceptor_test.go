package workflow

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"

	"github.com/opennode/waldur-core-sub000/internal/model"
)

func TestTypeError(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantType     string
		nonRetryable bool
	}{
		{
			name:     "untyped error uses activity name",
			err:      fmt.Errorf("connection reset"),
			wantType: "ProvisionResource",
		},
		{
			name:         "state conflict is not retried",
			err:          &model.StateConflictError{Entity: model.EntityResource, ID: "vm-1", State: model.StateOnline, Transition: "begin_provisioning"},
			wantType:     model.KindStateConflict,
			nonRetryable: true,
		},
		{
			name:         "not found is not retried",
			err:          fmt.Errorf("resource vm-1: %w", model.ErrNotFound),
			wantType:     model.KindNotFound,
			nonRetryable: true,
		},
		{
			name:     "backend error is retried",
			err:      model.NewBackendError("provision", errors.New("503 from nova")),
			wantType: model.KindBackend,
		},
		{
			name:     "concurrent update is retried",
			err:      fmt.Errorf("update: %w", model.ErrConcurrentUpdate),
			wantType: model.KindConcurrentUpdate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := typeError(tt.err, "ProvisionResource")

			var appErr *temporal.ApplicationError
			require.True(t, errors.As(out, &appErr))
			assert.Equal(t, tt.wantType, appErr.Type())
			assert.Equal(t, tt.nonRetryable, appErr.NonRetryable())
			assert.ErrorIs(t, out, tt.err)
		})
	}
}

func TestTypeError_KeepsApplicationErrors(t *testing.T) {
	in := temporal.NewNonRetryableApplicationError("rejected", "TemplateValidation", nil)
	out := typeError(in, "ProvisionTemplate")
	assert.Same(t, in, out)
}
