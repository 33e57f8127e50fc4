package workflow

import (
	"context"
	"errors"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/interceptor"
	"go.temporal.io/sdk/temporal"

	"github.com/opennode/waldur-core-sub000/internal/model"
)

// ErrorTypingInterceptor is a Temporal worker interceptor that types
// activity errors with their domain kind, so workflows can branch on
// ApplicationError.Type() and kinds that cannot succeed on retry are not
// retried. Errors without a kind are typed with the activity name.
type ErrorTypingInterceptor struct {
	interceptor.WorkerInterceptorBase
}

func (e *ErrorTypingInterceptor) InterceptActivity(
	ctx context.Context,
	next interceptor.ActivityInboundInterceptor,
) interceptor.ActivityInboundInterceptor {
	return &errorTypingActivityInterceptor{
		ActivityInboundInterceptorBase: interceptor.ActivityInboundInterceptorBase{},
		next:                          next,
	}
}

type errorTypingActivityInterceptor struct {
	interceptor.ActivityInboundInterceptorBase
	next interceptor.ActivityInboundInterceptor
}

func (e *errorTypingActivityInterceptor) Init(outbound interceptor.ActivityOutboundInterceptor) error {
	return e.next.Init(outbound)
}

func (e *errorTypingActivityInterceptor) ExecuteActivity(
	ctx context.Context,
	in *interceptor.ExecuteActivityInput,
) (interface{}, error) {
	result, err := e.next.ExecuteActivity(ctx, in)
	if err != nil {
		return result, typeError(err, activity.GetInfo(ctx).ActivityType.Name)
	}
	return result, nil
}

// typeError converts err into an application error whose type is its kind.
func typeError(err error, activityName string) error {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) && appErr.Type() != "" {
		return err
	}
	kind := model.Kind(err)
	if kind == "" {
		return temporal.NewApplicationError(err.Error(), activityName, err)
	}
	if !model.Retryable(kind) {
		return temporal.NewNonRetryableApplicationError(err.Error(), kind, err)
	}
	return temporal.NewApplicationError(err.Error(), kind, err)
}
