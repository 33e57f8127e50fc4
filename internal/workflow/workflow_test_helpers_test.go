package workflow

import (
	"github.com/stretchr/testify/mock"
	"go.temporal.io/sdk/testsuite"

	"github.com/opennode/waldur-core-sub000/internal/activity"
	"github.com/opennode/waldur-core-sub000/internal/model"
)

// registerActivities registers activity structs with the test workflow
// environment so that parameter and return types can be deserialized
// correctly. All activities are mocked via OnActivity in unit tests.
func registerActivities(env *testsuite.TestWorkflowEnvironment) {
	env.RegisterActivity(&activity.Lifecycle{})
	env.RegisterActivity(&activity.Backends{})
	env.RegisterActivity(&activity.Backups{})
	env.RegisterActivity(&activity.Throttle{})
	env.RegisterActivity(&activity.Reconcile{})
	env.RegisterActivity(&activity.Housekeeping{})
	env.RegisterActivity(&activity.Templates{})
}

// onTransition mocks one named transition returning the state it lands in.
func onTransition(env *testsuite.TestWorkflowEnvironment, entity, id, name string, to model.State) {
	env.OnActivity("Transition", mock.Anything, activity.TransitionParams{
		Entity: entity, ID: id, Transition: name,
	}).Return(to, nil).Once()
}

// onRecover mocks the recover activity of a resource.
func onRecover(env *testsuite.TestWorkflowEnvironment, id, name string, to model.State) {
	env.OnActivity("RecoverResource", mock.Anything, activity.TransitionParams{
		Entity: model.EntityResource, ID: id, Transition: name,
	}).Return(to, nil).Once()
}

// matchErred matches SetErred for entity/id with any non-empty message.
// The message carries Temporal's error wrapping and is not predictable.
func matchErred(entity, id string) interface{} {
	return mock.MatchedBy(func(params activity.SetErredParams) bool {
		return params.Entity == entity && params.ID == id && params.Message != ""
	})
}

func testResourceContext(id string) *model.ResourceContext {
	return &model.ResourceContext{
		Resource: model.Resource{ID: id, LinkID: "spl-1", State: model.StateProvisioningScheduled},
		Link:     model.ServiceProjectLink{ID: "spl-1", TenantID: "tenant-a", State: model.StateInSync},
		Settings: model.ServiceSettings{ID: "settings-1", Type: "dummy", BackendURL: "http://keystone:5000/v3", State: model.StateInSync},
	}
}

func online() activity.RemoteState {
	return activity.RemoteState{Found: true, State: model.StateOnline, RawState: "ACTIVE"}
}

func offline() activity.RemoteState {
	return activity.RemoteState{Found: true, State: model.StateOffline, RawState: "SHUTOFF"}
}
