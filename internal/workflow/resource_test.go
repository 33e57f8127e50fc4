package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/opennode/waldur-core-sub000/internal/activity"
	"github.com/opennode/waldur-core-sub000/internal/fsm"
	"github.com/opennode/waldur-core-sub000/internal/model"
	"github.com/opennode/waldur-core-sub000/internal/store"
)

// ---------- ProvisionResourceWorkflow ----------

type ProvisionResourceWorkflowTestSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite
	env *testsuite.TestWorkflowEnvironment
}

func (s *ProvisionResourceWorkflowTestSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()
	registerActivities(s.env)
}

func (s *ProvisionResourceWorkflowTestSuite) AfterTest(suiteName, testName string) {
	s.env.AssertExpectations(s.T())
}

func (s *ProvisionResourceWorkflowTestSuite) expectThrottle() activity.ThrottleParams {
	tp := activity.ThrottleParams{Op: "provision", Endpoint: "http://keystone:5000/v3"}
	s.env.OnActivity("AcquireThrottle", mock.Anything, tp).Return(activity.ThrottleGrant{Acquired: true}, nil).Once()
	s.env.OnActivity("ReleaseThrottle", mock.Anything, tp).Return(nil).Once()
	return tp
}

func (s *ProvisionResourceWorkflowTestSuite) TestSuccessOnline() {
	id := "vm-1"
	params := activity.ProvisionResourceParams{ResourceID: id}

	onTransition(s.env, model.EntityResource, id, fsm.BeginProvisioning, model.StateProvisioning)
	s.env.OnActivity("GetResourceContext", mock.Anything, id).Return(testResourceContext(id), nil)
	s.expectThrottle()
	s.env.OnActivity("ProvisionResource", mock.Anything, params).Return("backend-vm-1", nil)
	s.env.OnActivity("GetRemoteState", mock.Anything, id).Return(activity.RemoteState{Found: true, State: model.StateProvisioning, RawState: "BUILD"}, nil).Once()
	s.env.OnActivity("GetRemoteState", mock.Anything, id).Return(online(), nil).Once()
	s.env.OnActivity("SyncResourceInfo", mock.Anything, id).Return(nil)
	onTransition(s.env, model.EntityResource, id, fsm.SetOnline, model.StateOnline)

	s.env.ExecuteWorkflow(ProvisionResourceWorkflow, params)
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
}

func (s *ProvisionResourceWorkflowTestSuite) TestSuccessOffline() {
	id := "vm-2"
	params := activity.ProvisionResourceParams{ResourceID: id, SkipExternalIPAssignment: true}

	onTransition(s.env, model.EntityResource, id, fsm.BeginProvisioning, model.StateProvisioning)
	s.env.OnActivity("GetResourceContext", mock.Anything, id).Return(testResourceContext(id), nil)
	s.expectThrottle()
	s.env.OnActivity("ProvisionResource", mock.Anything, params).Return("backend-vm-2", nil)
	s.env.OnActivity("GetRemoteState", mock.Anything, id).Return(offline(), nil)
	s.env.OnActivity("SyncResourceInfo", mock.Anything, id).Return(nil)
	onTransition(s.env, model.EntityResource, id, fsm.SetOffline, model.StateOffline)

	s.env.ExecuteWorkflow(ProvisionResourceWorkflow, params)
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
}

func (s *ProvisionResourceWorkflowTestSuite) TestWaitsForThrottleSlot() {
	id := "vm-3"
	params := activity.ProvisionResourceParams{ResourceID: id}
	tp := activity.ThrottleParams{Op: "provision", Endpoint: "http://keystone:5000/v3"}

	onTransition(s.env, model.EntityResource, id, fsm.BeginProvisioning, model.StateProvisioning)
	s.env.OnActivity("GetResourceContext", mock.Anything, id).Return(testResourceContext(id), nil)
	s.env.OnActivity("AcquireThrottle", mock.Anything, tp).Return(activity.ThrottleGrant{Acquired: false, RetryDelay: 30 * time.Second}, nil).Twice()
	s.env.OnActivity("AcquireThrottle", mock.Anything, tp).Return(activity.ThrottleGrant{Acquired: true}, nil).Once()
	s.env.OnActivity("ReleaseThrottle", mock.Anything, tp).Return(nil).Once()
	s.env.OnActivity("ProvisionResource", mock.Anything, params).Return("backend-vm-3", nil)
	s.env.OnActivity("GetRemoteState", mock.Anything, id).Return(online(), nil)
	s.env.OnActivity("SyncResourceInfo", mock.Anything, id).Return(nil)
	onTransition(s.env, model.EntityResource, id, fsm.SetOnline, model.StateOnline)

	s.env.ExecuteWorkflow(ProvisionResourceWorkflow, params)
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
}

func (s *ProvisionResourceWorkflowTestSuite) TestBeginConflictLeavesStateAlone() {
	id := "vm-4"
	conflict := temporal.NewNonRetryableApplicationError("conflict", model.KindStateConflict, nil)

	s.env.OnActivity("Transition", mock.Anything, activity.TransitionParams{
		Entity: model.EntityResource, ID: id, Transition: fsm.BeginProvisioning,
	}).Return(model.State(""), conflict)

	s.env.ExecuteWorkflow(ProvisionResourceWorkflow, activity.ProvisionResourceParams{ResourceID: id})
	s.True(s.env.IsWorkflowCompleted())
	s.Error(s.env.GetWorkflowError())
	s.env.AssertNotCalled(s.T(), "SetErred", mock.Anything, mock.Anything)
	s.env.AssertNotCalled(s.T(), "ProvisionResource", mock.Anything, mock.Anything)
}

func (s *ProvisionResourceWorkflowTestSuite) TestProviderErredSetsErred() {
	id := "vm-5"
	params := activity.ProvisionResourceParams{ResourceID: id}

	onTransition(s.env, model.EntityResource, id, fsm.BeginProvisioning, model.StateProvisioning)
	s.env.OnActivity("GetResourceContext", mock.Anything, id).Return(testResourceContext(id), nil)
	s.expectThrottle()
	s.env.OnActivity("ProvisionResource", mock.Anything, params).Return("backend-vm-5", nil)
	s.env.OnActivity("GetRemoteState", mock.Anything, id).Return(activity.RemoteState{Found: true, State: model.StateErred, RawState: "ERROR"}, nil)
	s.env.OnActivity("SetErred", mock.Anything, matchErred(model.EntityResource, id)).Return(nil)

	s.env.ExecuteWorkflow(ProvisionResourceWorkflow, params)
	s.True(s.env.IsWorkflowCompleted())
	s.Error(s.env.GetWorkflowError())
	s.env.AssertNotCalled(s.T(), "SyncResourceInfo", mock.Anything, mock.Anything)
}

func (s *ProvisionResourceWorkflowTestSuite) TestProvisionFailsSetsErredAndReleases() {
	id := "vm-6"
	params := activity.ProvisionResourceParams{ResourceID: id}

	onTransition(s.env, model.EntityResource, id, fsm.BeginProvisioning, model.StateProvisioning)
	s.env.OnActivity("GetResourceContext", mock.Anything, id).Return(testResourceContext(id), nil)
	s.expectThrottle()
	s.env.OnActivity("ProvisionResource", mock.Anything, params).Return("",
		temporal.NewNonRetryableApplicationError("no capacity", model.KindBackend, nil))
	s.env.OnActivity("SetErred", mock.Anything, matchErred(model.EntityResource, id)).Return(nil)

	s.env.ExecuteWorkflow(ProvisionResourceWorkflow, params)
	s.True(s.env.IsWorkflowCompleted())
	s.Error(s.env.GetWorkflowError())
}

func (s *ProvisionResourceWorkflowTestSuite) TestBeginFailureSetsErred() {
	id := "vm-7"

	s.env.OnActivity("Transition", mock.Anything, activity.TransitionParams{
		Entity: model.EntityResource, ID: id, Transition: fsm.BeginProvisioning,
	}).Return(model.State(""), temporal.NewNonRetryableApplicationError("database unavailable", "Unavailable", nil))
	s.env.OnActivity("SetErred", mock.Anything, matchErred(model.EntityResource, id)).Return(nil).Once()

	s.env.ExecuteWorkflow(ProvisionResourceWorkflow, activity.ProvisionResourceParams{ResourceID: id})
	s.True(s.env.IsWorkflowCompleted())
	s.Error(s.env.GetWorkflowError())
	s.env.AssertNotCalled(s.T(), "GetResourceContext", mock.Anything, mock.Anything)
}

func (s *ProvisionResourceWorkflowTestSuite) TestFinalTransitionFailureSetsErred() {
	id := "vm-8"
	params := activity.ProvisionResourceParams{ResourceID: id}

	onTransition(s.env, model.EntityResource, id, fsm.BeginProvisioning, model.StateProvisioning)
	s.env.OnActivity("GetResourceContext", mock.Anything, id).Return(testResourceContext(id), nil)
	s.expectThrottle()
	s.env.OnActivity("ProvisionResource", mock.Anything, params).Return("backend-vm-8", nil)
	s.env.OnActivity("GetRemoteState", mock.Anything, id).Return(online(), nil)
	s.env.OnActivity("SyncResourceInfo", mock.Anything, id).Return(nil)
	s.env.OnActivity("Transition", mock.Anything, activity.TransitionParams{
		Entity: model.EntityResource, ID: id, Transition: fsm.SetOnline,
	}).Return(model.State(""), temporal.NewNonRetryableApplicationError("conflict", model.KindStateConflict, nil))
	s.env.OnActivity("SetErred", mock.Anything, matchErred(model.EntityResource, id)).Return(nil).Once()

	s.env.ExecuteWorkflow(ProvisionResourceWorkflow, params)
	s.True(s.env.IsWorkflowCompleted())
	s.Error(s.env.GetWorkflowError())
}

func TestProvisionResourceWorkflow(t *testing.T) {
	suite.Run(t, new(ProvisionResourceWorkflowTestSuite))
}

// ---------- power actions ----------

type PowerWorkflowTestSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite
	env *testsuite.TestWorkflowEnvironment
}

func (s *PowerWorkflowTestSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()
	registerActivities(s.env)
}

func (s *PowerWorkflowTestSuite) AfterTest(suiteName, testName string) {
	s.env.AssertExpectations(s.T())
}

func (s *PowerWorkflowTestSuite) TestStopSuccess() {
	id := "vm-1"
	onTransition(s.env, model.EntityResource, id, fsm.BeginStopping, model.StateStopping)
	s.env.OnActivity("StopResource", mock.Anything, id).Return(nil)
	s.env.OnActivity("GetRemoteState", mock.Anything, id).Return(online(), nil).Once()
	s.env.OnActivity("GetRemoteState", mock.Anything, id).Return(offline(), nil).Once()
	onTransition(s.env, model.EntityResource, id, fsm.SetOffline, model.StateOffline)

	s.env.ExecuteWorkflow(StopResourceWorkflow, id)
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
}

func (s *PowerWorkflowTestSuite) TestStartSuccess() {
	id := "vm-2"
	onTransition(s.env, model.EntityResource, id, fsm.BeginStarting, model.StateStarting)
	s.env.OnActivity("StartResource", mock.Anything, id).Return(nil)
	s.env.OnActivity("GetRemoteState", mock.Anything, id).Return(online(), nil)
	onTransition(s.env, model.EntityResource, id, fsm.SetOnline, model.StateOnline)

	s.env.ExecuteWorkflow(StartResourceWorkflow, id)
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
}

func (s *PowerWorkflowTestSuite) TestRestartFailureSetsErred() {
	id := "vm-3"
	onTransition(s.env, model.EntityResource, id, fsm.BeginRestarting, model.StateRestarting)
	s.env.OnActivity("RestartResource", mock.Anything, id).Return(
		temporal.NewNonRetryableApplicationError("reboot refused", model.KindBackend, nil))
	s.env.OnActivity("SetErred", mock.Anything, matchErred(model.EntityResource, id)).Return(nil)

	s.env.ExecuteWorkflow(RestartResourceWorkflow, id)
	s.True(s.env.IsWorkflowCompleted())
	s.Error(s.env.GetWorkflowError())
	s.env.AssertNotCalled(s.T(), "GetRemoteState", mock.Anything, mock.Anything)
}

func (s *PowerWorkflowTestSuite) TestStopTimesOut() {
	id := "vm-4"
	onTransition(s.env, model.EntityResource, id, fsm.BeginStopping, model.StateStopping)
	s.env.OnActivity("StopResource", mock.Anything, id).Return(nil)
	s.env.OnActivity("GetRemoteState", mock.Anything, id).Return(online(), nil).Times(powerPoll.attempts)
	s.env.OnActivity("SetErred", mock.Anything, matchErred(model.EntityResource, id)).Return(nil)

	s.env.ExecuteWorkflow(StopResourceWorkflow, id)
	s.True(s.env.IsWorkflowCompleted())
	s.Error(s.env.GetWorkflowError())
}

func (s *PowerWorkflowTestSuite) TestBeginFailureSetsErred() {
	id := "vm-5"
	s.env.OnActivity("Transition", mock.Anything, activity.TransitionParams{
		Entity: model.EntityResource, ID: id, Transition: fsm.BeginStarting,
	}).Return(model.State(""), temporal.NewNonRetryableApplicationError("database unavailable", "Unavailable", nil))
	s.env.OnActivity("SetErred", mock.Anything, matchErred(model.EntityResource, id)).Return(nil).Once()

	s.env.ExecuteWorkflow(StartResourceWorkflow, id)
	s.True(s.env.IsWorkflowCompleted())
	s.Error(s.env.GetWorkflowError())
	s.env.AssertNotCalled(s.T(), "StartResource", mock.Anything, mock.Anything)
}

func (s *PowerWorkflowTestSuite) TestBeginConflictLeavesStateAlone() {
	id := "vm-6"
	s.env.OnActivity("Transition", mock.Anything, activity.TransitionParams{
		Entity: model.EntityResource, ID: id, Transition: fsm.BeginStopping,
	}).Return(model.State(""), temporal.NewNonRetryableApplicationError("conflict", model.KindStateConflict, nil))

	s.env.ExecuteWorkflow(StopResourceWorkflow, id)
	s.True(s.env.IsWorkflowCompleted())
	s.Error(s.env.GetWorkflowError())
	s.env.AssertNotCalled(s.T(), "SetErred", mock.Anything, mock.Anything)
}

func (s *PowerWorkflowTestSuite) TestFinalTransitionFailureSetsErred() {
	id := "vm-7"
	onTransition(s.env, model.EntityResource, id, fsm.BeginRestarting, model.StateRestarting)
	s.env.OnActivity("RestartResource", mock.Anything, id).Return(nil)
	s.env.OnActivity("GetRemoteState", mock.Anything, id).Return(online(), nil)
	s.env.OnActivity("Transition", mock.Anything, activity.TransitionParams{
		Entity: model.EntityResource, ID: id, Transition: fsm.SetOnline,
	}).Return(model.State(""), temporal.NewNonRetryableApplicationError("database unavailable", "Unavailable", nil))
	s.env.OnActivity("SetErred", mock.Anything, matchErred(model.EntityResource, id)).Return(nil).Once()

	s.env.ExecuteWorkflow(RestartResourceWorkflow, id)
	s.True(s.env.IsWorkflowCompleted())
	s.Error(s.env.GetWorkflowError())
}

func TestPowerWorkflows(t *testing.T) {
	suite.Run(t, new(PowerWorkflowTestSuite))
}

// ---------- DestroyResourceWorkflow ----------

type DestroyResourceWorkflowTestSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite
	env *testsuite.TestWorkflowEnvironment
}

func (s *DestroyResourceWorkflowTestSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()
	registerActivities(s.env)
}

func (s *DestroyResourceWorkflowTestSuite) AfterTest(suiteName, testName string) {
	s.env.AssertExpectations(s.T())
}

func (s *DestroyResourceWorkflowTestSuite) TestSuccess() {
	id := "vm-1"
	onTransition(s.env, model.EntityResource, id, fsm.BeginDeleting, model.StateDeleting)
	s.env.OnActivity("DestroyResource", mock.Anything, id).Return(nil)
	s.env.OnActivity("GetRemoteState", mock.Anything, id).Return(activity.RemoteState{Found: true, State: model.StateDeleting, RawState: "DELETED"}, nil).Once()
	s.env.OnActivity("GetRemoteState", mock.Anything, id).Return(activity.RemoteState{Found: false}, nil).Once()
	s.env.OnActivity("DeleteEntity", mock.Anything, activity.EntityRef{Entity: model.EntityResource, ID: id}).Return(nil)

	s.env.ExecuteWorkflow(DestroyResourceWorkflow, id)
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
}

func (s *DestroyResourceWorkflowTestSuite) TestDestroyFailsKeepsRow() {
	id := "vm-2"
	onTransition(s.env, model.EntityResource, id, fsm.BeginDeleting, model.StateDeleting)
	s.env.OnActivity("DestroyResource", mock.Anything, id).Return(
		temporal.NewNonRetryableApplicationError("volume busy", model.KindBackend, nil))
	s.env.OnActivity("SetErred", mock.Anything, matchErred(model.EntityResource, id)).Return(nil)

	s.env.ExecuteWorkflow(DestroyResourceWorkflow, id)
	s.True(s.env.IsWorkflowCompleted())
	s.Error(s.env.GetWorkflowError())
	s.env.AssertNotCalled(s.T(), "DeleteEntity", mock.Anything, mock.Anything)
}

func TestDestroyResourceWorkflow(t *testing.T) {
	suite.Run(t, new(DestroyResourceWorkflowTestSuite))
}

// ---------- resize and extend ----------

type ResizeWorkflowTestSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite
	env *testsuite.TestWorkflowEnvironment
}

func (s *ResizeWorkflowTestSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()
	registerActivities(s.env)
}

func (s *ResizeWorkflowTestSuite) AfterTest(suiteName, testName string) {
	s.env.AssertExpectations(s.T())
}

func (s *ResizeWorkflowTestSuite) TestResizeSuccess() {
	id := "vm-1"
	params := activity.UpdateFlavorParams{ResourceID: id, FlavorName: "m1.large"}
	flavor := &model.Flavor{Name: "m1.large", Cores: 4, RAM: 8192}

	onTransition(s.env, model.EntityResource, id, fsm.BeginResizing, model.StateResizing)
	s.env.OnActivity("UpdateFlavor", mock.Anything, params).Return(flavor, nil)
	s.env.OnActivity("GetRemoteState", mock.Anything, id).Return(offline(), nil)
	s.env.OnActivity("ApplyResize", mock.Anything, store.ResizeParams{
		ID: id, FlavorName: "m1.large", Cores: 4, RAM: 8192,
	}).Return(nil)
	onTransition(s.env, model.EntityResource, id, fsm.SetResized, model.StateOffline)

	s.env.ExecuteWorkflow(ResizeResourceWorkflow, params)
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
}

func (s *ResizeWorkflowTestSuite) TestExtendDiskSuccess() {
	id := "vm-2"
	params := activity.ExtendDiskParams{ResourceID: id, NewSize: 20480}

	onTransition(s.env, model.EntityResource, id, fsm.BeginResizing, model.StateResizing)
	s.env.OnActivity("ExtendDisk", mock.Anything, params).Return(nil)
	s.env.OnActivity("GetRemoteState", mock.Anything, id).Return(offline(), nil)
	s.env.OnActivity("ApplyResize", mock.Anything, store.ResizeParams{ID: id, DataVolumeSize: 20480}).Return(nil)
	onTransition(s.env, model.EntityResource, id, fsm.SetResized, model.StateOffline)

	s.env.ExecuteWorkflow(ExtendDiskWorkflow, params)
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
}

func (s *ResizeWorkflowTestSuite) TestExtendDiskNotImplemented() {
	id := "vm-3"
	params := activity.ExtendDiskParams{ResourceID: id, NewSize: 20480}

	onTransition(s.env, model.EntityResource, id, fsm.BeginResizing, model.StateResizing)
	s.env.OnActivity("ExtendDisk", mock.Anything, params).Return(
		temporal.NewNonRetryableApplicationError("extend_disk not implemented", model.KindNotImplemented, nil))
	s.env.OnActivity("SetErred", mock.Anything, matchErred(model.EntityResource, id)).Return(nil)

	s.env.ExecuteWorkflow(ExtendDiskWorkflow, params)
	s.True(s.env.IsWorkflowCompleted())
	s.Error(s.env.GetWorkflowError())
}

func (s *ResizeWorkflowTestSuite) TestResizeBeginFailureSetsErred() {
	id := "vm-4"
	params := activity.UpdateFlavorParams{ResourceID: id, FlavorName: "m1.large"}

	s.env.OnActivity("Transition", mock.Anything, activity.TransitionParams{
		Entity: model.EntityResource, ID: id, Transition: fsm.BeginResizing,
	}).Return(model.State(""), temporal.NewNonRetryableApplicationError("database unavailable", "Unavailable", nil))
	s.env.OnActivity("SetErred", mock.Anything, matchErred(model.EntityResource, id)).Return(nil).Once()

	s.env.ExecuteWorkflow(ResizeResourceWorkflow, params)
	s.True(s.env.IsWorkflowCompleted())
	s.Error(s.env.GetWorkflowError())
	s.env.AssertNotCalled(s.T(), "UpdateFlavor", mock.Anything, mock.Anything)
}

func (s *ResizeWorkflowTestSuite) TestExtendDiskFinalTransitionFailureSetsErred() {
	id := "vm-5"
	params := activity.ExtendDiskParams{ResourceID: id, NewSize: 20480}

	onTransition(s.env, model.EntityResource, id, fsm.BeginResizing, model.StateResizing)
	s.env.OnActivity("ExtendDisk", mock.Anything, params).Return(nil)
	s.env.OnActivity("GetRemoteState", mock.Anything, id).Return(offline(), nil)
	s.env.OnActivity("ApplyResize", mock.Anything, store.ResizeParams{ID: id, DataVolumeSize: 20480}).Return(nil)
	s.env.OnActivity("Transition", mock.Anything, activity.TransitionParams{
		Entity: model.EntityResource, ID: id, Transition: fsm.SetResized,
	}).Return(model.State(""), temporal.NewNonRetryableApplicationError("database unavailable", "Unavailable", nil))
	s.env.OnActivity("SetErred", mock.Anything, matchErred(model.EntityResource, id)).Return(nil).Once()

	s.env.ExecuteWorkflow(ExtendDiskWorkflow, params)
	s.True(s.env.IsWorkflowCompleted())
	s.Error(s.env.GetWorkflowError())
}

func TestResizeWorkflows(t *testing.T) {
	suite.Run(t, new(ResizeWorkflowTestSuite))
}

// ---------- RecoverResourceWorkflow ----------

type RecoverResourceWorkflowTestSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite
	env *testsuite.TestWorkflowEnvironment
}

func (s *RecoverResourceWorkflowTestSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()
	registerActivities(s.env)
}

func (s *RecoverResourceWorkflowTestSuite) AfterTest(suiteName, testName string) {
	s.env.AssertExpectations(s.T())
}

func (s *RecoverResourceWorkflowTestSuite) TestRecoverOnline() {
	id := "vm-1"
	s.env.OnActivity("GetRemoteState", mock.Anything, id).Return(online(), nil)
	onRecover(s.env, id, fsm.RecoverOnline, model.StateOnline)

	s.env.ExecuteWorkflow(RecoverResourceWorkflow, id)
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
}

func (s *RecoverResourceWorkflowTestSuite) TestRecoverOffline() {
	id := "vm-2"
	s.env.OnActivity("GetRemoteState", mock.Anything, id).Return(offline(), nil)
	onRecover(s.env, id, fsm.RecoverOffline, model.StateOffline)

	s.env.ExecuteWorkflow(RecoverResourceWorkflow, id)
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
}

func (s *RecoverResourceWorkflowTestSuite) TestUnknownAtProviderStaysErred() {
	id := "vm-3"
	s.env.OnActivity("GetRemoteState", mock.Anything, id).Return(activity.RemoteState{Found: false}, nil)

	s.env.ExecuteWorkflow(RecoverResourceWorkflow, id)
	s.True(s.env.IsWorkflowCompleted())
	s.Error(s.env.GetWorkflowError())
	s.env.AssertNotCalled(s.T(), "RecoverResource", mock.Anything, mock.Anything)
}

func (s *RecoverResourceWorkflowTestSuite) TestTransitionalProviderStateStaysErred() {
	id := "vm-4"
	s.env.OnActivity("GetRemoteState", mock.Anything, id).Return(activity.RemoteState{Found: true, State: model.StateResizing, RawState: "RESIZE"}, nil)

	s.env.ExecuteWorkflow(RecoverResourceWorkflow, id)
	s.True(s.env.IsWorkflowCompleted())
	s.Error(s.env.GetWorkflowError())
	s.env.AssertNotCalled(s.T(), "RecoverResource", mock.Anything, mock.Anything)
}

func TestRecoverResourceWorkflow(t *testing.T) {
	suite.Run(t, new(RecoverResourceWorkflowTestSuite))
}
