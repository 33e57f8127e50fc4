package workflow

import (
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/opennode/waldur-core-sub000/internal/activity"
	"github.com/opennode/waldur-core-sub000/internal/fsm"
	"github.com/opennode/waldur-core-sub000/internal/model"
)

type SyncWorkflowTestSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite
	env *testsuite.TestWorkflowEnvironment
}

func (s *SyncWorkflowTestSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()
	registerActivities(s.env)
}

func (s *SyncWorkflowTestSuite) AfterTest(suiteName, testName string) {
	s.env.AssertExpectations(s.T())
}

func (s *SyncWorkflowTestSuite) TestSyncSettingsSuccess() {
	id := "settings-1"
	s.env.OnActivity("BeginSync", mock.Anything, activity.EntityRef{Entity: model.EntitySettings, ID: id}).Return(model.StateSyncing, nil)
	s.env.OnActivity("SyncSettings", mock.Anything, id).Return(nil)
	onTransition(s.env, model.EntitySettings, id, fsm.SetInSync, model.StateInSync)

	s.env.ExecuteWorkflow(SyncSettingsWorkflow, id)
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
}

func (s *SyncWorkflowTestSuite) TestSyncSettingsBadCredentialsSetsErred() {
	id := "settings-2"
	s.env.OnActivity("BeginSync", mock.Anything, activity.EntityRef{Entity: model.EntitySettings, ID: id}).Return(model.StateCreating, nil)
	s.env.OnActivity("SyncSettings", mock.Anything, id).Return(
		temporal.NewNonRetryableApplicationError("authentication failed", model.KindBackend, nil))
	s.env.OnActivity("SetErred", mock.Anything, matchErred(model.EntitySettings, id)).Return(nil)

	s.env.ExecuteWorkflow(SyncSettingsWorkflow, id)
	s.True(s.env.IsWorkflowCompleted())
	s.Error(s.env.GetWorkflowError())
}

func (s *SyncWorkflowTestSuite) TestBeginSyncConflictDoesNotErr() {
	id := "spl-1"
	s.env.OnActivity("BeginSync", mock.Anything, activity.EntityRef{Entity: model.EntityLink, ID: id}).Return(model.State(""),
		temporal.NewNonRetryableApplicationError("conflict", model.KindStateConflict, nil))

	s.env.ExecuteWorkflow(SyncLinkWorkflow, id)
	s.True(s.env.IsWorkflowCompleted())
	s.Error(s.env.GetWorkflowError())
	s.env.AssertNotCalled(s.T(), "SetErred", mock.Anything, mock.Anything)
}

func (s *SyncWorkflowTestSuite) TestRecoverLink() {
	id := "spl-2"
	onTransition(s.env, model.EntityLink, id, fsm.Recover, model.StateSyncScheduled)
	s.env.OnActivity("BeginSync", mock.Anything, activity.EntityRef{Entity: model.EntityLink, ID: id}).Return(model.StateSyncing, nil)
	s.env.OnActivity("SyncLink", mock.Anything, id).Return(nil)
	onTransition(s.env, model.EntityLink, id, fsm.SetInSync, model.StateInSync)

	s.env.ExecuteWorkflow(RecoverLinkWorkflow, id)
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
}

func (s *SyncWorkflowTestSuite) TestRecoverSettingsNotErred() {
	id := "settings-3"
	s.env.OnActivity("Transition", mock.Anything, activity.TransitionParams{
		Entity: model.EntitySettings, ID: id, Transition: fsm.Recover,
	}).Return(model.State(""), temporal.NewNonRetryableApplicationError("conflict", model.KindStateConflict, nil))

	s.env.ExecuteWorkflow(RecoverSettingsWorkflow, id)
	s.True(s.env.IsWorkflowCompleted())
	s.Error(s.env.GetWorkflowError())
	s.env.AssertNotCalled(s.T(), "BeginSync", mock.Anything, mock.Anything)
}

func (s *SyncWorkflowTestSuite) TestRemoveLink() {
	id := "spl-3"
	s.env.OnActivity("RemoveLink", mock.Anything, id).Return(nil)
	s.env.OnActivity("DeleteEntity", mock.Anything, activity.EntityRef{Entity: model.EntityLink, ID: id}).Return(nil)

	s.env.ExecuteWorkflow(RemoveLinkWorkflow, id)
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
}

func (s *SyncWorkflowTestSuite) TestSyncSecurityGroup() {
	id := "sg-1"
	s.env.OnActivity("BeginSync", mock.Anything, activity.EntityRef{Entity: model.EntitySecurityGroup, ID: id}).Return(model.StateSyncing, nil)
	s.env.OnActivity("PushSecurityGroup", mock.Anything, id).Return(nil)
	onTransition(s.env, model.EntitySecurityGroup, id, fsm.SetInSync, model.StateInSync)

	s.env.ExecuteWorkflow(SyncSecurityGroupWorkflow, id)
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
}

func (s *SyncWorkflowTestSuite) TestDeleteSecurityGroupFailureSetsErred() {
	id := "sg-2"
	s.env.OnActivity("DeleteRemoteSecurityGroup", mock.Anything, id).Return(
		temporal.NewNonRetryableApplicationError("in use", model.KindBackend, nil))
	s.env.OnActivity("SetErred", mock.Anything, matchErred(model.EntitySecurityGroup, id)).Return(nil)

	s.env.ExecuteWorkflow(DeleteSecurityGroupWorkflow, id)
	s.True(s.env.IsWorkflowCompleted())
	s.Error(s.env.GetWorkflowError())
	s.env.AssertNotCalled(s.T(), "DeleteEntity", mock.Anything, mock.Anything)
}

func TestSyncWorkflows(t *testing.T) {
	suite.Run(t, new(SyncWorkflowTestSuite))
}
