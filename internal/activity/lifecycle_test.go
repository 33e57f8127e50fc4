package activity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/opennode/waldur-core-sub000/internal/fsm"
	"github.com/opennode/waldur-core-sub000/internal/model"
)

func TestBeginSyncFromNewWalksCreation(t *testing.T) {
	st := &mockStore{}
	a := NewLifecycle(st)
	ctx := context.Background()

	st.On("State", mock.Anything, model.EntityLink, "spl-1").Return(model.StateNew, 1, nil)
	st.On("Transition", mock.Anything, model.EntityLink, "spl-1", fsm.ScheduleCreating).Return(model.StateCreationScheduled, nil).Once()
	st.On("Transition", mock.Anything, model.EntityLink, "spl-1", fsm.BeginCreating).Return(model.StateCreating, nil).Once()

	got, err := a.BeginSync(ctx, EntityRef{Entity: model.EntityLink, ID: "spl-1"})
	require.NoError(t, err)
	assert.Equal(t, model.StateCreating, got)
	st.AssertExpectations(t)
}

func TestBeginSyncFromInSyncWalksSyncing(t *testing.T) {
	st := &mockStore{}
	a := NewLifecycle(st)

	st.On("State", mock.Anything, model.EntitySettings, "s-1").Return(model.StateInSync, 3, nil)
	st.On("Transition", mock.Anything, model.EntitySettings, "s-1", fsm.ScheduleSyncing).Return(model.StateSyncScheduled, nil).Once()
	st.On("Transition", mock.Anything, model.EntitySettings, "s-1", fsm.BeginSyncing).Return(model.StateSyncing, nil).Once()

	got, err := a.BeginSync(context.Background(), EntityRef{Entity: model.EntitySettings, ID: "s-1"})
	require.NoError(t, err)
	assert.Equal(t, model.StateSyncing, got)
	st.AssertExpectations(t)
}

func TestBeginSyncIsIdempotentOnceWorking(t *testing.T) {
	st := &mockStore{}
	a := NewLifecycle(st)

	st.On("State", mock.Anything, model.EntityLink, "spl-1").Return(model.StateSyncing, 4, nil)

	got, err := a.BeginSync(context.Background(), EntityRef{Entity: model.EntityLink, ID: "spl-1"})
	require.NoError(t, err)
	assert.Equal(t, model.StateSyncing, got)
	st.AssertNotCalled(t, "Transition", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestBeginSyncRejectsErred(t *testing.T) {
	st := &mockStore{}
	a := NewLifecycle(st)

	st.On("State", mock.Anything, model.EntityLink, "spl-1").Return(model.StateErred, 2, nil)

	_, err := a.BeginSync(context.Background(), EntityRef{Entity: model.EntityLink, ID: "spl-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrStateConflict)
}

func TestDeleteEntityDispatchesByEntity(t *testing.T) {
	st := &mockStore{}
	a := NewLifecycle(st)
	ctx := context.Background()

	st.On("DeleteResource", mock.Anything, "r-1").Return(nil).Once()
	st.On("DeleteLink", mock.Anything, "spl-1").Return(nil).Once()
	st.On("DeleteSecurityGroup", mock.Anything, "sg-1").Return(nil).Once()

	require.NoError(t, a.DeleteEntity(ctx, EntityRef{Entity: model.EntityResource, ID: "r-1"}))
	require.NoError(t, a.DeleteEntity(ctx, EntityRef{Entity: model.EntityLink, ID: "spl-1"}))
	require.NoError(t, a.DeleteEntity(ctx, EntityRef{Entity: model.EntitySecurityGroup, ID: "sg-1"}))
	assert.Error(t, a.DeleteEntity(ctx, EntityRef{Entity: model.EntityBackup, ID: "b-1"}))
	st.AssertExpectations(t)
}

func TestTransitionReturnsNewState(t *testing.T) {
	st := &mockStore{}
	a := NewLifecycle(st)

	st.On("Transition", mock.Anything, model.EntityResource, "r-1", fsm.BeginStopping).Return(model.StateStopping, nil)

	got, err := a.Transition(context.Background(), TransitionParams{Entity: model.EntityResource, ID: "r-1", Transition: fsm.BeginStopping})
	require.NoError(t, err)
	assert.Equal(t, model.StateStopping, got)
}

func TestRecoverResourceRestoresThroughStore(t *testing.T) {
	st := &mockStore{}
	a := NewLifecycle(st)

	st.On("RecoverResource", mock.Anything, "vm-1", fsm.RecoverOnline).Return(model.StateOnline, nil).Once()

	got, err := a.RecoverResource(context.Background(), TransitionParams{
		Entity: model.EntityResource, ID: "vm-1", Transition: fsm.RecoverOnline,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StateOnline, got)
	st.AssertExpectations(t)
}

func TestRecoverResourceRejectsOtherEntities(t *testing.T) {
	st := &mockStore{}
	a := NewLifecycle(st)

	_, err := a.RecoverResource(context.Background(), TransitionParams{
		Entity: model.EntityLink, ID: "spl-1", Transition: fsm.Recover,
	})
	require.Error(t, err)
	st.AssertNotCalled(t, "RecoverResource", mock.Anything, mock.Anything, mock.Anything)
}
