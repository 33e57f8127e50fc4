package activity

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/opennode/waldur-core-sub000/internal/backend"
	"github.com/opennode/waldur-core-sub000/internal/backup"
	"github.com/opennode/waldur-core-sub000/internal/event"
	"github.com/opennode/waldur-core-sub000/internal/fsm"
	"github.com/opennode/waldur-core-sub000/internal/model"
)

var backupNow = time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC)

func newTestBackups(st *mockStore, ticks *mockTicks, gate *mockQuotaGate, sink *recordingSink) *Backups {
	a := NewBackups(st, ticks, gate, sink, zerolog.Nop())
	a.now = func() time.Time { return backupNow }
	return a
}

func intPtr(v int) *int { return &v }

func TestRunScheduleTickUsesClock(t *testing.T) {
	ticks := &mockTicks{}
	a := newTestBackups(&mockStore{}, ticks, &mockQuotaGate{}, &recordingSink{})

	want := backup.TickResult{ScheduleID: "sch-1", BackupID: "b-1", NextTrigger: backupNow.Add(time.Hour)}
	ticks.On("Tick", mock.Anything, "sch-1", backupNow).Return(want, nil)

	got, err := a.RunScheduleTick(context.Background(), "sch-1")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestValidateBackupQuotaChargesVolumeStorage(t *testing.T) {
	st := &mockStore{}
	gate := &mockQuotaGate{}
	a := newTestBackups(st, &mockTicks{}, gate, &recordingSink{})

	st.On("GetBackup", mock.Anything, "b-1").Return(&model.Backup{ID: "b-1", ResourceID: "r-1"}, nil)
	st.On("GetResourceContext", mock.Anything, "r-1").Return(testResourceContext(model.Resource{
		ID: "r-1", LinkID: "spl-1", SystemVolumeSize: 10240, DataVolumeSize: 20480,
	}, nil), nil)
	gate.On("Admit", mock.Anything, model.Scope{Type: model.ScopeLink, ID: "spl-1"},
		map[string]float64{model.QuotaStorage: 30720}).Return(nil)

	require.NoError(t, a.ValidateBackupQuota(context.Background(), "b-1"))
	gate.AssertExpectations(t)
}

func TestValidateBackupQuotaExceeded(t *testing.T) {
	st := &mockStore{}
	gate := &mockQuotaGate{}
	a := newTestBackups(st, &mockTicks{}, gate, &recordingSink{})

	st.On("GetBackup", mock.Anything, "b-1").Return(&model.Backup{ID: "b-1", ResourceID: "r-1"}, nil)
	st.On("GetResourceContext", mock.Anything, "r-1").Return(testResourceContext(model.Resource{
		ID: "r-1", LinkID: "spl-1", SystemVolumeSize: 10240,
	}, nil), nil)
	gate.On("Admit", mock.Anything, mock.Anything, mock.Anything).
		Return(&model.QuotaExceededError{Breakdown: multierror.Append(nil, errors.New("storage over limit"))})

	err := a.ValidateBackupQuota(context.Background(), "b-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrQuotaExceeded)
}

func TestStoreBackupMetadataSnapshotsResource(t *testing.T) {
	st := &mockStore{}
	a := newTestBackups(st, &mockTicks{}, &mockQuotaGate{}, &recordingSink{})

	st.On("GetBackup", mock.Anything, "b-1").Return(&model.Backup{ID: "b-1", ResourceID: "r-1"}, nil)
	st.On("GetResourceContext", mock.Anything, "r-1").Return(testResourceContext(model.Resource{
		ID: "r-1", LinkID: "spl-1", Name: "web", FlavorName: "m1.small",
	}, nil), nil)
	set := backend.SnapshotSet{SystemSnapshotID: "snap-1", DataSnapshotID: "snap-2", SystemSnapshotSize: 10, DataSnapshotSize: 20}
	st.On("SetBackupMetadata", mock.Anything, "b-1", mock.MatchedBy(func(md model.BackupMetadata) bool {
		return md.Name == "web" && md.LinkID == "spl-1" && md.SystemSnapshotID == "snap-1" &&
			md.SystemSnapshotSize != nil && *md.SystemSnapshotSize == 10
	})).Return(nil)

	require.NoError(t, a.StoreBackupMetadata(context.Background(), StoreBackupMetadataParams{BackupID: "b-1", Set: set}))
	st.AssertExpectations(t)
}

func TestDeactivateScheduleEmitsEvent(t *testing.T) {
	st := &mockStore{}
	sink := &recordingSink{err: errors.New("kafka down")}
	a := newTestBackups(st, &mockTicks{}, &mockQuotaGate{}, sink)

	st.On("SetScheduleActive", mock.Anything, "sch-1", false, (*time.Time)(nil)).Return(nil)

	err := a.DeactivateSchedule(context.Background(), DeactivateScheduleParams{ScheduleID: "sch-1", BackupID: "b-1", Reason: "snapshot failed"})
	require.NoError(t, err)
	require.Len(t, sink.events, 1)
	assert.Equal(t, event.TypeScheduleDeactivated, sink.events[0].Type)
	assert.Equal(t, "sch-1", sink.events[0].Context["schedule_id"])
}

func TestStartExpiredBackupDeletionsSkipsBusy(t *testing.T) {
	st := &mockStore{}
	a := newTestBackups(st, &mockTicks{}, &mockQuotaGate{}, &recordingSink{})

	st.On("ListExpiredBackupIDs", mock.Anything, backupNow).Return([]string{"b-1", "b-2", "b-3"}, nil)
	st.On("Transition", mock.Anything, model.EntityBackup, "b-1", fsm.StartingDeletion).Return(model.StateDeleting, nil)
	st.On("Transition", mock.Anything, model.EntityBackup, "b-2", fsm.StartingDeletion).
		Return(model.State(""), &model.StateConflictError{Entity: model.EntityBackup, ID: "b-2", State: model.StateRestoring})
	st.On("Transition", mock.Anything, model.EntityBackup, "b-3", fsm.StartingDeletion).Return(model.StateDeleting, nil)

	ids, err := a.StartExpiredBackupDeletions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"b-1", "b-3"}, ids)
}

func TestCreateRestoredResourceAdmitsQuota(t *testing.T) {
	st := &mockStore{}
	gate := &mockQuotaGate{}
	a := newTestBackups(st, &mockTicks{}, gate, &recordingSink{})

	md := &model.BackupMetadata{
		Name: "web", LinkID: "spl-1", FlavorName: "m1.small", Cores: 1, RAM: 2048,
		SystemSnapshotSize: intPtr(10240), DataSnapshotSize: intPtr(0),
	}
	st.On("GetBackup", mock.Anything, "b-1").Return(&model.Backup{ID: "b-1", ResourceID: "r-1", Metadata: md}, nil)
	st.On("GetLinkContext", mock.Anything, "spl-1").Return(&model.LinkContext{
		Link: model.ServiceProjectLink{ID: "spl-1"}, Settings: dummySettings(nil),
	}, nil)
	st.On("GetFlavorByName", mock.Anything, "settings-1", "m1.large").
		Return(&model.Flavor{Name: "m1.large", Cores: 4, RAM: 8192}, nil)
	gate.On("Admit", mock.Anything, model.Scope{Type: model.ScopeLink, ID: "spl-1"}, map[string]float64{
		model.QuotaInstances: 1, model.QuotaVCPU: 4, model.QuotaRAM: 8192, model.QuotaStorage: 10240,
	}).Return(nil)

	params := CreateRestoredResourceParams{
		BackupID: "b-1", Name: "web-restored", FlavorName: "m1.large",
		Volumes: backend.VolumePair{SystemVolumeID: "vol-1"},
	}
	st.On("GetResourceContext", mock.Anything, restoredResourceID(params)).
		Return(nil, fmt.Errorf("resource: %w", model.ErrNotFound))

	id, err := a.CreateRestoredResource(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, restoredResourceID(params), id)
	gate.AssertExpectations(t)
}

func TestCreateRestoredResourceReturnsExistingOnRetry(t *testing.T) {
	st := &mockStore{}
	gate := &mockQuotaGate{}
	a := newTestBackups(st, &mockTicks{}, gate, &recordingSink{})

	md := &model.BackupMetadata{
		Name: "web", LinkID: "spl-1", FlavorName: "m1.small", Cores: 1, RAM: 2048,
		SystemSnapshotSize: intPtr(10240), DataSnapshotSize: intPtr(0),
	}
	params := CreateRestoredResourceParams{
		BackupID: "b-1", Name: "web-restored",
		Volumes: backend.VolumePair{SystemVolumeID: "vol-1", DataVolumeID: "vol-2"},
	}
	id := restoredResourceID(params)
	st.On("GetBackup", mock.Anything, "b-1").Return(&model.Backup{ID: "b-1", ResourceID: "r-1", Metadata: md}, nil)
	st.On("GetResourceContext", mock.Anything, id).
		Return(&model.ResourceContext{Resource: model.Resource{ID: id}}, nil)

	got, err := a.CreateRestoredResource(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, id, got)
	gate.AssertNotCalled(t, "Admit", mock.Anything, mock.Anything, mock.Anything)

	other := params
	other.Volumes.DataVolumeID = "vol-3"
	assert.NotEqual(t, id, restoredResourceID(other))
}

func TestCreateRestoredResourceRejectsIncompleteMetadata(t *testing.T) {
	st := &mockStore{}
	a := newTestBackups(st, &mockTicks{}, &mockQuotaGate{}, &recordingSink{})

	md := &model.BackupMetadata{Name: "web", LinkID: "spl-1"}
	st.On("GetBackup", mock.Anything, "b-1").Return(&model.Backup{ID: "b-1", Metadata: md}, nil)

	_, err := a.CreateRestoredResource(context.Background(), CreateRestoredResourceParams{BackupID: "b-1"})
	assert.ErrorIs(t, err, backup.ErrIncompleteMetadata)
}
