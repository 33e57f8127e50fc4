package backup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opennode/waldur-core-sub000/internal/backend"
	"github.com/opennode/waldur-core-sub000/internal/model"
)

func TestNextTrigger(t *testing.T) {
	after := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	next, err := NextTrigger("0 * * * *", "UTC", after)
	require.NoError(t, err)
	assert.Equal(t, after.Add(time.Hour), next, "strictly after")

	next, err = NextTrigger("30 2 * * *", "Europe/Tallinn", after)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 11, 0, 30, 0, 0, time.UTC), next)

	next, err = NextTrigger("*/15 * * * *", "", after.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, after.Add(15*time.Minute), next)
}

func TestNextTriggerInvalid(t *testing.T) {
	_, err := NextTrigger("not a cron", "UTC", time.Now())
	assert.ErrorContains(t, err, "invalid schedule")

	_, err = NextTrigger("0 * * * *", "Mars/Olympus", time.Now())
	assert.ErrorContains(t, err, "invalid timezone")

	assert.NoError(t, ValidateSchedule("0 3 * * 1", "America/New_York"))
}

func backupAt(id string, state model.State, created time.Time) model.Backup {
	return model.Backup{ID: id, State: state, CreatedAt: created}
}

func TestPlanTickPrunesOldestReady(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := t0.Add(10 * time.Hour)
	s := model.BackupSchedule{Schedule: "0 * * * *", Timezone: "UTC", RetentionDays: 1, MaxBackups: 3}
	backups := []model.Backup{
		backupAt("b3", model.StateReady, t0.Add(3*time.Hour)),
		backupAt("b1", model.StateReady, t0.Add(1*time.Hour)),
		backupAt("b2", model.StateReady, t0.Add(2*time.Hour)),
		backupAt("b4", model.StateReady, t0.Add(4*time.Hour)),
		backupAt("gone", model.StateDeleting, t0),
		backupAt("bad", model.StateErred, t0),
	}

	plan, err := PlanTick(s, model.StateOnline, backups, now)
	require.NoError(t, err)
	assert.True(t, plan.CreateBackup)
	require.NotNil(t, plan.KeptUntil)
	assert.Equal(t, now.Add(24*time.Hour), *plan.KeptUntil)
	assert.Equal(t, now.Add(time.Hour), plan.NextTrigger)

	// four live plus the new one against a cap of three
	require.Len(t, plan.Prune, 2)
	assert.Equal(t, "b1", plan.Prune[0].ID)
	assert.Equal(t, "b2", plan.Prune[1].ID)
}

func TestPlanTickBusyResource(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := model.BackupSchedule{Schedule: "0 * * * *", MaxBackups: 1}
	backups := []model.Backup{
		backupAt("b1", model.StateReady, t0),
		backupAt("b2", model.StateReady, t0.Add(time.Hour)),
	}

	plan, err := PlanTick(s, model.StateResizing, backups, t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, plan.CreateBackup)
	assert.Nil(t, plan.KeptUntil)
	require.Len(t, plan.Prune, 1)
	assert.Equal(t, "b1", plan.Prune[0].ID)
	assert.False(t, plan.NextTrigger.IsZero())
}

func TestPlanTickNeverPrunesInFlight(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := model.BackupSchedule{Schedule: "0 * * * *", MaxBackups: 1}
	backups := []model.Backup{
		backupAt("b1", model.StateBackingUp, t0),
		backupAt("b2", model.StateRestoring, t0.Add(time.Hour)),
	}
	plan, err := PlanTick(s, model.StateOnline, backups, t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, plan.Prune)
	assert.Nil(t, plan.KeptUntil, "zero retention keeps forever")
}

func TestScheduledBackupID(t *testing.T) {
	at := time.Date(2026, 1, 1, 3, 0, 0, 0, time.UTC)
	id := ScheduledBackupID("sched-1", at)
	assert.Equal(t, id, ScheduledBackupID("sched-1", at.In(time.FixedZone("EET", 2*3600))))
	assert.NotEqual(t, id, ScheduledBackupID("sched-1", at.Add(time.Hour)))
	assert.NotEqual(t, id, ScheduledBackupID("sched-2", at))
}

func TestPendingBackupPicksNewestBackingUp(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	backups := []model.Backup{
		backupAt("old", model.StateBackingUp, t0),
		backupAt("ready", model.StateReady, t0.Add(2*time.Hour)),
		backupAt("fresh", model.StateBackingUp, t0.Add(time.Hour)),
	}
	b, ok := PendingBackup(backups)
	require.True(t, ok)
	assert.Equal(t, "fresh", b.ID)

	_, ok = PendingBackup([]model.Backup{backupAt("ready", model.StateReady, t0)})
	assert.False(t, ok)
}

func TestMetadataRoundTrip(t *testing.T) {
	r := model.Resource{
		Name: "db", LinkID: "spl-1", FlavorName: "m1.small", Cores: 2, RAM: 4096,
		KeyName: "k", KeyFingerprint: "aa:bb", ImageName: "ubuntu", Tags: []string{"prod"},
		SystemVolumeSize: 10240, DataVolumeSize: 20480,
	}
	md := Metadata(r, backend.SnapshotSet{SystemSnapshotID: "s1", DataSnapshotID: "s2", SystemSnapshotSize: 10240, DataSnapshotSize: 20480})
	assert.Equal(t, "s1", Snapshots(md).SystemSnapshotID)

	restored, err := RestoreInput(&md, RestoreOverrides{Name: "db-restored"})
	require.NoError(t, err)
	assert.Equal(t, "db-restored", restored.Name)
	assert.Equal(t, model.StateProvisioningScheduled, restored.State)
	assert.Equal(t, r.FlavorName, restored.FlavorName)
	assert.Equal(t, r.KeyFingerprint, restored.KeyFingerprint)
	assert.Equal(t, r.SystemVolumeSize, restored.SystemVolumeSize)
	assert.Equal(t, r.DataVolumeSize, restored.DataVolumeSize)
	assert.Equal(t, "spl-1", restored.LinkID)

	restored, err = RestoreInput(&md, RestoreOverrides{Flavor: &model.Flavor{Name: "m1.large", Cores: 4, RAM: 8192}})
	require.NoError(t, err)
	assert.Equal(t, 4, restored.Cores)
}

func TestRestoreInputRejectsIncompleteMetadata(t *testing.T) {
	_, err := RestoreInput(nil, RestoreOverrides{})
	assert.ErrorIs(t, err, ErrIncompleteMetadata)

	size := 10
	_, err = RestoreInput(&model.BackupMetadata{SystemSnapshotSize: &size}, RestoreOverrides{})
	assert.ErrorIs(t, err, ErrIncompleteMetadata)
}
