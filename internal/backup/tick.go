package backup

import (
	"sort"
	"time"

	"github.com/opennode/waldur-core-sub000/internal/fsm"
	"github.com/opennode/waldur-core-sub000/internal/model"
	"github.com/opennode/waldur-core-sub000/internal/platform"
)

// TickPlan is what one firing of a schedule should do.
type TickPlan struct {
	CreateBackup bool
	KeptUntil    *time.Time
	Prune        []model.Backup
	NextTrigger  time.Time
}

// PlanTick decides one schedule firing. backups are the schedule's
// existing backups. A resource in a transitional state gets no new backup
// but pruning and advancing still happen.
func PlanTick(s model.BackupSchedule, resourceState model.State, backups []model.Backup, now time.Time) (TickPlan, error) {
	next, err := NextTrigger(s.Schedule, s.Timezone, now)
	if err != nil {
		return TickPlan{}, err
	}
	plan := TickPlan{NextTrigger: next, CreateBackup: fsm.Resource.IsStable(resourceState)}
	if plan.CreateBackup && s.RetentionDays > 0 {
		kept := now.Add(time.Duration(s.RetentionDays) * 24 * time.Hour)
		plan.KeptUntil = &kept
	}

	live := 0
	var ready []model.Backup
	for _, b := range backups {
		if !b.Live() {
			continue
		}
		live++
		if b.State == model.StateReady {
			ready = append(ready, b)
		}
	}
	if plan.CreateBackup {
		live++
	}
	if s.MaxBackups <= 0 {
		return plan, nil
	}

	sort.SliceStable(ready, func(i, j int) bool { return ready[i].CreatedAt.Before(ready[j].CreatedAt) })
	for _, b := range ready {
		if live <= s.MaxBackups {
			break
		}
		plan.Prune = append(plan.Prune, b)
		live--
	}
	return plan, nil
}

// ScheduledBackupID names the backup a schedule creates for its firing at
// trigger.
func ScheduledBackupID(scheduleID string, trigger time.Time) string {
	return platform.DerivedID("backup-schedule:" + scheduleID + ":" + trigger.UTC().Format(time.RFC3339Nano))
}

// PendingBackup returns the newest backup of a schedule still in
// BACKING_UP. A firing that committed but whose result was lost hands it
// back so its backup workflow is still started.
func PendingBackup(backups []model.Backup) (model.Backup, bool) {
	var (
		out   model.Backup
		found bool
	)
	for _, b := range backups {
		if b.State != model.StateBackingUp {
			continue
		}
		if !found || b.CreatedAt.After(out.CreatedAt) {
			out, found = b, true
		}
	}
	return out, found
}
