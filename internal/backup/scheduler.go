package backup

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/opennode/waldur-core-sub000/internal/fsm"
	"github.com/opennode/waldur-core-sub000/internal/model"
	"github.com/opennode/waldur-core-sub000/internal/store"
)

// TickResult reports the effects of one schedule firing.
type TickResult struct {
	ScheduleID  string    `json:"schedule_id"`
	BackupID    string    `json:"backup_id,omitempty"`
	Pruned      []string  `json:"pruned,omitempty"`
	NextTrigger time.Time `json:"next_trigger"`
	NotDue      bool      `json:"not_due,omitempty"`
}

type Scheduler struct {
	store  *store.Store
	logger zerolog.Logger
}

func NewScheduler(st *store.Store, logger zerolog.Logger) *Scheduler {
	return &Scheduler{store: st, logger: logger.With().Str("component", "backup-scheduler").Logger()}
}

// Tick fires one schedule in a single transaction. The schedule row lock
// serialises concurrent ticks; a schedule that is inactive or no longer
// due is left untouched. A repeated tick of an active schedule that
// already fired reports the backup it left in BACKING_UP.
func (s *Scheduler) Tick(ctx context.Context, scheduleID string, now time.Time) (TickResult, error) {
	res := TickResult{ScheduleID: scheduleID}
	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		res = TickResult{ScheduleID: scheduleID}
		sc, err := tx.LockSchedule(ctx, scheduleID)
		if err != nil {
			return err
		}
		if !sc.IsActive || sc.NextTriggerAt == nil {
			res.NotDue = true
			return nil
		}
		if sc.NextTriggerAt.After(now) {
			res.NotDue = true
			res.NextTrigger = *sc.NextTriggerAt
			backups, err := tx.ListScheduleBackups(ctx, sc.ID)
			if err != nil {
				return err
			}
			if b, ok := PendingBackup(backups); ok {
				res.BackupID = b.ID
			}
			return nil
		}

		state, _, err := tx.State(ctx, model.EntityResource, sc.ResourceID)
		if err != nil {
			return err
		}
		backups, err := tx.ListScheduleBackups(ctx, sc.ID)
		if err != nil {
			return err
		}
		plan, err := PlanTick(*sc, state, backups, now)
		if err != nil {
			return err
		}

		if plan.CreateBackup {
			id := sc.ID
			b := &model.Backup{
				ID:          ScheduledBackupID(sc.ID, *sc.NextTriggerAt),
				ResourceID:  sc.ResourceID,
				ScheduleID:  &id,
				Description: fmt.Sprintf("scheduled backup (%s)", sc.Schedule),
				KeptUntil:   plan.KeptUntil,
				State:       model.StateBackingUp,
			}
			if err := tx.InsertBackup(ctx, b); err != nil {
				return err
			}
			res.BackupID = b.ID
		} else {
			s.logger.Info().Str("schedule_id", sc.ID).Str("resource_state", string(state)).
				Msg("resource is busy, skipping scheduled backup")
		}

		for _, b := range plan.Prune {
			if _, err := tx.Transition(ctx, model.EntityBackup, b.ID, fsm.StartingDeletion,
				store.WithExpectedVersion(b.Version)); err != nil {
				return err
			}
			res.Pruned = append(res.Pruned, b.ID)
		}

		if err := tx.SetNextTrigger(ctx, sc.ID, plan.NextTrigger); err != nil {
			return err
		}
		res.NextTrigger = plan.NextTrigger
		return nil
	})
	if err != nil {
		return TickResult{}, fmt.Errorf("tick schedule %s: %w", scheduleID, err)
	}
	return res, nil
}
