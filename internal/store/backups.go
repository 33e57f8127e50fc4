package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/opennode/waldur-core-sub000/internal/model"
)

const backupColumns = `id, resource_id, schedule_id, description, kept_until, state, error_message, metadata,
	version, created_at, updated_at`

const scheduleColumns = `id, resource_id, description, schedule, timezone, retention_days, max_backups,
	is_active, next_trigger_at, created_at, updated_at`

func scanBackup(row pgx.Row) (*model.Backup, error) {
	var b model.Backup
	err := row.Scan(&b.ID, &b.ResourceID, &b.ScheduleID, &b.Description, &b.KeptUntil, &b.State, &b.ErrorMessage,
		&b.Metadata, &b.Version, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func scanSchedule(row pgx.Row) (*model.BackupSchedule, error) {
	var s model.BackupSchedule
	err := row.Scan(&s.ID, &s.ResourceID, &s.Description, &s.Schedule, &s.Timezone, &s.RetentionDays, &s.MaxBackups,
		&s.IsActive, &s.NextTriggerAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func collectBackups(rows pgx.Rows) ([]model.Backup, error) {
	defer rows.Close()
	var out []model.Backup
	for rows.Next() {
		b, err := scanBackup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backup: %w", err)
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// InsertBackup creates a backup row in the state carried by b.
func (tx *Tx) InsertBackup(ctx context.Context, b *model.Backup) error {
	now := time.Now()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt, b.Version = now, 1
	_, err := tx.Exec(ctx,
		`INSERT INTO backups (`+backupColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		b.ID, b.ResourceID, b.ScheduleID, b.Description, b.KeptUntil, b.State, b.ErrorMessage, b.Metadata,
		b.Version, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert backup %s: %w", b.ID, err)
	}
	return tx.Record(ctx, Change{
		Kind:    ChangeCreated,
		Entity:  model.EntityBackup,
		ID:      b.ID,
		To:      b.State,
		Context: map[string]string{"resource_id": b.ResourceID},
	})
}

// CreateBackup inserts a backup in its own transaction.
func (s *Store) CreateBackup(ctx context.Context, b *model.Backup) error {
	return s.InTx(ctx, func(tx *Tx) error {
		return tx.InsertBackup(ctx, b)
	})
}

// GetBackup retrieves a backup by its ID.
func (s *Store) GetBackup(ctx context.Context, id string) (*model.Backup, error) {
	b, err := scanBackup(s.db.QueryRow(ctx, `SELECT `+backupColumns+` FROM backups WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(model.EntityBackup, id, err)
	}
	return b, nil
}

// ListScheduleBackups returns the backups created by a schedule, oldest
// first, locking them for the caller's transaction.
func (tx *Tx) ListScheduleBackups(ctx context.Context, scheduleID string) ([]model.Backup, error) {
	rows, err := tx.Query(ctx,
		`SELECT `+backupColumns+` FROM backups WHERE schedule_id = $1 ORDER BY created_at FOR UPDATE`, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("list backups of schedule %s: %w", scheduleID, err)
	}
	return collectBackups(rows)
}

// ListExpiredBackupIDs returns READY backups whose retention has passed.
func (s *Store) ListExpiredBackupIDs(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id FROM backups WHERE state = $1 AND kept_until IS NOT NULL AND kept_until < $2 ORDER BY kept_until`,
		model.StateReady, now)
	if err != nil {
		return nil, fmt.Errorf("list expired backups: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan backup id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetBackupMetadata stores the snapshot metadata of a finished backup.
func (s *Store) SetBackupMetadata(ctx context.Context, id string, md model.BackupMetadata) error {
	tag, err := s.db.Exec(ctx, `UPDATE backups SET metadata = $1, updated_at = now() WHERE id = $2`, md, id)
	if err != nil {
		return fmt.Errorf("set metadata of backup %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("backup %s: %w", id, model.ErrNotFound)
	}
	return nil
}

// InsertSchedule creates a backup schedule.
func (s *Store) InsertSchedule(ctx context.Context, sc *model.BackupSchedule) error {
	now := time.Now()
	sc.CreatedAt, sc.UpdatedAt = now, now
	_, err := s.db.Exec(ctx,
		`INSERT INTO backup_schedules (`+scheduleColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		sc.ID, sc.ResourceID, sc.Description, sc.Schedule, sc.Timezone, sc.RetentionDays, sc.MaxBackups,
		sc.IsActive, sc.NextTriggerAt, sc.CreatedAt, sc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert backup schedule %s: %w", sc.ID, err)
	}
	return nil
}

// GetSchedule retrieves a backup schedule by its ID.
func (s *Store) GetSchedule(ctx context.Context, id string) (*model.BackupSchedule, error) {
	sc, err := scanSchedule(s.db.QueryRow(ctx, `SELECT `+scheduleColumns+` FROM backup_schedules WHERE id = $1`, id))
	if err != nil {
		return nil, notFound("backup_schedule", id, err)
	}
	return sc, nil
}

// LockSchedule loads a schedule with a row lock.
func (tx *Tx) LockSchedule(ctx context.Context, id string) (*model.BackupSchedule, error) {
	sc, err := scanSchedule(tx.QueryRow(ctx,
		`SELECT `+scheduleColumns+` FROM backup_schedules WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound("backup_schedule", id, err)
	}
	return sc, nil
}

// ListSchedules returns the schedules of a resource, or every schedule
// when resourceID is empty.
func (s *Store) ListSchedules(ctx context.Context, resourceID string) ([]model.BackupSchedule, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+scheduleColumns+` FROM backup_schedules WHERE ($1 = '' OR resource_id = $1) ORDER BY created_at`,
		resourceID)
	if err != nil {
		return nil, fmt.Errorf("list backup schedules: %w", err)
	}
	defer rows.Close()

	var out []model.BackupSchedule
	for rows.Next() {
		sc, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backup schedule: %w", err)
		}
		out = append(out, *sc)
	}
	return out, rows.Err()
}

// ListDueScheduleIDs returns active schedules whose trigger time passed.
func (s *Store) ListDueScheduleIDs(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id FROM backup_schedules WHERE is_active AND next_trigger_at < $1 ORDER BY next_trigger_at`, now)
	if err != nil {
		return nil, fmt.Errorf("list due backup schedules: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan schedule id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetNextTrigger advances a schedule inside a unit of work.
func (tx *Tx) SetNextTrigger(ctx context.Context, id string, next time.Time) error {
	_, err := tx.Exec(ctx,
		`UPDATE backup_schedules SET next_trigger_at = $1, updated_at = now() WHERE id = $2`, next, id)
	if err != nil {
		return fmt.Errorf("set next trigger of schedule %s: %w", id, err)
	}
	return nil
}

// SetScheduleActive toggles a schedule. Activation must come with the next
// trigger time so the schedule never becomes active with a past trigger.
func (s *Store) SetScheduleActive(ctx context.Context, id string, active bool, next *time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE backup_schedules SET is_active = $1, next_trigger_at = COALESCE($2, next_trigger_at), updated_at = now()
		 WHERE id = $3`, active, next, id)
	if err != nil {
		return fmt.Errorf("set schedule %s active=%t: %w", id, active, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("backup_schedule %s: %w", id, model.ErrNotFound)
	}
	return nil
}

// DeleteSchedule removes a schedule. Its backups survive with no schedule.
func (s *Store) DeleteSchedule(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM backup_schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete backup schedule %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("backup_schedule %s: %w", id, model.ErrNotFound)
	}
	return nil
}
