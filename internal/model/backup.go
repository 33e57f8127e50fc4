package model

import "time"

// Backup is a point-in-time snapshot set of a resource.
type Backup struct {
	ID           string          `json:"id"`
	ResourceID   string          `json:"resource_id"`
	ScheduleID   *string         `json:"schedule_id,omitempty"`
	Description  string          `json:"description,omitempty"`
	KeptUntil    *time.Time      `json:"kept_until,omitempty"`
	State        State           `json:"state"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Metadata     *BackupMetadata `json:"metadata,omitempty"`
	Version      int             `json:"version"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Live reports whether the backup still counts toward a schedule's cap.
func (b Backup) Live() bool {
	switch b.State {
	case StateDeleting, StateDeleted, StateErred:
		return false
	}
	return true
}

// BackupMetadata holds everything needed to recreate the resource.
// Snapshot sizes are pointers because restore must reject metadata that
// lacks them.
type BackupMetadata struct {
	Name               string   `json:"name"`
	LinkID             string   `json:"service_project_link"`
	FlavorName         string   `json:"flavor_name,omitempty"`
	Cores              int      `json:"cores,omitempty"`
	RAM                int      `json:"ram,omitempty"`
	ImageName          string   `json:"image_name,omitempty"`
	KeyName            string   `json:"key_name,omitempty"`
	KeyFingerprint     string   `json:"key_fingerprint,omitempty"`
	UserData           string   `json:"user_data,omitempty"`
	MinRAM             int      `json:"min_ram,omitempty"`
	MinDisk            int      `json:"min_disk,omitempty"`
	Tags               []string `json:"tags,omitempty"`
	SystemVolumeID     string   `json:"system_volume_id,omitempty"`
	SystemVolumeSize   int      `json:"system_volume_size,omitempty"`
	DataVolumeID       string   `json:"data_volume_id,omitempty"`
	DataVolumeSize     int      `json:"data_volume_size,omitempty"`
	SystemSnapshotID   string   `json:"system_snapshot_id,omitempty"`
	DataSnapshotID     string   `json:"data_snapshot_id,omitempty"`
	SystemSnapshotSize *int     `json:"system_snapshot_size,omitempty"`
	DataSnapshotSize   *int     `json:"data_snapshot_size,omitempty"`
}

// BackupSchedule drives periodic backups of one resource.
type BackupSchedule struct {
	ID            string     `json:"id"`
	ResourceID    string     `json:"resource_id"`
	Description   string     `json:"description,omitempty"`
	Schedule      string     `json:"schedule"`
	Timezone      string     `json:"timezone"`
	RetentionDays int        `json:"retention_days"`
	MaxBackups    int        `json:"max_backups"`
	IsActive      bool       `json:"is_active"`
	NextTriggerAt *time.Time `json:"next_trigger_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
