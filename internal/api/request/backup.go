package request

type CreateBackup struct {
	Description   string `json:"description" validate:"max=500"`
	RetentionDays int    `json:"retention_days" validate:"gte=0"`
}

type RestoreBackup struct {
	Name   string `json:"name" validate:"max=150"`
	Flavor string `json:"flavor"`
}

type CreateBackupSchedule struct {
	Resource      string `json:"resource" validate:"required"`
	Description   string `json:"description" validate:"max=500"`
	Schedule      string `json:"schedule" validate:"required,cron"`
	Timezone      string `json:"timezone" validate:"omitempty,timezone"`
	RetentionDays int    `json:"retention_days" validate:"gte=0"`
	MaxBackups    int    `json:"maximal_number_of_backups" validate:"required,gte=1"`
}
