package core

import (
	"github.com/rs/zerolog"

	"github.com/opennode/waldur-core-sub000/internal/event"
	"github.com/opennode/waldur-core-sub000/internal/quota"
)

type Services struct {
	Resource       *ResourceService
	Backup         *BackupService
	BackupSchedule *BackupScheduleService
	Template       *TemplateService
	Quota          *QuotaService
	Link           *LinkService
	SSHKey         *SSHKeyService
}

func NewServices(st Store, gate *quota.Gate, starter Starter, runner TemplateRunner, events event.Sink, logger zerolog.Logger) *Services {
	return &Services{
		Resource:       NewResourceService(st, gate, starter, logger),
		Backup:         NewBackupService(st, starter, logger),
		BackupSchedule: NewBackupScheduleService(st, events, logger),
		Template:       NewTemplateService(st, runner),
		Quota:          NewQuotaService(gate),
		Link:           NewLinkService(st, starter),
		SSHKey:         NewSSHKeyService(st),
	}
}
