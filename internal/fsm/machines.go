package fsm

import "github.com/opennode/waldur-core-sub000/internal/model"

// Transition names.
const (
	ScheduleCreating = "schedule_creating"
	BeginCreating    = "begin_creating"
	ScheduleSyncing  = "schedule_syncing"
	BeginSyncing     = "begin_syncing"
	SetInSync        = "set_in_sync"
	Recover          = "recover"
	SetErred         = "set_erred"

	BeginProvisioning  = "begin_provisioning"
	SetOnline          = "set_online"
	SetOffline         = "set_offline"
	ScheduleStarting   = "schedule_starting"
	BeginStarting      = "begin_starting"
	ScheduleStopping   = "schedule_stopping"
	BeginStopping      = "begin_stopping"
	ScheduleRestarting = "schedule_restarting"
	BeginRestarting    = "begin_restarting"
	ScheduleResizing   = "schedule_resizing"
	BeginResizing      = "begin_resizing"
	SetResized         = "set_resized"
	ScheduleDeletion   = "schedule_deletion"
	BeginDeleting      = "begin_deleting"
	RecoverOnline      = "recover_online"
	RecoverOffline     = "recover_offline"

	StartingBackup      = "starting_backup"
	ConfirmBackup       = "confirm_backup"
	StartingDeletion    = "starting_deletion"
	ConfirmDeletion     = "confirm_deletion"
	StartingRestoration = "starting_restoration"
	ConfirmRestoration  = "confirm_restoration"

	Book     = "book"
	Activate = "activate"
	Release  = "release"
)

// NewSyncMachine builds the synchronisation machine for the given entity.
func NewSyncMachine(entity string) *Machine {
	return newMachine(entity,
		[]model.State{model.StateInSync, model.StateErred},
		nil,
		Transition{ScheduleCreating, []model.State{model.StateNew}, model.StateCreationScheduled},
		Transition{BeginCreating, []model.State{model.StateCreationScheduled}, model.StateCreating},
		Transition{ScheduleSyncing, []model.State{model.StateInSync}, model.StateSyncScheduled},
		Transition{BeginSyncing, []model.State{model.StateSyncScheduled}, model.StateSyncing},
		Transition{SetInSync, []model.State{model.StateCreating, model.StateSyncing}, model.StateInSync},
		Transition{Recover, []model.State{model.StateErred}, model.StateSyncScheduled},
		Transition{SetErred, nil, model.StateErred},
	)
}

var (
	Settings      = NewSyncMachine(model.EntitySettings)
	Link          = NewSyncMachine(model.EntityLink)
	SecurityGroup = NewSyncMachine(model.EntitySecurityGroup)
	Resource      = newResourceMachine()
	Backup        = newBackupMachine()
	FloatingIP    = newFloatingIPMachine()
)

func newResourceMachine() *Machine {
	return newMachine(model.EntityResource,
		[]model.State{model.StateOnline, model.StateOffline, model.StateErred},
		nil,
		Transition{BeginProvisioning, []model.State{model.StateProvisioningScheduled}, model.StateProvisioning},
		Transition{SetOnline, []model.State{model.StateProvisioning, model.StateStarting, model.StateRestarting}, model.StateOnline},
		Transition{SetOffline, []model.State{model.StateProvisioning, model.StateStopping, model.StateResizing}, model.StateOffline},
		Transition{ScheduleStarting, []model.State{model.StateOffline}, model.StateStartingScheduled},
		Transition{BeginStarting, []model.State{model.StateStartingScheduled}, model.StateStarting},
		Transition{ScheduleStopping, []model.State{model.StateOnline}, model.StateStoppingScheduled},
		Transition{BeginStopping, []model.State{model.StateStoppingScheduled}, model.StateStopping},
		Transition{ScheduleRestarting, []model.State{model.StateOnline}, model.StateRestartingScheduled},
		Transition{BeginRestarting, []model.State{model.StateRestartingScheduled}, model.StateRestarting},
		Transition{ScheduleResizing, []model.State{model.StateOffline}, model.StateResizingScheduled},
		Transition{BeginResizing, []model.State{model.StateResizingScheduled}, model.StateResizing},
		Transition{SetResized, []model.State{model.StateResizing}, model.StateOffline},
		Transition{ScheduleDeletion, []model.State{model.StateOffline, model.StateOnline, model.StateErred}, model.StateDeletionScheduled},
		Transition{BeginDeleting, []model.State{model.StateDeletionScheduled}, model.StateDeleting},
		Transition{RecoverOnline, []model.State{model.StateErred}, model.StateOnline},
		Transition{RecoverOffline, []model.State{model.StateErred}, model.StateOffline},
		Transition{SetErred, nil, model.StateErred},
	)
}

func newBackupMachine() *Machine {
	return newMachine(model.EntityBackup,
		[]model.State{model.StateReady, model.StateErred},
		[]model.State{model.StateDeleted},
		Transition{StartingBackup, []model.State{model.StateReady}, model.StateBackingUp},
		Transition{ConfirmBackup, []model.State{model.StateBackingUp}, model.StateReady},
		Transition{StartingDeletion, []model.State{model.StateReady}, model.StateDeleting},
		Transition{ConfirmDeletion, []model.State{model.StateDeleting}, model.StateDeleted},
		Transition{StartingRestoration, []model.State{model.StateReady}, model.StateRestoring},
		Transition{ConfirmRestoration, []model.State{model.StateRestoring}, model.StateReady},
		Transition{SetErred, nil, model.StateErred},
	)
}

func newFloatingIPMachine() *Machine {
	return newMachine(model.EntityFloatingIP,
		[]model.State{model.StateDown, model.StateActive},
		nil,
		Transition{Book, []model.State{model.StateDown}, model.StateBooked},
		Transition{Activate, []model.State{model.StateBooked}, model.StateActive},
		Transition{Release, []model.State{model.StateActive, model.StateBooked}, model.StateDown},
	)
}

// ForEntity returns the machine driving the named entity.
func ForEntity(entity string) (*Machine, bool) {
	switch entity {
	case model.EntitySettings:
		return Settings, true
	case model.EntityLink:
		return Link, true
	case model.EntitySecurityGroup:
		return SecurityGroup, true
	case model.EntityResource:
		return Resource, true
	case model.EntityBackup:
		return Backup, true
	case model.EntityFloatingIP:
		return FloatingIP, true
	}
	return nil, false
}
