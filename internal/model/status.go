package model

// State is the persisted lifecycle state of a back-end-backed entity.
type State string

// Synchronisation states, used by service settings, links and security groups.
const (
	StateNew               State = "NEW"
	StateCreationScheduled State = "CREATION_SCHEDULED"
	StateCreating          State = "CREATING"
	StateSyncScheduled     State = "SYNC_SCHEDULED"
	StateSyncing           State = "SYNCING"
	StateInSync            State = "IN_SYNC"
	StateErred             State = "ERRED"
)

// Resource states.
const (
	StateProvisioningScheduled State = "PROVISIONING_SCHEDULED"
	StateProvisioning          State = "PROVISIONING"
	StateOnline                State = "ONLINE"
	StateOffline               State = "OFFLINE"
	StateStartingScheduled     State = "STARTING_SCHEDULED"
	StateStarting              State = "STARTING"
	StateStoppingScheduled     State = "STOPPING_SCHEDULED"
	StateStopping              State = "STOPPING"
	StateRestartingScheduled   State = "RESTARTING_SCHEDULED"
	StateRestarting            State = "RESTARTING"
	StateResizingScheduled     State = "RESIZING_SCHEDULED"
	StateResizing              State = "RESIZING"
	StateDeletionScheduled     State = "DELETION_SCHEDULED"
	StateDeleting              State = "DELETING"
)

// Backup states. DELETING and ERRED are shared with resources.
const (
	StateReady     State = "READY"
	StateBackingUp State = "BACKING_UP"
	StateRestoring State = "RESTORING"
	StateDeleted   State = "DELETED"
)

// Floating IP statuses.
const (
	StateDown   State = "DOWN"
	StateBooked State = "BOOKED"
	StateActive State = "ACTIVE"
)

// Entity names used in transitions, events and quota scopes.
const (
	EntitySettings      = "service_settings"
	EntityLink          = "service_project_link"
	EntitySecurityGroup = "security_group"
	EntityResource      = "resource"
	EntityBackup        = "backup"
	EntityFloatingIP    = "floating_ip"
)
