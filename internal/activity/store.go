// Package activity holds the Temporal activities of the lifecycle engine.
// Each struct groups the activities of one collaborator; workflows call
// them by method name.
package activity

import (
	"context"
	"time"

	"github.com/opennode/waldur-core-sub000/internal/model"
	"github.com/opennode/waldur-core-sub000/internal/store"
)

// Store is the persistence surface used by activity structs.
// *store.Store satisfies this interface.
type Store interface {
	Transition(ctx context.Context, entity, id, name string, opts ...store.TransitionOption) (model.State, error)
	SetErred(ctx context.Context, entity, id, msg string) error
	RecoverResource(ctx context.Context, id, name string) (model.State, error)
	State(ctx context.Context, entity, id string) (model.State, int, error)

	GetResourceContext(ctx context.Context, id string) (*model.ResourceContext, error)
	GetLinkContext(ctx context.Context, id string) (*model.LinkContext, error)
	GetSettings(ctx context.Context, id string) (*model.ServiceSettings, error)
	GetSecurityGroup(ctx context.Context, id string) (*model.SecurityGroup, error)
	GetBackup(ctx context.Context, id string) (*model.Backup, error)
	GetFlavorByName(ctx context.Context, settingsID, name string) (*model.Flavor, error)
	GetSSHKeyByFingerprint(ctx context.Context, fingerprint string) (*model.SSHKey, error)

	SetResourceBackendInfo(ctx context.Context, id string, info store.BackendInfo) error
	ApplyResize(ctx context.Context, p store.ResizeParams) error
	SetLinkBackendInfo(ctx context.Context, id string, info store.LinkBackendInfo) error
	SetSecurityGroupBackendID(ctx context.Context, id, backendID string) error
	ReplaceProperties(ctx context.Context, settingsID string, p store.Properties) error
	SetBackupMetadata(ctx context.Context, id string, md model.BackupMetadata) error
	SetScheduleActive(ctx context.Context, id string, active bool, next *time.Time) error

	DeleteResource(ctx context.Context, id string) error
	DeleteLink(ctx context.Context, id string) error
	DeleteSecurityGroup(ctx context.Context, id string) error

	ListLinkIDsInStates(ctx context.Context, states ...model.State) ([]string, error)
	ListSettingsInStates(ctx context.Context, states ...model.State) ([]model.ServiceSettings, error)
	ListDueScheduleIDs(ctx context.Context, now time.Time) ([]string, error)
	ListExpiredBackupIDs(ctx context.Context, now time.Time) ([]string, error)

	AddProvisionedResource(ctx context.Context, id, resourceType, url, stateMessage string) error
	FinishTemplateResult(ctx context.Context, id string, o store.TemplateOutcome) error
}

// QuotaGate admits quota-consuming writes. *quota.Gate satisfies it.
type QuotaGate interface {
	Admit(ctx context.Context, scope model.Scope, deltas map[string]float64, fn func(tx *store.Tx) error) error
	Init(ctx context.Context, scope model.Scope) error
}

// EntityRef identifies one state-machine entity.
type EntityRef struct {
	Entity string `json:"entity"`
	ID     string `json:"id"`
}
