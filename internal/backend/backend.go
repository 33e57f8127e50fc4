// Package backend defines the provider contract. Providers implement the
// capability groups they support and embed Unimplemented for the rest.
package backend

import (
	"context"
	"errors"
	"time"

	"github.com/opennode/waldur-core-sub000/internal/model"
)

type SettingsBackend interface {
	// Sync validates credentials and refreshes provider-wide state.
	Sync(ctx context.Context) error
}

type LinkBackend interface {
	SyncLink(ctx context.Context, link model.ServiceProjectLink) (TenantInfo, error)
	RemoveLink(ctx context.Context, link model.ServiceProjectLink) error
}

type ResourceBackend interface {
	Provision(ctx context.Context, req ProvisionRequest) (string, error)
	Start(ctx context.Context, r model.Resource) error
	Stop(ctx context.Context, r model.Resource) error
	Restart(ctx context.Context, r model.Resource) error
	Destroy(ctx context.Context, r model.Resource) error
	ExtendDisk(ctx context.Context, r model.Resource, newSize int) error
	UpdateFlavor(ctx context.Context, r model.Resource, flavor model.Flavor) error
	// GetResource returns the remote view of a resource, or an error
	// wrapping model.ErrNotFound once the provider no longer knows it.
	GetResource(ctx context.Context, backendID string) (*RemoteResource, error)
}

type PullBackend interface {
	PullFlavors(ctx context.Context) ([]model.Flavor, error)
	PullImages(ctx context.Context) ([]model.Image, error)
	PullSecurityGroups(ctx context.Context, link model.ServiceProjectLink) ([]RemoteSecurityGroup, error)
	PullFloatingIPs(ctx context.Context, link model.ServiceProjectLink) ([]RemoteFloatingIP, error)
	PullInstances(ctx context.Context, link model.ServiceProjectLink) ([]RemoteResource, error)
	PullQuotasAndUsage(ctx context.Context, link model.ServiceProjectLink) ([]QuotaReport, error)
}

type SecurityGroupBackend interface {
	PushSecurityGroup(ctx context.Context, link model.ServiceProjectLink, g model.SecurityGroup) (string, error)
	DeleteSecurityGroup(ctx context.Context, link model.ServiceProjectLink, g model.SecurityGroup) error
}

type SnapshotBackend interface {
	CreateSnapshots(ctx context.Context, r model.Resource) (SnapshotSet, error)
	// SnapshotsState reports READY once every snapshot is usable, ERRED
	// when any failed, and BACKING_UP otherwise.
	SnapshotsState(ctx context.Context, set SnapshotSet) (model.State, error)
	DeleteSnapshots(ctx context.Context, set SnapshotSet) error
	PromoteSnapshotsToVolumes(ctx context.Context, set SnapshotSet) (VolumePair, error)
}

type AccessBackend interface {
	AddSSHKey(ctx context.Context, link model.ServiceProjectLink, key model.SSHKey) error
	RemoveSSHKey(ctx context.Context, link model.ServiceProjectLink, key model.SSHKey) error
	AddUser(ctx context.Context, link model.ServiceProjectLink, username string) error
	RemoveUser(ctx context.Context, link model.ServiceProjectLink, username string) error
}

type ImportBackend interface {
	GetResourcesForImport(ctx context.Context, link model.ServiceProjectLink) ([]RemoteResource, error)
}

type CostBackend interface {
	GetMonthlyCostEstimate(ctx context.Context, r model.Resource) (float64, error)
}

// Backend is the full provider contract.
type Backend interface {
	SettingsBackend
	LinkBackend
	ResourceBackend
	PullBackend
	SecurityGroupBackend
	SnapshotBackend
	AccessBackend
	ImportBackend
	CostBackend
}

// TenantInfo identifies the provider-side tenant of a link.
type TenantInfo struct {
	TenantID          string `json:"tenant_id"`
	InternalNetworkID string `json:"internal_network_id"`
	ExternalNetworkID string `json:"external_network_id"`
	AvailabilityZone  string `json:"availability_zone"`
}

// ProvisionRequest carries everything a provider needs to create a resource.
type ProvisionRequest struct {
	Resource                 model.Resource           `json:"resource"`
	Link                     model.ServiceProjectLink `json:"link"`
	Flavor                   *model.Flavor            `json:"flavor,omitempty"`
	SSHPublicKey             string                   `json:"ssh_public_key,omitempty"`
	SystemVolumeID           string                   `json:"system_volume_id,omitempty"`
	DataVolumeID             string                   `json:"data_volume_id,omitempty"`
	SkipExternalIPAssignment bool                     `json:"skip_external_ip_assignment"`
}

// RemoteResource is a resource as the provider reports it. State is
// already mapped to the canonical machine states.
type RemoteResource struct {
	BackendID        string      `json:"backend_id"`
	Type             string      `json:"type"`
	Name             string      `json:"name"`
	RawState         string      `json:"raw_state"`
	State            model.State `json:"state"`
	FlavorName       string      `json:"flavor_name,omitempty"`
	Cores            int         `json:"cores"`
	RAM              int         `json:"ram"`
	Disk             int         `json:"disk"`
	ImageName        string      `json:"image_name,omitempty"`
	SystemVolumeID   string      `json:"system_volume_id,omitempty"`
	SystemVolumeSize int         `json:"system_volume_size"`
	DataVolumeID     string      `json:"data_volume_id,omitempty"`
	DataVolumeSize   int         `json:"data_volume_size"`
	ExternalIPs      []string    `json:"external_ips,omitempty"`
	InternalIPs      []string    `json:"internal_ips,omitempty"`
	StartTime        *time.Time  `json:"start_time,omitempty"`
}

type RemoteSecurityGroup struct {
	BackendID   string                    `json:"backend_id"`
	Name        string                    `json:"name"`
	Description string                    `json:"description"`
	Rules       []model.SecurityGroupRule `json:"rules"`
}

type RemoteFloatingIP struct {
	BackendID        string      `json:"backend_id"`
	Address          string      `json:"address"`
	Status           model.State `json:"status"`
	BackendNetworkID string      `json:"backend_network_id"`
}

// QuotaReport is a provider-side limit and its current usage.
type QuotaReport struct {
	Name  string  `json:"name"`
	Limit float64 `json:"limit"`
	Usage float64 `json:"usage"`
}

// SnapshotSet identifies the snapshots taken for one backup. Sizes are in
// MiB and feed the backup metadata used by restore.
type SnapshotSet struct {
	SystemSnapshotID   string `json:"system_snapshot_id"`
	DataSnapshotID     string `json:"data_snapshot_id"`
	SystemSnapshotSize int    `json:"system_snapshot_size"`
	DataSnapshotSize   int    `json:"data_snapshot_size"`
}

type VolumePair struct {
	SystemVolumeID string `json:"system_volume_id"`
	DataVolumeID   string `json:"data_volume_id"`
}

// IsNotImplemented reports whether err means the provider lacks the
// capability. Callers skip the step silently in that case.
func IsNotImplemented(err error) bool {
	return errors.Is(err, model.ErrNotImplemented)
}
