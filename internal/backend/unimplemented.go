package backend

import (
	"context"

	"github.com/opennode/waldur-core-sub000/internal/model"
)

// Unimplemented answers every Backend method with model.ErrNotImplemented.
type Unimplemented struct{}

var _ Backend = Unimplemented{}

func (Unimplemented) Sync(context.Context) error { return model.ErrNotImplemented }

func (Unimplemented) SyncLink(context.Context, model.ServiceProjectLink) (TenantInfo, error) {
	return TenantInfo{}, model.ErrNotImplemented
}

func (Unimplemented) RemoveLink(context.Context, model.ServiceProjectLink) error {
	return model.ErrNotImplemented
}

func (Unimplemented) Provision(context.Context, ProvisionRequest) (string, error) {
	return "", model.ErrNotImplemented
}

func (Unimplemented) Start(context.Context, model.Resource) error   { return model.ErrNotImplemented }
func (Unimplemented) Stop(context.Context, model.Resource) error    { return model.ErrNotImplemented }
func (Unimplemented) Restart(context.Context, model.Resource) error { return model.ErrNotImplemented }
func (Unimplemented) Destroy(context.Context, model.Resource) error { return model.ErrNotImplemented }

func (Unimplemented) ExtendDisk(context.Context, model.Resource, int) error {
	return model.ErrNotImplemented
}

func (Unimplemented) UpdateFlavor(context.Context, model.Resource, model.Flavor) error {
	return model.ErrNotImplemented
}

func (Unimplemented) GetResource(context.Context, string) (*RemoteResource, error) {
	return nil, model.ErrNotImplemented
}

func (Unimplemented) PullFlavors(context.Context) ([]model.Flavor, error) {
	return nil, model.ErrNotImplemented
}

func (Unimplemented) PullImages(context.Context) ([]model.Image, error) {
	return nil, model.ErrNotImplemented
}

func (Unimplemented) PullSecurityGroups(context.Context, model.ServiceProjectLink) ([]RemoteSecurityGroup, error) {
	return nil, model.ErrNotImplemented
}

func (Unimplemented) PullFloatingIPs(context.Context, model.ServiceProjectLink) ([]RemoteFloatingIP, error) {
	return nil, model.ErrNotImplemented
}

func (Unimplemented) PullInstances(context.Context, model.ServiceProjectLink) ([]RemoteResource, error) {
	return nil, model.ErrNotImplemented
}

func (Unimplemented) PullQuotasAndUsage(context.Context, model.ServiceProjectLink) ([]QuotaReport, error) {
	return nil, model.ErrNotImplemented
}

func (Unimplemented) PushSecurityGroup(context.Context, model.ServiceProjectLink, model.SecurityGroup) (string, error) {
	return "", model.ErrNotImplemented
}

func (Unimplemented) DeleteSecurityGroup(context.Context, model.ServiceProjectLink, model.SecurityGroup) error {
	return model.ErrNotImplemented
}

func (Unimplemented) CreateSnapshots(context.Context, model.Resource) (SnapshotSet, error) {
	return SnapshotSet{}, model.ErrNotImplemented
}

func (Unimplemented) SnapshotsState(context.Context, SnapshotSet) (model.State, error) {
	return "", model.ErrNotImplemented
}

func (Unimplemented) DeleteSnapshots(context.Context, SnapshotSet) error {
	return model.ErrNotImplemented
}

func (Unimplemented) PromoteSnapshotsToVolumes(context.Context, SnapshotSet) (VolumePair, error) {
	return VolumePair{}, model.ErrNotImplemented
}

func (Unimplemented) AddSSHKey(context.Context, model.ServiceProjectLink, model.SSHKey) error {
	return model.ErrNotImplemented
}

func (Unimplemented) RemoveSSHKey(context.Context, model.ServiceProjectLink, model.SSHKey) error {
	return model.ErrNotImplemented
}

func (Unimplemented) AddUser(context.Context, model.ServiceProjectLink, string) error {
	return model.ErrNotImplemented
}

func (Unimplemented) RemoveUser(context.Context, model.ServiceProjectLink, string) error {
	return model.ErrNotImplemented
}

func (Unimplemented) GetResourcesForImport(context.Context, model.ServiceProjectLink) ([]RemoteResource, error) {
	return nil, model.ErrNotImplemented
}

func (Unimplemented) GetMonthlyCostEstimate(context.Context, model.Resource) (float64, error) {
	return 0, model.ErrNotImplemented
}
