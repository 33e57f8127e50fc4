package activity

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/opennode/waldur-core-sub000/internal/backend"
	"github.com/opennode/waldur-core-sub000/internal/model"
	"github.com/opennode/waldur-core-sub000/internal/reconcile"
	"github.com/opennode/waldur-core-sub000/internal/store"
)

// Backends contains the activities that call out to providers.
type Backends struct {
	store    Store
	registry *backend.Registry
	quotas   QuotaGate
	logger   zerolog.Logger
}

// NewBackends creates a new Backends activity struct.
func NewBackends(st Store, registry *backend.Registry, quotas QuotaGate, logger zerolog.Logger) *Backends {
	return &Backends{
		store:    st,
		registry: registry,
		quotas:   quotas,
		logger:   logger.With().Str("component", "backend-activities").Logger(),
	}
}

func (a *Backends) resource(ctx context.Context, id string) (*model.ResourceContext, backend.Backend, error) {
	rc, err := a.store.GetResourceContext(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	be, err := a.registry.For(rc.Settings, rc.Link.TenantID)
	if err != nil {
		return nil, nil, err
	}
	return rc, be, nil
}

func (a *Backends) link(ctx context.Context, id string) (*model.LinkContext, backend.Backend, error) {
	lc, err := a.store.GetLinkContext(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	be, err := a.registry.For(lc.Settings, lc.Link.TenantID)
	if err != nil {
		return nil, nil, err
	}
	return lc, be, nil
}

// skip turns a missing capability into success.
func (a *Backends) skip(op string, err error) error {
	if backend.IsNotImplemented(err) {
		a.logger.Debug().Str("op", op).Msg("backend does not implement operation, skipping")
		return nil
	}
	return model.NewBackendError(op, err)
}

// ProvisionResourceParams holds the parameters for ProvisionResource.
type ProvisionResourceParams struct {
	ResourceID               string `json:"resource_id"`
	SkipExternalIPAssignment bool   `json:"skip_external_ip_assignment"`
}

// ProvisionResource asks the provider to create a resource and stores the
// backend ID it assigns. A resource that already has a backend ID was
// provisioned by an earlier attempt and is left alone.
func (a *Backends) ProvisionResource(ctx context.Context, params ProvisionResourceParams) (string, error) {
	rc, be, err := a.resource(ctx, params.ResourceID)
	if err != nil {
		return "", err
	}
	r := rc.Resource
	if r.BackendID != "" {
		return r.BackendID, nil
	}

	req := backend.ProvisionRequest{
		Resource:                 r,
		Link:                     rc.Link,
		SystemVolumeID:           r.SystemVolumeID,
		DataVolumeID:             r.DataVolumeID,
		SkipExternalIPAssignment: params.SkipExternalIPAssignment,
	}
	if r.FlavorName != "" {
		flavor, err := a.store.GetFlavorByName(ctx, rc.Settings.ID, r.FlavorName)
		switch {
		case err == nil:
			req.Flavor = flavor
		case !errors.Is(err, model.ErrNotFound):
			return "", err
		}
	}
	if r.KeyFingerprint != "" {
		key, err := a.store.GetSSHKeyByFingerprint(ctx, r.KeyFingerprint)
		if err != nil {
			return "", err
		}
		if err := a.skip("add_ssh_key", be.AddSSHKey(ctx, rc.Link, *key)); err != nil {
			return "", err
		}
		req.SSHPublicKey = key.PublicKey
	}

	backendID, err := be.Provision(ctx, req)
	if err != nil {
		return "", model.NewBackendError("provision", err)
	}
	if err := a.store.SetResourceBackendInfo(ctx, r.ID, store.BackendInfo{BackendID: backendID}); err != nil {
		return "", err
	}
	a.logger.Info().Str("resource_id", r.ID).Str("backend_id", backendID).Msg("resource provision requested")
	return backendID, nil
}

// RemoteState is the provider's view of a resource during polling.
type RemoteState struct {
	Found    bool        `json:"found"`
	State    model.State `json:"state,omitempty"`
	RawState string      `json:"raw_state,omitempty"`
}

// GetRemoteState reads the canonical state of a resource at the provider.
func (a *Backends) GetRemoteState(ctx context.Context, resourceID string) (RemoteState, error) {
	rc, be, err := a.resource(ctx, resourceID)
	if err != nil {
		return RemoteState{}, err
	}
	if rc.Resource.BackendID == "" {
		return RemoteState{}, nil
	}
	remote, err := be.GetResource(ctx, rc.Resource.BackendID)
	if errors.Is(err, model.ErrNotFound) {
		return RemoteState{}, nil
	}
	if err != nil {
		return RemoteState{}, model.NewBackendError("get_resource", err)
	}
	return RemoteState{Found: true, State: remote.State, RawState: remote.RawState}, nil
}

// SyncResourceInfo copies addresses, volumes and start time from the
// provider once a resource has settled.
func (a *Backends) SyncResourceInfo(ctx context.Context, resourceID string) error {
	rc, be, err := a.resource(ctx, resourceID)
	if err != nil {
		return err
	}
	remote, err := be.GetResource(ctx, rc.Resource.BackendID)
	if err != nil {
		return model.NewBackendError("get_resource", err)
	}
	return a.store.SetResourceBackendInfo(ctx, resourceID, store.BackendInfo{
		BackendID:      rc.Resource.BackendID,
		ExternalIPs:    remote.ExternalIPs,
		InternalIPs:    remote.InternalIPs,
		SystemVolumeID: remote.SystemVolumeID,
		DataVolumeID:   remote.DataVolumeID,
		StartTime:      remote.StartTime,
	})
}

func (a *Backends) act(ctx context.Context, op, resourceID string, fn func(backend.Backend, model.Resource) error) error {
	rc, be, err := a.resource(ctx, resourceID)
	if err != nil {
		return err
	}
	if err := fn(be, rc.Resource); err != nil {
		return model.NewBackendError(op, err)
	}
	return nil
}

// StartResource powers a resource on.
func (a *Backends) StartResource(ctx context.Context, resourceID string) error {
	return a.act(ctx, "start", resourceID, func(be backend.Backend, r model.Resource) error {
		return be.Start(ctx, r)
	})
}

// StopResource powers a resource off.
func (a *Backends) StopResource(ctx context.Context, resourceID string) error {
	return a.act(ctx, "stop", resourceID, func(be backend.Backend, r model.Resource) error {
		return be.Stop(ctx, r)
	})
}

// RestartResource reboots a resource.
func (a *Backends) RestartResource(ctx context.Context, resourceID string) error {
	return a.act(ctx, "restart", resourceID, func(be backend.Backend, r model.Resource) error {
		return be.Restart(ctx, r)
	})
}

// DestroyResource deletes a resource at the provider. A resource that
// never got a backend ID, or that the provider no longer knows, counts
// as destroyed.
func (a *Backends) DestroyResource(ctx context.Context, resourceID string) error {
	rc, be, err := a.resource(ctx, resourceID)
	if err != nil {
		return err
	}
	if rc.Resource.BackendID == "" {
		return nil
	}
	err = be.Destroy(ctx, rc.Resource)
	if errors.Is(err, model.ErrNotFound) {
		return nil
	}
	return model.NewBackendError("destroy", err)
}

// ExtendDiskParams holds the parameters for ExtendDisk.
type ExtendDiskParams struct {
	ResourceID string `json:"resource_id"`
	NewSize    int    `json:"new_size"`
}

// ExtendDisk grows the data volume of a resource.
func (a *Backends) ExtendDisk(ctx context.Context, params ExtendDiskParams) error {
	return a.act(ctx, "extend_disk", params.ResourceID, func(be backend.Backend, r model.Resource) error {
		return be.ExtendDisk(ctx, r, params.NewSize)
	})
}

// UpdateFlavorParams holds the parameters for UpdateFlavor.
type UpdateFlavorParams struct {
	ResourceID string `json:"resource_id"`
	FlavorName string `json:"flavor_name"`
}

// UpdateFlavor resizes a resource to the named flavor and returns it.
func (a *Backends) UpdateFlavor(ctx context.Context, params UpdateFlavorParams) (*model.Flavor, error) {
	rc, be, err := a.resource(ctx, params.ResourceID)
	if err != nil {
		return nil, err
	}
	flavor, err := a.store.GetFlavorByName(ctx, rc.Settings.ID, params.FlavorName)
	if err != nil {
		return nil, err
	}
	if err := be.UpdateFlavor(ctx, rc.Resource, *flavor); err != nil {
		return nil, model.NewBackendError("resize", err)
	}
	return flavor, nil
}

// ApplyResize records the new size of a resource and moves its quota.
func (a *Backends) ApplyResize(ctx context.Context, params store.ResizeParams) error {
	return a.store.ApplyResize(ctx, params)
}

// SyncSettings validates provider credentials and refreshes the flavor and
// image catalogue of a settings entity.
func (a *Backends) SyncSettings(ctx context.Context, settingsID string) error {
	settings, err := a.store.GetSettings(ctx, settingsID)
	if err != nil {
		return err
	}
	be, err := a.registry.For(*settings, "")
	if err != nil {
		return err
	}
	if err := a.skip("sync", be.Sync(ctx)); err != nil {
		return err
	}
	flavors, images, err := reconcile.PullProperties(ctx, be)
	if err != nil {
		return model.NewBackendError("pull_properties", err)
	}
	if flavors == nil && images == nil {
		return nil
	}
	return a.store.ReplaceProperties(ctx, settingsID, reconcile.PlanProperties(settingsID, flavors, images))
}

// SyncLink creates or refreshes the provider-side tenant of a link and
// makes sure its quota rows exist.
func (a *Backends) SyncLink(ctx context.Context, linkID string) error {
	lc, be, err := a.link(ctx, linkID)
	if err != nil {
		return err
	}
	info, err := be.SyncLink(ctx, lc.Link)
	if err := a.skip("sync_link", err); err != nil {
		return err
	}
	err = a.store.SetLinkBackendInfo(ctx, linkID, store.LinkBackendInfo{
		TenantID:          info.TenantID,
		InternalNetworkID: info.InternalNetworkID,
		ExternalNetworkID: info.ExternalNetworkID,
		AvailabilityZone:  info.AvailabilityZone,
	})
	if err != nil {
		return err
	}
	return a.quotas.Init(ctx, model.Scope{Type: model.ScopeLink, ID: linkID})
}

// RemoveLink tears down the provider-side tenant of a link.
func (a *Backends) RemoveLink(ctx context.Context, linkID string) error {
	lc, be, err := a.link(ctx, linkID)
	if err != nil {
		return err
	}
	return a.skip("remove_link", be.RemoveLink(ctx, lc.Link))
}

func (a *Backends) securityGroup(ctx context.Context, id string) (*model.SecurityGroup, *model.LinkContext, backend.Backend, error) {
	g, err := a.store.GetSecurityGroup(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}
	lc, be, err := a.link(ctx, g.LinkID)
	if err != nil {
		return nil, nil, nil, err
	}
	return g, lc, be, nil
}

// PushSecurityGroup creates or updates a security group at the provider.
func (a *Backends) PushSecurityGroup(ctx context.Context, groupID string) error {
	g, lc, be, err := a.securityGroup(ctx, groupID)
	if err != nil {
		return err
	}
	backendID, err := be.PushSecurityGroup(ctx, lc.Link, *g)
	if err != nil {
		return a.skip("push_security_group", err)
	}
	if backendID == g.BackendID {
		return nil
	}
	return a.store.SetSecurityGroupBackendID(ctx, groupID, backendID)
}

// DeleteRemoteSecurityGroup removes a security group at the provider.
func (a *Backends) DeleteRemoteSecurityGroup(ctx context.Context, groupID string) error {
	g, lc, be, err := a.securityGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if g.BackendID == "" {
		return nil
	}
	err = be.DeleteSecurityGroup(ctx, lc.Link, *g)
	if errors.Is(err, model.ErrNotFound) {
		return nil
	}
	return a.skip("delete_security_group", err)
}

// CreateSnapshots snapshots the volumes of the resource a backup belongs to.
func (a *Backends) CreateSnapshots(ctx context.Context, backupID string) (backend.SnapshotSet, error) {
	b, err := a.store.GetBackup(ctx, backupID)
	if err != nil {
		return backend.SnapshotSet{}, err
	}
	rc, be, err := a.resource(ctx, b.ResourceID)
	if err != nil {
		return backend.SnapshotSet{}, err
	}
	set, err := be.CreateSnapshots(ctx, rc.Resource)
	if err != nil {
		return backend.SnapshotSet{}, model.NewBackendError("create_snapshots", err)
	}
	return set, nil
}

// SnapshotParams addresses a snapshot set through the link that owns it.
type SnapshotParams struct {
	LinkID string              `json:"link_id"`
	Set    backend.SnapshotSet `json:"set"`
}

// GetSnapshotsState reports READY, BACKING_UP or ERRED for a snapshot set.
func (a *Backends) GetSnapshotsState(ctx context.Context, params SnapshotParams) (model.State, error) {
	_, be, err := a.link(ctx, params.LinkID)
	if err != nil {
		return "", err
	}
	st, err := be.SnapshotsState(ctx, params.Set)
	if err != nil {
		return "", model.NewBackendError("snapshots_state", err)
	}
	return st, nil
}

// DeleteSnapshots removes a snapshot set at the provider.
func (a *Backends) DeleteSnapshots(ctx context.Context, params SnapshotParams) error {
	if params.Set.SystemSnapshotID == "" && params.Set.DataSnapshotID == "" {
		return nil
	}
	_, be, err := a.link(ctx, params.LinkID)
	if err != nil {
		return err
	}
	err = be.DeleteSnapshots(ctx, params.Set)
	if errors.Is(err, model.ErrNotFound) {
		return nil
	}
	return model.NewBackendError("delete_snapshots", err)
}

// PromoteSnapshots turns a snapshot set into fresh volumes for a restore.
func (a *Backends) PromoteSnapshots(ctx context.Context, params SnapshotParams) (backend.VolumePair, error) {
	_, be, err := a.link(ctx, params.LinkID)
	if err != nil {
		return backend.VolumePair{}, err
	}
	vols, err := be.PromoteSnapshotsToVolumes(ctx, params.Set)
	if err != nil {
		return backend.VolumePair{}, model.NewBackendError("promote_snapshots", err)
	}
	if vols.SystemVolumeID == "" {
		return backend.VolumePair{}, fmt.Errorf("provider returned no system volume for snapshot %s", params.Set.SystemSnapshotID)
	}
	return vols, nil
}
