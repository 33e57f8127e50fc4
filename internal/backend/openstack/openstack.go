// Package openstack drives an OpenStack cloud through gophercloud. The
// settings backend URL is the Keystone endpoint; compute, network, block
// storage and image endpoints come from the token's service catalog.
package openstack

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gophercloud/gophercloud/v2"
	cinderquotas "github.com/gophercloud/gophercloud/v2/openstack/blockstorage/v3/quotasets"
	"github.com/gophercloud/gophercloud/v2/openstack/blockstorage/v3/snapshots"
	"github.com/gophercloud/gophercloud/v2/openstack/blockstorage/v3/volumes"
	"github.com/gophercloud/gophercloud/v2/openstack/compute/v2/flavors"
	"github.com/gophercloud/gophercloud/v2/openstack/compute/v2/keypairs"
	"github.com/gophercloud/gophercloud/v2/openstack/compute/v2/quotasets"
	"github.com/gophercloud/gophercloud/v2/openstack/compute/v2/servers"
	"github.com/gophercloud/gophercloud/v2/openstack/identity/v3/projects"
	"github.com/gophercloud/gophercloud/v2/openstack/image/v2/images"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/extensions/layer3/floatingips"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/extensions/security/groups"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/extensions/security/rules"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/networks"
	"github.com/rs/zerolog"

	"github.com/opennode/waldur-core-sub000/internal/backend"
	"github.com/opennode/waldur-core-sub000/internal/model"
)

// Type is the settings type tag of this provider.
const Type = "openstack"

// Settings options.
const (
	OptionRetryMaxElapsed = "retry_max_elapsed"
	OptionExternalNetwork = "external_network_id"
	OptionRegion          = "region"
	OptionInterface       = "interface"
	OptionProjectName     = "tenant_name"
	OptionDomainName      = "domain_name"
)

const defaultRetryMaxElapsed = 30 * time.Second

// NewFactory returns a backend.Factory building clients on httpClient.
// Sessions are shared across calls for the same settings, tenant and
// credentials, so a token is reused until Keystone rejects it.
func NewFactory(httpClient *http.Client, logger zerolog.Logger) backend.Factory {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	logger = logger.With().Str("component", "openstack").Logger()
	var sessions sync.Map
	return func(settings model.ServiceSettings, tenantID string) (backend.Backend, error) {
		if settings.BackendURL == "" {
			return nil, fmt.Errorf("settings %s has no backend url", settings.ID)
		}
		if settings.Token == "" && settings.Username == "" {
			return nil, fmt.Errorf("settings %s carry neither token nor username", settings.ID)
		}
		maxElapsed := defaultRetryMaxElapsed
		if raw := settings.Option(OptionRetryMaxElapsed, ""); raw != "" {
			d, err := time.ParseDuration(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid %s %q: %w", OptionRetryMaxElapsed, raw, err)
			}
			maxElapsed = d
		}

		key := sessionKey(settings, tenantID)
		s, ok := sessions.Load(key)
		if !ok {
			fresh := newSession(
				authOptions(settings, tenantID),
				gophercloud.EndpointOpts{
					Region:       settings.Option(OptionRegion, ""),
					Availability: gophercloud.Availability(settings.Option(OptionInterface, string(gophercloud.AvailabilityPublic))),
				},
				httpClient,
				maxElapsed,
				logger.With().Str("settings_id", settings.ID).Logger(),
			)
			s, _ = sessions.LoadOrStore(key, fresh)
		}
		return &Backend{
			session:  s.(*session),
			settings: settings,
		}, nil
	}
}

// sessionKey changes whenever anything that goes into authentication does.
func sessionKey(settings model.ServiceSettings, tenantID string) string {
	h := sha256.New()
	for _, part := range []string{settings.ID, settings.BackendURL, settings.Username, settings.Password, settings.Token, tenantID,
		settings.Option(OptionProjectName, ""), settings.Option(OptionDomainName, ""), settings.Option(OptionRetryMaxElapsed, "")} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// authOptions builds password auth with reauthentication when the settings
// carry a username, and token passthrough otherwise. A password token is
// scoped to tenantID when the call is link scoped.
func authOptions(settings model.ServiceSettings, tenantID string) gophercloud.AuthOptions {
	if settings.Username == "" {
		return gophercloud.AuthOptions{IdentityEndpoint: settings.BackendURL, TokenID: settings.Token}
	}
	domain := settings.Option(OptionDomainName, "Default")
	opts := gophercloud.AuthOptions{
		IdentityEndpoint: settings.BackendURL,
		Username:         settings.Username,
		Password:         settings.Password,
		DomainName:       domain,
		AllowReauth:      true,
	}
	switch {
	case tenantID != "":
		opts.Scope = &gophercloud.AuthScope{ProjectID: tenantID}
	case settings.Option(OptionProjectName, "") != "":
		opts.Scope = &gophercloud.AuthScope{ProjectName: settings.Option(OptionProjectName, ""), DomainName: domain}
	}
	return opts
}

// Backend implements every capability except user management and cost
// estimation, which fall through to backend.Unimplemented.
type Backend struct {
	backend.Unimplemented
	session  *session
	settings model.ServiceSettings
}

func gib(mib int) int {
	return (mib + 1023) / 1024
}

func (b *Backend) Sync(ctx context.Context) error {
	compute, err := b.session.service(ctx, serviceCompute)
	if err != nil {
		return err
	}
	_, err = flavors.ListDetail(compute, flavors.ListOpts{}).AllPages(ctx)
	return wrap("sync", err)
}

func (b *Backend) SyncLink(ctx context.Context, link model.ServiceProjectLink) (backend.TenantInfo, error) {
	tenantID := link.TenantID
	if tenantID == "" {
		identity, err := b.session.service(ctx, serviceIdentity)
		if err != nil {
			return backend.TenantInfo{}, err
		}
		p, err := projects.Create(ctx, identity, projects.CreateOpts{
			Name:        "spl-" + link.ID,
			Description: "project " + link.ProjectID,
		}).Extract()
		if err != nil {
			return backend.TenantInfo{}, wrap("sync_link", err)
		}
		tenantID = p.ID
	}

	internal := link.InternalNetworkID
	if internal == "" {
		network, err := b.session.service(ctx, serviceNetwork)
		if err != nil {
			return backend.TenantInfo{}, err
		}
		n, err := networks.Create(ctx, network, networks.CreateOpts{
			Name:     "spl-" + link.ID + "-int",
			TenantID: tenantID,
		}).Extract()
		if err != nil {
			return backend.TenantInfo{}, wrap("sync_link", err)
		}
		internal = n.ID
	}
	return backend.TenantInfo{
		TenantID:          tenantID,
		InternalNetworkID: internal,
		ExternalNetworkID: b.settings.Option(OptionExternalNetwork, link.ExternalNetworkID),
		AvailabilityZone:  b.settings.Option("availability_zone", "nova"),
	}, nil
}

func (b *Backend) RemoveLink(ctx context.Context, link model.ServiceProjectLink) error {
	if link.TenantID == "" {
		return nil
	}
	identity, err := b.session.service(ctx, serviceIdentity)
	if err != nil {
		return err
	}
	return ignoreNotFound(wrap("remove_link", projects.Delete(ctx, identity, link.TenantID).ExtractErr()))
}

func (b *Backend) Provision(ctx context.Context, req backend.ProvisionRequest) (string, error) {
	compute, err := b.session.service(ctx, serviceCompute)
	if err != nil {
		return "", err
	}
	r := req.Resource
	opts := servers.CreateOpts{
		Name:             r.Name,
		ImageRef:         r.ImageName,
		FlavorRef:        r.FlavorName,
		AvailabilityZone: req.Link.AvailabilityZone,
	}
	if req.Flavor != nil {
		opts.FlavorRef = req.Flavor.BackendID
	}
	if r.UserData != "" {
		opts.UserData = []byte(r.UserData)
	}
	if req.Link.InternalNetworkID != "" {
		opts.Networks = []servers.Network{{UUID: req.Link.InternalNetworkID}}
	}
	switch {
	case req.SystemVolumeID != "":
		opts.BlockDevice = append(opts.BlockDevice, servers.BlockDevice{
			UUID: req.SystemVolumeID, SourceType: servers.SourceVolume, DestinationType: servers.DestinationVolume, BootIndex: 0,
		})
	case r.SystemVolumeSize > 0:
		opts.BlockDevice = append(opts.BlockDevice, servers.BlockDevice{
			UUID: r.ImageName, SourceType: servers.SourceImage, DestinationType: servers.DestinationVolume, BootIndex: 0,
			VolumeSize: gib(r.SystemVolumeSize), DeleteOnTermination: true,
		})
	}
	switch {
	case req.DataVolumeID != "":
		opts.BlockDevice = append(opts.BlockDevice, servers.BlockDevice{
			UUID: req.DataVolumeID, SourceType: servers.SourceVolume, DestinationType: servers.DestinationVolume, BootIndex: -1,
		})
	case r.DataVolumeSize > 0:
		opts.BlockDevice = append(opts.BlockDevice, servers.BlockDevice{
			SourceType: servers.SourceBlank, DestinationType: servers.DestinationVolume, BootIndex: -1,
			VolumeSize: gib(r.DataVolumeSize), DeleteOnTermination: true,
		})
	}
	if !req.SkipExternalIPAssignment && req.Link.ExternalNetworkID != "" {
		opts.Metadata = map[string]string{OptionExternalNetwork: req.Link.ExternalNetworkID}
	}

	var create servers.CreateOptsBuilder = opts
	if r.KeyName != "" {
		create = keypairs.CreateOptsExt{CreateOptsBuilder: opts, KeyName: r.KeyName}
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := servers.Create(ctx, compute, create, nil).ExtractInto(&out); err != nil {
		return "", wrap("provision", err)
	}
	return out.ID, nil
}

func (b *Backend) Start(ctx context.Context, r model.Resource) error {
	compute, err := b.session.service(ctx, serviceCompute)
	if err != nil {
		return err
	}
	return wrap("start", servers.Start(ctx, compute, r.BackendID).ExtractErr())
}

func (b *Backend) Stop(ctx context.Context, r model.Resource) error {
	compute, err := b.session.service(ctx, serviceCompute)
	if err != nil {
		return err
	}
	return wrap("stop", servers.Stop(ctx, compute, r.BackendID).ExtractErr())
}

func (b *Backend) Restart(ctx context.Context, r model.Resource) error {
	compute, err := b.session.service(ctx, serviceCompute)
	if err != nil {
		return err
	}
	return wrap("restart", servers.Reboot(ctx, compute, r.BackendID, servers.RebootOpts{Type: servers.SoftReboot}).ExtractErr())
}

func (b *Backend) UpdateFlavor(ctx context.Context, r model.Resource, f model.Flavor) error {
	compute, err := b.session.service(ctx, serviceCompute)
	if err != nil {
		return err
	}
	if err := servers.Resize(ctx, compute, r.BackendID, servers.ResizeOpts{FlavorRef: f.BackendID}).ExtractErr(); err != nil {
		return wrap("resize", err)
	}
	return wrap("resize", servers.ConfirmResize(ctx, compute, r.BackendID).ExtractErr())
}

// Destroy treats an already missing server as destroyed.
func (b *Backend) Destroy(ctx context.Context, r model.Resource) error {
	if r.BackendID == "" {
		return nil
	}
	compute, err := b.session.service(ctx, serviceCompute)
	if err != nil {
		return err
	}
	return ignoreNotFound(wrap("destroy", servers.Delete(ctx, compute, r.BackendID).ExtractErr()))
}

func (b *Backend) ExtendDisk(ctx context.Context, r model.Resource, newSize int) error {
	if r.DataVolumeID == "" {
		return &model.BackendError{Op: "extend_disk", Message: "resource has no data volume"}
	}
	volume, err := b.session.service(ctx, serviceVolume)
	if err != nil {
		return err
	}
	return wrap("extend_disk", volumes.ExtendSize(ctx, volume, r.DataVolumeID, volumes.ExtendSizeOpts{NewSize: gib(newSize)}).ExtractErr())
}

func (b *Backend) GetResource(ctx context.Context, backendID string) (*backend.RemoteResource, error) {
	compute, err := b.session.service(ctx, serviceCompute)
	if err != nil {
		return nil, err
	}
	var s server
	if err := servers.Get(ctx, compute, backendID).ExtractInto(&s); err != nil {
		return nil, wrap("get_resource", err)
	}
	r := s.remote()
	return &r, nil
}

func (b *Backend) PullFlavors(ctx context.Context) ([]model.Flavor, error) {
	compute, err := b.session.service(ctx, serviceCompute)
	if err != nil {
		return nil, err
	}
	page, err := flavors.ListDetail(compute, flavors.ListOpts{}).AllPages(ctx)
	if err != nil {
		return nil, wrap("pull_flavors", err)
	}
	all, err := flavors.ExtractFlavors(page)
	if err != nil {
		return nil, wrap("pull_flavors", err)
	}
	out := make([]model.Flavor, 0, len(all))
	for _, f := range all {
		out = append(out, model.Flavor{
			SettingsID: b.settings.ID,
			BackendID:  f.ID,
			Name:       f.Name,
			Cores:      f.VCPUs,
			RAM:        f.RAM,
			Disk:       f.Disk * 1024,
		})
	}
	return out, nil
}

func (b *Backend) PullImages(ctx context.Context) ([]model.Image, error) {
	image, err := b.session.service(ctx, serviceImage)
	if err != nil {
		return nil, err
	}
	page, err := images.List(image, images.ListOpts{}).AllPages(ctx)
	if err != nil {
		return nil, wrap("pull_images", err)
	}
	all, err := images.ExtractImages(page)
	if err != nil {
		return nil, wrap("pull_images", err)
	}
	out := make([]model.Image, 0, len(all))
	for _, i := range all {
		out = append(out, model.Image{
			SettingsID: b.settings.ID,
			BackendID:  i.ID,
			Name:       i.Name,
			MinRAM:     i.MinRAMMegabytes,
			MinDisk:    i.MinDiskGigabytes * 1024,
		})
	}
	return out, nil
}

func ingressRules(rs []rules.SecGroupRule) []model.SecurityGroupRule {
	var out []model.SecurityGroupRule
	for _, r := range rs {
		if r.Direction != string(rules.DirIngress) {
			continue
		}
		cidr := r.RemoteIPPrefix
		if cidr == "" {
			cidr = "0.0.0.0/0"
		}
		out = append(out, model.SecurityGroupRule{
			Protocol:  r.Protocol,
			FromPort:  r.PortRangeMin,
			ToPort:    r.PortRangeMax,
			CIDR:      cidr,
			BackendID: r.ID,
		})
	}
	return out
}

func (b *Backend) PullSecurityGroups(ctx context.Context, link model.ServiceProjectLink) ([]backend.RemoteSecurityGroup, error) {
	network, err := b.session.service(ctx, serviceNetwork)
	if err != nil {
		return nil, err
	}
	page, err := groups.List(network, groups.ListOpts{TenantID: link.TenantID}).AllPages(ctx)
	if err != nil {
		return nil, wrap("pull_security_groups", err)
	}
	all, err := groups.ExtractGroups(page)
	if err != nil {
		return nil, wrap("pull_security_groups", err)
	}
	out := make([]backend.RemoteSecurityGroup, 0, len(all))
	for _, g := range all {
		out = append(out, backend.RemoteSecurityGroup{
			BackendID:   g.ID,
			Name:        g.Name,
			Description: g.Description,
			Rules:       ingressRules(g.Rules),
		})
	}
	return out, nil
}

func (b *Backend) PullFloatingIPs(ctx context.Context, link model.ServiceProjectLink) ([]backend.RemoteFloatingIP, error) {
	network, err := b.session.service(ctx, serviceNetwork)
	if err != nil {
		return nil, err
	}
	page, err := floatingips.List(network, floatingips.ListOpts{TenantID: link.TenantID}).AllPages(ctx)
	if err != nil {
		return nil, wrap("pull_floating_ips", err)
	}
	all, err := floatingips.ExtractFloatingIPs(page)
	if err != nil {
		return nil, wrap("pull_floating_ips", err)
	}
	out := make([]backend.RemoteFloatingIP, 0, len(all))
	for _, ip := range all {
		status, ok := backend.FloatingIPStates.Canonical(ip.Status)
		if !ok {
			status = model.StateDown
		}
		out = append(out, backend.RemoteFloatingIP{
			BackendID:        ip.ID,
			Address:          ip.FloatingIP,
			Status:           status,
			BackendNetworkID: ip.FloatingNetworkID,
		})
	}
	return out, nil
}

func (b *Backend) PullInstances(ctx context.Context, link model.ServiceProjectLink) ([]backend.RemoteResource, error) {
	compute, err := b.session.service(ctx, serviceCompute)
	if err != nil {
		return nil, err
	}
	opts := servers.ListOpts{}
	if link.TenantID != "" {
		opts.AllTenants, opts.TenantID = true, link.TenantID
	}
	page, err := servers.List(compute, opts).AllPages(ctx)
	if err != nil {
		return nil, wrap("pull_instances", err)
	}
	var all []server
	if err := servers.ExtractServersInto(page, &all); err != nil {
		return nil, wrap("pull_instances", err)
	}
	out := make([]backend.RemoteResource, 0, len(all))
	for _, s := range all {
		out = append(out, s.remote())
	}
	return out, nil
}

func (b *Backend) PullQuotasAndUsage(ctx context.Context, link model.ServiceProjectLink) ([]backend.QuotaReport, error) {
	compute, err := b.session.service(ctx, serviceCompute)
	if err != nil {
		return nil, err
	}
	nova, err := quotasets.GetDetail(ctx, compute, link.TenantID).Extract()
	if err != nil {
		return nil, wrap("pull_quotas", err)
	}
	reports := []backend.QuotaReport{
		{Name: model.QuotaInstances, Limit: float64(nova.Instances.Limit), Usage: float64(nova.Instances.InUse)},
		{Name: model.QuotaVCPU, Limit: float64(nova.Cores.Limit), Usage: float64(nova.Cores.InUse)},
		{Name: model.QuotaRAM, Limit: float64(nova.RAM.Limit), Usage: float64(nova.RAM.InUse)},
	}

	volume, err := b.session.service(ctx, serviceVolume)
	if err != nil {
		return reports, nil
	}
	cinder, err := cinderquotas.GetUsage(ctx, volume, link.TenantID).Extract()
	if err != nil {
		return nil, wrap("pull_quotas", err)
	}
	return append(reports, backend.QuotaReport{
		Name:  model.QuotaStorage,
		Limit: gibToMiB(cinder.Gigabytes.Limit),
		Usage: gibToMiB(cinder.Gigabytes.InUse),
	}), nil
}

// gibToMiB keeps the unlimited marker intact.
func gibToMiB(v int) float64 {
	if v < 0 {
		return model.Unlimited
	}
	return float64(v) * 1024
}

// PushSecurityGroup creates the group when it has no backend ID yet and
// then replaces its ingress rules.
func (b *Backend) PushSecurityGroup(ctx context.Context, link model.ServiceProjectLink, g model.SecurityGroup) (string, error) {
	network, err := b.session.service(ctx, serviceNetwork)
	if err != nil {
		return "", err
	}
	id := g.BackendID
	if id == "" {
		created, err := groups.Create(ctx, network, groups.CreateOpts{
			Name:        g.Name,
			Description: g.Description,
			TenantID:    link.TenantID,
		}).Extract()
		if err != nil {
			return "", wrap("push_security_group", err)
		}
		id = created.ID
	} else {
		existing, err := groups.Get(ctx, network, id).Extract()
		if err != nil {
			return "", wrap("push_security_group", err)
		}
		for _, r := range ingressRules(existing.Rules) {
			if err := ignoreNotFound(wrap("push_security_group", rules.Delete(ctx, network, r.BackendID).ExtractErr())); err != nil {
				return "", err
			}
		}
	}

	for _, r := range g.Rules {
		_, err := rules.Create(ctx, network, rules.CreateOpts{
			Direction:      rules.DirIngress,
			EtherType:      rules.EtherType4,
			SecGroupID:     id,
			Protocol:       rules.RuleProtocol(r.Protocol),
			PortRangeMin:   r.FromPort,
			PortRangeMax:   r.ToPort,
			RemoteIPPrefix: r.CIDR,
		}).Extract()
		if err != nil {
			return "", wrap("push_security_group", err)
		}
	}
	return id, nil
}

func (b *Backend) DeleteSecurityGroup(ctx context.Context, link model.ServiceProjectLink, g model.SecurityGroup) error {
	if g.BackendID == "" {
		return nil
	}
	network, err := b.session.service(ctx, serviceNetwork)
	if err != nil {
		return err
	}
	return ignoreNotFound(wrap("delete_security_group", groups.Delete(ctx, network, g.BackendID).ExtractErr()))
}

func (b *Backend) CreateSnapshots(ctx context.Context, r model.Resource) (backend.SnapshotSet, error) {
	var set backend.SnapshotSet
	volume, err := b.session.service(ctx, serviceVolume)
	if err != nil {
		return set, err
	}
	snap := func(volumeID, name string) (*snapshots.Snapshot, error) {
		s, err := snapshots.Create(ctx, volume, snapshots.CreateOpts{VolumeID: volumeID, Name: name, Force: true}).Extract()
		return s, wrap("create_snapshots", err)
	}
	if r.SystemVolumeID != "" {
		s, err := snap(r.SystemVolumeID, r.Name+"-system")
		if err != nil {
			return set, err
		}
		set.SystemSnapshotID, set.SystemSnapshotSize = s.ID, s.Size*1024
	}
	if r.DataVolumeID != "" {
		s, err := snap(r.DataVolumeID, r.Name+"-data")
		if err != nil {
			return set, err
		}
		set.DataSnapshotID, set.DataSnapshotSize = s.ID, s.Size*1024
	}
	return set, nil
}

// SnapshotsState folds both snapshots into one state: any error wins,
// then any in-progress snapshot, and READY only when both are available.
func (b *Backend) SnapshotsState(ctx context.Context, set backend.SnapshotSet) (model.State, error) {
	volume, err := b.session.service(ctx, serviceVolume)
	if err != nil {
		return "", err
	}
	state := model.StateReady
	for _, id := range []string{set.SystemSnapshotID, set.DataSnapshotID} {
		if id == "" {
			continue
		}
		s, err := snapshots.Get(ctx, volume, id).Extract()
		if err != nil {
			if err := wrap("snapshots_state", err); model.Kind(err) != model.KindNotFound {
				return "", err
			}
			return model.StateErred, nil
		}
		st, ok := snapshotStates.Canonical(s.Status)
		switch {
		case !ok || st == model.StateErred:
			return model.StateErred, nil
		case st != model.StateReady:
			state = st
		}
	}
	return state, nil
}

func (b *Backend) DeleteSnapshots(ctx context.Context, set backend.SnapshotSet) error {
	volume, err := b.session.service(ctx, serviceVolume)
	if err != nil {
		return err
	}
	for _, id := range []string{set.SystemSnapshotID, set.DataSnapshotID} {
		if id == "" {
			continue
		}
		if err := ignoreNotFound(wrap("delete_snapshots", snapshots.Delete(ctx, volume, id).ExtractErr())); err != nil {
			return err
		}
	}
	return nil
}

func (b *Backend) PromoteSnapshotsToVolumes(ctx context.Context, set backend.SnapshotSet) (backend.VolumePair, error) {
	var pair backend.VolumePair
	volume, err := b.session.service(ctx, serviceVolume)
	if err != nil {
		return pair, err
	}
	promote := func(snapshotID string, size int) (string, error) {
		if snapshotID == "" {
			return "", nil
		}
		v, err := volumes.Create(ctx, volume, volumes.CreateOpts{SnapshotID: snapshotID, Size: gib(size)}, nil).Extract()
		if err != nil {
			return "", wrap("promote_snapshots", err)
		}
		return v.ID, nil
	}
	if pair.SystemVolumeID, err = promote(set.SystemSnapshotID, set.SystemSnapshotSize); err != nil {
		return pair, err
	}
	if pair.DataVolumeID, err = promote(set.DataSnapshotID, set.DataSnapshotSize); err != nil {
		return pair, err
	}
	return pair, nil
}

// AddSSHKey treats an existing keypair of the same name as added.
func (b *Backend) AddSSHKey(ctx context.Context, link model.ServiceProjectLink, key model.SSHKey) error {
	compute, err := b.session.service(ctx, serviceCompute)
	if err != nil {
		return err
	}
	err = keypairs.Create(ctx, compute, keypairs.CreateOpts{Name: key.Fingerprint, PublicKey: key.PublicKey}).Err
	if gophercloud.ResponseCodeIs(err, http.StatusConflict) {
		return nil
	}
	return wrap("add_ssh_key", err)
}

func (b *Backend) RemoveSSHKey(ctx context.Context, link model.ServiceProjectLink, key model.SSHKey) error {
	compute, err := b.session.service(ctx, serviceCompute)
	if err != nil {
		return err
	}
	return ignoreNotFound(wrap("remove_ssh_key", keypairs.Delete(ctx, compute, key.Fingerprint, keypairs.DeleteOpts{}).ExtractErr()))
}

func (b *Backend) GetResourcesForImport(ctx context.Context, link model.ServiceProjectLink) ([]backend.RemoteResource, error) {
	return b.PullInstances(ctx, link)
}
