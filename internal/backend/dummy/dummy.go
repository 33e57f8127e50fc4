// Package dummy is an in-memory provider used by tests and demos. Each
// settings entity gets its own emulated cloud that lives as long as the
// factory.
package dummy

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/opennode/waldur-core-sub000/internal/backend"
	"github.com/opennode/waldur-core-sub000/internal/model"
	"github.com/opennode/waldur-core-sub000/internal/platform"
)

// Type is the settings type tag of this provider.
const Type = "dummy"

// Options read from the settings entity.
const (
	// OptionFailPrefix plus an operation name ("provision", "stop",
	// "snapshots", ...) makes that operation fail when set to "true".
	OptionFailPrefix = "fail_"
	// OptionProvisionDelayPolls is how many status reads a new server
	// stays in BUILD.
	OptionProvisionDelayPolls = "provision_delay_polls"
)

var flavors = []model.Flavor{
	{BackendID: "flv-small", Name: "m1.small", Cores: 1, RAM: 2048, Disk: 20480},
	{BackendID: "flv-medium", Name: "m1.medium", Cores: 2, RAM: 4096, Disk: 40960},
	{BackendID: "flv-large", Name: "m1.large", Cores: 4, RAM: 8192, Disk: 81920},
}

var images = []model.Image{
	{BackendID: "img-cirros", Name: "cirros", MinRAM: 64, MinDisk: 1024},
	{BackendID: "img-ubuntu", Name: "ubuntu-24.04", MinRAM: 1024, MinDisk: 10240},
}

type server struct {
	tenantID string
	remote   backend.RemoteResource
	target   string
	pending  int
}

// Cloud is the emulated provider state of one settings entity.
type Cloud struct {
	mu          sync.Mutex
	seq         int
	tenants     map[string]bool
	servers     map[string]*server
	groups      map[string]map[string]backend.RemoteSecurityGroup
	floatingIPs map[string][]backend.RemoteFloatingIP
	snapshots   map[string]int
	keys        map[string]map[string]string
	users       map[string]map[string]bool
}

func newCloud() *Cloud {
	return &Cloud{
		tenants:     make(map[string]bool),
		servers:     make(map[string]*server),
		groups:      make(map[string]map[string]backend.RemoteSecurityGroup),
		floatingIPs: make(map[string][]backend.RemoteFloatingIP),
		snapshots:   make(map[string]int),
		keys:        make(map[string]map[string]string),
		users:       make(map[string]map[string]bool),
	}
}

// AddServer injects a server that was created outside the engine.
func (c *Cloud) AddServer(tenantID string, r backend.RemoteResource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r.RawState == "" {
		r.RawState = "ACTIVE"
	}
	r.State, _ = backend.ComputeStates.Canonical(r.RawState)
	c.servers[r.BackendID] = &server{tenantID: tenantID, remote: r, target: r.RawState}
}

// RemoveServer deletes a server behind the engine's back.
func (c *Cloud) RemoveServer(backendID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.servers, backendID)
}

// SetFloatingIPs replaces the floating IPs of a tenant.
func (c *Cloud) SetFloatingIPs(tenantID string, ips []backend.RemoteFloatingIP) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.floatingIPs[tenantID] = ips
}

func (c *Cloud) nextAddress(prefix string) string {
	c.seq++
	return fmt.Sprintf("%s.%d.%d", prefix, c.seq/250, c.seq%250+1)
}

// Factory hands out backends that share one Cloud per settings entity.
type Factory struct {
	mu     sync.Mutex
	clouds map[string]*Cloud
}

func NewFactory() *Factory {
	return &Factory{clouds: make(map[string]*Cloud)}
}

// Cloud returns the emulated cloud of a settings entity.
func (f *Factory) Cloud(settingsID string) *Cloud {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.clouds[settingsID]
	if !ok {
		c = newCloud()
		f.clouds[settingsID] = c
	}
	return c
}

// New implements backend.Factory.
func (f *Factory) New(settings model.ServiceSettings, tenantID string) (backend.Backend, error) {
	delay := 1
	if raw := settings.Option(OptionProvisionDelayPolls, ""); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid %s %q", OptionProvisionDelayPolls, raw)
		}
		delay = n
	}
	return &Backend{
		cloud:    f.Cloud(settings.ID),
		settings: settings,
		tenantID: tenantID,
		delay:    delay,
	}, nil
}

// Backend is the dummy provider bound to one settings entity.
type Backend struct {
	backend.Unimplemented
	cloud    *Cloud
	settings model.ServiceSettings
	tenantID string
	delay    int
}

func (b *Backend) fail(op string) error {
	if b.settings.Option(OptionFailPrefix+op, "") == "true" {
		return &model.BackendError{Op: op, Message: "injected failure", StatusCode: 500}
	}
	return nil
}

func (b *Backend) Sync(ctx context.Context) error {
	return b.fail("sync")
}

func (b *Backend) SyncLink(ctx context.Context, link model.ServiceProjectLink) (backend.TenantInfo, error) {
	if err := b.fail("sync_link"); err != nil {
		return backend.TenantInfo{}, err
	}
	b.cloud.mu.Lock()
	defer b.cloud.mu.Unlock()
	tenantID := link.TenantID
	if tenantID == "" {
		tenantID = platform.NewName("tenant-")
	}
	b.cloud.tenants[tenantID] = true
	return backend.TenantInfo{
		TenantID:          tenantID,
		InternalNetworkID: "net-" + tenantID,
		ExternalNetworkID: "ext-net",
		AvailabilityZone:  b.settings.Option("availability_zone", "nova"),
	}, nil
}

func (b *Backend) RemoveLink(ctx context.Context, link model.ServiceProjectLink) error {
	if err := b.fail("remove_link"); err != nil {
		return err
	}
	b.cloud.mu.Lock()
	defer b.cloud.mu.Unlock()
	delete(b.cloud.tenants, link.TenantID)
	delete(b.cloud.groups, link.TenantID)
	delete(b.cloud.floatingIPs, link.TenantID)
	return nil
}

func (b *Backend) Provision(ctx context.Context, req backend.ProvisionRequest) (string, error) {
	if err := b.fail("provision"); err != nil {
		return "", err
	}
	b.cloud.mu.Lock()
	defer b.cloud.mu.Unlock()

	r := req.Resource
	id := platform.NewName("srv-")
	now := time.Now()
	remote := backend.RemoteResource{
		BackendID:        id,
		Type:             r.Type,
		Name:             r.Name,
		RawState:         "BUILD",
		State:            model.StateProvisioning,
		FlavorName:       r.FlavorName,
		Cores:            r.Cores,
		RAM:              r.RAM,
		Disk:             r.Disk,
		ImageName:        r.ImageName,
		SystemVolumeID:   req.SystemVolumeID,
		SystemVolumeSize: r.SystemVolumeSize,
		DataVolumeID:     req.DataVolumeID,
		DataVolumeSize:   r.DataVolumeSize,
		InternalIPs:      []string{b.cloud.nextAddress("10.0")},
		StartTime:        &now,
	}
	if req.Flavor != nil {
		remote.FlavorName, remote.Cores, remote.RAM, remote.Disk = req.Flavor.Name, req.Flavor.Cores, req.Flavor.RAM, req.Flavor.Disk
	}
	if remote.SystemVolumeID == "" && r.SystemVolumeSize > 0 {
		remote.SystemVolumeID = platform.NewName("vol-")
	}
	if remote.DataVolumeID == "" && r.DataVolumeSize > 0 {
		remote.DataVolumeID = platform.NewName("vol-")
	}
	if !req.SkipExternalIPAssignment {
		remote.ExternalIPs = []string{b.cloud.nextAddress("203.0")}
	}
	target := "ACTIVE"
	if b.settings.Option("provision_result", "") == "error" {
		target = "ERROR"
	}
	b.cloud.servers[id] = &server{tenantID: req.Link.TenantID, remote: remote, target: target, pending: b.delay}
	if b.delay == 0 {
		b.settle(b.cloud.servers[id])
	}
	return id, nil
}

func (b *Backend) settle(s *server) {
	s.remote.RawState = s.target
	s.remote.State, _ = backend.ComputeStates.Canonical(s.target)
}

func (b *Backend) move(op string, r model.Resource, target string) error {
	if err := b.fail(op); err != nil {
		return err
	}
	b.cloud.mu.Lock()
	defer b.cloud.mu.Unlock()
	s, ok := b.cloud.servers[r.BackendID]
	if !ok {
		return fmt.Errorf("server %s: %w", r.BackendID, model.ErrNotFound)
	}
	s.target = target
	b.settle(s)
	return nil
}

func (b *Backend) Start(ctx context.Context, r model.Resource) error   { return b.move("start", r, "ACTIVE") }
func (b *Backend) Stop(ctx context.Context, r model.Resource) error    { return b.move("stop", r, "SHUTOFF") }
func (b *Backend) Restart(ctx context.Context, r model.Resource) error { return b.move("restart", r, "ACTIVE") }

func (b *Backend) Destroy(ctx context.Context, r model.Resource) error {
	if err := b.fail("destroy"); err != nil {
		return err
	}
	b.cloud.mu.Lock()
	defer b.cloud.mu.Unlock()
	delete(b.cloud.servers, r.BackendID)
	return nil
}

func (b *Backend) ExtendDisk(ctx context.Context, r model.Resource, newSize int) error {
	if err := b.fail("extend_disk"); err != nil {
		return err
	}
	b.cloud.mu.Lock()
	defer b.cloud.mu.Unlock()
	s, ok := b.cloud.servers[r.BackendID]
	if !ok {
		return fmt.Errorf("server %s: %w", r.BackendID, model.ErrNotFound)
	}
	if newSize <= s.remote.DataVolumeSize {
		return &model.BackendError{Op: "extend_disk", Message: "new size must exceed current size", StatusCode: 400}
	}
	s.remote.DataVolumeSize = newSize
	return nil
}

func (b *Backend) UpdateFlavor(ctx context.Context, r model.Resource, flavor model.Flavor) error {
	if err := b.fail("resize"); err != nil {
		return err
	}
	b.cloud.mu.Lock()
	defer b.cloud.mu.Unlock()
	s, ok := b.cloud.servers[r.BackendID]
	if !ok {
		return fmt.Errorf("server %s: %w", r.BackendID, model.ErrNotFound)
	}
	s.remote.FlavorName, s.remote.Cores, s.remote.RAM = flavor.Name, flavor.Cores, flavor.RAM
	s.target = "SHUTOFF"
	b.settle(s)
	return nil
}

func (b *Backend) GetResource(ctx context.Context, backendID string) (*backend.RemoteResource, error) {
	b.cloud.mu.Lock()
	defer b.cloud.mu.Unlock()
	s, ok := b.cloud.servers[backendID]
	if !ok {
		return nil, fmt.Errorf("server %s: %w", backendID, model.ErrNotFound)
	}
	if s.pending > 0 {
		s.pending--
		if s.pending == 0 {
			b.settle(s)
		}
	}
	out := s.remote
	return &out, nil
}

func (b *Backend) PullFlavors(ctx context.Context) ([]model.Flavor, error) {
	return append([]model.Flavor(nil), flavors...), nil
}

func (b *Backend) PullImages(ctx context.Context) ([]model.Image, error) {
	return append([]model.Image(nil), images...), nil
}

func (b *Backend) PullSecurityGroups(ctx context.Context, link model.ServiceProjectLink) ([]backend.RemoteSecurityGroup, error) {
	b.cloud.mu.Lock()
	defer b.cloud.mu.Unlock()
	var out []backend.RemoteSecurityGroup
	for _, g := range b.cloud.groups[link.TenantID] {
		out = append(out, g)
	}
	return out, nil
}

func (b *Backend) PullFloatingIPs(ctx context.Context, link model.ServiceProjectLink) ([]backend.RemoteFloatingIP, error) {
	b.cloud.mu.Lock()
	defer b.cloud.mu.Unlock()
	return append([]backend.RemoteFloatingIP(nil), b.cloud.floatingIPs[link.TenantID]...), nil
}

func (b *Backend) PullInstances(ctx context.Context, link model.ServiceProjectLink) ([]backend.RemoteResource, error) {
	if err := b.fail("pull"); err != nil {
		return nil, err
	}
	b.cloud.mu.Lock()
	defer b.cloud.mu.Unlock()
	var out []backend.RemoteResource
	for _, s := range b.cloud.servers {
		if s.tenantID == link.TenantID {
			out = append(out, s.remote)
		}
	}
	return out, nil
}

func (b *Backend) PullQuotasAndUsage(ctx context.Context, link model.ServiceProjectLink) ([]backend.QuotaReport, error) {
	b.cloud.mu.Lock()
	defer b.cloud.mu.Unlock()
	var instances, storage float64
	for _, s := range b.cloud.servers {
		if s.tenantID != link.TenantID {
			continue
		}
		instances++
		storage += float64(s.remote.SystemVolumeSize + s.remote.DataVolumeSize)
	}
	return []backend.QuotaReport{
		{Name: model.QuotaInstances, Limit: model.Unlimited, Usage: instances},
		{Name: model.QuotaStorage, Limit: model.Unlimited, Usage: storage},
	}, nil
}

func (b *Backend) PushSecurityGroup(ctx context.Context, link model.ServiceProjectLink, g model.SecurityGroup) (string, error) {
	if err := b.fail("push_security_group"); err != nil {
		return "", err
	}
	b.cloud.mu.Lock()
	defer b.cloud.mu.Unlock()
	id := g.BackendID
	if id == "" {
		id = platform.NewName("sg-")
	}
	groups, ok := b.cloud.groups[link.TenantID]
	if !ok {
		groups = make(map[string]backend.RemoteSecurityGroup)
		b.cloud.groups[link.TenantID] = groups
	}
	rules := make([]model.SecurityGroupRule, len(g.Rules))
	for i, r := range g.Rules {
		r.BackendID = platform.NewName("sgr-")
		rules[i] = r
	}
	groups[id] = backend.RemoteSecurityGroup{BackendID: id, Name: g.Name, Description: g.Description, Rules: rules}
	return id, nil
}

func (b *Backend) DeleteSecurityGroup(ctx context.Context, link model.ServiceProjectLink, g model.SecurityGroup) error {
	b.cloud.mu.Lock()
	defer b.cloud.mu.Unlock()
	delete(b.cloud.groups[link.TenantID], g.BackendID)
	return nil
}

func (b *Backend) CreateSnapshots(ctx context.Context, r model.Resource) (backend.SnapshotSet, error) {
	if err := b.fail("snapshots"); err != nil {
		return backend.SnapshotSet{}, err
	}
	b.cloud.mu.Lock()
	defer b.cloud.mu.Unlock()
	set := backend.SnapshotSet{
		SystemSnapshotID:   platform.NewName("snap-"),
		DataSnapshotID:     platform.NewName("snap-"),
		SystemSnapshotSize: r.SystemVolumeSize,
		DataSnapshotSize:   r.DataVolumeSize,
	}
	b.cloud.snapshots[set.SystemSnapshotID] = set.SystemSnapshotSize
	b.cloud.snapshots[set.DataSnapshotID] = set.DataSnapshotSize
	return set, nil
}

func (b *Backend) SnapshotsState(ctx context.Context, set backend.SnapshotSet) (model.State, error) {
	b.cloud.mu.Lock()
	defer b.cloud.mu.Unlock()
	for _, id := range []string{set.SystemSnapshotID, set.DataSnapshotID} {
		if _, ok := b.cloud.snapshots[id]; !ok {
			return model.StateErred, nil
		}
	}
	return model.StateReady, nil
}

func (b *Backend) DeleteSnapshots(ctx context.Context, set backend.SnapshotSet) error {
	if err := b.fail("delete_snapshots"); err != nil {
		return err
	}
	b.cloud.mu.Lock()
	defer b.cloud.mu.Unlock()
	delete(b.cloud.snapshots, set.SystemSnapshotID)
	delete(b.cloud.snapshots, set.DataSnapshotID)
	return nil
}

func (b *Backend) PromoteSnapshotsToVolumes(ctx context.Context, set backend.SnapshotSet) (backend.VolumePair, error) {
	b.cloud.mu.Lock()
	defer b.cloud.mu.Unlock()
	for _, id := range []string{set.SystemSnapshotID, set.DataSnapshotID} {
		if _, ok := b.cloud.snapshots[id]; !ok {
			return backend.VolumePair{}, fmt.Errorf("snapshot %s: %w", id, model.ErrNotFound)
		}
	}
	return backend.VolumePair{SystemVolumeID: platform.NewName("vol-"), DataVolumeID: platform.NewName("vol-")}, nil
}

func (b *Backend) AddSSHKey(ctx context.Context, link model.ServiceProjectLink, key model.SSHKey) error {
	b.cloud.mu.Lock()
	defer b.cloud.mu.Unlock()
	keys, ok := b.cloud.keys[link.TenantID]
	if !ok {
		keys = make(map[string]string)
		b.cloud.keys[link.TenantID] = keys
	}
	keys[key.Fingerprint] = key.Name
	return nil
}

func (b *Backend) RemoveSSHKey(ctx context.Context, link model.ServiceProjectLink, key model.SSHKey) error {
	b.cloud.mu.Lock()
	defer b.cloud.mu.Unlock()
	delete(b.cloud.keys[link.TenantID], key.Fingerprint)
	return nil
}

func (b *Backend) AddUser(ctx context.Context, link model.ServiceProjectLink, username string) error {
	b.cloud.mu.Lock()
	defer b.cloud.mu.Unlock()
	users, ok := b.cloud.users[link.TenantID]
	if !ok {
		users = make(map[string]bool)
		b.cloud.users[link.TenantID] = users
	}
	users[username] = true
	return nil
}

func (b *Backend) RemoveUser(ctx context.Context, link model.ServiceProjectLink, username string) error {
	b.cloud.mu.Lock()
	defer b.cloud.mu.Unlock()
	delete(b.cloud.users[link.TenantID], username)
	return nil
}

func (b *Backend) GetResourcesForImport(ctx context.Context, link model.ServiceProjectLink) ([]backend.RemoteResource, error) {
	return b.PullInstances(ctx, link)
}

// GetMonthlyCostEstimate prices a resource at a flat per-unit rate.
func (b *Backend) GetMonthlyCostEstimate(ctx context.Context, r model.Resource) (float64, error) {
	return float64(r.Cores)*10 + float64(r.RAM)/1024*5 + float64(r.Storage())/1024*0.1, nil
}
