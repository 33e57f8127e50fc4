package reconcile

import (
	"slices"
	"sort"

	"github.com/opennode/waldur-core-sub000/internal/backend"
	"github.com/opennode/waldur-core-sub000/internal/fsm"
	"github.com/opennode/waldur-core-sub000/internal/model"
	"github.com/opennode/waldur-core-sub000/internal/platform"
	"github.com/opennode/waldur-core-sub000/internal/store"
)

// DisappearedMessage is stored on entities the provider no longer reports.
const DisappearedMessage = "disappeared at provider"

// InstanceUpdate is a provider-owned attribute refresh of a stable resource.
type InstanceUpdate struct {
	Local  model.Resource
	Update store.RemoteUpdate
}

type InstancePlan struct {
	Err    []model.Resource
	Create []model.Resource
	Update []InstanceUpdate
}

// Empty reports whether applying the plan would change nothing.
func (p InstancePlan) Empty() bool {
	return len(p.Err) == 0 && len(p.Create) == 0 && len(p.Update) == 0
}

// PlanInstances diffs the resources of one link against the provider.
func PlanInstances(linkID string, local []model.Resource, remote []backend.RemoteResource) InstancePlan {
	d := Diff(local, remote,
		func(r model.Resource) string { return r.BackendID },
		func(r backend.RemoteResource) string { return r.BackendID })

	var plan InstancePlan
	for _, l := range d.LocalOnly {
		if !fsm.Resource.IsStable(l.State) {
			continue
		}
		if l.State == model.StateErred && !l.QuotaHeld {
			continue
		}
		plan.Err = append(plan.Err, l)
	}

	for _, r := range d.RemoteOnly {
		plan.Create = append(plan.Create, newLocalResource(linkID, r))
	}

	for _, p := range d.Common {
		if !fsm.Resource.IsStable(p.Local.State) {
			continue
		}
		u := store.RemoteUpdate{
			Name:        p.Remote.Name,
			FlavorName:  p.Remote.FlavorName,
			Cores:       p.Remote.Cores,
			RAM:         p.Remote.RAM,
			Disk:        p.Remote.Disk,
			ExternalIPs: p.Remote.ExternalIPs,
			InternalIPs: p.Remote.InternalIPs,
		}
		// a resource marked missing that shows up again must be recharged
		if !p.Local.QuotaHeld || remoteDiffers(p.Local, u) {
			plan.Update = append(plan.Update, InstanceUpdate{Local: p.Local, Update: u})
		}
	}
	return plan
}

// newLocalResource adopts a provider-side resource. Transitional remote
// states are recorded as ONLINE since nothing local is driving them.
func newLocalResource(linkID string, r backend.RemoteResource) model.Resource {
	state := r.State
	if !fsm.Resource.IsStable(state) {
		state = model.StateOnline
	}
	typ := r.Type
	if typ == "" {
		typ = model.ResourceVM
	}
	return model.Resource{
		ID:               platform.NewID(),
		LinkID:           linkID,
		Type:             typ,
		Name:             r.Name,
		BackendID:        r.BackendID,
		State:            state,
		FlavorName:       r.FlavorName,
		Cores:            r.Cores,
		RAM:              r.RAM,
		Disk:             r.Disk,
		ImageName:        r.ImageName,
		SystemVolumeID:   r.SystemVolumeID,
		SystemVolumeSize: r.SystemVolumeSize,
		DataVolumeID:     r.DataVolumeID,
		DataVolumeSize:   r.DataVolumeSize,
		ExternalIPs:      r.ExternalIPs,
		InternalIPs:      r.InternalIPs,
		StartTime:        r.StartTime,
	}
}

func remoteDiffers(l model.Resource, u store.RemoteUpdate) bool {
	return l.Name != u.Name ||
		l.FlavorName != u.FlavorName ||
		l.Cores != u.Cores ||
		l.RAM != u.RAM ||
		l.Disk != u.Disk ||
		!sameSet(l.ExternalIPs, u.ExternalIPs) ||
		!sameSet(l.InternalIPs, u.InternalIPs)
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as, bs := slices.Clone(a), slices.Clone(b)
	sort.Strings(as)
	sort.Strings(bs)
	return slices.Equal(as, bs)
}

// RuleDiff is the nested diff of a group's rules keyed on their semantics.
type RuleDiff struct {
	Add    []model.SecurityGroupRule
	Remove []model.SecurityGroupRule
	Keep   []model.SecurityGroupRule
}

func (d RuleDiff) Empty() bool {
	return len(d.Add) == 0 && len(d.Remove) == 0
}

// Rules returns the rule set after the diff is applied.
func (d RuleDiff) Rules() []model.SecurityGroupRule {
	out := make([]model.SecurityGroupRule, 0, len(d.Keep)+len(d.Add))
	out = append(out, d.Keep...)
	return append(out, d.Add...)
}

// DiffRules compares rules ignoring backend-assigned IDs. Kept rules take
// the remote backend ID.
func DiffRules(local, remote []model.SecurityGroupRule) RuleDiff {
	key := func(r model.SecurityGroupRule) string { return r.Key() }
	d := Diff(local, remote, key, key)
	out := RuleDiff{Remove: d.LocalOnly, Add: d.RemoteOnly}
	for _, p := range d.Common {
		kept := p.Local
		kept.BackendID = p.Remote.BackendID
		out.Keep = append(out.Keep, kept)
	}
	return out
}

type SecurityGroupUpdate struct {
	Local model.SecurityGroup
	Name  string
	Rules RuleDiff
}

type SecurityGroupPlan struct {
	Err    []model.SecurityGroup
	Create []model.SecurityGroup
	Update []SecurityGroupUpdate
}

func (p SecurityGroupPlan) Empty() bool {
	return len(p.Err) == 0 && len(p.Create) == 0 && len(p.Update) == 0
}

// PlanSecurityGroups diffs the groups of one link, matching by backend ID.
func PlanSecurityGroups(linkID string, local []model.SecurityGroup, remote []backend.RemoteSecurityGroup) SecurityGroupPlan {
	d := Diff(local, remote,
		func(g model.SecurityGroup) string { return g.BackendID },
		func(g backend.RemoteSecurityGroup) string { return g.BackendID })

	var plan SecurityGroupPlan
	for _, l := range d.LocalOnly {
		if l.State == model.StateInSync {
			plan.Err = append(plan.Err, l)
		}
	}
	for _, r := range d.RemoteOnly {
		plan.Create = append(plan.Create, model.SecurityGroup{
			ID:          platform.NewID(),
			LinkID:      linkID,
			Name:        r.Name,
			Description: r.Description,
			BackendID:   r.BackendID,
			State:       model.StateInSync,
			Rules:       r.Rules,
		})
	}
	for _, p := range d.Common {
		if !fsm.SecurityGroup.IsStable(p.Local.State) {
			continue
		}
		rules := DiffRules(p.Local.Rules, p.Remote.Rules)
		if p.Local.Name != p.Remote.Name || !rules.Empty() {
			plan.Update = append(plan.Update, SecurityGroupUpdate{Local: p.Local, Name: p.Remote.Name, Rules: rules})
		}
	}
	return plan
}

type FloatingIPPlan struct {
	Delete []model.FloatingIP
	Upsert []model.FloatingIP
}

func (p FloatingIPPlan) Empty() bool {
	return len(p.Delete) == 0 && len(p.Upsert) == 0
}

// PlanFloatingIPs diffs the floating IPs of one link. A locally booked IP
// stays booked while the provider still reports it DOWN.
func PlanFloatingIPs(linkID string, local []model.FloatingIP, remote []backend.RemoteFloatingIP) FloatingIPPlan {
	d := Diff(local, remote,
		func(ip model.FloatingIP) string { return ip.BackendID },
		func(ip backend.RemoteFloatingIP) string { return ip.BackendID })

	plan := FloatingIPPlan{Delete: d.LocalOnly}
	for _, r := range d.RemoteOnly {
		plan.Upsert = append(plan.Upsert, model.FloatingIP{
			ID:               platform.NewID(),
			LinkID:           linkID,
			Address:          r.Address,
			Status:           r.Status,
			BackendID:        r.BackendID,
			BackendNetworkID: r.BackendNetworkID,
		})
	}
	for _, p := range d.Common {
		next := p.Local
		next.Address = p.Remote.Address
		next.BackendNetworkID = p.Remote.BackendNetworkID
		if !(p.Local.Status == model.StateBooked && p.Remote.Status == model.StateDown) {
			next.Status = p.Remote.Status
		}
		if next != p.Local {
			plan.Upsert = append(plan.Upsert, next)
		}
	}
	return plan
}

// PlanProperties keys the remote catalogue to the settings entity. New
// rows get fresh IDs; existing rows keep theirs through the upsert.
func PlanProperties(settingsID string, flavors []model.Flavor, images []model.Image) store.Properties {
	var p store.Properties
	for _, f := range flavors {
		f.SettingsID = settingsID
		f.ID = platform.NewID()
		p.Flavors = append(p.Flavors, f)
	}
	for _, im := range images {
		im.SettingsID = settingsID
		im.ID = platform.NewID()
		p.Images = append(p.Images, im)
	}
	return p
}
