package openstack

import (
	"time"

	"github.com/opennode/waldur-core-sub000/internal/backend"
	"github.com/opennode/waldur-core-sub000/internal/model"
)

type serverFlavor struct {
	OriginalName string `json:"original_name"`
	VCPUs        int    `json:"vcpus"`
	RAM          int    `json:"ram"`
	Disk         int    `json:"disk"`
}

type serverAddress struct {
	Addr string `json:"addr"`
	Type string `json:"OS-EXT-IPS:type"`
}

type attachedVolume struct {
	ID   string `json:"id"`
	Size int    `json:"size"`
	Boot bool   `json:"boot"`
}

// server decodes the Nova server fields the engine reads, including the
// volume size and boot flag some deployments add to volumes_attached.
type server struct {
	ID         string                     `json:"id"`
	Name       string                     `json:"name"`
	Status     string                     `json:"status"`
	TenantID   string                     `json:"tenant_id"`
	Flavor     serverFlavor               `json:"flavor"`
	Image      struct{ Name string }      `json:"image"`
	Addresses  map[string][]serverAddress `json:"addresses"`
	Volumes    []attachedVolume           `json:"os-extended-volumes:volumes_attached"`
	LaunchedAt string                     `json:"OS-SRV-USG:launched_at"`
}

// launchedAtLayout is the timestamp format Nova uses for launched_at.
const launchedAtLayout = "2006-01-02T15:04:05.000000"

func (s server) remote() backend.RemoteResource {
	r := backend.RemoteResource{
		BackendID:  s.ID,
		Type:       model.ResourceVM,
		Name:       s.Name,
		RawState:   s.Status,
		FlavorName: s.Flavor.OriginalName,
		Cores:      s.Flavor.VCPUs,
		RAM:        s.Flavor.RAM,
		Disk:       s.Flavor.Disk * 1024,
		ImageName:  s.Image.Name,
	}
	if st, ok := backend.ComputeStates.Canonical(s.Status); ok {
		r.State = st
	} else {
		r.State = model.StateErred
	}
	for _, addrs := range s.Addresses {
		for _, a := range addrs {
			if a.Type == "floating" {
				r.ExternalIPs = append(r.ExternalIPs, a.Addr)
			} else {
				r.InternalIPs = append(r.InternalIPs, a.Addr)
			}
		}
	}
	for _, v := range s.Volumes {
		if v.Boot {
			r.SystemVolumeID, r.SystemVolumeSize = v.ID, v.Size*1024
		} else if r.DataVolumeID == "" {
			r.DataVolumeID, r.DataVolumeSize = v.ID, v.Size*1024
		}
	}
	if t, err := time.Parse(launchedAtLayout, s.LaunchedAt); err == nil {
		r.StartTime = &t
	}
	return r
}

// snapshotStates maps Cinder snapshot statuses.
var snapshotStates = backend.StateMap{
	"CREATING":  model.StateCreating,
	"AVAILABLE": model.StateReady,
	"DELETING":  model.StateDeleting,
	"ERROR":     model.StateErred,
}
