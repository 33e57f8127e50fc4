package model

import "time"

// Resource types.
const (
	ResourceVM       = "vm"
	ResourceDatabase = "database"
	ResourceCRM      = "crm"
	ResourceBucket   = "bucket"
)

// Resource is any provisioned object on a provider. It belongs to exactly
// one link for its whole life.
type Resource struct {
	ID               string     `json:"id"`
	LinkID           string     `json:"service_project_link"`
	Type             string     `json:"type"`
	Name             string     `json:"name"`
	Description      string     `json:"description,omitempty"`
	Tags             []string   `json:"tags,omitempty"`
	BackendID        string     `json:"backend_id,omitempty"`
	State            State      `json:"state"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	FlavorName       string     `json:"flavor_name,omitempty"`
	Cores            int        `json:"cores"`
	RAM              int        `json:"ram"`
	Disk             int        `json:"disk"`
	ImageName        string     `json:"image_name,omitempty"`
	KeyName          string     `json:"key_name,omitempty"`
	KeyFingerprint   string     `json:"key_fingerprint,omitempty"`
	UserData         string     `json:"user_data,omitempty"`
	SystemVolumeID   string     `json:"system_volume_id,omitempty"`
	SystemVolumeSize int        `json:"system_volume_size"`
	DataVolumeID     string     `json:"data_volume_id,omitempty"`
	DataVolumeSize   int        `json:"data_volume_size"`
	MinRAM           int        `json:"min_ram"`
	MinDisk          int        `json:"min_disk"`
	ExternalIPs      []string   `json:"external_ips,omitempty"`
	InternalIPs      []string   `json:"internal_ips,omitempty"`
	StartTime        *time.Time `json:"start_time,omitempty"`
	QuotaHeld        bool       `json:"-"`
	Version          int        `json:"version"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Storage returns the disk space the resource consumes in MiB.
func (r Resource) Storage() int {
	if vols := r.SystemVolumeSize + r.DataVolumeSize; vols > 0 {
		return vols
	}
	return r.Disk
}

// QuotaUsage returns the quota deltas held by this resource on its link.
func (r Resource) QuotaUsage() map[string]float64 {
	usage := map[string]float64{QuotaInstances: 1}
	if r.Cores > 0 {
		usage[QuotaVCPU] = float64(r.Cores)
	}
	if r.RAM > 0 {
		usage[QuotaRAM] = float64(r.RAM)
	}
	if s := r.Storage(); s > 0 {
		usage[QuotaStorage] = float64(s)
	}
	return usage
}

// Negate returns a copy of deltas with every value sign-flipped.
func Negate(deltas map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(deltas))
	for k, v := range deltas {
		out[k] = -v
	}
	return out
}

// ResourceContext bundles a resource with its link and settings.
type ResourceContext struct {
	Resource Resource           `json:"resource"`
	Link     ServiceProjectLink `json:"link"`
	Settings ServiceSettings    `json:"settings"`
}
