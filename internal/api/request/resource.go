package request

// ProvisionResource is the body of every provision endpoint. The resource
// type comes from the path.
type ProvisionResource struct {
	ServiceProjectLink string   `json:"service_project_link" validate:"required"`
	Name               string   `json:"name" validate:"required,min=1,max=150"`
	Description        string   `json:"description" validate:"max=500"`
	Tags               []string `json:"tags" validate:"dive,min=1,max=64"`
	Flavor             string   `json:"flavor"`
	Image              string   `json:"image"`
	SSHKey             string   `json:"ssh_key"`
	UserData           string   `json:"user_data" validate:"max=16384"`
	SystemVolumeSize   int      `json:"system_volume_size" validate:"gte=0"`
	DataVolumeSize     int      `json:"data_volume_size" validate:"gte=0"`
}

type ResizeResource struct {
	Flavor string `json:"flavor" validate:"required"`
}

type ExtendDisk struct {
	DiskSize int `json:"disk_size" validate:"required,gt=0"`
}
