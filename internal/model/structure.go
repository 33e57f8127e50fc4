package model

import "time"

// Customer is the tenant root.
type Customer struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Balance       float64   `json:"balance"`
	SuspendOnDebt bool      `json:"suspend_on_debt"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// InDebt reports whether the customer is suspended for a non-positive balance.
func (c Customer) InDebt() bool {
	return c.SuspendOnDebt && c.Balance <= 0
}

type Project struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ServiceSettings holds provider credentials and endpoint. Shared settings
// have no customer and are usable by anyone.
type ServiceSettings struct {
	ID           string            `json:"id"`
	CustomerID   *string           `json:"customer_id,omitempty"`
	Name         string            `json:"name"`
	Type         string            `json:"type"`
	BackendURL   string            `json:"backend_url"`
	Username     string            `json:"username,omitempty"`
	Password     string            `json:"-"`
	Token        string            `json:"-"`
	Options      map[string]string `json:"options,omitempty"`
	Shared       bool              `json:"shared"`
	State        State             `json:"state"`
	ErrorMessage string            `json:"error_message,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Option returns a settings option or the fallback when unset.
func (s ServiceSettings) Option(key, fallback string) string {
	if v, ok := s.Options[key]; ok && v != "" {
		return v
	}
	return fallback
}

type Service struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id"`
	SettingsID string    `json:"settings_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// ServiceProjectLink binds a service to a project. It is the unit of
// provider-side tenancy.
type ServiceProjectLink struct {
	ID                string    `json:"id"`
	ServiceID         string    `json:"service_id"`
	ProjectID         string    `json:"project_id"`
	TenantID          string    `json:"tenant_id,omitempty"`
	InternalNetworkID string    `json:"internal_network_id,omitempty"`
	ExternalNetworkID string    `json:"external_network_id,omitempty"`
	AvailabilityZone  string    `json:"availability_zone,omitempty"`
	State             State     `json:"state"`
	ErrorMessage      string    `json:"error_message,omitempty"`
	Version           int       `json:"version"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// LinkContext bundles a link with the settings needed to build its backend.
type LinkContext struct {
	Link       ServiceProjectLink `json:"link"`
	Settings   ServiceSettings    `json:"settings"`
	CustomerID string             `json:"customer_id"`
}

// Flavor is a read-only provider property pulled per settings.
type Flavor struct {
	ID         string `json:"id"`
	SettingsID string `json:"settings_id"`
	BackendID  string `json:"backend_id"`
	Name       string `json:"name"`
	Cores      int    `json:"cores"`
	RAM        int    `json:"ram"`
	Disk       int    `json:"disk"`
}

type Image struct {
	ID         string `json:"id"`
	SettingsID string `json:"settings_id"`
	BackendID  string `json:"backend_id"`
	Name       string `json:"name"`
	MinRAM     int    `json:"min_ram"`
	MinDisk    int    `json:"min_disk"`
}
