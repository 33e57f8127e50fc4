package model

import (
	"encoding/json"
	"time"
)

// Template is one step of a template group.
type Template struct {
	ID                         string          `json:"id"`
	GroupID                    string          `json:"group_id"`
	ResourceType               string          `json:"resource_type"`
	SettingsID                 string          `json:"service_settings"`
	Options                    json.RawMessage `json:"options"`
	UsePreviousResourceProject bool            `json:"use_previous_resource_project"`
	OrderNumber                int             `json:"order_number"`
}

type TemplateGroup struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	IsActive  bool       `json:"is_active"`
	Templates []Template `json:"templates"`
	CreatedAt time.Time  `json:"created_at"`
}

// TemplateGroupResult is the execution record of a group provision.
type TemplateGroupResult struct {
	ID                   string            `json:"id"`
	GroupID              string            `json:"group_id"`
	Finished             bool              `json:"is_finished"`
	Erred                bool              `json:"is_erred"`
	StateMessage         string            `json:"state_message"`
	ErrorMessage         string            `json:"error_message,omitempty"`
	ErrorDetails         string            `json:"error_details,omitempty"`
	ProvisionedResources map[string]string `json:"provisioned_resources"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}
