package model

import (
	"fmt"
	"time"
)

type SecurityGroup struct {
	ID           string              `json:"id"`
	LinkID       string              `json:"service_project_link"`
	Name         string              `json:"name"`
	Description  string              `json:"description,omitempty"`
	BackendID    string              `json:"backend_id,omitempty"`
	State        State               `json:"state"`
	ErrorMessage string              `json:"error_message,omitempty"`
	Rules        []SecurityGroupRule `json:"rules"`
	Version      int                 `json:"version"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

type SecurityGroupRule struct {
	ID        string `json:"id,omitempty"`
	Protocol  string `json:"protocol"`
	FromPort  int    `json:"from_port"`
	ToPort    int    `json:"to_port"`
	CIDR      string `json:"cidr"`
	BackendID string `json:"backend_id,omitempty"`
}

// Key identifies a rule by its semantics, ignoring backend-assigned IDs.
func (r SecurityGroupRule) Key() string {
	return fmt.Sprintf("%s/%d-%d/%s", r.Protocol, r.FromPort, r.ToPort, r.CIDR)
}

type FloatingIP struct {
	ID               string    `json:"id"`
	LinkID           string    `json:"service_project_link"`
	Address          string    `json:"address"`
	Status           State     `json:"status"`
	BackendID        string    `json:"backend_id"`
	BackendNetworkID string    `json:"backend_network_id"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
