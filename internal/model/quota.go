package model

import "fmt"

// ScopeType names the kind of entity a quota is attached to.
type ScopeType string

const (
	ScopeCustomer ScopeType = "customer"
	ScopeProject  ScopeType = "project"
	ScopeLink     ScopeType = "spl"
	ScopeSettings ScopeType = "settings"
)

// Scope identifies a quota owner.
type Scope struct {
	Type ScopeType `json:"type"`
	ID   string    `json:"id"`
}

func (s Scope) String() string {
	return fmt.Sprintf("%s:%s", s.Type, s.ID)
}

// Quota names.
const (
	QuotaInstances      = "instances"
	QuotaVCPU           = "vcpu"
	QuotaRAM            = "ram"
	QuotaStorage        = "storage"
	QuotaSecurityGroups = "security_group_count"
	QuotaFloatingIPs    = "floating_ip_count"
	QuotaProjects       = "nc_project_count"
	QuotaServices       = "nc_service_count"
)

// Unlimited disables every check on a quota.
const Unlimited = -1

type Quota struct {
	ScopeType ScopeType `json:"scope_type"`
	ScopeID   string    `json:"scope_id"`
	Name      string    `json:"name"`
	Limit     float64   `json:"limit"`
	Usage     float64   `json:"usage"`
}

func (q Quota) Scope() Scope {
	return Scope{Type: q.ScopeType, ID: q.ScopeID}
}

func (q Quota) IsUnlimited() bool {
	return q.Limit == Unlimited
}

// Exceeds reports whether adding delta would push usage over the limit.
func (q Quota) Exceeds(delta float64) bool {
	if q.IsUnlimited() || delta <= 0 {
		return false
	}
	return q.Usage+delta > q.Limit
}

// Ratio returns usage/limit, or 0 for unlimited or zero limits.
func (q Quota) Ratio() float64 {
	if q.IsUnlimited() || q.Limit <= 0 {
		return 0
	}
	return q.Usage / q.Limit
}
