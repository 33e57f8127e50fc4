package model

import "time"

// Severities shared by events and alerts.
const (
	SeverityDebug    = "debug"
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Event is one structured entry on the event bus.
type Event struct {
	ID        string            `json:"id"`
	Type      string            `json:"event_type"`
	Severity  string            `json:"severity"`
	Message   string            `json:"message"`
	Context   map[string]string `json:"context"`
	CreatedAt time.Time         `json:"created_at"`
}

// Alert is a named condition that stays open until cleared.
type Alert struct {
	ID        string     `json:"id"`
	DedupeKey string     `json:"dedupe_key"`
	Type      string     `json:"alert_type"`
	Severity  string     `json:"severity"`
	Message   string     `json:"message"`
	ScopeType string     `json:"scope_type"`
	ScopeID   string     `json:"scope_id"`
	OpenedAt  time.Time  `json:"opened_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
}
