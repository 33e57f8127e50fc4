// Package event turns committed store changes into events on the bus and
// keeps named alerts open while their condition holds.
package event

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/opennode/waldur-core-sub000/internal/fsm"
	"github.com/opennode/waldur-core-sub000/internal/model"
	"github.com/opennode/waldur-core-sub000/internal/platform"
	"github.com/opennode/waldur-core-sub000/internal/store"
)

// Event types emitted outside of state changes.
const (
	TypeScheduleCreated     = "iaas_backup_schedule_creation_succeeded"
	TypeScheduleDeactivated = "resource_backup_schedule_deactivated"
	TypeQuotaOverThreshold  = "quota_usage_is_over_threshold"
	TypeSettingsErred       = "service_settings_erred"
)

// Sink delivers events.
type Sink interface {
	Emit(ctx context.Context, e model.Event) error
}

// New builds an event stamped with an ID and the current time.
func New(eventType, severity, message string, fields map[string]string) model.Event {
	if fields == nil {
		fields = map[string]string{}
	}
	return model.Event{
		ID:        platform.NewID(),
		Type:      eventType,
		Severity:  severity,
		Message:   message,
		Context:   fields,
		CreatedAt: time.Now().UTC(),
	}
}

// entityPrefix is the event-type prefix of an entity.
func entityPrefix(entity string) string {
	switch entity {
	case model.EntityBackup:
		return "resource_backup"
	default:
		return entity
	}
}

// operation names the lifecycle operation a state belongs to.
func operation(s model.State) string {
	switch s {
	case model.StateProvisioningScheduled, model.StateProvisioning,
		model.StateCreationScheduled, model.StateCreating, model.StateBackingUp:
		return "creation"
	case model.StateStartingScheduled, model.StateStarting:
		return "start"
	case model.StateStoppingScheduled, model.StateStopping:
		return "stop"
	case model.StateRestartingScheduled, model.StateRestarting:
		return "restart"
	case model.StateResizingScheduled, model.StateResizing:
		return "resize"
	case model.StateDeletionScheduled, model.StateDeleting:
		return "deletion"
	case model.StateSyncScheduled, model.StateSyncing:
		return "sync"
	case model.StateRestoring:
		return "restoration"
	}
	return ""
}

var scheduledOps = map[string]string{
	fsm.ScheduleStarting:    "start",
	fsm.ScheduleStopping:    "stop",
	fsm.ScheduleRestarting:  "restart",
	fsm.ScheduleResizing:    "resize",
	fsm.ScheduleDeletion:    "deletion",
	fsm.ScheduleSyncing:     "sync",
	fsm.StartingBackup:      "creation",
	fsm.StartingDeletion:    "deletion",
	fsm.StartingRestoration: "restoration",
}

// transitionType names the event of one committed transition.
func transitionType(c store.Change) (string, string) {
	prefix := entityPrefix(c.Entity)
	if c.To == model.StateErred {
		if op := operation(c.From); op != "" {
			return fmt.Sprintf("%s_%s_failed", prefix, op), model.SeverityError
		}
		return prefix + "_erred", model.SeverityError
	}
	if op, ok := scheduledOps[c.Transition]; ok {
		return fmt.Sprintf("%s_%s_scheduled", prefix, op), model.SeverityInfo
	}
	switch c.Transition {
	case fsm.SetOnline, fsm.SetOffline, fsm.SetInSync, fsm.SetResized,
		fsm.ConfirmBackup, fsm.ConfirmDeletion, fsm.ConfirmRestoration:
		if op := operation(c.From); op != "" {
			return fmt.Sprintf("%s_%s_succeeded", prefix, op), model.SeverityInfo
		}
	case fsm.Recover, fsm.RecoverOnline, fsm.RecoverOffline:
		return prefix + "_recovered", model.SeverityInfo
	}
	return prefix + "_state_changed", model.SeverityInfo
}

// ForChange maps a committed change to exactly one event.
func ForChange(c store.Change) model.Event {
	ctx := make(map[string]string, len(c.Context)+4)
	for k, v := range c.Context {
		ctx[k] = v
	}
	ctx[c.Entity+"_id"] = c.ID
	if c.Transition != "" {
		ctx["transition"] = c.Transition
	}
	if c.From != "" {
		ctx["from_state"] = string(c.From)
	}
	if c.To != "" {
		ctx["to_state"] = string(c.To)
	}

	name := c.ID
	if n := c.Context["resource_name"]; n != "" {
		name = n
	}
	label := strings.ReplaceAll(c.Entity, "_", " ")
	prefix := entityPrefix(c.Entity)

	var (
		eventType, severity, message string
	)
	switch c.Kind {
	case store.ChangeTransitioned:
		eventType, severity = transitionType(c)
		message = fmt.Sprintf("%s %s moved from %s to %s.", label, name, c.From, c.To)
		if c.Message != "" {
			message = fmt.Sprintf("%s %s moved from %s to %s: %s", label, name, c.From, c.To, c.Message)
		}
	case store.ChangeCreated:
		eventType, severity = prefix+"_created", model.SeverityInfo
		if c.To == model.StateProvisioningScheduled || c.To == model.StateBackingUp {
			eventType = prefix + "_creation_scheduled"
		}
		message = fmt.Sprintf("%s %s has been created.", label, name)
	case store.ChangeDeleted:
		eventType, severity = prefix+"_deletion_succeeded", model.SeverityInfo
		message = fmt.Sprintf("%s %s has been deleted.", label, name)
	default:
		eventType, severity = prefix+"_updated", model.SeverityDebug
		message = fmt.Sprintf("%s %s has been updated.", label, name)
	}
	return New(eventType, severity, message, ctx)
}

// Listener emits one event per committed change.
type Listener struct {
	sink Sink
}

func NewListener(sink Sink) *Listener {
	return &Listener{sink: sink}
}

// Notify never fails the mutation; sink errors are counted and logged by
// the sinks themselves.
func (l *Listener) Notify(ctx context.Context, c store.Change) {
	_ = l.sink.Emit(ctx, ForChange(c))
}
