package backend

import (
	"strings"

	"github.com/opennode/waldur-core-sub000/internal/model"
)

// StateMap translates provider-native states to canonical ones.
type StateMap map[string]model.State

// Canonical maps raw case-insensitively. Unknown states report false.
func (m StateMap) Canonical(raw string) (model.State, bool) {
	s, ok := m[strings.ToUpper(raw)]
	return s, ok
}

// ComputeStates is the Nova-style server status mapping.
var ComputeStates = StateMap{
	"ACTIVE":        model.StateOnline,
	"SHUTOFF":       model.StateOffline,
	"STOPPED":       model.StateOffline,
	"BUILD":         model.StateProvisioning,
	"BUILDING":      model.StateProvisioning,
	"REBOOT":        model.StateRestarting,
	"HARD_REBOOT":   model.StateRestarting,
	"RESIZE":        model.StateResizing,
	"VERIFY_RESIZE": model.StateResizing,
	"DELETED":       model.StateDeleting,
	"ERROR":         model.StateErred,
}

// FloatingIPStates maps Neutron floating IP statuses.
var FloatingIPStates = StateMap{
	"DOWN":   model.StateDown,
	"ACTIVE": model.StateActive,
	"BOOKED": model.StateBooked,
}
