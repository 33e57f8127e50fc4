package activity

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/opennode/waldur-core-sub000/internal/event"
	"github.com/opennode/waldur-core-sub000/internal/model"
)

// AlertReconciler keeps the open alerts of one type equal to a wanted set.
// *event.Alerts satisfies it.
type AlertReconciler interface {
	Reconcile(ctx context.Context, alertType string, want map[string]event.OpenParams) (event.HousekeepingResult, error)
}

// QuotaScanner finds and repairs quotas. *quota.Gate satisfies it.
type QuotaScanner interface {
	ListOverThreshold(ctx context.Context, threshold float64) ([]model.Quota, error)
	Recalculate(ctx context.Context, scope model.Scope) error
}

// Housekeeping contains the alert maintenance activity.
type Housekeeping struct {
	store  Store
	quotas QuotaScanner
	alerts AlertReconciler
	logger zerolog.Logger
}

// NewHousekeeping creates a new Housekeeping activity struct.
func NewHousekeeping(st Store, quotas QuotaScanner, alerts AlertReconciler, logger zerolog.Logger) *Housekeeping {
	return &Housekeeping{
		store:  st,
		quotas: quotas,
		alerts: alerts,
		logger: logger.With().Str("component", "housekeeping").Logger(),
	}
}

// AlertHousekeepingResult counts the alerts opened and closed per type.
type AlertHousekeepingResult struct {
	Quota    event.HousekeepingResult `json:"quota"`
	Settings event.HousekeepingResult `json:"settings"`
	Repaired int                      `json:"repaired"`
}

// AlertHousekeeping recalculates the scopes whose quotas look over the
// threshold, then opens and closes quota and erred-settings alerts to
// match the current state.
func (a *Housekeeping) AlertHousekeeping(ctx context.Context) (AlertHousekeepingResult, error) {
	var res AlertHousekeepingResult

	over, err := a.quotas.ListOverThreshold(ctx, event.QuotaThreshold)
	if err != nil {
		return res, err
	}
	seen := make(map[model.Scope]bool)
	for _, q := range over {
		scope := q.Scope()
		if seen[scope] {
			continue
		}
		seen[scope] = true
		if err := a.quotas.Recalculate(ctx, scope); err != nil {
			return res, err
		}
		res.Repaired++
	}
	if len(seen) > 0 {
		if over, err = a.quotas.ListOverThreshold(ctx, event.QuotaThreshold); err != nil {
			return res, err
		}
	}

	want := make(map[string]event.OpenParams, len(over))
	for _, q := range over {
		p := event.QuotaAlert(q)
		want[p.DedupeKey] = p
	}
	if res.Quota, err = a.alerts.Reconcile(ctx, event.TypeQuotaOverThreshold, want); err != nil {
		return res, err
	}

	erred, err := a.store.ListSettingsInStates(ctx, model.StateErred)
	if err != nil {
		return res, err
	}
	want = make(map[string]event.OpenParams, len(erred))
	for _, s := range erred {
		p := event.SettingsAlert(s)
		want[p.DedupeKey] = p
	}
	if res.Settings, err = a.alerts.Reconcile(ctx, event.TypeSettingsErred, want); err != nil {
		return res, err
	}

	a.logger.Info().
		Int("quota_opened", res.Quota.Opened).Int("quota_closed", res.Quota.Closed).
		Int("settings_opened", res.Settings.Opened).Int("settings_closed", res.Settings.Closed).
		Int("scopes_recalculated", res.Repaired).
		Msg("alert housekeeping done")
	return res, nil
}
