package event

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/opennode/waldur-core-sub000/internal/model"
	"github.com/opennode/waldur-core-sub000/internal/platform"
	"github.com/opennode/waldur-core-sub000/internal/store"
)

// QuotaThreshold is the usage ratio at which a quota alert opens.
const QuotaThreshold = 0.8

// OpenParams describes an alert condition.
type OpenParams struct {
	DedupeKey string      `json:"dedupe_key"`
	Type      string      `json:"type"`
	Severity  string      `json:"severity"`
	Message   string      `json:"message"`
	Scope     model.Scope `json:"scope"`
}

// Alerts keeps at most one open alert per dedupe key. Opening and closing
// emit an event through sink.
type Alerts struct {
	db     store.Querier
	sink   Sink
	logger zerolog.Logger
}

func NewAlerts(db store.Querier, sink Sink, logger zerolog.Logger) *Alerts {
	return &Alerts{db: db, sink: sink, logger: logger.With().Str("component", "alerts").Logger()}
}

// QuotaKey is the dedupe key of a quota threshold alert.
func QuotaKey(q model.Quota) string {
	return fmt.Sprintf("%s:%s:%s:%s", TypeQuotaOverThreshold, q.ScopeType, q.ScopeID, q.Name)
}

// SettingsKey is the dedupe key of an erred settings alert.
func SettingsKey(settingsID string) string {
	return TypeSettingsErred + ":" + settingsID
}

// Open creates an alert unless one with the same key is already open.
// created is false for a duplicate.
func (a *Alerts) Open(ctx context.Context, p OpenParams) (id string, created bool, err error) {
	err = a.db.QueryRow(ctx,
		`SELECT id FROM alerts WHERE dedupe_key = $1 AND closed_at IS NULL`, p.DedupeKey,
	).Scan(&id)
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", false, fmt.Errorf("find alert %s: %w", p.DedupeKey, err)
	}

	id = platform.NewID()
	now := time.Now().UTC()
	tag, err := a.db.Exec(ctx,
		`INSERT INTO alerts (id, dedupe_key, type, severity, message, scope_type, scope_id, opened_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (dedupe_key) WHERE closed_at IS NULL DO NOTHING`,
		id, p.DedupeKey, p.Type, p.Severity, p.Message, string(p.Scope.Type), p.Scope.ID, now,
	)
	if err != nil {
		return "", false, fmt.Errorf("open alert %s: %w", p.DedupeKey, err)
	}
	if tag.RowsAffected() == 0 {
		// Lost a race with another opener.
		return "", false, nil
	}

	a.emit(ctx, New(p.Type, p.Severity, p.Message, map[string]string{
		"alert_id": id, "scope_type": string(p.Scope.Type), "scope_id": p.Scope.ID,
	}))
	return id, true, nil
}

// Close closes the open alert with key. It reports whether one was open.
func (a *Alerts) Close(ctx context.Context, dedupeKey string) (bool, error) {
	var (
		id, alertType string
	)
	err := a.db.QueryRow(ctx,
		`UPDATE alerts SET closed_at = $1 WHERE dedupe_key = $2 AND closed_at IS NULL RETURNING id, type`,
		time.Now().UTC(), dedupeKey,
	).Scan(&id, &alertType)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("close alert %s: %w", dedupeKey, err)
	}
	a.emit(ctx, New(alertType+"_closed", model.SeverityInfo, "Alert closed.", map[string]string{"alert_id": id}))
	return true, nil
}

// ListOpenKeys returns the dedupe keys of open alerts of one type.
func (a *Alerts) ListOpenKeys(ctx context.Context, alertType string) ([]string, error) {
	rows, err := a.db.Query(ctx,
		`SELECT dedupe_key FROM alerts WHERE type = $1 AND closed_at IS NULL ORDER BY opened_at`, alertType)
	if err != nil {
		return nil, fmt.Errorf("list open %s alerts: %w", alertType, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan alert key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (a *Alerts) emit(ctx context.Context, e model.Event) {
	if a.sink == nil {
		return
	}
	if err := a.sink.Emit(ctx, e); err != nil {
		a.logger.Warn().Err(err).Str("event_type", e.Type).Msg("alert event not delivered")
	}
}

// QuotaAlert builds the alert of one quota over the threshold.
func QuotaAlert(q model.Quota) OpenParams {
	return OpenParams{
		DedupeKey: QuotaKey(q),
		Type:      TypeQuotaOverThreshold,
		Severity:  model.SeverityWarning,
		Message:   fmt.Sprintf("Quota %s of %s is over threshold: %.0f of %.0f used (%.0f%%).", q.Name, q.Scope(), q.Usage, q.Limit, q.Ratio()*100),
		Scope:     q.Scope(),
	}
}

// SettingsAlert builds the alert of erred service settings.
func SettingsAlert(s model.ServiceSettings) OpenParams {
	msg := fmt.Sprintf("Service settings %s are erred.", s.Name)
	if s.ErrorMessage != "" {
		msg = fmt.Sprintf("Service settings %s are erred: %s", s.Name, s.ErrorMessage)
	}
	return OpenParams{
		DedupeKey: SettingsKey(s.ID),
		Type:      TypeSettingsErred,
		Severity:  model.SeverityError,
		Message:   msg,
		Scope:     model.Scope{Type: model.ScopeSettings, ID: s.ID},
	}
}

// HousekeepingResult counts what one housekeeping pass changed.
type HousekeepingResult struct {
	Opened int `json:"opened"`
	Closed int `json:"closed"`
}

// Reconcile opens alerts for every key in want and closes open alerts of
// alertType whose key is absent from want.
func (a *Alerts) Reconcile(ctx context.Context, alertType string, want map[string]OpenParams) (HousekeepingResult, error) {
	var res HousekeepingResult
	for _, p := range want {
		_, created, err := a.Open(ctx, p)
		if err != nil {
			return res, err
		}
		if created {
			res.Opened++
		}
	}

	open, err := a.ListOpenKeys(ctx, alertType)
	if err != nil {
		return res, err
	}
	for _, k := range open {
		if _, ok := want[k]; ok {
			continue
		}
		closed, err := a.Close(ctx, k)
		if err != nil {
			return res, err
		}
		if closed {
			res.Closed++
		}
	}
	return res, nil
}
