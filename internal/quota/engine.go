package quota

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/opennode/waldur-core-sub000/internal/metrics"
	"github.com/opennode/waldur-core-sub000/internal/model"
	"github.com/opennode/waldur-core-sub000/internal/store"
)

// Origin says who is changing a limit.
type Origin string

const (
	OriginUser    Origin = "user"
	OriginBackend Origin = "backend"
)

// Engine validates and maintains quotas. Every method takes the Querier
// of the caller's transaction so checks and writes share its locks.
type Engine struct {
	registry *Registry
	logger   zerolog.Logger
}

func NewEngine(registry *Registry, logger zerolog.Logger) *Engine {
	return &Engine{
		registry: registry,
		logger:   logger.With().Str("component", "quota").Logger(),
	}
}

// Registry returns the declared fields.
func (e *Engine) Registry() *Registry {
	return e.registry
}

var parentQueries = map[model.ScopeType]string{
	model.ScopeLink:    `SELECT project_id FROM service_project_links WHERE id = $1`,
	model.ScopeProject: `SELECT customer_id FROM projects WHERE id = $1`,
}

// Chain returns scope followed by its ancestors, child first.
func (e *Engine) Chain(ctx context.Context, q store.Querier, scope model.Scope) ([]model.Scope, error) {
	chain := []model.Scope{scope}
	cur := scope
	for {
		parentType, ok := e.registry.Parent(cur.Type)
		if !ok {
			return chain, nil
		}
		query, ok := parentQueries[cur.Type]
		if !ok {
			return nil, fmt.Errorf("no parent lookup for scope %s", cur.Type)
		}
		var parentID string
		if err := q.QueryRow(ctx, query, cur.ID).Scan(&parentID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("%s: %w", cur, model.ErrNotFound)
			}
			return nil, fmt.Errorf("resolve parent of %s: %w", cur, err)
		}
		cur = model.Scope{Type: parentType, ID: parentID}
		chain = append(chain, cur)
	}
}

// lock reads a quota row with FOR UPDATE. A missing row yields the
// field's default limit and zero usage.
func (e *Engine) lock(ctx context.Context, q store.Querier, scope model.Scope, f Field) (model.Quota, error) {
	quota := model.Quota{ScopeType: scope.Type, ScopeID: scope.ID, Name: f.Name, Limit: f.DefaultLimit}
	err := q.QueryRow(ctx,
		`SELECT limit_value, usage FROM quotas WHERE scope_type = $1 AND scope_id = $2 AND name = $3 FOR UPDATE`,
		scope.Type, scope.ID, f.Name,
	).Scan(&quota.Limit, &quota.Usage)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return quota, fmt.Errorf("lock quota %s %s: %w", scope, f.Name, err)
	}
	return quota, nil
}

// ValidateChange locks every affected quota on the chain, child to parent,
// and fails with *model.QuotaExceededError if any would be exceeded.
func (e *Engine) ValidateChange(ctx context.Context, q store.Querier, scope model.Scope, deltas map[string]float64) error {
	chain, err := e.Chain(ctx, q, scope)
	if err != nil {
		return err
	}
	names := sortedNames(deltas)

	var quotas []model.Quota
	for _, s := range chain {
		for _, name := range names {
			f, ok := e.registry.Field(s.Type, name)
			if !ok {
				continue
			}
			quota, err := e.lock(ctx, q, s, f)
			if err != nil {
				return err
			}
			quotas = append(quotas, quota)
		}
	}

	if err := Check(quotas, deltas); err != nil {
		for _, quota := range quotas {
			if quota.Exceeds(deltas[quota.Name]) {
				metrics.QuotaRejectionsTotal.WithLabelValues(quota.Name).Inc()
			}
		}
		return err
	}
	return nil
}

// AddUsage applies deltas to scope and to every ancestor declaring the
// same quota. Usage never drops below zero.
func (e *Engine) AddUsage(ctx context.Context, q store.Querier, scope model.Scope, deltas map[string]float64) error {
	chain, err := e.Chain(ctx, q, scope)
	if err != nil {
		return err
	}
	for _, s := range chain {
		for _, name := range sortedNames(deltas) {
			f, ok := e.registry.Field(s.Type, name)
			if !ok || deltas[name] == 0 {
				continue
			}
			_, err := q.Exec(ctx,
				`INSERT INTO quotas (scope_type, scope_id, name, limit_value, usage)
				 VALUES ($1, $2, $3, $4, GREATEST($5::double precision, 0))
				 ON CONFLICT (scope_type, scope_id, name)
				 DO UPDATE SET usage = GREATEST(quotas.usage + $5::double precision, 0), updated_at = now()`,
				s.Type, s.ID, name, f.DefaultLimit, deltas[name],
			)
			if err != nil {
				return fmt.Errorf("add usage to %s %s: %w", s, name, err)
			}
		}
	}
	return nil
}

// SetLimit changes a limit. Users cannot change limits the backend owns.
func (e *Engine) SetLimit(ctx context.Context, q store.Querier, scope model.Scope, name string, limit float64, origin Origin) error {
	f, ok := e.registry.Field(scope.Type, name)
	if !ok {
		return fmt.Errorf("quota %s on %s: %w", name, scope.Type, model.ErrNotFound)
	}
	if f.IsBackend && origin == OriginUser {
		return fmt.Errorf("quota %s on %s: %w", name, scope, model.ErrBackendQuota)
	}
	if limit < 0 {
		limit = model.Unlimited
	}
	_, err := q.Exec(ctx,
		`INSERT INTO quotas (scope_type, scope_id, name, limit_value) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (scope_type, scope_id, name) DO UPDATE SET limit_value = EXCLUDED.limit_value, updated_at = now()`,
		scope.Type, scope.ID, name, limit,
	)
	if err != nil {
		return fmt.Errorf("set limit of %s %s: %w", scope, name, err)
	}
	e.logger.Info().Str("scope", scope.String()).Str("quota", name).Float64("limit", limit).
		Str("origin", string(origin)).Msg("quota limit changed")
	return nil
}

// SetUsage overwrites usage with an absolute value reported by a backend.
func (e *Engine) SetUsage(ctx context.Context, q store.Querier, scope model.Scope, name string, usage float64) error {
	f, ok := e.registry.Field(scope.Type, name)
	if !ok {
		return fmt.Errorf("quota %s on %s: %w", name, scope.Type, model.ErrNotFound)
	}
	if usage < 0 {
		usage = 0
	}
	_, err := q.Exec(ctx,
		`INSERT INTO quotas (scope_type, scope_id, name, limit_value, usage) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (scope_type, scope_id, name) DO UPDATE SET usage = EXCLUDED.usage, updated_at = now()`,
		scope.Type, scope.ID, name, f.DefaultLimit, usage,
	)
	if err != nil {
		return fmt.Errorf("set usage of %s %s: %w", scope, name, err)
	}
	return nil
}

// Init creates rows for every declared field of scope with default limits.
func (e *Engine) Init(ctx context.Context, q store.Querier, scope model.Scope) error {
	for _, f := range e.registry.Fields(scope.Type) {
		_, err := q.Exec(ctx,
			`INSERT INTO quotas (scope_type, scope_id, name, limit_value) VALUES ($1, $2, $3, $4)
			 ON CONFLICT (scope_type, scope_id, name) DO NOTHING`,
			scope.Type, scope.ID, f.Name, f.DefaultLimit,
		)
		if err != nil {
			return fmt.Errorf("init quota %s %s: %w", scope, f.Name, err)
		}
	}
	return nil
}

// Get returns every declared quota of scope. Missing rows are reported
// with their default limit.
func (e *Engine) Get(ctx context.Context, q store.Querier, scope model.Scope) ([]model.Quota, error) {
	rows, err := q.Query(ctx,
		`SELECT name, limit_value, usage FROM quotas WHERE scope_type = $1 AND scope_id = $2`, scope.Type, scope.ID)
	if err != nil {
		return nil, fmt.Errorf("list quotas of %s: %w", scope, err)
	}
	defer rows.Close()

	stored := make(map[string]model.Quota)
	for rows.Next() {
		quota := model.Quota{ScopeType: scope.Type, ScopeID: scope.ID}
		if err := rows.Scan(&quota.Name, &quota.Limit, &quota.Usage); err != nil {
			return nil, fmt.Errorf("scan quota: %w", err)
		}
		stored[quota.Name] = quota
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]model.Quota, 0, len(stored))
	for _, f := range e.registry.Fields(scope.Type) {
		quota, ok := stored[f.Name]
		if !ok {
			quota = model.Quota{ScopeType: scope.Type, ScopeID: scope.ID, Name: f.Name, Limit: f.DefaultLimit}
		}
		out = append(out, quota)
	}
	return out, nil
}

// ListOverThreshold returns every stored quota with a finite limit whose
// usage ratio is at least threshold.
func (e *Engine) ListOverThreshold(ctx context.Context, q store.Querier, threshold float64) ([]model.Quota, error) {
	rows, err := q.Query(ctx,
		`SELECT scope_type, scope_id, name, limit_value, usage FROM quotas
		 WHERE limit_value > 0 AND usage >= limit_value * $1
		 ORDER BY scope_type, scope_id, name`, threshold)
	if err != nil {
		return nil, fmt.Errorf("list quotas over threshold: %w", err)
	}
	defer rows.Close()

	var out []model.Quota
	for rows.Next() {
		var quota model.Quota
		if err := rows.Scan(&quota.ScopeType, &quota.ScopeID, &quota.Name, &quota.Limit, &quota.Usage); err != nil {
			return nil, fmt.Errorf("scan quota: %w", err)
		}
		out = append(out, quota)
	}
	return out, rows.Err()
}

// aggregateQueries sum a child field into its parent.
var aggregateQueries = map[model.ScopeType]string{
	model.ScopeProject: `SELECT COALESCE(SUM(q.usage), 0) FROM quotas q
		JOIN service_project_links l ON q.scope_type = 'spl' AND q.scope_id = l.id
		WHERE l.project_id = $1 AND q.name = $2`,
	model.ScopeCustomer: `SELECT COALESCE(SUM(q.usage), 0) FROM quotas q
		JOIN projects p ON q.scope_type = 'project' AND q.scope_id = p.id
		WHERE p.customer_id = $1 AND q.name = $2`,
}

// counterQueries recount objects owned by a scope.
var counterQueries = map[string]string{
	model.QuotaProjects:       `SELECT COUNT(*)::double precision FROM projects WHERE customer_id = $1`,
	model.QuotaServices:       `SELECT COUNT(*)::double precision FROM services WHERE customer_id = $1`,
	model.QuotaSecurityGroups: `SELECT COUNT(*)::double precision FROM security_groups WHERE spl_id = $1`,
	model.QuotaFloatingIPs:    `SELECT COUNT(*)::double precision FROM floating_ips WHERE spl_id = $1`,
	model.QuotaInstances:      `SELECT COUNT(*)::double precision FROM resources WHERE spl_id = $1 AND quota_held`,
	model.QuotaVCPU:           `SELECT COALESCE(SUM(cores), 0)::double precision FROM resources WHERE spl_id = $1 AND quota_held`,
	model.QuotaRAM:            `SELECT COALESCE(SUM(ram), 0)::double precision FROM resources WHERE spl_id = $1 AND quota_held`,
	model.QuotaStorage: `SELECT COALESCE(SUM(CASE WHEN system_volume_size + data_volume_size > 0
		THEN system_volume_size + data_volume_size ELSE disk END), 0)::double precision
		FROM resources WHERE spl_id = $1 AND quota_held`,
}

// Recalculate recomputes aggregator and counter usage of scope from its
// children, then does the same for each ancestor, child first, so parent
// aggregates sum the repaired values. Inert fields are left untouched.
func (e *Engine) Recalculate(ctx context.Context, q store.Querier, scope model.Scope) error {
	chain, err := e.Chain(ctx, q, scope)
	if err != nil {
		return err
	}
	for _, s := range chain {
		if err := e.recalculateScope(ctx, q, s); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) recalculateScope(ctx context.Context, q store.Querier, scope model.Scope) error {
	for _, f := range e.registry.Fields(scope.Type) {
		var query string
		switch f.Kind {
		case Aggregator:
			query = aggregateQueries[scope.Type]
		case Counter:
			query = counterQueries[f.Name]
		}
		if query == "" {
			continue
		}
		args := []any{scope.ID}
		if f.Kind == Aggregator {
			args = append(args, f.Name)
		}
		var usage float64
		if err := q.QueryRow(ctx, query, args...).Scan(&usage); err != nil {
			return fmt.Errorf("recalculate %s %s: %w", scope, f.Name, err)
		}
		if err := e.SetUsage(ctx, q, scope, f.Name, usage); err != nil {
			return err
		}
	}
	return nil
}
