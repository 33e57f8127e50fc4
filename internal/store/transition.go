package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/opennode/waldur-core-sub000/internal/fsm"
	"github.com/opennode/waldur-core-sub000/internal/metrics"
	"github.com/opennode/waldur-core-sub000/internal/model"
)

type tableInfo struct {
	name        string
	stateColumn string
}

var tables = map[string]tableInfo{
	model.EntitySettings:      {"service_settings", "state"},
	model.EntityLink:          {"service_project_links", "state"},
	model.EntitySecurityGroup: {"security_groups", "state"},
	model.EntityResource:      {"resources", "state"},
	model.EntityBackup:        {"backups", "state"},
	model.EntityFloatingIP:    {"floating_ips", "status"},
}

func lookup(entity string) (tableInfo, *fsm.Machine, error) {
	t, ok := tables[entity]
	m, mok := fsm.ForEntity(entity)
	if !ok || !mok {
		return tableInfo{}, nil, fmt.Errorf("unknown entity %q", entity)
	}
	return t, m, nil
}

type transitionOptions struct {
	message         string
	expectedVersion int
	context         map[string]string
}

type TransitionOption func(*transitionOptions)

// WithMessage stores msg as the entity's error message.
func WithMessage(msg string) TransitionOption {
	return func(o *transitionOptions) { o.message = msg }
}

// WithExpectedVersion fails the transition with ErrConcurrentUpdate if the
// row no longer carries version v.
func WithExpectedVersion(v int) TransitionOption {
	return func(o *transitionOptions) { o.expectedVersion = v }
}

// WithContext attaches identifiers to the change for event consumers.
func WithContext(kv map[string]string) TransitionOption {
	return func(o *transitionOptions) { o.context = kv }
}

// Transition atomically applies the named transition to an entity. It
// returns the new state. A concurrent update is retried once.
func (s *Store) Transition(ctx context.Context, entity, id, name string, opts ...TransitionOption) (model.State, error) {
	var next model.State
	err := retryConcurrent(func() error {
		return s.InTx(ctx, func(tx *Tx) error {
			var err error
			next, err = tx.Transition(ctx, entity, id, name, opts...)
			return err
		})
	})
	if err != nil {
		metrics.TransitionConflictsTotal.WithLabelValues(entity, model.Kind(err)).Inc()
		return "", err
	}
	metrics.TransitionsTotal.WithLabelValues(entity, name).Inc()
	return next, nil
}

// Transition applies a transition inside an existing unit of work.
func (tx *Tx) Transition(ctx context.Context, entity, id, name string, opts ...TransitionOption) (model.State, error) {
	t, m, err := lookup(entity)
	if err != nil {
		return "", err
	}
	o := transitionOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	var (
		current model.State
		version int
	)
	err = tx.QueryRow(ctx,
		fmt.Sprintf("SELECT %s, version FROM %s WHERE id = $1 FOR UPDATE", t.stateColumn, t.name), id,
	).Scan(&current, &version)
	if err != nil {
		return "", notFound(entity, id, err)
	}
	if o.expectedVersion != 0 && o.expectedVersion != version {
		return "", fmt.Errorf("%s %s: %w", entity, id, model.ErrConcurrentUpdate)
	}

	next, err := m.Next(id, current, name)
	if err != nil {
		return "", err
	}

	tag, err := tx.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET %s = $1, error_message = $2, version = version + 1, updated_at = now()
		 WHERE id = $3 AND version = $4`, t.name, t.stateColumn),
		next, o.message, id, version,
	)
	if err != nil {
		return "", fmt.Errorf("update %s %s state: %w", entity, id, err)
	}
	if tag.RowsAffected() == 0 {
		return "", fmt.Errorf("%s %s: %w", entity, id, model.ErrConcurrentUpdate)
	}

	err = tx.Record(ctx, Change{
		Kind:       ChangeTransitioned,
		Entity:     entity,
		ID:         id,
		Transition: name,
		From:       current,
		To:         next,
		Message:    o.message,
		Context:    o.context,
	})
	if err != nil {
		return "", err
	}
	return next, nil
}

// SetErred moves an entity to ERRED and records msg. An entity that is
// already gone is not an error for a failure continuation.
func (s *Store) SetErred(ctx context.Context, entity, id, msg string) error {
	_, err := s.Transition(ctx, entity, id, fsm.SetErred, WithMessage(msg))
	if errors.Is(err, model.ErrNotFound) {
		s.logger.Warn().Str("entity", entity).Str("id", id).Msg("entity vanished before it could be marked erred")
		return nil
	}
	return err
}

// State returns the current state and version of an entity.
func (s *Store) State(ctx context.Context, entity, id string) (model.State, int, error) {
	return stateOf(ctx, s.db, entity, id)
}

// State reads an entity's state inside a unit of work without locking it.
func (tx *Tx) State(ctx context.Context, entity, id string) (model.State, int, error) {
	return stateOf(ctx, tx, entity, id)
}

func stateOf(ctx context.Context, q Querier, entity, id string) (model.State, int, error) {
	t, _, err := lookup(entity)
	if err != nil {
		return "", 0, err
	}
	var (
		st      model.State
		version int
	)
	err = q.QueryRow(ctx,
		fmt.Sprintf("SELECT %s, version FROM %s WHERE id = $1", t.stateColumn, t.name), id,
	).Scan(&st, &version)
	if err != nil {
		return "", 0, notFound(entity, id, err)
	}
	return st, version, nil
}
