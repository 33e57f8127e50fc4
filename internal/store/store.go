// Package store is the persistence adapter. Every mutation runs in a
// transaction and reports a Change to the observers registered by the
// composition root.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/opennode/waldur-core-sub000/internal/model"
)

// Querier is the read/write surface shared by pools and transactions.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB is satisfied by *pgxpool.Pool.
type DB interface {
	Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// ChangeKind classifies a committed mutation.
type ChangeKind string

const (
	ChangeCreated      ChangeKind = "created"
	ChangeTransitioned ChangeKind = "transitioned"
	ChangeUpdated      ChangeKind = "updated"
	ChangeDeleted      ChangeKind = "deleted"
)

// Change describes one mutation. Deltas are quota usage changes on Scope.
type Change struct {
	Kind       ChangeKind
	Entity     string
	ID         string
	Transition string
	From       model.State
	To         model.State
	Message    string
	Scope      model.Scope
	Deltas     map[string]float64
	Context    map[string]string
}

// Observer runs inside the mutating transaction. An error rolls it back.
type Observer interface {
	Observe(ctx context.Context, q Querier, c Change) error
}

// Listener is notified after commit. It cannot fail the mutation.
type Listener interface {
	Notify(ctx context.Context, c Change)
}

type ObserverFunc func(ctx context.Context, q Querier, c Change) error

func (f ObserverFunc) Observe(ctx context.Context, q Querier, c Change) error { return f(ctx, q, c) }

type ListenerFunc func(ctx context.Context, c Change)

func (f ListenerFunc) Notify(ctx context.Context, c Change) { f(ctx, c) }

type Store struct {
	db        DB
	logger    zerolog.Logger
	observers []Observer
	listeners []Listener
}

func New(db DB, logger zerolog.Logger) *Store {
	return &Store{db: db, logger: logger.With().Str("component", "store").Logger()}
}

// Observe registers an in-transaction observer. Observers run in
// registration order.
func (s *Store) Observe(o Observer) {
	s.observers = append(s.observers, o)
}

// Listen registers a post-commit listener.
func (s *Store) Listen(l Listener) {
	s.listeners = append(s.listeners, l)
}

// DB returns the underlying pool for read-only callers.
func (s *Store) DB() DB {
	return s.db
}

// Tx is a unit of work. Changes recorded on it are observed immediately
// and delivered to listeners once the transaction commits.
type Tx struct {
	pgx.Tx
	store   *Store
	pending []Change
}

// Record hands c to every observer inside the transaction.
func (tx *Tx) Record(ctx context.Context, c Change) error {
	for _, o := range tx.store.observers {
		if err := o.Observe(ctx, tx, c); err != nil {
			return fmt.Errorf("observe %s %s %s: %w", c.Entity, c.Kind, c.ID, err)
		}
	}
	tx.pending = append(tx.pending, c)
	return nil
}

// InTx runs fn in a transaction. The transaction commits only when fn
// returns nil.
func (s *Store) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	pgxTx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	tx := &Tx{Tx: pgxTx, store: s}
	defer func() {
		_ = pgxTx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := pgxTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	for _, c := range tx.pending {
		for _, l := range s.listeners {
			l.Notify(ctx, c)
		}
	}
	return nil
}

// retryConcurrent retries fn once when it fails with a concurrent update.
func retryConcurrent(fn func() error) error {
	err := fn()
	if errors.Is(err, model.ErrConcurrentUpdate) {
		err = fn()
	}
	return err
}

func notFound(entity, id string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", entity, id, model.ErrNotFound)
	}
	return fmt.Errorf("get %s %s: %w", entity, id, err)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
