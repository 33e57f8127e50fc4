package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// Migration is one schema version found in the migrations directory.
type Migration struct {
	Version int64
	File    string
	Applied bool
}

// withProvider opens a short-lived database/sql handle for goose; the engine
// itself only talks to the database through pgxpool.
func withProvider(databaseURL, dir string, fn func(*goose.Provider) error) error {
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("migrations dir: %w", err)
	}

	sqlDB, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer sqlDB.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, sqlDB, os.DirFS(dir))
	if err != nil {
		return fmt.Errorf("load migrations from %s: %w", dir, err)
	}
	return fn(provider)
}

// RunMigrations applies every pending migration in dir and returns the
// versions it applied, oldest first.
func RunMigrations(ctx context.Context, databaseURL, dir string) ([]int64, error) {
	var applied []int64
	err := withProvider(databaseURL, dir, func(p *goose.Provider) error {
		results, err := p.Up(ctx)
		if err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		for _, r := range results {
			applied = append(applied, r.Source.Version)
		}
		return nil
	})
	return applied, err
}

// MigrationStatus lists the migrations in dir and whether each is applied.
func MigrationStatus(ctx context.Context, databaseURL, dir string) ([]Migration, error) {
	var out []Migration
	err := withProvider(databaseURL, dir, func(p *goose.Provider) error {
		statuses, err := p.Status(ctx)
		if err != nil {
			return fmt.Errorf("migration status: %w", err)
		}
		for _, s := range statuses {
			out = append(out, Migration{
				Version: s.Source.Version,
				File:    filepath.Base(s.Source.Path),
				Applied: s.State == goose.StateApplied,
			})
		}
		return nil
	})
	return out, err
}
