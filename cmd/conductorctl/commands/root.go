// Package commands holds the conductorctl command tree.
package commands

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/opennode/waldur-core-sub000/internal/config"
	"github.com/opennode/waldur-core-sub000/internal/db"
	"github.com/opennode/waldur-core-sub000/internal/logging"
)

// env opens connections on first use so that commands only pay for what
// they touch.
type env struct {
	cfg    *config.Config
	logger zerolog.Logger
	pool   *pgxpool.Pool
	tc     temporalclient.Client
}

func (e *env) load() error {
	if e.cfg != nil {
		return nil
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(config.RoleConductorctl); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	e.cfg = cfg
	e.logger = logging.NewLogger(cfg, "")
	return nil
}

func (e *env) corePool(ctx context.Context) (*pgxpool.Pool, error) {
	if e.pool != nil {
		return e.pool, nil
	}
	if err := e.load(); err != nil {
		return nil, err
	}
	pool, err := db.NewCorePool(ctx, e.cfg.CoreDatabaseURL, "conductorctl")
	if err != nil {
		return nil, err
	}
	e.pool = pool
	return pool, nil
}

func (e *env) temporal() (temporalclient.Client, error) {
	if e.tc != nil {
		return e.tc, nil
	}
	if err := e.load(); err != nil {
		return nil, err
	}
	tlsConfig, err := e.cfg.TemporalTLS()
	if err != nil {
		return nil, fmt.Errorf("configure temporal TLS: %w", err)
	}
	opts := temporalclient.Options{HostPort: e.cfg.TemporalAddress}
	if tlsConfig != nil {
		opts.ConnectionOptions = temporalclient.ConnectionOptions{TLS: tlsConfig}
	}
	tc, err := temporalclient.Dial(opts)
	if err != nil {
		return nil, fmt.Errorf("connect to temporal: %w", err)
	}
	e.tc = tc
	return tc, nil
}

func (e *env) close() {
	if e.pool != nil {
		e.pool.Close()
	}
	if e.tc != nil {
		e.tc.Close()
	}
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	e := &env{}
	defer e.close()
	return newRootCommand(e).ExecuteContext(ctx)
}

func newRootCommand(e *env) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "conductorctl",
		Short:         "Administer the resource lifecycle engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newMigrateCommand(e))
	rootCmd.AddCommand(newRecoverCommand(e))
	rootCmd.AddCommand(newTickCommand(e))
	rootCmd.AddCommand(newImportCommand(e))

	return rootCmd
}
