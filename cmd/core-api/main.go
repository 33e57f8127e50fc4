package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	temporalclient "go.temporal.io/sdk/client"

	"github.com/opennode/waldur-core-sub000/internal/api"
	"github.com/opennode/waldur-core-sub000/internal/config"
	"github.com/opennode/waldur-core-sub000/internal/core"
	"github.com/opennode/waldur-core-sub000/internal/db"
	"github.com/opennode/waldur-core-sub000/internal/event"
	"github.com/opennode/waldur-core-sub000/internal/logging"
	"github.com/opennode/waldur-core-sub000/internal/metrics"
	"github.com/opennode/waldur-core-sub000/internal/quota"
	"github.com/opennode/waldur-core-sub000/internal/store"
	"github.com/opennode/waldur-core-sub000/internal/template"
)

func main() {
	migrateFlag := flag.Bool("migrate", false, "Run database migrations before starting")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(config.RoleCoreAPI); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *migrateFlag {
		logger.Info().Str("dir", cfg.MigrationsDir).Msg("running database migrations")
		applied, err := db.RunMigrations(ctx, cfg.CoreDatabaseURL, cfg.MigrationsDir)
		if err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
		logger.Info().Ints64("versions", applied).Msg("migrations applied")
	}

	corePool, err := db.NewCorePool(ctx, cfg.CoreDatabaseURL, "conductor-api")
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to core database")
	}
	defer corePool.Close()
	metrics.RegisterPgxPoolMetrics(corePool)

	tlsConfig, err := cfg.TemporalTLS()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure temporal TLS")
	}
	dialOpts := temporalclient.Options{HostPort: cfg.TemporalAddress}
	if tlsConfig != nil {
		dialOpts.ConnectionOptions = temporalclient.ConnectionOptions{TLS: tlsConfig}
		logger.Info().Msg("temporal mTLS enabled")
	}
	tc, err := temporalclient.Dial(dialOpts)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to temporal")
	}
	defer tc.Close()

	// The API records events in the database and the log. The bus sink
	// belongs to the worker.
	sink := event.NewMulti(logger, event.NewDBSink(corePool), event.NewLogSink(logger))

	st := store.New(corePool, logger)
	engine := quota.NewEngine(quota.DefaultRegistry(), logger)
	st.Observe(quota.NewObserver(engine))
	st.Listen(event.NewListener(sink))
	gate := quota.NewGate(st, engine)

	starter := core.NewTemporalStarter(tc)
	provisioner := template.NewHTTPProvisioner(cfg.APIURL, "", &http.Client{Timeout: 60 * time.Second}, logger)
	runner := template.NewRunner(st, provisioner, starter, logger)

	services := core.NewServices(st, gate, starter, runner, sink, logger)
	srv := api.NewServer(logger, services, corePool, tc)

	httpServer := &http.Server{
		Addr:         cfg.HTTPListenAddr,
		Handler:      srv,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPListenAddr).Msg("starting core API server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
}
