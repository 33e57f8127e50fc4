package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	temporalclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/interceptor"
	"go.temporal.io/sdk/worker"

	"github.com/opennode/waldur-core-sub000/internal/activity"
	"github.com/opennode/waldur-core-sub000/internal/backend"
	"github.com/opennode/waldur-core-sub000/internal/backend/dummy"
	"github.com/opennode/waldur-core-sub000/internal/backend/objectstore"
	"github.com/opennode/waldur-core-sub000/internal/backend/openstack"
	"github.com/opennode/waldur-core-sub000/internal/backup"
	"github.com/opennode/waldur-core-sub000/internal/config"
	"github.com/opennode/waldur-core-sub000/internal/db"
	"github.com/opennode/waldur-core-sub000/internal/event"
	"github.com/opennode/waldur-core-sub000/internal/logging"
	"github.com/opennode/waldur-core-sub000/internal/metrics"
	"github.com/opennode/waldur-core-sub000/internal/model"
	"github.com/opennode/waldur-core-sub000/internal/quota"
	"github.com/opennode/waldur-core-sub000/internal/reconcile"
	"github.com/opennode/waldur-core-sub000/internal/store"
	"github.com/opennode/waldur-core-sub000/internal/template"
	"github.com/opennode/waldur-core-sub000/internal/throttle"
	"github.com/opennode/waldur-core-sub000/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(config.RoleWorker); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg, model.QueueTasks)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	corePool, err := db.NewCorePool(ctx, cfg.CoreDatabaseURL, "conductor-worker")
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to core database")
	}
	defer corePool.Close()
	metrics.RegisterPgxPoolMetrics(corePool)

	redisClient, err := throttle.NewClient(ctx, throttle.ClientConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		TLS:      cfg.RedisTLS,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()

	overrides, err := throttle.LoadOverrides(cfg.ThrottleConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load throttle overrides")
	}

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

	// Event sinks. Kafka is optional.
	sinks := []event.Sink{event.NewDBSink(corePool), event.NewLogSink(logger)}
	if len(cfg.KafkaBrokers) > 0 {
		kw := event.NewKafkaWriter(cfg.KafkaBrokers, cfg.EventsTopic)
		defer kw.Close()
		sinks = append(sinks, event.NewKafkaSink(kw))
		logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.EventsTopic).Msg("kafka event sink enabled")
	}
	sink := event.NewMulti(logger, sinks...)

	st := store.New(corePool, logger)
	engine := quota.NewEngine(quota.DefaultRegistry(), logger)
	st.Observe(quota.NewObserver(engine))
	st.Listen(event.NewListener(sink))
	gate := quota.NewGate(st, engine)

	registry := backend.NewRegistry()
	registry.Register(dummy.Type, dummy.NewFactory().New)
	registry.Register(openstack.Type, openstack.NewFactory(nil, logger))
	registry.Register(objectstore.Type, objectstore.NewFactory(logger))

	provisioner := template.NewHTTPProvisioner(cfg.APIURL, "", &http.Client{Timeout: 60 * time.Second}, logger)

	activities := []any{
		activity.NewLifecycle(st),
		activity.NewBackends(st, registry, gate, logger),
		activity.NewBackups(st, backup.NewScheduler(st, logger), gate, sink, logger),
		activity.NewReconcile(st, registry, reconcile.NewApplier(st, engine, logger), reconcile.NewPenalty(redisClient), logger),
		activity.NewHousekeeping(st, gate, event.NewAlerts(corePool, sink, logger), logger),
		activity.NewTemplates(st, provisioner, logger),
		activity.NewThrottle(throttle.New(redisClient, overrides, logger)),
	}

	interceptors := []interceptor.WorkerInterceptor{&workflow.ErrorTypingInterceptor{}}
	queues := map[string]worker.Options{
		model.QueueTasks:      {Interceptors: interceptors},
		model.QueueHeavy:      {Interceptors: interceptors, MaxConcurrentActivityExecutionSize: cfg.HeavyConcurrency},
		model.QueueBackground: {Interceptors: interceptors},
	}

	if cfg.MetricsAddr != "" {
		metricsSrv := metrics.NewServer(cfg.MetricsAddr,
			metrics.Check{Name: "core_db", Ping: corePool.Ping},
			metrics.Check{Name: "redis", Ping: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
		)
		go func() {
			logger.Info().Str("addr", cfg.MetricsAddr).Msg("starting metrics server")
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	for queue, opts := range queues {
		w := worker.New(tc, queue, opts)
		register(w, activities)
		go func(queue string) {
			logger.Info().Str("taskQueue", queue).Msg("starting temporal worker")
			if err := w.Run(worker.InterruptCh()); err != nil {
				logger.Fatal().Err(err).Str("taskQueue", queue).Msg("worker failed")
			}
		}(queue)
	}

	// Register cron schedules. Errors for already-existing schedules are
	// ignored so that re-deploys do not fail.
	registerCronSchedules(ctx, tc, logger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down worker")
	cancel()
}

// register puts every workflow and activity on w. All queues share the same
// registrations; the queue only decides which worker picks a task up.
func register(w worker.Registry, activities []any) {
	for _, a := range activities {
		w.RegisterActivity(a)
	}

	w.RegisterWorkflow(workflow.ProvisionResourceWorkflow)
	w.RegisterWorkflow(workflow.StartResourceWorkflow)
	w.RegisterWorkflow(workflow.StopResourceWorkflow)
	w.RegisterWorkflow(workflow.RestartResourceWorkflow)
	w.RegisterWorkflow(workflow.DestroyResourceWorkflow)
	w.RegisterWorkflow(workflow.ResizeResourceWorkflow)
	w.RegisterWorkflow(workflow.ExtendDiskWorkflow)
	w.RegisterWorkflow(workflow.RecoverResourceWorkflow)
	w.RegisterWorkflow(workflow.SyncSettingsWorkflow)
	w.RegisterWorkflow(workflow.RecoverSettingsWorkflow)
	w.RegisterWorkflow(workflow.SyncLinkWorkflow)
	w.RegisterWorkflow(workflow.RecoverLinkWorkflow)
	w.RegisterWorkflow(workflow.RemoveLinkWorkflow)
	w.RegisterWorkflow(workflow.SyncSecurityGroupWorkflow)
	w.RegisterWorkflow(workflow.DeleteSecurityGroupWorkflow)
	w.RegisterWorkflow(workflow.CreateBackupWorkflow)
	w.RegisterWorkflow(workflow.DeleteBackupWorkflow)
	w.RegisterWorkflow(workflow.RestoreBackupWorkflow)
	w.RegisterWorkflow(workflow.ScheduleBackupsWorkflow)
	w.RegisterWorkflow(workflow.DeleteExpiredBackupsWorkflow)
	w.RegisterWorkflow(workflow.ReconcileSettingsWorkflow)
	w.RegisterWorkflow(workflow.ReconcileLinksWorkflow)
	w.RegisterWorkflow(workflow.PullLinkWorkflow)
	w.RegisterWorkflow(workflow.AlertHousekeepingWorkflow)
	w.RegisterWorkflow(workflow.TemplateGroupWorkflow)
}

type cronSchedule struct {
	id       string
	cron     string
	workflow interface{}
	queue    string
}

var cronSchedules = []cronSchedule{
	{id: "reconcile-settings", cron: "*/30 * * * *", workflow: workflow.ReconcileSettingsWorkflow, queue: model.QueueBackground},
	{id: "reconcile-links", cron: "*/30 * * * *", workflow: workflow.ReconcileLinksWorkflow, queue: model.QueueBackground},
	{id: "schedule-backups", cron: "* * * * *", workflow: workflow.ScheduleBackupsWorkflow, queue: model.QueueTasks},
	{id: "delete-expired-backups", cron: "0 * * * *", workflow: workflow.DeleteExpiredBackupsWorkflow, queue: model.QueueTasks},
	{id: "alert-housekeeping", cron: "*/30 * * * *", workflow: workflow.AlertHousekeepingWorkflow, queue: model.QueueBackground},
}

func registerCronSchedules(ctx context.Context, tc temporalclient.Client, logger zerolog.Logger) {
	scheduleClient := tc.ScheduleClient()

	for _, s := range cronSchedules {
		_, err := scheduleClient.Create(ctx, temporalclient.ScheduleOptions{
			ID: s.id,
			Spec: temporalclient.ScheduleSpec{
				CronExpressions: []string{s.cron},
			},
			Action: &temporalclient.ScheduleWorkflowAction{
				ID:        s.id,
				Workflow:  s.workflow,
				TaskQueue: s.queue,
			},
		})
		if err != nil {
			if strings.Contains(err.Error(), "already exists") || strings.Contains(err.Error(), "AlreadyExists") || strings.Contains(err.Error(), "already registered") {
				logger.Info().Str("id", s.id).Msg("cron schedule already exists, skipping")
			} else {
				logger.Fatal().Err(err).Str("id", s.id).Msg("failed to create cron schedule")
			}
		} else {
			logger.Info().Str("id", s.id).Str("cron", s.cron).Msg("created cron schedule")
		}
	}
}
