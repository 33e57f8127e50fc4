package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/opennode/waldur-core-sub000/internal/api/handler"
	mw "github.com/opennode/waldur-core-sub000/internal/api/middleware"
	"github.com/opennode/waldur-core-sub000/internal/core"
	"github.com/opennode/waldur-core-sub000/internal/model"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	router         chi.Router
	logger         zerolog.Logger
	services       *core.Services
	corePool       Pinger
	temporalClient temporalclient.Client
}

func NewServer(logger zerolog.Logger, services *core.Services, corePool Pinger, temporalClient temporalclient.Client) *Server {
	s := &Server{
		router:         chi.NewRouter(),
		logger:         logger,
		services:       services,
		corePool:       corePool,
		temporalClient: temporalClient,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(mw.Metrics)
}

func (s *Server) setupRoutes() {
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.AllowContentType("application/json"))

		// Provisioning, one collection per resource type
		resource := handler.NewResource(s.services.Resource)
		r.Post("/vms", resource.Provision(model.ResourceVM))
		r.Post("/databases", resource.Provision(model.ResourceDatabase))
		r.Post("/crms", resource.Provision(model.ResourceCRM))
		r.Post("/buckets", resource.Provision(model.ResourceBucket))

		// Resource lifecycle
		r.Get("/resources/{id}", resource.Get)
		r.Delete("/resources/{id}", resource.Destroy)
		r.Post("/resources/{id}/start", resource.Start)
		r.Post("/resources/{id}/stop", resource.Stop)
		r.Post("/resources/{id}/restart", resource.Restart)
		r.Post("/resources/{id}/resize", resource.Resize)
		r.Post("/resources/{id}/extend-disk", resource.ExtendDisk)
		r.Post("/resources/{id}/recover", resource.Recover)

		// Backups
		backup := handler.NewBackup(s.services.Backup)
		r.Post("/resources/{id}/backups", backup.Create)
		r.Get("/backups/{id}", backup.Get)
		r.Delete("/backups/{id}", backup.Delete)
		r.Post("/backups/{id}/restore", backup.Restore)

		// Backup schedules
		schedule := handler.NewBackupSchedule(s.services.BackupSchedule)
		r.Get("/backup-schedules", schedule.List)
		r.Post("/backup-schedules", schedule.Create)
		r.Get("/backup-schedules/{id}", schedule.Get)
		r.Delete("/backup-schedules/{id}", schedule.Delete)
		r.Post("/backup-schedules/{id}/activate", schedule.Activate)
		r.Post("/backup-schedules/{id}/deactivate", schedule.Deactivate)

		// Template groups
		tmpl := handler.NewTemplate(s.services.Template)
		r.Post("/template-groups/{id}/provision", tmpl.Provision)
		r.Get("/template-results/{id}", tmpl.GetResult)

		// Quotas
		quota := handler.NewQuota(s.services.Quota)
		r.Get("/quotas/{scopeType}/{scopeID}", quota.Get)
		r.Put("/quotas/{scopeType}/{scopeID}", quota.Set)

		// Links and settings
		link := handler.NewLink(s.services.Link)
		r.Post("/links/{id}/sync", link.Sync)
		r.Post("/links/{id}/recover", link.Recover)
		r.Post("/settings/{id}/sync", link.SyncSettings)
		r.Post("/settings/{id}/recover", link.RecoverSettings)

		// SSH keys
		sshKey := handler.NewSSHKey(s.services.SSHKey)
		r.Post("/ssh-keys", sshKey.Create)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if err := s.corePool.Ping(ctx); err != nil {
		checks["core_db"] = err.Error()
		healthy = false
	} else {
		checks["core_db"] = "ok"
	}

	if _, err := s.temporalClient.CheckHealth(ctx, &temporalclient.CheckHealthRequest{}); err != nil {
		checks["temporal"] = err.Error()
		healthy = false
	} else {
		checks["temporal"] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(checks)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
