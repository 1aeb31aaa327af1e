// Package api serves the admin HTTP API of the backup manager.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/sutaaa0/cashier-app-sub000/internal/api/handler"
	mw "github.com/sutaaa0/cashier-app-sub000/internal/api/middleware"
	"github.com/sutaaa0/cashier-app-sub000/internal/models"
)

// Services are the components the API is a client of.
type Services struct {
	Settings interface {
		handler.BackupSettingsService
		handler.ResetSettingsService
	}
	Backups   handler.BackupRunner
	Store     handler.ArtifactStore
	Scheduler handler.ScheduleInfo
	Reset     handler.ResetController
	DB        handler.Pinger
}

type Server struct {
	router   chi.Router
	logger   zerolog.Logger
	cfg      models.ServerConfig
	services Services
}

func NewServer(logger zerolog.Logger, cfg models.ServerConfig, services Services) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		logger:   logger.With().Str("component", "api").Logger(),
		cfg:      cfg,
		services: services,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
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

	health := handler.NewHealth(s.services.DB)
	s.router.Get("/healthz", health.Healthz)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.AdminToken(s.cfg.AdminToken))

		backup := handler.NewBackup(s.services.Settings, s.services.Backups, s.services.Store, s.services.Scheduler)
		r.Get("/backup/settings", backup.GetSettings)
		r.Put("/backup/settings", backup.SaveSettings)
		r.Get("/backup/status", backup.Status)
		r.Get("/backup/artifacts", backup.ListArtifacts)
		r.Post("/backup/artifacts", backup.CreateArtifact)
		r.Get("/backup/artifacts/{filename}", backup.DownloadArtifact)
		r.Delete("/backup/artifacts/{filename}", backup.DeleteArtifact)

		reset := handler.NewReset(s.services.Settings, s.services.Reset)
		r.Get("/reset/settings", reset.GetSettings)
		r.Put("/reset/settings", reset.SaveSettings)
		r.Get("/reset/status", reset.Status)
		r.Get("/reset/logs", reset.ListLogs)
		r.Post("/reset", reset.Trigger)
	})
}
