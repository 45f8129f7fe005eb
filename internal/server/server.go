// Package server provides the HTTP server and routing for Folio.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/folio/internal/config"
	"github.com/aristath/folio/internal/database"
	ledgerhandlers "github.com/aristath/folio/internal/modules/ledger/handlers"
	marketdatahandlers "github.com/aristath/folio/internal/modules/marketdata/handlers"
	portfoliohandlers "github.com/aristath/folio/internal/modules/portfolio/handlers"
	snapshothandlers "github.com/aristath/folio/internal/modules/snapshots/handlers"
	"github.com/aristath/folio/internal/reliability"
)

// Config holds server configuration
type Config struct {
	Log         zerolog.Logger
	Cfg         *config.Config
	PortfolioDB *database.DB
	CacheDB     *database.DB

	PortfolioHandler  *portfoliohandlers.Handler
	LedgerHandler     *ledgerhandlers.Handler
	SnapshotHandler   *snapshothandlers.Handler
	MarketDataHandler *marketdatahandlers.Handler
	BackupService     *reliability.BackupService
}

// Server is the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            *config.Config
	portfolioDB    *database.DB
	cacheDB        *database.DB
	systemHandlers *SystemHandlers

	portfolioHandler  *portfoliohandlers.Handler
	ledgerHandler     *ledgerhandlers.Handler
	snapshotHandler   *snapshothandlers.Handler
	marketDataHandler *marketdatahandlers.Handler
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:      chi.NewRouter(),
		log:         cfg.Log.With().Str("component", "server").Logger(),
		cfg:         cfg.Cfg,
		portfolioDB: cfg.PortfolioDB,
		cacheDB:     cfg.CacheDB,
		systemHandlers: NewSystemHandlers(
			cfg.Log,
			cfg.Cfg.DataDir,
			cfg.PortfolioDB,
			cfg.CacheDB,
			cfg.BackupService,
		),
		portfolioHandler:  cfg.PortfolioHandler,
		ledgerHandler:     cfg.LedgerHandler,
		snapshotHandler:   cfg.SnapshotHandler,
		marketDataHandler: cfg.MarketDataHandler,
	}

	s.setupMiddleware(cfg.Cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.systemHandlers.HandleHealth)

	s.router.Route("/api", func(r chi.Router) {
		s.portfolioHandler.RegisterRoutes(r)
		s.ledgerHandler.RegisterRoutes(r)
		s.snapshotHandler.RegisterRoutes(r)
		s.marketDataHandler.RegisterRoutes(r)

		r.Route("/system", func(r chi.Router) {
			r.Get("/info", s.systemHandlers.HandleSystemInfo)
			r.Get("/database/stats", s.systemHandlers.HandleDatabaseStats)
			r.Get("/backups", s.systemHandlers.HandleListBackups)
			r.Post("/backup", s.systemHandlers.HandleTriggerBackup)
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
