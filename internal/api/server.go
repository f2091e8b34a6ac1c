// Package api provides the read-only operations HTTP server: pool
// health, account states, ledger history, and scraper ownership.
package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/insight-scraper/internal/models"
)

// AccountReader lists accounts for the ops endpoints
type AccountReader interface {
	GetByID(ctx context.Context, accountID string) (*models.Account, error)
	List(ctx context.Context, limit int) ([]*models.Account, error)
}

// JobReader lists job ledger rows for the ops endpoints
type JobReader interface {
	GetByID(ctx context.Context, jobID string) (*models.JobState, error)
	ListRecent(ctx context.Context, limit int) ([]*models.JobState, error)
}

// ScraperReader lists scraper ownership rows for the ops endpoints
type ScraperReader interface {
	List(ctx context.Context, limit int) ([]*models.ScraperMapping, error)
	ActiveCount(ctx context.Context) (int, error)
}

// Pinger checks a backing store's liveness
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the ops HTTP server
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	accounts   AccountReader
	jobs       JobReader
	scrapers   ScraperReader
	db         Pinger
	cache      Pinger
	config     *ServerConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// NewServer creates a new ops server instance. cache may be nil when no
// Redis is configured.
func NewServer(config *ServerConfig, accounts AccountReader, jobs JobReader, scrapers ScraperReader, db Pinger, cache Pinger) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		accounts: accounts,
		jobs:     jobs,
		scrapers: scrapers,
		db:       db,
		cache:    cache,
		config:   config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all ops routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/accounts", s.handleListAccounts).Methods("GET")
	api.HandleFunc("/accounts/{id}", s.handleGetAccount).Methods("GET")

	api.HandleFunc("/jobs", s.handleListJobs).Methods("GET")
	api.HandleFunc("/jobs/{id}", s.handleGetJob).Methods("GET")

	api.HandleFunc("/scrapers", s.handleListScrapers).Methods("GET")
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Printf("Starting ops server on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down ops server...")
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the router for tests
func (s *Server) Router() http.Handler {
	return s.router
}
