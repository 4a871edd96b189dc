// Package api serves the catalog administration HTTP interface.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/senomardetritos/sgbd-sqlserver/internal/engine"
	"github.com/senomardetritos/sgbd-sqlserver/internal/journal"
	"github.com/senomardetritos/sgbd-sqlserver/internal/ws"
)

// Server is the REST API server.
type Server struct {
	engine  *engine.Engine
	hub     *ws.Hub
	logger  *slog.Logger
	port    int
	server  *http.Server
	metrics http.Handler
	journal journal.Reader
	devMode bool
}

// Option configures the API server.
type Option func(*Server)

// WithDevMode enables CORS and accepts websocket upgrades from any origin.
func WithDevMode(dev bool) Option {
	return func(s *Server) {
		s.devMode = dev
	}
}

// WithHub sets the WebSocket hub.
func WithHub(hub *ws.Hub) Option {
	return func(s *Server) {
		s.hub = hub
	}
}

// WithMetricsHandler exposes h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithJournal exposes recent journal entries on GET /api/journal.
func WithJournal(r journal.Reader) Option {
	return func(s *Server) {
		s.journal = r
	}
}

// New creates a new API server.
func New(eng *engine.Engine, logger *slog.Logger, port int, opts ...Option) *Server {
	s := &Server{
		engine: eng,
		logger: logger,
		port:   port,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.hub != nil && s.devMode {
		s.hub.AllowAnyOrigin = true
	}
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.Handler(),
	}
	return s
}

// Handler returns the fully wired HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)

	var handler http.Handler = mux
	if s.devMode {
		handler = s.corsMiddleware(handler)
	}
	return requestLogger(s.logger, handler)
}

// Start starts the HTTP server. It returns http.ErrServerClosed after
// Shutdown, including when Shutdown ran first.
func (s *Server) Start() error {
	s.logger.Info("starting api server", "port", s.port, "dev_mode", s.devMode)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server. It is safe to call before or
// concurrently with Start.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/types", s.handleTypes)
	mux.HandleFunc("GET /databases", s.handleListDatabases)
	mux.HandleFunc("GET /{database}/tables", s.handleListTables)
	mux.HandleFunc("GET /{database}/tables/struct/{table}", s.handleDescribeTable)
	mux.HandleFunc("POST /{database}/tables/create/{table}", s.handleCreateTable)
	mux.HandleFunc("POST /{database}/columns/{table}", s.handleAddColumn)
	mux.HandleFunc("POST /{database}/columns/delete/{table}/{column}", s.handleDropColumn)
	mux.HandleFunc("POST /{database}/columns/{table}/{column}", s.handleAlterColumn)
	mux.HandleFunc("POST /{database}/plan/columns/{table}/{column}", s.handlePreviewAlter)

	if s.journal != nil {
		mux.HandleFunc("GET /api/journal", s.handleJournal)
	}
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	if s.hub != nil {
		mux.HandleFunc("/api/ws", s.hub.HandleWebSocket)
	}
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
