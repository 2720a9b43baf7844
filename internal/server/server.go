// Package server provides the HTTP API for kinorec.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hyperjump/kinorec/internal/config"
	"github.com/hyperjump/kinorec/internal/recommend"
	"github.com/hyperjump/kinorec/internal/storage"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// BreakerStater reports the poster client's circuit breaker state.
type BreakerStater interface {
	State() string
}

// Server is the HTTP server for the kinorec API.
type Server struct {
	service   *recommend.Service
	storage   storage.Storage
	breaker   BreakerStater
	config    *config.Config
	logger    *zap.Logger
	server    *http.Server
	startedAt time.Time
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithStorage reports poster cache statistics from store in /api/v1/status.
func WithStorage(store storage.Storage) ServerOption {
	return func(s *Server) { s.storage = store }
}

// WithBreaker reports the poster circuit breaker state in /api/v1/status.
func WithBreaker(b BreakerStater) ServerOption {
	return func(s *Server) { s.breaker = b }
}

// NewServer creates a server with the given dependencies.
func NewServer(svc *recommend.Service, cfg *config.Config, logger *zap.Logger, opts ...ServerOption) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		service:   svc,
		config:    cfg,
		logger:    logger,
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/recommend", s.handleRecommendPost)
		r.Get("/recommend", s.handleRecommendGet)
		r.Get("/titles", s.handleTitles)
		r.Get("/items/{index}", s.handleGetItem)
		r.Get("/status", s.handleStatus)
	})
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// requestID propagates X-Request-ID, assigning a UUID when the client sent none.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(recommend.WithRequestID(r.Context(), id)))
	})
}
