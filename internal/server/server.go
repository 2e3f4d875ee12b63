// Package server implements C10, the thin chi-routed JSON HTTP surface
// (§4.10, §6). It owns no business logic beyond request validation, wiring
// parameters into C1-C9 calls, and status-code mapping per §7.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/knoguchi/ragdoc/internal/catalog"
	"github.com/knoguchi/ragdoc/internal/jobs"
	"github.com/knoguchi/ragdoc/internal/llm"
	"github.com/knoguchi/ragdoc/internal/retriever"
)

// Server wraps the HTTP surface over the system's ports.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	logger     *slog.Logger

	store      catalog.Store
	jobs       *jobs.Runner
	retriever  *retriever.Retriever
	llmClient  llm.LLM
	defaultLLM string

	defaultTopK         int
	defaultVectorWeight float32
}

// Config configures Server construction.
type Config struct {
	Port           int
	Logger         *slog.Logger
	AllowedOrigins []string

	Store      catalog.Store
	Jobs       *jobs.Runner
	Retriever  *retriever.Retriever
	LLM        llm.LLM
	DefaultLLM string

	// DefaultTopK and DefaultVectorWeight seed /api/ask's top_k and
	// vector_weight when the request omits them (§6); zero falls back to
	// the Retriever's own §4.7 defaults.
	DefaultTopK         int
	DefaultVectorWeight float32
}

// New builds a Server and registers every route in §6.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	defaultVectorWeight := cfg.DefaultVectorWeight
	if defaultVectorWeight == 0 {
		defaultVectorWeight = retriever.DefaultVectorWeight
	}

	s := &Server{
		logger:              logger,
		store:               cfg.Store,
		jobs:                cfg.Jobs,
		retriever:           cfg.Retriever,
		llmClient:           cfg.LLM,
		defaultLLM:          cfg.DefaultLLM,
		defaultTopK:         cfg.DefaultTopK,
		defaultVectorWeight: defaultVectorWeight,
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLoggingMiddleware(logger))
	router.Use(middleware.Recoverer)
	router.Use(corsMiddleware(cfg.AllowedOrigins))

	router.Get("/healthz", s.handleHealthz)
	router.Get("/readyz", s.handleReadyz)

	router.Route("/api", func(r chi.Router) {
		r.Post("/collections", s.handleCreateCollection)
		r.Get("/collections", s.handleListCollections)
		r.Get("/collections/{id}", s.handleGetCollection)

		r.Post("/ingest/upload", s.handleIngestUpload)
		r.Post("/ingest/url", s.handleIngestURL)
		r.Get("/ingest/status/{job_id}", s.handleIngestStatus)

		r.Post("/ask", s.handleAsk)
		r.Post("/feedback/{query_id}", s.handleFeedback)
	})

	s.router = router
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.logger.Info("starting http server", "address", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

func requestLoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote_addr", r.RemoteAddr,
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			allowed := len(allowedOrigins) == 0
			if !allowed {
				for _, o := range allowedOrigins {
					if o == "*" || o == origin {
						allowed = true
						break
					}
				}
			} else {
				origin = "*"
			}

			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
