// Package web serves the import API: schema discovery, template downloads
// and the per-operator import sessions.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/acadimport/internal/backend"
	"github.com/JonMunkholm/acadimport/internal/config"
	"github.com/JonMunkholm/acadimport/internal/core"
	mw "github.com/JonMunkholm/acadimport/internal/web/middleware"
)

// DepartmentLister supplies the department reference list.
type DepartmentLister interface {
	ListDepartments(ctx context.Context) ([]backend.Department, error)
}

// Server is the HTTP server for the import API.
type Server struct {
	cfg         *config.Config
	service     *core.Service
	departments DepartmentLister
	limiter     *core.UploadLimiter

	router *chi.Mux
	server *http.Server

	stopLimiters context.CancelFunc
}

// NewServer wires routes and middleware. departments may be nil, in which
// case /api/departments answers with SUB005.
func NewServer(cfg *config.Config, service *core.Service, departments DepartmentLister, limiter *core.UploadLimiter) *Server {
	if limiter == nil {
		limiter = core.NewUploadLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:          cfg,
		service:      service,
		departments:  departments,
		limiter:      limiter,
		router:       chi.NewRouter(),
		stopLimiters: cancel,
	}
	s.setupMiddleware(ctx)
	s.setupRoutes(ctx)
	return s
}

func (s *Server) setupMiddleware(ctx context.Context) {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	}
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if s.cfg.Rate.Enabled {
		limiter := mw.NewRateLimiter(s.cfg.Rate.RequestsPerMinute)
		go limiter.Run(ctx)
		s.router.Use(limiter.Handler)
	}
}

func (s *Server) setupRoutes(ctx context.Context) {
	s.router.Get("/healthz", s.handleHealth)

	uploads := func(next http.Handler) http.Handler { return next }
	if s.cfg.Rate.Enabled {
		limiter := mw.NewRateLimiter(s.cfg.Rate.UploadLimit)
		go limiter.Run(ctx)
		uploads = limiter.Handler
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(&s.cfg.Security))
		r.Use(requestMetadata)

		r.Get("/kinds", s.handleListKinds)
		r.Get("/kinds/{kind}/template", s.handleDownloadTemplate)
		r.Post("/kinds/{kind}/sessions", s.handleStartSession)
		r.Get("/departments", s.handleListDepartments)
		r.Get("/uploads/status", s.handleUploadStatus)

		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleCloseSession)
			r.With(uploads).Post("/file", s.handleUploadFile)
			r.Delete("/file", s.handleResetFile)
			r.Put("/context", s.handleSetContext)
			r.Put("/selection", s.handleSetSelection)
			r.Post("/submit", s.handleSubmit)
			r.Get("/rejected.csv", s.handleExportRejected)
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests and waits for in-flight ones, then
// stops the rate limiter sweepers.
func (s *Server) Shutdown(ctx context.Context) error {
	defer s.stopLimiters()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// UploadLimiter returns the limiter gating file parsing.
func (s *Server) UploadLimiter() *core.UploadLimiter {
	return s.limiter
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.service.SessionCount(),
		"time":     time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleUploadStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.limiter.Status())
}

// securityHeaders adds security headers to all responses.
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if enableCSP {
				// JSON and file downloads only
				h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			}
			next.ServeHTTP(w, r)
		})
	}
}
