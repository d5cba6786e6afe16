// Copyright (c) 2025 TapLock Contributors
//
// This file is part of taplock.
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0).
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package rest

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/taplock/taplock/internal/storage"
	"github.com/taplock/taplock/pkg/metrics"
	"github.com/taplock/taplock/pkg/passkey"
	"github.com/taplock/taplock/pkg/ratelimit"
	"github.com/taplock/taplock/pkg/sessiontoken"
)

// Server is the TapLock HTTP API server.
type Server struct {
	server       *http.Server
	passkeys     *passkey.Service
	secrets      storage.SecretStore
	tokens       *sessiontoken.Service
	logger       *slog.Logger
	port         int
	tlsConfig    *tls.Config
	cookieSecure bool
	version      string
	metricsPath  string
	limiter      *ratelimit.Limiter
}

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: all interfaces)
	Host string

	// Port is the port to listen on (default: 8443)
	Port int

	// Passkeys orchestrates WebAuthn ceremonies and recovery. Required.
	Passkeys *passkey.Service

	// Secrets is the encrypted secret store. Required.
	Secrets storage.SecretStore

	// Tokens mints and verifies session tokens. Required.
	Tokens *sessiontoken.Service

	// Logger is the structured logger (optional, defaults to slog.Default)
	Logger *slog.Logger

	// Version is the API version string
	Version string

	// TLSConfig is the TLS configuration for HTTPS (optional)
	TLSConfig *tls.Config

	// CookieSecure marks session cookies Secure (default true via config)
	CookieSecure bool

	// MetricsPath exposes the Prometheus endpoint when non-empty
	MetricsPath string

	// RateLimiter throttles the authentication endpoints (optional)
	RateLimiter *ratelimit.Limiter

	// ReadTimeout is the maximum duration for reading the entire request
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes
	WriteTimeout time.Duration

	// IdleTimeout is the maximum amount of time to wait for the next request
	IdleTimeout time.Duration
}

// NewServer creates a new HTTP API server.
func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Passkeys == nil {
		return nil, fmt.Errorf("passkey service is required")
	}
	if cfg.Secrets == nil {
		return nil, fmt.Errorf("secret store is required")
	}
	if cfg.Tokens == nil {
		return nil, fmt.Errorf("token service is required")
	}

	// Set defaults
	if cfg.Port == 0 {
		cfg.Port = 8443
	}
	if cfg.Version == "" {
		cfg.Version = "1.0.0"
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	server := &Server{
		passkeys:     cfg.Passkeys,
		secrets:      cfg.Secrets,
		tokens:       cfg.Tokens,
		logger:       logger,
		port:         cfg.Port,
		tlsConfig:    cfg.TLSConfig,
		cookieSecure: cfg.CookieSecure,
		version:      cfg.Version,
		metricsPath:  cfg.MetricsPath,
		limiter:      cfg.RateLimiter,
	}

	router := server.setupRouter()

	server.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		TLSConfig:    cfg.TLSConfig,
	}

	return server, nil
}

// setupRouter configures the chi router with all routes and middleware.
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(s.RecoveryMiddleware())
	r.Use(s.LoggingMiddleware())
	r.Use(metrics.HTTPMiddleware)
	r.Use(SecurityHeadersMiddleware)

	r.Get("/api/health", s.HealthHandler)
	r.Head("/api/health", s.HealthHandler)

	if s.metricsPath != "" {
		r.Handle(s.metricsPath, promhttp.Handler())
	}

	// Ceremony endpoints carry their own proof of identity; no session
	// token is required to reach them.
	r.Route("/api/auth", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(ratelimit.Middleware(s.limiter))
		}

		r.Post("/register-start", s.RegisterStartHandler)
		r.Post("/register-finish", s.RegisterFinishHandler)
		r.Post("/login-start", s.LoginStartHandler)
		r.Post("/login-finish", s.LoginFinishHandler)
		r.Post("/recover-start", s.RecoverStartHandler)
		r.Post("/recover-finish", s.RecoverFinishHandler)
	})

	r.Route("/api/secrets", func(r chi.Router) {
		r.Use(s.SessionMiddleware())

		r.Get("/", s.ListSecretsHandler)
		r.Post("/", s.CreateSecretHandler)
		r.Get("/{id}", s.GetSecretHandler)
		r.Put("/{id}", s.UpdateSecretHandler)
		r.Delete("/{id}", s.DeleteSecretHandler)
	})

	return r
}

// Start starts the HTTP API server.
func (s *Server) Start() error {
	if s.tlsConfig != nil {
		s.logger.Info("Starting HTTPS server", "addr", s.server.Addr)

		if err := s.server.ListenAndServeTLS("", ""); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start HTTPS server: %w", err)
		}
	} else {
		s.logger.Info("Starting HTTP server", "addr", s.server.Addr)

		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
	}

	return nil
}

// Stop gracefully stops the HTTP API server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server")

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("Failed to shutdown server", "error", err)
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info("Server stopped")
	return nil
}

// Port returns the port the server is listening on.
func (s *Server) Port() int {
	return s.port
}

// Handler returns the configured router, primarily for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// HealthHandler handles GET /api/health requests.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "healthy",
		Version: s.version,
	}
	writeJSON(w, resp, http.StatusOK)
}
