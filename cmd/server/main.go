// Copyright (c) 2025 TapLock Contributors
//
// This file is part of taplock.
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0).
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

// Command server runs the TapLock passkey authentication server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/taplock/taplock/internal/config"
	"github.com/taplock/taplock/internal/rest"
	"github.com/taplock/taplock/internal/storage"
	"github.com/taplock/taplock/internal/storage/memory"
	"github.com/taplock/taplock/internal/storage/sqlite"
	"github.com/taplock/taplock/pkg/metrics"
	"github.com/taplock/taplock/pkg/passkey"
	"github.com/taplock/taplock/pkg/ratelimit"
	"github.com/taplock/taplock/pkg/sessiontoken"
)

var (
	// Version information (set during build)
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	configPath := flag.String("config", "/etc/taplock/config.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("taplock server\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Git Commit: %s\n", commit)
		fmt.Printf("  Built:      %s\n", date)
		os.Exit(0)
	}

	if envConfig := os.Getenv("TAPLOCK_CONFIG"); envConfig != "" {
		*configPath = envConfig
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	logger.Info("Starting taplock server",
		"config", *configPath,
		"version", version,
		"rp_id", cfg.RelyingParty.RPID,
		"storage", cfg.Storage.Backend)

	server, cleanup, err := buildServer(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize server", slog.Any("error", err))
		os.Exit(1)
	}
	defer cleanup()

	// Background resource metrics
	collectorCtx, collectorCancel := context.WithCancel(context.Background())
	defer collectorCancel()
	if cfg.Metrics.Enabled {
		collector := metrics.NewResourceCollector(collectorCtx, 30*time.Second)
		go collector.Start()
		defer collector.Stop()
	} else {
		metrics.Disable()
	}

	shutdownCtx := setupSignalHandler(logger)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-shutdownCtx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		logger.Error("Server error", slog.Any("error", err))
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Stop(stopCtx); err != nil {
		logger.Error("Error during server shutdown", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("Server stopped successfully")
}

// buildServer wires the storage backend, passkey service, and HTTP server
// from the loaded configuration. The returned cleanup closes the storage
// backend and must run after the server stops.
func buildServer(cfg *config.Config, logger *slog.Logger) (*rest.Server, func(), error) {
	var (
		users   passkey.UserStore
		creds   passkey.CredentialStore
		codes   passkey.RecoveryCodeStore
		secrets storage.SecretStore
		cleanup = func() {}
	)

	switch cfg.Storage.Backend {
	case "sqlite":
		store, err := sqlite.Open(cfg.Storage.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		users = store
		creds = store
		codes = store
		secrets = store.Secrets()
		cleanup = func() {
			if err := store.Close(); err != nil {
				logger.Error("Failed to close database", slog.Any("error", err))
			}
		}
	default:
		users = passkey.NewMemoryUserStore()
		creds = passkey.NewMemoryCredentialStore()
		codes = passkey.NewMemoryRecoveryCodeStore()
		secrets = memory.NewSecretStore()
		logger.Warn("Using in-memory storage; all data is lost on restart")
	}

	svc, err := passkey.NewService(passkey.ServiceParams{
		Config:            &cfg.RelyingParty,
		UserStore:         users,
		CredentialStore:   creds,
		RecoveryCodeStore: codes,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to create passkey service: %w", err)
	}

	tokens, err := sessiontoken.New([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to create token service: %w", err)
	}

	tlsConfig, err := cfg.Server.TLS.LoadTLSConfig()
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to load TLS configuration: %w", err)
	}

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.New(&ratelimit.Config{
			Enabled:           true,
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			Burst:             cfg.RateLimit.Burst,
		})
		storeCleanup := cleanup
		cleanup = func() {
			limiter.Stop()
			storeCleanup()
		}
	}

	server, err := rest.NewServer(&rest.Config{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		Passkeys:     svc,
		Secrets:      secrets,
		Tokens:       tokens,
		Logger:       logger,
		Version:      version,
		TLSConfig:    tlsConfig,
		CookieSecure: cfg.Auth.CookieSecure,
		MetricsPath:  metricsPath,
		RateLimiter:  limiter,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to create server: %w", err)
	}

	return server, cleanup, nil
}

// newLogger builds the process logger from the logging configuration.
func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

// setupSignalHandler sets up signal handling for graceful shutdown
func setupSignalHandler(logger *slog.Logger) context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-signalCh
		logger.Info("Received shutdown signal")
		cancel()
	}()

	return ctx
}
