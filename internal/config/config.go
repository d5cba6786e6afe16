// Copyright (c) 2025 TapLock Contributors
//
// This file is part of taplock.
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0).
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

// Package config loads the TapLock server configuration from a YAML file
// with TAPLOCK_* environment variable overrides.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/taplock/taplock/pkg/passkey"
)

// Config represents the complete server configuration.
type Config struct {
	Server       ServerConfig    `yaml:"server"`
	RelyingParty passkey.Config  `yaml:"relying_party"`
	Auth         AuthConfig      `yaml:"auth"`
	Storage      StorageConfig   `yaml:"storage"`
	Logging      LoggingConfig   `yaml:"logging"`
	Metrics      MetricsConfig   `yaml:"metrics"`
	RateLimit    RateLimitConfig `yaml:"ratelimit"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	TLS             TLSConfig     `yaml:"tls"`
}

// AuthConfig controls session token issuance.
type AuthConfig struct {
	// JWTSecret signs session tokens. Required; there is no default, a
	// generated fallback would silently invalidate sessions on restart.
	JWTSecret string `yaml:"jwt_secret"`

	// CookieSecure marks the session cookie Secure. Disable only for
	// plain-HTTP local development.
	CookieSecure bool `yaml:"cookie_secure"`
}

// StorageConfig selects the persistence backend. The choice is made once at
// startup; there is no runtime fallback between backends.
type StorageConfig struct {
	// Backend is "memory" or "sqlite".
	Backend string `yaml:"backend"`

	// Path is the SQLite database file. Required for the sqlite backend.
	Path string `yaml:"path"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// RateLimitConfig throttles the authentication endpoints per client IP.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	Burst             int  `yaml:"burst"`
}

// Default returns a configuration with defaults applied, suitable for
// overriding field by field.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8443,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Auth: AuthConfig{
			CookieSecure: true,
		},
		Storage: StorageConfig{
			Backend: "memory",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 60,
			Burst:             10,
		},
	}
}

// Load reads configuration from a YAML file and applies environment
// variable overrides.
func Load(path string) (*Config, error) {
	// #nosec G304 - Config file path is provided by admin/user
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if host := os.Getenv("TAPLOCK_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("TAPLOCK_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			log.Printf("Warning: invalid TAPLOCK_PORT value %q, using default %d: %v",
				portStr, cfg.Server.Port, err)
		} else if port < 1 || port > 65535 {
			log.Printf("Warning: invalid TAPLOCK_PORT value %q (out of range 1-65535), using default %d",
				portStr, cfg.Server.Port)
		} else {
			cfg.Server.Port = port
		}
	}

	if secret := os.Getenv("TAPLOCK_JWT_SECRET"); secret != "" {
		cfg.Auth.JWTSecret = secret
	}

	if rpID := os.Getenv("TAPLOCK_RP_ID"); rpID != "" {
		cfg.RelyingParty.RPID = rpID
	}
	if origins := os.Getenv("TAPLOCK_RP_ORIGINS"); origins != "" {
		cfg.RelyingParty.RPOrigins = splitAndTrim(origins)
	}

	if backend := os.Getenv("TAPLOCK_STORAGE_BACKEND"); backend != "" {
		cfg.Storage.Backend = backend
	}
	if path := os.Getenv("TAPLOCK_STORAGE_PATH"); path != "" {
		cfg.Storage.Path = path
	}

	if level := os.Getenv("TAPLOCK_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv("TAPLOCK_LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	if err := c.Server.TLS.Validate(); err != nil {
		return err
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth jwt_secret must be specified")
	}

	c.RelyingParty.SetDefaults()
	if err := c.RelyingParty.Validate(); err != nil {
		return fmt.Errorf("relying_party: %w", err)
	}

	switch c.Storage.Backend {
	case "memory":
		// No path needed.
	case "sqlite":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage path must be specified for the sqlite backend")
		}
	default:
		return fmt.Errorf("invalid storage backend: %s (must be memory or sqlite)", c.Storage.Backend)
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validFormats := map[string]bool{
		"json": true, "text": true,
	}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logging.Format)
	}

	if c.Metrics.Enabled && c.Metrics.Path == "" {
		return fmt.Errorf("metrics path must be specified when metrics are enabled")
	}

	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMinute < 1 {
		return fmt.Errorf("ratelimit requests_per_minute must be positive when rate limiting is enabled")
	}

	return nil
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
