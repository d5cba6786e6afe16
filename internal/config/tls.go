// Copyright (c) 2025 TapLock Contributors
//
// This file is part of taplock.
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0).
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package config

import (
	"crypto/tls"
	"fmt"
)

// TLSConfig contains TLS settings for the HTTP server. Browsers refuse
// WebAuthn ceremonies on insecure origins other than localhost, so
// production deployments terminate TLS either here or at a proxy.
type TLSConfig struct {
	Enabled    bool   `yaml:"enabled"`
	CertFile   string `yaml:"cert_file"`
	KeyFile    string `yaml:"key_file"`
	MinVersion string `yaml:"min_version"`
}

// LoadTLSConfig builds a tls.Config from the settings. Returns nil when
// TLS is disabled.
func (cfg *TLSConfig) LoadTLSConfig() (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load server certificate: %w", err)
	}

	minVersion := uint16(tls.VersionTLS12)
	if cfg.MinVersion != "" {
		v, err := parseTLSVersion(cfg.MinVersion)
		if err != nil {
			return nil, err
		}
		minVersion = v
	}

	// #nosec G402 - MinVersion is set via variable with TLS 1.2 default, gosec cannot detect this pattern
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   minVersion,
	}, nil
}

// Validate checks the TLS settings for consistency.
func (cfg *TLSConfig) Validate() error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.CertFile == "" || cfg.KeyFile == "" {
		return fmt.Errorf("tls cert_file and key_file must be specified when tls is enabled")
	}
	if cfg.MinVersion != "" {
		if _, err := parseTLSVersion(cfg.MinVersion); err != nil {
			return err
		}
	}
	return nil
}

// parseTLSVersion converts a string to a tls version constant
func parseTLSVersion(version string) (uint16, error) {
	switch version {
	case "TLS1.2":
		return tls.VersionTLS12, nil
	case "TLS1.3":
		return tls.VersionTLS13, nil
	default:
		return 0, fmt.Errorf("unknown TLS version: %s (must be TLS1.2 or TLS1.3)", version)
	}
}
