// Copyright (c) 2025 TapLock Contributors
//
// This file is part of taplock.
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0).
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package config

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeTestCert generates a self-signed certificate and writes the PEM
// cert and key files into dir, returning their paths.
func writeTestCert(t *testing.T, dir string) (certFile, keyFile string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		DNSNames:     []string{"localhost"},
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("Failed to create certificate: %v", err)
	}

	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("Failed to marshal key: %v", err)
	}

	certFile = filepath.Join(dir, "cert.pem")
	keyFile = filepath.Join(dir, "key.pem")

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})

	if err := os.WriteFile(certFile, certPEM, 0644); err != nil {
		t.Fatalf("Failed to write cert file: %v", err)
	}
	if err := os.WriteFile(keyFile, keyPEM, 0600); err != nil {
		t.Fatalf("Failed to write key file: %v", err)
	}

	return certFile, keyFile
}

func TestLoadTLSConfig_Disabled(t *testing.T) {
	cfg := &TLSConfig{Enabled: false}

	tlsConfig, err := cfg.LoadTLSConfig()
	if err != nil {
		t.Fatalf("LoadTLSConfig() error = %v, want nil", err)
	}
	if tlsConfig != nil {
		t.Error("LoadTLSConfig() returned non-nil config for disabled TLS")
	}
}

func TestLoadTLSConfig_ValidConfig(t *testing.T) {
	certFile, keyFile := writeTestCert(t, t.TempDir())

	cfg := &TLSConfig{
		Enabled:  true,
		CertFile: certFile,
		KeyFile:  keyFile,
	}

	tlsConfig, err := cfg.LoadTLSConfig()
	if err != nil {
		t.Fatalf("LoadTLSConfig() error = %v, want nil", err)
	}
	if tlsConfig == nil {
		t.Fatal("LoadTLSConfig() returned nil config")
	}
	if len(tlsConfig.Certificates) != 1 {
		t.Errorf("len(Certificates) = %v, want 1", len(tlsConfig.Certificates))
	}
	if tlsConfig.MinVersion != tls.VersionTLS12 {
		t.Errorf("MinVersion = %v, want TLS 1.2", tlsConfig.MinVersion)
	}
}

func TestLoadTLSConfig_MinVersion13(t *testing.T) {
	certFile, keyFile := writeTestCert(t, t.TempDir())

	cfg := &TLSConfig{
		Enabled:    true,
		CertFile:   certFile,
		KeyFile:    keyFile,
		MinVersion: "TLS1.3",
	}

	tlsConfig, err := cfg.LoadTLSConfig()
	if err != nil {
		t.Fatalf("LoadTLSConfig() error = %v, want nil", err)
	}
	if tlsConfig.MinVersion != tls.VersionTLS13 {
		t.Errorf("MinVersion = %v, want TLS 1.3", tlsConfig.MinVersion)
	}
}

func TestLoadTLSConfig_MissingCertFile(t *testing.T) {
	cfg := &TLSConfig{
		Enabled:  true,
		CertFile: "/nonexistent/cert.pem",
		KeyFile:  "/nonexistent/key.pem",
	}

	if _, err := cfg.LoadTLSConfig(); err == nil {
		t.Error("LoadTLSConfig() error = nil, want error for missing cert file")
	}
}

func TestLoadTLSConfig_UnknownMinVersion(t *testing.T) {
	certFile, keyFile := writeTestCert(t, t.TempDir())

	cfg := &TLSConfig{
		Enabled:    true,
		CertFile:   certFile,
		KeyFile:    keyFile,
		MinVersion: "TLS1.0",
	}

	if _, err := cfg.LoadTLSConfig(); err == nil {
		t.Error("LoadTLSConfig() error = nil, want error for unknown TLS version")
	}
}

func TestTLSConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     TLSConfig
		wantErr bool
	}{
		{
			name:    "disabled",
			cfg:     TLSConfig{Enabled: false},
			wantErr: false,
		},
		{
			name:    "enabled with files",
			cfg:     TLSConfig{Enabled: true, CertFile: "cert.pem", KeyFile: "key.pem"},
			wantErr: false,
		},
		{
			name:    "enabled without cert",
			cfg:     TLSConfig{Enabled: true, KeyFile: "key.pem"},
			wantErr: true,
		},
		{
			name:    "enabled without key",
			cfg:     TLSConfig{Enabled: true, CertFile: "cert.pem"},
			wantErr: true,
		},
		{
			name:    "bad min version",
			cfg:     TLSConfig{Enabled: true, CertFile: "cert.pem", KeyFile: "key.pem", MinVersion: "SSL3"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
