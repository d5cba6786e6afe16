// Copyright (c) 2025 TapLock Contributors
//
// This file is part of taplock.
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0).
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package passkey

import (
	"testing"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{
			name:    "missing RPID",
			config:  Config{RPDisplayName: "Example", RPOrigins: []string{"https://example.com"}},
			wantErr: "RPID is required",
		},
		{
			name:    "missing display name",
			config:  Config{RPID: "example.com", RPOrigins: []string{"https://example.com"}},
			wantErr: "RPDisplayName is required",
		},
		{
			name:    "missing origins",
			config:  Config{RPID: "example.com", RPDisplayName: "Example"},
			wantErr: "at least one RPOrigin is required",
		},
		{
			name: "bad user verification",
			config: Config{
				RPID: "example.com", RPDisplayName: "Example",
				RPOrigins:        []string{"https://example.com"},
				UserVerification: "sometimes",
			},
			wantErr: "invalid user verification",
		},
		{
			name: "bad attachment",
			config: Config{
				RPID: "example.com", RPDisplayName: "Example",
				RPOrigins:               []string{"https://example.com"},
				AuthenticatorAttachment: "sideways",
			},
			wantErr: "invalid authenticator attachment",
		},
		{
			name: "valid",
			config: Config{
				RPID: "example.com", RPDisplayName: "Example",
				RPOrigins:        []string{"https://example.com"},
				UserVerification: "required",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigSetDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()

	assert.Equal(t, 60*time.Second, cfg.Timeout)
	assert.Equal(t, DefaultChallengeTTL, cfg.ChallengeTTL)
	assert.Equal(t, "preferred", cfg.UserVerification)

	// Explicit values survive.
	cfg = &Config{Timeout: 30 * time.Second, ChallengeTTL: 5 * time.Minute, UserVerification: "required"}
	cfg.SetDefaults()
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 5*time.Minute, cfg.ChallengeTTL)
	assert.Equal(t, "required", cfg.UserVerification)
}

func TestConfigToWebAuthnConfig(t *testing.T) {
	cfg := &Config{
		RPID:                    "example.com",
		RPDisplayName:           "Example",
		RPOrigins:               []string{"https://example.com"},
		Timeout:                 45 * time.Second,
		UserVerification:        "required",
		AuthenticatorAttachment: "platform",
	}

	wc := cfg.ToWebAuthnConfig()
	assert.Equal(t, "example.com", wc.RPID)
	assert.Equal(t, "Example", wc.RPDisplayName)
	assert.Equal(t, []string{"https://example.com"}, wc.RPOrigins)
	assert.Equal(t, protocol.PreferNoAttestation, wc.AttestationPreference)
	assert.Equal(t, protocol.VerificationRequired, wc.AuthenticatorSelection.UserVerification)
	assert.Equal(t, protocol.Platform, wc.AuthenticatorSelection.AuthenticatorAttachment)
	assert.True(t, wc.Timeouts.Login.Enforce)
	assert.Equal(t, 45*time.Second, wc.Timeouts.Registration.Timeout)
}
