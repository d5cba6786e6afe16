// Copyright (c) 2025 TapLock Contributors
//
// This file is part of taplock.
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0).
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package passkey

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/descope/virtualwebauthn"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestIntegration_VirtualAuthenticatorLifecycle runs registration, login,
// and recovery against a virtual authenticator that emulates the browser
// credential API, independent of the in-package mock.
func TestIntegration_VirtualAuthenticatorLifecycle(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	rp := virtualwebauthn.RelyingParty{
		Name:   "Example",
		ID:     "example.com",
		Origin: testOrigin,
	}
	authenticator := virtualwebauthn.NewAuthenticator()
	credential := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)

	// Registration
	regOptions, err := env.svc.BeginRegistration(ctx, "carol")
	require.NoError(t, err)

	regOptionsJSON, err := json.Marshal(regOptions.Response)
	require.NoError(t, err)
	parsedRegOptions, err := virtualwebauthn.ParseAttestationOptions(string(regOptionsJSON))
	require.NoError(t, err)

	attestation := virtualwebauthn.CreateAttestationResponse(rp, authenticator, credential, *parsedRegOptions)
	parsedAttestation, err := parseAttestationResponse(attestation)
	require.NoError(t, err)

	regResult, err := env.svc.FinishRegistration(ctx, "carol", parsedAttestation)
	require.NoError(t, err)
	require.NotNil(t, regResult.Credential)
	require.Len(t, regResult.RecoveryCodes, 12)

	authenticator.AddCredential(credential)

	// Login
	loginOptions, err := env.svc.BeginLogin(ctx, "carol")
	require.NoError(t, err)

	loginOptionsJSON, err := json.Marshal(loginOptions.Response)
	require.NoError(t, err)
	parsedLoginOptions, err := virtualwebauthn.ParseAssertionOptions(string(loginOptionsJSON))
	require.NoError(t, err)

	assertion := virtualwebauthn.CreateAssertionResponse(rp, authenticator, credential, *parsedLoginOptions)
	parsedAssertion, err := parseAssertionResponse(assertion)
	require.NoError(t, err)

	loginResult, err := env.svc.FinishLogin(ctx, "carol", parsedAssertion)
	require.NoError(t, err)
	assert.Equal(t, regResult.Credential.ID, loginResult.Credential.ID)

	// Recovery with a fresh authenticator
	replacementAuth := virtualwebauthn.NewAuthenticator()
	replacementCred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)

	recOptions, codeID, err := env.svc.BeginRecovery(ctx, "carol", regResult.RecoveryCodes[0])
	require.NoError(t, err)

	recOptionsJSON, err := json.Marshal(recOptions.Response)
	require.NoError(t, err)
	parsedRecOptions, err := virtualwebauthn.ParseAttestationOptions(string(recOptionsJSON))
	require.NoError(t, err)

	recAttestation := virtualwebauthn.CreateAttestationResponse(rp, replacementAuth, replacementCred, *parsedRecOptions)
	parsedRecAttestation, err := parseAttestationResponse(recAttestation)
	require.NoError(t, err)

	recResult, err := env.svc.FinishRecovery(ctx, "carol", codeID, parsedRecAttestation)
	require.NoError(t, err)
	require.NotNil(t, recResult.Credential)
	assert.Len(t, recResult.RecoveryCodes, 12)
	assert.NotEqual(t, regResult.Credential.ID, recResult.Credential.ID)

	// The used set is dead.
	_, _, err = env.svc.BeginRecovery(ctx, "carol", regResult.RecoveryCodes[0])
	assert.ErrorIs(t, err, ErrInvalidRecoveryCode)

	creds, err := env.svc.GetCredentials(ctx, "carol")
	require.NoError(t, err)
	assert.Len(t, creds, 2)
}

// parseAttestationResponse parses a virtual authenticator attestation
// response into the format expected by go-webauthn.
func parseAttestationResponse(attestation string) (*protocol.ParsedCredentialCreationData, error) {
	var ccr protocol.CredentialCreationResponse
	if err := json.Unmarshal([]byte(attestation), &ccr); err != nil {
		return nil, err
	}
	return ccr.Parse()
}

// parseAssertionResponse parses a virtual authenticator assertion response
// into the format expected by go-webauthn.
func parseAssertionResponse(assertion string) (*protocol.ParsedCredentialAssertionData, error) {
	var car protocol.CredentialAssertionResponse
	if err := json.Unmarshal([]byte(assertion), &car); err != nil {
		return nil, err
	}
	return car.Parse()
}
