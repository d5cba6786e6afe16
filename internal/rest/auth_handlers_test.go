// Copyright (c) 2025 TapLock Contributors
//
// This file is part of taplock.
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0).
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package rest

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/descope/virtualwebauthn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterCeremony(t *testing.T) {
	server := newTestServer(t)
	client := newTestClient()

	resp := registerUser(t, server, client, "alice")

	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.CredentialID)
	assert.NotEmpty(t, resp.Token)
	assert.Len(t, resp.RecoveryCodes, 12)

	// The token is immediately usable.
	userID, err := server.tokens.Verify(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", userID)
}

func TestRegisterFinishSetsSessionCookie(t *testing.T) {
	server := newTestServer(t)
	client := newTestClient()

	startRec := doRequest(t, server, http.MethodPost, "/api/auth/register-start", RegisterStartRequest{UserID: "alice"})
	require.Equal(t, http.StatusOK, startRec.Code)

	credential := client.attest(t, startRec.Body.Bytes())
	finishRec := doRequest(t, server, http.MethodPost, "/api/auth/register-finish", RegisterFinishRequest{
		UserID:     "alice",
		Credential: credential,
	})
	require.Equal(t, http.StatusOK, finishRec.Code)

	cookies := finishRec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.NotEmpty(t, cookies[0].Value)
}

func TestRegisterStartValidation(t *testing.T) {
	server := newTestServer(t)

	tests := []struct {
		name string
		body any
	}{
		{"missing user id", RegisterStartRequest{}},
		{"empty body", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, server, http.MethodPost, "/api/auth/register-start", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestRegisterFinishMalformedCredential(t *testing.T) {
	server := newTestServer(t)

	startRec := doRequest(t, server, http.MethodPost, "/api/auth/register-start", RegisterStartRequest{UserID: "alice"})
	require.Equal(t, http.StatusOK, startRec.Code)

	rec := doRequest(t, server, http.MethodPost, "/api/auth/register-finish", RegisterFinishRequest{
		UserID:     "alice",
		Credential: json.RawMessage(`{"not":"a credential"}`),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginCeremony(t *testing.T) {
	server := newTestServer(t)
	client := newTestClient()

	reg := registerUser(t, server, client, "alice")
	login := loginUser(t, server, client, "alice")

	assert.True(t, login.Success)
	assert.Equal(t, "alice", login.UserID)
	assert.Equal(t, reg.CredentialID, login.CredentialID)
	assert.NotEmpty(t, login.Token)
}

func TestLoginStartUnknownUser(t *testing.T) {
	server := newTestServer(t)

	rec := doRequest(t, server, http.MethodPost, "/api/auth/login-start", LoginStartRequest{UserID: "nobody"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLoginFinishReplayedChallenge(t *testing.T) {
	server := newTestServer(t)
	client := newTestClient()
	registerUser(t, server, client, "alice")

	startRec := doRequest(t, server, http.MethodPost, "/api/auth/login-start", LoginStartRequest{UserID: "alice"})
	require.Equal(t, http.StatusOK, startRec.Code)

	credential := client.assert(t, startRec.Body.Bytes())
	first := doRequest(t, server, http.MethodPost, "/api/auth/login-finish", LoginFinishRequest{
		UserID:     "alice",
		Credential: credential,
	})
	require.Equal(t, http.StatusOK, first.Code)

	// The same assertion again must fail: the challenge is single-use.
	second := doRequest(t, server, http.MethodPost, "/api/auth/login-finish", LoginFinishRequest{
		UserID:     "alice",
		Credential: credential,
	})
	assert.Equal(t, http.StatusUnauthorized, second.Code)
}

func TestRecoverCeremony(t *testing.T) {
	server := newTestServer(t)
	client := newTestClient()

	reg := registerUser(t, server, client, "alice")

	// Redeem a recovery code with a brand-new authenticator, as a user
	// who lost their device would.
	replacement := newTestClient()

	startRec := doRequest(t, server, http.MethodPost, "/api/auth/recover-start", RecoverStartRequest{
		UserID: "alice",
		Code:   reg.RecoveryCodes[0],
	})
	require.Equal(t, http.StatusOK, startRec.Code, startRec.Body.String())

	var startResp struct {
		RecoveryCodeID int64 `json:"recoveryCodeId"`
	}
	decodeResponse(t, startRec, &startResp)
	require.NotZero(t, startResp.RecoveryCodeID)

	credential := replacement.attest(t, startRec.Body.Bytes())
	finishRec := doRequest(t, server, http.MethodPost, "/api/auth/recover-finish", RecoverFinishRequest{
		UserID:         "alice",
		RecoveryCodeID: startResp.RecoveryCodeID,
		Credential:     credential,
	})
	require.Equal(t, http.StatusOK, finishRec.Code, finishRec.Body.String())
	replacement.authenticator.AddCredential(replacement.credential)

	var finishResp RecoverFinishResponse
	decodeResponse(t, finishRec, &finishResp)
	assert.True(t, finishResp.Success)
	assert.NotEmpty(t, finishResp.Token)
	assert.NotEqual(t, reg.CredentialID, finishResp.CredentialID)
	assert.Len(t, finishResp.RecoveryCodes, 12)

	// The replacement credential can log in.
	login := loginUser(t, server, replacement, "alice")
	assert.Equal(t, finishResp.CredentialID, login.CredentialID)

	// Every code from the old set is dead, not just the consumed one.
	for _, code := range reg.RecoveryCodes[:3] {
		rec := doRequest(t, server, http.MethodPost, "/api/auth/recover-start", RecoverStartRequest{
			UserID: "alice",
			Code:   code,
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
}

func TestRecoverStartFailuresAreUniform(t *testing.T) {
	server := newTestServer(t)
	client := newTestClient()
	registerUser(t, server, client, "alice")

	tests := []struct {
		name string
		req  RecoverStartRequest
	}{
		{"wrong code", RecoverStartRequest{UserID: "alice", Code: "AAAA-BBBB-CCCC"}},
		{"unknown user", RecoverStartRequest{UserID: "nobody", Code: "AAAA-BBBB-CCCC"}},
		{"malformed code", RecoverStartRequest{UserID: "alice", Code: "not a code"}},
	}

	var bodies []string
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, server, http.MethodPost, "/api/auth/recover-start", tt.req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			bodies = append(bodies, rec.Body.String())
		})
	}

	// Same body for every failure mode; nothing to enumerate against.
	for _, body := range bodies[1:] {
		assert.Equal(t, bodies[0], body)
	}
}

func TestSecondCredentialRegistration(t *testing.T) {
	server := newTestServer(t)
	first := newTestClient()

	registerUser(t, server, first, "alice")

	// A second registration for the same user adds a credential and
	// rotates the recovery codes.
	second := newTestClient()
	resp := registerUser(t, server, second, "alice")
	assert.Len(t, resp.RecoveryCodes, 12)

	// Both credentials work.
	loginUser(t, server, first, "alice")
	loginUser(t, server, second, "alice")
}

func TestLoginWithImpostorAuthenticator(t *testing.T) {
	server := newTestServer(t)
	client := newTestClient()
	registerUser(t, server, client, "alice")

	// An attacker with a different key but knowledge of the credential ID.
	impostor := newTestClient()
	impostor.credential = virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	impostor.credential.ID = client.credential.ID
	impostor.authenticator.AddCredential(impostor.credential)

	startRec := doRequest(t, server, http.MethodPost, "/api/auth/login-start", LoginStartRequest{UserID: "alice"})
	require.Equal(t, http.StatusOK, startRec.Code)

	credential := impostor.assert(t, startRec.Body.Bytes())
	rec := doRequest(t, server, http.MethodPost, "/api/auth/login-finish", LoginFinishRequest{
		UserID:     "alice",
		Credential: credential,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
