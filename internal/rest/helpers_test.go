// Copyright (c) 2025 TapLock Contributors
//
// This file is part of taplock.
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0).
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package rest

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/descope/virtualwebauthn"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/stretchr/testify/require"

	"github.com/taplock/taplock/internal/storage/memory"
	"github.com/taplock/taplock/pkg/passkey"
	"github.com/taplock/taplock/pkg/sessiontoken"
)

const (
	testRPID   = "example.com"
	testOrigin = "https://example.com"
)

var testTokenSecret = []byte("rest-test-secret-0123456789abcdef")

// newTestServer builds a server on in-memory stores.
func newTestServer(t *testing.T) *Server {
	t.Helper()

	svc, err := passkey.NewService(passkey.ServiceParams{
		Config: &passkey.Config{
			RPID:          testRPID,
			RPDisplayName: "Example",
			RPOrigins:     []string{testOrigin},
		},
		UserStore:         passkey.NewMemoryUserStore(),
		CredentialStore:   passkey.NewMemoryCredentialStore(),
		RecoveryCodeStore: passkey.NewMemoryRecoveryCodeStore(),
	})
	require.NoError(t, err)

	tokens, err := sessiontoken.New(testTokenSecret)
	require.NoError(t, err)

	server, err := NewServer(&Config{
		Passkeys: svc,
		Secrets:  memory.NewSecretStore(),
		Tokens:   tokens,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)

	return server
}

// doRequest executes a request against the server's router and returns the
// recorded response.
func doRequest(t *testing.T, server *Server, method, path string, body any, configure ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, fn := range configure {
		fn(req)
	}

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}

// decodeResponse unmarshals a recorded JSON response body.
func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func withBearer(token string) func(*http.Request) {
	return func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	}
}

// testClient bundles a virtual authenticator with its credential so tests
// can run multiple ceremonies for the same user.
type testClient struct {
	rp            virtualwebauthn.RelyingParty
	authenticator virtualwebauthn.Authenticator
	credential    virtualwebauthn.Credential
}

func newTestClient() *testClient {
	return &testClient{
		rp: virtualwebauthn.RelyingParty{
			Name:   "Example",
			ID:     testRPID,
			Origin: testOrigin,
		},
		authenticator: virtualwebauthn.NewAuthenticator(),
		credential:    virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2),
	}
}

// attest answers the creation options from a register or recover start
// response with a signed attestation.
func (c *testClient) attest(t *testing.T, optionsBody []byte) json.RawMessage {
	t.Helper()

	var creation protocol.CredentialCreation
	require.NoError(t, json.Unmarshal(optionsBody, &creation))

	optionsJSON, err := json.Marshal(creation.Response)
	require.NoError(t, err)

	parsed, err := virtualwebauthn.ParseAttestationOptions(string(optionsJSON))
	require.NoError(t, err)

	attestation := virtualwebauthn.CreateAttestationResponse(c.rp, c.authenticator, c.credential, *parsed)
	return json.RawMessage(attestation)
}

// assert answers the request options from a login start response with a
// signed assertion.
func (c *testClient) assert(t *testing.T, optionsBody []byte) json.RawMessage {
	t.Helper()

	var assertion protocol.CredentialAssertion
	require.NoError(t, json.Unmarshal(optionsBody, &assertion))

	optionsJSON, err := json.Marshal(assertion.Response)
	require.NoError(t, err)

	parsed, err := virtualwebauthn.ParseAssertionOptions(string(optionsJSON))
	require.NoError(t, err)

	response := virtualwebauthn.CreateAssertionResponse(c.rp, c.authenticator, c.credential, *parsed)
	return json.RawMessage(response)
}

// registerUser runs the full registration ceremony over HTTP and returns
// the finish response.
func registerUser(t *testing.T, server *Server, client *testClient, userID string) RegisterFinishResponse {
	t.Helper()

	startRec := doRequest(t, server, http.MethodPost, "/api/auth/register-start", RegisterStartRequest{UserID: userID})
	require.Equal(t, http.StatusOK, startRec.Code, startRec.Body.String())

	credential := client.attest(t, startRec.Body.Bytes())
	finishRec := doRequest(t, server, http.MethodPost, "/api/auth/register-finish", RegisterFinishRequest{
		UserID:     userID,
		Credential: credential,
	})
	require.Equal(t, http.StatusOK, finishRec.Code, finishRec.Body.String())

	client.authenticator.AddCredential(client.credential)

	var resp RegisterFinishResponse
	decodeResponse(t, finishRec, &resp)
	return resp
}

// loginUser runs the full login ceremony over HTTP and returns the finish
// response.
func loginUser(t *testing.T, server *Server, client *testClient, userID string) LoginFinishResponse {
	t.Helper()

	startRec := doRequest(t, server, http.MethodPost, "/api/auth/login-start", LoginStartRequest{UserID: userID})
	require.Equal(t, http.StatusOK, startRec.Code, startRec.Body.String())

	credential := client.assert(t, startRec.Body.Bytes())
	finishRec := doRequest(t, server, http.MethodPost, "/api/auth/login-finish", LoginFinishRequest{
		UserID:     userID,
		Credential: credential,
	})
	require.Equal(t, http.StatusOK, finishRec.Code, finishRec.Body.String())

	var resp LoginFinishResponse
	decodeResponse(t, finishRec, &resp)
	return resp
}
