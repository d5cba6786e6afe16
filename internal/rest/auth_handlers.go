// Copyright (c) 2025 TapLock Contributors
//
// This file is part of taplock.
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0).
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package rest

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-webauthn/webauthn/protocol"

	"github.com/taplock/taplock/pkg/metrics"
	"github.com/taplock/taplock/pkg/passkey"
	"github.com/taplock/taplock/pkg/sessiontoken"
)

// RegisterStartHandler handles POST /api/auth/register-start requests.
// It creates the user on first contact and returns WebAuthn creation
// options for the client to pass to navigator.credentials.create.
func (s *Server) RegisterStartHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req RegisterStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, ErrInvalidRequest, http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		writeErrorWithMessage(w, ErrInvalidRequest, "userId is required", http.StatusBadRequest)
		return
	}

	options, err := s.passkeys.BeginRegistration(r.Context(), req.UserID)
	if err != nil {
		metrics.RecordOperation(metrics.OpRegisterBegin, metrics.StatusError, time.Since(start).Seconds())
		handleError(w, err)
		return
	}

	metrics.RecordOperation(metrics.OpRegisterBegin, metrics.StatusSuccess, time.Since(start).Seconds())
	writeJSON(w, options, http.StatusOK)
}

// RegisterFinishHandler handles POST /api/auth/register-finish requests.
// On success it returns the recovery code set; this is the only time the
// plaintext codes are visible.
func (s *Server) RegisterFinishHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req RegisterFinishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, ErrInvalidRequest, http.StatusBadRequest)
		return
	}
	if req.UserID == "" || len(req.Credential) == 0 {
		writeErrorWithMessage(w, ErrInvalidRequest, "userId and credential are required", http.StatusBadRequest)
		return
	}

	parsed, err := protocol.ParseCredentialCreationResponseBody(bytes.NewReader(req.Credential))
	if err != nil {
		writeErrorWithMessage(w, ErrInvalidRequest, "malformed credential", http.StatusBadRequest)
		return
	}

	result, err := s.passkeys.FinishRegistration(r.Context(), req.UserID, parsed)
	if err != nil {
		metrics.RecordOperation(metrics.OpRegisterFinish, metrics.StatusError, time.Since(start).Seconds())
		handleError(w, err)
		return
	}

	token, err := s.tokens.Mint(req.UserID)
	if err != nil {
		metrics.RecordOperation(metrics.OpRegisterFinish, metrics.StatusError, time.Since(start).Seconds())
		handleError(w, err)
		return
	}

	s.setSessionCookie(w, token)
	metrics.RecordOperation(metrics.OpRegisterFinish, metrics.StatusSuccess, time.Since(start).Seconds())

	writeJSON(w, RegisterFinishResponse{
		Success:       true,
		CredentialID:  encodeCredentialID(result.Credential.ID),
		RecoveryCodes: result.RecoveryCodes,
		Token:         token,
	}, http.StatusOK)
}

// LoginStartHandler handles POST /api/auth/login-start requests.
func (s *Server) LoginStartHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req LoginStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, ErrInvalidRequest, http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		writeErrorWithMessage(w, ErrInvalidRequest, "userId is required", http.StatusBadRequest)
		return
	}

	options, err := s.passkeys.BeginLogin(r.Context(), req.UserID)
	if err != nil {
		metrics.RecordOperation(metrics.OpLoginBegin, metrics.StatusError, time.Since(start).Seconds())
		handleError(w, err)
		return
	}

	metrics.RecordOperation(metrics.OpLoginBegin, metrics.StatusSuccess, time.Since(start).Seconds())
	writeJSON(w, options, http.StatusOK)
}

// LoginFinishHandler handles POST /api/auth/login-finish requests.
func (s *Server) LoginFinishHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req LoginFinishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, ErrInvalidRequest, http.StatusBadRequest)
		return
	}
	if req.UserID == "" || len(req.Credential) == 0 {
		writeErrorWithMessage(w, ErrInvalidRequest, "userId and credential are required", http.StatusBadRequest)
		return
	}

	parsed, err := protocol.ParseCredentialRequestResponseBody(bytes.NewReader(req.Credential))
	if err != nil {
		writeErrorWithMessage(w, ErrInvalidRequest, "malformed credential", http.StatusBadRequest)
		return
	}

	result, err := s.passkeys.FinishLogin(r.Context(), req.UserID, parsed)
	if err != nil {
		if passkey.IsClonedAuthenticator(err) {
			metrics.RecordClonedAuthenticator()
		}
		metrics.RecordOperation(metrics.OpLoginFinish, metrics.StatusError, time.Since(start).Seconds())
		handleError(w, err)
		return
	}

	token, err := s.tokens.Mint(req.UserID)
	if err != nil {
		metrics.RecordOperation(metrics.OpLoginFinish, metrics.StatusError, time.Since(start).Seconds())
		handleError(w, err)
		return
	}

	s.setSessionCookie(w, token)
	metrics.RecordOperation(metrics.OpLoginFinish, metrics.StatusSuccess, time.Since(start).Seconds())

	writeJSON(w, LoginFinishResponse{
		Success:      true,
		Token:        token,
		UserID:       req.UserID,
		CredentialID: encodeCredentialID(result.Credential.ID),
	}, http.StatusOK)
}

// RecoverStartHandler handles POST /api/auth/recover-start requests. A
// valid unused recovery code admits the caller to a registration ceremony
// for a replacement credential.
func (s *Server) RecoverStartHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req RecoverStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, ErrInvalidRequest, http.StatusBadRequest)
		return
	}
	if req.UserID == "" || req.Code == "" {
		writeErrorWithMessage(w, ErrInvalidRequest, "userId and code are required", http.StatusBadRequest)
		return
	}

	options, codeID, err := s.passkeys.BeginRecovery(r.Context(), req.UserID, req.Code)
	if err != nil {
		metrics.RecordOperation(metrics.OpRecoverBegin, metrics.StatusError, time.Since(start).Seconds())
		handleError(w, err)
		return
	}

	metrics.RecordOperation(metrics.OpRecoverBegin, metrics.StatusSuccess, time.Since(start).Seconds())
	writeJSON(w, struct {
		*protocol.CredentialCreation
		RecoveryCodeID int64 `json:"recoveryCodeId"`
	}{options, codeID}, http.StatusOK)
}

// RecoverFinishHandler handles POST /api/auth/recover-finish requests.
func (s *Server) RecoverFinishHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req RecoverFinishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, ErrInvalidRequest, http.StatusBadRequest)
		return
	}
	if req.UserID == "" || len(req.Credential) == 0 {
		writeErrorWithMessage(w, ErrInvalidRequest, "userId and credential are required", http.StatusBadRequest)
		return
	}

	parsed, err := protocol.ParseCredentialCreationResponseBody(bytes.NewReader(req.Credential))
	if err != nil {
		writeErrorWithMessage(w, ErrInvalidRequest, "malformed credential", http.StatusBadRequest)
		return
	}

	result, err := s.passkeys.FinishRecovery(r.Context(), req.UserID, req.RecoveryCodeID, parsed)
	if err != nil {
		metrics.RecordOperation(metrics.OpRecoverFinish, metrics.StatusError, time.Since(start).Seconds())
		handleError(w, err)
		return
	}

	token, err := s.tokens.Mint(req.UserID)
	if err != nil {
		metrics.RecordOperation(metrics.OpRecoverFinish, metrics.StatusError, time.Since(start).Seconds())
		handleError(w, err)
		return
	}

	s.setSessionCookie(w, token)
	metrics.RecordRecoveryConsumed()
	metrics.RecordOperation(metrics.OpRecoverFinish, metrics.StatusSuccess, time.Since(start).Seconds())

	writeJSON(w, RecoverFinishResponse{
		Success:       true,
		Token:         token,
		CredentialID:  encodeCredentialID(result.Credential.ID),
		RecoveryCodes: result.RecoveryCodes,
	}, http.StatusOK)
}

// setSessionCookie attaches the session token as an HTTP-only cookie.
func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(sessiontoken.TokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

// encodeCredentialID renders a raw credential ID the way browsers do, as
// unpadded base64url.
func encodeCredentialID(id []byte) string {
	return base64.RawURLEncoding.EncodeToString(id)
}
