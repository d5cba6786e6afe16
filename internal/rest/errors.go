// Copyright (c) 2025 TapLock Contributors
//
// This file is part of taplock.
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0).
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package rest

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/taplock/taplock/internal/storage"
	"github.com/taplock/taplock/pkg/passkey"
	"github.com/taplock/taplock/pkg/sessiontoken"
)

// Common errors
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrInternalError  = errors.New("internal server error")
	ErrUnauthorized   = errors.New("unauthorized")
)

// writeError writes an error response to the client.
func writeError(w http.ResponseWriter, err error, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := ErrorResponse{
		Error: err.Error(),
		Code:  statusCode,
	}

	if encErr := json.NewEncoder(w).Encode(resp); encErr != nil {
		log.Printf("Failed to encode error response: %v", encErr)
	}
}

// writeErrorWithMessage writes an error response with a custom message.
func writeErrorWithMessage(w http.ResponseWriter, err error, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := ErrorResponse{
		Error:   err.Error(),
		Message: message,
		Code:    statusCode,
	}

	if encErr := json.NewEncoder(w).Encode(resp); encErr != nil {
		log.Printf("Failed to encode error response: %v", encErr)
	}
}

// mapErrorToStatusCode maps errors to HTTP status codes. Verification
// failures of every flavor map to 401 so callers cannot distinguish a
// wrong challenge from a cloned counter or a bad recovery code.
func mapErrorToStatusCode(err error) int {
	switch {
	case passkey.IsUserNotFound(err),
		errors.Is(err, passkey.ErrNoCredentials),
		errors.Is(err, passkey.ErrCredentialNotFound),
		errors.Is(err, storage.ErrSecretNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, passkey.ErrInvalidRequest):
		return http.StatusBadRequest
	case passkey.IsChallengeFailure(err),
		passkey.IsVerificationFailed(err),
		passkey.IsClonedAuthenticator(err),
		passkey.IsInvalidRecoveryCode(err),
		errors.Is(err, sessiontoken.ErrInvalidToken),
		errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, passkey.ErrUserAlreadyExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// handleError maps the error to a status code and writes the response.
func handleError(w http.ResponseWriter, err error) {
	statusCode := mapErrorToStatusCode(err)
	if statusCode == http.StatusInternalServerError {
		// Internal details stay in the logs, not the response.
		log.Printf("Internal error: %v", err)
		writeError(w, ErrInternalError, statusCode)
		return
	}
	writeError(w, err, statusCode)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Failed to encode JSON response: %v", err)
	}
}
