// Copyright (c) 2025 TapLock Contributors
//
// This file is part of taplock.
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0).
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package rest

import "encoding/json"

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

// HealthResponse is the response for the health endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// RegisterStartRequest begins a registration ceremony.
type RegisterStartRequest struct {
	UserID string `json:"userId"`
}

// RegisterFinishRequest completes a registration ceremony. Credential is
// the serialized PublicKeyCredential produced by navigator.credentials.create.
type RegisterFinishRequest struct {
	UserID     string          `json:"userId"`
	Credential json.RawMessage `json:"credential"`
}

// RegisterFinishResponse is returned after a successful registration.
type RegisterFinishResponse struct {
	Success       bool     `json:"success"`
	CredentialID  string   `json:"credentialId"`
	RecoveryCodes []string `json:"recoveryCodes"`
	Token         string   `json:"token"`
}

// LoginStartRequest begins an authentication ceremony.
type LoginStartRequest struct {
	UserID string `json:"userId"`
}

// LoginFinishRequest completes an authentication ceremony. Credential is
// the serialized PublicKeyCredential produced by navigator.credentials.get.
type LoginFinishRequest struct {
	UserID     string          `json:"userId"`
	Credential json.RawMessage `json:"credential"`
}

// LoginFinishResponse is returned after a successful login.
type LoginFinishResponse struct {
	Success      bool   `json:"success"`
	Token        string `json:"token"`
	UserID       string `json:"userId"`
	CredentialID string `json:"credentialId"`
}

// RecoverStartRequest begins an account recovery ceremony.
type RecoverStartRequest struct {
	UserID string `json:"userId"`
	Code   string `json:"code"`
}

// RecoverFinishRequest completes an account recovery ceremony.
type RecoverFinishRequest struct {
	UserID         string          `json:"userId"`
	RecoveryCodeID int64           `json:"recoveryCodeId"`
	Credential     json.RawMessage `json:"credential"`
}

// RecoverFinishResponse is returned after a successful recovery. The old
// recovery code set is gone; RecoveryCodes is the replacement set.
type RecoverFinishResponse struct {
	Success       bool     `json:"success"`
	Token         string   `json:"token"`
	CredentialID  string   `json:"credentialId"`
	RecoveryCodes []string `json:"recoveryCodes"`
}

// SecretRequest creates or updates a secret. All payload fields are opaque
// ciphertext; the server never sees plaintext secret values.
type SecretRequest struct {
	Name           string `json:"name"`
	EncryptedValue string `json:"encryptedValue"`
	IV             string `json:"iv"`
}

// SecretResponse is a single stored secret.
type SecretResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	EncryptedValue string `json:"encryptedValue"`
	IV             string `json:"iv"`
	CreatedAt      string `json:"createdAt"`
	UpdatedAt      string `json:"updatedAt"`
}

// SecretListResponse is the response for listing secrets.
type SecretListResponse struct {
	Secrets []SecretResponse `json:"secrets"`
	Total   int              `json:"total"`
}
