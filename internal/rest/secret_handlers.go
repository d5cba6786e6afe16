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
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/taplock/taplock/internal/storage"
	"github.com/taplock/taplock/pkg/metrics"
)

// ListSecretsHandler handles GET /api/secrets requests.
func (s *Server) ListSecretsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, ErrUnauthorized, http.StatusUnauthorized)
		return
	}

	secrets, err := s.secrets.ListByUser(r.Context(), userID)
	if err != nil {
		metrics.RecordOperation(metrics.OpSecretList, metrics.StatusError, 0)
		handleError(w, err)
		return
	}

	items := make([]SecretResponse, len(secrets))
	for i, secret := range secrets {
		items[i] = toSecretResponse(secret)
	}

	metrics.RecordOperation(metrics.OpSecretList, metrics.StatusSuccess, 0)
	writeJSON(w, SecretListResponse{Secrets: items, Total: len(items)}, http.StatusOK)
}

// GetSecretHandler handles GET /api/secrets/{id} requests.
func (s *Server) GetSecretHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, ErrUnauthorized, http.StatusUnauthorized)
		return
	}

	secret, err := s.secrets.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		metrics.RecordOperation(metrics.OpSecretGet, metrics.StatusError, 0)
		handleError(w, err)
		return
	}

	metrics.RecordOperation(metrics.OpSecretGet, metrics.StatusSuccess, 0)
	writeJSON(w, toSecretResponse(secret), http.StatusOK)
}

// CreateSecretHandler handles POST /api/secrets requests. The value and IV
// are opaque ciphertext produced client-side; the server stores them as-is.
func (s *Server) CreateSecretHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, ErrUnauthorized, http.StatusUnauthorized)
		return
	}

	var req SecretRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, ErrInvalidRequest, http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.EncryptedValue == "" || req.IV == "" {
		writeErrorWithMessage(w, ErrInvalidRequest, "name, encryptedValue, and iv are required", http.StatusBadRequest)
		return
	}

	now := time.Now().UTC()
	secret := &storage.Secret{
		ID:             uuid.NewString(),
		UserID:         userID,
		Name:           req.Name,
		EncryptedValue: req.EncryptedValue,
		IV:             req.IV,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.secrets.Create(r.Context(), secret); err != nil {
		metrics.RecordOperation(metrics.OpSecretCreate, metrics.StatusError, 0)
		handleError(w, err)
		return
	}

	metrics.RecordOperation(metrics.OpSecretCreate, metrics.StatusSuccess, 0)
	writeJSON(w, toSecretResponse(secret), http.StatusCreated)
}

// UpdateSecretHandler handles PUT /api/secrets/{id} requests.
func (s *Server) UpdateSecretHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, ErrUnauthorized, http.StatusUnauthorized)
		return
	}

	var req SecretRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, ErrInvalidRequest, http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.EncryptedValue == "" || req.IV == "" {
		writeErrorWithMessage(w, ErrInvalidRequest, "name, encryptedValue, and iv are required", http.StatusBadRequest)
		return
	}

	id := chi.URLParam(r, "id")

	existing, err := s.secrets.Get(r.Context(), userID, id)
	if err != nil {
		metrics.RecordOperation(metrics.OpSecretUpdate, metrics.StatusError, 0)
		handleError(w, err)
		return
	}

	existing.Name = req.Name
	existing.EncryptedValue = req.EncryptedValue
	existing.IV = req.IV
	existing.UpdatedAt = time.Now().UTC()

	if err := s.secrets.Update(r.Context(), existing); err != nil {
		metrics.RecordOperation(metrics.OpSecretUpdate, metrics.StatusError, 0)
		handleError(w, err)
		return
	}

	metrics.RecordOperation(metrics.OpSecretUpdate, metrics.StatusSuccess, 0)
	writeJSON(w, toSecretResponse(existing), http.StatusOK)
}

// DeleteSecretHandler handles DELETE /api/secrets/{id} requests.
func (s *Server) DeleteSecretHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, ErrUnauthorized, http.StatusUnauthorized)
		return
	}

	if err := s.secrets.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		metrics.RecordOperation(metrics.OpSecretDelete, metrics.StatusError, 0)
		handleError(w, err)
		return
	}

	metrics.RecordOperation(metrics.OpSecretDelete, metrics.StatusSuccess, 0)
	w.WriteHeader(http.StatusNoContent)
}

func toSecretResponse(secret *storage.Secret) SecretResponse {
	return SecretResponse{
		ID:             secret.ID,
		Name:           secret.Name,
		EncryptedValue: secret.EncryptedValue,
		IV:             secret.IV,
		CreatedAt:      secret.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      secret.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
