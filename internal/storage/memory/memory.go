// Copyright (c) 2025 TapLock Contributors
//
// This file is part of taplock.
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0).
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

// Package memory provides the in-memory secret store for single-instance
// deployments. The passkey stores it pairs with live in pkg/passkey.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/taplock/taplock/internal/storage"
)

// SecretStore is an in-memory implementation of storage.SecretStore.
// Safe for concurrent use.
type SecretStore struct {
	mu     sync.RWMutex
	byID   map[string]*storage.Secret
	byUser map[string][]string
}

// NewSecretStore creates a new in-memory secret store.
func NewSecretStore() *SecretStore {
	return &SecretStore{
		byID:   make(map[string]*storage.Secret),
		byUser: make(map[string][]string),
	}
}

// ListByUser returns all secrets for a user, newest first.
func (s *SecretStore) ListByUser(_ context.Context, userID string) ([]*storage.Secret, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	secrets := make([]*storage.Secret, 0, len(s.byUser[userID]))
	for _, id := range s.byUser[userID] {
		if secret, ok := s.byID[id]; ok {
			copied := *secret
			secrets = append(secrets, &copied)
		}
	}
	sort.Slice(secrets, func(i, j int) bool {
		return secrets[i].CreatedAt.After(secrets[j].CreatedAt)
	})
	return secrets, nil
}

// Get retrieves one secret scoped to the user.
func (s *SecretStore) Get(_ context.Context, userID, id string) (*storage.Secret, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	secret, ok := s.byID[id]
	if !ok || secret.UserID != userID {
		return nil, storage.ErrSecretNotFound
	}
	copied := *secret
	return &copied, nil
}

// Create persists a new secret.
func (s *SecretStore) Create(_ context.Context, secret *storage.Secret) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[secret.ID]; !ok {
		s.byUser[secret.UserID] = append(s.byUser[secret.UserID], secret.ID)
	}
	copied := *secret
	s.byID[secret.ID] = &copied
	return nil
}

// Update rewrites an existing secret.
func (s *SecretStore) Update(_ context.Context, secret *storage.Secret) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byID[secret.ID]
	if !ok || existing.UserID != secret.UserID {
		return storage.ErrSecretNotFound
	}

	existing.Name = secret.Name
	existing.EncryptedValue = secret.EncryptedValue
	existing.IV = secret.IV
	existing.UpdatedAt = secret.UpdatedAt
	return nil
}

// Delete removes a secret scoped to the user.
func (s *SecretStore) Delete(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	secret, ok := s.byID[id]
	if !ok || secret.UserID != userID {
		return storage.ErrSecretNotFound
	}

	delete(s.byID, id)
	ids := s.byUser[userID]
	for i, sid := range ids {
		if sid == id {
			s.byUser[userID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return nil
}
