// Copyright (c) 2025 TapLock Contributors
//
// This file is part of taplock.
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0).
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

// Package storage defines the secret vault persistence contract. The server
// stores secrets as opaque ciphertext: values are encrypted client-side and
// the key never leaves the client, so a store only ever sees name,
// ciphertext, and nonce.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrSecretNotFound is returned when a secret does not exist or belongs
	// to a different user.
	ErrSecretNotFound = errors.New("secret not found")
)

// Secret is one vault entry. EncryptedValue and IV are base64 strings
// produced client-side; the server never inspects them.
type Secret struct {
	ID             string    `json:"id"`
	UserID         string    `json:"-"`
	Name           string    `json:"name"`
	EncryptedValue string    `json:"encryptedValue"`
	IV             string    `json:"iv"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// SecretStore defines the interface for secret persistence. Every operation
// is scoped to a user: a secret ID from another user behaves as missing.
type SecretStore interface {
	// ListByUser returns all secrets for a user, newest first.
	ListByUser(ctx context.Context, userID string) ([]*Secret, error)

	// Get retrieves one secret. Returns ErrSecretNotFound if it doesn't
	// exist for this user.
	Get(ctx context.Context, userID, id string) (*Secret, error)

	// Create persists a new secret. The caller assigns the ID.
	Create(ctx context.Context, secret *Secret) error

	// Update rewrites name, ciphertext, and nonce of an existing secret.
	// Returns ErrSecretNotFound if it doesn't exist for this user.
	Update(ctx context.Context, secret *Secret) error

	// Delete removes a secret. Returns ErrSecretNotFound if it doesn't
	// exist for this user.
	Delete(ctx context.Context, userID, id string) error
}
