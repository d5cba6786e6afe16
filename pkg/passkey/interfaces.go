// Copyright (c) 2025 TapLock Contributors
//
// This file is part of taplock.
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0).
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package passkey

import (
	"context"
	"time"
)

// UserStore defines the interface for user persistence.
type UserStore interface {
	// Get retrieves a user by ID.
	// Returns ErrUserNotFound if the user doesn't exist.
	Get(ctx context.Context, id string) (*User, error)

	// Create persists a new user.
	// Returns ErrUserAlreadyExists if the ID is taken.
	Create(ctx context.Context, user *User) error
}

// CredentialStore defines the interface for credential persistence.
type CredentialStore interface {
	// GetByUser retrieves all credentials for a user. A user with no
	// credentials yields an empty slice, not an error.
	GetByUser(ctx context.Context, userID string) ([]*Credential, error)

	// GetByID retrieves a credential by its authenticator-assigned ID.
	// Returns ErrCredentialNotFound if it doesn't exist.
	GetByID(ctx context.Context, credentialID []byte) (*Credential, error)

	// Save persists a new credential.
	Save(ctx context.Context, cred *Credential) error

	// AdvanceSignCount conditionally updates the stored signature counter
	// and last-used timestamp. The update applies only when signCount is
	// strictly greater than the stored value, or when both are zero
	// (counter-less authenticators). Otherwise the store is left untouched
	// and ErrCounterRegression is returned.
	AdvanceSignCount(ctx context.Context, credentialID []byte, signCount uint32, usedAt time.Time) error
}

// RecoveryCodeStore defines the interface for recovery code persistence.
// Codes are stored hashed; the store never sees plaintext.
type RecoveryCodeStore interface {
	// Replace atomically deletes every code for the user and inserts a
	// fresh set of hashes. Used when a registration issues the first set.
	Replace(ctx context.Context, userID string, hashes []string) error

	// FindUnused retrieves the unused code matching (userID, codeHash).
	// Returns ErrRecoveryCodeNotFound when no unused code matches; used
	// codes never match.
	FindUnused(ctx context.Context, userID, codeHash string) (*RecoveryCode, error)

	// ConsumeAndRotate atomically marks the identified code used, deletes
	// the rest of the user's set, and inserts the replacement hashes. The
	// whole rotation happens in one transaction (or critical section):
	// concurrent recoveries with the same code cannot both succeed.
	// Returns ErrRecoveryCodeNotFound if the code is missing or already used.
	ConsumeAndRotate(ctx context.Context, userID string, codeID int64, newHashes []string) error
}
