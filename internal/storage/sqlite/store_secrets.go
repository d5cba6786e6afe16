// Copyright (c) 2025 TapLock Contributors
//
// This file is part of taplock.
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0).
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/taplock/taplock/internal/storage"
)

// secretStore adapts Store to storage.SecretStore. User and secret lookups
// share method names with different signatures, so secrets get their own
// receiver.
type secretStore struct {
	s *Store
}

// Secrets returns the storage.SecretStore view of this store.
func (s *Store) Secrets() storage.SecretStore {
	return secretStore{s: s}
}

func (ss secretStore) ListByUser(ctx context.Context, userID string) ([]*storage.Secret, error) {
	return ss.s.listSecrets(ctx, userID)
}

func (ss secretStore) Get(ctx context.Context, userID, id string) (*storage.Secret, error) {
	return ss.s.getSecret(ctx, userID, id)
}

func (ss secretStore) Create(ctx context.Context, secret *storage.Secret) error {
	return ss.s.createSecret(ctx, secret)
}

func (ss secretStore) Update(ctx context.Context, secret *storage.Secret) error {
	return ss.s.updateSecret(ctx, secret)
}

func (ss secretStore) Delete(ctx context.Context, userID, id string) error {
	return ss.s.deleteSecret(ctx, userID, id)
}

// listSecrets returns all secrets for a user, newest first.
func (s *Store) listSecrets(ctx context.Context, userID string) ([]*storage.Secret, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, name, encrypted_value, iv, created_at, updated_at
		 FROM secrets WHERE user_id = ? ORDER BY created_at DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list secrets: %w", err)
	}
	defer rows.Close()

	secrets := make([]*storage.Secret, 0)
	for rows.Next() {
		secret, err := scanSecret(rows.Scan)
		if err != nil {
			return nil, err
		}
		secrets = append(secrets, secret)
	}
	return secrets, rows.Err()
}

func (s *Store) getSecret(ctx context.Context, userID, id string) (*storage.Secret, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, encrypted_value, iv, created_at, updated_at
		 FROM secrets WHERE id = ? AND user_id = ?`, id, userID,
	)
	secret, err := scanSecret(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrSecretNotFound
	}
	return secret, err
}

func (s *Store) createSecret(ctx context.Context, secret *storage.Secret) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO secrets (id, user_id, name, encrypted_value, iv, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		secret.ID, secret.UserID, secret.Name, secret.EncryptedValue, secret.IV,
		toMillis(secret.CreatedAt), toMillis(secret.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("create secret: %w", err)
	}
	return nil
}

func (s *Store) updateSecret(ctx context.Context, secret *storage.Secret) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE secrets SET name = ?, encrypted_value = ?, iv = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		secret.Name, secret.EncryptedValue, secret.IV, toMillis(secret.UpdatedAt),
		secret.ID, secret.UserID,
	)
	if err != nil {
		return fmt.Errorf("update secret: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update secret: %w", err)
	}
	if affected == 0 {
		return storage.ErrSecretNotFound
	}
	return nil
}

func (s *Store) deleteSecret(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM secrets WHERE id = ? AND user_id = ?`, id, userID,
	)
	if err != nil {
		return fmt.Errorf("delete secret: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete secret: %w", err)
	}
	if affected == 0 {
		return storage.ErrSecretNotFound
	}
	return nil
}

func scanSecret(scan scanFunc) (*storage.Secret, error) {
	var secret storage.Secret
	var createdAt, updatedAt int64

	if err := scan(
		&secret.ID, &secret.UserID, &secret.Name,
		&secret.EncryptedValue, &secret.IV,
		&createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	secret.CreatedAt = fromMillis(createdAt)
	secret.UpdatedAt = fromMillis(updatedAt)
	return &secret, nil
}
