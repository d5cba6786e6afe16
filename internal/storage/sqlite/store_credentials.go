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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/taplock/taplock/pkg/passkey"
)

const credentialColumns = `id, user_id, public_key, attestation_type, transports, flags, aaguid, sign_count, created_at, last_used_at`

// GetByUser retrieves all credentials for a user, oldest first.
func (s *Store) GetByUser(ctx context.Context, userID string) ([]*passkey.Credential, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+credentialColumns+` FROM credentials WHERE user_id = ? ORDER BY created_at`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("get credentials: %w", err)
	}
	defer rows.Close()

	creds := make([]*passkey.Credential, 0)
	for rows.Next() {
		cred, err := scanCredential(rows.Scan)
		if err != nil {
			return nil, err
		}
		creds = append(creds, cred)
	}
	return creds, rows.Err()
}

// GetByID retrieves a credential by its authenticator-assigned ID.
func (s *Store) GetByID(ctx context.Context, credentialID []byte) (*passkey.Credential, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+credentialColumns+` FROM credentials WHERE id = ?`, credentialID,
	)
	cred, err := scanCredential(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, passkey.ErrCredentialNotFound
	}
	return cred, err
}

// Save persists a new credential.
func (s *Store) Save(ctx context.Context, cred *passkey.Credential) error {
	transports, err := json.Marshal(cred.Transport)
	if err != nil {
		return fmt.Errorf("marshal transports: %w", err)
	}
	flags, err := json.Marshal(cred.Flags)
	if err != nil {
		return fmt.Errorf("marshal flags: %w", err)
	}

	var lastUsed int64
	if !cred.LastUsedAt.IsZero() {
		lastUsed = toMillis(cred.LastUsedAt)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO credentials (`+credentialColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cred.ID, cred.UserID, cred.PublicKey, cred.AttestationType,
		string(transports), string(flags), cred.AAGUID, cred.SignCount,
		toMillis(cred.CreatedAt), lastUsed,
	)
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

// AdvanceSignCount conditionally advances the stored signature counter. The
// condition lives in the UPDATE itself so concurrent logins race on the
// database row, not on read-modify-write in Go.
func (s *Store) AdvanceSignCount(ctx context.Context, credentialID []byte, signCount uint32, usedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE credentials
		 SET sign_count = ?, last_used_at = ?
		 WHERE id = ? AND (sign_count < ? OR (sign_count = 0 AND ? = 0))`,
		signCount, toMillis(usedAt), credentialID, signCount, signCount,
	)
	if err != nil {
		return fmt.Errorf("advance sign count: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("advance sign count: %w", err)
	}
	if affected > 0 {
		return nil
	}

	// Distinguish a missing credential from a rejected update.
	if _, err := s.GetByID(ctx, credentialID); err != nil {
		return err
	}
	return passkey.ErrCounterRegression
}

type scanFunc func(dest ...any) error

func scanCredential(scan scanFunc) (*passkey.Credential, error) {
	var cred passkey.Credential
	var transports, flags string
	var createdAt, lastUsedAt int64

	if err := scan(
		&cred.ID, &cred.UserID, &cred.PublicKey, &cred.AttestationType,
		&transports, &flags, &cred.AAGUID, &cred.SignCount,
		&createdAt, &lastUsedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(transports), &cred.Transport); err != nil {
		return nil, fmt.Errorf("unmarshal transports: %w", err)
	}
	if err := json.Unmarshal([]byte(flags), &cred.Flags); err != nil {
		return nil, fmt.Errorf("unmarshal flags: %w", err)
	}

	cred.CreatedAt = fromMillis(createdAt)
	if lastUsedAt > 0 {
		cred.LastUsedAt = fromMillis(lastUsedAt)
	}
	return &cred, nil
}
