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
	"time"

	"github.com/taplock/taplock/pkg/passkey"
)

// Replace atomically swaps the user's recovery code set for a fresh one.
func (s *Store) Replace(ctx context.Context, userID string, hashes []string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM recovery_codes WHERE user_id = ?`, userID,
		); err != nil {
			return fmt.Errorf("delete recovery codes: %w", err)
		}
		return insertCodes(ctx, tx, userID, hashes)
	})
}

// FindUnused retrieves the unused code matching (userID, codeHash).
func (s *Store) FindUnused(ctx context.Context, userID, codeHash string) (*passkey.RecoveryCode, error) {
	var code passkey.RecoveryCode
	var used int
	var usedAt sql.NullInt64
	var createdAt int64

	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, code_hash, used, used_at, created_at
		 FROM recovery_codes
		 WHERE user_id = ? AND code_hash = ? AND used = 0`,
		userID, codeHash,
	).Scan(&code.ID, &code.UserID, &code.CodeHash, &used, &usedAt, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, passkey.ErrRecoveryCodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find recovery code: %w", err)
	}

	code.Used = used != 0
	if usedAt.Valid {
		t := fromMillis(usedAt.Int64)
		code.UsedAt = &t
	}
	code.CreatedAt = fromMillis(createdAt)
	return &code, nil
}

// ConsumeAndRotate marks the identified code used, deletes the rest of the
// user's set, and inserts the replacement hashes, all in one transaction.
// The conditional UPDATE is the linearization point: of two concurrent
// recoveries using the same code, exactly one sees an affected row.
func (s *Store) ConsumeAndRotate(ctx context.Context, userID string, codeID int64, newHashes []string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE recovery_codes SET used = 1, used_at = ?
			 WHERE id = ? AND user_id = ? AND used = 0`,
			toMillis(time.Now()), codeID, userID,
		)
		if err != nil {
			return fmt.Errorf("consume recovery code: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("consume recovery code: %w", err)
		}
		if affected == 0 {
			return passkey.ErrRecoveryCodeNotFound
		}

		// The consumed row stays behind as an audit record; the rest of
		// the old set is removed.
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM recovery_codes WHERE user_id = ? AND id != ? AND used = 0`,
			userID, codeID,
		); err != nil {
			return fmt.Errorf("delete old recovery codes: %w", err)
		}

		return insertCodes(ctx, tx, userID, newHashes)
	})
}

// CountUnused returns the number of live codes for a user.
func (s *Store) CountUnused(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM recovery_codes WHERE user_id = ? AND used = 0`, userID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count recovery codes: %w", err)
	}
	return n, nil
}

func insertCodes(ctx context.Context, tx *sql.Tx, userID string, hashes []string) error {
	now := toMillis(time.Now())
	for _, hash := range hashes {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO recovery_codes (user_id, code_hash, used, created_at) VALUES (?, ?, 0, ?)`,
			userID, hash, now,
		); err != nil {
			return fmt.Errorf("insert recovery code: %w", err)
		}
	}
	return nil
}
