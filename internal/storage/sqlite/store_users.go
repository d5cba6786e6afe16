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
	"strings"

	"github.com/taplock/taplock/pkg/passkey"
)

// Get retrieves a user by ID.
func (s *Store) Get(ctx context.Context, id string) (*passkey.User, error) {
	var user passkey.User
	var createdAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, created_at FROM users WHERE id = ?`, id,
	).Scan(&user.ID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, passkey.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	user.CreatedAt = fromMillis(createdAt)
	return &user, nil
}

// Create persists a new user.
func (s *Store) Create(ctx context.Context, user *passkey.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, created_at) VALUES (?, ?)`,
		user.ID, toMillis(user.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return passkey.ErrUserAlreadyExists
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// isUniqueViolation detects SQLite primary key and unique index conflicts.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
