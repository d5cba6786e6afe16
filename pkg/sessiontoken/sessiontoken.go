// Copyright (c) 2025 TapLock Contributors
//
// This file is part of taplock.
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0).
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

// Package sessiontoken mints and verifies the self-contained bearer tokens
// issued after a successful passkey ceremony.
//
// Tokens are HS256 JWTs carrying the user identifier and a fixed 48-hour
// expiry. Verification is pure and stateless: there is no server-side session
// store, so revocation before natural expiry is not supported. Every
// verification failure maps to the single ErrInvalidToken sentinel so callers
// cannot distinguish a bad signature from an expired or malformed token.
package sessiontoken

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTTL is the fixed lifetime of a session token.
const TokenTTL = 48 * time.Hour

// ErrInvalidToken is returned for any token that fails verification:
// malformed structure, signature mismatch, or expiry in the past.
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims are the session token claims: the registered set plus the owning
// user identifier.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId"`
}

// Service mints and verifies session tokens with a server-held secret.
type Service struct {
	secret []byte
}

// New creates a token service. The secret should be at least 32 bytes.
func New(secret []byte) (*Service, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("signing secret is required")
	}
	return &Service{secret: secret}, nil
}

// Mint produces a signed token for userID with a 48-hour expiry.
func (s *Service) Mint(userID string) (string, error) {
	return s.mintWithTTL(userID, TokenTTL)
}

func (s *Service) mintWithTTL(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID: userID,
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the token's signature and expiry and returns the embedded
// user identifier. The returned error is always ErrInvalidToken on failure.
func (s *Service) Verify(tokenString string) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid || claims.UserID == "" {
		return "", ErrInvalidToken
	}

	return claims.UserID, nil
}
