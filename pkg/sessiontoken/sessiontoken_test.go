// Copyright (c) 2025 TapLock Contributors
//
// This file is part of taplock.
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0).
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package sessiontoken

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func TestNewRequiresSecret(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	svc, err := New(testSecret)
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestMintVerifyRoundTrip(t *testing.T) {
	svc, err := New(testSecret)
	require.NoError(t, err)

	for _, userID := range []string{"alice", "bob@example.com", "user with spaces"} {
		token, err := svc.Mint(userID)
		require.NoError(t, err)
		require.NotEmpty(t, token)

		got, err := svc.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, userID, got)
	}
}

func TestMintEmbedsExpiry(t *testing.T) {
	svc, err := New(testSecret)
	require.NoError(t, err)

	token, err := svc.Mint("alice")
	require.NoError(t, err)

	claims := &Claims{}
	_, _, err = jwt.NewParser().ParseUnverified(token, claims)
	require.NoError(t, err)

	lifetime := claims.ExpiresAt.Sub(claims.IssuedAt.Time)
	assert.Equal(t, TokenTTL, lifetime)
}

func TestVerifyExpiredToken(t *testing.T) {
	svc, err := New(testSecret)
	require.NoError(t, err)

	token, err := svc.mintWithTTL("alice", -time.Minute)
	require.NoError(t, err)

	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyWrongSecret(t *testing.T) {
	svc, err := New(testSecret)
	require.NoError(t, err)
	other, err := New([]byte("a completely different secret!!!"))
	require.NoError(t, err)

	token, err := svc.Mint("alice")
	require.NoError(t, err)

	_, err = other.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyTamperedToken(t *testing.T) {
	svc, err := New(testSecret)
	require.NoError(t, err)

	token, err := svc.Mint("alice")
	require.NoError(t, err)

	// Flip a character in the payload segment.
	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	payload := []byte(parts[1])
	if payload[0] == 'A' {
		payload[0] = 'B'
	} else {
		payload[0] = 'A'
	}
	tampered := parts[0] + "." + string(payload) + "." + parts[2]

	_, err = svc.Verify(tampered)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyMalformed(t *testing.T) {
	svc, err := New(testSecret)
	require.NoError(t, err)

	for _, token := range []string{"", "not-a-jwt", "a.b", "a.b.c.d"} {
		_, err := svc.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken, "token %q", token)
	}
}

func TestVerifyRejectsUnsignedAlg(t *testing.T) {
	svc, err := New(testSecret)
	require.NoError(t, err)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UserID: "alice",
	})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
