// Copyright (c) 2025 TapLock Contributors
//
// This file is part of taplock.
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0).
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package passkey

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPasskeyErrorWrapping(t *testing.T) {
	err := NewError("finish login", ErrVerificationFailed)

	assert.Equal(t, "finish login: verification failed", err.Error())
	assert.ErrorIs(t, err, ErrVerificationFailed)
	assert.True(t, IsVerificationFailed(err))

	var pkErr *PasskeyError
	assert.True(t, errors.As(err, &pkErr))
	assert.Equal(t, "finish login", pkErr.Op)
}

func TestWrapErrorNil(t *testing.T) {
	assert.NoError(t, WrapError("anything", nil))
}

func TestErrorHelpersMatchThroughFmtWrap(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", NewError("op", ErrClonedAuthenticator))
	assert.True(t, IsClonedAuthenticator(wrapped))
	assert.False(t, IsUserNotFound(wrapped))
}

func TestIsChallengeFailure(t *testing.T) {
	assert.True(t, IsChallengeFailure(ErrChallengeNotFound))
	assert.True(t, IsChallengeFailure(NewError("consume", ErrChallengeExpired)))
	assert.True(t, IsChallengeFailure(NewError("consume", ErrChallengeMismatch)))
	assert.False(t, IsChallengeFailure(ErrVerificationFailed))
	assert.False(t, IsChallengeFailure(nil))
}

func TestIsInvalidRecoveryCode(t *testing.T) {
	assert.True(t, IsInvalidRecoveryCode(NewError("begin recovery", ErrInvalidRecoveryCode)))
	assert.False(t, IsInvalidRecoveryCode(ErrRecoveryCodeNotFound))
}
