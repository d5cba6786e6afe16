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
)

// Sentinel errors for passkey operations.
var (
	// ErrUserNotFound is returned when a user cannot be found.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists is returned when attempting to create a user that already exists.
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrCredentialNotFound is returned when a credential cannot be found.
	ErrCredentialNotFound = errors.New("credential not found")

	// ErrNoCredentials is returned when a user has no registered credentials.
	ErrNoCredentials = errors.New("user has no registered credentials")

	// ErrChallengeNotFound is returned when no live challenge exists for a user.
	ErrChallengeNotFound = errors.New("challenge not found")

	// ErrChallengeExpired is returned when a user's challenge has passed its TTL.
	ErrChallengeExpired = errors.New("challenge expired")

	// ErrChallengeMismatch is returned when the presented challenge does not
	// match the one issued to the user.
	ErrChallengeMismatch = errors.New("challenge mismatch")

	// ErrVerificationFailed is returned when attestation or assertion
	// verification fails.
	ErrVerificationFailed = errors.New("verification failed")

	// ErrClonedAuthenticator is returned when the signature counter indicates
	// a possible cloned authenticator.
	ErrClonedAuthenticator = errors.New("cloned authenticator detected")

	// ErrCounterRegression is returned by credential stores when a conditional
	// sign-count update would move the counter backwards or hold it still.
	ErrCounterRegression = errors.New("sign count regression")

	// ErrInvalidRecoveryCode is returned for any recovery code that cannot be
	// used: malformed, unknown, already consumed, or belonging to no user.
	// The cases are deliberately indistinguishable.
	ErrInvalidRecoveryCode = errors.New("invalid recovery code")

	// ErrRecoveryCodeNotFound is returned by recovery code stores when no
	// matching unused code exists. The service maps it to ErrInvalidRecoveryCode.
	ErrRecoveryCodeNotFound = errors.New("recovery code not found")

	// ErrInvalidRequest is returned when the request is malformed.
	ErrInvalidRequest = errors.New("invalid request")
)

// PasskeyError wraps an error with the operation that produced it.
type PasskeyError struct {
	Op  string // Operation that failed
	Err error  // Underlying error
}

// Error returns the error message.
func (e *PasskeyError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *PasskeyError) Unwrap() error {
	return e.Err
}

// Is reports whether the target error matches.
func (e *PasskeyError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewError creates a new PasskeyError with the given operation and error.
func NewError(op string, err error) error {
	return &PasskeyError{
		Op:  op,
		Err: err,
	}
}

// WrapError wraps an error with an operation name if it's not nil.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(op, err)
}

// IsUserNotFound returns true if the error indicates a user was not found.
func IsUserNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}

// IsChallengeFailure returns true for any challenge registry failure:
// missing, expired, or mismatched.
func IsChallengeFailure(err error) bool {
	return errors.Is(err, ErrChallengeNotFound) ||
		errors.Is(err, ErrChallengeExpired) ||
		errors.Is(err, ErrChallengeMismatch)
}

// IsVerificationFailed returns true if the error indicates verification failed.
func IsVerificationFailed(err error) bool {
	return errors.Is(err, ErrVerificationFailed)
}

// IsClonedAuthenticator returns true if the error indicates clone detection fired.
func IsClonedAuthenticator(err error) bool {
	return errors.Is(err, ErrClonedAuthenticator)
}

// IsInvalidRecoveryCode returns true if the error indicates an unusable recovery code.
func IsInvalidRecoveryCode(err error) bool {
	return errors.Is(err, ErrInvalidRecoveryCode)
}
