// Copyright (c) 2025 TapLock Contributors
//
// This file is part of taplock.
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0).
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package passkey

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/taplock/taplock/pkg/recoverycode"
)

// RecoveryResult is the outcome of a completed recovery ceremony: a new
// credential bound to the existing account plus a replacement code set.
type RecoveryResult struct {
	// Credential is the newly registered replacement credential.
	Credential *Credential

	// RecoveryCodes are the plaintext codes of the rotated set. The old
	// set, including the code just used, is gone.
	RecoveryCodes []string
}

// BeginRecovery starts account recovery with a single-use recovery code.
// On a valid, unused code it begins a registration ceremony bound to the
// existing account and returns the creation options together with the
// matched code's ID, which the client must echo back to FinishRecovery.
//
// Every way a code can fail (malformed, unknown user, wrong code, already
// used) yields the same ErrInvalidRecoveryCode, so a caller probing codes
// learns nothing about which failure it hit.
func (s *Service) BeginRecovery(ctx context.Context, userID, code string) (*protocol.CredentialCreation, int64, error) {
	if userID == "" {
		return nil, 0, NewError("begin recovery", ErrInvalidRequest)
	}
	if !recoverycode.Valid(code) {
		return nil, 0, NewError("begin recovery", ErrInvalidRecoveryCode)
	}

	user, err := s.users.Get(ctx, userID)
	if err != nil {
		if IsUserNotFound(err) {
			return nil, 0, NewError("begin recovery", ErrInvalidRecoveryCode)
		}
		return nil, 0, WrapError("get user", err)
	}

	match, err := s.codes.FindUnused(ctx, userID, recoverycode.Hash(code))
	if err != nil {
		if errors.Is(err, ErrRecoveryCodeNotFound) {
			return nil, 0, NewError("begin recovery", ErrInvalidRecoveryCode)
		}
		return nil, 0, WrapError("find recovery code", err)
	}

	existing, err := s.creds.GetByUser(ctx, userID)
	if err != nil {
		return nil, 0, WrapError("get credentials", err)
	}

	options, session, err := s.webauthn.BeginRegistration(
		&ceremonyUser{user: user, creds: existing},
		webauthn.WithExclusions(excludeList(existing)),
	)
	if err != nil {
		return nil, 0, WrapError("begin recovery registration", err)
	}

	if err := s.challenges.Issue(ctx, userID, session); err != nil {
		return nil, 0, WrapError("issue challenge", err)
	}

	return options, match.ID, nil
}

// FinishRecovery completes account recovery: it verifies the registration
// response exactly like FinishRegistration, persists the replacement
// credential, and atomically rotates the recovery code set: the used code
// is marked consumed, the rest of the old set is deleted, and a fresh set
// is issued, all in one store operation. Two concurrent recoveries with the
// same code cannot both succeed.
func (s *Service) FinishRecovery(ctx context.Context, userID string, codeID int64, response *protocol.ParsedCredentialCreationData) (*RecoveryResult, error) {
	if userID == "" || response == nil {
		return nil, NewError("finish recovery", ErrInvalidRequest)
	}

	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, WrapError("get user", err)
	}

	session, err := s.challenges.Consume(ctx, userID, response.Response.CollectedClientData.Challenge)
	if err != nil {
		return nil, WrapError("consume challenge", err)
	}

	existing, err := s.creds.GetByUser(ctx, userID)
	if err != nil {
		return nil, WrapError("get credentials", err)
	}

	credential, err := s.webauthn.CreateCredential(&ceremonyUser{user: user, creds: existing}, *session, response)
	if err != nil {
		return nil, NewError("create credential", fmt.Errorf("%w: %v", ErrVerificationFailed, err))
	}

	cred := FromWebAuthnCredential(userID, credential)
	if err := s.creds.Save(ctx, cred); err != nil {
		return nil, WrapError("save credential", err)
	}

	newCodes, err := recoverycode.GenerateSet(recoverycode.DefaultSetSize)
	if err != nil {
		return nil, WrapError("generate recovery codes", err)
	}

	if err := s.codes.ConsumeAndRotate(ctx, userID, codeID, recoverycode.HashSet(newCodes)); err != nil {
		if errors.Is(err, ErrRecoveryCodeNotFound) {
			return nil, NewError("finish recovery", ErrInvalidRecoveryCode)
		}
		return nil, WrapError("rotate recovery codes", err)
	}

	return &RecoveryResult{Credential: cred, RecoveryCodes: newCodes}, nil
}
