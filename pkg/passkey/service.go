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
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/taplock/taplock/pkg/recoverycode"
)

// Service provides passkey registration, authentication, and recovery
// operations.
type Service struct {
	webauthn   *webauthn.WebAuthn
	config     *Config
	users      UserStore
	creds      CredentialStore
	codes      RecoveryCodeStore
	challenges ChallengeStore
}

// ServiceParams contains dependencies for creating a passkey service.
type ServiceParams struct {
	// Config is the relying party configuration (required).
	Config *Config

	// UserStore is the user persistence layer (required).
	UserStore UserStore

	// CredentialStore is the credential persistence layer (required).
	CredentialStore CredentialStore

	// RecoveryCodeStore is the recovery code persistence layer (required).
	RecoveryCodeStore RecoveryCodeStore

	// ChallengeStore holds live ceremony challenges. If nil, an in-memory
	// store with the configured TTL is used.
	ChallengeStore ChallengeStore
}

// RegistrationResult is the outcome of a completed registration ceremony.
type RegistrationResult struct {
	// Credential is the newly persisted credential.
	Credential *Credential

	// RecoveryCodes are the plaintext recovery codes for the fresh set.
	// This is the only time they exist in plaintext; only hashes are stored.
	RecoveryCodes []string
}

// LoginResult is the outcome of a completed authentication ceremony.
type LoginResult struct {
	// Credential is the credential that signed the assertion, with its
	// advanced signature counter.
	Credential *Credential
}

// NewService creates a new passkey service with the provided dependencies.
func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if params.UserStore == nil {
		return nil, fmt.Errorf("user store is required")
	}
	if params.CredentialStore == nil {
		return nil, fmt.Errorf("credential store is required")
	}
	if params.RecoveryCodeStore == nil {
		return nil, fmt.Errorf("recovery code store is required")
	}

	// Set defaults and validate
	params.Config.SetDefaults()
	if err := params.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	challenges := params.ChallengeStore
	if challenges == nil {
		challenges = NewMemoryChallengeStore(params.Config.ChallengeTTL)
	}

	// Create the go-webauthn instance
	wa, err := webauthn.New(params.Config.ToWebAuthnConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create webauthn instance: %w", err)
	}

	return &Service{
		webauthn:   wa,
		config:     params.Config,
		users:      params.UserStore,
		creds:      params.CredentialStore,
		codes:      params.RecoveryCodeStore,
		challenges: challenges,
	}, nil
}

// BeginRegistration starts the registration ceremony for userID, creating
// the account if it does not exist yet. Creating on first contact is a
// documented side effect: the account is an identifier with credentials
// attached, so registration is the only way an account comes into being.
// Returns the creation options to send to the client.
func (s *Service) BeginRegistration(ctx context.Context, userID string) (*protocol.CredentialCreation, error) {
	if userID == "" {
		return nil, NewError("begin registration", ErrInvalidRequest)
	}

	user, err := s.users.Get(ctx, userID)
	if err != nil {
		if !IsUserNotFound(err) {
			return nil, WrapError("get user", err)
		}
		user = &User{ID: userID, CreatedAt: time.Now().UTC()}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, WrapError("create user", err)
		}
	}

	existing, err := s.creds.GetByUser(ctx, userID)
	if err != nil {
		return nil, WrapError("get credentials", err)
	}

	options, session, err := s.webauthn.BeginRegistration(
		&ceremonyUser{user: user, creds: existing},
		webauthn.WithExclusions(excludeList(existing)),
	)
	if err != nil {
		return nil, WrapError("begin registration", err)
	}

	if err := s.challenges.Issue(ctx, userID, session); err != nil {
		return nil, WrapError("issue challenge", err)
	}

	return options, nil
}

// FinishRegistration completes the registration ceremony: it consumes the
// user's live challenge, verifies the attestation response, persists the new
// credential, and issues a fresh set of recovery codes.
func (s *Service) FinishRegistration(ctx context.Context, userID string, response *protocol.ParsedCredentialCreationData) (*RegistrationResult, error) {
	if userID == "" || response == nil {
		return nil, NewError("finish registration", ErrInvalidRequest)
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

	codes, err := s.issueRecoveryCodes(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &RegistrationResult{Credential: cred, RecoveryCodes: codes}, nil
}

// BeginLogin starts the authentication ceremony for an existing user with at
// least one registered credential. Returns the assertion options.
func (s *Service) BeginLogin(ctx context.Context, userID string) (*protocol.CredentialAssertion, error) {
	if userID == "" {
		return nil, NewError("begin login", ErrInvalidRequest)
	}

	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, WrapError("get user", err)
	}

	creds, err := s.creds.GetByUser(ctx, userID)
	if err != nil {
		return nil, WrapError("get credentials", err)
	}
	if len(creds) == 0 {
		return nil, NewError("begin login", ErrNoCredentials)
	}

	options, session, err := s.webauthn.BeginLogin(&ceremonyUser{user: user, creds: creds})
	if err != nil {
		return nil, WrapError("begin login", err)
	}

	if err := s.challenges.Issue(ctx, userID, session); err != nil {
		return nil, WrapError("issue challenge", err)
	}

	return options, nil
}

// FinishLogin completes the authentication ceremony: it consumes the user's
// live challenge, validates the assertion signature, and advances the
// credential's signature counter. A counter that fails to advance (except
// when both old and new are zero, as with counter-less authenticators) is
// treated as evidence of a cloned authenticator and the login is rejected.
func (s *Service) FinishLogin(ctx context.Context, userID string, response *protocol.ParsedCredentialAssertionData) (*LoginResult, error) {
	if userID == "" || response == nil {
		return nil, NewError("finish login", ErrInvalidRequest)
	}

	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, WrapError("get user", err)
	}

	creds, err := s.creds.GetByUser(ctx, userID)
	if err != nil {
		return nil, WrapError("get credentials", err)
	}
	if len(creds) == 0 {
		return nil, NewError("finish login", ErrNoCredentials)
	}

	session, err := s.challenges.Consume(ctx, userID, response.Response.CollectedClientData.Challenge)
	if err != nil {
		return nil, WrapError("consume challenge", err)
	}

	credential, err := s.webauthn.ValidateLogin(&ceremonyUser{user: user, creds: creds}, *session, response)
	if err != nil {
		return nil, NewError("validate login", fmt.Errorf("%w: %v", ErrVerificationFailed, err))
	}

	if credential.Authenticator.CloneWarning {
		return nil, NewError("validate login", ErrClonedAuthenticator)
	}

	stored, err := s.creds.GetByID(ctx, credential.ID)
	if err != nil {
		return nil, WrapError("get credential", err)
	}

	now := time.Now().UTC()
	if err := s.creds.AdvanceSignCount(ctx, credential.ID, credential.Authenticator.SignCount, now); err != nil {
		if errors.Is(err, ErrCounterRegression) {
			return nil, NewError("advance sign count", ErrClonedAuthenticator)
		}
		return nil, WrapError("advance sign count", err)
	}

	stored.SignCount = credential.Authenticator.SignCount
	stored.LastUsedAt = now

	return &LoginResult{Credential: stored}, nil
}

// GetUser retrieves a user by ID.
func (s *Service) GetUser(ctx context.Context, userID string) (*User, error) {
	return s.users.Get(ctx, userID)
}

// GetCredentials retrieves all credentials for a user.
func (s *Service) GetCredentials(ctx context.Context, userID string) ([]*Credential, error) {
	return s.creds.GetByUser(ctx, userID)
}

// issueRecoveryCodes generates, hashes, and persists a fresh code set,
// replacing any existing set. Returns the plaintext codes.
func (s *Service) issueRecoveryCodes(ctx context.Context, userID string) ([]string, error) {
	codes, err := recoverycode.GenerateSet(recoverycode.DefaultSetSize)
	if err != nil {
		return nil, WrapError("generate recovery codes", err)
	}
	if err := s.codes.Replace(ctx, userID, recoverycode.HashSet(codes)); err != nil {
		return nil, WrapError("save recovery codes", err)
	}
	return codes, nil
}

// excludeList converts stored credentials into an exclusion list so an
// authenticator that already holds a credential for this account refuses to
// create a duplicate.
func excludeList(creds []*Credential) []protocol.CredentialDescriptor {
	list := make([]protocol.CredentialDescriptor, len(creds))
	for i, cred := range creds {
		list[i] = protocol.CredentialDescriptor{
			Type:         protocol.PublicKeyCredentialType,
			CredentialID: cred.ID,
			Transport:    cred.Transport,
		}
	}
	return list
}
