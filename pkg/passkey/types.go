// Copyright (c) 2025 TapLock Contributors
//
// This file is part of taplock.
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0).
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package passkey

import (
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

// User is a TapLock account. Accounts are identified by a caller-chosen
// opaque string (a username or handle); there is no email, password, or
// profile. A user is nothing more than an identifier with passkeys
// attached to it.
type User struct {
	// ID is the user identifier, also used as the WebAuthn user handle.
	ID string `json:"id"`

	// CreatedAt is when the account was first seen.
	CreatedAt time.Time `json:"created_at"`
}

// Credential represents a WebAuthn credential stored by the Relying Party.
// This wraps the go-webauthn Credential type with additional metadata.
type Credential struct {
	// ID is the credential identifier assigned by the authenticator.
	ID []byte `json:"id"`

	// UserID is the account this credential belongs to.
	UserID string `json:"user_id"`

	// PublicKey is the credential's public key in COSE format.
	PublicKey []byte `json:"public_key"`

	// AttestationType indicates the type of attestation used.
	AttestationType string `json:"attestation_type"`

	// Transport lists the transports supported by the authenticator.
	Transport []protocol.AuthenticatorTransport `json:"transport,omitempty"`

	// Flags contains authenticator flags.
	Flags CredentialFlags `json:"flags"`

	// AAGUID is the authenticator's model identifier.
	AAGUID []byte `json:"aaguid"`

	// SignCount is the signature counter for clone detection.
	SignCount uint32 `json:"sign_count"`

	// CreatedAt is when the credential was registered.
	CreatedAt time.Time `json:"created_at"`

	// LastUsedAt is when the credential was last used for authentication.
	LastUsedAt time.Time `json:"last_used_at,omitempty"`
}

// CredentialFlags contains authenticator capability flags.
type CredentialFlags struct {
	// UserPresent indicates the user was present during the operation.
	UserPresent bool `json:"user_present"`

	// UserVerified indicates the user was verified (e.g., biometric, PIN).
	UserVerified bool `json:"user_verified"`

	// BackupEligible indicates the credential can be backed up.
	BackupEligible bool `json:"backup_eligible"`

	// BackupState indicates the credential is currently backed up.
	BackupState bool `json:"backup_state"`
}

// ToWebAuthn converts a Credential to the go-webauthn library's Credential type.
func (c *Credential) ToWebAuthn() webauthn.Credential {
	return webauthn.Credential{
		ID:              c.ID,
		PublicKey:       c.PublicKey,
		AttestationType: c.AttestationType,
		Transport:       c.Transport,
		Flags: webauthn.CredentialFlags{
			UserPresent:    c.Flags.UserPresent,
			UserVerified:   c.Flags.UserVerified,
			BackupEligible: c.Flags.BackupEligible,
			BackupState:    c.Flags.BackupState,
		},
		Authenticator: webauthn.Authenticator{
			AAGUID:    c.AAGUID,
			SignCount: c.SignCount,
		},
	}
}

// FromWebAuthnCredential creates a Credential from the go-webauthn library's type.
func FromWebAuthnCredential(userID string, wc *webauthn.Credential) *Credential {
	return &Credential{
		ID:              wc.ID,
		UserID:          userID,
		PublicKey:       wc.PublicKey,
		AttestationType: wc.AttestationType,
		Transport:       wc.Transport,
		Flags: CredentialFlags{
			UserPresent:    wc.Flags.UserPresent,
			UserVerified:   wc.Flags.UserVerified,
			BackupEligible: wc.Flags.BackupEligible,
			BackupState:    wc.Flags.BackupState,
		},
		AAGUID:    wc.Authenticator.AAGUID,
		SignCount: wc.Authenticator.SignCount,
		CreatedAt: time.Now().UTC(),
	}
}

// RecoveryCode is a stored, hashed recovery code. The plaintext is never
// persisted; matching is by keyed hash only.
type RecoveryCode struct {
	// ID is the store-assigned identifier for this code.
	ID int64 `json:"id"`

	// UserID is the account the code belongs to.
	UserID string `json:"user_id"`

	// CodeHash is the PBKDF2 hash of the normalized code, base64-encoded.
	CodeHash string `json:"-"`

	// Used indicates the code has been consumed and can never match again.
	Used bool `json:"used"`

	// UsedAt is when the code was consumed, if it was.
	UsedAt *time.Time `json:"used_at,omitempty"`

	// CreatedAt is when the code was issued.
	CreatedAt time.Time `json:"created_at"`
}

// ceremonyUser adapts a User plus their stored credentials to the
// webauthn.User interface for the duration of one ceremony.
type ceremonyUser struct {
	user  *User
	creds []*Credential
}

func (u *ceremonyUser) WebAuthnID() []byte {
	return []byte(u.user.ID)
}

func (u *ceremonyUser) WebAuthnName() string {
	return u.user.ID
}

func (u *ceremonyUser) WebAuthnDisplayName() string {
	return u.user.ID
}

func (u *ceremonyUser) WebAuthnCredentials() []webauthn.Credential {
	creds := make([]webauthn.Credential, len(u.creds))
	for i, c := range u.creds {
		creds[i] = c.ToWebAuthn()
	}
	return creds
}
