// Copyright (c) 2025 TapLock Contributors
//
// This file is part of taplock.
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0).
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

// Package passkey orchestrates WebAuthn passkey ceremonies for TapLock:
// registration, authentication, and recovery-code based account recovery.
//
// The package wraps github.com/go-webauthn/webauthn with a user-keyed
// challenge registry (one live challenge per user, single-use, TTL-bound),
// clone detection on the credential signature counter, and atomic rotation
// of recovery codes when a lost authenticator is replaced.
//
// Persistence is injected through the UserStore, CredentialStore, and
// RecoveryCodeStore interfaces; the ChallengeStore interface has an
// in-memory implementation suitable for a single instance.
//
// Basic usage:
//
//	svc, err := passkey.NewService(passkey.ServiceParams{
//	    Config:            &passkey.Config{RPID: "example.com", RPDisplayName: "Example", RPOrigins: []string{"https://example.com"}},
//	    UserStore:         users,
//	    CredentialStore:   creds,
//	    RecoveryCodeStore: codes,
//	    ChallengeStore:    passkey.NewMemoryChallengeStore(0),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	options, err := svc.BeginRegistration(ctx, "alice")
//	// ... send options to the browser, receive the attestation response ...
//	result, err := svc.FinishRegistration(ctx, "alice", parsedResponse)
//	// result.RecoveryCodes holds the plaintext codes, shown exactly once.
package passkey
