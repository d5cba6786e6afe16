// Copyright (c) 2025 TapLock Contributors
//
// This file is part of taplock.
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0).
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

// Package vaultcrypt implements the client-side envelope encryption that
// binds a passkey credential to a symmetric vault key.
//
// The key is derived from the credential identifier (key material) and the
// user identifier (salt) with PBKDF2-SHA256, so the same passkey always
// re-derives the same key and the server never sees anything but ciphertext.
// Each secret value is sealed with AES-256-GCM under a fresh random nonce.
package vaultcrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/pbkdf2"
)

const (
	kdfIterations = 100_000
	keyLength     = 32
	nonceLength   = 12
)

var (
	// ErrNoKey is returned when Encrypt or Decrypt is called before
	// DeriveKey, or after Clear.
	ErrNoKey = errors.New("vault key not derived")

	// ErrDecryptFailed is returned when the authentication tag does not
	// verify: wrong key, tampered ciphertext, or mismatched nonce.
	ErrDecryptFailed = errors.New("decryption failed")
)

// Vault holds the derived symmetric key for the lifetime of a session.
// The zero value is usable and starts with no key. Safe for concurrent use.
type Vault struct {
	mu   sync.RWMutex
	key  []byte
	aead cipher.AEAD
}

// New returns an empty vault with no key material.
func New() *Vault {
	return &Vault{}
}

// DeriveKey derives the vault key from the credential and user identifiers.
// Deriving again with the same inputs yields the same key, which is how a
// restored session regains access to previously sealed values.
func (v *Vault) DeriveKey(credentialID, userID string) error {
	if credentialID == "" {
		return fmt.Errorf("credential id is required")
	}
	if userID == "" {
		return fmt.Errorf("user id is required")
	}

	key := pbkdf2.Key([]byte(credentialID), []byte(userID), kdfIterations, keyLength, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return fmt.Errorf("init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("init gcm: %w", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.zeroKey()
	v.key = key
	v.aead = aead
	return nil
}

// Encrypt seals plaintext under a fresh random nonce and returns the
// ciphertext and nonce, both base64-encoded for transport and storage.
func (v *Vault) Encrypt(plaintext string) (ciphertext, nonce string, err error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.aead == nil {
		return "", "", ErrNoKey
	}

	rawNonce := make([]byte, nonceLength)
	if _, err := rand.Read(rawNonce); err != nil {
		return "", "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := v.aead.Seal(nil, rawNonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed),
		base64.StdEncoding.EncodeToString(rawNonce), nil
}

// Decrypt opens a sealed value. It fails closed: any authentication failure
// returns ErrDecryptFailed rather than garbage plaintext.
func (v *Vault) Decrypt(ciphertext, nonce string) (string, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.aead == nil {
		return "", ErrNoKey
	}

	sealed, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrDecryptFailed
	}
	rawNonce, err := base64.StdEncoding.DecodeString(nonce)
	if err != nil || len(rawNonce) != nonceLength {
		return "", ErrDecryptFailed
	}

	plaintext, err := v.aead.Open(nil, rawNonce, sealed, nil)
	if err != nil {
		return "", ErrDecryptFailed
	}
	return string(plaintext), nil
}

// HasKey reports whether a key is currently derived.
func (v *Vault) HasKey() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.aead != nil
}

// Clear zeroizes and drops the key. Called on logout or session end; the key
// is re-derived on the next session from the same credential identifier.
func (v *Vault) Clear() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.zeroKey()
	v.key = nil
	v.aead = nil
}

func (v *Vault) zeroKey() {
	for i := range v.key {
		v.key[i] = 0
	}
}
