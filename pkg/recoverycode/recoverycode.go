// Copyright (c) 2025 TapLock Contributors
//
// This file is part of taplock.
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0).
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

// Package recoverycode generates, validates, and hashes single-use account
// recovery codes.
//
// Codes are rendered as three dash-separated groups of four characters drawn
// from an alphabet that excludes visually ambiguous symbols (0, O, I, 1, L).
// Only a slow keyed hash of each code is ever stored; the plaintext is shown
// to the user exactly once.
package recoverycode

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// Alphabet is the character set recovery codes are drawn from. It excludes
// 0, O, I, 1, and L so transcribed codes cannot be misread.
const Alphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const (
	// CodeLength is the number of alphabet characters in a normalized code.
	CodeLength = 12

	// GroupSize is the number of characters per dash-separated group.
	GroupSize = 4

	// DefaultSetSize is the number of codes issued per registration or
	// recovery rotation.
	DefaultSetSize = 12
)

// Hashing parameters. The salt is fixed application-wide: the codes
// themselves are high-entropy random values, so a per-code salt adds
// nothing while a fixed salt keeps lookups a single indexed query.
const (
	hashSalt       = "taplock-recovery-salt-v1"
	hashIterations = 100_000
	hashKeyLength  = 32
)

// Generate returns a single recovery code in XXXX-XXXX-XXXX form using
// crypto/rand for character selection.
func Generate() (string, error) {
	raw := make([]byte, CodeLength)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}

	var b strings.Builder
	b.Grow(CodeLength + CodeLength/GroupSize - 1)
	for i, r := range raw {
		if i > 0 && i%GroupSize == 0 {
			b.WriteByte('-')
		}
		b.WriteByte(Alphabet[int(r)%len(Alphabet)])
	}
	return b.String(), nil
}

// GenerateSet returns count unique recovery codes, resampling on the
// (astronomically unlikely) collision. Count must be at least 1.
func GenerateSet(count int) ([]string, error) {
	if count < 1 {
		return nil, fmt.Errorf("invalid recovery code count: %d", count)
	}

	seen := make(map[string]struct{}, count)
	codes := make([]string, 0, count)
	for len(codes) < count {
		code, err := Generate()
		if err != nil {
			return nil, err
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes, nil
}

// Normalize strips separators and upper-cases a user-entered code.
func Normalize(code string) string {
	code = strings.ToUpper(code)
	return strings.Map(func(r rune) rune {
		if r == '-' || r == ' ' {
			return -1
		}
		return r
	}, code)
}

// Valid reports whether code is a well-formed recovery code: exactly
// CodeLength alphabet characters after normalization. Separators are
// optional on input.
func Valid(code string) bool {
	normalized := Normalize(code)
	if len(normalized) != CodeLength {
		return false
	}
	for _, r := range normalized {
		if !strings.ContainsRune(Alphabet, r) {
			return false
		}
	}
	return true
}

// Hash derives the storage hash for a code: PBKDF2-SHA256 over the
// normalized form with the fixed application salt, base64-encoded.
// The same code always hashes to the same value, which is what makes
// the unused-code lookup a plain indexed query.
func Hash(code string) string {
	normalized := Normalize(code)
	derived := pbkdf2.Key([]byte(normalized), []byte(hashSalt), hashIterations, hashKeyLength, sha256.New)
	return base64.StdEncoding.EncodeToString(derived)
}

// HashSet hashes every code in the set, preserving order.
func HashSet(codes []string) []string {
	hashes := make([]string, len(codes))
	for i, code := range codes {
		hashes[i] = Hash(code)
	}
	return hashes
}
