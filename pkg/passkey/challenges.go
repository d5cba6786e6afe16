// Copyright (c) 2025 TapLock Contributors
//
// This file is part of taplock.
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0).
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package passkey

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
)

// DefaultChallengeTTL is how long an issued challenge stays consumable.
const DefaultChallengeTTL = 2 * time.Minute

// ChallengeStore holds ceremony session data keyed by user, with at most one
// live challenge per user. Issuing a new challenge replaces any previous one
// (last writer wins), so a user restarting a ceremony invalidates the old
// challenge rather than accumulating live ones.
type ChallengeStore interface {
	// Issue stores session data for the user, replacing any existing entry.
	Issue(ctx context.Context, userID string, session *webauthn.SessionData) error

	// Consume returns the stored session data and deletes the entry, but
	// only when a live, unexpired entry exists whose challenge exactly
	// matches the presented one. Every failure path returns an error and
	// leaves no usable challenge behind; an expired entry is removed on
	// access.
	Consume(ctx context.Context, userID, challenge string) (*webauthn.SessionData, error)

	// Remove deletes the user's entry if present. Used for explicit
	// cleanup after a failed ceremony.
	Remove(ctx context.Context, userID string) error
}

type challengeEntry struct {
	session   *webauthn.SessionData
	expiresAt time.Time
}

// MemoryChallengeStore is an in-memory ChallengeStore for single-instance
// deployments. Safe for concurrent use.
type MemoryChallengeStore struct {
	mu  sync.RWMutex
	ttl time.Duration
	m   map[string]challengeEntry
}

// NewMemoryChallengeStore creates an in-memory challenge store. A ttl of
// zero selects DefaultChallengeTTL.
func NewMemoryChallengeStore(ttl time.Duration) *MemoryChallengeStore {
	if ttl <= 0 {
		ttl = DefaultChallengeTTL
	}
	return &MemoryChallengeStore{
		ttl: ttl,
		m:   make(map[string]challengeEntry),
	}
}

// Issue stores session data for the user, replacing any existing entry.
func (s *MemoryChallengeStore) Issue(_ context.Context, userID string, session *webauthn.SessionData) error {
	if userID == "" || session == nil {
		return NewError("issue challenge", ErrInvalidRequest)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[userID] = challengeEntry{
		session:   session,
		expiresAt: time.Now().Add(s.ttl),
	}
	return nil
}

// Consume implements single-use challenge consumption with exact matching.
func (s *MemoryChallengeStore) Consume(_ context.Context, userID, challenge string) (*webauthn.SessionData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.m[userID]
	if !ok {
		return nil, ErrChallengeNotFound
	}

	if time.Now().After(entry.expiresAt) {
		delete(s.m, userID)
		return nil, ErrChallengeExpired
	}

	if subtle.ConstantTimeCompare([]byte(entry.session.Challenge), []byte(challenge)) != 1 {
		// The stored entry stays live: a mismatched presentation must not
		// burn the challenge the real client is about to present.
		return nil, ErrChallengeMismatch
	}

	delete(s.m, userID)
	return entry.session, nil
}

// Remove deletes the user's entry if present.
func (s *MemoryChallengeStore) Remove(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, userID)
	return nil
}

// Len returns the number of live entries, counting expired ones that have
// not yet been swept.
func (s *MemoryChallengeStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
