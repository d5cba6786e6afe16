// Copyright (c) 2025 TapLock Contributors
//
// This file is part of taplock.
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0).
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package passkey

import (
	"context"
	"encoding/hex"
	"sync"
	"time"
)

// MemoryUserStore is an in-memory implementation of UserStore for
// single-instance deployments and tests.
type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]*User
}

// NewMemoryUserStore creates a new in-memory user store.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		users: make(map[string]*User),
	}
}

// Get retrieves a user by ID.
func (s *MemoryUserStore) Get(_ context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

// Create persists a new user.
func (s *MemoryUserStore) Create(_ context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; ok {
		return ErrUserAlreadyExists
	}
	copied := *user
	s.users[user.ID] = &copied
	return nil
}

// MemoryCredentialStore is an in-memory implementation of CredentialStore.
type MemoryCredentialStore struct {
	mu     sync.RWMutex
	byID   map[string]*Credential
	byUser map[string][]string
}

// NewMemoryCredentialStore creates a new in-memory credential store.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{
		byID:   make(map[string]*Credential),
		byUser: make(map[string][]string),
	}
}

// GetByUser retrieves all credentials for a user.
func (s *MemoryCredentialStore) GetByUser(_ context.Context, userID string) ([]*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := s.byUser[userID]
	creds := make([]*Credential, 0, len(keys))
	for _, key := range keys {
		if cred, ok := s.byID[key]; ok {
			copied := *cred
			creds = append(creds, &copied)
		}
	}
	return creds, nil
}

// GetByID retrieves a credential by its ID.
func (s *MemoryCredentialStore) GetByID(_ context.Context, credentialID []byte) (*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, ok := s.byID[hex.EncodeToString(credentialID)]
	if !ok {
		return nil, ErrCredentialNotFound
	}
	copied := *cred
	return &copied, nil
}

// Save persists a new credential.
func (s *MemoryCredentialStore) Save(_ context.Context, cred *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := hex.EncodeToString(cred.ID)
	if _, ok := s.byID[key]; !ok {
		s.byUser[cred.UserID] = append(s.byUser[cred.UserID], key)
	}
	copied := *cred
	s.byID[key] = &copied
	return nil
}

// AdvanceSignCount conditionally advances the stored signature counter.
func (s *MemoryCredentialStore) AdvanceSignCount(_ context.Context, credentialID []byte, signCount uint32, usedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, ok := s.byID[hex.EncodeToString(credentialID)]
	if !ok {
		return ErrCredentialNotFound
	}

	// Advance only forward; both-zero passes for counter-less authenticators.
	if !(signCount > cred.SignCount || (signCount == 0 && cred.SignCount == 0)) {
		return ErrCounterRegression
	}

	cred.SignCount = signCount
	cred.LastUsedAt = usedAt
	return nil
}

// MemoryRecoveryCodeStore is an in-memory implementation of RecoveryCodeStore.
type MemoryRecoveryCodeStore struct {
	mu     sync.Mutex
	nextID int64
	byUser map[string][]*RecoveryCode
}

// NewMemoryRecoveryCodeStore creates a new in-memory recovery code store.
func NewMemoryRecoveryCodeStore() *MemoryRecoveryCodeStore {
	return &MemoryRecoveryCodeStore{
		nextID: 1,
		byUser: make(map[string][]*RecoveryCode),
	}
}

// Replace atomically swaps the user's code set for a fresh one.
func (s *MemoryRecoveryCodeStore) Replace(_ context.Context, userID string, hashes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byUser[userID] = s.insertLocked(userID, hashes)
	return nil
}

// FindUnused retrieves the unused code matching (userID, codeHash).
func (s *MemoryRecoveryCodeStore) FindUnused(_ context.Context, userID, codeHash string) (*RecoveryCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, code := range s.byUser[userID] {
		if !code.Used && code.CodeHash == codeHash {
			copied := *code
			return &copied, nil
		}
	}
	return nil, ErrRecoveryCodeNotFound
}

// ConsumeAndRotate marks the identified code used and replaces the set, all
// under one lock so concurrent recoveries with the same code cannot both
// succeed.
func (s *MemoryRecoveryCodeStore) ConsumeAndRotate(_ context.Context, userID string, codeID int64, newHashes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched *RecoveryCode
	for _, code := range s.byUser[userID] {
		if code.ID == codeID && !code.Used {
			matched = code
			break
		}
	}
	if matched == nil {
		return ErrRecoveryCodeNotFound
	}

	now := time.Now().UTC()
	matched.Used = true
	matched.UsedAt = &now

	s.byUser[userID] = s.insertLocked(userID, newHashes)
	return nil
}

// CountUnused returns the number of live codes for a user.
func (s *MemoryRecoveryCodeStore) CountUnused(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, code := range s.byUser[userID] {
		if !code.Used {
			n++
		}
	}
	return n, nil
}

// insertLocked builds a fresh code set. Callers hold s.mu.
func (s *MemoryRecoveryCodeStore) insertLocked(userID string, hashes []string) []*RecoveryCode {
	now := time.Now().UTC()
	codes := make([]*RecoveryCode, len(hashes))
	for i, hash := range hashes {
		codes[i] = &RecoveryCode{
			ID:        s.nextID,
			UserID:    userID,
			CodeHash:  hash,
			CreatedAt: now,
		}
		s.nextID++
	}
	return codes
}
