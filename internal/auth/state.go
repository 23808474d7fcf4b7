// Stridemap - Fitness Activity Maps
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridemap

package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrStateNotFound indicates the state was not found in the store.
	ErrStateNotFound = errors.New("state not found")

	// ErrStateExpired indicates the state has expired.
	ErrStateExpired = errors.New("state expired")
)

// DefaultStateTTL bounds how long a user may sit on the Strava consent page.
const DefaultStateTTL = 10 * time.Minute

// OAuthState is what the app remembers between /login and /auth.
type OAuthState struct {
	CreatedAt time.Time
	ExpiresAt time.Time
}

// IsExpired checks if the state has expired.
func (s *OAuthState) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// StateStore holds pending OAuth state parameters.
type StateStore interface {
	Store(ctx context.Context, key string, state *OAuthState) error
	Get(ctx context.Context, key string) (*OAuthState, error)
	Delete(ctx context.Context, key string) error
	// Consume returns the state and removes it in one step, so a state can
	// be redeemed at most once.
	Consume(ctx context.Context, key string) (*OAuthState, error)
	CleanupExpired(ctx context.Context) (int, error)
}

// MemoryStateStore is an in-memory StateStore.
type MemoryStateStore struct {
	mu     sync.RWMutex
	states map[string]OAuthState
}

// NewMemoryStateStore creates a new in-memory state store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: make(map[string]OAuthState)}
}

func (s *MemoryStateStore) Store(ctx context.Context, key string, state *OAuthState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[key] = *state
	return nil
}

func (s *MemoryStateStore) Get(ctx context.Context, key string) (*OAuthState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[key]
	if !ok {
		return nil, ErrStateNotFound
	}
	if state.IsExpired() {
		return nil, ErrStateExpired
	}
	return &state, nil
}

func (s *MemoryStateStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, key)
	return nil
}

func (s *MemoryStateStore) Consume(ctx context.Context, key string) (*OAuthState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[key]
	if !ok {
		return nil, ErrStateNotFound
	}
	delete(s.states, key)
	if state.IsExpired() {
		return nil, ErrStateExpired
	}
	return &state, nil
}

func (s *MemoryStateStore) CleanupExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for key, state := range s.states {
		if state.IsExpired() {
			delete(s.states, key)
			count++
		}
	}
	return count, nil
}

// GenerateStateParameter returns 32 random bytes, base64url encoded.
func GenerateStateParameter() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
