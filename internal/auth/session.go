// Stridemap - Fitness Activity Maps
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridemap

// Package auth owns the login session: the Session record, its storage
// backends (memory, BadgerDB, Redis), the cookie middleware and the Strava
// OAuth authorization-code flow with its state store.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/tomtom215/stridemap/internal/strava"
)

var (
	// ErrSessionNotFound is returned when a session is not found in the store.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExpired is returned when trying to access an expired session.
	ErrSessionExpired = errors.New("session expired")
)

// Session is the server-side state behind the session cookie.
type Session struct {
	ID string `json:"id"`

	// UserID is a random identifier that names the user's map directory.
	// It is not the Strava athlete id.
	UserID string `json:"user_id"`

	Athlete strava.Athlete `json:"athlete"`
	Token   *oauth2.Token  `json:"token"`

	// Maps lists activity ids whose map artifact was written for this session.
	Maps []int64 `json:"maps"`

	// Ascending is the direction of the last column sort.
	Ascending bool `json:"ascending"`

	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
}

// NewSession creates a session with fresh session and user ids and an empty map list.
func NewSession(athlete strava.Athlete, token *oauth2.Token, duration time.Duration) *Session {
	now := time.Now()
	return &Session{
		ID:             generateSessionID(),
		UserID:         uuid.NewString(),
		Athlete:        athlete,
		Token:          token,
		Maps:           []int64{},
		CreatedAt:      now,
		ExpiresAt:      now.Add(duration),
		LastAccessedAt: now,
	}
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// HasMap reports whether a map artifact was generated for activityID.
func (s *Session) HasMap(activityID int64) bool {
	return slices.Contains(s.Maps, activityID)
}

// AddMap records activityID once.
func (s *Session) AddMap(activityID int64) {
	if !s.HasMap(activityID) {
		s.Maps = append(s.Maps, activityID)
	}
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	c := *s
	c.Maps = slices.Clone(s.Maps)
	if s.Token != nil {
		tok := *s.Token
		c.Token = &tok
	}
	return &c
}

func generateSessionID() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return hex.EncodeToString([]byte(time.Now().String()))
	}
	return hex.EncodeToString(b)
}

// SessionStore is implemented by the memory, BadgerDB and Redis backends.
type SessionStore interface {
	// Create stores a new session.
	Create(ctx context.Context, session *Session) error

	// Get returns ErrSessionNotFound or ErrSessionExpired when the session
	// is not usable.
	Get(ctx context.Context, id string) (*Session, error)

	// Update replaces an existing session. Returns ErrSessionNotFound if absent.
	Update(ctx context.Context, session *Session) error

	// Modify applies fn to the stored session as one read-modify-write and
	// returns the result. Concurrent Modify calls on the same session never
	// lose each other's changes. fn may run more than once.
	Modify(ctx context.Context, id string, fn func(*Session)) (*Session, error)

	// Delete removes a session. Deleting a missing session is not an error.
	Delete(ctx context.Context, id string) error

	// Touch updates the last access time and moves the expiry.
	Touch(ctx context.Context, id string, newExpiry time.Time) error

	// CleanupExpired removes expired sessions and returns how many went.
	CleanupExpired(ctx context.Context) (int, error)

	// ActiveUserIDs returns the user ids of all unexpired sessions.
	ActiveUserIDs(ctx context.Context) (map[string]struct{}, error)
}

// MemorySessionStore keeps sessions in a map. Sessions are lost on restart.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemorySessionStore creates a new in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]*Session)}
}

func (s *MemorySessionStore) Create(ctx context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session.Clone()
	return nil
}

func (s *MemorySessionStore) Get(ctx context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if session.IsExpired() {
		return nil, ErrSessionExpired
	}
	return session.Clone(), nil
}

func (s *MemorySessionStore) Update(ctx context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.ID]; !ok {
		return ErrSessionNotFound
	}
	s.sessions[session.ID] = session.Clone()
	return nil
}

func (s *MemorySessionStore) Modify(ctx context.Context, id string, fn func(*Session)) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if session.IsExpired() {
		return nil, ErrSessionExpired
	}
	fn(session)
	return session.Clone(), nil
}

func (s *MemorySessionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *MemorySessionStore) Touch(ctx context.Context, id string, newExpiry time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	session.LastAccessedAt = time.Now()
	session.ExpiresAt = newExpiry
	return nil
}

func (s *MemorySessionStore) CleanupExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for id, session := range s.sessions {
		if session.IsExpired() {
			delete(s.sessions, id)
			count++
		}
	}
	return count, nil
}

func (s *MemorySessionStore) ActiveUserIDs(ctx context.Context) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make(map[string]struct{}, len(s.sessions))
	for _, session := range s.sessions {
		if !session.IsExpired() {
			ids[session.UserID] = struct{}{}
		}
	}
	return ids, nil
}
