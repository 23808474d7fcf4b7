// Stridemap - Fitness Activity Maps
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridemap

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// Key prefixes for BadgerDB storage
const (
	sessionKeyPrefix = "session:"
)

// maxTxnAttempts bounds retries of a read-modify-write that lost a conflict.
const maxTxnAttempts = 10

// BadgerSessionStore persists sessions in BadgerDB. Entries carry a Badger
// TTL matching ExpiresAt, so abandoned sessions disappear even if the
// janitor never runs.
type BadgerSessionStore struct {
	db *badger.DB
}

// NewBadgerSessionStore uses an already opened database. The caller owns db.
func NewBadgerSessionStore(db *badger.DB) *BadgerSessionStore {
	return &BadgerSessionStore{db: db}
}

func sessionKey(id string) []byte {
	return []byte(sessionKeyPrefix + id)
}

func (s *BadgerSessionStore) put(txn *badger.Txn, session *Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}
	return txn.SetEntry(badger.NewEntry(sessionKey(session.ID), data).WithTTL(ttl))
}

// update runs fn in a read-write transaction, retrying on badger.ErrConflict.
func (s *BadgerSessionStore) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxTxnAttempts; attempt++ {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	return fmt.Errorf("update session: %w", err)
}

func (s *BadgerSessionStore) Create(ctx context.Context, session *Session) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return s.put(txn, session)
	})
}

func readSession(txn *badger.Txn, id string) (*Session, error) {
	item, err := txn.Get(sessionKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var session Session
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &session)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}

func (s *BadgerSessionStore) Get(ctx context.Context, id string) (*Session, error) {
	var session *Session
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		session, err = readSession(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if session.IsExpired() {
		return nil, ErrSessionExpired
	}
	return session, nil
}

func (s *BadgerSessionStore) Update(ctx context.Context, session *Session) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		if _, err := readSession(txn, session.ID); err != nil {
			return err
		}
		return s.put(txn, session)
	})
}

func (s *BadgerSessionStore) Modify(ctx context.Context, id string, fn func(*Session)) (*Session, error) {
	var result *Session
	err := s.update(ctx, func(txn *badger.Txn) error {
		session, err := readSession(txn, id)
		if err != nil {
			return err
		}
		if session.IsExpired() {
			return ErrSessionExpired
		}
		fn(session)
		if err := s.put(txn, session); err != nil {
			return err
		}
		result = session
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *BadgerSessionStore) Delete(ctx context.Context, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(sessionKey(id)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete session: %w", err)
		}
		return nil
	})
}

func (s *BadgerSessionStore) Touch(ctx context.Context, id string, newExpiry time.Time) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		session, err := readSession(txn, id)
		if err != nil {
			return err
		}
		session.LastAccessedAt = time.Now()
		session.ExpiresAt = newExpiry
		return s.put(txn, session)
	})
}

// scan calls fn for every decodable session.
func (s *BadgerSessionStore) scan(fn func(*Session)) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(sessionKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var session Session
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &session)
			})
			if err != nil {
				continue
			}
			fn(&session)
		}
		return nil
	})
}

func (s *BadgerSessionStore) CleanupExpired(ctx context.Context) (int, error) {
	var expiredIDs []string
	err := s.scan(func(session *Session) {
		if session.IsExpired() {
			expiredIDs = append(expiredIDs, session.ID)
		}
	})
	if err != nil {
		return 0, fmt.Errorf("scan sessions: %w", err)
	}

	count := 0
	for _, id := range expiredIDs {
		if err := s.Delete(ctx, id); err != nil {
			continue
		}
		count++
	}
	return count, nil
}

func (s *BadgerSessionStore) ActiveUserIDs(ctx context.Context) (map[string]struct{}, error) {
	ids := make(map[string]struct{})
	err := s.scan(func(session *Session) {
		if !session.IsExpired() {
			ids[session.UserID] = struct{}{}
		}
	})
	if err != nil {
		return nil, fmt.Errorf("scan sessions: %w", err)
	}
	return ids, nil
}

// Count returns the number of stored sessions, expired or not.
func (s *BadgerSessionStore) Count(ctx context.Context) (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(sessionKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}
