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

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisKeyPrefix namespaces session keys in a shared Redis.
const DefaultRedisKeyPrefix = "stridemap:session:"

// RedisSessionStore keeps sessions as JSON strings with a Redis TTL.
// Redis drops expired keys itself, so CleanupExpired has nothing to do.
type RedisSessionStore struct {
	client *redis.Client
	prefix string
}

// NewRedisSessionStore wraps client. The caller owns client.
func NewRedisSessionStore(client *redis.Client, prefix string) *RedisSessionStore {
	if prefix == "" {
		prefix = DefaultRedisKeyPrefix
	}
	return &RedisSessionStore{client: client, prefix: prefix}
}

func (s *RedisSessionStore) key(id string) string {
	return s.prefix + id
}

func (s *RedisSessionStore) set(ctx context.Context, session *Session, mode string) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}

	args := redis.SetArgs{TTL: ttl, Mode: mode}
	err = s.client.SetArgs(ctx, s.key(session.ID), data, args).Err()
	if errors.Is(err, redis.Nil) {
		// XX on a missing key
		return ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Create(ctx context.Context, session *Session) error {
	return s.set(ctx, session, "")
}

func (s *RedisSessionStore) Get(ctx context.Context, id string) (*Session, error) {
	val, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session: %w", err)
	}

	var session Session
	if err := json.Unmarshal(val, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	if session.IsExpired() {
		return nil, ErrSessionExpired
	}
	return &session, nil
}

func (s *RedisSessionStore) Update(ctx context.Context, session *Session) error {
	return s.set(ctx, session, "XX")
}

func (s *RedisSessionStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("redis delete session: %w", err)
	}
	return nil
}

// Modify runs fn inside WATCH/MULTI and retries when another client
// changed the key first.
func (s *RedisSessionStore) Modify(ctx context.Context, id string, fn func(*Session)) (*Session, error) {
	key := s.key(id)

	var result *Session
	txf := func(tx *redis.Tx) error {
		val, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrSessionNotFound
		}
		if err != nil {
			return fmt.Errorf("redis get session: %w", err)
		}

		var session Session
		if err := json.Unmarshal(val, &session); err != nil {
			return fmt.Errorf("unmarshal session: %w", err)
		}
		if session.IsExpired() {
			return ErrSessionExpired
		}
		fn(&session)

		data, err := json.Marshal(&session)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}
		ttl := time.Until(session.ExpiresAt)
		if ttl <= 0 {
			ttl = time.Second
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, ttl)
			return nil
		})
		if err != nil {
			return err
		}
		result = &session
		return nil
	}

	for attempt := 0; attempt < maxTxnAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	return nil, fmt.Errorf("redis modify session: %w", redis.TxFailedErr)
}

func (s *RedisSessionStore) Touch(ctx context.Context, id string, newExpiry time.Time) error {
	_, err := s.Modify(ctx, id, func(session *Session) {
		session.LastAccessedAt = time.Now()
		session.ExpiresAt = newExpiry
	})
	if errors.Is(err, ErrSessionExpired) {
		return ErrSessionNotFound
	}
	return err
}

func (s *RedisSessionStore) CleanupExpired(ctx context.Context) (int, error) {
	return 0, nil
}

func (s *RedisSessionStore) ActiveUserIDs(ctx context.Context) (map[string]struct{}, error) {
	ids := make(map[string]struct{})

	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		val, err := s.client.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			// expired between SCAN and GET
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redis get session: %w", err)
		}
		var session Session
		if err := json.Unmarshal(val, &session); err != nil {
			continue
		}
		if !session.IsExpired() {
			ids[session.UserID] = struct{}{}
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan sessions: %w", err)
	}
	return ids, nil
}
