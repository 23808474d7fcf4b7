// Stridemap - Fitness Activity Maps
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridemap

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/redis/go-redis/v9"
)

// SessionStoreType defines the type of session storage backend.
type SessionStoreType string

const (
	// SessionStoreMemory is the default; sessions are lost on restart.
	SessionStoreMemory SessionStoreType = "memory"

	// SessionStoreBadger persists sessions in the shared BadgerDB.
	SessionStoreBadger SessionStoreType = "badger"

	// SessionStoreRedis keeps sessions in Redis so several replicas can share them.
	SessionStoreRedis SessionStoreType = "redis"
)

// SessionStoreConfig selects and configures a backend.
type SessionStoreConfig struct {
	Type SessionStoreType

	// DB is required for SessionStoreBadger and is not closed by the factory.
	DB *badger.DB

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// SessionStoreFactory creates the configured SessionStore and owns any
// connection it had to open.
type SessionStoreFactory struct {
	store SessionStore
	redis *redis.Client
}

// NewSessionStoreFactory opens the backend named by cfg.Type.
// A Redis backend is pinged before it is returned.
func NewSessionStoreFactory(ctx context.Context, cfg SessionStoreConfig) (*SessionStoreFactory, error) {
	switch cfg.Type {
	case SessionStoreMemory, "":
		return &SessionStoreFactory{store: NewMemorySessionStore()}, nil

	case SessionStoreBadger:
		if cfg.DB == nil {
			return nil, fmt.Errorf("badger session store requires an open database")
		}
		return &SessionStoreFactory{store: NewBadgerSessionStore(cfg.DB)}, nil

	case SessionStoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:         cfg.RedisAddr,
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		})

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		return &SessionStoreFactory{
			store: NewRedisSessionStore(client, DefaultRedisKeyPrefix),
			redis: client,
		}, nil

	default:
		return nil, fmt.Errorf("unknown session store type %q", cfg.Type)
	}
}

// Store returns the session store.
func (f *SessionStoreFactory) Store() SessionStore {
	return f.store
}

// Close releases the Redis client if one was opened.
func (f *SessionStoreFactory) Close() error {
	if f.redis != nil {
		return f.redis.Close()
	}
	return nil
}
