// Stridemap - Fitness Activity Maps
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridemap

package share

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// ErrObjectNotFound is returned when an object is missing or has expired.
var ErrObjectNotFound = errors.New("shared object not found")

const objectKeyPrefix = "share:"

// Object is a stored artifact.
type Object struct {
	ContentType string    `json:"content_type"`
	Data        []byte    `json:"data"`
	CreatedAt   time.Time `json:"created_at"`
}

// ObjectStore keeps uploaded artifacts until their TTL runs out.
type ObjectStore interface {
	Put(ctx context.Context, key string, obj *Object, ttl time.Duration) error
	Get(ctx context.Context, key string) (*Object, error)
	Delete(ctx context.Context, key string) error
}

// BadgerObjectStore stores objects as BadgerDB entries with a TTL, so
// expiry needs no sweeper.
type BadgerObjectStore struct {
	db *badger.DB
}

// NewBadgerObjectStore uses db, which the caller owns.
func NewBadgerObjectStore(db *badger.DB) *BadgerObjectStore {
	return &BadgerObjectStore{db: db}
}

func (s *BadgerObjectStore) Put(ctx context.Context, key string, obj *Object, ttl time.Duration) error {
	data, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("marshal object: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(objectKeyPrefix+key), data).WithTTL(ttl))
	})
}

func (s *BadgerObjectStore) Get(ctx context.Context, key string) (*Object, error) {
	var obj Object
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(objectKeyPrefix + key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &obj)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}
	return &obj, nil
}

func (s *BadgerObjectStore) Delete(ctx context.Context, key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(objectKeyPrefix + key))
	})
}
