// Stridemap - Fitness Activity Maps
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridemap

package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/stridemap/internal/logging"
	"github.com/tomtom215/stridemap/internal/metrics"
)

// SessionSource is satisfied by every auth.SessionStore.
type SessionSource interface {
	CleanupExpired(ctx context.Context) (int, error)
	ActiveUserIDs(ctx context.Context) (map[string]struct{}, error)
}

// MapPruner is satisfied by *mapstore.Store.
type MapPruner interface {
	PruneExcept(keep map[string]struct{}) (int, error)
}

// StateSource is satisfied by auth.StateStore.
type StateSource interface {
	CleanupExpired(ctx context.Context) (int, error)
}

// SessionSweep drops expired sessions, then removes the map directory of
// every user without a live session, then drops expired OAuth states.
type SessionSweep struct {
	Sessions SessionSource
	Maps     MapPruner
	States   StateSource // optional
}

// Run performs one sweep. Map directories are only pruned when the set of
// live users could be read.
func (s *SessionSweep) Run(ctx context.Context) error {
	log := logging.WithComponent("session-janitor")
	var errs []error

	expired, err := s.Sessions.CleanupExpired(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("cleanup sessions: %w", err))
	}
	if expired > 0 {
		metrics.SessionsDestroyed.WithLabelValues("expired").Add(float64(expired))
	}

	pruned := 0
	active, err := s.Sessions.ActiveUserIDs(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("list active users: %w", err))
	} else {
		if pruned, err = s.Maps.PruneExcept(active); err != nil {
			errs = append(errs, fmt.Errorf("prune maps: %w", err))
		}
	}

	states := 0
	if s.States != nil {
		if states, err = s.States.CleanupExpired(ctx); err != nil {
			errs = append(errs, fmt.Errorf("cleanup oauth states: %w", err))
		}
	}

	if expired+pruned+states > 0 {
		log.Info().
			Int("sessions_expired", expired).
			Int("map_dirs_pruned", pruned).
			Int("states_expired", states).
			Msg("Session sweep completed")
	}
	return errors.Join(errs...)
}

// ExpiringCache is satisfied by *cache.Cache.
type ExpiringCache interface {
	Name() string
	Cleanup() int
}

// CacheSweep returns a sweep that evicts expired entries from caches.
func CacheSweep(caches ...ExpiringCache) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		log := logging.WithComponent("cache-janitor")
		for _, c := range caches {
			if n := c.Cleanup(); n > 0 {
				log.Debug().Str("cache", c.Name()).Int("evicted", n).Msg("Expired cache entries removed")
			}
		}
		return nil
	}
}

// ValueLogCollector is satisfied by *badger.DB.
type ValueLogCollector interface {
	RunValueLogGC(discardRatio float64) error
}

// BadgerGCSweep rewrites value log files until badger reports there is
// nothing left to reclaim.
func BadgerGCSweep(db ValueLogCollector, discardRatio float64) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		for ctx.Err() == nil {
			err := db.RunValueLogGC(discardRatio)
			if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("badger value log gc: %w", err)
			}
		}
		return nil
	}
}
