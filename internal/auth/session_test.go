// Stridemap - Fitness Activity Maps
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridemap

package auth

import (
	"context"
	"errors"
	"os"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"

	"github.com/tomtom215/stridemap/internal/strava"
)

func testAthlete() strava.Athlete {
	return strava.Athlete{ID: 4242, FirstName: "Kari", LastName: "Nordmann", City: "Bergen"}
}

func testSession(t *testing.T, ttl time.Duration) *Session {
	t.Helper()
	return NewSession(testAthlete(), &oauth2.Token{AccessToken: "access", RefreshToken: "refresh"}, ttl)
}

// createTestBadgerDB opens an in-memory BadgerDB that is closed with the test.
func createTestBadgerDB(t *testing.T) *badger.DB {
	t.Helper()

	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		t.Fatalf("Failed to open BadgerDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// sessionStores returns every backend available in this environment.
// Redis is only exercised when STRIDEMAP_TEST_REDIS_ADDR is set.
func sessionStores(t *testing.T) map[string]SessionStore {
	t.Helper()

	stores := map[string]SessionStore{
		"memory": NewMemorySessionStore(),
		"badger": NewBadgerSessionStore(createTestBadgerDB(t)),
	}

	if addr := os.Getenv("STRIDEMAP_TEST_REDIS_ADDR"); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		t.Cleanup(func() { client.Close() })
		prefix := "stridemap:test:" + t.Name() + ":"
		stores["redis"] = NewRedisSessionStore(client, prefix)
	}
	return stores
}

func TestNewSession(t *testing.T) {
	t.Parallel()

	a := testSession(t, time.Hour)
	b := testSession(t, time.Hour)

	if len(a.ID) != 64 {
		t.Errorf("session id length = %d, want 64", len(a.ID))
	}
	if a.ID == b.ID || a.UserID == b.UserID {
		t.Error("expected unique session and user ids")
	}
	if a.Maps == nil || len(a.Maps) != 0 {
		t.Errorf("expected empty map list, got %v", a.Maps)
	}
	if a.Ascending {
		t.Error("new session should not start ascending")
	}
	if a.IsExpired() {
		t.Error("new session should not be expired")
	}
}

func TestSession_AddMapDedups(t *testing.T) {
	t.Parallel()

	s := testSession(t, time.Hour)
	s.AddMap(7)
	s.AddMap(9)
	s.AddMap(7)

	if len(s.Maps) != 2 {
		t.Fatalf("Maps = %v, want two entries", s.Maps)
	}
	if !s.HasMap(9) || s.HasMap(8) {
		t.Errorf("HasMap mismatch for %v", s.Maps)
	}
}

func TestSession_CloneIsDeep(t *testing.T) {
	t.Parallel()

	s := testSession(t, time.Hour)
	s.AddMap(1)
	c := s.Clone()
	c.AddMap(2)
	c.Token.AccessToken = "changed"

	if s.HasMap(2) {
		t.Error("clone shares the map slice")
	}
	if s.Token.AccessToken != "access" {
		t.Error("clone shares the token")
	}
}

func TestSessionStore_Contract(t *testing.T) {
	for name, store := range sessionStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			session := testSession(t, time.Hour)
			session.AddMap(11)
			if err := store.Create(ctx, session); err != nil {
				t.Fatalf("Create() error = %v", err)
			}

			got, err := store.Get(ctx, session.ID)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if got.UserID != session.UserID || got.Athlete.FirstName != "Kari" {
				t.Errorf("Get() returned %+v", got)
			}
			if got.Token == nil || got.Token.RefreshToken != "refresh" {
				t.Errorf("token not preserved: %+v", got.Token)
			}
			if !got.HasMap(11) {
				t.Errorf("maps not preserved: %v", got.Maps)
			}

			got.Ascending = true
			got.AddMap(12)
			if err := store.Update(ctx, got); err != nil {
				t.Fatalf("Update() error = %v", err)
			}
			again, err := store.Get(ctx, session.ID)
			if err != nil {
				t.Fatalf("Get() after update error = %v", err)
			}
			if !again.Ascending || !again.HasMap(12) {
				t.Errorf("update not persisted: %+v", again)
			}

			newExpiry := time.Now().Add(2 * time.Hour)
			if err := store.Touch(ctx, session.ID, newExpiry); err != nil {
				t.Fatalf("Touch() error = %v", err)
			}

			ids, err := store.ActiveUserIDs(ctx)
			if err != nil {
				t.Fatalf("ActiveUserIDs() error = %v", err)
			}
			if _, ok := ids[session.UserID]; !ok {
				t.Errorf("ActiveUserIDs() = %v, missing %s", ids, session.UserID)
			}

			if err := store.Delete(ctx, session.ID); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			if _, err := store.Get(ctx, session.ID); !errors.Is(err, ErrSessionNotFound) {
				t.Errorf("Get() after delete error = %v, want ErrSessionNotFound", err)
			}
			if err := store.Delete(ctx, session.ID); err != nil {
				t.Errorf("second Delete() error = %v", err)
			}
		})
	}
}

func TestSessionStore_UpdateMissing(t *testing.T) {
	for name, store := range sessionStores(t) {
		t.Run(name, func(t *testing.T) {
			err := store.Update(context.Background(), testSession(t, time.Hour))
			if !errors.Is(err, ErrSessionNotFound) {
				t.Errorf("Update() error = %v, want ErrSessionNotFound", err)
			}
		})
	}
}

func TestSessionStore_ModifyConcurrent(t *testing.T) {
	for name, store := range sessionStores(t) {
		t.Run(name, func(t *testing.T) {
			assertConcurrentModify(t, store)
		})
	}
}

// assertConcurrentModify races several Modify calls on one session and
// checks that none of their changes was lost.
func assertConcurrentModify(t *testing.T, store SessionStore) {
	t.Helper()
	const writers = 8
	ctx := context.Background()

	session := testSession(t, time.Hour)
	if err := store.Create(ctx, session); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, writers+1)
	for i := 1; i <= writers; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			if _, err := store.Modify(ctx, session.ID, func(s *Session) { s.AddMap(id) }); err != nil {
				errs <- err
			}
		}(int64(i))
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := store.Modify(ctx, session.ID, func(s *Session) { s.Ascending = true }); err != nil {
			errs <- err
		}
	}()
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("Modify() error = %v", err)
	}

	got, err := store.Get(ctx, session.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	slices.Sort(got.Maps)
	if len(got.Maps) != writers || got.Maps[0] != 1 || got.Maps[writers-1] != writers {
		t.Errorf("Maps = %v, want 1..%d", got.Maps, writers)
	}
	if !got.Ascending {
		t.Error("Ascending change lost")
	}
}

func TestSessionStore_ModifyMissingOrExpired(t *testing.T) {
	for name, store := range sessionStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			noop := func(*Session) {}

			if _, err := store.Modify(ctx, "missing", noop); !errors.Is(err, ErrSessionNotFound) {
				t.Errorf("Modify(missing) error = %v, want ErrSessionNotFound", err)
			}

			dead := testSession(t, time.Hour)
			dead.ExpiresAt = time.Now().Add(-time.Minute)
			if err := store.Create(ctx, dead); err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			_, err := store.Modify(ctx, dead.ID, noop)
			if !errors.Is(err, ErrSessionExpired) && !errors.Is(err, ErrSessionNotFound) {
				t.Errorf("Modify(expired) error = %v, want ErrSessionExpired", err)
			}
		})
	}
}

func TestMemorySessionStore_Expiry(t *testing.T) {
	t.Parallel()

	store := NewMemorySessionStore()
	ctx := context.Background()

	live := testSession(t, time.Hour)
	dead := testSession(t, time.Hour)
	dead.ExpiresAt = time.Now().Add(-time.Minute)

	for _, s := range []*Session{live, dead} {
		if err := store.Create(ctx, s); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	if _, err := store.Get(ctx, dead.ID); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("Get(expired) error = %v, want ErrSessionExpired", err)
	}

	ids, _ := store.ActiveUserIDs(ctx)
	if _, ok := ids[dead.UserID]; ok {
		t.Error("expired session's user id reported active")
	}

	removed, err := store.CleanupExpired(ctx)
	if err != nil {
		t.Fatalf("CleanupExpired() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("CleanupExpired() = %d, want 1", removed)
	}
	if _, err := store.Get(ctx, live.ID); err != nil {
		t.Errorf("live session lost: %v", err)
	}
}

func TestBadgerSessionStore_CleanupAndCount(t *testing.T) {
	t.Parallel()

	store := NewBadgerSessionStore(createTestBadgerDB(t))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := store.Create(ctx, testSession(t, time.Hour)); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	// Expired by timestamp but still inside the one second Badger TTL floor.
	stale := testSession(t, time.Hour)
	stale.ExpiresAt = time.Now().Add(-time.Minute)
	if err := store.Create(ctx, stale); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if n, _ := store.Count(ctx); n != 4 {
		t.Fatalf("Count() = %d, want 4", n)
	}

	removed, err := store.CleanupExpired(ctx)
	if err != nil {
		t.Fatalf("CleanupExpired() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("CleanupExpired() = %d, want 1", removed)
	}
	if n, _ := store.Count(ctx); n != 3 {
		t.Errorf("Count() after cleanup = %d, want 3", n)
	}
}

func TestSessionStoreFactory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f, err := NewSessionStoreFactory(ctx, SessionStoreConfig{Type: SessionStoreMemory})
	if err != nil {
		t.Fatalf("memory factory error = %v", err)
	}
	if _, ok := f.Store().(*MemorySessionStore); !ok {
		t.Errorf("Store() = %T, want *MemorySessionStore", f.Store())
	}
	if err := f.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	if _, err := NewSessionStoreFactory(ctx, SessionStoreConfig{Type: SessionStoreBadger}); err == nil {
		t.Error("badger factory without a database should fail")
	}

	f, err = NewSessionStoreFactory(ctx, SessionStoreConfig{Type: SessionStoreBadger, DB: createTestBadgerDB(t)})
	if err != nil {
		t.Fatalf("badger factory error = %v", err)
	}
	if _, ok := f.Store().(*BadgerSessionStore); !ok {
		t.Errorf("Store() = %T, want *BadgerSessionStore", f.Store())
	}

	if _, err := NewSessionStoreFactory(ctx, SessionStoreConfig{Type: "etcd"}); err == nil {
		t.Error("unknown store type should fail")
	}
}
