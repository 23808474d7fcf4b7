// Stridemap - Fitness Activity Maps
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridemap

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/stridemap/internal/activity"
	"github.com/tomtom215/stridemap/internal/auth"
	"github.com/tomtom215/stridemap/internal/authz"
	"github.com/tomtom215/stridemap/internal/cache"
	"github.com/tomtom215/stridemap/internal/mapstore"
	"github.com/tomtom215/stridemap/internal/mapview"
	"github.com/tomtom215/stridemap/internal/share"
	"github.com/tomtom215/stridemap/internal/strava"
)

// fakeStrava serves a fixed athlete, activity list and streams.
type fakeStrava struct {
	mu          sync.Mutex
	activities  []activity.Activity
	streams     map[int64]*strava.Streams
	err         error
	lastToken   string
	listCalls   int
	streamCalls int

	// streamsBarrier, when set, holds every GetStreams call until all
	// expected callers have arrived.
	streamsBarrier *sync.WaitGroup
}

func (f *fakeStrava) GetAthlete(ctx context.Context, token string) (*strava.Athlete, error) {
	return &strava.Athlete{ID: 77, FirstName: "Kari", LastName: "Nordmann", City: "Bergen"}, nil
}

func (f *fakeStrava) ListActivities(ctx context.Context, token string) ([]activity.Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastToken = token
	f.listCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.activities, nil
}

func (f *fakeStrava) GetStreams(ctx context.Context, token string, id int64, resolution string) (*strava.Streams, error) {
	if f.streamsBarrier != nil {
		f.streamsBarrier.Done()
		f.streamsBarrier.Wait()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastToken = token
	f.streamCalls++
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.streams[id]
	if !ok {
		return nil, &strava.APIError{StatusCode: http.StatusNotFound, Body: "Record Not Found"}
	}
	return s, nil
}

func (f *fakeStrava) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeStrava) counts() (list, streams int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls, f.streamCalls
}

func track() *strava.Streams {
	return &strava.Streams{
		LatLng:   [][2]float64{{60.3913, 5.3221}, {60.3950, 5.3300}, {60.3990, 5.3410}},
		Altitude: []float64{12, 80, 320},
		Distance: []float64{0, 600, 1400},
		Time:     []int64{0, 240, 600},
	}
}

func newFakeStrava() *fakeStrava {
	return &fakeStrava{
		activities: []activity.Activity{
			{ID: 1, Name: "Morning Run", Type: "Run", StartDateLocal: time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC), Distance: 5000, AverageSpeed: 3},
			{ID: 2, Name: "Floyen Hike", Type: "Hike", StartDateLocal: time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC), Distance: 12000, AverageSpeed: 1.2},
			{ID: 3, Name: "Commute Ride", Type: "Ride", StartDateLocal: time.Date(2024, 5, 3, 8, 0, 0, 0, time.UTC), Distance: 8000, AverageSpeed: 6},
		},
		streams: map[int64]*strava.Streams{
			1: track(),
			2: track(),
			3: {},
		},
	}
}

// newTokenServer issues tokens for code "good-code" and for any refresh token.
func newTokenServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.PostForm.Get("grant_type") {
		case "authorization_code":
			if r.PostForm.Get("code") != "good-code" {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error":"invalid_grant"}`))
				return
			}
			w.Write([]byte(`{"token_type":"Bearer","access_token":"access-1","refresh_token":"refresh-1","expires_in":21600}`))
		case "refresh_token":
			w.Write([]byte(`{"token_type":"Bearer","access_token":"access-2","refresh_token":"refresh-2","expires_in":21600}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"unsupported_grant_type"}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

type testEnv struct {
	t        *testing.T
	handler  http.Handler
	strava   *fakeStrava
	oauth    *auth.StravaOAuth
	sessions auth.SessionStore
	maps     *mapstore.Store
}

type envOption func(*Dependencies)

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	tokenSrv := newTokenServer(t)
	oauth := auth.NewStravaOAuth(auth.StravaOAuthConfig{
		ClientID:     "123",
		ClientSecret: "shh",
		RedirectURL:  "http://stridemap.test/auth",
		AuthURL:      "https://strava.test/oauth/authorize",
		TokenURL:     tokenSrv.URL,
		Scopes:       []string{"read", "activity:read_all"},
	}, nil)

	store := auth.NewMemorySessionStore()
	sessions := auth.NewSessionMiddleware(store, nil)

	maps, err := mapstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("mapstore.New: %v", err)
	}

	enforcer, err := authz.NewEnforcer(nil)
	if err != nil {
		t.Fatalf("authz.NewEnforcer: %v", err)
	}
	t.Cleanup(enforcer.Close)

	fake := newFakeStrava()
	deps := Dependencies{
		Strava:          fake,
		OAuth:           oauth,
		Sessions:        sessions,
		Maps:            maps,
		Renderer:        mapview.Renderer{TileURL: "https://tiles.test/{z}/{x}/{y}.png", Attribution: "test", Zoom: 12},
		ActivitiesCache: cache.New("activities", 15*time.Minute),
		ActivityCache:   cache.New("activity", time.Hour),
	}
	for _, opt := range opts {
		opt(&deps)
	}

	mw := NewChiMiddleware(&ChiMiddlewareConfig{RateLimitDisabled: true})
	router := NewRouter(NewHandler(deps), sessions, enforcer, mw)

	return &testEnv{
		t:        t,
		handler:  router.SetupChi(),
		strava:   fake,
		oauth:    oauth,
		sessions: store,
		maps:     maps,
	}
}

// withShare enables share links backed by an in-memory BadgerDB.
func withShare(t *testing.T) envOption {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		t.Fatalf("badger.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	signer, err := share.NewSigner("test-secret-test-secret-test-secret")
	if err != nil {
		t.Fatal(err)
	}
	svc := share.NewService(share.NewBadgerObjectStore(db), signer, time.Hour, "http://stridemap.test")
	return func(d *Dependencies) { d.Share = svc }
}

type request struct {
	method  string
	path    string
	cookie  *http.Cookie
	referer string
}

func (e *testEnv) do(req request) *httptest.ResponseRecorder {
	e.t.Helper()
	if req.method == "" {
		req.method = http.MethodGet
	}
	r := httptest.NewRequest(req.method, req.path, nil)
	if req.cookie != nil {
		r.AddCookie(req.cookie)
	}
	if req.referer != "" {
		r.Header.Set("Referer", req.referer)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, r)
	return rec
}

func (e *testEnv) get(path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	e.t.Helper()
	return e.do(request{path: path, cookie: cookie})
}

// login runs the OAuth callback and returns the session cookie.
func (e *testEnv) login() *http.Cookie {
	e.t.Helper()

	raw, err := e.oauth.AuthorizationURL(context.Background())
	if err != nil {
		e.t.Fatalf("AuthorizationURL: %v", err)
	}
	u, _ := url.Parse(raw)
	state := u.Query().Get("state")

	rec := e.get("/auth?code=good-code&state="+url.QueryEscape(state), nil)
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/" {
		e.t.Fatalf("login callback: status %d location %q", rec.Code, rec.Header().Get("Location"))
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == "stridemap_session" && c.Value != "" {
			return c
		}
	}
	e.t.Fatal("login callback set no session cookie")
	return nil
}

func (e *testEnv) session(cookie *http.Cookie) *auth.Session {
	e.t.Helper()
	s, err := e.sessions.Get(context.Background(), cookie.Value)
	if err != nil {
		e.t.Fatalf("session lookup: %v", err)
	}
	return s
}

func assertRedirect(t *testing.T, rec *httptest.ResponseRecorder, location string) {
	t.Helper()
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302 (body %q)", rec.Code, truncate(rec.Body.String()))
	}
	if got := rec.Header().Get("Location"); got != location {
		t.Fatalf("Location = %q, want %q", got, location)
	}
}

func truncate(s string) string {
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}

func assertContains(t *testing.T, body, want string) {
	t.Helper()
	if !strings.Contains(body, want) {
		t.Errorf("body does not contain %q: %s", want, truncate(body))
	}
}
