// Stridemap - Fitness Activity Maps
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridemap

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/stridemap/internal/auth"
	"github.com/tomtom215/stridemap/internal/elevation"
	"github.com/tomtom215/stridemap/internal/export"
	"github.com/tomtom215/stridemap/internal/mapview"
	"github.com/tomtom215/stridemap/internal/share"
	"github.com/tomtom215/stridemap/internal/strava"
)

func TestProtectedRoutes_RedirectAnonymousToLogin(t *testing.T) {
	env := newTestEnv(t)

	paths := []string{
		"/activities",
		"/activities?sort=distance",
		"/activities.xlsx",
		"/activity",
		"/activity?id=2",
		"/activity/2.gpx",
		"/maps/2.html",
		"/maps/2/elevation",
	}
	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			assertRedirect(t, env.get(path, nil), "/login")
		})
	}

	if _, streams := env.strava.counts(); streams != 0 {
		t.Errorf("anonymous requests reached Strava %d times", streams)
	}
}

func TestShare_AnonymousPostIsJSON401(t *testing.T) {
	env := newTestEnv(t, withShare(t))

	rec := env.do(request{method: http.MethodPost, path: "/maps/2/share"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	var resp APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Success || resp.Error == nil || resp.Error.Code != ErrCodeUnauthorized {
		t.Errorf("response = %+v", resp)
	}
}

func TestIndex(t *testing.T) {
	env := newTestEnv(t)

	assertRedirect(t, env.get("/", nil), "/login")

	cookie := env.login()
	assertRedirect(t, env.get("/", cookie), "/activities")
}

func TestLoginPage(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get("/login", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	assertContains(t, body, "https://strava.test/oauth/authorize")
	assertContains(t, body, "state=")
	assertContains(t, body, "redirect_uri=http%3A%2F%2Fstridemap.test%2Fauth")
}

func TestAuthCallback(t *testing.T) {
	env := newTestEnv(t)

	t.Run("provider error", func(t *testing.T) {
		assertRedirect(t, env.get("/auth?error=access_denied&state=x", nil), "/login")
	})

	t.Run("unknown state", func(t *testing.T) {
		assertRedirect(t, env.get("/auth?code=good-code&state=forged", nil), "/login")
	})

	t.Run("bad code", func(t *testing.T) {
		raw, _ := env.oauth.AuthorizationURL(context.Background())
		state := raw[strings.Index(raw, "state=")+len("state="):]
		if i := strings.IndexByte(state, '&'); i >= 0 {
			state = state[:i]
		}
		assertRedirect(t, env.get("/auth?code=bad&state="+state, nil), "/login")
	})

	t.Run("success", func(t *testing.T) {
		cookie := env.login()
		s := env.session(cookie)
		if s.UserID == "" || s.Athlete.ID != 77 {
			t.Errorf("session = %+v", s)
		}
		if len(s.Maps) != 0 {
			t.Errorf("new session has maps: %v", s.Maps)
		}
		if s.Token == nil || s.Token.AccessToken != "access-1" {
			t.Errorf("token = %+v", s.Token)
		}
	})
}

func TestActivities_SortToggle(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login()

	order := func(body string) []string {
		names := []string{"Morning Run", "Floyen Hike", "Commute Ride"}
		type pos struct {
			name string
			at   int
		}
		var found []pos
		for _, n := range names {
			found = append(found, pos{n, strings.Index(body, n)})
		}
		for i := 1; i < len(found); i++ {
			for j := i; j > 0 && found[j].at < found[j-1].at; j-- {
				found[j], found[j-1] = found[j-1], found[j]
			}
		}
		out := make([]string, len(found))
		for i, p := range found {
			out[i] = p.name
		}
		return out
	}

	rec := env.get("/activities", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := strings.Join(order(rec.Body.String()), ","); got != "Morning Run,Floyen Hike,Commute Ride" {
		t.Errorf("unsorted order = %s", got)
	}

	rec = env.do(request{path: "/activities?sort=distance", cookie: cookie, referer: "http://stridemap.test/activities"})
	if got := strings.Join(order(rec.Body.String()), ","); got != "Morning Run,Commute Ride,Floyen Hike" {
		t.Errorf("first click order = %s", got)
	}
	if !env.session(cookie).Ascending {
		t.Error("first click should sort ascending")
	}

	rec = env.do(request{path: "/activities?sort=distance", cookie: cookie, referer: "http://stridemap.test/activities?sort=distance"})
	if got := strings.Join(order(rec.Body.String()), ","); got != "Floyen Hike,Commute Ride,Morning Run" {
		t.Errorf("second click order = %s", got)
	}
	if env.session(cookie).Ascending {
		t.Error("second click on the same column should flip to descending")
	}

	rec = env.get("/activities?sort=bogus", cookie)
	if got := strings.Join(order(rec.Body.String()), ","); got != "Morning Run,Floyen Hike,Commute Ride" {
		t.Errorf("unknown column order = %s", got)
	}

	if lists, _ := env.strava.counts(); lists != 1 {
		t.Errorf("activity list fetched %d times, want 1 (cached)", lists)
	}
}

func TestActivity_RendersMapAndRecordsIt(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login()

	rec := env.get("/activity?id=2", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, truncate(rec.Body.String()))
	}
	assertContains(t, rec.Body.String(), `src="/maps/2.html"`)
	assertContains(t, rec.Body.String(), "Floyen Hike")

	s := env.session(cookie)
	if !s.HasMap(2) {
		t.Errorf("session maps = %v, want 2 recorded", s.Maps)
	}
	if !env.maps.HasMap(s.UserID, 2) {
		t.Error("map artifact not written")
	}

	mapRec := env.get("/maps/2.html", cookie)
	if mapRec.Code != http.StatusOK {
		t.Fatalf("map status = %d", mapRec.Code)
	}
	assertContains(t, mapRec.Body.String(), "L.polyline")
	if ct := mapRec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("map Content-Type = %q", ct)
	}

	assertRedirect(t, env.get("/maps/1.html", cookie), "/login")
}

func TestActivity_ConcurrentRendersKeepEveryMap(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login()

	var barrier sync.WaitGroup
	barrier.Add(2)
	env.strava.streamsBarrier = &barrier

	var wg sync.WaitGroup
	codes := make([]int, 2)
	for i, id := range []int64{1, 2} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/activity?id=%d", id), nil)
			req.AddCookie(cookie)
			env.handler.ServeHTTP(rec, req)
			codes[i] = rec.Code
		}()
	}
	wg.Wait()
	env.strava.streamsBarrier = nil

	for i, code := range codes {
		if code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i, code)
		}
	}

	s := env.session(cookie)
	for _, id := range []int64{1, 2} {
		if !s.HasMap(id) {
			t.Errorf("session maps = %v, missing %d", s.Maps, id)
		}
		rec := env.get(fmt.Sprintf("/maps/%d.html", id), cookie)
		if rec.Code != http.StatusOK {
			t.Errorf("/maps/%d.html status = %d, want 200", id, rec.Code)
		}
	}
}

func TestActivity_DefaultsToFirstActivity(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login()

	rec := env.get("/activity", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	assertContains(t, rec.Body.String(), "Morning Run")
	if !env.session(cookie).HasMap(1) {
		t.Error("first activity not recorded")
	}
}

func TestActivity_CacheRequiresArtifact(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login()

	env.get("/activity?id=2", cookie)
	env.get("/activity?id=2", cookie)
	if _, streams := env.strava.counts(); streams != 1 {
		t.Fatalf("streams fetched %d times, want 1", streams)
	}

	if err := env.maps.RemoveUser(env.session(cookie).UserID); err != nil {
		t.Fatal(err)
	}
	rec := env.get("/activity?id=2", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if _, streams := env.strava.counts(); streams != 2 {
		t.Errorf("streams fetched %d times after artifact removal, want 2", streams)
	}
}

func TestActivity_Errors(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login()

	tests := []struct {
		path string
		want int
	}{
		{"/activity?id=abc", http.StatusBadRequest},
		{"/activity?id=3", http.StatusUnprocessableEntity},
		{"/activity?id=404", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if rec := env.get(tt.path, cookie); rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}

	if maps := env.session(cookie).Maps; len(maps) != 0 {
		t.Errorf("failed renders were recorded: %v", maps)
	}
}

func TestUpstreamUnauthorized_EndsSession(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login()
	env.strava.setErr(&strava.APIError{StatusCode: http.StatusUnauthorized, Body: "Authorization Error"})

	assertRedirect(t, env.get("/activities", cookie), "/login")

	if _, err := env.sessions.Get(context.Background(), cookie.Value); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Errorf("session still present: err = %v", err)
	}
}

func TestUpstreamRateLimited(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login()
	env.strava.setErr(&strava.APIError{StatusCode: http.StatusTooManyRequests})

	if rec := env.get("/activities", cookie); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	env.session(cookie)
}

func TestExpiredToken_IsRefreshed(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login()

	s := env.session(cookie)
	s.Token.Expiry = time.Now().Add(-time.Minute)
	if err := env.sessions.Update(context.Background(), s); err != nil {
		t.Fatal(err)
	}

	if rec := env.get("/activities", cookie); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if env.strava.lastToken != "access-2" {
		t.Errorf("Strava called with %q, want refreshed token", env.strava.lastToken)
	}
	if tok := env.session(cookie).Token; tok.AccessToken != "access-2" || tok.RefreshToken != "refresh-2" {
		t.Errorf("refreshed token not saved: %+v", tok)
	}
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login()

	env.get("/activity?id=2", cookie)
	userDir := filepath.Join(env.maps.Root(), env.session(cookie).UserID)
	if _, err := os.Stat(userDir); err != nil {
		t.Fatalf("user dir missing before logout: %v", err)
	}

	rec := env.get("/logout", cookie)
	assertRedirect(t, rec, "/")

	if _, err := os.Stat(userDir); !os.IsNotExist(err) {
		t.Errorf("user dir still present after logout: %v", err)
	}
	if _, err := env.sessions.Get(context.Background(), cookie.Value); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Errorf("session still present: %v", err)
	}

	cleared := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == "stridemap_session" && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("session cookie not cleared")
	}

	assertRedirect(t, env.get("/activities", cookie), "/login")
}

func TestLogout_Anonymous(t *testing.T) {
	env := newTestEnv(t)
	assertRedirect(t, env.get("/logout", nil), "/")
}

func TestShareFlow(t *testing.T) {
	env := newTestEnv(t, withShare(t))
	cookie := env.login()

	if rec := env.do(request{method: http.MethodPost, path: "/maps/2/share", cookie: cookie}); rec.Code != http.StatusNotFound {
		t.Errorf("share before render: status = %d, want 404", rec.Code)
	}

	page := env.get("/activity?id=2", cookie)
	assertContains(t, page.Body.String(), `data-url="/maps/2/share"`)

	rec := env.do(request{method: http.MethodPost, path: "/maps/2/share", cookie: cookie})
	if rec.Code != http.StatusCreated {
		t.Fatalf("share status = %d body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Success bool       `json:"success"`
		Data    share.Link `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.Success || !strings.HasPrefix(resp.Data.URL, "http://stridemap.test/s/") {
		t.Fatalf("response = %+v", resp)
	}

	shared := env.get(strings.TrimPrefix(resp.Data.URL, "http://stridemap.test"), nil)
	if shared.Code != http.StatusOK {
		t.Fatalf("shared map status = %d", shared.Code)
	}
	assertContains(t, shared.Body.String(), "L.polyline")

	if rec := env.get("/s/not-a-token", nil); rec.Code != http.StatusNotFound {
		t.Errorf("invalid link status = %d, want 404", rec.Code)
	}
}

func TestShare_Disabled(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login()

	page := env.get("/activity?id=2", cookie)
	if strings.Contains(page.Body.String(), "/maps/2/share") {
		t.Error("share button shown while sharing is disabled")
	}
	if rec := env.do(request{method: http.MethodPost, path: "/maps/2/share", cookie: cookie}); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

type fakeCharts struct {
	err error
	svg bool
}

func (f *fakeCharts) Render(ctx context.Context, title string, profile mapview.Profile) (*elevation.Chart, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(profile.Distance) != len(profile.Altitude) {
		return nil, errors.New("misaligned profile")
	}
	if f.svg {
		return &elevation.Chart{Data: []byte(`<svg xmlns="http://www.w3.org/2000/svg"><script>alert(1)</script></svg>`), ContentType: "image/svg+xml"}, nil
	}
	return &elevation.Chart{Data: []byte("\x89PNG\r\n\x1a\nchart"), ContentType: "image/png"}, nil
}

func TestElevationChart(t *testing.T) {
	env := newTestEnv(t, func(d *Dependencies) { d.Elevation = &fakeCharts{} })
	cookie := env.login()

	page := env.get("/activity?id=2", cookie)
	assertContains(t, page.Body.String(), `src="/maps/2/elevation"`)

	rec := env.get("/maps/2/elevation", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}
	if csp := rec.Header().Get("Content-Security-Policy"); csp != "sandbox" {
		t.Errorf("Content-Security-Policy = %q, want sandbox", csp)
	}
}

func TestElevationChart_SVGIsSandboxed(t *testing.T) {
	env := newTestEnv(t, func(d *Dependencies) { d.Elevation = &fakeCharts{svg: true} })
	cookie := env.login()

	env.get("/activity?id=2", cookie)

	rec := env.get("/maps/2/elevation", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/svg+xml" {
		t.Errorf("Content-Type = %q, want image/svg+xml", ct)
	}
	if csp := rec.Header().Get("Content-Security-Policy"); csp != "sandbox" {
		t.Errorf("Content-Security-Policy = %q, want sandbox", csp)
	}
}

func TestElevationChart_FailureKeepsPage(t *testing.T) {
	env := newTestEnv(t, func(d *Dependencies) { d.Elevation = &fakeCharts{err: errors.New("service down")} })
	cookie := env.login()

	page := env.get("/activity?id=2", cookie)
	if page.Code != http.StatusOK {
		t.Fatalf("status = %d", page.Code)
	}
	if strings.Contains(page.Body.String(), "/maps/2/elevation") {
		t.Error("chart shown although rendering failed")
	}
	if rec := env.get("/maps/2/elevation", cookie); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestGPX(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login()

	rec := env.get("/activity/2.gpx", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/gpx+xml" {
		t.Errorf("Content-Type = %q", ct)
	}
	body := rec.Body.String()
	assertContains(t, body, "<trkpt")
	assertContains(t, body, "Floyen Hike")
}

func TestActivitiesXLSX(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login()

	rec := env.get("/activities.xlsx?sort=distance", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != export.ContentType {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.HasPrefix(rec.Body.String(), "PK") {
		t.Error("body is not a zip container")
	}
}

func TestHealthzAndHeaders(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get("/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["status"] != "ok" {
		t.Errorf("body = %s", rec.Body.String())
	}

	if got := rec.Header().Get("X-Frame-Options"); got != "SAMEORIGIN" {
		t.Errorf("X-Frame-Options = %q", got)
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t)
	if rec := env.get("/nope", nil); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
