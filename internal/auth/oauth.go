// Stridemap - Fitness Activity Maps
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridemap

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

var (
	// ErrInvalidState is returned when the callback carries no state or one
	// that was never issued.
	ErrInvalidState = errors.New("invalid oauth state")

	// ErrAccessDenied is returned when the athlete declined authorization.
	ErrAccessDenied = errors.New("authorization denied")

	// ErrRefreshFailed means the refresh token no longer works and the user
	// has to log in again.
	ErrRefreshFailed = errors.New("token refresh failed")
)

// StravaOAuthConfig configures the Strava authorization-code flow.
type StravaOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	Scopes       []string

	// StateTTL defaults to DefaultStateTTL.
	StateTTL time.Duration

	// HTTPClient is used for token requests. Optional.
	HTTPClient *http.Client
}

// StravaOAuth drives login against Strava.
type StravaOAuth struct {
	config     *oauth2.Config
	states     StateStore
	stateTTL   time.Duration
	httpClient *http.Client
}

// NewStravaOAuth creates the OAuth flow. Strava expects the scope list
// comma separated in a single parameter and the client credentials in the
// request body.
func NewStravaOAuth(cfg StravaOAuthConfig, states StateStore) *StravaOAuth {
	if states == nil {
		states = NewMemoryStateStore()
	}
	ttl := cfg.StateTTL
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}

	var scopes []string
	if len(cfg.Scopes) > 0 {
		scopes = []string{strings.Join(cfg.Scopes, ",")}
	}

	return &StravaOAuth{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		states:     states,
		stateTTL:   ttl,
		httpClient: cfg.HTTPClient,
	}
}

// States returns the state store so the janitor can clean it.
func (o *StravaOAuth) States() StateStore {
	return o.states
}

func (o *StravaOAuth) clientContext(ctx context.Context) context.Context {
	if o.httpClient != nil {
		return context.WithValue(ctx, oauth2.HTTPClient, o.httpClient)
	}
	return ctx
}

// AuthorizationURL issues a new state parameter and returns the Strava
// consent URL carrying it.
func (o *StravaOAuth) AuthorizationURL(ctx context.Context) (string, error) {
	state, err := GenerateStateParameter()
	if err != nil {
		return "", err
	}

	now := time.Now()
	if err := o.states.Store(ctx, state, &OAuthState{CreatedAt: now, ExpiresAt: now.Add(o.stateTTL)}); err != nil {
		return "", fmt.Errorf("store oauth state: %w", err)
	}

	return o.config.AuthCodeURL(state, oauth2.SetAuthURLParam("approval_prompt", "auto")), nil
}

// Exchange validates and consumes state, then trades code for a token.
// A state can be used once.
func (o *StravaOAuth) Exchange(ctx context.Context, code, state string) (*oauth2.Token, error) {
	if state == "" {
		return nil, ErrInvalidState
	}
	if _, err := o.states.Consume(ctx, state); err != nil {
		if errors.Is(err, ErrStateNotFound) {
			return nil, ErrInvalidState
		}
		return nil, err
	}

	if code == "" {
		return nil, fmt.Errorf("missing authorization code")
	}

	token, err := o.config.Exchange(o.clientContext(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	return token, nil
}

// FreshToken returns tok, refreshed if it has expired. The boolean reports
// whether a new token was issued and should be saved.
func (o *StravaOAuth) FreshToken(ctx context.Context, tok *oauth2.Token) (*oauth2.Token, bool, error) {
	if tok == nil {
		return nil, false, ErrRefreshFailed
	}
	if tok.Valid() {
		return tok, false, nil
	}

	fresh, err := o.config.TokenSource(o.clientContext(ctx), tok).Token()
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}
	return fresh, fresh.AccessToken != tok.AccessToken, nil
}
