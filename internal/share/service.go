// Stridemap - Fitness Activity Maps
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridemap

// Package share publishes map artifacts behind public, expiring links.
// The artifact is copied into an object store and the link carries a
// signed token naming the object, so resolving a link needs no session.
package share

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/stridemap/internal/logging"
	"github.com/tomtom215/stridemap/internal/metrics"
)

// LinkPathPrefix is the public route that resolves share tokens.
const LinkPathPrefix = "/s/"

// Link is a published share.
type Link struct {
	URL       string    `json:"url"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Service ties the object store to the link signer.
type Service struct {
	store   ObjectStore
	signer  *Signer
	ttl     time.Duration
	baseURL string
}

// NewService creates a share service. Links live for ttl and are absolute
// URLs under baseURL.
func NewService(store ObjectStore, signer *Signer, ttl time.Duration, baseURL string) *Service {
	return &Service{
		store:   store,
		signer:  signer,
		ttl:     ttl,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Publish uploads data and returns a link to it.
func (s *Service) Publish(ctx context.Context, userID string, activityID int64, contentType string, data []byte) (*Link, error) {
	key := uuid.NewString()
	now := time.Now()
	expiresAt := now.Add(s.ttl)

	if err := s.store.Put(ctx, key, &Object{ContentType: contentType, Data: data, CreatedAt: now}, s.ttl); err != nil {
		return nil, fmt.Errorf("upload shared map: %w", err)
	}

	token, err := s.signer.Issue(userID, activityID, key, expiresAt)
	if err != nil {
		//nolint:errcheck // the entry expires on its own
		s.store.Delete(ctx, key)
		return nil, err
	}

	metrics.ShareLinksCreated.Inc()
	logging.Ctx(ctx).Info().
		Int64("activity_id", activityID).
		Time("expires_at", expiresAt).
		Msg("Share link created")

	return &Link{
		URL:       s.baseURL + LinkPathPrefix + token,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

// Resolve returns the object a token points at. Invalid tokens and
// expired objects both yield ErrLinkInvalid.
func (s *Service) Resolve(ctx context.Context, token string) (*Object, error) {
	claims, err := s.signer.Verify(token)
	if err != nil {
		metrics.ShareLinkAccess.WithLabelValues("invalid").Inc()
		return nil, err
	}

	obj, err := s.store.Get(ctx, claims.Object)
	if errors.Is(err, ErrObjectNotFound) {
		metrics.ShareLinkAccess.WithLabelValues("missing").Inc()
		return nil, fmt.Errorf("%w: %w", ErrLinkInvalid, err)
	}
	if err != nil {
		metrics.ShareLinkAccess.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.ShareLinkAccess.WithLabelValues("ok").Inc()
	return obj, nil
}
