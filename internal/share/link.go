// Stridemap - Fitness Activity Maps
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridemap

package share

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

// ErrLinkInvalid covers malformed, tampered and expired share links.
var ErrLinkInvalid = errors.New("invalid share link")

const signingKeyInfo = "stridemap-share-links"

// Claims are carried by a share link token. Subject is the owner's user id.
type Claims struct {
	ActivityID int64  `json:"aid"`
	Object     string `json:"obj"`
	jwt.RegisteredClaims
}

// Signer issues and verifies HS256 share link tokens.
type Signer struct {
	key []byte
}

// NewSigner derives the signing key from secret with HKDF-SHA256. An empty
// secret yields a random key, so links stop working after a restart.
func NewSigner(secret string) (*Signer, error) {
	master := []byte(secret)
	if len(master) == 0 {
		master = make([]byte, 32)
		if _, err := rand.Read(master); err != nil {
			return nil, fmt.Errorf("generate signing secret: %w", err)
		}
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte(signingKeyInfo)), key); err != nil {
		return nil, fmt.Errorf("derive signing key: %w", err)
	}
	return &Signer{key: key}, nil
}

// Issue signs a token for the object that expires at expiresAt.
func (s *Signer) Issue(userID string, activityID int64, object string, expiresAt time.Time) (string, error) {
	now := time.Now()
	claims := &Claims{
		ActivityID: activityID,
		Object:     object,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign share link: %w", err)
	}
	return signed, nil
}

// Verify checks the signature, algorithm and expiry of token.
func (s *Signer) Verify(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLinkInvalid, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Object == "" {
		return nil, ErrLinkInvalid
	}
	return claims, nil
}
