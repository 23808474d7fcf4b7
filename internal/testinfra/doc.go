// Stridemap - Fitness Activity Maps
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridemap

// Package testinfra starts Docker containers for integration tests with
// testcontainers-go. Everything here is behind the integration build tag:
//
//	go test -tags integration ./internal/auth/...
//
// Tests call StartRedis, which skips when Docker is not available:
//
//	func TestRedisSessionStore(t *testing.T) {
//	    redisC := testinfra.StartRedis(t)
//	    client := redis.NewClient(&redis.Options{Addr: redisC.Addr})
//	    ...
//	}
package testinfra
