// Stridemap - Fitness Activity Maps
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridemap

package services

import (
	"context"
	"time"

	"github.com/tomtom215/stridemap/internal/logging"
)

// JanitorService runs a sweep once at start and then every interval until
// the supervisor stops it. A failed sweep is logged and retried on the next
// tick; it does not restart the service.
type JanitorService struct {
	name     string
	interval time.Duration
	sweep    func(ctx context.Context) error
}

// NewJanitorService creates a periodic sweep. A non-positive interval means
// one minute.
func NewJanitorService(name string, interval time.Duration, sweep func(ctx context.Context) error) *JanitorService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &JanitorService{name: name, interval: interval, sweep: sweep}
}

// Serve implements suture.Service.
func (j *JanitorService) Serve(ctx context.Context) error {
	log := logging.WithComponent(j.name)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		if err := j.sweep(ctx); err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Msg("Sweep failed")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (j *JanitorService) String() string {
	return j.name
}
