// Stridemap - Fitness Activity Maps
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridemap

package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/stridemap/internal/logging"
)

// DefaultDrainTimeout is how long in-flight page renders get to finish
// once the tree stops the web server.
const DefaultDrainTimeout = 10 * time.Second

// WebService serves the Stridemap router under suture.
//
// It binds its own listener so the bound address is known (see Addr) even
// when server.Addr asks for port 0. A bind failure is returned and suture
// retries with backoff. When the tree stops, in-flight requests get the
// drain timeout before remaining connections are closed.
type WebService struct {
	server *http.Server
	drain  time.Duration

	mu    sync.Mutex
	addr  string
	ready chan struct{}
}

// NewWebService wraps server. A non-positive drain means DefaultDrainTimeout.
func NewWebService(server *http.Server, drain time.Duration) *WebService {
	if drain <= 0 {
		drain = DefaultDrainTimeout
	}
	return &WebService{
		server: server,
		drain:  drain,
		ready:  make(chan struct{}),
	}
}

// Ready is closed the first time the listener is bound.
func (s *WebService) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound host:port, or "" before the first bind.
func (s *WebService) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

func (s *WebService) bound(addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addr == "" {
		close(s.ready)
	}
	s.addr = addr
}

// Serve implements suture.Service.
func (s *WebService) Serve(ctx context.Context) error {
	log := logging.WithComponent(s.String())

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.server.Addr, err)
	}
	s.bound(ln.Addr().String())
	log.Info().Str("addr", ln.Addr().String()).Msg("Listening")

	served := make(chan error, 1)
	go func() {
		served <- s.server.Serve(ln)
	}()

	select {
	case err := <-served:
		if errors.Is(err, http.ErrServerClosed) {
			// Shut down outside the tree; a restart would fail the same way.
			return suture.ErrDoNotRestart
		}
		return fmt.Errorf("serve http: %w", err)
	case <-ctx.Done():
	}

	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.drain)
	defer cancel()

	if err := s.server.Shutdown(drainCtx); err != nil {
		log.Warn().Err(err).Dur("drain", s.drain).Msg("Requests still running after drain, closing connections")
		//nolint:errcheck // already failing shutdown
		s.server.Close()
	}
	<-served
	log.Info().Msg("Stopped")
	return ctx.Err()
}

func (s *WebService) String() string {
	return "http-server"
}
