// Stridemap - Fitness Activity Maps
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridemap

// Package metrics registers the Prometheus collectors exported on /metrics.
//
// Collectors are package-level and registered with the default registry via
// promauto, so importing the package is enough to expose them.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of in-flight HTTP requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"limiter"}, // "global", "login", "auth", "share"
	)

	// Strava API Metrics
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strava_requests_total",
			Help: "Total number of Strava API calls",
		},
		[]string{"operation", "result"}, // result: "success", "unauthorized", "not_found", "rate_limited", "error"
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "strava_request_duration_seconds",
			Help:    "Duration of Strava API calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	UpstreamThrottleWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "strava_throttle_wait_seconds",
			Help:    "Time spent waiting on the outbound rate limiter",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	// Map Artifact Metrics
	MapsRendered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maps_rendered_total",
			Help: "Total number of map artifacts written",
		},
		[]string{"kind"}, // "map", "elevation"
	)

	MapRenderDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "map_render_duration_seconds",
			Help:    "Time to fetch streams and render a map artifact",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	MapFilesRemoved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "map_files_removed_total",
			Help: "Total number of map artifact files removed",
		},
		[]string{"reason"}, // "logout", "expired"
	)

	// Session Metrics
	SessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sessions_created_total",
			Help: "Total number of sessions created after OAuth login",
		},
	)

	SessionsDestroyed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessions_destroyed_total",
			Help: "Total number of sessions removed",
		},
		[]string{"reason"}, // "logout", "expired", "unauthorized"
	)

	// Share Link Metrics
	ShareLinksCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "share_links_created_total",
			Help: "Total number of share links issued",
		},
	)

	ShareLinkAccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "share_link_access_total",
			Help: "Total number of share link resolutions",
		},
		[]string{"result"}, // "ok", "invalid", "missing", "error"
	)

	// Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"}, // "activities", "activity"
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_entries",
			Help: "Current number of cached entries",
		},
		[]string{"cache_type"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_evictions_total",
			Help: "Total number of cache evictions (TTL expiry)",
		},
		[]string{"cache_type"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)
)

// RecordAPIRequest records an HTTP request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks in-flight HTTP requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordUpstreamCall records a Strava API call outcome.
func RecordUpstreamCall(operation, result string, duration time.Duration) {
	UpstreamRequests.WithLabelValues(operation, result).Inc()
	UpstreamDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCacheLookup counts a cache hit or miss for the named cache.
func RecordCacheLookup(cacheType string, hit bool) {
	if hit {
		CacheHits.WithLabelValues(cacheType).Inc()
		return
	}
	CacheMisses.WithLabelValues(cacheType).Inc()
}

// RecordMapRendered records a written map artifact and, for maps, the render time.
func RecordMapRendered(kind string, duration time.Duration) {
	MapsRendered.WithLabelValues(kind).Inc()
	if kind == "map" {
		MapRenderDuration.Observe(duration.Seconds())
	}
}

// RecordMapFilesRemoved adds n removed artifacts under reason.
func RecordMapFilesRemoved(reason string, n int) {
	if n <= 0 {
		return
	}
	MapFilesRemoved.WithLabelValues(reason).Add(float64(n))
}
