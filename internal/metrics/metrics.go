// Cadenza - Playlist Song Recommendation Service
// Copyright 2026 Cadenza Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-fm/cadenza

// Package metrics exposes Prometheus instrumentation for Cadenza.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the Prometheus collectors. Construct one per process with
// New and share it.
type Metrics struct {
	// RecommendDuration observes end-to-end recommendation computation
	// time per strategy.
	RecommendDuration *prometheus.HistogramVec

	// CacheHits and CacheMisses count recommendation cache lookups.
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	// CandidatesGathered observes candidate pool sizes per source.
	CandidatesGathered *prometheus.HistogramVec

	// ExternalRequests counts upstream catalog and tag service calls by
	// service and outcome.
	ExternalRequests *prometheus.CounterVec

	// ExternalRetries counts retried upstream calls by service.
	ExternalRetries *prometheus.CounterVec

	// ModelTrainDuration observes offline training time.
	ModelTrainDuration prometheus.Histogram

	// HTTPRequests counts API requests by route, method, and status.
	HTTPRequests *prometheus.CounterVec

	// HTTPDuration observes API latency by route.
	HTTPDuration *prometheus.HistogramVec
}

// New registers the collectors on the given registerer and returns them.
// Pass prometheus.DefaultRegisterer in production.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RecommendDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cadenza",
			Subsystem: "recommend",
			Name:      "duration_seconds",
			Help:      "Time to compute recommendations for a playlist.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"strategy"}),

		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "cadenza",
			Subsystem: "recommend",
			Name:      "cache_hits_total",
			Help:      "Recommendation cache hits.",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "cadenza",
			Subsystem: "recommend",
			Name:      "cache_misses_total",
			Help:      "Recommendation cache misses.",
		}),

		CandidatesGathered: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cadenza",
			Subsystem: "recommend",
			Name:      "candidates_gathered",
			Help:      "Candidate pool size per source.",
			Buckets:   []float64{0, 5, 10, 25, 50, 100, 250},
		}, []string{"source"}),

		ExternalRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cadenza",
			Subsystem: "external",
			Name:      "requests_total",
			Help:      "Upstream service requests by outcome.",
		}, []string{"service", "outcome"}),
		ExternalRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cadenza",
			Subsystem: "external",
			Name:      "retries_total",
			Help:      "Upstream service request retries.",
		}, []string{"service"}),

		ModelTrainDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cadenza",
			Subsystem: "latent",
			Name:      "train_duration_seconds",
			Help:      "Offline model training time.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cadenza",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "API requests by route, method, and status class.",
		}, []string{"route", "method", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cadenza",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "API request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}
