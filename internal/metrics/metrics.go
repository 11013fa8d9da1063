// Engagement - Interaction Recording and Aggregate Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagement

// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Interaction write path
	InteractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engagement_interactions_total",
			Help: "Interaction operations by kind and outcome",
		},
		[]string{"kind", "result"}, // result: ok, not_found, invalid, conflict, error
	)

	WriteConflictRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engagement_write_conflict_retries_total",
			Help: "Optimistic update retries caused by version conflicts",
		},
		[]string{"operation"},
	)

	WriteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "engagement_write_duration_seconds",
			Help:    "Duration of interaction writes including retries",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)

	// Reconciliation sweep
	ReconcileItemsScanned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "engagement_reconcile_items_scanned_total",
			Help: "Content items examined by the reconciliation sweep",
		},
	)

	ReconcileAnomalies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engagement_reconcile_anomalies_total",
			Help: "Aggregate fields corrected by the reconciliation sweep",
		},
		[]string{"field"},
	)

	ReconcileSweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "engagement_reconcile_sweep_duration_seconds",
			Help:    "Duration of full reconciliation sweeps",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	ReconcileLastSweep = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "engagement_reconcile_last_sweep_timestamp_seconds",
			Help: "Unix time the last reconciliation sweep finished",
		},
	)

	// Analytics
	AnalyticsQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "engagement_analytics_query_duration_seconds",
			Help:    "Duration of analytics queries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query", "result"},
	)

	// Identity directory
	IdentityLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engagement_identity_lookups_total",
			Help: "Identity resolutions by source (cache, directory, placeholder)",
		},
		[]string{"source"},
	)

	// Events
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engagement_events_published_total",
			Help: "Interaction events handed to the message broker",
		},
		[]string{"kind", "result"},
	)

	// Circuit breakers
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Requests through a circuit breaker by result",
		},
		[]string{"name", "result"}, // success, failure, rejected
	)

	// Authorization
	AuthzDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engagement_authz_decisions_total",
			Help: "Casbin authorization decisions by object and result",
		},
		[]string{"object", "result"}, // allowed, denied, error
	)

	// Storage maintenance
	StorageGCRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engagement_storage_gc_runs_total",
			Help: "Badger value log GC passes by result",
		},
		[]string{"result"},
	)

	// HTTP
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status_code"},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status_code"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Number of requests currently being served",
		},
	)
)

// RecordInteraction counts one interaction outcome and its latency.
func RecordInteraction(kind, result string, duration time.Duration) {
	InteractionsTotal.WithLabelValues(kind, result).Inc()
	WriteDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordAnalyticsQuery observes an analytics query.
func RecordAnalyticsQuery(query string, duration time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	AnalyticsQueryDuration.WithLabelValues(query, result).Observe(duration.Seconds())
}

// RecordSweep records a finished reconciliation sweep.
func RecordSweep(duration time.Duration, finished time.Time) {
	ReconcileSweepDuration.Observe(duration.Seconds())
	ReconcileLastSweep.Set(float64(finished.Unix()))
}

// RecordAPIRequest records one served HTTP request.
func RecordAPIRequest(method, route, statusCode string, duration time.Duration) {
	APIRequestDuration.WithLabelValues(method, route, statusCode).Observe(duration.Seconds())
	APIRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
}

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(start bool) {
	if start {
		APIActiveRequests.Inc()
		return
	}
	APIActiveRequests.Dec()
}
