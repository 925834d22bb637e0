package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_decisions_total",
		Help: "Decision cycles by outcome",
	}, []string{"outcome"})

	RiskRejects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_risk_rejects_total",
		Help: "Total risk engine rejections",
	}, []string{"reason"})

	ExchangeRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_exchange_requests_total",
		Help: "Outbound exchange requests by endpoint and result",
	}, []string{"endpoint", "status"})

	RateLimitWaits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_ratelimit_waits_total",
		Help: "Times an outbound call had to wait for bucket refill",
	})

	TournamentFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_tournament_fallbacks_total",
		Help: "Fallback activations in the decision pipeline",
	}, []string{"stage"})

	OracleLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "arena_oracle_latency_seconds",
		Help:    "Oracle call latency by role",
		Buckets: prometheus.DefBuckets,
	}, []string{"role"})

	LatencyBucket = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "arena_http_latency_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	StreamConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_stream_connections",
		Help: "Currently open subscriber connections",
	})
)
