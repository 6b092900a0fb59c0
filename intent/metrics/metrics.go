// Package metrics exposes Prometheus instrumentation for the recognition
// service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecognitionTotal counts finished recognitions by outcome.
	RecognitionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "intentd",
		Name:      "recognition_total",
		Help:      "Recognition requests by app key and outcome.",
	}, []string{"app_key", "outcome"})

	// RecognitionDuration observes end-to-end recognition latency.
	RecognitionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "intentd",
		Name:      "recognition_duration_seconds",
		Help:      "End-to-end recognition latency.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
	}, []string{"app_key"})

	// CacheHitTotal counts result cache hits.
	CacheHitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "intentd",
		Name:      "result_cache_hit_total",
		Help:      "Result cache hits by app key.",
	}, []string{"app_key"})

	// FallbackTotal counts fallback activations by kind (llm or static).
	FallbackTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "intentd",
		Name:      "fallback_total",
		Help:      "Fallback activations by kind.",
	}, []string{"kind"})

	// MatcherDuration observes per-matcher latency inside the pipeline.
	MatcherDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "intentd",
		Name:      "matcher_duration_seconds",
		Help:      "Per-matcher latency.",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
	}, []string{"recognizer"})

	// LogDroppedTotal counts recognition log entries dropped by the sink.
	LogDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "intentd",
		Name:      "log_dropped_total",
		Help:      "Recognition log entries dropped because the queue was full.",
	})
)
