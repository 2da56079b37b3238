package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AssessmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "homewatch_assessments_total",
		Help: "Total number of completed assessments, labelled by threat level.",
	}, []string{"threat_level"})

	RequestsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "homewatch_requests_rejected_total",
		Help: "Total number of requests rejected before assessment, labelled by reason.",
	}, []string{"reason"})

	ChainPatternsDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "homewatch_chain_patterns_detected_total",
		Help: "Total number of event-chain pattern matches, labelled by pattern.",
	}, []string{"pattern"})

	FeedbackReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "homewatch_feedback_received_total",
		Help: "Total number of user feedback submissions applied to learned patterns.",
	})

	ExtensionFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "homewatch_extension_failures_total",
		Help: "Total number of post-processor failures, including breaker-open skips.",
	})

	AssessmentDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "homewatch_assessment_duration_ms",
		Help:    "End-to-end assessment latency in milliseconds.",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	})

	OperationalMode = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "homewatch_operational_mode",
		Help: "Current operational mode (0=full, 1=degraded, 2=minimal, 3=emergency).",
	})

	RateLimitUtilization = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "homewatch_rate_limit_utilization_ratio",
		Help: "Current admission token bucket utilization (0-1).",
	})

	QueueUtilization = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "homewatch_queue_utilization_ratio",
		Help: "Current assessment queue utilization (0-1).",
	})
)
