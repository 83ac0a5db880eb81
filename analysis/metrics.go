package analysis

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricLLMCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coach",
		Subsystem: "analysis",
		Name:      "llm_calls_total",
		Help:      "LLM invocations by dimension and result.",
	}, []string{"dimension", "result"})

	metricDimensionOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coach",
		Subsystem: "analysis",
		Name:      "dimension_outcomes_total",
		Help:      "Dimension pipeline outcomes by dimension and status.",
	}, []string{"dimension", "status"})

	metricDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "coach",
		Subsystem: "analysis",
		Name:      "duration_seconds",
		Help:      "End-to-end Analyze duration.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	})
)
