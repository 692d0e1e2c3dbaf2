package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	signalsIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "autopilot_core",
			Name:      "signals_ingested_total",
			Help:      "Total number of signals ingested, partitioned by signal type.",
		},
		[]string{"type"},
	)

	decisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "autopilot_core",
			Name:      "decisions_total",
			Help:      "Total number of unified decisions produced, partitioned by decision type.",
		},
		[]string{"decision_type"},
	)

	safetyEvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "autopilot_core",
			Name:      "safety_evaluations_total",
			Help:      "Total number of safety evaluations, partitioned by final safety level.",
		},
		[]string{"safety_level"},
	)

	correlationRunSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "autopilot_core",
			Name:      "correlation_run_seconds",
			Help:      "Correlate-and-decide run latency in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	)
)

// Register attaches the engine's collectors to the supplied Prometheus
// registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		signalsIngestedTotal,
		decisionsTotal,
		safetyEvaluationsTotal,
		correlationRunSeconds,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveSignalIngested counts one ingested signal.
func ObserveSignalIngested(signalType string) {
	signalsIngestedTotal.WithLabelValues(signalType).Inc()
}

// ObserveDecision counts one synthesized decision.
func ObserveDecision(decisionType string) {
	decisionsTotal.WithLabelValues(decisionType).Inc()
}

// ObserveSafetyEvaluation counts one safety evaluation by final level.
func ObserveSafetyEvaluation(level string) {
	safetyEvaluationsTotal.WithLabelValues(level).Inc()
}

// ObserveCorrelationRun records the latency of one decision run.
func ObserveCorrelationRun(duration time.Duration) {
	if duration < 0 {
		duration = 0
	}
	correlationRunSeconds.Observe(duration.Seconds())
}
