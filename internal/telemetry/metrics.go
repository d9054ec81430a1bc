// Package telemetry exposes Prometheus collectors for the backend's two hot
// paths: the trial email sequence and the evolution analysis endpoint.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels successful operations.
	OutcomeSuccess = "success"
	// OutcomeValidation labels requests rejected before any query ran.
	OutcomeValidation = "validation"
	// OutcomeError labels failed operations (store or dependency issues).
	OutcomeError = "error"
)

var (
	trialEmailsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "osteovet",
			Name:      "trial_emails_total",
			Help:      "Lifecycle emails sent, partitioned by step kind.",
		},
		[]string{"step"},
	)

	trialStepFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "osteovet",
			Name:      "trial_step_failures_total",
			Help:      "Trial steps that did not complete, partitioned by reason.",
		},
		[]string{"reason"},
	)

	evolutionAnalysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "osteovet",
			Name:      "evolution_analyses_total",
			Help:      "Evolution analyses handled, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	evolutionDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "osteovet",
			Name:      "evolution_analysis_seconds",
			Help:      "Evolution analysis latency in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
	)

	vulgarizationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "osteovet",
			Name:      "vulgarizations_total",
			Help:      "Report vulgarizations requested, partitioned by outcome.",
		},
		[]string{"outcome"},
	)
)

// Register attaches the platform collectors to the supplied registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		trialEmailsTotal,
		trialStepFailuresTotal,
		evolutionAnalysesTotal,
		evolutionDurationSeconds,
		vulgarizationsTotal,
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

// ObserveTrialEmail records one sent lifecycle email.
func ObserveTrialEmail(step string) {
	trialEmailsTotal.WithLabelValues(step).Inc()
}

// ObserveTrialStepFailure records a step that failed or was released.
func ObserveTrialStepFailure(reason string) {
	trialStepFailuresTotal.WithLabelValues(reason).Inc()
}

// ObserveEvolutionAnalysis records an analysis duration and outcome.
func ObserveEvolutionAnalysis(duration time.Duration, outcome string) {
	evolutionAnalysesTotal.WithLabelValues(outcome).Inc()
	if outcome == OutcomeSuccess {
		evolutionDurationSeconds.Observe(duration.Seconds())
	}
}

// ObserveVulgarization records one vulgarization request outcome.
func ObserveVulgarization(outcome string) {
	vulgarizationsTotal.WithLabelValues(outcome).Inc()
}
