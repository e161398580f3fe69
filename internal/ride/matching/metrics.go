package matching

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/example/ridemediator/internal/ride/domain"
)

var (
	candidateListSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ride_candidate_list_size",
		Help:    "Number of drivers offered per ride request.",
		Buckets: []float64{0, 1, 2, 3, 4, 8},
	})

	confirmOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ride_confirm_outcomes_total",
		Help: "Confirmation attempts grouped by outcome.",
	}, []string{"result"})

	decisionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ride_driver_decision_seconds",
		Help:    "Time a driver spent deciding on an offered ride.",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})
)

// ObserveCandidates records the size of an offered candidate list.
func ObserveCandidates(n int) {
	candidateListSize.Observe(float64(n))
}

// ObserveOutcome counts one confirmation attempt.
func ObserveOutcome(outcome domain.Outcome) {
	confirmOutcomes.WithLabelValues(string(outcome)).Inc()
}

// ObserveDecision records how long a driver's decision hook took.
func ObserveDecision(accepted bool, took time.Duration) {
	result := "declined"
	if accepted {
		result = "accepted"
	}
	decisionDuration.WithLabelValues(result).Observe(took.Seconds())
}
