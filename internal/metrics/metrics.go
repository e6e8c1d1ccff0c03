package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cratesProcessed is a Counter vector of per-crate outcomes
	cratesProcessed *prometheus.CounterVec
	// cloneLatency is a Histogram that tracks clone durations
	cloneLatency prometheus.Histogram
)

// Enable registers the mirror metrics with the given registerer.
// Available metrics are...
//   - crates_processed_total - (tags: status)
//     A Counter incremented once per processed crate, tagged with the
//     terminal status (cloned|failed|no_repo|metadata_error) or "skipped".
//   - clone_duration_seconds
//     A Histogram of git clone durations.
func Enable(namespace string, registerer prometheus.Registerer) {
	cratesProcessed = promauto.With(registerer).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "crates_processed_total",
		Help:      "Count of processed crates by outcome",
	},
		[]string{
			// terminal status of the processing attempt
			"status",
		},
	)

	cloneLatency = promauto.With(registerer).NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "clone_duration_seconds",
		Help:      "Latency of git clone operations",
		Buckets:   []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600},
	})
}

// RecordOutcome records one processed crate by outcome
func RecordOutcome(status string) {
	// if metrics not enabled return
	if cratesProcessed == nil {
		return
	}
	cratesProcessed.WithLabelValues(status).Inc()
}

// ObserveClone records the duration of one clone attempt
func ObserveClone(start time.Time) {
	// if metrics not enabled return
	if cloneLatency == nil {
		return
	}
	cloneLatency.Observe(time.Since(start).Seconds())
}
