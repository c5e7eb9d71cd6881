package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	sourceCache = "cache"
	sourcePoll  = "poll"

	outcomeSorted    = "sorted"
	outcomeCancelled = "cancelled"
	outcomeFailed    = "failed"
)

type metrics struct {
	comparisons     *prometheus.CounterVec
	votes           *prometheus.CounterVec
	sortings        *prometheus.CounterVec
	sortingDuration prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *metrics {
	return &metrics{
		comparisons: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "boto_heapsort",
			Name:      "comparisons_total",
			Help:      "Pairwise comparisons made while sorting, by where the answer came from.",
		}, []string{"source"}),
		votes: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "boto_heapsort",
			Name:      "votes_total",
			Help:      "Poll votes received, by option.",
		}, []string{"option"}),
		sortings: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "boto_heapsort",
			Name:      "sortings_total",
			Help:      "Finished sortings, by outcome.",
		}, []string{"outcome"}),
		sortingDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Namespace: "boto_heapsort",
			Name:      "sorting_duration_seconds",
			Help:      "Time from starting a sorting until the chat finished voting.",
			Buckets:   prometheus.ExponentialBuckets(10, 4, 8),
		}),
	}
}
