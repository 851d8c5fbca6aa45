package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	FetchAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobcomb_fetch_attempts_total",
			Help: "Fetch attempts by tier and result.",
		},
		[]string{"tier", "result"},
	)
	FetchCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "jobcomb_fetch_cache_hits_total",
			Help: "Fetches served from the payload cache.",
		},
	)
	Runs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobcomb_import_runs_total",
			Help: "Import runs by feed and final state.",
		},
		[]string{"feed", "state"},
	)
	Records = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobcomb_import_records_total",
			Help: "Processed records by feed and outcome.",
		},
		[]string{"feed", "outcome"},
	)
	RunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jobcomb_import_run_duration_seconds",
			Help:    "Duration of import runs in seconds.",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 180},
		},
		[]string{"feed"},
	)
	DeactivatedFeeds = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "jobcomb_feeds_deactivated_total",
			Help: "Feeds deactivated after repeated failures.",
		},
	)
)

// Register adds all collectors to the given registerer.
func Register(registerer prometheus.Registerer) {
	registerer.MustRegister(
		FetchAttempts,
		FetchCacheHits,
		Runs,
		Records,
		RunDuration,
		DeactivatedFeeds,
	)
}
