package releases

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Lookup kinds used as the "kind" label.
const (
	kindStage   = "stage"
	kindSemver  = "semver"
	kindPackage = "package"
	kindBuild   = "build"
	kindLatest  = "latest"
)

type metrics struct {
	lookups        *prometheus.CounterVec
	lookupFailures *prometheus.CounterVec
	lookupDuration *prometheus.HistogramVec
	saturated      *prometheus.CounterVec
	negationFlips  prometheus.Counter
	emptyResults   *prometheus.CounterVec
}

func newMetrics(r prometheus.Registerer) *metrics {
	return &metrics{
		lookups: promauto.With(r).NewCounterVec(prometheus.CounterOpts{
			Name: "eventfilter_release_lookups_total",
			Help: "Total number of release store lookups.",
		}, []string{"kind"}),
		lookupFailures: promauto.With(r).NewCounterVec(prometheus.CounterOpts{
			Name: "eventfilter_release_lookup_failures_total",
			Help: "Total number of failed release store lookups.",
		}, []string{"kind"}),
		lookupDuration: promauto.With(r).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "eventfilter_release_lookup_duration_seconds",
			Help:    "Time taken by a release store lookup.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		saturated: promauto.With(r).NewCounterVec(prometheus.CounterOpts{
			Name: "eventfilter_release_lookups_saturated_total",
			Help: "Total number of lookups that returned the maximum number of releases.",
		}, []string{"kind"}),
		negationFlips: promauto.With(r).NewCounter(prometheus.CounterOpts{
			Name: "eventfilter_release_negation_flips_total",
			Help: "Total number of semver filters rewritten as NOT IN over the complementary set.",
		}),
		emptyResults: promauto.With(r).NewCounterVec(prometheus.CounterOpts{
			Name: "eventfilter_release_empty_results_total",
			Help: "Total number of filters that matched no releases and fell back to the empty sentinel.",
		}, []string{"kind"}),
	}
}
