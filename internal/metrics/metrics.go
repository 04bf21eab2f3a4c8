// Package metrics exposes Prometheus instrumentation for the
// scraping pipeline and ranking engine, adapted from the reference
// ingestion service's metric catalogue (API calls, cache hit/miss,
// sync duration, error counters) onto this domain's operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "divrank_http_requests_total",
			Help: "Total number of upstream HTTP requests",
		},
		[]string{"stage", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "divrank_http_request_duration_seconds",
			Help:    "Duration of upstream HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	ProfileCacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "divrank_profile_cache_hits_total",
			Help: "Total number of profile cache hits",
		},
	)

	ProfileCacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "divrank_profile_cache_misses_total",
			Help: "Total number of profile cache misses",
		},
	)

	ProfileCacheInvalidationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "divrank_profile_cache_invalidations_total",
			Help: "Total number of profile cache entries invalidated after a 404",
		},
	)

	MatchTierTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "divrank_match_tier_total",
			Help: "Total number of opponent resolutions by matcher tier",
		},
		[]string{"division", "tier"},
	)

	ScrapeRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "divrank_scrape_run_duration_seconds",
			Help:    "Duration of a scraping stage run",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"stage"},
	)

	ScrapeTeamsFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "divrank_scrape_teams_failed_total",
			Help: "Total number of teams that failed scraping after retries",
		},
		[]string{"division"},
	)

	RankingRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "divrank_ranking_run_duration_seconds",
			Help:    "Duration of a ranking engine run",
			Buckets: []float64{.1, .5, 1, 5, 10, 30},
		},
		[]string{"division"},
	)

	SOSIterationsUsed = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "divrank_sos_iterations_used",
			Help: "Number of SOS solver iterations used in the last run",
		},
		[]string{"division"},
	)

	SOSConverged = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "divrank_sos_converged",
			Help: "1 if the SOS solver converged before the iteration cap, 0 otherwise",
		},
		[]string{"division"},
	)

	TeamsRankedTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "divrank_teams_ranked_total",
			Help: "Number of teams present in the last ranking output",
		},
		[]string{"division"},
	)

	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "divrank_errors_total",
			Help: "Total number of errors by component and error type",
		},
		[]string{"component", "error_type"},
	)
)

// RecordHTTPRequest records one upstream fetch.
func RecordHTTPRequest(stage, status string, durationSeconds float64) {
	HTTPRequestsTotal.WithLabelValues(stage, status).Inc()
	HTTPRequestDuration.WithLabelValues(stage).Observe(durationSeconds)
}

// RecordMatchTier records one opponent resolution outcome.
func RecordMatchTier(division, tier string) {
	MatchTierTotal.WithLabelValues(division, tier).Inc()
}

// RecordError records an error by originating component.
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// RecordRankingRun records the outcome of one ranking engine run.
func RecordRankingRun(division string, durationSeconds float64, iterations int, converged bool, teamsRanked int) {
	RankingRunDuration.WithLabelValues(division).Observe(durationSeconds)
	SOSIterationsUsed.WithLabelValues(division).Set(float64(iterations))
	if converged {
		SOSConverged.WithLabelValues(division).Set(1)
	} else {
		SOSConverged.WithLabelValues(division).Set(0)
	}
	TeamsRankedTotal.WithLabelValues(division).Set(float64(teamsRanked))
}
