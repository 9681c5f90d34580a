package telemetry

import "github.com/prometheus/client_golang/prometheus"

var SkillsIndexedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "registry",
		Subsystem: "indexer",
		Name:      "skills_indexed_total",
		Help:      "Total number of skill versions indexed, by outcome.",
	},
	[]string{"outcome"},
)

var IndexDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "registry",
		Subsystem: "indexer",
		Name:      "index_duration_seconds",
		Help:      "Time to fetch, parse, and persist one skill revision.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	},
	[]string{"source"},
)

var ClassificationDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "registry",
		Subsystem: "classifier",
		Name:      "classification_duration_seconds",
		Help:      "Classification worker processing duration in seconds.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	},
	[]string{"method"},
)

var ClassificationSuggestionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "registry",
		Subsystem: "classifier",
		Name:      "suggestions_total",
		Help:      "Total number of AI-suggested categories produced, by acceptance.",
	},
	[]string{"accepted"},
)

var RankingScoreUpdatesTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "registry",
		Subsystem: "ranking",
		Name:      "score_updates_total",
		Help:      "Total number of skill popularity score recomputations.",
	},
)

var RankingSnapshotsPrunedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "registry",
		Subsystem: "ranking",
		Name:      "snapshots_pruned_total",
		Help:      "Total number of star snapshots evicted to stay within the retention bound.",
	},
)

var PollEventsFetchedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "registry",
		Subsystem: "poller",
		Name:      "events_fetched_total",
		Help:      "Total number of source-host events fetched, by event type.",
	},
	[]string{"event_type"},
)

var PollCursorLagSeconds = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "registry",
		Subsystem: "poller",
		Name:      "cursor_lag_seconds",
		Help:      "Age of the event poller's last successfully consumed cursor.",
	},
)

var ContentCacheHitsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "registry",
		Subsystem: "contentcache",
		Name:      "hits_total",
		Help:      "Total number of content cache lookups, by tier and outcome.",
	},
	[]string{"tier", "outcome"},
)

var SourceHostRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "registry",
		Subsystem: "sourcehost",
		Name:      "requests_total",
		Help:      "Total number of outbound source-host HTTP requests, by status class.",
	},
	[]string{"status_class"},
)

var SourceHostRetriesTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "registry",
		Subsystem: "sourcehost",
		Name:      "retries_total",
		Help:      "Total number of retried source-host requests after rate-limit or transient failure.",
	},
)

var DeviceAuthCodesIssuedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "registry",
		Subsystem: "devauth",
		Name:      "codes_issued_total",
		Help:      "Total number of device authorization codes issued.",
	},
)

var DeviceAuthExchangesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "registry",
		Subsystem: "devauth",
		Name:      "exchanges_total",
		Help:      "Total number of device code exchange attempts, by outcome.",
	},
	[]string{"outcome"},
)

var SearchRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "registry",
		Subsystem: "api",
		Name:      "search_duration_seconds",
		Help:      "Registry read API search request duration in seconds.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	},
	[]string{"endpoint"},
)

var RateLimitRejectionsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "registry",
		Subsystem: "api",
		Name:      "rate_limit_rejections_total",
		Help:      "Total number of requests rejected by the search rate limiter.",
	},
)

var SkillDownloadsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "registry",
		Subsystem: "api",
		Name:      "skill_downloads_total",
		Help:      "Total number of skill bundle downloads, by outcome.",
	},
	[]string{"outcome"},
)

// All returns all registry-specific metrics for registration.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		SkillsIndexedTotal,
		IndexDuration,
		ClassificationDuration,
		ClassificationSuggestionsTotal,
		RankingScoreUpdatesTotal,
		RankingSnapshotsPrunedTotal,
		PollEventsFetchedTotal,
		PollCursorLagSeconds,
		ContentCacheHitsTotal,
		SourceHostRequestsTotal,
		SourceHostRetriesTotal,
		DeviceAuthCodesIssuedTotal,
		DeviceAuthExchangesTotal,
		SearchRequestDuration,
		RateLimitRejectionsTotal,
		SkillDownloadsTotal,
	}
}
