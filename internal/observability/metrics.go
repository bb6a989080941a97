package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AssetsImported = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assetlib",
		Name:      "assets_imported_total",
		Help:      "Total number of files imported into a library",
	}, []string{"file_type"})

	DerivedAssets = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assetlib",
		Name:      "derived_assets_total",
		Help:      "Total number of assets produced by a generator",
	}, []string{"generator"})

	GeneratorDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "assetlib",
		Name:      "generator_duration_seconds",
		Help:      "Duration of derived-asset generation, I/O included",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
	}, []string{"generator"})

	ThumbnailFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "assetlib",
		Name:      "thumbnail_failures_total",
		Help:      "Thumbnails that could not be rendered",
	})

	ThumbnailQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "assetlib",
		Name:      "thumbnail_queue_depth",
		Help:      "Number of pending thumbnail backfill jobs",
	})

	SemanticSearchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "assetlib",
		Name:      "semantic_search_duration_seconds",
		Help:      "Duration of semantic search including query embedding",
		Buckets:   prometheus.DefBuckets,
	})

	ProviderErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assetlib",
		Name:      "provider_errors_total",
		Help:      "Failed calls to the AI provider",
	}, []string{"op"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "assetlib",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "assetlib",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
