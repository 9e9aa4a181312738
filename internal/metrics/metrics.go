// Package metrics holds the Prometheus collectors of the catalog.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_loads_total",
		Help: "Collection load attempts by outcome (success or error code).",
	}, []string{"outcome"})

	LoadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "catalog_load_duration_seconds",
		Help:    "Duration of one collection load attempt.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	RejectedRecordsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_rejected_records_total",
		Help: "Records filtered out by validation.",
	})

	RetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_retries_scheduled_total",
		Help: "Retries scheduled after a recoverable load failure.",
	})

	CacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_cache_hits_total",
		Help: "Requests served from the dataset cache.",
	})

	CacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_cache_misses_total",
		Help: "Requests that found no fresh cache entry.",
	})

	EmergencyCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_emergency_cache_total",
		Help: "Emergency cache operations by operation and result.",
	}, []string{"op", "result"})

	ProbesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_file_probes_total",
		Help: "Sample file existence probes by result.",
	}, []string{"result"})

	DownloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_downloads_total",
		Help: "Sample file fetches by status.",
	}, []string{"status"})

	DownloadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_download_bytes_total",
		Help: "Bytes of sample files fetched.",
	})
)
