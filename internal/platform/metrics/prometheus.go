package metrics

import (
	"net/http"

	"github.com/carvio/listing-service/internal/platform/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Manager holds custom Prometheus metrics for the listing lifecycle.
type Manager struct {
	Registry *prometheus.Registry

	ListingsCreatedTotal    prometheus.Counter
	ListingsArchivedTotal   *prometheus.CounterVec // by cause: manual / auto
	ArchiveFailuresTotal    *prometheus.CounterVec // by cause
	SweepRunsTotal          prometheus.Counter
	SweepSkippedTotal       prometheus.Counter
	ImagePurgeFailuresTotal prometheus.Counter
}

// NewManager initializes and registers the lifecycle metrics on a dedicated
// registry.
func NewManager(serviceName string) *Manager {
	registry := prometheus.NewRegistry()

	listingsCreatedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: serviceName,
		Name:      "listings_created_total",
		Help:      "Total number of listings created.",
	})
	listingsArchivedTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: serviceName,
		Name:      "listings_archived_total",
		Help:      "Total number of listings archived and removed, by cause.",
	}, []string{"cause"})
	archiveFailuresTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: serviceName,
		Name:      "archive_failures_total",
		Help:      "Total number of failed archive transactions, by cause.",
	}, []string{"cause"})
	sweepRunsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: serviceName,
		Name:      "sweep_runs_total",
		Help:      "Total number of completed sweep runs.",
	})
	sweepSkippedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: serviceName,
		Name:      "sweep_skipped_total",
		Help:      "Listings skipped by the sweep because a concurrent archive won.",
	})
	imagePurgeFailuresTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: serviceName,
		Name:      "image_purge_failures_total",
		Help:      "Image deletions that failed during archive; abandoned, logs only.",
	})

	registry.MustRegister(
		listingsCreatedTotal,
		listingsArchivedTotal,
		archiveFailuresTotal,
		sweepRunsTotal,
		sweepSkippedTotal,
		imagePurgeFailuresTotal,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	return &Manager{
		Registry:                registry,
		ListingsCreatedTotal:    listingsCreatedTotal,
		ListingsArchivedTotal:   listingsArchivedTotal,
		ArchiveFailuresTotal:    archiveFailuresTotal,
		SweepRunsTotal:          sweepRunsTotal,
		SweepSkippedTotal:       sweepSkippedTotal,
		ImagePurgeFailuresTotal: imagePurgeFailuresTotal,
	}
}

// StartMetricsServer exposes the registry on its own HTTP port.
func StartMetricsServer(port string, appLogger *logger.Logger, registry *prometheus.Registry) error {
	if port == "" {
		appLogger.Info("Prometheus metrics server port not configured, server will not start.")
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	appLogger.Info("Prometheus metrics server starting", zap.String("port", port), zap.String("path", "/metrics"))

	server := &http.Server{
		Addr:    ":" + port,
		Handler: mux,
	}
	return server.ListenAndServe()
}
