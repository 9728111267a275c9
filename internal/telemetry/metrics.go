package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hermes_runs_total",
		Help: "Finalized runs by terminal status",
	}, []string{"status"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hermes_run_duration_seconds",
		Help:    "Wall-clock duration of finalized runs",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
	})

	serviceResultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hermes_service_results_total",
		Help: "Per-service results by terminal status",
	}, []string{"status"})

	serviceDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hermes_service_duration_seconds",
		Help:    "Duration of a single worker invocation",
		Buckets: prometheus.DefBuckets,
	})

	coldStartRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hermes_coldstart_retries_total",
		Help: "Cold-start retries issued by the worker caller, by first-attempt error class",
	}, []string{"class"})

	testJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hermes_test_jobs_total",
		Help: "Finished test jobs by type and status",
	}, []string{"type", "status"})

	// APIRequests — счётчик HTTP-запросов API.
	APIRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hermes_api_http_requests_total",
		Help: "Total HTTP requests handled by hermes-api",
	})
)

// ObserveRun записывает метрики финализированного run.
func ObserveRun(status string, d time.Duration) {
	runsTotal.WithLabelValues(status).Inc()
	runDuration.Observe(d.Seconds())
}

// ObserveService записывает метрики результата сервиса.
func ObserveService(status string, durationMs int64) {
	serviceResultsTotal.WithLabelValues(status).Inc()
	if durationMs > 0 {
		serviceDuration.Observe(float64(durationMs) / 1000)
	}
}

// ObserveColdStartRetry увеличивает счётчик повторов после холодного старта.
func ObserveColdStartRetry(class string) {
	coldStartRetries.WithLabelValues(class).Inc()
}

// ObserveTestJob записывает итог тестовой задачи.
func ObserveTestJob(jobType, status string) {
	testJobsTotal.WithLabelValues(jobType, status).Inc()
}
