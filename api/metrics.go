package api

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	settlementRuns     = prometheus.NewCounter(prometheus.CounterOpts{Name: "settlement_runs_total", Help: "Settlement runs completed"})
	settlementFailures = prometheus.NewCounter(prometheus.CounterOpts{Name: "settlement_failures_total", Help: "Settlement runs that ended in a fatal store error"})
	settlementWarnings = prometheus.NewCounter(prometheus.CounterOpts{Name: "settlement_warnings_total", Help: "Warnings emitted across settlement runs"})
	reportsCreated     = prometheus.NewCounter(prometheus.CounterOpts{Name: "settlement_reports_created_total", Help: "Job reports created by the report linker"})
)

// MetricsHandler exposes the /metrics HTTP handler with a singleton registry.
func MetricsHandler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			settlementRuns,
			settlementFailures,
			settlementWarnings,
			reportsCreated,
		)
	})
	return promhttp.Handler()
}
