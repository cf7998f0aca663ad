// Package metrics provides Prometheus metrics for import runs.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Upload results used as the "result" label.
const (
	UploadSuccess  = "success"
	UploadRejected = "rejected" // non-2xx response
	UploadError    = "error"    // transport error
)

// Metrics contains all Prometheus metrics for a migration run.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	LifelogsTotal  *prometheus.CounterVec // Lifelogs processed by outcome status
	UploadsTotal   *prometheus.CounterVec // Conversation uploads by result
	UploadDuration prometheus.Histogram   // Latency of a single upload call
	LimiterWait    prometheus.Histogram   // Time spent waiting for the shared rate limiter

	registry *prometheus.Registry
}

// New creates the metrics and registers them on registry.
func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register migration metrics: %w", err)
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	m.LifelogsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifelog_migrate_lifelogs_total",
			Help: "Total number of lifelogs processed by outcome status",
		},
		[]string{"status"}, // status: success, partial, failed, skipped
	)

	m.UploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifelog_migrate_uploads_total",
			Help: "Total number of conversation upload attempts by result",
		},
		[]string{"result"},
	)

	m.UploadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lifelog_migrate_upload_duration_seconds",
			Help:    "Time taken by a single conversation upload",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		},
	)

	m.LimiterWait = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lifelog_migrate_rate_limiter_wait_seconds",
			Help:    "Time workers spent blocked on the shared rate limiter",
			Buckets: []float64{0.001, 0.01, 0.1, 0.3, 0.6, 1.2, 2.5, 5.0},
		},
	)
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.LifelogsTotal.Describe(ch)
	m.UploadsTotal.Describe(ch)
	m.UploadDuration.Describe(ch)
	m.LimiterWait.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.LifelogsTotal.Collect(ch)
	m.UploadsTotal.Collect(ch)
	m.UploadDuration.Collect(ch)
	m.LimiterWait.Collect(ch)
}

// RecordLifelog counts one finished lifelog.
func (m *Metrics) RecordLifelog(status string) {
	if m == nil {
		return
	}
	m.LifelogsTotal.WithLabelValues(status).Inc()
}

// RecordUpload counts one upload attempt and its latency.
func (m *Metrics) RecordUpload(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.UploadsTotal.WithLabelValues(result).Inc()
	m.UploadDuration.Observe(d.Seconds())
}

// RecordLimiterWait observes time spent blocked on the rate limiter.
func (m *Metrics) RecordLimiterWait(d time.Duration) {
	if m == nil {
		return
	}
	m.LimiterWait.Observe(d.Seconds())
}

// Handler returns an HTTP handler exposing the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
