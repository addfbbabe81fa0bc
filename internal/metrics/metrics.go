// Package metrics exposes pipeline counters on a per-process Prometheus
// registry. Batch runs have no scrape endpoint, so the registry is pushed to
// a Pushgateway when the run ends.
package metrics

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics holds all Prometheus metrics for the pipeline.
type Metrics struct {
	Registry *prometheus.Registry

	// Stage merges (labels: stage)
	RowsIn        *prometheus.CounterVec
	RowsOut       *prometheus.CounterVec
	RowsInserted  *prometheus.CounterVec
	RowsUpdated   *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
	StageFailures *prometheus.CounterVec
	Watermark     *prometheus.GaugeVec // unix seconds of the stage scalar watermark

	// Ingestion (labels: source)
	BarsFetched       *prometheus.CounterVec
	FetchFailures     *prometheus.CounterVec
	FetchRetries      *prometheus.CounterVec
	DuplicatesDropped prometheus.Counter

	// Circuit breaker (labels: source)
	BreakerState *prometheus.GaugeVec // 0=closed, 1=open, 2=half-open
	BreakerTrips *prometheus.CounterVec

	LastRunSuccess prometheus.Gauge // unix seconds
}

// New registers and returns all metrics on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		RowsIn: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_stage_rows_in_total",
			Help: "Rows read by a stage",
		}, []string{"stage"}),
		RowsOut: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_stage_rows_out_total",
			Help: "Rows written by a stage merge",
		}, []string{"stage"}),
		RowsInserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_stage_rows_inserted_total",
			Help: "Rows inserted by a stage merge",
		}, []string{"stage"}),
		RowsUpdated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_stage_rows_updated_total",
			Help: "Rows updated in place by a stage merge",
		}, []string{"stage"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pipeline_stage_duration_seconds",
			Help:    "Stage wall-clock duration",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"stage"}),
		StageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_stage_failures_total",
			Help: "Stage runs that aborted without committing",
		}, []string{"stage"}),
		Watermark: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pipeline_watermark_timestamp_seconds",
			Help: "Committed stage watermark (max trade date) as unix seconds",
		}, []string{"stage"}),

		BarsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_source_bars_fetched_total",
			Help: "Raw bars returned by a price source",
		}, []string{"source"}),
		FetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_source_fetch_failures_total",
			Help: "Per-symbol fetches that failed after retries",
		}, []string{"source"}),
		FetchRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_source_fetch_retries_total",
			Help: "Retried provider requests",
		}, []string{"source"}),
		DuplicatesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pipeline_bronze_duplicates_dropped_total",
			Help: "Fetched bars dropped because their (timestamp, ticker) already existed",
		}),

		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pipeline_source_circuit_breaker_state",
			Help: "Source circuit breaker state (0=closed, 1=open, 2=half-open)",
		}, []string{"source"}),
		BreakerTrips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_source_circuit_breaker_trips_total",
			Help: "Times a source circuit breaker tripped open",
		}, []string{"source"}),

		LastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pipeline_last_success_timestamp_seconds",
			Help: "Completion time of the last successful run",
		}),
	}

	m.Registry.MustRegister(
		m.RowsIn,
		m.RowsOut,
		m.RowsInserted,
		m.RowsUpdated,
		m.StageDuration,
		m.StageFailures,
		m.Watermark,
		m.BarsFetched,
		m.FetchFailures,
		m.FetchRetries,
		m.DuplicatesDropped,
		m.BreakerState,
		m.BreakerTrips,
		m.LastRunSuccess,
	)

	return m
}

// ObserveMerge records one committed stage merge. Safe on a nil receiver.
func (m *Metrics) ObserveMerge(stage string, in, inserted, updated int, d time.Duration) {
	if m == nil {
		return
	}
	m.RowsIn.WithLabelValues(stage).Add(float64(in))
	m.RowsOut.WithLabelValues(stage).Add(float64(inserted + updated))
	m.RowsInserted.WithLabelValues(stage).Add(float64(inserted))
	m.RowsUpdated.WithLabelValues(stage).Add(float64(updated))
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveFailure counts an aborted stage run. Safe on a nil receiver.
func (m *Metrics) ObserveFailure(stage string) {
	if m == nil {
		return
	}
	m.StageFailures.WithLabelValues(stage).Inc()
}

// SetWatermark records a stage watermark; the zero time clears it.
func (m *Metrics) SetWatermark(stage string, t time.Time) {
	if m == nil {
		return
	}
	if t.IsZero() {
		m.Watermark.WithLabelValues(stage).Set(0)
		return
	}
	m.Watermark.WithLabelValues(stage).Set(float64(t.Unix()))
}

// ObserveFetch records one per-symbol fetch outcome.
func (m *Metrics) ObserveFetch(source string, bars int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.FetchFailures.WithLabelValues(source).Inc()
		return
	}
	m.BarsFetched.WithLabelValues(source).Add(float64(bars))
}

// ObserveRetry counts a retried request.
func (m *Metrics) ObserveRetry(source string) {
	if m == nil {
		return
	}
	m.FetchRetries.WithLabelValues(source).Inc()
}

// ObserveDuplicates counts bars dropped by Bronze dedup.
func (m *Metrics) ObserveDuplicates(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.DuplicatesDropped.Add(float64(n))
}

// ObserveBreaker records a breaker transition; state uses the breaker's
// numeric encoding.
func (m *Metrics) ObserveBreaker(source string, state int) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(source).Set(float64(state))
	if state == 1 {
		m.BreakerTrips.WithLabelValues(source).Inc()
	}
}

// MarkSuccess stamps the last successful run.
func (m *Metrics) MarkSuccess(t time.Time) {
	if m == nil {
		return
	}
	m.LastRunSuccess.Set(float64(t.Unix()))
}

// Push sends the registry to a Pushgateway under job. An empty url is a
// no-op.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if m == nil || url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(m.Registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	log.Printf("[metrics] pushed to %s job=%s", url, job)
	return nil
}
