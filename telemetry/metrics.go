// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	ETLCycles        prometheus.Counter
	ETLCycleFailures prometheus.Counter
	RowsExtracted    prometheus.Counter
	RowsAppended     prometheus.Counter
	RowsSkipped      prometheus.Counter
	GameLookups      prometheus.Counter
	GameLookupFails  prometheus.Counter

	// Histograms (seconds)
	ExtractDuration   prometheus.Observer
	TransformDuration prometheus.Observer
	LoadDuration      prometheus.Observer
	CycleDuration     prometheus.Observer

	// Gauges
	StoreRowsGauge prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		ETLCycles = promauto.NewCounter(prometheus.CounterOpts{Name: "etl_cycles_total", Help: "Number of ETL cycles run"})
		ETLCycleFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "etl_cycle_failures_total", Help: "Number of ETL cycles that ended in error"})
		RowsExtracted = promauto.NewCounter(prometheus.CounterOpts{Name: "etl_rows_extracted_total", Help: "Raw stream rows extracted"})
		RowsAppended = promauto.NewCounter(prometheus.CounterOpts{Name: "etl_rows_appended_total", Help: "Rows newly appended to the store"})
		RowsSkipped = promauto.NewCounter(prometheus.CounterOpts{Name: "etl_rows_skipped_total", Help: "Rows skipped as already present"})
		GameLookups = promauto.NewCounter(prometheus.CounterOpts{Name: "etl_game_lookups_total", Help: "Game reference lookup calls"})
		GameLookupFails = promauto.NewCounter(prometheus.CounterOpts{Name: "etl_game_lookup_failures_total", Help: "Game reference lookup failures"})
		ExtractDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "etl_extract_duration_seconds", Help: "Extract stage duration seconds", Buckets: prometheus.DefBuckets})
		TransformDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "etl_transform_duration_seconds", Help: "Transform stage duration seconds", Buckets: prometheus.DefBuckets})
		LoadDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "etl_load_duration_seconds", Help: "Load stage duration seconds", Buckets: prometheus.DefBuckets})
		CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "etl_cycle_duration_seconds", Help: "Full ETL cycle duration seconds", Buckets: prometheus.DefBuckets})
		StoreRowsGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "etl_store_rows", Help: "Current total rows in the streams store"})
	})
}

// SetStoreRows records the current store size.
func SetStoreRows(n int64) {
	if StoreRowsGauge != nil {
		StoreRowsGauge.Set(float64(n))
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding correlation id (if absent) and the id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
