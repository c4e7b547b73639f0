package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records the query execution lifecycle.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordFetch records one settled fetch with duration and error status.
	RecordFetch(ctx context.Context, meta QueryMeta, duration time.Duration, err error)

	// RecordCacheRead records a cache lookup outcome ("fresh", "stale"
	// or "miss").
	RecordCacheRead(ctx context.Context, meta QueryMeta, outcome string)

	// RecordRetry records one retry attempt.
	RecordRetry(ctx context.Context, meta QueryMeta, attempt int)

	// RecordDedupJoin records a caller joining an already in-flight fetch.
	RecordDedupJoin(ctx context.Context, meta QueryMeta)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	meter        metric.Meter
	fetchCount   metric.Int64Counter
	errorCount   metric.Int64Counter
	durationHist metric.Float64Histogram
	cacheReads   metric.Int64Counter
	retryCount   metric.Int64Counter
	dedupJoins   metric.Int64Counter
}

// NewMetrics creates a new Metrics instance with the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	fetchCount, err := meter.Int64Counter(
		"query.fetch.total",
		metric.WithDescription("Total number of query fetches"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"query.fetch.errors",
		metric.WithDescription("Total number of query fetch errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"query.fetch.duration_ms",
		metric.WithDescription("Query fetch duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	cacheReads, err := meter.Int64Counter(
		"query.cache.reads",
		metric.WithDescription("Cache lookups, partitioned by outcome"),
		metric.WithUnit("{read}"),
	)
	if err != nil {
		return nil, err
	}

	retryCount, err := meter.Int64Counter(
		"query.fetch.retries",
		metric.WithDescription("Total number of fetch retry attempts"),
		metric.WithUnit("{retry}"),
	)
	if err != nil {
		return nil, err
	}

	dedupJoins, err := meter.Int64Counter(
		"query.dedup.joined",
		metric.WithDescription("Callers that joined an in-flight fetch"),
		metric.WithUnit("{join}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		meter:        meter,
		fetchCount:   fetchCount,
		errorCount:   errorCount,
		durationHist: durationHist,
		cacheReads:   cacheReads,
		retryCount:   retryCount,
		dedupJoins:   dedupJoins,
	}, nil
}

func (m *metricsImpl) attrs(meta QueryMeta) metric.MeasurementOption {
	attrs := []attribute.KeyValue{
		attribute.String("query.key", meta.Key),
	}
	if meta.Scope != "" {
		attrs = append(attrs, attribute.String("query.scope", meta.Scope))
	}
	return metric.WithAttributes(attrs...)
}

// RecordFetch records metrics for one settled fetch.
func (m *metricsImpl) RecordFetch(ctx context.Context, meta QueryMeta, duration time.Duration, err error) {
	opt := m.attrs(meta)

	m.fetchCount.Add(ctx, 1, opt)
	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

// RecordCacheRead records a cache lookup outcome.
func (m *metricsImpl) RecordCacheRead(ctx context.Context, meta QueryMeta, outcome string) {
	attrs := []attribute.KeyValue{
		attribute.String("query.key", meta.Key),
		attribute.String("outcome", outcome),
	}
	if meta.Scope != "" {
		attrs = append(attrs, attribute.String("query.scope", meta.Scope))
	}
	m.cacheReads.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRetry records one retry attempt.
func (m *metricsImpl) RecordRetry(ctx context.Context, meta QueryMeta, attempt int) {
	attrs := []attribute.KeyValue{
		attribute.String("query.key", meta.Key),
		attribute.Int("attempt", attempt),
	}
	m.retryCount.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordDedupJoin records a caller joining an already in-flight fetch.
func (m *metricsImpl) RecordDedupJoin(ctx context.Context, meta QueryMeta) {
	m.dedupJoins.Add(ctx, 1, m.attrs(meta))
}

// NoopMetrics is a Metrics implementation that does nothing.
type NoopMetrics struct{}

func (NoopMetrics) RecordFetch(context.Context, QueryMeta, time.Duration, error) {}
func (NoopMetrics) RecordCacheRead(context.Context, QueryMeta, string)           {}
func (NoopMetrics) RecordRetry(context.Context, QueryMeta, int)                  {}
func (NoopMetrics) RecordDedupJoin(context.Context, QueryMeta)                   {}

// Ensure implementations satisfy Metrics
var (
	_ Metrics = (*metricsImpl)(nil)
	_ Metrics = NoopMetrics{}
)
