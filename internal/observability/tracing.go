package observability

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Tracer returns a tracer for the given name
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// StartSpan starts a new span from context
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name, opts...)
}

// StartServiceSpan starts a span for service operations
func StartServiceSpan(ctx context.Context, service, operation string) (context.Context, trace.Span) {
	return StartSpan(ctx, fmt.Sprintf("%s.%s", service, operation),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("service.component", service),
			attribute.String("service.operation", operation),
		),
	)
}

// RecordError records an error on the span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSuccess marks the span as successful
func SetSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// AddEvent adds an event to the span
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// DatabaseMetrics holds local-store query metrics
type DatabaseMetrics struct {
	queryDuration metric.Float64Histogram
	queryCount    metric.Int64Counter
	errorCount    metric.Int64Counter
}

// NewDatabaseMetrics creates database metrics instruments
func NewDatabaseMetrics() (*DatabaseMetrics, error) {
	meter := otel.Meter(instrumentationName)

	queryDuration, err := meter.Float64Histogram(
		"db.query.duration",
		metric.WithDescription("Local store query duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	queryCount, err := meter.Int64Counter(
		"db.query.count",
		metric.WithDescription("Total number of local store queries"),
		metric.WithUnit("{queries}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"db.error.count",
		metric.WithDescription("Total number of local store errors"),
		metric.WithUnit("{errors}"),
	)
	if err != nil {
		return nil, err
	}

	return &DatabaseMetrics{
		queryDuration: queryDuration,
		queryCount:    queryCount,
		errorCount:    errorCount,
	}, nil
}

// RecordQuery records local store query metrics
func (m *DatabaseMetrics) RecordQuery(ctx context.Context, operation, table string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("db.operation", operation),
		attribute.String("db.sql.table", table),
	}

	m.queryCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.queryDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))

	if err != nil {
		m.errorCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// TraceDB wraps the local store connection with tracing
type TraceDB struct {
	db       *sql.DB
	dbSystem string
	metrics  *DatabaseMetrics
}

// NewTraceDB creates a traced database wrapper. dbSystem names the backend
// ("sqlite" or "postgresql") for span attribution.
func NewTraceDB(db *sql.DB, dbSystem string) (*TraceDB, error) {
	metrics, err := NewDatabaseMetrics()
	if err != nil {
		return nil, err
	}

	return &TraceDB{
		db:       db,
		dbSystem: dbSystem,
		metrics:  metrics,
	}, nil
}

// QueryContext executes a query with tracing
func (t *TraceDB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	ctx, span := StartSpan(ctx, "DB Query",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", t.dbSystem),
			attribute.String("db.statement", truncateQuery(query)),
		),
	)
	defer span.End()

	start := time.Now()
	rows, err := t.db.QueryContext(ctx, query, args...)
	duration := time.Since(start)

	if err != nil {
		RecordError(span, err)
	} else {
		SetSuccess(span)
	}

	span.SetAttributes(attribute.Int64("db.query_duration_ms", duration.Milliseconds()))

	return rows, err
}

// ExecContext executes a statement with tracing
func (t *TraceDB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	ctx, span := StartSpan(ctx, "DB Exec",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", t.dbSystem),
			attribute.String("db.statement", truncateQuery(query)),
		),
	)
	defer span.End()

	start := time.Now()
	result, err := t.db.ExecContext(ctx, query, args...)
	duration := time.Since(start)

	if err != nil {
		RecordError(span, err)
	} else {
		SetSuccess(span)
		if rowsAffected, raErr := result.RowsAffected(); raErr == nil {
			span.SetAttributes(attribute.Int64("db.rows_affected", rowsAffected))
		}
	}

	span.SetAttributes(attribute.Int64("db.query_duration_ms", duration.Milliseconds()))

	return result, err
}

// QueryRowContext executes a query that returns a single row with tracing
func (t *TraceDB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	ctx, span := StartSpan(ctx, "DB QueryRow",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", t.dbSystem),
			attribute.String("db.statement", truncateQuery(query)),
		),
	)

	row := t.db.QueryRowContext(ctx, query, args...)
	span.End()
	return row
}

// DB returns the underlying database connection
func (t *TraceDB) DB() *sql.DB {
	return t.db
}

func truncateQuery(query string) string {
	if len(query) > 500 {
		return query[:500] + "..."
	}
	return query
}

// BusinessMetrics holds the daemon's domain metrics
type BusinessMetrics struct {
	captures     metric.Int64Counter
	syncBatches  metric.Int64Counter
	syncFailures metric.Int64Counter
	transforms   metric.Int64Counter
	cacheLookups metric.Int64Counter
	ordersPlaced metric.Int64Counter
	payloadBytes metric.Int64UpDownCounter
}

// NewBusinessMetrics creates business metrics instruments
func NewBusinessMetrics() (*BusinessMetrics, error) {
	meter := otel.Meter(instrumentationName)

	captures, err := meter.Int64Counter(
		"picsyncd.captures",
		metric.WithDescription("Total number of photo captures"),
		metric.WithUnit("{captures}"),
	)
	if err != nil {
		return nil, err
	}

	syncBatches, err := meter.Int64Counter(
		"picsyncd.sync.batches",
		metric.WithDescription("Total number of completed sync batches"),
		metric.WithUnit("{batches}"),
	)
	if err != nil {
		return nil, err
	}

	syncFailures, err := meter.Int64Counter(
		"picsyncd.sync.failures",
		metric.WithDescription("Total number of records that failed to sync"),
		metric.WithUnit("{records}"),
	)
	if err != nil {
		return nil, err
	}

	transforms, err := meter.Int64Counter(
		"picsyncd.transforms",
		metric.WithDescription("Total number of AI transform dispatches"),
		metric.WithUnit("{transforms}"),
	)
	if err != nil {
		return nil, err
	}

	cacheLookups, err := meter.Int64Counter(
		"picsyncd.cache.lookups",
		metric.WithDescription("Merged-list cache lookups"),
		metric.WithUnit("{lookups}"),
	)
	if err != nil {
		return nil, err
	}

	ordersPlaced, err := meter.Int64Counter(
		"picsyncd.orders",
		metric.WithDescription("Total number of print orders placed"),
		metric.WithUnit("{orders}"),
	)
	if err != nil {
		return nil, err
	}

	payloadBytes, err := meter.Int64UpDownCounter(
		"picsyncd.local.bytes",
		metric.WithDescription("Bytes of capture payloads held locally"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	return &BusinessMetrics{
		captures:     captures,
		syncBatches:  syncBatches,
		syncFailures: syncFailures,
		transforms:   transforms,
		cacheLookups: cacheLookups,
		ordersPlaced: ordersPlaced,
		payloadBytes: payloadBytes,
	}, nil
}

// RecordCapture records a stored capture
func (m *BusinessMetrics) RecordCapture(ctx context.Context, userID string, payloadSize int64) {
	attrs := []attribute.KeyValue{
		attribute.String("user_id", userID),
	}
	m.captures.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.payloadBytes.Add(ctx, payloadSize)
}

// RecordSyncBatch records the outcome of one sync batch
func (m *BusinessMetrics) RecordSyncBatch(ctx context.Context, userID string, successful, failed int) {
	attrs := []attribute.KeyValue{
		attribute.String("user_id", userID),
		attribute.Int("successful", successful),
	}
	m.syncBatches.Add(ctx, 1, metric.WithAttributes(attrs...))
	if failed > 0 {
		m.syncFailures.Add(ctx, int64(failed), metric.WithAttributes(attribute.String("user_id", userID)))
	}
}

// RecordTransform records an AI transform dispatch
func (m *BusinessMetrics) RecordTransform(ctx context.Context, operation string, success bool) {
	attrs := []attribute.KeyValue{
		attribute.String("operation", operation),
		attribute.Bool("success", success),
	}
	m.transforms.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCacheLookup records a merged-list cache lookup
func (m *BusinessMetrics) RecordCacheLookup(ctx context.Context, hit bool) {
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.Bool("hit", hit)))
}

// RecordOrder records a placed print order
func (m *BusinessMetrics) RecordOrder(ctx context.Context, userID string, quantity int) {
	attrs := []attribute.KeyValue{
		attribute.String("user_id", userID),
		attribute.Int("quantity", quantity),
	}
	m.ordersPlaced.Add(ctx, 1, metric.WithAttributes(attrs...))
}
