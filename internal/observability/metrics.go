package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "sakila-graphql"

// GraphQLMetrics holds the request and facet-loading instruments.
type GraphQLMetrics struct {
	requestDuration metric.Float64Histogram
	requestCounter  metric.Int64Counter
	errorCounter    metric.Int64Counter
	activeRequests  metric.Int64UpDownCounter
	queryDepth      metric.Int64Histogram
	rootFields      metric.Int64Counter

	facetCacheHits    metric.Int64Counter
	facetCacheMisses  metric.Int64Counter
	facetBatchSize    metric.Int64Histogram
	facetQueriesSaved metric.Int64Counter
	facetDegraded     metric.Int64Counter
}

type instrumentErr struct {
	name string
	err  error
}

// instruments collects the first creation error so constructors can build
// every instrument and check once.
type instruments struct {
	meter metric.Meter
	fail  *instrumentErr
}

func (b *instruments) counter(name, desc string) metric.Int64Counter {
	c, err := b.meter.Int64Counter(name, metric.WithDescription(desc))
	b.note(name, err)
	return c
}

func (b *instruments) histogram(name, desc string) metric.Int64Histogram {
	h, err := b.meter.Int64Histogram(name, metric.WithDescription(desc))
	b.note(name, err)
	return h
}

func (b *instruments) note(name string, err error) {
	if err != nil && b.fail == nil {
		b.fail = &instrumentErr{name: name, err: err}
	}
}

func (b *instruments) err() error {
	if b.fail == nil {
		return nil
	}
	return fmt.Errorf("failed to create %s: %w", b.fail.name, b.fail.err)
}

// InitGraphQLMetrics creates the GraphQL instruments on the global meter provider.
func InitGraphQLMetrics() (*GraphQLMetrics, error) {
	b := &instruments{meter: otel.Meter(meterName)}

	duration, err := b.meter.Float64Histogram(
		"graphql.request.duration",
		metric.WithDescription("Duration of GraphQL requests in milliseconds"),
		metric.WithUnit("ms"),
	)
	b.note("graphql.request.duration", err)
	active, err := b.meter.Int64UpDownCounter(
		"graphql.requests.active",
		metric.WithDescription("Number of in-flight GraphQL requests"),
	)
	b.note("graphql.requests.active", err)

	m := &GraphQLMetrics{
		requestDuration: duration,
		activeRequests:  active,
		requestCounter:  b.counter("graphql.requests.total", "Total number of GraphQL requests"),
		errorCounter:    b.counter("graphql.errors.total", "Total number of GraphQL responses carrying errors"),
		queryDepth:      b.histogram("graphql.query.depth", "Selection depth of GraphQL operations"),
		rootFields:      b.counter("graphql.root_field.requests", "Requests per top-level catalog field"),

		facetCacheHits:    b.counter("catalog.facet.cache_hits", "Facet lookups served from the request cache"),
		facetCacheMisses:  b.counter("catalog.facet.cache_misses", "Facet lookups that reached the repository"),
		facetBatchSize:    b.histogram("catalog.facet.batch_size", "Films resolved by one batched facet query"),
		facetQueriesSaved: b.counter("catalog.facet.queries_saved", "Per-film facet queries avoided by batching"),
		facetDegraded:     b.counter("catalog.facet.degraded", "Facet failures replaced by empty values"),
	}
	if err := b.err(); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordRequest records a GraphQL request with its duration and outcome.
func (m *GraphQLMetrics) RecordRequest(ctx context.Context, duration time.Duration, hasErrors bool, operationType string) {
	attrs := metric.WithAttributes(
		attribute.String("operation_type", operationType),
		attribute.Bool("has_errors", hasErrors),
	)
	m.requestDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	m.requestCounter.Add(ctx, 1, attrs)
	if hasErrors {
		m.errorCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("operation_type", operationType)))
	}
}

// RecordQueryDepth records the selection depth of an operation.
func (m *GraphQLMetrics) RecordQueryDepth(ctx context.Context, depth int64, operationType string) {
	m.queryDepth.Record(ctx, depth, metric.WithAttributes(attribute.String("operation_type", operationType)))
}

// RecordRootFields counts one request against each selected root field.
func (m *GraphQLMetrics) RecordRootFields(ctx context.Context, fields []string) {
	for _, field := range fields {
		m.rootFields.Add(ctx, 1, metric.WithAttributes(attribute.String("field", field)))
	}
}

func facetAttr(facet string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("facet", facet))
}

func (m *GraphQLMetrics) RecordBatchCacheHit(ctx context.Context, facet string) {
	m.facetCacheHits.Add(ctx, 1, facetAttr(facet))
}

func (m *GraphQLMetrics) RecordBatchCacheMiss(ctx context.Context, facet string) {
	m.facetCacheMisses.Add(ctx, 1, facetAttr(facet))
}

func (m *GraphQLMetrics) RecordBatchFilmCount(ctx context.Context, count int64, facet string) {
	m.facetBatchSize.Record(ctx, count, facetAttr(facet))
}

func (m *GraphQLMetrics) RecordBatchQueriesSaved(ctx context.Context, count int64, facet string) {
	if count <= 0 {
		return
	}
	m.facetQueriesSaved.Add(ctx, count, facetAttr(facet))
}

// RecordFacetDegraded counts a facet failure that was tolerated.
func (m *GraphQLMetrics) RecordFacetDegraded(ctx context.Context, facet string) {
	m.facetDegraded.Add(ctx, 1, facetAttr(facet))
}

func (m *GraphQLMetrics) IncrementActiveRequests(ctx context.Context) {
	m.activeRequests.Add(ctx, 1)
}

func (m *GraphQLMetrics) DecrementActiveRequests(ctx context.Context) {
	m.activeRequests.Add(ctx, -1)
}

// InitMetrics initializes the GraphQL metrics and logs once they are ready.
func InitMetrics(logger *slog.Logger) (*GraphQLMetrics, error) {
	metrics, err := InitGraphQLMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize GraphQL metrics: %w", err)
	}
	logger.Info("custom GraphQL metrics initialized")
	return metrics, nil
}

type graphQLMetricsContextKey struct{}

// ContextWithGraphQLMetrics stores GraphQL metrics in the provided context.
func ContextWithGraphQLMetrics(ctx context.Context, metrics *GraphQLMetrics) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, graphQLMetricsContextKey{}, metrics)
}

// GraphQLMetricsFromContext retrieves GraphQL metrics from the context.
func GraphQLMetricsFromContext(ctx context.Context) *GraphQLMetrics {
	if ctx == nil {
		return nil
	}
	metrics, _ := ctx.Value(graphQLMetricsContextKey{}).(*GraphQLMetrics)
	return metrics
}
