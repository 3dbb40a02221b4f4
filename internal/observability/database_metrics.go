package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// DatabaseMetrics tracks health probes and circuit breaker transitions.
type DatabaseMetrics struct {
	healthChecks    metric.Int64Counter
	healthDuration  metric.Float64Histogram
	breakerChanges  metric.Int64Counter
	lastHealthyUnix atomic.Int64
	breakerOpen     atomic.Int64
}

// InitDatabaseMetrics creates the database instruments.
func InitDatabaseMetrics(logger *slog.Logger) (*DatabaseMetrics, error) {
	b := &instruments{meter: otel.Meter(meterName)}

	healthDuration, err := b.meter.Float64Histogram(
		"db.health_check.duration",
		metric.WithDescription("Duration of database health probes in milliseconds"),
		metric.WithUnit("ms"),
	)
	b.note("db.health_check.duration", err)
	lastHealthy, err := b.meter.Int64ObservableGauge(
		"db.health_check.last_success_unix",
		metric.WithDescription("Unix timestamp of the last successful database health probe"),
		metric.WithUnit("s"),
	)
	b.note("db.health_check.last_success_unix", err)
	openGauge, err := b.meter.Int64ObservableGauge(
		"db.circuit_breaker.open",
		metric.WithDescription("1 while the database circuit breaker is open"),
	)
	b.note("db.circuit_breaker.open", err)

	m := &DatabaseMetrics{
		healthChecks:   b.counter("db.health_check.total", "Database health probes by outcome"),
		healthDuration: healthDuration,
		breakerChanges: b.counter("db.circuit_breaker.transitions", "Database circuit breaker state changes"),
	}
	if err := b.err(); err != nil {
		return nil, err
	}

	_, err = b.meter.RegisterCallback(
		func(ctx context.Context, observer metric.Observer) error {
			if v := m.lastHealthyUnix.Load(); v > 0 {
				observer.ObserveInt64(lastHealthy, v)
			}
			observer.ObserveInt64(openGauge, m.breakerOpen.Load())
			return nil
		},
		lastHealthy, openGauge,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register database gauge callback: %w", err)
	}

	logger.Info("database metrics initialized")
	return m, nil
}

// RecordHealthCheck records one health probe.
func (m *DatabaseMetrics) RecordHealthCheck(ctx context.Context, duration time.Duration, healthy bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Bool("healthy", healthy))
	m.healthChecks.Add(ctx, 1, attrs)
	m.healthDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	if healthy {
		m.lastHealthyUnix.Store(time.Now().Unix())
	}
}

// RecordBreakerTransition records a circuit breaker state change.
func (m *DatabaseMetrics) RecordBreakerTransition(name, from, to string) {
	if m == nil {
		return
	}
	m.breakerChanges.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("breaker", name),
		attribute.String("from", from),
		attribute.String("to", to),
	))
	if to == "open" {
		m.breakerOpen.Store(1)
	} else {
		m.breakerOpen.Store(0)
	}
}
