package serverapp

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/XSAM/otelsql"
	"github.com/cenkalti/backoff/v5"
	_ "github.com/go-sql-driver/mysql"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"sakila-graphql/internal/catalog"
	"sakila-graphql/internal/config"
	"sakila-graphql/internal/dbexec"
	"sakila-graphql/internal/introspection"
	"sakila-graphql/internal/logging"
	"sakila-graphql/internal/observability"
	"sakila-graphql/internal/resolver"
)

const breakerName = "sakila"

func otelConfig(cfg *config.Config, exporter config.OTLPConfig) observability.Config {
	return observability.Config{
		ServiceName:      cfg.Observability.ServiceName,
		ServiceVersion:   cfg.Observability.ServiceVersion,
		Environment:      cfg.Observability.Environment,
		TraceSampleRatio: cfg.Observability.TraceSampleRatio,
		OTLPConfig: observability.OTLPExporterConfig{
			Endpoint:          exporter.Endpoint,
			Protocol:          exporter.Protocol,
			Insecure:          exporter.Insecure,
			TLSCertFile:       exporter.TLSCertFile,
			TLSClientCertFile: exporter.TLSClientCertFile,
			TLSClientKeyFile:  exporter.TLSClientKeyFile,
			Headers:           exporter.Headers,
			Timeout:           exporter.Timeout,
			Compression:       exporter.Compression,
			RetryEnabled:      exporter.RetryEnabled,
			RetryMaxAttempts:  exporter.RetryMaxAttempts,
		},
	}
}

// InitLogger builds the process logger. With OTLP log export enabled the
// logger is rebuilt on top of the new provider, which the caller must shut
// down (normally through App.AttachLoggerProvider).
func InitLogger(cfg *config.Config) (*logging.Logger, *observability.LoggerProvider, error) {
	loggerCfg := logging.Config{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
	}
	logger := logging.NewLogger(loggerCfg)
	slog.SetDefault(logger.Logger)

	if !cfg.Observability.Logging.ExportsEnabled {
		return logger, nil, nil
	}

	logsConfig := cfg.Observability.GetLogsConfig()
	logger.Info("initializing OpenTelemetry logging",
		slog.String("service_name", cfg.Observability.ServiceName),
		slog.String("otlp_endpoint", logsConfig.Endpoint),
		slog.String("otlp_protocol", logsConfig.Protocol),
		slog.Bool("insecure", logsConfig.Insecure),
	)

	loggerProvider, err := observability.InitLoggerProvider(otelConfig(cfg, logsConfig))
	if err != nil {
		return nil, nil, err
	}

	loggerCfg.LoggerProvider = loggerProvider.Provider()
	logger = logging.NewLogger(loggerCfg)
	slog.SetDefault(logger.Logger)
	logger.Info("OpenTelemetry logging initialized")

	return logger, loggerProvider, nil
}

func initMetrics(cfg *config.Config, logger *logging.Logger) (*observability.MeterProvider, *observability.GraphQLMetrics, *observability.DatabaseMetrics, error) {
	if !cfg.Observability.MetricsEnabled {
		return nil, nil, nil, nil
	}

	meterProvider, err := observability.InitMeterProvider(otelConfig(cfg, config.OTLPConfig{}))
	if err != nil {
		return nil, nil, nil, err
	}

	graphqlMetrics, err := observability.InitMetrics(logger.Logger)
	if err != nil {
		return nil, nil, nil, err
	}
	databaseMetrics, err := observability.InitDatabaseMetrics(logger.Logger)
	if err != nil {
		return nil, nil, nil, err
	}

	logger.Info("OpenTelemetry metrics initialized",
		slog.String("service_name", cfg.Observability.ServiceName),
		slog.String("environment", cfg.Observability.Environment),
	)
	return meterProvider, graphqlMetrics, databaseMetrics, nil
}

func initTracing(cfg *config.Config, logger *logging.Logger) (*observability.TracerProvider, error) {
	if !cfg.Observability.TracingEnabled {
		return nil, nil
	}

	tracesConfig := cfg.Observability.GetTracesConfig()
	logger.Info("initializing OpenTelemetry tracing",
		slog.String("service_name", cfg.Observability.ServiceName),
		slog.String("otlp_endpoint", tracesConfig.Endpoint),
		slog.String("otlp_protocol", tracesConfig.Protocol),
		slog.Float64("sample_ratio", cfg.Observability.TraceSampleRatio),
	)

	tracerProvider, err := observability.InitTracerProvider(otelConfig(cfg, tracesConfig))
	if err != nil {
		return nil, err
	}
	logger.Info("OpenTelemetry tracing initialized")
	return tracerProvider, nil
}

func connectDB(cfg *config.Config, logger *logging.Logger) (*sql.DB, interface{ Unregister() error }, error) {
	if err := cfg.Database.RegisterTLS(); err != nil {
		return nil, nil, fmt.Errorf("failed to register database TLS config: %w", err)
	}
	dsn, err := cfg.Database.DSN()
	if err != nil {
		return nil, nil, err
	}

	obs := cfg.Observability
	if !obs.MetricsEnabled && !obs.TracingEnabled {
		db, err := sql.Open("mysql", dsn)
		return db, nil, err
	}

	opts := []otelsql.Option{otelsql.WithAttributes(semconv.DBSystemMySQL)}
	if obs.TracingEnabled {
		opts = append(opts, otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}))
	}
	sqlCommenter := obs.SQLCommenterEnabled && obs.TracingEnabled
	if sqlCommenter {
		opts = append(opts, otelsql.WithSQLCommenter(true))
	} else if obs.SQLCommenterEnabled {
		logger.Warn("SQLCommenter requires tracing to be enabled - skipping SQLCommenter")
	}

	db, err := otelsql.Open("mysql", dsn, opts...)
	if err != nil {
		return nil, nil, err
	}

	var dbStatsReg interface{ Unregister() error }
	if obs.MetricsEnabled {
		dbStatsReg, err = otelsql.RegisterDBStatsMetrics(db, otelsql.WithAttributes(semconv.DBSystemMySQL))
		if err != nil {
			logger.Warn("failed to register DB stats metrics", slog.String("error", err.Error()))
		}
	}

	logger.Info("database instrumentation enabled",
		slog.Bool("metrics", obs.MetricsEnabled),
		slog.Bool("tracing", obs.TracingEnabled),
		slog.Bool("sqlcommenter", sqlCommenter),
	)
	return db, dbStatsReg, nil
}

func configureDatabase(ctx context.Context, cfg *config.Config, logger *logging.Logger, db *sql.DB, databaseName string) error {
	db.SetMaxOpenConns(cfg.Database.Pool.MaxOpen)
	db.SetMaxIdleConns(cfg.Database.Pool.MaxIdle)
	db.SetConnMaxLifetime(cfg.Database.Pool.MaxLifetime)

	if err := waitForDatabase(ctx, cfg, logger, db); err != nil {
		return err
	}

	logger.Info("connected to database",
		slog.String("database", databaseName),
		slog.Int("pool_max_open", cfg.Database.Pool.MaxOpen),
		slog.Int("pool_max_idle", cfg.Database.Pool.MaxIdle),
		slog.Duration("pool_max_lifetime", cfg.Database.Pool.MaxLifetime),
	)
	return nil
}

func verifySchema(ctx context.Context, cfg *config.Config, logger *logging.Logger, db introspection.Queryer, databaseName string) error {
	if !cfg.Database.VerifySchema {
		logger.Info("Sakila schema check disabled")
		return nil
	}
	report, err := introspection.Verify(ctx, db, databaseName)
	if err != nil {
		return err
	}
	logger.Info("Sakila schema verified",
		slog.String("database", databaseName),
		slog.Int("tables", report.Tables),
		slog.Any("film_ratings", report.RatingValues),
	)
	return nil
}

type pinger interface {
	PingContext(ctx context.Context) error
}

// waitForDatabase pings until the database answers or connection_timeout
// passes. The retry interval doubles after each attempt, capped at 30s. A zero
// timeout means a single attempt.
func waitForDatabase(ctx context.Context, cfg *config.Config, logger *logging.Logger, db pinger) error {
	timeout := cfg.Database.ConnectionTimeout
	if timeout == 0 {
		return db.PingContext(ctx)
	}

	policy := &backoff.ExponentialBackOff{
		InitialInterval:     cfg.Database.ConnectionRetryInterval,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         30 * time.Second,
	}
	policy.Reset()

	attempts := 0
	ping := func() (struct{}, error) {
		attempts++
		return struct{}{}, db.PingContext(ctx)
	}
	_, err := backoff.Retry(ctx, ping,
		backoff.WithBackOff(policy),
		backoff.WithMaxElapsedTime(timeout),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn("database not ready, retrying",
				slog.Int("attempt", attempts),
				slog.Duration("retry_in", next),
				slog.String("error", err.Error()),
			)
		}),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("database not available after %v: %w", timeout, err)
	}
	if attempts > 1 {
		logger.Info("database connection established", slog.Int("attempts", attempts))
	}
	return nil
}

func buildQueryExecutor(cfg *config.Config, logger *logging.Logger, db *sql.DB, metrics *observability.DatabaseMetrics) dbexec.QueryExecutor {
	executor := dbexec.QueryExecutor(dbexec.NewStandardExecutor(db))

	cb := cfg.Database.CircuitBreaker
	if !cb.Enabled {
		return executor
	}
	logger.Info("database circuit breaker enabled",
		slog.Uint64("failure_threshold", uint64(cb.FailureThreshold)),
		slog.Duration("open_timeout", cb.OpenTimeout),
		slog.Uint64("half_open_requests", uint64(cb.HalfOpenRequests)),
	)
	return dbexec.NewBreakerExecutor(executor, dbexec.BreakerConfig{
		Name:             breakerName,
		FailureThreshold: cb.FailureThreshold,
		OpenTimeout:      cb.OpenTimeout,
		HalfOpenRequests: cb.HalfOpenRequests,
		Logger:           logger.Logger,
		OnStateChange:    metrics.RecordBreakerTransition,
	})
}

func resolverOptions(c config.CatalogConfig) resolver.Options {
	return resolver.Options{
		DefaultPageSize:   c.DefaultPageSize,
		GroupingScanLimit: c.GroupingScanLimit,
		FacetConcurrency:  c.FacetConcurrency,
		FacetStrategy:     resolver.FacetStrategy(c.FacetStrategy),
		FailurePolicy:     resolver.FailurePolicy(c.FacetFailurePolicy),
		GroupKey:          resolver.GroupKey(c.GroupKey),
	}
}

func buildResolver(cfg *config.Config, logger *logging.Logger, executor dbexec.QueryExecutor) (*resolver.Resolver, error) {
	if executor == nil {
		return nil, fmt.Errorf("query executor is required")
	}
	repo := catalog.NewRepository(executor, catalog.WithMaxInClause(cfg.Catalog.BatchMaxInClause))
	opts := resolverOptions(cfg.Catalog)

	logger.Info("catalog resolver configured",
		slog.Int("default_page_size", opts.DefaultPageSize),
		slog.Int("grouping_scan_limit", opts.GroupingScanLimit),
		slog.Int("facet_concurrency", opts.FacetConcurrency),
		slog.String("facet_strategy", string(opts.FacetStrategy)),
		slog.String("facet_failure_policy", string(opts.FailurePolicy)),
		slog.String("group_key", string(opts.GroupKey)),
	)
	return resolver.NewResolver(repo, opts), nil
}
