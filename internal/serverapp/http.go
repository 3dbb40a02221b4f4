package serverapp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/graphql-go/handler"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"sakila-graphql/internal/config"
	"sakila-graphql/internal/logging"
	"sakila-graphql/internal/middleware"
	"sakila-graphql/internal/observability"
	"sakila-graphql/internal/resolver"
	"sakila-graphql/internal/tlscert"
)

const (
	graphqlPath = "/graphql"
	healthPath  = "/health"
	metricsPath = "/metrics"
)

func buildGraphQLHandler(cfg *config.Config, logger *logging.Logger, r *resolver.Resolver, metrics *observability.GraphQLMetrics) (http.Handler, error) {
	schema, err := r.BuildGraphQLSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to build GraphQL schema: %w", err)
	}

	graphiql := cfg.Server.GraphiQLEnabled
	h := handler.New(&handler.Config{
		Schema:     &schema,
		Pretty:     true,
		GraphiQL:   graphiql,
		Playground: cfg.Server.PlaygroundEnabled && !graphiql,
	})

	// Batching wraps tracing so the span can read the request's facet cache counters.
	var wrapped http.Handler = middleware.GraphQLTracingMiddleware()(h)
	wrapped = middleware.GraphQLBatchingMiddleware()(wrapped)
	if metrics != nil {
		wrapped = middleware.GraphQLMetricsMiddleware(metrics)(wrapped)
	}
	wrapped = middleware.GraphQLRequestAnalysisMiddleware()(wrapped)
	wrapped = middleware.LoggingMiddleware(logger)(wrapped)

	logger.Info("GraphQL handler ready",
		slog.String("path", graphqlPath),
		slog.Bool("graphiql", graphiql),
		slog.Bool("playground", cfg.Server.PlaygroundEnabled && !graphiql),
	)
	return wrapped, nil
}

func buildRouter(cfg *config.Config, logger *logging.Logger, db pinger, dbMetrics *observability.DatabaseMetrics, graphqlHandler http.Handler, metricsEnabled bool) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle(graphqlPath, graphqlHandler)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			http.Redirect(w, r, graphqlPath, http.StatusFound)
			return
		}
		http.NotFound(w, r)
	})

	mux.HandleFunc(healthPath, healthHandler(db, cfg.Server.HealthCheckTimeout, dbMetrics))

	if metricsEnabled {
		mux.Handle(metricsPath, promhttp.Handler())
		logger.Info("metrics endpoint enabled", slog.String("path", metricsPath))
	}
	return mux
}

// wrapHTTPHandler applies the outer chain. The rate limiter ends up outermost
// so rejected requests cost nothing downstream.
func wrapHTTPHandler(cfg *config.Config, logger *logging.Logger, h http.Handler) http.Handler {
	if cfg.Observability.MetricsEnabled || cfg.Observability.TracingEnabled {
		h = otelhttp.NewHandler(h, "http.server",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return httpRootSpanName(r)
			}),
			otelhttp.WithMessageEvents(otelhttp.ReadEvents, otelhttp.WriteEvents),
		)
		logger.Info("HTTP instrumentation enabled")
	}

	if cfg.Server.CORSEnabled {
		h = middleware.CORSMiddleware(middleware.CORSConfig{
			Enabled:          true,
			AllowedOrigins:   cfg.Server.CORSAllowedOrigins,
			AllowedMethods:   cfg.Server.CORSAllowedMethods,
			AllowedHeaders:   cfg.Server.CORSAllowedHeaders,
			ExposeHeaders:    cfg.Server.CORSExposeHeaders,
			AllowCredentials: cfg.Server.CORSAllowCredentials,
			MaxAge:           cfg.Server.CORSMaxAge,
		})(h)
	}

	if cfg.Server.RateLimitEnabled {
		h = middleware.RateLimitMiddleware(middleware.RateLimitConfig{
			Enabled: true,
			RPS:     cfg.Server.RateLimitRPS,
			Burst:   cfg.Server.RateLimitBurst,
		})(h)
	}
	return h
}

func httpRootSpanName(r *http.Request) string {
	if r == nil {
		return "HTTP /*"
	}
	method := strings.TrimSpace(r.Method)
	if method == "" {
		method = "HTTP"
	}
	return method + " " + normalizeHTTPSpanRoute(r.URL.Path)
}

// normalizeHTTPSpanRoute keeps span names low-cardinality.
func normalizeHTTPSpanRoute(rawPath string) string {
	switch rawPath {
	case "/", graphqlPath, healthPath, metricsPath:
		return rawPath
	default:
		return "/*"
	}
}

func buildServer(cfg *config.Config, logger *logging.Logger, h http.Handler, serverAddr string) (*http.Server, *tlscert.Source, error) {
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	if !cfg.Server.TLSEnabled() {
		return srv, nil, nil
	}

	source, err := tlscert.NewSource(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile, logger.Logger)
	if err != nil {
		return nil, nil, err
	}
	srv.TLSConfig = source.TLSConfig()
	logger.Info("TLS enabled",
		slog.String("mode", cfg.Server.TLSMode),
		slog.String("cert_source", source.Description()))
	return srv, source, nil
}

func startServer(cfg *config.Config, logger *logging.Logger, srv *http.Server, serverAddr string) chan error {
	serverErrors := make(chan error, 1)
	tlsEnabled := cfg.Server.TLSEnabled()
	go func() {
		protocol := "http"
		if tlsEnabled {
			protocol = "https"
		}

		logAttrs := []any{
			slog.String("protocol", protocol),
			slog.String("address", serverAddr),
			slog.String("graphql_endpoint", graphqlPath),
			slog.String("health_endpoint", healthPath),
			slog.String("facet_strategy", cfg.Catalog.FacetStrategy),
			slog.String("log_level", cfg.Observability.Logging.Level),
		}
		if cfg.Observability.MetricsEnabled {
			logAttrs = append(logAttrs, slog.String("metrics_endpoint", metricsPath))
		}
		if cfg.Server.RateLimitEnabled {
			logAttrs = append(logAttrs,
				slog.Float64("rate_limit_rps", cfg.Server.RateLimitRPS),
				slog.Int("rate_limit_burst", cfg.Server.RateLimitBurst),
			)
		}
		logger.Info("server starting", logAttrs...)

		var err error
		if tlsEnabled {
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			serverErrors <- fmt.Errorf("server failed: %w", err)
		}
	}()
	return serverErrors
}

type healthStatus struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// healthHandler pings the database within timeout. Failure detail goes to
// the log, never to the response body.
func healthHandler(db pinger, timeout time.Duration, metrics *observability.DatabaseMetrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := logging.FromContext(r.Context())
		w.Header().Set("Content-Type", "application/json")

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		start := time.Now()
		err := db.PingContext(ctx)
		metrics.RecordHealthCheck(r.Context(), time.Since(start), err == nil)

		status, body := http.StatusOK, healthStatus{Status: "healthy", Database: "ok"}
		if err != nil {
			reqLogger.Error("health check failed",
				slog.String("error", err.Error()),
				slog.String("check", "database"),
			)
			status, body = http.StatusServiceUnavailable, healthStatus{Status: "unhealthy", Database: "failed"}
		} else {
			reqLogger.Debug("health check passed")
		}

		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
