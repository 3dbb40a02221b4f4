package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"sakila-graphql/internal/gqlrequest"
	"sakila-graphql/internal/logging"
	"sakila-graphql/internal/observability"
	"sakila-graphql/internal/resolver"
)

// GraphQLTracingMiddleware wraps GraphQL execution in a graphql.execute span.
// Once the handler returns, the facet cache counters of the request are added
// to the span.
func GraphQLTracingMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			analysis := gqlrequest.AnalysisFromContext(r.Context())
			if analysis == nil || strings.TrimSpace(analysis.Envelope.Query) == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx, span := otel.Tracer("sakila-graphql/graphql").Start(r.Context(), "graphql.execute")
			defer span.End()
			if sc := span.SpanContext(); sc.IsValid() {
				ctx = logging.WithLogger(ctx, logging.FromContext(ctx).WithFields(
					slog.String("trace_id", sc.TraceID().String()),
					slog.String("span_id", sc.SpanID().String()),
				))
			}
			if span.IsRecording() {
				span.SetAttributes(observability.GraphQLSpanAttributes(analysis)...)
			}

			next.ServeHTTP(w, r.WithContext(ctx))

			state, ok := resolver.GetBatchState(ctx)
			if !ok || !span.IsRecording() {
				return
			}
			hits, misses := state.GetCacheHits(), state.GetCacheMisses()
			span.SetAttributes(
				attribute.Int("graphql.execution.cache_hits", int(hits)),
				attribute.Int("graphql.execution.cache_misses", int(misses)),
			)
			if total := hits + misses; total > 0 {
				span.SetAttributes(attribute.Float64("graphql.execution.cache_hit_ratio", float64(hits)/float64(total)))
			}
		})
	}
}

// GraphQLBatchingMiddleware installs the request-scoped facet cache.
func GraphQLBatchingMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(resolver.NewBatchingContext(r.Context())))
		})
	}
}
