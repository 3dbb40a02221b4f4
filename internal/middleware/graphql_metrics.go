package middleware

import (
	"bytes"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"sakila-graphql/internal/gqlrequest"
	"sakila-graphql/internal/observability"
)

// GraphQLMetricsMiddleware records request, depth and root-field metrics and
// makes the metrics reachable from resolvers through the context.
func GraphQLMetricsMiddleware(metrics *observability.GraphQLMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// GraphiQL page loads are not operations.
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			ctx := observability.ContextWithGraphQLMetrics(r.Context(), metrics)
			metrics.IncrementActiveRequests(ctx)
			defer metrics.DecrementActiveRequests(ctx)

			operationType := "unknown"
			analysis := gqlrequest.AnalysisFromContext(ctx)
			if analysis != nil && analysis.Operation != nil {
				operationType = analysis.OperationType
				metrics.RecordQueryDepth(ctx, int64(analysis.SelectionDepth), operationType)
				metrics.RecordRootFields(ctx, analysis.RootFields)
			}

			start := time.Now()
			captured := &capturingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(captured, r.WithContext(ctx))

			hasErrors := captured.statusCode >= 400 || responseHasGraphQLErrors(captured.body.Bytes())
			metrics.RecordRequest(ctx, time.Since(start), hasErrors, operationType)
		})
	}
}

// capturingResponseWriter keeps a copy of the response so the GraphQL errors
// array can be inspected after the handler returns.
type capturingResponseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
	body       bytes.Buffer
}

func (w *capturingResponseWriter) WriteHeader(statusCode int) {
	if w.written {
		return
	}
	w.statusCode = statusCode
	w.written = true
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *capturingResponseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.WriteHeader(http.StatusOK)
	}
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func responseHasGraphQLErrors(body []byte) bool {
	var payload struct {
		Errors []json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(bytes.TrimSpace(body), &payload); err != nil {
		return false
	}
	return len(payload.Errors) > 0
}
