package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"sakila-graphql/internal/observability"
)

func jsonHandler(body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	})
}

func postGraphQL(handler http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestGraphQLMetricsMiddleware_SuccessfulQuery(t *testing.T) {
	handler, reader := setupGraphQLMetricsMiddleware(t, jsonHandler(`{"data":{"movieTitles":["ACADEMY DINOSAUR"]}}`))

	postGraphQL(handler, `{"query":"query Titles { movieTitles(rating: \"PG\") }","operationName":"Titles"}`)

	rm := collectMetrics(t, reader)
	if got := sumInt64Value(rm, "graphql.requests.total", "query", boolPtr(false)); got != 1 {
		t.Fatalf("graphql.requests.total query=false = %d, want 1", got)
	}
	if got := sumByAttr(rm, "graphql.root_field.requests", attribute.String("field", "movieTitles")); got != 1 {
		t.Fatalf("graphql.root_field.requests movieTitles = %d, want 1", got)
	}
}

func TestGraphQLMetricsMiddleware_HTTP200WithGraphQLErrors(t *testing.T) {
	handler, reader := setupGraphQLMetricsMiddleware(t, jsonHandler(`{"data":{"movie":null},"errors":[{"message":"no movie found with id: 999"}]}`))

	postGraphQL(handler, `{"query":"{ movie(id: 999) { title } }"}`)

	rm := collectMetrics(t, reader)
	if got := sumInt64Value(rm, "graphql.requests.total", "query", boolPtr(true)); got != 1 {
		t.Fatalf("graphql.requests.total query=true = %d, want 1", got)
	}
	if got := sumInt64Value(rm, "graphql.errors.total", "query", nil); got != 1 {
		t.Fatalf("graphql.errors.total query = %d, want 1", got)
	}
}

func TestGraphQLMetricsMiddleware_HTTPErrorStatus(t *testing.T) {
	handler, reader := setupGraphQLMetricsMiddleware(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))

	postGraphQL(handler, `{"query":"{ actors { actor_id } }"}`)

	rm := collectMetrics(t, reader)
	if got := sumInt64Value(rm, "graphql.errors.total", "query", nil); got != 1 {
		t.Fatalf("graphql.errors.total query = %d, want 1", got)
	}
}

func TestGraphQLMetricsMiddleware_FallbackToUnknownOperationType(t *testing.T) {
	handler, reader := setupGraphQLMetricsMiddleware(t, jsonHandler(`{"data":null}`))

	postGraphQL(handler, `{"query":`)

	rm := collectMetrics(t, reader)
	if got := sumInt64Value(rm, "graphql.requests.total", "unknown", boolPtr(false)); got != 1 {
		t.Fatalf("graphql.requests.total unknown=false = %d, want 1", got)
	}
}

func TestGraphQLMetricsMiddleware_SkipsGET(t *testing.T) {
	handler, reader := setupGraphQLMetricsMiddleware(t, jsonHandler(`<html>graphiql</html>`))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/graphql", nil))

	rm := collectMetrics(t, reader)
	if got := sumInt64Value(rm, "graphql.requests.total", "unknown", nil); got != 0 {
		t.Fatalf("expected no request metric for GET, got %d", got)
	}
}

func TestResponseHasGraphQLErrors(t *testing.T) {
	tests := []struct {
		body string
		want bool
	}{
		{`{"data":{}}`, false},
		{`{"errors":null}`, false},
		{`{"errors":[]}`, false},
		{`{"errors":[{"message":"failed to fetch movies"}]}`, true},
		{`not json`, false},
		{``, false},
	}
	for _, tt := range tests {
		if got := responseHasGraphQLErrors([]byte(tt.body)); got != tt.want {
			t.Fatalf("responseHasGraphQLErrors(%q) = %v, want %v", tt.body, got, tt.want)
		}
	}
}

func setupGraphQLMetricsMiddleware(t *testing.T, next http.Handler) (http.Handler, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	oldProvider := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
		otel.SetMeterProvider(oldProvider)
	})

	metrics, err := observability.InitGraphQLMetrics()
	if err != nil {
		t.Fatalf("failed to initialize GraphQL metrics: %v", err)
	}
	return GraphQLRequestAnalysisMiddleware()(GraphQLMetricsMiddleware(metrics)(next)), reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	return rm
}

func eachInt64Point(rm metricdata.ResourceMetrics, metricName string, fn func(metricdata.DataPoint[int64])) {
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != metricName {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, point := range sum.DataPoints {
					fn(point)
				}
			}
		}
	}
}

func sumInt64Value(rm metricdata.ResourceMetrics, metricName, operationType string, hasErrors *bool) int64 {
	var total int64
	eachInt64Point(rm, metricName, func(point metricdata.DataPoint[int64]) {
		if v, ok := point.Attributes.Value("operation_type"); !ok || v.AsString() != operationType {
			return
		}
		if hasErrors != nil {
			if v, ok := point.Attributes.Value("has_errors"); !ok || v.AsBool() != *hasErrors {
				return
			}
		}
		total += point.Value
	})
	return total
}

func sumByAttr(rm metricdata.ResourceMetrics, metricName string, want attribute.KeyValue) int64 {
	var total int64
	eachInt64Point(rm, metricName, func(point metricdata.DataPoint[int64]) {
		if v, ok := point.Attributes.Value(want.Key); ok && v == want.Value {
			total += point.Value
		}
	})
	return total
}

func boolPtr(v bool) *bool {
	return &v
}
