package middleware

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sakila-graphql/internal/gqlrequest"
	"sakila-graphql/internal/logging"
)

func TestGraphQLRequestAnalysisMiddleware_PopulatesContextAndRewindsBody(t *testing.T) {
	var (
		seen     *gqlrequest.Analysis
		bodyCopy string
	)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = gqlrequest.AnalysisFromContext(r.Context())
		body, _ := io.ReadAll(r.Body)
		bodyCopy = string(body)
		w.WriteHeader(http.StatusOK)
	})

	postGraphQL(GraphQLRequestAnalysisMiddleware()(next),
		`{"query":"query Dashboard { moviesByCategory { moviesByCategory { genre { name } } } movieCountsByGenre { genre count } }","operationName":"Dashboard"}`)

	require.NotNil(t, seen)
	assert.Equal(t, "query", seen.OperationType)
	assert.Equal(t, "Dashboard", seen.OperationName)
	assert.Equal(t, []string{"movieCountsByGenre", "moviesByCategory"}, seen.RootFields)
	assert.NotEmpty(t, seen.OperationHash)
	assert.Contains(t, bodyCopy, `"operationName":"Dashboard"`)
}

func TestGraphQLRequestAnalysisMiddleware_EnrichesRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	base := logging.NewLogger(logging.Config{Level: "info", Output: &buf})

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logging.FromContext(r.Context()).Info("resolving")
	})
	handler := LoggingMiddleware(base)(GraphQLRequestAnalysisMiddleware()(next))

	postGraphQL(handler, `{"query":"query Page { movies(limit: 2) { hasMore } }"}`)

	var resolving string
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.Contains(line, "msg=resolving") {
			resolving = line
		}
	}
	require.NotEmpty(t, resolving)
	assert.Contains(t, resolving, "operation_name=Page")
	assert.Contains(t, resolving, "root_fields=movies")
	assert.Contains(t, resolving, "request_id=")
}

func TestGraphQLRequestAnalysisMiddleware_MalformedBodyStillServed(t *testing.T) {
	var seen *gqlrequest.Analysis
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = gqlrequest.AnalysisFromContext(r.Context())
		w.WriteHeader(http.StatusBadRequest)
	})

	rec := postGraphQL(GraphQLRequestAnalysisMiddleware()(next), `{"query":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, seen)
	assert.Error(t, seen.DecodeError)
	assert.Nil(t, seen.Operation)
}
