package gqlrequest

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
)

// Envelope stores normalized request payload data used for GraphQL analysis.
type Envelope struct {
	Method      string
	ContentType string

	Query         string
	OperationName string
	Variables     json.RawMessage

	DocumentSizeBytes int
}

type jsonPayload struct {
	Query         string          `json:"query"`
	OperationName string          `json:"operationName"`
	Variables     json.RawMessage `json:"variables"`
}

// DecodeEnvelope extracts GraphQL payload fields from an HTTP request and
// restores the body so the GraphQL handler can read it again.
func DecodeEnvelope(r *http.Request) (Envelope, error) {
	if r == nil {
		return Envelope{}, errors.New("request is nil")
	}
	env := Envelope{Method: r.Method, ContentType: r.Header.Get("Content-Type")}

	switch {
	case r.Method == http.MethodGet:
		values := r.URL.Query()
		env.Query = values.Get("query")
		env.OperationName = values.Get("operationName")
		if raw := values.Get("variables"); raw != "" {
			env.Variables = json.RawMessage(raw)
		}
	case r.Method == http.MethodPost && r.Body != nil:
		body, err := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))
		if err != nil {
			return env, err
		}
		if err := env.decodeBody(body); err != nil {
			return env, err
		}
	}

	env.DocumentSizeBytes = len(env.Query)
	return env, nil
}

func (env *Envelope) decodeBody(body []byte) error {
	mediaType, _, err := mime.ParseMediaType(env.ContentType)
	if err != nil {
		mediaType = strings.TrimSpace(env.ContentType)
	}
	if mediaType == "application/graphql" {
		env.Query = string(body)
		return nil
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil
	}
	var payload jsonPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return err
	}
	env.Query = payload.Query
	env.OperationName = payload.OperationName
	if vars := bytes.TrimSpace(payload.Variables); len(vars) > 0 && !bytes.Equal(vars, []byte("null")) {
		env.Variables = append(json.RawMessage(nil), vars...)
	}
	return nil
}
