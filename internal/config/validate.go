package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error with context.
type ValidationError struct {
	Field   string
	Message string
	Hint    string
}

func (e ValidationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (hint: %s)", e.Field, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Field   string
	Message string
	Hint    string
}

// ValidationResult contains the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Error returns a combined error message if there are validation errors.
func (r *ValidationResult) Error() string {
	if !r.HasErrors() {
		return ""
	}
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

func (r *ValidationResult) fail(field, hint, format string, args ...any) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: fmt.Sprintf(format, args...), Hint: hint})
}

func (r *ValidationResult) warn(field, hint, message string) {
	r.Warnings = append(r.Warnings, ValidationWarning{Field: field, Message: message, Hint: hint})
}

// oneOf checks value against the allowed set and records an error listing
// the valid values.
func (r *ValidationResult) oneOf(field, what, value string, allowed ...string) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	var shown []string
	for _, a := range allowed {
		if a != "" {
			shown = append(shown, a)
		}
	}
	r.fail(field, "valid values are: "+strings.Join(shown, ", "), "invalid %s %q", what, value)
}

// Validate checks the configuration for errors and returns validation results.
// It returns both errors (fatal) and warnings (non-fatal issues).
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{}
	c.Database.validate(result)
	c.Server.validate(result)
	c.Catalog.validate(result)
	c.Observability.validate(result)
	return result
}

func (d *DatabaseConfig) validate(result *ValidationResult) {
	if d.ConnectionString != "" {
		if _, err := d.DSN(); err != nil {
			result.fail("database.dsn", "use user:pass@tcp(host:port)/sakila", "%v", err)
		}
	} else {
		if d.Port < 1 || d.Port > 65535 {
			result.fail("database.port", "", "port %d is out of valid range (1-65535)", d.Port)
		}
		if strings.TrimSpace(d.Host) == "" {
			result.fail("database.host", "", "host is required when database.dsn is not set")
		}
	}
	if d.DatabaseName() == "" {
		result.fail("database.database", "set database.database or include /<database> in database.dsn", "no database name configured")
	}

	d.TLS.validate(result)

	if d.Pool.MaxOpen < 0 {
		result.fail("database.pool.max_open", "", "max_open cannot be negative")
	}
	if d.Pool.MaxIdle < 0 {
		result.fail("database.pool.max_idle", "", "max_idle cannot be negative")
	}
	if d.Pool.MaxIdle > d.Pool.MaxOpen && d.Pool.MaxOpen > 0 {
		result.warn("database.pool.max_idle", "idle connections will be limited to max_open", "max_idle is greater than max_open")
	}

	if d.ConnectionTimeout < 0 {
		result.fail("database.connection_timeout", "", "connection_timeout cannot be negative")
	}
	if d.ConnectionRetryInterval < 0 {
		result.fail("database.connection_retry_interval", "", "connection_retry_interval cannot be negative")
	}
	if d.ConnectionTimeout > 0 && d.ConnectionRetryInterval == 0 {
		result.fail("database.connection_retry_interval",
			"set a retry interval such as 2s, or set connection_timeout to 0 to disable retries",
			"connection_retry_interval must be greater than 0 when connection_timeout is set")
	}
	if d.ConnectionTimeout > 0 && d.ConnectionRetryInterval > d.ConnectionTimeout {
		result.warn("database.connection_retry_interval", "only one connection attempt will be made",
			"connection_retry_interval is greater than connection_timeout")
	}

	d.CircuitBreaker.validate(result)
}

func (t *DatabaseTLSConfig) validate(result *ValidationResult) {
	result.oneOf("database.tls.mode", "TLS mode", t.Mode, "", "off", "skip-verify", "verify-ca", "verify-full")

	if (t.Mode == "verify-ca" || t.Mode == "verify-full") && t.CAFile == "" {
		result.fail("database.tls.ca_file", "set ca_file to the CA certificate", "CA file is required for verify-ca and verify-full modes")
	}
	if (t.CertFile == "") != (t.KeyFile == "") {
		result.fail("database.tls.cert_file", "provide both cert_file and key_file, or neither",
			"both cert_file and key_file must be specified for client certificate authentication")
	}
	if t.Mode == "skip-verify" {
		result.warn("database.tls.mode", "use verify-ca or verify-full in production", "skip-verify mode does not verify server certificates")
	}
}

func (b *CircuitBreakerConfig) validate(result *ValidationResult) {
	if !b.Enabled {
		return
	}
	if b.FailureThreshold == 0 {
		result.fail("database.circuit_breaker.failure_threshold", "", "failure_threshold must be greater than 0 when the breaker is enabled")
	}
	if b.OpenTimeout <= 0 {
		result.fail("database.circuit_breaker.open_timeout", "", "open_timeout must be greater than 0 when the breaker is enabled")
	}
	if b.HalfOpenRequests == 0 {
		result.fail("database.circuit_breaker.half_open_requests", "", "half_open_requests must be greater than 0 when the breaker is enabled")
	}
}

func (s *ServerConfig) validate(result *ValidationResult) {
	if s.Port < 1 || s.Port > 65535 {
		result.fail("server.port", "", "port %d is out of valid range (1-65535)", s.Port)
	}

	if s.RateLimitEnabled {
		if s.RateLimitRPS <= 0 {
			result.fail("server.rate_limit_rps", "", "rate_limit_rps must be greater than 0 when rate limiting is enabled")
		}
		if s.RateLimitBurst <= 0 {
			result.fail("server.rate_limit_burst", "", "rate_limit_burst must be greater than 0 when rate limiting is enabled")
		}
	} else if s.RateLimitRPS > 0 || s.RateLimitBurst > 0 {
		result.warn("server.rate_limit_enabled", "enable server.rate_limit_enabled to apply rate limits",
			"rate limit values are set but rate limiting is disabled")
	}

	if s.CORSEnabled {
		s.validateCORS(result)
	}

	result.oneOf("server.tls_mode", "TLS mode", s.TLSMode, "", "off", "file")
	if s.TLSEnabled() {
		if s.TLSCertFile == "" {
			result.fail("server.tls_cert_file", "", "TLS cert file required when tls_mode is 'file'")
		}
		if s.TLSKeyFile == "" {
			result.fail("server.tls_key_file", "", "TLS key file required when tls_mode is 'file'")
		}
	}

	if s.GraphiQLEnabled && s.PlaygroundEnabled {
		result.warn("server.playground_enabled", "enable only one of graphiql_enabled or playground_enabled",
			"GraphiQL takes precedence over Playground when both are enabled")
	}
}

func (s *ServerConfig) validateCORS(result *ValidationResult) {
	if len(s.CORSAllowedOrigins) == 0 {
		result.fail("server.cors_allowed_origins", "set cors_allowed_origins or disable CORS", "CORS enabled but no allowed origins configured")
		return
	}

	hasWildcard := false
	onlyHTTP := true
	for _, origin := range s.CORSAllowedOrigins {
		origin = strings.TrimSpace(origin)
		if origin == "*" {
			hasWildcard = true
		}
		if !strings.HasPrefix(origin, "http://") {
			onlyHTTP = false
		}
	}

	if hasWildcard {
		if s.CORSAllowCredentials {
			result.fail("server.cors_allowed_origins", "use specific origins with credentials, or wildcard without credentials",
				"wildcard origin (*) cannot be used with credentials")
		}
		result.warn("server.cors_allowed_origins", "use specific origins in production", "CORS wildcard origin enabled")
	}
	if onlyHTTP && s.TLSEnabled() {
		result.warn("server.cors_allowed_origins", "use https:// origins when serving over TLS",
			"CORS allowed origins are http:// only while TLS is enabled")
	}
}

func (c *CatalogConfig) validate(result *ValidationResult) {
	if c.DefaultPageSize <= 0 {
		result.fail("catalog.default_page_size", "", "default_page_size must be greater than 0")
	}
	if c.GroupingScanLimit <= 0 {
		result.fail("catalog.grouping_scan_limit", "", "grouping_scan_limit must be greater than 0")
	}
	if c.FacetConcurrency <= 0 {
		result.fail("catalog.facet_concurrency", "", "facet_concurrency must be greater than 0")
	}
	if c.BatchMaxInClause <= 0 {
		result.fail("catalog.batch_max_in_clause", "", "batch_max_in_clause must be greater than 0")
	}
	result.oneOf("catalog.facet_strategy", "facet strategy", c.FacetStrategy, "per_film", "batched")
	result.oneOf("catalog.facet_failure_policy", "facet failure policy", c.FacetFailurePolicy, "abort", "degrade")
	result.oneOf("catalog.group_key", "group key", c.GroupKey, "name", "id")

	if c.GroupKey == "id" {
		result.warn("catalog.group_key", "use group_key=name to merge categories that share a name",
			"categories with the same name but different ids are reported as separate groups")
	}
	if c.FacetFailurePolicy == "degrade" {
		result.warn("catalog.facet_failure_policy", "",
			"failed facet lookups return empty genre, actors and rental count instead of an error")
	}
}

func (o *ObservabilityConfig) validate(result *ValidationResult) {
	result.oneOf("observability.logging.level", "log level", o.Logging.Level, "debug", "info", "warn", "error")
	result.oneOf("observability.logging.format", "log format", o.Logging.Format, "json", "text")

	if o.TraceSampleRatio < 0 || o.TraceSampleRatio > 1 {
		result.fail("observability.trace_sample_ratio", "", "trace_sample_ratio %v must be between 0.0 and 1.0", o.TraceSampleRatio)
	}

	o.OTLP.validate("observability.otlp", result)
	if o.Traces != nil {
		o.Traces.validate("observability.traces", result)
	}
	if o.Logs != nil {
		o.Logs.validate("observability.logs", result)
	}
}

func (o *OTLPConfig) validate(prefix string, result *ValidationResult) {
	result.oneOf(prefix+".protocol", "OTLP protocol", o.Protocol, "", "grpc", "http/protobuf")

	if o.Protocol == "http/protobuf" && !validOTLPEndpoint(o.Endpoint) {
		result.fail(prefix+".endpoint", "use host:port or a full URL", "invalid OTLP endpoint %q for http/protobuf", o.Endpoint)
	}

	result.oneOf(prefix+".compression", "OTLP compression", o.Compression, "", "none", "gzip")

	if o.RetryMaxAttempts < 0 {
		result.fail(prefix+".retry_max_attempts", "", "retry_max_attempts cannot be negative")
	}
}

func validOTLPEndpoint(endpoint string) bool {
	if endpoint == "" {
		return false
	}
	if strings.Contains(endpoint, "://") {
		parsed, err := url.Parse(endpoint)
		if err != nil {
			return false
		}
		return parsed.Host != ""
	}
	_, _, err := net.SplitHostPort(endpoint)
	return err == nil
}
