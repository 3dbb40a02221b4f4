package config

import (
	"time"
)

// Config holds the complete service configuration.
type Config struct {
	Database      DatabaseConfig      `mapstructure:"database"`
	Server        ServerConfig        `mapstructure:"server"`
	Catalog       CatalogConfig       `mapstructure:"catalog"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// PoolConfig holds database connection pool parameters.
type PoolConfig struct {
	MaxOpen     int           `mapstructure:"max_open"`
	MaxIdle     int           `mapstructure:"max_idle"`
	MaxLifetime time.Duration `mapstructure:"max_lifetime"`
}

// DatabaseTLSConfig holds TLS settings for the MySQL connection.
type DatabaseTLSConfig struct {
	// Mode is one of "", off, skip-verify, verify-ca or verify-full.
	// verify-ca and verify-full register a custom tls.Config with the driver.
	Mode string `mapstructure:"mode"`

	CAFile     string `mapstructure:"ca_file"`
	CertFile   string `mapstructure:"cert_file"`
	KeyFile    string `mapstructure:"key_file"`
	ServerName string `mapstructure:"server_name"`
}

// CircuitBreakerConfig controls the breaker wrapped around the query executor.
type CircuitBreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
	OpenTimeout      time.Duration `mapstructure:"open_timeout"`
	HalfOpenRequests uint32        `mapstructure:"half_open_requests"`
}

// DatabaseConfig holds the Sakila database connection parameters.
type DatabaseConfig struct {
	// ConnectionString is a complete DSN. When set, the discrete fields below
	// are ignored.
	ConnectionString     string `mapstructure:"dsn"`
	ConnectionStringFile string `mapstructure:"dsn_file"`

	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	PasswordFile   string `mapstructure:"password_file"`
	PasswordPrompt bool   `mapstructure:"password_prompt"`
	Database       string `mapstructure:"database"`

	TLS            DatabaseTLSConfig    `mapstructure:"tls"`
	Pool           PoolConfig           `mapstructure:"pool"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`

	// ConnectionTimeout bounds the startup wait for the database. 0 fails on
	// the first error.
	ConnectionTimeout       time.Duration `mapstructure:"connection_timeout"`
	ConnectionRetryInterval time.Duration `mapstructure:"connection_retry_interval"`

	// VerifySchema checks for the Sakila tables and columns after connecting.
	VerifySchema bool `mapstructure:"verify_schema"`
}

const defaultDatabaseName = "sakila"

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port                 int           `mapstructure:"port"`
	GraphiQLEnabled      bool          `mapstructure:"graphiql_enabled"`
	PlaygroundEnabled    bool          `mapstructure:"playground_enabled"`
	RateLimitEnabled     bool          `mapstructure:"rate_limit_enabled"`
	RateLimitRPS         float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst       int           `mapstructure:"rate_limit_burst"`
	CORSEnabled          bool          `mapstructure:"cors_enabled"`
	CORSAllowedOrigins   []string      `mapstructure:"cors_allowed_origins"`
	CORSAllowedMethods   []string      `mapstructure:"cors_allowed_methods"`
	CORSAllowedHeaders   []string      `mapstructure:"cors_allowed_headers"`
	CORSExposeHeaders    []string      `mapstructure:"cors_expose_headers"`
	CORSAllowCredentials bool          `mapstructure:"cors_allow_credentials"`
	CORSMaxAge           int           `mapstructure:"cors_max_age"`
	ReadTimeout          time.Duration `mapstructure:"read_timeout"`
	WriteTimeout         time.Duration `mapstructure:"write_timeout"`
	IdleTimeout          time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout      time.Duration `mapstructure:"shutdown_timeout"`
	HealthCheckTimeout   time.Duration `mapstructure:"health_check_timeout"`

	TLSMode     string `mapstructure:"tls_mode"` // "off" or "file"
	TLSCertFile string `mapstructure:"tls_cert_file"`
	TLSKeyFile  string `mapstructure:"tls_key_file"`
}

// TLSEnabled reports whether the HTTP server terminates TLS itself.
func (s ServerConfig) TLSEnabled() bool {
	return s.TLSMode == "file"
}

// CatalogConfig tunes the aggregation resolver.
type CatalogConfig struct {
	DefaultPageSize    int    `mapstructure:"default_page_size"`
	GroupingScanLimit  int    `mapstructure:"grouping_scan_limit"`
	FacetConcurrency   int    `mapstructure:"facet_concurrency"`
	FacetStrategy      string `mapstructure:"facet_strategy"`       // per_film, batched
	FacetFailurePolicy string `mapstructure:"facet_failure_policy"` // abort, degrade
	GroupKey           string `mapstructure:"group_key"`            // name, id
	BatchMaxInClause   int    `mapstructure:"batch_max_in_clause"`
}

// LoggingConfig holds logging parameters.
type LoggingConfig struct {
	Level          string `mapstructure:"level"`           // debug, info, warn, error
	Format         string `mapstructure:"format"`          // json, text
	ExportsEnabled bool   `mapstructure:"exports_enabled"` // Enable OTLP log export
}

// ObservabilityConfig holds observability parameters.
type ObservabilityConfig struct {
	ServiceName         string        `mapstructure:"service_name"`
	ServiceVersion      string        `mapstructure:"service_version"`
	Environment         string        `mapstructure:"environment"`
	MetricsEnabled      bool          `mapstructure:"metrics_enabled"`
	TracingEnabled      bool          `mapstructure:"tracing_enabled"`
	TraceSampleRatio    float64       `mapstructure:"trace_sample_ratio"`
	SQLCommenterEnabled bool          `mapstructure:"sqlcommenter_enabled"`
	Logging             LoggingConfig `mapstructure:"logging"`

	OTLP OTLPConfig `mapstructure:"otlp"`

	// Signal-specific overrides
	Traces *OTLPConfig `mapstructure:"traces,omitempty"`
	Logs   *OTLPConfig `mapstructure:"logs,omitempty"`
}

// OTLPConfig holds OTLP exporter configuration
type OTLPConfig struct {
	Endpoint          string            `mapstructure:"endpoint"`
	Protocol          string            `mapstructure:"protocol"` // "grpc", "http/protobuf"
	Insecure          bool              `mapstructure:"insecure"`
	TLSCertFile       string            `mapstructure:"tls_cert_file"`
	TLSClientCertFile string            `mapstructure:"tls_client_cert_file"`
	TLSClientKeyFile  string            `mapstructure:"tls_client_key_file"`
	Headers           map[string]string `mapstructure:"headers"`
	Timeout           time.Duration     `mapstructure:"timeout"`
	Compression       string            `mapstructure:"compression"` // "none", "gzip"
	RetryEnabled      bool              `mapstructure:"retry_enabled"`
	RetryMaxAttempts  int               `mapstructure:"retry_max_attempts"`
}

// GetTracesConfig returns the effective OTLP config for traces.
func (c *ObservabilityConfig) GetTracesConfig() OTLPConfig {
	if c.Traces != nil {
		return mergeOTLPConfigs(c.OTLP, *c.Traces)
	}
	return c.OTLP
}

// GetLogsConfig returns the effective OTLP config for logs.
func (c *ObservabilityConfig) GetLogsConfig() OTLPConfig {
	if c.Logs != nil {
		return mergeOTLPConfigs(c.OTLP, *c.Logs)
	}
	return c.OTLP
}

// mergeOTLPConfigs lays the non-zero fields of a signal override over the
// global settings. Insecure always follows the override once it exists.
func mergeOTLPConfigs(base OTLPConfig, override OTLPConfig) OTLPConfig {
	merged := base
	merged.Insecure = override.Insecure

	for _, f := range []struct {
		dst *string
		src string
	}{
		{&merged.Endpoint, override.Endpoint},
		{&merged.Protocol, override.Protocol},
		{&merged.TLSCertFile, override.TLSCertFile},
		{&merged.TLSClientCertFile, override.TLSClientCertFile},
		{&merged.TLSClientKeyFile, override.TLSClientKeyFile},
		{&merged.Compression, override.Compression},
	} {
		if f.src != "" {
			*f.dst = f.src
		}
	}

	if override.Headers != nil {
		merged.Headers = make(map[string]string, len(base.Headers)+len(override.Headers))
		for k, v := range base.Headers {
			merged.Headers[k] = v
		}
		for k, v := range override.Headers {
			merged.Headers[k] = v
		}
	}
	if override.Timeout != 0 {
		merged.Timeout = override.Timeout
	}
	if override.RetryMaxAttempts != 0 {
		merged.RetryEnabled = override.RetryEnabled
		merged.RetryMaxAttempts = override.RetryMaxAttempts
	}
	return merged
}
