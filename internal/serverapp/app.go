// Package serverapp assembles the sakila-graphql server: observability
// providers, the database pool, the catalog resolver and the HTTP surface.
package serverapp

import (
	"database/sql"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"sakila-graphql/internal/config"
	"sakila-graphql/internal/dbexec"
	"sakila-graphql/internal/logging"
	"sakila-graphql/internal/observability"
	"sakila-graphql/internal/resolver"
	"sakila-graphql/internal/tlscert"
)

// App owns runtime resources for the server lifecycle.
type App struct {
	cfg    *config.Config
	logger *logging.Logger

	loggerProvider *observability.LoggerProvider

	databaseName string
	dsnPresent   bool

	meterProvider   *observability.MeterProvider
	graphqlMetrics  *observability.GraphQLMetrics
	databaseMetrics *observability.DatabaseMetrics
	tracerProvider  *observability.TracerProvider

	db            *sql.DB
	dbStatsReg    interface{ Unregister() error }
	queryExecutor dbexec.QueryExecutor
	resolver      *resolver.Resolver

	graphqlHandler http.Handler
	mux            *http.ServeMux
	handler        http.Handler

	serverAddr string
	srv        *http.Server
	tlsSource  *tlscert.Source

	cleanup cleanupStack

	stateMu      sync.Mutex
	initialized  bool
	started      bool
	serverErrors chan error

	shutdownOnce sync.Once
}

// New creates an App lifecycle wrapper.
func New(cfg *config.Config, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	databaseName := cfg.Database.DatabaseName()
	if databaseName == "" {
		return nil, fmt.Errorf("no database name configured")
	}

	return &App{
		cfg:          cfg,
		logger:       logger,
		databaseName: databaseName,
		dsnPresent:   strings.TrimSpace(cfg.Database.ConnectionString) != "",
	}, nil
}

// AttachLoggerProvider registers an optional logger provider for shutdown cleanup.
func (a *App) AttachLoggerProvider(provider *observability.LoggerProvider) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	a.loggerProvider = provider
}

// Handler returns the fully wrapped HTTP handler. It is nil before Init.
func (a *App) Handler() http.Handler {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.handler
}
