package dbexec

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerConfig controls the circuit breaker placed in front of the database.
type BreakerConfig struct {
	// Name identifies the breaker in logs.
	Name string
	// FailureThreshold is the number of consecutive failures that opens the circuit.
	FailureThreshold uint32
	// OpenTimeout is how long the circuit stays open before probing again.
	OpenTimeout time.Duration
	// HalfOpenRequests is the number of probe requests allowed while half-open.
	HalfOpenRequests uint32
	Logger           *slog.Logger
	// OnStateChange is called after each transition, in addition to logging.
	OnStateChange func(name, from, to string)
}

// BreakerExecutor fails fast while the database is known to be unavailable.
// It never retries; a failing query is returned to the caller unchanged.
type BreakerExecutor struct {
	next QueryExecutor
	cb   *gobreaker.CircuitBreaker[Rows]
}

// NewBreakerExecutor wraps next with a consecutive-failure circuit breaker.
func NewBreakerExecutor(next QueryExecutor, cfg BreakerConfig) *BreakerExecutor {
	if cfg.Name == "" {
		cfg.Name = "database"
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.HalfOpenRequests == 0 {
		cfg.HalfOpenRequests = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	threshold := cfg.FailureThreshold

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("database circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(name, from.String(), to.String())
			}
		},
		// Caller cancellation says nothing about database health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
	}

	return &BreakerExecutor{
		next: next,
		cb:   gobreaker.NewCircuitBreaker[Rows](settings),
	}
}

func (e *BreakerExecutor) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	return e.cb.Execute(func() (Rows, error) {
		return e.next.QueryContext(ctx, query, args...)
	})
}

// State reports the breaker state, mainly for health reporting and tests.
func (e *BreakerExecutor) State() gobreaker.State {
	return e.cb.State()
}

// IsCircuitOpen reports whether err was produced by an open or saturated breaker.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
