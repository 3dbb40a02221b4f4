package serverapp

import (
	"context"
	"log/slog"
	"time"

	"sakila-graphql/internal/logging"
)

// cleanupStack releases resources in reverse order of acquisition.
type cleanupStack struct {
	items []cleanupItem
}

type cleanupItem struct {
	name string
	fn   func(context.Context) error
}

func (s *cleanupStack) push(name string, fn func(context.Context) error) {
	s.items = append(s.items, cleanupItem{name: name, fn: fn})
}

// run executes every cleanup, newest first. Failures are logged and do not
// stop the remaining items. It returns the number of failed items.
func (s *cleanupStack) run(ctx context.Context, logger *logging.Logger) int {
	failed := 0
	for i := len(s.items) - 1; i >= 0; i-- {
		item := s.items[i]
		start := time.Now()
		err := item.fn(ctx)
		if err != nil {
			failed++
		}
		if logger == nil {
			continue
		}
		if err != nil {
			logger.Warn("cleanup error",
				slog.String("component", item.name),
				slog.String("error", err.Error()),
			)
			continue
		}
		logger.Info("shut down "+item.name, slog.Duration("duration", time.Since(start)))
	}
	return failed
}

// Shutdown gracefully releases all acquired resources. It is safe to call
// multiple times. Without a deadline on ctx, server.shutdown_timeout applies.
func (a *App) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	a.shutdownOnce.Do(func() {
		a.stateMu.Lock()
		cleanup := a.cleanup
		a.started = false
		a.stateMu.Unlock()

		if _, hasDeadline := ctx.Deadline(); !hasDeadline && a.cfg != nil && a.cfg.Server.ShutdownTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
			defer cancel()
		}

		if failed := cleanup.run(ctx, a.logger); failed > 0 && a.logger != nil {
			a.logger.Warn("shutdown finished with errors", slog.Int("failed_components", failed))
		}
	})

	return nil
}
