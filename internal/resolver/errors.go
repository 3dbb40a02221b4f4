package resolver

import (
	"context"
	"errors"
	"log/slog"

	"sakila-graphql/internal/catalog"
	"sakila-graphql/internal/dbexec"
	"sakila-graphql/internal/logging"
	"sakila-graphql/internal/planner"
)

// Error codes exposed in GraphQL error extensions.
const (
	CodeNotFound     = "NOT_FOUND"
	CodeBadUserInput = "BAD_USER_INPUT"
	CodeInternal     = "INTERNAL"
)

type operation struct {
	name    string
	message string
}

var (
	opMovies             = operation{"movies", "failed to fetch movies"}
	opMovie              = operation{"movie", "failed to fetch movie"}
	opActors             = operation{"actors", "failed to fetch actors"}
	opMovieActors        = operation{"movie.actors", "failed to fetch actors"}
	opMoviesByCategory   = operation{"moviesByCategory", "failed to fetch movies by category"}
	opMovieCountsByGenre = operation{"movieCountsByGenre", "failed to fetch movie counts by genre"}
	opMovieTitles        = operation{"movieTitles", "failed to fetch movie titles"}
	opAverageRentalCount = operation{"averageRentalCount", "failed to fetch average rental counts by genre"}
)

// OperationError is what callers of the resolver see. Message is stable per
// operation and never carries driver text; Err keeps the cause for errors.Is.
type OperationError struct {
	Operation string
	Code      string
	Message   string
	Err       error
}

func (e *OperationError) Error() string {
	return e.Message
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// Extensions is picked up by graphql-go and rendered under errors[].extensions.
func (e *OperationError) Extensions() map[string]interface{} {
	return map[string]interface{}{
		"code":      e.Code,
		"operation": e.Operation,
	}
}

// IsNotFound reports whether err is the not-found outcome of a lookup.
func IsNotFound(err error) bool {
	return errors.Is(err, catalog.ErrNotFound)
}

// fail logs the cause of a failed operation and replaces it with the
// operation's public error. Not-found and invalid arguments keep their own
// messages.
func (r *Resolver) fail(ctx context.Context, op operation, err error) error {
	if err == nil {
		return nil
	}
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr
	}

	logger := logging.FromContext(ctx)
	switch {
	case IsNotFound(err):
		logger.Debug("catalog lookup found nothing",
			slog.String("operation", op.name),
			slog.String("error", err.Error()),
		)
		return &OperationError{Operation: op.name, Code: CodeNotFound, Message: err.Error(), Err: err}
	case errors.Is(err, planner.ErrInvalidPagination):
		return &OperationError{Operation: op.name, Code: CodeBadUserInput, Message: err.Error(), Err: err}
	}

	attrs := []any{
		slog.String("operation", op.name),
		slog.String("error", err.Error()),
	}
	if code := catalog.MySQLErrorCode(err); code != 0 {
		attrs = append(attrs, slog.Int("mysql_error_code", int(code)))
	}
	if catalog.IsAccessDenied(err) {
		attrs = append(attrs, slog.Bool("access_denied", true))
	}
	if dbexec.IsCircuitOpen(err) {
		attrs = append(attrs, slog.Bool("circuit_open", true))
	}
	var fe *facetError
	if errors.As(err, &fe) {
		attrs = append(attrs, slog.String("facet", string(fe.facet)))
		if fe.filmID != 0 {
			attrs = append(attrs, slog.Int64("film_id", fe.filmID))
		}
	}
	logger.Error("catalog operation failed", attrs...)

	return &OperationError{Operation: op.name, Code: CodeInternal, Message: op.message, Err: err}
}
