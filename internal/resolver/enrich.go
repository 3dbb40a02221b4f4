package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"sakila-graphql/internal/catalog"
	"sakila-graphql/internal/logging"
	"sakila-graphql/internal/observability"
)

type facet string

const (
	facetGenre       facet = "genre"
	facetActors      facet = "actors"
	facetRentalCount facet = "rental_count"
)

type facetSet uint8

const (
	withGenre facetSet = 1 << iota
	withActors
	withRentalCount

	allFacets = withGenre | withActors | withRentalCount
)

func (s facetSet) has(f facetSet) bool { return s&f != 0 }

// facetError records which facet of which film failed. filmID is zero for
// batched lookups.
type facetError struct {
	facet  facet
	filmID int64
	err    error
}

func (e *facetError) Error() string {
	if e.filmID == 0 {
		return fmt.Sprintf("batch %s lookup: %v", e.facet, e.err)
	}
	return fmt.Sprintf("%s lookup for film %d: %v", e.facet, e.filmID, e.err)
}

func (e *facetError) Unwrap() error {
	return e.err
}

// enrich attaches the requested facets to each film. Order is preserved.
func (r *Resolver) enrich(ctx context.Context, films []catalog.Film, facets facetSet) ([]Movie, error) {
	movies := make([]Movie, len(films))
	for i, film := range films {
		movies[i] = Movie{Film: film}
		if facets.has(withActors) {
			movies[i].Actors = []catalog.Actor{}
			movies[i].ActorsLoaded = true
		}
	}
	if len(movies) == 0 {
		return movies, nil
	}

	var err error
	if r.opts.FacetStrategy == FacetStrategyBatched {
		err = r.enrichBatched(ctx, movies, facets)
	} else {
		err = r.enrichPerFilm(ctx, movies, facets)
	}
	if err != nil {
		return nil, err
	}
	return movies, nil
}

// enrichPerFilm fans out across movies, bounded by FacetConcurrency, and
// fetches the facets of each movie concurrently.
func (r *Resolver) enrichPerFilm(ctx context.Context, movies []Movie, facets facetSet) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.FacetConcurrency)
	for i := range movies {
		m := &movies[i]
		g.Go(func() error {
			return r.enrichMovie(gctx, m, facets)
		})
	}
	return g.Wait()
}

// enrichMovie writes each facet into its own field of m, so the goroutines
// never touch the same memory.
func (r *Resolver) enrichMovie(ctx context.Context, m *Movie, facets facetSet) error {
	g, gctx := errgroup.WithContext(ctx)
	id := m.ID

	if facets.has(withGenre) {
		g.Go(func() error {
			lookup, err := r.genreFor(gctx, id)
			if err != nil {
				return r.facetFailed(gctx, &facetError{facet: facetGenre, filmID: id, err: err})
			}
			m.Genre = lookup
			return nil
		})
	}
	if facets.has(withActors) {
		g.Go(func() error {
			actors, err := r.actorsFor(gctx, id)
			if err != nil {
				return r.facetFailed(gctx, &facetError{facet: facetActors, filmID: id, err: err})
			}
			m.Actors = actors
			return nil
		})
	}
	if facets.has(withRentalCount) {
		g.Go(func() error {
			count, err := r.rentalCountFor(gctx, id)
			if err != nil {
				return r.facetFailed(gctx, &facetError{facet: facetRentalCount, filmID: id, err: err})
			}
			m.RentalCount = count
			return nil
		})
	}
	return g.Wait()
}

func (r *Resolver) enrichBatched(ctx context.Context, movies []Movie, facets facetSet) error {
	ids := make([]int64, len(movies))
	for i := range movies {
		ids[i] = movies[i].ID
	}

	g, gctx := errgroup.WithContext(ctx)
	if facets.has(withGenre) {
		g.Go(func() error {
			genres, err := cachedBatch(gctx, facetGenre, ids, catalog.GenreAbsent(), r.batchGenres)
			if err != nil {
				return r.facetFailed(gctx, &facetError{facet: facetGenre, err: err})
			}
			for i := range movies {
				movies[i].Genre = genres[movies[i].ID]
			}
			return nil
		})
	}
	if facets.has(withActors) {
		g.Go(func() error {
			actors, err := cachedBatch(gctx, facetActors, ids, []catalog.Actor{}, r.batch.ActorsForFilms)
			if err != nil {
				return r.facetFailed(gctx, &facetError{facet: facetActors, err: err})
			}
			for i := range movies {
				movies[i].Actors = actors[movies[i].ID]
			}
			return nil
		})
	}
	if facets.has(withRentalCount) {
		g.Go(func() error {
			counts, err := cachedBatch(gctx, facetRentalCount, ids, 0, r.batch.RentalCountsForFilms)
			if err != nil {
				return r.facetFailed(gctx, &facetError{facet: facetRentalCount, err: err})
			}
			for i := range movies {
				movies[i].RentalCount = counts[movies[i].ID]
			}
			return nil
		})
	}
	return g.Wait()
}

func (r *Resolver) batchGenres(ctx context.Context, ids []int64) (map[int64]catalog.GenreLookup, error) {
	categories, err := r.batch.GenresForFilms(ctx, ids)
	if err != nil {
		return nil, err
	}
	lookups := make(map[int64]catalog.GenreLookup, len(categories))
	for id, c := range categories {
		lookups[id] = catalog.GenreFound(c)
	}
	return lookups, nil
}

// facetFailed applies the failure policy. Under degrade the facet keeps its
// zero value; cancellation of the request is never swallowed.
func (r *Resolver) facetFailed(ctx context.Context, fe *facetError) error {
	if r.opts.FailurePolicy != FailurePolicyDegrade || ctx.Err() != nil {
		return fe
	}
	if errors.Is(fe, context.Canceled) || errors.Is(fe, context.DeadlineExceeded) {
		return fe
	}

	attrs := []any{
		slog.String("facet", string(fe.facet)),
		slog.String("error", fe.err.Error()),
	}
	if fe.filmID != 0 {
		attrs = append(attrs, slog.Int64("film_id", fe.filmID))
	}
	logging.FromContext(ctx).Warn("facet lookup failed, continuing without it", attrs...)
	if metrics := observability.GraphQLMetricsFromContext(ctx); metrics != nil {
		metrics.RecordFacetDegraded(ctx, string(fe.facet))
	}
	return nil
}

func (r *Resolver) genreFor(ctx context.Context, filmID int64) (catalog.GenreLookup, error) {
	return cachedLookup(ctx, facetGenre, filmID, func(ctx context.Context) (catalog.GenreLookup, error) {
		return r.catalog.GetGenreForFilm(ctx, filmID)
	})
}

func (r *Resolver) actorsFor(ctx context.Context, filmID int64) ([]catalog.Actor, error) {
	actors, err := cachedLookup(ctx, facetActors, filmID, func(ctx context.Context) ([]catalog.Actor, error) {
		return r.catalog.GetActorsForFilm(ctx, filmID)
	})
	if err != nil {
		return nil, err
	}
	if actors == nil {
		actors = []catalog.Actor{}
	}
	return actors, nil
}

func (r *Resolver) rentalCountFor(ctx context.Context, filmID int64) (int, error) {
	return cachedLookup(ctx, facetRentalCount, filmID, func(ctx context.Context) (int, error) {
		return r.catalog.GetRentalCountForFilm(ctx, filmID)
	})
}

// MovieActors returns the cast of m, loading it when it was not fetched
// eagerly.
func (r *Resolver) MovieActors(ctx context.Context, m Movie) ([]catalog.Actor, error) {
	if m.ActorsLoaded {
		if m.Actors == nil {
			return []catalog.Actor{}, nil
		}
		return m.Actors, nil
	}

	actors, err := r.actorsFor(ctx, m.ID)
	if err != nil {
		if ferr := r.facetFailed(ctx, &facetError{facet: facetActors, filmID: m.ID, err: err}); ferr != nil {
			return nil, r.fail(ctx, opMovieActors, ferr)
		}
		return []catalog.Actor{}, nil
	}
	return actors, nil
}
