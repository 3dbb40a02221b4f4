// Package resolver implements the catalog aggregation layer and its GraphQL
// schema. It merges per-film facets, groups films by genre, paginates with
// over-fetching and turns repository failures into stable operation errors.
package resolver

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"sakila-graphql/internal/catalog"
	"sakila-graphql/internal/planner"
)

// Catalog is the repository surface the resolver depends on.
type Catalog interface {
	ListFilms(ctx context.Context, filter catalog.Filter, limit, offset int) ([]catalog.Film, error)
	GetFilmByID(ctx context.Context, id int64) (catalog.Film, error)
	GetGenreForFilm(ctx context.Context, filmID int64) (catalog.GenreLookup, error)
	GetActorsForFilm(ctx context.Context, filmID int64) ([]catalog.Actor, error)
	GetRentalCountForFilm(ctx context.Context, filmID int64) (int, error)
	ListActors(ctx context.Context) ([]catalog.Actor, error)
	CountFilmsByGenre(ctx context.Context, filter catalog.Filter) ([]catalog.GenreCount, error)
	ListTitlesSorted(ctx context.Context, filter catalog.Filter) ([]string, error)
	AverageRentalCountByGenre(ctx context.Context, filter catalog.Filter) ([]catalog.AverageRentalCount, error)
}

// BatchCatalog resolves facets for many films per query. It is used when
// Options.FacetStrategy is FacetStrategyBatched.
type BatchCatalog interface {
	GenresForFilms(ctx context.Context, filmIDs []int64) (map[int64]catalog.Category, error)
	ActorsForFilms(ctx context.Context, filmIDs []int64) (map[int64][]catalog.Actor, error)
	RentalCountsForFilms(ctx context.Context, filmIDs []int64) (map[int64]int, error)
}

// FacetStrategy selects how per-film facets are fetched.
type FacetStrategy string

const (
	// FacetStrategyPerFilm issues one query per facet per film.
	FacetStrategyPerFilm FacetStrategy = "per_film"
	// FacetStrategyBatched issues one IN (...) query per facet per page.
	FacetStrategyBatched FacetStrategy = "batched"
)

// FailurePolicy decides what a failed facet lookup does to the request.
type FailurePolicy string

const (
	// FailurePolicyAbort fails the whole operation on the first facet error.
	FailurePolicyAbort FailurePolicy = "abort"
	// FailurePolicyDegrade logs the error and leaves the facet empty.
	FailurePolicyDegrade FailurePolicy = "degrade"
)

// GroupKey selects the identity used to group films by genre.
type GroupKey string

const (
	// GroupKeyName groups films by category name.
	GroupKeyName GroupKey = "name"
	// GroupKeyID groups films by category id, keeping same-named categories apart.
	GroupKeyID GroupKey = "id"
)

// Options is the immutable configuration of a Resolver.
type Options struct {
	DefaultPageSize   int
	GroupingScanLimit int
	FacetConcurrency  int
	FacetStrategy     FacetStrategy
	FailurePolicy     FailurePolicy
	GroupKey          GroupKey
}

// DefaultOptions returns the reference behavior: 100-row pages, a 1000-film
// grouping scan, per-film facets, abort on facet failure, group by name.
func DefaultOptions() Options {
	return Options{
		DefaultPageSize:   planner.DefaultListLimit,
		GroupingScanLimit: planner.GroupingScanLimit,
		FacetConcurrency:  8,
		FacetStrategy:     FacetStrategyPerFilm,
		FailurePolicy:     FailurePolicyAbort,
		GroupKey:          GroupKeyName,
	}
}

func (o Options) normalized() Options {
	def := DefaultOptions()
	if o.DefaultPageSize <= 0 {
		o.DefaultPageSize = def.DefaultPageSize
	}
	if o.GroupingScanLimit <= 0 {
		o.GroupingScanLimit = def.GroupingScanLimit
	}
	if o.FacetConcurrency <= 0 {
		o.FacetConcurrency = def.FacetConcurrency
	}
	if o.FacetStrategy == "" {
		o.FacetStrategy = def.FacetStrategy
	}
	if o.FailurePolicy == "" {
		o.FailurePolicy = def.FailurePolicy
	}
	if o.GroupKey == "" {
		o.GroupKey = def.GroupKey
	}
	return o
}

// Resolver answers catalog questions. It holds no per-request state and is
// safe for concurrent use.
type Resolver struct {
	catalog Catalog
	batch   BatchCatalog
	opts    Options
}

// NewResolver creates a resolver over c. When c also implements BatchCatalog
// the batched facet strategy becomes available.
func NewResolver(c Catalog, opts Options) *Resolver {
	opts = opts.normalized()
	batch, _ := c.(BatchCatalog)
	if batch == nil {
		opts.FacetStrategy = FacetStrategyPerFilm
	}
	return &Resolver{catalog: c, batch: batch, opts: opts}
}

// Options returns the effective options.
func (r *Resolver) Options() Options {
	return r.opts
}

// MoviesArgs are the arguments of the movies query. A nil Limit uses the
// default page size.
type MoviesArgs struct {
	Genre  string
	Rating string
	Limit  *int
	Offset int
}

// Movies returns one page of enriched movies. It requests one row more than
// the page size; the extra row only signals that another page exists.
func (r *Resolver) Movies(ctx context.Context, args MoviesArgs) (page MoviePage, err error) {
	limit := r.opts.DefaultPageSize
	if args.Limit != nil {
		limit = *args.Limit
	}
	filter := catalog.NewFilter(args.Genre, args.Rating)

	ctx, span := startResolverSpan(ctx, "catalog.movies",
		attribute.String("catalog.filter.genre", filter.Genre),
		attribute.String("catalog.filter.rating", filter.Rating),
		attribute.Int("catalog.limit", limit),
		attribute.Int("catalog.offset", args.Offset),
	)
	defer func() {
		finishResolverSpan(span, err, "")
		span.End()
	}()

	if limit < 0 || args.Offset < 0 {
		return MoviePage{}, r.fail(ctx, opMovies, fmt.Errorf("%w: limit=%d offset=%d", planner.ErrInvalidPagination, limit, args.Offset))
	}

	films, err := r.catalog.ListFilms(ctx, filter, limit+1, args.Offset)
	if err != nil {
		return MoviePage{}, r.fail(ctx, opMovies, err)
	}

	hasMore := false
	if len(films) > limit {
		films = films[:limit]
		hasMore = true
	}

	movies, err := r.enrich(ctx, films, allFacets)
	if err != nil {
		return MoviePage{}, r.fail(ctx, opMovies, err)
	}

	span.SetAttributes(attribute.Int("catalog.result_count", len(movies)), attribute.Bool("catalog.has_more", hasMore))
	return MoviePage{Movies: movies, HasMore: hasMore}, nil
}

// Movie returns a single enriched movie.
func (r *Resolver) Movie(ctx context.Context, id int64) (movie Movie, err error) {
	ctx, span := startResolverSpan(ctx, "catalog.movie", attribute.Int64("catalog.film_id", id))
	defer func() {
		if IsNotFound(err) {
			finishResolverSpan(span, nil, "not_found")
		} else {
			finishResolverSpan(span, err, "")
		}
		span.End()
	}()

	film, err := r.catalog.GetFilmByID(ctx, id)
	if err != nil {
		return Movie{}, r.fail(ctx, opMovie, err)
	}

	movies, err := r.enrich(ctx, []catalog.Film{film}, allFacets)
	if err != nil {
		return Movie{}, r.fail(ctx, opMovie, err)
	}
	return movies[0], nil
}

// Actors lists every actor.
func (r *Resolver) Actors(ctx context.Context) (actors []catalog.Actor, err error) {
	ctx, span := startResolverSpan(ctx, "catalog.actors")
	defer func() {
		finishResolverSpan(span, err, "")
		span.End()
	}()

	actors, err = r.catalog.ListActors(ctx)
	if err != nil {
		return nil, r.fail(ctx, opActors, err)
	}
	return actors, nil
}

// MovieCountsByGenre counts films per genre, optionally filtered by rating.
func (r *Resolver) MovieCountsByGenre(ctx context.Context, rating string) (counts []catalog.GenreCount, err error) {
	filter := catalog.NewFilter("", rating)
	ctx, span := startResolverSpan(ctx, "catalog.movieCountsByGenre", attribute.String("catalog.filter.rating", filter.Rating))
	defer func() {
		finishResolverSpan(span, err, "")
		span.End()
	}()

	counts, err = r.catalog.CountFilmsByGenre(ctx, filter)
	if err != nil {
		return nil, r.fail(ctx, opMovieCountsByGenre, err)
	}
	return counts, nil
}

// MovieTitles lists titles in ascending order, optionally filtered.
func (r *Resolver) MovieTitles(ctx context.Context, rating, genre string) (titles []string, err error) {
	filter := catalog.NewFilter(genre, rating)
	ctx, span := startResolverSpan(ctx, "catalog.movieTitles",
		attribute.String("catalog.filter.genre", filter.Genre),
		attribute.String("catalog.filter.rating", filter.Rating),
	)
	defer func() {
		finishResolverSpan(span, err, "")
		span.End()
	}()

	titles, err = r.catalog.ListTitlesSorted(ctx, filter)
	if err != nil {
		return nil, r.fail(ctx, opMovieTitles, err)
	}
	return titles, nil
}

// AverageRentalCount averages per-film rental counts per genre.
func (r *Resolver) AverageRentalCount(ctx context.Context, rating string) (averages []catalog.AverageRentalCount, err error) {
	filter := catalog.NewFilter("", rating)
	ctx, span := startResolverSpan(ctx, "catalog.averageRentalCount", attribute.String("catalog.filter.rating", filter.Rating))
	defer func() {
		finishResolverSpan(span, err, "")
		span.End()
	}()

	averages, err = r.catalog.AverageRentalCountByGenre(ctx, filter)
	if err != nil {
		return nil, r.fail(ctx, opAverageRentalCount, err)
	}
	return averages, nil
}
