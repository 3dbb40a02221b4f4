package resolver

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"sakila-graphql/internal/catalog"
)

// MoviesByCategory groups the first GroupingScanLimit films (optionally
// filtered by rating) by genre and averages rental counts per group.
// Films without a genre are left out.
func (r *Resolver) MoviesByCategory(ctx context.Context, rating string) (groups []GenreGroup, err error) {
	filter := catalog.NewFilter("", rating)
	ctx, span := startResolverSpan(ctx, "catalog.moviesByCategory",
		attribute.String("catalog.filter.rating", filter.Rating),
		attribute.Int("catalog.scan_limit", r.opts.GroupingScanLimit),
		attribute.String("catalog.group_key", string(r.opts.GroupKey)),
	)
	defer func() {
		finishResolverSpan(span, err, "")
		span.End()
	}()

	films, err := r.catalog.ListFilms(ctx, filter, r.opts.GroupingScanLimit, 0)
	if err != nil {
		return nil, r.fail(ctx, opMoviesByCategory, err)
	}

	// Grouping only needs genre and rental count. Per-film actors are loaded
	// on demand by the GraphQL layer; batched lookups are cheap enough to
	// load eagerly.
	facets := withGenre | withRentalCount
	if r.opts.FacetStrategy == FacetStrategyBatched {
		facets = allFacets
	}

	movies, err := r.enrich(ctx, films, facets)
	if err != nil {
		return nil, r.fail(ctx, opMoviesByCategory, err)
	}

	groups = groupByGenre(movies, r.opts.GroupKey)
	span.SetAttributes(
		attribute.Int("catalog.scanned_films", len(films)),
		attribute.Int("catalog.group_count", len(groups)),
	)
	return groups, nil
}

type groupIdentity struct {
	id   int64
	name string
}

func identityFor(c catalog.Category, key GroupKey) groupIdentity {
	if key == GroupKeyID {
		return groupIdentity{id: c.ID}
	}
	return groupIdentity{name: c.Name}
}

// groupByGenre partitions movies by genre in first-seen order. Each group
// keeps a running rental total; the average is total divided by the number
// of movies in the group, zero counts included. The category of the first
// movie seen represents the group.
func groupByGenre(movies []Movie, key GroupKey) []GenreGroup {
	type accumulator struct {
		group        GenreGroup
		totalRentals int
	}

	index := make(map[groupIdentity]int)
	accs := make([]*accumulator, 0)
	for _, m := range movies {
		if !m.Genre.Found {
			continue
		}
		ident := identityFor(m.Genre.Category, key)
		i, ok := index[ident]
		if !ok {
			i = len(accs)
			index[ident] = i
			accs = append(accs, &accumulator{group: GenreGroup{Genre: m.Genre.Category}})
		}
		acc := accs[i]
		acc.group.Movies = append(acc.group.Movies, m)
		acc.totalRentals += m.RentalCount
	}

	groups := make([]GenreGroup, len(accs))
	for i, acc := range accs {
		g := acc.group
		g.AverageRentalCount = float64(acc.totalRentals) / float64(len(g.Movies))
		groups[i] = g
	}
	return groups
}
