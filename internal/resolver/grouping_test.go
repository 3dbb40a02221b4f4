package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sakila-graphql/internal/catalog"
)

func movieWith(id int64, genre *catalog.Category, rentals int) Movie {
	m := Movie{Film: catalog.Film{ID: id}, RentalCount: rentals}
	if genre != nil {
		m.Genre = catalog.GenreFound(*genre)
	}
	return m
}

func groupSummary(groups []GenreGroup) map[string][]int64 {
	out := map[string][]int64{}
	for _, g := range groups {
		for _, m := range g.Movies {
			out[g.Genre.Name] = append(out[g.Genre.Name], m.ID)
		}
	}
	return out
}

func TestGroupByGenre_RunningAverage(t *testing.T) {
	x := &catalog.Category{ID: 1, Name: "X"}
	y := &catalog.Category{ID: 2, Name: "Y"}

	groups := groupByGenre([]Movie{
		movieWith(1, x, 2),   // A
		movieWith(2, x, 6),   // B
		movieWith(3, y, 3),   // C
		movieWith(4, nil, 9), // no genre
	}, GroupKeyName)

	require.Len(t, groups, 2)
	assert.Equal(t, "X", groups[0].Genre.Name)
	assert.Equal(t, map[string][]int64{"X": {1, 2}, "Y": {3}}, groupSummary(groups))
	assert.InDelta(t, 4.0, groups[0].AverageRentalCount, 1e-9)
	assert.InDelta(t, 3.0, groups[1].AverageRentalCount, 1e-9)
}

func TestGroupByGenre_ZeroCountsIncluded(t *testing.T) {
	g := &catalog.Category{ID: 7, Name: "Drama"}
	groups := groupByGenre([]Movie{movieWith(1, g, 0), movieWith(2, g, 4), movieWith(3, g, 8)}, GroupKeyName)

	require.Len(t, groups, 1)
	assert.InDelta(t, 4.0, groups[0].AverageRentalCount, 1e-9)
}

func TestGroupByGenre_GroupKey(t *testing.T) {
	first := &catalog.Category{ID: 1, Name: "Classics"}
	duplicate := &catalog.Category{ID: 9, Name: "Classics"}
	movies := []Movie{movieWith(1, first, 1), movieWith(2, duplicate, 3)}

	byName := groupByGenre(movies, GroupKeyName)
	require.Len(t, byName, 1)
	assert.Equal(t, int64(1), byName[0].Genre.ID, "first category seen represents the group")
	assert.InDelta(t, 2.0, byName[0].AverageRentalCount, 1e-9)

	byID := groupByGenre(movies, GroupKeyID)
	require.Len(t, byID, 2)
	assert.Equal(t, int64(1), byID[0].Genre.ID)
	assert.Equal(t, int64(9), byID[1].Genre.ID)
}

func TestGroupByGenre_Empty(t *testing.T) {
	groups := groupByGenre(nil, GroupKeyName)
	assert.NotNil(t, groups)
	assert.Empty(t, groups)
}

func TestMoviesByCategory(t *testing.T) {
	fake := newFakeCatalog()
	r := newTestResolver(fake)

	groups, err := r.MoviesByCategory(context.Background(), "All")
	require.NoError(t, err)
	assert.Equal(t, 1000, fake.lastLimit)
	assert.Equal(t, 0, fake.lastOffset)
	assert.Equal(t, catalog.Filter{}, fake.lastFilter)

	// Film 4 has no genre and must not appear in any group.
	assert.Equal(t, map[string][]int64{"Action": {1, 3}, "Comedy": {2, 5}}, groupSummary(groups))
	for _, g := range groups {
		total := 0
		for _, m := range g.Movies {
			require.True(t, m.Genre.Found)
			total += m.RentalCount
		}
		assert.InDelta(t, float64(total)/float64(len(g.Movies)), g.AverageRentalCount, 1e-9)
	}
	assert.InDelta(t, 4.0, groups[0].AverageRentalCount, 1e-9)
	assert.InDelta(t, 1.5, groups[1].AverageRentalCount, 1e-9)

	// Actors are left for the GraphQL layer to load on demand.
	assert.Zero(t, fake.callCount("GetActorsForFilm"))
	assert.False(t, groups[0].Movies[0].ActorsLoaded)
}

func TestMoviesByCategory_RatingFilterAndScanLimit(t *testing.T) {
	fake := newFakeCatalog()
	r := newTestResolver(fake, func(o *Options) { o.GroupingScanLimit = 3 })

	groups, err := r.MoviesByCategory(context.Background(), "G")
	require.NoError(t, err)
	assert.Equal(t, 3, fake.lastLimit)
	assert.Equal(t, catalog.Filter{Rating: "G"}, fake.lastFilter)
	// G-rated films are 2, 4 and 5; film 4 has no genre.
	assert.Equal(t, map[string][]int64{"Comedy": {2, 5}}, groupSummary(groups))
}

func TestMoviesByCategory_DegradedGenreExcludesFilm(t *testing.T) {
	fake := newFakeCatalog()
	fake.failWith("GetGenreForFilm", assert.AnError)
	r := newTestResolver(fake, func(o *Options) { o.FailurePolicy = FailurePolicyDegrade })

	groups, err := r.MoviesByCategory(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, groups)
}
