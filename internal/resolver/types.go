package resolver

import "sakila-graphql/internal/catalog"

// Movie is a film enriched with its genre, cast and rental count.
type Movie struct {
	catalog.Film
	Genre       catalog.GenreLookup
	Actors      []catalog.Actor
	RentalCount int

	// ActorsLoaded is false when the cast was not fetched eagerly; the
	// GraphQL actors field then loads it on demand.
	ActorsLoaded bool
}

// MoviePage is one page of movies. HasMore reports whether a further row
// exists past this page.
type MoviePage struct {
	Movies  []Movie
	HasMore bool
}

// GenreGroup is the set of movies sharing a genre together with the mean
// rental count over exactly those movies.
type GenreGroup struct {
	Genre              catalog.Category
	Movies             []Movie
	AverageRentalCount float64
}
