// Package catalog is the film catalog repository. It executes planner SQL
// through a dbexec.QueryExecutor and returns typed Sakila records.
package catalog

import "sakila-graphql/internal/planner"

// Filter narrows film listings. Use NewFilter to apply "All" normalization.
type Filter = planner.Filter

// NewFilter builds a Filter where empty values and "All" mean no constraint.
func NewFilter(genre, rating string) Filter {
	return planner.NewFilter(genre, rating)
}

// Film is a row of the film table. Description, release year and rating are
// nullable in Sakila.
type Film struct {
	ID          int64
	Title       string
	Description *string
	ReleaseYear *int
	Rating      *string
}

// Category is a film genre.
type Category struct {
	ID   int64
	Name string
}

// Actor is a performer credited on films.
type Actor struct {
	ID        int64
	FirstName string
	LastName  string
}

// GenreLookup is the result of resolving a film's genre. Found is false when
// the film has no category; that is not an error.
type GenreLookup struct {
	Category Category
	Found    bool
}

// GenreFound wraps a resolved category.
func GenreFound(c Category) GenreLookup {
	return GenreLookup{Category: c, Found: true}
}

// GenreAbsent is the lookup result for a film without a category.
func GenreAbsent() GenreLookup {
	return GenreLookup{}
}

// GenreCount is the number of films in one genre.
type GenreCount struct {
	Genre string
	Count int
}

// AverageRentalCount is the mean rental count of the films in one genre.
type AverageRentalCount struct {
	Genre              string
	AverageRentalCount float64
}
