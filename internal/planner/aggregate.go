package planner

import (
	sq "github.com/Masterminds/squirrel"

	"sakila-graphql/internal/sqlutil"
)

// PlanCountFilmsByGenre counts films per category name after filtering.
// The inner join means genres with no matching film produce no row.
func PlanCountFilmsByGenre(filter Filter) (SQLQuery, error) {
	genre := col(aliasCategory, "name")
	b := sq.Select(
		sqlutil.As(genre, "genre"),
		sqlutil.As("COUNT("+col(aliasFilm, "film_id")+")", "film_count"),
	).From(sqlutil.Table("film", aliasFilm))
	b = joinFilmCategory(b)
	b = applyFilter(b, filter, genre)
	b = b.GroupBy(genre).OrderBy(genre)
	return build(b)
}

// PlanAverageRentalCountByGenre averages per-film rental counts per genre.
//
// The derived table computes each film's rental count exactly once using
// LEFT JOINs, so films that were never rented contribute a zero to the mean
// instead of disappearing from it.
func PlanAverageRentalCountByGenre(filter Filter) (SQLQuery, error) {
	rentalCount := "COUNT(" + col(aliasRental, "rental_id") + ")"
	perFilm := sq.Select(col(aliasFilm, "film_id"), sqlutil.As(rentalCount, "rental_count")).
		From(sqlutil.Table("film", aliasFilm)).
		LeftJoin(joinOn("inventory", aliasInventory, col(aliasInventory, "film_id"), col(aliasFilm, "film_id"))).
		LeftJoin(joinOn("rental", aliasRental, col(aliasRental, "inventory_id"), col(aliasInventory, "inventory_id")))
	if filter.HasRating() {
		perFilm = perFilm.Where(sq.Eq{col(aliasFilm, "rating"): filter.Rating})
	}
	perFilm = perFilm.GroupBy(col(aliasFilm, "film_id"))

	genre := col(aliasCategory, "name")
	b := sq.Select(
		sqlutil.As(genre, "genre"),
		sqlutil.As("AVG("+col(aliasFilmRentals, "rental_count")+")", "average_rental_count"),
	).
		FromSelect(perFilm, aliasFilmRentals).
		Join(joinOn("film_category", aliasFilmCategory, col(aliasFilmCategory, "film_id"), col(aliasFilmRentals, "film_id"))).
		Join(joinOn("category", aliasCategory, col(aliasCategory, "category_id"), col(aliasFilmCategory, "category_id")))
	if filter.HasGenre() {
		b = b.Where(sq.Eq{genre: filter.Genre})
	}
	b = b.GroupBy(genre).OrderBy(genre)
	return build(b)
}
