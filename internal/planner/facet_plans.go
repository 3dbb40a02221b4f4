package planner

import (
	sq "github.com/Masterminds/squirrel"

	"sakila-graphql/internal/sqlutil"
)

// PlanGenreForFilm resolves a film's category. Sakila allows more than one
// film_category row per film; the lowest category_id wins.
func PlanGenreForFilm(filmID int64) (SQLQuery, error) {
	b := sq.Select(col(aliasCategory, "category_id"), col(aliasCategory, "name")).
		From(sqlutil.Table("category", aliasCategory)).
		Join(joinOn("film_category", aliasFilmCategory, col(aliasFilmCategory, "category_id"), col(aliasCategory, "category_id"))).
		Where(sq.Eq{col(aliasFilmCategory, "film_id"): filmID}).
		OrderBy(col(aliasCategory, "category_id")).
		Limit(1)
	return build(b)
}

// PlanActorsForFilm lists the cast of a film ordered by actor id.
func PlanActorsForFilm(filmID int64) (SQLQuery, error) {
	b := sq.Select(actorSelectList()...).
		From(sqlutil.Table("actor", aliasActor)).
		Join(joinOn("film_actor", aliasFilmActor, col(aliasFilmActor, "actor_id"), col(aliasActor, "actor_id"))).
		Where(sq.Eq{col(aliasFilmActor, "film_id"): filmID}).
		OrderBy(col(aliasActor, "actor_id"))
	return build(b)
}

// PlanRentalCountForFilm counts rentals across every inventory copy of a film.
// COUNT without GROUP BY always yields one row, so films without inventory
// report zero.
func PlanRentalCountForFilm(filmID int64) (SQLQuery, error) {
	b := sq.Select("COUNT(" + col(aliasRental, "rental_id") + ")").
		From(sqlutil.Table("inventory", aliasInventory)).
		Join(joinOn("rental", aliasRental, col(aliasRental, "inventory_id"), col(aliasInventory, "inventory_id"))).
		Where(sq.Eq{col(aliasInventory, "film_id"): filmID})
	return build(b)
}

// PlanGenresForFilms resolves categories for many films at once.
// Rows are ordered by film then category so the first row per film matches
// PlanGenreForFilm.
func PlanGenresForFilms(filmIDs []int64) (SQLQuery, error) {
	if len(filmIDs) == 0 {
		return SQLQuery{}, ErrEmptyBatch
	}
	b := sq.Select(col(aliasFilmCategory, "film_id"), col(aliasCategory, "category_id"), col(aliasCategory, "name")).
		From(sqlutil.Table("film_category", aliasFilmCategory)).
		Join(joinOn("category", aliasCategory, col(aliasCategory, "category_id"), col(aliasFilmCategory, "category_id"))).
		Where(sq.Eq{col(aliasFilmCategory, "film_id"): idArgs(filmIDs)}).
		OrderBy(col(aliasFilmCategory, "film_id"), col(aliasCategory, "category_id"))
	return build(b)
}

// PlanActorsForFilms lists casts for many films. Each row is
// film_id followed by ActorColumns.
func PlanActorsForFilms(filmIDs []int64) (SQLQuery, error) {
	if len(filmIDs) == 0 {
		return SQLQuery{}, ErrEmptyBatch
	}
	cols := append([]string{col(aliasFilmActor, "film_id")}, actorSelectList()...)
	b := sq.Select(cols...).
		From(sqlutil.Table("film_actor", aliasFilmActor)).
		Join(joinOn("actor", aliasActor, col(aliasActor, "actor_id"), col(aliasFilmActor, "actor_id"))).
		Where(sq.Eq{col(aliasFilmActor, "film_id"): idArgs(filmIDs)}).
		OrderBy(col(aliasFilmActor, "film_id"), col(aliasActor, "actor_id"))
	return build(b)
}

// PlanRentalCountsForFilms counts rentals for many films. Films with no
// rentals produce no row.
func PlanRentalCountsForFilms(filmIDs []int64) (SQLQuery, error) {
	if len(filmIDs) == 0 {
		return SQLQuery{}, ErrEmptyBatch
	}
	b := sq.Select(col(aliasInventory, "film_id"), "COUNT("+col(aliasRental, "rental_id")+")").
		From(sqlutil.Table("inventory", aliasInventory)).
		Join(joinOn("rental", aliasRental, col(aliasRental, "inventory_id"), col(aliasInventory, "inventory_id"))).
		Where(sq.Eq{col(aliasInventory, "film_id"): idArgs(filmIDs)}).
		GroupBy(col(aliasInventory, "film_id"))
	return build(b)
}
