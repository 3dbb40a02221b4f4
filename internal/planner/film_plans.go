package planner

import (
	sq "github.com/Masterminds/squirrel"

	"sakila-graphql/internal/sqlutil"
)

// FilmColumns is the scan order for film rows:
// film_id, title, description, release_year, rating.
var FilmColumns = []string{"film_id", "title", "description", "release_year", "rating"}

// ActorColumns is the scan order for actor rows: actor_id, first_name, last_name.
var ActorColumns = []string{"actor_id", "first_name", "last_name"}

func filmSelectList() []string {
	cols := make([]string, len(FilmColumns))
	for i, name := range FilmColumns {
		cols[i] = col(aliasFilm, name)
	}
	return cols
}

func actorSelectList() []string {
	cols := make([]string, len(ActorColumns))
	for i, name := range ActorColumns {
		cols[i] = col(aliasActor, name)
	}
	return cols
}

// PlanListFilms builds the paginated film listing. Films are always joined to
// their category so that a genre filter can apply; films without a category
// are therefore never listed.
func PlanListFilms(filter Filter, limit, offset int) (SQLQuery, error) {
	if err := validatePagination(limit, offset); err != nil {
		return SQLQuery{}, err
	}

	b := sq.Select(filmSelectList()...).From(sqlutil.Table("film", aliasFilm))
	b = joinFilmCategory(b)
	b = applyFilter(b, filter, col(aliasCategory, "name"))
	b = b.OrderBy(col(aliasFilm, "film_id")).
		Limit(uint64(limit)).
		Offset(uint64(offset))

	return build(b)
}

// PlanFilmByID builds a single film lookup.
func PlanFilmByID(filmID int64) (SQLQuery, error) {
	return build(sq.Select(filmSelectList()...).
		From(sqlutil.Table("film", aliasFilm)).
		Where(sq.Eq{col(aliasFilm, "film_id"): filmID}))
}

// PlanListTitles builds the sorted title listing. The category join is only
// added when a genre constraint is present.
func PlanListTitles(filter Filter) (SQLQuery, error) {
	b := sq.Select(col(aliasFilm, "title")).From(sqlutil.Table("film", aliasFilm))
	if filter.HasGenre() {
		b = joinFilmCategory(b)
	}
	b = applyFilter(b, filter, col(aliasCategory, "name"))
	b = b.OrderBy(col(aliasFilm, "title"))
	return build(b)
}

// PlanListActors lists every actor ordered by id.
func PlanListActors() (SQLQuery, error) {
	return build(sq.Select(actorSelectList()...).
		From(sqlutil.Table("actor", aliasActor)).
		OrderBy(col(aliasActor, "actor_id")))
}
