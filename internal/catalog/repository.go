package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"sakila-graphql/internal/dbexec"
	"sakila-graphql/internal/planner"
)

// Repository answers catalog questions against the Sakila schema.
// It is safe for concurrent use; it holds no per-request state.
type Repository struct {
	executor    dbexec.QueryExecutor
	maxInClause int
}

// Option customizes a Repository.
type Option func(*Repository)

// WithMaxInClause caps the ids placed in one IN (...) list by batched lookups.
func WithMaxInClause(n int) Option {
	return func(r *Repository) {
		if n > 0 {
			r.maxInClause = n
		}
	}
}

// NewRepository creates a repository that runs queries through executor.
func NewRepository(executor dbexec.QueryExecutor, opts ...Option) *Repository {
	r := &Repository{
		executor:    executor,
		maxInClause: planner.MaxInClause,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// run executes a plan and hands each row to scan. Every failure, including
// scan and iteration errors, is wrapped in a DataAccessError.
func (r *Repository) run(ctx context.Context, op string, plan planner.SQLQuery, scan func(dbexec.Rows) error) error {
	rows, err := r.executor.QueryContext(ctx, plan.SQL, plan.Args...)
	if err != nil {
		return dataAccess(op, err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return dataAccess(op, err)
		}
	}
	if err := rows.Err(); err != nil {
		return dataAccess(op, err)
	}
	return nil
}

// ListFilms returns films matching filter ordered by film id.
func (r *Repository) ListFilms(ctx context.Context, filter Filter, limit, offset int) ([]Film, error) {
	plan, err := planner.PlanListFilms(filter, limit, offset)
	if err != nil {
		return nil, err
	}

	films := make([]Film, 0, min(limit, planner.GroupingScanLimit))
	err = r.run(ctx, "list films", plan, func(rows dbexec.Rows) error {
		film, err := scanFilm(rows)
		if err != nil {
			return err
		}
		films = append(films, film)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return films, nil
}

// GetFilmByID returns the film with id, or a NotFoundError.
func (r *Repository) GetFilmByID(ctx context.Context, id int64) (Film, error) {
	plan, err := planner.PlanFilmByID(id)
	if err != nil {
		return Film{}, err
	}

	var (
		film  Film
		found bool
	)
	err = r.run(ctx, "get film", plan, func(rows dbexec.Rows) error {
		if found {
			return nil
		}
		scanned, err := scanFilm(rows)
		if err != nil {
			return err
		}
		film, found = scanned, true
		return nil
	})
	if err != nil {
		return Film{}, err
	}
	if !found {
		return Film{}, &NotFoundError{FilmID: id}
	}
	return film, nil
}

// GetGenreForFilm resolves a film's category. A film without one yields
// GenreAbsent, not an error.
func (r *Repository) GetGenreForFilm(ctx context.Context, filmID int64) (GenreLookup, error) {
	plan, err := planner.PlanGenreForFilm(filmID)
	if err != nil {
		return GenreLookup{}, err
	}

	lookup := GenreAbsent()
	err = r.run(ctx, "get genre", plan, func(rows dbexec.Rows) error {
		if lookup.Found {
			return nil
		}
		var c Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return err
		}
		lookup = GenreFound(c)
		return nil
	})
	if err != nil {
		return GenreLookup{}, err
	}
	return lookup, nil
}

// GetActorsForFilm lists a film's cast; the result may be empty.
func (r *Repository) GetActorsForFilm(ctx context.Context, filmID int64) ([]Actor, error) {
	plan, err := planner.PlanActorsForFilm(filmID)
	if err != nil {
		return nil, err
	}
	return r.listActors(ctx, "get actors", plan)
}

// ListActors lists every actor in the catalog.
func (r *Repository) ListActors(ctx context.Context) ([]Actor, error) {
	plan, err := planner.PlanListActors()
	if err != nil {
		return nil, err
	}
	return r.listActors(ctx, "list actors", plan)
}

func (r *Repository) listActors(ctx context.Context, op string, plan planner.SQLQuery) ([]Actor, error) {
	actors := []Actor{}
	err := r.run(ctx, op, plan, func(rows dbexec.Rows) error {
		var a Actor
		if err := rows.Scan(&a.ID, &a.FirstName, &a.LastName); err != nil {
			return err
		}
		actors = append(actors, a)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return actors, nil
}

// GetRentalCountForFilm counts rentals of a film; zero when never rented.
func (r *Repository) GetRentalCountForFilm(ctx context.Context, filmID int64) (int, error) {
	plan, err := planner.PlanRentalCountForFilm(filmID)
	if err != nil {
		return 0, err
	}

	count := 0
	err = r.run(ctx, "get rental count", plan, func(rows dbexec.Rows) error {
		var n sql.NullInt64
		if err := rows.Scan(&n); err != nil {
			return err
		}
		count = int(n.Int64)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// CountFilmsByGenre counts films per genre. Genres without matching films
// are omitted.
func (r *Repository) CountFilmsByGenre(ctx context.Context, filter Filter) ([]GenreCount, error) {
	plan, err := planner.PlanCountFilmsByGenre(filter)
	if err != nil {
		return nil, err
	}

	counts := []GenreCount{}
	err = r.run(ctx, "count films by genre", plan, func(rows dbexec.Rows) error {
		var gc GenreCount
		if err := rows.Scan(&gc.Genre, &gc.Count); err != nil {
			return err
		}
		if gc.Count > 0 {
			counts = append(counts, gc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// ListTitlesSorted returns matching titles in byte-wise ascending order,
// independent of the server collation.
func (r *Repository) ListTitlesSorted(ctx context.Context, filter Filter) ([]string, error) {
	plan, err := planner.PlanListTitles(filter)
	if err != nil {
		return nil, err
	}

	titles := []string{}
	err = r.run(ctx, "list titles", plan, func(rows dbexec.Rows) error {
		var title string
		if err := rows.Scan(&title); err != nil {
			return err
		}
		titles = append(titles, title)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(titles)
	return titles, nil
}

// AverageRentalCountByGenre averages per-film rental counts per genre,
// counting never-rented films as zero.
func (r *Repository) AverageRentalCountByGenre(ctx context.Context, filter Filter) ([]AverageRentalCount, error) {
	plan, err := planner.PlanAverageRentalCountByGenre(filter)
	if err != nil {
		return nil, err
	}

	averages := []AverageRentalCount{}
	err = r.run(ctx, "average rental count by genre", plan, func(rows dbexec.Rows) error {
		var (
			genre string
			avg   sql.NullFloat64
		)
		if err := rows.Scan(&genre, &avg); err != nil {
			return err
		}
		averages = append(averages, AverageRentalCount{Genre: genre, AverageRentalCount: avg.Float64})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return averages, nil
}

func scanFilm(rows dbexec.Rows) (Film, error) {
	var (
		film        Film
		description sql.NullString
		releaseYear sql.NullInt64
		rating      sql.NullString
	)
	if err := rows.Scan(&film.ID, &film.Title, &description, &releaseYear, &rating); err != nil {
		return Film{}, fmt.Errorf("scan film: %w", err)
	}
	if description.Valid {
		film.Description = &description.String
	}
	if releaseYear.Valid {
		year := int(releaseYear.Int64)
		film.ReleaseYear = &year
	}
	if rating.Valid {
		film.Rating = &rating.String
	}
	return film, nil
}
