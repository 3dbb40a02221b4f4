package catalog

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sakila-graphql/internal/dbexec"
	"sakila-graphql/internal/planner"
)

var filmRowColumns = []string{"film_id", "title", "description", "release_year", "rating"}

func newTestRepository(t *testing.T, opts ...Option) (*Repository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(dbexec.NewStandardExecutor(db), opts...), mock
}

func expectPlan(t *testing.T, mock sqlmock.Sqlmock, plan planner.SQLQuery, planErr error) *sqlmock.ExpectedQuery {
	t.Helper()
	require.NoError(t, planErr)

	expectation := mock.ExpectQuery(regexp.QuoteMeta(plan.SQL))
	if len(plan.Args) > 0 {
		expectation = expectation.WithArgs(toDriverValues(plan.Args)...)
	}
	return expectation
}

func toDriverValues(args []interface{}) []driver.Value {
	values := make([]driver.Value, len(args))
	for i, arg := range args {
		values[i] = arg
	}
	return values
}

func TestListFilms(t *testing.T) {
	repo, mock := newTestRepository(t)
	filter := NewFilter("Comedy", "PG")

	plan, err := planner.PlanListFilms(filter, 3, 0)
	expectPlan(t, mock, plan, err).WillReturnRows(sqlmock.NewRows(filmRowColumns).
		AddRow(int64(1), "ACADEMY DINOSAUR", "An epic drama", int64(2006), "PG").
		AddRow(int64(2), "ACE GOLDFINGER", nil, nil, nil))

	films, err := repo.ListFilms(context.Background(), filter, 3, 0)
	require.NoError(t, err)
	require.Len(t, films, 2)

	assert.Equal(t, int64(1), films[0].ID)
	require.NotNil(t, films[0].Description)
	assert.Equal(t, "An epic drama", *films[0].Description)
	require.NotNil(t, films[0].ReleaseYear)
	assert.Equal(t, 2006, *films[0].ReleaseYear)
	require.NotNil(t, films[0].Rating)
	assert.Equal(t, "PG", *films[0].Rating)

	assert.Nil(t, films[1].Description)
	assert.Nil(t, films[1].ReleaseYear)
	assert.Nil(t, films[1].Rating)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListFilms_DataAccessError(t *testing.T) {
	repo, mock := newTestRepository(t)
	cause := errors.New("connection reset")

	plan, err := planner.PlanListFilms(Filter{}, 10, 0)
	expectPlan(t, mock, plan, err).WillReturnError(cause)

	_, err = repo.ListFilms(context.Background(), Filter{}, 10, 0)
	require.Error(t, err)

	var dae *DataAccessError
	require.ErrorAs(t, err, &dae)
	assert.Equal(t, "list films", dae.Op)
	assert.ErrorIs(t, err, cause)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestListFilms_InvalidPagination(t *testing.T) {
	repo, _ := newTestRepository(t)
	_, err := repo.ListFilms(context.Background(), Filter{}, -1, 0)
	assert.ErrorIs(t, err, planner.ErrInvalidPagination)
}

func TestGetFilmByID(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		repo, mock := newTestRepository(t)
		plan, err := planner.PlanFilmByID(5)
		expectPlan(t, mock, plan, err).WillReturnRows(sqlmock.NewRows(filmRowColumns).
			AddRow(int64(5), "AFRICAN EGG", "A fast-paced documentary", int64(2006), "G"))

		film, err := repo.GetFilmByID(context.Background(), 5)
		require.NoError(t, err)
		assert.Equal(t, "AFRICAN EGG", film.Title)
	})

	t.Run("not found", func(t *testing.T) {
		repo, mock := newTestRepository(t)
		plan, err := planner.PlanFilmByID(99999)
		expectPlan(t, mock, plan, err).WillReturnRows(sqlmock.NewRows(filmRowColumns))

		_, err = repo.GetFilmByID(context.Background(), 99999)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.EqualError(t, err, "no movie found with id: 99999")

		var dae *DataAccessError
		assert.False(t, errors.As(err, &dae))
	})
}

func TestGetGenreForFilm(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		repo, mock := newTestRepository(t)
		plan, err := planner.PlanGenreForFilm(1)
		expectPlan(t, mock, plan, err).WillReturnRows(sqlmock.NewRows([]string{"category_id", "name"}).
			AddRow(int64(6), "Documentary"))

		lookup, err := repo.GetGenreForFilm(context.Background(), 1)
		require.NoError(t, err)
		assert.True(t, lookup.Found)
		assert.Equal(t, Category{ID: 6, Name: "Documentary"}, lookup.Category)
	})

	t.Run("absent", func(t *testing.T) {
		repo, mock := newTestRepository(t)
		plan, err := planner.PlanGenreForFilm(2)
		expectPlan(t, mock, plan, err).WillReturnRows(sqlmock.NewRows([]string{"category_id", "name"}))

		lookup, err := repo.GetGenreForFilm(context.Background(), 2)
		require.NoError(t, err)
		assert.False(t, lookup.Found)
	})
}

func TestGetActorsForFilm_Empty(t *testing.T) {
	repo, mock := newTestRepository(t)
	plan, err := planner.PlanActorsForFilm(3)
	expectPlan(t, mock, plan, err).WillReturnRows(sqlmock.NewRows([]string{"actor_id", "first_name", "last_name"}))

	actors, err := repo.GetActorsForFilm(context.Background(), 3)
	require.NoError(t, err)
	assert.NotNil(t, actors)
	assert.Empty(t, actors)
}

func TestListActors(t *testing.T) {
	repo, mock := newTestRepository(t)
	plan, err := planner.PlanListActors()
	expectPlan(t, mock, plan, err).WillReturnRows(sqlmock.NewRows([]string{"actor_id", "first_name", "last_name"}).
		AddRow(int64(1), "PENELOPE", "GUINESS").
		AddRow(int64(2), "NICK", "WAHLBERG"))

	actors, err := repo.ListActors(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Actor{
		{ID: 1, FirstName: "PENELOPE", LastName: "GUINESS"},
		{ID: 2, FirstName: "NICK", LastName: "WAHLBERG"},
	}, actors)
}

func TestGetRentalCountForFilm(t *testing.T) {
	t.Run("counted", func(t *testing.T) {
		repo, mock := newTestRepository(t)
		plan, err := planner.PlanRentalCountForFilm(1)
		expectPlan(t, mock, plan, err).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(23)))

		count, err := repo.GetRentalCountForFilm(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, 23, count)
	})

	t.Run("no rows means zero", func(t *testing.T) {
		repo, mock := newTestRepository(t)
		plan, err := planner.PlanRentalCountForFilm(14)
		expectPlan(t, mock, plan, err).WillReturnRows(sqlmock.NewRows([]string{"count"}))

		count, err := repo.GetRentalCountForFilm(context.Background(), 14)
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})
}

func TestCountFilmsByGenre_OmitsZeroCounts(t *testing.T) {
	repo, mock := newTestRepository(t)
	filter := NewFilter("All", "R")
	plan, err := planner.PlanCountFilmsByGenre(filter)
	expectPlan(t, mock, plan, err).WillReturnRows(sqlmock.NewRows([]string{"genre", "film_count"}).
		AddRow("Action", int64(15)).
		AddRow("Animation", int64(0)).
		AddRow("Comedy", int64(12)))

	counts, err := repo.CountFilmsByGenre(context.Background(), filter)
	require.NoError(t, err)
	assert.Equal(t, []GenreCount{{Genre: "Action", Count: 15}, {Genre: "Comedy", Count: 12}}, counts)
	for _, c := range counts {
		assert.Positive(t, c.Count)
	}
}

func TestListTitlesSorted(t *testing.T) {
	repo, mock := newTestRepository(t)
	filter := NewFilter("Horror", "")
	plan, err := planner.PlanListTitles(filter)
	// Collations may fold case; the repository re-sorts byte-wise.
	expectPlan(t, mock, plan, err).WillReturnRows(sqlmock.NewRows([]string{"title"}).
		AddRow("ZORRO ARK").
		AddRow("alien center").
		AddRow("ACE GOLDFINGER"))

	titles, err := repo.ListTitlesSorted(context.Background(), filter)
	require.NoError(t, err)
	assert.Equal(t, []string{"ACE GOLDFINGER", "ZORRO ARK", "alien center"}, titles)
	for i := 1; i < len(titles); i++ {
		assert.LessOrEqual(t, titles[i-1], titles[i])
	}
}

func TestAverageRentalCountByGenre(t *testing.T) {
	repo, mock := newTestRepository(t)
	plan, err := planner.PlanAverageRentalCountByGenre(Filter{})
	// DECIMAL averages arrive as text from the MySQL driver.
	expectPlan(t, mock, plan, err).WillReturnRows(sqlmock.NewRows([]string{"genre", "average_rental_count"}).
		AddRow("Action", "4.0000").
		AddRow("Sports", []byte("17.5000")))

	averages, err := repo.AverageRentalCountByGenre(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Equal(t, []AverageRentalCount{
		{Genre: "Action", AverageRentalCount: 4.0},
		{Genre: "Sports", AverageRentalCount: 17.5},
	}, averages)
}

func TestScanErrorIsDataAccess(t *testing.T) {
	repo, mock := newTestRepository(t)
	plan, err := planner.PlanRentalCountForFilm(1)
	expectPlan(t, mock, plan, err).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow("not-a-number"))

	_, err = repo.GetRentalCountForFilm(context.Background(), 1)
	var dae *DataAccessError
	require.ErrorAs(t, err, &dae)
	assert.Equal(t, "get rental count", dae.Op)
}

func TestRowIterationErrorIsDataAccess(t *testing.T) {
	repo, mock := newTestRepository(t)
	plan, err := planner.PlanListActors()
	expectPlan(t, mock, plan, err).WillReturnRows(sqlmock.NewRows([]string{"actor_id", "first_name", "last_name"}).
		AddRow(int64(1), "PENELOPE", "GUINESS").
		RowError(0, sql.ErrConnDone))

	_, err = repo.ListActors(context.Background())
	var dae *DataAccessError
	require.ErrorAs(t, err, &dae)
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestIsAccessDenied(t *testing.T) {
	denied := &DataAccessError{Op: "list films", Err: &mysql.MySQLError{Number: 1142, Message: "SELECT command denied"}}
	assert.True(t, IsAccessDenied(denied))
	assert.Equal(t, uint16(1142), MySQLErrorCode(denied))

	other := &DataAccessError{Op: "list films", Err: &mysql.MySQLError{Number: 1064}}
	assert.False(t, IsAccessDenied(other))
	assert.False(t, IsAccessDenied(errors.New("boom")))
	assert.Equal(t, uint16(0), MySQLErrorCode(errors.New("boom")))
}
