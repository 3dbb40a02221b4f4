package planner

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const filmSelect = "SELECT `f`.`film_id`, `f`.`title`, `f`.`description`, `f`.`release_year`, `f`.`rating`"

const filmCategoryJoins = "JOIN `film_category` AS `fc` ON `fc`.`film_id` = `f`.`film_id` " +
	"JOIN `category` AS `c` ON `c`.`category_id` = `fc`.`category_id`"

func TestNewFilter(t *testing.T) {
	tests := []struct {
		name   string
		genre  string
		rating string
		want   Filter
	}{
		{"empty", "", "", Filter{}},
		{"all sentinel", "All", "All", Filter{}},
		{"sentinel is case sensitive", "all", "ALL", Filter{Genre: "all", Rating: "ALL"}},
		{"genre only", "Comedy", "", Filter{Genre: "Comedy"}},
		{"rating only", "All", "PG-13", Filter{Rating: "PG-13"}},
		{"padded values kept verbatim", " Action ", "R ", Filter{Genre: " Action ", Rating: "R "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewFilter(tt.genre, tt.rating))
		})
	}
}

func TestPlanListFilms(t *testing.T) {
	t.Run("no filter", func(t *testing.T) {
		planned, err := PlanListFilms(Filter{}, 101, 0)
		require.NoError(t, err)
		assertSQLMatches(t, planned.SQL,
			filmSelect+" FROM `film` AS `f` "+filmCategoryJoins+" ORDER BY `f`.`film_id` LIMIT ? OFFSET ?",
			filmSelect+" FROM `film` AS `f` "+filmCategoryJoins+" ORDER BY `f`.`film_id` LIMIT 101 OFFSET 0",
		)
		assertLimitOffsetArgs(t, planned.SQL, planned.Args, 101, 0)
	})

	t.Run("genre and rating", func(t *testing.T) {
		planned, err := PlanListFilms(Filter{Genre: "Comedy", Rating: "PG"}, 11, 20)
		require.NoError(t, err)
		assertSQLMatches(t, planned.SQL,
			filmSelect+" FROM `film` AS `f` "+filmCategoryJoins+
				" WHERE `c`.`name` = ? AND `f`.`rating` = ? ORDER BY `f`.`film_id` LIMIT ? OFFSET ?",
			filmSelect+" FROM `film` AS `f` "+filmCategoryJoins+
				" WHERE `c`.`name` = ? AND `f`.`rating` = ? ORDER BY `f`.`film_id` LIMIT 11 OFFSET 20",
		)
		assertWhereLimitOffsetArgs(t, planned.SQL, planned.Args, []interface{}{"Comedy", "PG"}, 11, 20)
	})

	t.Run("rating only omits genre predicate", func(t *testing.T) {
		planned, err := PlanListFilms(Filter{Rating: "R"}, 5, 0)
		require.NoError(t, err)
		assert.NotContains(t, planned.SQL, "`c`.`name` = ?")
		assert.Contains(t, planned.SQL, "WHERE `f`.`rating` = ?")
	})

	t.Run("negative values rejected", func(t *testing.T) {
		_, err := PlanListFilms(Filter{}, -1, 0)
		require.ErrorIs(t, err, ErrInvalidPagination)
		_, err = PlanListFilms(Filter{}, 1, -5)
		require.ErrorIs(t, err, ErrInvalidPagination)
	})
}

func TestPlanFilmByID(t *testing.T) {
	planned, err := PlanFilmByID(42)
	require.NoError(t, err)
	assertSQLMatches(t, planned.SQL, filmSelect+" FROM `film` AS `f` WHERE `f`.`film_id` = ?")
	assertArgsEqual(t, planned.Args, []interface{}{42})
}

func TestPlanListTitles(t *testing.T) {
	t.Run("without genre skips category join", func(t *testing.T) {
		planned, err := PlanListTitles(Filter{Rating: "G"})
		require.NoError(t, err)
		assertSQLMatches(t, planned.SQL,
			"SELECT `f`.`title` FROM `film` AS `f` WHERE `f`.`rating` = ? ORDER BY `f`.`title`")
		assertArgsEqual(t, planned.Args, []interface{}{"G"})
	})

	t.Run("with genre joins category", func(t *testing.T) {
		planned, err := PlanListTitles(Filter{Genre: "Horror"})
		require.NoError(t, err)
		assertSQLMatches(t, planned.SQL,
			"SELECT `f`.`title` FROM `film` AS `f` "+filmCategoryJoins+" WHERE `c`.`name` = ? ORDER BY `f`.`title`")
		assertArgsEqual(t, planned.Args, []interface{}{"Horror"})
	})
}

func TestPlanListActors(t *testing.T) {
	planned, err := PlanListActors()
	require.NoError(t, err)
	assertSQLMatches(t, planned.SQL,
		"SELECT `a`.`actor_id`, `a`.`first_name`, `a`.`last_name` FROM `actor` AS `a` ORDER BY `a`.`actor_id`")
	assert.Empty(t, planned.Args)
}

func assertSQLMatches(t *testing.T, got string, candidates ...string) {
	t.Helper()

	gotNorm := normalizeSQL(got)
	for _, candidate := range candidates {
		if gotNorm == normalizeSQL(candidate) {
			return
		}
	}

	assert.Fail(t, "SQL did not match any expected form", "got: %q candidates: %v", gotNorm, candidates)
}

// Accept either bound args or literal LIMIT/OFFSET in SQL.
func assertLimitOffsetArgs(t *testing.T, sql string, args []interface{}, limit, offset int) {
	t.Helper()

	if len(args) == 0 {
		assert.Contains(t, normalizeSQL(sql), fmt.Sprintf("LIMIT %d OFFSET %d", limit, offset))
		return
	}
	assertArgsEqual(t, args, []interface{}{limit, offset})
}

// Accept either fully bound args or bound WHERE args with literal LIMIT/OFFSET.
func assertWhereLimitOffsetArgs(t *testing.T, sql string, args []interface{}, whereArgs []interface{}, limit, offset int) {
	t.Helper()

	if len(args) == len(whereArgs) {
		assertArgsEqual(t, args, whereArgs)
		assertLimitOffsetArgs(t, sql, nil, limit, offset)
		return
	}
	expected := append(append([]interface{}{}, whereArgs...), limit, offset)
	assertArgsEqual(t, args, expected)
}

func assertArgsEqual(t *testing.T, got []interface{}, expected []interface{}) {
	t.Helper()

	if len(got) != len(expected) {
		assert.Equal(t, len(expected), len(got))
		return
	}
	assert.Equal(t, normalizeArgs(expected), normalizeArgs(got))
}

// Normalize args to strings so numeric types compare consistently.
func normalizeArgs(args []interface{}) []string {
	normalized := make([]string, len(args))
	for i, arg := range args {
		normalized[i] = fmt.Sprintf("%v", arg)
	}
	return normalized
}

func normalizeSQL(sql string) string {
	return strings.Join(strings.Fields(sql), " ")
}
