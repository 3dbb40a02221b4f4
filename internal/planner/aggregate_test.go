package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanCountFilmsByGenre(t *testing.T) {
	t.Run("unfiltered", func(t *testing.T) {
		planned, err := PlanCountFilmsByGenre(Filter{})
		require.NoError(t, err)
		assertSQLMatches(t, planned.SQL,
			"SELECT `c`.`name` AS `genre`, COUNT(`f`.`film_id`) AS `film_count` FROM `film` AS `f` "+
				filmCategoryJoins+" GROUP BY `c`.`name` ORDER BY `c`.`name`")
		assert.Empty(t, planned.Args)
	})

	t.Run("rating filter", func(t *testing.T) {
		planned, err := PlanCountFilmsByGenre(Filter{Rating: "NC-17"})
		require.NoError(t, err)
		assert.Contains(t, planned.SQL, "WHERE `f`.`rating` = ? GROUP BY")
		assertArgsEqual(t, planned.Args, []interface{}{"NC-17"})
	})
}

func TestPlanAverageRentalCountByGenre(t *testing.T) {
	t.Run("unfiltered", func(t *testing.T) {
		planned, err := PlanAverageRentalCountByGenre(Filter{})
		require.NoError(t, err)
		assertSQLMatches(t, planned.SQL,
			"SELECT `c`.`name` AS `genre`, AVG(`fr`.`rental_count`) AS `average_rental_count` "+
				"FROM (SELECT `f`.`film_id`, COUNT(`r`.`rental_id`) AS `rental_count` FROM `film` AS `f` "+
				"LEFT JOIN `inventory` AS `i` ON `i`.`film_id` = `f`.`film_id` "+
				"LEFT JOIN `rental` AS `r` ON `r`.`inventory_id` = `i`.`inventory_id` "+
				"GROUP BY `f`.`film_id`) AS fr "+
				"JOIN `film_category` AS `fc` ON `fc`.`film_id` = `fr`.`film_id` "+
				"JOIN `category` AS `c` ON `c`.`category_id` = `fc`.`category_id` "+
				"GROUP BY `c`.`name` ORDER BY `c`.`name`")
		assert.Empty(t, planned.Args)
	})

	t.Run("rating binds inside derived table before genre", func(t *testing.T) {
		planned, err := PlanAverageRentalCountByGenre(Filter{Genre: "Drama", Rating: "PG"})
		require.NoError(t, err)
		assert.Contains(t, planned.SQL, "WHERE `f`.`rating` = ? GROUP BY `f`.`film_id`) AS fr")
		assert.Contains(t, planned.SQL, "WHERE `c`.`name` = ? GROUP BY `c`.`name`")
		assertArgsEqual(t, planned.Args, []interface{}{"PG", "Drama"})
	})
}
