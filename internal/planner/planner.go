// Package planner converts catalog requests into parameterized SQL statements
// over the Sakila schema. Plans are pure: they never touch a database, so the
// repository can execute them through any dbexec.QueryExecutor and tests can
// assert on the exact SQL produced.
package planner

import (
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"sakila-graphql/internal/sqlutil"
)

const (
	// DefaultListLimit is the page size used when a caller does not supply one.
	DefaultListLimit = 100
	// GroupingScanLimit bounds the number of films scanned by grouping operations.
	GroupingScanLimit = 1000
	// MaxInClause caps the number of values placed in a single IN (...) list.
	MaxInClause = 1000
)

// AllSentinel is the filter value clients send to mean "no constraint".
const AllSentinel = "All"

// ErrInvalidPagination is returned when limit or offset is negative.
var ErrInvalidPagination = errors.New("invalid pagination arguments")

// ErrEmptyBatch is returned when a batched plan is requested without ids.
var ErrEmptyBatch = errors.New("batch plan requires at least one film id")

// SQLQuery represents a planned SQL statement with bound args.
type SQLQuery struct {
	SQL  string
	Args []interface{}
}

// Filter narrows film listings. Empty fields mean no constraint.
type Filter struct {
	Genre  string
	Rating string
}

// NewFilter builds a Filter, treating empty values and the "All" sentinel as absent.
func NewFilter(genre, rating string) Filter {
	return Filter{Genre: NormalizeFilterValue(genre), Rating: NormalizeFilterValue(rating)}
}

// NormalizeFilterValue maps the "All" sentinel to "". Any other value,
// including "all" or a padded name, is kept verbatim and filters exactly.
func NormalizeFilterValue(value string) string {
	if value == AllSentinel {
		return ""
	}
	return value
}

// HasGenre reports whether the filter constrains the category name.
func (f Filter) HasGenre() bool { return f.Genre != "" }

// HasRating reports whether the filter constrains the film rating.
func (f Filter) HasRating() bool { return f.Rating != "" }

// Table aliases used across every plan.
const (
	aliasFilm         = "f"
	aliasFilmCategory = "fc"
	aliasCategory     = "c"
	aliasFilmActor    = "fa"
	aliasActor        = "a"
	aliasInventory    = "i"
	aliasRental       = "r"
	aliasFilmRentals  = "fr"
)

func col(alias, column string) string {
	return sqlutil.Column(alias, column)
}

func joinOn(table, alias, left, right string) string {
	return fmt.Sprintf("%s ON %s = %s", sqlutil.Table(table, alias), left, right)
}

// joinFilmCategory adds film -> film_category -> category joins.
func joinFilmCategory(b sq.SelectBuilder) sq.SelectBuilder {
	return b.
		Join(joinOn("film_category", aliasFilmCategory, col(aliasFilmCategory, "film_id"), col(aliasFilm, "film_id"))).
		Join(joinOn("category", aliasCategory, col(aliasCategory, "category_id"), col(aliasFilmCategory, "category_id")))
}

// applyFilter appends one equality predicate per present constraint.
// squirrel joins successive Where calls with AND in call order.
func applyFilter(b sq.SelectBuilder, filter Filter, genreColumn string) sq.SelectBuilder {
	if filter.HasGenre() {
		b = b.Where(sq.Eq{genreColumn: filter.Genre})
	}
	if filter.HasRating() {
		b = b.Where(sq.Eq{col(aliasFilm, "rating"): filter.Rating})
	}
	return b
}

func validatePagination(limit, offset int) error {
	if limit < 0 || offset < 0 {
		return fmt.Errorf("%w: limit=%d offset=%d", ErrInvalidPagination, limit, offset)
	}
	return nil
}

func build(b sq.SelectBuilder) (SQLQuery, error) {
	query, args, err := b.PlaceholderFormat(sq.Question).ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: query, Args: args}, nil
}

func idArgs(ids []int64) []interface{} {
	values := make([]interface{}, len(ids))
	for i, id := range ids {
		values[i] = id
	}
	return values
}
