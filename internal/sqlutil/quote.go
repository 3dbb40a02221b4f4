// Package sqlutil provides SQL identifier helpers shared by the query planner.
package sqlutil

import "strings"

// QuoteIdentifier quotes a SQL identifier (table name, column name, alias)
// with backticks and escapes any backticks within the identifier.
func QuoteIdentifier(name string) string {
	escaped := strings.ReplaceAll(name, "`", "``")
	return "`" + escaped + "`"
}

// Column renders an alias-qualified column reference, e.g. `f`.`film_id`.
// An empty alias yields the bare quoted column.
func Column(alias, column string) string {
	if alias == "" {
		return QuoteIdentifier(column)
	}
	return QuoteIdentifier(alias) + "." + QuoteIdentifier(column)
}

// Table renders a table reference with an optional alias, e.g. `film` AS `f`.
func Table(name, alias string) string {
	if alias == "" {
		return QuoteIdentifier(name)
	}
	return QuoteIdentifier(name) + " AS " + QuoteIdentifier(alias)
}

// As renders `expr AS alias` for select lists.
func As(expr, alias string) string {
	return expr + " AS " + QuoteIdentifier(alias)
}
