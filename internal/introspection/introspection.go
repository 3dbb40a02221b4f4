// Package introspection checks at startup that the connected database holds
// the Sakila tables and columns the catalog queries depend on.
package introspection

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// RequiredColumns lists, per table, the columns read by the catalog planner.
var RequiredColumns = map[string][]string{
	"film":          {"film_id", "title", "description", "release_year", "rating"},
	"category":      {"category_id", "name"},
	"film_category": {"film_id", "category_id"},
	"actor":         {"actor_id", "first_name", "last_name"},
	"film_actor":    {"film_id", "actor_id"},
	"inventory":     {"inventory_id", "film_id"},
	"rental":        {"rental_id", "inventory_id"},
}

// Column is one row of INFORMATION_SCHEMA.COLUMNS.
type Column struct {
	Table      string
	Name       string
	DataType   string
	ColumnType string
}

// Report summarizes a successful check.
type Report struct {
	Tables int
	// RatingValues are the members of film.rating when it is an ENUM.
	RatingValues []string
}

// MissingSchemaError names every required table or column that was not found.
type MissingSchemaError struct {
	Database string
	Missing  []string
}

func (e *MissingSchemaError) Error() string {
	return fmt.Sprintf("database %q is missing Sakila schema objects: %s", e.Database, strings.Join(e.Missing, ", "))
}

// Queryer provides query access for schema introspection.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func requiredTables() []string {
	tables := make([]string, 0, len(RequiredColumns))
	for table := range RequiredColumns {
		tables = append(tables, table)
	}
	sort.Strings(tables)
	return tables
}

func columnsQuery(databaseName string) (string, []any, error) {
	return sq.Select("TABLE_NAME", "COLUMN_NAME", "DATA_TYPE", "COLUMN_TYPE").
		From("INFORMATION_SCHEMA.COLUMNS").
		Where(sq.Eq{"TABLE_SCHEMA": databaseName, "TABLE_NAME": requiredTables()}).
		OrderBy("TABLE_NAME", "ORDINAL_POSITION").
		ToSql()
}

// LoadColumns reads the columns of the required tables in one round trip.
func LoadColumns(ctx context.Context, db Queryer, databaseName string) ([]Column, error) {
	ctx, span := startSpan(ctx, "introspection.load_columns", attribute.String("db.name", databaseName))
	defer span.End()

	query, args, err := columnsQuery(databaseName)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var columns []Column
	for rows.Next() {
		var col Column
		if err := rows.Scan(&col.Table, &col.Name, &col.DataType, &col.ColumnType); err != nil {
			recordSpanError(span, err)
			return nil, err
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("introspection.columns", len(columns)))
	return columns, nil
}

// Verify loads the required tables and reports what is missing. A database
// error is returned as is; missing objects yield a *MissingSchemaError.
func Verify(ctx context.Context, db Queryer, databaseName string) (*Report, error) {
	columns, err := LoadColumns(ctx, db, databaseName)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema of %q: %w", databaseName, err)
	}

	found := make(map[string]map[string]Column, len(RequiredColumns))
	for _, col := range columns {
		table := strings.ToLower(col.Table)
		if found[table] == nil {
			found[table] = map[string]Column{}
		}
		found[table][strings.ToLower(col.Name)] = col
	}

	var missing []string
	for _, table := range requiredTables() {
		cols, ok := found[table]
		if !ok {
			missing = append(missing, table)
			continue
		}
		for _, name := range RequiredColumns[table] {
			if _, ok := cols[name]; !ok {
				missing = append(missing, table+"."+name)
			}
		}
	}
	if len(missing) > 0 {
		return nil, &MissingSchemaError{Database: databaseName, Missing: missing}
	}

	report := &Report{Tables: len(found)}
	if rating := found["film"]["rating"]; strings.EqualFold(rating.DataType, "enum") {
		// A malformed definition only costs the log line.
		report.RatingValues, _ = parseEnumValues(rating.ColumnType)
	}
	return report, nil
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer("sakila-graphql/introspection").Start(ctx, name, trace.WithAttributes(attrs...))
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
