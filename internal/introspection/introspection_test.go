package introspection

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var columnRowNames = []string{"TABLE_NAME", "COLUMN_NAME", "DATA_TYPE", "COLUMN_TYPE"}

func expectColumnsQuery(t *testing.T, mock sqlmock.Sqlmock, databaseName string) *sqlmock.ExpectedQuery {
	t.Helper()
	query, args, err := columnsQuery(databaseName)
	require.NoError(t, err)

	values := make([]driver.Value, len(args))
	for i, arg := range args {
		values[i] = arg
	}
	return mock.ExpectQuery(query).WithArgs(values...)
}

func sakilaRows(skip func(table, column string) bool) *sqlmock.Rows {
	rows := sqlmock.NewRows(columnRowNames)
	for _, table := range requiredTables() {
		for _, column := range RequiredColumns[table] {
			if skip != nil && skip(table, column) {
				continue
			}
			dataType, columnType := "smallint", "smallint unsigned"
			if table == "film" && column == "rating" {
				dataType, columnType = "enum", "enum('G','PG','PG-13','R','NC-17')"
			}
			rows.AddRow(table, column, dataType, columnType)
		}
	}
	return rows
}

func newMock(t *testing.T) (Queryer, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestColumnsQuery(t *testing.T) {
	query, args, err := columnsQuery("sakila")
	require.NoError(t, err)
	assert.Equal(t, "SELECT TABLE_NAME, COLUMN_NAME, DATA_TYPE, COLUMN_TYPE FROM INFORMATION_SCHEMA.COLUMNS "+
		"WHERE TABLE_NAME IN (?,?,?,?,?,?,?) AND TABLE_SCHEMA = ? ORDER BY TABLE_NAME, ORDINAL_POSITION", query)
	assert.Equal(t, []any{"actor", "category", "film", "film_actor", "film_category", "inventory", "rental", "sakila"}, args)
}

func TestVerify_CompleteSchema(t *testing.T) {
	db, mock := newMock(t)
	expectColumnsQuery(t, mock, "sakila").WillReturnRows(sakilaRows(nil))

	report, err := Verify(context.Background(), db, "sakila")
	require.NoError(t, err)
	assert.Equal(t, len(RequiredColumns), report.Tables)
	assert.Equal(t, []string{"G", "PG", "PG-13", "R", "NC-17"}, report.RatingValues)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVerify_ReportsMissingObjects(t *testing.T) {
	db, mock := newMock(t)
	expectColumnsQuery(t, mock, "sakila").WillReturnRows(sakilaRows(func(table, column string) bool {
		return table == "rental" || (table == "film" && column == "rating")
	}))

	_, err := Verify(context.Background(), db, "sakila")
	var missingErr *MissingSchemaError
	require.ErrorAs(t, err, &missingErr)
	assert.Equal(t, []string{"film.rating", "rental"}, missingErr.Missing)
	assert.Contains(t, err.Error(), `database "sakila"`)
}

func TestVerify_QueryFailure(t *testing.T) {
	db, mock := newMock(t)
	cause := errors.New("access denied")
	expectColumnsQuery(t, mock, "sakila").WillReturnError(cause)

	_, err := Verify(context.Background(), db, "sakila")
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	var missingErr *MissingSchemaError
	assert.False(t, errors.As(err, &missingErr))
}

func TestVerify_RatingNotEnum(t *testing.T) {
	db, mock := newMock(t)
	rows := sqlmock.NewRows(columnRowNames)
	for _, table := range requiredTables() {
		for _, column := range RequiredColumns[table] {
			rows.AddRow(table, column, "varchar", "varchar(10)")
		}
	}
	expectColumnsQuery(t, mock, "sakila").WillReturnRows(rows)

	report, err := Verify(context.Background(), db, "sakila")
	require.NoError(t, err)
	assert.Nil(t, report.RatingValues)
}
