// Package sakiladb opens the Sakila sample database for integration tests.
// Tests using it carry the integration build tag and skip unless
// SAKILA_TEST_DSN points at a loaded Sakila schema.
package sakiladb

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
)

// EnvDSN names the variable holding the test database DSN.
const EnvDSN = "SAKILA_TEST_DSN"

// Open connects to the Sakila test database, or skips the test when none is
// configured. The connection is closed when the test ends.
func Open(t *testing.T) (*sql.DB, string) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	dsn := os.Getenv(EnvDSN)
	if dsn == "" {
		t.Skipf("%s not set", EnvDSN)
	}

	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		t.Fatalf("invalid %s: %v", EnvDSN, err)
	}
	cfg.ParseTime = true
	if cfg.DBName == "" {
		cfg.DBName = "sakila"
	}

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
	t.Cleanup(func() { _ = db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("test database unreachable: %v", err)
	}
	return db, cfg.DBName
}
