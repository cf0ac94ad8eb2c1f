// Package testing holds helpers shared by package tests: migrated in-memory
// databases and the Seefeel discography fixture.
package testing

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/discograph/db"
	"github.com/teranos/discograph/storage"
)

// CreateTestDB creates a migrated in-memory SQLite test database.
// Automatically registers cleanup via t.Cleanup().
func CreateTestDB(t *testing.T) *sql.DB {
	t.Helper()

	sqlDB, err := db.OpenWithMigrations(db.MemoryPath, nil)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	t.Cleanup(func() {
		sqlDB.Close()
	})

	return sqlDB
}

// CreateTestStore returns a SQLStore over a fresh test database.
func CreateTestStore(t *testing.T) *storage.SQLStore {
	t.Helper()
	return storage.NewSQLStore(CreateTestDB(t), zaptest.NewLogger(t).Sugar())
}
