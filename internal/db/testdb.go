package db

import (
	"database/sql"
	"path/filepath"
	"testing"
)

// NewTestDB creates a fresh SQLite database with the schema applied. The
// database lives in a temporary file so that every pooled connection sees
// the same data.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "test.sqlite3"))
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}

	if err := EnsureSchema(db); err != nil {
		db.Close()
		t.Fatalf("creating test database schema: %v", err)
	}

	t.Cleanup(func() { db.Close() })

	return db
}
