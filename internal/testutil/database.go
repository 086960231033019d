package testutil

import (
	"path/filepath"
	"testing"

	"catalog-go/internal/catalog"
	"catalog-go/internal/database"
)

// NewTestDatabase creates a new in-memory SQLite database with all
// migrations applied. The database is closed when the test completes.
func NewTestDatabase(t *testing.T) *database.SQLiteDatabase {
	t.Helper()
	return openMigrated(t, database.MemoryPath)
}

// NewTestFileDatabase creates a migrated SQLite database file in a temporary
// directory. Unlike the in-memory database it has separate reader and writer
// pools, so it can be used to exercise concurrent access.
func NewTestFileDatabase(t *testing.T) *database.SQLiteDatabase {
	t.Helper()
	return openMigrated(t, filepath.Join(t.TempDir(), "catalog.db"))
}

func openMigrated(t *testing.T, path string) *database.SQLiteDatabase {
	t.Helper()

	db, err := database.NewSQLiteDatabase(path)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := db.MigrateUp(); err != nil {
		db.Close()
		t.Fatalf("failed to migrate database: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// NewTestService creates a Service over store with a fixed clock, sequential
// ids and no logging. The clock is returned so tests can advance it.
func NewTestService(store catalog.Store, opts catalog.Options) (*catalog.Service, *StubClock) {
	clock := FixedClock()
	return catalog.NewService(store, catalog.NewNopLogger(), clock, NewStubIDGenerator(), opts), clock
}
