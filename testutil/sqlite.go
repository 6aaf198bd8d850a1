package testutil

import (
	"path/filepath"
	"testing"

	"github.com/ldenis/travel-logbook/internal/store"
)

// NewSQLiteStore opens a store.SQLiteStore backed by a file in a fresh
// temporary directory, so each test starts from an empty database.
// The store is closed automatically when the test finishes.
func NewSQLiteStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	path := filepath.Join(t.TempDir(), "records.db")
	s, err := store.OpenSQLite(path)
	if err != nil {
		t.Fatalf("testutil.NewSQLiteStore: open %s: %v", path, err)
	}

	t.Cleanup(func() { s.Close() })
	return s
}
