// Package testutil provides shared test helpers for setting up journal trees and catalogs.
package testutil

import (
	"os"
	"testing"

	"github.com/starford/journal/internal/catalog"
	"github.com/starford/journal/internal/storage"
)

// TestDB creates a temporary SQLite catalog that is automatically cleaned up.
func TestDB(t *testing.T) *catalog.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "journal-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := catalog.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestJournalRoot creates a temporary journal directory with a storage.Provider.
func TestJournalRoot(t *testing.T) (string, *storage.FS) {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	return store.Root(), store
}

// WriteEntry writes content at rel below the store root.
func WriteEntry(t *testing.T, store storage.Provider, rel, content string) {
	t.Helper()
	if err := store.Write(rel, []byte(content)); err != nil {
		t.Fatal(err)
	}
}
