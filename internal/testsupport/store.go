package testsupport

import (
	"context"
	"testing"

	"kinescope/internal/catalog"
	"kinescope/internal/config"
)

// MustOpenCatalog opens a catalog.Store for tests and registers cleanup.
func MustOpenCatalog(t testing.TB, cfg *config.Config) *catalog.Store {
	t.Helper()

	store, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// InsertRecording adds a finalized recording entry for tests.
func InsertRecording(t testing.TB, store *catalog.Store, entry *catalog.Entry) *catalog.Entry {
	t.Helper()

	inserted, err := store.Insert(context.Background(), entry)
	if err != nil {
		t.Fatalf("store.Insert: %v", err)
	}
	return inserted
}
