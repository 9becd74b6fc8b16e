package testsupport

import (
	"testing"

	"narrativ/internal/boardstore"
	"narrativ/internal/config"
)

// MustOpenStore opens a boardstore.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config, opts ...boardstore.Option) *boardstore.Store {
	t.Helper()

	store, err := boardstore.Open(cfg, opts...)
	if err != nil {
		t.Fatalf("open board store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
