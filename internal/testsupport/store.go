package testsupport

import (
	"testing"

	"scenecast/internal/config"
	"scenecast/internal/scenes"
)

// MustOpenStore opens the scene store for a test config and registers
// cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *scenes.Store {
	t.Helper()
	store, err := scenes.Open(cfg)
	if err != nil {
		t.Fatalf("open scene store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close scene store: %v", err)
		}
	})
	return store
}
