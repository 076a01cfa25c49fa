package testsupport

import (
	"context"
	"testing"
	"time"

	"vidtrace/internal/config"
	"vidtrace/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

// InsertAsset writes an asset with the given location and metadata.
func InsertAsset(t testing.TB, st *store.Store, uri, name string, size, durationMs int64) *store.MediaAsset {
	t.Helper()

	now := time.Now().UTC()
	asset := &store.MediaAsset{
		CurrentURI:  uri,
		DisplayName: name,
		SizeBytes:   size,
		DurationMs:  durationMs,
		FirstSeenAt: now,
		LastSeenAt:  now,
		LinkStatus:  store.LinkNew,
	}
	if err := st.Assets().Insert(context.Background(), asset); err != nil {
		t.Fatalf("insert asset: %v", err)
	}
	return asset
}
