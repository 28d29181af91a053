package testsupport

import (
	"context"
	"testing"

	"sitekeeper/internal/config"
	"sitekeeper/internal/sites"
)

// MustOpenStore opens a sites.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *sites.Store {
	t.Helper()

	store, err := sites.Open(cfg)
	if err != nil {
		t.Fatalf("sites.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewSite registers a connected site pointing at baseURL and returns it with
// its credentials.
func NewSite(t testing.TB, registry *sites.Registry, baseURL string) (*sites.Site, sites.Credentials) {
	t.Helper()

	site, creds, err := registry.Register(context.Background(), "", baseURL)
	if err != nil {
		t.Fatalf("registry.Register: %v", err)
	}
	return site, creds
}

// NewDisconnectedSite registers a site and immediately disconnects it.
func NewDisconnectedSite(t testing.TB, registry *sites.Registry, baseURL string) *sites.Site {
	t.Helper()

	site, _ := NewSite(t, registry, baseURL)
	site, err := registry.Disconnect(context.Background(), site.ID)
	if err != nil {
		t.Fatalf("registry.Disconnect: %v", err)
	}
	return site
}
