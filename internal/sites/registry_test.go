package sites_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"sitekeeper/internal/services"
	"sitekeeper/internal/sites"
	"sitekeeper/internal/testsupport"
)

func newRegistry(t *testing.T) *sites.Registry {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	return sites.NewRegistry(testsupport.MustOpenStore(t, cfg), nil)
}

func TestIsConnectedRequiresBothCredentials(t *testing.T) {
	cases := []struct {
		name string
		site *sites.Site
		want bool
	}{
		{"nil", nil, false},
		{"both", &sites.Site{Key: "k1", Secret: "s1"}, true},
		{"key only", &sites.Site{Key: "k1"}, false},
		{"secret only", &sites.Site{Secret: "s1"}, false},
		{"blank", &sites.Site{Key: "  ", Secret: "s1"}, false},
	}
	for _, tc := range cases {
		if got := sites.IsConnected(tc.site); got != tc.want {
			t.Fatalf("%s: IsConnected = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestRegisterIssuesCredentialsAndNormalizesURL(t *testing.T) {
	registry := newRegistry(t)
	ctx := context.Background()

	site, creds, err := registry.Register(ctx, "", "Example.COM/blog/")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if site.BaseURL != "https://example.com/blog" {
		t.Fatalf("unexpected base url %q", site.BaseURL)
	}
	if site.Name != "example.com" {
		t.Fatalf("expected host as default name, got %q", site.Name)
	}
	if creds.Key == "" || creds.Secret == "" || site.Key != creds.Key || site.Secret != creds.Secret {
		t.Fatalf("expected stored credentials to match issued ones: %+v %+v", site, creds)
	}
	if connected, err := registry.IsConnected(ctx, site.ID); err != nil || !connected {
		t.Fatalf("expected connected site, got %v %v", connected, err)
	}

	if _, _, err := registry.Register(ctx, "dup", "https://example.com/blog"); !errors.Is(err, services.ErrInvalidRequest) {
		t.Fatalf("expected duplicate base url to be rejected, got %v", err)
	}
}

func TestNormalizeBaseURLRejectsBadInput(t *testing.T) {
	for _, raw := range []string{"", "ftp://example.com", "https://"} {
		if _, err := sites.NormalizeBaseURL(raw); !errors.Is(err, services.ErrInvalidRequest) {
			t.Fatalf("NormalizeBaseURL(%q) = %v, want invalid request", raw, err)
		}
	}
}

func TestDisconnectClearsCredentialsAndVersions(t *testing.T) {
	registry := newRegistry(t)
	ctx := context.Background()
	site, _ := testsupport.NewSite(t, registry, "https://shop.example")

	if _, err := registry.RecordVersions(ctx, site.ID, "2.1.0", "1.4.2"); err != nil {
		t.Fatalf("RecordVersions: %v", err)
	}
	site, err := registry.Disconnect(ctx, site.ID)
	if err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if site.Key != "" || site.Secret != "" || site.PluginVersion != "" || site.AgentVersion != "" {
		t.Fatalf("expected hard reset, got %+v", site)
	}
	if sites.IsConnected(site) {
		t.Fatal("expected disconnected site")
	}
	if _, err := registry.RecordVersions(ctx, site.ID, "2.1.0", "1.4.2"); !errors.Is(err, services.ErrSiteNotConnected) {
		t.Fatalf("expected not connected error, got %v", err)
	}
}

func TestReconnectIssuesFreshCredentials(t *testing.T) {
	registry := newRegistry(t)
	ctx := context.Background()
	site, first := testsupport.NewSite(t, registry, "https://blog.example")

	if _, err := registry.Disconnect(ctx, site.ID); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	site, second, err := registry.Connect(ctx, site.ID)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if second.Key == first.Key || second.Secret == first.Secret {
		t.Fatalf("expected new credentials, got %+v after %+v", second, first)
	}
	if site.Key != second.Key || site.Secret != second.Secret {
		t.Fatalf("stored credentials do not match issued ones")
	}
}

func TestDisconnectUnknownSite(t *testing.T) {
	registry := newRegistry(t)
	if _, err := registry.Disconnect(context.Background(), 999); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestConcurrentReadsNeverSeeHalfClearedPair(t *testing.T) {
	registry := newRegistry(t)
	ctx := context.Background()
	site, _ := testsupport.NewSite(t, registry, "https://race.example")

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := registry.Get(ctx, site.ID)
			if err != nil {
				errs <- err
				return
			}
			if (got.Key == "") != (got.Secret == "") {
				errs <- errors.New("observed half-cleared credential pair")
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := registry.Disconnect(ctx, site.ID); err != nil {
			errs <- err
		}
	}()
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}
