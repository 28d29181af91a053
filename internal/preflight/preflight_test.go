package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"sitekeeper/internal/services"
	"sitekeeper/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if result := CheckFreeSpace("disk", dir, 1); !result.Passed {
		t.Fatalf("expected pass with 1 byte minimum, got: %s", result.Detail)
	}
	if result := CheckFreeSpace("disk", dir, ^uint64(0)); result.Passed {
		t.Fatal("expected failure with impossible minimum")
	}
}

func TestCheckDaemonLock_NotRunning(t *testing.T) {
	result := CheckDaemonLock(filepath.Join(t.TempDir(), "sitekeeper.lock"))
	if result.Passed || result.Detail != "Not running" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestCheckAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if result := CheckAPI(context.Background(), srv.URL, "good"); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if result := CheckAPI(context.Background(), srv.URL, "bad"); result.Passed {
		t.Fatal("expected failure for bad token")
	}
}

func TestCheckSite(t *testing.T) {
	env := testsupport.NewEnv(t)
	ctx := context.Background()

	connected := env.Connected(t)
	if probe := CheckSite(ctx, env.Client, connected); !probe.Reachable {
		t.Fatalf("expected reachable, got %+v", probe)
	}

	calls := env.Agent.Calls()
	other := testsupport.NewFakeAgent(t, env.Config.Agent.APIPrefix)
	disconnected := testsupport.NewDisconnectedSite(t, env.Registry, other.URL())
	probe := CheckSite(ctx, env.Client, disconnected)
	if probe.Reachable || probe.Kind != services.KindSiteNotConnected || other.Calls() != 0 || env.Agent.Calls() != calls {
		t.Fatalf("unexpected disconnected probe %+v", probe)
	}

	unreachable := env.Unreachable(t)
	probe = CheckSite(ctx, env.Client, unreachable)
	if probe.Reachable || probe.Kind != services.KindNetworkUnavailable {
		t.Fatalf("unexpected unreachable probe %+v", probe)
	}
}
