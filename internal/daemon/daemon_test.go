package daemon_test

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"sitekeeper/internal/daemon"
	"sitekeeper/internal/logging"
	"sitekeeper/internal/testsupport"
)

func newDaemon(t *testing.T) (*daemon.Daemon, *daemon.Components) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	components, err := daemon.OpenComponents(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("OpenComponents: %v", err)
	}
	d, err := daemon.New(cfg, components, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})
	return d, components
}

func TestDaemonStartStop(t *testing.T) {
	d, components := newDaemon(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, _, err := components.Sites.Register(ctx, "blog", "https://blog.example.test"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := d.Status(ctx)
	if !status.Running || status.Sites != 1 || status.Connected != 1 || status.APIAddress == "" {
		t.Fatalf("unexpected status %+v", status)
	}

	resp, err := http.Get("http://" + status.APIAddress + "/api/health")
	if err != nil {
		t.Fatalf("health request: %v", err)
	}
	var body map[string]string
	_ = json.NewDecoder(resp.Body).Decode(&body)
	resp.Body.Close()
	if body["status"] != "ok" {
		t.Fatalf("unexpected health body %v", body)
	}

	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	time.Sleep(50 * time.Millisecond)
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestSecondDaemonIsLockedOut(t *testing.T) {
	first, components := newDaemon(t)
	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	second, err := daemon.New(components.Config, components, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := second.Start(ctx); err == nil {
		second.Stop()
		t.Fatal("expected lock contention error")
	}

	held, err := daemon.LockHeld(components.Config.LockPath())
	if err != nil || !held {
		t.Fatalf("expected lock held, got %v %v", held, err)
	}
	first.Stop()
	held, err = daemon.LockHeld(components.Config.LockPath())
	if err != nil || held {
		t.Fatalf("expected lock free after stop, got %v %v", held, err)
	}
}

func TestStartPrunesExpiredLogs(t *testing.T) {
	d, components := newDaemon(t)
	cfg := components.Config
	if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	old := filepath.Join(cfg.Paths.LogDir, "sitekeeper-20200101.log")
	if err := os.WriteFile(old, []byte("old\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	stale := time.Now().AddDate(0, 0, -(cfg.Logging.RetentionDays + 1))
	if err := os.Chtimes(old, stale, stale); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("expected expired log removed, stat err=%v", err)
	}
}
