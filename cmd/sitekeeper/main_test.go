package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"sitekeeper/internal/conversion"
	"sitekeeper/internal/logging"
	"sitekeeper/internal/redirects"
	"sitekeeper/internal/testsupport"
)

type cliTestEnv struct {
	env        *testsupport.Env
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	env := testsupport.NewEnv(t)
	env.Config.Polling.InitialIntervalSeconds = 1
	env.Config.Polling.MaxIntervalSeconds = 1

	configPath := filepath.Join(testsupport.BaseDir(env.Config), "config.toml")
	data, err := env.Config.Encode()
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return &cliTestEnv{env: env, configPath: configPath}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func siteArg(id int64) string { return strconv.FormatInt(id, 10) }

func TestCLISiteLifecycle(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"site", "add", env.env.Agent.URL(), "--name", "Blog", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("site add: %v", err)
	}
	var added struct {
		Site struct {
			ID        int64 `json:"id"`
			Connected bool  `json:"connected"`
		} `json:"site"`
		Credentials struct {
			Key    string `json:"key"`
			Secret string `json:"secret"`
		} `json:"credentials"`
	}
	if err := json.Unmarshal([]byte(out), &added); err != nil {
		t.Fatalf("decode site add output %q: %v", out, err)
	}
	if added.Site.ID == 0 || !added.Site.Connected || added.Credentials.Key == "" || added.Credentials.Secret == "" {
		t.Fatalf("unexpected site add result: %+v", added)
	}

	out, _, err = runCLI(t, []string{"site", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("site list: %v", err)
	}
	if !strings.Contains(out, "Blog") || !strings.Contains(out, "yes") {
		t.Fatalf("site list missing row: %q", out)
	}
	if strings.Contains(out, added.Credentials.Secret) {
		t.Fatalf("site list leaked the secret: %q", out)
	}

	if _, _, err := runCLI(t, []string{"site", "disconnect", siteArg(added.Site.ID)}, env.configPath); err != nil {
		t.Fatalf("site disconnect: %v", err)
	}
	out, _, err = runCLI(t, []string{"site", "show", siteArg(added.Site.ID)}, env.configPath)
	if err != nil {
		t.Fatalf("site show: %v", err)
	}
	if !strings.Contains(out, "Connected:  no") {
		t.Fatalf("expected disconnected site, got %q", out)
	}

	if _, _, err := runCLI(t, []string{"site", "remove", siteArg(added.Site.ID)}, env.configPath); err != nil {
		t.Fatalf("site remove: %v", err)
	}
	out, _, err = runCLI(t, []string{"site", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("site list after remove: %v", err)
	}
	if !strings.Contains(out, "No sites registered") {
		t.Fatalf("expected empty list, got %q", out)
	}
}

func TestCLIConvertWaitAndRedirects(t *testing.T) {
	env := setupCLITestEnv(t)
	site := env.env.Connected(t)
	id := siteArg(site.ID)

	if _, _, err := runCLI(t, []string{"convert", "enqueue", id, "101", "102"}, env.configPath); err != nil {
		t.Fatalf("convert enqueue: %v", err)
	}
	if got := env.env.Agent.QueueIDs(); len(got) != 2 {
		t.Fatalf("expected 2 queued ids, got %v", got)
	}

	out, _, err := runCLI(t, []string{"convert", "wait", id, "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("convert wait: %v", err)
	}
	var final conversion.Status
	if err := json.Unmarshal([]byte(out), &final); err != nil {
		t.Fatalf("decode wait output %q: %v", out, err)
	}
	if final.IsProcessing || final.Completed != 2 {
		t.Fatalf("unexpected final status: %+v", final)
	}

	out, _, err = runCLI(t, []string{"redirects", "list", id, "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("redirects list: %v", err)
	}
	var listing redirects.Listing
	if err := json.Unmarshal([]byte(out), &listing); err != nil {
		t.Fatalf("decode redirects %q: %v", out, err)
	}
	if listing.Count != 2 {
		t.Fatalf("expected 2 redirects, got %+v", listing)
	}

	if _, _, err := runCLI(t, []string{"redirects", "clear", id}, env.configPath); err == nil {
		t.Fatal("expected clear without --yes to fail")
	}
	if _, _, err := runCLI(t, []string{"redirects", "clear", id, "--yes"}, env.configPath); err != nil {
		t.Fatalf("redirects clear: %v", err)
	}
	out, _, err = runCLI(t, []string{"redirects", "list", id}, env.configPath)
	if err != nil {
		t.Fatalf("redirects list after clear: %v", err)
	}
	if !strings.Contains(out, "No redirects") {
		t.Fatalf("expected empty redirects, got %q", out)
	}
}

func TestCLIEnqueueOnDisconnectedSiteFails(t *testing.T) {
	env := setupCLITestEnv(t)
	site := env.env.Disconnected(t)

	_, _, err := runCLI(t, []string{"convert", "enqueue", siteArg(site.ID), "5"}, env.configPath)
	if err == nil {
		t.Fatal("expected enqueue on disconnected site to fail")
	}
	if !strings.Contains(strings.ToLower(renderError(err)), "not connected") {
		t.Fatalf("unexpected error message: %q", renderError(err))
	}
	if calls := env.env.Agent.Calls(); calls != 0 {
		t.Fatalf("expected no connector calls, got %d", calls)
	}
}

func TestCLIStatusDegradesWhenUnreachable(t *testing.T) {
	env := setupCLITestEnv(t)
	site := env.env.Unreachable(t)

	out, _, err := runCLI(t, []string{"convert", "status", siteArg(site.ID), "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("convert status should degrade, got error: %v", err)
	}
	var status conversion.Status
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("decode status %q: %v", out, err)
	}
	if status != (conversion.Status{}) {
		t.Fatalf("expected zero status, got %+v", status)
	}
}

func TestCLISettingsSetAndShow(t *testing.T) {
	env := setupCLITestEnv(t)
	site := env.env.Disconnected(t)
	id := siteArg(site.ID)

	if _, _, err := runCLI(t, []string{"settings", "set", id, "autoConvertToWebp=true"}, env.configPath); err != nil {
		t.Fatalf("settings set: %v", err)
	}
	out, _, err := runCLI(t, []string{"settings", "show", id}, env.configPath)
	if err != nil {
		t.Fatalf("settings show: %v", err)
	}
	var current map[string]any
	if err := json.Unmarshal([]byte(out), &current); err != nil {
		t.Fatalf("decode settings %q: %v", out, err)
	}
	if current["autoConvertToWebp"] != true {
		t.Fatalf("expected autoConvertToWebp=true, got %v", current)
	}

	if _, _, err := runCLI(t, []string{"settings", "set", id, "novalue"}, env.configPath); err == nil {
		t.Fatal("expected malformed pair to fail")
	}
}

func TestCLIConfigInit(t *testing.T) {
	target := filepath.Join(t.TempDir(), "sitekeeper", "config.toml")
	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Fatalf("unexpected init output: %q", out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config missing: %v", err)
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected second init without --overwrite to fail")
	}
}

func TestCLIUnknownSiteReportsNotFound(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"media", "stats", "999"}, env.configPath)
	if err == nil {
		t.Fatal("expected unknown site to fail")
	}
}

func TestCLITestNotifyWithoutTopic(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"test-notify"}, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	if !strings.Contains(out, "Notifications disabled") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestCLILogsFiltersBySite(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.MkdirAll(env.env.Config.Paths.LogDir, 0o755); err != nil {
		t.Fatalf("mkdir logs: %v", err)
	}
	content := "INFO queued site_id=1\nINFO queued site_id=2\nWARN degraded site_id=1\n"
	if err := os.WriteFile(logging.FilePath(env.env.Config), []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, _, err := runCLI(t, []string{"logs", "--site", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if strings.Contains(out, "site_id=2") || strings.Count(out, "site_id=1") != 2 {
		t.Fatalf("unexpected filtered output: %q", out)
	}

	out, _, err = runCLI(t, []string{"logs", "-n", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("logs -n 1: %v", err)
	}
	if strings.TrimSpace(out) != "WARN degraded site_id=1" {
		t.Fatalf("unexpected tail output: %q", out)
	}
}
