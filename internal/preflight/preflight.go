package preflight

import (
	"context"

	"sitekeeper/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// minFreeBytes is the free space below which the data directory check fails.
const minFreeBytes = 64 << 20

// RunAll executes the local checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckFreeSpace("Data volume", cfg.Paths.DataDir, minFreeBytes),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}

	lock := CheckDaemonLock(cfg.LockPath())
	results = append(results, lock)

	// Only probe the API when a daemon is expected to be serving it.
	if lock.Passed && cfg.Paths.APIBind != "" {
		results = append(results, CheckAPI(ctx, cfg.Paths.APIBind, cfg.Paths.APIToken))
	}
	return results
}
