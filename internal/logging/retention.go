package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// PruneLogs removes files in dir whose names match pattern and whose
// modification time is older than retentionDays. The active log file is never
// removed. A retentionDays value of 0 disables pruning. It returns the number
// of files removed.
func PruneLogs(logger *slog.Logger, dir, pattern string, retentionDays int, now time.Time) int {
	if retentionDays <= 0 || dir == "" {
		return 0
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	cutoff := now.AddDate(0, 0, -retentionDays)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == LogFileName {
			continue
		}
		if pattern != "" {
			if matched, err := filepath.Match(pattern, entry.Name()); err != nil || !matched {
				continue
			}
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil {
			if logger != nil {
				logger.Warn("log retention remove failed; file remains",
					Args(
						String("path", path),
						Error(err),
						String(FieldEventType, "log_retention_failed"),
						String(FieldErrorHint, "check file permissions and log_dir ownership"),
					)...,
				)
			}
			continue
		}
		removed++
		if logger != nil {
			logger.Info("log pruned", String("path", path), String(FieldEventType, "log_pruned"))
		}
	}
	return removed
}
