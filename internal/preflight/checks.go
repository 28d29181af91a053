package preflight

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"sitekeeper/internal/daemon"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace verifies that the filesystem holding path has at least min
// bytes available to unprivileged users.
func CheckFreeSpace(name, path string, min uint64) Result {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("statfs %s: %v", path, err)}
	}
	free := st.Bavail * uint64(st.Bsize)
	detail := fmt.Sprintf("%s free", humanize.IBytes(free))
	if free < min {
		return Result{Name: name, Detail: fmt.Sprintf("%s (need %s)", detail, humanize.IBytes(min))}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckDaemonLock reports whether a serve process holds the lock.
func CheckDaemonLock(path string) Result {
	const name = "Daemon"
	held, err := daemon.LockHeld(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("lock probe failed (%v)", err)}
	}
	if !held {
		return Result{Name: name, Detail: "Not running"}
	}
	return Result{Name: name, Passed: true, Detail: "Running"}
}

// CheckAPI verifies the daemon's HTTP API answers health and accepts the
// configured token.
func CheckAPI(ctx context.Context, bind, token string) Result {
	const name = "HTTP API"

	base := strings.TrimSpace(bind)
	if base == "" {
		return Result{Name: name, Detail: "missing bind address"}
	}
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, base+"/api/sites", nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("request failed (%v)", err)}
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("unreachable (%v)", err)}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return Result{Name: name, Passed: true, Detail: "Reachable at " + strings.TrimPrefix(base, "http://")}
	case http.StatusUnauthorized:
		return Result{Name: name, Detail: "auth failed (check api_token)"}
	default:
		return Result{Name: name, Detail: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}
}
