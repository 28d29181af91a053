package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"sitekeeper/internal/logs"
	"sitekeeper/internal/services"
)

const (
	defaultLogLines = 100
	maxLogLines     = 1000
	maxLogWait      = 30 * time.Second
)

// handleLogs pages the daemon log. Without offset it returns the last
// `lines` lines; clients pass the returned offset back to follow.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if s.logPath == "" {
		s.writeError(w, r, services.Wrap(services.ErrConfiguration, "api", "logs", "file logging is disabled (paths.log_dir is empty)", nil))
		return
	}
	query := r.URL.Query()
	q := logs.Query{Offset: -1, Limit: defaultLogLines, Match: strings.TrimSpace(query.Get("match"))}

	if raw := query.Get("offset"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			s.writeError(w, r, services.Wrap(services.ErrInvalidRequest, "api", "logs", "offset must be a non-negative integer", nil))
			return
		}
		q.Offset = n
	}
	if raw := query.Get("lines"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.writeError(w, r, services.Wrap(services.ErrInvalidRequest, "api", "logs", "lines must be a positive integer", nil))
			return
		}
		q.Limit = min(n, maxLogLines)
	}
	if raw := query.Get("wait"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			s.writeError(w, r, services.Wrap(services.ErrInvalidRequest, "api", "logs", "wait must be a duration such as 10s", nil))
			return
		}
		q.Wait = min(d, maxLogWait)
	}

	page, err := logs.Read(r.Context(), s.logPath, q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, page)
}
