package api

import (
	"io"
	"net/http"

	"sitekeeper/internal/services"
	"sitekeeper/internal/settings"
)

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	current, err := s.svc.Settings.Get(r.Context(), siteFrom(r).ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, current)
}

// handleUpdateSettings merges a partial patch. Unknown or mistyped fields are
// ignored rather than rejected.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		s.writeError(w, r, services.Wrap(services.ErrInvalidRequest, "api", "update settings", "request body too large or unreadable", err))
		return
	}
	merged, err := s.svc.Settings.Update(r.Context(), siteFrom(r).ID, settings.DecodePatch(body))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, merged)
}
