package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"sitekeeper/internal/media"
	"sitekeeper/internal/services"
)

func (s *Server) handleMediaStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Media.Stats(r.Context(), siteFrom(r).ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleMediaList(w http.ResponseWriter, r *http.Request) {
	perPage := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("per_page")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.writeError(w, r, services.Wrap(services.ErrInvalidRequest, "api", "media list", "per_page must be a positive integer", nil))
			return
		}
		perPage = n
	}
	items, err := s.svc.Media.List(r.Context(), siteFrom(r).ID, perPage)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, MediaListResponse[media.Item]{Items: items, Count: len(items)})
}

func (s *Server) handleNonWebP(w http.ResponseWriter, r *http.Request) {
	items, err := s.svc.Media.NonWebP(r.Context(), siteFrom(r).ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, MediaListResponse[media.Item]{Items: items, Count: len(items)})
}

func (s *Server) handleAIOptimize(w http.ResponseWriter, r *http.Request) {
	var req OptimizeRequest
	if !s.decode(w, r, &req) {
		return
	}
	ack, err := s.svc.Media.AIOptimize(r.Context(), siteFrom(r).ID, chi.URLParam(r, "mediaID"), media.OptimizeOptions{
		ApplyFilename: req.ApplyFilename,
		ApplyAltText:  req.ApplyAltText,
		PageContext:   req.PageContext,
		Language:      req.Language,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeRaw(w, http.StatusOK, ack)
}
