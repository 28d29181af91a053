package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"sitekeeper/internal/agent"
	"sitekeeper/internal/conversion"
)

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req EnqueueRequest
	if !s.decode(w, r, &req) {
		return
	}
	ack, err := s.svc.Coordinator.Enqueue(r.Context(), siteFrom(r).ID, idStrings(req.IDs), conversion.Options{
		KeepBackups: req.KeepBackups,
		FlushCache:  req.FlushCache,
		ReplaceURLs: req.ReplaceURLs,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeRaw(w, http.StatusAccepted, ack)
}

func (s *Server) handleQueueStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.svc.Coordinator.Status(r.Context(), siteFrom(r).ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleRevert(w http.ResponseWriter, r *http.Request) {
	result, err := s.svc.Coordinator.Revert(r.Context(), siteFrom(r).ID, chi.URLParam(r, "mediaID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	var req UploadRequest
	if !s.decode(w, r, &req) {
		return
	}
	result, err := s.svc.Coordinator.HandleUpload(r.Context(), siteFrom(r).ID, idStrings(req.IDs))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListRedirects(w http.ResponseWriter, r *http.Request) {
	listing, err := s.svc.Redirects.List(r.Context(), siteFrom(r).ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, listing)
}

func (s *Server) handleClearRedirects(w http.ResponseWriter, r *http.Request) {
	ack, err := s.svc.Redirects.Clear(r.Context(), siteFrom(r).ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeRaw(w, http.StatusOK, ack)
}

func idStrings(ids []agent.MediaID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
