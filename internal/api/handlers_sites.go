package api

import (
	"net/http"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListSites(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Sites.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	views := make([]SiteView, 0, len(list))
	for _, site := range list {
		views = append(views, FromSite(site))
	}
	s.writeJSON(w, http.StatusOK, SiteListResponse{Sites: views})
}

func (s *Server) handleRegisterSite(w http.ResponseWriter, r *http.Request) {
	var req RegisterSiteRequest
	if !s.decode(w, r, &req) {
		return
	}
	site, creds, err := s.svc.Sites.Register(r.Context(), req.Name, req.BaseURL)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, SiteCredentialsResponse{Site: FromSite(site), Credentials: creds})
}

func (s *Server) handleShowSite(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, FromSite(siteFrom(r)))
}

func (s *Server) handleRemoveSite(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Sites.Remove(r.Context(), siteFrom(r).ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleConnectSite(w http.ResponseWriter, r *http.Request) {
	site, creds, err := s.svc.Sites.Connect(r.Context(), siteFrom(r).ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, SiteCredentialsResponse{Site: FromSite(site), Credentials: creds})
}

func (s *Server) handleDisconnectSite(w http.ResponseWriter, r *http.Request) {
	site, err := s.svc.Sites.Disconnect(r.Context(), siteFrom(r).ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, FromSite(site))
}

func (s *Server) handleRecordVersions(w http.ResponseWriter, r *http.Request) {
	var req VersionsRequest
	if !s.decode(w, r, &req) {
		return
	}
	site, err := s.svc.Sites.RecordVersions(r.Context(), siteFrom(r).ID, req.PluginVersion, req.AgentVersion)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, FromSite(site))
}
