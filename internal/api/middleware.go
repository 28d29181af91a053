package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"sitekeeper/internal/logging"
	"sitekeeper/internal/services"
	"sitekeeper/internal/sites"
)

// HeaderRequestID carries the correlation id in both directions.
const HeaderRequestID = "X-Request-ID"

type siteContextKey struct{}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(HeaderRequestID))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(services.WithRequestID(r.Context(), id)))
	})
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.DebugContext(r.Context(), "api request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", ww.Status()),
			logging.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

// authenticate validates bearer tokens. With no token configured every
// request passes through.
func (s *Server) authenticate(next http.Handler) http.Handler {
	if s.token == "" {
		return next
	}
	expected := []byte(s.token)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		presented, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(presented), expected) != 1 {
			s.writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Code: "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// resolveSite loads {siteID} into the request context.
func (s *Server) resolveSite(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := chi.URLParam(r, "siteID")
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			s.writeError(w, r, services.Wrap(services.ErrInvalidRequest, "api", "resolve site", "site id must be a positive integer", nil))
			return
		}
		site, err := s.svc.Sites.Get(r.Context(), id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		ctx := services.WithSiteID(r.Context(), id)
		ctx = context.WithValue(ctx, siteContextKey{}, site)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func siteFrom(r *http.Request) *sites.Site {
	site, _ := r.Context().Value(siteContextKey{}).(*sites.Site)
	return site
}
