package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"sitekeeper/internal/config"
	"sitekeeper/internal/conversion"
	"sitekeeper/internal/logging"
	"sitekeeper/internal/media"
	"sitekeeper/internal/redirects"
	"sitekeeper/internal/settings"
	"sitekeeper/internal/sites"
)

// Services are the components the API exposes.
type Services struct {
	Sites       *sites.Registry
	Settings    *settings.Store
	Coordinator *conversion.Coordinator
	Redirects   *redirects.Registry
	Media       *media.Service
}

// Server is the HTTP API.
type Server struct {
	bind     string
	token    string
	logPath  string
	svc      Services
	logger   *slog.Logger
	validate *validator.Validate
	router   chi.Router

	listener net.Listener
	server   *http.Server
}

const shutdownTimeout = 5 * time.Second

// NewServer builds the router. It does not listen until Start.
func NewServer(cfg *config.Config, svc Services, logger *slog.Logger) *Server {
	s := &Server{
		bind:     strings.TrimSpace(cfg.Paths.APIBind),
		token:    cfg.Paths.APIToken,
		logPath:  logging.FilePath(cfg),
		svc:      svc,
		logger:   logging.NewComponentLogger(logger, "api"),
		validate: newValidator(),
	}
	s.router = s.routes()
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Enqueue and clear wait on the connector.
		WriteTimeout: time.Duration(cfg.Agent.EnqueueTimeoutSeconds+15) * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestID)
	r.Use(s.accessLog)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Get("/logs", s.handleLogs)

			r.Get("/sites", s.handleListSites)
			r.Post("/sites", s.handleRegisterSite)

			r.Route("/sites/{siteID}", func(r chi.Router) {
				r.Use(s.resolveSite)

				r.Get("/", s.handleShowSite)
				r.Delete("/", s.handleRemoveSite)
				r.Post("/connect", s.handleConnectSite)
				r.Post("/disconnect", s.handleDisconnectSite)
				r.Put("/versions", s.handleRecordVersions)

				r.Get("/media/stats", s.handleMediaStats)
				r.Get("/media", s.handleMediaList)
				r.Get("/media/non-webp", s.handleNonWebP)
				r.Post("/media/{mediaID}/ai-optimize", s.handleAIOptimize)

				r.Post("/conversions", s.handleEnqueue)
				r.Get("/conversions/status", s.handleQueueStatus)
				r.Post("/conversions/{mediaID}/revert", s.handleRevert)
				r.Post("/uploads", s.handleUpload)

				r.Get("/redirects", s.handleListRedirects)
				r.Delete("/redirects", s.handleClearRedirects)

				r.Get("/settings", s.handleGetSettings)
				r.Patch("/settings", s.handleUpdateSettings)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "route not found", Code: "not_found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed", Code: "method_not_allowed"})
	})
	return r
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start listens on the configured bind address and serves until ctx is done
// or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	if s.bind == "" {
		return errors.New("api bind address is empty")
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening",
		logging.String("address", listener.Addr().String()),
		logging.Bool("auth", s.token != ""),
	)
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}
