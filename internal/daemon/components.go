package daemon

import (
	"fmt"
	"log/slog"

	"sitekeeper/internal/agent"
	"sitekeeper/internal/api"
	"sitekeeper/internal/config"
	"sitekeeper/internal/conversion"
	"sitekeeper/internal/media"
	"sitekeeper/internal/notifications"
	"sitekeeper/internal/redirects"
	"sitekeeper/internal/settings"
	"sitekeeper/internal/sites"
)

// Components is the wired application graph shared by the daemon and the CLI.
type Components struct {
	Config      *config.Config
	Store       *sites.Store
	Client      *agent.Client
	Sites       *sites.Registry
	Settings    *settings.Store
	Coordinator *conversion.Coordinator
	Redirects   *redirects.Registry
	Media       *media.Service
	Notifier    notifications.Service
}

// OpenComponents opens the site store and builds every component on top of
// it. Callers must Close the result.
func OpenComponents(cfg *config.Config, logger *slog.Logger) (*Components, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	store, err := sites.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open site store: %w", err)
	}
	return NewComponents(cfg, store, logger), nil
}

// NewComponents wires components over an already open store.
func NewComponents(cfg *config.Config, store *sites.Store, logger *slog.Logger) *Components {
	client := agent.NewClient(agent.OptionsFromConfig(cfg), agent.WithLogger(logger))
	registry := sites.NewRegistry(store, logger)
	toolSettings := settings.NewStore(store, logger)
	notifier := notifications.NewService(cfg)
	coordinator := conversion.NewCoordinator(registry, client, toolSettings, cfg.Agent.EnqueueTimeout(), logger)
	coordinator.SetNotifier(notifier)
	return &Components{
		Config:      cfg,
		Store:       store,
		Client:      client,
		Sites:       registry,
		Settings:    toolSettings,
		Coordinator: coordinator,
		Redirects:   redirects.NewRegistry(registry, client, logger),
		Media:       media.NewService(cfg, registry, client, logger),
		Notifier:    notifier,
	}
}

// APIServices adapts the components for the HTTP API.
func (c *Components) APIServices() api.Services {
	return api.Services{
		Sites:       c.Sites,
		Settings:    c.Settings,
		Coordinator: c.Coordinator,
		Redirects:   c.Redirects,
		Media:       c.Media,
	}
}

// Close releases the store.
func (c *Components) Close() error {
	if c == nil || c.Store == nil {
		return nil
	}
	return c.Store.Close()
}
