package testsupport

import (
	"testing"

	"sitekeeper/internal/agent"
	"sitekeeper/internal/config"
	"sitekeeper/internal/logging"
	"sitekeeper/internal/settings"
	"sitekeeper/internal/sites"
)

// Env bundles the collaborators most component tests need: a config rooted in
// a temp dir, an open store, a registry, the settings store, a real agent
// client, and a fake connector.
type Env struct {
	Config   *config.Config
	Store    *sites.Store
	Registry *sites.Registry
	Settings *settings.Store
	Client   *agent.Client
	Agent    *FakeAgent
}

// NewEnv builds an Env. The fake connector answers under the configured
// prefix but trusts no credentials until Connected is used.
func NewEnv(t testing.TB, opts ...ConfigOption) *Env {
	t.Helper()

	cfg := NewConfig(t, opts...)
	store := MustOpenStore(t, cfg)
	logger := logging.NewNop()
	return &Env{
		Config:   cfg,
		Store:    store,
		Registry: sites.NewRegistry(store, logger),
		Settings: settings.NewStore(store, logger),
		Client:   agent.NewClient(agent.OptionsFromConfig(cfg), agent.WithLogger(logger)),
		Agent:    NewFakeAgent(t, cfg.Agent.APIPrefix),
	}
}

// Connected registers a site on the fake connector and authorizes its
// credentials.
func (e *Env) Connected(t testing.TB) *sites.Site {
	t.Helper()

	site, creds := NewSite(t, e.Registry, e.Agent.URL())
	e.Agent.Authorize(creds)
	return site
}

// Disconnected registers a site on the fake connector without credentials.
func (e *Env) Disconnected(t testing.TB) *sites.Site {
	t.Helper()

	return NewDisconnectedSite(t, e.Registry, e.Agent.URL())
}

// Unreachable registers a connected site whose base URL refuses connections.
func (e *Env) Unreachable(t testing.TB) *sites.Site {
	t.Helper()

	site, _ := NewSite(t, e.Registry, UnreachableURL(t))
	return site
}
