package testsupport

import (
	"path/filepath"
	"testing"

	"sitekeeper/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Agent timeouts are shortened so network failure tests finish quickly.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Paths.APIToken = ""
	cfgVal.Agent.ConnectTimeoutSeconds = 1
	cfgVal.Agent.RequestTimeoutSeconds = 2
	cfgVal.Agent.EnqueueTimeoutSeconds = 2
	cfgVal.Agent.APIPrefix = "/wp-json/sitekeeper/v1"

	builder := &configBuilder{t: t, baseDir: base, cfg: &cfgVal}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithAPIToken sets the bearer token required by the HTTP API.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// WithAPIPrefix overrides the connector path prefix.
func WithAPIPrefix(prefix string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Agent.APIPrefix = prefix
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
