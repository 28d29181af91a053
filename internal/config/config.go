package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Agent contains settings for requests sent to site connectors.
type Agent struct {
	// APIPrefix is appended to a site's base URL before the logical path.
	APIPrefix             string `toml:"api_prefix"`
	ConnectTimeoutSeconds int    `toml:"connect_timeout_seconds"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	// EnqueueTimeoutSeconds bounds bulk conversion enqueue calls.
	EnqueueTimeoutSeconds int    `toml:"enqueue_timeout_seconds"`
	TokenTTLSeconds       int    `toml:"token_ttl_seconds"`
	UserAgent             string `toml:"user_agent"`
	MaxResponseBytes      int64  `toml:"max_response_bytes"`
}

// Polling controls the conversion status wait loop.
type Polling struct {
	InitialIntervalSeconds int `toml:"initial_interval_seconds"`
	MaxIntervalSeconds     int `toml:"max_interval_seconds"`
	TimeoutSeconds         int `toml:"timeout_seconds"`
}

// Media contains defaults for media library listings.
type Media struct {
	DefaultPerPage int `toml:"default_per_page"`
	MaxPerPage     int `toml:"max_per_page"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Notifications configures ntfy delivery of conversion events.
type Notifications struct {
	// NtfyTopic is the full topic URL; empty disables notifications.
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Config encapsulates all configuration values for sitekeeper.
type Config struct {
	Paths   Paths   `toml:"paths"`
	Agent   Agent   `toml:"agent"`
	Polling Polling `toml:"polling"`
	Media   Media   `toml:"media"`
	Logging Logging `toml:"logging"`

	Notifications Notifications `toml:"notifications"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return ExpandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := ExpandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("sitekeeper.toml")
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the data and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the site store.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "sitekeeper.db")
}

// LockPath returns the location of the serve single-instance lock.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "sitekeeper.lock")
}

// ConnectTimeout is the dial timeout for connector requests.
func (a Agent) ConnectTimeout() time.Duration {
	return time.Duration(a.ConnectTimeoutSeconds) * time.Second
}

// RequestTimeout is the overall timeout for ordinary connector requests.
func (a Agent) RequestTimeout() time.Duration {
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// EnqueueTimeout is the overall timeout for conversion enqueue requests.
func (a Agent) EnqueueTimeout() time.Duration {
	return time.Duration(a.EnqueueTimeoutSeconds) * time.Second
}

// TokenTTL is the lifetime of a signed request token.
func (a Agent) TokenTTL() time.Duration {
	return time.Duration(a.TokenTTLSeconds) * time.Second
}

// InitialInterval is the first wait between status polls.
func (p Polling) InitialInterval() time.Duration {
	return time.Duration(p.InitialIntervalSeconds) * time.Second
}

// MaxInterval caps the wait between status polls.
func (p Polling) MaxInterval() time.Duration {
	return time.Duration(p.MaxIntervalSeconds) * time.Second
}

// Timeout bounds a whole wait; zero means no bound.
func (p Polling) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// RequestTimeout bounds one ntfy delivery.
func (n Notifications) RequestTimeout() time.Duration {
	return time.Duration(n.RequestTimeoutSeconds) * time.Second
}

// ExpandPath resolves a leading ~ and returns an absolute, cleaned path.
func ExpandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the effective configuration as TOML. The API token is redacted.
func (c *Config) Encode() ([]byte, error) {
	clone := *c
	if clone.Paths.APIToken != "" {
		clone.Paths.APIToken = "<redacted>"
	}
	return toml.Marshal(clone)
}
