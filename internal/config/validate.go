package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
)

// Validate ensures the configuration is usable. All problems are reported at
// once, each prefixed with its TOML key.
func (c *Config) Validate() error {
	var errs []error
	errs = append(errs, c.validatePaths()...)
	errs = append(errs, c.validateAgent()...)
	errs = append(errs, c.validatePolling()...)
	errs = append(errs, c.validateMedia()...)
	errs = append(errs, c.validateLogging()...)
	errs = append(errs, c.validateNotifications()...)
	return errors.Join(errs...)
}

func (c *Config) validatePaths() []error {
	var errs []error
	if c.Paths.DataDir == "" {
		errs = append(errs, errors.New("paths.data_dir must be set"))
	}
	if _, _, err := net.SplitHostPort(c.Paths.APIBind); err != nil {
		errs = append(errs, fmt.Errorf("paths.api_bind: %w", err))
	}
	return errs
}

func (c *Config) validateAgent() []error {
	var errs []error
	for _, field := range []struct {
		key   string
		value int
	}{
		{"agent.connect_timeout_seconds", c.Agent.ConnectTimeoutSeconds},
		{"agent.request_timeout_seconds", c.Agent.RequestTimeoutSeconds},
		{"agent.enqueue_timeout_seconds", c.Agent.EnqueueTimeoutSeconds},
		{"agent.token_ttl_seconds", c.Agent.TokenTTLSeconds},
	} {
		if field.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", field.key))
		}
	}
	if c.Agent.ConnectTimeoutSeconds > c.Agent.RequestTimeoutSeconds && c.Agent.RequestTimeoutSeconds > 0 {
		errs = append(errs, errors.New("agent.connect_timeout_seconds must not exceed agent.request_timeout_seconds"))
	}
	return errs
}

func (c *Config) validatePolling() []error {
	var errs []error
	if c.Polling.InitialIntervalSeconds <= 0 {
		errs = append(errs, errors.New("polling.initial_interval_seconds must be positive"))
	}
	if c.Polling.MaxIntervalSeconds <= 0 {
		errs = append(errs, errors.New("polling.max_interval_seconds must be positive"))
	}
	if c.Polling.TimeoutSeconds < 0 {
		errs = append(errs, errors.New("polling.timeout_seconds must be zero or positive"))
	}
	return errs
}

func (c *Config) validateMedia() []error {
	if c.Media.DefaultPerPage <= 0 {
		return []error{errors.New("media.default_per_page must be positive")}
	}
	return nil
}

func (c *Config) validateLogging() []error {
	var errs []error
	switch c.Logging.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format))
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level))
	}
	if c.Logging.RetentionDays < 0 {
		errs = append(errs, errors.New("logging.retention_days must be zero or positive"))
	}
	return errs
}

func (c *Config) validateNotifications() []error {
	if c.Notifications.NtfyTopic == "" {
		return nil
	}
	u, err := url.Parse(c.Notifications.NtfyTopic)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return []error{fmt.Errorf("notifications.ntfy_topic: %q is not an http(s) URL", c.Notifications.NtfyTopic)}
	}
	return nil
}
