package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAgent()
	c.normalizePolling()
	c.normalizeMedia()
	c.normalizeLogging()
	c.normalizeNotifications()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = ExpandPath(strings.TrimSpace(c.Paths.DataDir)); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = ExpandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if value, ok := os.LookupEnv(APITokenEnv); ok && strings.TrimSpace(value) != "" {
		c.Paths.APIToken = strings.TrimSpace(value)
	}
	return nil
}

func (c *Config) normalizeAgent() {
	prefix := strings.TrimSpace(c.Agent.APIPrefix)
	if prefix != "" {
		prefix = "/" + strings.Trim(prefix, "/")
	}
	c.Agent.APIPrefix = prefix
	c.Agent.UserAgent = strings.TrimSpace(c.Agent.UserAgent)
	if c.Agent.UserAgent == "" {
		c.Agent.UserAgent = defaultUserAgent
	}
	if c.Agent.MaxResponseBytes <= 0 {
		c.Agent.MaxResponseBytes = defaultMaxResponseBytes
	}
}

func (c *Config) normalizePolling() {
	if c.Polling.MaxIntervalSeconds > 0 && c.Polling.InitialIntervalSeconds > c.Polling.MaxIntervalSeconds {
		c.Polling.InitialIntervalSeconds = c.Polling.MaxIntervalSeconds
	}
}

func (c *Config) normalizeMedia() {
	if c.Media.MaxPerPage <= 0 {
		c.Media.MaxPerPage = defaultMediaMaxPerPage
	}
	if c.Media.DefaultPerPage > c.Media.MaxPerPage {
		c.Media.DefaultPerPage = c.Media.MaxPerPage
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNotifyTimeoutSeconds
	}
}
