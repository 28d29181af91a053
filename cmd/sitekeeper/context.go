package main

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"sitekeeper/internal/config"
	"sitekeeper/internal/daemon"
	"sitekeeper/internal/logging"
	"sitekeeper/internal/services"
)

type commandContext struct {
	configFlag *string
	verbose    *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string, verbose *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		verbose:    verbose,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// logger writes to stderr so --json stdout stays parseable. Without
// --verbose only warnings surface, which is where degraded reads are logged.
func (c *commandContext) logger(cmd *cobra.Command) *slog.Logger {
	level := "warn"
	if c.verbose != nil && *c.verbose {
		level = "debug"
	}
	logger, err := logging.New(logging.Options{Level: level, Format: "console", Output: cmd.ErrOrStderr()})
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

func (c *commandContext) withComponents(cmd *cobra.Command, fn func(*daemon.Components) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	components, err := daemon.OpenComponents(cfg, c.logger(cmd))
	if err != nil {
		return err
	}
	defer components.Close()
	return fn(components)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func parseSiteID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, services.Wrap(services.ErrInvalidRequest, "cli", "parse site id", fmt.Sprintf("%q is not a site id", raw), nil)
	}
	return id, nil
}

// renderError prefers the user-facing sentence for classified failures.
func renderError(err error) string {
	if services.Kind(err) == services.KindInternal {
		return err.Error()
	}
	return services.UserMessage(err)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
