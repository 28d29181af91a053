package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"sitekeeper/internal/config"
	"sitekeeper/internal/logging"
)

// RunOptions configures the serve process.
type RunOptions struct {
	LogLevel    string
	Development bool
}

// Run starts the daemon and blocks until SIGINT, SIGTERM, or ctx cancellation.
func Run(cmdCtx context.Context, cfg *config.Config, opts RunOptions) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	level := cfg.Logging.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		Output:      os.Stdout,
		FilePath:    logging.FilePath(cfg),
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	components, err := OpenComponents(cfg, logger)
	if err != nil {
		logger.Error("open components", logging.Error(err))
		return err
	}

	d, err := New(cfg, components, logger)
	if err != nil {
		_ = components.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return err
	}

	<-signalCtx.Done()
	logger.Info("sitekeeper daemon shutting down")
	return nil
}
