package conversion

import (
	"context"
	"errors"
	"time"

	"sitekeeper/internal/logging"
	"sitekeeper/internal/notifications"
	"sitekeeper/internal/services"
)

// WaitOptions tune Wait. Zero values fall back to the package defaults.
type WaitOptions struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// MaxFailures is the number of consecutive failed polls tolerated before
	// Wait gives up.
	MaxFailures int
	// OnStatus, when set, receives every successfully read snapshot.
	OnStatus func(Status)
}

const (
	defaultInitialInterval = 2 * time.Second
	defaultMaxInterval     = 10 * time.Second
	defaultMaxFailures     = 3
)

func (o WaitOptions) withDefaults() WaitOptions {
	if o.InitialInterval <= 0 {
		o.InitialInterval = defaultInitialInterval
	}
	if o.MaxInterval <= 0 {
		o.MaxInterval = defaultMaxInterval
	}
	if o.MaxInterval < o.InitialInterval {
		o.MaxInterval = o.InitialInterval
	}
	if o.MaxFailures <= 0 {
		o.MaxFailures = defaultMaxFailures
	}
	return o
}

// sleepFunc waits for d or until ctx is done.
type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Wait polls queue status with exponential backoff until the connector
// reports it is no longer processing. Unlike Status, failures are surfaced:
// a disconnected site fails immediately and repeated connector errors end
// the wait once MaxFailures is reached.
func (c *Coordinator) Wait(ctx context.Context, siteID int64, opts WaitOptions) (Status, error) {
	return c.wait(ctx, siteID, opts, sleepContext)
}

func (c *Coordinator) wait(ctx context.Context, siteID int64, opts WaitOptions, sleep sleepFunc) (Status, error) {
	opts = opts.withDefaults()
	ctx = services.WithOperation(services.WithSiteID(ctx, siteID), "wait")

	interval := opts.InitialInterval
	failures := 0
	started := time.Now()
	sawProcessing := false
	var last Status
	for {
		site, err := c.registry.Get(ctx, siteID)
		if err != nil {
			return last, err
		}
		status, err := c.fetchStatus(ctx, site)
		switch {
		case err == nil:
			failures = 0
			last = status
			if opts.OnStatus != nil {
				opts.OnStatus(status)
			}
			if !status.IsProcessing {
				if sawProcessing {
					c.notify(ctx, notifications.EventConversionSettled, notifications.Payload{
						"site":      site.Name,
						"completed": status.Completed,
						"failed":    status.Failed,
						"duration":  time.Since(started),
					})
				}
				return status, nil
			}
			sawProcessing = true
		case errors.Is(err, services.ErrSiteNotConnected):
			return last, err
		default:
			failures++
			c.logger.DebugContext(ctx, "queue status poll failed",
				logging.Int("consecutive_failures", failures),
				logging.ErrorKind(err),
				logging.Error(err),
			)
			if failures >= opts.MaxFailures {
				return last, err
			}
		}

		if err := sleep(ctx, interval); err != nil {
			return last, err
		}
		interval *= 2
		if interval > opts.MaxInterval {
			interval = opts.MaxInterval
		}
	}
}
