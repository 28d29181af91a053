package conversion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"sitekeeper/internal/agent"
	"sitekeeper/internal/logging"
	"sitekeeper/internal/notifications"
	"sitekeeper/internal/services"
	"sitekeeper/internal/settings"
	"sitekeeper/internal/sites"
)

// Coordinator presents enqueue, status, and revert over a connector's own
// conversion queue. It holds no queue state: the connector is the source of
// truth and status is read through on every call.
type Coordinator struct {
	registry       *sites.Registry
	client         agent.Doer
	settings       *settings.Store
	enqueueTimeout time.Duration
	notifier       notifications.Service
	logger         *slog.Logger
}

// NewCoordinator wires the coordinator. enqueueTimeout bounds bulk enqueue
// calls; zero uses the client's default.
func NewCoordinator(registry *sites.Registry, client agent.Doer, store *settings.Store, enqueueTimeout time.Duration, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		registry:       registry,
		client:         client,
		settings:       store,
		enqueueTimeout: enqueueTimeout,
		notifier:       notifications.NewService(nil),
		logger:         logging.NewComponentLogger(logger, "coordinator"),
	}
}

// SetNotifier routes queued, settled, and failed conversion events to n.
func (c *Coordinator) SetNotifier(n notifications.Service) {
	if n == nil {
		n = notifications.NewService(nil)
	}
	c.notifier = n
}

func (c *Coordinator) notify(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if err := c.notifier.Publish(ctx, event, payload); err != nil {
		logging.WarnWithContext(ctx, c.logger, "notification delivery failed", "notification_failed",
			logging.String("event", string(event)),
			logging.Error(err),
		)
	}
}

// Enqueue hands a batch of media ids to the connector for WebP conversion and
// returns its acknowledgement unchanged. Ids already queued are forwarded
// anyway; de-duplication is the connector's job.
func (c *Coordinator) Enqueue(ctx context.Context, siteID int64, ids []string, opts Options) (json.RawMessage, error) {
	ctx = services.WithOperation(services.WithSiteID(ctx, siteID), "enqueue")
	mediaIDs, err := normalizeIDs(ids)
	if err != nil {
		return nil, err
	}
	site, err := c.registry.Get(ctx, siteID)
	if err != nil {
		return nil, err
	}
	if !sites.IsConnected(site) {
		return nil, notConnected("enqueue", site)
	}

	keepBackups, flushCache, replaceURLs := opts.resolved()
	ack, err := c.client.Do(ctx, site, agent.Request{
		Method: http.MethodPost,
		Path:   agent.PathQueueWebP,
		Body: agent.QueueWebPRequest{
			IDs:         mediaIDs,
			KeepBackups: keepBackups,
			FlushCache:  flushCache,
			ReplaceURLs: replaceURLs,
		},
		Timeout: c.enqueueTimeout,
	})
	if err != nil {
		c.logger.ErrorContext(ctx, "conversion enqueue failed",
			logging.Int("count", len(mediaIDs)),
			logging.ErrorKind(err),
			logging.Error(err),
			logging.String(logging.FieldEventType, "conversion_enqueue_failed"),
		)
		c.notify(ctx, notifications.EventConnectorFailure, notifications.Payload{
			"site":      site.Name,
			"operation": "enqueue",
			"error":     services.UserMessage(err),
		})
		return nil, err
	}
	c.logger.InfoContext(ctx, "conversion batch queued",
		logging.Int("count", len(mediaIDs)),
		logging.Bool("keep_backups", keepBackups),
		logging.Bool("flush_cache", flushCache),
		logging.Bool("replace_urls", replaceURLs),
		logging.String(logging.FieldEventType, "conversion_enqueued"),
	)
	c.notify(ctx, notifications.EventConversionQueued, notifications.Payload{
		"site":  site.Name,
		"count": len(mediaIDs),
	})
	return ack, nil
}

// Status returns the connector's queue counters. Disconnected sites and
// connector failures yield the zero Status; only an unknown site is an error.
func (c *Coordinator) Status(ctx context.Context, siteID int64) (Status, error) {
	ctx = services.WithOperation(services.WithSiteID(ctx, siteID), "status")
	site, err := c.registry.Get(ctx, siteID)
	if err != nil {
		return Status{}, err
	}
	status, err := c.fetchStatus(ctx, site)
	if err != nil {
		if errors.Is(err, services.ErrSiteNotConnected) {
			return Status{}, nil
		}
		logging.WarnWithContext(ctx, c.logger, "queue status unavailable; reporting empty queue", "queue_status_degraded",
			logging.ErrorKind(err),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that the site is online and the connector plugin is active"),
			logging.String(logging.FieldImpact, "queue counters read as zero until the connector answers"),
		)
		return Status{}, nil
	}
	return status, nil
}

func (c *Coordinator) fetchStatus(ctx context.Context, site *sites.Site) (Status, error) {
	if !sites.IsConnected(site) {
		return Status{}, notConnected("status", site)
	}
	raw, err := c.client.Do(ctx, site, agent.Request{Method: http.MethodGet, Path: agent.PathQueueStatus})
	if err != nil {
		return Status{}, err
	}
	return parseStatus(raw)
}

// parseStatus accepts camelCase or snake_case counters. When the connector
// omits total it is the sum of the buckets; when it omits the processing flag
// any pending or processing entry counts as activity.
func parseStatus(raw json.RawMessage) (Status, error) {
	m, ok := agent.Object(raw)
	if !ok {
		return Status{}, &agent.Error{
			Kind:    services.KindMalformedResponse,
			Method:  http.MethodGet,
			Path:    agent.PathQueueStatus,
			Message: "queue status is not a JSON object",
		}
	}
	if nested, ok := m["status"].(map[string]any); ok {
		m = nested
	}
	pending, _ := agent.Int(m, "pending")
	processing, _ := agent.Int(m, "processing")
	completed, _ := agent.Int(m, "completed")
	failed, _ := agent.Int(m, "failed")
	total, ok := agent.Int(m, "total")
	if !ok {
		total = pending + processing + completed + failed
	}
	busy, ok := agent.Bool(m, "isProcessing", "is_processing")
	if !ok {
		busy = pending+processing > 0
	}
	return Status{
		Pending:      pending,
		Completed:    completed,
		Failed:       failed,
		Total:        total,
		IsProcessing: busy,
	}, nil
}

// Revert restores one converted media item on the connector. The response is
// normalized with success defaulting to false and a generic message.
func (c *Coordinator) Revert(ctx context.Context, siteID int64, mediaID string) (RevertResult, error) {
	ctx = services.WithOperation(services.WithSiteID(ctx, siteID), "revert")
	id := strings.TrimSpace(mediaID)
	if id == "" {
		return RevertResult{}, services.Wrap(services.ErrInvalidRequest, "coordinator", "revert", "media id is required", nil)
	}
	site, err := c.registry.Get(ctx, siteID)
	if err != nil {
		return RevertResult{}, err
	}
	if !sites.IsConnected(site) {
		return RevertResult{}, notConnected("revert", site)
	}
	raw, err := c.client.Do(ctx, site, agent.Request{
		Method: http.MethodPost,
		Path:   agent.PathRevertWebP,
		Body:   agent.RevertWebPRequest{ImageID: agent.MediaID(id)},
	})
	if err != nil {
		c.logger.ErrorContext(ctx, "conversion revert failed",
			logging.String("media_id", id),
			logging.ErrorKind(err),
			logging.Error(err),
			logging.String(logging.FieldEventType, "conversion_revert_failed"),
		)
		return RevertResult{}, err
	}
	result := normalizeRevert(raw)
	c.logger.InfoContext(ctx, "conversion reverted",
		logging.String("media_id", id),
		logging.Bool("success", result.Success),
		logging.String(logging.FieldEventType, "conversion_reverted"),
	)
	return result, nil
}

func normalizeRevert(raw json.RawMessage) RevertResult {
	result := RevertResult{Message: DefaultRevertMessage}
	m, ok := agent.Object(raw)
	if !ok {
		return result
	}
	result.Success, _ = agent.Bool(m, "success")
	if msg, ok := agent.String(m, "message"); ok && strings.TrimSpace(msg) != "" {
		result.Message = msg
	}
	if id, present := m["id"]; present && id != nil {
		if encoded, err := json.Marshal(id); err == nil {
			result.ID = encoded
		}
	}
	return result
}

// HandleUpload is the automation hook for newly uploaded media. It enqueues
// the ids with default options only when the site has auto-convert enabled.
func (c *Coordinator) HandleUpload(ctx context.Context, siteID int64, ids []string) (UploadResult, error) {
	ctx = services.WithOperation(services.WithSiteID(ctx, siteID), "upload")
	if _, err := normalizeIDs(ids); err != nil {
		return UploadResult{}, err
	}
	toolSettings, err := c.settings.Typed(ctx, siteID)
	if err != nil {
		return UploadResult{}, err
	}
	if !toolSettings.AutoConvertToWebP {
		c.logger.DebugContext(ctx, "auto conversion disabled; upload ignored",
			logging.Int("count", len(ids)),
			logging.String(logging.FieldEventType, "auto_convert_skipped"),
		)
		return UploadResult{Queued: false, Reason: "auto-convert to WebP is disabled"}, nil
	}
	ack, err := c.Enqueue(ctx, siteID, ids, Options{})
	if err != nil {
		return UploadResult{}, err
	}
	return UploadResult{Queued: true, Ack: ack}, nil
}

// normalizeIDs trims, rejects blanks, and collapses duplicates preserving
// first-seen order.
func normalizeIDs(ids []string) ([]agent.MediaID, error) {
	if len(ids) == 0 {
		return nil, services.Wrap(services.ErrInvalidRequest, "coordinator", "enqueue", "at least one media id is required", nil)
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]agent.MediaID, 0, len(ids))
	for i, raw := range ids {
		id := strings.TrimSpace(raw)
		if id == "" {
			return nil, services.Wrap(services.ErrInvalidRequest, "coordinator", "enqueue",
				fmt.Sprintf("media id at position %d is empty", i), nil)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, agent.MediaID(id))
	}
	return out, nil
}

func notConnected(operation string, site *sites.Site) error {
	return services.Wrap(services.ErrSiteNotConnected, "coordinator", operation,
		fmt.Sprintf("site %d (%s) has no connector credentials", site.ID, site.Name), nil)
}
