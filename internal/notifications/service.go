package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sitekeeper/internal/config"
)

// Event names a notification type.
type Event string

const (
	EventConversionQueued  Event = "conversion_queued"
	EventConversionSettled Event = "conversion_settled"
	EventConnectorFailure  Event = "connector_failure"
	EventTest              Event = "test"
)

// Payload carries event fields. Known keys: site, count, completed, failed,
// duration, operation, error.
type Payload map[string]any

// Service delivers events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds an ntfy-backed service, or a no-op one when
// notifications.ntfy_topic is empty.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	return &ntfyService{
		endpoint:  topic,
		userAgent: cfg.Agent.UserAgent,
		client:    &http.Client{Timeout: cfg.Notifications.RequestTimeout()},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint  string
	userAgent string
	client    *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := format(event, payload)
	if !ok {
		return fmt.Errorf("unknown notification event %q", event)
	}
	return n.send(ctx, msg)
}

func format(event Event, p Payload) (message, bool) {
	site := p.text("site")
	if site == "" {
		site = "site"
	}
	switch event {
	case EventConversionQueued:
		return message{
			title: "Sitekeeper - Conversion Queued",
			body:  fmt.Sprintf("%s: %d image(s) queued for WebP conversion", site, p.number("count")),
			tags:  []string{"sitekeeper", "webp", "queued"},
		}, true
	case EventConversionSettled:
		completed, failed := p.number("completed"), p.number("failed")
		duration := p.duration("duration")
		if failed == 0 {
			return message{
				title: "Sitekeeper - Conversion Complete",
				body:  fmt.Sprintf("%s: %d image(s) converted in %s", site, completed, duration),
				tags:  []string{"sitekeeper", "webp", "completed"},
			}, true
		}
		return message{
			title:    "Sitekeeper - Conversion Complete (with errors)",
			body:     fmt.Sprintf("%s: %d converted, %d failed in %s", site, completed, failed, duration),
			tags:     []string{"sitekeeper", "webp", "failed"},
			priority: "high",
		}, true
	case EventConnectorFailure:
		var b strings.Builder
		b.WriteString(site)
		if op := p.text("operation"); op != "" {
			b.WriteString(" (")
			b.WriteString(op)
			b.WriteString(")")
		}
		b.WriteString(": ")
		if reason := p.text("error"); reason != "" {
			b.WriteString(reason)
		} else {
			b.WriteString("unknown error")
		}
		return message{
			title:    "Sitekeeper - Connector Error",
			body:     b.String(),
			tags:     []string{"sitekeeper", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "Sitekeeper - Test",
			body:     "Notification system test",
			tags:     []string{"sitekeeper", "test"},
			priority: "low",
		}, true
	}
	return message{}, false
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	if n.userAgent != "" {
		req.Header.Set("User-Agent", n.userAgent)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	req.Header.Set("Title", msg.title)
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (p Payload) text(key string) string {
	switch v := p[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return v.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func (p Payload) number(key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func (p Payload) duration(key string) string {
	d, _ := p[key].(time.Duration)
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	return d.String()
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
