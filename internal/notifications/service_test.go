package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sitekeeper/internal/config"
	"sitekeeper/internal/notifications"
)

type captured struct {
	title    string
	body     string
	tags     string
	priority string
}

func newNtfy(t *testing.T, status int) (*config.Config, <-chan captured) {
	t.Helper()
	got := make(chan captured, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- captured{
			title:    r.Header.Get("Title"),
			body:     string(body),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL + "/sitekeeper"
	return &cfg, got
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventConversionQueued, notifications.Payload{"count": 3}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectBody     string
		expectTags     string
		expectPriority string
	}{
		{
			name:        "queued",
			event:       notifications.EventConversionQueued,
			payload:     notifications.Payload{"site": "Blog", "count": 4},
			expectTitle: "Sitekeeper - Conversion Queued",
			expectBody:  "Blog: 4 image(s) queued for WebP conversion",
			expectTags:  "sitekeeper,webp,queued",
		},
		{
			name:        "settled clean",
			event:       notifications.EventConversionSettled,
			payload:     notifications.Payload{"site": "Blog", "completed": 4, "duration": 90 * time.Second},
			expectTitle: "Sitekeeper - Conversion Complete",
			expectBody:  "Blog: 4 image(s) converted in 1m30s",
			expectTags:  "sitekeeper,webp,completed",
		},
		{
			name:           "settled with failures",
			event:          notifications.EventConversionSettled,
			payload:        notifications.Payload{"site": "Blog", "completed": 3, "failed": 1},
			expectTitle:    "Sitekeeper - Conversion Complete (with errors)",
			expectBody:     "Blog: 3 converted, 1 failed in 0s",
			expectTags:     "sitekeeper,webp,failed",
			expectPriority: "high",
		},
		{
			name:           "connector failure",
			event:          notifications.EventConnectorFailure,
			payload:        notifications.Payload{"site": "Shop", "operation": "enqueue", "error": "connector unreachable"},
			expectTitle:    "Sitekeeper - Connector Error",
			expectBody:     "Shop (enqueue): connector unreachable",
			expectTags:     "sitekeeper,error,alert",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg, got := newNtfy(t, http.StatusOK)
			svc := notifications.NewService(cfg)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("Publish: %v", err)
			}
			msg := <-got
			if msg.title != tc.expectTitle {
				t.Fatalf("title = %q, want %q", msg.title, tc.expectTitle)
			}
			if msg.body != tc.expectBody {
				t.Fatalf("body = %q, want %q", msg.body, tc.expectBody)
			}
			if msg.tags != tc.expectTags {
				t.Fatalf("tags = %q, want %q", msg.tags, tc.expectTags)
			}
			if msg.priority != tc.expectPriority {
				t.Fatalf("priority = %q, want %q", msg.priority, tc.expectPriority)
			}
		})
	}
}

func TestNtfyServiceReportsHTTPFailure(t *testing.T) {
	cfg, _ := newNtfy(t, http.StatusForbidden)
	err := notifications.NewService(cfg).Publish(context.Background(), notifications.EventTest, nil)
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}

func TestNtfyServiceRejectsUnknownEvent(t *testing.T) {
	cfg, _ := newNtfy(t, http.StatusOK)
	if err := notifications.NewService(cfg).Publish(context.Background(), notifications.Event("bogus"), nil); err == nil {
		t.Fatal("expected unknown event to fail")
	}
}
