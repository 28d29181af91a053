package media_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"sitekeeper/internal/agent"
	"sitekeeper/internal/logging"
	"sitekeeper/internal/media"
	"sitekeeper/internal/services"
	"sitekeeper/internal/testsupport"
)

func newService(env *testsupport.Env) *media.Service {
	return media.NewService(env.Config, env.Registry, env.Client, logging.NewNop())
}

func attachment(id int, mime string) map[string]any {
	return map[string]any{
		"id":         id,
		"title":      map[string]any{"rendered": "Photo"},
		"source_url": "https://example.test/uploads/photo.jpg",
		"alt_text":   "A photo",
		"mime_type":  mime,
		"media_details": map[string]any{
			"sizes": map[string]any{
				"thumbnail": map[string]any{"source_url": "https://example.test/uploads/photo-150x150.jpg"},
			},
		},
	}
}

func TestStatsAcceptsSnakeAndCamelCase(t *testing.T) {
	env := testsupport.NewEnv(t)
	site := env.Connected(t)
	svc := newService(env)
	ctx := context.Background()

	env.Agent.SetStats(map[string]any{"total": 10, "webp": 4, "non_webp": 6})
	stats, err := svc.Stats(ctx, site.ID)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats != (media.Stats{Total: 10, WebP: 4, NonWebP: 6}) {
		t.Fatalf("unexpected stats %+v", stats)
	}

	env.Agent.SetStats(map[string]any{"total": 3, "webp": 1, "nonWebp": 2})
	stats, err = svc.Stats(ctx, site.ID)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.NonWebP != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestReadsDegradeWhenDisconnectedOrFailing(t *testing.T) {
	env := testsupport.NewEnv(t)
	svc := newService(env)
	ctx := context.Background()

	disconnected := env.Disconnected(t)
	if stats, err := svc.Stats(ctx, disconnected.ID); err != nil || stats != (media.Stats{}) {
		t.Fatalf("expected zero stats, got %+v %v", stats, err)
	}
	if items, err := svc.List(ctx, disconnected.ID, 10); err != nil || items == nil || len(items) != 0 {
		t.Fatalf("expected empty list, got %v %v", items, err)
	}
	if env.Agent.Calls() != 0 {
		t.Fatalf("disconnected site reached the connector")
	}

	unreachable := env.Unreachable(t)
	if items, err := svc.NonWebP(ctx, unreachable.ID); err != nil || len(items) != 0 {
		t.Fatalf("expected empty non-webp list, got %v %v", items, err)
	}
}

func TestListMapsAttachmentFieldsAndClampsPerPage(t *testing.T) {
	env := testsupport.NewEnv(t)
	site := env.Connected(t)
	env.Agent.SetItems(attachment(1, "image/jpeg"), attachment(2, "image/webp"))

	items, err := newService(env).List(context.Background(), site.ID, 1000)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	want := media.Item{
		ID:        "1",
		Title:     "Photo",
		Thumbnail: "https://example.test/uploads/photo-150x150.jpg",
		URL:       "https://example.test/uploads/photo.jpg",
		Alt:       "A photo",
		MimeType:  "image/jpeg",
	}
	if items[0] != want {
		t.Fatalf("expected %+v, got %+v", want, items[0])
	}
}

func TestNonWebPAcceptsWrappedAndBareArrays(t *testing.T) {
	env := testsupport.NewEnv(t)
	site := env.Connected(t)
	svc := newService(env)
	ctx := context.Background()
	env.Agent.SetItems(attachment(1, "image/jpeg"), attachment(2, "image/webp"), attachment(3, "image/png"))

	items, err := svc.NonWebP(ctx, site.ID)
	if err != nil {
		t.Fatalf("NonWebP: %v", err)
	}
	if len(items) != 2 || items[1].ID != "3" {
		t.Fatalf("unexpected items %+v", items)
	}

	env.Agent.RespondRaw(http.MethodGet, agent.PathNonWebPImages, `[{"id":9,"title":"Bare","url":"/u/9.gif"}]`)
	items, err = svc.NonWebP(ctx, site.ID)
	if err != nil {
		t.Fatalf("NonWebP: %v", err)
	}
	if len(items) != 1 || items[0].Title != "Bare" || items[0].Thumbnail != "/u/9.gif" {
		t.Fatalf("unexpected items %+v", items)
	}
}

func TestAIOptimizeValidatesAndForwards(t *testing.T) {
	env := testsupport.NewEnv(t)
	site := env.Connected(t)
	svc := newService(env)
	ctx := context.Background()

	if _, err := svc.AIOptimize(ctx, site.ID, "", media.OptimizeOptions{}); !errors.Is(err, services.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for empty id, got %v", err)
	}
	if _, err := svc.AIOptimize(ctx, site.ID, "4", media.OptimizeOptions{Language: "not a tag!"}); !errors.Is(err, services.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for bad language, got %v", err)
	}
	if env.Agent.Calls() != 0 {
		t.Fatalf("invalid requests reached the connector")
	}

	ack, err := svc.AIOptimize(ctx, site.ID, "4", media.OptimizeOptions{ApplyAltText: true, Language: "pt-br", PageContext: " About us "})
	if err != nil {
		t.Fatalf("AIOptimize: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(ack, &payload); err != nil || payload["alt_text"] != "generated" {
		t.Fatalf("unexpected ack %s (%v)", ack, err)
	}
	var sent map[string]any
	if err := json.Unmarshal(env.Agent.LastBody(agent.PathAIOptimize), &sent); err != nil {
		t.Fatalf("decode request: %v", err)
	}
	if sent["image_id"] != float64(4) || sent["language"] != "pt-BR" || sent["page_context"] != "About us" || sent["apply_alt_text"] != true {
		t.Fatalf("unexpected request %v", sent)
	}
}

func TestAIOptimizeRequiresConnection(t *testing.T) {
	env := testsupport.NewEnv(t)
	site := env.Disconnected(t)

	_, err := newService(env).AIOptimize(context.Background(), site.ID, "4", media.OptimizeOptions{})
	if !errors.Is(err, services.ErrSiteNotConnected) {
		t.Fatalf("expected ErrSiteNotConnected, got %v", err)
	}
}
