package agent_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"sitekeeper/internal/agent"
	"sitekeeper/internal/services"
	"sitekeeper/internal/sites"
	"sitekeeper/internal/testsupport"
)

const prefix = "/wp-json/sitekeeper/v1"

func newClient() *agent.Client {
	return agent.NewClient(agent.Options{
		APIPrefix:      prefix,
		UserAgent:      "sitekeeper-test",
		ConnectTimeout: 500 * time.Millisecond,
		RequestTimeout: time.Second,
	})
}

func connectedSite(baseURL string) *sites.Site {
	return &sites.Site{ID: 1, BaseURL: baseURL, Key: "k1", Secret: "s1"}
}

func TestDoSendsSignedRequestAndReturnsPayloadUnchanged(t *testing.T) {
	fa := testsupport.NewFakeAgent(t, prefix)
	fa.Authorize(sites.Credentials{Key: "k1", Secret: "s1"})
	fa.SetStats(map[string]any{"total": 10, "webp": 4, "non_webp": 6, "extra": "kept"})

	raw, err := newClient().Do(context.Background(), connectedSite(fa.URL()), agent.Request{Method: http.MethodGet, Path: agent.PathMediaStats})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["extra"] != "kept" || payload["non_webp"] != float64(6) {
		t.Fatalf("expected payload passed through, got %v", payload)
	}
	if fa.Calls() != 1 {
		t.Fatalf("expected one call, got %d", fa.Calls())
	}
}

func TestDoNeverPutsCredentialsInQuery(t *testing.T) {
	var seen atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.Store(r.URL.RawQuery)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, err := newClient().Do(context.Background(), connectedSite(srv.URL), agent.Request{
		Path:  agent.PathMedia,
		Query: url.Values{"per_page": {"5"}, "mime_type": {"image"}},
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	query := seen.Load().(string)
	if query != "mime_type=image&per_page=5" {
		t.Fatalf("unexpected query %q", query)
	}
	if strings.Contains(query, "k1") || strings.Contains(query, "s1") {
		t.Fatalf("credentials leaked into query %q", query)
	}
}

func TestDoShortCircuitsWhenNotConnected(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	site := &sites.Site{ID: 1, BaseURL: srv.URL, Key: "k1"}
	_, err := newClient().Do(context.Background(), site, agent.Request{Path: agent.PathMediaStats})
	if !errors.Is(err, services.ErrSiteNotConnected) {
		t.Fatalf("expected not connected, got %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no network calls, got %d", calls.Load())
	}
}

func TestDoClassifiesNetworkFailure(t *testing.T) {
	_, err := newClient().Do(context.Background(), connectedSite(testsupport.UnreachableURL(t)), agent.Request{Path: agent.PathQueueStatus})
	if !errors.Is(err, services.ErrNetworkUnavailable) {
		t.Fatalf("expected network unavailable, got %v", err)
	}
	var agentErr *agent.Error
	if !errors.As(err, &agentErr) || agentErr.Kind != services.KindNetworkUnavailable {
		t.Fatalf("expected *agent.Error, got %T", err)
	}
}

func TestDoClassifiesTimeoutAsNetworkFailure(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := newClient().Do(context.Background(), connectedSite(srv.URL), agent.Request{
		Path:    agent.PathQueueStatus,
		Timeout: 50 * time.Millisecond,
	})
	if !errors.Is(err, services.ErrNetworkUnavailable) {
		t.Fatalf("expected timeout classified as network unavailable, got %v", err)
	}
}

func TestDoClassifiesRejection(t *testing.T) {
	fa := testsupport.NewFakeAgent(t, prefix)
	// Not authorized: the fake answers 401 with a WordPress-style error body.
	_, err := newClient().Do(context.Background(), connectedSite(fa.URL()), agent.Request{Path: agent.PathMediaStats})
	if !errors.Is(err, services.ErrAgentRejected) {
		t.Fatalf("expected rejection, got %v", err)
	}
	var agentErr *agent.Error
	if !errors.As(err, &agentErr) {
		t.Fatalf("expected *agent.Error, got %T", err)
	}
	if agentErr.StatusCode != http.StatusUnauthorized || !strings.Contains(agentErr.Message, "unknown connector key") {
		t.Fatalf("unexpected rejection detail: %d %q", agentErr.StatusCode, agentErr.Message)
	}
	if msg := services.UserMessage(err); !strings.Contains(msg, "401") {
		t.Fatalf("user message should carry the status: %q", msg)
	}
}

func TestDoClassifiesMalformedResponse(t *testing.T) {
	fa := testsupport.NewFakeAgent(t, prefix)
	fa.Authorize(sites.Credentials{Key: "k1", Secret: "s1"})
	fa.RespondRaw(http.MethodGet, agent.PathQueueStatus, "<html>fatal error</html>")

	_, err := newClient().Do(context.Background(), connectedSite(fa.URL()), agent.Request{Path: agent.PathQueueStatus})
	if !errors.Is(err, services.ErrMalformedResponse) {
		t.Fatalf("expected malformed response, got %v", err)
	}
}

func TestDoJSONDecodeFailureIsMalformed(t *testing.T) {
	fa := testsupport.NewFakeAgent(t, prefix)
	fa.Authorize(sites.Credentials{Key: "k1", Secret: "s1"})
	fa.RespondRaw(http.MethodGet, agent.PathQueueStatus, `"just a string"`)

	var dest struct{ Pending int }
	err := newClient().DoJSON(context.Background(), connectedSite(fa.URL()), agent.Request{Path: agent.PathQueueStatus}, &dest)
	if !errors.Is(err, services.ErrMalformedResponse) {
		t.Fatalf("expected malformed response, got %v", err)
	}
}

func TestMediaIDMarshalsNumericIDsAsNumbers(t *testing.T) {
	body, err := json.Marshal(agent.QueueWebPRequest{IDs: []agent.MediaID{"42", "hero-image", "007", "+5", " 9 "}, KeepBackups: true})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"ids":[42,"hero-image","007","+5",9],"keep_backups":true,"flush_cache":false,"replace_urls":false}`
	if string(body) != want {
		t.Fatalf("unexpected body\n got %s\nwant %s", body, want)
	}
}

func TestDoDoesNotFollowRedirects(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Redirect(w, r, "https://elsewhere.example"+r.URL.Path, http.StatusMovedPermanently)
	}))
	t.Cleanup(srv.Close)

	_, err := newClient().Do(context.Background(), connectedSite(srv.URL), agent.Request{
		Method: http.MethodPost,
		Path:   agent.PathQueueWebP,
		Body:   agent.QueueWebPRequest{IDs: []agent.MediaID{"1"}},
	})
	if !errors.Is(err, services.ErrAgentRejected) {
		t.Fatalf("expected rejection, got %v", err)
	}
	var agentErr *agent.Error
	if !errors.As(err, &agentErr) || agentErr.StatusCode != http.StatusMovedPermanently {
		t.Fatalf("expected 301 rejection, got %v", err)
	}
	if !strings.Contains(agentErr.Message, "elsewhere.example") {
		t.Fatalf("expected redirect target in message, got %q", agentErr.Message)
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("expected a single request, got %d", got)
	}
}
