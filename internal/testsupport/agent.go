package testsupport

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sitekeeper/internal/agent"
	"sitekeeper/internal/sites"
)

// FakeAgent is an httptest connector. It verifies request signatures, counts
// calls, simulates a conversion queue that advances one step per status poll,
// and keeps a redirect table fed by completed conversions.
type FakeAgent struct {
	Server *httptest.Server
	Prefix string

	calls    atomic.Int64
	mu       sync.Mutex
	secrets  map[string]string
	queue    []*fakeJob
	failIDs  map[string]bool
	redirect map[string]string
	items    []map[string]any
	stats    map[string]any
	bodies   map[string][]byte
	failure  *fakeFailure
	raw      map[string]string
	revert   map[string]any
}

type fakeJob struct {
	id     string
	status string
}

type fakeFailure struct {
	status int
	body   string
}

// NewFakeAgent starts a connector serving under prefix and registers cleanup.
func NewFakeAgent(t testing.TB, prefix string) *FakeAgent {
	t.Helper()
	fa := &FakeAgent{
		Prefix:   strings.TrimRight(prefix, "/"),
		secrets:  map[string]string{},
		failIDs:  map[string]bool{},
		redirect: map[string]string{},
		bodies:   map[string][]byte{},
		raw:      map[string]string{},
		stats:    map[string]any{"total": 0, "webp": 0, "non_webp": 0},
		revert:   map[string]any{"success": true},
	}
	fa.Server = httptest.NewServer(http.HandlerFunc(fa.serve))
	t.Cleanup(fa.Server.Close)
	return fa
}

// URL returns the base URL to register as a site.
func (fa *FakeAgent) URL() string { return fa.Server.URL }

// Authorize makes the connector accept requests signed with creds.
func (fa *FakeAgent) Authorize(creds sites.Credentials) {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	fa.secrets[creds.Key] = creds.Secret
}

// Calls returns the number of requests that reached the connector.
func (fa *FakeAgent) Calls() int64 { return fa.calls.Load() }

// FailAll makes every request answer with status and body.
func (fa *FakeAgent) FailAll(status int, body string) {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	fa.failure = &fakeFailure{status: status, body: body}
}

// RespondRaw serves body verbatim with 200 for method+path.
func (fa *FakeAgent) RespondRaw(method, path, body string) {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	fa.raw[method+" "+path] = body
}

// FailConversionOf marks ids that will end in the failed state.
func (fa *FakeAgent) FailConversionOf(ids ...string) {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	for _, id := range ids {
		fa.failIDs[id] = true
	}
}

// SetRedirects replaces the redirect table.
func (fa *FakeAgent) SetRedirects(redirects map[string]string) {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	fa.redirect = map[string]string{}
	for k, v := range redirects {
		fa.redirect[k] = v
	}
}

// SetItems replaces the media library returned by list endpoints.
func (fa *FakeAgent) SetItems(items ...map[string]any) {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	fa.items = items
}

// SetStats replaces the /media/stats payload.
func (fa *FakeAgent) SetStats(stats map[string]any) {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	fa.stats = stats
}

// SetRevertResponse replaces the /media/revert-webp payload.
func (fa *FakeAgent) SetRevertResponse(payload map[string]any) {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	fa.revert = payload
}

// LastBody returns the last JSON body received on path.
func (fa *FakeAgent) LastBody(path string) []byte {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	return fa.bodies[path]
}

func (fa *FakeAgent) serve(w http.ResponseWriter, r *http.Request) {
	fa.calls.Add(1)

	fa.mu.Lock()
	secrets := make(map[string]string, len(fa.secrets))
	for k, v := range fa.secrets {
		secrets[k] = v
	}
	failure := fa.failure
	fa.mu.Unlock()

	lookup := func(key string) (string, bool) {
		s, ok := secrets[key]
		return s, ok
	}
	if _, err := agent.VerifyRequest(r, fa.Prefix, lookup, time.Now(), time.Minute); err != nil {
		writeFake(w, http.StatusUnauthorized, map[string]any{"code": "rest_forbidden", "message": err.Error()})
		return
	}
	if failure != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(failure.status)
		_, _ = w.Write([]byte(failure.body))
		return
	}

	path := strings.TrimPrefix(r.URL.Path, fa.Prefix)
	var body map[string]any
	if r.Body != nil {
		var raw json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&raw); err == nil {
			fa.mu.Lock()
			fa.bodies[path] = raw
			fa.mu.Unlock()
			_ = json.Unmarshal(raw, &body)
		}
	}

	fa.mu.Lock()
	defer fa.mu.Unlock()

	if raw, ok := fa.raw[r.Method+" "+path]; ok {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(raw))
		return
	}

	switch {
	case r.Method == http.MethodGet && path == agent.PathMediaStats:
		writeFake(w, http.StatusOK, fa.stats)
	case r.Method == http.MethodGet && path == agent.PathMedia:
		items := fa.items
		if n := r.URL.Query().Get("per_page"); n != "" {
			var limit int
			if _, err := fmt.Sscanf(n, "%d", &limit); err == nil && limit < len(items) {
				items = items[:limit]
			}
		}
		writeFake(w, http.StatusOK, nonNil(items))
	case r.Method == http.MethodGet && path == agent.PathNonWebPImages:
		var out []map[string]any
		for _, item := range fa.items {
			if mime, _ := item["mime_type"].(string); mime != "image/webp" {
				out = append(out, item)
			}
		}
		writeFake(w, http.StatusOK, map[string]any{"images": nonNil(out)})
	case r.Method == http.MethodPost && path == agent.PathAIOptimize:
		writeFake(w, http.StatusOK, map[string]any{"success": true, "image_id": body["image_id"], "alt_text": "generated"})
	case r.Method == http.MethodPost && path == agent.PathQueueWebP:
		ids, _ := body["ids"].([]any)
		queued := 0
		for _, raw := range ids {
			id := fmt.Sprint(raw)
			if fa.activeJob(id) {
				continue
			}
			fa.queue = append(fa.queue, &fakeJob{id: id, status: "pending"})
			queued++
		}
		writeFake(w, http.StatusOK, map[string]any{"success": true, "queued": queued, "message": "Images queued"})
	case r.Method == http.MethodGet && path == agent.PathQueueStatus:
		fa.advance()
		writeFake(w, http.StatusOK, fa.statusPayload())
	case r.Method == http.MethodPost && path == agent.PathRevertWebP:
		writeFake(w, http.StatusOK, fa.revert)
	case r.Method == http.MethodGet && path == agent.PathMediaRedirects:
		writeFake(w, http.StatusOK, fa.redirect)
	case r.Method == http.MethodDelete && path == agent.PathMediaRedirects:
		cleared := len(fa.redirect)
		fa.redirect = map[string]string{}
		writeFake(w, http.StatusOK, map[string]any{"success": true, "cleared": cleared})
	default:
		writeFake(w, http.StatusNotFound, map[string]any{"code": "rest_no_route", "message": "No route was found"})
	}
}

func (fa *FakeAgent) activeJob(id string) bool {
	for _, job := range fa.queue {
		if job.id == id && (job.status == "pending" || job.status == "processing") {
			return true
		}
	}
	return false
}

// advance moves the processing job to a terminal state and starts the next
// pending one.
func (fa *FakeAgent) advance() {
	for _, job := range fa.queue {
		if job.status == "processing" {
			if fa.failIDs[job.id] {
				job.status = "failed"
			} else {
				job.status = "completed"
				fa.redirect[fmt.Sprintf("/uploads/%s.jpg", job.id)] = fmt.Sprintf("/uploads/%s.webp", job.id)
			}
			break
		}
	}
	for _, job := range fa.queue {
		if job.status == "pending" {
			job.status = "processing"
			break
		}
	}
}

func (fa *FakeAgent) statusPayload() map[string]any {
	counts := map[string]int{}
	for _, job := range fa.queue {
		counts[job.status]++
	}
	return map[string]any{
		"pending":       counts["pending"],
		"processing":    counts["processing"],
		"completed":     counts["completed"],
		"failed":        counts["failed"],
		"total":         len(fa.queue),
		"is_processing": counts["pending"]+counts["processing"] > 0,
	}
}

// QueueIDs returns queued ids in sorted order.
func (fa *FakeAgent) QueueIDs() []string {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	ids := make([]string, 0, len(fa.queue))
	for _, job := range fa.queue {
		ids = append(ids, job.id)
	}
	sort.Strings(ids)
	return ids
}

func nonNil(items []map[string]any) []map[string]any {
	if items == nil {
		return []map[string]any{}
	}
	return items
}

func writeFake(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// UnreachableURL returns a loopback URL with nothing listening on it.
func UnreachableURL(t testing.TB) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return "http://" + addr
}
