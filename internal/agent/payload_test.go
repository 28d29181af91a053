package agent_test

import (
	"encoding/json"
	"testing"

	"sitekeeper/internal/agent"
)

func TestPayloadFieldHelpers(t *testing.T) {
	m, ok := agent.Object(json.RawMessage(`{"pending":"3","done":2,"busy":1,"title":{"rendered":"Hero"},"flag":"true"}`))
	if !ok {
		t.Fatal("expected object")
	}
	if n, ok := agent.Int(m, "missing", "pending"); !ok || n != 3 {
		t.Fatalf("Int(pending) = %d %v", n, ok)
	}
	if n, ok := agent.Int(m, "done"); !ok || n != 2 {
		t.Fatalf("Int(done) = %d %v", n, ok)
	}
	if b, ok := agent.Bool(m, "busy"); !ok || !b {
		t.Fatalf("Bool(busy) = %v %v", b, ok)
	}
	if b, ok := agent.Bool(m, "flag"); !ok || !b {
		t.Fatalf("Bool(flag) = %v %v", b, ok)
	}
	if s, ok := agent.String(m, "title"); !ok || s != "Hero" {
		t.Fatalf("String(title) = %q %v", s, ok)
	}
	if _, ok := agent.Object(json.RawMessage(`[1,2]`)); ok {
		t.Fatal("arrays are not objects")
	}
}
