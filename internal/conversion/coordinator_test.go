package conversion_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"sitekeeper/internal/agent"
	"sitekeeper/internal/conversion"
	"sitekeeper/internal/logging"
	"sitekeeper/internal/services"
	"sitekeeper/internal/settings"
	"sitekeeper/internal/testsupport"
)

func newCoordinator(env *testsupport.Env) *conversion.Coordinator {
	return conversion.NewCoordinator(env.Registry, env.Client, env.Settings, env.Config.Agent.EnqueueTimeout(), logging.NewNop())
}

func boolPtr(v bool) *bool { return &v }

func TestEnqueueDisconnectedSiteMakesNoRequest(t *testing.T) {
	env := testsupport.NewEnv(t)
	site := env.Disconnected(t)

	_, err := newCoordinator(env).Enqueue(context.Background(), site.ID, []string{"1", "2"}, conversion.Options{})
	if !errors.Is(err, services.ErrSiteNotConnected) {
		t.Fatalf("expected ErrSiteNotConnected, got %v", err)
	}
	if env.Agent.Calls() != 0 {
		t.Fatalf("expected no connector calls, got %d", env.Agent.Calls())
	}
}

func TestEnqueueRejectsEmptyIDsBeforeConnectionCheck(t *testing.T) {
	env := testsupport.NewEnv(t)
	disconnected := env.Disconnected(t)
	coord := newCoordinator(env)

	cases := map[string][]string{
		"nil":   nil,
		"empty": {},
		"blank": {"1", "  "},
	}
	for name, ids := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := coord.Enqueue(context.Background(), disconnected.ID, ids, conversion.Options{})
			if !errors.Is(err, services.ErrInvalidRequest) {
				t.Fatalf("expected ErrInvalidRequest, got %v", err)
			}
		})
	}
	if env.Agent.Calls() != 0 {
		t.Fatalf("expected no connector calls, got %d", env.Agent.Calls())
	}
}

func TestEnqueueForwardsOptionsAndReturnsAckUnchanged(t *testing.T) {
	env := testsupport.NewEnv(t)
	site := env.Connected(t)

	ack, err := newCoordinator(env).Enqueue(context.Background(), site.ID, []string{" 12 ", "7", "12"}, conversion.Options{FlushCache: boolPtr(false)})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(ack, &payload); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if payload["message"] != "Images queued" || payload["queued"] != float64(2) {
		t.Fatalf("unexpected ack %v", payload)
	}

	var sent struct {
		IDs         []json.Number `json:"ids"`
		KeepBackups bool          `json:"keep_backups"`
		FlushCache  bool          `json:"flush_cache"`
		ReplaceURLs bool          `json:"replace_urls"`
	}
	if err := json.Unmarshal(env.Agent.LastBody(agent.PathQueueWebP), &sent); err != nil {
		t.Fatalf("decode request: %v", err)
	}
	if len(sent.IDs) != 2 || sent.IDs[0] != "12" || sent.IDs[1] != "7" {
		t.Fatalf("expected deduplicated ids [12 7], got %v", sent.IDs)
	}
	if !sent.KeepBackups || sent.FlushCache || !sent.ReplaceURLs {
		t.Fatalf("unexpected flags %+v", sent)
	}
}

func TestEnqueueRejectionIsReturned(t *testing.T) {
	env := testsupport.NewEnv(t)
	site := env.Connected(t)
	env.Agent.FailAll(http.StatusInternalServerError, `{"code":"queue_full","message":"Queue is full"}`)

	_, err := newCoordinator(env).Enqueue(context.Background(), site.ID, []string{"1"}, conversion.Options{})
	if !errors.Is(err, services.ErrAgentRejected) {
		t.Fatalf("expected ErrAgentRejected, got %v", err)
	}
	if !strings.Contains(services.UserMessage(err), "Queue is full") {
		t.Fatalf("expected connector message in %q", services.UserMessage(err))
	}
}

func TestStatusDegradesToZeroValue(t *testing.T) {
	env := testsupport.NewEnv(t)
	coord := newCoordinator(env)
	ctx := context.Background()

	disconnected := env.Disconnected(t)
	status, err := coord.Status(ctx, disconnected.ID)
	if err != nil || status != (conversion.Status{}) {
		t.Fatalf("disconnected: expected zero status, got %+v %v", status, err)
	}
	if calls := env.Agent.Calls(); calls != 0 {
		t.Fatalf("disconnected: expected no connector calls, got %d", calls)
	}

	unreachable := env.Unreachable(t)
	status, err = coord.Status(ctx, unreachable.ID)
	if err != nil || status != (conversion.Status{}) {
		t.Fatalf("unreachable: expected zero status, got %+v %v", status, err)
	}
}

func TestStatusUnknownSiteIsNotFound(t *testing.T) {
	env := testsupport.NewEnv(t)
	_, err := newCoordinator(env).Status(context.Background(), 999)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStatusParsesConnectorVariants(t *testing.T) {
	cases := []struct {
		name string
		body string
		want conversion.Status
	}{
		{
			name: "camel case",
			body: `{"pending":1,"completed":2,"failed":0,"total":3,"isProcessing":true}`,
			want: conversion.Status{Pending: 1, Completed: 2, Total: 3, IsProcessing: true},
		},
		{
			name: "derived total and flag",
			body: `{"pending":"2","processing":1,"completed":4,"failed":1}`,
			want: conversion.Status{Pending: 2, Completed: 4, Failed: 1, Total: 8, IsProcessing: true},
		},
		{
			name: "idle",
			body: `{"completed":5,"failed":1}`,
			want: conversion.Status{Completed: 5, Failed: 1, Total: 6},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := testsupport.NewEnv(t)
			site := env.Connected(t)
			env.Agent.RespondRaw(http.MethodGet, agent.PathQueueStatus, tc.body)

			got, err := newCoordinator(env).Status(context.Background(), site.ID)
			if err != nil {
				t.Fatalf("Status: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %+v, got %+v", tc.want, got)
			}
		})
	}
}

func TestEnqueueThenPollUntilSettled(t *testing.T) {
	env := testsupport.NewEnv(t)
	site := env.Connected(t)
	env.Agent.FailConversionOf("3")
	coord := newCoordinator(env)
	ctx := context.Background()

	if _, err := coord.Enqueue(ctx, site.ID, []string{"1", "2", "3"}, conversion.Options{}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	var seen []conversion.Status
	final, err := coord.Wait(ctx, site.ID, conversion.WaitOptions{
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		OnStatus:        func(s conversion.Status) { seen = append(seen, s) },
	})
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !final.Settled() || final.Total != 3 || final.Completed != 2 || final.Failed != 1 {
		t.Fatalf("unexpected final status %+v", final)
	}
	if len(seen) < 2 || !seen[0].IsProcessing {
		t.Fatalf("expected progress snapshots, got %+v", seen)
	}
}

func TestWaitFailsFastWhenDisconnected(t *testing.T) {
	env := testsupport.NewEnv(t)
	site := env.Disconnected(t)

	_, err := newCoordinator(env).Wait(context.Background(), site.ID, conversion.WaitOptions{InitialInterval: time.Millisecond})
	if !errors.Is(err, services.ErrSiteNotConnected) {
		t.Fatalf("expected ErrSiteNotConnected, got %v", err)
	}
}

func TestRevertNormalizesResponse(t *testing.T) {
	env := testsupport.NewEnv(t)
	site := env.Connected(t)
	coord := newCoordinator(env)
	ctx := context.Background()

	result, err := coord.Revert(ctx, site.ID, "42")
	if err != nil {
		t.Fatalf("Revert: %v", err)
	}
	if !result.Success || result.Message != conversion.DefaultRevertMessage || result.ID != nil {
		t.Fatalf("unexpected default result %+v", result)
	}
	if got := string(env.Agent.LastBody(agent.PathRevertWebP)); got != `{"image_id":42}` {
		t.Fatalf("unexpected request body %s", got)
	}

	env.Agent.SetRevertResponse(map[string]any{"success": false, "message": "No backup", "id": "abc"})
	result, err = coord.Revert(ctx, site.ID, "42")
	if err != nil {
		t.Fatalf("Revert: %v", err)
	}
	if result.Success || result.Message != "No backup" || string(result.ID) != `"abc"` {
		t.Fatalf("unexpected result %+v", result)
	}

	for _, success := range []any{"true", 1} {
		env.Agent.SetRevertResponse(map[string]any{"success": success, "id": 42})
		result, err = coord.Revert(ctx, site.ID, "42")
		if err != nil {
			t.Fatalf("Revert: %v", err)
		}
		if !result.Success || result.Message != conversion.DefaultRevertMessage || string(result.ID) != "42" {
			t.Fatalf("success=%v: unexpected result %+v", success, result)
		}
	}
}

func TestRevertRequiresConnectionAndID(t *testing.T) {
	env := testsupport.NewEnv(t)
	coord := newCoordinator(env)
	ctx := context.Background()

	connected := env.Connected(t)
	if _, err := coord.Revert(ctx, connected.ID, " "); !errors.Is(err, services.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}

	other := testsupport.NewFakeAgent(t, env.Config.Agent.APIPrefix)
	disconnected := testsupport.NewDisconnectedSite(t, env.Registry, other.URL())
	if _, err := coord.Revert(ctx, disconnected.ID, "1"); !errors.Is(err, services.ErrSiteNotConnected) {
		t.Fatalf("expected ErrSiteNotConnected, got %v", err)
	}
	if other.Calls() != 0 || env.Agent.Calls() != 0 {
		t.Fatalf("expected no connector calls")
	}
}

func TestHandleUploadHonorsAutoConvertSetting(t *testing.T) {
	env := testsupport.NewEnv(t)
	site := env.Connected(t)
	coord := newCoordinator(env)
	ctx := context.Background()

	result, err := coord.HandleUpload(ctx, site.ID, []string{"5"})
	if err != nil {
		t.Fatalf("HandleUpload: %v", err)
	}
	if result.Queued || env.Agent.Calls() != 0 {
		t.Fatalf("expected skip without network, got %+v calls=%d", result, env.Agent.Calls())
	}

	if _, err := env.Settings.Update(ctx, site.ID, map[string]any{settings.KeyAutoConvertToWebP: true}); err != nil {
		t.Fatalf("Update settings: %v", err)
	}
	result, err = coord.HandleUpload(ctx, site.ID, []string{"5"})
	if err != nil {
		t.Fatalf("HandleUpload: %v", err)
	}
	if !result.Queued || len(result.Ack) == 0 {
		t.Fatalf("expected queued result, got %+v", result)
	}
	if ids := env.Agent.QueueIDs(); len(ids) != 1 || ids[0] != "5" {
		t.Fatalf("expected media 5 queued, got %v", ids)
	}
}

func TestStatusDuringDisconnectSeesZeroOrFullSnapshot(t *testing.T) {
	env := testsupport.NewEnv(t)
	site := env.Connected(t)
	coord := newCoordinator(env)
	ctx := context.Background()

	if _, err := coord.Enqueue(ctx, site.ID, []string{"1", "2", "3"}, conversion.Options{}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, err := coord.Status(ctx, site.ID)
			if err != nil {
				errs <- err
				return
			}
			if status != (conversion.Status{}) && status.Total != 3 {
				errs <- fmt.Errorf("inconsistent snapshot %+v", status)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := env.Registry.Disconnect(ctx, site.ID); err != nil {
			errs <- err
		}
	}()
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}

	status, err := coord.Status(ctx, site.ID)
	if err != nil || status != (conversion.Status{}) {
		t.Fatalf("after disconnect: expected zero status, got %+v %v", status, err)
	}
}
