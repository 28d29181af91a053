// Package redirects reads and clears the old-URL to new-URL table a
// connector maintains after converting images.
package redirects

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"

	"sitekeeper/internal/agent"
	"sitekeeper/internal/logging"
	"sitekeeper/internal/services"
	"sitekeeper/internal/sites"
)

// Listing is the redirect table as presented to callers. Count always equals
// len(Redirects).
type Listing struct {
	Redirects map[string]string `json:"redirects"`
	Count     int               `json:"count"`
}

// Sources returns the old URLs in sorted order.
func (l Listing) Sources() []string {
	out := make([]string, 0, len(l.Redirects))
	for from := range l.Redirects {
		out = append(out, from)
	}
	sort.Strings(out)
	return out
}

// Registry is a read-through view of a connector's redirect table.
type Registry struct {
	sites  *sites.Registry
	client agent.Doer
	logger *slog.Logger
}

// NewRegistry wires the redirect registry.
func NewRegistry(registry *sites.Registry, client agent.Doer, logger *slog.Logger) *Registry {
	return &Registry{sites: registry, client: client, logger: logging.NewComponentLogger(logger, "redirects")}
}

// List returns the site's redirects. Disconnected sites and connector failures
// yield an empty listing rather than an error.
func (r *Registry) List(ctx context.Context, siteID int64) (Listing, error) {
	ctx = services.WithOperation(services.WithSiteID(ctx, siteID), "list redirects")
	site, err := r.sites.Get(ctx, siteID)
	if err != nil {
		return Listing{}, err
	}
	empty := Listing{Redirects: map[string]string{}}
	if !sites.IsConnected(site) {
		return empty, nil
	}
	raw, err := r.client.Do(ctx, site, agent.Request{Method: http.MethodGet, Path: agent.PathMediaRedirects})
	if err == nil {
		var table map[string]string
		table, err = parseTable(raw)
		if err == nil {
			return Listing{Redirects: table, Count: len(table)}, nil
		}
	}
	logging.WarnWithContext(ctx, r.logger, "redirect table unavailable; reporting none", "redirect_list_degraded",
		logging.ErrorKind(err),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check that the site is online and the connector plugin is active"),
	)
	return empty, nil
}

// Clear asks the connector to drop its redirect table and returns the
// acknowledgement unchanged. Failures are returned to the caller.
func (r *Registry) Clear(ctx context.Context, siteID int64) (json.RawMessage, error) {
	ctx = services.WithOperation(services.WithSiteID(ctx, siteID), "clear redirects")
	site, err := r.sites.Get(ctx, siteID)
	if err != nil {
		return nil, err
	}
	if !sites.IsConnected(site) {
		return nil, services.Wrap(services.ErrSiteNotConnected, "redirects", "clear",
			fmt.Sprintf("site %d (%s) has no connector credentials", site.ID, site.Name), nil)
	}
	ack, err := r.client.Do(ctx, site, agent.Request{Method: http.MethodDelete, Path: agent.PathMediaRedirects})
	if err != nil {
		r.logger.ErrorContext(ctx, "redirect clear failed",
			logging.ErrorKind(err),
			logging.Error(err),
			logging.String(logging.FieldEventType, "redirect_clear_failed"),
		)
		return nil, err
	}
	r.logger.InfoContext(ctx, "redirect table cleared",
		logging.String(logging.FieldEventType, "redirects_cleared"),
	)
	return ack, nil
}

// parseTable accepts a bare map or one wrapped in {"redirects": {...}}.
// Non-string targets are dropped.
func parseTable(raw json.RawMessage) (map[string]string, error) {
	m, ok := agent.Object(raw)
	if !ok {
		// WordPress serializes an empty associative array as [].
		var list []any
		if err := json.Unmarshal(raw, &list); err == nil && len(list) == 0 {
			return map[string]string{}, nil
		}
		return nil, &agent.Error{
			Kind:    services.KindMalformedResponse,
			Method:  http.MethodGet,
			Path:    agent.PathMediaRedirects,
			Message: "redirect table is not a JSON object",
			Err:     errors.New("unexpected payload shape"),
		}
	}
	if nested, ok := m["redirects"]; ok {
		switch v := nested.(type) {
		case map[string]any:
			m = v
		case []any:
			m = map[string]any{}
		}
	}
	table := make(map[string]string, len(m))
	for from, to := range m {
		if s, ok := to.(string); ok {
			table[from] = s
		}
	}
	return table, nil
}
