package preflight

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"sitekeeper/internal/agent"
	"sitekeeper/internal/services"
	"sitekeeper/internal/sites"
)

// SiteProbe is the reachability snapshot of one connector.
type SiteProbe struct {
	SiteID    int64         `json:"siteId"`
	Name      string        `json:"name"`
	BaseURL   string        `json:"baseUrl"`
	Connected bool          `json:"connected"`
	Reachable bool          `json:"reachable"`
	Kind      string        `json:"kind,omitempty"`
	Detail    string        `json:"detail"`
	Latency   time.Duration `json:"latency"`
}

// Result renders the probe as a check result.
func (p SiteProbe) Result() Result {
	return Result{Name: p.Name, Passed: p.Reachable, Detail: p.Detail}
}

// CheckSite issues one signed stats read to the connector. Disconnected sites
// are reported without network I/O.
func CheckSite(ctx context.Context, client agent.Doer, site *sites.Site) SiteProbe {
	probe := SiteProbe{
		SiteID:    site.ID,
		Name:      site.Name,
		BaseURL:   site.BaseURL,
		Connected: sites.IsConnected(site),
	}
	if !probe.Connected {
		probe.Kind = services.KindSiteNotConnected
		probe.Detail = "Not connected"
		return probe
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	start := time.Now()
	_, err := client.Do(checkCtx, site, agent.Request{Method: http.MethodGet, Path: agent.PathMediaStats})
	probe.Latency = time.Since(start)
	if err != nil {
		probe.Kind = services.Kind(err)
		probe.Detail = services.UserMessage(err)
		return probe
	}
	probe.Reachable = true
	probe.Detail = fmt.Sprintf("Reachable (%s)", probe.Latency.Round(time.Millisecond))
	return probe
}
