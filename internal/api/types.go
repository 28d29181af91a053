package api

import (
	"time"

	"sitekeeper/internal/agent"
	"sitekeeper/internal/sites"
)

// SiteView is the transport form of a site. Secrets are never included.
type SiteView struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	BaseURL       string `json:"baseUrl"`
	Connected     bool   `json:"connected"`
	PluginVersion string `json:"pluginVersion,omitempty"`
	AgentVersion  string `json:"agentVersion,omitempty"`
	CreatedAt     string `json:"createdAt"`
	UpdatedAt     string `json:"updatedAt"`
}

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// FromSite converts a stored site.
func FromSite(site *sites.Site) SiteView {
	if site == nil {
		return SiteView{}
	}
	return SiteView{
		ID:            site.ID,
		Name:          site.Name,
		BaseURL:       site.BaseURL,
		Connected:     sites.IsConnected(site),
		PluginVersion: site.PluginVersion,
		AgentVersion:  site.AgentVersion,
		CreatedAt:     formatTime(site.CreatedAt),
		UpdatedAt:     formatTime(site.UpdatedAt),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// SiteListResponse wraps GET /api/sites.
type SiteListResponse struct {
	Sites []SiteView `json:"sites"`
}

// SiteCredentialsResponse is returned when credentials are issued. It is the
// only response that carries the secret.
type SiteCredentialsResponse struct {
	Site        SiteView          `json:"site"`
	Credentials sites.Credentials `json:"credentials"`
}

// RegisterSiteRequest is the body of POST /api/sites.
type RegisterSiteRequest struct {
	Name    string `json:"name" validate:"omitempty,max=128"`
	BaseURL string `json:"baseUrl" validate:"required,url,max=2048"`
}

// VersionsRequest is the body of PUT /api/sites/{siteID}/versions.
type VersionsRequest struct {
	PluginVersion string `json:"pluginVersion" validate:"required,max=64"`
	AgentVersion  string `json:"agentVersion" validate:"required,max=64"`
}

// EnqueueRequest is the body of POST /api/sites/{siteID}/conversions.
type EnqueueRequest struct {
	IDs         []agent.MediaID `json:"ids" validate:"required,min=1,max=500"`
	KeepBackups *bool           `json:"keepBackups"`
	FlushCache  *bool           `json:"flushCache"`
	ReplaceURLs *bool           `json:"replaceUrls"`
}

// UploadRequest is the body of POST /api/sites/{siteID}/uploads.
type UploadRequest struct {
	IDs []agent.MediaID `json:"ids" validate:"required,min=1,max=500"`
}

// OptimizeRequest is the body of POST .../media/{mediaID}/ai-optimize.
type OptimizeRequest struct {
	ApplyFilename bool   `json:"applyFilename"`
	ApplyAltText  bool   `json:"applyAltText"`
	PageContext   string `json:"pageContext" validate:"max=4000"`
	Language      string `json:"language" validate:"omitempty,max=35"`
}

// MediaListResponse wraps media list endpoints.
type MediaListResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

// ErrorResponse is the error envelope.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields,omitempty"`
}
