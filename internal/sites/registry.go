package sites

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"sitekeeper/internal/logging"
	"sitekeeper/internal/services"
)

// IsConnected reports whether site holds a usable key/secret pair. It is the
// single predicate every agent call is gated on.
func IsConnected(site *Site) bool {
	if site == nil {
		return false
	}
	return strings.TrimSpace(site.Key) != "" && strings.TrimSpace(site.Secret) != ""
}

// Registry owns per-site connection state on top of the Store.
type Registry struct {
	store          *Store
	logger         *slog.Logger
	newCredentials func() (Credentials, error)
}

// NewRegistry wraps store. A nil logger discards output.
func NewRegistry(store *Store, logger *slog.Logger) *Registry {
	return &Registry{
		store:          store,
		logger:         logging.NewComponentLogger(logger, "sites"),
		newCredentials: GenerateCredentials,
	}
}

// Store exposes the backing store for collaborators such as the settings store.
func (r *Registry) Store() *Store { return r.store }

// Get loads a site, failing with ErrNotFound when it does not exist. Each call
// reads one row, so the credential pair it returns is a consistent snapshot.
func (r *Registry) Get(ctx context.Context, id int64) (*Site, error) {
	site, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if site == nil {
		return nil, notFound("get", id)
	}
	return site, nil
}

// List returns every registered site.
func (r *Registry) List(ctx context.Context) ([]*Site, error) {
	return r.store.List(ctx)
}

// IsConnected loads the site and applies IsConnected.
func (r *Registry) IsConnected(ctx context.Context, id int64) (bool, error) {
	site, err := r.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return IsConnected(site), nil
}

// Register creates a site with freshly generated credentials. The returned
// credentials are the only time the secret is handed out.
func (r *Registry) Register(ctx context.Context, name, baseURL string) (*Site, Credentials, error) {
	normalized, err := NormalizeBaseURL(baseURL)
	if err != nil {
		return nil, Credentials{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		if parsed, perr := url.Parse(normalized); perr == nil {
			name = parsed.Host
		}
	}
	creds, err := r.newCredentials()
	if err != nil {
		return nil, Credentials{}, fmt.Errorf("generate credentials: %w", err)
	}
	site, err := r.store.Insert(ctx, &Site{
		Name:    name,
		BaseURL: normalized,
		Key:     creds.Key,
		Secret:  creds.Secret,
	})
	if err != nil {
		return nil, Credentials{}, err
	}
	r.logger.InfoContext(services.WithSiteID(ctx, site.ID), "site registered",
		logging.String("base_url", site.BaseURL),
		logging.String(logging.FieldEventType, "site_registered"),
	)
	return site, creds, nil
}

// Connect issues a brand-new credential pair for the site. Previous
// credentials are never reused, including after a disconnect.
func (r *Registry) Connect(ctx context.Context, id int64) (*Site, Credentials, error) {
	creds, err := r.newCredentials()
	if err != nil {
		return nil, Credentials{}, fmt.Errorf("generate credentials: %w", err)
	}
	if err := r.store.SetCredentials(ctx, id, creds); err != nil {
		return nil, Credentials{}, err
	}
	site, err := r.Get(ctx, id)
	if err != nil {
		return nil, Credentials{}, err
	}
	r.logger.InfoContext(services.WithSiteID(ctx, id), "site credentials issued",
		logging.String("key", creds.Key),
		logging.String(logging.FieldEventType, "site_connected"),
	)
	return site, creds, nil
}

// Disconnect clears key, secret, and versions atomically. It is local only: a
// connector that already holds the old credentials is not told to forget them,
// but every future platform request is refused before any network I/O.
func (r *Registry) Disconnect(ctx context.Context, id int64) (*Site, error) {
	if err := r.store.ClearCredentials(ctx, id); err != nil {
		return nil, err
	}
	site, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	r.logger.InfoContext(services.WithSiteID(ctx, id), "site disconnected",
		logging.String(logging.FieldEventType, "site_disconnected"),
	)
	return site, nil
}

// RecordVersions stores the plugin and agent versions reported for a connected site.
func (r *Registry) RecordVersions(ctx context.Context, id int64, pluginVersion, agentVersion string) (*Site, error) {
	site, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !IsConnected(site) {
		return nil, services.Wrap(services.ErrSiteNotConnected, "sites", "record versions", site.Name, nil)
	}
	if err := r.store.SetVersions(ctx, id, strings.TrimSpace(pluginVersion), strings.TrimSpace(agentVersion)); err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

// Remove deletes the site.
func (r *Registry) Remove(ctx context.Context, id int64) error {
	return r.store.Delete(ctx, id)
}

// GenerateCredentials returns a fresh key and a 256-bit random secret.
func GenerateCredentials() (Credentials, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return Credentials{}, err
	}
	return Credentials{
		Key:    "ck_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Secret: "cs_" + base64.RawURLEncoding.EncodeToString(buf),
	}, nil
}

// NormalizeBaseURL validates a site URL and strips trailing slashes, queries,
// and fragments.
func NormalizeBaseURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", services.Wrap(services.ErrInvalidRequest, "sites", "normalize url", "base url is required", nil)
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", services.Wrap(services.ErrInvalidRequest, "sites", "normalize url", "invalid base url", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", services.Wrap(services.ErrInvalidRequest, "sites", "normalize url",
			fmt.Sprintf("unsupported scheme %q", parsed.Scheme), nil)
	}
	if parsed.Host == "" {
		return "", services.Wrap(services.ErrInvalidRequest, "sites", "normalize url", "base url must include a host", nil)
	}
	parsed.RawQuery = ""
	parsed.Fragment = ""
	parsed.User = nil
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Path = strings.TrimRight(parsed.Path, "/")
	return parsed.String(), nil
}
