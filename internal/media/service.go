package media

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/text/language"

	"sitekeeper/internal/agent"
	"sitekeeper/internal/config"
	"sitekeeper/internal/logging"
	"sitekeeper/internal/services"
	"sitekeeper/internal/sites"
)

// DefaultLanguage is used by AIOptimize when no language is given.
const DefaultLanguage = "en"

// Service reads media views from connectors.
type Service struct {
	sites          *sites.Registry
	client         agent.Doer
	defaultPerPage int
	maxPerPage     int
	logger         *slog.Logger
}

// NewService wires the media service using the [media] config section.
func NewService(cfg *config.Config, registry *sites.Registry, client agent.Doer, logger *slog.Logger) *Service {
	return &Service{
		sites:          registry,
		client:         client,
		defaultPerPage: cfg.Media.DefaultPerPage,
		maxPerPage:     cfg.Media.MaxPerPage,
		logger:         logging.NewComponentLogger(logger, "media"),
	}
}

// Stats returns image counts. Failures yield zero counts.
func (s *Service) Stats(ctx context.Context, siteID int64) (Stats, error) {
	raw, ok, err := s.read(ctx, siteID, "stats", agent.Request{Method: http.MethodGet, Path: agent.PathMediaStats})
	if err != nil || !ok {
		return Stats{}, err
	}
	m, isObject := agent.Object(raw)
	if !isObject {
		s.degraded(ctx, "stats", malformed(agent.PathMediaStats, "stats payload is not a JSON object"))
		return Stats{}, nil
	}
	total, _ := agent.Int(m, "total")
	webp, _ := agent.Int(m, "webp")
	nonWebP, ok := agent.Int(m, "nonWebp", "non_webp")
	if !ok && total >= webp {
		nonWebP = total - webp
	}
	return Stats{Total: total, WebP: webp, NonWebP: nonWebP}, nil
}

// List returns up to perPage images. perPage is clamped to the configured
// maximum; values below one use the configured default.
func (s *Service) List(ctx context.Context, siteID int64, perPage int) ([]Item, error) {
	query := url.Values{}
	query.Set("per_page", strconv.Itoa(s.perPage(perPage)))
	query.Set("mime_type", "image")
	raw, ok, err := s.read(ctx, siteID, "list", agent.Request{Method: http.MethodGet, Path: agent.PathMedia, Query: query})
	if err != nil || !ok {
		return []Item{}, err
	}
	return s.items(ctx, "list", agent.PathMedia, raw), nil
}

// NonWebP returns images the connector has not yet converted.
func (s *Service) NonWebP(ctx context.Context, siteID int64) ([]Item, error) {
	raw, ok, err := s.read(ctx, siteID, "non-webp", agent.Request{Method: http.MethodGet, Path: agent.PathNonWebPImages})
	if err != nil || !ok {
		return []Item{}, err
	}
	return s.items(ctx, "non-webp", agent.PathNonWebPImages, raw), nil
}

// AIOptimize asks the connector to generate a filename and alt text for one
// image. The connector's response is returned unchanged.
func (s *Service) AIOptimize(ctx context.Context, siteID int64, imageID string, opts OptimizeOptions) (json.RawMessage, error) {
	ctx = services.WithOperation(services.WithSiteID(ctx, siteID), "ai optimize")
	id := strings.TrimSpace(imageID)
	if id == "" {
		return nil, services.Wrap(services.ErrInvalidRequest, "media", "ai optimize", "image id is required", nil)
	}
	lang := strings.TrimSpace(opts.Language)
	if lang == "" {
		lang = DefaultLanguage
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return nil, services.Wrap(services.ErrInvalidRequest, "media", "ai optimize",
			fmt.Sprintf("language %q is not a valid BCP 47 tag", lang), err)
	}

	site, err := s.sites.Get(ctx, siteID)
	if err != nil {
		return nil, err
	}
	if !sites.IsConnected(site) {
		return nil, services.Wrap(services.ErrSiteNotConnected, "media", "ai optimize",
			fmt.Sprintf("site %d (%s) has no connector credentials", site.ID, site.Name), nil)
	}
	ack, err := s.client.Do(ctx, site, agent.Request{
		Method: http.MethodPost,
		Path:   agent.PathAIOptimize,
		Body: agent.AIOptimizeRequest{
			ImageID:       agent.MediaID(id),
			ApplyFilename: opts.ApplyFilename,
			ApplyAltText:  opts.ApplyAltText,
			PageContext:   strings.TrimSpace(opts.PageContext),
			Language:      tag.String(),
		},
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "ai optimize failed",
			logging.String("media_id", id),
			logging.ErrorKind(err),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ai_optimize_failed"),
		)
		return nil, err
	}
	s.logger.InfoContext(ctx, "ai optimize requested",
		logging.String("media_id", id),
		logging.String("language", tag.String()),
		logging.String(logging.FieldEventType, "ai_optimize_requested"),
	)
	return ack, nil
}

// read resolves the site and performs a soft read. ok is false when the read
// degraded; err is only set for lookups that fail locally (unknown site).
func (s *Service) read(ctx context.Context, siteID int64, operation string, req agent.Request) (json.RawMessage, bool, error) {
	ctx = services.WithOperation(services.WithSiteID(ctx, siteID), "media "+operation)
	site, err := s.sites.Get(ctx, siteID)
	if err != nil {
		return nil, false, err
	}
	if !sites.IsConnected(site) {
		return nil, false, nil
	}
	raw, err := s.client.Do(ctx, site, req)
	if err != nil {
		s.degraded(ctx, operation, err)
		return nil, false, nil
	}
	return raw, true, nil
}

func (s *Service) degraded(ctx context.Context, operation string, err error) {
	logging.WarnWithContext(ctx, s.logger, "media read unavailable; reporting empty result", "media_read_degraded",
		logging.String("read", operation),
		logging.ErrorKind(err),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check that the site is online and the connector plugin is active"),
	)
}

func (s *Service) perPage(requested int) int {
	if requested < 1 {
		requested = s.defaultPerPage
	}
	if s.maxPerPage > 0 && requested > s.maxPerPage {
		requested = s.maxPerPage
	}
	return requested
}

// items accepts a bare array or one wrapped under "images" or "items".
func (s *Service) items(ctx context.Context, operation, path string, raw json.RawMessage) []Item {
	var list []map[string]any
	if err := decodeList(raw, &list); err != nil {
		var envelope map[string]json.RawMessage
		if jerr := json.Unmarshal(raw, &envelope); jerr == nil {
			for _, key := range []string{"images", "items", "media"} {
				if inner, ok := envelope[key]; ok {
					err = decodeList(inner, &list)
					break
				}
			}
		}
		if err != nil {
			s.degraded(ctx, operation, malformed(path, "media list is not a JSON array"))
			return []Item{}
		}
	}
	out := make([]Item, 0, len(list))
	for _, entry := range list {
		out = append(out, toItem(entry))
	}
	return out
}

func decodeList(raw json.RawMessage, dest *[]map[string]any) error {
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	return dec.Decode(dest)
}

// toItem maps WordPress REST attachment fields and their flattened variants.
func toItem(m map[string]any) Item {
	item := Item{}
	item.ID, _ = agent.String(m, "id", "ID")
	item.Title, _ = agent.String(m, "title")
	item.URL, _ = agent.String(m, "source_url", "url", "guid")
	item.Alt, _ = agent.String(m, "alt_text", "alt")
	item.MimeType, _ = agent.String(m, "mime_type", "mimeType")
	if thumb, ok := agent.String(m, "thumbnail", "thumbnail_url"); ok {
		item.Thumbnail = thumb
	} else if details, ok := m["media_details"].(map[string]any); ok {
		if sizes, ok := details["sizes"].(map[string]any); ok {
			if small, ok := sizes["thumbnail"].(map[string]any); ok {
				item.Thumbnail, _ = agent.String(small, "source_url")
			}
		}
	}
	if item.Thumbnail == "" {
		item.Thumbnail = item.URL
	}
	return item
}

func malformed(path, message string) error {
	return &agent.Error{Kind: services.KindMalformedResponse, Method: http.MethodGet, Path: path, Message: message}
}
