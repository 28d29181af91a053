package settings

import (
	"context"
	"encoding/json"
	"log/slog"

	"sitekeeper/internal/logging"
	"sitekeeper/internal/services"
	"sitekeeper/internal/sites"
)

// KeyAutoConvertToWebP toggles conversion of newly uploaded images.
const KeyAutoConvertToWebP = "autoConvertToWebp"

// ToolSettings is the typed view of the recognized keys.
type ToolSettings struct {
	AutoConvertToWebP bool `json:"autoConvertToWebp"`
}

// Store reads and merges per-site tool settings. The stored map is open:
// keys it does not recognize are preserved verbatim.
type Store struct {
	sites  *sites.Store
	logger *slog.Logger
}

// NewStore wraps the site store.
func NewStore(store *sites.Store, logger *slog.Logger) *Store {
	return &Store{sites: store, logger: logging.NewComponentLogger(logger, "settings")}
}

// Get returns the stored settings with unset recognized keys defaulted.
func (s *Store) Get(ctx context.Context, siteID int64) (map[string]any, error) {
	stored, err := s.sites.LoadSettings(ctx, siteID)
	if err != nil {
		return nil, err
	}
	return withDefaults(stored), nil
}

// Typed returns the recognized settings.
func (s *Store) Typed(ctx context.Context, siteID int64) (ToolSettings, error) {
	stored, err := s.Get(ctx, siteID)
	if err != nil {
		return ToolSettings{}, err
	}
	auto, _ := stored[KeyAutoConvertToWebP].(bool)
	return ToolSettings{AutoConvertToWebP: auto}, nil
}

// Update merges the recognized, correctly typed keys of patch into the stored
// map and returns the result. Unrecognized or mistyped fields are ignored.
func (s *Store) Update(ctx context.Context, siteID int64, patch map[string]any) (map[string]any, error) {
	accepted := Sanitize(patch)
	ctx = services.WithSiteID(ctx, siteID)
	if ignored := len(patch) - len(accepted); ignored > 0 {
		s.logger.DebugContext(ctx, "settings patch fields ignored", logging.Int("ignored", ignored))
	}
	merged, err := s.sites.UpdateSettings(ctx, siteID, func(current map[string]any) {
		for k, v := range accepted {
			current[k] = v
		}
	})
	if err != nil {
		return nil, err
	}
	return withDefaults(merged), nil
}

// Sanitize keeps only recognized keys carrying the expected type.
func Sanitize(patch map[string]any) map[string]any {
	out := map[string]any{}
	if v, ok := patch[KeyAutoConvertToWebP].(bool); ok {
		out[KeyAutoConvertToWebP] = v
	}
	return out
}

// DecodePatch parses a JSON patch body. Non-object bodies yield an empty patch.
func DecodePatch(body []byte) map[string]any {
	var patch map[string]any
	if err := json.Unmarshal(body, &patch); err != nil {
		return map[string]any{}
	}
	return patch
}

func withDefaults(stored map[string]any) map[string]any {
	out := make(map[string]any, len(stored)+1)
	for k, v := range stored {
		out[k] = v
	}
	if _, ok := out[KeyAutoConvertToWebP].(bool); !ok {
		out[KeyAutoConvertToWebP] = false
	}
	return out
}
