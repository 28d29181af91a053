package agent

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Logical connector paths.
const (
	PathMediaStats     = "/media/stats"
	PathMedia          = "/media"
	PathNonWebPImages  = "/media/non-webp-images"
	PathAIOptimize     = "/media/ai-optimize"
	PathQueueWebP      = "/media/queue-webp"
	PathQueueStatus    = "/media/queue-status"
	PathRevertWebP     = "/media/revert-webp"
	PathMediaRedirects = "/media/redirects"
)

// MediaID identifies a media item on the connector. Canonical decimal
// identifiers are sent as JSON numbers, anything else (including "007" or
// "+5") as a string so the connector sees exactly what the caller passed.
type MediaID string

func (id MediaID) MarshalJSON() ([]byte, error) {
	trimmed := strings.TrimSpace(string(id))
	if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil && strconv.FormatInt(n, 10) == trimmed {
		return []byte(trimmed), nil
	}
	return json.Marshal(trimmed)
}

func (id *MediaID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = MediaID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = MediaID(n.String())
	return nil
}

// QueueWebPRequest is the body of PathQueueWebP.
type QueueWebPRequest struct {
	IDs         []MediaID `json:"ids"`
	KeepBackups bool      `json:"keep_backups"`
	FlushCache  bool      `json:"flush_cache"`
	ReplaceURLs bool      `json:"replace_urls"`
}

// RevertWebPRequest is the body of PathRevertWebP.
type RevertWebPRequest struct {
	ImageID MediaID `json:"image_id"`
}

// AIOptimizeRequest is the body of PathAIOptimize.
type AIOptimizeRequest struct {
	ImageID       MediaID `json:"image_id"`
	ApplyFilename bool    `json:"apply_filename"`
	ApplyAltText  bool    `json:"apply_alt_text"`
	PageContext   string  `json:"page_context"`
	Language      string  `json:"language"`
}
