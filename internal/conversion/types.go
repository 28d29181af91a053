package conversion

import "encoding/json"

// DefaultRevertMessage is reported when the connector omits one.
const DefaultRevertMessage = "Image reverted"

// Options are the per-batch conversion flags. A nil field means true.
type Options struct {
	KeepBackups *bool `json:"keepBackups,omitempty"`
	FlushCache  *bool `json:"flushCache,omitempty"`
	ReplaceURLs *bool `json:"replaceUrls,omitempty"`
}

func (o Options) resolved() (keepBackups, flushCache, replaceURLs bool) {
	return orTrue(o.KeepBackups), orTrue(o.FlushCache), orTrue(o.ReplaceURLs)
}

func orTrue(v *bool) bool {
	if v == nil {
		return true
	}
	return *v
}

// Status is the connector's queue snapshot. The zero value is what callers see
// when the site is disconnected or unreachable.
type Status struct {
	Pending      int  `json:"pending"`
	Completed    int  `json:"completed"`
	Failed       int  `json:"failed"`
	Total        int  `json:"total"`
	IsProcessing bool `json:"isProcessing"`
}

// Settled reports whether every queued entry reached a terminal state.
func (s Status) Settled() bool {
	return !s.IsProcessing && s.Completed+s.Failed == s.Total
}

// RevertResult is the normalized revert acknowledgement. ID is the
// connector's value passed through untouched and is omitted when absent.
type RevertResult struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	ID      json.RawMessage `json:"id,omitempty"`
}

// UploadResult reports what HandleUpload did with newly uploaded media.
type UploadResult struct {
	Queued bool            `json:"queued"`
	Reason string          `json:"reason,omitempty"`
	Ack    json.RawMessage `json:"ack,omitempty"`
}
