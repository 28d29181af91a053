package services

import (
	"errors"
	"fmt"
	"strings"
)

// Error markers. Every failure surfaced by the agent client, the registries,
// and the coordinator carries exactly one of these so callers can branch with
// errors.Is regardless of how many layers wrapped it.
var (
	ErrInvalidRequest     = errors.New("invalid request")
	ErrSiteNotConnected   = errors.New("site not connected")
	ErrNetworkUnavailable = errors.New("network unavailable")
	ErrAgentRejected      = errors.New("agent rejected request")
	ErrMalformedResponse  = errors.New("malformed agent response")
	ErrNotFound           = errors.New("not found")
	ErrConfiguration      = errors.New("configuration error")
)

// Kind names used in API error envelopes and logs.
const (
	KindInvalidRequest     = "invalid_request"
	KindSiteNotConnected   = "site_not_connected"
	KindNetworkUnavailable = "network_unavailable"
	KindAgentRejected      = "agent_rejected"
	KindMalformedResponse  = "malformed_response"
	KindNotFound           = "not_found"
	KindConfiguration      = "configuration"
	KindInternal           = "internal"
)

// ErrorClassifier is implemented by errors that know their own kind.
type ErrorClassifier interface {
	ErrorKind() string
}

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrNetworkUnavailable
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind reports the classification of err. Errors implementing ErrorClassifier
// win over marker matching.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	var classifier ErrorClassifier
	if errors.As(err, &classifier) {
		if kind := classifier.ErrorKind(); kind != "" {
			return kind
		}
	}
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return KindInvalidRequest
	case errors.Is(err, ErrSiteNotConnected):
		return KindSiteNotConnected
	case errors.Is(err, ErrNetworkUnavailable):
		return KindNetworkUnavailable
	case errors.Is(err, ErrAgentRejected):
		return KindAgentRejected
	case errors.Is(err, ErrMalformedResponse):
		return KindMalformedResponse
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	default:
		return KindInternal
	}
}

// UserMessage renders err as a sentence suitable for dashboards and CLI output.
// Not-connected, unreachable, and rejected failures stay distinguishable.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch Kind(err) {
	case KindSiteNotConnected:
		return "Site not connected: install and activate the connector plugin, then reconnect the site."
	case KindNetworkUnavailable:
		return "Site temporarily unreachable: the connector did not respond, try again later."
	case KindAgentRejected:
		var rejected interface{ RejectionDetail() (int, string) }
		if errors.As(err, &rejected) {
			status, msg := rejected.RejectionDetail()
			if strings.TrimSpace(msg) != "" {
				return fmt.Sprintf("Operation rejected by the site connector (HTTP %d): %s", status, msg)
			}
			return fmt.Sprintf("Operation rejected by the site connector (HTTP %d).", status)
		}
		return "Operation rejected by the site connector."
	case KindMalformedResponse:
		return "The site connector returned an unexpected response."
	case KindInvalidRequest:
		return "Invalid request: " + innermostDetail(err)
	case KindNotFound:
		return "Not found: " + innermostDetail(err)
	default:
		return err.Error()
	}
}

// innermostDetail strips the marker prefix Wrap adds so user messages do not
// repeat it.
func innermostDetail(err error) string {
	msg := err.Error()
	for _, marker := range []error{ErrInvalidRequest, ErrNotFound} {
		prefix := marker.Error() + ": "
		msg = strings.TrimPrefix(msg, prefix)
	}
	return msg
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
