package agent

import (
	"fmt"
	"strings"

	"sitekeeper/internal/services"
)

// Error is a classified connector failure. Kind is one of the services.Kind*
// values for not connected, network unavailable, agent rejected, or malformed
// response.
type Error struct {
	Kind       string
	Method     string
	Path       string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("agent ")
	b.WriteString(strings.ReplaceAll(e.Kind, "_", " "))
	if e.Method != "" || e.Path != "" {
		fmt.Fprintf(&b, " (%s %s)", e.Method, e.Path)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the classification marker and the underlying cause.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if marker := markerFor(e.Kind); marker != nil {
		out = append(out, marker)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// ErrorKind implements services.ErrorClassifier.
func (e *Error) ErrorKind() string { return e.Kind }

// RejectionDetail returns the connector's status code and message.
func (e *Error) RejectionDetail() (int, string) { return e.StatusCode, e.Message }

func markerFor(kind string) error {
	switch kind {
	case services.KindSiteNotConnected:
		return services.ErrSiteNotConnected
	case services.KindNetworkUnavailable:
		return services.ErrNetworkUnavailable
	case services.KindAgentRejected:
		return services.ErrAgentRejected
	case services.KindMalformedResponse:
		return services.ErrMalformedResponse
	case services.KindInvalidRequest:
		return services.ErrInvalidRequest
	default:
		return nil
	}
}

func newError(kind, method, path string, err error) *Error {
	return &Error{Kind: kind, Method: method, Path: path, Err: err}
}
