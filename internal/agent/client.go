package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sitekeeper/internal/config"
	"sitekeeper/internal/logging"
	"sitekeeper/internal/services"
	"sitekeeper/internal/sites"
)

const (
	defaultConnectTimeout   = 10 * time.Second
	defaultRequestTimeout   = 15 * time.Second
	defaultTokenTTL         = 5 * time.Minute
	defaultMaxResponseBytes = 8 << 20
	maxErrorMessageLength   = 300
)

// Options captures the runtime settings for connector requests.
type Options struct {
	APIPrefix        string
	UserAgent        string
	ConnectTimeout   time.Duration
	RequestTimeout   time.Duration
	TokenTTL         time.Duration
	MaxResponseBytes int64
}

// OptionsFromConfig maps the [agent] config section.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		APIPrefix:        cfg.Agent.APIPrefix,
		UserAgent:        cfg.Agent.UserAgent,
		ConnectTimeout:   cfg.Agent.ConnectTimeout(),
		RequestTimeout:   cfg.Agent.RequestTimeout(),
		TokenTTL:         cfg.Agent.TokenTTL(),
		MaxResponseBytes: cfg.Agent.MaxResponseBytes,
	}
}

// Client sends signed requests to site connectors. It never retries; retry
// policy belongs to callers.
type Client struct {
	opts       Options
	httpClient *http.Client
	now        func() time.Time
	logger     *slog.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithClock overrides the time source used for token timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger attaches a logger for request tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, "agent")
	}
}

// NewClient builds a client. The transport caps connection setup at
// ConnectTimeout; each request is additionally bounded by its overall timeout.
func NewClient(opts Options, extra ...Option) *Client {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaultConnectTimeout
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = defaultTokenTTL
	}
	if opts.MaxResponseBytes <= 0 {
		opts.MaxResponseBytes = defaultMaxResponseBytes
	}
	opts.APIPrefix = strings.TrimRight(opts.APIPrefix, "/")

	dialer := &net.Dialer{Timeout: opts.ConnectTimeout, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   opts.ConnectTimeout,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	c := &Client{
		opts:       opts,
		httpClient: &http.Client{
			Transport: transport,
			// Signed claims bind method and body; 3xx surfaces as a rejection.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		now:        time.Now,
		logger:     logging.NewNop(),
	}
	for _, opt := range extra {
		opt(c)
	}
	return c
}

// Request is one logical connector call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	// Timeout overrides the client's overall request timeout.
	Timeout time.Duration
}

// Do performs req against site and returns the connector's JSON payload as-is.
// A site without credentials fails with a SiteNotConnected error before any
// network I/O.
func (c *Client) Do(ctx context.Context, site *sites.Site, req Request) (json.RawMessage, error) {
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	if !sites.IsConnected(site) {
		return nil, newError(services.KindSiteNotConnected, method, req.Path, nil)
	}
	if !strings.HasPrefix(req.Path, "/") {
		return nil, newError(services.KindInvalidRequest, method, req.Path, errors.New("path must start with /"))
	}

	var body []byte
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return nil, newError(services.KindInvalidRequest, method, req.Path, fmt.Errorf("encode body: %w", err))
		}
		body = encoded
	}

	canonical := CanonicalPath(req.Path, req.Query)
	endpoint := strings.TrimRight(site.BaseURL, "/") + c.opts.APIPrefix + canonical
	token, err := Sign(site.Key, site.Secret, method, canonical, body, c.now(), c.opts.TokenTTL)
	if err != nil {
		return nil, newError(services.KindInvalidRequest, method, req.Path, err)
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.opts.RequestTimeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(reqCtx, method, endpoint, reader)
	if err != nil {
		return nil, newError(services.KindInvalidRequest, method, req.Path, err)
	}
	httpReq.Header.Set(HeaderAuthorization, "Bearer "+token)
	httpReq.Header.Set(HeaderKey, site.Key)
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.opts.UserAgent != "" {
		httpReq.Header.Set("User-Agent", c.opts.UserAgent)
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		httpReq.Header.Set("X-Request-ID", rid)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.DebugContext(ctx, "connector request failed",
			logging.String("method", method),
			logging.String("path", req.Path),
			logging.Error(err),
		)
		return nil, newError(services.KindNetworkUnavailable, method, req.Path, describeTransportError(err))
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, c.opts.MaxResponseBytes+1))
	if err != nil {
		return nil, newError(services.KindNetworkUnavailable, method, req.Path, fmt.Errorf("read response: %w", err))
	}
	c.logger.DebugContext(ctx, "connector request",
		logging.String("method", method),
		logging.String("path", req.Path),
		logging.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := rejectionMessage(payload)
		if location := resp.Header.Get("Location"); resp.StatusCode >= 300 && resp.StatusCode < 400 && location != "" {
			message = "redirected to " + location + "; update the site base URL"
		}
		return nil, &Error{
			Kind:       services.KindAgentRejected,
			Method:     method,
			Path:       req.Path,
			StatusCode: resp.StatusCode,
			Message:    message,
		}
	}
	if int64(len(payload)) > c.opts.MaxResponseBytes {
		return nil, newError(services.KindMalformedResponse, method, req.Path,
			fmt.Errorf("response exceeds %d bytes", c.opts.MaxResponseBytes))
	}
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 && resp.StatusCode == http.StatusNoContent {
		return json.RawMessage("{}"), nil
	}
	if !json.Valid(trimmed) {
		return nil, newError(services.KindMalformedResponse, method, req.Path,
			fmt.Errorf("response is not valid JSON: %s", snippet(trimmed)))
	}
	return json.RawMessage(trimmed), nil
}

// DoJSON performs req and decodes the payload into dest.
func (c *Client) DoJSON(ctx context.Context, site *sites.Site, req Request, dest any) error {
	raw, err := c.Do(ctx, site, req)
	if err != nil {
		return err
	}
	return Decode(raw, dest, req.Method, req.Path)
}

// Decode unmarshals a connector payload, classifying failures as malformed responses.
func Decode(raw json.RawMessage, dest any, method, path string) error {
	if err := json.Unmarshal(raw, dest); err != nil {
		return newError(services.KindMalformedResponse, strings.ToUpper(method), path, err)
	}
	return nil
}

// describeTransportError keeps the classification stable while making timeouts
// readable.
func describeTransportError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("timed out: %w", err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return fmt.Errorf("timed out: %w", err)
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return fmt.Errorf("dns lookup failed: %w", err)
	}
	return err
}

// rejectionMessage extracts a readable message from a connector error body.
// WordPress-style {"code","message"} bodies are preferred.
func rejectionMessage(payload []byte) string {
	var envelope struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Code    string `json:"code"`
	}
	if err := json.Unmarshal(payload, &envelope); err == nil {
		switch {
		case envelope.Message != "":
			return truncate(envelope.Message)
		case envelope.Error != "":
			return truncate(envelope.Error)
		case envelope.Code != "":
			return truncate(envelope.Code)
		}
	}
	return snippet(bytes.TrimSpace(payload))
}

func snippet(payload []byte) string {
	return truncate(strings.Join(strings.Fields(string(payload)), " "))
}

func truncate(s string) string {
	if len(s) <= maxErrorMessageLength {
		return s
	}
	return s[:maxErrorMessageLength] + "..."
}

// Doer is the subset of Client used by site-facing components.
type Doer interface {
	Do(ctx context.Context, site *sites.Site, req Request) (json.RawMessage, error)
}
