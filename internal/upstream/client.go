package upstream

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

	"github.com/google/uuid"

	"github.com/golovatskygroup/compliance-mcp/internal/config"
	"github.com/golovatskygroup/compliance-mcp/internal/httpcache"
	"github.com/golovatskygroup/compliance-mcp/internal/logging"
	"github.com/golovatskygroup/compliance-mcp/internal/metrics"
)

const userAgent = "compliance-mcp/1.0"

// Client talks to the compliance API. It holds only read-only state and is
// safe for concurrent use.
type Client struct {
	baseURL    string
	authHeader string
	http       *http.Client
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (tests, custom transports).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = logging.Component(l, "upstream") }
}

// NewClient builds a client from the upstream and cache configuration.
func NewClient(cfg config.UpstreamConfig, cache config.HTTPCacheConfig, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultTimeout
	}
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: httpcache.NewTransport(nil, cache),
		},
		logger: logging.Discard(),
	}
	if token := strings.TrimSpace(cfg.APIKey); token != "" {
		c.authHeader = "Bearer " + token
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do sends one request and classifies the outcome. It never returns a Go error:
// every failure is carried in Result.Err.
func (c *Client) Do(ctx context.Context, endpoint, method string, query url.Values, body any) Result {
	start := time.Now()
	res := c.do(ctx, endpoint, method, query, body)
	c.metrics.ObserveUpstream(method, res.Outcome(), time.Since(start))
	if res.Err != nil {
		c.logger.Debug("upstream request failed", "method", method, "endpoint", endpoint, "kind", res.Err.Kind, "error", res.Err.Message)
	}
	return res
}

func (c *Client) do(ctx context.Context, endpoint, method string, query url.Values, body any) Result {
	if method != http.MethodGet && method != http.MethodPost {
		return Failure(KindUnsupportedMethod, "Unsupported method: "+method)
	}

	u := c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var r io.Reader
	if method == http.MethodPost && body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return Failure(KindUnexpected, "Unexpected error: "+err.Error())
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, r)
	if err != nil {
		return Failure(KindUnexpected, "Unexpected error: "+err.Error())
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Request-Id", uuid.NewString())
	if c.authHeader != "" {
		req.Header.Set("Authorization", c.authHeader)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Failure(KindTransport, "Request error: "+err.Error())
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return Failure(KindTransport, "Request error: "+err.Error())
		}
		return Failure(KindUnexpected, "Unexpected error: "+err.Error())
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{Err: &Error{
			Kind:       KindHTTPStatus,
			Message:    fmt.Sprintf("HTTP error: %d", resp.StatusCode),
			Details:    string(b),
			StatusCode: resp.StatusCode,
		}}
	}

	return classifyBody(b)
}

// isTimeout reports whether a body read was cut short by the client timeout
// or the caller's context.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// classifyBody checks that a 2xx body is JSON and surfaces an embedded
// top-level "error" member as an error result.
func classifyBody(b []byte) Result {
	if !json.Valid(b) {
		var v any
		err := json.Unmarshal(b, &v)
		return Failure(KindUnexpected, "Unexpected error: "+err.Error())
	}

	var probe struct {
		Error   json.RawMessage `json:"error"`
		Details json.RawMessage `json:"details"`
	}
	// A null "error" member counts as absent.
	if json.Unmarshal(b, &probe) == nil && len(probe.Error) > 0 && !bytes.Equal(probe.Error, []byte("null")) {
		return Result{Err: &Error{
			Kind:    KindPayload,
			Message: rawText(probe.Error),
			Details: rawText(probe.Details),
		}}
	}
	return Success(json.RawMessage(b))
}

func rawText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return string(raw)
}
