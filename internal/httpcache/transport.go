package httpcache

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golovatskygroup/compliance-mcp/internal/config"
)

// Transport serves repeated GETs from the cache. Entries younger than the TTL
// are returned without a round trip; older entries with an ETag are revalidated
// with If-None-Match.
type Transport struct {
	base  http.RoundTripper
	cache *Cache
	now   func() time.Time

	keyHeaders []string
}

// NewTransport wraps base. When caching is disabled base is returned unchanged.
func NewTransport(base http.RoundTripper, cfg config.HTTPCacheConfig) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	if !cfg.Enabled {
		return base
	}
	return &Transport{
		base:       base,
		cache:      newCache(cfg.TTL, cfg.MaxEntries),
		now:        time.Now,
		keyHeaders: []string{"Authorization", "Accept"},
	}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("httpcache: nil request")
	}
	if !strings.EqualFold(req.Method, http.MethodGet) {
		return t.base.RoundTrip(req)
	}

	key := req.Method + " " + req.URL.String() + " " + fingerprintHeaders(req.Header, t.keyHeaders)

	if ent, ok := t.cache.get(key); ok {
		if t.cache.ttl > 0 && t.now().Sub(ent.storedAt) < t.cache.ttl {
			return cachedResponse(req, ent), nil
		}

		if ent.etag != "" {
			req2 := req.Clone(req.Context())
			req2.Header.Set("If-None-Match", ent.etag)

			resp, err := t.base.RoundTrip(req2)
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusNotModified {
				t.cache.touch(key, t.now())
				return cachedResponse(req, ent), nil
			}
			return t.store(req, key, resp)
		}
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return t.store(req, key, resp)
}

// store buffers resp and caches it when it is a 2xx.
func (t *Transport) store(req *http.Request, key string, resp *http.Response) (*http.Response, error) {
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	header := resp.Header
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		header = t.cache.put(key, resp.StatusCode, resp.Header, b, t.now()).header
	}
	return &http.Response{
		StatusCode:    resp.StatusCode,
		Status:        resp.Status,
		Header:        header.Clone(),
		Body:          io.NopCloser(bytes.NewReader(b)),
		ContentLength: int64(len(b)),
		Request:       req,
		Proto:         resp.Proto,
		ProtoMajor:    resp.ProtoMajor,
		ProtoMinor:    resp.ProtoMinor,
	}, nil
}

func cachedResponse(req *http.Request, ent entry) *http.Response {
	status := ent.status
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{
		StatusCode:    status,
		Status:        fmt.Sprintf("%d %s", status, http.StatusText(status)),
		Header:        ent.header.Clone(),
		Body:          io.NopCloser(bytes.NewReader(ent.body)),
		ContentLength: int64(len(ent.body)),
		Request:       req,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
	}
}
