package httpcache

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golovatskygroup/compliance-mcp/internal/config"
)

func get(t *testing.T, cl *http.Client, url, auth string) (int, string) {
	t.Helper()
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	resp, err := cl.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(b)
}

func TestTransportETagRevalidate304(t *testing.T) {
	var gotIfNoneMatch atomic.Value
	var hitCount atomic.Int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hitCount.Add(1)
		if inm := r.Header.Get("If-None-Match"); inm != "" {
			gotIfNoneMatch.Store(inm)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(`{"updates":[]}`))
	}))
	t.Cleanup(srv.Close)

	cl := &http.Client{Transport: NewTransport(nil, config.HTTPCacheConfig{Enabled: true, TTL: 0, MaxEntries: 32})}

	if _, body := get(t, cl, srv.URL+"/regulatory/updates", ""); body != `{"updates":[]}` {
		t.Fatalf("unexpected body: %q", body)
	}
	if _, body := get(t, cl, srv.URL+"/regulatory/updates", ""); body != `{"updates":[]}` {
		t.Fatalf("expected cached body after 304, got %q", body)
	}
	if v := gotIfNoneMatch.Load(); v == nil || v.(string) != `"v1"` {
		t.Fatalf("expected If-None-Match to be sent, got %v", v)
	}
	if n := hitCount.Load(); n != 2 {
		t.Fatalf("expected 2 server hits, got %d", n)
	}
}

func TestTransportServesFreshEntriesWithoutRoundTrip(t *testing.T) {
	var hitCount atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hitCount.Add(1)
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(srv.Close)

	tr := NewTransport(nil, config.HTTPCacheConfig{Enabled: true, TTL: time.Minute, MaxEntries: 32}).(*Transport)
	now := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return now }
	cl := &http.Client{Transport: tr}

	get(t, cl, srv.URL+"/x", "")
	get(t, cl, srv.URL+"/x", "")
	if n := hitCount.Load(); n != 1 {
		t.Fatalf("expected 1 server hit within TTL, got %d", n)
	}

	now = now.Add(2 * time.Minute)
	get(t, cl, srv.URL+"/x", "")
	if n := hitCount.Load(); n != 2 {
		t.Fatalf("expected refetch after TTL without ETag, got %d hits", n)
	}
}

func TestTransportCacheKeySeparatesAuth(t *testing.T) {
	var hitCount atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hitCount.Add(1)
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(srv.Close)

	cl := &http.Client{Transport: NewTransport(nil, config.HTTPCacheConfig{Enabled: true, TTL: time.Minute, MaxEntries: 32})}

	get(t, cl, srv.URL+"/x", "Bearer A")
	get(t, cl, srv.URL+"/x", "Bearer B")

	if n := hitCount.Load(); n != 2 {
		t.Fatalf("expected 2 server hits for different auth, got %d", n)
	}
}

func TestTransportDoesNotCacheErrorsOrPosts(t *testing.T) {
	var hitCount atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hitCount.Add(1)
		if r.Method == http.MethodGet {
			http.Error(w, "Service unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("{}"))
	}))
	t.Cleanup(srv.Close)

	tr := NewTransport(nil, config.HTTPCacheConfig{Enabled: true, TTL: time.Minute, MaxEntries: 32}).(*Transport)
	cl := &http.Client{Transport: tr}

	if status, _ := get(t, cl, srv.URL+"/x", ""); status != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status %d", status)
	}
	get(t, cl, srv.URL+"/x", "")
	for i := 0; i < 2; i++ {
		resp, err := cl.Post(srv.URL+"/reports/generate", "application/json", nil)
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		resp.Body.Close()
	}
	if n := hitCount.Load(); n != 4 {
		t.Fatalf("expected every request to reach the server, got %d", n)
	}
	if tr.cache.Len() != 0 {
		t.Fatalf("expected empty cache, got %d entries", tr.cache.Len())
	}
}

func TestNewTransportDisabledReturnsBase(t *testing.T) {
	base := http.DefaultTransport
	if got := NewTransport(base, config.HTTPCacheConfig{}); got != base {
		t.Fatalf("expected base transport when disabled")
	}
}
