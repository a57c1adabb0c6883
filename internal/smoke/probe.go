// Package smoke checks a running server end to end: status page, tool
// listing, SSE session and one tools/call per tool.
package smoke

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/golovatskygroup/compliance-mcp/internal/compliance"
	"github.com/golovatskygroup/compliance-mcp/pkg/mcp"
)

// SampleArguments are the identifiers sent for each tool parameter.
var SampleArguments = map[string]string{
	"transaction_id":   "TX123",
	"customer_id":      "C123",
	"communication_id": "COMM123",
	"entity_id":        "E1",
	"report_type":      "summary",
}

// CallResult is the outcome of one probed tool call.
type CallResult struct {
	Tool     string
	Text     string
	IsError  bool
	Duration time.Duration
}

// Summary is what a probe observed.
type Summary struct {
	Tools []compliance.ToolDescriptor
	Calls []CallResult
}

// Probe runs the checks against BaseURL.
type Probe struct {
	BaseURL string
	Client  *http.Client
	// Timeout bounds the whole run (default 30s).
	Timeout time.Duration
}

func (p Probe) client() *http.Client {
	if p.Client != nil {
		return p.Client
	}
	return http.DefaultClient
}

// Run executes every check in order and stops at the first failure.
func (p Probe) Run(ctx context.Context) (Summary, error) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	base := strings.TrimRight(p.BaseURL, "/")
	var sum Summary

	if err := p.checkStatusPage(ctx, base); err != nil {
		return sum, err
	}
	tools, err := p.listTools(ctx, base)
	if err != nil {
		return sum, err
	}
	sum.Tools = tools

	sess, err := p.connect(ctx, base)
	if err != nil {
		return sum, err
	}
	defer sess.close()

	if _, err := sess.call(ctx, "initialize", map[string]any{
		"protocolVersion": mcp.ProtocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]string{"name": "compliance-mcp-smoke", "version": "1.0.0"},
	}); err != nil {
		return sum, fmt.Errorf("initialize: %w", err)
	}
	if err := sess.notify(ctx, "notifications/initialized"); err != nil {
		return sum, fmt.Errorf("initialized notification: %w", err)
	}

	results := make([]CallResult, len(tools))
	g, gctx := errgroup.WithContext(ctx)
	for i, tool := range tools {
		g.Go(func() error {
			start := time.Now()
			resp, err := sess.call(gctx, "tools/call", mcp.CallToolParams{
				Name:      tool.Name,
				Arguments: sampleArguments(tool),
			})
			if err != nil {
				return fmt.Errorf("%s: %w", tool.Name, err)
			}
			var result mcp.CallToolResult
			if err := json.Unmarshal(resp.Result, &result); err != nil {
				return fmt.Errorf("%s: decode result: %w", tool.Name, err)
			}
			var text strings.Builder
			for _, block := range result.Content {
				text.WriteString(block.Text)
			}
			results[i] = CallResult{Tool: tool.Name, Text: text.String(), IsError: result.IsError, Duration: time.Since(start)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return sum, err
	}
	sum.Calls = results
	return sum, nil
}

func sampleArguments(tool compliance.ToolDescriptor) json.RawMessage {
	args := make(map[string]string, len(tool.Parameters))
	for _, p := range tool.Parameters {
		v, ok := SampleArguments[p.Name]
		if !ok {
			v = "smoke-" + p.Name
		}
		args[p.Name] = v
	}
	b, _ := json.Marshal(args)
	return b
}

func (p Probe) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return p.client().Do(req)
}

func (p Probe) checkStatusPage(ctx context.Context, base string) error {
	resp, err := p.get(ctx, base+"/")
	if err != nil {
		return fmt.Errorf("server not reachable: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status page returned %d", resp.StatusCode)
	}
	return nil
}

func (p Probe) listTools(ctx context.Context, base string) ([]compliance.ToolDescriptor, error) {
	resp, err := p.get(ctx, base+"/api/tools")
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tools endpoint returned %d", resp.StatusCode)
	}
	var payload struct {
		Tools []compliance.ToolDescriptor `json:"tools"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode tools: %w", err)
	}
	if len(payload.Tools) == 0 {
		return nil, errors.New("server lists no tools")
	}
	return payload.Tools, nil
}

// session is a client-side SSE session. A reader goroutine routes each
// "message" event to the caller waiting on its id.
type session struct {
	probe    Probe
	endpoint string
	body     io.Closer
	cancel   context.CancelFunc

	mu      sync.Mutex
	nextID  int
	pending map[string]chan *mcp.Response
	err     error
	done    chan struct{}
}

func (p Probe) connect(ctx context.Context, base string) (*session, error) {
	streamCtx, cancel := context.WithCancel(ctx)
	resp, err := p.get(streamCtx, base+"/sse")
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open SSE stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("SSE endpoint returned %d", resp.StatusCode)
	}

	r := bufio.NewReader(resp.Body)
	event, data, err := readEvent(r)
	if err != nil || event != "endpoint" {
		resp.Body.Close()
		cancel()
		if err == nil {
			err = fmt.Errorf("unexpected first event %q", event)
		}
		return nil, fmt.Errorf("SSE handshake: %w", err)
	}

	s := &session{
		probe:    p,
		endpoint: base + data,
		body:     resp.Body,
		cancel:   cancel,
		pending:  make(map[string]chan *mcp.Response),
		done:     make(chan struct{}),
	}
	go s.readLoop(r)
	return s, nil
}

func (s *session) readLoop(r *bufio.Reader) {
	defer close(s.done)
	for {
		event, data, err := readEvent(r)
		if err != nil {
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
			return
		}
		if event != "message" {
			continue
		}
		var resp mcp.Response
		if err := json.Unmarshal([]byte(data), &resp); err != nil {
			continue
		}
		s.mu.Lock()
		ch, ok := s.pending[string(resp.ID)]
		delete(s.pending, string(resp.ID))
		s.mu.Unlock()
		if ok {
			ch <- &resp
		}
	}
}

func (s *session) post(ctx context.Context, msg any) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.probe.client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("message endpoint returned %d", resp.StatusCode)
	}
	return nil
}

func (s *session) call(ctx context.Context, method string, params any) (*mcp.Response, error) {
	rawParams, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.nextID++
	id := json.RawMessage(fmt.Sprintf("%d", s.nextID))
	ch := make(chan *mcp.Response, 1)
	s.pending[string(id)] = ch
	s.mu.Unlock()

	if err := s.post(ctx, mcp.Request{JSONRPC: "2.0", ID: id, Method: method, Params: rawParams}); err != nil {
		return nil, err
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return nil, fmt.Errorf("%s: %s (code %d)", method, resp.Error.Message, resp.Error.Code)
		}
		return resp, nil
	case <-s.done:
		s.mu.Lock()
		err := s.err
		s.mu.Unlock()
		return nil, fmt.Errorf("SSE stream closed: %w", err)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *session) notify(ctx context.Context, method string) error {
	return s.post(ctx, mcp.Notification{JSONRPC: "2.0", Method: method})
}

func (s *session) close() {
	s.cancel()
	_ = s.body.Close()
	<-s.done
}

// readEvent reads one SSE event; comment lines are skipped.
func readEvent(r *bufio.Reader) (event, data string, err error) {
	var lines []string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return "", "", err
		}
		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "":
			if event != "" || len(lines) > 0 {
				return event, strings.Join(lines, "\n"), nil
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			lines = append(lines, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
}

// Report writes a human-readable account of sum to w.
func Report(w io.Writer, base string, sum Summary) {
	fmt.Fprintf(w, "Testing MCP server at %s\n", base)
	fmt.Fprintln(w, "Server is running")
	fmt.Fprintf(w, "Found %d tools available\n", len(sum.Tools))
	for _, t := range sum.Tools {
		fmt.Fprintf(w, "  - %s: %s\n", t.Name, t.Description)
	}
	fmt.Fprintln(w, "SSE endpoint is available")

	calls := append([]CallResult(nil), sum.Calls...)
	sort.SliceStable(calls, func(i, j int) bool { return calls[i].Tool < calls[j].Tool })
	for _, c := range calls {
		status := "ok"
		if c.IsError {
			status = "error report"
		}
		first, _, _ := strings.Cut(c.Text, "\n")
		fmt.Fprintf(w, "  %s: %s in %s (%s)\n", c.Tool, status, c.Duration.Round(time.Millisecond), first)
	}
}
