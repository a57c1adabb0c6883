package compliance

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golovatskygroup/compliance-mcp/internal/audit"
	"github.com/golovatskygroup/compliance-mcp/internal/config"
	"github.com/golovatskygroup/compliance-mcp/internal/metrics"
	"github.com/golovatskygroup/compliance-mcp/internal/upstream"
)

type countingFetcher struct {
	calls atomic.Int32
	inner Fetcher
}

func (f *countingFetcher) Fetch(ctx context.Context, call ToolCall) upstream.Result {
	f.calls.Add(1)
	return f.inner.Fetch(ctx, call)
}

type memJournal struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (j *memJournal) Record(_ context.Context, e audit.Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
	return nil
}

func newDispatcher(t *testing.T, f Fetcher, opts ...Option) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(f, append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)...)
	require.NoError(t, err)
	return d
}

// unreachable points the live client at a closed server so any network use fails loudly.
func unreachable(t *testing.T) *upstream.Client {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	return upstream.NewClient(config.UpstreamConfig{BaseURL: srv.URL, Timeout: time.Second}, config.HTTPCacheConfig{})
}

func TestDevelopmentModeServesEveryTool(t *testing.T) {
	fetcher := NewFetcher(true, unreachable(t))
	require.IsType(t, MockFetcher{}, fetcher)
	d := newDispatcher(t, fetcher)

	headings := map[string]string{
		ToolAnalyzeTransaction:       "## Transaction Compliance Analysis",
		ToolVerifyCustomerKYC:        "## Customer KYC Verification",
		ToolAnalyzeCommunication:     "## Communication Compliance Analysis",
		ToolGetRegulatoryUpdates:     "## Recent Regulatory Updates",
		ToolGenerateComplianceReport: "## Detailed Compliance Report",
	}
	args := map[string]map[string]string{
		ToolAnalyzeTransaction:       {"transaction_id": "TX1"},
		ToolVerifyCustomerKYC:        {"customer_id": "C1"},
		ToolAnalyzeCommunication:     {"communication_id": "M1"},
		ToolGetRegulatoryUpdates:     {},
		ToolGenerateComplianceReport: {"entity_id": "E1", "report_type": "detailed"},
	}
	for _, desc := range Tools() {
		rep, err := d.Invoke(context.Background(), ToolCall{Name: desc.Name, Arguments: args[desc.Name]})
		require.NoError(t, err, desc.Name)
		assert.False(t, rep.Failed(), desc.Name)
		assert.Equal(t, desc.Name, rep.Tool)
		assert.True(t, strings.HasPrefix(rep.Text, headings[desc.Name]+"\n"), desc.Name)
	}
}

func TestInvokeTransactionScenario(t *testing.T) {
	d := newDispatcher(t, MockFetcher{})
	rep, err := d.Invoke(context.Background(), ToolCall{
		Name:      ToolAnalyzeTransaction,
		Arguments: map[string]string{"transaction_id": "TX123"},
	})
	require.NoError(t, err)

	assert.Contains(t, rep.Text, "**Transaction ID**: TX123")
	assert.Contains(t, rep.Text, "**Compliance Status**: COMPLIANT")
	assert.Contains(t, rep.Text, "**Risk Score**: 25/100")
	section := rep.Text[strings.Index(rep.Text, "### Identified Issues"):strings.Index(rep.Text, "### Regulatory References")]
	assert.Equal(t, 1, strings.Count(section, "\n- "))
	assert.Contains(t, section, "- **Documentation**:")
}

func TestInvokeSummaryReportScenario(t *testing.T) {
	d := newDispatcher(t, MockFetcher{})
	rep, err := d.InvokeJSON(context.Background(), ToolGenerateComplianceReport, json.RawMessage(`{"entity_id":"E1","report_type":"summary"}`))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(rep.Text, "## Summary Compliance Report\n"))
	recs := rep.Text[strings.Index(rep.Text, "### Recommendations"):]
	assert.Equal(t, 3, strings.Count(recs, "\n- "))
}

func TestInvokeLiveHTTPErrorBecomesReport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, "Service unavailable")
	}))
	defer srv.Close()

	client := upstream.NewClient(config.UpstreamConfig{BaseURL: srv.URL, APIKey: "k"}, config.HTTPCacheConfig{})
	journal := &memJournal{}
	d := newDispatcher(t, NewFetcher(false, client), WithJournal(journal))

	rep, err := d.Invoke(context.Background(), ToolCall{Name: ToolVerifyCustomerKYC, Arguments: map[string]string{"customer_id": "C9"}})
	require.NoError(t, err)
	assert.Equal(t, "Error verifying customer KYC: HTTP error: 503", rep.Text)
	require.True(t, rep.Failed())
	assert.Equal(t, upstream.KindHTTPStatus, rep.Err.Kind)
	assert.Equal(t, "Service unavailable", rep.Err.Details)

	require.Len(t, journal.entries, 1)
	assert.Equal(t, "http_status", journal.entries[0].Outcome)
	assert.Equal(t, "HTTP error: 503", journal.entries[0].Message)
	assert.Equal(t, map[string]string{"customer_id": "C9"}, journal.entries[0].Arguments)
}

func TestInvokeUnknownToolDoesNotFetch(t *testing.T) {
	f := &countingFetcher{inner: MockFetcher{}}
	d := newDispatcher(t, f)

	_, err := d.Invoke(context.Background(), ToolCall{Name: "delete_everything"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownTool))
	var ute *UnknownToolError
	require.True(t, errors.As(err, &ute))
	assert.Equal(t, "delete_everything", ute.Name)

	_, err = d.InvokeJSON(context.Background(), "analyze_transactoin", nil)
	require.True(t, errors.As(err, &ute))
	assert.Contains(t, ute.Suggestions, ToolAnalyzeTransaction)
	assert.Contains(t, err.Error(), "did you mean")

	assert.Zero(t, f.calls.Load())
}

func TestInvokeInvalidArguments(t *testing.T) {
	f := &countingFetcher{inner: MockFetcher{}}
	d := newDispatcher(t, f)
	ctx := context.Background()

	_, err := d.Invoke(ctx, ToolCall{Name: ToolAnalyzeTransaction})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidArguments))
	assert.Contains(t, err.Error(), "transaction_id")

	_, err = d.InvokeJSON(ctx, ToolVerifyCustomerKYC, json.RawMessage(`{"customer_id": 42}`))
	assert.True(t, errors.Is(err, ErrInvalidArguments))
	var iae *InvalidArgumentsError
	require.True(t, errors.As(err, &iae))
	assert.Contains(t, iae.Reason, "/customer_id")

	_, err = d.InvokeJSON(ctx, ToolGenerateComplianceReport, json.RawMessage(`{"entity_id":`))
	assert.True(t, errors.Is(err, ErrInvalidArguments))

	_, err = d.InvokeJSON(ctx, ToolGetRegulatoryUpdates, json.RawMessage(`[]`))
	assert.True(t, errors.Is(err, ErrInvalidArguments))

	assert.Zero(t, f.calls.Load())
}

func TestInvokeJSONNullArgumentsForNoParameterTool(t *testing.T) {
	d := newDispatcher(t, MockFetcher{})
	rep, err := d.InvokeJSON(context.Background(), ToolGetRegulatoryUpdates, json.RawMessage(`null`))
	require.NoError(t, err)
	assert.Contains(t, rep.Text, "### ESG Disclosure Framework")
}

func TestLiveRoutes(t *testing.T) {
	type seen struct {
		method, path string
		body         map[string]string
	}
	var mu sync.Mutex
	var requests []seen
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := seen{method: r.Method, path: r.URL.EscapedPath()}
		if r.Method == http.MethodPost {
			_ = json.NewDecoder(r.Body).Decode(&s.body)
		}
		mu.Lock()
		requests = append(requests, s)
		mu.Unlock()
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	client := upstream.NewClient(config.UpstreamConfig{BaseURL: srv.URL}, config.HTTPCacheConfig{})
	d := newDispatcher(t, NewFetcher(false, client))
	ctx := context.Background()

	calls := []ToolCall{
		{Name: ToolAnalyzeTransaction, Arguments: map[string]string{"transaction_id": "A/B"}},
		{Name: ToolVerifyCustomerKYC, Arguments: map[string]string{"customer_id": "C 1"}},
		{Name: ToolAnalyzeCommunication, Arguments: map[string]string{"communication_id": "M1"}},
		{Name: ToolGetRegulatoryUpdates},
		{Name: ToolGenerateComplianceReport, Arguments: map[string]string{"entity_id": "E1", "report_type": "risk"}},
	}
	for _, c := range calls {
		rep, err := d.Invoke(ctx, c)
		require.NoError(t, err)
		require.False(t, rep.Failed(), rep.Text)
	}

	require.Len(t, requests, 5)
	assert.Equal(t, seen{method: "GET", path: "/transactions/A%2FB/analyze"}, requests[0])
	assert.Equal(t, seen{method: "GET", path: "/customers/C%201/kyc"}, requests[1])
	assert.Equal(t, seen{method: "GET", path: "/communications/M1/analyze"}, requests[2])
	assert.Equal(t, seen{method: "GET", path: "/regulatory/updates"}, requests[3])
	assert.Equal(t, seen{method: "POST", path: "/reports/generate", body: map[string]string{"entity_id": "E1", "report_type": "risk"}}, requests[4])
}

func TestRouteForUnknownTool(t *testing.T) {
	_, ok := RouteFor(ToolCall{Name: "nope"})
	assert.False(t, ok)

	res := LiveFetcher{client: unreachable(t)}.Fetch(context.Background(), ToolCall{Name: "nope"})
	require.NotNil(t, res.Err)
	assert.Equal(t, upstream.KindUnexpected, res.Err.Kind)
}

func TestUpstreamErrorMemberBecomesReport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"error":"Transaction not found"}`)
	}))
	defer srv.Close()

	client := upstream.NewClient(config.UpstreamConfig{BaseURL: srv.URL}, config.HTTPCacheConfig{})
	d := newDispatcher(t, NewFetcher(false, client))
	rep, err := d.Invoke(context.Background(), ToolCall{Name: ToolAnalyzeTransaction, Arguments: map[string]string{"transaction_id": "X"}})
	require.NoError(t, err)
	assert.Equal(t, "Error analyzing transaction: Transaction not found", rep.Text)
}

func TestInvokeRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)
	d := newDispatcher(t, MockFetcher{}, WithMetrics(m))

	for i := 0; i < 2; i++ {
		_, err := d.Invoke(context.Background(), ToolCall{Name: ToolGetRegulatoryUpdates})
		require.NoError(t, err)
	}
	_, err = d.Invoke(context.Background(), ToolCall{Name: "nope"})
	require.Error(t, err)

	assert.Equal(t, 2.0, counterValue(t, reg, "compliance_mcp_tools_calls_total", map[string]string{"tool": ToolGetRegulatoryUpdates, "outcome": "ok"}))
	assert.Equal(t, 0.0, counterValue(t, reg, "compliance_mcp_tools_calls_total", map[string]string{"tool": "nope"}))
}

func counterValue(t *testing.T, g prometheus.Gatherer, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := g.Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if matchLabels(metric, labels) {
				total += metric.GetCounter().GetValue()
			}
		}
	}
	return total
}

func matchLabels(metric *dto.Metric, want map[string]string) bool {
	got := make(map[string]string, len(metric.GetLabel()))
	for _, lp := range metric.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func TestConcurrentInvocationsAreIndependent(t *testing.T) {
	d := newDispatcher(t, MockFetcher{})
	var wg sync.WaitGroup
	texts := make([]string, 20)
	for i := range texts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rep, err := d.Invoke(context.Background(), ToolCall{
				Name:      ToolAnalyzeTransaction,
				Arguments: map[string]string{"transaction_id": "TX" + string(rune('A'+i))},
			})
			if err == nil {
				texts[i] = rep.Text
			}
		}(i)
	}
	wg.Wait()
	for i, text := range texts {
		assert.Contains(t, text, "**Transaction ID**: TX"+string(rune('A'+i)))
	}
}

func TestNewDispatcherRequiresFetcher(t *testing.T) {
	_, err := NewDispatcher(nil)
	assert.Error(t, err)
}

func TestFixtureUnknownTool(t *testing.T) {
	_, err := Fixture("delete_everything")
	assert.Error(t, err)
}
