package compliance

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/golovatskygroup/compliance-mcp/internal/upstream"
)

// ToolCall is a single invocation request.
type ToolCall struct {
	Name      string
	Arguments map[string]string
}

func (c ToolCall) Arg(name string) string { return c.Arguments[name] }

// Fetcher produces the raw result for a call. The dispatcher is given exactly
// one implementation, chosen from configuration at startup.
type Fetcher interface {
	Fetch(ctx context.Context, call ToolCall) upstream.Result
}

// Requester is the upstream capability used by LiveFetcher; *upstream.Client implements it.
type Requester interface {
	Do(ctx context.Context, endpoint, method string, query url.Values, body any) upstream.Result
}

// NewFetcher returns MockFetcher in development mode and a LiveFetcher otherwise.
func NewFetcher(developmentMode bool, client Requester) Fetcher {
	if developmentMode {
		return MockFetcher{}
	}
	return LiveFetcher{client: client}
}

// Route is the upstream request a tool call maps to.
type Route struct {
	Endpoint string
	Method   string
	Body     any
}

// RouteFor maps a call to its upstream endpoint. Identifiers are path-escaped.
func RouteFor(call ToolCall) (Route, bool) {
	switch call.Name {
	case ToolAnalyzeTransaction:
		return Route{Endpoint: "transactions/" + url.PathEscape(call.Arg("transaction_id")) + "/analyze", Method: http.MethodGet}, true
	case ToolVerifyCustomerKYC:
		return Route{Endpoint: "customers/" + url.PathEscape(call.Arg("customer_id")) + "/kyc", Method: http.MethodGet}, true
	case ToolAnalyzeCommunication:
		return Route{Endpoint: "communications/" + url.PathEscape(call.Arg("communication_id")) + "/analyze", Method: http.MethodGet}, true
	case ToolGetRegulatoryUpdates:
		return Route{Endpoint: "regulatory/updates", Method: http.MethodGet}, true
	case ToolGenerateComplianceReport:
		return Route{
			Endpoint: "reports/generate",
			Method:   http.MethodPost,
			Body: map[string]string{
				"entity_id":   call.Arg("entity_id"),
				"report_type": call.Arg("report_type"),
			},
		}, true
	default:
		return Route{}, false
	}
}

// LiveFetcher sends calls to the compliance API.
type LiveFetcher struct {
	client Requester
}

func (f LiveFetcher) Fetch(ctx context.Context, call ToolCall) upstream.Result {
	r, ok := RouteFor(call)
	if !ok {
		return upstream.Failure(upstream.KindUnexpected, "Unexpected error: no route for tool "+call.Name)
	}
	return f.client.Do(ctx, r.Endpoint, r.Method, nil, r.Body)
}

//go:embed fixtures/*.json
var fixtures embed.FS

// MockFetcher serves the embedded fixture for each tool and never touches the network.
type MockFetcher struct{}

func (MockFetcher) Fetch(_ context.Context, call ToolCall) upstream.Result {
	b, err := Fixture(call.Name)
	if err != nil {
		return upstream.Failure(upstream.KindUnexpected, "Unexpected error: "+err.Error())
	}
	return upstream.Success(b)
}

// Fixture returns the canned payload for a tool.
func Fixture(tool string) (json.RawMessage, error) {
	if _, ok := Lookup(tool); !ok {
		return nil, fmt.Errorf("no fixture for tool %s", tool)
	}
	b, err := fixtures.ReadFile("fixtures/" + tool + ".json")
	if err != nil {
		return nil, fmt.Errorf("no fixture for tool %s: %w", tool, err)
	}
	return b, nil
}
