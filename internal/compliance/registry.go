package compliance

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

const (
	ToolAnalyzeTransaction       = "analyze_transaction"
	ToolVerifyCustomerKYC        = "verify_customer_kyc"
	ToolAnalyzeCommunication     = "analyze_communication"
	ToolGetRegulatoryUpdates     = "get_regulatory_updates"
	ToolGenerateComplianceReport = "generate_compliance_report"
)

// Parameter is one named tool argument.
type Parameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// ToolDescriptor describes a tool to callers.
type ToolDescriptor struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
}

var descriptors = []ToolDescriptor{
	{
		Name:        ToolAnalyzeTransaction,
		Description: "Analyze a financial transaction for compliance issues.",
		Parameters: []Parameter{
			{Name: "transaction_id", Type: "string", Description: "The ID of the transaction to analyze"},
		},
	},
	{
		Name:        ToolVerifyCustomerKYC,
		Description: "Verify Know Your Customer (KYC) compliance for a specific customer.",
		Parameters: []Parameter{
			{Name: "customer_id", Type: "string", Description: "The ID of the customer to verify"},
		},
	},
	{
		Name:        ToolAnalyzeCommunication,
		Description: "Analyze customer communication for compliance issues.",
		Parameters: []Parameter{
			{Name: "communication_id", Type: "string", Description: "The ID of the communication to analyze"},
		},
	},
	{
		Name:        ToolGetRegulatoryUpdates,
		Description: "Get the latest regulatory updates and changes relevant to financial compliance.",
		Parameters:  []Parameter{},
	},
	{
		Name:        ToolGenerateComplianceReport,
		Description: "Generate a compliance report for a specific entity.",
		Parameters: []Parameter{
			{Name: "entity_id", Type: "string", Description: "The ID of the entity (customer, account, etc.)"},
			{Name: "report_type", Type: "string", Description: "Type of report (summary, detailed, risk, audit)"},
		},
	},
}

// Tools returns the tool descriptors in their fixed order.
func Tools() []ToolDescriptor {
	out := make([]ToolDescriptor, len(descriptors))
	for i, d := range descriptors {
		d.Parameters = append([]Parameter{}, d.Parameters...)
		out[i] = d
	}
	return out
}

// Lookup returns the descriptor registered under name.
func Lookup(name string) (ToolDescriptor, bool) {
	for _, d := range Tools() {
		if d.Name == name {
			return d, true
		}
	}
	return ToolDescriptor{}, false
}

// Suggest returns registered tool names close to name, best match first.
func Suggest(name string) []string {
	query := strings.ToLower(strings.TrimSpace(name))
	if query == "" {
		return nil
	}

	type scored struct {
		name string
		dist int
	}
	var matches []scored
	for _, d := range descriptors {
		dist := fuzzy.LevenshteinDistance(query, d.Name)
		if fuzzy.MatchFold(query, d.Name) || fuzzy.MatchFold(d.Name, query) || dist <= 3 {
			matches = append(matches, scored{name: d.Name, dist: dist})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].dist < matches[j].dist })

	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.name)
	}
	return out
}

// InputSchema returns a JSON Schema for the tool's arguments: an object with
// one required string property per parameter.
func (d ToolDescriptor) InputSchema() json.RawMessage {
	props := make(map[string]any, len(d.Parameters))
	required := make([]string, 0, len(d.Parameters))
	for _, p := range d.Parameters {
		props[p.Name] = map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
		required = append(required, p.Name)
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	b, _ := json.Marshal(schema)
	return b
}
