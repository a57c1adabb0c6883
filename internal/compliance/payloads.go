package compliance

import (
	"bytes"
	"encoding/json"

	"github.com/golovatskygroup/compliance-mcp/internal/upstream"
)

// Text is an optional scalar from an upstream payload. Strings are kept as-is,
// other JSON values keep their literal text; null and absent keys are not present.
type Text struct {
	value   string
	present bool
}

// TextOf builds a present Text.
func TextOf(s string) Text { return Text{value: s, present: true} }

func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*t = Text{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = TextOf(s)
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, b); err != nil {
		return err
	}
	*t = TextOf(buf.String())
	return nil
}

func (t Text) MarshalJSON() ([]byte, error) {
	if !t.present {
		return []byte("null"), nil
	}
	return json.Marshal(t.value)
}

func (t Text) Present() bool { return t.present }

// Or returns the value, or fallback when absent.
func (t Text) Or(fallback string) string {
	if !t.present {
		return fallback
	}
	return t.value
}

func (t Text) String() string { return t.value }

// Outcome is the decoded form of an upstream result: exactly one of Value or Err is set.
type Outcome[T any] struct {
	Value *T
	Err   *upstream.Error
}

// Decode converts a raw result into the tool's payload record. A payload that
// does not fit the record becomes an unexpected-error outcome.
func Decode[T any](res upstream.Result) Outcome[T] {
	if res.Err != nil {
		return Outcome[T]{Err: res.Err}
	}
	var v T
	if err := json.Unmarshal(res.Payload, &v); err != nil {
		return Outcome[T]{Err: &upstream.Error{Kind: upstream.KindUnexpected, Message: "Unexpected error: " + err.Error()}}
	}
	return Outcome[T]{Value: &v}
}

// Succeeded wraps v as a successful outcome.
func Succeeded[T any](v T) Outcome[T] { return Outcome[T]{Value: &v} }

// Failed wraps err as a failed outcome.
func Failed[T any](err *upstream.Error) Outcome[T] { return Outcome[T]{Err: err} }

// TransactionAnalysis is the analyze_transaction payload.
type TransactionAnalysis struct {
	ComplianceStatus     Text                  `json:"compliance_status"`
	RiskScore            Text                  `json:"risk_score"`
	Issues               []TransactionIssue    `json:"issues"`
	RegulatoryReferences []RegulatoryReference `json:"regulatory_references"`
}

// TransactionIssue is one finding in a transaction analysis.
type TransactionIssue struct {
	Category       Text `json:"category"`
	Description    Text `json:"description"`
	Recommendation Text `json:"recommendation"`
}

// RegulatoryReference cites a regulation by code.
type RegulatoryReference struct {
	Code        Text `json:"code"`
	Description Text `json:"description"`
}

// KYCVerification is the verify_customer_kyc payload.
type KYCVerification struct {
	VerificationStatus   Text                  `json:"verification_status"`
	VerificationDate     Text                  `json:"verification_date"`
	IdentityVerification *IdentityVerification `json:"identity_verification"`
	AMLScreening         *AMLScreening         `json:"aml_screening"`
	RequiredActions      []Text                `json:"required_actions"`
}

// IdentityVerification is the identity check section of a KYC result.
type IdentityVerification struct {
	Status Text   `json:"status"`
	Method Text   `json:"method"`
	Issues []Text `json:"issues"`
}

// AMLScreening is the watchlist screening section of a KYC result.
type AMLScreening struct {
	Status    Text             `json:"status"`
	RiskLevel Text             `json:"risk_level"`
	Matches   []WatchlistMatch `json:"matches"`
}

// WatchlistMatch is one watchlist hit.
type WatchlistMatch struct {
	ListName     Text `json:"list_name"`
	MatchDetails Text `json:"match_details"`
}

// CommunicationAnalysis is the analyze_communication payload.
type CommunicationAnalysis struct {
	CommunicationType Text                 `json:"communication_type"`
	ComplianceStatus  Text                 `json:"compliance_status"`
	SentimentAnalysis *SentimentAnalysis   `json:"sentiment_analysis"`
	Issues            []CommunicationIssue `json:"issues"`
	Recommendations   []Text               `json:"recommendations"`
}

// SentimentAnalysis holds the overall tone of a communication.
type SentimentAnalysis struct {
	Overall Text `json:"overall"`
}

// CommunicationIssue is one finding in a communication analysis.
type CommunicationIssue struct {
	Category    Text `json:"category"`
	Description Text `json:"description"`
	Severity    Text `json:"severity"`
	Context     Text `json:"context"`
}

// RegulatoryUpdates is the get_regulatory_updates payload.
type RegulatoryUpdates struct {
	Updates []RegulatoryUpdate `json:"updates"`
}

// RegulatoryUpdate is one published regulatory change.
type RegulatoryUpdate struct {
	Title        Text   `json:"title"`
	Date         Text   `json:"date"`
	Jurisdiction Text   `json:"jurisdiction"`
	Category     Text   `json:"category"`
	Summary      Text   `json:"summary"`
	ActionItems  []Text `json:"action_items"`
}

// ComplianceReport is the generate_compliance_report payload.
type ComplianceReport struct {
	Summary          Text                     `json:"summary"`
	RiskAssessment   *RiskAssessment          `json:"risk_assessment"`
	ComplianceStatus *ComplianceStatusSummary `json:"compliance_status"`
	Recommendations  []Text                   `json:"recommendations"`
}

// RiskAssessment is the risk section of a compliance report.
type RiskAssessment struct {
	Overall Text         `json:"overall"`
	Factors []RiskFactor `json:"factors"`
}

// RiskFactor is one rated risk driver.
type RiskFactor struct {
	Name    Text `json:"name"`
	Level   Text `json:"level"`
	Details Text `json:"details"`
}

// ComplianceStatusSummary is the status section of a compliance report.
type ComplianceStatusSummary struct {
	Overall    Text                 `json:"overall"`
	Categories []ComplianceCategory `json:"categories"`
}

// ComplianceCategory is the status of one compliance area.
type ComplianceCategory struct {
	Name    Text `json:"name"`
	Status  Text `json:"status"`
	Details Text `json:"details"`
}
