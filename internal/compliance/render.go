package compliance

import (
	"strings"
	"time"
	"unicode"

	"github.com/golovatskygroup/compliance-mcp/internal/report"
	"github.com/golovatskygroup/compliance-mcp/internal/upstream"
)

// TimeFormat is the layout of the timestamp field in every report.
const TimeFormat = "2006-01-02 15:04:05"

const (
	unknown         = "Unknown"
	noIssues        = "No compliance issues detected"
	noUpdates       = "No recent regulatory updates available."
	untitledUpdate  = "Untitled Update"
	globalScope     = "Global"
	generalCategory = "General"
	noSummary       = "No summary available"
)

// Error prefixes, one per tool.
const (
	errAnalyzeTransaction   = "Error analyzing transaction"
	errVerifyKYC            = "Error verifying customer KYC"
	errAnalyzeCommunication = "Error analyzing communication"
	errRegulatoryUpdates    = "Error fetching regulatory updates"
	errComplianceReport     = "Error generating compliance report"
)

func errorReport(prefix string, err *upstream.Error) string {
	return prefix + ": " + err.Message
}

func label(key string) string { return "**" + key + "**:" }

func texts(items []Text) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Or(unknown))
	}
	return out
}

// RenderTransactionAnalysis renders analyze_transaction.
func RenderTransactionAnalysis(transactionID string, o Outcome[TransactionAnalysis], now time.Time) string {
	if o.Err != nil {
		return errorReport(errAnalyzeTransaction, o.Err)
	}
	data := o.Value

	doc := report.New().
		Heading(2, "Transaction Compliance Analysis").
		Fields(report.F("Transaction ID", transactionID), report.F("Analysis Time", now.Format(TimeFormat)))

	var status report.Fields
	if data.ComplianceStatus.Present() {
		status = append(status, report.F("Compliance Status", data.ComplianceStatus.String()))
	}
	if data.RiskScore.Present() {
		status = append(status, report.F("Risk Score", data.RiskScore.String()+"/100"))
	}
	doc.Add(status)

	if len(data.Issues) > 0 {
		items := make([]report.Item, 0, len(data.Issues))
		for _, issue := range data.Issues {
			var sub []report.Item
			if issue.Recommendation.Present() {
				sub = append(sub, report.Bullet("Recommendation: "+issue.Recommendation.String()))
			}
			items = append(items, report.Bullet(report.KV(issue.Category.Or(unknown), issue.Description.Or(unknown)), sub...))
		}
		doc.Heading(3, "Identified Issues").List("", items...)
	} else {
		doc.Heading(3, noIssues)
	}

	if len(data.RegulatoryReferences) > 0 {
		items := make([]report.Item, 0, len(data.RegulatoryReferences))
		for _, ref := range data.RegulatoryReferences {
			items = append(items, report.Bullet(ref.Code.Or(unknown)+": "+ref.Description.Or(unknown)))
		}
		doc.Heading(3, "Regulatory References").List("", items...)
	}
	return doc.String()
}

// RenderKYCVerification renders verify_customer_kyc.
func RenderKYCVerification(customerID string, o Outcome[KYCVerification], now time.Time) string {
	if o.Err != nil {
		return errorReport(errVerifyKYC, o.Err)
	}
	data := o.Value

	doc := report.New().
		Heading(2, "Customer KYC Verification").
		Fields(report.F("Customer ID", customerID), report.F("Verification Time", now.Format(TimeFormat)))

	var status report.Fields
	if data.VerificationStatus.Present() {
		status = append(status, report.F("Verification Status", data.VerificationStatus.String()))
	}
	if data.VerificationDate.Present() {
		status = append(status, report.F("Last Verified", data.VerificationDate.String()))
	}
	doc.Add(status)

	if id := data.IdentityVerification; id != nil {
		items := []report.Item{
			report.Bullet(report.KV("Status", id.Status.Or(unknown))),
			report.Bullet(report.KV("Method", id.Method.Or(unknown))),
		}
		if len(id.Issues) > 0 {
			items = append(items, report.Bullet(label("Issues"), report.Bullets(texts(id.Issues)...)...))
		}
		doc.Heading(3, "Identity Verification").List("", items...)
	}

	if aml := data.AMLScreening; aml != nil {
		items := []report.Item{
			report.Bullet(report.KV("Status", aml.Status.Or(unknown))),
			report.Bullet(report.KV("Risk Level", aml.RiskLevel.Or(unknown))),
		}
		if len(aml.Matches) > 0 {
			matches := make([]report.Item, 0, len(aml.Matches))
			for _, m := range aml.Matches {
				matches = append(matches, report.Bullet(m.ListName.Or(unknown)+": "+m.MatchDetails.Or(unknown)))
			}
			items = append(items, report.Bullet(label("Watchlist Matches"), matches...))
		}
		doc.Heading(3, "AML Screening").List("", items...)
	}

	if len(data.RequiredActions) > 0 {
		doc.Heading(3, "Required Actions").List("", report.Bullets(texts(data.RequiredActions)...)...)
	}
	return doc.String()
}

// RenderCommunicationAnalysis renders analyze_communication.
func RenderCommunicationAnalysis(communicationID string, o Outcome[CommunicationAnalysis], now time.Time) string {
	if o.Err != nil {
		return errorReport(errAnalyzeCommunication, o.Err)
	}
	data := o.Value

	doc := report.New().
		Heading(2, "Communication Compliance Analysis").
		Fields(report.F("Communication ID", communicationID), report.F("Analysis Time", now.Format(TimeFormat)))

	var status report.Fields
	if data.CommunicationType.Present() {
		status = append(status, report.F("Type", data.CommunicationType.String()))
	}
	if data.ComplianceStatus.Present() {
		status = append(status, report.F("Compliance Status", data.ComplianceStatus.String()))
	}
	if data.SentimentAnalysis != nil {
		status = append(status, report.F("Sentiment", data.SentimentAnalysis.Overall.Or(unknown)))
	}
	doc.Add(status)

	if len(data.Issues) > 0 {
		items := make([]report.Item, 0, len(data.Issues))
		for _, issue := range data.Issues {
			var sub []report.Item
			if issue.Severity.Present() {
				sub = append(sub, report.Bullet("Severity: "+issue.Severity.String()))
			}
			if issue.Context.Present() {
				sub = append(sub, report.Bullet(`Context: "`+issue.Context.String()+`"`))
			}
			items = append(items, report.Bullet(report.KV(issue.Category.Or(unknown), issue.Description.Or(unknown)), sub...))
		}
		doc.Heading(3, "Identified Issues").List("", items...)
	} else {
		doc.Heading(3, noIssues)
	}

	if len(data.Recommendations) > 0 {
		doc.Heading(3, "Recommendations").List("", report.Bullets(texts(data.Recommendations)...)...)
	}
	return doc.String()
}

// RenderRegulatoryUpdates renders get_regulatory_updates. Each update is its
// own subsection closed by a horizontal rule.
func RenderRegulatoryUpdates(o Outcome[RegulatoryUpdates], now time.Time) string {
	if o.Err != nil {
		return errorReport(errRegulatoryUpdates, o.Err)
	}
	data := o.Value

	doc := report.New().
		Heading(2, "Recent Regulatory Updates").
		Fields(report.F("Retrieved", now.Format(TimeFormat)))

	if len(data.Updates) == 0 {
		return doc.Paragraph(noUpdates).String()
	}
	for _, u := range data.Updates {
		doc.Heading(3, u.Title.Or(untitledUpdate)).
			Fields(
				report.F("Date", u.Date.Or(unknown)),
				report.F("Jurisdiction", u.Jurisdiction.Or(globalScope)),
				report.F("Category", u.Category.Or(generalCategory)),
			).
			Paragraph(u.Summary.Or(noSummary)).
			List("Required Actions", report.Bullets(texts(u.ActionItems)...)...).
			Rule()
	}
	return doc.String()
}

// RenderComplianceReport renders generate_compliance_report. The report type is
// capitalized in the heading.
func RenderComplianceReport(entityID, reportType string, o Outcome[ComplianceReport], now time.Time) string {
	if o.Err != nil {
		return errorReport(errComplianceReport, o.Err)
	}
	data := o.Value
	kind := capitalize(reportType)

	doc := report.New().
		Heading(2, kind+" Compliance Report").
		Fields(
			report.F("Entity ID", entityID),
			report.F("Report Time", now.Format(TimeFormat)),
			report.F("Report Type", kind),
		)

	if data.Summary.Present() {
		doc.Heading(3, "Summary").Paragraph(data.Summary.String())
	}

	if risk := data.RiskAssessment; risk != nil {
		items := make([]report.Item, 0, len(risk.Factors))
		for _, f := range risk.Factors {
			items = append(items, detailed(f.Name, f.Level, f.Details))
		}
		doc.Heading(3, "Risk Assessment").
			Fields(report.F("Overall Risk", risk.Overall.Or(unknown))).
			List("Risk Factors", items...)
	}

	if status := data.ComplianceStatus; status != nil {
		items := make([]report.Item, 0, len(status.Categories))
		for _, c := range status.Categories {
			items = append(items, detailed(c.Name, c.Status, c.Details))
		}
		doc.Heading(3, "Compliance Status").
			Fields(report.F("Status", status.Overall.Or(unknown))).
			List("", items...)
	}

	if len(data.Recommendations) > 0 {
		doc.Heading(3, "Recommendations").List("", report.Bullets(texts(data.Recommendations)...)...)
	}
	return doc.String()
}

// detailed renders "**name**: value" with an optional details sub-bullet.
func detailed(name, value, details Text) report.Item {
	var sub []report.Item
	if details.Present() {
		sub = append(sub, report.Bullet(details.String()))
	}
	return report.Bullet(report.KV(name.Or(unknown), value.Or(unknown)), sub...)
}

// capitalize upper-cases the first character and lower-cases the rest.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r[:1]) + strings.ToLower(string(r[1:]))
}
