package audit

import "time"

// ComplianceStatus is the overall verdict attached to a security report.
type ComplianceStatus string

const (
	ComplianceCompliant    ComplianceStatus = "compliant"
	ComplianceNeedsReview  ComplianceStatus = "needs_review"
	ComplianceNonCompliant ComplianceStatus = "non_compliant"
)

// Risk score bounds. Scores are always clamped into this range.
const (
	RiskScoreMin = 0
	RiskScoreMax = 100
)

// SecurityReport composes a period's findings, aggregate risk score and
// compliance verdict.
type SecurityReport struct {
	PeriodStart     time.Time        `json:"period_start"`
	PeriodEnd       time.Time        `json:"period_end"`
	TotalEvents     int64            `json:"total_events"`
	Events          []SecurityEvent  `json:"events"`
	RiskScore       int              `json:"risk_score"`
	Recommendations []string         `json:"recommendations"`
	Compliance      ComplianceStatus `json:"compliance"`
	GeneratedAt     time.Time        `json:"generated_at"`
}

// HighestSeverity returns the most severe finding in the report, or the
// empty Severity when there are no findings.
func (r *SecurityReport) HighestSeverity() Severity {
	var highest Severity
	for _, e := range r.Events {
		if e.Severity.Rank() > highest.Rank() {
			highest = e.Severity
		}
	}
	return highest
}
