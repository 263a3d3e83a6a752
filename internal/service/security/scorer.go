package security

import (
	"fmt"

	"github.com/veloxpos/audit-engine/internal/domain/audit"
)

// Severity weights for risk scoring.
const (
	weightCritical = 25
	weightHigh     = 15
	weightMedium   = 8
	weightLow      = 3
)

// Verdict thresholds: above nonCompliantScore the period is
// non-compliant, above needsReviewScore (or with any high-severity
// finding) it needs review.
const (
	nonCompliantScore = 50
	needsReviewScore  = 20
)

// Scorer turns a period's findings into a bounded risk score, a
// compliance verdict and operator recommendations. Pure; safe to call
// from anywhere.
type Scorer struct{}

// NewScorer creates a scorer.
func NewScorer() *Scorer {
	return &Scorer{}
}

// Score sums severity weights over the findings and clamps the result
// into [0, 100].
func (s *Scorer) Score(events []audit.SecurityEvent) int {
	score := 0
	for _, e := range events {
		switch e.Severity {
		case audit.SeverityCritical:
			score += weightCritical
		case audit.SeverityHigh:
			score += weightHigh
		case audit.SeverityMedium:
			score += weightMedium
		case audit.SeverityLow:
			score += weightLow
		}
	}
	if score > audit.RiskScoreMax {
		score = audit.RiskScoreMax
	}
	if score < audit.RiskScoreMin {
		score = audit.RiskScoreMin
	}
	return score
}

// Verdict derives the compliance status from the score and the findings.
// A single high-severity finding forces at least needs_review even when
// the aggregate score is low.
func (s *Scorer) Verdict(score int, events []audit.SecurityEvent) audit.ComplianceStatus {
	if score > nonCompliantScore {
		return audit.ComplianceNonCompliant
	}
	if score > needsReviewScore {
		return audit.ComplianceNeedsReview
	}
	for _, e := range events {
		if e.Severity.AtLeast(audit.SeverityHigh) {
			return audit.ComplianceNeedsReview
		}
	}
	return audit.ComplianceCompliant
}

// Recommendations builds the ordered operator guidance for the findings.
func (s *Scorer) Recommendations(events []audit.SecurityEvent) []string {
	if len(events) == 0 {
		return []string{
			"No suspicious patterns were found in this period",
			"Continue routine monitoring of audit activity",
		}
	}

	var recs []string

	criticals := 0
	for _, e := range events {
		if e.Severity == audit.SeverityCritical {
			criticals++
		}
	}
	if criticals > 0 {
		recs = append(recs, fmt.Sprintf("URGENT: investigate %d critical finding(s) immediately", criticals))
	}

	recs = append(recs, fmt.Sprintf("Review %d suspicious pattern(s) detected in this period", len(events)))

	seen := make(map[audit.PatternKind]bool)
	for _, e := range events {
		if seen[e.Kind] {
			continue
		}
		seen[e.Kind] = true
		switch e.Kind {
		case audit.PatternUnauthorizedAccess:
			recs = append(recs, "Review access control assignments and rotate affected credentials")
		case audit.PatternMultipleIPs, audit.PatternAfterHoursActivity:
			recs = append(recs, fmt.Sprintf("Verify activity flagged as %s with the account owner", e.Kind))
		}
	}

	return recs
}
