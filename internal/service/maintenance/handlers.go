package maintenance

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/veloxpos/audit-engine/internal/domain/audit"
	"github.com/veloxpos/audit-engine/internal/domain/errors"
)

// runCleanup invokes the store's archive/delete routine and summarizes
// the per-table totals.
func (s *Service) runCleanup(ctx context.Context) (string, map[string]any, error) {
	callCtx, cancel, err := s.storeCall(ctx)
	if err != nil {
		return "", nil, err
	}
	defer cancel()

	results, err := s.store.RunCleanup(callCtx)
	if err != nil {
		return "", nil, errors.Wrap(err, "store cleanup failed")
	}

	var archived, deleted int64
	tables := make(map[string]any, len(results))
	for _, r := range results {
		archived += r.RecordsArchived
		deleted += r.RecordsDeleted
		tables[r.TableName] = map[string]any{
			"archived": r.RecordsArchived,
			"deleted":  r.RecordsDeleted,
		}
	}

	summary := fmt.Sprintf("cleanup archived %d and deleted %d records across %d tables",
		archived, deleted, len(results))
	return summary, map[string]any{"tables": tables, "archived": archived, "deleted": deleted}, nil
}

// runIntegrityCheck invokes structural and data validation. Success
// requires zero issues; any issue fails the task with the issue count in
// the summary.
func (s *Service) runIntegrityCheck(ctx context.Context) (string, map[string]any, error) {
	callCtx, cancel, err := s.storeCall(ctx)
	if err != nil {
		return "", nil, err
	}
	defer cancel()

	issues, err := s.store.RunIntegrityValidation(callCtx)
	if err != nil {
		return "", nil, errors.Wrap(err, "store integrity validation failed")
	}

	details := map[string]any{"issue_count": len(issues), "issues": issues}
	if len(issues) > 0 {
		return "", details, errors.NewBusinessError("INTEGRITY_ISSUES",
			fmt.Sprintf("integrity check found %d issue(s)", len(issues)))
	}
	return "integrity check found no issues", details, nil
}

// runComplianceCheck runs the store's named compliance rules. Success
// requires every check to pass.
func (s *Service) runComplianceCheck(ctx context.Context) (string, map[string]any, error) {
	callCtx, cancel, err := s.storeCall(ctx)
	if err != nil {
		return "", nil, err
	}
	defer cancel()

	checks, err := s.store.RunComplianceChecks(callCtx)
	if err != nil {
		return "", nil, errors.Wrap(err, "store compliance checks failed")
	}

	failed := 0
	for _, c := range checks {
		if c.Status == audit.CheckFailed {
			failed++
		}
	}

	details := map[string]any{"checks_total": len(checks), "checks_failed": failed, "checks": checks}
	if failed > 0 {
		return "", details, errors.NewBusinessError("COMPLIANCE_FAILURES",
			fmt.Sprintf("%d of %d compliance checks failed", failed, len(checks)))
	}
	return fmt.Sprintf("all %d compliance checks passed", len(checks)), details, nil
}

// runReportGeneration produces a named security report over the trailing
// report window. Success or failure is whatever the store says about the
// create call.
func (s *Service) runReportGeneration(ctx context.Context) (string, map[string]any, error) {
	callCtx, cancel, err := s.storeCall(ctx)
	if err != nil {
		return "", nil, err
	}
	defer cancel()

	end := time.Now().UTC()
	start := end.Add(-s.config.ReportWindow)

	spec := audit.ReportSpec{
		Name:        fmt.Sprintf("security-report-%s", end.Format("2006-01-02")),
		ReportType:  "security",
		PeriodStart: start,
		PeriodEnd:   end,
	}

	riskScore := -1
	if s.reportGen != nil {
		report, err := s.reportGen.GenerateReport(ctx, start, end)
		if err != nil {
			// The report row is still created; it just carries no payload.
			s.logger.Warn("security report payload generation failed", zap.Error(err))
		} else {
			spec.Payload = report
			riskScore = report.RiskScore
		}
	}

	reportID, err := s.store.CreateReport(callCtx, spec)
	if err != nil {
		return "", nil, errors.Wrap(err, "report generation failed")
	}

	summary := fmt.Sprintf("generated report %q covering %s to %s",
		spec.Name, start.Format("2006-01-02"), end.Format("2006-01-02"))
	details := map[string]any{"report_id": reportID.String(), "period_start": start, "period_end": end}
	if riskScore >= 0 {
		details["risk_score"] = riskScore
	}
	return summary, details, nil
}

// runSystemMaintenance is the generic stage of a full maintenance run:
// it verifies the store answers and reports the trailing day's volume.
func (s *Service) runSystemMaintenance(ctx context.Context) (string, map[string]any, error) {
	callCtx, cancel, err := s.storeCall(ctx)
	if err != nil {
		return "", nil, err
	}
	defer cancel()

	since := time.Now().UTC().Add(-24 * time.Hour)
	count, err := s.store.CountRecords(callCtx, audit.RecordFilter{Since: &since})
	if err != nil {
		return "", nil, errors.Wrap(err, "store health probe failed")
	}

	summary := fmt.Sprintf("system maintenance completed, %d audit records in the last 24h", count)
	return summary, map[string]any{"records_last_24h": count}, nil
}
