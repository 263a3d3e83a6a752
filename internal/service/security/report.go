package security

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/veloxpos/audit-engine/internal/domain/audit"
	"github.com/veloxpos/audit-engine/internal/service/detection"
)

// ReportCache caches generated reports keyed by period. A nil cache is
// valid; caching is an optimization, never a correctness requirement.
type ReportCache interface {
	GetReport(ctx context.Context, start, end time.Time) (*audit.SecurityReport, error)
	SetReport(ctx context.Context, report *audit.SecurityReport) error
}

// ReportService composes the pattern detector and risk scorer into dated
// security reports. Composition only; every algorithmic decision lives
// in the detector and the scorer.
type ReportService struct {
	store     audit.RecordStore
	detection *detection.Service
	scorer    *Scorer
	cache     ReportCache
	logger    *zap.Logger
}

// NewReportService creates a report service. cache may be nil.
func NewReportService(store audit.RecordStore, det *detection.Service, scorer *Scorer, cache ReportCache, logger *zap.Logger) *ReportService {
	return &ReportService{
		store:     store,
		detection: det,
		scorer:    scorer,
		cache:     cache,
		logger:    logger,
	}
}

// GenerateReport builds the security report for a period. The total
// event count comes from the store independently of the findings, so a
// quiet period with heavy legitimate traffic still reports its volume.
// Store failures degrade to neutral values rather than erroring.
func (s *ReportService) GenerateReport(ctx context.Context, start, end time.Time) (*audit.SecurityReport, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetReport(ctx, start, end); err == nil && cached != nil {
			return cached, nil
		}
	}

	events, err := s.detection.DetectWindow(ctx, start, end)
	if err != nil {
		// DetectWindow is fail-open; this is unreachable in practice.
		events = []audit.SecurityEvent{}
	}

	total, err := s.store.CountRecords(ctx, audit.RecordFilter{Since: &start, Until: &end})
	if err != nil {
		s.logger.Warn("event count unavailable for report period",
			zap.Time("start", start),
			zap.Time("end", end),
			zap.Error(err))
		total = 0
	}

	score := s.scorer.Score(events)
	report := &audit.SecurityReport{
		PeriodStart:     start,
		PeriodEnd:       end,
		TotalEvents:     total,
		Events:          events,
		RiskScore:       score,
		Recommendations: s.scorer.Recommendations(events),
		Compliance:      s.scorer.Verdict(score, events),
		GeneratedAt:     time.Now().UTC(),
	}

	if s.cache != nil {
		if err := s.cache.SetReport(ctx, report); err != nil {
			s.logger.Debug("report cache write failed", zap.Error(err))
		}
	}

	s.logger.Info("security report generated",
		zap.Time("period_start", start),
		zap.Time("period_end", end),
		zap.Int("risk_score", report.RiskScore),
		zap.Int("findings", len(report.Events)),
		zap.String("compliance", string(report.Compliance)))

	return report, nil
}
