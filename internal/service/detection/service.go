package detection

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/veloxpos/audit-engine/internal/domain/audit"
)

// Service runs pattern detection over windows pulled from the record
// store. It is fail-open: if the store cannot be reached the scan logs
// the failure and reports no findings rather than erroring out, so a
// storage outage never takes the dashboard down with it.
type Service struct {
	store    audit.RecordStore
	detector *Detector
	logger   *zap.Logger
}

// NewService creates a detection service.
func NewService(store audit.RecordStore, detector *Detector, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		detector: detector,
		logger:   logger,
	}
}

// DetectPatterns scans the trailing hoursBack hours of audit records and
// returns the findings.
func (s *Service) DetectPatterns(ctx context.Context, hoursBack int) ([]audit.SecurityEvent, error) {
	if hoursBack <= 0 {
		hoursBack = 24
	}

	now := time.Now().UTC()
	since := now.Add(-time.Duration(hoursBack) * time.Hour)

	records, err := s.store.ListRecords(ctx, audit.RecordFilter{Since: &since, Until: &now})
	if err != nil {
		s.logger.Warn("pattern detection skipped, record store unreachable",
			zap.Int("hours_back", hoursBack),
			zap.Error(err))
		return []audit.SecurityEvent{}, nil
	}

	events := s.detector.Detect(records, now)
	if len(events) > 0 {
		s.logger.Info("suspicious patterns detected",
			zap.Int("findings", len(events)),
			zap.Int("records_scanned", len(records)),
			zap.Int("hours_back", hoursBack))
	}
	return events, nil
}

// DetectWindow runs detection over an explicit period. Used by the
// report generator, which works in period bounds rather than trailing
// hours.
func (s *Service) DetectWindow(ctx context.Context, start, end time.Time) ([]audit.SecurityEvent, error) {
	records, err := s.store.ListRecords(ctx, audit.RecordFilter{Since: &start, Until: &end})
	if err != nil {
		s.logger.Warn("window detection skipped, record store unreachable",
			zap.Time("start", start),
			zap.Time("end", end),
			zap.Error(err))
		return []audit.SecurityEvent{}, nil
	}
	return s.detector.Detect(records, end), nil
}
