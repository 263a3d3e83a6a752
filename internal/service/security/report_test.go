package security

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/veloxpos/audit-engine/internal/domain/audit"
	"github.com/veloxpos/audit-engine/internal/domain/errors"
	"github.com/veloxpos/audit-engine/internal/service/detection"
)

type fakeStore struct {
	records  []*audit.Record
	listErr  error
	countErr error
}

func (f *fakeStore) ListRecords(_ context.Context, filter audit.RecordFilter) ([]*audit.Record, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*audit.Record
	for _, r := range f.records {
		if filter.Matches(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) CountRecords(_ context.Context, filter audit.RecordFilter) (int64, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	var n int64
	for _, r := range f.records {
		if filter.Matches(r) {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) GetRecordByID(_ context.Context, id uuid.UUID) (*audit.Record, error) {
	for _, r := range f.records {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, errors.NewNotFoundError("audit record")
}

func (f *fakeStore) RunCleanup(context.Context) ([]audit.CleanupResult, error) { return nil, nil }

func (f *fakeStore) RunIntegrityValidation(context.Context) ([]audit.ValidationIssue, error) {
	return nil, nil
}

func (f *fakeStore) RunComplianceChecks(context.Context) ([]audit.ComplianceCheck, error) {
	return nil, nil
}

func (f *fakeStore) CreateReport(context.Context, audit.ReportSpec) (uuid.UUID, error) {
	return uuid.New(), nil
}

type memoryCache struct {
	reports map[string]*audit.SecurityReport
	sets    int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{reports: make(map[string]*audit.SecurityReport)}
}

func (c *memoryCache) key(start, end time.Time) string {
	return start.UTC().Format(time.RFC3339) + "/" + end.UTC().Format(time.RFC3339)
}

func (c *memoryCache) GetReport(_ context.Context, start, end time.Time) (*audit.SecurityReport, error) {
	return c.reports[c.key(start, end)], nil
}

func (c *memoryCache) SetReport(_ context.Context, report *audit.SecurityReport) error {
	c.sets++
	c.reports[c.key(report.PeriodStart, report.PeriodEnd)] = report
	return nil
}

func deleteRecords(n int, actor string, at time.Time) []*audit.Record {
	records := make([]*audit.Record, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, &audit.Record{
			ID:         uuid.New(),
			ActorID:    actor,
			Action:     audit.ActionDelete,
			EntityType: "product",
			CreatedAt:  at.Add(time.Duration(i) * time.Second),
		})
	}
	return records
}

func newReportService(store *fakeStore, cache ReportCache) *ReportService {
	logger := zap.NewNop()
	det := detection.NewService(store, detection.NewDetector(detection.DefaultThresholds()), logger)
	return NewReportService(store, det, NewScorer(), cache, logger)
}

func TestReportService_GenerateReport(t *testing.T) {
	end := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	start := end.Add(-24 * time.Hour)

	t.Run("composes findings, score and verdict", func(t *testing.T) {
		store := &fakeStore{records: deleteRecords(6, "clerk-1", end.Add(-30*time.Minute))}
		svc := newReportService(store, nil)

		report, err := svc.GenerateReport(context.Background(), start, end)

		require.NoError(t, err)
		assert.Equal(t, start, report.PeriodStart)
		assert.Equal(t, end, report.PeriodEnd)
		assert.Equal(t, int64(6), report.TotalEvents)
		require.NotEmpty(t, report.Events)
		assert.Equal(t, 15, report.RiskScore)
		assert.Equal(t, audit.ComplianceNeedsReview, report.Compliance)
		assert.NotEmpty(t, report.Recommendations)
	})

	t.Run("quiet period is compliant with monitoring advice", func(t *testing.T) {
		store := &fakeStore{}
		svc := newReportService(store, nil)

		report, err := svc.GenerateReport(context.Background(), start, end)

		require.NoError(t, err)
		assert.Equal(t, 0, report.RiskScore)
		assert.Empty(t, report.Events)
		assert.Equal(t, audit.ComplianceCompliant, report.Compliance)
		assert.Contains(t, report.Recommendations[0], "No suspicious patterns")
	})

	t.Run("total event count is independent of findings", func(t *testing.T) {
		// Plenty of legitimate traffic, no suspicious patterns.
		records := make([]*audit.Record, 0, 50)
		for i := 0; i < 50; i++ {
			records = append(records, &audit.Record{
				ID:         uuid.New(),
				ActorID:    "clerk-1",
				Action:     audit.ActionSale,
				EntityType: "sale",
				CreatedAt:  end.Add(-2 * time.Hour),
			})
		}
		store := &fakeStore{records: records}
		svc := newReportService(store, nil)

		report, err := svc.GenerateReport(context.Background(), start, end)

		require.NoError(t, err)
		assert.Equal(t, int64(50), report.TotalEvents)
		assert.Empty(t, report.Events)
	})

	t.Run("store outage degrades to neutral report", func(t *testing.T) {
		unavailable := errors.NewUnavailableError("record store", "connection refused")
		store := &fakeStore{listErr: unavailable, countErr: unavailable}
		svc := newReportService(store, nil)

		report, err := svc.GenerateReport(context.Background(), start, end)

		require.NoError(t, err)
		assert.Equal(t, int64(0), report.TotalEvents)
		assert.Empty(t, report.Events)
		assert.Equal(t, audit.ComplianceCompliant, report.Compliance)
	})

	t.Run("second generation hits the cache", func(t *testing.T) {
		store := &fakeStore{records: deleteRecords(6, "clerk-1", end.Add(-30*time.Minute))}
		cache := newMemoryCache()
		svc := newReportService(store, cache)

		first, err := svc.GenerateReport(context.Background(), start, end)
		require.NoError(t, err)

		second, err := svc.GenerateReport(context.Background(), start, end)
		require.NoError(t, err)

		assert.Equal(t, 1, cache.sets)
		assert.Equal(t, first.RiskScore, second.RiskScore)
		assert.Equal(t, first.GeneratedAt, second.GeneratedAt)
	})
}
