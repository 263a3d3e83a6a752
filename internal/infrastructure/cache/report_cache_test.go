package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/veloxpos/audit-engine/internal/domain/audit"
)

func setupReportCache(t *testing.T) (*ReportCache, *miniredis.Miniredis) {
	t.Helper()

	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewReportCache(client, time.Minute, zaptest.NewLogger(t)), s
}

func sampleReport(start, end time.Time) *audit.SecurityReport {
	return &audit.SecurityReport{
		PeriodStart: start,
		PeriodEnd:   end,
		TotalEvents: 120,
		Events: []audit.SecurityEvent{{
			Kind:     audit.PatternBulkDeletion,
			Severity: audit.SeverityHigh,
			ActorID:  "user-7",
			Count:    9,
		}},
		RiskScore:       15,
		Recommendations: []string{"Review 1 suspicious pattern(s) detected in this period"},
		Compliance:      audit.ComplianceNeedsReview,
		GeneratedAt:     time.Now().UTC().Truncate(time.Second),
	}
}

func TestReportCache_RoundTrip(t *testing.T) {
	cache, _ := setupReportCache(t)
	ctx := context.Background()

	end := time.Now().UTC().Truncate(time.Second)
	start := end.Add(-24 * time.Hour)
	report := sampleReport(start, end)

	require.NoError(t, cache.SetReport(ctx, report))

	got, err := cache.GetReport(ctx, start, end)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, report.RiskScore, got.RiskScore)
	assert.Equal(t, report.Compliance, got.Compliance)
	assert.Equal(t, report.TotalEvents, got.TotalEvents)
	require.Len(t, got.Events, 1)
	assert.Equal(t, audit.PatternBulkDeletion, got.Events[0].Kind)
}

func TestReportCache_MissReturnsNil(t *testing.T) {
	cache, _ := setupReportCache(t)

	got, err := cache.GetReport(context.Background(), time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestReportCache_DifferentPeriodIsAMiss(t *testing.T) {
	cache, _ := setupReportCache(t)
	ctx := context.Background()

	end := time.Now().UTC().Truncate(time.Second)
	start := end.Add(-24 * time.Hour)
	require.NoError(t, cache.SetReport(ctx, sampleReport(start, end)))

	got, err := cache.GetReport(ctx, start.Add(-time.Hour), end)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestReportCache_ExpiredEntryIsAMiss(t *testing.T) {
	cache, s := setupReportCache(t)
	ctx := context.Background()

	end := time.Now().UTC().Truncate(time.Second)
	start := end.Add(-24 * time.Hour)
	require.NoError(t, cache.SetReport(ctx, sampleReport(start, end)))

	s.FastForward(2 * time.Minute)

	got, err := cache.GetReport(ctx, start, end)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestReportCache_CorruptEntryIsDropped(t *testing.T) {
	cache, s := setupReportCache(t)
	ctx := context.Background()

	end := time.Now().UTC().Truncate(time.Second)
	start := end.Add(-24 * time.Hour)
	require.NoError(t, s.Set(reportKey(start, end), "not json"))

	got, err := cache.GetReport(ctx, start, end)
	require.NoError(t, err)
	assert.Nil(t, got)

	// The bad entry is evicted, not left to fail again.
	assert.False(t, s.Exists(reportKey(start, end)))
}

func TestReportCache_RedisOutageSurfacesAnError(t *testing.T) {
	cache, s := setupReportCache(t)
	s.Close()

	_, err := cache.GetReport(context.Background(), time.Now().Add(-time.Hour), time.Now())
	assert.Error(t, err)
}
