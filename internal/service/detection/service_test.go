package detection

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
)

// stubRecordStore serves a fixed record set and remembers the last
// filter it saw.
type stubRecordStore struct {
	records    []*audit.Record
	listErr    error
	lastFilter audit.RecordFilter
}

func (s *stubRecordStore) ListRecords(_ context.Context, filter audit.RecordFilter) ([]*audit.Record, error) {
	s.lastFilter = filter
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []*audit.Record
	for _, r := range s.records {
		if filter.Matches(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *stubRecordStore) CountRecords(_ context.Context, filter audit.RecordFilter) (int64, error) {
	records, err := s.ListRecords(context.Background(), filter)
	return int64(len(records)), err
}

func (s *stubRecordStore) GetRecordByID(_ context.Context, id uuid.UUID) (*audit.Record, error) {
	for _, r := range s.records {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, errors.NewNotFoundError("audit record")
}

func (s *stubRecordStore) RunCleanup(context.Context) ([]audit.CleanupResult, error) {
	return nil, nil
}

func (s *stubRecordStore) RunIntegrityValidation(context.Context) ([]audit.ValidationIssue, error) {
	return nil, nil
}

func (s *stubRecordStore) RunComplianceChecks(context.Context) ([]audit.ComplianceCheck, error) {
	return nil, nil
}

func (s *stubRecordStore) CreateReport(context.Context, audit.ReportSpec) (uuid.UUID, error) {
	return uuid.New(), nil
}

func TestService_DetectPatterns(t *testing.T) {
	t.Run("finds patterns in recent records", func(t *testing.T) {
		store := &stubRecordStore{
			records: makeRecords(6, "clerk-1", audit.ActionDelete, time.Now().UTC().Add(-10*time.Minute)),
		}
		svc := NewService(store, NewDetector(DefaultThresholds()), zap.NewNop())

		events, err := svc.DetectPatterns(context.Background(), 24)

		require.NoError(t, err)
		require.Len(t, findByKind(events, audit.PatternBulkDeletion), 1)
		require.NotNil(t, store.lastFilter.Since)
	})

	t.Run("fail-open on store error", func(t *testing.T) {
		store := &stubRecordStore{listErr: errors.NewUnavailableError("record store", "connection refused")}
		svc := NewService(store, NewDetector(DefaultThresholds()), zap.NewNop())

		events, err := svc.DetectPatterns(context.Background(), 24)

		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("non-positive hours defaults to a day", func(t *testing.T) {
		store := &stubRecordStore{}
		svc := NewService(store, NewDetector(DefaultThresholds()), zap.NewNop())

		_, err := svc.DetectPatterns(context.Background(), 0)

		require.NoError(t, err)
		require.NotNil(t, store.lastFilter.Since)
		window := store.lastFilter.Until.Sub(*store.lastFilter.Since)
		assert.Equal(t, 24*time.Hour, window)
	})
}

func TestService_DetectWindow(t *testing.T) {
	end := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	start := end.Add(-6 * time.Hour)

	store := &stubRecordStore{
		records: makeRecords(6, "clerk-1", audit.ActionDelete, end.Add(-30*time.Minute)),
	}
	svc := NewService(store, NewDetector(DefaultThresholds()), zap.NewNop())

	events, err := svc.DetectWindow(context.Background(), start, end)

	require.NoError(t, err)
	assert.Len(t, findByKind(events, audit.PatternBulkDeletion), 1)
}
