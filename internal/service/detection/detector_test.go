package detection

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veloxpos/audit-engine/internal/domain/audit"
)

// now is mid-afternoon so generated records stay inside business hours
// unless a test moves them deliberately.
var testNow = time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)

func makeRecord(actor string, action audit.ActionKind, at time.Time) *audit.Record {
	return &audit.Record{
		ID:         uuid.New(),
		ActorID:    actor,
		Action:     action,
		EntityType: "product",
		CreatedAt:  at,
	}
}

func makeRecords(n int, actor string, action audit.ActionKind, at time.Time) []*audit.Record {
	records := make([]*audit.Record, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, makeRecord(actor, action, at.Add(time.Duration(i)*time.Second)))
	}
	return records
}

func findByKind(events []audit.SecurityEvent, kind audit.PatternKind) []audit.SecurityEvent {
	var out []audit.SecurityEvent
	for _, e := range events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func TestDetector_BulkDeletion(t *testing.T) {
	d := NewDetector(DefaultThresholds())

	t.Run("six deletes in an hour yields one high finding", func(t *testing.T) {
		records := makeRecords(6, "clerk-1", audit.ActionDelete, testNow.Add(-30*time.Minute))

		events := d.Detect(records, testNow)
		bulk := findByKind(events, audit.PatternBulkDeletion)

		require.Len(t, bulk, 1)
		assert.Equal(t, audit.SeverityHigh, bulk[0].Severity)
		assert.Equal(t, "clerk-1", bulk[0].ActorID)
		assert.Equal(t, 6, bulk[0].Count)
	})

	t.Run("twenty-one deletes upgrades to critical", func(t *testing.T) {
		records := makeRecords(21, "clerk-1", audit.ActionDelete, testNow.Add(-30*time.Minute))

		events := d.Detect(records, testNow)
		bulk := findByKind(events, audit.PatternBulkDeletion)

		require.Len(t, bulk, 1)
		assert.Equal(t, audit.SeverityCritical, bulk[0].Severity)
		assert.Equal(t, 21, bulk[0].Count)
	})

	t.Run("five deletes stays quiet", func(t *testing.T) {
		records := makeRecords(5, "clerk-1", audit.ActionDelete, testNow.Add(-30*time.Minute))

		events := d.Detect(records, testNow)

		assert.Empty(t, findByKind(events, audit.PatternBulkDeletion))
	})

	t.Run("deletes spread over the window still flag via extended rule", func(t *testing.T) {
		// Six deletes but only two inside the trailing hour.
		records := makeRecords(4, "clerk-1", audit.ActionDelete, testNow.Add(-5*time.Hour))
		records = append(records, makeRecords(2, "clerk-1", audit.ActionDelete, testNow.Add(-20*time.Minute))...)

		events := d.Detect(records, testNow)
		bulk := findByKind(events, audit.PatternBulkDeletion)

		require.Len(t, bulk, 1)
		assert.Equal(t, audit.SeverityHigh, bulk[0].Severity)
	})

	t.Run("actors are counted independently", func(t *testing.T) {
		records := makeRecords(6, "clerk-1", audit.ActionDelete, testNow.Add(-30*time.Minute))
		records = append(records, makeRecords(3, "clerk-2", audit.ActionDelete, testNow.Add(-30*time.Minute))...)

		events := d.Detect(records, testNow)
		bulk := findByKind(events, audit.PatternBulkDeletion)

		require.Len(t, bulk, 1)
		assert.Equal(t, "clerk-1", bulk[0].ActorID)
	})

	t.Run("records first and last contributing timestamps", func(t *testing.T) {
		start := testNow.Add(-50 * time.Minute)
		records := makeRecords(6, "clerk-1", audit.ActionDelete, start)

		events := d.Detect(records, testNow)
		bulk := findByKind(events, audit.PatternBulkDeletion)

		require.Len(t, bulk, 1)
		assert.Equal(t, start, bulk[0].FirstSeen)
		assert.Equal(t, start.Add(5*time.Second), bulk[0].LastSeen)
	})
}

func TestDetector_AfterHours(t *testing.T) {
	d := NewDetector(DefaultThresholds())
	lateNight := time.Date(2025, 3, 10, 22, 0, 0, 0, time.UTC)

	t.Run("six after-hours records flag medium", func(t *testing.T) {
		records := makeRecords(6, "clerk-1", audit.ActionSale, lateNight)

		events := d.Detect(records, lateNight.Add(time.Hour))
		found := findByKind(events, audit.PatternAfterHoursActivity)

		require.Len(t, found, 1)
		assert.Equal(t, audit.SeverityMedium, found[0].Severity)
	})

	t.Run("sixteen after-hours records flag high", func(t *testing.T) {
		records := makeRecords(16, "clerk-1", audit.ActionSale, lateNight)

		events := d.Detect(records, lateNight.Add(time.Hour))
		found := findByKind(events, audit.PatternAfterHoursActivity)

		require.Len(t, found, 1)
		assert.Equal(t, audit.SeverityHigh, found[0].Severity)
	})

	t.Run("business-hours records never flag", func(t *testing.T) {
		records := makeRecords(20, "clerk-1", audit.ActionSale, testNow.Add(-2*time.Hour))

		events := d.Detect(records, testNow)

		assert.Empty(t, findByKind(events, audit.PatternAfterHoursActivity))
	})

	t.Run("boundary hours are business hours", func(t *testing.T) {
		// Hour 8 and hour 18 are inside the working day; 7 and 19 are not.
		within := []*audit.Record{
			makeRecord("clerk-1", audit.ActionSale, time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)),
			makeRecord("clerk-1", audit.ActionSale, time.Date(2025, 3, 10, 18, 59, 0, 0, time.UTC)),
		}
		events := d.Detect(within, testNow)
		assert.Empty(t, findByKind(events, audit.PatternAfterHoursActivity))

		outside := makeRecords(6, "clerk-1", audit.ActionSale, time.Date(2025, 3, 10, 7, 30, 0, 0, time.UTC))
		events = d.Detect(outside, testNow)
		assert.Len(t, findByKind(events, audit.PatternAfterHoursActivity), 1)
	})
}

func TestDetector_HighVolume(t *testing.T) {
	d := NewDetector(DefaultThresholds())

	t.Run("101 events in 24h flags high", func(t *testing.T) {
		records := makeRecords(101, "clerk-1", audit.ActionSale, testNow.Add(-2*time.Hour))

		events := d.Detect(records, testNow)
		found := findByKind(events, audit.PatternHighVolumeActivity)

		require.Len(t, found, 1)
		assert.Equal(t, audit.SeverityHigh, found[0].Severity)
		assert.Equal(t, 101, found[0].Count)
	})

	t.Run("201 events flags critical", func(t *testing.T) {
		records := makeRecords(201, "clerk-1", audit.ActionSale, testNow.Add(-2*time.Hour))

		events := d.Detect(records, testNow)
		found := findByKind(events, audit.PatternHighVolumeActivity)

		require.Len(t, found, 1)
		assert.Equal(t, audit.SeverityCritical, found[0].Severity)
	})

	t.Run("exactly 100 events stays quiet", func(t *testing.T) {
		records := makeRecords(100, "clerk-1", audit.ActionSale, testNow.Add(-2*time.Hour))

		events := d.Detect(records, testNow)

		assert.Empty(t, findByKind(events, audit.PatternHighVolumeActivity))
	})

	t.Run("records older than 24h are excluded", func(t *testing.T) {
		records := makeRecords(101, "clerk-1", audit.ActionSale, testNow.Add(-48*time.Hour))

		events := d.Detect(records, testNow)

		assert.Empty(t, findByKind(events, audit.PatternHighVolumeActivity))
	})
}

func TestDetector_IPChurn(t *testing.T) {
	d := NewDetector(DefaultThresholds())

	recordsWithIPs := func(n int) []*audit.Record {
		records := make([]*audit.Record, 0, n)
		for i := 0; i < n; i++ {
			r := makeRecord("clerk-1", audit.ActionSale, testNow.Add(-time.Hour))
			r.IPAddress = fmt.Sprintf("10.0.0.%d", i+1)
			records = append(records, r)
		}
		return records
	}

	t.Run("six distinct addresses flag medium", func(t *testing.T) {
		events := d.Detect(recordsWithIPs(6), testNow)
		found := findByKind(events, audit.PatternMultipleIPs)

		require.Len(t, found, 1)
		assert.Equal(t, audit.SeverityMedium, found[0].Severity)
	})

	t.Run("eleven distinct addresses flag high", func(t *testing.T) {
		events := d.Detect(recordsWithIPs(11), testNow)
		found := findByKind(events, audit.PatternMultipleIPs)

		require.Len(t, found, 1)
		assert.Equal(t, audit.SeverityHigh, found[0].Severity)
	})

	t.Run("repeated address is one address", func(t *testing.T) {
		records := makeRecords(20, "clerk-1", audit.ActionSale, testNow.Add(-time.Hour))
		for _, r := range records {
			r.IPAddress = "10.0.0.1"
		}

		events := d.Detect(records, testNow)

		assert.Empty(t, findByKind(events, audit.PatternMultipleIPs))
	})

	t.Run("records without an address are ignored", func(t *testing.T) {
		events := d.Detect(makeRecords(20, "clerk-1", audit.ActionSale, testNow.Add(-time.Hour)), testNow)

		assert.Empty(t, findByKind(events, audit.PatternMultipleIPs))
	})
}

func TestDetector_FrequentDeletions(t *testing.T) {
	d := NewDetector(DefaultThresholds())

	t.Run("eleven deletes in 24h flags high", func(t *testing.T) {
		// Spread beyond the trailing hour so the daily rule, not the
		// hourly bulk rule, is what has the eleven in scope.
		records := makeRecords(11, "clerk-1", audit.ActionDelete, testNow.Add(-10*time.Hour))

		events := d.Detect(records, testNow)
		found := findByKind(events, audit.PatternFrequentDeletions)

		require.Len(t, found, 1)
		assert.Equal(t, audit.SeverityHigh, found[0].Severity)
	})

	t.Run("twenty-six deletes flags critical", func(t *testing.T) {
		records := makeRecords(26, "clerk-1", audit.ActionDelete, testNow.Add(-10*time.Hour))

		events := d.Detect(records, testNow)
		found := findByKind(events, audit.PatternFrequentDeletions)

		require.Len(t, found, 1)
		assert.Equal(t, audit.SeverityCritical, found[0].Severity)
	})
}

func TestDetector_UnknownActor(t *testing.T) {
	d := NewDetector(DefaultThresholds())

	records := makeRecords(6, "", audit.ActionDelete, testNow.Add(-30*time.Minute))

	events := d.Detect(records, testNow)
	bulk := findByKind(events, audit.PatternBulkDeletion)

	require.Len(t, bulk, 1)
	assert.Equal(t, audit.UnknownActor, bulk[0].ActorID)
}

func TestDetector_EmptyWindow(t *testing.T) {
	d := NewDetector(DefaultThresholds())

	events := d.Detect(nil, testNow)

	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestDetector_QuickScan(t *testing.T) {
	d := NewDetector(DefaultThresholds())

	t.Run("single after-hours record is enough", func(t *testing.T) {
		records := []*audit.Record{
			makeRecord("clerk-1", audit.ActionSale, time.Date(2025, 3, 10, 23, 0, 0, 0, time.UTC)),
		}

		events := d.QuickScan(records, testNow)
		found := findByKind(events, audit.PatternAfterHoursActivity)

		require.Len(t, found, 1)
		assert.Equal(t, audit.SeverityMedium, found[0].Severity)
	})

	t.Run("hourly bulk deletion still flags", func(t *testing.T) {
		records := makeRecords(6, "clerk-1", audit.ActionDelete, testNow.Add(-30*time.Minute))

		events := d.QuickScan(records, testNow)

		assert.Len(t, findByKind(events, audit.PatternBulkDeletion), 1)
	})

	t.Run("quiet window yields nothing", func(t *testing.T) {
		records := makeRecords(3, "clerk-1", audit.ActionSale, testNow.Add(-time.Hour))

		assert.Empty(t, d.QuickScan(records, testNow))
	})
}
