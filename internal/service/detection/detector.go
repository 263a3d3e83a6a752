package detection

import (
	"sort"
	"time"

	"github.com/veloxpos/audit-engine/internal/domain/audit"
)

// Detector derives suspicious-activity findings from a window of audit
// records. Detection is a pure function of the window and the reference
// time: no store access, no side effects, so every rule is unit-testable
// in isolation.
type Detector struct {
	thresholds Thresholds
}

// NewDetector creates a detector with the given thresholds.
func NewDetector(thresholds Thresholds) *Detector {
	return &Detector{thresholds: thresholds}
}

// Detect evaluates every rule against the same window and returns all
// findings. Rules are independent; one actor can trip several of them.
// Findings are ordered by kind, then actor, for stable output.
func (d *Detector) Detect(records []*audit.Record, now time.Time) []audit.SecurityEvent {
	events := make([]audit.SecurityEvent, 0)

	events = append(events, d.detectBulkDeletion(records, now)...)
	events = append(events, d.detectAfterHours(records)...)
	events = append(events, d.detectHighVolume(records, now)...)
	events = append(events, d.detectIPChurn(records, now)...)
	events = append(events, d.detectFrequentDeletions(records, now)...)

	sort.Slice(events, func(i, j int) bool {
		if events[i].Kind != events[j].Kind {
			return events[i].Kind < events[j].Kind
		}
		return events[i].ActorID < events[j].ActorID
	})
	return events
}

// QuickScan is the lightweight dashboard variant: it flags hourly bulk
// deletion and the mere presence of after-hours records, without the
// per-actor counting the full rules do.
func (d *Detector) QuickScan(records []*audit.Record, now time.Time) []audit.SecurityEvent {
	events := make([]audit.SecurityEvent, 0)

	hourAgo := now.Add(-time.Hour)
	deletes := groupByActor(records, func(r *audit.Record) bool {
		return r.IsDelete() && !r.CreatedAt.Before(hourAgo)
	})
	for actor, group := range deletes {
		if len(group) > d.thresholds.BulkDeleteHourly {
			events = append(events, newEvent(audit.PatternBulkDeletion, audit.SeverityHigh, actor, group))
		}
	}

	var afterHours []*audit.Record
	for _, r := range records {
		if d.isAfterHours(r.CreatedAt) {
			afterHours = append(afterHours, r)
		}
	}
	if len(afterHours) > 0 {
		events = append(events, newEvent(audit.PatternAfterHoursActivity, audit.SeverityMedium, audit.UnknownActor, afterHours))
	}

	sort.Slice(events, func(i, j int) bool {
		if events[i].Kind != events[j].Kind {
			return events[i].Kind < events[j].Kind
		}
		return events[i].ActorID < events[j].ActorID
	})
	return events
}

// detectBulkDeletion merges the trailing-hour and full-window deletion
// rules into one finding per actor, so a burst is never double-reported.
func (d *Detector) detectBulkDeletion(records []*audit.Record, now time.Time) []audit.SecurityEvent {
	deletes := groupByActor(records, (*audit.Record).IsDelete)
	hourAgo := now.Add(-time.Hour)

	var events []audit.SecurityEvent
	for actor, group := range deletes {
		hourly := 0
		for _, r := range group {
			if !r.CreatedAt.Before(hourAgo) {
				hourly++
			}
		}

		total := len(group)
		switch {
		case total > d.thresholds.BulkDeleteCritical:
			events = append(events, newEvent(audit.PatternBulkDeletion, audit.SeverityCritical, actor, group))
		case hourly > d.thresholds.BulkDeleteHourly || total > d.thresholds.BulkDeleteHourly:
			events = append(events, newEvent(audit.PatternBulkDeletion, audit.SeverityHigh, actor, group))
		}
	}
	return events
}

func (d *Detector) detectAfterHours(records []*audit.Record) []audit.SecurityEvent {
	grouped := groupByActor(records, func(r *audit.Record) bool {
		return d.isAfterHours(r.CreatedAt)
	})

	var events []audit.SecurityEvent
	for actor, group := range grouped {
		if len(group) <= d.thresholds.AfterHoursCount {
			continue
		}
		severity := audit.SeverityMedium
		if len(group) > d.thresholds.AfterHoursHigh {
			severity = audit.SeverityHigh
		}
		events = append(events, newEvent(audit.PatternAfterHoursActivity, severity, actor, group))
	}
	return events
}

func (d *Detector) detectHighVolume(records []*audit.Record, now time.Time) []audit.SecurityEvent {
	dayAgo := now.Add(-24 * time.Hour)
	grouped := groupByActor(records, func(r *audit.Record) bool {
		return !r.CreatedAt.Before(dayAgo)
	})

	var events []audit.SecurityEvent
	for actor, group := range grouped {
		if len(group) <= d.thresholds.HighVolumeDaily {
			continue
		}
		severity := audit.SeverityHigh
		if len(group) > d.thresholds.HighVolumeCritical {
			severity = audit.SeverityCritical
		}
		events = append(events, newEvent(audit.PatternHighVolumeActivity, severity, actor, group))
	}
	return events
}

func (d *Detector) detectIPChurn(records []*audit.Record, now time.Time) []audit.SecurityEvent {
	dayAgo := now.Add(-24 * time.Hour)
	grouped := groupByActor(records, func(r *audit.Record) bool {
		return r.IPAddress != "" && !r.CreatedAt.Before(dayAgo)
	})

	var events []audit.SecurityEvent
	for actor, group := range grouped {
		ips := make(map[string]struct{})
		for _, r := range group {
			ips[r.IPAddress] = struct{}{}
		}
		if len(ips) <= d.thresholds.DistinctIPs {
			continue
		}
		severity := audit.SeverityMedium
		if len(ips) > d.thresholds.DistinctIPsHigh {
			severity = audit.SeverityHigh
		}
		events = append(events, newEvent(audit.PatternMultipleIPs, severity, actor, group))
	}
	return events
}

func (d *Detector) detectFrequentDeletions(records []*audit.Record, now time.Time) []audit.SecurityEvent {
	dayAgo := now.Add(-24 * time.Hour)
	grouped := groupByActor(records, func(r *audit.Record) bool {
		return r.IsDelete() && !r.CreatedAt.Before(dayAgo)
	})

	var events []audit.SecurityEvent
	for actor, group := range grouped {
		if len(group) <= d.thresholds.DailyDeletes {
			continue
		}
		severity := audit.SeverityHigh
		if len(group) > d.thresholds.DailyDeletesCritical {
			severity = audit.SeverityCritical
		}
		events = append(events, newEvent(audit.PatternFrequentDeletions, severity, actor, group))
	}
	return events
}

func (d *Detector) isAfterHours(ts time.Time) bool {
	hour := ts.Hour()
	return hour < d.thresholds.AfterHoursStart || hour > d.thresholds.AfterHoursEnd
}

// groupByActor buckets the records that match keep under each actor,
// with actorless records collapsed onto the "unknown" sentinel.
func groupByActor(records []*audit.Record, keep func(*audit.Record) bool) map[string][]*audit.Record {
	grouped := make(map[string][]*audit.Record)
	for _, r := range records {
		if !keep(r) {
			continue
		}
		actor := r.Actor()
		grouped[actor] = append(grouped[actor], r)
	}
	return grouped
}

// newEvent builds a finding from a flagged group, recording the
// chronological extremes of the contributing records.
func newEvent(kind audit.PatternKind, severity audit.Severity, actor string, group []*audit.Record) audit.SecurityEvent {
	first, last := group[0].CreatedAt, group[0].CreatedAt
	entityType := group[0].EntityType
	for _, r := range group[1:] {
		if r.CreatedAt.Before(first) {
			first = r.CreatedAt
		}
		if r.CreatedAt.After(last) {
			last = r.CreatedAt
		}
	}
	return audit.SecurityEvent{
		Kind:           kind,
		Severity:       severity,
		EntityType:     entityType,
		ActorID:        actor,
		Count:          len(group),
		FirstSeen:      first,
		LastSeen:       last,
		Recommendation: audit.RecommendationFor(kind),
	}
}
