package audit

import "time"

// PatternKind identifies a class of suspicious activity.
type PatternKind string

const (
	PatternBulkDeletion       PatternKind = "bulk_deletion"
	PatternAfterHoursActivity PatternKind = "after_hours_activity"
	PatternHighVolumeActivity PatternKind = "high_volume_activity"
	PatternMultipleIPs        PatternKind = "multiple_ip_addresses"
	PatternFrequentDeletions  PatternKind = "frequent_deletions"
	PatternUnauthorizedAccess PatternKind = "unauthorized_access"
)

// SecurityEvent is a derived suspicious-activity finding. It is the
// output of a pure detection pass over a record window and has no
// lifecycle of its own; the engine never persists it directly.
type SecurityEvent struct {
	Kind           PatternKind `json:"kind"`
	Severity       Severity    `json:"severity"`
	EntityType     string      `json:"entity_type,omitempty"`
	ActorID        string      `json:"actor_id"`
	Count          int         `json:"count"`
	FirstSeen      time.Time   `json:"first_seen"`
	LastSeen       time.Time   `json:"last_seen"`
	Recommendation string      `json:"recommendation"`
}

// recommendations carries the fixed operator guidance per pattern kind.
var recommendations = map[PatternKind]string{
	PatternBulkDeletion:       "Verify the deletions were authorized and document the cause",
	PatternAfterHoursActivity: "Confirm after-hours access was expected for this account",
	PatternHighVolumeActivity: "Review the account's activity for automation or abuse",
	PatternMultipleIPs:        "Check for credential sharing or session hijacking",
	PatternFrequentDeletions:  "Audit deleted entities and confirm retention policy was followed",
	PatternUnauthorizedAccess: "Rotate credentials and review access control assignments",
}

// RecommendationFor returns the fixed recommendation string for a
// pattern kind.
func RecommendationFor(kind PatternKind) string {
	if r, ok := recommendations[kind]; ok {
		return r
	}
	return "Review the flagged activity"
}
