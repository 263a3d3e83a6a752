package audit

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UnknownActor is the sentinel actor used when a record carries no actor
// identifier. Grouping collapses all actorless records under this single
// pseudo-actor; genuinely distinct anonymous sessions are not told apart.
// Known limitation, kept for parity with downstream reporting.
const UnknownActor = "unknown"

// ActionKind classifies the business event a record describes.
type ActionKind string

const (
	ActionOpen        ActionKind = "open"
	ActionClose       ActionKind = "close"
	ActionSale        ActionKind = "sale"
	ActionInstallment ActionKind = "installment"
	ActionIncome      ActionKind = "income"
	ActionExpense     ActionKind = "expense"
	ActionEdit        ActionKind = "edit"
	ActionDelete      ActionKind = "delete"
	ActionAuditAccess ActionKind = "audit_access"
)

// Record is one immutable logged business event. The engine only ever
// reads records; they are owned and written by the record store.
type Record struct {
	ID          uuid.UUID        `json:"id"`
	ActorID     string           `json:"actor_id,omitempty"`
	Action      ActionKind       `json:"action"`
	EntityType  string           `json:"entity_type"`
	EntityID    string           `json:"entity_id,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Description string           `json:"description,omitempty"`
	IPAddress   string           `json:"ip_address,omitempty"`
	UserAgent   string           `json:"user_agent,omitempty"`
	Metadata    map[string]any   `json:"metadata,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Actor returns the record's actor identifier, or the UnknownActor
// sentinel when the record has none.
func (r *Record) Actor() string {
	if r.ActorID == "" {
		return UnknownActor
	}
	return r.ActorID
}

// IsDelete reports whether the record describes a deletion.
func (r *Record) IsDelete() bool {
	return r.Action == ActionDelete
}

// RecordFilter narrows record listings and counts. Zero values mean "no
// constraint" for that field.
type RecordFilter struct {
	Since   *time.Time
	Until   *time.Time
	ActorID string
	Action  ActionKind
	Limit   int
}

// Matches reports whether a record satisfies the filter. Used by
// in-memory store implementations and tests; SQL stores translate the
// filter into WHERE clauses instead.
func (f RecordFilter) Matches(r *Record) bool {
	if f.Since != nil && r.CreatedAt.Before(*f.Since) {
		return false
	}
	if f.Until != nil && r.CreatedAt.After(*f.Until) {
		return false
	}
	if f.ActorID != "" && r.ActorID != f.ActorID {
		return false
	}
	if f.Action != "" && r.Action != f.Action {
		return false
	}
	return true
}
