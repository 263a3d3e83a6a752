package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CleanupResult summarizes what the store archived or deleted from one
// table during a cleanup run.
type CleanupResult struct {
	TableName       string `json:"table_name"`
	RecordsArchived int64  `json:"records_archived"`
	RecordsDeleted  int64  `json:"records_deleted"`
}

// ValidationIssue is one structural or data problem found by the store's
// integrity validation.
type ValidationIssue struct {
	TableName       string `json:"table_name"`
	IssueType       string `json:"issue_type"`
	Description     string `json:"description"`
	SuggestedAction string `json:"suggested_action"`
}

// ComplianceCheckStatus is the outcome of one named compliance rule.
type ComplianceCheckStatus string

const (
	CheckPassed ComplianceCheckStatus = "passed"
	CheckFailed ComplianceCheckStatus = "failed"
)

// ComplianceCheck is the result of one named compliance rule run by the
// store.
type ComplianceCheck struct {
	CheckName string                `json:"check_name"`
	Status    ComplianceCheckStatus `json:"status"`
	Detail    string                `json:"detail,omitempty"`
}

// ReportSpec names a report the store should materialize.
type ReportSpec struct {
	Name        string    `json:"name"`
	ReportType  string    `json:"report_type"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	Payload     any       `json:"payload,omitempty"`
}

// RecordStore is the engine's read-side view of the audit record store,
// plus the maintenance routines the store itself owns. The store is an
// external collaborator; the engine never writes records through it.
type RecordStore interface {
	ListRecords(ctx context.Context, filter RecordFilter) ([]*Record, error)
	CountRecords(ctx context.Context, filter RecordFilter) (int64, error)
	GetRecordByID(ctx context.Context, id uuid.UUID) (*Record, error)

	RunCleanup(ctx context.Context) ([]CleanupResult, error)
	RunIntegrityValidation(ctx context.Context) ([]ValidationIssue, error)
	RunComplianceChecks(ctx context.Context) ([]ComplianceCheck, error)
	CreateReport(ctx context.Context, spec ReportSpec) (uuid.UUID, error)
}
