package database

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/veloxpos/audit-engine/internal/domain/audit"
	"github.com/veloxpos/audit-engine/internal/domain/errors"
)

// DefaultRetention is how long records stay in the live table before
// cleanup moves them to the archive.
const DefaultRetention = 90 * 24 * time.Hour

// RecordStore implements audit.RecordStore on PostgreSQL.
type RecordStore struct {
	db        *pgxpool.Pool
	retention time.Duration
	logger    *zap.Logger
}

// NewRecordStore creates a PostgreSQL record store. A non-positive
// retention falls back to DefaultRetention.
func NewRecordStore(db *pgxpool.Pool, retention time.Duration, logger *zap.Logger) *RecordStore {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &RecordStore{db: db, retention: retention, logger: logger}
}

const recordColumns = `id, actor_id, action, entity_type, entity_id, amount,
	description, ip_address, user_agent, metadata, created_at`

// ListRecords returns records matching the filter, newest first.
func (s *RecordStore) ListRecords(ctx context.Context, filter audit.RecordFilter) ([]*audit.Record, error) {
	query, args := buildRecordQuery("SELECT "+recordColumns+" FROM audit_records", filter)
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.NewUnavailableError("record store", "listing records").WithCause(err)
	}
	defer rows.Close()

	var records []*audit.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, errors.NewInternalError("failed to scan audit record").WithCause(err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewUnavailableError("record store", "reading record rows").WithCause(err)
	}

	return records, nil
}

// CountRecords counts records matching the filter.
func (s *RecordStore) CountRecords(ctx context.Context, filter audit.RecordFilter) (int64, error) {
	query, args := buildRecordQuery("SELECT COUNT(*) FROM audit_records", filter)

	var count int64
	if err := s.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, errors.NewUnavailableError("record store", "counting records").WithCause(err)
	}
	return count, nil
}

// GetRecordByID fetches a single record.
func (s *RecordStore) GetRecordByID(ctx context.Context, id uuid.UUID) (*audit.Record, error) {
	row := s.db.QueryRow(ctx, "SELECT "+recordColumns+" FROM audit_records WHERE id = $1", id)
	return fetchRecord(row)
}

// fetchRecord scans a single row and maps a missing row, wrapped or
// not, to a not-found error.
func fetchRecord(row pgx.Row) (*audit.Record, error) {
	record, err := scanRecord(row)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.NewNotFoundError("audit record")
		}
		return nil, errors.NewUnavailableError("record store", "fetching record").WithCause(err)
	}
	return record, nil
}

// RunCleanup archives records older than the retention window and
// removes them from the live table, atomically.
func (s *RecordStore) RunCleanup(ctx context.Context) ([]audit.CleanupResult, error) {
	cutoff := time.Now().UTC().Add(-s.retention)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, errors.NewUnavailableError("record store", "starting cleanup transaction").WithCause(err)
	}
	defer tx.Rollback(ctx)

	archiveTag, err := tx.Exec(ctx, `
		INSERT INTO audit_records_archive (
			id, actor_id, action, entity_type, entity_id, amount,
			description, ip_address, user_agent, metadata, created_at, archived_at
		)
		SELECT id, actor_id, action, entity_type, entity_id, amount,
			description, ip_address, user_agent, metadata, created_at, NOW()
		FROM audit_records
		WHERE created_at < $1
		ON CONFLICT (id) DO NOTHING`, cutoff)
	if err != nil {
		return nil, errors.NewInternalError("failed to archive expired records").WithCause(err)
	}

	deleteTag, err := tx.Exec(ctx,
		`DELETE FROM audit_records WHERE created_at < $1`, cutoff)
	if err != nil {
		return nil, errors.NewInternalError("failed to delete expired records").WithCause(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.NewInternalError("failed to commit cleanup").WithCause(err)
	}

	s.logger.Info("cleanup pass finished",
		zap.Int64("archived", archiveTag.RowsAffected()),
		zap.Int64("deleted", deleteTag.RowsAffected()),
		zap.Time("cutoff", cutoff))

	return []audit.CleanupResult{{
		TableName:       "audit_records",
		RecordsArchived: archiveTag.RowsAffected(),
		RecordsDeleted:  deleteTag.RowsAffected(),
	}}, nil
}

// integrityProbes are the structural checks the store runs over its own
// tables. Each query returns the number of offending rows.
var integrityProbes = []struct {
	issueType       string
	query           string
	description     string
	suggestedAction string
}{
	{
		issueType:       "missing_timestamp",
		query:           `SELECT COUNT(*) FROM audit_records WHERE created_at IS NULL`,
		description:     "%d record(s) have no creation timestamp",
		suggestedAction: "backfill created_at from ingestion logs",
	},
	{
		issueType:       "missing_action",
		query:           `SELECT COUNT(*) FROM audit_records WHERE action IS NULL OR action = ''`,
		description:     "%d record(s) have no action classification",
		suggestedAction: "reclassify records from their source events",
	},
	{
		issueType:       "negative_sale_amount",
		query:           `SELECT COUNT(*) FROM audit_records WHERE action = 'sale' AND amount < 0`,
		description:     "%d sale record(s) carry a negative amount",
		suggestedAction: "verify refunds were recorded as expenses, not negative sales",
	},
	{
		issueType:       "future_timestamp",
		query:           `SELECT COUNT(*) FROM audit_records WHERE created_at > NOW() + INTERVAL '5 minutes'`,
		description:     "%d record(s) are timestamped in the future",
		suggestedAction: "check producer clock synchronization",
	},
	{
		issueType: "duplicate_archive",
		query: `SELECT COUNT(*) FROM audit_records r
			WHERE EXISTS (SELECT 1 FROM audit_records_archive a WHERE a.id = r.id)`,
		description:     "%d record(s) exist in both the live and archive tables",
		suggestedAction: "re-run cleanup to remove already archived rows",
	},
}

// RunIntegrityValidation checks the audit tables for structural
// problems. A clean store returns an empty slice.
func (s *RecordStore) RunIntegrityValidation(ctx context.Context) ([]audit.ValidationIssue, error) {
	var issues []audit.ValidationIssue

	for _, probe := range integrityProbes {
		var offending int64
		if err := s.db.QueryRow(ctx, probe.query).Scan(&offending); err != nil {
			return nil, errors.NewUnavailableError("record store",
				fmt.Sprintf("running integrity probe %s", probe.issueType)).WithCause(err)
		}
		if offending == 0 {
			continue
		}
		issues = append(issues, audit.ValidationIssue{
			TableName:       "audit_records",
			IssueType:       probe.issueType,
			Description:     fmt.Sprintf(probe.description, offending),
			SuggestedAction: probe.suggestedAction,
		})
	}

	return issues, nil
}

// RunComplianceChecks evaluates the store against its retention and
// attribution policies. Every check always reports, passed or failed.
func (s *RecordStore) RunComplianceChecks(ctx context.Context) ([]audit.ComplianceCheck, error) {
	checks := make([]audit.ComplianceCheck, 0, 3)

	// Records past retention plus a day of grace should be archived.
	var overdue int64
	if err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM audit_records WHERE created_at < $1`,
		time.Now().UTC().Add(-s.retention-24*time.Hour)).Scan(&overdue); err != nil {
		return nil, errors.NewUnavailableError("record store", "checking retention").WithCause(err)
	}
	checks = append(checks, complianceCheck("retention_window", overdue == 0,
		fmt.Sprintf("%d record(s) past the retention window remain unarchived", overdue)))

	var undocumented int64
	if err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM audit_records
		WHERE action = 'delete' AND (description IS NULL OR description = '')`).Scan(&undocumented); err != nil {
		return nil, errors.NewUnavailableError("record store", "checking deletion documentation").WithCause(err)
	}
	checks = append(checks, complianceCheck("deletions_documented", undocumented == 0,
		fmt.Sprintf("%d deletion(s) carry no description", undocumented)))

	var total, unattributed int64
	if err := s.db.QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE actor_id IS NULL OR actor_id = '')
		FROM audit_records`).Scan(&total, &unattributed); err != nil {
		return nil, errors.NewUnavailableError("record store", "checking actor attribution").WithCause(err)
	}
	// Tolerate up to 5% unattributed records before flagging.
	attributionOK := total == 0 || unattributed*20 <= total
	checks = append(checks, complianceCheck("actor_attribution", attributionOK,
		fmt.Sprintf("%d of %d record(s) have no actor", unattributed, total)))

	return checks, nil
}

// CreateReport materializes a report row and returns its identifier.
func (s *RecordStore) CreateReport(ctx context.Context, spec audit.ReportSpec) (uuid.UUID, error) {
	payload, err := json.Marshal(spec.Payload)
	if err != nil {
		return uuid.Nil, errors.NewInternalError("failed to marshal report payload").WithCause(err)
	}

	id := uuid.New()
	_, err = s.db.Exec(ctx, `
		INSERT INTO reports (id, name, report_type, period_start, period_end, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
		id, spec.Name, spec.ReportType, spec.PeriodStart, spec.PeriodEnd, payload)
	if err != nil {
		return uuid.Nil, errors.NewUnavailableError("record store", "creating report").WithCause(err)
	}

	return id, nil
}

func complianceCheck(name string, passed bool, failDetail string) audit.ComplianceCheck {
	check := audit.ComplianceCheck{CheckName: name, Status: audit.CheckPassed}
	if !passed {
		check.Status = audit.CheckFailed
		check.Detail = failDetail
	}
	return check
}

// buildRecordQuery appends WHERE clauses for the non-zero filter fields.
func buildRecordQuery(base string, filter audit.RecordFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)

	if filter.Since != nil {
		args = append(args, *filter.Since)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.Until != nil {
		args = append(args, *filter.Until)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.ActorID != "" {
		args = append(args, filter.ActorID)
		clauses = append(clauses, fmt.Sprintf("actor_id = $%d", len(args)))
	}
	if filter.Action != "" {
		args = append(args, string(filter.Action))
		clauses = append(clauses, fmt.Sprintf("action = $%d", len(args)))
	}

	if len(clauses) > 0 {
		base += " WHERE " + strings.Join(clauses, " AND ")
	}
	return base, args
}

func scanRecord(row pgx.Row) (*audit.Record, error) {
	var (
		record       audit.Record
		amount       decimal.NullDecimal
		metadataJSON []byte
	)

	err := row.Scan(
		&record.ID,
		&record.ActorID,
		&record.Action,
		&record.EntityType,
		&record.EntityID,
		&amount,
		&record.Description,
		&record.IPAddress,
		&record.UserAgent,
		&metadataJSON,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if amount.Valid {
		record.Amount = &amount.Decimal
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &record.Metadata); err != nil {
			return nil, fmt.Errorf("decoding record metadata: %w", err)
		}
	}

	return &record, nil
}
