package integrity

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veloxpos/audit-engine/internal/domain/audit"
	"github.com/veloxpos/audit-engine/internal/domain/errors"
)

// VerificationResult reports the outcome of checking one record against
// an expected hash. Tampered is only ever true for a record that exists
// and hashes differently; a missing record is a distinct failure mode.
type VerificationResult struct {
	RecordID    uuid.UUID `json:"record_id"`
	IsValid     bool      `json:"is_valid"`
	CurrentHash string    `json:"current_hash,omitempty"`
	Tampered    bool      `json:"tampered"`
}

// Service verifies stored audit records against previously captured
// hashes.
type Service struct {
	store  audit.RecordStore
	hasher *Hasher
	logger *zap.Logger
}

// NewService creates an integrity verification service.
func NewService(store audit.RecordStore, hasher *Hasher, logger *zap.Logger) *Service {
	return &Service{
		store:  store,
		hasher: hasher,
		logger: logger,
	}
}

// Hasher exposes the underlying hasher for callers that capture hashes
// at write time.
func (s *Service) Hasher() *Hasher {
	return s.hasher
}

// VerifyRecord recomputes the record's hash and compares it to the
// expected value. A missing record returns a not-found error together
// with a not-valid, not-tampered result -- absence must never be
// reported as either "fine" or "tampered".
func (s *Service) VerifyRecord(ctx context.Context, id uuid.UUID, expectedHash string) (VerificationResult, error) {
	record, err := s.store.GetRecordByID(ctx, id)
	if err != nil {
		if errors.IsNotFound(err) {
			s.logger.Warn("integrity check target missing", zap.String("record_id", id.String()))
			return VerificationResult{RecordID: id}, err
		}
		return VerificationResult{RecordID: id}, errors.Wrap(err, "fetching record for verification")
	}

	current := s.hasher.HashRecord(record)
	tampered := current != expectedHash
	if tampered {
		s.logger.Error("audit record hash mismatch",
			zap.String("record_id", id.String()),
			zap.String("expected_hash", expectedHash),
			zap.String("current_hash", current))
	}

	return VerificationResult{
		RecordID:    id,
		IsValid:     !tampered,
		CurrentHash: current,
		Tampered:    tampered,
	}, nil
}
