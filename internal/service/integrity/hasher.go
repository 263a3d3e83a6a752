package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/veloxpos/audit-engine/internal/domain/audit"
)

// Hasher computes tamper-detection fingerprints for audit records. The
// canonical serialization is a fixed, ordered field sequence -- never a
// map iteration -- so two byte-identical records always hash to the same
// digest.
type Hasher struct {
	salt string
}

// NewHasher creates a hasher with the application-level salt.
func NewHasher(salt string) *Hasher {
	return &Hasher{salt: salt}
}

// HashRecord returns the lowercase-hex SHA-256 fingerprint of the
// record's identity fields: id, action, entity type, entity id, actor,
// timestamp and amount, in that order, followed by the salt.
func (h *Hasher) HashRecord(record *audit.Record) string {
	amount := ""
	if record.Amount != nil {
		amount = record.Amount.String()
	}

	canonical := strings.Join([]string{
		record.ID.String(),
		string(record.Action),
		record.EntityType,
		record.EntityID,
		record.ActorID,
		record.CreatedAt.UTC().Format(time.RFC3339Nano),
		amount,
	}, "|")

	sum := sha256.Sum256([]byte(canonical + "|" + h.salt))
	return hex.EncodeToString(sum[:])
}
