package fact

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"cybnity/internal/validator"
)

// FactRecord is the stored, immutable form of an original fact. Its identity is
// the body hash combined with the type version, not the wrapped fact identity:
// two structurally equal facts of the same type collide.
type FactRecord struct {
	Body        json.RawMessage `json:"body"`
	BodyHash    string          `json:"bodyHash"`
	FactID      string          `json:"factId,omitempty"`
	Kind        Kind            `json:"kind"`
	OccurredAt  time.Time       `json:"occurredAt"`
	RecordedAt  *time.Time      `json:"recordedAt,omitempty"`
	TypeVersion TypeVersion     `json:"typeVersion"`

	fact Fact
}

// NewFactRecord wraps f. recordedAt is optional.
func NewFactRecord(f Fact, recordedAt *time.Time) (*FactRecord, error) {
	if f == nil {
		return nil, fmt.Errorf("fact is required: %w", validator.ErrInvalidArgument)
	}

	body, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize fact of kind %s: %w", f.Kind(), err)
	}

	version, err := TypeVersionOf(f)
	if err != nil {
		return nil, fmt.Errorf("failed to version fact of kind %s: %w", f.Kind(), err)
	}

	sum := sha256.Sum256(body)
	r := FactRecord{
		Body:        body,
		BodyHash:    hex.EncodeToString(sum[:]),
		Kind:        f.Kind(),
		OccurredAt:  f.OccurredAt(),
		TypeVersion: version,
		fact:        f,
	}
	if id := f.ID(); !id.IsZero() {
		r.FactID = id.Hash()
	}
	if recordedAt != nil {
		t := recordedAt.UTC()
		r.RecordedAt = &t
	}

	return &r, nil
}

// BasedOn is the uniqueness key of the record.
func (r *FactRecord) BasedOn() string {
	return r.BodyHash + "::" + r.TypeVersion.Hash
}

// Fact returns the original fact, or nil for a record loaded from storage.
func (r *FactRecord) Fact() Fact {
	return r.fact
}

// Decode unmarshals the stored body into v.
func (r *FactRecord) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode fact record %s: %w", r.BasedOn(), err)
	}

	return nil
}
