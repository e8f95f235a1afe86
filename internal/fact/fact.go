// Package fact models immutable facts (domain events and commands) together with
// the identity and versioning helpers that let independently deployed producers
// and consumers agree on what a fact is without a shared registry.
package fact

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"time"
)

// ErrMissingIdentifier is returned when a fact without identity is referenced.
var ErrMissingIdentifier = errors.New("fact has no identifier")

// Kind is the stable type tag of a class of facts (e.g. "TENANT_CREATED").
type Kind string

// KindAny matches every fact when used as a subscriber interest.
const KindAny Kind = "*"

// Identifier names a fact instance.
type Identifier struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func NewIdentifier(name, value string) Identifier {
	return Identifier{Name: name, Value: value}
}

func (i Identifier) IsZero() bool {
	return i.Value == ""
}

func (i Identifier) String() string {
	return i.Name + ":" + i.Value
}

// Hash is the canonical hash code of the identifier. Two identifiers with the
// same name and value always hash identically.
func (i Identifier) Hash() string {
	sum := sha256.Sum256([]byte(i.String()))
	return hex.EncodeToString(sum[:])
}

// Fact is an immutable occurrence with identity, type and timestamp.
type Fact interface {
	ID() Identifier
	Kind() Kind
	OccurredAt() time.Time
}

// Event is a fact that can be correlated with the transaction that caused it.
type Event interface {
	Fact
	CorrelationID() string
}

// Categorized is implemented by facts that also belong to broader kinds than
// their own, e.g. every domain event is also a "DomainEvent".
type Categorized interface {
	Categories() []Kind
}

// Matches reports whether a subscriber interested in interest should receive f.
func Matches(interest Kind, f Fact) bool {
	if f == nil || interest == "" {
		return false
	}
	if interest == KindAny || interest == f.Kind() {
		return true
	}
	if c, ok := f.(Categorized); ok {
		return slices.Contains(c.Categories(), interest)
	}

	return false
}

// Reference is an immutable pointer to a fact, used to link derived facts back
// to their origin without carrying the whole body.
type Reference struct {
	ID         Identifier `json:"id"`
	Kind       Kind       `json:"kind"`
	OccurredAt time.Time  `json:"occurredAt"`
}

// NewReference derives a reference to f.
func NewReference(f Fact) (*Reference, error) {
	if f == nil {
		return nil, fmt.Errorf("failed to reference nil fact: %w", ErrMissingIdentifier)
	}
	id := f.ID()
	if id.IsZero() {
		return nil, fmt.Errorf("failed to reference fact of kind %s: %w", f.Kind(), ErrMissingIdentifier)
	}

	return &Reference{ID: id, Kind: f.Kind(), OccurredAt: f.OccurredAt()}, nil
}
