package fact

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cybnity/internal/validator"
)

type tenantCreated struct {
	Identifier Identifier `json:"id"`
	Label      string     `json:"label"`
	At         time.Time  `json:"at"`
}

func (e *tenantCreated) ID() Identifier { return e.Identifier }
func (e *tenantCreated) Kind() Kind { return "TENANT_CREATED" }
func (e *tenantCreated) OccurredAt() time.Time { return e.At }
func (e *tenantCreated) Categories() []Kind { return []Kind{"DomainEvent"} }

type tenantCreatedV2 struct {
	Identifier Identifier `json:"id"`
	Label      string     `json:"label"`
	Region     string     `json:"region"`
	At         time.Time  `json:"at"`
}

type genericFact struct {
	Identifier Identifier `json:"id"`
	Type       Kind       `json:"type"`
	At         time.Time  `json:"at"`
}

func (e *genericFact) ID() Identifier { return e.Identifier }
func (e *genericFact) Kind() Kind { return e.Type }
func (e *genericFact) OccurredAt() time.Time { return e.At }

type tenantSuspended struct {
	Identifier Identifier `json:"id"`
	Reason     string     `json:"reason"`
	At         time.Time  `json:"at"`
}

func (e *tenantSuspended) ID() Identifier { return e.Identifier }
func (e *tenantSuspended) Kind() Kind { return "TENANT_SUSPENDED" }
func (e *tenantSuspended) OccurredAt() time.Time { return e.At }

func newTenantCreated(id, label string) *tenantCreated {
	return &tenantCreated{
		Identifier: NewIdentifier("tenant", id),
		Label:      label,
		At:         time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestNaturalKey(t *testing.T) {
	key, err := NaturalKey("org.cybnity.Tenant Created!", 64)
	require.NoError(t, err)
	require.Len(t, key, 64)
	require.True(t, strings.HasPrefix(key, "orgcybnitytenantcreated"))

	again, err := NaturalKey("ORG.CYBNITY.TENANT-CREATED", 64)
	require.NoError(t, err)
	require.Equal(t, key, again)

	long := strings.Repeat("abc", 30)
	key, err = NaturalKey(long, 64)
	require.NoError(t, err)
	require.Equal(t, long, key)

	_, err = NaturalKey(" .-_ ", 64)
	require.ErrorIs(t, err, validator.ErrInvalidArgument)
}

func TestTypeVersionIsDeterministic(t *testing.T) {
	first, err := TypeVersionOf(newTenantCreated("1", "a"))
	require.NoError(t, err)
	second, err := TypeVersionOf(newTenantCreated("2", "b"))
	require.NoError(t, err)

	require.Equal(t, first.Hash, second.Hash)
	require.Equal(t, first.ID(), second.ID())
	require.Equal(t, "TENANT_CREATED", first.Type.Name)
	require.Len(t, first.ID(), DefaultMinLength)

	// a fresh derivation, as another process would compute it, is identical
	fresh, err := deriveTypeVersion("TENANT_CREATED", reflect.TypeOf(&tenantCreated{}))
	require.NoError(t, err)
	require.Equal(t, first, fresh)

	changed, err := deriveTypeVersion("TENANT_CREATED", reflect.TypeOf(&tenantCreatedV2{}))
	require.NoError(t, err)
	require.Equal(t, first.ID(), changed.ID())
	require.NotEqual(t, first.Hash, changed.Hash)
}

func TestTypeVersionDoesNotDependOnArrivalOrder(t *testing.T) {
	generic, err := TypeVersionOf(&genericFact{Identifier: NewIdentifier("tenant", "1"), Type: "TENANT_SUSPENDED"})
	require.NoError(t, err)

	typed, err := TypeVersionOf(&tenantSuspended{Identifier: NewIdentifier("tenant", "1"), Reason: "unpaid"})
	require.NoError(t, err)

	fresh, err := deriveTypeVersion("TENANT_SUSPENDED", reflect.TypeOf(tenantSuspended{}))
	require.NoError(t, err)
	require.Equal(t, fresh, typed)
	require.NotEqual(t, generic.Hash, typed.Hash)
	require.Equal(t, generic.ID(), typed.ID())

	// value and pointer prototypes share a version
	byValue, err := Register("TENANT_SUSPENDED", tenantSuspended{})
	require.NoError(t, err)
	require.Equal(t, typed, byValue)
}

func TestFactRecord(t *testing.T) {
	recordedAt := time.Now()
	original := newTenantCreated("42", "acme")

	r, err := NewFactRecord(original, &recordedAt)
	require.NoError(t, err)
	require.Equal(t, original.Identifier.Hash(), r.FactID)
	require.Equal(t, Kind("TENANT_CREATED"), r.Kind)
	require.Equal(t, original.At, r.OccurredAt)
	require.NotNil(t, r.RecordedAt)
	require.Same(t, original, r.Fact())

	var decoded tenantCreated
	require.NoError(t, r.Decode(&decoded))
	require.Equal(t, *original, decoded)

	twin, err := NewFactRecord(newTenantCreated("42", "acme"), nil)
	require.NoError(t, err)
	require.Equal(t, r.BasedOn(), twin.BasedOn())
	require.Nil(t, twin.RecordedAt)

	other, err := NewFactRecord(newTenantCreated("42", "globex"), nil)
	require.NoError(t, err)
	require.NotEqual(t, r.BasedOn(), other.BasedOn())

	_, err = NewFactRecord(nil, nil)
	require.ErrorIs(t, err, validator.ErrInvalidArgument)
}

func TestMatches(t *testing.T) {
	e := newTenantCreated("1", "a")

	require.True(t, Matches(KindAny, e))
	require.True(t, Matches("TENANT_CREATED", e))
	require.True(t, Matches("DomainEvent", e))
	require.False(t, Matches("TENANT_DELETED", e))
	require.False(t, Matches("", e))
}

func TestNewReference(t *testing.T) {
	e := newTenantCreated("7", "a")

	ref, err := NewReference(e)
	require.NoError(t, err)
	require.Equal(t, e.Identifier, ref.ID)
	require.Equal(t, e.Kind(), ref.Kind)

	_, err = NewReference(&tenantCreated{})
	require.ErrorIs(t, err, ErrMissingIdentifier)
}
