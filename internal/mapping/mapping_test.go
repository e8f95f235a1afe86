package mapping

import (
	"testing"

	"github.com/stretchr/testify/require"

	"cybnity/internal/event"
	"cybnity/internal/fact"
)

func TestJSONMapperPresenceAnnounced(t *testing.T) {
	m, err := NewFactory().GetMapper(fact.KindAny, FormatJSON)
	require.NoError(t, err)

	announced := event.NewPresenceAnnounced("access-control", "corr-1", []event.Attribute{
		{Name: "TENANT_CREATED", Value: "ac-stream-1"},
	})

	data, err := m.Encode(announced)
	require.NoError(t, err)

	decoded, err := m.Decode(data)
	require.NoError(t, err)

	got, ok := decoded.(*event.PresenceAnnounced)
	require.True(t, ok)
	require.Equal(t, announced.ID(), got.ID())
	require.Equal(t, "corr-1", got.CorrelationID())
	require.Equal(t, announced.Routes, got.Routes)
	require.True(t, announced.OccurredAt().Equal(got.OccurredAt()))
}

func TestJSONMapperUnknownKindDecodesAsDomainEvent(t *testing.T) {
	m, err := NewFactory().GetMapper("", FormatJSON)
	require.NoError(t, err)

	data, err := m.Encode(event.NewDomainEvent("TENANT_CREATED", event.Attribute{Name: "name", Value: "acme"}))
	require.NoError(t, err)

	decoded, err := m.Decode(data)
	require.NoError(t, err)
	require.IsType(t, &event.DomainEvent{}, decoded)
	require.Equal(t, fact.Kind("TENANT_CREATED"), decoded.Kind())
}

func TestJSONMapperRejects(t *testing.T) {
	f := NewFactory()

	_, err := f.GetMapper(fact.KindAny, "xml")
	require.ErrorIs(t, err, ErrUnsupportedMapping)

	m, err := f.GetMapper(event.KindPresenceAnnounced, FormatJSON)
	require.NoError(t, err)

	_, err = m.Encode(event.NewDomainEvent(event.KindRoutingPathsRegistered))
	require.ErrorIs(t, err, ErrUnexpectedKind)

	_, err = m.Decode([]byte(`{"kind":"TENANT_CREATED","body":{}}`))
	require.ErrorIs(t, err, ErrUnexpectedKind)

	_, err = m.Decode([]byte(`not json`))
	require.ErrorIs(t, err, ErrUnsupportedMapping)
}
