// Package mapping converts facts to and from the wire format used by the
// message bus adapters.
package mapping

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/tidwall/gjson"

	"cybnity/internal/event"
	"cybnity/internal/fact"
)

var (
	ErrUnsupportedMapping = errors.New("unsupported mapping")
	ErrUnexpectedKind     = errors.New("unexpected fact kind")
)

// Format is a wire representation.
type Format string

const FormatJSON Format = "json"

// Mapper encodes events for transport and decodes them back.
type Mapper interface {
	Encode(evt fact.Event) ([]byte, error)
	Decode(data []byte) (fact.Event, error)
}

// MapperFactory hands out mappers for a source kind and a target format.
type MapperFactory interface {
	GetMapper(source fact.Kind, target Format) (Mapper, error)
}

// Factory builds JSON mappers and knows which Go type decodes each kind.
// Unregistered kinds decode as *event.DomainEvent.
type Factory struct {
	mu       sync.RWMutex
	decoders map[fact.Kind]func() fact.Event
}

// NewFactory returns a factory aware of the routing control events.
func NewFactory() *Factory {
	f := &Factory{decoders: make(map[fact.Kind]func() fact.Event)}
	f.Register(event.KindPresenceAnnounced, func() fact.Event { return &event.PresenceAnnounced{} })
	f.Register(event.KindPresenceAnnounceRequested, func() fact.Event { return &event.DomainEvent{} })
	f.Register(event.KindRoutingPathsRegistered, func() fact.Event { return &event.DomainEvent{} })

	return f
}

// Register declares the Go type decoding kind.
func (f *Factory) Register(kind fact.Kind, newEvent func() fact.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decoders[kind] = newEvent
}

// GetMapper returns a mapper for events of source kind (fact.KindAny accepts
// every kind) into target format.
func (f *Factory) GetMapper(source fact.Kind, target Format) (Mapper, error) {
	if target != FormatJSON {
		return nil, fmt.Errorf("no mapper from %s to %s: %w", source, target, ErrUnsupportedMapping)
	}
	if source == "" {
		source = fact.KindAny
	}

	return &jsonMapper{factory: f, source: source}, nil
}

func (f *Factory) newEvent(kind fact.Kind) fact.Event {
	f.mu.RLock()
	newEvent, ok := f.decoders[kind]
	f.mu.RUnlock()
	if !ok {
		return &event.DomainEvent{}
	}

	return newEvent()
}

type envelope struct {
	Kind fact.Kind       `json:"kind"`
	Body json.RawMessage `json:"body"`
}

type jsonMapper struct {
	factory *Factory
	source  fact.Kind
}

func (m *jsonMapper) Encode(evt fact.Event) ([]byte, error) {
	if evt == nil {
		return nil, fmt.Errorf("failed to encode nil event: %w", ErrUnexpectedKind)
	}
	if err := m.accept(evt.Kind()); err != nil {
		return nil, err
	}

	body, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event of kind %s: %w", evt.Kind(), err)
	}

	data, err := json.Marshal(envelope{Kind: evt.Kind(), Body: body})
	if err != nil {
		return nil, fmt.Errorf("failed to encode envelope of kind %s: %w", evt.Kind(), err)
	}

	return data, nil
}

func (m *jsonMapper) Decode(data []byte) (fact.Event, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("failed to decode event: invalid json: %w", ErrUnsupportedMapping)
	}

	kind := fact.Kind(gjson.GetBytes(data, "kind").String())
	if kind == "" {
		return nil, fmt.Errorf("failed to decode event: missing kind: %w", ErrUnexpectedKind)
	}
	if err := m.accept(kind); err != nil {
		return nil, err
	}

	evt := m.factory.newEvent(kind)
	if err := json.Unmarshal([]byte(gjson.GetBytes(data, "body").Raw), evt); err != nil {
		return nil, fmt.Errorf("failed to decode event of kind %s: %w", kind, err)
	}

	return evt, nil
}

func (m *jsonMapper) accept(kind fact.Kind) error {
	if m.source != fact.KindAny && m.source != kind {
		return fmt.Errorf("mapper of %s cannot handle %s: %w", m.source, kind, ErrUnexpectedKind)
	}

	return nil
}
