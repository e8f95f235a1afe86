// Package event holds the domain events exchanged between processing units and
// the recipients manager.
package event

import (
	"time"

	"github.com/google/uuid"

	"cybnity/internal/fact"
)

const (
	// KindDomainEvent is the category shared by every domain event.
	KindDomainEvent fact.Kind = "DomainEvent"

	KindPresenceAnnounced         fact.Kind = "PROCESSING_UNIT_PRESENCE_ANNOUNCED"
	KindPresenceAnnounceRequested fact.Kind = "PROCESSING_UNIT_PRESENCE_ANNOUNCE_REQUESTED"
	KindRoutingPathsRegistered    fact.Kind = "PROCESSING_UNIT_ROUTING_PATHS_REGISTERED"
)

// Attribute names carried by routing notifications.
const (
	AttributeServiceName       = "serviceName"
	AttributeSourceChannelName = "sourceChannelName"
)

const identifierName = "uuid"

// Attribute is a named value of an event; routes are declared as
// (event type name, recipient path) attributes.
type Attribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// DomainEvent is a generic change event identified by its Type.
type DomainEvent struct {
	Identifier          fact.Identifier `json:"id"`
	Type                fact.Kind       `json:"type"`
	OccurredOn          time.Time       `json:"occurredOn"`
	Correlation         string          `json:"correlationId,omitempty"`
	ChangedModelElement *fact.Reference `json:"changedModelElement,omitempty"`
	Attributes          []Attribute     `json:"attributes,omitempty"`
}

// NewDomainEvent creates an event of kind with a fresh identifier.
func NewDomainEvent(kind fact.Kind, attrs ...Attribute) *DomainEvent {
	return &DomainEvent{
		Identifier: NewIdentifier(),
		Type:       kind,
		OccurredOn: time.Now().UTC(),
		Attributes: attrs,
	}
}

// NewIdentifier generates a random fact identifier.
func NewIdentifier() fact.Identifier {
	return fact.NewIdentifier(identifierName, uuid.NewString())
}

func (e *DomainEvent) ID() fact.Identifier { return e.Identifier }
func (e *DomainEvent) Kind() fact.Kind { return e.Type }
func (e *DomainEvent) OccurredAt() time.Time { return e.OccurredOn }
func (e *DomainEvent) CorrelationID() string { return e.Correlation }
func (e *DomainEvent) Categories() []fact.Kind { return []fact.Kind{KindDomainEvent} }

// Attribute returns the value of the first attribute named name.
func (e *DomainEvent) Attribute(name string) (string, bool) {
	for _, a := range e.Attributes {
		if a.Name == name {
			return a.Value, true
		}
	}

	return "", false
}

// PresenceAnnounced is published by a processing unit on startup or reboot to
// declare the event types it handles and where they must be delivered.
type PresenceAnnounced struct {
	DomainEvent
	Routes []Attribute `json:"routes"`
}

// NewPresenceAnnounced creates an announcement of routes by serviceName.
func NewPresenceAnnounced(serviceName, correlationID string, routes []Attribute) *PresenceAnnounced {
	e := NewDomainEvent(KindPresenceAnnounced, Attribute{Name: AttributeServiceName, Value: serviceName})
	e.Correlation = correlationID

	return &PresenceAnnounced{DomainEvent: *e, Routes: routes}
}
