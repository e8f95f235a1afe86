// Package bus defines how facts travel between processing units: adapters
// publish events to channels and append them to streams, consumers pull them
// back and hand them to observers.
package bus

import (
	"context"

	"cybnity/internal/channel"
	"cybnity/internal/fact"
	"cybnity/internal/mapping"
)

// Adapter transports events to named endpoints. Failures are returned as is;
// callers decide whether to log or retry.
type Adapter interface {
	// Publish delivers evt to every channel, encoded with m.
	Publish(ctx context.Context, evt fact.Event, channels []channel.Channel, m mapping.Mapper) error

	// Append adds evt to the persistent stream, encoded with m.
	Append(ctx context.Context, evt fact.Event, stream channel.Stream, m mapping.Mapper) error
}

// Observer reacts to events received on the channel it watches.
type Observer interface {
	ObservedChannel() channel.Channel
	Notify(ctx context.Context, evt fact.Event)
}

// Consumer pulls messages of a topic for a subscription and dispatches them.
type Consumer interface {
	// Pull delivers the next batch of the topic to observer and returns how many
	// messages were leased.
	Pull(ctx context.Context, topic, sub string, observer Observer) (int, error)

	// Ack marks a message as processed by the subscription.
	Ack(ctx context.Context, sub string, msg Message) error
}

// Controller persists messages, write offsets, read cursors and leases.
type Controller interface {
	// GetCursor returns the next offset the subscription reads, 0 when new.
	GetCursor(ctx context.Context, topic, sub string) (uint64, error)

	// CommitCursor advances the subscription cursor; it never moves backwards.
	CommitCursor(ctx context.Context, topic, sub string, next uint64) error

	// GetOffset returns the next write offset of the topic, 0 when new.
	GetOffset(ctx context.Context, topic string) (uint64, error)

	// CommitOffset advances the topic write offset; it never moves backwards.
	CommitOffset(ctx context.Context, topic string, next uint64) error

	// InsertLease claims a message for a subscription. It fails with
	// gocb.ErrDocumentExists while another lease is active.
	InsertLease(ctx context.Context, sub, msgID string, offset uint64) error

	// DeleteLease releases a claim. Missing leases are not an error.
	DeleteLease(ctx context.Context, sub, msgID string) error

	// InsertMessage stores msg. It fails with gocb.ErrDocumentExists when the
	// offset is already taken.
	InsertMessage(ctx context.Context, msg Message) error

	// LoadMessages returns up to limit messages of topic from offset, in offset order.
	LoadMessages(ctx context.Context, topic string, from uint64, limit int) ([]Message, error)
}
