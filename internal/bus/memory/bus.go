package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"cybnity/internal/bus"
	"cybnity/internal/channel"
	"cybnity/internal/fact"
	"cybnity/internal/mapping"
	"cybnity/internal/validator"
)

// Bus delivers events synchronously to the observers subscribed to an
// endpoint name. Every delivery goes through the mapper, so observers get
// their own decoded copy.
type Bus struct {
	logger *zap.Logger

	mu        sync.RWMutex
	observers map[string][]bus.Observer
	sent      map[string][]fact.Event
}

func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		logger:    logger.Named("memory-bus"),
		observers: make(map[string][]bus.Observer),
		sent:      make(map[string][]fact.Event),
	}
}

// Subscribe registers observer on its observed channel.
func (b *Bus) Subscribe(observer bus.Observer) {
	name := observer.ObservedChannel().Name()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers[name] = append(b.observers[name], observer)
}

// Publish implements bus.Adapter.Publish. A failing channel does not stop
// delivery to the others.
func (b *Bus) Publish(ctx context.Context, evt fact.Event, channels []channel.Channel, m mapping.Mapper) error {
	var errs []error
	for _, ch := range channels {
		if err := validator.Mandatory("channel name", ch.Name()); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := b.deliver(ctx, ch.Name(), evt, m); err != nil {
			errs = append(errs, fmt.Errorf("failed to publish to channel %s: %w", ch.Name(), err))
		}
	}

	return errors.Join(errs...)
}

// Append implements bus.Adapter.Append.
func (b *Bus) Append(ctx context.Context, evt fact.Event, stream channel.Stream, m mapping.Mapper) error {
	if err := b.deliver(ctx, stream.Name(), evt, m); err != nil {
		return fmt.Errorf("failed to append to stream %s: %w", stream.Name(), err)
	}

	return nil
}

// Sent returns the events delivered to the endpoint name, in order.
func (b *Bus) Sent(name string) []fact.Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]fact.Event(nil), b.sent[name]...)
}

func (b *Bus) deliver(ctx context.Context, name string, evt fact.Event, m mapping.Mapper) error {
	if evt == nil || m == nil {
		return fmt.Errorf("event and mapper are required: %w", validator.ErrInvalidArgument)
	}

	data, err := m.Encode(evt)
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.sent[name] = append(b.sent[name], evt)
	observers := append([]bus.Observer(nil), b.observers[name]...)
	b.mu.Unlock()

	for _, o := range observers {
		decoded, err := m.Decode(data)
		if err != nil {
			return err
		}
		o.Notify(ctx, decoded)
	}

	b.logger.Debug("delivered",
		zap.String("endpoint", name),
		zap.String("kind", string(evt.Kind())),
		zap.Int("observers", len(observers)),
	)

	return nil
}
