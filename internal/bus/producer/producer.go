package producer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/couchbase/gocb/v2"

	"cybnity/internal/bus"
	"cybnity/internal/channel"
	"cybnity/internal/fact"
	"cybnity/internal/mapping"
	"cybnity/internal/validator"
)

// maxOffsetConflicts bounds retries when concurrent producers race for an offset.
const maxOffsetConflicts = 5

// Producer implements bus.Adapter by writing encoded events as offset
// sequenced messages of the topic named after each endpoint.
type Producer struct {
	controller bus.Controller
}

func NewProducer(controller bus.Controller) (*Producer, error) {
	p := Producer{
		controller: controller,
	}

	if err := validator.Validate("producer", p.controller); err != nil {
		return nil, fmt.Errorf("failed to validate producer controller: %w", err)
	}

	return &p, nil
}

// Publish implements bus.Adapter.Publish. Every channel is attempted; the
// returned error joins the failures.
func (p *Producer) Publish(ctx context.Context, evt fact.Event, channels []channel.Channel, m mapping.Mapper) error {
	if len(channels) == 0 {
		return nil
	}

	payload, err := encode(evt, m)
	if err != nil {
		return err
	}

	var errs []error
	for _, ch := range channels {
		if err := p.write(ctx, ch.Name(), evt, payload, false); err != nil {
			errs = append(errs, fmt.Errorf("failed to publish to channel %s: %w", ch.Name(), err))
		}
	}

	return errors.Join(errs...)
}

// Append implements bus.Adapter.Append.
func (p *Producer) Append(ctx context.Context, evt fact.Event, stream channel.Stream, m mapping.Mapper) error {
	if err := validator.Mandatory("stream name", stream.Name()); err != nil {
		return err
	}

	payload, err := encode(evt, m)
	if err != nil {
		return err
	}

	if err := p.write(ctx, stream.Name(), evt, payload, true); err != nil {
		return fmt.Errorf("failed to append to stream %s: %w", stream.Name(), err)
	}

	return nil
}

func (p *Producer) write(ctx context.Context, topic string, evt fact.Event, payload []byte, durable bool) error {
	for attempt := 0; attempt < maxOffsetConflicts; attempt++ {
		offset, err := p.controller.GetOffset(ctx, topic)
		if err != nil {
			return fmt.Errorf("failed to get offset for topic %s: %w", topic, err)
		}

		m := bus.Message{
			ID:            bus.MessageKey(topic, offset),
			Topic:         topic,
			Offset:        offset,
			Kind:          string(evt.Kind()),
			CorrelationID: evt.CorrelationID(),
			Payload:       payload,
			Durable:       durable,
			PublishTime:   ptr(time.Now().UTC()),
		}

		err = p.controller.InsertMessage(ctx, m)
		switch {
		case err == nil:
		case errors.Is(err, gocb.ErrDocumentExists):
			// another producer took the offset, catch up and retry
			if err := p.controller.CommitOffset(ctx, topic, offset+1); err != nil {
				return fmt.Errorf("failed to catch up offset for topic %s: %w", topic, err)
			}
			continue
		default:
			return fmt.Errorf("failed to insert message with ID %s: %w", m.ID, err)
		}

		if err := p.controller.CommitOffset(ctx, topic, offset+1); err != nil {
			return fmt.Errorf("failed to commit offset for topic %s: %w", topic, err)
		}

		return nil
	}

	return fmt.Errorf("failed to reserve an offset for topic %s after %d attempts", topic, maxOffsetConflicts)
}

func encode(evt fact.Event, m mapping.Mapper) ([]byte, error) {
	if evt == nil {
		return nil, fmt.Errorf("event is required: %w", validator.ErrInvalidArgument)
	}
	if m == nil {
		return nil, fmt.Errorf("mapper is required: %w", validator.ErrInvalidArgument)
	}

	payload, err := m.Encode(evt)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event of kind %s: %w", evt.Kind(), err)
	}

	return payload, nil
}

func ptr[T any](v T) *T {
	return &v
}
