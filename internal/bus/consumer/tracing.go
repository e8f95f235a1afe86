package consumer

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"cybnity/internal/bus"
	"cybnity/internal/tracing"
)

// TracedConsumer wraps a bus.Consumer with distributed tracing
// Layer order: TracedConsumer -> MetricsConsumer -> Consumer (real thing)
type TracedConsumer struct {
	consumer bus.Consumer
	tracer   *tracing.Tracer
}

// NewTracedConsumer creates a new traced consumer that wraps a metrics consumer
func NewTracedConsumer(consumer bus.Consumer, tracer *tracing.Tracer) bus.Consumer {
	return &TracedConsumer{
		consumer: consumer,
		tracer:   tracer,
	}
}

// Pull implements bus.Consumer.Pull with distributed tracing
func (c *TracedConsumer) Pull(ctx context.Context, topic, sub string, observer bus.Observer) (int, error) {
	ctx, span := c.tracer.StartSpan(ctx, "consumer.pull")
	span.SetAttributes(c.tracer.ConsumerAttributes(topic, sub)...)

	n, err := c.consumer.Pull(ctx, topic, sub, observer)

	span.SetAttributes(attribute.Int("cybnity.messages_consumed", n))
	c.tracer.End(span, err)
	return n, err
}

// Ack implements bus.Consumer.Ack with distributed tracing
func (c *TracedConsumer) Ack(ctx context.Context, sub string, msg bus.Message) error {
	ctx, span := c.tracer.StartSpan(ctx, "consumer.ack")
	span.SetAttributes(
		attribute.String("cybnity.subscription", sub),
		attribute.String("cybnity.topic", msg.Topic),
		attribute.String("cybnity.message_id", msg.ID),
		attribute.Int64("cybnity.message_offset", int64(msg.Offset)),
	)

	err := c.consumer.Ack(ctx, sub, msg)
	c.tracer.End(span, err)
	return err
}
