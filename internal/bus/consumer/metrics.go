package consumer

import (
	"context"
	"time"

	"cybnity/internal/bus"
	"cybnity/internal/metrics"
)

// MetricsConsumer wraps a bus.Consumer with metrics collection
type MetricsConsumer struct {
	consumer bus.Consumer
	registry *metrics.Registry
}

// NewMetricsConsumer creates a new instrumented consumer
func NewMetricsConsumer(consumer bus.Consumer, registry *metrics.Registry) bus.Consumer {
	return &MetricsConsumer{
		consumer: consumer,
		registry: registry,
	}
}

// Pull implements bus.Consumer.Pull with metrics collection
func (c *MetricsConsumer) Pull(ctx context.Context, topic, sub string, observer bus.Observer) (int, error) {
	start := time.Now()
	n, err := c.consumer.Pull(ctx, topic, sub, observer)
	c.registry.RecordConsumerPull(topic, sub, n, time.Since(start), err)
	return n, err
}

// Ack implements bus.Consumer.Ack with metrics collection
func (c *MetricsConsumer) Ack(ctx context.Context, sub string, msg bus.Message) error {
	err := c.consumer.Ack(ctx, sub, msg)
	c.registry.RecordConsumerAck(msg.Topic, sub, err)
	return err
}
