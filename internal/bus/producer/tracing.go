package producer

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"cybnity/internal/bus"
	"cybnity/internal/channel"
	"cybnity/internal/fact"
	"cybnity/internal/mapping"
	"cybnity/internal/tracing"
)

// TracedProducer wraps a bus.Adapter with distributed tracing
// Layer order: TracedProducer -> MetricsProducer -> Producer (real thing)
type TracedProducer struct {
	adapter bus.Adapter
	tracer  *tracing.Tracer
}

// NewTracedProducer creates a new traced adapter that wraps a metrics adapter
func NewTracedProducer(adapter bus.Adapter, tracer *tracing.Tracer) bus.Adapter {
	return &TracedProducer{
		adapter: adapter,
		tracer:  tracer,
	}
}

// Publish implements bus.Adapter.Publish with distributed tracing
func (p *TracedProducer) Publish(ctx context.Context, evt fact.Event, channels []channel.Channel, m mapping.Mapper) error {
	ctx, span := p.tracer.StartSpan(ctx, "producer.publish")

	names := make([]string, 0, len(channels))
	for _, ch := range channels {
		names = append(names, ch.Name())
	}
	span.SetAttributes(attribute.StringSlice("cybnity.channels", names))
	if evt != nil {
		span.SetAttributes(p.tracer.EventAttributes(string(evt.Kind()), evt.CorrelationID())...)
	}

	err := p.adapter.Publish(ctx, evt, channels, m)
	p.tracer.End(span, err)
	return err
}

// Append implements bus.Adapter.Append with distributed tracing
func (p *TracedProducer) Append(ctx context.Context, evt fact.Event, stream channel.Stream, m mapping.Mapper) error {
	ctx, span := p.tracer.StartSpan(ctx, "producer.append")

	span.SetAttributes(attribute.String("cybnity.stream", stream.Name()))
	if evt != nil {
		span.SetAttributes(p.tracer.EventAttributes(string(evt.Kind()), evt.CorrelationID())...)
	}

	err := p.adapter.Append(ctx, evt, stream, m)
	p.tracer.End(span, err)
	return err
}
