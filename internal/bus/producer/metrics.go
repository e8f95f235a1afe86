package producer

import (
	"context"
	"time"

	"cybnity/internal/bus"
	"cybnity/internal/channel"
	"cybnity/internal/fact"
	"cybnity/internal/mapping"
	"cybnity/internal/metrics"
)

// MetricsProducer wraps a bus.Adapter with metrics collection
type MetricsProducer struct {
	adapter  bus.Adapter
	registry *metrics.Registry
}

// NewMetricsProducer creates a new instrumented adapter
func NewMetricsProducer(adapter bus.Adapter, registry *metrics.Registry) bus.Adapter {
	return &MetricsProducer{
		adapter:  adapter,
		registry: registry,
	}
}

// Publish implements bus.Adapter.Publish with metrics collection
func (p *MetricsProducer) Publish(ctx context.Context, evt fact.Event, channels []channel.Channel, m mapping.Mapper) error {
	start := time.Now()
	err := p.adapter.Publish(ctx, evt, channels, m)
	p.registry.RecordBusPublish("channel", kindOf(evt), time.Since(start), err)
	return err
}

// Append implements bus.Adapter.Append with metrics collection
func (p *MetricsProducer) Append(ctx context.Context, evt fact.Event, stream channel.Stream, m mapping.Mapper) error {
	start := time.Now()
	err := p.adapter.Append(ctx, evt, stream, m)
	p.registry.RecordBusPublish("stream", kindOf(evt), time.Since(start), err)
	return err
}

func kindOf(evt fact.Event) string {
	if evt == nil {
		return ""
	}
	return string(evt.Kind())
}
