package controller

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"cybnity/internal/bus"
	"cybnity/internal/tracing"
)

// TracedController wraps a bus.Controller with distributed tracing
// Layer order: TracedController -> MetricsController -> Controller (real thing)
type TracedController struct {
	controller bus.Controller
	tracer     *tracing.Tracer
}

// NewTracedController creates a new traced controller that wraps a metrics controller
func NewTracedController(controller bus.Controller, tracer *tracing.Tracer) bus.Controller {
	return &TracedController{
		controller: controller,
		tracer:     tracer,
	}
}

func (c *TracedController) start(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := c.tracer.StartSpan(ctx, "controller."+operation)
	span.SetAttributes(c.tracer.DatabaseAttributes(operation)...)
	span.SetAttributes(attrs...)
	return ctx, span
}

func (c *TracedController) GetCursor(ctx context.Context, topic, sub string) (uint64, error) {
	ctx, span := c.start(ctx, "get_cursor", c.tracer.ConsumerAttributes(topic, sub)...)
	offset, err := c.controller.GetCursor(ctx, topic, sub)
	span.SetAttributes(attribute.Int64("cybnity.cursor_offset", int64(offset)))
	c.tracer.End(span, err)
	return offset, err
}

func (c *TracedController) CommitCursor(ctx context.Context, topic, sub string, next uint64) error {
	ctx, span := c.start(ctx, "commit_cursor", c.tracer.ConsumerAttributes(topic, sub)...)
	span.SetAttributes(attribute.Int64("cybnity.cursor_offset", int64(next)))
	err := c.controller.CommitCursor(ctx, topic, sub, next)
	c.tracer.End(span, err)
	return err
}

func (c *TracedController) GetOffset(ctx context.Context, topic string) (uint64, error) {
	ctx, span := c.start(ctx, "get_offset", attribute.String("cybnity.topic", topic))
	offset, err := c.controller.GetOffset(ctx, topic)
	span.SetAttributes(attribute.Int64("cybnity.write_offset", int64(offset)))
	c.tracer.End(span, err)
	return offset, err
}

func (c *TracedController) CommitOffset(ctx context.Context, topic string, next uint64) error {
	ctx, span := c.start(ctx, "commit_offset",
		attribute.String("cybnity.topic", topic),
		attribute.Int64("cybnity.write_offset", int64(next)),
	)
	err := c.controller.CommitOffset(ctx, topic, next)
	c.tracer.End(span, err)
	return err
}

func (c *TracedController) InsertLease(ctx context.Context, sub, msgID string, offset uint64) error {
	ctx, span := c.start(ctx, "insert_lease",
		attribute.String("cybnity.subscription", sub),
		attribute.String("cybnity.message_id", msgID),
	)
	err := c.controller.InsertLease(ctx, sub, msgID, offset)
	c.tracer.End(span, err)
	return err
}

func (c *TracedController) DeleteLease(ctx context.Context, sub, msgID string) error {
	ctx, span := c.start(ctx, "delete_lease",
		attribute.String("cybnity.subscription", sub),
		attribute.String("cybnity.message_id", msgID),
	)
	err := c.controller.DeleteLease(ctx, sub, msgID)
	c.tracer.End(span, err)
	return err
}

func (c *TracedController) InsertMessage(ctx context.Context, msg bus.Message) error {
	ctx, span := c.start(ctx, "insert_message", c.tracer.EventAttributes(msg.Kind, msg.CorrelationID)...)
	span.SetAttributes(
		attribute.String("cybnity.topic", msg.Topic),
		attribute.String("cybnity.message_id", msg.ID),
	)
	err := c.controller.InsertMessage(ctx, msg)
	c.tracer.End(span, err)
	return err
}

func (c *TracedController) LoadMessages(ctx context.Context, topic string, from uint64, limit int) ([]bus.Message, error) {
	ctx, span := c.start(ctx, "load_messages",
		attribute.String("cybnity.topic", topic),
		attribute.Int64("cybnity.from_offset", int64(from)),
		attribute.Int("cybnity.limit", limit),
	)
	messages, err := c.controller.LoadMessages(ctx, topic, from, limit)
	span.SetAttributes(attribute.Int("cybnity.messages_loaded", len(messages)))
	c.tracer.End(span, err)
	return messages, err
}
