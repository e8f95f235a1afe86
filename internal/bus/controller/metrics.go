package controller

import (
	"context"
	"time"

	"cybnity/internal/bus"
	"cybnity/internal/metrics"
)

// MetricsController wraps a bus.Controller with metrics collection
type MetricsController struct {
	controller bus.Controller
	registry   *metrics.Registry
}

// NewMetricsController creates a new instrumented controller
func NewMetricsController(controller bus.Controller, registry *metrics.Registry) bus.Controller {
	return &MetricsController{
		controller: controller,
		registry:   registry,
	}
}

func (c *MetricsController) observe(operation string, start time.Time, err error) {
	c.registry.RecordDatabaseOperation(operation, time.Since(start), err)
}

func (c *MetricsController) GetCursor(ctx context.Context, topic, sub string) (uint64, error) {
	start := time.Now()
	offset, err := c.controller.GetCursor(ctx, topic, sub)
	c.observe("get_cursor", start, err)
	return offset, err
}

func (c *MetricsController) CommitCursor(ctx context.Context, topic, sub string, next uint64) error {
	start := time.Now()
	err := c.controller.CommitCursor(ctx, topic, sub, next)
	c.observe("commit_cursor", start, err)
	return err
}

func (c *MetricsController) GetOffset(ctx context.Context, topic string) (uint64, error) {
	start := time.Now()
	offset, err := c.controller.GetOffset(ctx, topic)
	c.observe("get_offset", start, err)
	return offset, err
}

func (c *MetricsController) CommitOffset(ctx context.Context, topic string, next uint64) error {
	start := time.Now()
	err := c.controller.CommitOffset(ctx, topic, next)
	c.observe("commit_offset", start, err)
	return err
}

func (c *MetricsController) InsertLease(ctx context.Context, sub, msgID string, offset uint64) error {
	start := time.Now()
	err := c.controller.InsertLease(ctx, sub, msgID, offset)
	c.observe("insert_lease", start, err)
	c.registry.RecordLeaseOperation("create", err)
	return err
}

func (c *MetricsController) DeleteLease(ctx context.Context, sub, msgID string) error {
	start := time.Now()
	err := c.controller.DeleteLease(ctx, sub, msgID)
	c.observe("delete_lease", start, err)
	c.registry.RecordLeaseOperation("delete", err)
	return err
}

func (c *MetricsController) InsertMessage(ctx context.Context, msg bus.Message) error {
	start := time.Now()
	err := c.controller.InsertMessage(ctx, msg)
	c.observe("insert_message", start, err)
	return err
}

func (c *MetricsController) LoadMessages(ctx context.Context, topic string, from uint64, limit int) ([]bus.Message, error) {
	start := time.Now()
	messages, err := c.controller.LoadMessages(ctx, topic, from, limit)
	c.observe("load_messages", start, err)
	return messages, err
}
