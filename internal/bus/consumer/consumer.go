package consumer

import (
	"context"
	"errors"
	"fmt"

	"github.com/couchbase/gocb/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cybnity/internal/bus"
	"cybnity/internal/mapping"
	"cybnity/internal/validator"
)

type Consumer struct {
	controller  bus.Controller
	mapper      mapping.Mapper
	logger      *zap.Logger
	batchSize   int
	concurrency int
}

func NewConsumer(controller bus.Controller, mapper mapping.Mapper, logger *zap.Logger, batchSize, concurrency int) (*Consumer, error) {
	c := Consumer{
		controller:  controller,
		mapper:      mapper,
		logger:      logger,
		batchSize:   batchSize,
		concurrency: concurrency,
	}

	if err := validator.Validate("consumer", c.controller, c.mapper, c.logger, c.batchSize); err != nil {
		return nil, fmt.Errorf("failed to validate consumer deps: %w", err)
	}
	if c.concurrency <= 0 {
		c.concurrency = 1
	}

	return &c, nil
}

// Pull leases the next batch of topic for sub, hands every decoded event to
// observer and acks it. Messages that cannot be decoded are logged and acked
// so they do not block the subscription.
func (c *Consumer) Pull(ctx context.Context, topic, sub string, observer bus.Observer) (int, error) {
	if observer == nil {
		return 0, fmt.Errorf("observer is required: %w", validator.ErrInvalidArgument)
	}

	logger := c.logger.With(zap.String("topic", topic), zap.String("sub", sub))

	offset, err := c.controller.GetCursor(ctx, topic, sub)
	if err != nil {
		return 0, fmt.Errorf("failed to get cursor: %w", err)
	}

	msgs, err := c.controller.LoadMessages(ctx, topic, offset, c.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to load messages: %w", err)
	}

	logger.Debug("loaded messages", zap.Int("count", len(msgs)), zap.Uint64("from", offset))

	leased := make([]bus.Message, 0, len(msgs))
	for _, msg := range msgs {
		err := c.controller.InsertLease(ctx, sub, msg.ID, msg.Offset)
		switch {
		case err == nil:
			leased = append(leased, msg)
		case errors.Is(err, gocb.ErrDocumentExists):
		default:
			return 0, fmt.Errorf("failed to insert lease for message %s: %w", msg.ID, err)
		}
	}

	logger.Debug("leased", zap.Int("count", len(leased)))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for _, msg := range leased {
		g.Go(func() error {
			c.dispatch(gctx, logger, observer, msg)

			if err := c.Ack(gctx, sub, msg); err != nil {
				const errMsg = "failed to ack message"
				logger.Error(errMsg, zap.String("messageId", msg.ID), zap.Error(err))
				return fmt.Errorf(errMsg+": %w", err)
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return len(leased), fmt.Errorf("failed to process messages: %w", err)
	}

	return len(leased), nil
}

func (c *Consumer) dispatch(ctx context.Context, logger *zap.Logger, observer bus.Observer, msg bus.Message) {
	evt, err := c.mapper.Decode(msg.Payload)
	if err != nil {
		logger.Error("failed to decode message, dropping it",
			zap.String("messageId", msg.ID),
			zap.String("kind", msg.Kind),
			zap.Error(err),
		)
		return
	}

	observer.Notify(ctx, evt)
}

// Ack releases the lease of msg and moves the subscription cursor past it.
func (c *Consumer) Ack(ctx context.Context, sub string, msg bus.Message) error {
	if err := c.controller.DeleteLease(ctx, sub, msg.ID); err != nil {
		return fmt.Errorf("failed to delete lease for message %s: %w", msg.ID, err)
	}

	if err := c.controller.CommitCursor(ctx, msg.Topic, sub, msg.Offset+1); err != nil {
		return fmt.Errorf("failed to commit cursor for topic %s sub %s: %w", msg.Topic, sub, err)
	}

	c.logger.Debug("cursor committed", zap.Uint64("offset", msg.Offset), zap.String("messageId", msg.ID))

	return nil
}
