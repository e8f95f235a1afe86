package consumer

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"cybnity/internal/bus"
)

// Listen pulls the observer's channel for sub every interval until ctx is
// done. Pull failures are logged and retried on the next tick.
func Listen(ctx context.Context, c bus.Consumer, sub string, observer bus.Observer, interval time.Duration, logger *zap.Logger) error {
	topic := observer.ObservedChannel().Name()
	logger = logger.With(zap.String("topic", topic), zap.String("sub", sub))

	tick := time.NewTicker(interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-tick.C:
			pulled, err := c.Pull(ctx, topic, sub, observer)
			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				logger.Warn("failed to pull messages", zap.Error(err))
				continue
			}
			if pulled > 0 {
				logger.Debug("pulled messages", zap.Int("count", pulled))
			}
		}
	}
}
