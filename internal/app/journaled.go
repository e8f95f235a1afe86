package app

import (
	"context"

	"go.uber.org/zap"

	"cybnity/internal/bus"
	"cybnity/internal/channel"
	"cybnity/internal/eventstore"
	"cybnity/internal/fact"
)

// Journaled appends every event an observer receives to the event store
// before handing it over. Store failures are logged; the observer is still
// notified.
func Journaled(observer bus.Observer, store eventstore.Store, logger *zap.Logger) bus.Observer {
	return &journaled{observer: observer, store: store, logger: logger}
}

type journaled struct {
	observer bus.Observer
	store    eventstore.Store
	logger   *zap.Logger
}

func (j *journaled) ObservedChannel() channel.Channel {
	return j.observer.ObservedChannel()
}

func (j *journaled) Notify(ctx context.Context, evt fact.Event) {
	if evt != nil {
		if _, err := j.store.Append(ctx, evt); err != nil {
			j.logger.Warn("failed to journal received event", zap.String("kind", string(evt.Kind())), zap.Error(err))
		}
	}

	j.observer.Notify(ctx, evt)
}
