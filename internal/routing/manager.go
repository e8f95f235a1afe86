package routing

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"cybnity/internal/channel"
	"cybnity/internal/event"
	"cybnity/internal/fact"
	"cybnity/internal/validator"
)

// RecipientsHandler is implemented by processing units to take part in
// dynamic routing.
type RecipientsHandler interface {
	// AnnouncePresence declares the unit routes in reply to origin, a renewal
	// request of the recipients manager.
	AnnouncePresence(ctx context.Context, origin fact.Event) error

	// AcknowledgedRoutingPath is called when the recipients manager confirms a
	// routing change.
	AcknowledgedRoutingPath(ctx context.Context, evt *event.DomainEvent)
}

// RecipientsManagerObserver watches the recipients manager output channel
// from inside a processing unit and forwards control events to a
// RecipientsHandler. Other events are ignored.
type RecipientsManagerObserver struct {
	observed channel.Channel
	handler  RecipientsHandler
	logger   *zap.Logger
}

func NewRecipientsManagerObserver(observed channel.Channel, handler RecipientsHandler, logger *zap.Logger) (*RecipientsManagerObserver, error) {
	o := RecipientsManagerObserver{
		observed: observed,
		handler:  handler,
		logger:   logger,
	}

	if err := validator.Validate("recipients manager observer", o.handler, o.logger); err != nil {
		return nil, fmt.Errorf("failed to validate recipients manager observer deps: %w", err)
	}
	if err := validator.Mandatory("observed channel name", o.observed.Name()); err != nil {
		return nil, err
	}
	o.logger = o.logger.Named("recipients-manager-observer")

	return &o, nil
}

// ObservedChannel implements bus.Observer.
func (o *RecipientsManagerObserver) ObservedChannel() channel.Channel {
	return o.observed
}

// Notify implements bus.Observer.
func (o *RecipientsManagerObserver) Notify(ctx context.Context, evt fact.Event) {
	if evt == nil {
		return
	}

	switch evt.Kind() {
	case event.KindPresenceAnnounceRequested:
		if err := o.handler.AnnouncePresence(ctx, evt); err != nil {
			o.logger.Error("failed to announce presence", zap.Error(err))
		}
	case event.KindRoutingPathsRegistered:
		registered, ok := evt.(*event.DomainEvent)
		if !ok {
			return
		}
		o.handler.AcknowledgedRoutingPath(ctx, registered)
	}
}
