package routing

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"cybnity/internal/bus"
	"cybnity/internal/channel"
	"cybnity/internal/event"
	"cybnity/internal/fact"
	"cybnity/internal/mapping"
	"cybnity/internal/validator"
)

// Recorder receives routing measurements. *metrics.Registry satisfies it.
type Recorder interface {
	RecordRouteChange(operation string)
	SetRoutesCount(n int)
	RecordAnnouncement(outcome string)
}

type noopRecorder struct{}

func (noopRecorder) RecordRouteChange(string) {}
func (noopRecorder) SetRoutesCount(int) {}
func (noopRecorder) RecordAnnouncement(string) {}

// Announcement outcomes.
const (
	OutcomeChanged   = "changed"
	OutcomeUnchanged = "unchanged"
	OutcomeRejected  = "rejected"
)

type Option func(*AnnouncesObserver)

func WithRecorder(r Recorder) Option {
	return func(o *AnnouncesObserver) {
		if r != nil {
			o.recorder = r
		}
	}
}

// AnnouncesObserver listens to presence announcements of processing units,
// merges their routes into the recipient list and notifies the downstream
// channels when the table changed.
type AnnouncesObserver struct {
	routes      *RouteRecipientList
	adapter     bus.Adapter
	mappers     mapping.MapperFactory
	announces   channel.Channel
	notified    []channel.Channel
	serviceName string
	logger      *zap.Logger
	recorder    Recorder
}

func NewAnnouncesObserver(
	routes *RouteRecipientList,
	adapter bus.Adapter,
	mappers mapping.MapperFactory,
	announces channel.Channel,
	notified []channel.Channel,
	serviceName string,
	logger *zap.Logger,
	opts ...Option,
) (*AnnouncesObserver, error) {
	o := AnnouncesObserver{
		routes:      routes,
		adapter:     adapter,
		mappers:     mappers,
		announces:   announces,
		notified:    notified,
		serviceName: serviceName,
		logger:      logger,
		recorder:    noopRecorder{},
	}

	if err := validator.Validate("announces observer", o.routes, o.adapter, o.mappers, o.logger); err != nil {
		return nil, fmt.Errorf("failed to validate announces observer deps: %w", err)
	}
	if err := validator.Mandatory("announces channel name", o.announces.Name()); err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.Named("announces-observer").With(zap.String("channel", o.announces.Name()))

	return &o, nil
}

// ObservedChannel implements bus.Observer.
func (o *AnnouncesObserver) ObservedChannel() channel.Channel {
	return o.announces
}

// Notify implements bus.Observer. Anything but a presence announcement is
// logged and dropped. Merged routes are kept even when the notification of
// the change fails.
func (o *AnnouncesObserver) Notify(ctx context.Context, evt fact.Event) {
	announced, ok := evt.(*event.PresenceAnnounced)
	if !ok || announced == nil {
		o.recorder.RecordAnnouncement(OutcomeRejected)
		o.logger.Error("unexpected event type on announces channel", zap.String("type", fmt.Sprintf("%T", evt)))
		return
	}

	logger := o.logger.With(
		zap.String("correlationId", announced.CorrelationID()),
		zap.String("announcer", attribute(&announced.DomainEvent, event.AttributeServiceName)),
	)

	changed := false
	for _, route := range announced.Routes {
		change, err := o.routes.merge(route.Name, route.Value)
		if err != nil {
			logger.Error("invalid route declared", zap.String("recipient", route.Value), zap.Error(err))
			continue
		}
		if change == Unchanged {
			continue
		}

		changed = true
		o.recorder.RecordRouteChange(string(change))
		logger.Info("route merged",
			zap.String("eventType", route.Name),
			zap.String("recipient", route.Value),
			zap.String("change", string(change)),
		)
	}
	o.recorder.SetRoutesCount(o.routes.RoutesCount())

	if !changed {
		o.recorder.RecordAnnouncement(OutcomeUnchanged)
		logger.Debug("announcement did not change routes")
		return
	}
	o.recorder.RecordAnnouncement(OutcomeChanged)

	if err := o.notifyRoutingPathsRegistered(ctx, announced); err != nil {
		logger.Warn("failed to notify routing paths change", zap.Error(err))
	}
}

func (o *AnnouncesObserver) notifyRoutingPathsRegistered(ctx context.Context, origin *event.PresenceAnnounced) error {
	ref, err := fact.NewReference(origin)
	if err != nil {
		return fmt.Errorf("failed to reference announcement: %w", err)
	}

	registered := event.NewDomainEvent(event.KindRoutingPathsRegistered, o.defaultAttributes()...)
	registered.ChangedModelElement = ref
	registered.Correlation = origin.CorrelationID()

	return o.publish(ctx, registered)
}

// RequestPresenceAnnouncesRenewal asks every processing unit to announce its
// routes again, e.g. after this observer restarted with an empty table.
func (o *AnnouncesObserver) RequestPresenceAnnouncesRenewal(ctx context.Context) error {
	request := event.NewDomainEvent(event.KindPresenceAnnounceRequested, o.defaultAttributes()...)
	if err := o.publish(ctx, request); err != nil {
		return fmt.Errorf("failed to request presence announces renewal: %w", err)
	}

	o.logger.Info("presence announces renewal requested")

	return nil
}

func (o *AnnouncesObserver) publish(ctx context.Context, evt *event.DomainEvent) error {
	if len(o.notified) == 0 {
		return nil
	}

	m, err := o.mappers.GetMapper(evt.Kind(), mapping.FormatJSON)
	if err != nil {
		return fmt.Errorf("failed to get mapper for %s: %w", evt.Kind(), err)
	}

	if err := o.adapter.Publish(ctx, evt, o.notified, m); err != nil {
		return fmt.Errorf("failed to publish %s: %w", evt.Kind(), err)
	}

	return nil
}

func (o *AnnouncesObserver) defaultAttributes() []event.Attribute {
	attrs := []event.Attribute{{Name: event.AttributeSourceChannelName, Value: o.announces.Name()}}
	if o.serviceName != "" {
		attrs = append(attrs, event.Attribute{Name: event.AttributeServiceName, Value: o.serviceName})
	}

	return attrs
}

func attribute(evt *event.DomainEvent, name string) string {
	v, _ := evt.Attribute(name)
	return v
}
