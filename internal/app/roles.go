package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cybnity/internal/channel"
	"cybnity/internal/event"
	"cybnity/internal/eventstore"
	"cybnity/internal/fact"
	"cybnity/internal/routing"
)

// RecipientsManager owns the route recipient list of the platform.
type RecipientsManager struct {
	Routes   *routing.RouteRecipientList
	Observer *routing.AnnouncesObserver

	rt *Runtime
}

func NewRecipientsManager(rt *Runtime) (*RecipientsManager, error) {
	cfg := rt.Config
	routes := routing.NewRouteRecipientList()

	observer, err := routing.NewAnnouncesObserver(
		routes,
		rt.Adapter,
		rt.Mappers,
		channel.New(cfg.AnnouncesChannel),
		channel.Channels(cfg.NotificationChannels...),
		cfg.ServiceName,
		rt.Logger,
		routing.WithRecorder(rt.Registry),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create announces observer: %w", err)
	}

	_, err = rt.Publisher.Subscribe(eventstore.NewSubscriber(event.KindPresenceAnnounced, func(_ context.Context, evt fact.Event) error {
		committed, ok := evt.(*eventstore.RecordCommitted)
		if !ok {
			return nil
		}
		rt.Logger.Debug("announcement recorded",
			zap.String("factId", committed.Stored.FactID),
			zap.String("correlationId", committed.CorrelationID()),
		)
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to recorded announcements: %w", err)
	}

	return &RecipientsManager{Routes: routes, Observer: observer, rt: rt}, nil
}

// Run asks processing units to announce themselves, then merges their
// announcements until ctx is done.
func (m *RecipientsManager) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return m.rt.Listen(gctx, Journaled(m.Observer, m.rt.Store, m.rt.Logger))
	})

	if err := m.Observer.RequestPresenceAnnouncesRenewal(gctx); err != nil {
		m.rt.Logger.Warn("failed to request presence announces renewal", zap.Error(err))
	}
	m.rt.Server.MarkReady()

	return g.Wait()
}

// ProcessingUnit announces the routes it serves and follows the recipients
// manager notifications.
type ProcessingUnit struct {
	Announcer *routing.PresenceAnnouncer
	Observer  *routing.RecipientsManagerObserver

	rt *Runtime
}

func NewProcessingUnit(rt *Runtime) (*ProcessingUnit, error) {
	cfg := rt.Config
	if len(cfg.NotificationChannels) == 0 {
		return nil, fmt.Errorf("a processing unit needs a notification channel")
	}

	announcer, err := routing.NewPresenceAnnouncer(
		cfg.ServiceName,
		cfg.UnitRoutes,
		channel.New(cfg.AnnouncesChannel),
		rt.Adapter,
		rt.Mappers,
		rt.Logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create presence announcer: %w", err)
	}

	observer, err := routing.NewRecipientsManagerObserver(channel.New(cfg.NotificationChannels[0]), announcer, rt.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create recipients manager observer: %w", err)
	}

	return &ProcessingUnit{Announcer: announcer, Observer: observer, rt: rt}, nil
}

// Run announces the unit presence and reacts to the manager until ctx is done.
func (u *ProcessingUnit) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return u.rt.Listen(gctx, u.Observer)
	})

	if _, err := u.Announcer.Announce(gctx); err != nil {
		u.rt.Logger.Warn("failed to announce presence", zap.Error(err))
	}
	u.rt.Server.MarkReady()

	return g.Wait()
}
