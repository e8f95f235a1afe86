package routing

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"cybnity/internal/bus/memory"
	"cybnity/internal/channel"
	"cybnity/internal/event"
	"cybnity/internal/fact"
	"cybnity/internal/mapping"
)

type recordingHandler struct {
	announced    []fact.Event
	acknowledged []*event.DomainEvent
}

func (h *recordingHandler) AnnouncePresence(_ context.Context, origin fact.Event) error {
	h.announced = append(h.announced, origin)
	return nil
}

func (h *recordingHandler) AcknowledgedRoutingPath(_ context.Context, evt *event.DomainEvent) {
	h.acknowledged = append(h.acknowledged, evt)
}

var _ = Describe("RecipientsManagerObserver", func() {
	var (
		ctx      context.Context
		handler  *recordingHandler
		observer *RecipientsManagerObserver
	)

	BeforeEach(func() {
		ctx = context.Background()
		handler = &recordingHandler{}

		var err error
		observer, err = NewRecipientsManagerObserver(channel.New("ac-units"), handler, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
	})

	It("dispatches control events to the handler", func() {
		request := event.NewDomainEvent(event.KindPresenceAnnounceRequested)
		registered := event.NewDomainEvent(event.KindRoutingPathsRegistered)

		observer.Notify(ctx, request)
		observer.Notify(ctx, registered)

		Expect(handler.announced).To(Equal([]fact.Event{request}))
		Expect(handler.acknowledged).To(Equal([]*event.DomainEvent{registered}))
	})

	It("ignores other events", func() {
		observer.Notify(ctx, event.NewDomainEvent("TENANT_CREATED"))
		observer.Notify(ctx, event.NewPresenceAnnounced("unit", "corr", nil))
		observer.Notify(ctx, nil)

		Expect(handler.announced).To(BeEmpty())
		Expect(handler.acknowledged).To(BeEmpty())
	})
})

var _ = Describe("PresenceAnnouncer", func() {
	var (
		ctx       context.Context
		memBus    *memory.Bus
		routes    *RouteRecipientList
		announcer *PresenceAnnouncer
	)

	BeforeEach(func() {
		ctx = context.Background()
		memBus = memory.NewBus(zap.NewNop())
		routes = NewRouteRecipientList()
		mappers := mapping.NewFactory()

		manager, err := NewAnnouncesObserver(
			routes, memBus, mappers,
			channel.New("ac-announces"), channel.Channels("ac-units"),
			"recipients-manager", zap.NewNop(),
		)
		Expect(err).NotTo(HaveOccurred())
		memBus.Subscribe(manager)

		announcer, err = NewPresenceAnnouncer(
			"access-control",
			map[string]string{"TENANT_CREATED": "ac-stream-1", "TENANT_DELETED": "ac-stream-2"},
			channel.New("ac-announces"), memBus, mappers, zap.NewNop(),
		)
		Expect(err).NotTo(HaveOccurred())

		unit, err := NewRecipientsManagerObserver(channel.New("ac-units"), announcer, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
		memBus.Subscribe(unit)
	})

	It("announces its routes and gets them acknowledged", func() {
		correlationID, err := announcer.Announce(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(routes.Routes()).To(Equal(map[string]string{
			"TENANT_CREATED": "ac-stream-1",
			"TENANT_DELETED": "ac-stream-2",
		}))
		Expect(announcer.Acknowledged(correlationID)).To(BeTrue())
		Expect(announcer.Pending()).To(BeZero())
	})

	It("stays pending when the routes were already known", func() {
		_, err := announcer.Announce(ctx)
		Expect(err).NotTo(HaveOccurred())

		correlationID, err := announcer.Announce(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(announcer.Acknowledged(correlationID)).To(BeFalse())
		Expect(announcer.Pending()).To(Equal(1))
	})

	It("forgets the oldest unconfirmed announcements across renewal cycles", func() {
		first, err := announcer.Announce(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(announcer.Acknowledged(first)).To(BeTrue())

		var oldest string
		for i := range 3 * trackedAnnouncements {
			id, err := announcer.Announce(ctx)
			Expect(err).NotTo(HaveOccurred())
			if i == 0 {
				oldest = id
			}
		}

		Expect(announcer.Pending()).To(Equal(trackedAnnouncements))
		Expect(announcer.Acknowledgements()).To(Equal(1))

		// a late confirmation of a forgotten announcement is ignored
		late := event.NewDomainEvent(event.KindRoutingPathsRegistered)
		late.Correlation = oldest
		announcer.AcknowledgedRoutingPath(ctx, late)
		Expect(announcer.Acknowledged(oldest)).To(BeFalse())
		Expect(announcer.Acknowledgements()).To(Equal(1))
	})

	It("re-announces when the manager requests a renewal", func() {
		manager, err := NewAnnouncesObserver(
			NewRouteRecipientList(), memBus, mapping.NewFactory(),
			channel.New("ac-announces"), channel.Channels("ac-units"),
			"recipients-manager", zap.NewNop(),
		)
		Expect(err).NotTo(HaveOccurred())

		Expect(manager.RequestPresenceAnnouncesRenewal(ctx)).To(Succeed())

		Expect(routes.RoutesCount()).To(Equal(2))
		announced := memBus.Sent("ac-announces")
		Expect(announced).To(HaveLen(1))
		Expect(announced[0].Kind()).To(Equal(event.KindPresenceAnnounced))
	})

	It("ignores acknowledgements of other units", func() {
		other := event.NewDomainEvent(event.KindRoutingPathsRegistered)
		other.Correlation = "someone-else"

		announcer.AcknowledgedRoutingPath(ctx, other)
		Expect(announcer.Acknowledged("someone-else")).To(BeFalse())
	})

	It("fails the announcement when the transport fails", func() {
		failing, err := NewPresenceAnnouncer("access-control", map[string]string{"A": "s"},
			channel.New("ac-announces"), &failingAdapter{}, mapping.NewFactory(), zap.NewNop())
		Expect(err).NotTo(HaveOccurred())

		_, err = failing.Announce(ctx)
		Expect(err).To(MatchError(errTransport))
		Expect(failing.Pending()).To(BeZero())
	})
})
