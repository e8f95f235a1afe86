package routing

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"cybnity/internal/bus"
	"cybnity/internal/bus/memory"
	"cybnity/internal/channel"
	"cybnity/internal/event"
	"cybnity/internal/mapping"
)

var _ = Describe("AnnouncesObserver", func() {
	var (
		ctx      context.Context
		routes   *RouteRecipientList
		memBus   *memory.Bus
		notified *collector
		recorder *countingRecorder
		observer *AnnouncesObserver
	)

	newObserver := func(adapter bus.Adapter) *AnnouncesObserver {
		o, err := NewAnnouncesObserver(
			routes,
			adapter,
			mapping.NewFactory(),
			channel.New("ac-announces"),
			[]channel.Channel{notified.ObservedChannel()},
			"recipients-manager",
			zap.NewNop(),
			WithRecorder(recorder),
		)
		Expect(err).NotTo(HaveOccurred())
		return o
	}

	BeforeEach(func() {
		ctx = context.Background()
		routes = NewRouteRecipientList()
		memBus = memory.NewBus(zap.NewNop())
		notified = newCollector("ac-units")
		memBus.Subscribe(notified)
		recorder = newCountingRecorder()
		observer = newObserver(memBus)
	})

	It("observes the announces channel", func() {
		Expect(observer.ObservedChannel()).To(Equal(channel.New("ac-announces")))
	})

	It("merges announced routes and notifies once", func() {
		announced := event.NewPresenceAnnounced("access-control", "corr-1", []event.Attribute{
			{Name: "TENANT_CREATED", Value: "ac-stream-1"},
			{Name: "TENANT_DELETED", Value: ""},
		})

		observer.Notify(ctx, announced)

		Expect(routes.RoutesCount()).To(Equal(1))
		recipient, _ := routes.Recipient("TENANT_CREATED")
		Expect(recipient).To(Equal("ac-stream-1"))

		received := notified.received()
		Expect(received).To(HaveLen(1))

		registered, ok := received[0].(*event.DomainEvent)
		Expect(ok).To(BeTrue())
		Expect(registered.Kind()).To(Equal(event.KindRoutingPathsRegistered))
		Expect(registered.CorrelationID()).To(Equal("corr-1"))
		Expect(registered.ID()).NotTo(Equal(announced.ID()))
		Expect(registered.ChangedModelElement).NotTo(BeNil())
		Expect(registered.ChangedModelElement.ID).To(Equal(announced.ID()))
		Expect(registered.ChangedModelElement.Kind).To(Equal(event.KindPresenceAnnounced))

		source, _ := registered.Attribute(event.AttributeSourceChannelName)
		Expect(source).To(Equal("ac-announces"))
		service, _ := registered.Attribute(event.AttributeServiceName)
		Expect(service).To(Equal("recipients-manager"))

		Expect(recorder.changes).To(Equal(map[string]int{"added": 1}))
		Expect(recorder.announcements[OutcomeChanged]).To(Equal(1))
		Expect(recorder.routes).To(Equal(1))
	})

	It("does not notify when nothing changed", func() {
		routesOf := []event.Attribute{{Name: "TENANT_CREATED", Value: "ac-stream-1"}}

		observer.Notify(ctx, event.NewPresenceAnnounced("access-control", "corr-1", routesOf))
		observer.Notify(ctx, event.NewPresenceAnnounced("access-control", "corr-2", routesOf))

		Expect(notified.received()).To(HaveLen(1))
		Expect(recorder.announcements[OutcomeUnchanged]).To(Equal(1))
	})

	It("skips invalid routes and keeps valid ones", func() {
		observer.Notify(ctx, event.NewPresenceAnnounced("access-control", "corr-1", []event.Attribute{
			{Name: "", Value: "orphan"},
			{Name: "TENANT_UPDATED", Value: "ac-stream-2"},
		}))

		Expect(routes.SupportedEventTypeNames()).To(Equal([]string{"TENANT_UPDATED"}))
		Expect(notified.received()).To(HaveLen(1))
	})

	It("drops events of an unexpected type", func() {
		observer.Notify(ctx, event.NewDomainEvent("TENANT_CREATED"))
		observer.Notify(ctx, nil)

		Expect(routes.RoutesCount()).To(BeZero())
		Expect(notified.received()).To(BeEmpty())
		Expect(recorder.announcements[OutcomeRejected]).To(Equal(2))
	})

	It("keeps merged routes when the notification fails", func() {
		adapter := &failingAdapter{}
		observer = newObserver(adapter)

		Expect(func() {
			observer.Notify(ctx, event.NewPresenceAnnounced("access-control", "corr-1", []event.Attribute{
				{Name: "TENANT_CREATED", Value: "ac-stream-1"},
			}))
		}).NotTo(Panic())

		Expect(adapter.calls).To(Equal(1))
		Expect(routes.RoutesCount()).To(Equal(1))
	})

	It("requests presence announces renewal", func() {
		Expect(observer.RequestPresenceAnnouncesRenewal(ctx)).To(Succeed())

		received := notified.received()
		Expect(received).To(HaveLen(1))
		Expect(received[0].Kind()).To(Equal(event.KindPresenceAnnounceRequested))
	})

	It("reports renewal failures", func() {
		observer = newObserver(&failingAdapter{})
		Expect(observer.RequestPresenceAnnouncesRenewal(ctx)).To(MatchError(errTransport))
	})

	It("validates its dependencies", func() {
		_, err := NewAnnouncesObserver(nil, memBus, mapping.NewFactory(), channel.New("a"), nil, "", zap.NewNop())
		Expect(err).To(HaveOccurred())

		_, err = NewAnnouncesObserver(routes, memBus, mapping.NewFactory(), channel.New(""), nil, "", zap.NewNop())
		Expect(err).To(HaveOccurred())
	})
})
