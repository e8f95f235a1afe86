package routing

import (
	"fmt"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"cybnity/internal/validator"
)

var _ = Describe("RouteRecipientList", func() {
	var routes *RouteRecipientList

	BeforeEach(func() {
		routes = NewRouteRecipientList()
	})

	It("is idempotent for an identical route", func() {
		changed, err := routes.AddRoute("TENANT_CREATED", "ac-stream-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(changed).To(BeTrue())

		changed, err = routes.AddRoute("TENANT_CREATED", "ac-stream-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(changed).To(BeFalse())

		recipient, ok := routes.Recipient("TENANT_CREATED")
		Expect(ok).To(BeTrue())
		Expect(recipient).To(Equal("ac-stream-1"))
	})

	When("the recipient is empty", func() {
		It("removes an existing route", func() {
			_, err := routes.AddRoute("X", "p1")
			Expect(err).NotTo(HaveOccurred())

			changed, err := routes.AddRoute("X", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(changed).To(BeTrue())

			_, ok := routes.Recipient("X")
			Expect(ok).To(BeFalse())
			Expect(routes.RoutesCount()).To(BeZero())
		})

		It("does nothing for an unknown type", func() {
			changed, err := routes.AddRoute("Y", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(changed).To(BeFalse())
			Expect(routes.RoutesCount()).To(BeZero())
		})
	})

	It("detects a re-assignment", func() {
		changed, err := routes.AddRoute("X", "p1")
		Expect(err).NotTo(HaveOccurred())
		Expect(changed).To(BeTrue())

		changed, err = routes.AddRoute("X", "p2")
		Expect(err).NotTo(HaveOccurred())
		Expect(changed).To(BeTrue())

		recipient, _ := routes.Recipient("X")
		Expect(recipient).To(Equal("p2"))
	})

	It("rejects an empty type name", func() {
		changed, err := routes.AddRoute("", "p1")
		Expect(err).To(MatchError(validator.ErrInvalidArgument))
		Expect(changed).To(BeFalse())
	})

	It("misses unknown and empty type names", func() {
		_, ok := routes.Recipient("unknown")
		Expect(ok).To(BeFalse())
		_, ok = routes.Recipient("")
		Expect(ok).To(BeFalse())
	})

	It("counts only mapped type names", func() {
		ops := []struct{ name, recipient string }{
			{"A", "p1"}, {"B", "p2"}, {"A", "p3"}, {"C", ""}, {"B", ""}, {"D", "p4"}, {"D", "p4"},
		}
		for _, op := range ops {
			_, err := routes.AddRoute(op.name, op.recipient)
			Expect(err).NotTo(HaveOccurred())
		}

		Expect(routes.RoutesCount()).To(Equal(2))
		Expect(routes.SupportedEventTypeNames()).To(Equal([]string{"A", "D"}))
		Expect(routes.Routes()).To(Equal(map[string]string{"A": "p3", "D": "p4"}))
	})

	It("returns snapshots", func() {
		_, err := routes.AddRoute("A", "p1")
		Expect(err).NotTo(HaveOccurred())

		snapshot := routes.Routes()
		snapshot["B"] = "p2"
		names := routes.SupportedEventTypeNames()
		names[0] = "Z"

		Expect(routes.RoutesCount()).To(Equal(1))
		Expect(routes.SupportedEventTypeNames()).To(Equal([]string{"A"}))
	})

	It("supports concurrent announcers", func() {
		var wg sync.WaitGroup
		for unit := 0; unit < 8; unit++ {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				for i := 0; i < 50; i++ {
					_, err := routes.AddRoute(fmt.Sprintf("TYPE_%d", i), fmt.Sprintf("unit-%d", unit))
					Expect(err).NotTo(HaveOccurred())
					routes.Recipient(fmt.Sprintf("TYPE_%d", i))
				}
			}()
		}
		wg.Wait()

		Expect(routes.RoutesCount()).To(Equal(50))
	})
})
