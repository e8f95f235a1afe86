package routing

import (
	"context"
	"errors"
	"sync"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"cybnity/internal/channel"
	"cybnity/internal/fact"
	"cybnity/internal/mapping"
)

func TestRouting(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Routing Suite")
}

// collector observes a channel and keeps what it receives.
type collector struct {
	ch channel.Channel

	mu     sync.Mutex
	events []fact.Event
}

func newCollector(name string) *collector {
	return &collector{ch: channel.New(name)}
}

func (c *collector) ObservedChannel() channel.Channel { return c.ch }

func (c *collector) Notify(_ context.Context, evt fact.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
}

func (c *collector) received() []fact.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]fact.Event(nil), c.events...)
}

var errTransport = errors.New("transport down")

// failingAdapter rejects every publication.
type failingAdapter struct {
	calls int
}

func (a *failingAdapter) Publish(context.Context, fact.Event, []channel.Channel, mapping.Mapper) error {
	a.calls++
	return errTransport
}

func (a *failingAdapter) Append(context.Context, fact.Event, channel.Stream, mapping.Mapper) error {
	a.calls++
	return errTransport
}

type countingRecorder struct {
	changes       map[string]int
	announcements map[string]int
	routes        int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{changes: map[string]int{}, announcements: map[string]int{}}
}

func (r *countingRecorder) RecordRouteChange(op string) { r.changes[op]++ }
func (r *countingRecorder) SetRoutesCount(n int) { r.routes = n }
func (r *countingRecorder) RecordAnnouncement(outcome string) { r.announcements[outcome]++ }
