// Package eventstore keeps the append-only history of facts and notifies
// subscribers of every committed record.
package eventstore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"cybnity/internal/fact"
	"cybnity/internal/validator"
)

var ErrPublisherClosed = errors.New("publisher closed")

// Subscriber handles the events matching the kind it is interested in. See
// fact.Matches for the matching rules.
type Subscriber interface {
	Interest() fact.Kind
	Handle(ctx context.Context, evt fact.Event) error
}

type subscriberFunc struct {
	interest fact.Kind
	handle   func(ctx context.Context, evt fact.Event) error
}

func (s subscriberFunc) Interest() fact.Kind { return s.interest }

func (s subscriberFunc) Handle(ctx context.Context, evt fact.Event) error { return s.handle(ctx, evt) }

// NewSubscriber adapts handle into a Subscriber of interest.
func NewSubscriber(interest fact.Kind, handle func(ctx context.Context, evt fact.Event) error) Subscriber {
	return subscriberFunc{interest: interest, handle: handle}
}

type SubscriptionID uint64

// PublisherRecorder receives fan-out measurements. *metrics.Registry satisfies it.
type PublisherRecorder interface {
	RecordNotifications(kind string, notified int)
	SetSubscribers(n int)
}

type noopPublisherRecorder struct{}

func (noopPublisherRecorder) RecordNotifications(string, int) {}
func (noopPublisherRecorder) SetSubscribers(int) {}

type PublisherOption func(*Publisher)

func WithPublisherRecorder(r PublisherRecorder) PublisherOption {
	return func(p *Publisher) {
		if r != nil {
			p.recorder = r
		}
	}
}

type subscription struct {
	id         SubscriptionID
	subscriber Subscriber
}

// Publisher delivers events synchronously to its subscribers, in
// registration order. The subscriber list is copied on write, so a publication
// in progress is not affected by concurrent Subscribe or Remove calls.
type Publisher struct {
	logger   *zap.Logger
	recorder PublisherRecorder

	mu            sync.RWMutex
	subscriptions []subscription
	nextID        SubscriptionID
	closed        bool
}

func NewPublisher(logger *zap.Logger, opts ...PublisherOption) (*Publisher, error) {
	if err := validator.Validate("publisher", logger); err != nil {
		return nil, fmt.Errorf("failed to validate publisher deps: %w", err)
	}

	p := Publisher{
		logger:   logger.Named("publisher"),
		recorder: noopPublisherRecorder{},
	}
	for _, opt := range opts {
		opt(&p)
	}

	return &p, nil
}

// Subscribe registers s and returns the id to remove it with.
func (p *Publisher) Subscribe(s Subscriber) (SubscriptionID, error) {
	if err := validator.Validate("subscriber", s); err != nil {
		return 0, err
	}
	if s.Interest() == "" {
		return 0, fmt.Errorf("subscriber interest is required: %w", validator.ErrInvalidArgument)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, ErrPublisherClosed
	}

	p.nextID++
	subs := make([]subscription, len(p.subscriptions), len(p.subscriptions)+1)
	copy(subs, p.subscriptions)
	p.subscriptions = append(subs, subscription{id: p.nextID, subscriber: s})
	p.recorder.SetSubscribers(len(p.subscriptions))

	return p.nextID, nil
}

// Remove unregisters the subscription id and reports whether it existed.
func (p *Publisher) Remove(id SubscriptionID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	i := slices.IndexFunc(p.subscriptions, func(s subscription) bool { return s.id == id })
	if i < 0 {
		return false
	}

	p.subscriptions = slices.Delete(slices.Clone(p.subscriptions), i, i+1)
	p.recorder.SetSubscribers(len(p.subscriptions))

	return true
}

// Publish hands evt to every interested subscriber and returns how many were
// notified. Subscriber errors are logged and do not stop the fan-out.
func (p *Publisher) Publish(ctx context.Context, evt fact.Event) int {
	if evt == nil {
		return 0
	}

	p.mu.RLock()
	subs := p.subscriptions
	p.mu.RUnlock()

	notified := 0
	for _, s := range subs {
		if !fact.Matches(s.subscriber.Interest(), evt) {
			continue
		}

		notified++
		if err := s.subscriber.Handle(ctx, evt); err != nil {
			p.logger.Error("subscriber failed to handle event",
				zap.Uint64("subscription", uint64(s.id)),
				zap.String("kind", string(evt.Kind())),
				zap.Error(err),
			)
		}
	}

	p.recorder.RecordNotifications(string(evt.Kind()), notified)

	return notified
}

// Subscribers returns the number of registered subscribers.
func (p *Publisher) Subscribers() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subscriptions)
}

// Close drops every subscriber. Later publications notify nobody and
// subscriptions fail with ErrPublisherClosed.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	p.subscriptions = nil
	p.recorder.SetSubscribers(0)
}
