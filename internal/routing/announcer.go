package routing

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cybnity/internal/bus"
	"cybnity/internal/channel"
	"cybnity/internal/event"
	"cybnity/internal/fact"
	"cybnity/internal/mapping"
	"cybnity/internal/validator"
)

// PresenceAnnouncer is the RecipientsHandler of a processing unit. It
// publishes the unit routes to the announces channel and tracks which
// announcements the recipients manager confirmed.
type PresenceAnnouncer struct {
	serviceName string
	routes      []event.Attribute
	announces   channel.Channel
	adapter     bus.Adapter
	mappers     mapping.MapperFactory
	logger      *zap.Logger

	mu               sync.Mutex
	pending          *recentIDs
	acked            *recentIDs
	acknowledgements int
}

// trackedAnnouncements bounds how many pending and confirmed correlation ids
// a unit remembers. The oldest ones are forgotten first.
const trackedAnnouncements = 32

// recentIDs is a set of ids that evicts in insertion order past its limit.
type recentIDs struct {
	limit int
	order []string
	ids   map[string]struct{}
}

func newRecentIDs(limit int) *recentIDs {
	return &recentIDs{limit: limit, ids: make(map[string]struct{}, limit)}
}

func (r *recentIDs) add(id string) {
	if _, ok := r.ids[id]; ok {
		return
	}
	r.ids[id] = struct{}{}
	r.order = append(r.order, id)
	for len(r.order) > r.limit {
		delete(r.ids, r.order[0])
		r.order = r.order[1:]
	}
}

func (r *recentIDs) remove(id string) bool {
	if _, ok := r.ids[id]; !ok {
		return false
	}
	delete(r.ids, id)
	r.order = slices.DeleteFunc(r.order, func(o string) bool { return o == id })
	return true
}

func (r *recentIDs) has(id string) bool {
	_, ok := r.ids[id]
	return ok
}

func (r *recentIDs) len() int {
	return len(r.ids)
}

func NewPresenceAnnouncer(
	serviceName string,
	routes map[string]string,
	announces channel.Channel,
	adapter bus.Adapter,
	mappers mapping.MapperFactory,
	logger *zap.Logger,
) (*PresenceAnnouncer, error) {
	a := PresenceAnnouncer{
		serviceName: serviceName,
		announces:   announces,
		adapter:     adapter,
		mappers:     mappers,
		logger:      logger,
		pending:     newRecentIDs(trackedAnnouncements),
		acked:       newRecentIDs(trackedAnnouncements),
	}

	if err := validator.Validate("presence announcer", a.adapter, a.mappers, a.logger); err != nil {
		return nil, fmt.Errorf("failed to validate presence announcer deps: %w", err)
	}
	if err := validator.Mandatory("service name", a.serviceName); err != nil {
		return nil, err
	}
	if err := validator.Mandatory("announces channel name", a.announces.Name()); err != nil {
		return nil, err
	}

	for _, name := range slices.Sorted(maps.Keys(routes)) {
		if err := validator.Mandatory("event type name", name); err != nil {
			return nil, err
		}
		a.routes = append(a.routes, event.Attribute{Name: name, Value: routes[name]})
	}
	a.logger = a.logger.Named("presence-announcer").With(zap.String("service", a.serviceName))

	return &a, nil
}

// Announce publishes the unit routes under a new correlation id and returns it.
func (a *PresenceAnnouncer) Announce(ctx context.Context) (string, error) {
	correlationID := uuid.NewString()
	announced := event.NewPresenceAnnounced(a.serviceName, correlationID, a.routes)

	m, err := a.mappers.GetMapper(announced.Kind(), mapping.FormatJSON)
	if err != nil {
		return "", fmt.Errorf("failed to get mapper for %s: %w", announced.Kind(), err)
	}

	a.mu.Lock()
	a.pending.add(correlationID)
	a.mu.Unlock()

	if err := a.adapter.Publish(ctx, announced, []channel.Channel{a.announces}, m); err != nil {
		a.mu.Lock()
		a.pending.remove(correlationID)
		a.mu.Unlock()
		return "", fmt.Errorf("failed to announce presence: %w", err)
	}

	a.logger.Info("presence announced", zap.String("correlationId", correlationID), zap.Int("routes", len(a.routes)))

	return correlationID, nil
}

// AnnouncePresence implements RecipientsHandler.
func (a *PresenceAnnouncer) AnnouncePresence(ctx context.Context, origin fact.Event) error {
	if origin != nil {
		a.logger.Debug("presence renewal requested", zap.String("requestId", origin.ID().Value))
	}

	_, err := a.Announce(ctx)
	return err
}

// AcknowledgedRoutingPath implements RecipientsHandler. Confirmations of
// announcements made by other units are ignored.
func (a *PresenceAnnouncer) AcknowledgedRoutingPath(_ context.Context, evt *event.DomainEvent) {
	correlationID := evt.CorrelationID()

	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.pending.remove(correlationID) {
		return
	}
	a.acked.add(correlationID)
	a.acknowledgements++

	a.logger.Info("routing paths acknowledged", zap.String("correlationId", correlationID))
}

// Acknowledged reports whether the announcement correlationID was confirmed.
// Only the most recent confirmations are remembered.
func (a *PresenceAnnouncer) Acknowledged(correlationID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.acked.has(correlationID)
}

// Pending returns the number of announcements not confirmed yet.
func (a *PresenceAnnouncer) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending.len()
}

// Acknowledgements returns the number of announcements confirmed so far.
func (a *PresenceAnnouncer) Acknowledgements() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.acknowledgements
}
