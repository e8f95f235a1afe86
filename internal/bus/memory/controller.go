// Package memory provides in-process transports: a bus.Controller backing the
// regular producer and consumer, and a synchronous bus.Adapter.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/couchbase/gocb/v2"

	"cybnity/internal/bus"
)

const leaseTimeout = time.Minute

// Controller keeps messages, offsets, cursors and leases in memory. It
// reports conflicts with the same gocb sentinels as the Couchbase controller.
type Controller struct {
	mu       sync.Mutex
	messages map[string]map[uint64]bus.Message
	offsets  map[string]uint64
	cursors  map[string]uint64
	leases   map[string]time.Time
	now      func() time.Time
}

func NewController() *Controller {
	return &Controller{
		messages: make(map[string]map[uint64]bus.Message),
		offsets:  make(map[string]uint64),
		cursors:  make(map[string]uint64),
		leases:   make(map[string]time.Time),
		now:      time.Now,
	}
}

func (c *Controller) GetCursor(_ context.Context, topic, sub string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursors[bus.CursorKey(topic, sub)], nil
}

func (c *Controller) CommitCursor(_ context.Context, topic, sub string, next uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := bus.CursorKey(topic, sub)
	if next > c.cursors[key] {
		c.cursors[key] = next
	}
	return nil
}

func (c *Controller) GetOffset(_ context.Context, topic string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offsets[bus.OffsetKey(topic)], nil
}

func (c *Controller) CommitOffset(_ context.Context, topic string, next uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := bus.OffsetKey(topic)
	if next > c.offsets[key] {
		c.offsets[key] = next
	}
	return nil
}

func (c *Controller) InsertLease(_ context.Context, sub, msgID string, _ uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := bus.LeaseKey(sub, msgID)
	now := c.now()
	if expires, ok := c.leases[key]; ok && now.Before(expires) {
		return gocb.ErrDocumentExists
	}
	c.leases[key] = now.Add(leaseTimeout)
	return nil
}

func (c *Controller) DeleteLease(_ context.Context, sub, msgID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.leases, bus.LeaseKey(sub, msgID))
	return nil
}

func (c *Controller) InsertMessage(_ context.Context, msg bus.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	topic, ok := c.messages[msg.Topic]
	if !ok {
		topic = make(map[uint64]bus.Message)
		c.messages[msg.Topic] = topic
	}
	if _, exists := topic[msg.Offset]; exists {
		return gocb.ErrDocumentExists
	}
	topic[msg.Offset] = msg
	return nil
}

func (c *Controller) LoadMessages(_ context.Context, topic string, from uint64, limit int) ([]bus.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	msgs := make([]bus.Message, 0, limit)
	for offset, msg := range c.messages[topic] {
		if offset >= from {
			msgs = append(msgs, msg)
		}
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].Offset < msgs[j].Offset })
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}

	return msgs, nil
}
