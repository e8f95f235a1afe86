package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/couchbase/gocb/v2"

	"cybnity/internal/bus"
	"cybnity/internal/couchbase"
	"cybnity/internal/validator"
)

const (
	leaseTimeout = time.Minute

	// channel messages only serve live observers, streams are kept longer
	channelRetention = time.Hour
	streamRetention  = 7 * 24 * time.Hour
)

// Controller implements bus.Controller on Couchbase collections, using
// distributed transactions for cursor and offset updates.
type Controller struct {
	stores       *bus.Stores
	transactions *couchbase.Transactions
}

func NewController(stores *bus.Stores, transactions *couchbase.Transactions) (*Controller, error) {
	c := Controller{
		stores:       stores,
		transactions: transactions,
	}

	if err := validator.Validate("controller", c.stores, c.transactions); err != nil {
		return nil, fmt.Errorf("failed to validate controller dependencies: %w", err)
	}
	if err := validator.Validate("controller stores", stores.Messages, stores.Cursors, stores.Offsets, stores.Leases); err != nil {
		return nil, fmt.Errorf("failed to validate controller stores: %w", err)
	}

	return &c, nil
}

// GetCursor implements bus.Controller.GetCursor.
func (c *Controller) GetCursor(ctx context.Context, topic, sub string) (uint64, error) {
	cur, err := c.stores.Cursors.Get(ctx, bus.CursorKey(topic, sub), nil)
	switch {
	case err == nil:
		return cur.Offset, nil
	case errors.Is(err, gocb.ErrDocumentNotFound):
		return 0, nil
	default:
		return 0, fmt.Errorf("failed to get cursor: %w", err)
	}
}

// CommitCursor implements bus.Controller.CommitCursor.
func (c *Controller) CommitCursor(ctx context.Context, topic, sub string, next uint64) error {
	key := bus.CursorKey(topic, sub)

	err := c.advance(c.stores.Cursors, key, next, func() any {
		return bus.Cursor{ID: key, Topic: topic, Sub: sub, Offset: next}
	}, func(res *gocb.TransactionGetResult) (any, bool, error) {
		var cursor bus.Cursor
		if err := res.Content(&cursor); err != nil {
			return nil, false, fmt.Errorf("failed to decode cursor: %w", err)
		}
		if next <= cursor.Offset {
			return nil, false, nil
		}
		cursor.Offset = next
		return cursor, true, nil
	})
	if err != nil {
		return fmt.Errorf("failed to commit cursor for topic %s sub %s: %w", topic, sub, err)
	}

	return nil
}

// GetOffset implements bus.Controller.GetOffset.
func (c *Controller) GetOffset(ctx context.Context, topic string) (uint64, error) {
	offset, err := c.stores.Offsets.Get(ctx, bus.OffsetKey(topic), nil)
	switch {
	case err == nil:
		return offset.N, nil
	case errors.Is(err, gocb.ErrDocumentNotFound):
		return 0, nil
	default:
		return 0, fmt.Errorf("failed to get offset: %w", err)
	}
}

// CommitOffset implements bus.Controller.CommitOffset.
func (c *Controller) CommitOffset(ctx context.Context, topic string, next uint64) error {
	key := bus.OffsetKey(topic)

	err := c.advance(c.stores.Offsets, key, next, func() any {
		return bus.Offset{ID: key, N: next}
	}, func(res *gocb.TransactionGetResult) (any, bool, error) {
		var existing bus.Offset
		if err := res.Content(&existing); err != nil {
			return nil, false, fmt.Errorf("failed to decode offset: %w", err)
		}
		if next <= existing.N {
			return nil, false, nil
		}
		existing.N = next
		return existing, true, nil
	})
	if err != nil {
		return fmt.Errorf("failed to commit offset for topic %s: %w", topic, err)
	}

	return nil
}

// advance inserts the document under key, or replaces it when update reports a
// forward move. A concurrent insert of the same key is retried as an update.
func (c *Controller) advance(
	tc couchbase.TransactionCollection,
	key string,
	next uint64,
	create func() any,
	update func(res *gocb.TransactionGetResult) (any, bool, error),
) error {
	_, err := c.transactions.Run(func(r couchbase.TransactionRunner) error {
		for {
			res, err := r.Get(tc, key)
			switch {
			case err == nil:
			case errors.Is(err, gocb.ErrDocumentNotFound):
				_, err := r.Insert(tc, key, create())
				switch {
				case err == nil:
					return nil
				case errors.Is(err, gocb.ErrDocumentExists):
					continue
				default:
					return fmt.Errorf("failed to insert %s at %d: %w", key, next, err)
				}
			default:
				return fmt.Errorf("failed to get %s: %w", key, err)
			}

			doc, changed, err := update(res)
			if err != nil || !changed {
				return err
			}
			if _, err := r.Replace(res, doc); err != nil {
				return fmt.Errorf("failed to replace %s: %w", key, err)
			}

			return nil
		}
	})

	return err
}

// InsertLease implements bus.Controller.InsertLease.
func (c *Controller) InsertLease(ctx context.Context, sub, msgID string, offset uint64) error {
	key := bus.LeaseKey(sub, msgID)

	lease := bus.Lease{
		ID:        key,
		Sub:       sub,
		MessageID: msgID,
		Offset:    offset,
		Expires:   time.Now().UTC().Add(leaseTimeout),
	}

	if err := c.stores.Leases.Insert(ctx, key, lease, &gocb.InsertOptions{Expiry: leaseTimeout}); err != nil {
		return fmt.Errorf("failed to insert lease: %w", err)
	}

	return nil
}

// DeleteLease implements bus.Controller.DeleteLease.
func (c *Controller) DeleteLease(ctx context.Context, sub, msgID string) error {
	if err := c.stores.Leases.Remove(ctx, bus.LeaseKey(sub, msgID), nil); err != nil {
		return fmt.Errorf("failed to delete lease: %w", err)
	}

	return nil
}

// InsertMessage implements bus.Controller.InsertMessage.
func (c *Controller) InsertMessage(ctx context.Context, msg bus.Message) error {
	retention := channelRetention
	if msg.Durable {
		retention = streamRetention
	}

	if err := c.stores.Messages.Insert(ctx, msg.ID, msg, &gocb.InsertOptions{Expiry: retention}); err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	return nil
}

// LoadMessages implements bus.Controller.LoadMessages.
func (c *Controller) LoadMessages(ctx context.Context, topic string, from uint64, limit int) ([]bus.Message, error) {
	statement := fmt.Sprintf(
		"SELECT RAW m FROM %s m WHERE m.topic = $topic AND m.`offset` >= $from ORDER BY m.`offset` ASC LIMIT $limit",
		c.stores.Messages.Keyspace(),
	)

	messages, err := c.stores.Messages.Query(ctx, statement, &gocb.QueryOptions{
		NamedParameters: map[string]interface{}{
			"topic": topic,
			"from":  from,
			"limit": limit,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}

	return messages, nil
}
