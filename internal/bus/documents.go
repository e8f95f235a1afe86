package bus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/couchbase/gocb/v2"

	"cybnity/internal/couchbase"
)

// Message is one encoded event stored at an offset of a topic. Topics are
// named after the channel or stream the event was sent to.
type Message struct {
	ID            string          `json:"id"`
	Topic         string          `json:"topic"`
	Offset        uint64          `json:"offset"`
	Kind          string          `json:"kind"`
	CorrelationID string          `json:"correlationId,omitempty"`
	Payload       json.RawMessage `json:"payload"`
	Durable       bool            `json:"durable"`
	PublishTime   *time.Time      `json:"publishTime,omitempty"`

	couchbase.Cas `json:"-"`
}

type Cursor struct {
	ID     string `json:"id"`
	Topic  string `json:"topic"`
	Sub    string `json:"sub"`
	Offset uint64 `json:"offset"`

	couchbase.Cas `json:"-"`
}

type Offset struct {
	ID string `json:"id"`
	N  uint64 `json:"n"`

	couchbase.Cas `json:"-"`
}

type Lease struct {
	ID        string    `json:"id"`
	Sub       string    `json:"sub"`
	MessageID string    `json:"messageID"`
	Offset    uint64    `json:"offset"`
	Expires   time.Time `json:"expires"`

	couchbase.Cas `json:"-"`
}

// Stores groups the collections backing the Couchbase bus.
type Stores struct {
	Messages *couchbase.Store[Message]
	Cursors  *couchbase.Store[Cursor]
	Offsets  *couchbase.Store[Offset]
	Leases   *couchbase.Store[Lease]
}

// NewStores opens the bus collections of scope.
func NewStores(cluster *gocb.Cluster, bucket *gocb.Bucket, scope string) (*Stores, error) {
	messages, err := couchbase.NewStore[Message](cluster, bucket, scope, "messages")
	if err != nil {
		return nil, fmt.Errorf("failed to open messages store: %w", err)
	}
	cursors, err := couchbase.NewStore[Cursor](cluster, bucket, scope, "cursors")
	if err != nil {
		return nil, fmt.Errorf("failed to open cursors store: %w", err)
	}
	offsets, err := couchbase.NewStore[Offset](cluster, bucket, scope, "offsets")
	if err != nil {
		return nil, fmt.Errorf("failed to open offsets store: %w", err)
	}
	leases, err := couchbase.NewStore[Lease](cluster, bucket, scope, "leases")
	if err != nil {
		return nil, fmt.Errorf("failed to open leases store: %w", err)
	}

	return &Stores{Messages: messages, Cursors: cursors, Offsets: offsets, Leases: leases}, nil
}

func MessageKey(topic string, offset uint64) string {
	return fmt.Sprintf("message::%s::%d", topic, offset)
}

func CursorKey(topic, sub string) string {
	return fmt.Sprintf("cursor::%s::%s", topic, sub)
}

func OffsetKey(topic string) string {
	return fmt.Sprintf("offset::%s", topic)
}

func LeaseKey(sub, msgID string) string {
	return fmt.Sprintf("lease::%s::%s", sub, msgID)
}
