package eventstore

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"cybnity/internal/event"
	"cybnity/internal/fact"
	"cybnity/internal/validator"
)

// KindRecordCommitted is published after every successful append.
const KindRecordCommitted fact.Kind = "EVENT_STORE_RECORD_COMMITTED"

// Store appends facts and finds them back by identifier.
type Store interface {
	Append(ctx context.Context, f fact.Fact) (*fact.FactRecord, error)
	AppendCausedBy(ctx context.Context, f fact.Fact, cause fact.Fact) (*fact.FactRecord, error)
	FindEventFrom(id fact.Identifier) *fact.FactRecord
}

// Journal durably keeps committed records next to the in-memory history.
type Journal interface {
	Record(ctx context.Context, r *fact.FactRecord) error
}

// RecordCommitted announces that Stored was appended, optionally because of
// the Origin command. It is delivered to subscribers of its own kind, of the
// stored fact kind and of domain events in general.
type RecordCommitted struct {
	Identifier fact.Identifier  `json:"id"`
	OccurredOn time.Time        `json:"occurredOn"`
	Origin     *fact.Reference  `json:"origin,omitempty"`
	Stored     *fact.FactRecord `json:"stored"`
}

func (e *RecordCommitted) ID() fact.Identifier { return e.Identifier }
func (e *RecordCommitted) Kind() fact.Kind { return KindRecordCommitted }
func (e *RecordCommitted) OccurredAt() time.Time { return e.OccurredOn }

func (e *RecordCommitted) CorrelationID() string {
	if evt, ok := e.Stored.Fact().(fact.Event); ok {
		return evt.CorrelationID()
	}
	return ""
}

func (e *RecordCommitted) Categories() []fact.Kind {
	return []fact.Kind{e.Stored.Kind, event.KindDomainEvent}
}

type Option func(*MemoryStore)

func WithJournal(j Journal) Option {
	return func(s *MemoryStore) {
		s.journal = j
	}
}

// WithClock overrides the clock stamping records.
func WithClock(now func() time.Time) Option {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// MemoryStore keeps every record in memory, in append order, indexed by kind.
// History is never compacted.
type MemoryStore struct {
	publisher *Publisher
	journal   Journal
	logger    *zap.Logger
	now       func() time.Time

	mu      sync.RWMutex
	records []*fact.FactRecord
	byKind  map[fact.Kind][]*fact.FactRecord
}

func NewMemoryStore(publisher *Publisher, logger *zap.Logger, opts ...Option) (*MemoryStore, error) {
	s := MemoryStore{
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
		byKind:    make(map[fact.Kind][]*fact.FactRecord),
	}

	if err := validator.Validate("memory store", s.publisher, s.logger); err != nil {
		return nil, fmt.Errorf("failed to validate memory store deps: %w", err)
	}
	for _, opt := range opts {
		opt(&s)
	}
	s.logger = s.logger.Named("event-store")

	return &s, nil
}

// Append records f and publishes a RecordCommitted event.
func (s *MemoryStore) Append(ctx context.Context, f fact.Fact) (*fact.FactRecord, error) {
	return s.append(ctx, f, nil)
}

// AppendCausedBy records f as the outcome of cause, usually a command.
func (s *MemoryStore) AppendCausedBy(ctx context.Context, f fact.Fact, cause fact.Fact) (*fact.FactRecord, error) {
	if cause == nil {
		return s.append(ctx, f, nil)
	}

	origin, err := fact.NewReference(cause)
	if err != nil {
		return nil, fmt.Errorf("failed to reference cause: %w", err)
	}

	return s.append(ctx, f, origin)
}

func (s *MemoryStore) append(ctx context.Context, f fact.Fact, origin *fact.Reference) (*fact.FactRecord, error) {
	if f == nil {
		return nil, fmt.Errorf("fact is required: %w", validator.ErrInvalidArgument)
	}

	recordedAt := s.now()
	record, err := fact.NewFactRecord(f, &recordedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create fact record: %w", err)
	}

	if s.journal != nil {
		if err := s.journal.Record(ctx, record); err != nil {
			return nil, fmt.Errorf("failed to journal fact record: %w", err)
		}
	}

	s.mu.Lock()
	s.records = append(s.records, record)
	s.byKind[record.Kind] = append(s.byKind[record.Kind], record)
	s.mu.Unlock()

	committed := &RecordCommitted{
		Identifier: event.NewIdentifier(),
		OccurredOn: recordedAt.UTC(),
		Origin:     origin,
		Stored:     record,
	}
	notified := s.publisher.Publish(ctx, committed)

	s.logger.Debug("fact appended",
		zap.String("kind", string(record.Kind)),
		zap.String("factId", record.FactID),
		zap.Int("notified", notified),
	)

	return record, nil
}

// FindEventFrom returns the most recent record of the fact identified by id,
// or nil.
func (s *MemoryStore) FindEventFrom(id fact.Identifier) *fact.FactRecord {
	if id.IsZero() {
		return nil
	}
	hash := id.Hash()

	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].FactID == hash {
			return s.records[i]
		}
	}

	return nil
}

// History returns the records of kind in append order.
func (s *MemoryStore) History(kind fact.Kind) []*fact.FactRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.byKind[kind])
}

// Count returns the number of records appended.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
