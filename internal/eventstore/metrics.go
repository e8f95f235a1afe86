package eventstore

import (
	"context"

	"cybnity/internal/fact"
	"cybnity/internal/metrics"
)

// MetricsStore wraps a Store with metrics collection
type MetricsStore struct {
	store    Store
	registry *metrics.Registry
}

// NewMetricsStore creates a new instrumented store
func NewMetricsStore(store Store, registry *metrics.Registry) Store {
	return &MetricsStore{
		store:    store,
		registry: registry,
	}
}

func (s *MetricsStore) Append(ctx context.Context, f fact.Fact) (*fact.FactRecord, error) {
	r, err := s.store.Append(ctx, f)
	s.registry.RecordFactAppended(kindOf(f), err)
	return r, err
}

func (s *MetricsStore) AppendCausedBy(ctx context.Context, f fact.Fact, cause fact.Fact) (*fact.FactRecord, error) {
	r, err := s.store.AppendCausedBy(ctx, f, cause)
	s.registry.RecordFactAppended(kindOf(f), err)
	return r, err
}

func (s *MetricsStore) FindEventFrom(id fact.Identifier) *fact.FactRecord {
	return s.store.FindEventFrom(id)
}

func kindOf(f fact.Fact) string {
	if f == nil {
		return ""
	}
	return string(f.Kind())
}
