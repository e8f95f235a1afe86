package eventstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/couchbase/gocb/v2"

	"cybnity/internal/couchbase"
	"cybnity/internal/fact"
	"cybnity/internal/validator"
)

// CouchbaseJournal stores committed records in the facts collection. Records
// are keyed by their uniqueness, so structurally equal facts are kept once.
type CouchbaseJournal struct {
	facts *couchbase.Store[fact.FactRecord]
}

func NewFactsStore(cluster *gocb.Cluster, bucket *gocb.Bucket, scope string) (*couchbase.Store[fact.FactRecord], error) {
	return couchbase.NewStore[fact.FactRecord](cluster, bucket, scope, "facts")
}

func NewCouchbaseJournal(facts *couchbase.Store[fact.FactRecord]) (*CouchbaseJournal, error) {
	if err := validator.Validate("couchbase journal", facts); err != nil {
		return nil, fmt.Errorf("failed to validate couchbase journal deps: %w", err)
	}

	return &CouchbaseJournal{facts: facts}, nil
}

// Record implements Journal.
func (j *CouchbaseJournal) Record(ctx context.Context, r *fact.FactRecord) error {
	err := j.facts.Insert(ctx, RecordKey(r), *r, nil)
	if err != nil && !errors.Is(err, gocb.ErrDocumentExists) {
		return err
	}

	return nil
}

// RecordKey is the document key of r.
func RecordKey(r *fact.FactRecord) string {
	return fmt.Sprintf("fact::%s::%s", r.Kind, r.BasedOn())
}
