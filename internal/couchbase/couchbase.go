// Package couchbase provides a typed document store and transaction helper on
// top of the Couchbase Go SDK.
package couchbase

import (
	"context"
	"errors"
	"fmt"

	"github.com/couchbase/gocb/v2"
)

// CasAware documents carry the CAS value of their last read or write.
type CasAware interface {
	GetCas() uint64
	SetCas(cas uint64)
}

// Cas can be embedded in documents that need optimistic concurrency control.
type Cas struct {
	c uint64
}

func (c *Cas) GetCas() uint64 {
	return c.c
}

func (c *Cas) SetCas(cas uint64) {
	c.c = cas
}

// Store is a typed view of one Couchbase collection.
type Store[T any] struct {
	cluster    *gocb.Cluster
	bucket     *gocb.Bucket
	collection *gocb.Collection
}

// NewStore creates a store for the collection named name in scope.
func NewStore[T any](cluster *gocb.Cluster, bucket *gocb.Bucket, scope, name string) (*Store[T], error) {
	if cluster == nil || bucket == nil {
		return nil, errors.New("invalid Couchbase parameters: cluster and bucket must not be nil")
	}
	if name == "" {
		return nil, errors.New("invalid Couchbase parameters: collection name must not be empty")
	}

	return &Store[T]{
		cluster:    cluster,
		bucket:     bucket,
		collection: bucket.Scope(scope).Collection(name),
	}, nil
}

// Insert creates a new document. Fails with gocb.ErrDocumentExists when the key is taken.
func (s *Store[T]) Insert(ctx context.Context, key string, value T, opts *gocb.InsertOptions) error {
	if opts == nil {
		opts = new(gocb.InsertOptions)
	}
	opts.Context = ctx

	if _, err := s.collection.Insert(key, value, opts); err != nil {
		return fmt.Errorf("failed to insert document with key %s: %w", key, err)
	}

	return nil
}

// Get loads the document stored under key.
func (s *Store[T]) Get(ctx context.Context, key string, opts *gocb.GetOptions) (*T, error) {
	if opts == nil {
		opts = new(gocb.GetOptions)
	}
	opts.Context = ctx

	res, err := s.collection.Get(key, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get document with key %s: %w", key, err)
	}

	var v T
	if err := res.Content(&v); err != nil {
		return nil, fmt.Errorf("failed to parse document content for key %s: %w", key, err)
	}

	if c, ok := any(&v).(CasAware); ok {
		c.SetCas(uint64(res.Cas()))
	}

	return &v, nil
}

// Remove deletes the document under key. Missing documents are not an error.
func (s *Store[T]) Remove(ctx context.Context, key string, opts *gocb.RemoveOptions) error {
	if opts == nil {
		opts = new(gocb.RemoveOptions)
	}
	opts.Context = ctx

	_, err := s.collection.Remove(key, opts)
	if err != nil && !errors.Is(err, gocb.ErrDocumentNotFound) {
		return fmt.Errorf("failed to remove document with key %s: %w", key, err)
	}

	return nil
}

// Query runs a SQL++ statement and decodes each row as T.
func (s *Store[T]) Query(ctx context.Context, statement string, opts *gocb.QueryOptions) ([]T, error) {
	if opts == nil {
		opts = new(gocb.QueryOptions)
	}
	opts.Context = ctx

	result, err := s.cluster.Query(statement, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer result.Close()

	var items []T
	for result.Next() {
		var item T
		if err := result.Row(&item); err != nil {
			return nil, fmt.Errorf("failed to parse query row: %w", err)
		}
		items = append(items, item)
	}

	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate query rows: %w", err)
	}

	return items, nil
}

// Keyspace is the fully qualified bucket.scope.collection name for queries.
func (s *Store[T]) Keyspace() string {
	return fmt.Sprintf("`%s`.`%s`.`%s`", s.bucket.Name(), s.collection.ScopeName(), s.collection.Name())
}

// Collection exposes the underlying collection, for transactions.
func (s *Store[T]) Collection() *gocb.Collection {
	return s.collection
}
