// Package app composes the runtime shared by the cybnity commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/couchbase/gocb/v2"
	"go.uber.org/zap"

	"cybnity/internal/bus"
	"cybnity/internal/bus/consumer"
	"cybnity/internal/bus/controller"
	"cybnity/internal/bus/memory"
	"cybnity/internal/bus/producer"
	"cybnity/internal/config"
	"cybnity/internal/couchbase"
	"cybnity/internal/eventstore"
	"cybnity/internal/fact"
	"cybnity/internal/mapping"
	"cybnity/internal/metrics"
	"cybnity/internal/tracing"
)

// Version is reported by the system info metric.
var Version = "dev"

var newTracer = tracing.NewTracer

// Runtime holds the wired components of a process.
type Runtime struct {
	Config    config.Config
	Logger    *zap.Logger
	Registry  *metrics.Registry
	Server    *metrics.Server
	Tracer    *tracing.Tracer
	Mappers   *mapping.Factory
	Adapter   bus.Adapter
	Publisher *eventstore.Publisher
	Store     eventstore.Store

	consumer bus.Consumer
	closers  []func(context.Context) error
}

// New wires a runtime for cfg. Close releases what it opened.
func New(cfg config.Config, logger *zap.Logger) (*Runtime, error) {
	r := &Runtime{
		Config:   cfg,
		Logger:   logger,
		Registry: metrics.NewRegistry(),
		Mappers:  mapping.NewFactory(),
	}
	r.Registry.SetSystemInfo(cfg.ServiceName, Version)
	r.Server = metrics.NewServer(cfg.Metrics, r.Registry, logger)

	if err := r.wire(); err != nil {
		if cerr := r.release(context.Background()); cerr != nil {
			logger.Warn("failed to release partially wired runtime", zap.Error(cerr))
		}
		return nil, err
	}

	return r, nil
}

func (r *Runtime) wire() error {
	cfg, logger := r.Config, r.Logger

	tracer, cleanup, err := newTracer(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	r.Tracer = tracer
	r.closers = append(r.closers, cleanup)

	var (
		ctrl    bus.Controller
		journal eventstore.Journal
	)
	switch cfg.Transport {
	case config.TransportMemory:
		ctrl = memory.NewController()
	default:
		cluster, bucket, err := newCouchbase(cfg)
		if err != nil {
			return fmt.Errorf("failed to connect to Couchbase: %w", err)
		}
		r.closers = append(r.closers, func(context.Context) error { return cluster.Close(nil) })

		if ctrl, err = newCouchbaseController(cfg, cluster, bucket); err != nil {
			return err
		}
		facts, err := eventstore.NewFactsStore(cluster, bucket, cfg.CouchbaseScopeName)
		if err != nil {
			return fmt.Errorf("failed to create facts store: %w", err)
		}
		if journal, err = eventstore.NewCouchbaseJournal(facts); err != nil {
			return err
		}
	}

	ctrl = controller.NewTracedController(controller.NewMetricsController(ctrl, r.Registry), tracer)

	baseProducer, err := producer.NewProducer(ctrl)
	if err != nil {
		return fmt.Errorf("failed to create producer: %w", err)
	}
	r.Adapter = producer.NewTracedProducer(producer.NewMetricsProducer(baseProducer, r.Registry), tracer)

	mapper, err := r.Mappers.GetMapper(fact.KindAny, mapping.FormatJSON)
	if err != nil {
		return fmt.Errorf("failed to get consumer mapper: %w", err)
	}
	baseConsumer, err := consumer.NewConsumer(ctrl, mapper, logger, cfg.ConsumerBatchSize, cfg.ConsumerConcurrency)
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}
	r.consumer = consumer.NewTracedConsumer(consumer.NewMetricsConsumer(baseConsumer, r.Registry), tracer)

	if r.Publisher, err = eventstore.NewPublisher(logger, eventstore.WithPublisherRecorder(r.Registry)); err != nil {
		return fmt.Errorf("failed to create publisher: %w", err)
	}
	var opts []eventstore.Option
	if journal != nil {
		opts = append(opts, eventstore.WithJournal(journal))
	}
	store, err := eventstore.NewMemoryStore(r.Publisher, logger, opts...)
	if err != nil {
		return fmt.Errorf("failed to create event store: %w", err)
	}
	r.Store = eventstore.NewMetricsStore(store, r.Registry)

	return nil
}

// Listen consumes the observer's channel until ctx is done.
func (r *Runtime) Listen(ctx context.Context, observer bus.Observer) error {
	return consumer.Listen(ctx, r.consumer, r.Config.SubscriptionName(), observer, r.Config.PollInterval, r.Logger)
}

// Serve runs the metrics server until ctx is done.
func (r *Runtime) Serve(ctx context.Context) error {
	return r.Server.Start(ctx)
}

// Close releases the runtime resources in reverse order of creation.
func (r *Runtime) Close(ctx context.Context) error {
	r.Publisher.Close()

	return r.release(ctx)
}

func (r *Runtime) release(ctx context.Context) error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func newCouchbaseController(cfg config.Config, cluster *gocb.Cluster, bucket *gocb.Bucket) (bus.Controller, error) {
	stores, err := bus.NewStores(cluster, bucket, cfg.CouchbaseScopeName)
	if err != nil {
		return nil, fmt.Errorf("failed to create bus stores: %w", err)
	}

	transactions, err := couchbase.NewTransactions(cluster, cfg.CouchbaseTransactionTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactions: %w", err)
	}

	ctrl, err := controller.NewController(stores, transactions)
	if err != nil {
		return nil, fmt.Errorf("failed to create controller: %w", err)
	}

	return ctrl, nil
}

func newCouchbase(cfg config.Config) (*gocb.Cluster, *gocb.Bucket, error) {
	cluster, err := gocb.Connect(cfg.CouchbaseConnectionString, gocb.ClusterOptions{
		Authenticator: gocb.PasswordAuthenticator{
			Username: cfg.CouchbaseUsername,
			Password: cfg.CouchbasePassword,
		},
		TimeoutsConfig: gocb.TimeoutsConfig{
			ConnectTimeout: 10 * time.Second,
			KVTimeout:      5 * time.Second,
			QueryTimeout:   30 * time.Second,
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to cluster: %w", err)
	}

	bucket := cluster.Bucket(cfg.CouchbaseBucketName)

	err = bucket.WaitUntilReady(5*time.Second, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("bucket not ready: %w", err)
	}

	return cluster, bucket, nil
}
