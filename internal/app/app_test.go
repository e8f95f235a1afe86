package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cybnity/internal/config"
	"cybnity/internal/event"
	"cybnity/internal/eventstore"
	"cybnity/internal/tracing"
	"cybnity/internal/validator"
)

func memoryRuntime(t *testing.T, vars map[string]string) *Runtime {
	t.Helper()

	env := map[string]string{
		"BUS_TRANSPORT": config.TransportMemory,
		"POLL_INTERVAL": "5ms",
	}
	for k, v := range vars {
		env[k] = v
	}
	cfg, err := config.LoadFrom(env)
	require.NoError(t, err)

	rt, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, rt.Close(context.Background())) })

	return rt
}

func TestManagerAndUnitConverge(t *testing.T) {
	rt := memoryRuntime(t, map[string]string{
		"SERVICE_NAME": "access-control",
		"UNIT_ROUTES":  "TENANT_CREATED:ac-stream-1,TENANT_DELETED:ac-stream-2",
	})

	manager, err := NewRecipientsManager(rt)
	require.NoError(t, err)
	unit, err := NewProcessingUnit(rt)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 2)
	go func() { done <- manager.Run(ctx) }()
	go func() { done <- unit.Run(ctx) }()

	require.Eventually(t, func() bool {
		return manager.Routes.RoutesCount() == 2 && unit.Announcer.Acknowledgements() == 1
	}, 5*time.Second, 10*time.Millisecond)

	recipient, ok := manager.Routes.Recipient("TENANT_CREATED")
	require.True(t, ok)
	require.Equal(t, "ac-stream-1", recipient)

	cancel()
	for range 2 {
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("roles did not stop")
		}
	}
}

func TestJournaledAppendsReceivedEvents(t *testing.T) {
	rt := memoryRuntime(t, nil)
	manager, err := NewRecipientsManager(rt)
	require.NoError(t, err)

	announced := event.NewPresenceAnnounced("access-control", "corr-1", []event.Attribute{
		{Name: "TENANT_CREATED", Value: "ac-stream-1"},
	})
	Journaled(manager.Observer, rt.Store, zap.NewNop()).Notify(context.Background(), announced)

	record := rt.Store.FindEventFrom(announced.ID())
	require.NotNil(t, record)
	require.Equal(t, event.KindPresenceAnnounced, record.Kind)
	require.Equal(t, 1, manager.Routes.RoutesCount())
}

func TestCloseStopsPublisher(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{"BUS_TRANSPORT": config.TransportMemory})
	require.NoError(t, err)

	rt, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, rt.Close(context.Background()))

	_, err = rt.Publisher.Subscribe(eventstore.NewSubscriber("A", nil))
	require.ErrorIs(t, err, eventstore.ErrPublisherClosed)
}

func TestNewReleasesOpenedResourcesWhenWiringFails(t *testing.T) {
	released := false
	previous := newTracer
	newTracer = func(tracing.Config) (*tracing.Tracer, func(context.Context) error, error) {
		return tracing.NewNoopTracer(), func(context.Context) error {
			released = true
			return nil
		}, nil
	}
	t.Cleanup(func() { newTracer = previous })

	cfg, err := config.LoadFrom(map[string]string{"BUS_TRANSPORT": config.TransportMemory})
	require.NoError(t, err)
	cfg.ConsumerBatchSize = 0

	rt, err := New(cfg, zap.NewNop())
	require.ErrorIs(t, err, validator.ErrInvalidArgument)
	require.Nil(t, rt)
	require.True(t, released)
}
