package producer

import (
	"context"
	"errors"
	"testing"

	"github.com/couchbase/gocb/v2"
	"github.com/stretchr/testify/require"

	"cybnity/internal/bus"
	"cybnity/internal/bus/memory"
	"cybnity/internal/channel"
	"cybnity/internal/event"
	"cybnity/internal/fact"
	"cybnity/internal/mapping"
	"cybnity/internal/validator"
)

func jsonMapper(t *testing.T) mapping.Mapper {
	t.Helper()
	m, err := mapping.NewFactory().GetMapper(fact.KindAny, mapping.FormatJSON)
	require.NoError(t, err)
	return m
}

func TestPublishWritesEveryChannel(t *testing.T) {
	ctx := context.Background()
	ctrl := memory.NewController()
	p, err := NewProducer(ctrl)
	require.NoError(t, err)

	evt := event.NewDomainEvent(event.KindRoutingPathsRegistered)
	evt.Correlation = "corr-1"
	require.NoError(t, p.Publish(ctx, evt, channel.Channels("a", "b"), jsonMapper(t)))

	for _, topic := range []string{"a", "b"} {
		msgs, err := ctrl.LoadMessages(ctx, topic, 0, 10)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		require.Equal(t, string(event.KindRoutingPathsRegistered), msgs[0].Kind)
		require.Equal(t, "corr-1", msgs[0].CorrelationID)
		require.False(t, msgs[0].Durable)

		offset, err := ctrl.GetOffset(ctx, topic)
		require.NoError(t, err)
		require.Equal(t, uint64(1), offset)
	}
}

func TestAppendIsDurable(t *testing.T) {
	ctx := context.Background()
	ctrl := memory.NewController()
	p, err := NewProducer(ctrl)
	require.NoError(t, err)

	require.NoError(t, p.Append(ctx, event.NewDomainEvent("TENANT_CREATED"), channel.NewStream("ac-stream-1"), jsonMapper(t)))

	msgs, err := ctrl.LoadMessages(ctx, "ac-stream-1", 0, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.True(t, msgs[0].Durable)

	err = p.Append(ctx, event.NewDomainEvent("TENANT_CREATED"), channel.NewStream(""), jsonMapper(t))
	require.ErrorIs(t, err, validator.ErrInvalidArgument)
}

// racingController takes the offset a producer is about to write, once.
type racingController struct {
	*memory.Controller
	raced bool
}

func (c *racingController) InsertMessage(ctx context.Context, msg bus.Message) error {
	if !c.raced {
		c.raced = true
		other := msg
		other.Kind = "OTHER"
		if err := c.Controller.InsertMessage(ctx, other); err != nil {
			return err
		}
	}
	return c.Controller.InsertMessage(ctx, msg)
}

func TestPublishRetriesOnOffsetConflict(t *testing.T) {
	ctx := context.Background()
	ctrl := &racingController{Controller: memory.NewController()}
	p, err := NewProducer(ctrl)
	require.NoError(t, err)

	require.NoError(t, p.Publish(ctx, event.NewDomainEvent("A"), channel.Channels("t"), jsonMapper(t)))

	msgs, err := ctrl.LoadMessages(ctx, "t", 0, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, "OTHER", msgs[0].Kind)
	require.Equal(t, "A", msgs[1].Kind)
	require.Equal(t, uint64(1), msgs[1].Offset)
}

type failingController struct {
	*memory.Controller
}

func (c *failingController) InsertMessage(ctx context.Context, msg bus.Message) error {
	if msg.Topic == "broken" {
		return errors.New("boom")
	}
	return c.Controller.InsertMessage(ctx, msg)
}

func TestPublishJoinsChannelFailures(t *testing.T) {
	ctx := context.Background()
	ctrl := &failingController{Controller: memory.NewController()}
	p, err := NewProducer(ctrl)
	require.NoError(t, err)

	err = p.Publish(ctx, event.NewDomainEvent("A"), channel.Channels("broken", "ok"), jsonMapper(t))
	require.ErrorContains(t, err, "broken")
	require.NotErrorIs(t, err, gocb.ErrDocumentExists)

	msgs, err := ctrl.LoadMessages(ctx, "ok", 0, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
}

func TestPublishRequiresMapper(t *testing.T) {
	p, err := NewProducer(memory.NewController())
	require.NoError(t, err)

	err = p.Publish(context.Background(), event.NewDomainEvent("A"), channel.Channels("t"), nil)
	require.ErrorIs(t, err, validator.ErrInvalidArgument)
}
