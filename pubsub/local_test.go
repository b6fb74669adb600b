package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conclave-ai/conclave/events"
)

func waitForKinds(t *testing.T, rec *events.Recorder, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(rec.Kinds()) >= n
	}, time.Second, 5*time.Millisecond)
}

func TestLocalBroker(t *testing.T) {
	t.Run("publish reaches subscriber", func(t *testing.T) {
		ctx := context.Background()
		topic := Local().Topic(ctx, "runs")

		rec := &events.Recorder{}
		sub, err := topic.Subscribe(ctx, rec)
		require.NoError(t, err)
		defer sub.Unsubscribe()

		require.NoError(t, topic.Publish(ctx, events.OrchestratorStart{Orchestrator: "o"}))
		require.NoError(t, topic.Publish(ctx, events.OrchestratorEnd{Turns: 3}))

		waitForKinds(t, rec, 2)
		assert.Equal(t, []events.Kind{
			events.KindOrchestratorStart,
			events.KindOrchestratorEnd,
		}, rec.Kinds())
	})

	t.Run("same topic is shared", func(t *testing.T) {
		ctx := context.Background()
		broker := Local()
		assert.Same(t, broker.Topic(ctx, "a"), broker.Topic(ctx, "a"))
		assert.NotSame(t, broker.Topic(ctx, "a"), broker.Topic(ctx, "b"))
	})

	t.Run("fans out to every subscriber", func(t *testing.T) {
		ctx := context.Background()
		topic := Local().Topic(ctx, "runs")

		first := &events.Recorder{}
		second := &events.Recorder{}
		s1, err := topic.Subscribe(ctx, first)
		require.NoError(t, err)
		defer s1.Unsubscribe()
		s2, err := topic.Subscribe(ctx, second)
		require.NoError(t, err)
		defer s2.Unsubscribe()

		require.NoError(t, topic.Publish(ctx, events.ActorEndTurn{Actor: "a"}))

		waitForKinds(t, first, 1)
		waitForKinds(t, second, 1)
	})

	t.Run("unsubscribed hooks stop receiving", func(t *testing.T) {
		ctx := context.Background()
		topic := Local().Topic(ctx, "runs")

		rec := &events.Recorder{}
		sub, err := topic.Subscribe(ctx, rec)
		require.NoError(t, err)

		require.NoError(t, topic.Publish(ctx, events.ActorEndTurn{Actor: "a"}))
		waitForKinds(t, rec, 1)

		sub.Unsubscribe()
		// double unsubscribe is safe
		sub.Unsubscribe()

		require.NoError(t, topic.Publish(ctx, events.ActorEndTurn{Actor: "b"}))
		time.Sleep(20 * time.Millisecond)
		assert.Len(t, rec.Kinds(), 1)
	})

	t.Run("nil hook is rejected", func(t *testing.T) {
		ctx := context.Background()
		topic := Local().Topic(ctx, "runs")
		_, err := topic.Subscribe(ctx, nil)
		require.Error(t, err)
	})

	t.Run("cancelled subscriber context stops delivery", func(t *testing.T) {
		ctx := context.Background()
		topic := Local().Topic(ctx, "runs")

		subCtx, cancel := context.WithCancel(ctx)
		rec := &events.Recorder{}
		_, err := topic.Subscribe(subCtx, rec)
		require.NoError(t, err)

		cancel()
		require.NoError(t, topic.Publish(ctx, events.ActorEndTurn{Actor: "a"}))
		time.Sleep(20 * time.Millisecond)
		assert.Empty(t, rec.Kinds())
	})
}

func TestPublishHook(t *testing.T) {
	ctx := context.Background()
	topic := Local().Topic(ctx, "runs")

	rec := &events.Recorder{}
	sub, err := topic.Subscribe(ctx, rec)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	hook := PublishHook(topic)
	events.Dispatch(ctx, hook, events.OrchestratorStart{Orchestrator: "o"})
	events.Dispatch(ctx, hook, events.ToolCall{Sender: "a"})
	events.Dispatch(ctx, hook, events.OrchestratorEnd{Turns: 1})

	waitForKinds(t, rec, 3)
	assert.Equal(t, []events.Kind{
		events.KindOrchestratorStart,
		events.KindToolCall,
		events.KindOrchestratorEnd,
	}, rec.Kinds())
}
