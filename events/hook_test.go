package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conclave-ai/conclave/pkg/uuidx"
)

func TestRecorderKeepsOrder(t *testing.T) {
	var rec Recorder
	ctx := context.Background()
	runID := uuidx.New()
	turnID := uuidx.New()

	Dispatch(ctx, &rec, OrchestratorStart{RunID: runID})
	Dispatch(ctx, &rec, ActorStartTurn{RunID: runID, TurnID: turnID, Actor: "solo"})
	Dispatch(ctx, &rec, ActorEndTurn{RunID: runID, TurnID: turnID, Actor: "solo"})
	Dispatch(ctx, &rec, OrchestratorEnd{RunID: runID, Turns: 1})

	assert.Equal(t, []Kind{
		KindOrchestratorStart,
		KindActorStartTurn,
		KindActorEndTurn,
		KindOrchestratorEnd,
	}, rec.Kinds())

	evts := rec.Events()
	require.Len(t, evts, 4)
	assert.Equal(t, "solo", evts[1].(ActorStartTurn).Actor)
}

func TestFanoutReachesEveryHook(t *testing.T) {
	var a, b Recorder
	hook := Fanout(&a, &b, NoopHook{})

	Dispatch(context.Background(), hook, ToolCall{RunID: uuidx.New(), TurnID: uuidx.New()})

	assert.Equal(t, []Kind{KindToolCall}, a.Kinds())
	assert.Equal(t, []Kind{KindToolCall}, b.Kinds())
}

func TestDispatchCoversEveryKind(t *testing.T) {
	var rec Recorder
	ctx := context.Background()

	all := []Event{
		OrchestratorStart{}, OrchestratorEnd{}, OrchestratorException{},
		ActorStartTurn{}, ActorEndTurn{},
		UserMessage{}, AgentMessage{},
		ToolCallDelta{}, ToolCall{}, ToolResult{}, ToolRetry{},
		EndTurnToolCall{}, EndTurnToolResult{},
	}
	for _, e := range all {
		Dispatch(ctx, &rec, e)
	}
	assert.Len(t, rec.Events(), len(all))
}
