package conclave

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conclave-ai/conclave/events"
	"github.com/conclave-ai/conclave/provider/scripted"
)

func TestReplay(t *testing.T) {
	type weather struct {
		Temp float64 `json:"temp"`
	}

	recordRun := func(t *testing.T) []events.Event {
		t.Helper()
		ok := NewTask[weather]("Report the weather", WithTaskID("t1"))
		bad := NewTask[string]("Impossible", WithTaskID("t2"))
		ag := scriptedAgent("worker",
			scripted.ToolCall("call_1", toolMarkTaskSuccessful, `{"task_id":"t1","result":"{\"temp\":21.5}"}`),
			scripted.ToolCall("call_2", toolMarkTaskFailed, `{"task_id":"t2","error":"cannot"}`),
		)
		rec := &events.Recorder{}
		o := New(Actors(ag), WithHook(rec))
		require.NoError(t, o.Run(context.Background(), ok, bad))
		return rec.Events()
	}

	t.Run("reconstructs terminal states", func(t *testing.T) {
		log := recordRun(t)

		ok := NewTask[weather]("Report the weather", WithTaskID("t1"))
		bad := NewTask[string]("Impossible", WithTaskID("t2"))
		require.NoError(t, Replay(log, ok, bad))

		assert.Equal(t, TaskSuccessful, ok.Status())
		result, err := ResultOf[weather](ok)
		require.NoError(t, err)
		assert.InDelta(t, 21.5, result.Temp, 0.001)

		assert.Equal(t, TaskFailed, bad.Status())
		assert.Equal(t, "cannot", bad.FailureReason())
	})

	t.Run("replaying twice is a no-op", func(t *testing.T) {
		log := recordRun(t)

		task := NewTask[weather]("Report the weather", WithTaskID("t1"))
		other := NewTask[string]("Impossible", WithTaskID("t2"))
		require.NoError(t, Replay(log, task, other))
		first := task.Result().Raw

		require.NoError(t, Replay(log, task, other))
		assert.Equal(t, TaskSuccessful, task.Status())
		assert.Equal(t, first, task.Result().Raw)
	})

	t.Run("unknown task", func(t *testing.T) {
		log := recordRun(t)
		only := NewTask[weather]("Report the weather", WithTaskID("t1"))
		assert.Error(t, Replay(log, only))
	})

	t.Run("skips statusless results", func(t *testing.T) {
		log := []events.Event{
			events.EndTurnToolResult{ToolName: toolPostMessage, Content: "message posted"},
		}
		task := NewTask[string]("Untouched", WithTaskID("t1"))
		require.NoError(t, Replay(log, task))
		assert.Equal(t, TaskPending, task.Status())
	})

	t.Run("survives serialization round trip", func(t *testing.T) {
		log := recordRun(t)

		restored := make([]events.Event, 0, len(log))
		for _, ev := range log {
			data, err := events.Encode(ev)
			require.NoError(t, err)
			back, err := events.Decode(data)
			require.NoError(t, err)
			restored = append(restored, back)
		}

		task := NewTask[weather]("Report the weather", WithTaskID("t1"))
		other := NewTask[string]("Impossible", WithTaskID("t2"))
		require.NoError(t, Replay(restored, task, other))
		assert.Equal(t, TaskSuccessful, task.Status())
		assert.Equal(t, TaskFailed, other.Status())
	})
}
