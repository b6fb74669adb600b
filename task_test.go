package conclave

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/conclave-ai/conclave/tool"
	"github.com/conclave-ai/conclave/types"
)

func TestNewTask(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		task := NewTask[string]("do the thing")
		assert.NotEmpty(t, task.ID())
		assert.Equal(t, "do the thing", task.Instructions())
		assert.Equal(t, TaskPending, task.Status())
		assert.Zero(t, task.Attempts())
		assert.Nil(t, task.Schema())
	})

	t.Run("options", func(t *testing.T) {
		echo := tool.Must(func(s string) string { return s }, tool.Name("echo"))
		task := NewTask[string]("do it",
			WithTaskID("t1"),
			AssignedTo("worker"),
			DependsOn("t0"),
			WithTaskContext(types.ContextVars{"k": "v"}),
			WithTaskTools(echo),
		)
		assert.Equal(t, "t1", task.ID())
		assert.Equal(t, "worker", task.AssignedTo())
		assert.Equal(t, []string{"t0"}, task.DependsOn())
		assert.Equal(t, "v", task.Context()["k"])
		require.Len(t, task.Tools(), 1)
		assert.Equal(t, "echo", task.Tools()[0].Name)
	})

	t.Run("typed result derives a schema", func(t *testing.T) {
		type report struct {
			Score int `json:"score"`
		}
		task := NewTask[report]("score it")
		require.NotNil(t, task.Schema())
	})

	t.Run("pointer result is nullable", func(t *testing.T) {
		task := NewTask[*string]("maybe answer")
		assert.True(t, task.nullable)
	})
}

func TestTaskStateMachine(t *testing.T) {
	t.Run("pending to running", func(t *testing.T) {
		task := NewTask[string]("work")
		task.markRunning()
		assert.Equal(t, TaskRunning, task.Status())
		// re-entrant
		task.markRunning()
		assert.Equal(t, TaskRunning, task.Status())
	})

	t.Run("successful is absorbing", func(t *testing.T) {
		task := NewTask[string]("work")
		task.markRunning()
		require.NoError(t, task.markSuccessful(gjson.Parse(`"done"`)))
		assert.Equal(t, TaskSuccessful, task.Status())

		assert.Error(t, task.markFailed("too late"))
		assert.Error(t, task.markSuccessful(gjson.Parse(`"again"`)))
		assert.Equal(t, TaskSuccessful, task.Status())
	})

	t.Run("failed is absorbing", func(t *testing.T) {
		task := NewTask[string]("work")
		task.markRunning()
		require.NoError(t, task.markFailed("cannot"))
		assert.Equal(t, TaskFailed, task.Status())
		assert.Equal(t, "cannot", task.FailureReason())

		assert.Error(t, task.markSuccessful(gjson.Parse(`"nope"`)))
		assert.Equal(t, TaskFailed, task.Status())
	})

	t.Run("terminal predicate", func(t *testing.T) {
		assert.False(t, TaskPending.Terminal())
		assert.False(t, TaskRunning.Terminal())
		assert.True(t, TaskSuccessful.Terminal())
		assert.True(t, TaskFailed.Terminal())
	})
}

func TestTaskValidation(t *testing.T) {
	type report struct {
		Score int `json:"score"`
	}

	t.Run("rejection keeps running and notes once", func(t *testing.T) {
		task := NewTask[report]("score it")
		task.markRunning()

		err := task.markSuccessful(gjson.Parse(`{"score":"high"}`))
		require.Error(t, err)
		assert.Equal(t, TaskRunning, task.Status())
		assert.Equal(t, 1, task.Attempts())

		notices, ok := task.Context()["validation_notices"].([]string)
		require.True(t, ok)
		assert.Len(t, notices, 1)
	})

	t.Run("notices accumulate per attempt", func(t *testing.T) {
		task := NewTask[report]("score it")
		task.markRunning()
		require.Error(t, task.markSuccessful(gjson.Parse(`{"score":"a"}`)))
		require.Error(t, task.markSuccessful(gjson.Parse(`{}`)))

		notices := task.Context()["validation_notices"].([]string)
		assert.Len(t, notices, 2)
		assert.Equal(t, 2, task.Attempts())
	})

	t.Run("nil context still records the notice", func(t *testing.T) {
		task := NewTask[report]("score it", WithTaskContext(nil))
		task.markRunning()

		require.Error(t, task.markSuccessful(gjson.Parse(`{"score":"high"}`)))
		notices, ok := task.Context()["validation_notices"].([]string)
		require.True(t, ok)
		assert.Len(t, notices, 1)
	})

	t.Run("null rejected when not nullable", func(t *testing.T) {
		task := NewTask[report]("score it")
		task.markRunning()
		require.Error(t, task.markSuccessful(gjson.Parse(`null`)))
		assert.Equal(t, TaskRunning, task.Status())
	})

	t.Run("null accepted when nullable", func(t *testing.T) {
		task := NewTask[*report]("maybe score it")
		task.markRunning()
		require.NoError(t, task.markSuccessful(gjson.Parse(`null`)))
		assert.Equal(t, TaskSuccessful, task.Status())

		result, err := ResultOf[*report](task)
		require.NoError(t, err)
		assert.Nil(t, result)
	})
}

func TestTaskCoerce(t *testing.T) {
	t.Run("string tasks keep text verbatim", func(t *testing.T) {
		task := NewTask[string]("say")
		got := task.coerce(`{"not":"parsed"}`)
		assert.Equal(t, gjson.String, got.Type)
		assert.Equal(t, `{"not":"parsed"}`, got.String())
	})

	t.Run("valid JSON parses", func(t *testing.T) {
		type out struct {
			N int `json:"n"`
		}
		task := NewTask[out]("count")
		got := task.coerce(`{"n":3}`)
		assert.True(t, got.IsObject())
	})

	t.Run("bare text gets quoted", func(t *testing.T) {
		task := NewTask[gjson.Result]("anything")
		got := task.coerce(`plain words`)
		assert.Equal(t, gjson.String, got.Type)
		assert.Equal(t, "plain words", got.String())
	})
}

func TestTaskEligibility(t *testing.T) {
	t1 := NewTask[string]("first", WithTaskID("t1"))
	t2 := NewTask[string]("second", WithTaskID("t2"), DependsOn("t1"))
	t3 := NewTask[string]("third", WithTaskID("t3"), DependsOn("missing"))
	byID := map[string]*Task{"t1": t1, "t2": t2, "t3": t3}

	assert.True(t, t1.eligible(byID))
	assert.False(t, t2.eligible(byID))
	assert.False(t, t3.eligible(byID))

	t1.markRunning()
	require.NoError(t, t1.markSuccessful(gjson.Parse(`"done"`)))
	assert.True(t, t2.eligible(byID))
}

func TestTaskRestore(t *testing.T) {
	type report struct {
		Score int `json:"score"`
	}

	task := NewTask[report]("score it")
	// restore bypasses validation on purpose
	task.restore(TaskSuccessful, gjson.Parse(`{"score":"recorded"}`), "")
	assert.Equal(t, TaskSuccessful, task.Status())
	assert.Equal(t, "recorded", task.Result().Get("score").String())
}

func TestResultOf(t *testing.T) {
	t.Run("fails on non-terminal task", func(t *testing.T) {
		task := NewTask[string]("pending")
		_, err := ResultOf[string](task)
		require.Error(t, err)
	})

	t.Run("fails on failed task", func(t *testing.T) {
		task := NewTask[string]("doomed")
		task.markRunning()
		require.NoError(t, task.markFailed("no"))
		_, err := ResultOf[string](task)
		require.Error(t, err)
	})

	t.Run("decodes typed result", func(t *testing.T) {
		type report struct {
			Score int `json:"score"`
		}
		task := NewTask[report]("score it")
		task.markRunning()
		require.NoError(t, task.markSuccessful(gjson.Parse(`{"score":7}`)))

		got, err := ResultOf[report](task)
		require.NoError(t, err)
		assert.Equal(t, 7, got.Score)
	})

	t.Run("decodes raw result", func(t *testing.T) {
		task := NewTask[gjson.Result]("anything")
		task.markRunning()
		require.NoError(t, task.markSuccessful(gjson.Parse(`[1,2]`)))

		got, err := ResultOf[gjson.Result](task)
		require.NoError(t, err)
		assert.True(t, got.IsArray())
	})
}
