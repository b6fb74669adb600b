package conclave

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/conclave-ai/conclave/provider/scripted"
)

func TestFuture(t *testing.T) {
	t.Run("complete then get", func(t *testing.T) {
		fut := NewFuture(DefaultUnmarshal[string]())
		fut.Complete(`"hello"`)

		got, err := fut.Get()
		require.NoError(t, err)
		assert.Equal(t, `"hello"`, got)
	})

	t.Run("error then get", func(t *testing.T) {
		boom := errors.New("boom")
		fut := NewFuture(DefaultUnmarshal[string]())
		fut.Error(boom)

		_, err := fut.Get()
		assert.ErrorIs(t, err, boom)
	})

	t.Run("first resolution wins", func(t *testing.T) {
		fut := NewFuture(DefaultUnmarshal[int]())
		fut.Complete(`1`)
		fut.Complete(`2`)
		fut.Error(errors.New("late"))

		got, err := fut.Get()
		require.NoError(t, err)
		assert.Equal(t, 1, got)
	})

	t.Run("concurrent gets see one value", func(t *testing.T) {
		fut := NewFuture(DefaultUnmarshal[int]())

		var wg sync.WaitGroup
		results := make([]int, 8)
		for i := range results {
			wg.Add(1)
			go func() {
				defer wg.Done()
				v, err := fut.Get()
				require.NoError(t, err)
				results[i] = v
			}()
		}

		time.Sleep(10 * time.Millisecond)
		fut.Complete(`7`)
		wg.Wait()

		for _, v := range results {
			assert.Equal(t, 7, v)
		}
	})

	t.Run("gjson unmarshal", func(t *testing.T) {
		fut := NewFuture(DefaultUnmarshal[gjson.Result]())
		fut.Complete(`{"a":1}`)

		got, err := fut.Get()
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.Get("a").Int())
	})
}

func TestRunAsync(t *testing.T) {
	t.Run("resolves with final task result", func(t *testing.T) {
		task := NewTask[string]("Say hi", WithTaskID("t1"))
		ag := scriptedAgent("worker",
			scripted.ToolCall("call_1", toolMarkTaskSuccessful, `{"task_id":"t1","result":"hi"}`),
		)
		o := New(Actors(ag))

		fut := RunAsync[string](context.Background(), o, task)
		got, err := fut.Get()
		require.NoError(t, err)
		assert.Equal(t, "hi", got)
	})

	t.Run("failed task resolves with error", func(t *testing.T) {
		task := NewTask[string]("Impossible", WithTaskID("t1"))
		ag := scriptedAgent("worker",
			scripted.ToolCall("call_1", toolMarkTaskFailed, `{"task_id":"t1","error":"cannot"}`),
		)
		o := New(Actors(ag))

		fut := RunAsync[string](context.Background(), o, task)
		_, err := fut.Get()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot")
	})

	t.Run("fatal run resolves with error", func(t *testing.T) {
		task := NewTask[string]("Blocked", WithTaskID("t1"), DependsOn("missing"))
		o := New(Actors(scriptedAgent("worker")))

		fut := RunAsync[string](context.Background(), o, task)
		_, err := fut.Get()
		assert.ErrorIs(t, err, ErrNoEligibleTask)
	})

	t.Run("no tasks", func(t *testing.T) {
		o := New(Actors(scriptedAgent("worker")))
		fut := RunAsync[string](context.Background(), o)
		_, err := fut.Get()
		require.Error(t, err)
	})
}
