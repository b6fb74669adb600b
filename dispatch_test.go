package conclave

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conclave-ai/conclave/api"
	"github.com/conclave-ai/conclave/types"
)

func TestEndTurnToolNames(t *testing.T) {
	assert.Equal(t, "mark_task_successful", toolMarkTaskSuccessful)
	assert.Equal(t, "mark_task_failed", toolMarkTaskFailed)
	assert.Equal(t, "delegate_to_agent", toolDelegateToAgent)
	assert.Equal(t, "post_message", toolPostMessage)
}

func TestEndTurnDefinitions(t *testing.T) {
	defs := endTurnDefinitions()
	require.Len(t, defs, 4)

	byName := map[string][]string{}
	for _, def := range defs {
		require.NotNil(t, def.Schema, def.Name)
		byName[def.Name] = def.Schema.Required
		assert.True(t, isEndTurnTool(def.Name))
	}

	assert.Equal(t, []string{"task_id", "result"}, byName[toolMarkTaskSuccessful])
	assert.Equal(t, []string{"task_id", "error"}, byName[toolMarkTaskFailed])
	assert.Equal(t, []string{"agent"}, byName[toolDelegateToAgent])
	assert.Equal(t, []string{"message"}, byName[toolPostMessage])

	assert.False(t, isEndTurnTool("add"))
}

func TestBuildArgList(t *testing.T) {
	t.Run("orders by parameter index", func(t *testing.T) {
		args := buildArgList(`{"b":2,"a":1}`, map[string]string{"param0": "a", "param1": "b"})
		require.Len(t, args, 2)
		assert.InDelta(t, 1.0, args[0].Interface(), 0.001)
		assert.InDelta(t, 2.0, args[1].Interface(), 0.001)
	})

	t.Run("skips missing arguments", func(t *testing.T) {
		args := buildArgList(`{"a":1}`, map[string]string{"param0": "a", "param1": "b"})
		assert.Len(t, args, 1)
	})

	t.Run("empty parameters", func(t *testing.T) {
		assert.Empty(t, buildArgList(`{"a":1}`, nil))
	})
}

type namedActor string

func (n namedActor) Name() string { return string(n) }

func TestCallFunction(t *testing.T) {
	t.Run("string result", func(t *testing.T) {
		res, err := callFunction(func(s string) string { return s + "!" },
			argValues("hi"), nil)
		require.NoError(t, err)
		assert.Equal(t, "hi!", res.Value)
	})

	t.Run("numeric result", func(t *testing.T) {
		res, err := callFunction(func(a, b float64) float64 { return a + b },
			argValues(1.0, 2.0), nil)
		require.NoError(t, err)
		assert.Equal(t, "3", res.Value)
	})

	t.Run("struct result serializes as JSON", func(t *testing.T) {
		type out struct {
			OK bool `json:"ok"`
		}
		res, err := callFunction(func() out { return out{OK: true} }, nil, nil)
		require.NoError(t, err)
		assert.JSONEq(t, `{"ok":true}`, res.Value)
	})

	t.Run("error return", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := callFunction(func() (string, error) { return "", boom }, nil, nil)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("panic recovers as error", func(t *testing.T) {
		_, err := callFunction(func() string { panic("bad tool") }, nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bad tool")
	})

	t.Run("context vars injected by type", func(t *testing.T) {
		cv := types.ContextVars{"user": "sam"}
		res, err := callFunction(func(vars types.ContextVars, greeting string) string {
			return fmt.Sprintf("%s %s", greeting, vars["user"])
		}, argValues("hello"), cv)
		require.NoError(t, err)
		assert.Equal(t, "hello sam", res.Value)
	})

	t.Run("context vars returned merge back", func(t *testing.T) {
		res, err := callFunction(func() types.ContextVars {
			return types.ContextVars{"key": "value"}
		}, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, "value", res.ContextVariables["key"])
	})

	t.Run("actor result becomes hand-off", func(t *testing.T) {
		res, err := callFunction(func() api.Actor { return namedActor("next") }, nil, nil)
		require.NoError(t, err)
		require.NotNil(t, res.Actor)
		assert.Equal(t, "next", res.Actor.Name())
	})

	t.Run("nil function", func(t *testing.T) {
		_, err := callFunction(nil, nil, nil)
		require.Error(t, err)
	})
}

func argValues(vals ...any) []reflect.Value {
	out := make([]reflect.Value, 0, len(vals))
	for _, v := range vals {
		out = append(out, reflect.ValueOf(v))
	}
	return out
}
