package scripted

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conclave-ai/conclave/messages"
	"github.com/conclave-ai/conclave/pkg/uuidx"
	"github.com/conclave-ai/conclave/provider"
	"github.com/conclave-ai/conclave/thread"
)

func collect(t *testing.T, p *Provider) []provider.StreamEvent {
	t.Helper()
	ch, err := p.ChatCompletion(context.Background(), provider.CompletionParams{
		RunID:  uuidx.New(),
		Thread: thread.New(),
	})
	require.NoError(t, err)

	var out []provider.StreamEvent
	for e := range ch {
		out = append(out, e)
	}
	return out
}

func TestTextTurn(t *testing.T) {
	p := New(Text("Hel", "lo"))
	evts := collect(t, p)

	require.GreaterOrEqual(t, len(evts), 5)
	assert.Equal(t, "start", evts[0].(provider.Delim).Delim)
	assert.Equal(t, "end", evts[len(evts)-1].(provider.Delim).Delim)

	resp, ok := evts[len(evts)-2].(provider.Response[messages.AssistantMessage])
	require.True(t, ok)
	assert.Equal(t, "Hello", resp.Response.Content.Content)
}

func TestToolCallTurn(t *testing.T) {
	p := New(ToolCall("call_1", "get_weather", `{"location":"SF"}`))
	evts := collect(t, p)

	resp, ok := evts[len(evts)-2].(provider.Response[messages.ToolCallMessage])
	require.True(t, ok)
	require.Len(t, resp.Response.ToolCalls, 1)
	assert.Equal(t, "call_1", resp.Response.ToolCalls[0].ID)
	assert.Equal(t, `{"location":"SF"}`, resp.Response.ToolCalls[0].Arguments)
}

func TestThenCombinesParts(t *testing.T) {
	p := New(Text("done soon").Then(ToolCall("call_2", "lookup", `{}`)))
	evts := collect(t, p)

	var responses int
	for _, e := range evts {
		switch e.(type) {
		case provider.Response[messages.AssistantMessage], provider.Response[messages.ToolCallMessage]:
			responses++
		}
	}
	assert.Equal(t, 2, responses)
}

func TestScriptExhaustion(t *testing.T) {
	p := New(Text("only one"))
	collect(t, p)

	_, err := p.ChatCompletion(context.Background(), provider.CompletionParams{
		RunID:  uuidx.New(),
		Thread: thread.New(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "script exhausted")
}

func TestModelHandle(t *testing.T) {
	p := New()
	m := p.Model("scripted-1")
	assert.Equal(t, "scripted-1", m.Name())
	assert.Same(t, p, m.Provider())
}
