package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conclave-ai/conclave/messages"
	"github.com/conclave-ai/conclave/pkg/uuidx"
	"github.com/conclave-ai/conclave/thread"
)

func newTestAssembler(t *testing.T) *Assembler {
	t.Helper()
	return NewAssembler(AssemblerParams{
		RunID:  uuidx.New(),
		Thread: thread.New(),
	})
}

func TestAssemblerText(t *testing.T) {
	a := newTestAssembler(t)

	evts, err := a.Add(Fragment{Index: 0, Delta: TextDelta{Text: "Hel"}})
	require.NoError(t, err)
	require.Len(t, evts, 1)
	chunk, ok := evts[0].(Chunk[messages.AssistantMessage])
	require.True(t, ok)
	assert.Equal(t, "Hel", chunk.Chunk.Content.Content)

	evts, err = a.Add(Fragment{Index: 0, Delta: TextDelta{Text: "lo"}})
	require.NoError(t, err)
	require.Len(t, evts, 1)
	chunk = evts[0].(Chunk[messages.AssistantMessage])
	assert.Equal(t, "Hello", chunk.Chunk.Content.Content)

	final := a.Finish()
	require.Len(t, final, 1)
	resp, ok := final[0].(Response[messages.AssistantMessage])
	require.True(t, ok)
	assert.Equal(t, "Hello", resp.Response.Content.Content)
}

func TestAssemblerToolCall(t *testing.T) {
	a := newTestAssembler(t)

	evts, err := a.Add(Fragment{Index: 0, Delta: ToolCallDelta{CallID: "call_1", Name: "get_we"}})
	require.NoError(t, err)
	chunk := evts[0].(Chunk[messages.ToolCallMessage])
	require.Len(t, chunk.Chunk.ToolCalls, 1)
	assert.Equal(t, "call_1", chunk.Chunk.ToolCalls[0].ID)
	assert.Equal(t, "get_we", chunk.Chunk.ToolCalls[0].Name)

	evts, err = a.Add(Fragment{Index: 0, Delta: ToolCallDelta{Name: "ather", Arguments: `{"loc`}})
	require.NoError(t, err)
	chunk = evts[0].(Chunk[messages.ToolCallMessage])
	assert.Equal(t, "get_weather", chunk.Chunk.ToolCalls[0].Name)
	assert.Equal(t, `{"loc`, chunk.Chunk.ToolCalls[0].Arguments)

	evts, err = a.Add(Fragment{Index: 0, Delta: ToolCallDelta{Arguments: `ation":"SF"}`}})
	require.NoError(t, err)

	final := a.Finish()
	require.Len(t, final, 1)
	resp := final[0].(Response[messages.ToolCallMessage])
	require.Len(t, resp.Response.ToolCalls, 1)
	assert.Equal(t, "get_weather", resp.Response.ToolCalls[0].Name)
	assert.Equal(t, `{"location":"SF"}`, resp.Response.ToolCalls[0].Arguments)
}

func TestAssemblerIncompleteUnnamedToolCall(t *testing.T) {
	// a fragment must snapshot even while the call has no id, no name, and
	// a half-open json document in the arguments
	a := newTestAssembler(t)

	evts, err := a.Add(Fragment{Index: 0, Delta: ToolCallDelta{Arguments: `{"cit`}})
	require.NoError(t, err)
	require.Len(t, evts, 1)
	chunk := evts[0].(Chunk[messages.ToolCallMessage])
	require.Len(t, chunk.Chunk.ToolCalls, 1)
	assert.Empty(t, chunk.Chunk.ToolCalls[0].ID)
	assert.Empty(t, chunk.Chunk.ToolCalls[0].Name)
	assert.Equal(t, `{"cit`, chunk.Chunk.ToolCalls[0].Arguments)
}

func TestAssemblerNewIndexSealsPreviousPart(t *testing.T) {
	a := newTestAssembler(t)

	_, err := a.Add(Fragment{Index: 0, Delta: TextDelta{Text: "thinking"}})
	require.NoError(t, err)

	evts, err := a.Add(Fragment{Index: 1, Delta: ToolCallDelta{CallID: "call_2", Name: "lookup"}})
	require.NoError(t, err)
	require.Len(t, evts, 2)

	resp, ok := evts[0].(Response[messages.AssistantMessage])
	require.True(t, ok, "first event should seal the text part")
	assert.Equal(t, "thinking", resp.Response.Content.Content)

	chunk, ok := evts[1].(Chunk[messages.ToolCallMessage])
	require.True(t, ok)
	assert.Equal(t, "lookup", chunk.Chunk.ToolCalls[0].Name)
}

func TestAssemblerRejectsClosedPart(t *testing.T) {
	a := newTestAssembler(t)

	_, err := a.Add(Fragment{Index: 0, Delta: TextDelta{Text: "a"}})
	require.NoError(t, err)
	_, err = a.Add(Fragment{Index: 1, Delta: TextDelta{Text: "b"}})
	require.NoError(t, err)

	_, err = a.Add(Fragment{Index: 0, Delta: TextDelta{Text: "late"}})
	require.Error(t, err)
}

func TestAssemblerRejectsMixedDeltas(t *testing.T) {
	a := newTestAssembler(t)

	_, err := a.Add(Fragment{Index: 0, Delta: TextDelta{Text: "hi"}})
	require.NoError(t, err)
	_, err = a.Add(Fragment{Index: 0, Delta: ToolCallDelta{Name: "oops"}})
	require.Error(t, err)

	_, err = a.Add(Fragment{Index: 1, Delta: ToolCallDelta{Name: "fine"}})
	require.NoError(t, err)
	_, err = a.Add(Fragment{Index: 1, Delta: TextDelta{Text: "oops"}})
	require.Error(t, err)
}

func TestAssemblerFinishEmpty(t *testing.T) {
	a := newTestAssembler(t)
	assert.Nil(t, a.Finish())
}
