package messages

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderUserPrompt(t *testing.T) {
	msg := New().WithSender("caller").UserPrompt("hello")

	assert.Equal(t, "caller", msg.Sender)
	assert.Equal(t, "hello", msg.Payload.Content.Content)
	assert.False(t, msg.Timestamp.IsZero())
}

func TestBuilderToolResponse(t *testing.T) {
	msg := New().ToolResponse("call-1", "get_weather", `{"temp_c":18}`)

	assert.Equal(t, "call-1", msg.Payload.ToolCallID)
	assert.Equal(t, "get_weather", msg.Payload.ToolName)
	assert.Equal(t, `{"temp_c":18}`, msg.Payload.Content)
}

func TestMessageRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"user", mustJSON(t, New().WithSender("caller").UserPrompt("hi"))},
		{"assistant", mustJSON(t, New().WithSender("helper").AssistantMessage("hello back"))},
		{"tool_call", mustJSON(t, New().ToolCall(ToolCallData{ID: "c1", Name: "lookup", Arguments: `{"q":"x"}`}))},
		{"tool_response", mustJSON(t, New().ToolResponse("c1", "lookup", "result"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var erased Message[ModelMessage]
			require.NoError(t, json.Unmarshal(tt.data, &erased))

			again, err := json.Marshal(erased)
			require.NoError(t, err)
			assert.JSONEq(t, string(tt.data), string(again))
		})
	}
}

func TestMessageUnmarshalKindMismatch(t *testing.T) {
	data := mustJSON(t, New().UserPrompt("hi"))

	var wrong Message[AssistantMessage]
	err := json.Unmarshal(data, &wrong)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match")
}

func TestContentOrPartsMultiPart(t *testing.T) {
	content := ContentOrParts{Parts: []ContentPart{
		Text("look at this"),
		Image("https://example.com/bee.jpg"),
		Audio([]byte{0x01, 0x02}, "wav"),
	}}

	data, err := json.Marshal(content)
	require.NoError(t, err)

	var decoded ContentOrParts
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded.Parts, 3)
	assert.Equal(t, Text("look at this"), decoded.Parts[0])
	assert.Equal(t, Image("https://example.com/bee.jpg"), decoded.Parts[1])
	assert.Equal(t, Audio([]byte{0x01, 0x02}, "wav"), decoded.Parts[2])
}

func TestImageContentPartDetail(t *testing.T) {
	part := ImageContentPart{URL: "https://example.com/bee.jpg", Detail: "high"}

	data, err := json.Marshal(part)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"image","url":"https://example.com/bee.jpg","detail":"high"}`, string(data))

	var decoded ContentOrParts
	require.NoError(t, json.Unmarshal([]byte(`[`+string(data)+`]`), &decoded))
	require.Len(t, decoded.Parts, 1)
	assert.Equal(t, part, decoded.Parts[0])

	// Without a detail hint the field stays off the wire.
	plain := mustJSON(t, Image("https://example.com/bee.jpg"))
	assert.JSONEq(t, `{"type":"image","url":"https://example.com/bee.jpg"}`, string(plain))
}

func TestAssistantContentRefusal(t *testing.T) {
	content := AssistantContentOrParts{Refusal: "cannot do that"}

	data, err := json.Marshal(content)
	require.NoError(t, err)

	var decoded AssistantContentOrParts
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "cannot do that", decoded.Refusal)
}

func TestAssistantContentBothSetIsRejected(t *testing.T) {
	content := AssistantContentOrParts{Content: "yes", Refusal: "no"}
	_, err := json.Marshal(content)
	require.Error(t, err)
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}
