package openai

import (
	"encoding/base64"
	"slices"
	"testing"

	openai "github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conclave-ai/conclave/messages"
	"github.com/conclave-ai/conclave/thread"
)

func TestMessagesToOpenAIEmpty(t *testing.T) {
	result, user := messagesToOpenAI("be brief", slices.Values([]messages.Message[messages.ModelMessage]{}))

	require.Len(t, result, 1)
	system := result[0].(openai.ChatCompletionSystemMessageParam)
	assert.Equal(t, "be brief", system.Content.Value[0].Text.Value)
	assert.Empty(t, user)
}

func TestMessagesToOpenAIContentParts(t *testing.T) {
	mem := thread.New()
	mem.AddUserMessage(messages.New().WithSender("user1").UserPromptParts(
		messages.Text("what is in this picture"),
		messages.ImageContentPart{URL: "https://example.com/bee.jpg", Detail: "high"},
		messages.Audio([]byte("audio data"), "mp3"),
	))

	result, user := messagesToOpenAI("be brief", mem.MessagesIter())

	assert.Equal(t, "user1", user)
	require.Len(t, result, 2)

	userMsg := result[1].(openai.ChatCompletionUserMessageParam)
	parts := userMsg.Content.Value
	require.Len(t, parts, 3)

	textPart := parts[0].(openai.ChatCompletionContentPartTextParam)
	assert.Equal(t, "what is in this picture", textPart.Text.Value)

	imagePart := parts[1].(openai.ChatCompletionContentPartImageParam)
	assert.Equal(t, "https://example.com/bee.jpg", imagePart.ImageURL.Value.URL.Value)
	assert.Equal(t, openai.ChatCompletionContentPartImageImageURLDetailHigh, imagePart.ImageURL.Value.Detail.Value)

	audioPart := parts[2].(openai.ChatCompletionContentPartInputAudioParam)
	assert.Equal(t, "mp3", string(audioPart.InputAudio.Value.Format.Value))
	decoded, err := base64.StdEncoding.DecodeString(audioPart.InputAudio.Value.Data.Value)
	require.NoError(t, err)
	assert.Equal(t, []byte("audio data"), decoded)
}
