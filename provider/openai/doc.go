/*
Package openai implements provider.Provider on top of OpenAI's chat
completions API, including streaming, tool calls, forced tool choice, and
structured output.

Pre-configured model handles are available through GPT4oMini, GPT4o, O1Mini,
and O1; any other chat model can be addressed by name:

	model := openai.Model("custom-model-name",
		option.WithAPIKey("your-key"),
	)

Handles initialize their provider lazily and are shared process-wide, so
agents referencing the same model reuse one client.

Streamed completions are folded through the provider package's Assembler:
wire deltas become Fragment values (text on part 0, each tool call on its own
part), and consumers receive the usual Delim/Chunk/Response/Error sequence.
Token usage reported by the API is added to the request's thread tally.
*/
package openai
