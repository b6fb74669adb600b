package provider

import (
	"context"

	"github.com/google/uuid"
	"github.com/invopop/jsonschema"

	"github.com/conclave-ai/conclave/thread"
	"github.com/conclave-ai/conclave/tool"
)

// Provider is the contract a model backend fulfills. Implementations handle
// the wire specifics of their service and report progress as a stream of
// events; the rest of the framework only ever sees that stream.
type Provider interface {
	ChatCompletion(context.Context, CompletionParams) (<-chan StreamEvent, error)
}

// CompletionParams carries everything a provider needs for one turn.
type CompletionParams struct {
	// RunID identifies the orchestration run this completion belongs to.
	RunID uuid.UUID

	// Instructions is the rendered system prompt for the active agent.
	Instructions string

	// Thread holds the conversation history for this turn.
	Thread *thread.Thread

	// Stream selects incremental delivery. When false the provider still
	// reports through the event channel, just without intermediate chunks.
	Stream bool

	// ResponseSchema, when set, asks the model for structured output.
	ResponseSchema *StructuredOutput

	// Model names the completion model. Declared structurally so agent
	// implementations can satisfy it without importing this package's callers.
	Model interface {
		Name() string
		Provider() Provider
	}

	// Tools lists every capability the model may invoke this turn.
	Tools []tool.Definition

	// ForcedTool, when non-empty, requires the model to call the named tool.
	ForcedTool string

	// ToolServers are opaque remote tool handles, forwarded unchanged.
	ToolServers []tool.Server

	_ struct{}
}

// StructuredOutput describes a response format the model should honor.
type StructuredOutput struct {
	Name        string
	Description string
	Schema      *jsonschema.Schema
}
