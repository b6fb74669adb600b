package api

import (
	"github.com/conclave-ai/conclave/provider"
	"github.com/conclave-ai/conclave/tool"
	"github.com/conclave-ai/conclave/types"
)

// Actor is anything the orchestrator can hand the turn to.
type Actor interface {
	Name() string
}

// Agent is an actor backed by a language model. Its instructions are a
// template rendered against the run's context variables on every turn.
type Agent interface {
	Actor

	Model() Model
	Tools() []tool.Definition
	ToolServers() []tool.Server
	RenderInstructions(types.ContextVars) (string, error)
}

// Composite is an actor that stands in for several others and picks one of
// them each time it receives the turn.
type Composite interface {
	Actor

	Select() Actor
}

// Model names a concrete completion model and the provider that serves it.
type Model interface {
	Name() string
	Provider() provider.Provider
}
