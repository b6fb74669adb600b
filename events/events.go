package events

import (
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"

	"github.com/conclave-ai/conclave/messages"
)

// Kind names one member of the closed event set. The wire strings are part
// of the public contract; recorded logs depend on them staying stable.
type Kind string

const (
	KindOrchestratorStart     Kind = "orchestrator-start"
	KindOrchestratorEnd       Kind = "orchestrator-end"
	KindOrchestratorException Kind = "orchestrator-exception"
	KindActorStartTurn        Kind = "actor-start-turn"
	KindActorEndTurn          Kind = "actor-end-turn"
	KindUserMessage           Kind = "user-message"
	KindAgentMessage          Kind = "agent-message"
	KindToolCallDelta         Kind = "tool-call-delta"
	KindToolCall              Kind = "tool-call"
	KindToolResult            Kind = "tool-result"
	KindToolRetry             Kind = "tool-retry"
	KindEndTurnToolCall       Kind = "end-turn-tool-call"
	KindEndTurnToolResult     Kind = "end-turn-tool-result"
)

// Event is an immutable record of something the orchestrator did or observed.
// Events are facts: once emitted they are never edited, and delta events
// carry full snapshots rather than patches.
type Event interface {
	EventKind() Kind
}

// OrchestratorStart opens a run's event log.
type OrchestratorStart struct {
	RunID        uuid.UUID       `json:"run_id"`
	Timestamp    strfmt.DateTime `json:"timestamp"`
	Orchestrator string          `json:"orchestrator"`
	TaskIDs      []string        `json:"task_ids"`
}

func (OrchestratorStart) EventKind() Kind { return KindOrchestratorStart }

// OrchestratorEnd closes a run's event log after a normal finish.
type OrchestratorEnd struct {
	RunID     uuid.UUID       `json:"run_id"`
	Timestamp strfmt.DateTime `json:"timestamp"`
	Turns     int             `json:"turns"`
}

func (OrchestratorEnd) EventKind() Kind { return KindOrchestratorEnd }

// OrchestratorException closes a run's event log after a fatal fault.
type OrchestratorException struct {
	RunID     uuid.UUID       `json:"run_id"`
	TurnID    uuid.UUID       `json:"turn_id"`
	Timestamp strfmt.DateTime `json:"timestamp"`
	Err       error           `json:"error"`
}

func (OrchestratorException) EventKind() Kind { return KindOrchestratorException }

// ActorStartTurn records which actor received the turn and for which task.
type ActorStartTurn struct {
	RunID     uuid.UUID       `json:"run_id"`
	TurnID    uuid.UUID       `json:"turn_id"`
	Timestamp strfmt.DateTime `json:"timestamp"`
	Actor     string          `json:"actor"`
	TaskID    string          `json:"task_id,omitempty"`
}

func (ActorStartTurn) EventKind() Kind { return KindActorStartTurn }

// ActorEndTurn records that an actor's turn finished.
type ActorEndTurn struct {
	RunID     uuid.UUID       `json:"run_id"`
	TurnID    uuid.UUID       `json:"turn_id"`
	Timestamp strfmt.DateTime `json:"timestamp"`
	Actor     string          `json:"actor"`
}

func (ActorEndTurn) EventKind() Kind { return KindActorEndTurn }

// UserMessage records a prompt entering the conversation.
type UserMessage struct {
	RunID     uuid.UUID                              `json:"run_id"`
	TurnID    uuid.UUID                              `json:"turn_id"`
	Timestamp strfmt.DateTime                        `json:"timestamp"`
	Message   messages.Message[messages.UserMessage] `json:"message"`
}

func (UserMessage) EventKind() Kind { return KindUserMessage }

// AgentMessage records a completed assistant reply.
type AgentMessage struct {
	RunID     uuid.UUID                                   `json:"run_id"`
	TurnID    uuid.UUID                                   `json:"turn_id"`
	Timestamp strfmt.DateTime                             `json:"timestamp"`
	Sender    string                                      `json:"sender,omitempty"`
	Message   messages.Message[messages.AssistantMessage] `json:"message"`
}

func (AgentMessage) EventKind() Kind { return KindAgentMessage }

// ToolCallDelta carries the complete-so-far snapshot of a streaming tool
// call. Consecutive deltas for the same call only ever grow.
type ToolCallDelta struct {
	RunID     uuid.UUID                `json:"run_id"`
	TurnID    uuid.UUID                `json:"turn_id"`
	Timestamp strfmt.DateTime          `json:"timestamp"`
	Sender    string                   `json:"sender,omitempty"`
	Snapshot  messages.ToolCallMessage `json:"snapshot"`
}

func (ToolCallDelta) EventKind() Kind { return KindToolCallDelta }

// ToolCall records a completed ordinary tool invocation request.
type ToolCall struct {
	RunID     uuid.UUID             `json:"run_id"`
	TurnID    uuid.UUID             `json:"turn_id"`
	Timestamp strfmt.DateTime       `json:"timestamp"`
	Sender    string                `json:"sender,omitempty"`
	Call      messages.ToolCallData `json:"call"`
}

func (ToolCall) EventKind() Kind { return KindToolCall }

// ToolResult records the outcome of an ordinary tool invocation. Failures
// are data: IsError marks them, Content carries the serialized fault.
type ToolResult struct {
	RunID      uuid.UUID       `json:"run_id"`
	TurnID     uuid.UUID       `json:"turn_id"`
	Timestamp  strfmt.DateTime `json:"timestamp"`
	Sender     string          `json:"sender,omitempty"`
	ToolName   string          `json:"tool_name"`
	ToolCallID string          `json:"tool_call_id"`
	Content    string          `json:"content"`
	IsError    bool            `json:"is_error,omitempty"`
}

func (ToolResult) EventKind() Kind { return KindToolResult }

// ToolRetry records that a failed call was reported back to the model for
// another attempt.
type ToolRetry struct {
	RunID      uuid.UUID       `json:"run_id"`
	TurnID     uuid.UUID       `json:"turn_id"`
	Timestamp  strfmt.DateTime `json:"timestamp"`
	Sender     string          `json:"sender,omitempty"`
	ToolName   string          `json:"tool_name,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	Err        error           `json:"error"`
	Attempt    int             `json:"attempt"`
}

func (ToolRetry) EventKind() Kind { return KindToolRetry }

// EndTurnToolCall records that the model invoked one of the reserved
// turn-ending tools.
type EndTurnToolCall struct {
	RunID     uuid.UUID             `json:"run_id"`
	TurnID    uuid.UUID             `json:"turn_id"`
	Timestamp strfmt.DateTime       `json:"timestamp"`
	Sender    string                `json:"sender,omitempty"`
	Call      messages.ToolCallData `json:"call"`
	TaskID    string                `json:"task_id,omitempty"`
}

func (EndTurnToolCall) EventKind() Kind { return KindEndTurnToolCall }

// EndTurnToolResult records what an end-turn tool did. Status and Result
// capture the task outcome so a recorded log replays to the same task states
// without rerunning any model or tool.
type EndTurnToolResult struct {
	RunID     uuid.UUID       `json:"run_id"`
	TurnID    uuid.UUID       `json:"turn_id"`
	Timestamp strfmt.DateTime `json:"timestamp"`
	Sender    string          `json:"sender,omitempty"`
	ToolName  string          `json:"tool_name"`
	TaskID    string          `json:"task_id,omitempty"`
	Status    string          `json:"status,omitempty"`
	Result    string          `json:"result,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

func (EndTurnToolResult) EventKind() Kind { return KindEndTurnToolResult }
