package events

import (
	"context"
	"log/slog"
	"sync"
)

// Hook observes a run's event stream. Hooks are called synchronously from
// the orchestrator loop, in emission order, with no buffering in between; a
// slow hook slows the run down rather than missing events.
type Hook interface {
	OnOrchestratorStart(context.Context, OrchestratorStart)
	OnOrchestratorEnd(context.Context, OrchestratorEnd)
	OnOrchestratorException(context.Context, OrchestratorException)
	OnActorStartTurn(context.Context, ActorStartTurn)
	OnActorEndTurn(context.Context, ActorEndTurn)
	OnUserMessage(context.Context, UserMessage)
	OnAgentMessage(context.Context, AgentMessage)
	OnToolCallDelta(context.Context, ToolCallDelta)
	OnToolCall(context.Context, ToolCall)
	OnToolResult(context.Context, ToolResult)
	OnToolRetry(context.Context, ToolRetry)
	OnEndTurnToolCall(context.Context, EndTurnToolCall)
	OnEndTurnToolResult(context.Context, EndTurnToolResult)
}

// Dispatch routes an event to the hook method matching its kind.
func Dispatch(ctx context.Context, hook Hook, event Event) {
	switch e := event.(type) {
	case OrchestratorStart:
		hook.OnOrchestratorStart(ctx, e)
	case OrchestratorEnd:
		hook.OnOrchestratorEnd(ctx, e)
	case OrchestratorException:
		hook.OnOrchestratorException(ctx, e)
	case ActorStartTurn:
		hook.OnActorStartTurn(ctx, e)
	case ActorEndTurn:
		hook.OnActorEndTurn(ctx, e)
	case UserMessage:
		hook.OnUserMessage(ctx, e)
	case AgentMessage:
		hook.OnAgentMessage(ctx, e)
	case ToolCallDelta:
		hook.OnToolCallDelta(ctx, e)
	case ToolCall:
		hook.OnToolCall(ctx, e)
	case ToolResult:
		hook.OnToolResult(ctx, e)
	case ToolRetry:
		hook.OnToolRetry(ctx, e)
	case EndTurnToolCall:
		hook.OnEndTurnToolCall(ctx, e)
	case EndTurnToolResult:
		hook.OnEndTurnToolResult(ctx, e)
	}
}

// NoopHook ignores every event. Embed it to implement only the methods a
// consumer cares about.
type NoopHook struct{}

func (NoopHook) OnOrchestratorStart(context.Context, OrchestratorStart)         {}
func (NoopHook) OnOrchestratorEnd(context.Context, OrchestratorEnd)             {}
func (NoopHook) OnOrchestratorException(context.Context, OrchestratorException) {}
func (NoopHook) OnActorStartTurn(context.Context, ActorStartTurn)               {}
func (NoopHook) OnActorEndTurn(context.Context, ActorEndTurn)                   {}
func (NoopHook) OnUserMessage(context.Context, UserMessage)                     {}
func (NoopHook) OnAgentMessage(context.Context, AgentMessage)                   {}
func (NoopHook) OnToolCallDelta(context.Context, ToolCallDelta)                 {}
func (NoopHook) OnToolCall(context.Context, ToolCall)                           {}
func (NoopHook) OnToolResult(context.Context, ToolResult)                       {}
func (NoopHook) OnToolRetry(context.Context, ToolRetry)                         {}
func (NoopHook) OnEndTurnToolCall(context.Context, EndTurnToolCall)             {}
func (NoopHook) OnEndTurnToolResult(context.Context, EndTurnToolResult)         {}

// Fanout forwards every event to each of the given hooks, in order.
func Fanout(hooks ...Hook) Hook {
	return fanout(hooks)
}

type fanout []Hook

func (f fanout) OnOrchestratorStart(ctx context.Context, e OrchestratorStart) {
	for _, h := range f {
		h.OnOrchestratorStart(ctx, e)
	}
}

func (f fanout) OnOrchestratorEnd(ctx context.Context, e OrchestratorEnd) {
	for _, h := range f {
		h.OnOrchestratorEnd(ctx, e)
	}
}

func (f fanout) OnOrchestratorException(ctx context.Context, e OrchestratorException) {
	for _, h := range f {
		h.OnOrchestratorException(ctx, e)
	}
}

func (f fanout) OnActorStartTurn(ctx context.Context, e ActorStartTurn) {
	for _, h := range f {
		h.OnActorStartTurn(ctx, e)
	}
}

func (f fanout) OnActorEndTurn(ctx context.Context, e ActorEndTurn) {
	for _, h := range f {
		h.OnActorEndTurn(ctx, e)
	}
}

func (f fanout) OnUserMessage(ctx context.Context, e UserMessage) {
	for _, h := range f {
		h.OnUserMessage(ctx, e)
	}
}

func (f fanout) OnAgentMessage(ctx context.Context, e AgentMessage) {
	for _, h := range f {
		h.OnAgentMessage(ctx, e)
	}
}

func (f fanout) OnToolCallDelta(ctx context.Context, e ToolCallDelta) {
	for _, h := range f {
		h.OnToolCallDelta(ctx, e)
	}
}

func (f fanout) OnToolCall(ctx context.Context, e ToolCall) {
	for _, h := range f {
		h.OnToolCall(ctx, e)
	}
}

func (f fanout) OnToolResult(ctx context.Context, e ToolResult) {
	for _, h := range f {
		h.OnToolResult(ctx, e)
	}
}

func (f fanout) OnToolRetry(ctx context.Context, e ToolRetry) {
	for _, h := range f {
		h.OnToolRetry(ctx, e)
	}
}

func (f fanout) OnEndTurnToolCall(ctx context.Context, e EndTurnToolCall) {
	for _, h := range f {
		h.OnEndTurnToolCall(ctx, e)
	}
}

func (f fanout) OnEndTurnToolResult(ctx context.Context, e EndTurnToolResult) {
	for _, h := range f {
		h.OnEndTurnToolResult(ctx, e)
	}
}

// Recorder collects the event log in memory. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) record(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of the recorded log in emission order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Kinds returns just the kind sequence of the recorded log.
func (r *Recorder) Kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Kind, len(r.events))
	for i, e := range r.events {
		out[i] = e.EventKind()
	}
	return out
}

func (r *Recorder) OnOrchestratorStart(_ context.Context, e OrchestratorStart) { r.record(e) }
func (r *Recorder) OnOrchestratorEnd(_ context.Context, e OrchestratorEnd)     { r.record(e) }
func (r *Recorder) OnOrchestratorException(_ context.Context, e OrchestratorException) {
	r.record(e)
}
func (r *Recorder) OnActorStartTurn(_ context.Context, e ActorStartTurn)       { r.record(e) }
func (r *Recorder) OnActorEndTurn(_ context.Context, e ActorEndTurn)           { r.record(e) }
func (r *Recorder) OnUserMessage(_ context.Context, e UserMessage)             { r.record(e) }
func (r *Recorder) OnAgentMessage(_ context.Context, e AgentMessage)           { r.record(e) }
func (r *Recorder) OnToolCallDelta(_ context.Context, e ToolCallDelta)         { r.record(e) }
func (r *Recorder) OnToolCall(_ context.Context, e ToolCall)                   { r.record(e) }
func (r *Recorder) OnToolResult(_ context.Context, e ToolResult)               { r.record(e) }
func (r *Recorder) OnToolRetry(_ context.Context, e ToolRetry)                 { r.record(e) }
func (r *Recorder) OnEndTurnToolCall(_ context.Context, e EndTurnToolCall)     { r.record(e) }
func (r *Recorder) OnEndTurnToolResult(_ context.Context, e EndTurnToolResult) { r.record(e) }

// LoggingHook writes every event to slog at debug level.
func LoggingHook() Hook {
	return loggingHook{}
}

type loggingHook struct{}

func (loggingHook) log(ctx context.Context, e Event) {
	slog.DebugContext(ctx, "event", slog.String("kind", string(e.EventKind())), slog.Any("event", e))
}

func (l loggingHook) OnOrchestratorStart(ctx context.Context, e OrchestratorStart) { l.log(ctx, e) }
func (l loggingHook) OnOrchestratorEnd(ctx context.Context, e OrchestratorEnd)     { l.log(ctx, e) }
func (l loggingHook) OnOrchestratorException(ctx context.Context, e OrchestratorException) {
	l.log(ctx, e)
}
func (l loggingHook) OnActorStartTurn(ctx context.Context, e ActorStartTurn)       { l.log(ctx, e) }
func (l loggingHook) OnActorEndTurn(ctx context.Context, e ActorEndTurn)           { l.log(ctx, e) }
func (l loggingHook) OnUserMessage(ctx context.Context, e UserMessage)             { l.log(ctx, e) }
func (l loggingHook) OnAgentMessage(ctx context.Context, e AgentMessage)           { l.log(ctx, e) }
func (l loggingHook) OnToolCallDelta(ctx context.Context, e ToolCallDelta)         { l.log(ctx, e) }
func (l loggingHook) OnToolCall(ctx context.Context, e ToolCall)                   { l.log(ctx, e) }
func (l loggingHook) OnToolResult(ctx context.Context, e ToolResult)               { l.log(ctx, e) }
func (l loggingHook) OnToolRetry(ctx context.Context, e ToolRetry)                 { l.log(ctx, e) }
func (l loggingHook) OnEndTurnToolCall(ctx context.Context, e EndTurnToolCall)     { l.log(ctx, e) }
func (l loggingHook) OnEndTurnToolResult(ctx context.Context, e EndTurnToolResult) { l.log(ctx, e) }
