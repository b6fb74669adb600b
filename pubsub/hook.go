package pubsub

import (
	"context"
	"log/slog"

	"github.com/conclave-ai/conclave/events"
	"github.com/conclave-ai/conclave/pkg/slogx"
)

// PublishHook bridges an orchestrator into a broker: attach it with the
// orchestrator's hook option and every run event is published to the topic.
// Publish failures are logged, never propagated; observation must not break
// a run.
func PublishHook(topic Topic) events.Hook {
	return publishHook{topic: topic}
}

type publishHook struct {
	topic Topic
}

func (p publishHook) publish(ctx context.Context, e events.Event) {
	if err := p.topic.Publish(ctx, e); err != nil {
		slog.Error("failed to publish event", slogx.Error(err), slog.String("kind", string(e.EventKind())))
	}
}

func (p publishHook) OnOrchestratorStart(ctx context.Context, e events.OrchestratorStart) {
	p.publish(ctx, e)
}
func (p publishHook) OnOrchestratorEnd(ctx context.Context, e events.OrchestratorEnd) {
	p.publish(ctx, e)
}
func (p publishHook) OnOrchestratorException(ctx context.Context, e events.OrchestratorException) {
	p.publish(ctx, e)
}
func (p publishHook) OnActorStartTurn(ctx context.Context, e events.ActorStartTurn) {
	p.publish(ctx, e)
}
func (p publishHook) OnActorEndTurn(ctx context.Context, e events.ActorEndTurn) { p.publish(ctx, e) }
func (p publishHook) OnUserMessage(ctx context.Context, e events.UserMessage)   { p.publish(ctx, e) }
func (p publishHook) OnAgentMessage(ctx context.Context, e events.AgentMessage) { p.publish(ctx, e) }
func (p publishHook) OnToolCallDelta(ctx context.Context, e events.ToolCallDelta) {
	p.publish(ctx, e)
}
func (p publishHook) OnToolCall(ctx context.Context, e events.ToolCall)     { p.publish(ctx, e) }
func (p publishHook) OnToolResult(ctx context.Context, e events.ToolResult) { p.publish(ctx, e) }
func (p publishHook) OnToolRetry(ctx context.Context, e events.ToolRetry)   { p.publish(ctx, e) }
func (p publishHook) OnEndTurnToolCall(ctx context.Context, e events.EndTurnToolCall) {
	p.publish(ctx, e)
}
func (p publishHook) OnEndTurnToolResult(ctx context.Context, e events.EndTurnToolResult) {
	p.publish(ctx, e)
}
