package conclave

import (
	"fmt"
	"maps"
	"strings"

	"github.com/conclave-ai/conclave/api"
	"github.com/conclave-ai/conclave/tool"
	"github.com/conclave-ai/conclave/types"
)

// turnContext gathers everything one turn hands to the model: the scoped
// instruction stack, the merged context variables, and the tool surface
// (task tools, agent tools, and the reserved end-turn tools).
type turnContext struct {
	stack   types.InstructionsStack
	agent   api.Agent
	task    *Task
	vars    types.ContextVars
	tools   []tool.Definition
	servers []tool.Server
}

func newTurnContext(agent api.Agent, task *Task, all []*Task, base types.ContextVars) (*turnContext, error) {
	vars := types.ContextVars{}
	if base != nil {
		maps.Copy(vars, base)
	}
	maps.Copy(vars, task.Context())

	rendered, err := agent.RenderInstructions(vars)
	if err != nil {
		return nil, fmt.Errorf("failed to render instructions: %w", err)
	}

	tc := &turnContext{
		agent:   agent,
		task:    task,
		vars:    vars,
		servers: agent.ToolServers(),
	}
	tc.stack.Push(rendered)
	tc.stack.Push(taskBriefing(task))
	if digest := openTaskDigest(all, task); digest != "" {
		tc.stack.Push(digest)
	}

	tc.tools = append(tc.tools, task.Tools()...)
	tc.tools = append(tc.tools, agent.Tools()...)
	tc.tools = append(tc.tools, endTurnDefinitions()...)
	return tc, nil
}

// Instructions renders the active instruction frames top to bottom.
func (tc *turnContext) Instructions() string {
	return tc.stack.Active()
}

func taskBriefing(t *Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Your current task (id %s):\n%s\n\n", t.ID(), t.Instructions())
	fmt.Fprintf(&b, "When the task is done, call %s with the task id and the result. ", toolMarkTaskSuccessful)
	fmt.Fprintf(&b, "If it cannot be done, call %s with the task id and the reason.", toolMarkTaskFailed)
	if notices, ok := t.Context()["validation_notices"].([]string); ok && len(notices) > 0 {
		fmt.Fprintf(&b, "\n\nEarlier results were rejected:\n")
		for _, n := range notices {
			fmt.Fprintf(&b, "- %s\n", n)
		}
	}
	return b.String()
}

// openTaskDigest summarizes the other non-terminal tasks so the agent knows
// what remains without being able to edit it.
func openTaskDigest(all []*Task, current *Task) string {
	var lines []string
	for _, t := range all {
		if t.ID() == current.ID() || t.Status().Terminal() {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s [%s]: %s", t.ID(), t.Status(), firstLine(t.Instructions())))
	}
	if len(lines) == 0 {
		return ""
	}
	return "Other open tasks:\n" + strings.Join(lines, "\n")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
