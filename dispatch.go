package conclave

import (
	"context"
	"encoding"
	"fmt"
	"log/slog"
	"maps"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/go-openapi/swag"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/invopop/jsonschema"
	"github.com/tidwall/gjson"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/conclave-ai/conclave/agent"
	"github.com/conclave-ai/conclave/api"
	"github.com/conclave-ai/conclave/events"
	"github.com/conclave-ai/conclave/messages"
	"github.com/conclave-ai/conclave/pkg/reflectx"
	"github.com/conclave-ai/conclave/pkg/slogx"
	"github.com/conclave-ai/conclave/thread"
	"github.com/conclave-ai/conclave/tool"
	"github.com/conclave-ai/conclave/types"
)

// Reserved end-turn tool names, mangled from their public names the same way
// generated file names are.
var (
	toolMarkTaskSuccessful = swag.ToFileName("MarkTaskSuccessful")
	toolMarkTaskFailed     = swag.ToFileName("MarkTaskFailed")
	toolDelegateToAgent    = swag.ToFileName("DelegateToAgent")
	toolPostMessage        = swag.ToFileName("PostMessage")
)

func stringParamsSchema(params ...string) *jsonschema.Schema {
	s := &jsonschema.Schema{
		Type:       "object",
		Properties: orderedmap.New[string, *jsonschema.Schema](),
	}
	for _, p := range params {
		s.Properties.Set(p, &jsonschema.Schema{Type: "string"})
	}
	s.Required = params
	return s
}

// endTurnDefinitions synthesizes the reserved tools every agent receives.
// Their schemas are explicit; they are dispatched by name, never reflected.
func endTurnDefinitions() []tool.Definition {
	return []tool.Definition{
		{
			Name:        toolMarkTaskSuccessful,
			Description: "Mark a task as successfully completed and record its result.",
			Schema:      stringParamsSchema("task_id", "result"),
		},
		{
			Name:        toolMarkTaskFailed,
			Description: "Mark a task as failed with the reason it cannot be completed.",
			Schema:      stringParamsSchema("task_id", "error"),
		},
		{
			Name:        toolDelegateToAgent,
			Description: "Hand the conversation to another agent by name.",
			Schema:      stringParamsSchema("agent"),
		},
		{
			Name:        toolPostMessage,
			Description: "Post a note to the conversation without ending any task.",
			Schema:      stringParamsSchema("message"),
		},
	}
}

func isEndTurnTool(name string) bool {
	switch name {
	case toolMarkTaskSuccessful, toolMarkTaskFailed, toolDelegateToAgent, toolPostMessage:
		return true
	default:
		return false
	}
}

// dispatcher executes the tool calls of one model reply. It is the single
// writer for task state during its turn.
type dispatcher struct {
	o           *Orchestrator
	runID       uuid.UUID
	turnID      uuid.UUID
	agent       api.Agent
	task        *Task
	tasks       map[string]*Task
	thread      *thread.Thread
	contextVars types.ContextVars
	tools       map[string]tool.Definition
	nextActor   api.Actor
}

func newDispatcher(o *Orchestrator, runID uuid.UUID, ag api.Agent, task *Task, byID map[string]*Task, turnThread *thread.Thread, tc *turnContext) *dispatcher {
	ordinary := make(map[string]tool.Definition, len(tc.tools))
	for _, def := range tc.tools {
		if !isEndTurnTool(def.Name) {
			ordinary[def.Name] = def
		}
	}
	return &dispatcher{
		o:           o,
		runID:       runID,
		turnID:      turnThread.ID(),
		agent:       ag,
		task:        task,
		tasks:       byID,
		thread:      turnThread,
		contextVars: tc.vars,
		tools:       ordinary,
	}
}

// dispatch runs every call of a tool-call reply. Ordinary tools go first so
// their results exist before any end-turn tool finalizes the task, even when
// the model emitted the turn-ending call earlier in the stream; within each
// group, calls run strictly in arrival order.
func (d *dispatcher) dispatch(ctx context.Context, msg messages.ToolCallMessage) error {
	var ordinary, endTurn []messages.ToolCallData
	for _, call := range msg.ToolCalls {
		if isEndTurnTool(call.Name) {
			endTurn = append(endTurn, call)
		} else {
			ordinary = append(ordinary, call)
		}
	}

	for _, call := range ordinary {
		if err := d.dispatchOrdinary(ctx, call); err != nil {
			return err
		}
	}
	for _, call := range endTurn {
		d.dispatchEndTurn(ctx, call)
	}
	return nil
}

func (d *dispatcher) emit(ctx context.Context, ev events.Event) {
	d.o.emit(ctx, ev)
}

func (d *dispatcher) now() strfmt.DateTime {
	return strfmt.DateTime(time.Now())
}

func (d *dispatcher) addToolResponse(ctx context.Context, call messages.ToolCallData, content string, isErr bool) {
	msg := messages.New().WithSender(d.agent.Name()).ToolResponse(call.ID, call.Name, content)
	msg.RunID = d.runID
	msg.TurnID = d.turnID
	d.thread.AddToolResponse(msg)

	d.emit(ctx, events.ToolResult{
		RunID:      d.runID,
		TurnID:     d.turnID,
		Timestamp:  d.now(),
		Sender:     d.agent.Name(),
		ToolName:   call.Name,
		ToolCallID: call.ID,
		Content:    content,
		IsError:    isErr,
	})
}

// failOrdinary serializes a tool fault into the conversation as a retryable
// failure. The error becomes data, never a run abort.
func (d *dispatcher) failOrdinary(ctx context.Context, call messages.ToolCallData, cause error) {
	d.addToolResponse(ctx, call, fmt.Sprintf("tool %s failed: %v", call.Name, cause), true)

	retry := messages.Message[messages.Retry]{
		RunID:   d.runID,
		TurnID:  d.turnID,
		Sender:  d.agent.Name(),
		Payload: messages.Retry{Error: cause, ToolName: call.Name, ToolCallID: call.ID},
	}
	thread.Add(d.thread, retry)

	if d.task != nil && !d.task.Status().Terminal() {
		d.task.noteToolFailure()
	}
	d.emit(ctx, events.ToolRetry{
		RunID:      d.runID,
		TurnID:     d.turnID,
		Timestamp:  d.now(),
		Sender:     d.agent.Name(),
		ToolName:   call.Name,
		ToolCallID: call.ID,
		Err:        cause,
		Attempt:    d.taskAttempts(),
	})
}

func (d *dispatcher) taskAttempts() int {
	if d.task == nil {
		return 0
	}
	return d.task.Attempts()
}

func (d *dispatcher) dispatchOrdinary(ctx context.Context, call messages.ToolCallData) error {
	d.emit(ctx, events.ToolCall{
		RunID:     d.runID,
		TurnID:    d.turnID,
		Timestamp: d.now(),
		Sender:    d.agent.Name(),
		Call:      call,
	})

	def, exists := d.tools[call.Name]
	if !exists {
		d.failOrdinary(ctx, call, fmt.Errorf("unknown tool %s", call.Name))
		return nil
	}

	args := buildArgList(call.Arguments, def.Parameters)
	result, err := callFunction(def.Function, args, d.contextVars)
	if err != nil {
		d.failOrdinary(ctx, call, err)
		return nil
	}

	if result.Actor != nil {
		d.nextActor = result.Actor
		d.addToolResponse(ctx, call, fmt.Sprintf(`{"assistant":%q}`, result.Actor.Name()), false)
		return nil
	}

	if result.ContextVariables != nil {
		maps.Copy(d.contextVars, result.ContextVariables)
	}
	d.addToolResponse(ctx, call, result.Value, false)
	return nil
}

func (d *dispatcher) dispatchEndTurn(ctx context.Context, call messages.ToolCallData) {
	args := gjson.Parse(call.Arguments)
	taskID := args.Get("task_id").String()

	d.emit(ctx, events.EndTurnToolCall{
		RunID:     d.runID,
		TurnID:    d.turnID,
		Timestamp: d.now(),
		Sender:    d.agent.Name(),
		Call:      call,
		TaskID:    taskID,
	})

	var result events.EndTurnToolResult
	switch call.Name {
	case toolMarkTaskSuccessful:
		result = d.markTaskSuccessful(taskID, args.Get("result").String())
	case toolMarkTaskFailed:
		result = d.markTaskFailed(taskID, args.Get("error").String())
	case toolDelegateToAgent:
		result = d.delegateToAgent(args.Get("agent").String())
	case toolPostMessage:
		result = d.postMessage(args.Get("message").String())
	}
	result.RunID = d.runID
	result.TurnID = d.turnID
	result.Timestamp = d.now()
	result.Sender = d.agent.Name()
	result.ToolName = call.Name

	d.emit(ctx, result)

	content := result.Content
	if content == "" {
		content = fmt.Sprintf("task %s is now %s", result.TaskID, result.Status)
	}
	msg := messages.New().WithSender(d.agent.Name()).ToolResponse(call.ID, call.Name, content)
	msg.RunID = d.runID
	msg.TurnID = d.turnID
	d.thread.AddToolResponse(msg)
}

func (d *dispatcher) resolveTask(taskID string) *Task {
	if taskID == "" {
		return d.task
	}
	return d.tasks[taskID]
}

func (d *dispatcher) markTaskSuccessful(taskID, rawResult string) events.EndTurnToolResult {
	t := d.resolveTask(taskID)
	if t == nil {
		return events.EndTurnToolResult{
			TaskID:  taskID,
			Content: fmt.Sprintf("unknown task %s", taskID),
			IsError: true,
		}
	}

	coerced := t.coerce(rawResult)
	if err := t.markSuccessful(coerced); err != nil {
		return events.EndTurnToolResult{
			TaskID:  t.ID(),
			Status:  string(t.Status()),
			Result:  err.Error(),
			Content: fmt.Sprintf("result rejected: %v", err),
			IsError: true,
		}
	}
	return events.EndTurnToolResult{
		TaskID: t.ID(),
		Status: string(TaskSuccessful),
		Result: coerced.Raw,
	}
}

func (d *dispatcher) markTaskFailed(taskID, reason string) events.EndTurnToolResult {
	t := d.resolveTask(taskID)
	if t == nil {
		return events.EndTurnToolResult{
			TaskID:  taskID,
			Content: fmt.Sprintf("unknown task %s", taskID),
			IsError: true,
		}
	}
	if err := t.markFailed(reason); err != nil {
		return events.EndTurnToolResult{
			TaskID:  t.ID(),
			Status:  string(t.Status()),
			Content: err.Error(),
			IsError: true,
		}
	}
	return events.EndTurnToolResult{
		TaskID: t.ID(),
		Status: string(TaskFailed),
		Result: reason,
	}
}

func (d *dispatcher) delegateToAgent(name string) events.EndTurnToolResult {
	next, ok := d.o.actors.Get(name)
	if !ok {
		next, ok = agent.Get(name)
	}
	if !ok {
		return events.EndTurnToolResult{
			Content: fmt.Sprintf("unknown agent %s", name),
			IsError: true,
		}
	}
	d.nextActor = next
	return events.EndTurnToolResult{
		Content: fmt.Sprintf("delegated to %s", name),
	}
}

func (d *dispatcher) postMessage(message string) events.EndTurnToolResult {
	msg := messages.New().WithSender(d.agent.Name()).AssistantMessage(message)
	msg.RunID = d.runID
	msg.TurnID = d.turnID
	d.thread.AddAssistantMessage(msg)
	return events.EndTurnToolResult{
		Content: "message posted",
	}
}

func buildArgList(arguments string, parameters map[string]string) []reflect.Value {
	args := gjson.Parse(arguments)
	targs := make([]string, len(parameters))
	for k, v := range parameters {
		ns := strings.TrimPrefix(k, "param")
		i, _ := strconv.Atoi(ns)
		if i < 0 || i >= len(targs) {
			continue
		}
		targs[i] = v
	}

	toolArgs := make([]reflect.Value, 0)
	for _, arg := range targs {
		if arg == "" {
			continue
		}

		val := args.Get(arg)
		if !val.Exists() {
			continue
		}

		toolArgs = append(toolArgs, reflect.ValueOf(val.Value()))
	}
	return toolArgs
}

type toolResult struct {
	Value            string
	Actor            api.Actor
	ContextVariables types.ContextVars
}

// callFunction invokes a tool through reflection, matching the decoded
// arguments positionally and injecting context variables by type. Panics
// surface as errors so a misbehaving tool cannot take the run down.
func callFunction(fn any, args []reflect.Value, contextVars types.ContextVars) (result toolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool panicked: %v", r)
		}
	}()

	if fn == nil {
		return toolResult{}, fmt.Errorf("tool has no function")
	}

	val := reflect.ValueOf(fn)
	vtpe := val.Type()

	numIn := vtpe.NumIn()
	callArgs := make([]reflect.Value, numIn)

	argIdx := 0
	for fi := 0; fi < numIn; fi++ {
		paramType := vtpe.In(fi)
		if reflectx.IsRefinedType[types.ContextVars](paramType) {
			callArgs[fi] = reflect.ValueOf(contextVars)
			continue
		}
		if argIdx < len(args) {
			vv := args[argIdx]
			argIdx++
			if vv.Type().ConvertibleTo(paramType) {
				callArgs[fi] = vv.Convert(paramType)
				continue
			}
		}
		callArgs[fi] = reflect.Zero(paramType)
	}

	results := val.Call(callArgs)
	if len(results) == 0 {
		return toolResult{}, nil
	}

	if len(results) > 1 {
		if e, ok := results[len(results)-1].Interface().(error); ok && e != nil {
			return toolResult{}, e
		}
	}

	res := results[0]
	if !res.IsValid() {
		return toolResult{}, nil
	}

	switch rv := res.Interface().(type) {
	case api.Actor:
		return toolResult{Value: fmt.Sprintf(`{"assistant":%q}`, rv.Name()), Actor: rv}, nil
	case error:
		return toolResult{}, rv
	case types.ContextVars:
		return toolResult{Value: "", ContextVariables: rv}, nil
	case string:
		return toolResult{Value: rv}, nil
	case time.Time:
		return toolResult{Value: rv.Format(time.RFC3339)}, nil
	case int, int8, int16, int32, int64:
		val := reflect.ValueOf(rv)
		return toolResult{Value: strconv.FormatInt(val.Int(), 10)}, nil
	case uint, uint8, uint16, uint32, uint64:
		val := reflect.ValueOf(rv)
		return toolResult{Value: strconv.FormatUint(val.Uint(), 10)}, nil
	case float32, float64:
		val := reflect.ValueOf(rv)
		return toolResult{Value: strconv.FormatFloat(val.Float(), 'f', -1, 64)}, nil
	case encoding.TextMarshaler:
		b, err := rv.MarshalText()
		if err != nil {
			slog.Error("Error marshalling function return", slogx.Error(err))
			return toolResult{}, err
		}
		return toolResult{Value: string(b)}, nil
	case fmt.Stringer:
		return toolResult{Value: rv.String()}, nil
	default:
		b, err := json.Marshal(rv)
		if err != nil {
			slog.Error("Error marshalling function return", slogx.Error(err))
			return toolResult{}, err
		}
		return toolResult{Value: string(b)}, nil
	}
}
