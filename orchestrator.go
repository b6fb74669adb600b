package conclave

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/fogfish/opts"
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"

	"github.com/conclave-ai/conclave/agent"
	"github.com/conclave-ai/conclave/api"
	"github.com/conclave-ai/conclave/events"
	"github.com/conclave-ai/conclave/messages"
	"github.com/conclave-ai/conclave/pkg/uuidx"
	"github.com/conclave-ai/conclave/provider"
	"github.com/conclave-ai/conclave/thread"
	"github.com/conclave-ai/conclave/types"
)

// Fatal faults. Everything else a run encounters is recorded as data on the
// tasks and the event log.
var (
	// ErrMaxTurnsExceeded reports that live tasks remained when the turn
	// allowance ran out.
	ErrMaxTurnsExceeded = errors.New("maximum number of turns exceeded")

	// ErrNoEligibleTask reports a dependency configuration no turn can make
	// progress on.
	ErrNoEligibleTask = errors.New("live tasks remain but none is eligible")

	// ErrUnknownActor reports that no actor could be resolved for a turn.
	ErrUnknownActor = errors.New("no actor can take the turn")
)

// RunState tracks the orchestrator lifecycle across Run.
type RunState int8

const (
	RunNotStarted RunState = iota
	RunRunning
	RunCompleted
	RunFailedFatally
)

func (s RunState) String() string {
	switch s {
	case RunNotStarted:
		return "not-started"
	case RunRunning:
		return "running"
	case RunCompleted:
		return "completed"
	case RunFailedFatally:
		return "failed-fatally"
	default:
		return fmt.Sprintf("RunState(%d)", int8(s))
	}
}

// Orchestrator drives a sequential turn loop over a set of tasks until every
// task is terminal. It is the single writer of task state and of its thread
// while Run is in flight; observation happens through the hook.
type Orchestrator struct {
	name         string
	actors       *haxmap.Map[string, api.Actor]
	defaultActor string
	thread       *thread.Thread
	hook         events.Hook
	contextVars  types.ContextVars
	maxTurns     int
	retryBudget  int
	turnTimeout  time.Duration
	stream       bool

	mu       sync.Mutex
	state    RunState
	queued   []string
	turns    int
	delegate api.Actor
	// delegateTaskID scopes a pending hand-off to the task whose turn
	// produced it.
	delegateTaskID string
}

var (
	// Name sets the orchestrator's name, recorded on run events.
	Name = opts.ForName[Orchestrator, string]("name")

	// DefaultActor names the actor that takes turns for unassigned tasks.
	DefaultActor = opts.ForName[Orchestrator, string]("defaultActor")

	// WithThread seeds the run with an existing conversation.
	WithThread = opts.ForName[Orchestrator, *thread.Thread]("thread")

	// MaxTurns caps the number of turns a single Run may take.
	MaxTurns = opts.ForName[Orchestrator, int]("maxTurns")

	// RetryBudget caps attempts per task before the orchestrator forces
	// failure.
	RetryBudget = opts.ForName[Orchestrator, int]("retryBudget")

	// TurnTimeout bounds each model call with a context deadline.
	TurnTimeout = opts.ForName[Orchestrator, time.Duration]("turnTimeout")

	// Streaming requests incremental delivery from providers that support it.
	Streaming = opts.ForName[Orchestrator, bool]("stream")

	// WithContextVars seeds the run-level context variables.
	WithContextVars = opts.ForName[Orchestrator, types.ContextVars]("contextVars")
)

// Actors registers actors the orchestrator can assign turns to, keyed by name.
func Actors(actor api.Actor, extraActors ...api.Actor) opts.Option[Orchestrator] {
	return opts.Type[Orchestrator](func(o *Orchestrator) error {
		o.actors.Set(actor.Name(), actor)
		for _, a := range extraActors {
			o.actors.Set(a.Name(), a)
		}
		return nil
	})
}

// WithHook attaches event observers. Multiple hooks fan out in order.
func WithHook(hook events.Hook, extraHooks ...events.Hook) opts.Option[Orchestrator] {
	return opts.Type[Orchestrator](func(o *Orchestrator) error {
		all := append([]events.Hook{o.hook, hook}, extraHooks...)
		o.hook = events.Fanout(all...)
		return nil
	})
}

// New creates an orchestrator. Without options it has an unlimited turn
// allowance, a retry budget of 3, a fresh thread, and no observers.
func New(options ...opts.Option[Orchestrator]) *Orchestrator {
	o := &Orchestrator{
		name:        "conclave",
		actors:      haxmap.New[string, api.Actor](),
		hook:        events.NoopHook{},
		contextVars: types.ContextVars{},
		maxTurns:    math.MaxInt,
		retryBudget: 3,
	}
	if err := opts.Apply(o, options); err != nil {
		panic(err)
	}
	if o.thread == nil {
		o.thread = thread.New()
	}
	return o
}

// Thread returns the conversation the orchestrator appends to.
func (o *Orchestrator) Thread() *thread.Thread {
	return o.thread
}

// State reports the lifecycle state of the most recent Run.
func (o *Orchestrator) State() RunState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Turns reports how many turns the most recent Run has taken.
func (o *Orchestrator) Turns() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.turns
}

// QueueUserMessage schedules a caller prompt for delivery at the start of the
// next turn.
func (o *Orchestrator) QueueUserMessage(content string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.queued = append(o.queued, content)
}

func (o *Orchestrator) emit(ctx context.Context, event events.Event) {
	events.Dispatch(ctx, o.hook, event)
}

func now() strfmt.DateTime {
	return strfmt.DateTime(time.Now())
}

// Run executes turns until every task reaches a terminal state. Validation
// and tool faults never abort a run; configuration errors, transport faults,
// and turn exhaustion do, after an orchestrator-exception event.
func (o *Orchestrator) Run(ctx context.Context, tasks ...*Task) error {
	if len(tasks) == 0 {
		return fmt.Errorf("orchestrator %s has no tasks to run", o.name)
	}

	o.mu.Lock()
	o.state = RunRunning
	o.turns = 0
	o.delegate = nil
	o.delegateTaskID = ""
	o.mu.Unlock()

	runID := uuidx.New()
	byID := make(map[string]*Task, len(tasks))
	taskIDs := make([]string, 0, len(tasks))
	for _, t := range tasks {
		byID[t.ID()] = t
		taskIDs = append(taskIDs, t.ID())
	}

	o.emit(ctx, events.OrchestratorStart{
		RunID:        runID,
		Timestamp:    now(),
		Orchestrator: o.name,
		TaskIDs:      taskIDs,
	})

	for {
		if err := ctx.Err(); err != nil {
			return o.fatal(ctx, runID, uuid.Nil, err)
		}

		task := o.selectEligible(tasks, byID)
		if task == nil {
			if countLive(tasks) == 0 {
				break
			}
			return o.fatal(ctx, runID, uuid.Nil, ErrNoEligibleTask)
		}

		o.mu.Lock()
		turnsTaken := o.turns
		o.mu.Unlock()
		if turnsTaken >= o.maxTurns {
			return o.fatal(ctx, runID, uuid.Nil, fmt.Errorf("%w after %d turns", ErrMaxTurnsExceeded, turnsTaken))
		}

		ag, err := o.resolveActor(task)
		if err != nil {
			return o.fatal(ctx, runID, uuid.Nil, err)
		}

		task.markRunning()
		if err := o.runTurn(ctx, runID, ag, task, tasks, byID); err != nil {
			return o.fatal(ctx, runID, uuid.Nil, err)
		}

		o.mu.Lock()
		o.turns++
		o.mu.Unlock()
	}

	o.mu.Lock()
	o.state = RunCompleted
	turns := o.turns
	o.mu.Unlock()

	o.emit(ctx, events.OrchestratorEnd{
		RunID:     runID,
		Timestamp: now(),
		Turns:     turns,
	})
	return nil
}

func (o *Orchestrator) fatal(ctx context.Context, runID, turnID uuid.UUID, err error) error {
	o.mu.Lock()
	o.state = RunFailedFatally
	o.mu.Unlock()

	o.emit(ctx, events.OrchestratorException{
		RunID:     runID,
		TurnID:    turnID,
		Timestamp: now(),
		Err:       err,
	})
	return err
}

func countLive(tasks []*Task) int {
	live := 0
	for _, t := range tasks {
		if !t.Status().Terminal() {
			live++
		}
	}
	return live
}

// selectEligible picks the first live task, in submission order, whose
// dependencies are all successful.
func (o *Orchestrator) selectEligible(tasks []*Task, byID map[string]*Task) *Task {
	for _, t := range tasks {
		if t.Status().Terminal() {
			continue
		}
		if t.eligible(byID) {
			return t
		}
	}
	return nil
}

// resolveActor picks who takes the turn for task: a pending hand-off scoped
// to the task, its assignee, the default actor, or the sole registered actor.
// Composites are resolved member by member until a concrete agent holds the
// turn.
func (o *Orchestrator) resolveActor(task *Task) (api.Agent, error) {
	o.mu.Lock()
	delegate := o.delegate
	delegateTaskID := o.delegateTaskID
	o.mu.Unlock()

	var actor api.Actor
	switch {
	case delegate != nil && delegateTaskID == task.ID():
		actor = delegate
	case task.AssignedTo() != "":
		name := task.AssignedTo()
		found, ok := o.actors.Get(name)
		if !ok {
			found, ok = agent.Get(name)
		}
		if !ok {
			return nil, fmt.Errorf("%w: task %s is assigned to unknown actor %s", ErrUnknownActor, task.ID(), name)
		}
		actor = found
	case o.defaultActor != "":
		found, ok := o.actors.Get(o.defaultActor)
		if !ok {
			return nil, fmt.Errorf("%w: default actor %s is not registered", ErrUnknownActor, o.defaultActor)
		}
		actor = found
	case o.actors.Len() == 1:
		o.actors.ForEach(func(_ string, a api.Actor) bool {
			actor = a
			return false
		})
	default:
		return nil, fmt.Errorf("%w: task %s has no assignee and no default actor is set", ErrUnknownActor, task.ID())
	}

	for i := 0; i < 16; i++ {
		if ag, ok := actor.(api.Agent); ok {
			return ag, nil
		}
		comp, ok := actor.(api.Composite)
		if !ok {
			return nil, fmt.Errorf("%w: %s is neither an agent nor a composite", ErrUnknownActor, actor.Name())
		}
		actor = comp.Select()
	}
	return nil, fmt.Errorf("%w: composite selection did not terminate", ErrUnknownActor)
}

func (o *Orchestrator) drainQueued(ctx context.Context, runID, turnID uuid.UUID, fork *thread.Thread) {
	o.mu.Lock()
	queued := o.queued
	o.queued = nil
	o.mu.Unlock()

	for _, content := range queued {
		msg := messages.New().UserPrompt(content)
		msg.RunID = runID
		msg.TurnID = turnID
		fork.AddUserMessage(msg)

		o.emit(ctx, events.UserMessage{
			RunID:     runID,
			TurnID:    turnID,
			Timestamp: now(),
			Message:   msg,
		})
	}
}

// runTurn executes one actor turn on a fork of the thread. The fork is joined
// back only after the model call and tool dispatch complete, so a fatal fault
// mid-turn leaves the owning thread untouched past its committed history.
func (o *Orchestrator) runTurn(ctx context.Context, runID uuid.UUID, ag api.Agent, task *Task, tasks []*Task, byID map[string]*Task) error {
	fork := o.thread.Fork()
	turnID := fork.ID()

	o.emit(ctx, events.ActorStartTurn{
		RunID:     runID,
		TurnID:    turnID,
		Timestamp: now(),
		Actor:     ag.Name(),
		TaskID:    task.ID(),
	})

	o.drainQueued(ctx, runID, turnID, fork)

	o.mu.Lock()
	baseVars := o.contextVars
	o.mu.Unlock()

	tc, err := newTurnContext(ag, task, tasks, baseVars)
	if err != nil {
		return err
	}

	turnCtx := ctx
	if o.turnTimeout > 0 {
		var cancel context.CancelFunc
		turnCtx, cancel = context.WithTimeout(ctx, o.turnTimeout)
		defer cancel()
	}

	model := ag.Model()
	stream, err := model.Provider().ChatCompletion(turnCtx, provider.CompletionParams{
		RunID:        runID,
		Instructions: tc.Instructions(),
		Thread:       fork,
		Stream:       o.stream,
		Model:        model,
		Tools:        tc.tools,
		ToolServers:  tc.servers,
	})
	if err != nil {
		return err
	}

	d := newDispatcher(o, runID, ag, task, byID, fork, tc)
	if err := o.consume(turnCtx, stream, d); err != nil {
		return err
	}

	o.enforceRetryBudget(ctx, d, task)

	o.thread.Join(fork)

	o.mu.Lock()
	o.contextVars = d.contextVars
	if d.nextActor != nil {
		o.delegate = d.nextActor
		o.delegateTaskID = task.ID()
	} else if o.delegateTaskID == task.ID() && task.Status().Terminal() {
		o.delegate = nil
		o.delegateTaskID = ""
	}
	o.mu.Unlock()

	o.emit(ctx, events.ActorEndTurn{
		RunID:     runID,
		TurnID:    turnID,
		Timestamp: now(),
		Actor:     ag.Name(),
	})
	return nil
}

// consume forwards a provider stream into thread writes, events, and tool
// dispatch. Assistant chunks are provider progress only; tool-call chunks
// surface as delta events so observers can render calls as they form. Tool
// calls are collected across the whole reply and dispatched once the stream
// closes, so ordinary calls run before end-turn calls no matter how the
// reply was split into parts.
func (o *Orchestrator) consume(ctx context.Context, stream <-chan provider.StreamEvent, d *dispatcher) error {
	var pending []messages.ToolCallData
	for ev := range stream {
		switch e := ev.(type) {
		case provider.Delim:
		case provider.Error:
			return e.Err
		case provider.Chunk[messages.AssistantMessage]:
		case provider.Chunk[messages.ToolCallMessage]:
			o.emit(ctx, events.ToolCallDelta{
				RunID:     e.RunID,
				TurnID:    e.TurnID,
				Timestamp: now(),
				Sender:    d.agent.Name(),
				Snapshot:  e.Chunk,
			})
		case provider.Response[messages.AssistantMessage]:
			var msg messages.Message[messages.AssistantMessage]
			provider.ResponseToMessage(&msg, e)
			msg.Sender = d.agent.Name()
			d.thread.AddAssistantMessage(msg)

			o.emit(ctx, events.AgentMessage{
				RunID:     e.RunID,
				TurnID:    e.TurnID,
				Timestamp: now(),
				Sender:    d.agent.Name(),
				Message:   msg,
			})
		case provider.Response[messages.ToolCallMessage]:
			var msg messages.Message[messages.ToolCallMessage]
			provider.ResponseToMessage(&msg, e)
			msg.Sender = d.agent.Name()
			d.thread.AddToolCall(msg)

			pending = append(pending, msg.Payload.ToolCalls...)
		default:
			return fmt.Errorf("unexpected stream event %T", ev)
		}
	}

	if len(pending) > 0 {
		return d.dispatch(ctx, messages.ToolCallMessage{ToolCalls: pending})
	}
	return nil
}

// enforceRetryBudget force-fails a task whose attempts went past the budget.
// The forced failure is recorded like a mark-task-failed result so replay
// reconstructs the same terminal state.
func (o *Orchestrator) enforceRetryBudget(ctx context.Context, d *dispatcher, task *Task) {
	if task.Status().Terminal() || task.Attempts() <= o.retryBudget {
		return
	}

	reason := fmt.Sprintf("retry budget exhausted after %d attempts", task.Attempts())
	if err := task.markFailed(reason); err != nil {
		return
	}
	o.emit(ctx, events.EndTurnToolResult{
		RunID:     d.runID,
		TurnID:    d.turnID,
		Timestamp: now(),
		Sender:    d.agent.Name(),
		ToolName:  toolMarkTaskFailed,
		TaskID:    task.ID(),
		Status:    string(TaskFailed),
		Result:    reason,
	})
}
