package conclave

import (
	"fmt"
	"reflect"

	"github.com/fogfish/opts"
	json "github.com/goccy/go-json"
	"github.com/invopop/jsonschema"
	"github.com/tidwall/gjson"

	"github.com/conclave-ai/conclave/pkg/jsonx"
	"github.com/conclave-ai/conclave/pkg/uuidx"
	"github.com/conclave-ai/conclave/tool"
	"github.com/conclave-ai/conclave/types"
)

// TaskStatus is the lifecycle state of a task. Successful and failed are
// absorbing: no call moves a task out of them.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskRunning    TaskStatus = "running"
	TaskSuccessful TaskStatus = "successful"
	TaskFailed     TaskStatus = "failed"
)

// Terminal reports whether the status is absorbing.
func (s TaskStatus) Terminal() bool {
	return s == TaskSuccessful || s == TaskFailed
}

// Task is a unit of work with a typed result expectation. Only the dispatch
// path inside the orchestrator loop mutates a task once a run starts; that
// single-writer rule is what keeps the state machine free of locks.
type Task struct {
	id           string
	instructions string
	dependsOn    []string
	assignedTo   string
	context      types.ContextVars
	tools        []tool.Definition

	schema       *jsonschema.Schema
	nullable     bool
	stringResult bool

	status        TaskStatus
	result        gjson.Result
	failureReason string
	attempts      int
}

var (
	// WithTaskID overrides the generated task ID.
	WithTaskID = opts.ForName[Task, string]("id")
	// AssignedTo pins the task to a named actor.
	AssignedTo = opts.ForName[Task, string]("assignedTo")
	// WithTaskContext seeds the context variables the agent sees for this task.
	WithTaskContext = opts.ForName[Task, types.ContextVars]("context")
)

// DependsOn declares tasks that must be successful before this one is
// eligible for a turn.
func DependsOn(id string, extraIDs ...string) opts.Option[Task] {
	return opts.Type[Task](func(t *Task) error {
		t.dependsOn = append(t.dependsOn, id)
		t.dependsOn = append(t.dependsOn, extraIDs...)
		return nil
	})
}

// WithTaskTools adds tools available only while this task has the turn.
func WithTaskTools(def tool.Definition, extraDefs ...tool.Definition) opts.Option[Task] {
	return opts.Type[Task](func(t *Task) error {
		t.tools = append(t.tools, def)
		t.tools = append(t.tools, extraDefs...)
		return nil
	})
}

// resultSchema derives the JSON schema for T. Plain strings and gjson.Result
// opt out: they accept any payload.
func resultSchema[T any]() *jsonschema.Schema {
	var t T
	if _, isGjsonResult := any(t).(gjson.Result); isGjsonResult {
		return nil
	}

	typ := reflect.TypeFor[T]()
	if typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	if typ.Kind() == reflect.String {
		return nil
	}

	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	return reflector.ReflectFromType(typ)
}

// taskUnmarshal decodes a stored result payload into T. Strings decode via
// gjson so quoted and bare text both come out as the text itself; everything
// else goes through regular JSON unmarshaling, which maps a null payload for
// a pointer type to a nil pointer.
func taskUnmarshal[T any]() func([]byte) (T, error) {
	var t T
	if _, isGjsonResult := any(t).(gjson.Result); isGjsonResult {
		return func(data []byte) (T, error) {
			return any(gjson.ParseBytes(data)).(T), nil
		}
	}
	if reflect.TypeFor[T]().Kind() == reflect.String {
		return func(data []byte) (T, error) {
			parsed := gjson.ParseBytes(data)
			if parsed.Type == gjson.String {
				return any(parsed.String()).(T), nil
			}
			return any(string(data)).(T), nil
		}
	}
	return func(data []byte) (T, error) {
		var v T
		err := json.Unmarshal(data, &v)
		return v, err
	}
}

// NewTask creates a task whose result must satisfy the schema derived from
// T. A pointer T marks the task nullable: a null result is accepted and
// decodes to a nil pointer.
func NewTask[T any](instructions string, options ...opts.Option[Task]) *Task {
	t := &Task{
		instructions: instructions,
		status:       TaskPending,
		schema:       resultSchema[T](),
		nullable:     reflect.TypeFor[T]().Kind() == reflect.Pointer,
		stringResult: reflect.TypeFor[T]().Kind() == reflect.String,
		context:      types.ContextVars{},
	}
	if err := opts.Apply(t, options); err != nil {
		panic(err)
	}
	if t.id == "" {
		t.id = uuidx.NewString()
	}
	return t
}

// ResultOf decodes the task's recorded result as T. It fails when the task
// is not successful.
func ResultOf[T any](t *Task) (T, error) {
	var zero T
	if t.status != TaskSuccessful {
		return zero, fmt.Errorf("task %s is %s, not successful", t.id, t.status)
	}
	return taskUnmarshal[T]()([]byte(t.result.Raw))
}

func (t *Task) ID() string                 { return t.id }
func (t *Task) Instructions() string       { return t.instructions }
func (t *Task) DependsOn() []string        { return t.dependsOn }
func (t *Task) AssignedTo() string         { return t.assignedTo }
func (t *Task) Context() types.ContextVars { return t.context }
func (t *Task) Tools() []tool.Definition   { return t.tools }
func (t *Task) Status() TaskStatus         { return t.status }
func (t *Task) Attempts() int              { return t.attempts }

// Result returns the raw recorded result. It only exists once the task is
// successful.
func (t *Task) Result() gjson.Result { return t.result }

// FailureReason is set only when the task is failed.
func (t *Task) FailureReason() string { return t.failureReason }

// Schema exposes the derived result schema, nil for opaque results.
func (t *Task) Schema() *jsonschema.Schema { return t.schema }

// eligible reports whether every dependency is successful.
func (t *Task) eligible(byID map[string]*Task) bool {
	for _, dep := range t.dependsOn {
		d, ok := byID[dep]
		if !ok || d.status != TaskSuccessful {
			return false
		}
	}
	return true
}

func (t *Task) markRunning() {
	if t.status == TaskPending {
		t.status = TaskRunning
	}
}

// coerce turns the textual result a model supplied into the stored payload.
// Tasks with opaque string results keep the text verbatim; everything else
// is parsed as JSON when it is JSON and quoted otherwise.
func (t *Task) coerce(raw string) gjson.Result {
	if t.stringResult {
		return gjson.Parse(string(quoteJSON(raw)))
	}
	if gjson.Valid(raw) {
		return gjson.Parse(raw)
	}
	return gjson.Parse(string(quoteJSON(raw)))
}

func quoteJSON(s string) []byte {
	b, _ := json.Marshal(s)
	return b
}

// markSuccessful validates and records the result. On validation failure the
// task stays running, gains exactly one validation notice in its context,
// and the attempt counts against the retry budget.
func (t *Task) markSuccessful(result gjson.Result) error {
	if t.status.Terminal() {
		return fmt.Errorf("task %s is already %s", t.id, t.status)
	}

	if result.Type == gjson.Null {
		if !t.nullable {
			err := fmt.Errorf("task %s does not accept a null result", t.id)
			t.noteValidationFailure(err)
			return err
		}
		t.result = result
		t.status = TaskSuccessful
		return nil
	}

	if t.schema != nil {
		if err := jsonx.Validate(t.schema, result); err != nil {
			t.noteValidationFailure(err)
			return err
		}
	}

	t.result = result
	t.status = TaskSuccessful
	return nil
}

// markFailed records an unconditional failure. Terminal states stay put.
func (t *Task) markFailed(reason string) error {
	if t.status.Terminal() {
		return fmt.Errorf("task %s is already %s", t.id, t.status)
	}
	t.failureReason = reason
	t.status = TaskFailed
	return nil
}

// noteValidationFailure appends one structured notice to the task context
// and burns an attempt.
func (t *Task) noteValidationFailure(cause error) {
	t.attempts++
	if t.context == nil {
		t.context = types.ContextVars{}
	}
	notices, _ := t.context["validation_notices"].([]string)
	t.context["validation_notices"] = append(notices, cause.Error())
}

// noteToolFailure burns an attempt for a failed ordinary tool call made
// while this task held the turn.
func (t *Task) noteToolFailure() {
	t.attempts++
}

// restore force-sets terminal state during log replay, bypassing validation.
// The recorded events are the source of truth there.
func (t *Task) restore(status TaskStatus, result gjson.Result, reason string) {
	t.status = status
	t.result = result
	t.failureReason = reason
}
