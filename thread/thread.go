// Package thread keeps the ordered, append-only conversation history a run
// operates on. A Thread is owned by the caller across runs; during a run the
// orchestrator is its only writer. Turns work on a fork that is joined back
// once the turn commits, and checkpoints capture immutable snapshots for
// stream events.
package thread

import (
	"iter"
	"slices"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/conclave-ai/conclave/messages"
	"github.com/conclave-ai/conclave/pkg/uuidx"
)

// History is the ordered collection of type-erased messages in a thread.
type History []messages.Message[messages.ModelMessage]

// Len returns the number of messages in the history.
func (h History) Len() int {
	return len(h)
}

// Thread is an identified, append-only message history with usage accounting.
type Thread struct {
	id       uuid.UUID
	messages History
	initLen  int // length at fork time, used when joining back
	usage    Usage
}

// New creates an empty thread with a fresh identifier.
func New() *Thread {
	return &Thread{
		id:       uuidx.New(),
		messages: make(History, 0),
	}
}

// ID returns the thread identifier. A forked thread gets its own ID, which
// doubles as the turn identifier for the turn operating on the fork.
func (t *Thread) ID() uuid.UUID {
	return t.id
}

// Len returns the total number of messages.
func (t *Thread) Len() int {
	return t.messages.Len()
}

// TurnLen returns the number of messages appended since the fork point.
func (t *Thread) TurnLen() int {
	return len(t.messages) - t.initLen
}

// Messages returns a copy of the history.
func (t *Thread) Messages() History {
	return slices.Clone(t.messages)
}

// MessagesIter iterates the history without copying it.
func (t *Thread) MessagesIter() iter.Seq[messages.Message[messages.ModelMessage]] {
	return slices.Values(t.messages)
}

func erase[T messages.ModelMessage](m messages.Message[T]) messages.Message[messages.ModelMessage] {
	return messages.Message[messages.ModelMessage]{
		RunID:     m.RunID,
		TurnID:    m.TurnID,
		Payload:   m.Payload,
		Sender:    m.Sender,
		Timestamp: m.Timestamp,
		Meta:      m.Meta,
	}
}

// Add appends any message type in the model-message set.
func Add[T messages.ModelMessage](t *Thread, m messages.Message[T]) {
	t.messages = append(t.messages, erase(m))
}

// AddUserMessage appends a user prompt.
func (t *Thread) AddUserMessage(m messages.Message[messages.UserMessage]) {
	Add(t, m)
}

// AddAssistantMessage appends an assistant reply.
func (t *Thread) AddAssistantMessage(m messages.Message[messages.AssistantMessage]) {
	Add(t, m)
}

// AddToolCall appends a tool-call request.
func (t *Thread) AddToolCall(m messages.Message[messages.ToolCallMessage]) {
	Add(t, m)
}

// AddToolResponse appends a tool result.
func (t *Thread) AddToolResponse(m messages.Message[messages.ToolResponse]) {
	Add(t, m)
}

// Usage returns the accumulated token usage.
func (t *Thread) Usage() Usage {
	return t.usage
}

// AddUsage merges usage numbers into the thread's tally.
func (t *Thread) AddUsage(u Usage) {
	t.usage.Add(u)
}

// Fork creates a new thread seeded with a copy of the current history. The
// fork remembers its starting length so Join can append only what the turn
// added.
func (t *Thread) Fork() *Thread {
	return &Thread{
		id:       uuidx.New(),
		messages: slices.Clone(t.messages),
		initLen:  t.Len(),
	}
}

// Join appends the messages b gained after it was forked, along with its usage.
func (t *Thread) Join(b *Thread) {
	t.messages = append(t.messages, b.messages[b.initLen:]...)
	t.usage.Add(b.usage)
}

// Checkpoint snapshots the current state for embedding in stream events.
func (t *Thread) Checkpoint() Checkpoint {
	return Checkpoint{
		id:       t.id,
		messages: slices.Clone(t.messages),
		usage:    t.usage,
		initLen:  t.initLen,
	}
}

// Checkpoint is an immutable snapshot of a thread at a point in time.
type Checkpoint struct {
	id       uuid.UUID
	messages History
	usage    Usage
	initLen  int
}

// ID returns the identifier of the thread the checkpoint was taken from.
func (c *Checkpoint) ID() uuid.UUID {
	return c.id
}

// Messages returns a copy of the snapshotted history.
func (c *Checkpoint) Messages() History {
	return slices.Clone(c.messages)
}

// Usage returns the usage recorded at snapshot time.
func (c *Checkpoint) Usage() Usage {
	return c.usage
}

// MergeInto appends the checkpoint's post-fork messages and usage into other.
func (c *Checkpoint) MergeInto(other *Thread) {
	other.messages = append(other.messages, c.messages[c.initLen:]...)
	other.usage.Add(c.usage)
	if other.id == uuid.Nil {
		other.id = c.id
	}
}

type checkpointJSON struct {
	ID       string  `json:"id"`
	Messages History `json:"messages"`
	Usage    Usage   `json:"usage"`
	InitLen  int     `json:"init_len"`
}

func (c Checkpoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(checkpointJSON{
		ID:       c.id.String(),
		Messages: c.messages,
		Usage:    c.usage,
		InitLen:  c.initLen,
	})
}

func (c *Checkpoint) UnmarshalJSON(data []byte) error {
	var tmp checkpointJSON
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	id, err := uuid.Parse(tmp.ID)
	if err != nil {
		return err
	}
	c.id = id
	c.messages = tmp.Messages
	c.usage = tmp.Usage
	c.initLen = tmp.InitLen
	return nil
}
