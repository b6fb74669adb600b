package provider

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/conclave-ai/conclave/messages"
	"github.com/conclave-ai/conclave/thread"
)

// AssemblerParams identifies the run a fragment stream belongs to. The thread
// supplies the turn ID and the checkpoint recorded on terminal events.
type AssemblerParams struct {
	RunID  uuid.UUID
	Thread *thread.Thread
	Meta   gjson.Result

	_ struct{}
}

type partKind int

const (
	partUnset partKind = iota
	partText
	partToolCall
)

// responsePart accumulates one part of a model response. A tool-call part may
// be provisional for most of its life: no call ID, no name, half a JSON
// document in the arguments. It still snapshots cleanly.
type responsePart struct {
	index     int
	kind      partKind
	text      strings.Builder
	callID    string
	name      strings.Builder
	arguments strings.Builder
}

// Assembler folds an ordered fragment stream into the provider event union.
// Every accepted fragment yields a Chunk carrying the complete-so-far
// snapshot of its part; when a later index arrives or Finish is called, the
// open part is sealed with its terminal Response. Snapshots are strictly
// growing and nothing is emitted for a part after its Response.
type Assembler struct {
	params AssemblerParams
	parts  []*responsePart
}

// NewAssembler returns an assembler for one model turn.
func NewAssembler(params AssemblerParams) *Assembler {
	return &Assembler{params: params}
}

func (a *Assembler) turnID() uuid.UUID {
	if a.params.Thread == nil {
		return uuid.Nil
	}
	return a.params.Thread.ID()
}

func (a *Assembler) checkpoint() thread.Checkpoint {
	if a.params.Thread == nil {
		return thread.Checkpoint{}
	}
	return a.params.Thread.Checkpoint()
}

// Add folds one fragment into the stream. It returns the events the fragment
// produced: zero or one Response for a part the fragment closed, followed by
// the snapshot Chunk for the fragment's own part.
func (a *Assembler) Add(frag Fragment) ([]StreamEvent, error) {
	if frag.Delta == nil {
		return nil, fmt.Errorf("fragment %d has no delta", frag.Index)
	}

	var out []StreamEvent
	current := a.current()
	switch {
	case current == nil || frag.Index > current.index:
		if current != nil {
			out = append(out, a.seal(current))
		}
		current = &responsePart{index: frag.Index}
		a.parts = append(a.parts, current)
	case frag.Index < current.index:
		return nil, fmt.Errorf("part %d is already complete", frag.Index)
	}

	if err := current.apply(frag.Delta); err != nil {
		return nil, err
	}

	out = append(out, a.snapshot(current))
	return out, nil
}

// Finish seals the open part, if any, and returns its terminal Response.
func (a *Assembler) Finish() []StreamEvent {
	current := a.current()
	if current == nil {
		return nil
	}
	event := a.seal(current)
	a.parts = nil
	return []StreamEvent{event}
}

func (a *Assembler) current() *responsePart {
	if len(a.parts) == 0 {
		return nil
	}
	return a.parts[len(a.parts)-1]
}

func (p *responsePart) apply(delta Delta) error {
	switch d := delta.(type) {
	case TextDelta:
		if p.kind == partToolCall {
			return fmt.Errorf("part %d is a tool call, got text delta", p.index)
		}
		p.kind = partText
		p.text.WriteString(d.Text)
	case ToolCallDelta:
		if p.kind == partText {
			return fmt.Errorf("part %d is text, got tool call delta", p.index)
		}
		p.kind = partToolCall
		if d.CallID != "" {
			p.callID = d.CallID
		}
		p.name.WriteString(d.Name)
		p.arguments.WriteString(d.Arguments)
	default:
		return fmt.Errorf("unknown delta type %T", delta)
	}
	return nil
}

func (p *responsePart) assistantMessage() messages.AssistantMessage {
	return messages.AssistantMessage{
		Content: messages.AssistantContentOrParts{Content: p.text.String()},
	}
}

func (p *responsePart) toolCallMessage() messages.ToolCallMessage {
	return messages.ToolCallMessage{
		ToolCalls: []messages.ToolCallData{{
			ID:        p.callID,
			Name:      p.name.String(),
			Arguments: p.arguments.String(),
		}},
	}
}

func (a *Assembler) snapshot(p *responsePart) StreamEvent {
	if p.kind == partToolCall {
		return Chunk[messages.ToolCallMessage]{
			RunID:     a.params.RunID,
			TurnID:    a.turnID(),
			Chunk:     p.toolCallMessage(),
			Timestamp: strfmt.DateTime(time.Now()),
			Meta:      a.params.Meta,
		}
	}
	return Chunk[messages.AssistantMessage]{
		RunID:     a.params.RunID,
		TurnID:    a.turnID(),
		Chunk:     p.assistantMessage(),
		Timestamp: strfmt.DateTime(time.Now()),
		Meta:      a.params.Meta,
	}
}

func (a *Assembler) seal(p *responsePart) StreamEvent {
	if p.kind == partToolCall {
		return Response[messages.ToolCallMessage]{
			RunID:      a.params.RunID,
			TurnID:     a.turnID(),
			Checkpoint: a.checkpoint(),
			Response:   p.toolCallMessage(),
			Timestamp:  strfmt.DateTime(time.Now()),
			Meta:       a.params.Meta,
		}
	}
	return Response[messages.AssistantMessage]{
		RunID:      a.params.RunID,
		TurnID:     a.turnID(),
		Checkpoint: a.checkpoint(),
		Response:   p.assistantMessage(),
		Timestamp:  strfmt.DateTime(time.Now()),
		Meta:       a.params.Meta,
	}
}
