package messages

import (
	"fmt"
	"time"

	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ModelMessage is the closed set of payloads a thread can hold.
type ModelMessage interface {
	message()
}

// Request marks payloads that flow toward the model.
type Request interface {
	ModelMessage
	request()
}

// Response marks payloads produced by the model.
type Response interface {
	ModelMessage
	response()
}

// Message is the envelope shared by every entry in a thread. Payload identity
// is compile-time checked through the type parameter; run and turn IDs tie
// the entry back to the orchestration that produced it.
type Message[T ModelMessage] struct {
	RunID     uuid.UUID       `json:"run_id"`
	TurnID    uuid.UUID       `json:"turn_id"`
	Payload   T               `json:"payload"`
	Sender    string          `json:"sender,omitempty"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
	Meta      gjson.Result    `json:"meta,omitempty"`
}

// InstructionsMessage carries rendered system instructions.
type InstructionsMessage struct {
	Content string `json:"content"`
}

func (InstructionsMessage) message() {}

// UserMessage is a prompt from the caller or a task introduction.
type UserMessage struct {
	Content ContentOrParts `json:"content"`
}

func (UserMessage) message() {}
func (UserMessage) request() {}

// AssistantMessage is a model reply that does not request tool use.
type AssistantMessage struct {
	Content AssistantContentOrParts `json:"content"`
	Refusal string                  `json:"refusal,omitempty"`
}

func (AssistantMessage) message()  {}
func (AssistantMessage) response() {}

// ToolCallData is a single requested invocation: the call ID assigned by the
// model, the tool name, and the raw JSON arguments.
type ToolCallData struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCallMessage is a model reply requesting one or more tool invocations.
type ToolCallMessage struct {
	ToolCalls []ToolCallData `json:"tool_calls"`
}

func (ToolCallMessage) message()  {}
func (ToolCallMessage) response() {}

// ToolResponse reports the outcome of a dispatched tool call back to the model.
type ToolResponse struct {
	ToolName   string `json:"tool_name"`
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
}

func (ToolResponse) message() {}
func (ToolResponse) request() {}

// Retry tells the model a call failed and may be attempted again.
type Retry struct {
	Error      error  `json:"-"`
	ToolName   string `json:"tool_name,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty"`
}

func (Retry) message() {}
func (Retry) request() {}

// Builder assembles message envelopes with a shared sender and timestamp.
type Builder struct {
	sender    string
	timestamp strfmt.DateTime
}

// New starts a message builder stamped with the current time.
func New() Builder {
	return Builder{timestamp: strfmt.DateTime(time.Now())}
}

// WithSender sets the sender recorded on built messages.
func (b Builder) WithSender(sender string) Builder {
	b.sender = sender
	return b
}

// WithTimestamp overrides the builder's timestamp.
func (b Builder) WithTimestamp(ts strfmt.DateTime) Builder {
	b.timestamp = ts
	return b
}

// UserPrompt builds a plain-text user message.
func (b Builder) UserPrompt(content string) Message[UserMessage] {
	return Message[UserMessage]{
		Payload:   UserMessage{Content: ContentOrParts{Content: content}},
		Sender:    b.sender,
		Timestamp: b.timestamp,
	}
}

// UserPromptParts builds a multi-part user message.
func (b Builder) UserPromptParts(parts ...ContentPart) Message[UserMessage] {
	return Message[UserMessage]{
		Payload:   UserMessage{Content: ContentOrParts{Parts: parts}},
		Sender:    b.sender,
		Timestamp: b.timestamp,
	}
}

// AssistantMessage builds a plain-text assistant message.
func (b Builder) AssistantMessage(content string) Message[AssistantMessage] {
	return Message[AssistantMessage]{
		Payload:   AssistantMessage{Content: AssistantContentOrParts{Content: content}},
		Sender:    b.sender,
		Timestamp: b.timestamp,
	}
}

// ToolCall builds a tool-call message from the given calls.
func (b Builder) ToolCall(calls ...ToolCallData) Message[ToolCallMessage] {
	return Message[ToolCallMessage]{
		Payload:   ToolCallMessage{ToolCalls: calls},
		Sender:    b.sender,
		Timestamp: b.timestamp,
	}
}

// ToolResponse builds a tool-response message for the given call.
func (b Builder) ToolResponse(callID, toolName, content string) Message[ToolResponse] {
	return Message[ToolResponse]{
		Payload:   ToolResponse{ToolCallID: callID, ToolName: toolName, Content: content},
		Sender:    b.sender,
		Timestamp: b.timestamp,
	}
}

// Instructions builds an instructions message.
func (b Builder) Instructions(content string) Message[InstructionsMessage] {
	return Message[InstructionsMessage]{
		Payload:   InstructionsMessage{Content: content},
		Sender:    b.sender,
		Timestamp: b.timestamp,
	}
}

func payloadKind(p ModelMessage) string {
	switch p.(type) {
	case InstructionsMessage:
		return "instructions"
	case UserMessage:
		return "user"
	case AssistantMessage:
		return "assistant"
	case ToolCallMessage:
		return "tool_call"
	case ToolResponse:
		return "tool_response"
	case Retry:
		return "retry"
	default:
		return ""
	}
}

// MarshalJSON writes the envelope with a kind discriminator so that erased
// Message[ModelMessage] values survive a round trip.
func (m Message[T]) MarshalJSON() ([]byte, error) {
	kind := payloadKind(m.Payload)
	if kind == "" {
		return nil, fmt.Errorf("unknown payload type %T", m.Payload)
	}

	out := []byte(`{}`)
	var err error
	if out, err = sjson.SetBytes(out, "kind", kind); err != nil {
		return nil, err
	}
	if out, err = sjson.SetBytes(out, "run_id", m.RunID.String()); err != nil {
		return nil, err
	}
	if out, err = sjson.SetBytes(out, "turn_id", m.TurnID.String()); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(m.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	if out, err = sjson.SetRawBytes(out, "payload", payload); err != nil {
		return nil, err
	}
	if m.Sender != "" {
		if out, err = sjson.SetBytes(out, "sender", m.Sender); err != nil {
			return nil, err
		}
	}
	if !m.Timestamp.IsZero() {
		if out, err = sjson.SetBytes(out, "timestamp", m.Timestamp.String()); err != nil {
			return nil, err
		}
	}
	if m.Meta.Exists() {
		if out, err = sjson.SetRawBytes(out, "meta", []byte(m.Meta.Raw)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// UnmarshalJSON restores an envelope, resolving the payload type from the
// kind discriminator. Decoding fails when the encoded kind cannot be
// assigned to T.
func (m *Message[T]) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}

	if rid := gjson.GetBytes(data, "run_id"); rid.Exists() {
		if err := m.RunID.UnmarshalText([]byte(rid.String())); err != nil {
			return fmt.Errorf("invalid run_id: %w", err)
		}
	}
	if tid := gjson.GetBytes(data, "turn_id"); tid.Exists() {
		if err := m.TurnID.UnmarshalText([]byte(tid.String())); err != nil {
			return fmt.Errorf("invalid turn_id: %w", err)
		}
	}
	m.Sender = gjson.GetBytes(data, "sender").String()
	if ts := gjson.GetBytes(data, "timestamp"); ts.Exists() {
		if err := m.Timestamp.UnmarshalText([]byte(ts.String())); err != nil {
			return fmt.Errorf("invalid timestamp: %w", err)
		}
	}
	if meta := gjson.GetBytes(data, "meta"); meta.Exists() {
		m.Meta = meta
	}

	kind := gjson.GetBytes(data, "kind").String()
	raw := []byte(gjson.GetBytes(data, "payload").Raw)
	payload, err := decodePayload(kind, raw)
	if err != nil {
		return err
	}
	typed, ok := payload.(T)
	if !ok {
		return fmt.Errorf("payload kind %q does not match message type", kind)
	}
	m.Payload = typed
	return nil
}

func decodePayload(kind string, raw []byte) (ModelMessage, error) {
	switch kind {
	case "instructions":
		var p InstructionsMessage
		err := json.Unmarshal(raw, &p)
		return p, err
	case "user":
		var p UserMessage
		err := json.Unmarshal(raw, &p)
		return p, err
	case "assistant":
		var p AssistantMessage
		err := json.Unmarshal(raw, &p)
		return p, err
	case "tool_call":
		var p ToolCallMessage
		err := json.Unmarshal(raw, &p)
		return p, err
	case "tool_response":
		var p ToolResponse
		err := json.Unmarshal(raw, &p)
		return p, err
	case "retry":
		var p Retry
		err := json.Unmarshal(raw, &p)
		return p, err
	default:
		return nil, fmt.Errorf("unknown message kind %q", kind)
	}
}
