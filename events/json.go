package events

import (
	"errors"
	"fmt"

	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// The codecs below are hand-rolled: every event marshals to an object with a
// "kind" discriminator, and Decode dispatches on it. Recorded logs round-trip
// through these without reflection surprises.

func openEvent(kind Kind, runID uuid.UUID, ts strfmt.DateTime) ([]byte, error) {
	out, err := sjson.SetBytes([]byte(`{}`), "kind", string(kind))
	if err != nil {
		return nil, err
	}
	if out, err = sjson.SetBytes(out, "run_id", runID.String()); err != nil {
		return nil, err
	}
	if !ts.IsZero() {
		if out, err = sjson.SetBytes(out, "timestamp", ts.String()); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func setTurnID(out []byte, turnID uuid.UUID) ([]byte, error) {
	return sjson.SetBytes(out, "turn_id", turnID.String())
}

func setString(out []byte, path, value string) ([]byte, error) {
	if value == "" {
		return out, nil
	}
	return sjson.SetBytes(out, path, value)
}

func setJSON(out []byte, path string, value any) ([]byte, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", path, err)
	}
	return sjson.SetRawBytes(out, path, raw)
}

func readEvent(data []byte, kind Kind, runID *uuid.UUID, ts *strfmt.DateTime) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}
	k := gjson.GetBytes(data, "kind")
	if !k.Exists() || k.String() != string(kind) {
		return fmt.Errorf("missing or invalid kind, expected %q", kind)
	}
	rid := gjson.GetBytes(data, "run_id")
	if !rid.Exists() {
		return errors.New("missing required field 'run_id'")
	}
	if err := runID.UnmarshalText([]byte(rid.String())); err != nil {
		return fmt.Errorf("invalid run_id: %w", err)
	}
	if t := gjson.GetBytes(data, "timestamp"); t.Exists() {
		if err := ts.UnmarshalText([]byte(t.String())); err != nil {
			return fmt.Errorf("invalid timestamp: %w", err)
		}
	}
	return nil
}

func readTurnID(data []byte, turnID *uuid.UUID) error {
	tid := gjson.GetBytes(data, "turn_id")
	if !tid.Exists() {
		return errors.New("missing required field 'turn_id'")
	}
	if err := turnID.UnmarshalText([]byte(tid.String())); err != nil {
		return fmt.Errorf("invalid turn_id: %w", err)
	}
	return nil
}

func readJSON(data []byte, path string, into any) error {
	field := gjson.GetBytes(data, path)
	if !field.Exists() {
		return fmt.Errorf("missing required field %q", path)
	}
	if err := json.Unmarshal([]byte(field.Raw), into); err != nil {
		return fmt.Errorf("invalid %s: %w", path, err)
	}
	return nil
}

func (e OrchestratorStart) MarshalJSON() ([]byte, error) {
	out, err := openEvent(KindOrchestratorStart, e.RunID, e.Timestamp)
	if err != nil {
		return nil, err
	}
	if out, err = setString(out, "orchestrator", e.Orchestrator); err != nil {
		return nil, err
	}
	if len(e.TaskIDs) > 0 {
		if out, err = setJSON(out, "task_ids", e.TaskIDs); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (e *OrchestratorStart) UnmarshalJSON(data []byte) error {
	if err := readEvent(data, KindOrchestratorStart, &e.RunID, &e.Timestamp); err != nil {
		return err
	}
	e.Orchestrator = gjson.GetBytes(data, "orchestrator").String()
	if ids := gjson.GetBytes(data, "task_ids"); ids.Exists() {
		for _, id := range ids.Array() {
			e.TaskIDs = append(e.TaskIDs, id.String())
		}
	}
	return nil
}

func (e OrchestratorEnd) MarshalJSON() ([]byte, error) {
	out, err := openEvent(KindOrchestratorEnd, e.RunID, e.Timestamp)
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(out, "turns", e.Turns)
}

func (e *OrchestratorEnd) UnmarshalJSON(data []byte) error {
	if err := readEvent(data, KindOrchestratorEnd, &e.RunID, &e.Timestamp); err != nil {
		return err
	}
	e.Turns = int(gjson.GetBytes(data, "turns").Int())
	return nil
}

func (e OrchestratorException) MarshalJSON() ([]byte, error) {
	out, err := openEvent(KindOrchestratorException, e.RunID, e.Timestamp)
	if err != nil {
		return nil, err
	}
	if out, err = setTurnID(out, e.TurnID); err != nil {
		return nil, err
	}
	if e.Err != nil {
		if out, err = sjson.SetBytes(out, "error", e.Err.Error()); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (e *OrchestratorException) UnmarshalJSON(data []byte) error {
	if err := readEvent(data, KindOrchestratorException, &e.RunID, &e.Timestamp); err != nil {
		return err
	}
	if err := readTurnID(data, &e.TurnID); err != nil {
		return err
	}
	if msg := gjson.GetBytes(data, "error"); msg.Exists() {
		e.Err = errors.New(msg.String())
	}
	return nil
}

func (e ActorStartTurn) MarshalJSON() ([]byte, error) {
	out, err := openEvent(KindActorStartTurn, e.RunID, e.Timestamp)
	if err != nil {
		return nil, err
	}
	if out, err = setTurnID(out, e.TurnID); err != nil {
		return nil, err
	}
	if out, err = sjson.SetBytes(out, "actor", e.Actor); err != nil {
		return nil, err
	}
	return setString(out, "task_id", e.TaskID)
}

func (e *ActorStartTurn) UnmarshalJSON(data []byte) error {
	if err := readEvent(data, KindActorStartTurn, &e.RunID, &e.Timestamp); err != nil {
		return err
	}
	if err := readTurnID(data, &e.TurnID); err != nil {
		return err
	}
	e.Actor = gjson.GetBytes(data, "actor").String()
	e.TaskID = gjson.GetBytes(data, "task_id").String()
	return nil
}

func (e ActorEndTurn) MarshalJSON() ([]byte, error) {
	out, err := openEvent(KindActorEndTurn, e.RunID, e.Timestamp)
	if err != nil {
		return nil, err
	}
	if out, err = setTurnID(out, e.TurnID); err != nil {
		return nil, err
	}
	return sjson.SetBytes(out, "actor", e.Actor)
}

func (e *ActorEndTurn) UnmarshalJSON(data []byte) error {
	if err := readEvent(data, KindActorEndTurn, &e.RunID, &e.Timestamp); err != nil {
		return err
	}
	if err := readTurnID(data, &e.TurnID); err != nil {
		return err
	}
	e.Actor = gjson.GetBytes(data, "actor").String()
	return nil
}

func (e UserMessage) MarshalJSON() ([]byte, error) {
	out, err := openEvent(KindUserMessage, e.RunID, e.Timestamp)
	if err != nil {
		return nil, err
	}
	if out, err = setTurnID(out, e.TurnID); err != nil {
		return nil, err
	}
	return setJSON(out, "message", e.Message)
}

func (e *UserMessage) UnmarshalJSON(data []byte) error {
	if err := readEvent(data, KindUserMessage, &e.RunID, &e.Timestamp); err != nil {
		return err
	}
	if err := readTurnID(data, &e.TurnID); err != nil {
		return err
	}
	return readJSON(data, "message", &e.Message)
}

func (e AgentMessage) MarshalJSON() ([]byte, error) {
	out, err := openEvent(KindAgentMessage, e.RunID, e.Timestamp)
	if err != nil {
		return nil, err
	}
	if out, err = setTurnID(out, e.TurnID); err != nil {
		return nil, err
	}
	if out, err = setString(out, "sender", e.Sender); err != nil {
		return nil, err
	}
	return setJSON(out, "message", e.Message)
}

func (e *AgentMessage) UnmarshalJSON(data []byte) error {
	if err := readEvent(data, KindAgentMessage, &e.RunID, &e.Timestamp); err != nil {
		return err
	}
	if err := readTurnID(data, &e.TurnID); err != nil {
		return err
	}
	e.Sender = gjson.GetBytes(data, "sender").String()
	return readJSON(data, "message", &e.Message)
}

func (e ToolCallDelta) MarshalJSON() ([]byte, error) {
	out, err := openEvent(KindToolCallDelta, e.RunID, e.Timestamp)
	if err != nil {
		return nil, err
	}
	if out, err = setTurnID(out, e.TurnID); err != nil {
		return nil, err
	}
	if out, err = setString(out, "sender", e.Sender); err != nil {
		return nil, err
	}
	return setJSON(out, "snapshot", e.Snapshot)
}

func (e *ToolCallDelta) UnmarshalJSON(data []byte) error {
	if err := readEvent(data, KindToolCallDelta, &e.RunID, &e.Timestamp); err != nil {
		return err
	}
	if err := readTurnID(data, &e.TurnID); err != nil {
		return err
	}
	e.Sender = gjson.GetBytes(data, "sender").String()
	return readJSON(data, "snapshot", &e.Snapshot)
}

func (e ToolCall) MarshalJSON() ([]byte, error) {
	out, err := openEvent(KindToolCall, e.RunID, e.Timestamp)
	if err != nil {
		return nil, err
	}
	if out, err = setTurnID(out, e.TurnID); err != nil {
		return nil, err
	}
	if out, err = setString(out, "sender", e.Sender); err != nil {
		return nil, err
	}
	return setJSON(out, "call", e.Call)
}

func (e *ToolCall) UnmarshalJSON(data []byte) error {
	if err := readEvent(data, KindToolCall, &e.RunID, &e.Timestamp); err != nil {
		return err
	}
	if err := readTurnID(data, &e.TurnID); err != nil {
		return err
	}
	e.Sender = gjson.GetBytes(data, "sender").String()
	return readJSON(data, "call", &e.Call)
}

func (e ToolResult) MarshalJSON() ([]byte, error) {
	out, err := openEvent(KindToolResult, e.RunID, e.Timestamp)
	if err != nil {
		return nil, err
	}
	if out, err = setTurnID(out, e.TurnID); err != nil {
		return nil, err
	}
	if out, err = setString(out, "sender", e.Sender); err != nil {
		return nil, err
	}
	if out, err = sjson.SetBytes(out, "tool_name", e.ToolName); err != nil {
		return nil, err
	}
	if out, err = sjson.SetBytes(out, "tool_call_id", e.ToolCallID); err != nil {
		return nil, err
	}
	if out, err = sjson.SetBytes(out, "content", e.Content); err != nil {
		return nil, err
	}
	if e.IsError {
		if out, err = sjson.SetBytes(out, "is_error", true); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (e *ToolResult) UnmarshalJSON(data []byte) error {
	if err := readEvent(data, KindToolResult, &e.RunID, &e.Timestamp); err != nil {
		return err
	}
	if err := readTurnID(data, &e.TurnID); err != nil {
		return err
	}
	e.Sender = gjson.GetBytes(data, "sender").String()
	e.ToolName = gjson.GetBytes(data, "tool_name").String()
	e.ToolCallID = gjson.GetBytes(data, "tool_call_id").String()
	e.Content = gjson.GetBytes(data, "content").String()
	e.IsError = gjson.GetBytes(data, "is_error").Bool()
	return nil
}

func (e ToolRetry) MarshalJSON() ([]byte, error) {
	out, err := openEvent(KindToolRetry, e.RunID, e.Timestamp)
	if err != nil {
		return nil, err
	}
	if out, err = setTurnID(out, e.TurnID); err != nil {
		return nil, err
	}
	if out, err = setString(out, "sender", e.Sender); err != nil {
		return nil, err
	}
	if out, err = setString(out, "tool_name", e.ToolName); err != nil {
		return nil, err
	}
	if out, err = setString(out, "tool_call_id", e.ToolCallID); err != nil {
		return nil, err
	}
	if e.Err != nil {
		if out, err = sjson.SetBytes(out, "error", e.Err.Error()); err != nil {
			return nil, err
		}
	}
	return sjson.SetBytes(out, "attempt", e.Attempt)
}

func (e *ToolRetry) UnmarshalJSON(data []byte) error {
	if err := readEvent(data, KindToolRetry, &e.RunID, &e.Timestamp); err != nil {
		return err
	}
	if err := readTurnID(data, &e.TurnID); err != nil {
		return err
	}
	e.Sender = gjson.GetBytes(data, "sender").String()
	e.ToolName = gjson.GetBytes(data, "tool_name").String()
	e.ToolCallID = gjson.GetBytes(data, "tool_call_id").String()
	if msg := gjson.GetBytes(data, "error"); msg.Exists() {
		e.Err = errors.New(msg.String())
	}
	e.Attempt = int(gjson.GetBytes(data, "attempt").Int())
	return nil
}

func (e EndTurnToolCall) MarshalJSON() ([]byte, error) {
	out, err := openEvent(KindEndTurnToolCall, e.RunID, e.Timestamp)
	if err != nil {
		return nil, err
	}
	if out, err = setTurnID(out, e.TurnID); err != nil {
		return nil, err
	}
	if out, err = setString(out, "sender", e.Sender); err != nil {
		return nil, err
	}
	if out, err = setJSON(out, "call", e.Call); err != nil {
		return nil, err
	}
	return setString(out, "task_id", e.TaskID)
}

func (e *EndTurnToolCall) UnmarshalJSON(data []byte) error {
	if err := readEvent(data, KindEndTurnToolCall, &e.RunID, &e.Timestamp); err != nil {
		return err
	}
	if err := readTurnID(data, &e.TurnID); err != nil {
		return err
	}
	e.Sender = gjson.GetBytes(data, "sender").String()
	e.TaskID = gjson.GetBytes(data, "task_id").String()
	return readJSON(data, "call", &e.Call)
}

func (e EndTurnToolResult) MarshalJSON() ([]byte, error) {
	out, err := openEvent(KindEndTurnToolResult, e.RunID, e.Timestamp)
	if err != nil {
		return nil, err
	}
	if out, err = setTurnID(out, e.TurnID); err != nil {
		return nil, err
	}
	if out, err = setString(out, "sender", e.Sender); err != nil {
		return nil, err
	}
	if out, err = sjson.SetBytes(out, "tool_name", e.ToolName); err != nil {
		return nil, err
	}
	if out, err = setString(out, "task_id", e.TaskID); err != nil {
		return nil, err
	}
	if out, err = setString(out, "status", e.Status); err != nil {
		return nil, err
	}
	if out, err = setString(out, "result", e.Result); err != nil {
		return nil, err
	}
	if out, err = setString(out, "content", e.Content); err != nil {
		return nil, err
	}
	if e.IsError {
		if out, err = sjson.SetBytes(out, "is_error", true); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (e *EndTurnToolResult) UnmarshalJSON(data []byte) error {
	if err := readEvent(data, KindEndTurnToolResult, &e.RunID, &e.Timestamp); err != nil {
		return err
	}
	if err := readTurnID(data, &e.TurnID); err != nil {
		return err
	}
	e.Sender = gjson.GetBytes(data, "sender").String()
	e.ToolName = gjson.GetBytes(data, "tool_name").String()
	e.TaskID = gjson.GetBytes(data, "task_id").String()
	e.Status = gjson.GetBytes(data, "status").String()
	e.Result = gjson.GetBytes(data, "result").String()
	e.Content = gjson.GetBytes(data, "content").String()
	e.IsError = gjson.GetBytes(data, "is_error").Bool()
	return nil
}

// Encode renders an event in its wire form. Every event type carries its own
// MarshalJSON, so this is a typed alias for json.Marshal that keeps call
// sites honest about what they serialize.
func Encode(event Event) ([]byte, error) {
	return json.Marshal(event)
}

// Decode restores an event from its wire form, dispatching on the kind
// discriminator.
func Decode(data []byte) (Event, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid json: %s", data)
	}
	kind := Kind(gjson.GetBytes(data, "kind").String())
	switch kind {
	case KindOrchestratorStart:
		var e OrchestratorStart
		err := e.UnmarshalJSON(data)
		return e, err
	case KindOrchestratorEnd:
		var e OrchestratorEnd
		err := e.UnmarshalJSON(data)
		return e, err
	case KindOrchestratorException:
		var e OrchestratorException
		err := e.UnmarshalJSON(data)
		return e, err
	case KindActorStartTurn:
		var e ActorStartTurn
		err := e.UnmarshalJSON(data)
		return e, err
	case KindActorEndTurn:
		var e ActorEndTurn
		err := e.UnmarshalJSON(data)
		return e, err
	case KindUserMessage:
		var e UserMessage
		err := e.UnmarshalJSON(data)
		return e, err
	case KindAgentMessage:
		var e AgentMessage
		err := e.UnmarshalJSON(data)
		return e, err
	case KindToolCallDelta:
		var e ToolCallDelta
		err := e.UnmarshalJSON(data)
		return e, err
	case KindToolCall:
		var e ToolCall
		err := e.UnmarshalJSON(data)
		return e, err
	case KindToolResult:
		var e ToolResult
		err := e.UnmarshalJSON(data)
		return e, err
	case KindToolRetry:
		var e ToolRetry
		err := e.UnmarshalJSON(data)
		return e, err
	case KindEndTurnToolCall:
		var e EndTurnToolCall
		err := e.UnmarshalJSON(data)
		return e, err
	case KindEndTurnToolResult:
		var e EndTurnToolResult
		err := e.UnmarshalJSON(data)
		return e, err
	default:
		return nil, fmt.Errorf("unknown event kind %q", kind)
	}
}
