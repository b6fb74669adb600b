package provider

import (
	"errors"
	"fmt"

	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/conclave-ai/conclave/messages"
	"github.com/conclave-ai/conclave/thread"
)

// StreamEvent is the closed union a provider emits: Delim, Chunk[T],
// Response[T], or Error.
type StreamEvent interface {
	streamEvent()
}

// Delim marks the start or end of a streamed section.
type Delim struct {
	RunID  uuid.UUID `json:"run_id"`
	TurnID uuid.UUID `json:"turn_id"`
	Delim  string    `json:"delim"`
}

func (Delim) streamEvent() {}

// Chunk carries the complete-so-far snapshot of an in-progress response part.
// Snapshots only ever grow; consumers can always render the latest one.
type Chunk[T messages.Response] struct {
	RunID     uuid.UUID       `json:"run_id"`
	TurnID    uuid.UUID       `json:"turn_id"`
	Chunk     T               `json:"chunk"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
	Meta      gjson.Result    `json:"meta,omitempty"`
}

func (Chunk[T]) streamEvent() {}

// Response is the terminal event for a completed response part.
type Response[T messages.Response] struct {
	RunID      uuid.UUID         `json:"run_id"`
	TurnID     uuid.UUID         `json:"turn_id"`
	Checkpoint thread.Checkpoint `json:"checkpoint"`
	Response   T                 `json:"response"`
	Timestamp  strfmt.DateTime   `json:"timestamp,omitempty"`
	Meta       gjson.Result      `json:"meta,omitempty"`
}

func (Response[T]) streamEvent() {}

// Error reports a provider fault tied to its run and turn.
type Error struct {
	RunID     uuid.UUID       `json:"run_id"`
	TurnID    uuid.UUID       `json:"turn_id"`
	Err       error           `json:"error"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
	Meta      gjson.Result    `json:"meta,omitempty"`
}

func (Error) streamEvent() {}

func (e Error) Error() string {
	return fmt.Sprintf("run_id: %s, turn_id: %s, timestamp: %s, error: %v", e.RunID, e.TurnID, e.Timestamp, e.Err)
}

// ChunkToMessage copies a chunk's envelope and payload into a thread message.
func ChunkToMessage[T messages.Response, M messages.ModelMessage](dst *messages.Message[M], src Chunk[T]) {
	dst.RunID = src.RunID
	dst.TurnID = src.TurnID
	dst.Timestamp = src.Timestamp
	dst.Meta = src.Meta
	payload, ok := any(src.Chunk).(M)
	if !ok {
		panic(fmt.Sprintf("invalid chunk type: %T", src.Chunk))
	}
	dst.Payload = payload
}

// ResponseToMessage copies a response's envelope and payload into a thread message.
func ResponseToMessage[T messages.Response, M messages.ModelMessage](dst *messages.Message[M], src Response[T]) {
	dst.RunID = src.RunID
	dst.TurnID = src.TurnID
	dst.Timestamp = src.Timestamp
	dst.Meta = src.Meta
	payload, ok := any(src.Response).(M)
	if !ok {
		panic(fmt.Sprintf("invalid response type: %T", src.Response))
	}
	dst.Payload = payload
}

func marshalEnvelope(typ string, runID, turnID uuid.UUID) ([]byte, error) {
	out, err := sjson.SetBytes([]byte(`{}`), "type", typ)
	if err != nil {
		return nil, err
	}
	if out, err = sjson.SetBytes(out, "run_id", runID.String()); err != nil {
		return nil, err
	}
	return sjson.SetBytes(out, "turn_id", turnID.String())
}

func marshalTrailer(out []byte, ts strfmt.DateTime, meta gjson.Result) ([]byte, error) {
	var err error
	if !ts.IsZero() {
		if out, err = sjson.SetBytes(out, "timestamp", ts.String()); err != nil {
			return nil, err
		}
	}
	if meta.Exists() {
		if out, err = sjson.SetRawBytes(out, "meta", []byte(meta.Raw)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func unmarshalEnvelope(data []byte, typ string, runID, turnID *uuid.UUID) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}
	msgType := gjson.GetBytes(data, "type")
	if !msgType.Exists() || msgType.String() != typ {
		return fmt.Errorf("missing or invalid type, expected %q", typ)
	}
	rid := gjson.GetBytes(data, "run_id")
	if !rid.Exists() {
		return errors.New("missing required field 'run_id'")
	}
	if err := runID.UnmarshalText([]byte(rid.String())); err != nil {
		return fmt.Errorf("invalid run_id: %w", err)
	}
	tid := gjson.GetBytes(data, "turn_id")
	if !tid.Exists() {
		return errors.New("missing required field 'turn_id'")
	}
	if err := turnID.UnmarshalText([]byte(tid.String())); err != nil {
		return fmt.Errorf("invalid turn_id: %w", err)
	}
	return nil
}

func unmarshalTrailer(data []byte, ts *strfmt.DateTime, meta *gjson.Result) error {
	if t := gjson.GetBytes(data, "timestamp"); t.Exists() {
		if err := ts.UnmarshalText([]byte(t.String())); err != nil {
			return fmt.Errorf("invalid timestamp: %w", err)
		}
	}
	if m := gjson.GetBytes(data, "meta"); m.Exists() {
		*meta = m
	}
	return nil
}

func (d Delim) MarshalJSON() ([]byte, error) {
	out, err := marshalEnvelope("delim", d.RunID, d.TurnID)
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(out, "delim", d.Delim)
}

func (d *Delim) UnmarshalJSON(data []byte) error {
	if err := unmarshalEnvelope(data, "delim", &d.RunID, &d.TurnID); err != nil {
		return err
	}
	delim := gjson.GetBytes(data, "delim")
	if !delim.Exists() {
		return errors.New("missing required field 'delim'")
	}
	d.Delim = delim.String()
	return nil
}

func (c Chunk[T]) MarshalJSON() ([]byte, error) {
	out, err := marshalEnvelope("chunk", c.RunID, c.TurnID)
	if err != nil {
		return nil, err
	}
	chunkBytes, err := json.Marshal(c.Chunk)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chunk: %w", err)
	}
	if out, err = sjson.SetRawBytes(out, "chunk", chunkBytes); err != nil {
		return nil, err
	}
	return marshalTrailer(out, c.Timestamp, c.Meta)
}

func (c *Chunk[T]) UnmarshalJSON(data []byte) error {
	if err := unmarshalEnvelope(data, "chunk", &c.RunID, &c.TurnID); err != nil {
		return err
	}
	chunk := gjson.GetBytes(data, "chunk")
	if !chunk.Exists() {
		return errors.New("missing required field 'chunk'")
	}
	if err := json.Unmarshal([]byte(chunk.Raw), &c.Chunk); err != nil {
		return fmt.Errorf("invalid chunk: %w", err)
	}
	return unmarshalTrailer(data, &c.Timestamp, &c.Meta)
}

func (r Response[T]) MarshalJSON() ([]byte, error) {
	out, err := marshalEnvelope("response", r.RunID, r.TurnID)
	if err != nil {
		return nil, err
	}
	cpj, err := json.Marshal(r.Checkpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	if out, err = sjson.SetRawBytes(out, "checkpoint", cpj); err != nil {
		return nil, err
	}
	responseBytes, err := json.Marshal(r.Response)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	if out, err = sjson.SetRawBytes(out, "response", responseBytes); err != nil {
		return nil, err
	}
	return marshalTrailer(out, r.Timestamp, r.Meta)
}

func (r *Response[T]) UnmarshalJSON(data []byte) error {
	if err := unmarshalEnvelope(data, "response", &r.RunID, &r.TurnID); err != nil {
		return err
	}
	checkpoint := gjson.GetBytes(data, "checkpoint")
	if !checkpoint.Exists() {
		return errors.New("missing required field 'checkpoint'")
	}
	if err := json.Unmarshal([]byte(checkpoint.Raw), &r.Checkpoint); err != nil {
		return fmt.Errorf("invalid checkpoint: %w", err)
	}
	response := gjson.GetBytes(data, "response")
	if !response.Exists() {
		return errors.New("missing required field 'response'")
	}
	if err := json.Unmarshal([]byte(response.Raw), &r.Response); err != nil {
		return fmt.Errorf("invalid response: %w", err)
	}
	return unmarshalTrailer(data, &r.Timestamp, &r.Meta)
}

func (e Error) MarshalJSON() ([]byte, error) {
	out, err := marshalEnvelope("error", e.RunID, e.TurnID)
	if err != nil {
		return nil, err
	}
	if e.Err != nil {
		if out, err = sjson.SetBytes(out, "error", e.Err.Error()); err != nil {
			return nil, err
		}
	}
	return marshalTrailer(out, e.Timestamp, e.Meta)
}

func (e *Error) UnmarshalJSON(data []byte) error {
	if err := unmarshalEnvelope(data, "error", &e.RunID, &e.TurnID); err != nil {
		return err
	}
	errMsg := gjson.GetBytes(data, "error")
	if !errMsg.Exists() {
		return errors.New("missing required field 'error'")
	}
	e.Err = errors.New(errMsg.String())
	return unmarshalTrailer(data, &e.Timestamp, &e.Meta)
}
