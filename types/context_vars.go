// Package types provides the shared value types used across the framework:
// context variables for template rendering and the scoped instruction stack
// carried by a turn.
package types

import json "github.com/goccy/go-json"

// ContextVars is a key-value store made available to agents while rendering
// instructions and to tools at dispatch time. It is not safe for concurrent
// modification; the sequential turn loop is its only writer during a run.
type ContextVars map[string]any

// String returns the JSON rendering of the variables, or "" when marshaling fails.
func (cv ContextVars) String() string {
	jsonData, err := json.Marshal(cv)
	if err != nil {
		return ""
	}
	return string(jsonData)
}

// Clone returns a shallow copy, so per-turn additions never leak back into
// caller-owned state.
func (cv ContextVars) Clone() ContextVars {
	if cv == nil {
		return nil
	}
	out := make(ContextVars, len(cv))
	for k, v := range cv {
		out[k] = v
	}
	return out
}
