// Package provider defines the contract between the orchestrator and model
// backends.
//
// A backend implements Provider and reports each completion as a channel of
// StreamEvent values: Delim markers, Chunk snapshots while a response part is
// in flight, a terminal Response per completed part, and Error for faults.
// Backends that receive raw deltas feed them through Assembler, which owns
// the bookkeeping of turning fragments into that event sequence, including
// provisional tool calls that have no name or call ID yet.
//
// Concrete backends live in subpackages: openai talks to the OpenAI API,
// scripted replays canned turns for deterministic tests.
package provider
