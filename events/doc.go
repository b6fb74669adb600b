// Package events defines the closed set of records an orchestration run
// emits and the Hook interface for observing them.
//
// Every event carries its run and turn identity plus a timestamp, and each
// kind has a stable wire string (see Kind). Events are immutable facts:
// streaming kinds like tool-call-delta carry the complete snapshot so far,
// never an edit to an earlier event, which is what makes a recorded log
// replayable.
//
// Hook is deliberately wide. Implementations must handle every kind, so
// adding an event kind breaks consumers at compile time instead of silently
// dropping data. Embed NoopHook when only a few kinds matter, compose
// observers with Fanout, and use Recorder to capture a log in tests or for
// replay.
package events
