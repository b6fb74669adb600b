// Package messages defines the typed message envelope and payloads that make
// up a conversation thread: user prompts, assistant replies, tool calls, and
// tool responses, each carrying run/turn identity and a timestamp.
//
// Payloads are a closed set constrained by the ModelMessage interface, so the
// envelope Message[T] is checked at compile time. Content can be plain text
// or multi-part (text, image, audio) to keep media attachments attached to
// the message that introduced them.
package messages
