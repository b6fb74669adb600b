// Package slogx provides common slog attribute constructors used across the framework.
package slogx

import (
	"fmt"
	"log/slog"
)

// Error returns a slog.Attr with the key "error" and the error's message as value.
func Error(err error) slog.Attr {
	return slog.String("error", err.Error())
}

// Stringer returns a slog.Attr rendering value through its String method.
func Stringer(key string, value fmt.Stringer) slog.Attr {
	return slog.String(key, value.String())
}

// TaskID returns a slog.Attr for a task identifier.
func TaskID(id string) slog.Attr {
	return slog.String("task_id", id)
}

// Actor returns a slog.Attr for an actor name.
func Actor(name string) slog.Attr {
	return slog.String("actor", name)
}
