package types

import "strings"

// InstructionsStack layers instruction frames for the duration of a lexical
// scope. Pushing returns a restore function that unwinds the stack to its
// previous depth; deferring it guarantees frames never outlive the turn that
// added them. This replaces ambient global state with an explicit value that
// travels down the call chain.
type InstructionsStack struct {
	frames []string
}

// Push adds a frame and returns the function that removes it (and anything
// pushed above it) again. Calling restore more than once is harmless.
func (s *InstructionsStack) Push(frame string) (restore func()) {
	s.frames = append(s.frames, frame)
	depth := len(s.frames) - 1
	return func() {
		if len(s.frames) > depth {
			s.frames = s.frames[:depth]
		}
	}
}

// Active joins all live frames, oldest first, into the instruction text for
// the current scope.
func (s *InstructionsStack) Active() string {
	return strings.Join(s.frames, "\n\n")
}

// Depth returns the number of live frames.
func (s *InstructionsStack) Depth() int {
	return len(s.frames)
}
