// Package scripted is a provider that never talks to a model service. It
// replays a fixed sequence of turns, streaming each one through the regular
// assembler so consumers see the exact event shapes a live backend produces.
// It exists for tests and offline runs.
package scripted

import (
	"context"
	"fmt"
	"sync"

	"github.com/conclave-ai/conclave/provider"
)

// Turn is one scripted model reply, already broken into fragments.
type Turn struct {
	Fragments []provider.Fragment
}

// Text scripts a plain text reply. Each argument becomes one fragment so the
// reply streams in visible pieces.
func Text(pieces ...string) Turn {
	t := Turn{}
	for _, p := range pieces {
		t.Fragments = append(t.Fragments, provider.Fragment{Delta: provider.TextDelta{Text: p}})
	}
	return t
}

// ToolCall scripts a reply that invokes one tool. The call streams the way
// live backends do: id and name first, arguments split across fragments.
func ToolCall(callID, name, arguments string) Turn {
	t := Turn{
		Fragments: []provider.Fragment{
			{Delta: provider.ToolCallDelta{CallID: callID, Name: name}},
		},
	}
	half := len(arguments) / 2
	t.Fragments = append(t.Fragments,
		provider.Fragment{Delta: provider.ToolCallDelta{Arguments: arguments[:half]}},
		provider.Fragment{Delta: provider.ToolCallDelta{Arguments: arguments[half:]}},
	)
	return t
}

// Then joins turns that happen within the same reply: the parts of the
// combined turn get consecutive indexes.
func (t Turn) Then(next Turn) Turn {
	// each Turn's fragments address part 0, reindex the appended ones
	offset := maxIndex(t.Fragments) + 1
	for _, f := range next.Fragments {
		t.Fragments = append(t.Fragments, provider.Fragment{Index: f.Index + offset, Delta: f.Delta})
	}
	return t
}

func maxIndex(frags []provider.Fragment) int {
	m := 0
	for _, f := range frags {
		if f.Index > m {
			m = f.Index
		}
	}
	return m
}

// Provider replays its script one turn per ChatCompletion call.
type Provider struct {
	mu    sync.Mutex
	turns []Turn
	next  int
}

// New builds a scripted provider from the given turns.
func New(turns ...Turn) *Provider {
	return &Provider{turns: turns}
}

// Model pairs a model name with this provider so agents can reference it.
func (p *Provider) Model(name string) Model {
	return Model{name: name, provider: p}
}

// Model is a named handle onto a scripted provider.
type Model struct {
	name     string
	provider *Provider
}

func (m Model) Name() string                { return m.name }
func (m Model) Provider() provider.Provider { return m.provider }

// ChatCompletion replays the next scripted turn. It fails when the script is
// exhausted so a test loop that would call the model once too often breaks
// loudly instead of hanging.
func (p *Provider) ChatCompletion(ctx context.Context, params provider.CompletionParams) (<-chan provider.StreamEvent, error) {
	p.mu.Lock()
	if p.next >= len(p.turns) {
		p.mu.Unlock()
		return nil, fmt.Errorf("script exhausted after %d turns", len(p.turns))
	}
	turn := p.turns[p.next]
	p.next++
	p.mu.Unlock()

	events := make(chan provider.StreamEvent, len(turn.Fragments)*2+4)
	go func() {
		defer close(events)

		events <- provider.Delim{RunID: params.RunID, TurnID: params.Thread.ID(), Delim: "start"}

		asm := provider.NewAssembler(provider.AssemblerParams{
			RunID:  params.RunID,
			Thread: params.Thread,
		})
		for _, frag := range turn.Fragments {
			if ctx.Err() != nil {
				return
			}
			evts, err := asm.Add(frag)
			if err != nil {
				events <- provider.Error{RunID: params.RunID, TurnID: params.Thread.ID(), Err: err}
				return
			}
			for _, e := range evts {
				events <- e
			}
		}
		for _, e := range asm.Finish() {
			events <- e
		}

		events <- provider.Delim{RunID: params.RunID, TurnID: params.Thread.ID(), Delim: "end"}
	}()
	return events, nil
}
