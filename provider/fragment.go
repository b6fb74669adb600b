package provider

// Fragment is one incremental piece of a model response. Index identifies
// the response part the fragment belongs to; parts arrive in order and a
// fragment for a new index closes every earlier part.
type Fragment struct {
	Index int
	Delta Delta
}

// Delta is the payload of a fragment: either a run of text or a piece of a
// tool call.
type Delta interface {
	delta()
}

// TextDelta extends the text of an assistant part.
type TextDelta struct {
	Text string
}

func (TextDelta) delta() {}

// ToolCallDelta extends a tool-call part. Any combination of fields may be
// present: providers commonly send the call ID and name first and stream the
// JSON arguments afterwards, but nothing is guaranteed.
type ToolCallDelta struct {
	CallID    string
	Name      string
	Arguments string
}

func (ToolCallDelta) delta() {}
