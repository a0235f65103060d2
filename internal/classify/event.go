// Package classify turns the raw, interleaved event stream produced by the
// reasoning engine into a clean sequence of presentation events. It is the
// single place that decides whether streamed text is pre-tool reasoning or
// final answer, so the console and websocket front ends never diverge on
// de-duplication.
package classify

// Event is a sealed interface over the presentation events emitted to
// adapters. The unexported marker method prevents external implementations.
type Event interface {
	presentationEvent()
}

// Thinking is a fragment of pre-tool-call reasoning prose, appended to the
// adapter's "thinking" region.
type Thinking struct {
	Text string
}

func (Thinking) presentationEvent() {}

// ToolCall reports a resolved tool invocation. Provider is empty when the
// tool could not be attributed to a connected provider.
type ToolCall struct {
	Provider  string
	Tool      string
	Arguments map[string]any
}

func (ToolCall) presentationEvent() {}

// ToolResult carries a tool invocation's output. Output is opaque: any
// scalar, mapping or sequence the tool produced.
type ToolResult struct {
	Provider string
	Tool     string
	Output   any
}

func (ToolResult) presentationEvent() {}

// Answer is a fragment of the user-facing final answer, appended to the
// adapter's "answer" region.
type Answer struct {
	Text string
}

func (Answer) presentationEvent() {}

// Complete is terminal: the adapter finalizes the turn's UI.
type Complete struct{}

func (Complete) presentationEvent() {}

// Interface compliance checks.
var (
	_ Event = Thinking{}
	_ Event = ToolCall{}
	_ Event = ToolResult{}
	_ Event = Answer{}
	_ Event = Complete{}
)
