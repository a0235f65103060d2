// Package engine provides the raw event source for one conversation turn: a
// streaming client for OpenAI-compatible chat completion APIs plus the event
// types produced while the engine thinks and calls tools.
package engine

// Event is a sealed interface representing one raw event pulled from the
// engine during a turn. Transport errors come from Next()'s error return, not
// from events. The unexported marker method prevents external implementations.
type Event interface {
	rawEvent()
}

// TextFragment is a non-empty text increment.
type TextFragment struct {
	Text string
}

func (TextFragment) rawEvent() {}

// ToolStart signals that a tool invocation has begun. The record's field
// layout varies between engines; resolving it is the classifier's job.
type ToolStart struct {
	Record ToolRecord
}

func (ToolStart) rawEvent() {}

// ToolDone signals that a previously started tool invocation produced output.
type ToolDone struct {
	Record ToolRecord
}

func (ToolDone) rawEvent() {}

// TurnEnd is terminal: no further events follow for this turn.
type TurnEnd struct{}

func (TurnEnd) rawEvent() {}

// Interface compliance checks.
var (
	_ Event = TextFragment{}
	_ Event = ToolStart{}
	_ Event = ToolDone{}
	_ Event = TurnEnd{}
)

// ToolRecord is an opaque tool-invocation record as produced on the wire.
type ToolRecord map[string]any

// String returns the value under key if it is a non-empty string.
func (r ToolRecord) String(key string) (string, bool) {
	v, ok := r[key].(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Map returns the value under key if it is a JSON object.
func (r ToolRecord) Map(key string) (map[string]any, bool) {
	v, ok := r[key].(map[string]any)
	return v, ok
}

// Stream is a pull-based sequence of raw events for one turn. Next returns
// io.EOF once the turn is over. Close releases the underlying connection and
// must stop the source from producing further events promptly.
type Stream interface {
	Next() (Event, error)
	Close() error
}
