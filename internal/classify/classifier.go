package classify

import (
	"io"
	"strings"

	"github.com/mark3labs/reagent/internal/engine"
	"github.com/mark3labs/reagent/internal/logger"
)

// phase is the classifier's current interpretation context.
type phase int

const (
	// phaseAwaitingContent: nothing observed yet this turn.
	phaseAwaitingContent phase = iota
	// phaseThinking: streaming pre-tool reasoning prose.
	phaseThinking
	// phaseToolPending: a tool call started, its result has not arrived.
	// Text seen here is of indeterminate purpose and is buffered.
	phaseToolPending
	// phaseAnswering: at least one tool result arrived; text is final answer.
	phaseAnswering
)

// Source is the pull-based raw event sequence for one turn. engine.Stream
// satisfies it.
type Source interface {
	Next() (engine.Event, error)
}

// Classifier is a single-pass state machine over one turn's raw events.
// Text observed before any tool call streams live as Thinking: it can never
// retroactively become the final answer without a tool call intervening.
// Text observed after a tool result streams live as Answer. Text strictly
// between a tool-call start and its result is buffered and flushed as one
// Answer fragment once the result resolves the ambiguity.
//
// One classifier instance serves exactly one turn and is not restartable.
type Classifier struct {
	src      Source
	resolver *Resolver

	phase              phase
	hasCalledTool      bool
	hasEmittedThinking bool
	pending            strings.Builder

	queue  []Event
	done   bool
	srcErr error
}

// New creates a classifier for one turn over the given source.
func New(src Source, resolver *Resolver) *Classifier {
	return &Classifier{src: src, resolver: resolver}
}

// Next returns the next presentation event. The sequence is finite, ends
// with exactly one Complete, and then returns io.EOF. An early EOF mid-turn
// is treated as an implicit turn end: buffered text is flushed rather than
// dropped, and Complete is still emitted. Any other source error also ends
// the turn that way, but is then surfaced to the caller once the queued
// events have been consumed.
func (c *Classifier) Next() (Event, error) {
	for {
		if len(c.queue) > 0 {
			ev := c.queue[0]
			c.queue = c.queue[1:]
			return ev, nil
		}
		if c.done {
			if err := c.srcErr; err != nil {
				c.srcErr = nil
				return nil, err
			}
			return nil, io.EOF
		}

		raw, err := c.src.Next()
		if err != nil {
			if err != io.EOF {
				logger.Warn("Raw event source failed mid-turn, ending turn: %v", err)
				c.srcErr = err
			}
			c.endTurn()
			continue
		}
		c.consume(raw)
	}
}

func (c *Classifier) emit(ev Event) {
	c.queue = append(c.queue, ev)
}

func (c *Classifier) consume(raw engine.Event) {
	switch ev := raw.(type) {
	case engine.TextFragment:
		c.consumeText(ev.Text)
	case engine.ToolStart:
		c.consumeToolStart(ev.Record)
	case engine.ToolDone:
		c.consumeToolDone(ev.Record)
	case engine.TurnEnd:
		c.endTurn()
	default:
		// A raw event this classifier does not know must never abort the
		// turn: log it and move on.
		logger.Warn("Skipping unknown raw event: %T", raw)
	}
}

func (c *Classifier) consumeText(text string) {
	if text == "" {
		return
	}
	switch c.phase {
	case phaseAwaitingContent, phaseThinking:
		c.emit(Thinking{Text: text})
		c.hasEmittedThinking = true
		c.phase = phaseThinking
	case phaseToolPending:
		// Ownership is ambiguous until the result or another call arrives.
		c.pending.WriteString(text)
	case phaseAnswering:
		c.emit(Answer{Text: text})
	}
}

func (c *Classifier) consumeToolStart(rec engine.ToolRecord) {
	if c.phase == phaseToolPending && c.pending.Len() > 0 {
		// A second call before the first result: attribution of the buffered
		// text is ambiguous, so it is discarded rather than guessed at.
		logger.Warn("Discarding %d chars of text buffered between tool calls (ambiguous attribution)", c.pending.Len())
	}
	c.pending.Reset()

	ref := c.resolver.ResolveCall(rec)
	c.emit(ToolCall{Provider: ref.Provider, Tool: ref.Tool, Arguments: ref.Arguments})
	c.hasCalledTool = true
	c.phase = phaseToolPending
}

func (c *Classifier) consumeToolDone(rec engine.ToolRecord) {
	ref, output := c.resolver.ResolveResult(rec)
	c.emit(ToolResult{Provider: ref.Provider, Tool: ref.Tool, Output: output})
	if c.pending.Len() > 0 {
		c.emit(Answer{Text: c.pending.String()})
		c.pending.Reset()
	}
	c.phase = phaseAnswering
}

// endTurn flushes any buffered text and emits the single Complete. Text
// buffered behind an unresolved tool call is emitted as a final Answer so
// content is never silently dropped.
func (c *Classifier) endTurn() {
	if c.done {
		return
	}
	if c.pending.Len() > 0 {
		c.emit(Answer{Text: c.pending.String()})
		c.pending.Reset()
	}
	c.emit(Complete{})
	c.done = true
}
