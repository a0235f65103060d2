// Package agent runs the reason-and-act loop: it streams model rounds,
// executes the tool calls the model requests, and feeds the results back
// until the model answers without asking for tools.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/mark3labs/reagent/internal/engine"
	"github.com/mark3labs/reagent/internal/history"
	"github.com/mark3labs/reagent/internal/logger"
)

const instructions = `You are a capable assistant that solves problems with a reason-and-act loop.

The loop has four parts:
1. Observe: read the user's question and the information already available.
2. Think: reason about what action would move the problem forward.
3. Act: call the available tools when you need information or side effects.
4. Remember: use the earlier conversation and tool results.

Workflow:
- Start by understanding what the user actually needs.
- Work out which steps and tools the solution requires.
- Call tools when needed and continue reasoning from their results.
- Repeat until the problem is fully solved, then give a clear, helpful answer.

Keep in mind:
- Use the tools freely; multiple rounds of calls are fine.
- Keep answers accurate and on topic.
- Refer back to the conversation history so answers stay coherent.`

// A turn that is still requesting tools after this many model rounds is cut
// off to avoid spinning forever.
const maxRounds = 10

// Engine starts streamed model rounds.
type Engine interface {
	StreamChat(ctx context.Context, messages []engine.Message, tools []engine.ToolSpec) (Round, error)
}

// Round is one streamed model response.
type Round interface {
	Next() (engine.Event, error)
	ToolCalls() []engine.ToolCall
	Text() string
	Close() error
}

// Tools exposes the callable tool surface.
type Tools interface {
	Specs() []engine.ToolSpec
	Call(ctx context.Context, name string, args map[string]any) (any, error)
}

// Log records and replays the conversation.
type Log interface {
	Append(ctx context.Context, item history.Item) error
	Items(ctx context.Context, session string) ([]history.Item, error)
}

type clientEngine struct {
	c *engine.Client
}

func (e clientEngine) StreamChat(ctx context.Context, messages []engine.Message, tools []engine.ToolSpec) (Round, error) {
	return e.c.StreamChat(ctx, messages, tools)
}

// NewEngine adapts a chat completions client to the Engine interface.
func NewEngine(c *engine.Client) Engine {
	return clientEngine{c: c}
}

// Agent drives turns for one session.
type Agent struct {
	eng     Engine
	tools   Tools
	log     Log
	session string
}

// New creates an agent bound to a session. log may be nil when the caller
// does not want persistence.
func New(eng Engine, tools Tools, log Log, session string) *Agent {
	return &Agent{eng: eng, tools: tools, log: log, session: session}
}

// Session returns the session this agent is bound to.
func (a *Agent) Session() string { return a.session }

type streamItem struct {
	ev  engine.Event
	err error
}

// turnStream delivers one turn's events over a channel so the caller can
// consume them with the usual pull interface.
type turnStream struct {
	events <-chan streamItem
	cancel context.CancelFunc
}

func (t *turnStream) Next() (engine.Event, error) {
	item, ok := <-t.events
	if !ok {
		return nil, io.EOF
	}
	return item.ev, item.err
}

func (t *turnStream) Close() error {
	t.cancel()
	return nil
}

// Stream runs one turn for the given user input and returns the raw event
// stream for it. The turn runs in the background; closing the stream cancels
// it.
func (a *Agent) Stream(ctx context.Context, input string) engine.Stream {
	ctx, cancel := context.WithCancel(ctx)
	events := make(chan streamItem)

	go func() {
		defer close(events)
		a.runTurn(ctx, input, events)
	}()

	return &turnStream{events: events, cancel: cancel}
}

func (a *Agent) runTurn(ctx context.Context, input string, events chan<- streamItem) {
	emit := func(ev engine.Event) bool {
		select {
		case events <- streamItem{ev: ev}:
			return true
		case <-ctx.Done():
			return false
		}
	}
	fail := func(err error) {
		select {
		case events <- streamItem{err: err}:
		case <-ctx.Done():
		}
	}

	messages := a.loadMessages(ctx)
	messages = append(messages, engine.Message{Role: "user", Content: input})
	a.record(ctx, history.Item{Kind: history.KindUser, Content: input})

	specs := a.tools.Specs()

	for round := 0; round < maxRounds; round++ {
		stream, err := a.eng.StreamChat(ctx, messages, specs)
		if err != nil {
			fail(fmt.Errorf("model round failed: %w", err))
			return
		}

		for {
			ev, err := stream.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				stream.Close()
				fail(err)
				return
			}
			if !emit(ev) {
				stream.Close()
				return
			}
		}

		text := stream.Text()
		calls := stream.ToolCalls()
		stream.Close()

		messages = append(messages, engine.Message{
			Role:      "assistant",
			Content:   text,
			ToolCalls: calls,
		})
		if text != "" {
			a.record(ctx, history.Item{Kind: history.KindAssistant, Content: text})
		}

		if len(calls) == 0 {
			emit(engine.TurnEnd{})
			return
		}

		for _, call := range calls {
			result := a.invokeTool(ctx, call, emit)
			messages = append(messages, engine.Message{
				Role:       "tool",
				Content:    result,
				ToolCallID: call.ID,
				Name:       call.Function.Name,
			})
		}
	}

	logger.Warn("Turn exceeded %d model rounds, ending it", maxRounds)
	emit(engine.TurnEnd{})
}

// invokeTool surfaces the call and its result as raw events and returns the
// result text that goes back to the model.
func (a *Agent) invokeTool(ctx context.Context, call engine.ToolCall, emit func(engine.Event) bool) string {
	args := decodeArguments(call.Function.Arguments)

	emit(engine.ToolStart{Record: engine.ToolRecord{
		"id": call.ID,
		"function": map[string]any{
			"name":      call.Function.Name,
			"arguments": call.Function.Arguments,
		},
	}})
	a.record(ctx, history.Item{
		Kind:      history.KindToolCall,
		ToolName:  call.Function.Name,
		Arguments: args,
	})

	output, err := a.tools.Call(ctx, call.Function.Name, args)
	if err != nil {
		logger.Warn("Tool %s failed: %v", call.Function.Name, err)
		output = fmt.Sprintf("tool error: %v", err)
	}
	text := stringify(output)

	emit(engine.ToolDone{Record: engine.ToolRecord{
		"id":        call.ID,
		"tool_name": call.Function.Name,
		"output":    output,
	}})
	a.record(ctx, history.Item{
		Kind:     history.KindToolOutput,
		ToolName: call.Function.Name,
		Output:   text,
	})

	return text
}

// loadMessages rebuilds the model message list from the session log, with
// the system instructions first.
func (a *Agent) loadMessages(ctx context.Context) []engine.Message {
	messages := []engine.Message{{Role: "system", Content: instructions}}
	if a.log == nil {
		return messages
	}

	items, err := a.log.Items(ctx, a.session)
	if err != nil {
		logger.Warn("Failed to load history for %s, starting fresh: %v", a.session, err)
		return messages
	}

	for _, item := range items {
		switch item.Kind {
		case history.KindUser:
			messages = append(messages, engine.Message{Role: "user", Content: item.Content})
		case history.KindAssistant:
			messages = append(messages, engine.Message{Role: "assistant", Content: item.Content})
		case history.KindToolCall, history.KindToolOutput:
			// Tool traffic is replayed for display only; the model gets the
			// distilled user/assistant exchange.
		default:
			logger.Warn("Unknown history kind %q in session %s", item.Kind, a.session)
		}
	}
	return messages
}

func (a *Agent) record(ctx context.Context, item history.Item) {
	if a.log == nil {
		return
	}
	item.Session = a.session
	if err := a.log.Append(ctx, item); err != nil {
		logger.Warn("Failed to record history item: %v", err)
	}
}

func decodeArguments(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		logger.Warn("Tool call arguments are not valid JSON: %v", err)
		return map[string]any{}
	}
	return args
}

func stringify(output any) string {
	switch v := output.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
