// Package console renders presentation events for the interactive terminal
// chat.
package console

import (
	"encoding/json"
	"fmt"
	"io"
	"unicode/utf8"

	"charm.land/lipgloss/v2"

	"github.com/mark3labs/reagent/internal/classify"
)

// Tool results longer than this are cut off so they do not swamp the chat.
const outputLimit = 500

// Color palette (Catppuccin Mocha)
var (
	colorThinking = lipgloss.Color("#a6adc8") // Subtext0
	colorTool     = lipgloss.Color("#cba6f7") // Mauve
	colorResult   = lipgloss.Color("#a6e3a1") // Green
	colorAnswer   = lipgloss.Color("#cdd6f4") // Text
	colorError    = lipgloss.Color("#f38ba8") // Red
)

var (
	styleThinkingLabel = lipgloss.NewStyle().Foreground(colorThinking).Italic(true)
	styleThinkingText  = lipgloss.NewStyle().Foreground(colorThinking).Italic(true)
	styleToolLabel     = lipgloss.NewStyle().Foreground(colorTool).Bold(true)
	styleResultLabel   = lipgloss.NewStyle().Foreground(colorResult).Bold(true)
	styleAnswerLabel   = lipgloss.NewStyle().Foreground(colorAnswer).Bold(true)
	styleError         = lipgloss.NewStyle().Foreground(colorError)
)

// region tracks which kind of output is currently streaming so fragments of
// the same kind flow together and a change of kind starts a fresh block.
type region int

const (
	regionNone region = iota
	regionThinking
	regionAnswer
)

// Renderer writes presentation events to a terminal as they arrive.
type Renderer struct {
	w       io.Writer
	current region
}

func NewRenderer(w io.Writer) *Renderer {
	return &Renderer{w: w}
}

// Render writes one presentation event. Consecutive Thinking or Answer
// events stream into the same block; tool events break the block.
func (r *Renderer) Render(ev classify.Event) {
	switch e := ev.(type) {
	case classify.Thinking:
		if r.current != regionThinking {
			r.endRegion()
			fmt.Fprintf(r.w, "\n%s ", styleThinkingLabel.Render("💭 Thinking:"))
			r.current = regionThinking
		}
		fmt.Fprint(r.w, styleThinkingText.Render(e.Text))

	case classify.ToolCall:
		r.endRegion()
		fmt.Fprintf(r.w, "\n%s %s\n", styleToolLabel.Render("🔧 Calling tool:"), qualifiedName(e.Provider, e.Tool))
		if len(e.Arguments) > 0 {
			if args, err := json.MarshalIndent(e.Arguments, "   ", "  "); err == nil {
				fmt.Fprintf(r.w, "   arguments: %s\n", args)
			}
		}

	case classify.ToolResult:
		r.endRegion()
		fmt.Fprintf(r.w, "\n%s %s\n", styleResultLabel.Render("✅ Tool result:"), truncate(stringifyOutput(e.Output)))

	case classify.Answer:
		if r.current != regionAnswer {
			r.endRegion()
			fmt.Fprintf(r.w, "\n%s ", styleAnswerLabel.Render("🤖 Assistant:"))
			r.current = regionAnswer
		}
		fmt.Fprint(r.w, e.Text)

	case classify.Complete:
		r.endRegion()
		fmt.Fprintln(r.w)
	}
}

// RenderError reports a turn failure in the chat flow.
func (r *Renderer) RenderError(err error) {
	r.endRegion()
	fmt.Fprintf(r.w, "\n%s\n", styleError.Render(fmt.Sprintf("❌ Sorry, something went wrong: %v", err)))
}

func (r *Renderer) endRegion() {
	if r.current != regionNone {
		fmt.Fprintln(r.w)
		r.current = regionNone
	}
}

func qualifiedName(provider, tool string) string {
	if provider == "" {
		return tool
	}
	return provider + ":" + tool
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) <= outputLimit {
		return s
	}
	return string([]rune(s)[:outputLimit]) + "... (output truncated)"
}

func stringifyOutput(output any) string {
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
