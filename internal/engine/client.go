package engine

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/reagent/internal/logger"
)

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	apiKey  string
	baseURL string
	model   string
	httpc   *http.Client
}

// NewClient creates a client for the given endpoint and model. baseURL is the
// API root (e.g. "https://api.example.com/v1").
func NewClient(apiKey, baseURL, model string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		// Streaming responses stay open for the whole generation, so no
		// overall timeout; cancellation comes from the request context.
		httpc: &http.Client{Timeout: 0},
	}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

type chatRequest struct {
	Model    string     `json:"model"`
	Messages []Message  `json:"messages"`
	Stream   bool       `json:"stream"`
	Tools    []toolDecl `json:"tools,omitempty"`
}

type toolDecl struct {
	Type     string       `json:"type"`
	Function functionDecl `json:"function"`
}

type functionDecl struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// StreamChat starts one streamed model round. The returned ChatStream yields
// TextFragment events; tool calls requested by the model are assembled
// incrementally and available from ToolCalls once the stream is drained.
func (c *Client) StreamChat(ctx context.Context, messages []Message, tools []ToolSpec) (*ChatStream, error) {
	req := chatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   true,
	}
	for _, t := range tools {
		req.Tools = append(req.Tools, toolDecl{
			Type: "function",
			Function: functionDecl{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	logger.Debug("Starting chat completion stream (model=%s, messages=%d, tools=%d)", c.model, len(messages), len(req.Tools))

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chat request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("chat request failed: %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	return &ChatStream{
		body:    resp.Body,
		scanner: scanner,
		started: time.Now(),
	}, nil
}

// ChatStream is one streamed model round. It is not safe for concurrent use.
type ChatStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	started time.Time

	calls  []ToolCall
	text   strings.Builder
	finish string
	done   bool
}

// chatChunk mirrors one SSE data frame from the completions endpoint.
type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Index    int    `json:"index"`
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// Next returns the next text fragment from the round, or io.EOF when the
// round is over. Tool-call deltas are absorbed into the assembled call list
// rather than surfaced as events. Malformed frames are logged and skipped.
func (s *ChatStream) Next() (Event, error) {
	if s.done {
		return nil, io.EOF
	}

	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)

		if data == "[DONE]" {
			s.finishRound()
			return nil, io.EOF
		}

		var chunk chatChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			logger.Warn("Skipping malformed stream chunk: %v", err)
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]

		if choice.FinishReason != nil && *choice.FinishReason != "" {
			s.finish = *choice.FinishReason
		}

		for _, tc := range choice.Delta.ToolCalls {
			s.mergeToolCallDelta(tc.Index, tc.ID, tc.Function.Name, tc.Function.Arguments)
		}

		if choice.Delta.Content != "" {
			s.text.WriteString(choice.Delta.Content)
			return TextFragment{Text: choice.Delta.Content}, nil
		}
	}

	if err := s.scanner.Err(); err != nil {
		// A broken connection mid-round is treated as an early end of the
		// round; the consumer sees io.EOF and works with what arrived.
		logger.Warn("Chat stream ended early: %v", err)
	}
	s.finishRound()
	return nil, io.EOF
}

func (s *ChatStream) finishRound() {
	s.done = true
	logger.Debug("Chat round finished (reason=%q, text=%d chars, tool calls=%d, took=%s)",
		s.finish, s.text.Len(), len(s.calls), time.Since(s.started).Round(time.Millisecond))
}

// mergeToolCallDelta folds one incremental tool-call fragment into the
// assembled call at the given index. Names arrive whole; argument text
// arrives in fragments and is concatenated.
func (s *ChatStream) mergeToolCallDelta(index int, id, name, args string) {
	for index >= len(s.calls) {
		s.calls = append(s.calls, ToolCall{Type: "function"})
	}
	call := &s.calls[index]
	if id != "" {
		call.ID = id
	}
	if name != "" {
		call.Function.Name = name
	}
	call.Function.Arguments += args
}

// ToolCalls returns the tool calls assembled during the round. Only complete
// after Next has returned io.EOF.
func (s *ChatStream) ToolCalls() []ToolCall { return s.calls }

// Text returns the full text accumulated during the round.
func (s *ChatStream) Text() string { return s.text.String() }

// FinishReason returns the reason the model stopped, if one was reported.
func (s *ChatStream) FinishReason() string { return s.finish }

// Close releases the underlying connection.
func (s *ChatStream) Close() error {
	s.done = true
	return s.body.Close()
}
