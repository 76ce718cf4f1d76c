// Package cascade implements engine.VoiceEngine as a plain streaming
// cascade: the LLM streams tokens, complete sentences are forwarded to a
// streaming TTS session as soon as they appear, and tool calls are executed
// between model rounds.
//
// Text reaches the speaker sentence by sentence, so playback starts after the
// first sentence instead of after the whole reply.
package cascade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/huddle/internal/engine"
	"github.com/MrWong99/huddle/internal/observe"
	"github.com/MrWong99/huddle/pkg/provider/llm"
	"github.com/MrWong99/huddle/pkg/provider/tts"
	"github.com/MrWong99/huddle/pkg/types"
)

const (
	defaultMaxRounds = 4
	textBuffer       = 16
)

var _ engine.VoiceEngine = (*Engine)(nil)

// Option configures an Engine.
type Option func(*Engine)

// WithMaxRounds caps the number of model invocations per response, tool
// rounds included. Default 4.
func WithMaxRounds(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxRounds = n
		}
	}
}

// WithMaxTokens caps the completion length of every round.
func WithMaxTokens(n int) Option {
	return func(e *Engine) { e.maxTokens = n }
}

// WithMetrics records LLM and TTS latencies.
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// Engine is safe for concurrent use; each Process call runs independently.
type Engine struct {
	llm       llm.Provider
	tts       tts.Provider
	voice     tts.VoiceProfile
	maxRounds int
	maxTokens int
	metrics   *observe.Metrics

	mu      sync.Mutex
	tools   []types.ToolDefinition
	handler engine.ToolHandler
	closed  bool
	wg      sync.WaitGroup
}

// New creates an engine that speaks with voice.
func New(l llm.Provider, t tts.Provider, voice tts.VoiceProfile, opts ...Option) *Engine {
	e := &Engine{llm: l, tts: t, voice: voice, maxRounds: defaultMaxRounds}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Process implements engine.VoiceEngine.
func (e *Engine) Process(ctx context.Context, prompt engine.PromptContext) (*engine.Response, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, errors.New("cascade: engine closed")
	}
	var tools []types.ToolDefinition
	if !prompt.DisableTools && e.llm.Capabilities().SupportsToolCalling {
		tools = append(tools, e.tools...)
	}
	handler := e.handler
	e.wg.Add(1)
	e.mu.Unlock()

	textCh := make(chan string, textBuffer)
	audioCh, err := e.tts.SynthesizeStream(ctx, textCh, e.voice)
	if err != nil {
		close(textCh)
		e.wg.Done()
		return nil, fmt.Errorf("cascade: start tts: %w", err)
	}
	resp := engine.NewResponse(audioCh, e.tts.Format())

	req := llm.CompletionRequest{
		SystemPrompt: prompt.SystemPrompt,
		Messages:     prompt.BuildMessages(),
		Tools:        tools,
		Temperature:  prompt.Temperature,
		MaxTokens:    e.maxTokens,
	}

	go func() {
		defer e.wg.Done()
		// Finish before closing textCh: by the time the audio channel closes
		// the result is available to Wait.
		defer close(textCh)
		text, history, err := e.run(ctx, req, handler, textCh)
		resp.Finish(text, history, err)
	}()

	return resp, nil
}

// run drives the model rounds and returns the spoken text and the messages
// produced along the way.
func (e *Engine) run(ctx context.Context, req llm.CompletionRequest, handler engine.ToolHandler, textCh chan<- string) (string, []types.Message, error) {
	var (
		spoken  []string
		history []types.Message
	)
	start := time.Now()
	for round := 1; ; round++ {
		ch, err := e.llm.StreamCompletion(ctx, req)
		if err != nil {
			return strings.Join(spoken, " "), history, fmt.Errorf("cascade: start completion: %w", err)
		}
		text, calls, err := e.forwardSentences(ctx, ch, textCh, start)
		if text != "" {
			spoken = append(spoken, text)
		}
		if err != nil {
			return strings.Join(spoken, " "), history, err
		}

		if len(calls) == 0 {
			if text != "" {
				history = append(history, types.Message{Role: "assistant", Content: text})
			}
			return strings.Join(spoken, " "), history, nil
		}

		asst := types.Message{Role: "assistant", Content: text, ToolCalls: calls}
		req.Messages = append(req.Messages, asst)
		history = append(history, asst)

		endTurn := false
		for _, tc := range calls {
			result := e.execTool(ctx, handler, tc, &endTurn)
			msg := types.Message{Role: "tool", Content: result, ToolCallID: tc.ID, Name: tc.Name}
			req.Messages = append(req.Messages, msg)
			history = append(history, msg)
		}
		if endTurn {
			return strings.Join(spoken, " "), history, nil
		}
		if round >= e.maxRounds {
			slog.Warn("cascade: tool round limit reached", "rounds", round)
			return strings.Join(spoken, " "), history, nil
		}
	}
}

func (e *Engine) execTool(ctx context.Context, handler engine.ToolHandler, tc types.ToolCall, endTurn *bool) string {
	if handler == nil {
		return fmt.Sprintf(`{"error":"no handler for tool %q"}`, tc.Name)
	}
	start := time.Now()
	result, err := handler(ctx, tc.Name, tc.Arguments)
	status := "ok"
	switch {
	case errors.Is(err, engine.ErrEndTurn):
		*endTurn = true
		if result == "" {
			result = `{"status":"ok"}`
		}
	case err != nil:
		status = "error"
		slog.Warn("cascade: tool failed", "tool", tc.Name, "err", err)
		result = fmt.Sprintf(`{"error":%q}`, err.Error())
	}
	if e.metrics != nil {
		e.metrics.RecordToolCall(ctx, tc.Name, status, time.Since(start))
	}
	return result
}

// forwardSentences reads one model stream, sends each complete sentence to
// textCh, and returns the round's full text and tool calls. A stream error
// chunk or a cancelled ctx ends the round with an error.
func (e *Engine) forwardSentences(ctx context.Context, ch <-chan llm.Chunk, textCh chan<- string, start time.Time) (string, []types.ToolCall, error) {
	var (
		buf   strings.Builder
		full  strings.Builder
		calls []types.ToolCall
		first = true
	)
	send := func(s string) error {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		if first && e.metrics != nil {
			e.metrics.RecordLLMFirstSentence(ctx, time.Since(start))
		}
		first = false
		select {
		case textCh <- s:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	defer func() {
		// Unblock the provider goroutine if we stopped reading early.
		go drainChunks(ch)
	}()

	for {
		var (
			chunk llm.Chunk
			ok    bool
		)
		select {
		case <-ctx.Done():
			return full.String(), nil, ctx.Err()
		case chunk, ok = <-ch:
		}
		if !ok {
			break
		}
		if chunk.FinishReason == llm.FinishError {
			return full.String(), nil, fmt.Errorf("cascade: completion: %s", chunk.Text)
		}

		buf.WriteString(chunk.Text)
		full.WriteString(chunk.Text)
		for {
			s := buf.String()
			idx := firstSentenceBoundary(s)
			if idx < 0 {
				break
			}
			buf.Reset()
			buf.WriteString(strings.TrimLeft(s[idx+1:], " \t\n\r"))
			if err := send(s[:idx+1]); err != nil {
				return full.String(), nil, err
			}
		}
		if chunk.FinishReason != "" {
			calls = chunk.ToolCalls
			break
		}
	}
	if err := send(buf.String()); err != nil {
		return full.String(), nil, err
	}
	return strings.TrimSpace(full.String()), calls, nil
}

// SetTools implements engine.VoiceEngine.
func (e *Engine) SetTools(tools []types.ToolDefinition) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tools = append([]types.ToolDefinition(nil), tools...)
}

// OnToolCall implements engine.VoiceEngine.
func (e *Engine) OnToolCall(handler engine.ToolHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handler = handler
}

// Close implements engine.VoiceEngine. It rejects new responses and waits
// for running ones to finish; cancel their contexts first to abort them.
func (e *Engine) Close() error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.wg.Wait()
	return nil
}

// firstSentenceBoundary returns the index of the first '.', '!' or '?' that
// is followed by whitespace, or -1.
func firstSentenceBoundary(s string) int {
	for i := 0; i < len(s)-1; i++ {
		switch s[i] {
		case '.', '!', '?':
			switch s[i+1] {
			case ' ', '\n', '\r', '\t':
				return i
			}
		}
	}
	return -1
}

func drainChunks(ch <-chan llm.Chunk) {
	for range ch {
	}
}
