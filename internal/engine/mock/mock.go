// Package mock provides a scripted engine.VoiceEngine for agent tests.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/huddle/internal/engine"
	"github.com/MrWong99/huddle/pkg/audio"
	"github.com/MrWong99/huddle/pkg/types"
)

var _ engine.VoiceEngine = (*VoiceEngine)(nil)

// Reply scripts one Process call.
type Reply struct {
	Text  string
	Audio [][]byte
	// ToolCalls are executed through the registered handler before the
	// response finishes, mimicking a model tool round.
	ToolCalls []types.ToolCall
	// Err is returned from Wait.
	Err error
}

// VoiceEngine replays Replies in order; once they run out every call gets
// Default. Set ProcessErr to fail Process itself.
type VoiceEngine struct {
	mu sync.Mutex

	Replies    []Reply
	Default    Reply
	ProcessErr error
	// Format is reported on every Response. Zero means 24 kHz mono.
	Format audio.Format

	prompts    []engine.PromptContext
	tools      []types.ToolDefinition
	handler    engine.ToolHandler
	toolErrs   []error
	closeCount int
}

// Process implements engine.VoiceEngine.
func (e *VoiceEngine) Process(ctx context.Context, prompt engine.PromptContext) (*engine.Response, error) {
	e.mu.Lock()
	prompt.Messages = append([]types.Message(nil), prompt.Messages...)
	e.prompts = append(e.prompts, prompt)
	if e.ProcessErr != nil {
		err := e.ProcessErr
		e.mu.Unlock()
		return nil, err
	}
	r := e.Default
	if len(e.Replies) > 0 {
		r, e.Replies = e.Replies[0], e.Replies[1:]
	}
	handler := e.handler
	format := e.Format
	e.mu.Unlock()

	if format == (audio.Format{}) {
		format = audio.Format{SampleRate: 24000, Channels: 1}
	}
	ch := make(chan []byte, len(r.Audio))
	for _, a := range r.Audio {
		ch <- a
	}
	close(ch)
	resp := engine.NewResponse(ch, format)

	var history []types.Message
	if len(r.ToolCalls) > 0 && !prompt.DisableTools {
		history = append(history, types.Message{Role: "assistant", ToolCalls: r.ToolCalls})
		for _, tc := range r.ToolCalls {
			var result string
			var err error
			if handler != nil {
				result, err = handler(ctx, tc.Name, tc.Arguments)
			}
			e.mu.Lock()
			e.toolErrs = append(e.toolErrs, err)
			e.mu.Unlock()
			history = append(history, types.Message{Role: "tool", Content: result, ToolCallID: tc.ID, Name: tc.Name})
		}
	}
	if r.Text != "" {
		history = append(history, types.Message{Role: "assistant", Content: r.Text})
	}
	resp.Finish(r.Text, history, r.Err)
	return resp, nil
}

// SetTools implements engine.VoiceEngine.
func (e *VoiceEngine) SetTools(tools []types.ToolDefinition) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tools = append([]types.ToolDefinition(nil), tools...)
}

// OnToolCall implements engine.VoiceEngine.
func (e *VoiceEngine) OnToolCall(h engine.ToolHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handler = h
}

// Close implements engine.VoiceEngine.
func (e *VoiceEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closeCount++
	return nil
}

// Prompts returns every PromptContext passed to Process.
func (e *VoiceEngine) Prompts() []engine.PromptContext {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]engine.PromptContext(nil), e.prompts...)
}

// Tools returns the last tool set.
func (e *VoiceEngine) Tools() []types.ToolDefinition {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]types.ToolDefinition(nil), e.tools...)
}

// ToolErrors returns the handler errors of scripted tool calls in order.
func (e *VoiceEngine) ToolErrors() []error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]error(nil), e.toolErrs...)
}

// CloseCount returns how often Close was called.
func (e *VoiceEngine) CloseCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closeCount
}
