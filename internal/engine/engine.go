// Package engine defines the VoiceEngine interface: the text-in, speech-out
// half of the assistant. An agent hands the engine a PromptContext and plays
// the Response's audio while the model is still generating.
//
// Implementations live in sub-packages; cascade is the STT-independent
// LLM → sentence splitter → TTS pipeline used by huddle.
package engine

import (
	"context"
	"errors"
	"sync"

	"github.com/MrWong99/huddle/pkg/audio"
	"github.com/MrWong99/huddle/pkg/types"
)

// ErrEndTurn may be returned by a ToolHandler to end the current turn after
// its result has been recorded. The model is not invoked again. Handoff tools
// use it.
var ErrEndTurn = errors.New("engine: end turn")

// PromptContext is everything the engine needs for one response.
type PromptContext struct {
	// SystemPrompt is sent as the first message.
	SystemPrompt string

	// Addendum, when non-empty, is inserted as a system message immediately
	// before the last message. It is not part of the chat history.
	Addendum string

	// Messages is the chat history, ending with the message to answer.
	Messages []types.Message

	// Temperature for the model. Zero leaves the provider default.
	Temperature float64

	// DisableTools withholds all tools for this response.
	DisableTools bool
}

// BuildMessages returns Messages with the Addendum inserted.
func (p PromptContext) BuildMessages() []types.Message {
	if p.Addendum == "" {
		return append([]types.Message(nil), p.Messages...)
	}
	out := make([]types.Message, 0, len(p.Messages)+1)
	last := len(p.Messages) - 1
	if last < 0 {
		last = 0
	}
	out = append(out, p.Messages[:last]...)
	out = append(out, types.Message{Role: "system", Content: p.Addendum})
	out = append(out, p.Messages[last:]...)
	return out
}

// ToolHandler executes one tool call. args and the result are JSON strings.
type ToolHandler func(ctx context.Context, name, args string) (string, error)

// Response is a response in progress.
type Response struct {
	// Audio streams PCM in Format. It is closed when synthesis ends. Callers
	// must drain it.
	Audio <-chan []byte

	// Format describes the PCM on Audio.
	Format audio.Format

	done    chan struct{}
	once    sync.Once
	text    string
	history []types.Message
	err     error
}

// NewResponse creates a Response. The engine calls Finish exactly once when
// generation is over.
func NewResponse(audioCh <-chan []byte, format audio.Format) *Response {
	return &Response{Audio: audioCh, Format: format, done: make(chan struct{})}
}

// Finish records the outcome and releases Wait. Later calls are ignored.
func (r *Response) Finish(text string, history []types.Message, err error) {
	r.once.Do(func() {
		r.text, r.history, r.err = text, history, err
		close(r.done)
	})
}

// Done is closed once generation is over.
func (r *Response) Done() <-chan struct{} { return r.done }

// Wait blocks until generation is over and returns the spoken text or the
// generation error.
func (r *Response) Wait() (string, error) {
	<-r.done
	return r.text, r.err
}

// History returns the messages this response added to the conversation:
// assistant tool-call messages, tool results and the final assistant reply.
// Valid after Wait returned.
func (r *Response) History() []types.Message {
	<-r.done
	return append([]types.Message(nil), r.history...)
}

// VoiceEngine produces spoken responses.
type VoiceEngine interface {
	// Process starts a response. It returns once synthesis has started; text
	// generation and audio continue in the background. Cancelling ctx aborts
	// both.
	Process(ctx context.Context, prompt PromptContext) (*Response, error)

	// SetTools replaces the tools offered to the model on later calls.
	SetTools(tools []types.ToolDefinition)

	// OnToolCall registers the tool executor. Only the last handler is kept.
	OnToolCall(handler ToolHandler)

	// Close releases the engine. Safe to call more than once.
	Close() error
}
