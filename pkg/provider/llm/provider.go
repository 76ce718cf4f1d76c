// Package llm defines the Provider interface for chat-completion backends.
//
// Providers stream their output: StreamCompletion returns a channel of
// Chunks that the engine turns into sentences for speech synthesis while the
// model is still generating.
//
// Implementations must be safe for concurrent use. The chunk channel is
// closed by the implementation when generation ends or ctx is cancelled.
package llm

import (
	"context"

	"github.com/MrWong99/huddle/pkg/types"
)

// Finish reasons reported on the last chunk of a stream.
const (
	FinishStop      = "stop"
	FinishLength    = "length"
	FinishToolCalls = "tool_calls"

	// FinishError marks a chunk that carries a mid-stream failure; its Text
	// holds the error message.
	FinishError = "error"
)

// CompletionRequest carries everything the model needs for one turn.
type CompletionRequest struct {
	// SystemPrompt is sent as the first system message when non-empty.
	SystemPrompt string

	// Messages is the ordered conversation history.
	Messages []types.Message

	// Tools offered to the model. Empty disables tool calling.
	Tools []types.ToolDefinition

	// Temperature in [0, 2]. Zero leaves the provider default.
	Temperature float64

	// MaxTokens caps the completion length. Zero leaves the provider default.
	MaxTokens int
}

// Chunk is one increment of a streaming completion.
type Chunk struct {
	// Text is the incremental content. Empty for pure tool-call or finish chunks.
	Text string

	// FinishReason is set on the last chunk, see the Finish constants.
	FinishReason string

	// ToolCalls is set on the last chunk when the model requested tools. The
	// provider has already joined argument fragments.
	ToolCalls []types.ToolCall
}

// Provider is the abstraction over any LLM backend.
type Provider interface {
	// StreamCompletion starts generation and returns the chunk channel.
	// Failures after the stream started arrive as a chunk with FinishReason
	// [FinishError]. The returned channel is never nil when err is nil.
	StreamCompletion(ctx context.Context, req CompletionRequest) (<-chan Chunk, error)

	// Capabilities describes the configured model. The result is constant.
	Capabilities() types.ModelCapabilities
}
