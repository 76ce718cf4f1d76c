// Package types holds the data passed between providers, the engine and the
// agents. Anything owned by a single package lives in that package instead.
package types

import "time"

// Transcript is a speech-to-text result. Providers emit partial transcripts
// while a speaker talks and one final transcript per utterance.
type Transcript struct {
	Text    string
	IsFinal bool

	// Confidence is in [0, 1]; zero when the provider does not report it.
	Confidence float64

	// Words is nil unless the provider returns word timings.
	Words []WordDetail

	// SpeakerID is the platform user ID. Providers leave it empty and the
	// call pipeline fills it in.
	SpeakerID string

	// Timestamp is the utterance start relative to the stream start.
	Timestamp time.Duration
	Duration  time.Duration
}

// WordDetail is one recognised word with its timing.
type WordDetail struct {
	Word       string
	Start      time.Duration
	End        time.Duration
	Confidence float64
}

// KeywordBoost raises the recognition weight of a word such as a trigger
// phrase. The scale of Boost is provider specific.
type KeywordBoost struct {
	Keyword string
	Boost   float64
}

// Message is one entry of a chat history sent to an LLM.
type Message struct {
	// Role is "system", "user", "assistant" or "tool".
	Role    string
	Content string

	// Name tells speakers apart on user messages. Model APIs restrict it to
	// [A-Za-z0-9_-].
	Name string

	// ToolCalls is set on assistant messages that invoke tools.
	ToolCalls []ToolCall

	// ToolCallID links a "tool" message to the call it answers.
	ToolCallID string
}

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	ID   string
	Name string

	// Arguments is the raw JSON object the model produced.
	Arguments string
}

// ToolDefinition is a tool offered to the model.
type ToolDefinition struct {
	Name        string
	Description string

	// Parameters is a JSON Schema object.
	Parameters map[string]any
}

// ModelCapabilities describes an LLM model. Zero values mean unknown.
type ModelCapabilities struct {
	ContextWindow       int
	MaxOutputTokens     int
	SupportsToolCalling bool
	SupportsVision      bool
	SupportsStreaming   bool
}
