// Package stt defines the Provider interface for streaming speech-to-text
// backends.
//
// Each call participant gets its own session. Audio is pushed with SendAudio
// and transcripts come back on two channels: Partials for interim hypotheses
// and Finals for segments the provider will not revise anymore. Only finals
// drive the conversation.
//
// Implementations must be safe for concurrent use across sessions. A single
// SessionHandle is fed by one goroutine.
package stt

import (
	"context"

	"github.com/MrWong99/huddle/pkg/types"
)

// StreamConfig configures one streaming session. Audio is always 16-bit
// little-endian PCM.
type StreamConfig struct {
	// SampleRate of the PCM passed to SendAudio, in Hz.
	SampleRate int

	// Channels in the PCM passed to SendAudio.
	Channels int

	// Language is a BCP-47 tag such as "en" or "de-DE". Empty means the
	// provider default.
	Language string

	// Keywords are boosted during recognition, typically the trigger phrases.
	Keywords []types.KeywordBoost
}

// SessionHandle is an open streaming session.
type SessionHandle interface {
	// SendAudio queues a PCM chunk. It returns an error once the session is
	// closed.
	SendAudio(chunk []byte) error

	// Partials delivers interim transcripts. Closed when the session ends.
	Partials() <-chan types.Transcript

	// Finals delivers final transcripts. Closed when the session ends.
	Finals() <-chan types.Transcript

	// Finalize asks the provider to finish the current utterance now instead
	// of waiting for its own endpointing. Call it when local voice activity
	// detection reports the end of speech.
	Finalize() error

	// Close ends the session. Calling it more than once is safe.
	Close() error
}

// Provider opens streaming sessions.
type Provider interface {
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}
