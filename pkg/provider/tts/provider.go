// Package tts defines the Provider interface for streaming text-to-speech
// backends.
//
// SynthesizeStream takes a channel of text fragments (typically whole
// sentences from a streaming LLM) and returns raw PCM as it is produced, so
// playback can start before the model has finished talking.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"

	"github.com/MrWong99/huddle/pkg/audio"
)

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// SynthesizeStream reads fragments from text until it is closed and emits
	// 16-bit little-endian PCM in [Provider.Format]. The audio channel is
	// closed when synthesis finished, failed, or ctx was cancelled; callers
	// must drain it.
	//
	// A non-nil error means the stream could not be started.
	SynthesizeStream(ctx context.Context, text <-chan string, voice VoiceProfile) (<-chan []byte, error)

	// Format reports the sample rate and channel count of the emitted PCM.
	Format() audio.Format
}
