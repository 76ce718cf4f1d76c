// Package vad defines the Engine interface for voice activity detection.
//
// An Engine hands out one stateful session per audio stream. Sessions are
// synchronous: ProcessFrame classifies a frame and returns immediately, so
// the call pipeline can use it to gate what reaches the STT provider.
//
// Engines must be safe for concurrent NewSession calls. A session belongs to
// one goroutine.
package vad

// Config holds the parameters for a VAD session.
type Config struct {
	// SampleRate of the mono 16-bit PCM passed to ProcessFrame, in Hz.
	SampleRate int

	// FrameSizeMs is the nominal frame duration in milliseconds.
	FrameSizeMs int

	// SpeechThreshold is the probability above which a frame counts as
	// speech. Range [0, 1].
	SpeechThreshold float64

	// SilenceThreshold is the probability below which a frame counts as
	// silence. Must not exceed SpeechThreshold.
	SilenceThreshold float64
}

// SessionHandle is a VAD session for one audio stream.
type SessionHandle interface {
	// ProcessFrame classifies one PCM frame.
	ProcessFrame(frame []byte) (VADEvent, error)

	// Reset forgets all accumulated state.
	Reset()

	// Close releases the session. Calling it more than once is safe.
	Close() error
}

// Engine creates VAD sessions.
type Engine interface {
	NewSession(cfg Config) (SessionHandle, error)
}
