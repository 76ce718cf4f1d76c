package audio

import "time"

// AudioFrame is one chunk of 16-bit little-endian PCM on the call path.
type AudioFrame struct {
	Data []byte

	// SampleRate in Hz, e.g. 48000 for Discord and 16000 for STT.
	SampleRate int

	// Channels is 1 for mono and 2 for stereo.
	Channels int

	// Timestamp marks when the frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Format returns the frame's sample format.
func (f AudioFrame) Format() Format {
	return Format{SampleRate: f.SampleRate, Channels: f.Channels}
}
