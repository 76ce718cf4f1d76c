package vad

// VADEvent is the classification of a single frame.
type VADEvent struct {
	Type VADEventType

	// Probability is the speech likelihood of the frame, in [0, 1].
	Probability float64
}

// VADEventType enumerates VAD detection states.
type VADEventType int

const (
	// VADSpeechStart marks the first frame of a speech segment.
	VADSpeechStart VADEventType = iota

	// VADSpeechContinue marks a frame inside a speech segment, including the
	// hangover after the speaker paused.
	VADSpeechContinue

	// VADSpeechEnd marks the frame that closed a speech segment.
	VADSpeechEnd

	// VADSilence marks a frame outside any speech segment.
	VADSilence
)

// String returns the event name.
func (t VADEventType) String() string {
	switch t {
	case VADSpeechStart:
		return "speech_start"
	case VADSpeechContinue:
		return "speech_continue"
	case VADSpeechEnd:
		return "speech_end"
	case VADSilence:
		return "silence"
	default:
		return "unknown"
	}
}
