package tts

// VoiceProfile selects the voice a response is spoken with.
type VoiceProfile struct {
	// ID is the provider-specific voice identifier.
	ID string

	// Name is a human-readable label used in logs.
	Name string

	// Provider names the TTS backend the ID belongs to.
	Provider string

	// Language is an optional BCP-47 tag; empty means the provider default.
	Language string
}
