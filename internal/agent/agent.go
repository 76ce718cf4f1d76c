// Package agent turns the final transcripts of a call into spoken replies.
//
// Two agents exist. [Assistant] is the wake-gated persona that stays silent
// until a trigger phrase addresses it. [Team] runs the handoff roles, which
// answer every utterance and pass the conversation between each other through
// delegate tools.
//
// Agents are driven by the single transcript consumer of a call, so
// HandleTranscript is never called concurrently for one agent.
package agent

import (
	"context"
	"strings"
	"unicode"

	"github.com/MrWong99/huddle/pkg/types"
)

// Agent reacts to final transcripts.
type Agent interface {
	// Name is the persona or team name used in logs and metrics.
	Name() string

	// HandleTranscript processes one transcript. Interim transcripts are
	// ignored. It returns once the reply, if any, has been played.
	HandleTranscript(ctx context.Context, t types.Transcript) error
}

const logTextLimit = 60

// truncate shortens s to logTextLimit runes for log lines.
func truncate(s string) string {
	r := []rune(s)
	if len(r) <= logTextLimit {
		return s
	}
	return string(r[:logTextLimit]) + "..."
}

// messageName turns a display name into a chat message name. Model APIs only
// accept letters, digits, '_' and '-', up to 64 characters.
func messageName(display string) string {
	var b strings.Builder
	for _, r := range display {
		if b.Len() == 64 {
			break
		}
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)), r == '_', r == '-':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte('_')
		}
	}
	return b.String()
}
