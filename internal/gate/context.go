package gate

import (
	"strconv"
	"strings"
)

const (
	// DefaultWindow is the number of turns rendered into the prompt addendum.
	DefaultWindow = 20

	// DefaultSummaryWindow is the number of turns in the summary tool output.
	DefaultSummaryWindow = 10

	// EmptyContext is rendered when no turn has been recorded.
	EmptyContext = "No conversation yet."

	noParticipants = "No other participants."
)

// ComposeContext renders the last window turns as "{name}: {text}" lines,
// oldest first. A window of zero or less uses DefaultWindow.
func ComposeContext(turns []Turn, window int) string {
	if len(turns) == 0 {
		return EmptyContext
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if len(turns) > window {
		turns = turns[len(turns)-window:]
	}
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(t.SpeakerName)
		b.WriteString(": ")
		b.WriteString(t.Text)
	}
	return b.String()
}

// FormatParticipants renders one "- {name}" line per name.
func FormatParticipants(names []string) string {
	if len(names) == 0 {
		return noParticipants
	}
	lines := make([]string, len(names))
	for i, n := range names {
		lines[i] = "- " + n
	}
	return strings.Join(lines, "\n")
}

// FormatAddendum builds the system message injected before the last chat
// message of an activated turn.
func FormatAddendum(participants, history string) string {
	var b strings.Builder
	b.WriteString("CONVERSATION CONTEXT:\n\nPARTICIPANTS:\n")
	b.WriteString(participants)
	b.WriteString("\n\nCONVERSATION HISTORY:\n")
	b.WriteString(history)
	b.WriteString("\n\nUse this context to provide relevant responses. Reference specific things people said.\n")
	return b.String()
}

// FormatSummary renders the conversation summary tool output.
func FormatSummary(turns []Turn, window int) string {
	if len(turns) == 0 {
		return EmptyContext
	}
	if window <= 0 {
		window = DefaultSummaryWindow
	}
	return "Total turns: " + strconv.Itoa(len(turns)) + "\n" + ComposeContext(turns, window)
}
