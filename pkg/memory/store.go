// Package memory defines the transcript archive of huddle calls.
//
// The archive is a sink: a call writes its conversation log and the
// assistant's replies while it runs, and nothing in huddle ever reads them
// back. A call's working memory lives in the gate and the chat context and
// dies with the call.
//
// Implementations must be safe for concurrent use.
package memory

import (
	"context"
	"time"
)

// Entry roles.
const (
	RoleParticipant = "participant"
	RoleAssistant   = "assistant"
)

// CallRecord describes one call.
type CallRecord struct {
	// ID is the call's session ID (a UUID).
	ID        string
	GuildID   string
	ChannelID string
	// StartedBy is the user ID that started the call, empty for auto-join.
	StartedBy string
	// Mode is "assistant" or "handoff".
	Mode      string
	StartedAt time.Time
}

// CallStats are written when a call ends.
type CallStats struct {
	EndedAt     time.Time
	TotalTurns  int
	Activations int
}

// Entry is one archived line of a call.
type Entry struct {
	SpeakerID   string
	SpeakerName string
	Text        string
	// Role is RoleParticipant or RoleAssistant.
	Role string
	// Activation marks a turn that woke the assistant.
	Activation bool
	Timestamp  time.Time
}

// Archive stores calls and their transcripts.
type Archive interface {
	// BeginCall records the start of a call.
	BeginCall(ctx context.Context, call CallRecord) error

	// WriteEntries appends entries to the call's transcript in order.
	WriteEntries(ctx context.Context, callID string, entries []Entry) error

	// EndCall records the end of a call.
	EndCall(ctx context.Context, callID string, stats CallStats) error
}
