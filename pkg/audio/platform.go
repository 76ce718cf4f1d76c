// Package audio defines how huddle talks to a voice platform and the PCM
// helpers shared by the call pipeline.
//
// A [Platform] joins a voice channel and yields a [Connection]. The connection
// exposes one input stream per participant, a single output stream for the
// assistant's voice, and join/leave events. Platform adapters live in
// sub-packages such as audio/discord.
package audio

import (
	"context"
)

// EventType classifies participant lifecycle events emitted by a [Connection].
type EventType int

const (
	// EventJoin is emitted when a participant enters the voice channel.
	EventJoin EventType = iota

	// EventLeave is emitted when a participant leaves the voice channel.
	EventLeave
)

// String returns the human-readable name of the event type.
func (e EventType) String() string {
	switch e {
	case EventJoin:
		return "JOIN"
	case EventLeave:
		return "LEAVE"
	default:
		return "UNKNOWN"
	}
}

// Event describes a participant lifecycle change on a voice channel.
type Event struct {
	Type EventType

	// UserID is the platform identity of the participant.
	UserID string

	// Username is the display name of the participant.
	Username string
}

// Participant is a member of the voice channel at the time of the query.
type Participant struct {
	UserID   string
	Username string
}

// Connection represents an active session on a voice channel.
//
// All channels returned by a Connection are closed when it terminates,
// except the output stream which belongs to the writer.
// Implementations must be safe for concurrent use.
type Connection interface {
	// InputStreams returns a snapshot of the per-participant audio channels,
	// keyed by platform user ID. Call it again after an [EventJoin] to pick up
	// new speakers.
	InputStreams() map[string]<-chan AudioFrame

	// OutputStream returns the channel that carries the assistant's voice to
	// the call. Frames written after Disconnect are dropped.
	OutputStream() chan<- AudioFrame

	// Participants lists the users currently in the channel, excluding the
	// bot itself.
	Participants() []Participant

	// OnParticipantChange registers the join/leave callback, replacing any
	// previous one. It is invoked on an internal goroutine and must not block.
	OnParticipantChange(cb func(Event))

	// Disconnect tears the connection down. Calling it again is a no-op.
	Disconnect() error
}

// Platform is the entry point for a voice-channel provider.
type Platform interface {
	// Connect joins channelID. ctx bounds the connection attempt only.
	Connect(ctx context.Context, channelID string) (Connection, error)
}
