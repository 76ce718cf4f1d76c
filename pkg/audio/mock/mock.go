// Package mock provides recording test doubles for [audio.Platform] and
// [audio.Connection].
//
//	out := make(chan audio.AudioFrame, 16)
//	conn := &mock.Connection{OutputStreamResult: out}
//	platform := &mock.Platform{ConnectResult: conn}
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/huddle/pkg/audio"
)

// Connection is a mock implementation of [audio.Connection].
// Set the Result fields before use; inspect the call counters afterwards.
type Connection struct {
	mu sync.Mutex

	// InputStreamsResult is returned by InputStreams. A nil map is returned
	// as an empty one.
	InputStreamsResult map[string]<-chan audio.AudioFrame

	// OutputStreamResult is returned by OutputStream.
	OutputStreamResult chan<- audio.AudioFrame

	// ParticipantsResult is returned by Participants.
	ParticipantsResult []audio.Participant

	// DisconnectError is returned by Disconnect.
	DisconnectError error

	CallCountInputStreams  int
	CallCountOutputStream  int
	CallCountParticipants  int
	CallCountDisconnect    int
	CallCountOnParticipant int

	callback func(audio.Event)
}

// InputStreams implements [audio.Connection].
func (c *Connection) InputStreams() map[string]<-chan audio.AudioFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCountInputStreams++
	out := make(map[string]<-chan audio.AudioFrame, len(c.InputStreamsResult))
	for k, v := range c.InputStreamsResult {
		out[k] = v
	}
	return out
}

// SetInputStream adds or replaces the stream for userID. Use it together with
// [Connection.Emit] to simulate a participant joining.
func (c *Connection) SetInputStream(userID string, ch <-chan audio.AudioFrame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.InputStreamsResult == nil {
		c.InputStreamsResult = make(map[string]<-chan audio.AudioFrame)
	}
	c.InputStreamsResult[userID] = ch
}

// OutputStream implements [audio.Connection].
func (c *Connection) OutputStream() chan<- audio.AudioFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCountOutputStream++
	return c.OutputStreamResult
}

// Participants implements [audio.Connection].
func (c *Connection) Participants() []audio.Participant {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCountParticipants++
	return append([]audio.Participant(nil), c.ParticipantsResult...)
}

// OnParticipantChange implements [audio.Connection]. The last registered
// callback receives events passed to [Connection.Emit].
func (c *Connection) OnParticipantChange(cb func(audio.Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCountOnParticipant++
	c.callback = cb
}

// Emit delivers ev to the registered callback, if any.
func (c *Connection) Emit(ev audio.Event) {
	c.mu.Lock()
	cb := c.callback
	c.mu.Unlock()
	if cb != nil {
		cb(ev)
	}
}

// Disconnect implements [audio.Connection].
func (c *Connection) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCountDisconnect++
	return c.DisconnectError
}

// Disconnects reports how many times Disconnect was called.
func (c *Connection) Disconnects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.CallCountDisconnect
}

// Platform is a mock implementation of [audio.Platform].
type Platform struct {
	mu sync.Mutex

	ConnectResult audio.Connection
	ConnectError  error

	// ConnectCalls records the channel IDs passed to Connect.
	ConnectCalls []string
}

// Connect implements [audio.Platform].
func (p *Platform) Connect(_ context.Context, channelID string) (audio.Connection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ConnectCalls = append(p.ConnectCalls, channelID)
	if p.ConnectError != nil {
		return nil, p.ConnectError
	}
	return p.ConnectResult, nil
}

var (
	_ audio.Connection = (*Connection)(nil)
	_ audio.Platform   = (*Platform)(nil)
)
