// Package mock provides test doubles for the stt package interfaces.
//
// A Provider without a preset Session creates a fresh Session per
// StartStream call, which lets call-pipeline tests address each
// participant's session individually:
//
//	p := &mock.Provider{}
//	handle, _ := p.StartStream(ctx, cfg)
//	p.Sessions()[0].FinalsCh <- types.Transcript{Text: "hey alex", IsFinal: true}
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/huddle/pkg/provider/stt"
	"github.com/MrWong99/huddle/pkg/types"
)

// StartStreamCall records a single invocation of Provider.StartStream.
type StartStreamCall struct {
	Ctx context.Context
	Cfg stt.StreamConfig
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Session, if set, is returned by every StartStream call.
	Session stt.SessionHandle

	// StartStreamErr, if non-nil, is returned by StartStream.
	StartStreamErr error

	// StartStreamCalls records every call to StartStream.
	StartStreamCalls []StartStreamCall

	created []*Session
	notify  chan struct{}
}

// StartStream records the call and returns Session, or a new buffered
// Session when Session is nil.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StartStreamCalls = append(p.StartStreamCalls, StartStreamCall{Ctx: ctx, Cfg: cfg})
	if p.StartStreamErr != nil {
		return nil, p.StartStreamErr
	}
	if p.Session != nil {
		return p.Session, nil
	}
	s := NewSession()
	p.created = append(p.created, s)
	if p.notify != nil {
		select {
		case p.notify <- struct{}{}:
		default:
		}
	}
	return s, nil
}

// Sessions returns the sessions created so far, in order.
func (p *Provider) Sessions() []*Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Session(nil), p.created...)
}

// Started returns a channel that receives a value whenever StartStream
// creates a session. Call it before the code under test starts streams.
func (p *Provider) Started() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.notify == nil {
		p.notify = make(chan struct{}, 16)
	}
	return p.notify
}

var _ stt.Provider = (*Provider)(nil)

// Session is a mock implementation of stt.SessionHandle. Tests push
// transcripts into PartialsCh and FinalsCh; Close closes both channels.
type Session struct {
	mu sync.Mutex

	PartialsCh chan types.Transcript
	FinalsCh   chan types.Transcript

	// SendAudioErr, if non-nil, is returned by every SendAudio call.
	SendAudioErr error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// SentAudio holds copies of every chunk passed to SendAudio.
	SentAudio [][]byte

	FinalizeCount int
	CloseCount    int

	closeOnce sync.Once
}

// NewSession returns a Session with buffered transcript channels.
func NewSession() *Session {
	return &Session{
		PartialsCh: make(chan types.Transcript, 16),
		FinalsCh:   make(chan types.Transcript, 16),
	}
}

// SendAudio records a copy of chunk.
func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SentAudio = append(s.SentAudio, append([]byte(nil), chunk...))
	return s.SendAudioErr
}

// Partials returns PartialsCh.
func (s *Session) Partials() <-chan types.Transcript { return s.PartialsCh }

// Finals returns FinalsCh.
func (s *Session) Finals() <-chan types.Transcript { return s.FinalsCh }

// Finalize counts the call.
func (s *Session) Finalize() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FinalizeCount++
	return nil
}

// Close counts the call and closes the transcript channels once.
func (s *Session) Close() error {
	s.mu.Lock()
	s.CloseCount++
	err := s.CloseErr
	s.mu.Unlock()
	s.closeOnce.Do(func() {
		close(s.PartialsCh)
		close(s.FinalsCh)
	})
	return err
}

// Chunks returns how many audio chunks were sent.
func (s *Session) Chunks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.SentAudio)
}

// Finalized returns how many times Finalize was called.
func (s *Session) Finalized() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.FinalizeCount
}

var _ stt.SessionHandle = (*Session)(nil)
