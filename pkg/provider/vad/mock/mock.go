// Package mock provides test doubles for the vad package interfaces.
package mock

import (
	"sync"

	"github.com/MrWong99/huddle/pkg/provider/vad"
)

// Engine is a mock implementation of vad.Engine. Each NewSession call
// returns a new Session that replays Script.
type Engine struct {
	mu sync.Mutex

	// Script is copied into every new Session.
	Script []vad.VADEventType

	// NewSessionErr, if non-nil, is returned by NewSession.
	NewSessionErr error

	// Configs records the Config of every NewSession call.
	Configs []vad.Config
}

// NewSession records cfg and returns a scripted Session.
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Configs = append(e.Configs, cfg)
	if e.NewSessionErr != nil {
		return nil, e.NewSessionErr
	}
	return &Session{Script: append([]vad.VADEventType(nil), e.Script...)}, nil
}

var _ vad.Engine = (*Engine)(nil)

// Session replays Script one event per frame. Once the script is used up
// every frame is reported as Default, whose zero value is speech start.
type Session struct {
	mu sync.Mutex

	Script  []vad.VADEventType
	Default vad.VADEventType

	// Err, if non-nil, is returned by every ProcessFrame call.
	Err error

	Frames int
	Resets int
	Closed int
}

// ProcessFrame returns the next scripted event.
func (s *Session) ProcessFrame(_ []byte) (vad.VADEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Frames++
	if s.Err != nil {
		return vad.VADEvent{}, s.Err
	}
	typ := s.Default
	if len(s.Script) > 0 {
		typ = s.Script[0]
		s.Script = s.Script[1:]
	}
	return vad.VADEvent{Type: typ, Probability: 1}, nil
}

// Reset counts the call.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Resets++
}

// Close counts the call.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed++
	return nil
}

var _ vad.SessionHandle = (*Session)(nil)
