// Package energy implements vad.Engine with an RMS energy detector.
//
// A frame's speech probability is its RMS amplitude relative to a reference
// level, capped at 1. Speech starts after a few consecutive loud frames and
// ends after a hangover of quiet audio, so short pauses inside a sentence do
// not split it. Time is measured from sample counts, so frames of any length
// are accepted.
package energy

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MrWong99/huddle/pkg/audio"
	"github.com/MrWong99/huddle/pkg/provider/vad"
)

const (
	defaultReference = 0.05
	defaultStart     = 40 * time.Millisecond
	defaultHangover  = 600 * time.Millisecond
)

var errClosed = errors.New("energy: session closed")

// Option configures an Engine.
type Option func(*Engine)

// WithReference sets the RMS level, in [0, 1] of full scale, that maps to a
// speech probability of 1.
func WithReference(level float64) Option {
	return func(e *Engine) {
		if level > 0 {
			e.reference = level
		}
	}
}

// WithStart sets how long audio must stay above the speech threshold before
// a segment starts.
func WithStart(d time.Duration) Option {
	return func(e *Engine) { e.start = d }
}

// WithHangover sets how long audio must stay below the silence threshold
// before a segment ends.
func WithHangover(d time.Duration) Option {
	return func(e *Engine) { e.hangover = d }
}

// Engine creates energy VAD sessions.
type Engine struct {
	reference float64
	start     time.Duration
	hangover  time.Duration
}

// New returns an Engine with the given options applied over the defaults.
func New(opts ...Option) *Engine {
	e := &Engine{
		reference: defaultReference,
		start:     defaultStart,
		hangover:  defaultHangover,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// NewSession validates cfg and returns a fresh session.
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("energy: sample rate must be positive, got %d", cfg.SampleRate)
	}
	if cfg.SpeechThreshold <= 0 || cfg.SpeechThreshold > 1 {
		return nil, fmt.Errorf("energy: speech threshold %v out of range (0, 1]", cfg.SpeechThreshold)
	}
	if cfg.SilenceThreshold < 0 || cfg.SilenceThreshold > cfg.SpeechThreshold {
		return nil, fmt.Errorf("energy: silence threshold %v must be in [0, %v]", cfg.SilenceThreshold, cfg.SpeechThreshold)
	}
	return &session{
		engine: e,
		cfg:    cfg,
		format: audio.Format{SampleRate: cfg.SampleRate, Channels: 1},
	}, nil
}

type session struct {
	engine *Engine
	cfg    vad.Config
	format audio.Format

	mu       sync.Mutex
	speaking bool
	loud     time.Duration // consecutive time above the speech threshold
	quiet    time.Duration // consecutive time below the silence threshold
	closed   bool
}

func (s *session) ProcessFrame(frame []byte) (vad.VADEvent, error) {
	if len(frame)%2 != 0 {
		return vad.VADEvent{}, fmt.Errorf("energy: odd frame length %d", len(frame))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return vad.VADEvent{}, errClosed
	}

	p := audio.RMS(frame) / s.engine.reference
	if p > 1 {
		p = 1
	}
	d := s.format.Duration(len(frame))
	ev := vad.VADEvent{Probability: p}

	if !s.speaking {
		if p >= s.cfg.SpeechThreshold {
			s.loud += d
		} else {
			s.loud = 0
		}
		if s.loud > 0 && s.loud >= s.engine.start {
			s.speaking = true
			s.loud = 0
			s.quiet = 0
			ev.Type = vad.VADSpeechStart
			return ev, nil
		}
		ev.Type = vad.VADSilence
		return ev, nil
	}

	if p < s.cfg.SilenceThreshold {
		s.quiet += d
	} else {
		s.quiet = 0
	}
	if s.quiet >= s.engine.hangover {
		s.speaking = false
		s.quiet = 0
		ev.Type = vad.VADSpeechEnd
		return ev, nil
	}
	ev.Type = vad.VADSpeechContinue
	return ev, nil
}

func (s *session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speaking = false
	s.loud = 0
	s.quiet = 0
}

func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var _ vad.Engine = (*Engine)(nil)
