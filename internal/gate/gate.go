// Package gate decides which finalised transcripts of a call reach the
// assistant. Every transcript is appended to the call's conversation log;
// only text addressed to the assistant through a trigger phrase, or text
// spoken while the gate awaits a follow-up, is forwarded.
//
// The gate has two states. Silent forwards nothing until a trigger phrase is
// heard. Awaiting forwards every transcript verbatim until exactly one
// response has been delivered through [Gate.Respond], after which the gate is
// Silent again whether the response succeeded or not.
//
// A Gate is safe for concurrent use. The log is written by the single
// transcript consumer of a call and may be read from anywhere.
package gate

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrEmptyPhrase is returned by New when a trigger phrase normalises to "".
var ErrEmptyPhrase = errors.New("gate: empty trigger phrase")

// State is the activation state of a gate.
type State int

const (
	// Silent: transcripts are logged only.
	Silent State = iota
	// Awaiting: the next transcripts are forwarded until a response is delivered.
	Awaiting
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Silent:
		return "silent"
	case Awaiting:
		return "awaiting"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Action tells the caller what to do with an ingested transcript.
type Action int

const (
	Suppress Action = iota
	Forward
)

// String implements fmt.Stringer.
func (a Action) String() string {
	if a == Forward {
		return "forward"
	}
	return "suppress"
}

// Turn is one finalised utterance in the conversation log. Turns are
// immutable once appended.
type Turn struct {
	Timestamp   time.Time
	SpeakerID   string
	SpeakerName string
	// Text is the original, non-normalised transcript.
	Text string
	// Activation marks the turn whose trigger phrase started an activation.
	Activation bool
}

// Decision is the outcome of Ingest.
type Decision struct {
	Action Action
	// Utterance is the text to answer. Empty on Suppress.
	Utterance string
	// Trigger is the matched phrase in normalised form, if any.
	Trigger string
	// Activated is true when this call moved the gate from Silent to Awaiting.
	Activated bool
	// Turn is the appended log entry.
	Turn Turn
}

// Stats are the per-call counters.
type Stats struct {
	TotalTurns  int
	Activations int
	State       State
}

// Corrector rewrites near-miss trigger words in normalised text before
// matching.
type Corrector interface {
	Correct(normalised string) string
}

// Option configures a Gate.
type Option func(*Gate)

// WithWindow sets how many turns the prompt addendum renders.
func WithWindow(n int) Option {
	return func(g *Gate) { g.window = n }
}

// WithSummaryWindow sets how many turns Summary renders.
func WithSummaryWindow(n int) Option {
	return func(g *Gate) { g.summaryWindow = n }
}

// WithCorrector enables trigger correction.
func WithCorrector(c Corrector) Option {
	return func(g *Gate) { g.corrector = c }
}

// WithRegistry shares an existing speaker registry.
func WithRegistry(r *Registry) Option {
	return func(g *Gate) { g.registry = r }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// Gate is the activation gate and conversation log of one call.
type Gate struct {
	phrases       []string
	window        int
	summaryWindow int
	corrector     Corrector
	registry      *Registry
	now           func() time.Time

	mu          sync.Mutex
	state       State
	log         []Turn
	activations int
}

// New creates a Silent gate. Phrases are matched in the given order after
// normalisation. A gate without phrases never activates and only keeps the log.
func New(phrases []string, opts ...Option) (*Gate, error) {
	g := &Gate{
		window:        DefaultWindow,
		summaryWindow: DefaultSummaryWindow,
		now:           time.Now,
	}
	for _, p := range phrases {
		n := Normalise(p)
		if n == "" {
			return nil, fmt.Errorf("%w: %q", ErrEmptyPhrase, p)
		}
		g.phrases = append(g.phrases, n)
	}
	for _, o := range opts {
		o(g)
	}
	if g.registry == nil {
		g.registry = NewRegistry()
	}
	return g, nil
}

// Registry returns the speaker registry used to resolve identities.
func (g *Gate) Registry() *Registry { return g.registry }

// Phrases returns the normalised trigger phrases in match order.
func (g *Gate) Phrases() []string {
	return append([]string(nil), g.phrases...)
}

// Ingest records one finalised transcript and decides whether it is forwarded.
func (g *Gate) Ingest(speakerID, text string) Decision {
	id, name := g.registry.Resolve(speakerID)

	g.mu.Lock()
	defer g.mu.Unlock()

	turn := Turn{
		Timestamp:   g.now(),
		SpeakerID:   id,
		SpeakerName: name,
		Text:        text,
	}

	if g.state == Awaiting {
		g.log = append(g.log, turn)
		return Decision{Action: Forward, Utterance: text, Turn: turn}
	}

	normalised := Normalise(text)
	if g.corrector != nil {
		normalised = g.corrector.Correct(normalised)
	}
	phrase, query, ok := matchTrigger(normalised, g.phrases)
	if !ok {
		g.log = append(g.log, turn)
		return Decision{Action: Suppress, Turn: turn}
	}

	turn.Activation = true
	g.log = append(g.log, turn)
	g.state = Awaiting
	g.activations++

	d := Decision{Trigger: phrase, Activated: true, Turn: turn}
	if query != "" {
		d.Action = Forward
		d.Utterance = query
	}
	return d
}

// Respond runs fn for the pending activation and then returns the gate to
// Silent, also when fn fails or panics. fn's error is returned unchanged. In
// the Silent state fn is not called and Respond returns nil.
func (g *Gate) Respond(fn func() error) error {
	if g.State() == Silent {
		return nil
	}
	defer g.OnResponseDelivered()
	return fn()
}

// OnResponseDelivered returns the gate to Silent.
func (g *Gate) OnResponseDelivered() {
	g.mu.Lock()
	g.state = Silent
	g.mu.Unlock()
}

// State returns the current activation state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Stats returns the counters and state.
func (g *Gate) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Stats{TotalTurns: len(g.log), Activations: g.activations, State: g.state}
}

// Turns returns a copy of the log.
func (g *Gate) Turns() []Turn {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Turn(nil), g.log...)
}

// TurnsSince returns a copy of the turns at index offset and later.
func (g *Gate) TurnsSince(offset int) []Turn {
	g.mu.Lock()
	defer g.mu.Unlock()
	if offset < 0 {
		offset = 0
	}
	if offset >= len(g.log) {
		return nil
	}
	return append([]Turn(nil), g.log[offset:]...)
}

// Addendum builds the conversation context message for the model. It is not
// recorded in the log.
func (g *Gate) Addendum() string {
	history := ComposeContext(g.Turns(), g.window)
	return FormatAddendum(FormatParticipants(g.registry.Present()), history)
}

// Summary renders the turn count and the most recent turns.
func (g *Gate) Summary() string {
	return FormatSummary(g.Turns(), g.summaryWindow)
}
