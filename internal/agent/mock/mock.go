// Package mock provides a recording [agent.Agent] for call session tests.
//
//	a := &mock.Agent{NameResult: "Alex"}
//	_ = a.HandleTranscript(ctx, types.Transcript{Text: "hi", IsFinal: true})
//	got := a.Transcripts()
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/huddle/internal/agent"
	"github.com/MrWong99/huddle/pkg/types"
)

var _ agent.Agent = (*Agent)(nil)

// Agent is a mock implementation of [agent.Agent]. It is safe for concurrent
// use.
type Agent struct {
	mu sync.Mutex

	// NameResult is returned by Name.
	NameResult string

	// HandleTranscriptErr is returned by every HandleTranscript call.
	HandleTranscriptErr error

	// OnHandle, when set, runs inside HandleTranscript before it returns.
	OnHandle func(types.Transcript)

	transcripts []types.Transcript
	active      int
	maxActive   int
}

// Name implements agent.Agent.
func (a *Agent) Name() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.NameResult
}

// HandleTranscript implements agent.Agent.
func (a *Agent) HandleTranscript(_ context.Context, t types.Transcript) error {
	a.mu.Lock()
	a.transcripts = append(a.transcripts, t)
	a.active++
	a.maxActive = max(a.maxActive, a.active)
	fn := a.OnHandle
	err := a.HandleTranscriptErr
	a.mu.Unlock()

	if fn != nil {
		fn(t)
	}

	a.mu.Lock()
	a.active--
	a.mu.Unlock()
	return err
}

// Transcripts returns every transcript passed to HandleTranscript in order.
func (a *Agent) Transcripts() []types.Transcript {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]types.Transcript(nil), a.transcripts...)
}

// MaxConcurrent returns the highest number of overlapping HandleTranscript
// calls observed.
func (a *Agent) MaxConcurrent() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.maxActive
}
