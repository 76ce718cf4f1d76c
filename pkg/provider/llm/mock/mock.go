// Package mock provides a scripted llm.Provider for tests.
//
// Each StreamCompletion call consumes the next entry of Rounds; once Rounds
// is exhausted every further call replays StreamChunks. This lets tests
// drive multi-round tool loops:
//
//	p := &mock.Provider{Rounds: [][]llm.Chunk{
//	    {{FinishReason: llm.FinishToolCalls, ToolCalls: []types.ToolCall{{ID: "1", Name: "lookup"}}}},
//	    {{Text: "Done."}, {FinishReason: llm.FinishStop}},
//	}}
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/huddle/pkg/provider/llm"
	"github.com/MrWong99/huddle/pkg/types"
)

// Provider is a mock implementation of llm.Provider. Configure the exported
// fields before the first call.
type Provider struct {
	mu sync.Mutex

	// Rounds holds per-call chunk scripts, consumed in order.
	Rounds [][]llm.Chunk

	// StreamChunks is replayed once Rounds is exhausted.
	StreamChunks []llm.Chunk

	// StreamErr is returned from every StreamCompletion call when non-nil.
	StreamErr error

	// Hold, when non-nil, keeps each stream open after its chunks were sent
	// until Hold is closed or the call's context ends.
	Hold chan struct{}

	// ModelCapabilities is returned by Capabilities.
	ModelCapabilities types.ModelCapabilities

	calls []llm.CompletionRequest
}

var _ llm.Provider = (*Provider)(nil)

// StreamCompletion implements llm.Provider.
func (p *Provider) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	p.mu.Lock()
	req.Messages = append([]types.Message(nil), req.Messages...)
	p.calls = append(p.calls, req)
	if p.StreamErr != nil {
		err := p.StreamErr
		p.mu.Unlock()
		return nil, err
	}
	var chunks []llm.Chunk
	if len(p.Rounds) > 0 {
		chunks, p.Rounds = p.Rounds[0], p.Rounds[1:]
	} else {
		chunks = append(chunks, p.StreamChunks...)
	}
	hold := p.Hold
	p.mu.Unlock()

	ch := make(chan llm.Chunk)
	go func() {
		defer close(ch)
		for _, c := range chunks {
			select {
			case ch <- c:
			case <-ctx.Done():
				return
			}
		}
		if hold != nil {
			select {
			case <-hold:
			case <-ctx.Done():
			}
		}
	}()
	return ch, nil
}

// Capabilities implements llm.Provider.
func (p *Provider) Capabilities() types.ModelCapabilities {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ModelCapabilities
}

// Calls returns a copy of every request seen so far.
func (p *Provider) Calls() []llm.CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]llm.CompletionRequest(nil), p.calls...)
}
