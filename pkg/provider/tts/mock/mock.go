// Package mock provides a test double for the tts.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/huddle/pkg/audio"
	"github.com/MrWong99/huddle/pkg/provider/tts"
)

// Call records one SynthesizeStream invocation.
type Call struct {
	Voice tts.VoiceProfile

	// Fragments holds every text fragment read from the text channel.
	Fragments []string
}

// Provider is a mock implementation of tts.Provider. It reads the whole text
// channel, recording fragments, then emits Chunks and closes the audio channel.
type Provider struct {
	mu sync.Mutex

	// Chunks are emitted on every stream.
	Chunks [][]byte

	// SynthesizeErr, if non-nil, is returned by SynthesizeStream.
	SynthesizeErr error

	// AudioFormat is returned by Format. Zero means 24 kHz mono.
	AudioFormat audio.Format

	calls []*Call
}

// SynthesizeStream implements tts.Provider.
func (p *Provider) SynthesizeStream(ctx context.Context, text <-chan string, voice tts.VoiceProfile) (<-chan []byte, error) {
	p.mu.Lock()
	if p.SynthesizeErr != nil {
		p.mu.Unlock()
		return nil, p.SynthesizeErr
	}
	call := &Call{Voice: voice}
	p.calls = append(p.calls, call)
	chunks := append([][]byte(nil), p.Chunks...)
	p.mu.Unlock()

	out := make(chan []byte, len(chunks))
	go func() {
		defer close(out)
		for frag := range text {
			p.mu.Lock()
			call.Fragments = append(call.Fragments, frag)
			p.mu.Unlock()
		}
		for _, c := range chunks {
			select {
			case out <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Format implements tts.Provider.
func (p *Provider) Format() audio.Format {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.AudioFormat == (audio.Format{}) {
		return audio.Format{SampleRate: 24000, Channels: 1}
	}
	return p.AudioFormat
}

// Calls returns a snapshot of recorded calls.
func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Call, len(p.calls))
	for i, c := range p.calls {
		out[i] = Call{Voice: c.Voice, Fragments: append([]string(nil), c.Fragments...)}
	}
	return out
}

var _ tts.Provider = (*Provider)(nil)
