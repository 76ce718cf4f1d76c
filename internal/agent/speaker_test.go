package agent_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/huddle/internal/agent"
	"github.com/MrWong99/huddle/internal/engine"
	"github.com/MrWong99/huddle/pkg/audio"
)

func TestSpeaker_NilOutputDrains(t *testing.T) {
	t.Parallel()

	ch := make(chan []byte, 2)
	ch <- make([]byte, 100)
	ch <- make([]byte, 100)
	close(ch)
	resp := engine.NewResponse(ch, audio.Format{SampleRate: 24000, Channels: 1})

	if err := agent.NewSpeaker(nil, nil).Play(context.Background(), resp, time.Now()); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if len(ch) != 0 {
		t.Errorf("got %d unread chunks, want 0", len(ch))
	}
}

func TestSpeaker_StereoFrameSize(t *testing.T) {
	t.Parallel()

	// 48 kHz stereo: 20 ms is 3840 bytes.
	ch := make(chan []byte, 1)
	ch <- make([]byte, 3840*2)
	close(ch)
	resp := engine.NewResponse(ch, audio.Format{SampleRate: 48000, Channels: 2})

	out := make(chan audio.AudioFrame, 4)
	if err := agent.NewSpeaker(out, nil).Play(context.Background(), resp, time.Now()); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d frames, want 2", len(out))
	}
	if f := <-out; len(f.Data) != 3840 || f.Channels != 2 {
		t.Errorf("frame: got %d bytes, %d channels", len(f.Data), f.Channels)
	}
}

func TestSpeaker_CancelledContext(t *testing.T) {
	t.Parallel()

	ch := make(chan []byte)
	resp := engine.NewResponse(ch, audio.Format{SampleRate: 24000, Channels: 1})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- agent.NewSpeaker(make(chan audio.AudioFrame), nil).Play(ctx, resp, time.Now())
	}()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("got %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Play did not return after cancel")
	}
	close(ch)
}
