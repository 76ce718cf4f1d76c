package agent

import (
	"context"
	"time"

	"github.com/MrWong99/huddle/internal/engine"
	"github.com/MrWong99/huddle/internal/observe"
	"github.com/MrWong99/huddle/pkg/audio"
)

// FrameDuration is the length of each frame the Speaker writes.
const FrameDuration = 20 * time.Millisecond

// Speaker plays response audio into a call's output stream.
type Speaker struct {
	out     chan<- audio.AudioFrame
	metrics *observe.Metrics
}

// NewSpeaker returns a Speaker writing to out. A nil out discards all audio;
// metrics may be nil.
func NewSpeaker(out chan<- audio.AudioFrame, metrics *observe.Metrics) *Speaker {
	return &Speaker{out: out, metrics: metrics}
}

// Play copies resp.Audio to the output stream in FrameDuration frames of the
// response's format until the stream closes. The final partial frame is
// zero-padded. start is when the response was requested and is used for the
// time-to-first-audio metric.
//
// When ctx ends Play returns ctx.Err() and the rest of the stream is drained
// in the background.
func (s *Speaker) Play(ctx context.Context, resp *engine.Response, start time.Time) error {
	if resp == nil || resp.Audio == nil {
		return nil
	}
	if s.out == nil {
		audio.Drain(resp.Audio)
		return nil
	}

	size := resp.Format.FrameBytes(FrameDuration)
	if size <= 0 {
		audio.Drain(resp.Audio)
		return nil
	}
	framer := audio.Framer{Size: size}

	var ts time.Duration
	send := func(pcm []byte) error {
		frame := audio.AudioFrame{
			Data:       pcm,
			SampleRate: resp.Format.SampleRate,
			Channels:   resp.Format.Channels,
			Timestamp:  ts,
		}
		select {
		case s.out <- frame:
			ts += FrameDuration
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	first := true
	for {
		select {
		case <-ctx.Done():
			go audio.Drain(resp.Audio)
			return ctx.Err()
		case pcm, ok := <-resp.Audio:
			if !ok {
				if tail := framer.Flush(); tail != nil {
					return send(tail)
				}
				return nil
			}
			if first && len(pcm) > 0 {
				first = false
				s.metrics.RecordTTSFirstAudio(ctx, time.Since(start))
			}
			for _, f := range framer.Write(pcm) {
				if err := send(f); err != nil {
					go audio.Drain(resp.Audio)
					return err
				}
			}
		}
	}
}
