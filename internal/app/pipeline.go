package app

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/MrWong99/huddle/internal/observe"
	"github.com/MrWong99/huddle/pkg/audio"
	"github.com/MrWong99/huddle/pkg/provider/stt"
	"github.com/MrWong99/huddle/pkg/provider/vad"
)

// sttFormat is what every participant's audio is converted to before VAD and
// STT see it.
var sttFormat = audio.Format{SampleRate: 16000, Channels: 1}

const (
	vadFrame = 20 * time.Millisecond

	// preRollFrames of non-speech audio are replayed to STT when speech
	// starts, so the first syllable survives the VAD's onset delay.
	preRollFrames = 15

	speechThreshold  = 0.5
	silenceThreshold = 0.35
)

// runPipeline carries one participant's audio through VAD into an STT
// stream until in is closed or ctx ends. Final transcripts are stamped with
// userID and queued for the transcript consumer.
func (c *call) runPipeline(ctx context.Context, userID string, in <-chan audio.AudioFrame) {
	log := observe.Logger(ctx).With("call_id", c.info.CallID, "user", userID)

	sess, err := c.stt.StartStream(ctx, c.sttConfig)
	if err != nil {
		c.metrics.RecordProviderError(ctx, c.sttName, "stt")
		log.Error("app: start stt stream", "err", err)
		return
	}
	vs, err := c.vad.NewSession(vad.Config{
		SampleRate:       sttFormat.SampleRate,
		FrameSizeMs:      int(vadFrame / time.Millisecond),
		SpeechThreshold:  speechThreshold,
		SilenceThreshold: silenceThreshold,
	})
	if err != nil {
		_ = sess.Close()
		c.metrics.RecordProviderError(ctx, c.vadName, "vad")
		log.Error("app: start vad session", "err", err)
		return
	}
	defer vs.Close()

	c.metrics.AddActiveParticipants(ctx, 1)
	defer c.metrics.AddActiveParticipants(ctx, -1)
	log.Info("app: participant pipeline started")

	var speechEnd atomic.Int64
	finalsDone := make(chan struct{})
	go func() {
		defer close(finalsDone)
		c.forwardFinals(ctx, userID, sess, &speechEnd)
	}()
	go audio.Drain(sess.Partials())

	c.feed(ctx, log, in, vs, sess, &speechEnd)

	if err := sess.Close(); err != nil {
		log.Debug("app: close stt stream", "err", err)
	}
	<-finalsDone
	log.Info("app: participant pipeline stopped")
}

// feed converts and frames the input, gates it with the VAD and sends speech
// to the STT stream. The end of speech finalises the STT utterance.
func (c *call) feed(ctx context.Context, log *slog.Logger, in <-chan audio.AudioFrame, vs vad.SessionHandle, sess stt.SessionHandle, speechEnd *atomic.Int64) {
	frames := audio.ConvertStream(in, sttFormat)
	framer := audio.Framer{Size: sttFormat.FrameBytes(vadFrame)}
	preroll := make([][]byte, 0, preRollFrames)
	speaking := false
	sendFailed := false

	send := func(pcm []byte) {
		if err := sess.SendAudio(pcm); err != nil && !sendFailed {
			sendFailed = true
			c.metrics.RecordProviderError(ctx, c.sttName, "stt")
			log.Warn("app: stt send failed", "err", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-frames:
			if !ok {
				if speaking {
					_ = sess.Finalize()
				}
				return
			}
			for _, pcm := range framer.Write(f.Data) {
				ev, err := vs.ProcessFrame(pcm)
				if err != nil {
					log.Warn("app: vad frame", "err", err)
					continue
				}
				switch ev.Type {
				case vad.VADSpeechStart:
					for _, p := range preroll {
						send(p)
					}
					preroll = preroll[:0]
					speaking = true
					send(pcm)
				case vad.VADSpeechContinue:
					speaking = true
					send(pcm)
				case vad.VADSpeechEnd:
					send(pcm)
					speaking = false
					speechEnd.Store(time.Now().UnixNano())
					if err := sess.Finalize(); err != nil {
						log.Warn("app: stt finalize", "err", err)
					}
				default:
					if len(preroll) == preRollFrames {
						copy(preroll, preroll[1:])
						preroll = preroll[:preRollFrames-1]
					}
					preroll = append(preroll, pcm)
				}
			}
		}
	}
}

// forwardFinals queues the non-empty final transcripts of sess until it
// closes or ctx ends.
func (c *call) forwardFinals(ctx context.Context, userID string, sess stt.SessionHandle, speechEnd *atomic.Int64) {
	for t := range sess.Finals() {
		if strings.TrimSpace(t.Text) == "" {
			continue
		}
		if end := speechEnd.Swap(0); end != 0 {
			c.metrics.RecordSTT(ctx, time.Since(time.Unix(0, end)))
		}
		t.SpeakerID = userID
		t.IsFinal = true
		select {
		case c.transcripts <- t:
		case <-ctx.Done():
			return
		}
	}
}
