package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/huddle/internal/agent"
	"github.com/MrWong99/huddle/internal/gate"
	"github.com/MrWong99/huddle/internal/observe"
	"github.com/MrWong99/huddle/internal/session"
	"github.com/MrWong99/huddle/pkg/audio"
	"github.com/MrWong99/huddle/pkg/memory"
	"github.com/MrWong99/huddle/pkg/provider/stt"
	"github.com/MrWong99/huddle/pkg/provider/vad"
	"github.com/MrWong99/huddle/pkg/types"
)

// transcriptBuffer is the capacity of the queue between the participant
// pipelines and the transcript consumer.
const transcriptBuffer = 32

// call is one joined voice call. All participant pipelines feed a single
// transcript queue, which exactly one goroutine drains into the agent.
type call struct {
	info  CallInfo
	conn  audio.Connection
	gate  *gate.Gate
	agent agent.Agent
	team  *agent.Team

	// greet, when set, runs on the consumer before the first transcript.
	greet func(context.Context) error

	archive  memory.Archive
	archiver *session.Archiver

	stt       stt.Provider
	sttName   string
	sttConfig stt.StreamConfig
	vad       vad.Engine
	vadName   string
	metrics   *observe.Metrics

	transcripts chan types.Transcript

	ctx    context.Context
	cancel context.CancelFunc
	group  errgroup.Group

	mu        sync.Mutex
	closing   bool
	pipelines map[string]bool

	// closers run in reverse order when the call stops.
	closers []func() error
}

// start launches the archiver, the transcript consumer and a pipeline for
// every participant already sending audio. The call's goroutines outlive the
// request that started it.
func (c *call) start(ctx context.Context) {
	c.ctx, c.cancel = context.WithCancel(context.WithoutCancel(ctx))
	if c.archiver != nil {
		c.archiver.Start(c.ctx)
	}
	c.group.Go(c.consume)
	c.conn.OnParticipantChange(c.onParticipantChange)
	for userID, in := range c.conn.InputStreams() {
		c.addParticipant(userID, in)
	}
}

// consume hands queued transcripts to the agent one at a time.
func (c *call) consume() error {
	ctx := c.ctx
	log := slog.With("call_id", c.info.CallID)
	if c.greet != nil {
		if err := c.greet(ctx); err != nil && ctx.Err() == nil {
			log.Warn("app: greeting failed", "err", err)
		}
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-c.transcripts:
			if err := c.agent.HandleTranscript(ctx, t); err != nil && ctx.Err() == nil {
				log.Error("app: handle transcript", "agent", c.agent.Name(), "speaker", t.SpeakerID, "err", err)
			}
		}
	}
}

func (c *call) onParticipantChange(ev audio.Event) {
	switch ev.Type {
	case audio.EventJoin:
		c.gate.Registry().Join(ev.UserID, ev.Username)
		if in, ok := c.conn.InputStreams()[ev.UserID]; ok {
			c.addParticipant(ev.UserID, in)
		}
	case audio.EventLeave:
		c.gate.Registry().Leave(ev.UserID)
	}
	slog.Debug("app: participant change", "call_id", c.info.CallID, "event", ev.Type, "user", ev.UserID, "name", ev.Username)
}

// addParticipant starts a pipeline for userID unless one is running or the
// call is stopping.
func (c *call) addParticipant(userID string, in <-chan audio.AudioFrame) {
	if in == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closing || c.pipelines[userID] {
		return
	}
	c.pipelines[userID] = true
	c.group.Go(func() error {
		defer c.removeParticipant(userID)
		c.runPipeline(c.ctx, userID, in)
		return nil
	})
}

func (c *call) removeParticipant(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pipelines, userID)
}

// participants returns how many pipelines are running.
func (c *call) participants() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pipelines)
}

// stop ends the call: goroutines are cancelled and awaited, the archive is
// flushed and closed, the voice connection is dropped and the closers run.
// Waiting for goroutines is bounded by ctx.
func (c *call) stop(ctx context.Context) {
	log := slog.With("call_id", c.info.CallID)

	c.mu.Lock()
	c.closing = true
	c.mu.Unlock()
	c.cancel()

	done := make(chan struct{})
	go func() {
		_ = c.group.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		log.Warn("app: call goroutines still running at shutdown deadline")
	}

	if c.archiver != nil {
		c.archiver.Stop()
		if err := c.archiver.Flush(ctx); err != nil {
			log.Warn("app: final archive flush", "err", err)
		}
		stats := c.gate.Stats()
		if err := c.archive.EndCall(ctx, c.info.CallID, memory.CallStats{
			EndedAt:     time.Now().UTC(),
			TotalTurns:  stats.TotalTurns,
			Activations: stats.Activations,
		}); err != nil {
			log.Warn("app: archive end of call", "err", err)
		}
	}

	if err := c.conn.Disconnect(); err != nil {
		log.Warn("app: voice disconnect", "err", err)
	}
	runClosers(c.closers, log)
}

// runClosers calls closers in reverse order and logs failures.
func runClosers(closers []func() error, log *slog.Logger) {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			log.Warn("app: closer error", "index", i, "err", err)
		}
	}
}
