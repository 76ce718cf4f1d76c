package session

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/MrWong99/huddle/internal/gate"
	"github.com/MrWong99/huddle/pkg/memory"
)

const defaultFlushInterval = 30 * time.Second

// TurnSource exposes the conversation log to the archiver.
type TurnSource interface {
	TurnsSince(offset int) []gate.Turn
}

// ArchiverConfig configures an Archiver.
type ArchiverConfig struct {
	Archive memory.Archive
	Source  TurnSource
	CallID  string
	// Interval between periodic flushes. Defaults to 30 seconds.
	Interval time.Duration
}

// Archiver periodically copies new conversation turns and assistant replies
// to the archive. Failed writes are logged and not retried; the entries are
// dropped.
//
// All methods are safe for concurrent use.
type Archiver struct {
	archive  memory.Archive
	source   TurnSource
	callID   string
	interval time.Duration

	mu       sync.Mutex
	offset   int
	replies  []memory.Entry
	done     chan struct{}
	stopOnce sync.Once
	stopped  chan struct{}
}

// NewArchiver creates an Archiver. Call Start to begin periodic flushing.
func NewArchiver(cfg ArchiverConfig) *Archiver {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultFlushInterval
	}
	return &Archiver{
		archive:  cfg.Archive,
		source:   cfg.Source,
		callID:   cfg.CallID,
		interval: interval,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// RecordReply queues an assistant reply for the next flush.
func (a *Archiver) RecordReply(speaker, text string, at time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.replies = append(a.replies, memory.Entry{
		SpeakerName: speaker,
		Text:        text,
		Role:        memory.RoleAssistant,
		Timestamp:   at,
	})
}

// Start runs the flush loop until Stop is called or ctx ends.
func (a *Archiver) Start(ctx context.Context) {
	go a.loop(ctx)
}

// Stop ends the flush loop and waits for it to exit. It does not flush;
// call Flush afterwards for a final write. Safe to call multiple times, but
// only after Start.
func (a *Archiver) Stop() {
	a.stopOnce.Do(func() { close(a.done) })
	<-a.stopped
}

func (a *Archiver) loop(ctx context.Context) {
	defer close(a.stopped)
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.done:
			return
		case <-ticker.C:
			if err := a.Flush(ctx); err != nil {
				slog.Warn("archive flush failed", "call_id", a.callID, "err", err)
			}
		}
	}
}

// Flush writes everything recorded since the previous flush in timestamp
// order.
func (a *Archiver) Flush(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	turns := a.source.TurnsSince(a.offset)
	entries := make([]memory.Entry, 0, len(turns)+len(a.replies))
	for _, t := range turns {
		entries = append(entries, memory.Entry{
			SpeakerID:   t.SpeakerID,
			SpeakerName: t.SpeakerName,
			Text:        t.Text,
			Role:        memory.RoleParticipant,
			Activation:  t.Activation,
			Timestamp:   t.Timestamp,
		})
	}
	entries = append(entries, a.replies...)
	a.offset += len(turns)
	a.replies = nil

	if len(entries) == 0 {
		return nil
	}
	slices.SortStableFunc(entries, func(x, y memory.Entry) int {
		return cmp.Compare(x.Timestamp.UnixNano(), y.Timestamp.UnixNano())
	})
	if err := a.archive.WriteEntries(ctx, a.callID, entries); err != nil {
		return fmt.Errorf("session: archive %d entries: %w", len(entries), err)
	}
	return nil
}
