// Package app wires huddle's subsystems into a running application.
//
// The App owns the process-wide pieces: providers, the transcript archive
// and the [SessionManager] that runs the voice call. New creates and
// connects them, Run joins the configured channel and blocks, and Shutdown
// tears everything down.
//
// For testing, inject doubles via functional options (WithArchive,
// WithMetrics). When an option is not provided, New creates the real
// implementation from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MrWong99/huddle/internal/config"
	"github.com/MrWong99/huddle/internal/health"
	"github.com/MrWong99/huddle/internal/observe"
	"github.com/MrWong99/huddle/pkg/audio"
	"github.com/MrWong99/huddle/pkg/memory"
	"github.com/MrWong99/huddle/pkg/memory/postgres"
	"github.com/MrWong99/huddle/pkg/provider/llm"
	"github.com/MrWong99/huddle/pkg/provider/stt"
	"github.com/MrWong99/huddle/pkg/provider/tts"
	"github.com/MrWong99/huddle/pkg/provider/vad"
)

// Providers holds one value per pipeline stage. main.go fills it through the
// config registry.
type Providers struct {
	LLM llm.Provider
	STT stt.Provider
	TTS tts.Provider
	VAD vad.Engine
}

// pinger is implemented by archives that can report readiness.
type pinger interface {
	Ping(ctx context.Context) error
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers
	platform  audio.Platform

	archive  memory.Archive
	metrics  *observe.Metrics
	sessions *SessionManager

	// closers are called in order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New.
type Option func(*App)

// WithArchive injects a transcript archive instead of connecting to the
// configured PostgreSQL database.
func WithArchive(a memory.Archive) Option {
	return func(app *App) { app.archive = a }
}

// WithMetrics sets the metrics instruments. Without it nothing is recorded.
func WithMetrics(m *observe.Metrics) Option {
	return func(app *App) { app.metrics = m }
}

// New creates an App. The archive is opened when configured; calls are
// joined by Run or through [App.Sessions].
func New(ctx context.Context, cfg *config.Config, providers *Providers, platform audio.Platform, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config must not be nil")
	}
	if platform == nil {
		return nil, errors.New("app: audio platform must not be nil")
	}
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
		platform:  platform,
	}
	for _, o := range opts {
		o(a)
	}

	if err := a.initArchive(ctx); err != nil {
		return nil, fmt.Errorf("app: init archive: %w", err)
	}

	a.sessions = NewSessionManager(SessionManagerConfig{
		Platform:  platform,
		Config:    cfg,
		Providers: providers,
		Archive:   a.archive,
		Metrics:   a.metrics,
	})
	return a, nil
}

// initArchive connects the PostgreSQL archive unless one was injected or
// none is configured.
func (a *App) initArchive(ctx context.Context) error {
	if a.archive != nil || !a.cfg.Archive.Enabled() {
		return nil
	}
	store, err := postgres.NewStore(ctx, a.cfg.Archive.PostgresDSN)
	if err != nil {
		return err
	}
	a.archive = store
	a.closers = append(a.closers, func() error {
		store.Close()
		return nil
	})
	slog.Info("transcript archive connected")
	return nil
}

// Sessions returns the call manager used by the slash commands.
func (a *App) Sessions() *SessionManager { return a.sessions }

// ReadinessCheckers returns the health checks for the App's dependencies.
func (a *App) ReadinessCheckers() []health.Checker {
	p, ok := a.archive.(pinger)
	if !ok {
		return nil
	}
	return []health.Checker{{Name: "archive", Check: p.Ping}}
}

// Run joins the configured channel, if any, and blocks until ctx is
// cancelled. It returns ctx.Err().
func (a *App) Run(ctx context.Context) error {
	if ch := a.cfg.Discord.ChannelID; ch != "" {
		if _, err := a.sessions.Start(ctx, ch, ""); err != nil {
			return fmt.Errorf("app: auto-join channel %s: %w", ch, err)
		}
	}
	slog.Info("app running", "mode", a.cfg.Agent.Mode, "auto_join", a.cfg.Discord.ChannelID != "")
	<-ctx.Done()
	return ctx.Err()
}

// Shutdown stops the active call and closes the App's resources. It respects
// the context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if err := a.sessions.Stop(ctx); err != nil && !errors.Is(err, ErrNoActiveCall) {
			slog.Warn("stop call", "err", err)
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
