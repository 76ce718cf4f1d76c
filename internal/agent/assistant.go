package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/huddle/internal/engine"
	"github.com/MrWong99/huddle/internal/gate"
	"github.com/MrWong99/huddle/internal/mcp"
	"github.com/MrWong99/huddle/internal/mcp/bridge"
	"github.com/MrWong99/huddle/internal/observe"
	"github.com/MrWong99/huddle/internal/session"
	"github.com/MrWong99/huddle/pkg/types"
)

var _ Agent = (*Assistant)(nil)

// AssistantConfig holds the dependencies of an [Assistant]. Gate, Engine and
// Chat are required.
type AssistantConfig struct {
	Name string

	// Instructions is the system prompt. Empty selects
	// [AssistantInstructions] for Name and the gate's phrases.
	Instructions string

	Temperature float64

	Gate   *gate.Gate
	Engine engine.VoiceEngine
	Chat   *session.ChatContext

	// Tools is optional. Its tools are offered to the engine.
	Tools mcp.Host

	// ToolTimeout bounds each tool call. Zero uses the bridge default.
	ToolTimeout time.Duration

	// Speaker plays the replies. Nil discards audio.
	Speaker *Speaker

	// Archiver receives the spoken replies. Optional.
	Archiver *session.Archiver

	Metrics *observe.Metrics
}

// Assistant is the wake-gated single assistant. Every final transcript is
// logged by the gate; only utterances the gate forwards are answered.
type Assistant struct {
	name         string
	instructions string
	temperature  float64
	gate         *gate.Gate
	engine       engine.VoiceEngine
	chat         *session.ChatContext
	speaker      *Speaker
	archiver     *session.Archiver
	metrics      *observe.Metrics
}

// NewAssistant validates cfg and attaches the tools to the engine.
func NewAssistant(cfg AssistantConfig) (*Assistant, error) {
	if cfg.Gate == nil {
		return nil, errors.New("agent: Gate must not be nil")
	}
	if cfg.Engine == nil {
		return nil, errors.New("agent: Engine must not be nil")
	}
	if cfg.Chat == nil {
		return nil, errors.New("agent: Chat must not be nil")
	}
	name := cfg.Name
	if name == "" {
		name = "Alex"
	}
	instructions := cfg.Instructions
	if instructions == "" {
		instructions = AssistantInstructions(name, cfg.Gate.Phrases())
	}
	speaker := cfg.Speaker
	if speaker == nil {
		speaker = NewSpeaker(nil, nil)
	}

	var opts []bridge.Option
	if cfg.ToolTimeout > 0 {
		opts = append(opts, bridge.WithToolTimeout(cfg.ToolTimeout))
	}
	bridge.New(cfg.Tools, opts...).Attach(cfg.Engine)

	return &Assistant{
		name:         name,
		instructions: instructions,
		temperature:  cfg.Temperature,
		gate:         cfg.Gate,
		engine:       cfg.Engine,
		chat:         cfg.Chat,
		speaker:      speaker,
		archiver:     cfg.Archiver,
		metrics:      cfg.Metrics,
	}, nil
}

// Name returns the persona name.
func (a *Assistant) Name() string { return a.name }

// HandleTranscript ingests t into the gate and, when the gate forwards it,
// answers the utterance. The gate is back in its silent state when this
// returns, also on error.
func (a *Assistant) HandleTranscript(ctx context.Context, t types.Transcript) error {
	if !t.IsFinal {
		return nil
	}
	d := a.gate.Ingest(t.SpeakerID, t.Text)
	a.metrics.RecordTurn(ctx, d.Action.String(), d.Activated)

	log := observe.Logger(ctx)
	log.Info("agent: turn",
		"speaker", d.Turn.SpeakerName,
		"text", truncate(t.Text),
		"action", d.Action,
	)
	if d.Activated {
		log.Info("agent: trigger detected", "trigger", d.Trigger, "query", truncate(d.Utterance))
	}
	if d.Action != gate.Forward {
		if d.Activated {
			log.Info("agent: waiting for query")
		}
		return nil
	}

	return a.gate.Respond(func() error {
		return a.respond(ctx, d)
	})
}

func (a *Assistant) respond(ctx context.Context, d gate.Decision) error {
	ctx, span := observe.StartSpan(ctx, "agent.respond")
	defer span.End()

	start := time.Now()
	a.chat.Append(types.Message{
		Role:    "user",
		Content: d.Utterance,
		Name:    messageName(d.Turn.SpeakerName),
	})

	stats := a.gate.Stats()
	observe.Logger(ctx).Info("agent: generating response", "turns", stats.TotalTurns)

	prompt := engine.PromptContext{
		SystemPrompt: a.instructions,
		Addendum:     a.gate.Addendum(),
		Messages:     a.chat.Messages(),
		Temperature:  a.temperature,
	}
	text, err := speak(ctx, a.engine, a.speaker, a.chat, prompt, start)
	if err != nil {
		a.metrics.RecordResponse(ctx, a.name, "error", time.Since(start))
		observe.Logger(ctx).Error("agent: response failed", "err", err)
		return err
	}
	if text != "" && a.archiver != nil {
		a.archiver.RecordReply(a.name, text, time.Now())
	}
	a.metrics.RecordResponse(ctx, a.name, "ok", time.Since(start))
	observe.Logger(ctx).Info("agent: response done", "text", truncate(text), "duration", time.Since(start))
	return nil
}

// speak runs one engine response, plays it and appends what it produced to
// chat. The generation error wins over a playback error.
func speak(ctx context.Context, e engine.VoiceEngine, s *Speaker, chat *session.ChatContext, prompt engine.PromptContext, start time.Time) (string, error) {
	resp, err := e.Process(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("agent: process: %w", err)
	}
	playErr := s.Play(ctx, resp, start)
	text, err := resp.Wait()
	if chat != nil {
		chat.Append(resp.History()...)
	}
	if err != nil {
		return text, fmt.Errorf("agent: generate: %w", err)
	}
	if playErr != nil {
		return text, fmt.Errorf("agent: play: %w", playErr)
	}
	return text, nil
}
