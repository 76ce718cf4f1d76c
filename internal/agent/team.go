package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/huddle/internal/agent/handoff"
	"github.com/MrWong99/huddle/internal/engine"
	"github.com/MrWong99/huddle/internal/gate"
	"github.com/MrWong99/huddle/internal/mcp"
	"github.com/MrWong99/huddle/internal/mcp/bridge"
	"github.com/MrWong99/huddle/internal/observe"
	"github.com/MrWong99/huddle/internal/session"
	"github.com/MrWong99/huddle/pkg/types"
)

var _ Agent = (*Team)(nil)

// TeamConfig holds the dependencies of a [Team]. Switchboard, Engines, Gate
// and Chat are required; Engines needs one engine per role.
type TeamConfig struct {
	Name        string
	Switchboard *handoff.Switchboard

	// Engines maps role names to their engines. Each engine speaks with its
	// role's voice.
	Engines map[string]engine.VoiceEngine

	// Gate logs the conversation. It should have no trigger phrases.
	Gate *gate.Gate
	Chat *session.ChatContext

	Temperature float64
	Tools       mcp.Host
	ToolTimeout time.Duration
	Speaker     *Speaker
	Archiver    *session.Archiver
	Metrics     *observe.Metrics
}

// Team runs the handoff roles. Every final transcript is answered by the
// active role; a role hands over with its delegate tools and the new role
// then speaks once on entry.
type Team struct {
	name        string
	board       *handoff.Switchboard
	engines     map[string]engine.VoiceEngine
	gate        *gate.Gate
	chat        *session.ChatContext
	temperature float64
	speaker     *Speaker
	archiver    *session.Archiver
	metrics     *observe.Metrics
}

// NewTeam validates cfg and gives every role's engine the shared tools plus
// one delegate tool per peer.
func NewTeam(cfg TeamConfig) (*Team, error) {
	if cfg.Switchboard == nil {
		return nil, errors.New("agent: Switchboard must not be nil")
	}
	if cfg.Gate == nil {
		return nil, errors.New("agent: Gate must not be nil")
	}
	if cfg.Chat == nil {
		return nil, errors.New("agent: Chat must not be nil")
	}
	for _, r := range cfg.Switchboard.Roles() {
		if cfg.Engines[r.Name] == nil {
			return nil, fmt.Errorf("agent: no engine for role %q", r.Name)
		}
	}
	name := cfg.Name
	if name == "" {
		name = "team"
	}
	speaker := cfg.Speaker
	if speaker == nil {
		speaker = NewSpeaker(nil, nil)
	}

	t := &Team{
		name:        name,
		board:       cfg.Switchboard,
		engines:     cfg.Engines,
		gate:        cfg.Gate,
		chat:        cfg.Chat,
		temperature: cfg.Temperature,
		speaker:     speaker,
		archiver:    cfg.Archiver,
		metrics:     cfg.Metrics,
	}

	for _, r := range cfg.Switchboard.Roles() {
		var opts []bridge.Option
		if cfg.ToolTimeout > 0 {
			opts = append(opts, bridge.WithToolTimeout(cfg.ToolTimeout))
		}
		for _, peer := range r.Peers {
			opts = append(opts, bridge.WithLocalTool(t.delegateTool(r.Name, peer)))
		}
		bridge.New(cfg.Tools, opts...).Attach(cfg.Engines[r.Name])
	}
	return t, nil
}

// Name returns the team name.
func (t *Team) Name() string { return t.name }

// Active returns the role currently answering.
func (t *Team) Active() handoff.Role { return t.board.Active() }

func (t *Team) delegateTool(from, to string) bridge.LocalTool {
	target, _ := t.board.Role(to)
	display := target.DisplayName
	if display == "" {
		display = to
	}
	return bridge.LocalTool{
		Definition: types.ToolDefinition{
			Name:        handoff.ToolName(to),
			Description: fmt.Sprintf("Hand the conversation to the %s. Use it when the question is outside your expertise.", display),
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"reason": map[string]any{
						"type":        "string",
						"description": "Why the conversation is handed over.",
					},
				},
			},
		},
		Handler: func(ctx context.Context, _, _ string) (string, error) {
			if err := t.board.Handoff(from, to); err != nil {
				return "", err
			}
			t.metrics.RecordHandoff(ctx, from, to)
			observe.Logger(ctx).Info("agent: handoff", "from", from, "to", to)
			return fmt.Sprintf(`{"status":"transferred","to":%q}`, display), engine.ErrEndTurn
		},
	}
}

// HandleTranscript logs t and lets the active role answer it. When the role
// hands off during its reply, the new role gives its entry reply with tools
// disabled before HandleTranscript returns.
func (t *Team) HandleTranscript(ctx context.Context, tr types.Transcript) error {
	if !tr.IsFinal {
		return nil
	}
	d := t.gate.Ingest(tr.SpeakerID, tr.Text)
	t.metrics.RecordTurn(ctx, gate.Forward.String(), false)

	role := t.board.Active()
	observe.Logger(ctx).Info("agent: turn",
		"speaker", d.Turn.SpeakerName,
		"text", truncate(tr.Text),
		"role", role.Name,
	)

	t.chat.Append(types.Message{
		Role:    "user",
		Content: tr.Text,
		Name:    messageName(d.Turn.SpeakerName),
	})
	err := t.reply(ctx, role, engine.PromptContext{
		SystemPrompt: role.Instructions,
		Messages:     t.chat.Messages(),
		Temperature:  t.temperature,
	}, t.chat)

	// A handoff may have happened even when the reply failed afterwards.
	entry, ok := t.board.TakeEntry()
	if !ok {
		return err
	}
	entryErr := t.reply(ctx, entry, engine.PromptContext{
		SystemPrompt: entry.Instructions + entryInstructions(displayName(role), displayName(entry)),
		Messages:     t.chat.Messages(),
		Temperature:  t.temperature,
		DisableTools: true,
	}, t.chat)
	return errors.Join(err, entryErr)
}

// Greet lets the active role greet the call. The greeting is archived but not
// added to the chat context.
func (t *Team) Greet(ctx context.Context) error {
	role := t.board.Active()
	return t.reply(ctx, role, engine.PromptContext{
		SystemPrompt: role.Instructions,
		Messages:     []types.Message{{Role: "user", Content: greetInstructions}},
		Temperature:  t.temperature,
		DisableTools: true,
	}, nil)
}

// reply runs one response for role. Produced messages are appended to chat
// when it is non-nil.
func (t *Team) reply(ctx context.Context, role handoff.Role, prompt engine.PromptContext, chat *session.ChatContext) error {
	ctx, span := observe.StartSpan(ctx, "agent.team.reply")
	defer span.End()

	start := time.Now()
	text, err := speak(ctx, t.engines[role.Name], t.speaker, chat, prompt, start)
	if err != nil {
		t.metrics.RecordResponse(ctx, role.Name, "error", time.Since(start))
		observe.Logger(ctx).Error("agent: response failed", "role", role.Name, "err", err)
		return err
	}
	if text != "" && t.archiver != nil {
		t.archiver.RecordReply(displayName(role), text, time.Now())
	}
	t.metrics.RecordResponse(ctx, role.Name, "ok", time.Since(start))
	observe.Logger(ctx).Info("agent: response done", "role", role.Name, "text", truncate(text))
	return nil
}

func displayName(r handoff.Role) string {
	if r.DisplayName != "" {
		return r.DisplayName
	}
	return r.Name
}
