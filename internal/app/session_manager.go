package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/huddle/internal/agent"
	"github.com/MrWong99/huddle/internal/agent/handoff"
	"github.com/MrWong99/huddle/internal/config"
	"github.com/MrWong99/huddle/internal/engine"
	"github.com/MrWong99/huddle/internal/engine/cascade"
	"github.com/MrWong99/huddle/internal/gate"
	"github.com/MrWong99/huddle/internal/gate/phonetic"
	"github.com/MrWong99/huddle/internal/mcp/mcphost"
	"github.com/MrWong99/huddle/internal/observe"
	"github.com/MrWong99/huddle/internal/session"
	"github.com/MrWong99/huddle/pkg/audio"
	"github.com/MrWong99/huddle/pkg/memory"
	"github.com/MrWong99/huddle/pkg/provider/stt"
	"github.com/MrWong99/huddle/pkg/provider/tts"
	"github.com/MrWong99/huddle/pkg/types"
)

var (
	// ErrNoActiveCall is returned when an operation needs a running call.
	ErrNoActiveCall = errors.New("app: no active call")

	// ErrCallActive is returned by Start while another call runs.
	ErrCallActive = errors.New("app: a call is already active")
)

// keywordBoost is the STT boost given to trigger phrases.
const keywordBoost = 2.0

// CallInfo describes the active call.
type CallInfo struct {
	// CallID is a random UUID, also used as the archive key.
	CallID    string
	ChannelID string

	// StartedBy is the user who started the call; empty for auto-join.
	StartedBy string
	StartedAt time.Time
	Mode      config.Mode
}

// Status is a snapshot of the active call.
type Status struct {
	CallInfo

	// Agent is the persona or team name.
	Agent string

	// Participants lists the display names of present speakers.
	Participants []string

	// Pipelines is the number of participants with running audio.
	Pipelines int

	TotalTurns  int
	Activations int
	State       gate.State

	// ActiveRole is the answering role in handoff mode.
	ActiveRole string
}

// SessionManager runs at most one voice call at a time.
// All exported methods are safe for concurrent use.
type SessionManager struct {
	mu   sync.Mutex
	call *call

	platform  audio.Platform
	cfg       *config.Config
	providers *Providers
	archive   memory.Archive
	metrics   *observe.Metrics
}

// SessionManagerConfig holds the dependencies of a [SessionManager].
// Archive and Metrics are optional.
type SessionManagerConfig struct {
	Platform  audio.Platform
	Config    *config.Config
	Providers *Providers
	Archive   memory.Archive
	Metrics   *observe.Metrics
}

// NewSessionManager creates a SessionManager.
func NewSessionManager(cfg SessionManagerConfig) *SessionManager {
	return &SessionManager{
		platform:  cfg.Platform,
		cfg:       cfg.Config,
		providers: cfg.Providers,
		archive:   cfg.Archive,
		metrics:   cfg.Metrics,
	}
}

// Start joins channelID and begins listening. It builds the call's gate,
// tool host, engines and agent, then starts one audio pipeline per
// participant and the transcript consumer.
//
// Start returns [ErrCallActive] while another call runs.
func (sm *SessionManager) Start(ctx context.Context, channelID, startedBy string) (CallInfo, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.call != nil {
		return CallInfo{}, fmt.Errorf("%w (id=%s)", ErrCallActive, sm.call.info.CallID)
	}
	if channelID == "" {
		return CallInfo{}, errors.New("app: channel ID is required")
	}
	if err := sm.checkProviders(); err != nil {
		return CallInfo{}, err
	}

	conn, err := sm.platform.Connect(ctx, channelID)
	if err != nil {
		return CallInfo{}, fmt.Errorf("app: connect to voice channel: %w", err)
	}

	info := CallInfo{
		CallID:    uuid.NewString(),
		ChannelID: channelID,
		StartedBy: startedBy,
		StartedAt: time.Now().UTC(),
		Mode:      sm.cfg.Agent.Mode,
	}
	c, err := sm.newCall(ctx, info, conn)
	if err != nil {
		if derr := conn.Disconnect(); derr != nil {
			slog.Warn("app: voice disconnect after failed start", "err", derr)
		}
		return CallInfo{}, err
	}
	c.start(ctx)
	sm.call = c
	sm.metrics.AddActiveCalls(ctx, 1)

	slog.Info("call started",
		"call_id", info.CallID,
		"channel_id", channelID,
		"started_by", startedBy,
		"mode", info.Mode,
		"agent", c.agent.Name(),
		"participants", c.gate.Registry().Len(),
	)
	return info, nil
}

// Stop ends the active call. It flushes the archive, disconnects from voice
// and closes the engines and tool host.
//
// Stop returns [ErrNoActiveCall] when no call runs.
func (sm *SessionManager) Stop(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.call == nil {
		return ErrNoActiveCall
	}
	c := sm.call
	sm.call = nil

	c.stop(ctx)
	sm.metrics.AddActiveCalls(ctx, -1)

	stats := c.gate.Stats()
	slog.Info("call stopped",
		"call_id", c.info.CallID,
		"turns", stats.TotalTurns,
		"activations", stats.Activations,
		"duration", time.Since(c.info.StartedAt).Round(time.Second),
	)
	return nil
}

// IsActive reports whether a call is running.
func (sm *SessionManager) IsActive() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.call != nil
}

// Info returns the active call's metadata, or the zero value.
func (sm *SessionManager) Info() CallInfo {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.call == nil {
		return CallInfo{}
	}
	return sm.call.info
}

// Status returns a snapshot of the active call or [ErrNoActiveCall].
func (sm *SessionManager) Status() (Status, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	c := sm.call
	if c == nil {
		return Status{}, ErrNoActiveCall
	}
	stats := c.gate.Stats()
	st := Status{
		CallInfo:     c.info,
		Agent:        c.agent.Name(),
		Participants: c.gate.Registry().Present(),
		Pipelines:    c.participants(),
		TotalTurns:   stats.TotalTurns,
		Activations:  stats.Activations,
		State:        stats.State,
	}
	if c.team != nil {
		st.ActiveRole = c.team.Active().Name
	}
	return st, nil
}

func (sm *SessionManager) checkProviders() error {
	p := sm.providers
	if p == nil || p.LLM == nil || p.STT == nil || p.TTS == nil || p.VAD == nil {
		return errors.New("app: LLM, STT, TTS and VAD providers are required")
	}
	return nil
}

// newCall builds everything a call needs without starting goroutines.
func (sm *SessionManager) newCall(ctx context.Context, info CallInfo, conn audio.Connection) (*call, error) {
	cfg := sm.cfg
	var closers []func() error
	fail := func(err error) (*call, error) {
		runClosers(closers, slog.With("call_id", info.CallID))
		return nil, err
	}

	registry := gate.NewRegistry()
	for _, p := range conn.Participants() {
		registry.Join(p.UserID, p.Username)
	}

	g, err := sm.newGate(registry)
	if err != nil {
		return fail(fmt.Errorf("app: create gate: %w", err))
	}

	host := mcphost.New()
	closers = append(closers, host.Close)
	if err := host.RegisterBuiltin(mcphost.SummaryTool(g)); err != nil {
		return fail(fmt.Errorf("app: register summary tool: %w", err))
	}
	for _, srv := range cfg.MCP.Servers {
		if err := host.RegisterServer(ctx, srv); err != nil {
			return fail(fmt.Errorf("app: register mcp server %q: %w", srv.Name, err))
		}
		slog.Info("registered MCP server", "name", srv.Name, "call_id", info.CallID)
	}

	c := &call{
		info:        info,
		conn:        conn,
		gate:        g,
		stt:         sm.providers.STT,
		sttName:     cfg.Providers.STT.Name,
		sttConfig:   sm.streamConfig(),
		vad:         sm.providers.VAD,
		vadName:     cfg.Providers.VAD.Name,
		metrics:     sm.metrics,
		transcripts: make(chan types.Transcript, transcriptBuffer),
		pipelines:   make(map[string]bool),
	}

	if sm.archive != nil {
		err := sm.archive.BeginCall(ctx, memory.CallRecord{
			ID:        info.CallID,
			GuildID:   cfg.Discord.GuildID,
			ChannelID: info.ChannelID,
			StartedBy: info.StartedBy,
			Mode:      string(info.Mode),
			StartedAt: info.StartedAt,
		})
		if err != nil {
			slog.Warn("app: archive unavailable for this call", "call_id", info.CallID, "err", err)
		} else {
			c.archive = sm.archive
			c.archiver = session.NewArchiver(session.ArchiverConfig{
				Archive:  sm.archive,
				Source:   g,
				CallID:   info.CallID,
				Interval: cfg.Archive.FlushInterval,
			})
		}
	}

	speaker := agent.NewSpeaker(conn.OutputStream(), sm.metrics)
	chat := session.NewChatContext(cfg.Agent.MaxMessages)

	switch cfg.Agent.Mode {
	case config.ModeHandoff:
		roles := sm.roles()
		board, err := handoff.New(roles, cfg.Handoff.InitialRole)
		if err != nil {
			return fail(fmt.Errorf("app: create switchboard: %w", err))
		}
		engines := make(map[string]engine.VoiceEngine, len(roles))
		for _, r := range roles {
			eng := sm.newEngine(r.Voice)
			closers = append(closers, eng.Close)
			engines[r.Name] = eng
		}
		team, err := agent.NewTeam(agent.TeamConfig{
			Name:        cfg.Agent.Name,
			Switchboard: board,
			Engines:     engines,
			Gate:        g,
			Chat:        chat,
			Temperature: cfg.Agent.Temperature,
			Tools:       host,
			Speaker:     speaker,
			Archiver:    c.archiver,
			Metrics:     sm.metrics,
		})
		if err != nil {
			return fail(fmt.Errorf("app: create team: %w", err))
		}
		c.agent = team
		c.team = team
		if cfg.Handoff.GreetOnStart {
			c.greet = team.Greet
		}
	default:
		eng := sm.newEngine(sm.voiceProfile(cfg.Agent.Voice))
		closers = append(closers, eng.Close)
		a, err := agent.NewAssistant(agent.AssistantConfig{
			Name:         cfg.Agent.Name,
			Instructions: cfg.Agent.Instructions,
			Temperature:  cfg.Agent.Temperature,
			Gate:         g,
			Engine:       eng,
			Chat:         chat,
			Tools:        host,
			Speaker:      speaker,
			Archiver:     c.archiver,
			Metrics:      sm.metrics,
		})
		if err != nil {
			return fail(fmt.Errorf("app: create assistant: %w", err))
		}
		c.agent = a
	}

	c.closers = closers
	return c, nil
}

// newGate builds the call's gate. Handoff mode logs without triggers.
func (sm *SessionManager) newGate(registry *gate.Registry) (*gate.Gate, error) {
	a := sm.cfg.Agent
	opts := []gate.Option{
		gate.WithRegistry(registry),
		gate.WithWindow(a.ContextWindow),
		gate.WithSummaryWindow(a.SummaryWindow),
	}
	if a.Mode == config.ModeHandoff {
		return gate.New(nil, opts...)
	}
	if a.PhoneticCorrection {
		opts = append(opts, gate.WithCorrector(phonetic.New(a.TriggerPhrases)))
	}
	return gate.New(a.TriggerPhrases, opts...)
}

func (sm *SessionManager) newEngine(voice tts.VoiceProfile) *cascade.Engine {
	return cascade.New(sm.providers.LLM, sm.providers.TTS, voice,
		cascade.WithMaxRounds(sm.cfg.Agent.MaxToolRounds),
		cascade.WithMaxTokens(sm.cfg.Agent.MaxTokens),
		cascade.WithMetrics(sm.metrics),
	)
}

// streamConfig boosts the trigger phrases in assistant mode.
func (sm *SessionManager) streamConfig() stt.StreamConfig {
	sc := stt.StreamConfig{
		SampleRate: sttFormat.SampleRate,
		Channels:   sttFormat.Channels,
		Language:   sm.cfg.Providers.STT.Language,
	}
	if sm.cfg.Agent.Mode != config.ModeHandoff {
		for _, p := range sm.cfg.Agent.TriggerPhrases {
			sc.Keywords = append(sc.Keywords, types.KeywordBoost{Keyword: p, Boost: keywordBoost})
		}
	}
	return sc
}

func (sm *SessionManager) roles() []handoff.Role {
	out := make([]handoff.Role, len(sm.cfg.Handoff.Roles))
	for i, rc := range sm.cfg.Handoff.Roles {
		instructions := rc.Instructions
		if instructions == "" {
			instructions = agent.RoleInstructions(rc.Name, rc.DisplayName)
		}
		out[i] = handoff.Role{
			Name:         rc.Name,
			DisplayName:  rc.DisplayName,
			Instructions: instructions,
			Voice:        sm.voiceProfile(rc.Voice),
			Peers:        rc.Peers,
		}
	}
	return out
}

func (sm *SessionManager) voiceProfile(vc config.VoiceConfig) tts.VoiceProfile {
	lang := vc.Language
	if lang == "" {
		lang = sm.cfg.Providers.TTS.Language
	}
	return tts.VoiceProfile{
		ID:       vc.ID,
		Name:     vc.Name,
		Provider: sm.cfg.Providers.TTS.Name,
		Language: lang,
	}
}
