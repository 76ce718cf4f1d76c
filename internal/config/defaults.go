package config

import "time"

// Defaults applied by [ApplyDefaults].
const (
	DefaultListenAddr    = ":8080"
	DefaultLLMProvider   = "openai"
	DefaultLLMModel      = "gpt-4o-mini"
	DefaultTemperature   = 0.6
	DefaultSTTProvider   = "deepgram"
	DefaultSTTModel      = "nova-3"
	DefaultTTSProvider   = "cartesia"
	DefaultTTSModel      = "sonic-3"
	DefaultVoiceID       = "248be419-c632-4f23-adf1-5324ed7dbf1d"
	DefaultVADProvider   = "energy"
	DefaultAgentName     = "Alex"
	DefaultContextWindow = 20
	DefaultSummaryWindow = 10
	DefaultMaxToolRounds = 4
	DefaultInitialRole   = "business"
	DefaultFlushInterval = 30 * time.Second
)

// DefaultTriggerPhrases are the wake phrases used when none are configured.
var DefaultTriggerPhrases = []string{"hey alex", "alex"}

// defaultRoles is the two-role team used when handoff mode has no roles.
func defaultRoles() []RoleConfig {
	return []RoleConfig{
		{Name: "business", DisplayName: "Business Agent", Peers: []string{"technical"}},
		{Name: "technical", DisplayName: "Technical Specialist", Peers: []string{"business"}},
	}
}

// ApplyDefaults fills every unset field with its default. Instructions stay
// empty; the agent package supplies the built-in prompts.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}

	p := &cfg.Providers
	if p.LLM.Name == "" {
		p.LLM.Name = DefaultLLMProvider
		if p.LLM.Model == "" {
			p.LLM.Model = DefaultLLMModel
		}
	}
	if p.STT.Name == "" {
		p.STT.Name = DefaultSTTProvider
		if p.STT.Model == "" {
			p.STT.Model = DefaultSTTModel
		}
	}
	if p.TTS.Name == "" {
		p.TTS.Name = DefaultTTSProvider
		if p.TTS.Model == "" {
			p.TTS.Model = DefaultTTSModel
		}
	}
	if p.VAD.Name == "" {
		p.VAD.Name = DefaultVADProvider
	}

	a := &cfg.Agent
	if a.Mode == "" {
		a.Mode = ModeAssistant
	}
	if a.Name == "" {
		a.Name = DefaultAgentName
	}
	if a.Temperature == 0 {
		a.Temperature = DefaultTemperature
	}
	if a.Voice.ID == "" && p.TTS.Name == DefaultTTSProvider {
		a.Voice.ID = DefaultVoiceID
	}
	if len(a.TriggerPhrases) == 0 {
		a.TriggerPhrases = append([]string(nil), DefaultTriggerPhrases...)
	}
	if a.ContextWindow == 0 {
		a.ContextWindow = DefaultContextWindow
	}
	if a.SummaryWindow == 0 {
		a.SummaryWindow = DefaultSummaryWindow
	}
	if a.MaxToolRounds == 0 {
		a.MaxToolRounds = DefaultMaxToolRounds
	}

	h := &cfg.Handoff
	if len(h.Roles) == 0 {
		h.Roles = defaultRoles()
	}
	if h.InitialRole == "" {
		h.InitialRole = h.Roles[0].Name
	}
	for i := range h.Roles {
		if h.Roles[i].Voice.ID == "" {
			h.Roles[i].Voice = a.Voice
		}
	}

	if cfg.Archive.FlushInterval == 0 {
		cfg.Archive.FlushInterval = DefaultFlushInterval
	}
}
