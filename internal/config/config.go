// Package config holds huddle's configuration schema, the YAML loader and the
// provider registry that turns provider entries into live providers.
package config

import (
	"time"

	"github.com/MrWong99/huddle/internal/mcp"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Mode selects how huddle behaves in a call.
type Mode string

const (
	// ModeAssistant is the wake-gated single assistant.
	ModeAssistant Mode = "assistant"

	// ModeHandoff runs a team of roles that pass the conversation between
	// each other.
	ModeHandoff Mode = "handoff"
)

// IsValid reports whether m is a recognised mode.
func (m Mode) IsValid() bool {
	return m == ModeAssistant || m == ModeHandoff
}

// Config is the root configuration. Load it with [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Discord   DiscordConfig   `yaml:"discord"`
	Providers ProvidersConfig `yaml:"providers"`
	Agent     AgentConfig     `yaml:"agent"`
	Handoff   HandoffConfig   `yaml:"handoff"`
	Archive   ArchiveConfig   `yaml:"archive"`
	MCP       MCPConfig       `yaml:"mcp"`
}

// ServerConfig holds the HTTP listener and logging settings.
type ServerConfig struct {
	// ListenAddr serves /healthz, /readyz and /metrics.
	ListenAddr string   `yaml:"listen_addr"`
	LogLevel   LogLevel `yaml:"log_level"`
}

// DiscordConfig configures the bot and the voice platform.
type DiscordConfig struct {
	Token   string `yaml:"token"`
	GuildID string `yaml:"guild_id"`

	// ChannelID, when set, is joined automatically at start.
	ChannelID string `yaml:"channel_id"`

	// OperatorRoleID restricts the slash commands to members holding this
	// role. Empty allows everyone.
	OperatorRoleID string `yaml:"operator_role_id"`
}

// ProvidersConfig selects the implementation for each pipeline stage.
type ProvidersConfig struct {
	LLM ProviderEntry `yaml:"llm"`
	STT ProviderEntry `yaml:"stt"`
	TTS ProviderEntry `yaml:"tts"`
	VAD ProviderEntry `yaml:"vad"`
}

// ProviderEntry is the configuration block shared by all provider kinds.
// Name selects the factory in the [Registry].
type ProviderEntry struct {
	Name    string `yaml:"name"`
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`

	// Language is a BCP-47 tag passed to STT and TTS providers.
	Language string `yaml:"language"`

	// Options holds provider-specific values.
	Options map[string]any `yaml:"options"`
}

// VoiceConfig selects a TTS voice.
type VoiceConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Language string `yaml:"language"`
}

// AgentConfig configures the assistant persona and the activation gate.
type AgentConfig struct {
	Mode Mode `yaml:"mode"`

	// Name is the persona name used in logs and metrics.
	Name string `yaml:"name"`

	// Instructions is the system prompt. Empty selects the built-in prompt.
	Instructions string `yaml:"instructions"`

	Temperature float64     `yaml:"temperature"`
	MaxTokens   int         `yaml:"max_tokens"`
	Voice       VoiceConfig `yaml:"voice"`

	// TriggerPhrases are matched in order; the first match wins.
	TriggerPhrases []string `yaml:"trigger_phrases"`

	// ContextWindow is the number of turns injected on activation.
	ContextWindow int `yaml:"context_window"`

	// SummaryWindow is the number of turns returned by the summary tool.
	SummaryWindow int `yaml:"summary_window"`

	// MaxMessages caps the shared chat context. Zero keeps everything.
	MaxMessages int `yaml:"max_messages"`

	// PhoneticCorrection rewrites near-miss trigger words before matching.
	PhoneticCorrection bool `yaml:"phonetic_correction"`

	// MaxToolRounds caps model invocations per response.
	MaxToolRounds int `yaml:"max_tool_rounds"`
}

// HandoffConfig configures the role team used in [ModeHandoff].
type HandoffConfig struct {
	InitialRole  string       `yaml:"initial_role"`
	GreetOnStart bool         `yaml:"greet_on_start"`
	Roles        []RoleConfig `yaml:"roles"`
}

// RoleConfig describes one team role.
type RoleConfig struct {
	Name         string      `yaml:"name"`
	DisplayName  string      `yaml:"display_name"`
	Instructions string      `yaml:"instructions"`
	Voice        VoiceConfig `yaml:"voice"`
	Peers        []string    `yaml:"peers"`
}

// ArchiveConfig configures the optional transcript archive.
type ArchiveConfig struct {
	// PostgresDSN enables the archive when set.
	PostgresDSN   string        `yaml:"postgres_dsn"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// Enabled reports whether an archive is configured.
func (a ArchiveConfig) Enabled() bool { return a.PostgresDSN != "" }

// MCPConfig lists external MCP tool servers.
type MCPConfig struct {
	Servers []mcp.ServerConfig `yaml:"servers"`
}
