package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/MrWong99/huddle/internal/mcp"
)

// ValidProviderNames lists the provider names with a built-in factory.
// Unknown names only produce a warning so third-party factories can be
// registered.
var ValidProviderNames = map[string][]string{
	"llm": {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"stt": {"deepgram"},
	"tts": {"cartesia", "elevenlabs"},
	"vad": {"energy"},
}

// EnvFiles are loaded by [LoadEnv] in order. Variables already set in the
// environment are never overridden, so the first file to define a name wins.
var EnvFiles = []string{".env.local", ".env"}

// LoadEnv loads the [EnvFiles] that exist. Missing files are skipped.
func LoadEnv() error {
	for _, name := range EnvFiles {
		if _, err := os.Stat(name); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			return fmt.Errorf("config: load %s: %w", name, err)
		}
		slog.Debug("config: loaded env file", "file", name)
	}
	return nil
}

// Load reads the YAML file at path, expands ${VAR} references, applies
// defaults and validates the result.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader is [Load] for an arbitrary reader. Unknown keys are errors.
// An empty document yields the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	expanded := os.ExpandEnv(string(raw))

	cfg := &Config{}
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every problem in cfg at once.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Discord.Token == "" {
		errs = append(errs, errors.New("discord.token is required"))
	}
	if cfg.Discord.GuildID == "" {
		errs = append(errs, errors.New("discord.guild_id is required"))
	}

	warnUnknownProvider("llm", cfg.Providers.LLM.Name)
	warnUnknownProvider("stt", cfg.Providers.STT.Name)
	warnUnknownProvider("tts", cfg.Providers.TTS.Name)
	warnUnknownProvider("vad", cfg.Providers.VAD.Name)

	a := cfg.Agent
	if !a.Mode.IsValid() {
		errs = append(errs, fmt.Errorf("agent.mode %q is invalid; valid values: assistant, handoff", a.Mode))
	}
	if a.Temperature < 0 || a.Temperature > 2 {
		errs = append(errs, fmt.Errorf("agent.temperature %.2f is out of range [0, 2]", a.Temperature))
	}
	for i, p := range a.TriggerPhrases {
		if p == "" {
			errs = append(errs, fmt.Errorf("agent.trigger_phrases[%d] is empty", i))
		}
	}
	if a.ContextWindow < 0 {
		errs = append(errs, fmt.Errorf("agent.context_window %d must not be negative", a.ContextWindow))
	}
	if a.SummaryWindow < 0 {
		errs = append(errs, fmt.Errorf("agent.summary_window %d must not be negative", a.SummaryWindow))
	}
	if a.MaxMessages < 0 {
		errs = append(errs, fmt.Errorf("agent.max_messages %d must not be negative", a.MaxMessages))
	}

	if a.Mode == ModeHandoff {
		errs = append(errs, validateRoles(cfg.Handoff)...)
	}

	if cfg.Archive.FlushInterval < 0 {
		errs = append(errs, fmt.Errorf("archive.flush_interval %s must not be negative", cfg.Archive.FlushInterval))
	}

	names := make(map[string]int, len(cfg.MCP.Servers))
	for i, srv := range cfg.MCP.Servers {
		prefix := fmt.Sprintf("mcp.servers[%d]", i)
		if srv.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		} else if prev, ok := names[srv.Name]; ok {
			errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of mcp.servers[%d]", prefix, srv.Name, prev))
		} else {
			names[srv.Name] = i
		}
		if !srv.Transport.IsValid() {
			errs = append(errs, fmt.Errorf("%s.transport %q is invalid; valid values: stdio, streamable-http", prefix, srv.Transport))
		}
		if srv.Transport == mcp.TransportStdio && srv.Command == "" {
			errs = append(errs, fmt.Errorf("%s.command is required when transport is stdio", prefix))
		}
		if srv.Transport == mcp.TransportStreamableHTTP && srv.URL == "" {
			errs = append(errs, fmt.Errorf("%s.url is required when transport is streamable-http", prefix))
		}
	}

	return errors.Join(errs...)
}

func validateRoles(h HandoffConfig) []error {
	var errs []error
	seen := make(map[string]int, len(h.Roles))
	for i, r := range h.Roles {
		if r.Name == "" {
			errs = append(errs, fmt.Errorf("handoff.roles[%d].name is required", i))
			continue
		}
		if prev, ok := seen[r.Name]; ok {
			errs = append(errs, fmt.Errorf("handoff.roles[%d].name %q is a duplicate of handoff.roles[%d]", i, r.Name, prev))
		}
		seen[r.Name] = i
	}
	for i, r := range h.Roles {
		for _, peer := range r.Peers {
			if _, ok := seen[peer]; !ok {
				errs = append(errs, fmt.Errorf("handoff.roles[%d].peers: unknown role %q", i, peer))
			}
			if peer == r.Name {
				errs = append(errs, fmt.Errorf("handoff.roles[%d].peers: role %q lists itself", i, peer))
			}
		}
	}
	if _, ok := seen[h.InitialRole]; !ok {
		errs = append(errs, fmt.Errorf("handoff.initial_role %q is not a configured role", h.InitialRole))
	}
	return errs
}

func warnUnknownProvider(kind, name string) {
	if name == "" || slices.Contains(ValidProviderNames[kind], name) {
		return
	}
	slog.Warn("config: unknown provider name, a custom factory must be registered",
		"kind", kind,
		"name", name,
		"known", ValidProviderNames[kind],
	)
}
