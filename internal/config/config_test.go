package config_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/huddle/internal/config"
	"github.com/MrWong99/huddle/pkg/provider/llm"
	llmmock "github.com/MrWong99/huddle/pkg/provider/llm/mock"
	"github.com/MrWong99/huddle/pkg/provider/stt"
	sttmock "github.com/MrWong99/huddle/pkg/provider/stt/mock"
	"github.com/MrWong99/huddle/pkg/provider/tts"
	ttsmock "github.com/MrWong99/huddle/pkg/provider/tts/mock"
	"github.com/MrWong99/huddle/pkg/provider/vad"
	"github.com/MrWong99/huddle/pkg/provider/vad/energy"
)

const minimalYAML = `
discord:
  token: bot-token
  guild_id: "123"
`

func TestApplyDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(minimalYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != config.DefaultListenAddr {
		t.Errorf("listen_addr: got %q, want %q", cfg.Server.ListenAddr, config.DefaultListenAddr)
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("log_level: got %q, want %q", cfg.Server.LogLevel, config.LogInfo)
	}
	if cfg.Providers.LLM.Name != "openai" || cfg.Providers.LLM.Model != config.DefaultLLMModel {
		t.Errorf("llm: got %s/%s, want openai/%s", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model, config.DefaultLLMModel)
	}
	if cfg.Providers.STT.Name != "deepgram" || cfg.Providers.STT.Model != config.DefaultSTTModel {
		t.Errorf("stt: got %s/%s", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	}
	if cfg.Providers.TTS.Name != "cartesia" {
		t.Errorf("tts: got %q, want cartesia", cfg.Providers.TTS.Name)
	}
	if cfg.Providers.VAD.Name != "energy" {
		t.Errorf("vad: got %q, want energy", cfg.Providers.VAD.Name)
	}

	a := cfg.Agent
	if a.Mode != config.ModeAssistant {
		t.Errorf("mode: got %q, want %q", a.Mode, config.ModeAssistant)
	}
	if a.Name != "Alex" {
		t.Errorf("name: got %q, want Alex", a.Name)
	}
	if a.Temperature != config.DefaultTemperature {
		t.Errorf("temperature: got %v, want %v", a.Temperature, config.DefaultTemperature)
	}
	if a.Voice.ID != config.DefaultVoiceID {
		t.Errorf("voice: got %q, want %q", a.Voice.ID, config.DefaultVoiceID)
	}
	if strings.Join(a.TriggerPhrases, ",") != "hey alex,alex" {
		t.Errorf("triggers: got %v", a.TriggerPhrases)
	}
	if a.ContextWindow != 20 || a.SummaryWindow != 10 || a.MaxToolRounds != 4 {
		t.Errorf("windows: got context=%d summary=%d rounds=%d", a.ContextWindow, a.SummaryWindow, a.MaxToolRounds)
	}

	if cfg.Handoff.InitialRole != "business" {
		t.Errorf("initial_role: got %q, want business", cfg.Handoff.InitialRole)
	}
	if len(cfg.Handoff.Roles) != 2 {
		t.Fatalf("roles: got %d, want 2", len(cfg.Handoff.Roles))
	}
	for _, r := range cfg.Handoff.Roles {
		if r.Voice.ID != config.DefaultVoiceID {
			t.Errorf("role %s voice: got %q, want inherited %q", r.Name, r.Voice.ID, config.DefaultVoiceID)
		}
	}
	if cfg.Archive.FlushInterval != 30*time.Second {
		t.Errorf("flush_interval: got %s, want 30s", cfg.Archive.FlushInterval)
	}
	if cfg.Archive.Enabled() {
		t.Error("archive should be disabled without a DSN")
	}
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Providers: config.ProvidersConfig{
			TTS: config.ProviderEntry{Name: "elevenlabs"},
		},
		Agent: config.AgentConfig{
			Name:           "Sam",
			Temperature:    1.1,
			TriggerPhrases: []string{"ok sam"},
			ContextWindow:  5,
		},
		Handoff: config.HandoffConfig{
			Roles: []config.RoleConfig{{Name: "support", Voice: config.VoiceConfig{ID: "v-support"}}},
		},
	}
	config.ApplyDefaults(cfg)

	if cfg.Agent.Name != "Sam" {
		t.Errorf("name: got %q, want Sam", cfg.Agent.Name)
	}
	if cfg.Agent.Temperature != 1.1 {
		t.Errorf("temperature: got %v, want 1.1", cfg.Agent.Temperature)
	}
	if len(cfg.Agent.TriggerPhrases) != 1 || cfg.Agent.TriggerPhrases[0] != "ok sam" {
		t.Errorf("triggers: got %v", cfg.Agent.TriggerPhrases)
	}
	if cfg.Agent.ContextWindow != 5 {
		t.Errorf("context_window: got %d, want 5", cfg.Agent.ContextWindow)
	}
	if cfg.Agent.Voice.ID != "" {
		t.Errorf("voice: got %q, want empty for non-default tts", cfg.Agent.Voice.ID)
	}
	if cfg.Providers.TTS.Model != "" {
		t.Errorf("tts model: got %q, want empty for explicit provider", cfg.Providers.TTS.Model)
	}
	if cfg.Handoff.InitialRole != "support" {
		t.Errorf("initial_role: got %q, want support", cfg.Handoff.InitialRole)
	}
	if cfg.Handoff.Roles[0].Voice.ID != "v-support" {
		t.Errorf("role voice: got %q, want v-support", cfg.Handoff.Roles[0].Voice.ID)
	}
}

func TestDefaultTriggerPhrasesNotShared(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Agent.TriggerPhrases[0] = "changed"

	if config.DefaultTriggerPhrases[0] != "hey alex" {
		t.Errorf("DefaultTriggerPhrases mutated: got %q", config.DefaultTriggerPhrases[0])
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	reg.RegisterLLM("fake", func(e config.ProviderEntry) (llm.Provider, error) {
		return &llmmock.Provider{}, nil
	})
	reg.RegisterSTT("fake", func(config.ProviderEntry) (stt.Provider, error) {
		return &sttmock.Provider{}, nil
	})
	reg.RegisterTTS("fake", func(config.ProviderEntry) (tts.Provider, error) {
		return &ttsmock.Provider{}, nil
	})
	reg.RegisterVAD("fake", func(config.ProviderEntry) (vad.Engine, error) {
		return energy.New(), nil
	})

	entry := config.ProviderEntry{Name: "fake"}
	if _, err := reg.CreateLLM(entry); err != nil {
		t.Errorf("CreateLLM: %v", err)
	}
	if _, err := reg.CreateSTT(entry); err != nil {
		t.Errorf("CreateSTT: %v", err)
	}
	if _, err := reg.CreateTTS(entry); err != nil {
		t.Errorf("CreateTTS: %v", err)
	}
	if _, err := reg.CreateVAD(entry); err != nil {
		t.Errorf("CreateVAD: %v", err)
	}

	t.Run("unknown name", func(t *testing.T) {
		t.Parallel()
		_, err := reg.CreateLLM(config.ProviderEntry{Name: "missing"})
		if !errors.Is(err, config.ErrProviderNotRegistered) {
			t.Fatalf("got %v, want ErrProviderNotRegistered", err)
		}
		if !strings.Contains(err.Error(), `llm/"missing"`) {
			t.Errorf("error %q should name the kind and provider", err)
		}
	})

	t.Run("factory error", func(t *testing.T) {
		t.Parallel()
		r := config.NewRegistry()
		want := errors.New("no key")
		r.RegisterTTS("broken", func(config.ProviderEntry) (tts.Provider, error) { return nil, want })
		if _, err := r.CreateTTS(config.ProviderEntry{Name: "broken"}); !errors.Is(err, want) {
			t.Errorf("got %v, want %v", err, want)
		}
	})

	t.Run("names", func(t *testing.T) {
		t.Parallel()
		r := config.NewRegistry()
		r.RegisterLLM("b", nil)
		r.RegisterLLM("a", nil)
		got := strings.Join(r.Names("llm"), ",")
		if got != "a,b" {
			t.Errorf("got %q, want a,b", got)
		}
		if n := r.Names("unknown"); len(n) != 0 {
			t.Errorf("unknown kind: got %v, want empty", n)
		}
	})
}

func TestRegistry_FactoryReceivesEntry(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	var got config.ProviderEntry
	reg.RegisterLLM("capture", func(e config.ProviderEntry) (llm.Provider, error) {
		got = e
		return &llmmock.Provider{}, nil
	})
	entry := config.ProviderEntry{
		Name:    "capture",
		APIKey:  "sk-1",
		Model:   "m",
		Options: map[string]any{"region": "eu"},
	}
	if _, err := reg.CreateLLM(entry); err != nil {
		t.Fatalf("CreateLLM: %v", err)
	}
	if got.APIKey != "sk-1" || got.Model != "m" || config.OptString(got.Options, "region") != "eu" {
		t.Errorf("factory got %+v", got)
	}
}

func TestOptHelpers(t *testing.T) {
	t.Parallel()

	opts := map[string]any{"s": "x", "f": 0.5, "i": 3, "bad": true}
	if got := config.OptString(opts, "s"); got != "x" {
		t.Errorf("OptString: got %q, want x", got)
	}
	if got := config.OptString(opts, "f"); got != "" {
		t.Errorf("OptString non-string: got %q, want empty", got)
	}
	if got := config.OptFloat(opts, "f"); got != 0.5 {
		t.Errorf("OptFloat float: got %v, want 0.5", got)
	}
	if got := config.OptFloat(opts, "i"); got != 3 {
		t.Errorf("OptFloat int: got %v, want 3", got)
	}
	if got := config.OptFloat(opts, "bad"); got != 0 {
		t.Errorf("OptFloat bool: got %v, want 0", got)
	}
	if got := config.OptFloat(nil, "x"); got != 0 {
		t.Errorf("OptFloat nil map: got %v, want 0", got)
	}
}
