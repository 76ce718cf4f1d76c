package agent_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/huddle/internal/agent"
	enginemock "github.com/MrWong99/huddle/internal/engine/mock"
	"github.com/MrWong99/huddle/internal/gate"
	"github.com/MrWong99/huddle/internal/mcp/mcphost"
	"github.com/MrWong99/huddle/internal/session"
	"github.com/MrWong99/huddle/pkg/audio"
	"github.com/MrWong99/huddle/pkg/types"
)

func final(speaker, text string) types.Transcript {
	return types.Transcript{SpeakerID: speaker, Text: text, IsFinal: true}
}

type assistantFixture struct {
	gate   *gate.Gate
	engine *enginemock.VoiceEngine
	chat   *session.ChatContext
	out    chan audio.AudioFrame
	a      *agent.Assistant
}

func newAssistant(t *testing.T, eng *enginemock.VoiceEngine) *assistantFixture {
	t.Helper()
	g, err := gate.New([]string{"hey alex", "alex"})
	if err != nil {
		t.Fatalf("gate.New: %v", err)
	}
	g.Registry().Join("u1", "Dana")
	g.Registry().Join("u2", "Sam")

	host := mcphost.New()
	if err := host.RegisterBuiltin(mcphost.SummaryTool(g)); err != nil {
		t.Fatalf("RegisterBuiltin: %v", err)
	}

	out := make(chan audio.AudioFrame, 64)
	chat := session.NewChatContext(0)
	a, err := agent.NewAssistant(agent.AssistantConfig{
		Name:        "Alex",
		Temperature: 0.6,
		Gate:        g,
		Engine:      eng,
		Chat:        chat,
		Tools:       host,
		Speaker:     agent.NewSpeaker(out, nil),
	})
	if err != nil {
		t.Fatalf("NewAssistant: %v", err)
	}
	return &assistantFixture{gate: g, engine: eng, chat: chat, out: out, a: a}
}

func TestAssistant_TriggerWithQuery(t *testing.T) {
	t.Parallel()

	f := newAssistant(t, &enginemock.VoiceEngine{
		Default: reply("React and Node.js work well together."),
	})
	ctx := context.Background()

	if err := f.a.HandleTranscript(ctx, final("u2", "I think we should use React")); err != nil {
		t.Fatalf("HandleTranscript: %v", err)
	}
	if n := len(f.engine.Prompts()); n != 0 {
		t.Fatalf("engine called %d times before the trigger, want 0", n)
	}

	if err := f.a.HandleTranscript(ctx, final("u1", "Hey Alex, what do you think?")); err != nil {
		t.Fatalf("HandleTranscript: %v", err)
	}

	prompts := f.engine.Prompts()
	if len(prompts) != 1 {
		t.Fatalf("got %d prompts, want 1", len(prompts))
	}
	p := prompts[0]
	if !strings.Contains(p.SystemPrompt, "You are Alex") {
		t.Errorf("system prompt should be the built-in persona, got %q", p.SystemPrompt[:40])
	}
	if p.Temperature != 0.6 {
		t.Errorf("temperature: got %v, want 0.6", p.Temperature)
	}
	last := p.Messages[len(p.Messages)-1]
	if last.Role != "user" || last.Content != "what do you think" || last.Name != "Dana" {
		t.Errorf("last message: got %+v, want user/Dana/%q", last, "what do you think")
	}
	for _, want := range []string{
		"PARTICIPANTS:\n- Dana\n- Sam",
		"Sam: I think we should use React",
		"Dana: Hey Alex, what do you think?",
	} {
		if !strings.Contains(p.Addendum, want) {
			t.Errorf("addendum should contain %q, got:\n%s", want, p.Addendum)
		}
	}

	if got := f.gate.State(); got != gate.Silent {
		t.Errorf("state after response: got %v, want silent", got)
	}
	msgs := f.chat.Messages()
	if len(msgs) != 2 || msgs[1].Role != "assistant" {
		t.Fatalf("chat: got %+v, want user + assistant", msgs)
	}
	if got := f.gate.Stats(); got.TotalTurns != 2 || got.Activations != 1 {
		t.Errorf("stats: got %+v, want 2 turns and 1 activation", got)
	}
}

func TestAssistant_BareTriggerWaitsForQuery(t *testing.T) {
	t.Parallel()

	f := newAssistant(t, &enginemock.VoiceEngine{Default: reply("Sure.")})
	ctx := context.Background()

	if err := f.a.HandleTranscript(ctx, final("u1", "Alex?")); err != nil {
		t.Fatalf("HandleTranscript: %v", err)
	}
	if n := len(f.engine.Prompts()); n != 0 {
		t.Fatalf("bare trigger: engine called %d times, want 0", n)
	}
	if got := f.gate.State(); got != gate.Awaiting {
		t.Fatalf("state: got %v, want awaiting", got)
	}

	if err := f.a.HandleTranscript(ctx, final("u2", "Can you summarise the plan?")); err != nil {
		t.Fatalf("HandleTranscript: %v", err)
	}
	prompts := f.engine.Prompts()
	if len(prompts) != 1 {
		t.Fatalf("got %d prompts, want 1", len(prompts))
	}
	last := prompts[0].Messages[len(prompts[0].Messages)-1]
	if last.Content != "Can you summarise the plan?" {
		t.Errorf("follow-up: got %q, want the verbatim text", last.Content)
	}
	if got := f.gate.State(); got != gate.Silent {
		t.Errorf("state: got %v, want silent", got)
	}

	// Silent again: the next utterance needs a trigger.
	if err := f.a.HandleTranscript(ctx, final("u2", "thanks")); err != nil {
		t.Fatalf("HandleTranscript: %v", err)
	}
	if n := len(f.engine.Prompts()); n != 1 {
		t.Errorf("got %d prompts after silent utterance, want 1", n)
	}
}

func TestAssistant_IgnoresInterim(t *testing.T) {
	t.Parallel()

	f := newAssistant(t, &enginemock.VoiceEngine{})
	err := f.a.HandleTranscript(context.Background(), types.Transcript{SpeakerID: "u1", Text: "hey alex"})
	if err != nil {
		t.Fatalf("HandleTranscript: %v", err)
	}
	if n := f.gate.Stats().TotalTurns; n != 0 {
		t.Errorf("interim transcript logged: got %d turns, want 0", n)
	}
}

func TestAssistant_FailureResetsGate(t *testing.T) {
	t.Parallel()

	genErr := errors.New("model exploded")
	tests := []struct {
		name string
		eng  *enginemock.VoiceEngine
		want error
	}{
		{name: "process fails", eng: &enginemock.VoiceEngine{ProcessErr: genErr}, want: genErr},
		{name: "generation fails", eng: &enginemock.VoiceEngine{Default: enginemock.Reply{Err: genErr}}, want: genErr},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := newAssistant(t, tc.eng)
			err := f.a.HandleTranscript(context.Background(), final("u1", "hey alex are you there"))
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
			if got := f.gate.State(); got != gate.Silent {
				t.Errorf("state: got %v, want silent", got)
			}
			if n := len(f.engine.Prompts()); n != 1 {
				t.Errorf("engine called %d times, want exactly 1 (no retry)", n)
			}
		})
	}
}

func TestAssistant_PlaysAudioInFrames(t *testing.T) {
	t.Parallel()

	// 24 kHz mono: one 20 ms frame is 960 bytes.
	f := newAssistant(t, &enginemock.VoiceEngine{
		Default: enginemock.Reply{Text: "ok", Audio: [][]byte{make([]byte, 1000), make([]byte, 500)}},
	})
	if err := f.a.HandleTranscript(context.Background(), final("u1", "alex hello")); err != nil {
		t.Fatalf("HandleTranscript: %v", err)
	}

	var frames []audio.AudioFrame
	for len(f.out) > 0 {
		frames = append(frames, <-f.out)
	}
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	for i, fr := range frames {
		if len(fr.Data) != 960 || fr.SampleRate != 24000 || fr.Channels != 1 {
			t.Errorf("frame %d: got %d bytes %dHz/%d, want 960 bytes 24000Hz/1", i, len(fr.Data), fr.SampleRate, fr.Channels)
		}
	}
	if frames[1].Timestamp != 20*time.Millisecond {
		t.Errorf("second frame timestamp: got %s, want 20ms", frames[1].Timestamp)
	}
}

func TestAssistant_SummaryTool(t *testing.T) {
	t.Parallel()

	eng := &enginemock.VoiceEngine{
		Default: enginemock.Reply{
			Text:      "Two people are talking.",
			ToolCalls: []types.ToolCall{{ID: "c1", Name: "get_conversation_summary", Arguments: ""}},
		},
	}
	f := newAssistant(t, eng)

	tools := eng.Tools()
	if len(tools) != 1 || tools[0].Name != "get_conversation_summary" {
		t.Fatalf("tools: got %+v, want the summary tool", tools)
	}

	ctx := context.Background()
	_ = f.a.HandleTranscript(ctx, final("u2", "budget is fifty thousand"))
	if err := f.a.HandleTranscript(ctx, final("u1", "alex recap please")); err != nil {
		t.Fatalf("HandleTranscript: %v", err)
	}

	var toolMsg *types.Message
	for _, m := range f.chat.Messages() {
		if m.Role == "tool" {
			toolMsg = &m
		}
	}
	if toolMsg == nil {
		t.Fatal("no tool result in chat context")
	}
	want := "Total turns: 2\nSam: budget is fifty thousand\nDana: alex recap please"
	if toolMsg.Content != want {
		t.Errorf("summary: got %q, want %q", toolMsg.Content, want)
	}
}

func TestNewAssistant_Validation(t *testing.T) {
	t.Parallel()

	g, _ := gate.New(nil)
	eng := &enginemock.VoiceEngine{}
	chat := session.NewChatContext(0)
	tests := []struct {
		name string
		cfg  agent.AssistantConfig
	}{
		{"no gate", agent.AssistantConfig{Engine: eng, Chat: chat}},
		{"no engine", agent.AssistantConfig{Gate: g, Chat: chat}},
		{"no chat", agent.AssistantConfig{Gate: g, Engine: eng}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := agent.NewAssistant(tc.cfg); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestAssistantInstructions(t *testing.T) {
	t.Parallel()

	got := agent.AssistantInstructions("Robin", []string{"hey robin", "robin"})
	for _, want := range []string{"You are Robin", `"hey robin" or "robin"`, "2 to 5 sentences", "get_conversation_summary"} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt should contain %q", want)
		}
	}
}

func reply(text string) enginemock.Reply {
	return enginemock.Reply{Text: text}
}
