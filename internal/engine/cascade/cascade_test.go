package cascade

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/huddle/internal/engine"
	"github.com/MrWong99/huddle/pkg/provider/llm"
	llmmock "github.com/MrWong99/huddle/pkg/provider/llm/mock"
	"github.com/MrWong99/huddle/pkg/provider/tts"
	ttsmock "github.com/MrWong99/huddle/pkg/provider/tts/mock"
	"github.com/MrWong99/huddle/pkg/types"
)

var toolCaps = types.ModelCapabilities{SupportsToolCalling: true, SupportsStreaming: true}

func drain(ch <-chan []byte) int {
	n := 0
	for range ch {
		n++
	}
	return n
}

func userPrompt(text string) engine.PromptContext {
	return engine.PromptContext{
		SystemPrompt: "You are Alex.",
		Messages:     []types.Message{{Role: "user", Content: text}},
	}
}

func TestProcess_StreamsSentencesToTTS(t *testing.T) {
	t.Parallel()

	l := &llmmock.Provider{StreamChunks: []llm.Chunk{
		{Text: "React is a "},
		{Text: "solid choice. Node"},
		{Text: ".js works too! And"},
		{Text: " TypeScript"},
		{FinishReason: llm.FinishStop},
	}}
	tp := &ttsmock.Provider{Chunks: [][]byte{{1, 2}, {3, 4}}}
	e := New(l, tp, tts.VoiceProfile{ID: "v1"})
	t.Cleanup(func() { _ = e.Close() })

	resp, err := e.Process(context.Background(), userPrompt("hi"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if n := drain(resp.Audio); n != 2 {
		t.Errorf("audio chunks: got %d, want 2", n)
	}
	text, err := resp.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if text != "React is a solid choice. Node.js works too! And TypeScript" {
		t.Errorf("text: got %q", text)
	}

	calls := tp.Calls()
	if len(calls) != 1 {
		t.Fatalf("tts calls: got %d, want 1", len(calls))
	}
	want := []string{"React is a solid choice.", "Node.js works too!", "And TypeScript"}
	if strings.Join(calls[0].Fragments, "|") != strings.Join(want, "|") {
		t.Errorf("fragments: got %q, want %q", calls[0].Fragments, want)
	}
	if calls[0].Voice.ID != "v1" {
		t.Errorf("voice: got %q, want v1", calls[0].Voice.ID)
	}
	if h := resp.History(); len(h) != 1 || h[0].Role != "assistant" {
		t.Errorf("history: got %+v, want one assistant message", h)
	}
}

func TestProcess_RequestAssembly(t *testing.T) {
	t.Parallel()

	l := &llmmock.Provider{
		StreamChunks:      []llm.Chunk{{Text: "Ok.", FinishReason: llm.FinishStop}},
		ModelCapabilities: toolCaps,
	}
	e := New(l, &ttsmock.Provider{}, tts.VoiceProfile{}, WithMaxTokens(200))
	e.SetTools([]types.ToolDefinition{{Name: "get_conversation_summary"}})

	p := userPrompt("question")
	p.Addendum = "CONVERSATION CONTEXT"
	p.Temperature = 0.6
	resp, err := e.Process(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	drain(resp.Audio)
	if _, err := resp.Wait(); err != nil {
		t.Fatal(err)
	}

	req := l.Calls()[0]
	if req.SystemPrompt != "You are Alex." || req.Temperature != 0.6 || req.MaxTokens != 200 {
		t.Errorf("request: got %+v", req)
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Content != "question" {
		t.Errorf("messages: got %+v, want addendum then question", req.Messages)
	}
	if len(req.Tools) != 1 {
		t.Errorf("tools: got %d, want 1", len(req.Tools))
	}

	// Disabled per prompt.
	p.DisableTools = true
	resp, _ = e.Process(context.Background(), p)
	drain(resp.Audio)
	_, _ = resp.Wait()
	if n := len(l.Calls()[1].Tools); n != 0 {
		t.Errorf("DisableTools: got %d tools, want 0", n)
	}
}

func TestProcess_ToolsWithheldWithoutCapability(t *testing.T) {
	t.Parallel()

	l := &llmmock.Provider{StreamChunks: []llm.Chunk{{Text: "Ok.", FinishReason: llm.FinishStop}}}
	e := New(l, &ttsmock.Provider{}, tts.VoiceProfile{})
	e.SetTools([]types.ToolDefinition{{Name: "x"}})
	resp, _ := e.Process(context.Background(), userPrompt("q"))
	drain(resp.Audio)
	_, _ = resp.Wait()
	if n := len(l.Calls()[0].Tools); n != 0 {
		t.Errorf("tools: got %d, want 0", n)
	}
}

func TestProcess_ToolRound(t *testing.T) {
	t.Parallel()

	l := &llmmock.Provider{
		ModelCapabilities: toolCaps,
		Rounds: [][]llm.Chunk{
			{{Text: "Let me check. "}, {FinishReason: llm.FinishToolCalls, ToolCalls: []types.ToolCall{{ID: "c1", Name: "get_conversation_summary", Arguments: "{}"}}}},
			{{Text: "Sam said the budget is $50k."}, {FinishReason: llm.FinishStop}},
		},
	}
	tp := &ttsmock.Provider{}
	e := New(l, tp, tts.VoiceProfile{})

	var gotName, gotArgs string
	e.OnToolCall(func(_ context.Context, name, args string) (string, error) {
		gotName, gotArgs = name, args
		return "Total turns: 1\nSam: Budget is $50k", nil
	})

	resp, err := e.Process(context.Background(), userPrompt("recap"))
	if err != nil {
		t.Fatal(err)
	}
	drain(resp.Audio)
	text, err := resp.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if gotName != "get_conversation_summary" || gotArgs != "{}" {
		t.Errorf("handler got (%q, %q)", gotName, gotArgs)
	}
	if text != "Let me check. Sam said the budget is $50k." {
		t.Errorf("text: got %q", text)
	}

	calls := l.Calls()
	if len(calls) != 2 {
		t.Fatalf("llm calls: got %d, want 2", len(calls))
	}
	second := calls[1].Messages
	if n := len(second); n != 3 {
		t.Fatalf("second round messages: got %d, want 3", n)
	}
	if second[1].Role != "assistant" || len(second[1].ToolCalls) != 1 {
		t.Errorf("assistant tool message: got %+v", second[1])
	}
	if second[2].Role != "tool" || second[2].ToolCallID != "c1" || !strings.Contains(second[2].Content, "Budget") {
		t.Errorf("tool result message: got %+v", second[2])
	}

	h := resp.History()
	if len(h) != 3 || h[2].Content != "Sam said the budget is $50k." {
		t.Errorf("history: got %+v", h)
	}
	if frags := tp.Calls()[0].Fragments; len(frags) != 2 {
		t.Errorf("tts fragments: got %q, want 2", frags)
	}
}

func TestProcess_EndTurnStopsLoop(t *testing.T) {
	t.Parallel()

	l := &llmmock.Provider{
		ModelCapabilities: toolCaps,
		Rounds: [][]llm.Chunk{
			{{FinishReason: llm.FinishToolCalls, ToolCalls: []types.ToolCall{{ID: "c1", Name: "delegate_to_technical_agent"}}}},
			{{Text: "should never be spoken."}, {FinishReason: llm.FinishStop}},
		},
	}
	e := New(l, &ttsmock.Provider{}, tts.VoiceProfile{})
	e.OnToolCall(func(context.Context, string, string) (string, error) {
		return "", engine.ErrEndTurn
	})

	resp, _ := e.Process(context.Background(), userPrompt("this is technical"))
	drain(resp.Audio)
	text, err := resp.Wait()
	if err != nil || text != "" {
		t.Errorf("Wait: got (%q, %v), want empty text and nil", text, err)
	}
	if n := len(l.Calls()); n != 1 {
		t.Errorf("llm calls: got %d, want 1", n)
	}
	h := resp.History()
	if len(h) != 2 || h[1].Role != "tool" || h[1].Content != `{"status":"ok"}` {
		t.Errorf("history: got %+v", h)
	}
}

func TestProcess_ToolErrorIsReportedToModel(t *testing.T) {
	t.Parallel()

	l := &llmmock.Provider{
		ModelCapabilities: toolCaps,
		Rounds: [][]llm.Chunk{
			{{FinishReason: llm.FinishToolCalls, ToolCalls: []types.ToolCall{{ID: "c1", Name: "lookup"}}}},
			{{Text: "Sorry, that failed."}, {FinishReason: llm.FinishStop}},
		},
	}
	e := New(l, &ttsmock.Provider{}, tts.VoiceProfile{})
	e.OnToolCall(func(context.Context, string, string) (string, error) {
		return "", errors.New("mcp server gone")
	})
	resp, _ := e.Process(context.Background(), userPrompt("q"))
	drain(resp.Audio)
	if _, err := resp.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	tool := l.Calls()[1].Messages[2]
	if !strings.Contains(tool.Content, "mcp server gone") {
		t.Errorf("tool message: got %q", tool.Content)
	}
}

func TestProcess_RoundLimit(t *testing.T) {
	t.Parallel()

	loop := []llm.Chunk{{FinishReason: llm.FinishToolCalls, ToolCalls: []types.ToolCall{{ID: "c", Name: "again"}}}}
	l := &llmmock.Provider{ModelCapabilities: toolCaps, StreamChunks: loop}
	e := New(l, &ttsmock.Provider{}, tts.VoiceProfile{}, WithMaxRounds(3))
	e.OnToolCall(func(context.Context, string, string) (string, error) { return "{}", nil })

	resp, _ := e.Process(context.Background(), userPrompt("q"))
	drain(resp.Audio)
	if _, err := resp.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if n := len(l.Calls()); n != 3 {
		t.Errorf("llm calls: got %d, want 3", n)
	}
}

func TestProcess_StreamErrorSurfaces(t *testing.T) {
	t.Parallel()

	l := &llmmock.Provider{StreamChunks: []llm.Chunk{
		{Text: "Partial answer. "},
		{FinishReason: llm.FinishError, Text: "connection reset"},
	}}
	e := New(l, &ttsmock.Provider{}, tts.VoiceProfile{})
	resp, _ := e.Process(context.Background(), userPrompt("q"))
	drain(resp.Audio)
	_, err := resp.Wait()
	if err == nil || !strings.Contains(err.Error(), "connection reset") {
		t.Errorf("Wait: got %v, want stream error", err)
	}
	if n := len(l.Calls()); n != 1 {
		t.Errorf("llm calls: got %d, want 1 (no retries)", n)
	}
}

func TestProcess_StartErrors(t *testing.T) {
	t.Parallel()

	t.Run("tts", func(t *testing.T) {
		t.Parallel()
		e := New(&llmmock.Provider{}, &ttsmock.Provider{SynthesizeErr: errors.New("no tts")}, tts.VoiceProfile{})
		if _, err := e.Process(context.Background(), userPrompt("q")); err == nil {
			t.Error("expected error")
		}
		if err := e.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})

	t.Run("llm", func(t *testing.T) {
		t.Parallel()
		e := New(&llmmock.Provider{StreamErr: errors.New("401")}, &ttsmock.Provider{}, tts.VoiceProfile{})
		resp, err := e.Process(context.Background(), userPrompt("q"))
		if err != nil {
			t.Fatal(err)
		}
		drain(resp.Audio)
		if _, err := resp.Wait(); err == nil || !strings.Contains(err.Error(), "401") {
			t.Errorf("Wait: got %v, want start error", err)
		}
	})

	t.Run("closed", func(t *testing.T) {
		t.Parallel()
		e := New(&llmmock.Provider{}, &ttsmock.Provider{}, tts.VoiceProfile{})
		_ = e.Close()
		if _, err := e.Process(context.Background(), userPrompt("q")); err == nil {
			t.Error("expected error after Close")
		}
	})
}

func TestProcess_CancelUnblocks(t *testing.T) {
	t.Parallel()

	hold := make(chan struct{})
	defer close(hold)
	l := &llmmock.Provider{StreamChunks: []llm.Chunk{{Text: "Thinking"}}, Hold: hold}
	e := New(l, &ttsmock.Provider{}, tts.VoiceProfile{})

	ctx, cancel := context.WithCancel(context.Background())
	resp, err := e.Process(ctx, userPrompt("q"))
	if err != nil {
		t.Fatal(err)
	}
	cancel()

	done := make(chan error, 1)
	go func() {
		drain(resp.Audio)
		_, err := resp.Wait()
		done <- err
	}()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Wait: got %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("response did not finish after cancel")
	}
	if err := e.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestProcess_Concurrent(t *testing.T) {
	t.Parallel()

	l := &llmmock.Provider{StreamChunks: []llm.Chunk{{Text: "Hi.", FinishReason: llm.FinishStop}}}
	e := New(l, &ttsmock.Provider{}, tts.VoiceProfile{})
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := e.Process(context.Background(), userPrompt("q"))
			if err != nil {
				t.Error(err)
				return
			}
			drain(resp.Audio)
			if text, _ := resp.Wait(); text != "Hi." {
				t.Errorf("text: got %q", text)
			}
		}()
	}
	wg.Wait()
	if n := len(l.Calls()); n != 8 {
		t.Errorf("llm calls: got %d, want 8", n)
	}
}

func TestFirstSentenceBoundary(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want int
	}{
		{"Hello. World", 5},
		{"Node.js rocks", -1},
		{"Really?\nYes", 6},
		{"Wow!", -1},
		{"", -1},
	}
	for _, tt := range tests {
		if got := firstSentenceBoundary(tt.in); got != tt.want {
			t.Errorf("firstSentenceBoundary(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
