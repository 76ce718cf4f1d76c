package llm_test

import (
	"testing"

	"github.com/MrWong99/huddle/pkg/provider/llm"
)

func TestToolCallAccumulator(t *testing.T) {
	t.Parallel()

	var acc llm.ToolCallAccumulator
	if acc.Calls() != nil {
		t.Fatal("empty accumulator should return nil")
	}
	acc.Add(1, "call_b", "delegate_to_technical_agent", "")
	acc.Add(0, "call_a", "get_conversation_summary", `{`)
	acc.Add(0, "", "", `}`)
	acc.Add(1, "", "", `{}`)

	got := acc.Calls()
	if acc.Len() != 2 || len(got) != 2 {
		t.Fatalf("got %d calls, want 2", len(got))
	}
	if got[0].ID != "call_a" || got[0].Name != "get_conversation_summary" || got[0].Arguments != "{}" {
		t.Errorf("call 0 = %+v", got[0])
	}
	if got[1].ID != "call_b" || got[1].Arguments != "{}" {
		t.Errorf("call 1 = %+v", got[1])
	}
}

func TestKnownCapabilities(t *testing.T) {
	t.Parallel()

	tests := []struct {
		model     string
		window    int
		tools     bool
		vision    bool
		maxOutput int
	}{
		{"gpt-4o-mini", 128_000, true, true, 16_384},
		{"GPT-4o", 128_000, true, true, 16_384},
		{"o1-mini", 128_000, false, false, 65_536},
		{"claude-sonnet-4-5", 200_000, true, true, 8_192},
		{"gemini-2.5-flash", 1_048_576, true, true, 8_192},
		{"llama3.2", 128_000, true, false, 4_096},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			t.Parallel()
			c := llm.KnownCapabilities(tt.model)
			if c.ContextWindow != tt.window || c.SupportsToolCalling != tt.tools || c.SupportsVision != tt.vision || c.MaxOutputTokens != tt.maxOutput {
				t.Errorf("KnownCapabilities(%q) = %+v", tt.model, c)
			}
			if !c.SupportsStreaming {
				t.Error("streaming should always be supported")
			}
		})
	}
}
