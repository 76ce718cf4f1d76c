package gate

import (
	"fmt"
	"strings"
	"testing"
)

func TestNormalise(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"Hey, Alex!", "hey alex"},
		{"  HEY\t\talex   what's up?  ", "hey alex whats up"},
		{"snake_case stays", "snake_case stays"},
		{"Ça va, Zoë?", "ça va zoë"},
		{"?!", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if got := Normalise(tt.in); got != tt.want {
				t.Errorf("Normalise(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestComposeContext(t *testing.T) {
	t.Parallel()

	if got := ComposeContext(nil, 20); got != EmptyContext {
		t.Errorf("empty: got %q, want %q", got, EmptyContext)
	}

	turns := make([]Turn, 25)
	for i := range turns {
		turns[i] = Turn{SpeakerName: "Sam", Text: fmt.Sprintf("t%d", i)}
	}
	got := ComposeContext(turns, 20)
	lines := strings.Split(got, "\n")
	if len(lines) != 20 {
		t.Fatalf("lines: got %d, want 20", len(lines))
	}
	if lines[0] != "Sam: t5" || lines[19] != "Sam: t24" {
		t.Errorf("window: got first %q last %q", lines[0], lines[19])
	}

	if got := ComposeContext(turns, 0); strings.Count(got, "\n") != DefaultWindow-1 {
		t.Errorf("window 0 should use the default of %d", DefaultWindow)
	}
	if got := ComposeContext(turns[:2], 20); got != "Sam: t0\nSam: t1" {
		t.Errorf("short log: got %q", got)
	}
}

func TestFormatParticipants(t *testing.T) {
	t.Parallel()

	if got := FormatParticipants(nil); got != "No other participants." {
		t.Errorf("none: got %q", got)
	}
	if got := FormatParticipants([]string{"Sam", "Priya"}); got != "- Sam\n- Priya" {
		t.Errorf("two: got %q", got)
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Join("u1", "Sam")
	if r.Register("u1", "Samuel") {
		t.Error("re-registering must not replace the name")
	}
	if n, _ := r.Name("u1"); n != "Sam" {
		t.Errorf("name: got %q, want Sam", n)
	}
	r.Join("u2", "")
	if n, _ := r.Name("u2"); n != "u2" {
		t.Errorf("empty display name should fall back to the id, got %q", n)
	}
	r.Leave("u1")
	if got := r.Present(); len(got) != 1 || got[0] != "u2" {
		t.Errorf("present: got %q", got)
	}
	r.Join("u1", "ignored")
	if got := r.Present(); len(got) != 2 || got[0] != "Sam" {
		t.Errorf("rejoin keeps order and name, got %q", got)
	}
	if r.Len() != 2 {
		t.Errorf("len: got %d, want 2", r.Len())
	}
}
