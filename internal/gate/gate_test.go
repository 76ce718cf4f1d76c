package gate

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/huddle/internal/gate/phonetic"
)

var fixedNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestGate(t *testing.T, opts ...Option) *Gate {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	g, err := New([]string{"hey alex", "alex"}, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	g.Registry().Join("u1", "Sam")
	g.Registry().Join("u2", "Priya")
	return g
}

func TestIngest_TriggerWithQuery(t *testing.T) {
	t.Parallel()

	g := newTestGate(t)
	d := g.Ingest("u1", "Hey Alex, what do you think?")

	if d.Action != Forward {
		t.Fatalf("action: got %v, want forward", d.Action)
	}
	if d.Utterance != "what do you think" {
		t.Errorf("utterance: got %q, want %q", d.Utterance, "what do you think")
	}
	if d.Trigger != "hey alex" || !d.Activated {
		t.Errorf("trigger/activated: got %q/%v, want hey alex/true", d.Trigger, d.Activated)
	}
	if !d.Turn.Activation || d.Turn.Text != "Hey Alex, what do you think?" || d.Turn.SpeakerName != "Sam" {
		t.Errorf("turn: got %+v", d.Turn)
	}
	if got := g.State(); got != Awaiting {
		t.Errorf("state: got %v, want awaiting", got)
	}
}

func TestIngest_FirstPhraseInListOrderWins(t *testing.T) {
	t.Parallel()

	g := newTestGate(t)
	d := g.Ingest("u1", "hey alex are you there")
	if d.Trigger != "hey alex" || d.Utterance != "are you there" {
		t.Errorf("got trigger %q utterance %q, want hey alex / are you there", d.Trigger, d.Utterance)
	}

	// With the order reversed the shorter phrase wins and keeps the rest.
	g2, err := New([]string{"alex", "hey alex"})
	if err != nil {
		t.Fatal(err)
	}
	d = g2.Ingest("u1", "hey alex are you there")
	if d.Trigger != "alex" || d.Utterance != "are you there" {
		t.Errorf("reversed: got trigger %q utterance %q", d.Trigger, d.Utterance)
	}
}

func TestIngest_BareTriggerWaitsForFollowUp(t *testing.T) {
	t.Parallel()

	g := newTestGate(t)
	d := g.Ingest("u1", "Alex?")
	if d.Action != Suppress || !d.Activated {
		t.Fatalf("bare trigger: got action %v activated %v, want suppress/true", d.Action, d.Activated)
	}
	if g.State() != Awaiting {
		t.Fatalf("state: got %v, want awaiting", g.State())
	}

	d = g.Ingest("u2", "Can you summarise, please?")
	if d.Action != Forward || d.Utterance != "Can you summarise, please?" {
		t.Errorf("follow-up: got %v %q, want verbatim forward", d.Action, d.Utterance)
	}
	if d.Activated || d.Turn.Activation {
		t.Error("follow-up must not count as an activation")
	}
}

func TestIngest_SilentWithoutTrigger(t *testing.T) {
	t.Parallel()

	g := newTestGate(t)
	d := g.Ingest("u1", "I think we should use React")
	if d.Action != Suppress || d.Activated || d.Utterance != "" {
		t.Errorf("got %+v, want plain suppress", d)
	}
	if g.State() != Silent {
		t.Errorf("state: got %v, want silent", g.State())
	}
}

func TestIngest_AwaitingForwardsUntilDelivered(t *testing.T) {
	t.Parallel()

	g := newTestGate(t)
	g.Ingest("u1", "alex")
	for _, text := range []string{"first thing", "alex second thing"} {
		d := g.Ingest("u2", text)
		if d.Action != Forward || d.Utterance != text {
			t.Errorf("Ingest(%q): got %v %q, want verbatim forward", text, d.Action, d.Utterance)
		}
	}
	g.OnResponseDelivered()
	if d := g.Ingest("u2", "unrelated"); d.Action != Suppress {
		t.Errorf("after delivery: got %v, want suppress", d.Action)
	}
	if s := g.Stats(); s.Activations != 1 {
		t.Errorf("activations: got %d, want 1", s.Activations)
	}
}

func TestIngest_LogGrowsByOne(t *testing.T) {
	t.Parallel()

	g := newTestGate(t)
	inputs := []string{"hello", "alex", "what now", "hey alex status", "", "bye"}
	for i, in := range inputs {
		g.Ingest("u1", in)
		if n := len(g.Turns()); n != i+1 {
			t.Fatalf("after %d ingests: log length %d", i+1, n)
		}
		if in == "alex" || in == "hey alex status" {
			g.OnResponseDelivered()
		}
	}
	if got := g.Stats().TotalTurns; got != len(inputs) {
		t.Errorf("TotalTurns: got %d, want %d", got, len(inputs))
	}
}

func TestIngest_SpeakerResolution(t *testing.T) {
	t.Parallel()

	g := newTestGate(t)
	if d := g.Ingest("", "mystery voice"); d.Turn.SpeakerID != UnknownID || d.Turn.SpeakerName != UnknownName {
		t.Errorf("empty identity: got %s/%s", d.Turn.SpeakerID, d.Turn.SpeakerName)
	}
	d := g.Ingest("u9", "newcomer")
	if d.Turn.SpeakerName != "User3" {
		t.Errorf("fallback name: got %q, want User3", d.Turn.SpeakerName)
	}
	if d := g.Ingest("u9", "again"); d.Turn.SpeakerName != "User3" {
		t.Errorf("fallback name must be stable, got %q", d.Turn.SpeakerName)
	}
	if d := g.Ingest("u2", "hi"); d.Turn.SpeakerName != "Priya" {
		t.Errorf("registered name: got %q, want Priya", d.Turn.SpeakerName)
	}
}

func TestRespond(t *testing.T) {
	t.Parallel()

	t.Run("silent skips", func(t *testing.T) {
		t.Parallel()
		g := newTestGate(t)
		called := false
		if err := g.Respond(func() error { called = true; return nil }); err != nil || called {
			t.Errorf("got err %v called %v, want nil/false", err, called)
		}
	})

	t.Run("error resets and propagates", func(t *testing.T) {
		t.Parallel()
		g := newTestGate(t)
		g.Ingest("u1", "alex do the thing")
		boom := errors.New("tts down")
		var stateDuring State
		err := g.Respond(func() error {
			stateDuring = g.State()
			return boom
		})
		if !errors.Is(err, boom) {
			t.Errorf("err: got %v, want %v", err, boom)
		}
		if stateDuring != Awaiting {
			t.Errorf("state during fn: got %v, want awaiting", stateDuring)
		}
		if g.State() != Silent {
			t.Errorf("state after: got %v, want silent", g.State())
		}
	})

	t.Run("panic resets", func(t *testing.T) {
		t.Parallel()
		g := newTestGate(t)
		g.Ingest("u1", "alex")
		func() {
			defer func() { _ = recover() }()
			_ = g.Respond(func() error { panic("boom") })
		}()
		if g.State() != Silent {
			t.Errorf("state after panic: got %v, want silent", g.State())
		}
	})
}

func TestNew_RejectsEmptyPhrase(t *testing.T) {
	t.Parallel()

	_, err := New([]string{"alex", " ?! "})
	if !errors.Is(err, ErrEmptyPhrase) {
		t.Fatalf("err: got %v, want ErrEmptyPhrase", err)
	}
	g, err := New([]string{"Hey, Alex!"})
	if err != nil {
		t.Fatal(err)
	}
	if got := g.Phrases(); len(got) != 1 || got[0] != "hey alex" {
		t.Errorf("phrases: got %q, want [hey alex]", got)
	}
}

func TestNew_NoPhrasesNeverActivates(t *testing.T) {
	t.Parallel()

	g, err := New(nil)
	if err != nil {
		t.Fatal(err)
	}
	if d := g.Ingest("u1", "hey alex"); d.Action != Suppress || d.Activated {
		t.Errorf("got %+v, want suppress", d)
	}
}

func TestWithCorrector(t *testing.T) {
	t.Parallel()

	plain := newTestGate(t)
	if d := plain.Ingest("u1", "hey alix how are we doing"); d.Activated {
		t.Fatal("near miss must not activate without a corrector")
	}

	g := newTestGate(t, WithCorrector(phonetic.New([]string{"hey alex", "alex"})))
	d := g.Ingest("u1", "hey alix how are we doing")
	if !d.Activated || d.Utterance != "how are we doing" {
		t.Errorf("got activated %v utterance %q", d.Activated, d.Utterance)
	}
	if d.Turn.Text != "hey alix how are we doing" {
		t.Errorf("log must keep the original text, got %q", d.Turn.Text)
	}
}

func TestAddendum(t *testing.T) {
	t.Parallel()

	g := newTestGate(t)
	g.Ingest("u1", "Budget is $50k")
	g.Ingest("u2", "Timeline is 3 months")
	g.Registry().Leave("u2")

	want := "CONVERSATION CONTEXT:\n\nPARTICIPANTS:\n- Sam\n\nCONVERSATION HISTORY:\n" +
		"Sam: Budget is $50k\nPriya: Timeline is 3 months\n\n" +
		"Use this context to provide relevant responses. Reference specific things people said.\n"
	if got := g.Addendum(); got != want {
		t.Errorf("Addendum:\ngot  %q\nwant %q", got, want)
	}

	empty, _ := New(nil)
	if got := empty.Addendum(); !strings.Contains(got, "No other participants.") || !strings.Contains(got, EmptyContext) {
		t.Errorf("empty addendum: got %q", got)
	}
	if len(g.Turns()) != 2 {
		t.Error("Addendum must not touch the log")
	}
}

func TestSummary(t *testing.T) {
	t.Parallel()

	g := newTestGate(t)
	if got := g.Summary(); got != EmptyContext {
		t.Errorf("empty summary: got %q", got)
	}
	for i := range 12 {
		g.Ingest("u1", fmt.Sprintf("line %d", i))
	}
	got := g.Summary()
	if !strings.HasPrefix(got, "Total turns: 12\n") {
		t.Errorf("summary header: got %q", got)
	}
	if strings.Contains(got, "line 1\n") || !strings.HasSuffix(got, "Sam: line 11") {
		t.Errorf("summary should hold the last 10 turns, got %q", got)
	}
	if n := strings.Count(got, "\n"); n != 10 {
		t.Errorf("summary lines: got %d newlines, want 10", n)
	}
}

func TestTurnsSince(t *testing.T) {
	t.Parallel()

	g := newTestGate(t)
	g.Ingest("u1", "a")
	g.Ingest("u1", "b")
	g.Ingest("u1", "c")
	if got := g.TurnsSince(1); len(got) != 2 || got[0].Text != "b" {
		t.Errorf("TurnsSince(1): got %+v", got)
	}
	if got := g.TurnsSince(3); got != nil {
		t.Errorf("TurnsSince(3): got %+v, want nil", got)
	}
	if got := g.Turns()[0].Timestamp; !got.Equal(fixedNow) {
		t.Errorf("timestamp: got %v, want %v", got, fixedNow)
	}
}
