package deepgram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/huddle/pkg/provider/stt"
	"github.com/MrWong99/huddle/pkg/types"
	"github.com/coder/websocket"
)

func query(t *testing.T, p *Provider, cfg stt.StreamConfig) url.Values {
	t.Helper()
	raw, err := p.buildURL(cfg)
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	return u.Query()
}

func TestBuildURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts []Option
		cfg  stt.StreamConfig
		want map[string]string
	}{
		{
			name: "defaults",
			cfg:  stt.StreamConfig{SampleRate: 16000, Channels: 1},
			want: map[string]string{
				"model":           "nova-3",
				"language":        "en",
				"encoding":        "linear16",
				"sample_rate":     "16000",
				"channels":        "1",
				"interim_results": "true",
				"endpointing":     "300",
			},
		},
		{
			name: "provider options fill gaps",
			opts: []Option{WithModel("nova-2"), WithLanguage("de-DE"), WithSampleRate(48000), WithEndpointing(500 * time.Millisecond)},
			want: map[string]string{
				"model":       "nova-2",
				"language":    "de-DE",
				"sample_rate": "48000",
				"channels":    "1",
				"endpointing": "500",
			},
		},
		{
			name: "stream config wins",
			opts: []Option{WithLanguage("en")},
			cfg:  stt.StreamConfig{Language: "fr-FR", SampleRate: 8000, Channels: 2},
			want: map[string]string{"language": "fr-FR", "sample_rate": "8000", "channels": "2"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p, err := New("key", tt.opts...)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			q := query(t, p, tt.cfg)
			for k, want := range tt.want {
				if got := q.Get(k); got != want {
					t.Errorf("%s = %q, want %q", k, got, want)
				}
			}
		})
	}
}

func TestBuildURL_Keywords(t *testing.T) {
	t.Parallel()

	kws := []types.KeywordBoost{{Keyword: "hey alex", Boost: 5}, {Keyword: "alex", Boost: 2.5}}

	nova3, _ := New("key")
	q := query(t, nova3, stt.StreamConfig{Keywords: kws})
	if got := q["keyterm"]; len(got) != 2 || got[0] != "hey alex" || got[1] != "alex" {
		t.Errorf("nova-3 keyterm = %v", got)
	}
	if _, ok := q["keywords"]; ok {
		t.Error("nova-3 must not send keywords")
	}

	nova2, _ := New("key", WithModel("nova-2"))
	q = query(t, nova2, stt.StreamConfig{Keywords: kws})
	if got := q["keywords"]; len(got) != 2 || got[0] != "hey alex:5" || got[1] != "alex:2.5" {
		t.Errorf("nova-2 keywords = %v", got)
	}
}

func TestParseResult(t *testing.T) {
	t.Parallel()

	t.Run("final", func(t *testing.T) {
		t.Parallel()
		got, ok := parseResult([]byte(`{
			"type": "Results", "is_final": true, "start": 1.5, "duration": 0.75,
			"channel": {"alternatives": [{
				"transcript": "hey alex", "confidence": 0.95,
				"words": [{"word": "hey", "start": 1.5, "end": 1.7, "confidence": 0.9}]
			}]}
		}`))
		if !ok {
			t.Fatal("parseResult returned !ok")
		}
		if got.Text != "hey alex" || !got.IsFinal || got.Confidence != 0.95 {
			t.Errorf("got %+v", got)
		}
		if got.Timestamp != 1500*time.Millisecond || got.Duration != 750*time.Millisecond {
			t.Errorf("timing = %v/%v, want 1.5s/750ms", got.Timestamp, got.Duration)
		}
		if len(got.Words) != 1 || got.Words[0].End != 1700*time.Millisecond {
			t.Errorf("words = %+v", got.Words)
		}
	})

	for name, raw := range map[string]string{
		"metadata":          `{"type":"Metadata","request_id":"x"}`,
		"no alternatives":   `{"type":"Results","channel":{"alternatives":[]}}`,
		"invalid json":      `{nope`,
		"utterance end msg": `{"type":"UtteranceEnd","last_word_end":2.1}`,
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if _, ok := parseResult([]byte(raw)); ok {
				t.Errorf("parseResult(%s) = ok, want ignored", raw)
			}
		})
	}
}

func TestNew_EmptyAPIKey(t *testing.T) {
	t.Parallel()
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty api key")
	}
}

// fakeDeepgram accepts one WebSocket, records what the client sends and
// answers every binary frame with a final transcript.
type fakeDeepgram struct {
	mu     sync.Mutex
	auth   string
	texts  []string
	binary int
}

func (f *fakeDeepgram) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.auth = r.Header.Get("Authorization")
		f.mu.Unlock()

		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		defer c.CloseNow()
		ctx := r.Context()
		for {
			typ, data, err := c.Read(ctx)
			if err != nil {
				return
			}
			f.mu.Lock()
			if typ == websocket.MessageText {
				f.texts = append(f.texts, string(data))
			} else {
				f.binary++
			}
			f.mu.Unlock()

			if typ == websocket.MessageBinary {
				msg := `{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"hello there","confidence":0.9}]}}`
				if err := c.Write(ctx, websocket.MessageText, []byte(msg)); err != nil {
					return
				}
			}
			if typ == websocket.MessageText && strings.Contains(string(data), "CloseStream") {
				c.Close(websocket.StatusNormalClosure, "")
				return
			}
		}
	}
}

func TestSession_RoundTrip(t *testing.T) {
	t.Parallel()

	fake := &fakeDeepgram{}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	p, err := New("secret", WithEndpoint("ws"+strings.TrimPrefix(srv.URL, "http")))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sess, err := p.StartStream(ctx, stt.StreamConfig{SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatalf("StartStream: %v", err)
	}
	if err := sess.SendAudio(make([]byte, 320)); err != nil {
		t.Fatalf("SendAudio: %v", err)
	}

	select {
	case tr := <-sess.Finals():
		if tr.Text != "hello there" || !tr.IsFinal {
			t.Errorf("final = %+v", tr)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for final transcript")
	}

	if err := sess.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if err := sess.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := sess.SendAudio([]byte{0, 0}); err == nil {
		t.Error("SendAudio after Close should fail")
	}
	if _, open := <-sess.Finals(); open {
		// Drain any late transcript, then the channel must be closed.
		for range sess.Finals() {
		}
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.auth != "Token secret" {
		t.Errorf("Authorization = %q", fake.auth)
	}
	if fake.binary != 1 {
		t.Errorf("binary frames = %d, want 1", fake.binary)
	}
	if len(fake.texts) != 2 || !strings.Contains(fake.texts[0], "Finalize") || !strings.Contains(fake.texts[1], "CloseStream") {
		t.Errorf("control messages = %v, want Finalize then CloseStream", fake.texts)
	}
}
