// Package cartesia implements tts.Provider on the Cartesia streaming
// WebSocket API.
//
// One WebSocket is opened per response. Every text fragment is sent as a
// continuation of the same Cartesia context so prosody carries across
// sentences; closing the text channel sends the final empty transcript.
package cartesia

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/MrWong99/huddle/pkg/audio"
	"github.com/MrWong99/huddle/pkg/provider/tts"
	"github.com/coder/websocket"
	"github.com/google/uuid"
)

const (
	defaultEndpoint   = "wss://api.cartesia.ai/tts/websocket"
	defaultModel      = "sonic-3"
	defaultLanguage   = "en"
	defaultSampleRate = 24000
	apiVersion        = "2025-04-16"
)

// Option configures a Provider.
type Option func(*Provider)

// WithModel selects the Cartesia model, e.g. "sonic-3".
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithLanguage sets the language used when the voice profile has none.
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// WithSampleRate sets the PCM output sample rate.
func WithSampleRate(rate int) Option {
	return func(p *Provider) {
		if rate > 0 {
			p.sampleRate = rate
		}
	}
}

// WithEndpoint overrides the WebSocket URL. Used by tests.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) { p.endpoint = endpoint }
}

// Provider is a Cartesia streaming TTS client.
type Provider struct {
	apiKey     string
	endpoint   string
	model      string
	language   string
	sampleRate int
}

// New returns a Provider authenticating with apiKey.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("cartesia: api key must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		endpoint:   defaultEndpoint,
		model:      defaultModel,
		language:   defaultLanguage,
		sampleRate: defaultSampleRate,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Format reports mono PCM at the configured sample rate.
func (p *Provider) Format() audio.Format {
	return audio.Format{SampleRate: p.sampleRate, Channels: 1}
}

type voiceSpec struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

type outputFormat struct {
	Container  string `json:"container"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

type request struct {
	ModelID      string       `json:"model_id"`
	Transcript   string       `json:"transcript"`
	Voice        voiceSpec    `json:"voice"`
	Language     string       `json:"language,omitempty"`
	ContextID    string       `json:"context_id"`
	OutputFormat outputFormat `json:"output_format"`
	Continue     bool         `json:"continue"`
}

type response struct {
	Type       string `json:"type"`
	Data       string `json:"data"`
	Done       bool   `json:"done"`
	Error      string `json:"error"`
	StatusCode int    `json:"status_code"`
	ContextID  string `json:"context_id"`
}

// SynthesizeStream implements tts.Provider.
func (p *Provider) SynthesizeStream(ctx context.Context, text <-chan string, voice tts.VoiceProfile) (<-chan []byte, error) {
	if voice.ID == "" {
		return nil, errors.New("cartesia: voice id must not be empty")
	}

	headers := http.Header{}
	headers.Set("X-API-Key", p.apiKey)
	headers.Set("Cartesia-Version", apiVersion)
	conn, _, err := websocket.Dial(ctx, p.endpoint, &websocket.DialOptions{HTTPHeader: headers})
	if err != nil {
		return nil, fmt.Errorf("cartesia: dial: %w", err)
	}
	conn.SetReadLimit(4 << 20)

	lang := voice.Language
	if lang == "" {
		lang = p.language
	}
	base := request{
		ModelID:   p.model,
		Voice:     voiceSpec{Mode: "id", ID: voice.ID},
		Language:  lang,
		ContextID: uuid.NewString(),
		OutputFormat: outputFormat{
			Container:  "raw",
			Encoding:   "pcm_s16le",
			SampleRate: p.sampleRate,
		},
	}

	out := make(chan []byte, 256)
	go func() {
		// The writer stops as soon as the reader is finished, e.g. after a
		// server error, even if more text is still coming.
		wctx, cancel := context.WithCancel(ctx)
		defer cancel()

		readDone := make(chan struct{})
		go func() {
			defer close(readDone)
			defer cancel()
			p.readLoop(ctx, conn, out)
		}()

		if err := p.writeLoop(wctx, conn, text, base); err != nil {
			if wctx.Err() == nil {
				slog.Warn("cartesia: send transcript", "err", err)
				_ = conn.CloseNow()
			}
			// Release the producer; it closes text when it is done.
			go audio.Drain(text)
		}
		<-readDone
		close(out)
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}()
	return out, nil
}

func (p *Provider) writeLoop(ctx context.Context, conn *websocket.Conn, text <-chan string, base request) error {
	send := func(transcript string, more bool) error {
		req := base
		req.Transcript = transcript
		req.Continue = more
		b, err := json.Marshal(req)
		if err != nil {
			return err
		}
		return conn.Write(ctx, websocket.MessageText, b)
	}

	for {
		select {
		case frag, ok := <-text:
			if !ok {
				return send("", false)
			}
			if frag == "" {
				continue
			}
			if err := send(frag, true); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *Provider) readLoop(ctx context.Context, conn *websocket.Conn, out chan<- []byte) {
	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var r response
		if err := json.Unmarshal(msg, &r); err != nil {
			continue
		}
		switch r.Type {
		case "chunk":
			pcm, err := base64.StdEncoding.DecodeString(r.Data)
			if err != nil || len(pcm) == 0 {
				continue
			}
			select {
			case out <- pcm:
			case <-ctx.Done():
				return
			}
		case "error":
			slog.Warn("cartesia: synthesis failed", "status", r.StatusCode, "err", r.Error)
			return
		}
		if r.Done {
			return
		}
	}
}

var _ tts.Provider = (*Provider)(nil)
