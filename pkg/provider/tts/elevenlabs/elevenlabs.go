// Package elevenlabs implements tts.Provider on the ElevenLabs stream-input
// WebSocket API.
package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/MrWong99/huddle/pkg/audio"
	"github.com/MrWong99/huddle/pkg/provider/tts"
	"github.com/coder/websocket"
)

const (
	defaultBaseURL   = "wss://api.elevenlabs.io/v1/text-to-speech"
	defaultModel     = "eleven_flash_v2_5"
	defaultOutputFmt = "pcm_24000"
)

// Option configures a Provider.
type Option func(*Provider)

// WithModel sets the ElevenLabs model ID.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithOutputFormat sets the output format. Only raw PCM formats such as
// "pcm_16000" or "pcm_24000" are accepted by New.
func WithOutputFormat(format string) Option {
	return func(p *Provider) { p.outputFormat = format }
}

// WithBaseURL overrides the WebSocket base URL. Used by tests.
func WithBaseURL(base string) Option {
	return func(p *Provider) { p.baseURL = strings.TrimSuffix(base, "/") }
}

// Provider is an ElevenLabs streaming TTS client.
type Provider struct {
	apiKey       string
	baseURL      string
	model        string
	outputFormat string
	format       audio.Format
}

// New returns a Provider authenticating with apiKey.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: api key must not be empty")
	}
	p := &Provider{
		apiKey:       apiKey,
		baseURL:      defaultBaseURL,
		model:        defaultModel,
		outputFormat: defaultOutputFmt,
	}
	for _, o := range opts {
		o(p)
	}
	f, err := parseFormat(p.outputFormat)
	if err != nil {
		return nil, err
	}
	p.format = f
	return p, nil
}

// parseFormat turns "pcm_<rate>" into a mono Format.
func parseFormat(s string) (audio.Format, error) {
	rate, ok := strings.CutPrefix(s, "pcm_")
	if !ok {
		return audio.Format{}, fmt.Errorf("elevenlabs: output format %q is not raw pcm", s)
	}
	n, err := strconv.Atoi(rate)
	if err != nil || n <= 0 {
		return audio.Format{}, fmt.Errorf("elevenlabs: output format %q has no valid sample rate", s)
	}
	return audio.Format{SampleRate: n, Channels: 1}, nil
}

// Format implements tts.Provider.
func (p *Provider) Format() audio.Format { return p.format }

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type textMessage struct {
	Text                 string         `json:"text"`
	VoiceSettings        *voiceSettings `json:"voice_settings,omitempty"`
	TryTriggerGeneration bool           `json:"try_trigger_generation,omitempty"`
}

type audioMessage struct {
	Audio   string `json:"audio"`
	IsFinal bool   `json:"isFinal"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (p *Provider) streamURL(voiceID string) string {
	q := url.Values{}
	q.Set("model_id", p.model)
	q.Set("output_format", p.outputFormat)
	return p.baseURL + "/" + url.PathEscape(voiceID) + "/stream-input?" + q.Encode()
}

// SynthesizeStream implements tts.Provider.
func (p *Provider) SynthesizeStream(ctx context.Context, text <-chan string, voice tts.VoiceProfile) (<-chan []byte, error) {
	if voice.ID == "" {
		return nil, errors.New("elevenlabs: voice id must not be empty")
	}

	headers := http.Header{}
	headers.Set("xi-api-key", p.apiKey)
	conn, _, err := websocket.Dial(ctx, p.streamURL(voice.ID), &websocket.DialOptions{HTTPHeader: headers})
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: dial: %w", err)
	}
	conn.SetReadLimit(4 << 20)

	// The stream is opened with a single space and the voice settings.
	if err := writeJSON(ctx, conn, textMessage{
		Text:          " ",
		VoiceSettings: &voiceSettings{Stability: 0.5, SimilarityBoost: 0.75},
	}); err != nil {
		_ = conn.CloseNow()
		return nil, fmt.Errorf("elevenlabs: open stream: %w", err)
	}

	out := make(chan []byte, 256)
	go func() {
		wctx, cancel := context.WithCancel(ctx)
		defer cancel()

		readDone := make(chan struct{})
		go func() {
			defer close(readDone)
			defer cancel()
			readLoop(ctx, conn, out)
		}()

		if err := writeLoop(wctx, conn, text); err != nil {
			if wctx.Err() == nil {
				slog.Warn("elevenlabs: send text", "err", err)
				_ = conn.CloseNow()
			}
			go audio.Drain(text)
		}
		<-readDone
		close(out)
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}()
	return out, nil
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, b)
}

func writeLoop(ctx context.Context, conn *websocket.Conn, text <-chan string) error {
	for {
		select {
		case frag, ok := <-text:
			if !ok {
				// An empty text ends the input stream.
				return writeJSON(ctx, conn, textMessage{Text: ""})
			}
			if frag == "" {
				continue
			}
			// ElevenLabs expects fragments to end with a space.
			if !strings.HasSuffix(frag, " ") {
				frag += " "
			}
			if err := writeJSON(ctx, conn, textMessage{Text: frag, TryTriggerGeneration: true}); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func readLoop(ctx context.Context, conn *websocket.Conn, out chan<- []byte) {
	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var m audioMessage
		if err := json.Unmarshal(msg, &m); err != nil {
			continue
		}
		if m.Error != "" {
			slog.Warn("elevenlabs: synthesis failed", "err", m.Error, "message", m.Message)
			return
		}
		if m.Audio != "" {
			pcm, err := base64.StdEncoding.DecodeString(m.Audio)
			if err == nil && len(pcm) > 0 {
				select {
				case out <- pcm:
				case <-ctx.Done():
					return
				}
			}
		}
		if m.IsFinal {
			return
		}
	}
}

var _ tts.Provider = (*Provider)(nil)
