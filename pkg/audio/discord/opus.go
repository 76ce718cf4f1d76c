package discord

import (
	"encoding/binary"
	"fmt"
	"time"

	"layeh.com/gopus"

	"github.com/MrWong99/huddle/pkg/audio"
)

// opusFrame is the packet duration Discord sends and expects.
const opusFrame = 20 * time.Millisecond

// samplesPerChannel is the number of samples per channel in one opusFrame.
var samplesPerChannel = audio.Discord.SampleRate * int(opusFrame/time.Millisecond) / 1000

// decoder turns one SSRC's Opus packets into 48 kHz stereo PCM. Opus is
// stateful, so every speaker needs its own.
type decoder struct {
	dec *gopus.Decoder
}

func newDecoder() (*decoder, error) {
	dec, err := gopus.NewDecoder(audio.Discord.SampleRate, audio.Discord.Channels)
	if err != nil {
		return nil, fmt.Errorf("discord: create opus decoder: %w", err)
	}
	return &decoder{dec: dec}, nil
}

// pcm decodes one packet to little-endian int16 PCM.
func (d *decoder) pcm(packet []byte) ([]byte, error) {
	samples, err := d.dec.Decode(packet, samplesPerChannel, false)
	if err != nil {
		return nil, fmt.Errorf("discord: opus decode: %w", err)
	}
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out, nil
}

// encoder packs exactly one opusFrame of 48 kHz stereo PCM per call.
type encoder struct {
	enc     *gopus.Encoder
	samples []int16
}

func newEncoder() (*encoder, error) {
	enc, err := gopus.NewEncoder(audio.Discord.SampleRate, audio.Discord.Channels, gopus.Voip)
	if err != nil {
		return nil, fmt.Errorf("discord: create opus encoder: %w", err)
	}
	return &encoder{enc: enc}, nil
}

// packet encodes one frame of little-endian int16 PCM.
func (e *encoder) packet(pcm []byte) ([]byte, error) {
	n := len(pcm) / 2
	if cap(e.samples) < n {
		e.samples = make([]int16, n)
	}
	e.samples = e.samples[:n]
	for i := range e.samples {
		e.samples[i] = int16(binary.LittleEndian.Uint16(pcm[2*i:]))
	}
	packet, err := e.enc.Encode(e.samples, samplesPerChannel, len(pcm))
	if err != nil {
		return nil, fmt.Errorf("discord: opus encode: %w", err)
	}
	return packet, nil
}
