package audio

import (
	"log/slog"
	"sync"
)

// FormatConverter brings frames into a fixed target format. It warns once on
// the first mismatch and once on the first malformed frame.
// Not safe for concurrent use; create one per stream.
type FormatConverter struct {
	Target Format

	mismatch sync.Once
	corrupt  sync.Once
}

// Convert returns frame in the target format. Frames already in the target
// format are returned as-is. Frames with an odd byte count come back empty.
func (c *FormatConverter) Convert(frame AudioFrame) AudioFrame {
	src := Format{SampleRate: frame.SampleRate, Channels: frame.Channels}
	out := AudioFrame{
		SampleRate: c.Target.SampleRate,
		Channels:   c.Target.Channels,
		Timestamp:  frame.Timestamp,
	}

	if len(frame.Data)%2 != 0 {
		c.corrupt.Do(func() {
			slog.Warn("audio: odd byte count in pcm frame, dropping",
				"bytes", len(frame.Data),
				"format", src.String(),
			)
		})
		return out
	}
	if src == c.Target {
		return frame
	}

	c.mismatch.Do(func() {
		slog.Debug("audio: converting stream", "from", src.String(), "to", c.Target.String())
	})

	// Downmix before resampling so stereo input is only resampled once.
	pcm := frame.Data
	channels := src.Channels
	if channels == 2 && c.Target.Channels == 1 {
		pcm = StereoToMono(pcm)
		channels = 1
	}
	pcm = Resample(pcm, channels, src.SampleRate, c.Target.SampleRate)
	if channels == 1 && c.Target.Channels == 2 {
		pcm = MonoToStereo(pcm)
	}

	out.Data = pcm
	return out
}

// ConvertStream converts every frame from in to target on a new goroutine.
// The returned channel has the same capacity as in and is closed when in is
// closed. Frames that convert to nothing are dropped.
func ConvertStream(in <-chan AudioFrame, target Format) <-chan AudioFrame {
	out := make(chan AudioFrame, cap(in))
	go func() {
		defer close(out)
		conv := FormatConverter{Target: target}
		for frame := range in {
			if f := conv.Convert(frame); len(f.Data) > 0 {
				out <- f
			}
		}
	}()
	return out
}

// Framer cuts an arbitrary PCM byte stream into fixed-size frames.
// The zero value is unusable; set Size to a positive even length.
type Framer struct {
	Size int

	buf []byte
}

// Write appends pcm and returns every complete frame now available.
// Returned slices do not alias pcm or the internal buffer.
func (f *Framer) Write(pcm []byte) [][]byte {
	f.buf = append(f.buf, pcm...)
	var frames [][]byte
	for len(f.buf) >= f.Size {
		frame := make([]byte, f.Size)
		copy(frame, f.buf[:f.Size])
		frames = append(frames, frame)
		f.buf = f.buf[f.Size:]
	}
	return frames
}

// Flush returns the buffered remainder zero-padded to a full frame, or nil
// when nothing is buffered.
func (f *Framer) Flush() []byte {
	if len(f.buf) == 0 {
		return nil
	}
	frame := make([]byte, f.Size)
	copy(frame, f.buf)
	f.buf = f.buf[:0]
	return frame
}
